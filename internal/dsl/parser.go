package dsl

import (
	"fmt"
	"strings"

	"github.com/jwtly10/tradedsl/internal/logging"
)

var parserLog = logging.New("parser")

// Rule names a grammar production in the parse tree.
type Rule string

const (
	RuleStart      Rule = "start"
	RuleEntry      Rule = "entry"
	RuleExit       Rule = "exit"
	RuleOr         Rule = "or"
	RuleAnd        Rule = "and"
	RuleGroup      Rule = "group"
	RuleComparison Rule = "comparison"
	RuleCrossAbove Rule = "cross_above"
	RuleCrossBelow Rule = "cross_below"
	RuleSeries     Rule = "series"
	RuleIndicator  Rule = "indicator"
	RuleNumber     Rule = "number"
)

// Tree is a generic parse tree node. Token carries the significant token of the
// production: the operator of a comparison, the name of a series or indicator,
// the literal of a number, or the keyword of a section.
type Tree struct {
	Rule     Rule
	Token    Token
	Children []*Tree
}

// String renders the tree in a compact s-expression form, mostly for debugging.
func (t *Tree) String() string {
	var sb strings.Builder
	t.write(&sb)
	return sb.String()
}

func (t *Tree) write(sb *strings.Builder) {
	sb.WriteString("(")
	sb.WriteString(string(t.Rule))
	if t.Token.Text != "" {
		sb.WriteString(" ")
		sb.WriteString(t.Token.Text)
	}
	for _, c := range t.Children {
		sb.WriteString(" ")
		c.write(sb)
	}
	sb.WriteString(")")
}

// Parse parses rule text of the form "ENTRY: <expr> [EXIT: <expr>]".
//
// Precedence from loosest to tightest is OR, AND, parenthesised groups, then
// conditions. Any input that does not match the grammar exactly is rejected
// with a *SyntaxError; no partial tree is returned.
func Parse(text string) (*Tree, error) {
	tokens, err := Tokenize(text)
	if err != nil {
		return nil, err
	}

	p := &parser{tokens: tokens}
	tree, err := p.parseStart()
	if err != nil {
		parserLog.Debug("Parse failed", "error", err)
		return nil, err
	}

	parserLog.Debug("Parsed rules", "tree", tree.String())
	return tree, nil
}

type parser struct {
	tokens []Token
	pos    int
}

func (p *parser) peek() Token {
	return p.tokens[p.pos]
}

func (p *parser) next() Token {
	tok := p.tokens[p.pos]
	if tok.Kind != TokenEOF {
		p.pos++
	}
	return tok
}

func (p *parser) errorf(tok Token, format string, args ...any) error {
	text := tok.Text
	if tok.Kind == TokenEOF {
		text = TokenEOF.String()
	}
	return &SyntaxError{Pos: tok.Pos, Token: text, Msg: fmt.Sprintf(format, args...)}
}

func (p *parser) parseStart() (*Tree, error) {
	start := &Tree{Rule: RuleStart}

	tok := p.next()
	if tok.Kind != TokenEntry {
		return nil, p.errorf(tok, "missing ENTRY: keyword")
	}
	entry, err := p.parseSection(RuleEntry, tok)
	if err != nil {
		return nil, err
	}
	start.Children = append(start.Children, entry)

	if p.peek().Kind == TokenExit {
		tok = p.next()
		exit, err := p.parseSection(RuleExit, tok)
		if err != nil {
			return nil, err
		}
		start.Children = append(start.Children, exit)
	}

	switch tok := p.peek(); tok.Kind {
	case TokenEOF:
		return start, nil
	case TokenRParen:
		return nil, p.errorf(tok, "unmatched ')'")
	case TokenEntry, TokenExit:
		return nil, p.errorf(tok, "unexpected section, expected ENTRY: followed by at most one EXIT:")
	default:
		return nil, p.errorf(tok, "unexpected token after expression, expected AND, OR or EXIT:")
	}
}

func (p *parser) parseSection(rule Rule, keyword Token) (*Tree, error) {
	expr, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	return &Tree{Rule: rule, Token: keyword, Children: []*Tree{expr}}, nil
}

func (p *parser) parseOr() (*Tree, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.peek().Kind == TokenOr {
		op := p.next()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = &Tree{Rule: RuleOr, Token: op, Children: []*Tree{left, right}}
	}
	return left, nil
}

func (p *parser) parseAnd() (*Tree, error) {
	left, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	for p.peek().Kind == TokenAnd {
		op := p.next()
		right, err := p.parsePrimary()
		if err != nil {
			return nil, err
		}
		left = &Tree{Rule: RuleAnd, Token: op, Children: []*Tree{left, right}}
	}
	return left, nil
}

func (p *parser) parsePrimary() (*Tree, error) {
	if p.peek().Kind != TokenLParen {
		return p.parseCondition()
	}

	open := p.next()
	inner, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if tok := p.peek(); tok.Kind != TokenRParen {
		return nil, p.errorf(tok, "missing ')' for '(' at %s", open.Pos)
	}
	p.next()
	return &Tree{Rule: RuleGroup, Token: open, Children: []*Tree{inner}}, nil
}

func (p *parser) parseCondition() (*Tree, error) {
	left, err := p.parseOperand()
	if err != nil {
		return nil, err
	}

	tok := p.peek()
	switch tok.Kind {
	case TokenOp:
		p.next()
		right, err := p.parseOperand()
		if err != nil {
			return nil, err
		}
		return &Tree{Rule: RuleComparison, Token: tok, Children: []*Tree{left, right}}, nil

	case TokenCrossAbove, TokenCrossBelow:
		if left.Rule == RuleNumber {
			return nil, p.errorf(left.Token, "%s needs a series or indicator on the left, got a number", tok.Text)
		}
		p.next()
		right, err := p.parseOperand()
		if err != nil {
			return nil, err
		}
		if right.Rule == RuleNumber {
			return nil, p.errorf(right.Token, "%s needs a series or indicator on the right, got a number", tok.Text)
		}
		rule := RuleCrossAbove
		if tok.Kind == TokenCrossBelow {
			rule = RuleCrossBelow
		}
		return &Tree{Rule: rule, Token: tok, Children: []*Tree{left, right}}, nil

	default:
		return nil, p.errorf(tok, "expected comparison operator or crosses_above/crosses_below")
	}
}

func (p *parser) parseOperand() (*Tree, error) {
	tok := p.next()
	switch tok.Kind {
	case TokenNumber:
		return &Tree{Rule: RuleNumber, Token: tok}, nil

	case TokenName:
		switch p.peek().Kind {
		case TokenLParen:
			return p.parseIndicator(tok)
		case TokenLBracket:
			p.next()
			lag, err := p.expectInt("lag")
			if err != nil {
				return nil, err
			}
			if closing := p.peek(); closing.Kind != TokenRBracket {
				return nil, p.errorf(closing, "missing ']' after lag")
			}
			p.next()
			return &Tree{Rule: RuleSeries, Token: tok, Children: []*Tree{lag}}, nil
		default:
			return &Tree{Rule: RuleSeries, Token: tok}, nil
		}

	default:
		return nil, p.errorf(tok, "expected indicator, series or number")
	}
}

func (p *parser) parseIndicator(name Token) (*Tree, error) {
	p.next() // '('

	arity := func(tok Token) error {
		return p.errorf(tok, "indicator %s takes exactly 2 arguments: (operand, period)", name.Text)
	}

	if tok := p.peek(); tok.Kind == TokenRParen {
		return nil, arity(tok)
	}
	operand, err := p.parseOperand()
	if err != nil {
		return nil, err
	}
	if tok := p.peek(); tok.Kind != TokenComma {
		return nil, arity(tok)
	}
	p.next()

	if tok := p.peek(); tok.Kind != TokenNumber {
		return nil, arity(tok)
	}
	period, err := p.expectInt("period")
	if err != nil {
		return nil, err
	}

	switch tok := p.peek(); tok.Kind {
	case TokenRParen:
		p.next()
	case TokenComma:
		return nil, arity(tok)
	default:
		return nil, p.errorf(tok, "missing ')' to close indicator %s", name.Text)
	}

	return &Tree{Rule: RuleIndicator, Token: name, Children: []*Tree{operand, period}}, nil
}

func (p *parser) expectInt(what string) (*Tree, error) {
	tok := p.peek()
	if tok.Kind != TokenNumber {
		return nil, p.errorf(tok, "expected integer %s", what)
	}
	if !tok.Int {
		return nil, p.errorf(tok, "%s must be a whole number", what)
	}
	p.next()
	return &Tree{Rule: RuleNumber, Token: tok}, nil
}
