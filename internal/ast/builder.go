package ast

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/jwtly10/tradedsl/internal/dsl"
)

// AstError is returned when a parse tree does not have the shape the builder expects,
// e.g. more than one expression in a section.
type AstError struct {
	Section string
	Msg     string
}

func (e *AstError) Error() string {
	if e.Section == "" {
		return "ast: " + e.Msg
	}
	return fmt.Sprintf("ast: %s section: %s", e.Section, e.Msg)
}

// ParseRuleSet parses rule text and builds its RuleSet.
func ParseRuleSet(text string) (RuleSet, error) {
	tree, err := dsl.Parse(text)
	if err != nil {
		return RuleSet{}, err
	}
	return BuildRuleSet(tree)
}

// BuildRuleSet groups the section expressions of a start tree into a RuleSet.
func BuildRuleSet(tree *dsl.Tree) (RuleSet, error) {
	if tree == nil || tree.Rule != dsl.RuleStart {
		return RuleSet{}, &AstError{Msg: "expected a start tree"}
	}

	var entries, exits []Node
	for _, section := range tree.Children {
		if len(section.Children) != 1 {
			return RuleSet{}, &AstError{
				Section: string(section.Rule),
				Msg:     fmt.Sprintf("expected exactly one expression, got %d", len(section.Children)),
			}
		}
		node, err := Build(section.Children[0])
		if err != nil {
			return RuleSet{}, err
		}

		switch section.Rule {
		case dsl.RuleEntry:
			entries = append(entries, node)
		case dsl.RuleExit:
			exits = append(exits, node)
		default:
			return RuleSet{}, &AstError{Msg: fmt.Sprintf("unexpected section %q", section.Rule)}
		}
	}

	if len(entries) > 1 {
		return RuleSet{}, &AstError{Section: "entry", Msg: fmt.Sprintf("%d expressions, at most one allowed", len(entries))}
	}
	if len(exits) > 1 {
		return RuleSet{}, &AstError{Section: "exit", Msg: fmt.Sprintf("%d expressions, at most one allowed", len(exits))}
	}

	var rs RuleSet
	if len(entries) == 1 {
		rs.Entry = entries[0]
	}
	if len(exits) == 1 {
		rs.Exit = exits[0]
	}
	return rs, nil
}

// Build transforms an expression parse tree into its canonical Node.
// It checks shape only; names, periods and operand kinds are validated by the compiler.
func Build(t *dsl.Tree) (Node, error) {
	switch t.Rule {
	case dsl.RuleOr, dsl.RuleAnd:
		left, right, err := buildPair(t)
		if err != nil {
			return nil, err
		}
		if t.Rule == dsl.RuleOr {
			return &Or{Left: left, Right: right}, nil
		}
		return &And{Left: left, Right: right}, nil

	case dsl.RuleGroup:
		if err := arity(t, 1); err != nil {
			return nil, err
		}
		return Build(t.Children[0])

	case dsl.RuleComparison:
		left, right, err := buildPair(t)
		if err != nil {
			return nil, err
		}
		return &Comparison{Left: left, Op: CompareOp(t.Token.Text), Right: right}, nil

	case dsl.RuleCrossAbove, dsl.RuleCrossBelow:
		left, right, err := buildPair(t)
		if err != nil {
			return nil, err
		}
		dir := Above
		if t.Rule == dsl.RuleCrossBelow {
			dir = Below
		}
		return &Cross{Direction: dir, Left: left, Right: right}, nil

	case dsl.RuleSeries:
		s := &Series{Name: t.Token.Text}
		switch len(t.Children) {
		case 0:
		case 1:
			lag, err := intLiteral(t.Children[0])
			if err != nil {
				return nil, err
			}
			s.Lag = lag
		default:
			return nil, &AstError{Msg: fmt.Sprintf("series %s: expected at most one lag", t.Token.Text)}
		}
		return s, nil

	case dsl.RuleIndicator:
		if err := arity(t, 2); err != nil {
			return nil, err
		}
		operand, err := Build(t.Children[0])
		if err != nil {
			return nil, err
		}
		period, err := intLiteral(t.Children[1])
		if err != nil {
			return nil, err
		}
		return &Indicator{Name: strings.ToLower(t.Token.Text), Operand: operand, Period: period}, nil

	case dsl.RuleNumber:
		v, err := strconv.ParseFloat(t.Token.Text, 64)
		if err != nil {
			return nil, &AstError{Msg: fmt.Sprintf("invalid number %q", t.Token.Text)}
		}
		return &Constant{Value: v}, nil

	default:
		return nil, &AstError{Msg: fmt.Sprintf("unexpected production %q", t.Rule)}
	}
}

func buildPair(t *dsl.Tree) (Node, Node, error) {
	if err := arity(t, 2); err != nil {
		return nil, nil, err
	}
	left, err := Build(t.Children[0])
	if err != nil {
		return nil, nil, err
	}
	right, err := Build(t.Children[1])
	if err != nil {
		return nil, nil, err
	}
	return left, right, nil
}

func arity(t *dsl.Tree, n int) error {
	if len(t.Children) != n {
		return &AstError{Msg: fmt.Sprintf("%s: expected %d children, got %d", t.Rule, n, len(t.Children))}
	}
	return nil
}

func intLiteral(t *dsl.Tree) (int, error) {
	if t.Rule != dsl.RuleNumber {
		return 0, &AstError{Msg: fmt.Sprintf("expected integer literal, got %s", t.Rule)}
	}
	v, err := strconv.Atoi(t.Token.Text)
	if err != nil {
		return 0, &AstError{Msg: fmt.Sprintf("invalid integer %q", t.Token.Text)}
	}
	return v, nil
}
