package dsl

import (
	"fmt"
	"sync"
	"unicode"
	"unicode/utf8"
)

type TokenKind int

const (
	TokenEOF TokenKind = iota
	TokenEntry
	TokenExit
	TokenAnd
	TokenOr
	TokenCrossAbove
	TokenCrossBelow
	TokenName
	TokenNumber
	TokenOp
	TokenLParen
	TokenRParen
	TokenLBracket
	TokenRBracket
	TokenComma
)

var tokenNames = map[TokenKind]string{
	TokenEOF:        "end of input",
	TokenEntry:      "ENTRY:",
	TokenExit:       "EXIT:",
	TokenAnd:        "AND",
	TokenOr:         "OR",
	TokenCrossAbove: "crosses_above",
	TokenCrossBelow: "crosses_below",
	TokenName:       "name",
	TokenNumber:     "number",
	TokenOp:         "operator",
	TokenLParen:     "'('",
	TokenRParen:     "')'",
	TokenLBracket:   "'['",
	TokenRBracket:   "']'",
	TokenComma:      "','",
}

func (k TokenKind) String() string {
	if s, ok := tokenNames[k]; ok {
		return s
	}
	return fmt.Sprintf("token(%d)", int(k))
}

// Position is a location in rule text. Line and Column are 1-based, Offset is a byte offset.
type Position struct {
	Offset int `json:"offset"`
	Line   int `json:"line"`
	Column int `json:"column"`
}

func (p Position) String() string {
	return fmt.Sprintf("line %d, column %d", p.Line, p.Column)
}

type Token struct {
	Kind TokenKind
	Text string
	Pos  Position
	// Int is set for number tokens written without a fraction or exponent.
	Int bool
}

// keywords is the shared word table. It is built once and never written afterwards.
var keywords = sync.OnceValue(func() map[string]TokenKind {
	return map[string]TokenKind{
		"AND":           TokenAnd,
		"OR":            TokenOr,
		"crosses_above": TokenCrossAbove,
		"crosses_below": TokenCrossBelow,
	}
})

// sectionKeywords are only keywords when immediately followed by ':'.
var sectionKeywords = sync.OnceValue(func() map[string]TokenKind {
	return map[string]TokenKind{
		"ENTRY": TokenEntry,
		"EXIT":  TokenExit,
	}
})

var punctuation = map[rune]TokenKind{
	'(': TokenLParen,
	')': TokenRParen,
	'[': TokenLBracket,
	']': TokenRBracket,
	',': TokenComma,
}

type lexer struct {
	src  string
	off  int
	line int
	col  int
}

// Tokenize splits rule text into tokens, always ending with a TokenEOF.
func Tokenize(src string) ([]Token, error) {
	lx := &lexer{src: src, line: 1, col: 1}
	var tokens []Token
	for {
		tok, err := lx.next()
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, tok)
		if tok.Kind == TokenEOF {
			return tokens, nil
		}
	}
}

func (lx *lexer) pos() Position {
	return Position{Offset: lx.off, Line: lx.line, Column: lx.col}
}

func (lx *lexer) peek() (rune, int) {
	if lx.off >= len(lx.src) {
		return utf8.RuneError, 0
	}
	return utf8.DecodeRuneInString(lx.src[lx.off:])
}

func (lx *lexer) peekAt(n int) byte {
	if lx.off+n >= len(lx.src) {
		return 0
	}
	return lx.src[lx.off+n]
}

func (lx *lexer) advance() rune {
	r, size := lx.peek()
	lx.off += size
	if r == '\n' {
		lx.line++
		lx.col = 1
	} else {
		lx.col++
	}
	return r
}

func (lx *lexer) next() (Token, error) {
	for {
		r, size := lx.peek()
		if size == 0 || !unicode.IsSpace(r) {
			break
		}
		lx.advance()
	}

	start := lx.pos()
	r, size := lx.peek()
	if size == 0 {
		return Token{Kind: TokenEOF, Pos: start}, nil
	}

	switch {
	case r == '_' || isLetter(r):
		return lx.word(start), nil
	case isDigit(r) || (r == '.' && isDigit(rune(lx.peekAt(1)))):
		return lx.number(start), nil
	}

	if kind, ok := punctuation[r]; ok {
		lx.advance()
		return Token{Kind: kind, Text: string(r), Pos: start}, nil
	}

	switch r {
	case '>', '<':
		lx.advance()
		text := string(r)
		if lx.peekAt(0) == '=' {
			lx.advance()
			text += "="
		}
		return Token{Kind: TokenOp, Text: text, Pos: start}, nil
	case '=':
		if lx.peekAt(1) == '=' {
			lx.advance()
			lx.advance()
			return Token{Kind: TokenOp, Text: "==", Pos: start}, nil
		}
	}

	if r == utf8.RuneError && size == 1 {
		return Token{}, &SyntaxError{Pos: start, Token: lx.src[lx.off : lx.off+1], Msg: "invalid UTF-8 in rule text"}
	}
	return Token{}, &SyntaxError{Pos: start, Token: string(r), Msg: "unknown token"}
}

func (lx *lexer) word(start Position) Token {
	for {
		r, size := lx.peek()
		if size == 0 || !(r == '_' || isLetter(r) || isDigit(r)) {
			break
		}
		lx.advance()
	}
	text := lx.src[start.Offset:lx.off]

	if kind, ok := sectionKeywords()[text]; ok && lx.peekAt(0) == ':' {
		lx.advance()
		return Token{Kind: kind, Text: text + ":", Pos: start}
	}
	if kind, ok := keywords()[text]; ok {
		return Token{Kind: kind, Text: text, Pos: start}
	}
	return Token{Kind: TokenName, Text: text, Pos: start}
}

func (lx *lexer) number(start Position) Token {
	isInt := true
	lx.digits()
	if lx.peekAt(0) == '.' {
		isInt = false
		lx.advance()
		lx.digits()
	}
	if c := lx.peekAt(0); c == 'e' || c == 'E' {
		// Only treat it as an exponent when digits follow, otherwise leave it for the next token.
		n := 1
		if s := lx.peekAt(1); s == '+' || s == '-' {
			n = 2
		}
		if isDigit(rune(lx.peekAt(n))) {
			isInt = false
			for i := 0; i < n; i++ {
				lx.advance()
			}
			lx.digits()
		}
	}
	return Token{Kind: TokenNumber, Text: lx.src[start.Offset:lx.off], Pos: start, Int: isInt}
}

func (lx *lexer) digits() {
	for isDigit(rune(lx.peekAt(0))) {
		lx.advance()
	}
}

func isLetter(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}

func isDigit(r rune) bool {
	return r >= '0' && r <= '9'
}
