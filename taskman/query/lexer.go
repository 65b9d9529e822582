package query

import (
	"fmt"
	"strings"
	"unicode"
)

// TokenKind is the type of a lexical token
type TokenKind int

const (
	TokWord TokenKind = iota
	TokString
	TokColon
	TokOperator
	TokAnd
	TokOr
	TokNot
	TokLParen
	TokRParen
	TokEOF
)

func (k TokenKind) String() string {
	switch k {
	case TokWord:
		return "word"
	case TokString:
		return "string"
	case TokColon:
		return "':'"
	case TokOperator:
		return "operator"
	case TokAnd:
		return "AND"
	case TokOr:
		return "OR"
	case TokNot:
		return "NOT"
	case TokLParen:
		return "'('"
	case TokRParen:
		return "')'"
	case TokEOF:
		return "end of query"
	default:
		return "unknown"
	}
}

// Token is one lexical token with its rune offset in the input
type Token struct {
	Kind  TokenKind
	Value string
	Pos   int
}

func (t Token) String() string {
	switch t.Kind {
	case TokWord, TokString, TokOperator:
		return fmt.Sprintf("%s %q", t.Kind, t.Value)
	default:
		return t.Kind.String()
	}
}

// Lexer tokenizes the query grammar: key: [op] value terms combined with
// AND, OR and parentheses
type Lexer struct {
	input []rune
	pos   int
}

// NewLexer creates a lexer for input
func NewLexer(input string) *Lexer {
	return &Lexer{input: []rune(input)}
}

// Lex tokenizes the whole input, ending with a TokEOF token
func Lex(input string) ([]Token, error) {
	l := NewLexer(input)
	var tokens []Token
	for {
		tok, err := l.Next()
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, tok)
		if tok.Kind == TokEOF {
			return tokens, nil
		}
	}
}

// Next returns the next token
func (l *Lexer) Next() (Token, error) {
	for l.pos < len(l.input) && unicode.IsSpace(l.input[l.pos]) {
		l.pos++
	}
	start := l.pos
	if l.pos >= len(l.input) {
		return Token{Kind: TokEOF, Pos: start}, nil
	}

	ch := l.input[l.pos]
	switch ch {
	case '(':
		l.pos++
		return Token{Kind: TokLParen, Pos: start}, nil
	case ')':
		l.pos++
		return Token{Kind: TokRParen, Pos: start}, nil
	case ':':
		l.pos++
		return Token{Kind: TokColon, Pos: start}, nil
	case '"':
		return l.scanString()
	case '=':
		l.pos++
		return Token{Kind: TokOperator, Value: "=", Pos: start}, nil
	case '!', '<', '>':
		l.pos++
		if l.peek() == '=' {
			l.pos++
			return Token{Kind: TokOperator, Value: string(ch) + "=", Pos: start}, nil
		}
		if ch == '!' {
			return Token{}, fmt.Errorf("unexpected character '!' at %d", start)
		}
		return Token{Kind: TokOperator, Value: string(ch), Pos: start}, nil
	}

	return l.scanWord()
}

func (l *Lexer) peek() rune {
	if l.pos < len(l.input) {
		return l.input[l.pos]
	}
	return 0
}

func (l *Lexer) scanString() (Token, error) {
	start := l.pos
	l.pos++ // opening quote
	var sb strings.Builder

	for l.pos < len(l.input) {
		ch := l.input[l.pos]
		if ch == '"' {
			l.pos++
			return Token{Kind: TokString, Value: sb.String(), Pos: start}, nil
		}
		if ch == '\\' && l.pos+1 < len(l.input) {
			l.pos++
			sb.WriteRune(l.input[l.pos])
			l.pos++
			continue
		}
		sb.WriteRune(ch)
		l.pos++
	}

	return Token{}, fmt.Errorf("unterminated string starting at %d", start)
}

func (l *Lexer) scanWord() (Token, error) {
	start := l.pos
	for l.pos < len(l.input) && isWordChar(l.input[l.pos]) {
		l.pos++
	}
	value := string(l.input[start:l.pos])

	switch value {
	case "AND":
		return Token{Kind: TokAnd, Pos: start}, nil
	case "OR":
		return Token{Kind: TokOr, Pos: start}, nil
	case "NOT":
		return Token{Kind: TokNot, Pos: start}, nil
	}
	return Token{Kind: TokWord, Value: value, Pos: start}, nil
}

func isWordChar(ch rune) bool {
	if unicode.IsSpace(ch) {
		return false
	}
	switch ch {
	case '(', ')', ':', '"', '=', '!', '<', '>':
		return false
	}
	return true
}
