package query

import (
	"fmt"

	"github.com/arthur-debert/taskman/types"
)

// Parse reads a query written in the textual grammar:
//
//	(type: "Task") AND (title: "%milk%" OR start: <= "2024")
//
// Terms are key: [operator] value; the operator defaults to "=". Adjacent
// terms without an explicit operator are combined with AND. Keywords are
// upper case.
func Parse(input string) (Predicate, error) {
	tokens, err := Lex(input)
	if err != nil {
		return nil, types.QueryError(err.Error())
	}

	p := &parser{tokens: tokens}
	pred, err := p.parseOr()
	if err != nil {
		return nil, types.QueryError(err.Error())
	}
	if !p.match(TokEOF) {
		return nil, types.QueryError(fmt.Sprintf("unexpected %v at %d", p.current(), p.current().Pos))
	}
	return pred, nil
}

type parser struct {
	tokens []Token
	pos    int
}

func (p *parser) parseOr() (Predicate, error) {
	first, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	list := []Predicate{first}

	for p.match(TokOr) {
		p.advance()
		next, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		list = append(list, next)
	}
	return combine(Or, list), nil
}

func (p *parser) parseAnd() (Predicate, error) {
	first, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	list := []Predicate{first}

	for {
		if p.match(TokAnd) {
			p.advance()
		} else if !p.startsTerm() {
			break
		}
		next, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		list = append(list, next)
	}
	return combine(And, list), nil
}

func (p *parser) parseUnary() (Predicate, error) {
	if p.match(TokNot) {
		return nil, fmt.Errorf("NOT is not supported (at %d)", p.current().Pos)
	}
	if p.match(TokLParen) {
		p.advance()
		inner, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if !p.match(TokRParen) {
			return nil, fmt.Errorf("expected ')', got %v", p.current())
		}
		p.advance()
		return inner, nil
	}
	return p.parseTerm()
}

func (p *parser) parseTerm() (Predicate, error) {
	keyTok := p.current()
	switch keyTok.Kind {
	case TokWord, TokString:
	case TokEOF:
		return nil, fmt.Errorf("unexpected end of query")
	default:
		return nil, fmt.Errorf("expected key, got %v", keyTok)
	}
	p.advance()

	if !p.match(TokColon) {
		return nil, fmt.Errorf("expected ':' after key %q", keyTok.Value)
	}
	p.advance()

	op := OpEqual
	if p.match(TokOperator) {
		op = Operator(p.current().Value)
		p.advance()
	}

	valTok := p.current()
	if valTok.Kind != TokWord && valTok.Kind != TokString {
		return nil, fmt.Errorf("expected value for key %q, got %v", keyTok.Value, valTok)
	}
	p.advance()

	return &Simple{Key: keyTok.Value, Operator: op, Value: valTok.Value}, nil
}

// startsTerm reports whether the current token can begin an implicitly
// AND-ed operand
func (p *parser) startsTerm() bool {
	switch p.current().Kind {
	case TokWord, TokString, TokLParen, TokNot:
		return true
	}
	return false
}

func (p *parser) current() Token {
	if p.pos < len(p.tokens) {
		return p.tokens[p.pos]
	}
	return Token{Kind: TokEOF}
}

func (p *parser) match(kind TokenKind) bool {
	return p.current().Kind == kind
}

func (p *parser) advance() {
	if p.pos < len(p.tokens) {
		p.pos++
	}
}

// combine flattens operands of the same operator into one node
func combine(op Logical, list []Predicate) Predicate {
	if len(list) == 1 {
		return list[0]
	}
	flat := make([]Predicate, 0, len(list))
	for _, item := range list {
		if c, ok := item.(*Complex); ok && c.Operator == op {
			flat = append(flat, c.QueryList...)
			continue
		}
		flat = append(flat, item)
	}
	return &Complex{Operator: op, QueryList: flat}
}
