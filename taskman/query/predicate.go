// Package query implements the predicate tree used to filter documents, the
// textual query grammar, the evaluator and the planner that filters, sorts
// and counts a document set.
package query

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/arthur-debert/taskman/types"
)

// Operator is the comparison of a simple predicate
type Operator string

const (
	OpEqual        Operator = "="
	OpNotEqual     Operator = "!="
	OpLess         Operator = "<"
	OpLessEqual    Operator = "<="
	OpGreater      Operator = ">"
	OpGreaterEqual Operator = ">="
	OpLike         Operator = "like"
)

// Wildcard is the marker that turns an equality into a pattern match
const Wildcard = "%"

func (op Operator) valid() bool {
	switch op {
	case OpEqual, OpNotEqual, OpLess, OpLessEqual, OpGreater, OpGreaterEqual, OpLike:
		return true
	}
	return false
}

func (op Operator) ordering() bool {
	switch op {
	case OpLess, OpLessEqual, OpGreater, OpGreaterEqual:
		return true
	}
	return false
}

// Logical combines the children of a complex predicate
type Logical string

const (
	And Logical = "AND"
	Or  Logical = "OR"
)

// Predicate is a node of a query tree: either *Simple or *Complex
type Predicate interface {
	isPredicate()
	String() string
}

// Simple compares one key of the document with a value
type Simple struct {
	Key      string
	Operator Operator
	Value    any
}

func (*Simple) isPredicate() {}

// op returns the effective operator, "=" when none is set
func (s *Simple) op() Operator {
	if s.Operator == "" {
		return OpEqual
	}
	return s.Operator
}

func (s *Simple) String() string {
	return fmt.Sprintf("%s %s %s", s.Key, s.op(), formatValue(s.Value))
}

// Complex combines child predicates with AND or OR
type Complex struct {
	Operator  Logical
	QueryList []Predicate
}

func (*Complex) isPredicate() {}

func (c *Complex) String() string {
	parts := make([]string, len(c.QueryList))
	for i, child := range c.QueryList {
		parts[i] = child.String()
		if _, ok := child.(*Complex); ok {
			parts[i] = "(" + parts[i] + ")"
		}
	}
	return strings.Join(parts, " "+string(c.Operator)+" ")
}

// Eq builds an equality predicate
func Eq(key string, value any) *Simple {
	return &Simple{Key: key, Operator: OpEqual, Value: value}
}

// Cmp builds a simple predicate with an explicit operator
func Cmp(key string, op Operator, value any) *Simple {
	return &Simple{Key: key, Operator: op, Value: value}
}

// AllOf builds an AND of the given predicates
func AllOf(list ...Predicate) *Complex {
	return &Complex{Operator: And, QueryList: list}
}

// AnyOf builds an OR of the given predicates
func AnyOf(list ...Predicate) *Complex {
	return &Complex{Operator: Or, QueryList: list}
}

func formatValue(v any) string {
	if s, ok := v.(string); ok {
		return fmt.Sprintf("%q", s)
	}
	return fmt.Sprint(v)
}

// wire is the JSON form shared by both node kinds
type wire struct {
	Type      string            `json:"type"`
	Key       string            `json:"key,omitempty"`
	Operator  string            `json:"operator,omitempty"`
	Value     any               `json:"value,omitempty"`
	QueryList []json.RawMessage `json:"query_list,omitempty"`
}

// MarshalJSON encodes the node as {"type":"simple","key":...}
func (s *Simple) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type     string `json:"type"`
		Key      string `json:"key"`
		Operator string `json:"operator,omitempty"`
		Value    any    `json:"value"`
	}{"simple", s.Key, string(s.Operator), s.Value})
}

// MarshalJSON encodes the node as {"type":"complex","operator":...}
func (c *Complex) MarshalJSON() ([]byte, error) {
	list := c.QueryList
	if list == nil {
		list = []Predicate{}
	}
	return json.Marshal(struct {
		Type      string      `json:"type"`
		Operator  string      `json:"operator"`
		QueryList []Predicate `json:"query_list"`
	}{"complex", string(c.Operator), list})
}

// Decode reads a predicate tree from its JSON form
func Decode(data []byte) (Predicate, error) {
	var w wire
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, types.QueryError(fmt.Sprintf("malformed query tree: %v", err))
	}

	switch w.Type {
	case "simple":
		op := Operator(w.Operator)
		if op != "" && !op.valid() {
			return nil, types.QueryError(fmt.Sprintf("unknown operator %q", w.Operator))
		}
		if w.Key == "" {
			return nil, types.QueryError("simple query without key")
		}
		return &Simple{Key: w.Key, Operator: op, Value: w.Value}, nil

	case "complex":
		logical := Logical(strings.ToUpper(w.Operator))
		if logical != And && logical != Or {
			return nil, types.QueryError(fmt.Sprintf("unknown logical operator %q", w.Operator))
		}
		c := &Complex{Operator: logical, QueryList: make([]Predicate, 0, len(w.QueryList))}
		for _, raw := range w.QueryList {
			child, err := Decode(raw)
			if err != nil {
				return nil, err
			}
			c.QueryList = append(c.QueryList, child)
		}
		return c, nil

	default:
		return nil, types.QueryError(fmt.Sprintf("unknown query type %q", w.Type))
	}
}
