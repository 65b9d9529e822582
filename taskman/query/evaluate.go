package query

import (
	"context"
	"fmt"

	"github.com/arthur-debert/taskman/taskman/schema"
	"github.com/arthur-debert/taskman/types"
)

// Matches reports whether doc satisfies pred. Keys are resolved through s; a
// nil schema reads every key as a literal field. A nil predicate matches
// everything.
//
// A key the document does not carry never matches. Ordering two present
// values of incompatible types is a query error.
func Matches(ctx context.Context, doc types.Document, pred Predicate, s *schema.KeySchema) (bool, error) {
	switch p := pred.(type) {
	case nil:
		return true, nil
	case *Simple:
		return matchSimple(ctx, doc, p, s)
	case *Complex:
		return matchComplex(ctx, doc, p, s)
	default:
		return false, types.QueryError(fmt.Sprintf("unsupported predicate %T", pred))
	}
}

func matchComplex(ctx context.Context, doc types.Document, c *Complex, s *schema.KeySchema) (bool, error) {
	switch c.Operator {
	case And:
		for _, child := range c.QueryList {
			ok, err := Matches(ctx, doc, child, s)
			if err != nil || !ok {
				return false, err
			}
		}
		return true, nil
	case Or:
		for _, child := range c.QueryList {
			ok, err := Matches(ctx, doc, child, s)
			if err != nil {
				return false, err
			}
			if ok {
				return true, nil
			}
		}
		return false, nil
	default:
		return false, types.QueryError(fmt.Sprintf("unknown logical operator %q", c.Operator))
	}
}

func matchSimple(ctx context.Context, doc types.Document, p *Simple, s *schema.KeySchema) (bool, error) {
	op := p.op()
	if !op.valid() {
		return false, types.QueryError(fmt.Sprintf("unknown operator %q", p.Operator))
	}

	docValue, err := s.Resolve(doc, p.Key)
	if err != nil {
		return false, err
	}
	if schema.IsAbsent(docValue) {
		return false, nil
	}

	// wildcard patterns are matched against the cast form of the pattern, so
	// the "%" markers must survive the cast
	queryValue, err := s.CastValue(p.Key, p.Value)
	if err != nil {
		return false, err
	}
	if schema.IsAbsent(queryValue) {
		return false, nil
	}

	var matcher schema.Matcher
	if op == OpEqual || op == OpNotEqual {
		if m, ok, err := s.Matcher(p.Key); err != nil {
			return false, err
		} else if ok {
			matcher = m
		}
	}

	values := []any{docValue}
	if list, ok := docValue.([]any); ok {
		values = list
	}
	for _, v := range values {
		if schema.IsAbsent(v) {
			continue
		}
		ok, err := compareOne(ctx, op, v, queryValue, matcher)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

func compareOne(ctx context.Context, op Operator, docValue, queryValue any, matcher schema.Matcher) (bool, error) {
	switch op {
	case OpLike:
		return likeMatch(docValue, queryValue), nil

	case OpEqual, OpNotEqual:
		var equal bool
		switch {
		case isPattern(queryValue):
			equal = likeMatch(docValue, queryValue)
		case matcher != nil:
			ok, err := matcher.Equal(ctx, docValue, queryValue)
			if err != nil {
				return false, fmt.Errorf("equality matcher failed: %w", err)
			}
			equal = ok
		default:
			equal = equalValues(docValue, queryValue)
		}
		if op == OpNotEqual {
			return !equal, nil
		}
		return equal, nil

	default:
		c, err := compareValues(docValue, queryValue)
		if err != nil {
			return false, err
		}
		switch op {
		case OpLess:
			return c < 0, nil
		case OpLessEqual:
			return c <= 0, nil
		case OpGreater:
			return c > 0, nil
		default:
			return c >= 0, nil
		}
	}
}
