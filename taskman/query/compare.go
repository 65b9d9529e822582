package query

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/arthur-debert/taskman/taskman/partialdate"
	"github.com/arthur-debert/taskman/types"
)

func isPattern(v any) bool {
	s, ok := v.(string)
	return ok && strings.Contains(s, Wildcard)
}

// likeMatch matches docValue against an SQL LIKE style pattern where "%"
// stands for any run of characters. The whole value must match.
func likeMatch(docValue, pattern any) bool {
	p, ok := pattern.(string)
	if !ok {
		p = fmt.Sprint(pattern)
	}
	return likeRegexp(p).MatchString(stringOf(docValue))
}

func likeRegexp(pattern string) *regexp.Regexp {
	parts := strings.Split(pattern, Wildcard)
	for i, part := range parts {
		parts[i] = regexp.QuoteMeta(part)
	}
	return regexp.MustCompile("(?s)^" + strings.Join(parts, ".*") + "$")
}

func stringOf(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case fmt.Stringer:
		return val.String()
	default:
		return fmt.Sprint(v)
	}
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

func asDate(v any) (partialdate.Date, bool) {
	switch d := v.(type) {
	case partialdate.Date:
		return d, true
	case *partialdate.Date:
		if d == nil {
			return partialdate.Date{}, false
		}
		return *d, true
	case time.Time:
		return partialdate.FromTime(d), true
	}
	return partialdate.Date{}, false
}

// equalValues is the native equality: numbers compare by value whatever
// their Go type, dates on their common precision, everything else on its
// textual form
func equalValues(a, b any) bool {
	if da, ok := asDate(a); ok {
		c, err := da.CompareTo(b)
		return err == nil && c == 0
	}
	if db, ok := asDate(b); ok {
		c, err := db.CompareTo(a)
		return err == nil && c == 0
	}
	if fa, ok := toFloat(a); ok {
		if fb, ok := numberOf(b); ok {
			return fa == fb
		}
		return false
	}
	if fb, ok := toFloat(b); ok {
		if fa, ok := numberOf(a); ok {
			return fa == fb
		}
		return false
	}
	if sa, ok := a.(string); ok {
		if sb, ok := b.(string); ok {
			return sa == sb
		}
	}
	if ba, ok := a.(bool); ok {
		bb, ok := b.(bool)
		return ok && ba == bb
	}
	return fmt.Sprint(a) == fmt.Sprint(b)
}

// numberOf accepts numbers and numeric strings
func numberOf(v any) (float64, bool) {
	if f, ok := toFloat(v); ok {
		return f, true
	}
	if s, ok := v.(string); ok {
		f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		return f, err == nil
	}
	return 0, false
}

// compareValues orders two present values. Dates, numbers and strings each
// have their own ordering; mixing them is an error.
func compareValues(a, b any) (int, error) {
	if da, ok := asDate(a); ok {
		c, err := da.CompareTo(b)
		if err != nil {
			return 0, incompatible(a, b)
		}
		return c, nil
	}
	if db, ok := asDate(b); ok {
		c, err := db.CompareTo(a)
		if err != nil {
			return 0, incompatible(a, b)
		}
		return -c, nil
	}

	_, aNum := toFloat(a)
	_, bNum := toFloat(b)
	if aNum || bNum {
		fa, okA := numberOf(a)
		fb, okB := numberOf(b)
		if !okA || !okB {
			return 0, incompatible(a, b)
		}
		switch {
		case fa < fb:
			return -1, nil
		case fa > fb:
			return 1, nil
		default:
			return 0, nil
		}
	}

	sa, okA := a.(string)
	sb, okB := b.(string)
	if okA && okB {
		return strings.Compare(sa, sb), nil
	}
	return 0, incompatible(a, b)
}

func incompatible(a, b any) error {
	return types.QueryError(fmt.Sprintf("cannot order %T (%v) against %T (%v)", a, a, b, b))
}
