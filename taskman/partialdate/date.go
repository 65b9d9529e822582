// Package partialdate implements dates with reduced precision. "2024" and
// "2024-03-01" are both valid dates; comparing them only looks at the
// components both of them carry, so "2024-03-01" is equal to "2024".
package partialdate

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Precision is the finest component carried by a Date
type Precision int

const (
	Year Precision = iota
	Month
	Day
	Hour
	Minute
	Second
	Millisecond
)

func (p Precision) String() string {
	switch p {
	case Year:
		return "year"
	case Month:
		return "month"
	case Day:
		return "day"
	case Hour:
		return "hour"
	case Minute:
		return "minute"
	case Second:
		return "second"
	case Millisecond:
		return "millisecond"
	default:
		return "unknown"
	}
}

// Date is an immutable, possibly partial, point in time
type Date struct {
	t         time.Time
	precision Precision
}

type layout struct {
	format    string
	precision Precision
}

// layouts are tried in order; the first one that parses wins
var layouts = []layout{
	{"2006", Year},
	{"2006-01", Month},
	{"2006/01", Month},
	{"2006-01-02", Day},
	{"2006/01/02", Day},
	{"2006-01-02 15", Hour},
	{"2006-01-02T15", Hour},
	{"2006-01-02 15:04", Minute},
	{"2006-01-02T15:04", Minute},
	{"2006-01-02 15:04:05", Second},
	{"2006-01-02T15:04:05", Second},
	{time.RFC3339, Second},
	{"2006-01-02 15:04:05.000", Millisecond},
	{"2006-01-02T15:04:05.000", Millisecond},
	{time.RFC3339Nano, Millisecond},
}

// New builds a Date from a time and a precision. Components finer than the
// precision are dropped.
func New(t time.Time, p Precision) Date {
	return Date{t: truncate(t, p), precision: p}
}

// FromTime builds a millisecond precision Date
func FromTime(t time.Time) Date {
	return New(t, Millisecond)
}

// Parse reads a user-entered date. It fails on anything that is not one of
// the supported layouts, which lets callers test free text for dates.
func Parse(s string) (Date, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Date{}, fmt.Errorf("empty date")
	}
	for _, l := range layouts {
		t, err := time.Parse(l.format, s)
		if err != nil {
			continue
		}
		p := l.precision
		// fractional seconds are accepted after any seconds field
		if p == Second && t.Nanosecond() != 0 {
			p = Millisecond
		}
		return New(t.UTC(), p), nil
	}
	return Date{}, fmt.Errorf("cannot parse %q as a date", s)
}

// MustParse is Parse for literals known to be valid; it panics otherwise
func MustParse(s string) Date {
	d, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return d
}

// Time returns the start of the period covered by the date
func (d Date) Time() time.Time {
	return d.t
}

// Precision returns the finest component carried by the date
func (d Date) Precision() Precision {
	return d.precision
}

// IsZero reports whether d was never set
func (d Date) IsZero() bool {
	return d.t.IsZero()
}

// Compare returns -1, 0 or +1. Both dates are first reduced to the coarser
// of the two precisions.
func (d Date) Compare(other Date) int {
	p := d.precision
	if other.precision < p {
		p = other.precision
	}
	return truncate(d.t, p).Compare(truncate(other.t, p))
}

// CompareTo compares d with a Date, a time.Time or a parsable string
func (d Date) CompareTo(other any) (int, error) {
	switch o := other.(type) {
	case Date:
		return d.Compare(o), nil
	case *Date:
		if o == nil {
			return 0, fmt.Errorf("cannot compare date with nil")
		}
		return d.Compare(*o), nil
	case time.Time:
		return d.Compare(FromTime(o)), nil
	case string:
		od, err := Parse(o)
		if err != nil {
			return 0, err
		}
		return d.Compare(od), nil
	default:
		return 0, fmt.Errorf("cannot compare date with %T", other)
	}
}

// Equal reports whether both dates are equal on their common precision
func (d Date) Equal(other Date) bool {
	return d.Compare(other) == 0
}

// String formats the date with exactly the components it carries
func (d Date) String() string {
	switch d.precision {
	case Year:
		return d.t.Format("2006")
	case Month:
		return d.t.Format("2006-01")
	case Day:
		return d.t.Format("2006-01-02")
	case Hour:
		return d.t.Format("2006-01-02 15")
	case Minute:
		return d.t.Format("2006-01-02 15:04")
	case Second:
		return d.t.Format("2006-01-02 15:04:05")
	default:
		return d.t.Format("2006-01-02 15:04:05.000")
	}
}

// MarshalJSON encodes the date as its string form
func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// UnmarshalJSON decodes a date from its string form
func (d *Date) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := Parse(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Cast converts a raw field value into a Date. Values that cannot be read as
// a date yield nil, which the key schema treats as an absent value.
func Cast(v any) any {
	switch val := v.(type) {
	case Date:
		return val
	case *Date:
		if val == nil {
			return nil
		}
		return *val
	case time.Time:
		return FromTime(val)
	case string:
		d, err := Parse(val)
		if err != nil {
			return nil
		}
		return d
	default:
		return nil
	}
}

func truncate(t time.Time, p Precision) time.Time {
	switch p {
	case Year:
		return time.Date(t.Year(), 1, 1, 0, 0, 0, 0, t.Location())
	case Month:
		return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
	case Day:
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	case Hour:
		return t.Truncate(time.Hour)
	case Minute:
		return t.Truncate(time.Minute)
	case Second:
		return t.Truncate(time.Second)
	default:
		return t.Truncate(time.Millisecond)
	}
}
