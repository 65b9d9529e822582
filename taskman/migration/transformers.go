package migration

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/arthur-debert/taskman/internal/folding"
	"github.com/arthur-debert/taskman/taskman/partialdate"
)

// Transformer rewrites one field value. Values are JSON shaped: strings,
// float64 numbers, booleans, []any and map[string]any.
type Transformer func(value any) (any, error)

// TransformerRegistry maps transformer names to their implementations
var TransformerRegistry = map[string]Transformer{
	"toString":    ToString,
	"toNumber":    ToNumber,
	"toBool":      ToBool,
	"toList":      ToList,
	"trim":        textTransformer(strings.TrimSpace),
	"toLowerCase": textTransformer(cases.Lower(language.Und).String),
	"toUpperCase": textTransformer(cases.Upper(language.Und).String),
	"capitalize":  textTransformer(capitalize),
	"fold":        textTransformer(folding.Fold),
	"partialDate": PartialDate,
	"toMonth":     dateTransformer(partialdate.Month),
	"toYear":      dateTransformer(partialdate.Year),
}

// TransformerNames lists the registered transformers, sorted
func TransformerNames() []string {
	names := make([]string, 0, len(TransformerRegistry))
	for name := range TransformerRegistry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// textTransformer applies fn to a string, or to every string of a list
// (tags, assignees)
func textTransformer(fn func(string) string) Transformer {
	return func(value any) (any, error) {
		switch v := value.(type) {
		case string:
			return fn(v), nil
		case []any:
			out := make([]any, len(v))
			for i, item := range v {
				s, ok := item.(string)
				if !ok {
					return nil, fmt.Errorf("list item %d is %T, not text", i, item)
				}
				out[i] = fn(s)
			}
			return out, nil
		default:
			return nil, fmt.Errorf("cannot read %T as text", value)
		}
	}
}

// capitalize is the normalization applied to project and state names
func capitalize(s string) string {
	return folding.CapitalizeFirst(strings.TrimSpace(s))
}

// ToString renders a scalar as text. Whole numbers lose their decimal part.
func ToString(value any) (any, error) {
	switch v := value.(type) {
	case nil:
		return "", nil
	case string:
		return v, nil
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), nil
	case int:
		return strconv.Itoa(v), nil
	case bool:
		return strconv.FormatBool(v), nil
	default:
		return nil, fmt.Errorf("cannot convert %T to text", value)
	}
}

// ToNumber converts to float64, the only number kind that survives a
// round trip through document storage
func ToNumber(value any) (any, error) {
	switch v := value.(type) {
	case float64:
		return v, nil
	case int:
		return float64(v), nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return nil, fmt.Errorf("cannot convert %q to a number", v)
		}
		return f, nil
	case bool:
		if v {
			return 1.0, nil
		}
		return 0.0, nil
	default:
		return nil, fmt.Errorf("cannot convert %T to a number", value)
	}
}

// ToBool reads yes/no style answers, ignoring case and accents
func ToBool(value any) (any, error) {
	switch v := value.(type) {
	case bool:
		return v, nil
	case float64:
		return v != 0, nil
	case int:
		return v != 0, nil
	case string:
		switch folding.Fold(strings.TrimSpace(v)) {
		case "true", "yes", "1", "on", "done":
			return true, nil
		case "false", "no", "0", "off", "":
			return false, nil
		}
		return nil, fmt.Errorf("cannot convert %q to a boolean", v)
	default:
		return nil, fmt.Errorf("cannot convert %T to a boolean", value)
	}
}

// ToList splits comma separated text into a list, dropping blank entries.
// Lists are kept as they are; a missing value becomes an empty list.
func ToList(value any) (any, error) {
	switch v := value.(type) {
	case nil:
		return []any{}, nil
	case []any:
		return v, nil
	case string:
		out := []any{}
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
		return out, nil
	default:
		return []any{value}, nil
	}
}

func parseDate(value any) (partialdate.Date, error) {
	s, ok := value.(string)
	if !ok {
		return partialdate.Date{}, fmt.Errorf("cannot read %T as a date", value)
	}
	return partialdate.Parse(s)
}

// PartialDate rewrites a date in its canonical form, keeping its precision
// ("2024/03/01" becomes "2024-03-01"). Blank values are left alone.
func PartialDate(value any) (any, error) {
	if s, ok := value.(string); ok && strings.TrimSpace(s) == "" {
		return s, nil
	}
	d, err := parseDate(value)
	if err != nil {
		return nil, err
	}
	return d.String(), nil
}

// dateTransformer coarsens dates to p. Dates already coarser than p are only
// rewritten in canonical form.
func dateTransformer(p partialdate.Precision) Transformer {
	return func(value any) (any, error) {
		d, err := parseDate(value)
		if err != nil {
			return nil, err
		}
		if d.Precision() > p {
			d = partialdate.New(d.Time(), p)
		}
		return d.String(), nil
	}
}
