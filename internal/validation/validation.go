// Package validation checks documents before they are written to a storage
package validation

import (
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/arthur-debert/taskman/taskman/partialdate"
	"github.com/arthur-debert/taskman/types"
)

const header = "Cannot save document"

// DateFields are the task fields holding partial dates
var DateFields = []string{"start", "stop"}

// Document checks field names and values of doc. Fields listed in
// dateFields must hold partial dates when present, and the first two, when
// both set, must not be in reverse order.
func Document(doc types.Document, dateFields ...string) error {
	keys := make([]string, 0, len(doc))
	for key := range doc {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		if key == "" {
			return types.ValidationError(header, "field names cannot be empty")
		}
		if IsReservedFieldName(key) {
			return types.ValidationError(header, fmt.Sprintf("'%s' is a reserved field name", key))
		}
		if key == types.AttachmentsKey {
			continue
		}
		if err := ValidateValue(doc[key], key); err != nil {
			return types.ValidationError(header, err.Error())
		}
	}

	if id, ok := doc[types.IDKey]; ok {
		if _, isString := id.(string); !isString {
			return types.ValidationError(header, fmt.Sprintf("'%s' must be a string, got %T", types.IDKey, id))
		}
	}

	dates := make([]*partialdate.Date, len(dateFields))
	for i, field := range dateFields {
		d, err := dateField(doc, field)
		if err != nil {
			return err
		}
		dates[i] = d
	}
	if len(dates) >= 2 && dates[0] != nil && dates[1] != nil && dates[0].Compare(*dates[1]) > 0 {
		return types.ValidationError(header, fmt.Sprintf("'%s' (%s) is after '%s' (%s)",
			dateFields[0], dates[0], dateFields[1], dates[1]))
	}
	return nil
}

// dateField parses field as a partial date; absent and empty fields yield nil
func dateField(doc types.Document, field string) (*partialdate.Date, error) {
	v, ok := doc[field]
	if !ok || v == nil {
		return nil, nil
	}
	s, ok := v.(string)
	if !ok {
		return nil, types.ValidationError(header, fmt.Sprintf("'%s' must be a date string, got %T", field, v))
	}
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	d, err := partialdate.Parse(s)
	if err != nil {
		return nil, types.ValidationError(header, fmt.Sprintf("'%s' is not a date: %q", field, s))
	}
	return &d, nil
}

// IsReservedFieldName reports whether name belongs to the storage layer.
// Underscore fields are reserved, except the id and the attachment index.
func IsReservedFieldName(name string) bool {
	if name == types.IDKey || name == types.AttachmentsKey {
		return false
	}
	return strings.HasPrefix(name, "_")
}

// ValidateValue ensures a field value can be stored as JSON: nil, strings,
// numbers, booleans, and lists or objects of those
func ValidateValue(value any, field string) error {
	if value == nil {
		return nil
	}

	v := reflect.ValueOf(value)
	switch v.Kind() {
	case reflect.String, reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return nil
	case reflect.Slice, reflect.Array:
		for i := 0; i < v.Len(); i++ {
			if err := ValidateValue(v.Index(i).Interface(), fmt.Sprintf("%s[%d]", field, i)); err != nil {
				return err
			}
		}
		return nil
	case reflect.Map:
		if v.Type().Key().Kind() != reflect.String {
			return fmt.Errorf("field '%s' must have string keys, got %T", field, value)
		}
		iter := v.MapRange()
		for iter.Next() {
			if err := ValidateValue(iter.Value().Interface(), field+"."+iter.Key().String()); err != nil {
				return err
			}
		}
		return nil
	case reflect.Ptr:
		if v.IsNil() {
			return nil
		}
		return ValidateValue(v.Elem().Interface(), field)
	default:
		return fmt.Errorf("field '%s' must be a string, number, boolean, list or object, got %T", field, value)
	}
}
