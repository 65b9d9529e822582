package validation_test

import (
	"strings"
	"testing"
	"time"

	"github.com/arthur-debert/taskman/internal/validation"
	"github.com/arthur-debert/taskman/types"
)

func TestDocument(t *testing.T) {
	title := "pointer"
	tests := []struct {
		name   string
		doc    types.Document
		errMsg string
	}{
		{
			name: "task",
			doc: types.Document{
				"_id": "task-1", "type": "Task", "title": "Buy milk",
				"start": "2024-03", "stop": "2024-03-02", "priority": 2,
				"tags": []any{"shopping", "weekly"},
			},
		},
		{
			name: "attachments index is kept",
			doc:  types.Document{"_attachments": map[string]any{"config": map[string]any{"length": 2}}},
		},
		{
			name: "empty dates are ignored",
			doc:  types.Document{"start": "", "stop": nil},
		},
		{
			name: "nested objects and pointers",
			doc:  types.Document{"meta": map[string]any{"owner": &title, "list": []string{"a"}}},
		},
		{
			name:   "reserved field",
			doc:    types.Document{"_rev": "1-abc"},
			errMsg: "'_rev' is a reserved field name",
		},
		{
			name:   "empty field name",
			doc:    types.Document{"": "x"},
			errMsg: "field names cannot be empty",
		},
		{
			name:   "struct value",
			doc:    types.Document{"created": time.Now()},
			errMsg: "field 'created' must be a string, number, boolean, list or object",
		},
		{
			name:   "nested invalid value",
			doc:    types.Document{"meta": map[string]any{"hook": func() {}}},
			errMsg: "field 'meta.hook'",
		},
		{
			name:   "non string id",
			doc:    types.Document{"_id": 12},
			errMsg: "'_id' must be a string",
		},
		{
			name:   "invalid date",
			doc:    types.Document{"start": "next tuesday"},
			errMsg: `'start' is not a date: "next tuesday"`,
		},
		{
			name:   "non string date",
			doc:    types.Document{"stop": 2024},
			errMsg: "'stop' must be a date string",
		},
		{
			name:   "reversed range",
			doc:    types.Document{"start": "2024-05", "stop": "2024-03-31"},
			errMsg: "'start' (2024-05) is after 'stop' (2024-03-31)",
		},
		{
			name: "overlapping precisions are not reversed",
			doc:  types.Document{"start": "2024-03-15", "stop": "2024-03"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validation.Document(tt.doc, validation.DateFields...)
			if tt.errMsg == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if !types.IsKind(err, types.ErrValidation) {
				t.Fatalf("expected a validation error, got %v", err)
			}
			if !strings.Contains(err.Error(), tt.errMsg) {
				t.Errorf("expected error containing %q, got %q", tt.errMsg, err.Error())
			}
		})
	}
}

func TestDocumentWithoutDateFields(t *testing.T) {
	if err := validation.Document(types.Document{"start": "whenever"}); err != nil {
		t.Errorf("dates are only checked for the given fields, got %v", err)
	}
}

func TestIsReservedFieldName(t *testing.T) {
	for name, want := range map[string]bool{
		"_id":          false,
		"_attachments": false,
		"_rev":         true,
		"_deleted":     true,
		"title":        false,
		"snake_case":   false,
	} {
		if got := validation.IsReservedFieldName(name); got != want {
			t.Errorf("IsReservedFieldName(%q) = %v, want %v", name, got, want)
		}
	}
}
