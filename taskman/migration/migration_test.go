package migration_test

import (
	"context"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/arthur-debert/taskman/internal/validation"
	"github.com/arthur-debert/taskman/taskman/migration"
	"github.com/arthur-debert/taskman/testutil"
	"github.com/arthur-debert/taskman/types"
)

var tasksOnly = migration.Options{DocumentType: types.TypeTask}

func hasMessage(result *migration.Result, level migration.MessageLevel, substr string) bool {
	for _, msg := range result.Messages {
		if msg.Level == level && strings.Contains(msg.Text, substr) {
			return true
		}
	}
	return false
}

func TestRenameField(t *testing.T) {
	ctx := context.Background()
	h, _ := testutil.LoadUniverse(t)

	result, err := migration.Apply(ctx, h, &migration.RenameField{OldName: "description", NewName: "notes"}, tasksOnly)
	if err != nil {
		t.Fatal(err)
	}
	if !result.Success {
		t.Fatalf("expected success, got %+v", result.Messages)
	}
	want := []string{"task-garden", "task-milk", "task-report", "task-review"}
	if diff := cmp.Diff(want, result.ModifiedDocs); diff != "" {
		t.Errorf("modified documents mismatch (-want +got):\n%s", diff)
	}

	doc, err := h.Get(ctx, "task-milk")
	if err != nil {
		t.Fatal(err)
	}
	if _, still := doc["description"]; still || doc.String("notes") != "Two litres, semi-skimmed" {
		t.Errorf("expected description renamed to notes, got %v", doc)
	}
}

func TestRenameFieldConflictsAndReservedNames(t *testing.T) {
	ctx := context.Background()
	h, _ := testutil.LoadUniverse(t)

	result, err := migration.Apply(ctx, h, &migration.RenameField{OldName: "title", NewName: "description"}, tasksOnly)
	if err != nil {
		t.Fatal(err)
	}
	if result.Success || result.Code != migration.CodeValidationError {
		t.Fatalf("expected a validation failure, got %+v", result)
	}
	if !hasMessage(result, migration.LevelError, "already exists in 4 documents") {
		t.Errorf("expected a conflict message, got %+v", result.Messages)
	}

	doc, err := h.Get(ctx, "task-milk")
	if err != nil {
		t.Fatal(err)
	}
	if doc.String("title") != "Buy milk" {
		t.Error("a failed validation must not write anything")
	}

	result, err = migration.Apply(ctx, h, &migration.RenameField{OldName: "type", NewName: "kind"}, migration.Options{})
	if err != nil {
		t.Fatal(err)
	}
	if !hasMessage(result, migration.LevelError, "'type' is reserved") {
		t.Errorf("expected the type field to be protected, got %+v", result.Messages)
	}
}

func TestRemoveFieldDryRun(t *testing.T) {
	ctx := context.Background()
	h, _ := testutil.LoadUniverse(t)

	opts := tasksOnly
	opts.DryRun = true
	result, err := migration.Apply(ctx, h, &migration.RemoveField{FieldName: "stop"}, opts)
	if err != nil {
		t.Fatal(err)
	}
	if result.Stats.ModifiedDocs != 4 || result.Stats.TotalDocs != 5 {
		t.Errorf("expected 4 of 5 documents affected, got %+v", result.Stats)
	}
	if !hasMessage(result, migration.LevelInfo, "DRY RUN") {
		t.Error("expected a dry run notice")
	}

	doc, err := h.Get(ctx, "task-milk")
	if err != nil {
		t.Fatal(err)
	}
	if doc.String("stop") != "2024-03-02" {
		t.Error("a dry run must not write anything")
	}
}

func TestAddFieldSkipsExistingValues(t *testing.T) {
	ctx := context.Background()
	h, _ := testutil.LoadUniverse(t)

	if _, err := h.Put(ctx, types.Document{"_id": "task-flagged", "type": "Task", "title": "Flagged", "priority": 1}); err != nil {
		t.Fatal(err)
	}
	result, err := migration.Apply(ctx, h, &migration.AddField{FieldName: "priority", DefaultValue: 3}, tasksOnly)
	if err != nil {
		t.Fatal(err)
	}
	if result.Stats.ModifiedDocs != 5 || result.Stats.SkippedDocs != 1 {
		t.Errorf("expected 5 added and 1 skipped, got %+v", result.Stats)
	}

	flagged, err := h.Get(ctx, "task-flagged")
	if err != nil {
		t.Fatal(err)
	}
	if flagged["priority"] != 1 {
		t.Errorf("existing value must be kept, got %v", flagged["priority"])
	}

	result, err = migration.Apply(ctx, h, &migration.AddField{FieldName: "_rev", DefaultValue: "1"}, tasksOnly)
	if err != nil {
		t.Fatal(err)
	}
	if result.Code != migration.CodeValidationError {
		t.Errorf("expected reserved fields to be rejected, got %+v", result.Messages)
	}
}

func TestTransformField(t *testing.T) {
	ctx := context.Background()
	h, _ := testutil.LoadUniverse(t)

	if _, err := h.Put(ctx, types.Document{"_id": "task-slash", "type": "Task", "title": "Slash", "start": "2024/04/02"}); err != nil {
		t.Fatal(err)
	}
	if _, err := h.Put(ctx, types.Document{"_id": "task-bad", "type": "Task", "title": "Bad", "start": "someday"}); err != nil {
		t.Fatal(err)
	}

	result, err := migration.Apply(ctx, h, &migration.TransformField{FieldName: "start", TransformerName: "partialDate"}, tasksOnly)
	if err != nil {
		t.Fatal(err)
	}
	if result.Code != migration.CodePartialFailure {
		t.Errorf("expected a partial failure, got %+v", result)
	}
	if diff := cmp.Diff([]string{"task-slash"}, result.ModifiedDocs); diff != "" {
		t.Errorf("only changed values should be written (-want +got):\n%s", diff)
	}

	doc, err := h.Get(ctx, "task-slash")
	if err != nil {
		t.Fatal(err)
	}
	if doc.String("start") != "2024-04-02" {
		t.Errorf("expected canonical date, got %q", doc.String("start"))
	}
	bad, err := h.Get(ctx, "task-bad")
	if err != nil {
		t.Fatal(err)
	}
	if bad.String("start") != "someday" {
		t.Error("values the transformer rejects must be kept")
	}

	result, err = migration.Apply(ctx, h, &migration.TransformField{FieldName: "start", TransformerName: "rot13"}, tasksOnly)
	if err != nil {
		t.Fatal(err)
	}
	if !hasMessage(result, migration.LevelError, "Unknown transformer 'rot13'") {
		t.Errorf("expected an unknown transformer error, got %+v", result.Messages)
	}
}

func TestTransformers(t *testing.T) {
	tests := []struct {
		name  string
		input any
		want  any
	}{
		{"toString", float64(42), "42"},
		{"toString", 2.5, "2.5"},
		{"toNumber", " 7 ", float64(7)},
		{"toNumber", 3, float64(3)},
		{"toBool", "Yes", true},
		{"toBool", "", false},
		{"toList", "home, garden,, shed ", []any{"home", "garden", "shed"}},
		{"toList", nil, []any{}},
		{"trim", "  padded ", "padded"},
		{"trim", []any{" a", "b "}, []any{"a", "b"}},
		{"toLowerCase", "OPEN", "open"},
		{"toUpperCase", "élan", "ÉLAN"},
		{"capitalize", "  élaguer", "Élaguer"},
		{"fold", "Échéance", "echeance"},
		{"partialDate", "2024/03", "2024-03"},
		{"partialDate", "  ", "  "},
		{"toMonth", "2024-03-17T10:30", "2024-03"},
		{"toMonth", "2024", "2024"},
		{"toYear", "2024/03/01", "2024"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := migration.TransformerRegistry[tt.name](tt.input)
			if err != nil {
				t.Fatal(err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestTransformersRejectUnreadableValues(t *testing.T) {
	tests := []struct {
		name  string
		input any
	}{
		{"toBool", "perhaps"},
		{"toNumber", "abc"},
		{"toString", []any{"a"}},
		{"trim", float64(1)},
		{"capitalize", []any{"ok", 2}},
		{"partialDate", 12},
		{"toYear", "someday"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := migration.TransformerRegistry[tt.name](tt.input); err == nil {
				t.Errorf("expected %s to reject %#v", tt.name, tt.input)
			}
		})
	}
}

func TestValidateDocuments(t *testing.T) {
	ctx := context.Background()
	h, _ := testutil.LoadUniverse(t)
	cmd := &migration.ValidateDocuments{DateFields: validation.DateFields}

	result, err := migration.Apply(ctx, h, cmd, migration.Options{})
	if err != nil {
		t.Fatal(err)
	}
	if !result.Success {
		t.Fatalf("expected the fixture to be valid, got %+v", result.Messages)
	}

	if _, err := h.Put(ctx, types.Document{"_id": "task-reversed", "type": "Task", "start": "2024-06", "stop": "2024-01"}); err != nil {
		t.Fatal(err)
	}
	result, err = migration.Apply(ctx, h, cmd, migration.Options{})
	if err != nil {
		t.Fatal(err)
	}
	if result.Success || !hasMessage(result, migration.LevelError, "Document task-reversed") {
		t.Errorf("expected the reversed range to be reported, got %+v", result.Messages)
	}
}
