package schema

import (
	"context"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/arthur-debert/taskman/taskman/partialdate"
	"github.com/arthur-debert/taskman/types"
)

func TestResolveUndeclaredKeyReadsLiteralField(t *testing.T) {
	s := Default(nil)
	doc := types.Document{"project": "Àpollo"}

	got, err := s.Resolve(doc, "project")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "Àpollo" {
		t.Errorf("expected raw value, got %v", got)
	}
}

func TestResolveAppliesLiteralCast(t *testing.T) {
	s := Default(nil)
	got, err := s.Resolve(types.Document{"title": "Réunion Équipe"}, "title")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "reunion equipe" {
		t.Errorf("expected folded title, got %v", got)
	}
}

func TestResolveAppliesNamedCast(t *testing.T) {
	s := Default(nil)
	got, err := s.Resolve(types.Document{"start": "2024-03-01"}, "start")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	d, ok := got.(partialdate.Date)
	if !ok {
		t.Fatalf("expected partialdate.Date, got %T", got)
	}
	if d.Precision() != partialdate.Day {
		t.Errorf("expected day precision, got %s", d.Precision())
	}
}

func TestResolveMissingFieldIsAbsent(t *testing.T) {
	s := Default(nil)
	for _, key := range []string{"start", "title", "translated_state", "unknown"} {
		got, err := s.Resolve(types.Document{}, key)
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", key, err)
		}
		if !IsAbsent(got) {
			t.Errorf("%s: expected Absent, got %v", key, got)
		}
	}
}

func TestResolveFailedCastIsAbsent(t *testing.T) {
	s := Default(nil)
	got, err := s.Resolve(types.Document{"start": "someday"}, "start")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !IsAbsent(got) {
		t.Errorf("expected Absent for unparsable date, got %v", got)
	}
}

func TestResolveIsPure(t *testing.T) {
	s := Default(nil)
	doc := types.Document{"title": "Écrire", "start": "2024-03", "tags": []any{"A", "B"}}
	before := doc.Clone()

	for _, key := range []string{"title", "start", "tags", "translated_state"} {
		first, err := s.Resolve(doc, key)
		if err != nil {
			t.Fatalf("%s: %v", key, err)
		}
		second, err := s.Resolve(doc, key)
		if err != nil {
			t.Fatalf("%s: %v", key, err)
		}
		if d, ok := first.(partialdate.Date); ok {
			if d.Compare(second.(partialdate.Date)) != 0 {
				t.Errorf("%s: repeated resolve differs", key)
			}
			continue
		}
		if diff := cmp.Diff(first, second, cmp.Comparer(func(a, b absent) bool { return true })); diff != "" {
			t.Errorf("%s: repeated resolve differs (-first +second):\n%s", key, diff)
		}
	}
	if diff := cmp.Diff(before, doc); diff != "" {
		t.Errorf("resolve mutated the document (-before +after):\n%s", diff)
	}
}

func TestCastValueSlices(t *testing.T) {
	s := Default(nil)
	got, err := s.CastValue("title", []any{"Été", nil, 3})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	list := got.([]any)
	if list[0] != "ete" || !IsAbsent(list[1]) || list[2] != 3 {
		t.Errorf("unexpected cast slice %v", list)
	}
}

func TestValidate(t *testing.T) {
	if err := Default(nil).Validate(); err != nil {
		t.Fatalf("default schema should validate: %v", err)
	}

	bad := &KeySchema{KeySet: map[string]Key{"start": {CastTo: "nope"}}}
	err := bad.Validate()
	if !types.IsKind(err, types.ErrConfig) {
		t.Fatalf("expected config error, got %v", err)
	}
	if _, err := bad.Resolve(types.Document{"start": "x"}, "start"); err == nil {
		t.Error("expected resolve to fail on unknown cast")
	}

	badMatch := &KeySchema{KeySet: map[string]Key{"state": {EqualMatch: "nope"}}}
	if err := badMatch.Validate(); !types.IsKind(err, types.ErrConfig) {
		t.Fatalf("expected config error, got %v", err)
	}
}

func TestNilSchemaReadsLiteralFields(t *testing.T) {
	var s *KeySchema
	got, err := s.Resolve(types.Document{"title": "Raw"}, "title")
	if err != nil || got != "Raw" {
		t.Errorf("expected raw value from nil schema, got %v, %v", got, err)
	}
	if _, ok, _ := s.Matcher("title"); ok {
		t.Error("nil schema should not declare matchers")
	}
}

func TestTranslatedMatcher(t *testing.T) {
	tr := MapTranslator{"Done": "Terminé", "Open": "Ouvert"}
	s := Default(tr)
	m, ok, err := s.Matcher("translated_state")
	if err != nil || !ok {
		t.Fatalf("expected translated_state matcher, got ok=%v err=%v", ok, err)
	}
	ctx := context.Background()

	tests := []struct {
		stored any
		query  any
		want   bool
	}{
		{"Done", "termine", true},
		{"Done", "TERMINÉ", true},
		{"Done", "Done", false},
		{"Open", "ouvert", true},
		{"Blocked", "blocked", true},
		{Absent, "blocked", false},
	}
	for _, tt := range tests {
		got, err := m.Equal(ctx, tt.stored, tt.query)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != tt.want {
			t.Errorf("Equal(%v, %v) = %v, want %v", tt.stored, tt.query, got, tt.want)
		}
	}
}

func TestTranslatedMatcherHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := TranslatedMatcher(nil).Equal(ctx, "a", "a"); err == nil {
		t.Error("expected cancelled context error")
	}
}

func TestLoadTranslations(t *testing.T) {
	catalog, err := LoadTranslations(strings.NewReader("Done: Terminé\nOpen: Ouvert\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if catalog.Translate("Done") != "Terminé" || catalog.Translate("Other") != "Other" {
		t.Errorf("unexpected catalog %v", catalog)
	}

	empty, err := LoadTranslations(strings.NewReader(""))
	if err != nil {
		t.Fatalf("empty catalog: %v", err)
	}
	if len(empty) != 0 {
		t.Errorf("expected empty catalog, got %v", empty)
	}
}
