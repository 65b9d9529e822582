package query

import (
	"context"
	"errors"
	"testing"

	"github.com/arthur-debert/taskman/taskman/schema"
	"github.com/arthur-debert/taskman/types"
)

func mustMatch(t *testing.T, doc types.Document, pred Predicate, s *schema.KeySchema) bool {
	t.Helper()
	ok, err := Matches(context.Background(), doc, pred, s)
	if err != nil {
		t.Fatalf("Matches(%v) failed: %v", pred, err)
	}
	return ok
}

func TestMatchesEquality(t *testing.T) {
	s := schema.Default(nil)
	doc := types.Document{"type": "Task", "title": "Réunion d'équipe", "priority": 3.0, "done": true}

	tests := []struct {
		pred Predicate
		want bool
	}{
		{Eq("type", "Task"), true},
		{Eq("type", "task"), false},
		{Eq("title", "REUNION D'EQUIPE"), true},
		{Eq("priority", 3), true},
		{Eq("priority", "3"), true},
		{Eq("priority", 4), false},
		{Eq("done", true), true},
		{Cmp("type", OpNotEqual, "Project"), true},
		{Cmp("type", OpNotEqual, "Task"), false},
	}
	for _, tt := range tests {
		if got := mustMatch(t, doc, tt.pred, s); got != tt.want {
			t.Errorf("%v = %v, want %v", tt.pred, got, tt.want)
		}
	}
}

func TestMatchesWildcard(t *testing.T) {
	s := schema.Default(nil)
	doc := types.Document{"title": "Buy Milk", "project": "Home"}

	tests := []struct {
		pred Predicate
		want bool
	}{
		{Eq("title", "%milk%"), true},
		{Eq("title", "%MÏLK"), true},
		{Eq("title", "buy%"), true},
		{Eq("title", "milk%"), false},
		{Eq("title", "%bread%"), false},
		{Eq("project", "%om%"), true},
		// project has no cast, so folding does not apply
		{Eq("project", "%OM%"), false},
		{Cmp("title", OpLike, "%uy m%"), true},
		{Cmp("title", OpLike, "buy milk"), true},
		{Eq("title", "b.y%"), false},
	}
	for _, tt := range tests {
		if got := mustMatch(t, doc, tt.pred, s); got != tt.want {
			t.Errorf("%v = %v, want %v", tt.pred, got, tt.want)
		}
	}
}

func TestMatchesOrdering(t *testing.T) {
	s := schema.Default(nil)
	doc := types.Document{"priority": 5, "name": "beta", "start": "2024-03-01"}

	tests := []struct {
		pred Predicate
		want bool
	}{
		{Cmp("priority", OpGreater, 3), true},
		{Cmp("priority", OpLess, "10"), true},
		{Cmp("priority", OpLessEqual, 5.0), true},
		{Cmp("priority", OpGreaterEqual, 6), false},
		{Cmp("name", OpLess, "gamma"), true},
		{Cmp("name", OpGreater, "gamma"), false},
		{Cmp("start", OpGreater, "2024-02"), true},
		{Cmp("start", OpLess, "2024-03-02"), true},
		{Cmp("start", OpGreaterEqual, "2024"), true},
	}
	for _, tt := range tests {
		if got := mustMatch(t, doc, tt.pred, s); got != tt.want {
			t.Errorf("%v = %v, want %v", tt.pred, got, tt.want)
		}
	}
}

func TestMatchesIncompatibleOrderingIsError(t *testing.T) {
	doc := types.Document{"priority": 5, "flag": true}
	for _, pred := range []Predicate{
		Cmp("priority", OpGreater, "high"),
		Cmp("flag", OpLess, "x"),
	} {
		_, err := Matches(context.Background(), doc, pred, nil)
		if !types.IsKind(err, types.ErrQuery) {
			t.Errorf("%v: expected query error, got %v", pred, err)
		}
	}
}

func TestMatchesAbsentFieldNeverMatches(t *testing.T) {
	s := schema.Default(nil)
	doc := types.Document{"type": "Task"}

	for _, key := range []string{"start", "stop", "title", "priority", "translated_state"} {
		for _, op := range []Operator{OpEqual, OpNotEqual, OpLess, OpLessEqual, OpGreater, OpGreaterEqual, OpLike} {
			ok, err := Matches(context.Background(), doc, Cmp(key, op, "2024"), s)
			if err != nil {
				t.Errorf("%s %s: unexpected error %v", key, op, err)
			}
			if ok {
				t.Errorf("%s %s: absent field matched", key, op)
			}
		}
	}
}

func TestMatchesUnparsableDateIsAbsent(t *testing.T) {
	s := schema.Default(nil)
	doc := types.Document{"start": "someday"}
	if mustMatch(t, doc, Cmp("start", OpLessEqual, "2024"), s) {
		t.Error("unparsable date should not match")
	}
}

func TestAndOrIdentity(t *testing.T) {
	s := schema.Default(nil)
	docs := []types.Document{
		{"type": "Task", "title": "Buy milk"},
		{"type": "Project"},
		{},
	}
	preds := []Predicate{
		Eq("type", "Task"),
		Eq("title", "%milk%"),
		Cmp("start", OpLess, "2024"),
		AnyOf(Eq("type", "Project"), Eq("type", "Task")),
	}

	for _, doc := range docs {
		for _, p := range preds {
			plain := mustMatch(t, doc, p, s)
			and := mustMatch(t, doc, AllOf(p), s)
			or := mustMatch(t, doc, AnyOf(p), s)
			if plain != and || plain != or {
				t.Errorf("doc %v, %v: plain=%v and=%v or=%v", doc, p, plain, and, or)
			}
		}
	}
}

func TestEmptyComplex(t *testing.T) {
	doc := types.Document{"type": "Task"}
	if !mustMatch(t, doc, AllOf(), nil) {
		t.Error("empty AND should be true")
	}
	if mustMatch(t, doc, AnyOf(), nil) {
		t.Error("empty OR should be false")
	}
	if !mustMatch(t, doc, nil, nil) {
		t.Error("nil predicate should match")
	}
}

func TestShortCircuit(t *testing.T) {
	calls := 0
	s := &schema.KeySchema{
		MatchLookup: map[string]schema.Matcher{
			"count": schema.MatcherFunc(func(ctx context.Context, a, b any) (bool, error) {
				calls++
				return true, nil
			}),
		},
		KeySet: map[string]schema.Key{"k": {EqualMatch: "count"}},
	}
	doc := types.Document{"type": "Task", "k": "v"}

	mustMatch(t, doc, AllOf(Eq("type", "Project"), Eq("k", "v")), s)
	mustMatch(t, doc, AnyOf(Eq("type", "Task"), Eq("k", "v")), s)
	if calls != 0 {
		t.Errorf("expected short-circuit, matcher called %d times", calls)
	}

	mustMatch(t, doc, AllOf(Eq("type", "Task"), Eq("k", "v")), s)
	if calls != 1 {
		t.Errorf("expected matcher to run once, got %d", calls)
	}
}

func TestMatcherErrorsPropagate(t *testing.T) {
	boom := errors.New("lookup failed")
	s := &schema.KeySchema{
		MatchLookup: map[string]schema.Matcher{
			"fail": schema.MatcherFunc(func(ctx context.Context, a, b any) (bool, error) {
				return false, boom
			}),
		},
		KeySet: map[string]schema.Key{"state": {EqualMatch: "fail"}},
	}
	_, err := Matches(context.Background(), types.Document{"state": "x"}, Eq("state", "x"), s)
	if !errors.Is(err, boom) {
		t.Errorf("expected matcher error, got %v", err)
	}
}

func TestTranslatedStateMatch(t *testing.T) {
	s := schema.Default(schema.MapTranslator{"Done": "Terminé"})
	doc := types.Document{"state": "Done"}

	if !mustMatch(t, doc, Eq("translated_state", "termine"), s) {
		t.Error("expected translated state to match")
	}
	if mustMatch(t, doc, Eq("translated_state", "Done"), s) {
		t.Error("untranslated value should not match")
	}
	if !mustMatch(t, doc, Cmp("translated_state", OpNotEqual, "Ouvert"), s) {
		t.Error("expected != to negate the matcher")
	}
}

func TestArrayFieldsMatchAnyElement(t *testing.T) {
	doc := types.Document{"tags": []any{"home", "urgent"}, "scores": []any{1, 8}}

	if !mustMatch(t, doc, Eq("tags", "urgent"), nil) {
		t.Error("expected element match")
	}
	if mustMatch(t, doc, Eq("tags", "work"), nil) {
		t.Error("unexpected element match")
	}
	if !mustMatch(t, doc, Cmp("scores", OpGreater, 5), nil) {
		t.Error("expected ordering to match one element")
	}
}

func TestPartialDateContainment(t *testing.T) {
	s := schema.Default(nil)
	pred := AllOf(
		Cmp("start", OpLessEqual, "2024"),
		Cmp("stop", OpGreaterEqual, "2024"),
	)

	inside := types.Document{"start": "2024-03-01", "stop": "2024-08-01"}
	if !mustMatch(t, inside, pred, s) {
		t.Error("expected a 2024 range to match year 2024")
	}
	before := types.Document{"start": "2023-01-01", "stop": "2023-12-31"}
	if mustMatch(t, before, pred, s) {
		t.Error("a range ending in 2023 should not match year 2024")
	}
}

func TestMatchesHonoursCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s := schema.Default(nil)
	_, err := Matches(ctx, types.Document{"state": "Open"}, Eq("translated_state", "open"), s)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context error, got %v", err)
	}
}
