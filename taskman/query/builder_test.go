package query

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/arthur-debert/taskman/taskman/partialdate"
	"github.com/arthur-debert/taskman/taskman/schema"
)

func TestIsGrammar(t *testing.T) {
	tests := map[string]bool{
		`(title: "foo")`:                    true,
		`  (type: "Task") AND (a: b)  `:     true,
		`(title: "foo") AND bar: baz`:       false,
		`foo`:                               false,
		`(`:                                 false,
		``:                                  false,
		`()`:                                true,
		`milk (organic)`:                    false,
		`(type: "Task") AND (title: "foo")`: true,
	}
	for input, want := range tests {
		if got := IsGrammar(input); got != want {
			t.Errorf("IsGrammar(%q) = %v, want %v", input, got, want)
		}
	}
}

func TestBuildRoutesGrammarInput(t *testing.T) {
	input := `(type: "Task") AND (title: "foo")`
	if got := GrammarString("Task", input); got != `(type: "Task") AND (`+input+`)` {
		t.Errorf("unexpected grammar string %q", got)
	}

	got, err := Build("Task", input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := AllOf(Eq("type", "Task"), Eq("type", "Task"), Eq("title", "foo"))
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("tree mismatch (-want +got):\n%s", diff)
	}
}

func TestGrammarTypeFilterCoversEveryBranch(t *testing.T) {
	got, err := Build("Task", `(title: "Call plumber") OR (title: "Home")`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := AllOf(Eq("type", "Task"), AnyOf(Eq("title", "Call plumber"), Eq("title", "Home")))
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("tree mismatch (-want +got):\n%s", diff)
	}

	resp, err := NewProcessor(schema.Default(nil)).Execute(context.Background(), taskDocs(), Options{Query: got})
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"t3"}, rowIDs(resp)); diff != "" {
		t.Errorf("the project titled Home must not match (-want +got):\n%s", diff)
	}
}

func TestBuildRoutesFreeTextToSmart(t *testing.T) {
	got, err := Build("Task", "foo")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := AllOf(
		Eq("type", "Task"),
		AnyOf(
			Eq("title", "%foo%"),
			Eq("description", "%foo%"),
			Eq("translated_state", "foo"),
		),
	)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("tree mismatch (-want +got):\n%s", diff)
	}
}

func TestSmartAddsDateRange(t *testing.T) {
	got := Smart("Task", "2024-03")
	c, ok := got.(*Complex)
	if !ok || len(c.QueryList) != 2 {
		t.Fatalf("expected type AND content, got %v", got)
	}
	content := c.QueryList[1].(*Complex)
	if len(content.QueryList) != 4 {
		t.Fatalf("expected 4 alternatives, got %d", len(content.QueryList))
	}
	rng := content.QueryList[3].(*Complex)
	start := rng.QueryList[0].(*Simple)
	stop := rng.QueryList[1].(*Simple)
	if start.Key != "start" || start.Operator != OpLessEqual || stop.Key != "stop" || stop.Operator != OpGreaterEqual {
		t.Errorf("unexpected range %v", rng)
	}
	d, ok := start.Value.(partialdate.Date)
	if !ok || d.Precision() != partialdate.Month {
		t.Errorf("expected month precision date, got %v", start.Value)
	}
}

func TestSmartEmptyInputFiltersOnType(t *testing.T) {
	for _, input := range []string{"", "   "} {
		if diff := cmp.Diff(Eq("type", "Task"), Smart("Task", input)); diff != "" {
			t.Errorf("%q: tree mismatch (-want +got):\n%s", input, diff)
		}
	}
	got, err := Grammar("Task", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if diff := cmp.Diff(Eq("type", "Task"), got); diff != "" {
		t.Errorf("tree mismatch (-want +got):\n%s", diff)
	}
}

func TestPredicateJSONShape(t *testing.T) {
	tree := AllOf(Eq("type", "Task"), AnyOf(Cmp("start", OpLessEqual, "2024")))
	data, err := json.Marshal(tree)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	want := `{"type":"complex","operator":"AND","query_list":[` +
		`{"type":"simple","key":"type","operator":"=","value":"Task"},` +
		`{"type":"complex","operator":"OR","query_list":[{"type":"simple","key":"start","operator":"<=","value":"2024"}]}]}`
	if string(data) != want {
		t.Errorf("unexpected JSON\n got: %s\nwant: %s", data, want)
	}

	decoded, err := Decode(data)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if diff := cmp.Diff(Predicate(tree), decoded); diff != "" {
		t.Errorf("decoded tree mismatch (-want +got):\n%s", diff)
	}
}

func TestDecodeRejectsUnknownNodes(t *testing.T) {
	inputs := []string{
		`{"type":"weird"}`,
		`{"type":"simple","key":"a","operator":"~","value":1}`,
		`{"type":"simple","value":1}`,
		`{"type":"complex","operator":"XOR","query_list":[]}`,
		`not json`,
	}
	for _, input := range inputs {
		if _, err := Decode([]byte(input)); err == nil {
			t.Errorf("expected error for %s", input)
		}
	}
}

func TestDecodeOperatorDefaultsToEquality(t *testing.T) {
	got, err := Decode([]byte(`{"type":"simple","key":"title","value":"%milk%"}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	s := got.(*Simple)
	if s.op() != OpEqual {
		t.Errorf("expected default operator '=', got %q", s.op())
	}
}
