package formats

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/arthur-debert/taskman/types"
)

var task = types.Document{
	"_id":         "task-milk",
	"type":        "Task",
	"title":       "Buy milk",
	"description": "Two litres,\nsemi-skimmed",
	"project":     "Household",
	"start":       "2024-03-01",
	"done":        false,
}

func TestRoundTrip(t *testing.T) {
	for _, name := range []string{"plaintext", "markdown"} {
		t.Run(name, func(t *testing.T) {
			f, err := Get(name)
			if err != nil {
				t.Fatal(err)
			}
			got, err := f.Parse(f.Render(task))
			if err != nil {
				t.Fatal(err)
			}
			if diff := cmp.Diff(task, got); diff != "" {
				t.Errorf("round trip mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestPlainTextLayout(t *testing.T) {
	got := PlainText.Render(types.Document{"title": "Buy milk", "description": "Today", "state": "Open", "project": "Household"})
	want := "project: Household\nstate: Open\n---\n\nBuy milk\n\nToday"
	if got != want {
		t.Errorf("unexpected rendering:\n%s", got)
	}
}

func TestMarkdownLayout(t *testing.T) {
	got := Markdown.Render(types.Document{"title": "Buy milk", "description": "Today", "state": "Open"})
	want := "---\nstate: Open\n---\n\n# Buy milk\n\nToday"
	if got != want {
		t.Errorf("unexpected rendering:\n%s", got)
	}
}

func TestDeserializeWithoutMetadata(t *testing.T) {
	title, content, metadata, err := PlainText.Deserialize("Title\n\nBody text")
	if err != nil {
		t.Fatal(err)
	}
	if title != "Title" || content != "Body text" || metadata != nil {
		t.Errorf("unexpected result %q %q %v", title, content, metadata)
	}

	title, content, _, err = Markdown.Deserialize("Just some notes")
	if err != nil {
		t.Fatal(err)
	}
	if title != "" || content != "Just some notes" {
		t.Errorf("unexpected result %q %q", title, content)
	}
}

func TestMarkdownFrontMatterDates(t *testing.T) {
	_, _, metadata, err := Markdown.Deserialize("---\nstart: 2024-03-01\n---\n\n# Task\n")
	if err != nil {
		t.Fatal(err)
	}
	if metadata["start"] != "2024-03-01" {
		t.Errorf("expected the date as text, got %#v", metadata["start"])
	}
}

func TestParseErrors(t *testing.T) {
	for _, f := range []*DocumentFormat{PlainText, Markdown} {
		if _, err := f.Parse("   \n"); !types.IsKind(err, types.ErrValidation) {
			t.Errorf("%s: expected validation error, got %v", f.Name, err)
		}
	}
	if _, err := Markdown.Parse("---\nstate: Open\n"); err == nil || !strings.Contains(err.Error(), "not closed") {
		t.Errorf("expected unclosed front matter error, got %v", err)
	}
}

func TestRegistry(t *testing.T) {
	if diff := cmp.Diff([]string{"markdown", "plaintext"}, List()); diff != "" {
		t.Errorf("formats mismatch (-want +got):\n%s", diff)
	}
	if _, err := Get("html"); !types.IsKind(err, types.ErrConfig) {
		t.Errorf("expected config error, got %v", err)
	}
	if f, ok := ForExtension(".md"); !ok || f != Markdown {
		t.Errorf("expected markdown for .md")
	}
	if err := Register(&DocumentFormat{Name: "Bad Name"}); err == nil {
		t.Error("expected invalid name error")
	}
	if err := Register(&DocumentFormat{Name: "plaintext"}); err == nil {
		t.Error("expected duplicate registration error")
	}
}
