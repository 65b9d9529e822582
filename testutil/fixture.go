// Package testutil provides the document fixture and assertions shared by
// taskman tests.
package testutil

import (
	"context"
	_ "embed"
	"encoding/json"
	"testing"

	"github.com/arthur-debert/taskman/taskman/schema"
	"github.com/arthur-debert/taskman/taskman/storage"
	"github.com/arthur-debert/taskman/taskman/storage/memory"
	"github.com/arthur-debert/taskman/types"
)

//go:embed testdata/universe.json
var universeJSON []byte

// French is the translation catalog used by fixture handles
var French = schema.MapTranslator{
	"Open": "Ouvert",
	"Done": "Terminé",
}

// UniverseData provides typed access to the fixture documents
type UniverseData struct {
	// Projects and states
	Household types.Document // "project-household"
	Work      types.Document // "project-work"
	Open      types.Document // "state-open"
	Done      types.Document // "state-done"

	// Tasks
	BuyMilk     types.Document // Household, Open, March 2024
	WriteReport types.Document // Work, Done, January to February 2024
	Garden      types.Document // Household, Open, accented title, month precision dates
	CodeReview  types.Document // Work, Open, end of 2023
	Someday     types.Document // Work, Open, no dates

	// Not a task, shares words with BuyMilk
	RecipesPage types.Document

	// All documents by id, in fixture order
	ByID  map[string]types.Document
	Order []string
}

type fixtureData struct {
	Documents []types.Document `json:"documents"`
}

// Universe parses the fixture documents
func Universe(t testing.TB) *UniverseData {
	t.Helper()

	var fixture fixtureData
	if err := json.Unmarshal(universeJSON, &fixture); err != nil {
		t.Fatalf("failed to parse fixture: %v", err)
	}

	universe := &UniverseData{ByID: make(map[string]types.Document)}
	for _, doc := range fixture.Documents {
		universe.ByID[doc.ID()] = doc
		universe.Order = append(universe.Order, doc.ID())

		switch doc.ID() {
		case "project-household":
			universe.Household = doc
		case "project-work":
			universe.Work = doc
		case "state-open":
			universe.Open = doc
		case "state-done":
			universe.Done = doc
		case "task-milk":
			universe.BuyMilk = doc
		case "task-report":
			universe.WriteReport = doc
		case "task-garden":
			universe.Garden = doc
		case "task-review":
			universe.CodeReview = doc
		case "task-someday":
			universe.Someday = doc
		case "page-recipes":
			universe.RecipesPage = doc
		}
	}
	return universe
}

// Populate writes every fixture document to b
func Populate(t testing.TB, b storage.Backend) *UniverseData {
	t.Helper()

	universe := Universe(t)
	for _, id := range universe.Order {
		if _, err := b.Put(context.Background(), universe.ByID[id]); err != nil {
			t.Fatalf("failed to store fixture document %s: %v", id, err)
		}
	}
	return universe
}

// LoadUniverse returns a handle on an in-memory backend holding the
// fixture, with the default key schema and the French catalog
func LoadUniverse(t testing.TB) (*storage.Handle, *UniverseData) {
	t.Helper()

	b := memory.New()
	universe := Populate(t, b)
	h := storage.NewHandle(b, schema.Default(French), storage.WithName("fixture"))
	t.Cleanup(func() { _ = h.Close() })
	return h, universe
}

// TasksOf returns the ids of the fixture tasks
func (u *UniverseData) TasksOf() []string {
	var ids []string
	for _, id := range u.Order {
		if u.ByID[id].Type() == types.TypeTask {
			ids = append(ids, id)
		}
	}
	return ids
}

// StaticConnector always returns the same handle
type StaticConnector struct {
	Handle *storage.Handle
	Err    error
}

// Connect returns the handle or the configured error
func (c StaticConnector) Connect(context.Context) (*storage.Handle, error) {
	if c.Err != nil {
		return nil, c.Err
	}
	return c.Handle, nil
}
