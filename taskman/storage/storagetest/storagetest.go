// Package storagetest holds the behaviour every storage.Backend must share.
// Backend packages run it from their own tests.
package storagetest

import (
	"context"
	"sort"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/arthur-debert/taskman/taskman/storage"
	"github.com/arthur-debert/taskman/types"
)

// Factory returns a fresh, empty backend. It is called once per subtest.
type Factory func(t *testing.T) storage.Backend

// Run exercises the backend contract against backends built by newBackend
func Run(t *testing.T, newBackend Factory) {
	tests := []struct {
		name string
		fn   func(t *testing.T, b storage.Backend)
	}{
		{"PostAssignsID", testPostAssignsID},
		{"PostKeepsGivenID", testPostKeepsGivenID},
		{"PostConflict", testPostConflict},
		{"PutRequiresID", testPutRequiresID},
		{"PutReplaces", testPutReplaces},
		{"GetReturnsCopy", testGetReturnsCopy},
		{"NotFound", testNotFound},
		{"List", testList},
		{"Attachments", testAttachments},
		{"PutKeepsAttachments", testPutKeepsAttachments},
		{"RemoveDropsAttachments", testRemoveDropsAttachments},
		{"ListType", testListType},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := newBackend(t)
			t.Cleanup(func() { _ = b.Close() })
			tt.fn(t, b)
		})
	}
}

func post(t *testing.T, b storage.Backend, doc types.Document) string {
	t.Helper()
	id, err := b.Post(context.Background(), doc)
	if err != nil {
		t.Fatalf("post failed: %v", err)
	}
	return id
}

func put(t *testing.T, b storage.Backend, doc types.Document) {
	t.Helper()
	if _, err := b.Put(context.Background(), doc); err != nil {
		t.Fatalf("put failed: %v", err)
	}
}

func get(t *testing.T, b storage.Backend, id string) types.Document {
	t.Helper()
	doc, err := b.Get(context.Background(), id)
	if err != nil {
		t.Fatalf("get %s failed: %v", id, err)
	}
	return doc
}

func listIDs(t *testing.T, b storage.Backend) []string {
	t.Helper()
	docs, err := b.List(context.Background())
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	return ids(docs)
}

func attachment(t *testing.T, b storage.Backend, id, name string) []byte {
	t.Helper()
	data, err := b.GetAttachment(context.Background(), id, name)
	if err != nil {
		t.Fatalf("get attachment %s/%s failed: %v", id, name, err)
	}
	return data
}

func testPostAssignsID(t *testing.T, b storage.Backend) {
	id := post(t, b, types.Document{"type": "Task", "title": "Buy milk"})
	if id == "" {
		t.Fatal("expected an assigned id")
	}
	doc := get(t, b, id)
	if doc.ID() != id || doc.String("title") != "Buy milk" {
		t.Errorf("unexpected document %v", doc)
	}
}

func testPostKeepsGivenID(t *testing.T, b storage.Backend) {
	id := post(t, b, types.Document{"_id": "fixed", "type": "Task"})
	if id != "fixed" {
		t.Errorf("expected id fixed, got %q", id)
	}
}

func testPostConflict(t *testing.T, b storage.Backend) {
	ctx := context.Background()
	post(t, b, types.Document{"_id": "dup"})
	_, err := b.Post(ctx, types.Document{"_id": "dup"})
	if !types.IsKind(err, types.ErrValidation) {
		t.Errorf("expected validation error on duplicate post, got %v", err)
	}
}

func testPutRequiresID(t *testing.T, b storage.Backend) {
	_, err := b.Put(context.Background(), types.Document{"title": "no id"})
	if !types.IsKind(err, types.ErrValidation) {
		t.Errorf("expected validation error, got %v", err)
	}
}

func testPutReplaces(t *testing.T, b storage.Backend) {
	put(t, b, types.Document{"_id": "a", "title": "first", "state": "Open"})
	put(t, b, types.Document{"_id": "a", "title": "second"})

	doc := get(t, b, "a")
	want := types.Document{"_id": "a", "title": "second"}
	if diff := cmp.Diff(want, doc); diff != "" {
		t.Errorf("document mismatch (-want +got):\n%s", diff)
	}
}

func testGetReturnsCopy(t *testing.T, b storage.Backend) {
	put(t, b, types.Document{"_id": "a", "title": "original"})

	doc := get(t, b, "a")
	doc["title"] = "changed"

	again := get(t, b, "a")
	if again.String("title") != "original" {
		t.Error("mutating a returned document changed the stored one")
	}
}

func testNotFound(t *testing.T, b storage.Backend) {
	ctx := context.Background()
	if _, err := b.Get(ctx, "missing"); !types.IsNotFound(err) {
		t.Errorf("Get: expected not found, got %v", err)
	}
	if err := b.Remove(ctx, "missing"); !types.IsNotFound(err) {
		t.Errorf("Remove: expected not found, got %v", err)
	}
	if _, err := b.GetAttachment(ctx, "missing", "config"); !types.IsNotFound(err) {
		t.Errorf("GetAttachment: expected not found, got %v", err)
	}
	if err := b.PutAttachment(ctx, "missing", "config", "text/plain", []byte("x")); !types.IsNotFound(err) {
		t.Errorf("PutAttachment: expected not found, got %v", err)
	}
}

func testList(t *testing.T, b storage.Backend) {
	ctx := context.Background()
	for _, id := range []string{"c", "a", "b"} {
		put(t, b, types.Document{"_id": id, "type": "Task"})
	}
	post(t, b, types.Document{"_id": "d", "type": "Project"})
	if err := b.Remove(ctx, "a"); err != nil {
		t.Fatalf("remove failed: %v", err)
	}

	first := listIDs(t, b)
	second := listIDs(t, b)
	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("listing order is not stable (-first +second):\n%s", diff)
	}

	sorted := append([]string(nil), first...)
	sort.Strings(sorted)
	if diff := cmp.Diff([]string{"b", "c", "d"}, sorted); diff != "" {
		t.Errorf("listing mismatch (-want +got):\n%s", diff)
	}
}

func testAttachments(t *testing.T, b storage.Backend) {
	ctx := context.Background()
	put(t, b, types.Document{"_id": "cfg", "type": "Storage Configuration"})

	payload := []byte(`{"storage_type":"local"}`)
	if err := b.PutAttachment(ctx, "cfg", "config", "application/json", payload); err != nil {
		t.Fatalf("put attachment failed: %v", err)
	}

	data := attachment(t, b, "cfg", "config")
	if string(data) != string(payload) {
		t.Errorf("attachment mismatch: %q", data)
	}

	doc := get(t, b, "cfg")
	want := map[string]types.AttachmentInfo{
		"config": storage.AttachmentInfoFor("application/json", payload),
	}
	if diff := cmp.Diff(want, doc.Attachments()); diff != "" {
		t.Errorf("attachment metadata mismatch (-want +got):\n%s", diff)
	}

	if _, err := b.GetAttachment(ctx, "cfg", "other"); !types.IsNotFound(err) {
		t.Errorf("expected missing attachment, got %v", err)
	}

	if err := b.RemoveAttachment(ctx, "cfg", "config"); err != nil {
		t.Fatalf("remove attachment failed: %v", err)
	}
	if _, err := b.GetAttachment(ctx, "cfg", "config"); !types.IsNotFound(err) {
		t.Errorf("expected removed attachment to be gone, got %v", err)
	}
	if err := b.RemoveAttachment(ctx, "cfg", "config"); !types.IsNotFound(err) {
		t.Errorf("expected not found on second removal, got %v", err)
	}
	doc = get(t, b, "cfg")
	if len(doc.Attachments()) != 0 {
		t.Errorf("expected no attachment metadata, got %v", doc.Attachments())
	}
}

func testPutKeepsAttachments(t *testing.T, b storage.Backend) {
	ctx := context.Background()
	put(t, b, types.Document{"_id": "a", "title": "v1"})
	if err := b.PutAttachment(ctx, "a", "body", "text/plain", []byte("hello")); err != nil {
		t.Fatalf("put attachment failed: %v", err)
	}

	// callers cannot forge attachment metadata
	put(t, b, types.Document{
		"_id":          "a",
		"title":        "v2",
		"_attachments": map[string]any{"fake": map[string]any{"length": 1}},
	})

	doc := get(t, b, "a")
	if diff := cmp.Diff([]string{"body"}, doc.AttachmentNames()); diff != "" {
		t.Errorf("attachment names mismatch (-want +got):\n%s", diff)
	}
	if data := attachment(t, b, "a", "body"); string(data) != "hello" {
		t.Errorf("attachment lost on put: %q", data)
	}
}

func testRemoveDropsAttachments(t *testing.T, b storage.Backend) {
	ctx := context.Background()
	put(t, b, types.Document{"_id": "a"})
	if err := b.PutAttachment(ctx, "a", "body", "text/plain", []byte("hello")); err != nil {
		t.Fatalf("put attachment failed: %v", err)
	}
	if err := b.Remove(ctx, "a"); err != nil {
		t.Fatalf("remove failed: %v", err)
	}

	put(t, b, types.Document{"_id": "a"})
	if _, err := b.GetAttachment(ctx, "a", "body"); !types.IsNotFound(err) {
		t.Errorf("expected attachment to be removed with its document, got %v", err)
	}
}

func testListType(t *testing.T, b storage.Backend) {
	lister, ok := b.(storage.TypeLister)
	if !ok {
		t.Skip("backend does not list by type")
	}
	ctx := context.Background()
	put(t, b, types.Document{"_id": "t1", "type": "Task"})
	put(t, b, types.Document{"_id": "p1", "type": "Project"})
	put(t, b, types.Document{"_id": "t2", "type": "Task"})

	docs, err := lister.ListType(ctx, "Task")
	if err != nil {
		t.Fatalf("list by type failed: %v", err)
	}
	got := ids(docs)
	sort.Strings(got)
	if diff := cmp.Diff([]string{"t1", "t2"}, got); diff != "" {
		t.Errorf("listing mismatch (-want +got):\n%s", diff)
	}
}

func ids(docs []types.Document) []string {
	out := make([]string, len(docs))
	for i, doc := range docs {
		out[i] = doc.ID()
	}
	return out
}
