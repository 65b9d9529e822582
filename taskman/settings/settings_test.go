package settings

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/arthur-debert/taskman/taskman/backend"
	"github.com/arthur-debert/taskman/taskman/storage/memory"
	"github.com/arthur-debert/taskman/types"
)

var fixedNow = func() time.Time { return time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC) }

func newStore(t *testing.T) (*Store, *memory.Store) {
	t.Helper()
	mem := memory.New()
	return New(mem, NewFlagStore(""), WithClock(fixedNow)), mem
}

type failingAttachments struct {
	*memory.Store
}

func (f failingAttachments) PutAttachment(context.Context, string, string, string, []byte) error {
	return types.IOError("put attachment", errors.New("disk full"))
}

func TestGetEmptyIDYieldsLocal(t *testing.T) {
	s, _ := newStore(t)
	cfg, err := s.Get(context.Background(), "")
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(Config{StorageType: backend.KindLocal}, cfg); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestSaveAndGet(t *testing.T) {
	ctx := context.Background()
	s, mem := newStore(t)

	cfg := Config{StorageType: backend.KindSQLite, ApplicationName: "Work", Path: "work.db"}
	id, err := s.Save(ctx, "", cfg)
	if err != nil {
		t.Fatal(err)
	}
	if id == "" {
		t.Fatal("expected an assigned id")
	}

	got, err := s.Get(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(cfg, got); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}

	doc, err := mem.Get(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if doc.Type() != ConfigType || doc.String("name") != "Work" || doc.String("modified") != "2024-03-01T12:00:00Z" {
		t.Errorf("unexpected configuration document %v", doc)
	}

	cfg.Path = "other.db"
	if _, err := s.Save(ctx, id, cfg); err != nil {
		t.Fatal(err)
	}
	got, err = s.Get(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if got.Path != "other.db" {
		t.Errorf("expected updated path, got %q", got.Path)
	}
}

func TestSaveRejectsInvalidConfig(t *testing.T) {
	s, mem := newStore(t)
	_, err := s.Save(context.Background(), "", Config{StorageType: backend.KindSQLite})
	if !types.IsKind(err, types.ErrConfig) {
		t.Fatalf("expected config error, got %v", err)
	}
	docs, _ := mem.List(context.Background())
	if len(docs) != 0 {
		t.Errorf("nothing should be written, got %v", docs)
	}
}

func TestSaveRollsBackOnAttachmentFailure(t *testing.T) {
	ctx := context.Background()
	mem := memory.New()
	s := New(failingAttachments{mem}, nil)

	if _, err := s.Save(ctx, "", Config{StorageType: backend.KindMemory}); !types.IsKind(err, types.ErrIO) {
		t.Fatalf("expected io error, got %v", err)
	}
	docs, err := mem.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(docs) != 0 {
		t.Errorf("created document should be rolled back, got %v", docs)
	}

	previous := types.Document{"_id": "cfg", "type": ConfigType, "name": "Before"}
	if _, err := mem.Put(ctx, previous); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Save(ctx, "cfg", Config{StorageType: backend.KindMemory, ApplicationName: "After"}); err == nil {
		t.Fatal("expected an error")
	}
	doc, err := mem.Get(ctx, "cfg")
	if err != nil {
		t.Fatal(err)
	}
	if doc.String("name") != "Before" {
		t.Errorf("replaced document should be restored, got %v", doc)
	}
}

func TestSeed(t *testing.T) {
	ctx := context.Background()
	s, _ := newStore(t)

	seeded, err := s.Seed(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !seeded {
		t.Fatal("expected the empty store to be seeded")
	}

	entries, err := s.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != len(DefaultConfigs()) {
		t.Fatalf("expected %d configurations, got %d", len(DefaultConfigs()), len(entries))
	}
	if entries[0].ID != DefaultID {
		t.Errorf("expected first configuration to be %s, got %s", DefaultID, entries[0].ID)
	}

	var names []string
	for _, e := range entries {
		if e.Err != nil {
			t.Errorf("entry %s: %v", e.ID, e.Err)
		}
		names = append(names, e.Config.ApplicationName)
	}
	if diff := cmp.Diff([]string{"Local", "WebDAV", "DropBox", "Local 2"}, names); diff != "" {
		t.Errorf("seeded names mismatch (-want +got):\n%s", diff)
	}

	d, err := entries[3].Config.Descriptor()
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(backend.Local{Username: "Admin", ApplicationName: "Local"}, d); diff != "" {
		t.Errorf("json description not honoured (-want +got):\n%s", diff)
	}

	seeded, err = s.Seed(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if seeded {
		t.Error("second seed should be a no-op")
	}
	entries, _ = s.List(ctx)
	if len(entries) != len(DefaultConfigs()) {
		t.Errorf("second seed changed the store: %d entries", len(entries))
	}
}

func TestListReportsUnreadableEntries(t *testing.T) {
	ctx := context.Background()
	s, mem := newStore(t)

	if _, err := mem.Put(ctx, types.Document{"_id": "broken", "type": ConfigType}); err != nil {
		t.Fatal(err)
	}
	if err := mem.PutAttachment(ctx, "broken", ConfigAttachment, "application/json", []byte(`{"storage_type":"ftp"}`)); err != nil {
		t.Fatal(err)
	}
	if _, err := mem.Put(ctx, types.Document{"_id": "task", "type": "Task"}); err != nil {
		t.Fatal(err)
	}

	entries, err := s.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected only configuration documents, got %d", len(entries))
	}
	if !types.IsKind(entries[0].Err, types.ErrConfig) {
		t.Errorf("expected config error on entry, got %v", entries[0].Err)
	}
}

func TestDeleteResetsSelection(t *testing.T) {
	ctx := context.Background()
	s, _ := newStore(t)

	id, err := s.Save(ctx, "", Config{StorageType: backend.KindMemory})
	if err != nil {
		t.Fatal(err)
	}
	other, err := s.Save(ctx, "", Config{StorageType: backend.KindMemory})
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Select(id); err != nil {
		t.Fatal(err)
	}

	reset, err := s.Delete(ctx, other)
	if err != nil {
		t.Fatal(err)
	}
	if reset {
		t.Error("deleting an unselected configuration must keep the selection")
	}

	reset, err = s.Delete(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if !reset {
		t.Error("expected selection reset")
	}
	selected, err := s.Selected()
	if err != nil {
		t.Fatal(err)
	}
	if selected != DefaultID {
		t.Errorf("expected %s, got %s", DefaultID, selected)
	}

	if _, err := s.Delete(ctx, id); !types.IsNotFound(err) {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestFlagStorePersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "selection.yaml")

	first := NewFlagStore(path)
	got, err := first.Selected()
	if err != nil {
		t.Fatal(err)
	}
	if got != "" {
		t.Errorf("expected empty selection, got %q", got)
	}
	if err := first.SetSelected("work"); err != nil {
		t.Fatal(err)
	}

	second := NewFlagStore(path)
	got, err = second.Selected()
	if err != nil {
		t.Fatal(err)
	}
	if got != "work" {
		t.Errorf("expected persisted selection, got %q", got)
	}
}
