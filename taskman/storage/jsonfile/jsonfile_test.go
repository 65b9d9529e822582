package jsonfile

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/gofrs/flock"

	"github.com/arthur-debert/taskman/taskman/storage"
	"github.com/arthur-debert/taskman/taskman/storage/storagetest"
	"github.com/arthur-debert/taskman/types"
)

var _ storage.Backend = (*Store)(nil)

func TestConformance(t *testing.T) {
	storagetest.Run(t, func(t *testing.T) storage.Backend {
		return New(filepath.Join(t.TempDir(), "data", "store.json"))
	})
}

func TestPersistsAcrossInstances(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "store.json")

	first := New(path)
	id, err := first.Post(ctx, types.Document{"type": "Task", "title": "Buy milk"})
	if err != nil {
		t.Fatalf("post failed: %v", err)
	}
	if err := first.PutAttachment(ctx, id, "note", "text/plain", []byte("2 litres")); err != nil {
		t.Fatalf("put attachment failed: %v", err)
	}
	_ = first.Close()

	second := New(path)
	doc, err := second.Get(ctx, id)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if doc.String("title") != "Buy milk" {
		t.Errorf("unexpected document %v", doc)
	}
	data, err := second.GetAttachment(ctx, id, "note")
	if err != nil || string(data) != "2 litres" {
		t.Errorf("unexpected attachment %q, %v", data, err)
	}
}

func TestFileFormat(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "store.json")
	s := New(path)
	if _, err := s.Put(ctx, types.Document{"_id": "a", "type": "Task"}); err != nil {
		t.Fatalf("put failed: %v", err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	var decoded storeData
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("data file is not valid JSON: %v", err)
	}
	if decoded.Metadata.Version != fileVersion || len(decoded.Documents) != 1 {
		t.Errorf("unexpected file content: %s", raw)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Error("temporary file left behind")
	}
}

func TestCorruptFileIsIOError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.json")
	if err := os.WriteFile(path, []byte("{not json"), 0644); err != nil {
		t.Fatal(err)
	}
	_, err := New(path).List(context.Background())
	if !types.IsKind(err, types.ErrIO) {
		t.Errorf("expected io error, got %v", err)
	}
}

func TestLockTimeout(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.json")
	other := flock.New(path + ".lock")
	if err := other.Lock(); err != nil {
		t.Fatalf("failed to take lock: %v", err)
	}
	defer func() { _ = other.Unlock() }()

	s := New(path, WithLockTimeout(200*time.Millisecond))
	_, err := s.List(context.Background())
	if !types.IsKind(err, types.ErrIO) {
		t.Errorf("expected io error while the file is locked, got %v", err)
	}
}

func TestCloseKeepsForeignLock(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "store.json")

	first := New(path)
	if _, err := first.Put(ctx, types.Document{"_id": "a"}); err != nil {
		t.Fatal(err)
	}

	other := flock.New(path + ".lock")
	if err := other.Lock(); err != nil {
		t.Fatalf("failed to take lock: %v", err)
	}
	defer func() { _ = other.Unlock() }()

	if err := first.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}
	if _, err := os.Stat(path + ".lock"); err != nil {
		t.Errorf("lock file must survive close: %v", err)
	}

	second := New(path, WithLockTimeout(200*time.Millisecond))
	if _, err := second.Put(ctx, types.Document{"_id": "b"}); !types.IsKind(err, types.ErrIO) {
		t.Errorf("expected the held lock to block writers after close, got %v", err)
	}
}

func TestConcurrentWriters(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "store.json")
	a, b := New(path), New(path)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			if _, err := a.Post(ctx, types.Document{"type": "Task"}); err != nil {
				t.Errorf("post a: %v", err)
			}
		}()
		go func() {
			defer wg.Done()
			if _, err := b.Post(ctx, types.Document{"type": "Task"}); err != nil {
				t.Errorf("post b: %v", err)
			}
		}()
	}
	wg.Wait()

	docs, err := a.List(ctx)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(docs) != 20 {
		t.Errorf("expected 20 documents, got %d", len(docs))
	}
}
