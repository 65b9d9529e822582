package storage_test

import (
	"bytes"
	"context"
	"testing"

	"github.com/rs/zerolog"

	"github.com/arthur-debert/taskman/taskman/schema"
	"github.com/arthur-debert/taskman/taskman/storage"
	"github.com/arthur-debert/taskman/taskman/storage/memory"
	"github.com/arthur-debert/taskman/types"
)

func TestHandleLogsFailedOperations(t *testing.T) {
	ctx := context.Background()
	var buf bytes.Buffer
	h := storage.NewHandle(memory.New(), schema.Default(nil),
		storage.WithName("scratch"),
		storage.WithLogger(zerolog.New(&buf)),
	)
	defer h.Close()

	if _, err := h.Get(ctx, "missing"); !types.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
	if buf.Len() != 0 {
		t.Errorf("a missing document must not be logged, got %q", buf.String())
	}

	if _, err := h.Put(ctx, types.Document{"title": "no id"}); err == nil {
		t.Fatal("expected put without id to fail")
	}
	for _, want := range []string{`"storage":"scratch"`, `"operation":"put"`, `"level":"warn"`} {
		if !bytes.Contains(buf.Bytes(), []byte(want)) {
			t.Errorf("expected %s in %q", want, buf.String())
		}
	}
}
