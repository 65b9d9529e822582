package migration

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/arthur-debert/taskman/taskman/query"
	"github.com/arthur-debert/taskman/taskman/storage"
	"github.com/arthur-debert/taskman/types"
)

// Apply loads the documents selected by opts from h, runs cmd on copies of
// them and writes back the ones it modified. Nothing is written on a dry
// run or when the command fails validation. Write failures are collected
// and make the result a partial failure.
func Apply(ctx context.Context, h *storage.Handle, cmd Command, opts Options) (*Result, error) {
	var pred query.Predicate
	if opts.DocumentType != "" {
		pred = query.Eq(types.TypeKey, opts.DocumentType)
	}
	resp, err := h.AllDocs(ctx, storage.AllDocsOptions{Query: pred, IncludeDocs: true})
	if err != nil {
		return nil, fmt.Errorf("failed to load documents: %w", err)
	}

	docs := resp.Docs()
	mctx := &Context{
		Documents: make([]types.Document, len(docs)),
		DryRun:    opts.DryRun,
	}
	for i, doc := range docs {
		mctx.Documents[i] = doc.Clone()
	}

	result := cmd.Execute(mctx)
	sort.Strings(result.ModifiedDocs)
	if opts.DryRun || result.Code == CodeValidationError || len(result.ModifiedDocs) == 0 {
		return result, nil
	}

	byID := make(map[string]types.Document, len(mctx.Documents))
	for _, doc := range mctx.Documents {
		byID[doc.ID()] = doc
	}
	var errs []error
	for _, id := range result.ModifiedDocs {
		if _, err := h.Put(ctx, byID[id]); err != nil {
			errs = append(errs, fmt.Errorf("document %s: %w", id, err))
		}
	}
	if len(errs) > 0 {
		result.Success = false
		result.Code = CodePartialFailure
		result.Messages = append(result.Messages, Message{
			Level: LevelError,
			Text:  fmt.Sprintf("Failed to write %d of %d documents", len(errs), len(result.ModifiedDocs)),
		})
		return result, errors.Join(errs...)
	}
	return result, nil
}
