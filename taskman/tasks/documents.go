package tasks

import (
	"context"

	"github.com/arthur-debert/taskman/internal/validation"
	"github.com/arthur-debert/taskman/taskman/query"
	"github.com/arthur-debert/taskman/taskman/storage"
	"github.com/arthur-debert/taskman/types"
)

// DefaultSort orders search results by start date
var DefaultSort = []types.SortClause{types.Ascending("start")}

// SearchDocuments finds tasks matching user input. Input wrapped in
// parentheses is parsed as a grammar query, anything else goes through the
// smart builder. An empty sortOn uses DefaultSort.
func (s *Service) SearchDocuments(ctx context.Context, input string, sortOn []types.SortClause) (*types.AllDocsResponse, error) {
	pred, err := query.Build(s.metadataType, input)
	if err != nil {
		return nil, err
	}
	if len(sortOn) == 0 {
		sortOn = DefaultSort
	}

	h, err := s.conn.Connect(ctx)
	if err != nil {
		return nil, err
	}

	s.logger.Debug().Str("input", input).Stringer("query", pred).Msg("searching documents")
	return h.AllDocs(ctx, storage.AllDocsOptions{
		Query:       pred,
		SortOn:      sortOn,
		IncludeDocs: true,
	})
}

// GetDocument returns document id
func (s *Service) GetDocument(ctx context.Context, id string) (types.Document, error) {
	h, err := s.conn.Connect(ctx)
	if err != nil {
		return nil, err
	}
	return h.Get(ctx, id)
}

// SaveDocument creates (no id) or replaces a task document and returns its
// id. The type defaults to the service metadata type and modified is set to
// the current time.
func (s *Service) SaveDocument(ctx context.Context, doc types.Document) (string, error) {
	if err := validation.Document(doc, validation.DateFields...); err != nil {
		return "", err
	}
	h, err := s.conn.Connect(ctx)
	if err != nil {
		return "", err
	}

	doc = doc.Clone()
	if doc.Type() == "" {
		doc[types.TypeKey] = s.metadataType
	}
	doc["modified"] = s.modified()

	if doc.ID() == "" {
		return h.Post(ctx, doc)
	}
	return h.Put(ctx, doc)
}

// RemoveDocument deletes document id
func (s *Service) RemoveDocument(ctx context.Context, id string) error {
	h, err := s.conn.Connect(ctx)
	if err != nil {
		return err
	}
	return h.Remove(ctx, id)
}

// ClearStorage removes every document of the connected storage and returns
// how many were removed
func (s *Service) ClearStorage(ctx context.Context) (int, error) {
	h, err := s.conn.Connect(ctx)
	if err != nil {
		return 0, err
	}
	n, err := h.Clear(ctx)
	s.logger.Debug().Int("removed", n).Str("storage", h.Name()).Msg("storage cleared")
	return n, err
}
