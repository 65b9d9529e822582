package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/arthur-debert/taskman/internal/logger"
	"github.com/arthur-debert/taskman/internal/metrics"
	"github.com/arthur-debert/taskman/taskman/query"
	"github.com/arthur-debert/taskman/taskman/schema"
	"github.com/arthur-debert/taskman/types"
)

// AllDocsOptions selects, orders and pages a listing. Query and QueryString
// may both be set, in which case both must match.
type AllDocsOptions struct {
	Query       query.Predicate
	QueryString string
	SortOn      []types.SortClause
	IncludeDocs bool
	Limit       int
	Skip        int
}

// Handle is a live connection to a backend with its key schema attached
type Handle struct {
	backend   Backend
	processor *query.Processor
	name      string
	logger    zerolog.Logger
	metrics   *metrics.Metrics
}

// HandleOption configures a Handle
type HandleOption func(*Handle)

// WithName sets the name used in logs, usually the storage description
func WithName(name string) HandleOption {
	return func(h *Handle) {
		h.name = name
	}
}

// WithLogger sets the handle logger
func WithLogger(l zerolog.Logger) HandleOption {
	return func(h *Handle) {
		h.logger = l
	}
}

// WithMetrics records storage and query metrics
func WithMetrics(m *metrics.Metrics) HandleOption {
	return func(h *Handle) {
		h.metrics = m
	}
}

// NewHandle wraps backend, resolving query keys through s
func NewHandle(backend Backend, s *schema.KeySchema, opts ...HandleOption) *Handle {
	h := &Handle{
		backend: backend,
		logger:  logger.Nop(),
	}
	for _, opt := range opts {
		opt(h)
	}
	h.logger = h.logger.With().Str("storage", h.name).Logger()
	h.processor = query.NewProcessor(s,
		query.WithLogger(h.logger),
		query.WithMetrics(h.metrics),
	)
	return h
}

// Name returns the name the handle was built with
func (h *Handle) Name() string {
	return h.name
}

// Backend returns the underlying backend
func (h *Handle) Backend() Backend {
	return h.backend
}

// Schema returns the key schema attached to the handle
func (h *Handle) Schema() *schema.KeySchema {
	return h.processor.Schema()
}

func (h *Handle) record(operation string, err error) {
	// a missing document is an answer, not a storage failure
	if types.IsNotFound(err) {
		err = nil
	}
	h.metrics.RecordStorageOperation(operation, err)
	if err != nil {
		log := logger.Operation(h.logger, "storage", operation)
		log.Warn().Err(err).Msg("storage operation failed")
	}
}

// Get fetches one document
func (h *Handle) Get(ctx context.Context, id string) (types.Document, error) {
	doc, err := h.backend.Get(ctx, id)
	h.record("get", err)
	return doc, err
}

// Put creates or replaces a document
func (h *Handle) Put(ctx context.Context, doc types.Document) (string, error) {
	id, err := h.backend.Put(ctx, doc)
	h.record("put", err)
	return id, err
}

// Post creates a document, assigning an identifier if needed
func (h *Handle) Post(ctx context.Context, doc types.Document) (string, error) {
	id, err := h.backend.Post(ctx, doc)
	h.record("post", err)
	return id, err
}

// Remove deletes a document and its attachments
func (h *Handle) Remove(ctx context.Context, id string) error {
	err := h.backend.Remove(ctx, id)
	h.record("remove", err)
	return err
}

// GetAttachment fetches attachment bytes
func (h *Handle) GetAttachment(ctx context.Context, id, name string) ([]byte, error) {
	data, err := h.backend.GetAttachment(ctx, id, name)
	h.record("get_attachment", err)
	return data, err
}

// PutAttachment stores attachment bytes on an existing document
func (h *Handle) PutAttachment(ctx context.Context, id, name, contentType string, data []byte) error {
	err := h.backend.PutAttachment(ctx, id, name, contentType, data)
	h.record("put_attachment", err)
	return err
}

// RemoveAttachment deletes one attachment
func (h *Handle) RemoveAttachment(ctx context.Context, id, name string) error {
	err := h.backend.RemoveAttachment(ctx, id, name)
	h.record("remove_attachment", err)
	return err
}

// AllDocs lists the documents matching opts. TotalRows counts every match,
// regardless of Limit and Skip.
func (h *Handle) AllDocs(ctx context.Context, opts AllDocsOptions) (*types.AllDocsResponse, error) {
	pred := opts.Query
	if opts.QueryString != "" {
		parsed, err := query.Parse(opts.QueryString)
		if err != nil {
			return nil, err
		}
		if pred == nil {
			pred = parsed
		} else {
			pred = query.AllOf(pred, parsed)
		}
	}

	docs, err := h.candidates(ctx, pred)
	h.record("list", err)
	if err != nil {
		return nil, err
	}

	return h.processor.Execute(ctx, docs, query.Options{
		Query:       pred,
		SortOn:      opts.SortOn,
		IncludeDocs: opts.IncludeDocs,
		Limit:       opts.Limit,
		Skip:        opts.Skip,
	})
}

// candidates loads the documents the query has to look at. When the query
// requires an exact type and the backend can list by type, only those
// documents are loaded.
func (h *Handle) candidates(ctx context.Context, pred query.Predicate) ([]types.Document, error) {
	if lister, ok := h.backend.(TypeLister); ok {
		if docType, ok := requiredType(pred, h.Schema()); ok {
			return lister.ListType(ctx, docType)
		}
	}
	return h.backend.List(ctx)
}

// requiredType finds a top-level `type = X` conjunct that reads the literal
// type field
func requiredType(pred query.Predicate, s *schema.KeySchema) (string, bool) {
	switch p := pred.(type) {
	case *query.Simple:
		if p.Key != types.TypeKey || (p.Operator != "" && p.Operator != query.OpEqual) {
			return "", false
		}
		if s != nil {
			if _, declared := s.KeySet[types.TypeKey]; declared {
				return "", false
			}
		}
		v, ok := p.Value.(string)
		if !ok || v == "" || strings.Contains(v, query.Wildcard) {
			return "", false
		}
		return v, true
	case *query.Complex:
		if p.Operator != query.And {
			return "", false
		}
		for _, child := range p.QueryList {
			if t, ok := requiredType(child, s); ok {
				return t, true
			}
		}
	}
	return "", false
}

// Close releases the backend
func (h *Handle) Close() error {
	if err := h.backend.Close(); err != nil {
		return fmt.Errorf("failed to close storage %q: %w", h.name, err)
	}
	return nil
}

// Clear removes every document of the backend and returns how many were
// removed. Documents disappearing concurrently are not an error.
func (h *Handle) Clear(ctx context.Context) (int, error) {
	docs, err := h.backend.List(ctx)
	if err != nil {
		return 0, err
	}
	removed := 0
	var errs []error
	for _, doc := range docs {
		err := h.backend.Remove(ctx, doc.ID())
		switch {
		case err == nil:
			removed++
		case types.IsNotFound(err):
		default:
			errs = append(errs, err)
		}
	}
	h.record("clear", errors.Join(errs...))
	return removed, errors.Join(errs...)
}
