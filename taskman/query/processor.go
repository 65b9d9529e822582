package query

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/arthur-debert/taskman/internal/logger"
	"github.com/arthur-debert/taskman/internal/metrics"
	"github.com/arthur-debert/taskman/taskman/schema"
	"github.com/arthur-debert/taskman/types"
)

// Options describe one listing: which documents, in which order, and how
// many of them
type Options struct {
	Query       Predicate
	SortOn      []types.SortClause
	IncludeDocs bool
	// Limit caps the number of rows returned; zero means no limit
	Limit int
	Skip  int
}

// Processor runs queries against an in-memory document set
type Processor struct {
	schema  *schema.KeySchema
	logger  zerolog.Logger
	metrics *metrics.Metrics
}

// ProcessorOption configures a Processor
type ProcessorOption func(*Processor)

// WithLogger sets the logger used to trace query execution
func WithLogger(l zerolog.Logger) ProcessorOption {
	return func(p *Processor) {
		p.logger = l
	}
}

// WithMetrics records query counts and durations
func WithMetrics(m *metrics.Metrics) ProcessorOption {
	return func(p *Processor) {
		p.metrics = m
	}
}

// NewProcessor creates a processor resolving keys through s
func NewProcessor(s *schema.KeySchema, opts ...ProcessorOption) *Processor {
	p := &Processor{
		schema: s,
		logger: logger.Nop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Schema returns the key schema used by the processor
func (p *Processor) Schema() *schema.KeySchema {
	return p.schema
}

// Execute filters docs with the query, sorts the matches and applies
// Skip/Limit. TotalRows is the number of matches before pagination.
func (p *Processor) Execute(ctx context.Context, docs []types.Document, opts Options) (*types.AllDocsResponse, error) {
	start := time.Now()
	resp, err := p.execute(ctx, docs, opts)
	matched := 0
	if resp != nil {
		matched = resp.TotalRows
	}
	p.metrics.RecordQuery(matched, time.Since(start), err)

	log := logger.Operation(p.logger, "query", "execute")
	event := log.Debug()
	if err != nil {
		event = log.Warn().Err(err)
	}
	event.
		Int("documents", len(docs)).
		Int("matched", matched).
		Dur("duration", time.Since(start)).
		Msg("query executed")

	return resp, err
}

func (p *Processor) execute(ctx context.Context, docs []types.Document, opts Options) (*types.AllDocsResponse, error) {
	result := make([]types.Document, 0, len(docs))
	for _, doc := range docs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		ok, err := Matches(ctx, doc, opts.Query, p.schema)
		if err != nil {
			return nil, err
		}
		if ok {
			result = append(result, doc)
		}
	}

	if len(opts.SortOn) > 0 {
		if err := p.sortDocuments(result, opts.SortOn); err != nil {
			return nil, err
		}
	}

	total := len(result)

	if opts.Skip > 0 {
		if opts.Skip >= len(result) {
			result = result[:0]
		} else {
			result = result[opts.Skip:]
		}
	}
	if opts.Limit > 0 && opts.Limit < len(result) {
		result = result[:opts.Limit]
	}

	resp := &types.AllDocsResponse{
		Rows:      make([]types.Row, len(result)),
		TotalRows: total,
	}
	for i, doc := range result {
		resp.Rows[i].ID = doc.ID()
		if opts.IncludeDocs {
			resp.Rows[i].Doc = doc.Clone()
		}
	}
	return resp, nil
}
