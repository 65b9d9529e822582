// Package tasks implements the task manager operations on top of a storage
// connection: projects, states, task documents, search and archives.
package tasks

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/arthur-debert/taskman/internal/folding"
	"github.com/arthur-debert/taskman/internal/logger"
	"github.com/arthur-debert/taskman/taskman/query"
	"github.com/arthur-debert/taskman/taskman/storage"
	"github.com/arthur-debert/taskman/types"
)

const (
	// ProjectType is the document type of projects
	ProjectType = types.TypeProject
	// StateType is the document type of states
	StateType = types.TypeState
	// DefaultMetadataType is the document type of tasks
	DefaultMetadataType = types.TypeTask
)

// Connector provides the storage connection
type Connector interface {
	Connect(ctx context.Context) (*storage.Handle, error)
}

// Service runs task manager operations against the connected storage
type Service struct {
	conn         Connector
	metadataType string
	logger       zerolog.Logger
	now          func() time.Time
}

// Option configures a Service
type Option func(*Service)

// WithMetadataType sets the document type searched and counted as tasks
func WithMetadataType(t string) Option {
	return func(s *Service) {
		if t != "" {
			s.metadataType = t
		}
	}
}

// WithLogger sets the service logger
func WithLogger(l zerolog.Logger) Option {
	return func(s *Service) {
		s.logger = l
	}
}

// WithClock overrides the clock used for the modified field
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// New creates a service on conn
func New(conn Connector, opts ...Option) *Service {
	s := &Service{
		conn:         conn,
		metadataType: DefaultMetadataType,
		logger:       logger.Nop(),
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// MetadataType returns the document type of tasks
func (s *Service) MetadataType() string {
	return s.metadataType
}

func (s *Service) modified() string {
	return s.now().UTC().Format(time.RFC3339)
}

// normalizeName trims a project or state name and upper-cases its first letter
func normalizeName(name string) string {
	return folding.CapitalizeFirst(strings.TrimSpace(name))
}

// named lists documents of docType whose field equals name
func named(ctx context.Context, h *storage.Handle, docType, field, name string) (*types.AllDocsResponse, error) {
	return h.AllDocs(ctx, storage.AllDocsOptions{
		Query: query.AllOf(
			query.Eq(types.TypeKey, docType),
			query.Eq(field, name),
		),
		IncludeDocs: true,
	})
}

func (s *Service) list(ctx context.Context, docType, field string) ([]types.Document, error) {
	h, err := s.conn.Connect(ctx)
	if err != nil {
		return nil, err
	}
	resp, err := h.AllDocs(ctx, storage.AllDocsOptions{
		Query:       query.Eq(types.TypeKey, docType),
		SortOn:      []types.SortClause{types.Ascending(field)},
		IncludeDocs: true,
	})
	if err != nil {
		return nil, err
	}
	return resp.Docs(), nil
}

// add creates a docType document named name in field. The uniqueness check
// and the write are separate operations, so two concurrent adds of the
// same name may both succeed.
func (s *Service) add(ctx context.Context, docType, field, name string) (string, error) {
	name = normalizeName(name)
	if name == "" {
		return "", nil
	}

	h, err := s.conn.Connect(ctx)
	if err != nil {
		return "", err
	}

	existing, err := named(ctx, h, docType, field, name)
	if err != nil {
		return "", err
	}
	if existing.TotalRows >= 1 {
		return "", types.ValidationError(
			fmt.Sprintf("Cannot add %s", strings.ToLower(docType)),
			fmt.Sprintf("%s %q already exists", docType, name),
		)
	}

	id, err := h.Post(ctx, types.Document{
		types.TypeKey: docType,
		field:         name,
		"modified":    s.modified(),
	})
	if err != nil {
		return "", err
	}
	s.logger.Debug().Str("id", id).Str(field, name).Msgf("added %s", strings.ToLower(docType))
	return id, nil
}

// dependents counts the task documents whose field equals name
func (s *Service) dependents(ctx context.Context, h *storage.Handle, field, name string) (int, error) {
	resp, err := h.AllDocs(ctx, storage.AllDocsOptions{
		Query: query.AllOf(
			query.Eq(types.TypeKey, s.metadataType),
			query.Eq(field, name),
		),
	})
	if err != nil {
		return 0, err
	}
	return resp.TotalRows, nil
}

// remove deletes the docType document named name once no task refers to
// it. The name is normalized as add does.
func (s *Service) remove(ctx context.Context, docType, field, name string, inUse func(name string, count int) error) error {
	name = normalizeName(name)
	h, err := s.conn.Connect(ctx)
	if err != nil {
		return err
	}

	found, err := named(ctx, h, docType, field, name)
	if err != nil {
		return err
	}
	if found.TotalRows == 0 {
		return types.NotFoundError(fmt.Sprintf("%s %q", strings.ToLower(docType), name))
	}

	count, err := s.dependents(ctx, h, field, name)
	if err != nil {
		return err
	}
	if count > 0 {
		return inUse(name, count)
	}

	for _, row := range found.Rows {
		if err := h.Remove(ctx, row.ID); err != nil && !types.IsNotFound(err) {
			return err
		}
	}
	s.logger.Debug().Str(field, name).Msgf("%s has been removed", strings.ToLower(docType))
	return nil
}

// ListProjects returns the project documents ordered by name
func (s *Service) ListProjects(ctx context.Context) ([]types.Document, error) {
	return s.list(ctx, ProjectType, "project")
}

// ListStates returns the state documents ordered by name
func (s *Service) ListStates(ctx context.Context) ([]types.Document, error) {
	return s.list(ctx, StateType, "state")
}

// AddProject creates a project and returns its id. Blank names are ignored
// and yield an empty id.
func (s *Service) AddProject(ctx context.Context, name string) (string, error) {
	return s.add(ctx, ProjectType, "project", name)
}

// AddState creates a state and returns its id. Blank names are ignored and
// yield an empty id.
func (s *Service) AddState(ctx context.Context, name string) (string, error) {
	return s.add(ctx, StateType, "state", name)
}

// RemoveProject deletes a project that no task refers to
func (s *Service) RemoveProject(ctx context.Context, name string) error {
	return s.remove(ctx, ProjectType, "project", name, func(name string, count int) error {
		return types.ValidationError(
			fmt.Sprintf("Cannot remove project %q", name),
			fmt.Sprintf("The project contains %d documents.", count),
		)
	})
}

// RemoveState deletes a state that no task is in
func (s *Service) RemoveState(ctx context.Context, name string) error {
	return s.remove(ctx, StateType, "state", name, func(name string, count int) error {
		return types.ValidationError(
			"Cannot remove state",
			fmt.Sprintf("%d documents are in state %q", count, name),
		)
	})
}
