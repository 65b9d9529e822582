// Package settings stores the storage configurations a user can connect to.
//
// Each configuration is a "Storage Configuration" document whose "config"
// attachment holds the JSON connection parameters. The selected
// configuration id lives outside the store, in a FlagStore.
package settings

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/arthur-debert/taskman/internal/logger"
	"github.com/arthur-debert/taskman/taskman/backend"
	"github.com/arthur-debert/taskman/taskman/storage"
	"github.com/arthur-debert/taskman/types"
)

const (
	// ConfigType is the document type of storage configurations
	ConfigType = types.TypeStorageConfiguration
	// ConfigAttachment is the attachment holding the connection parameters
	ConfigAttachment = "config"
	// DefaultID is the id of the first seeded configuration and the
	// selection used when none was made
	DefaultID = "default_storage"

	configContentType = "application/json"
)

// Config is the connection parameter blob of a configuration
type Config = backend.Config

// Entry is one stored configuration. Err is set when its parameters could
// not be read, in which case Config is empty.
type Entry struct {
	ID     string
	Doc    types.Document
	Config Config
	Err    error
}

// DefaultConfigs returns the configurations seeded on first run. The first
// one is stored under DefaultID.
func DefaultConfigs() []Config {
	return []Config{
		{
			StorageType:     backend.KindLocal,
			Username:        "Admin",
			ApplicationName: "Local",
		},
		{
			StorageType:     backend.KindDAV,
			Username:        "Admin",
			ApplicationName: "WebDAV",
			URL:             "http://localhost/",
			AuthType:        "none",
		},
		{
			StorageType:     backend.KindDropbox,
			Username:        "Admin",
			ApplicationName: "DropBox",
			URL:             "http://localhost/",
			AuthType:        "none",
		},
		{
			StorageType:     backend.KindLocal,
			ApplicationName: "Local 2",
			JSONDescription: `{"type":"local","username":"Admin","application_name":"Local"}`,
		},
	}
}

// Store reads and writes storage configurations
type Store struct {
	backend storage.Backend
	flags   *FlagStore
	logger  zerolog.Logger
	now     func() time.Time
}

// Option configures a Store
type Option func(*Store)

// WithLogger sets the store logger
func WithLogger(l zerolog.Logger) Option {
	return func(s *Store) {
		s.logger = l
	}
}

// WithClock overrides the clock used for the modified field
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// New creates a configuration store on b, keeping the selection in flags
func New(b storage.Backend, flags *FlagStore, opts ...Option) *Store {
	if flags == nil {
		flags = NewFlagStore("")
	}
	s := &Store{
		backend: b,
		flags:   flags,
		logger:  logger.Nop(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Backend returns the storage holding the configurations
func (s *Store) Backend() storage.Backend {
	return s.backend
}

func (s *Store) documents(ctx context.Context) ([]types.Document, error) {
	if lister, ok := s.backend.(storage.TypeLister); ok {
		return lister.ListType(ctx, ConfigType)
	}
	all, err := s.backend.List(ctx)
	if err != nil {
		return nil, err
	}
	docs := make([]types.Document, 0, len(all))
	for _, doc := range all {
		if doc.Type() == ConfigType {
			docs = append(docs, doc)
		}
	}
	return docs, nil
}

// List returns every stored configuration
func (s *Store) List(ctx context.Context) ([]Entry, error) {
	docs, err := s.documents(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list storage configurations: %w", err)
	}

	entries := make([]Entry, 0, len(docs))
	for _, doc := range docs {
		entry := Entry{ID: doc.ID(), Doc: doc}
		entry.Config, entry.Err = s.Get(ctx, doc.ID())
		if entry.Err != nil {
			s.logger.Warn().Err(entry.Err).Str("id", doc.ID()).Msg("unreadable storage configuration")
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// Get returns the connection parameters of configuration id. An empty id
// yields a plain local configuration.
func (s *Store) Get(ctx context.Context, id string) (Config, error) {
	if id == "" {
		return Config{StorageType: backend.KindLocal}, nil
	}
	data, err := s.backend.GetAttachment(ctx, id, ConfigAttachment)
	if err != nil {
		return Config{}, err
	}
	return backend.ParseConfig(data)
}

// Save creates (empty id) or replaces a configuration and returns its id.
// The document and its attachment are two writes; when the second fails the
// first is rolled back on a best effort basis.
func (s *Store) Save(ctx context.Context, id string, cfg Config) (string, error) {
	if _, err := cfg.Descriptor(); err != nil {
		return "", err
	}
	data, err := cfg.Marshal()
	if err != nil {
		return "", err
	}

	doc := types.Document{
		"type":     ConfigType,
		"name":     cfg.ApplicationName,
		"modified": s.now().UTC().Format(time.RFC3339),
	}

	var previous types.Document
	if id == "" {
		id, err = s.backend.Post(ctx, doc)
	} else {
		previous, err = s.backend.Get(ctx, id)
		if err != nil && !types.IsNotFound(err) {
			return "", err
		}
		doc.SetID(id)
		id, err = s.backend.Put(ctx, doc)
	}
	if err != nil {
		return "", err
	}

	if err := s.backend.PutAttachment(ctx, id, ConfigAttachment, configContentType, data); err != nil {
		if rbErr := s.rollback(ctx, id, previous); rbErr != nil {
			s.logger.Error().Err(rbErr).Str("id", id).Msg("failed to roll back storage configuration")
			return "", errors.Join(err, rbErr)
		}
		return "", err
	}

	s.logger.Debug().Str("id", id).Str("storage_type", string(cfg.StorageType)).Msg("storage configuration saved")
	return id, nil
}

func (s *Store) rollback(ctx context.Context, id string, previous types.Document) error {
	if previous == nil {
		return s.backend.Remove(ctx, id)
	}
	_, err := s.backend.Put(ctx, previous)
	return err
}

// Delete removes configuration id. The storage it describes is left
// untouched. When id was selected the selection falls back to DefaultID and
// reset reports it.
func (s *Store) Delete(ctx context.Context, id string) (reset bool, err error) {
	if err := s.backend.Remove(ctx, id); err != nil {
		return false, err
	}
	s.logger.Debug().Str("id", id).Msg("storage configuration deleted")

	selected, err := s.Selected()
	if err != nil {
		return false, err
	}
	if selected != id {
		return false, nil
	}
	if err := s.flags.SetSelected(DefaultID); err != nil {
		return false, err
	}
	return true, nil
}

// Selected returns the selected configuration id, DefaultID when unset
func (s *Store) Selected() (string, error) {
	id, err := s.flags.Selected()
	if err != nil {
		return "", err
	}
	if id == "" {
		return DefaultID, nil
	}
	return id, nil
}

// Select records id as the selected configuration
func (s *Store) Select(id string) error {
	if id == "" {
		id = DefaultID
	}
	return s.flags.SetSelected(id)
}

// Seed writes DefaultConfigs when the store holds no configuration and
// reports whether it did. Seeding an already populated store is a no-op.
func (s *Store) Seed(ctx context.Context) (bool, error) {
	docs, err := s.documents(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to read storage configurations: %w", err)
	}
	if len(docs) > 0 {
		return false, nil
	}

	s.logger.Debug().Msg("no configuration found, populating configuration storage")
	for i, cfg := range DefaultConfigs() {
		id := ""
		if i == 0 {
			id = DefaultID
		}
		if _, err := s.Save(ctx, id, cfg); err != nil {
			return false, fmt.Errorf("failed to seed storage configuration %q: %w", cfg.ApplicationName, err)
		}
	}
	s.logger.Debug().Msg("configuration created")
	return true, nil
}
