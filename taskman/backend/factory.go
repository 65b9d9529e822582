package backend

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/arthur-debert/taskman/internal/logger"
	"github.com/arthur-debert/taskman/taskman/storage"
	"github.com/arthur-debert/taskman/taskman/storage/jsonfile"
	"github.com/arthur-debert/taskman/taskman/storage/memory"
	"github.com/arthur-debert/taskman/taskman/storage/s3store"
	"github.com/arthur-debert/taskman/taskman/storage/sqlstore"
	"github.com/arthur-debert/taskman/types"
)

// Opener opens the backend for a descriptor. Storage types whose wire
// protocol lives outside this module (dav, dropbox, drupal, erp5) are only
// available through a registered Opener.
type Opener func(ctx context.Context, d Descriptor) (storage.Backend, error)

// Factory opens backends from descriptors
type Factory struct {
	dataDir string
	logger  zerolog.Logger

	mu      sync.RWMutex
	openers map[Kind]Opener
}

// FactoryOption configures a Factory
type FactoryOption func(*Factory)

// WithLogger sets the factory logger
func WithLogger(l zerolog.Logger) FactoryOption {
	return func(f *Factory) {
		f.logger = l
	}
}

// NewFactory creates a factory resolving local storages under dataDir
func NewFactory(dataDir string, opts ...FactoryOption) *Factory {
	f := &Factory{
		dataDir: dataDir,
		logger:  logger.Nop(),
		openers: make(map[Kind]Opener),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Register installs an opener for kind. It takes precedence over the
// built-in one.
func (f *Factory) Register(kind Kind, opener Opener) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.openers[kind] = opener
}

func (f *Factory) registered(kind Kind) (Opener, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	opener, ok := f.openers[kind]
	return opener, ok
}

// LocalPath returns the file a local descriptor maps to
func (f *Factory) LocalPath(d Local) string {
	if d.Path != "" {
		if filepath.IsAbs(d.Path) {
			return d.Path
		}
		return filepath.Join(f.dataDir, d.Path)
	}
	user := safeName(d.Username, "default")
	app := safeName(d.ApplicationName, "local")
	return filepath.Join(f.dataDir, user, app+".json")
}

func safeName(s, fallback string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return fallback
	}
	return strings.NewReplacer("/", "_", "\\", "_", "..", "_").Replace(s)
}

// Open opens the backend described by d
func (f *Factory) Open(ctx context.Context, d Descriptor) (storage.Backend, error) {
	if d == nil {
		return nil, types.ConfigError("no storage description")
	}
	if opener, ok := f.registered(d.Kind()); ok {
		return opener(ctx, d)
	}

	f.logger.Debug().Str("storage", Describe(d)).Msg("opening storage")

	switch d := d.(type) {
	case Local:
		return jsonfile.New(f.LocalPath(d)), nil
	case Memory:
		return memory.New(), nil
	case SQLite:
		path := d.Path
		if path != ":memory:" && !filepath.IsAbs(path) {
			path = filepath.Join(f.dataDir, path)
		}
		return sqlstore.OpenSQLite(ctx, path)
	case Postgres:
		return sqlstore.OpenPostgres(ctx, d.DSN)
	case S3:
		return s3store.Open(ctx, s3store.ClientConfig{
			Bucket:          d.Bucket,
			Region:          d.Region,
			Endpoint:        d.Endpoint,
			AccessKeyID:     d.AccessKeyID,
			SecretAccessKey: d.SecretAccessKey,
			UsePathStyle:    d.UsePathStyle,
		}, d.Prefix)
	case Replicate:
		return f.openReplicate(ctx, d)
	case DAV, Dropbox, Drupal, ERP5:
		return nil, types.ConfigError(fmt.Sprintf("no adapter registered for storage type: %s", d.Kind()))
	}
	return nil, types.ConfigError(fmt.Sprintf("unsupported storage type: %s", d.Kind()))
}

func (f *Factory) openReplicate(ctx context.Context, d Replicate) (storage.Backend, error) {
	subs := make([]storage.Backend, 0, len(d.Storages))
	for _, sd := range d.Storages {
		sub, err := f.Open(ctx, sd)
		if err != nil {
			for _, opened := range subs {
				_ = opened.Close()
			}
			return nil, err
		}
		subs = append(subs, sub)
	}
	return storage.NewReplicate(subs...)
}
