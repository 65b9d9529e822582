package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/arthur-debert/taskman/internal/logger"
	"github.com/arthur-debert/taskman/internal/metrics"
	"github.com/arthur-debert/taskman/taskman/backend"
	"github.com/arthur-debert/taskman/taskman/connect"
	"github.com/arthur-debert/taskman/taskman/schema"
	"github.com/arthur-debert/taskman/taskman/settings"
	"github.com/arthur-debert/taskman/taskman/storage/jsonfile"
	"github.com/arthur-debert/taskman/taskman/tasks"
)

// Files kept in the data directory
const (
	configsFile   = "config.json"
	selectionFile = "selection.yaml"
)

// AppConfig is the resolved configuration of one CLI run
type AppConfig struct {
	DataDir      string
	LogLevel     string
	LogPretty    bool
	MetadataType string
	Debounce     time.Duration
	MetricsAddr  string
	Language     string
	Stderr       io.Writer
}

// App is the application root: every long-lived component is built here
// and handed to the ones that need it.
type App struct {
	logger   zerolog.Logger
	metrics  *metrics.Metrics
	configs  *jsonfile.Store
	manager  *connect.Manager
	tasks    *tasks.Service
	debounce time.Duration
	server   *http.Server
}

// NewApp wires the storage configuration store, the connection manager and
// the task service
func NewApp(cfg AppConfig) (*App, error) {
	if cfg.DataDir == "" {
		return nil, NewValidationError("start", "data-dir", cfg.DataDir,
			"Set --data-dir or TASKMAN_DATA_DIR")
	}
	stderr := cfg.Stderr
	if stderr == nil {
		stderr = os.Stderr
	}

	root := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.LogPretty,
		Output: stderr,
	})
	mt := metrics.New()

	tr, err := loadTranslator(cfg.Language)
	if err != nil {
		return nil, err
	}
	keySchema := schema.Default(tr)

	configs := jsonfile.New(filepath.Join(cfg.DataDir, configsFile))
	store := settings.New(configs,
		settings.NewFlagStore(filepath.Join(cfg.DataDir, selectionFile)),
		settings.WithLogger(logger.Component(root, "settings")),
	)
	factory := backend.NewFactory(cfg.DataDir,
		backend.WithLogger(logger.Component(root, "backend")),
	)
	manager := connect.NewManager(store, factory, keySchema,
		connect.WithLogger(logger.Component(root, "connect")),
		connect.WithMetrics(mt),
		connect.WithNotifier(connect.NotifierFunc(func(err error) {
			fmt.Fprintf(stderr, "Storage unavailable: %v\n", err)
			fmt.Fprintln(stderr, "Run 'taskman storage list' and 'taskman storage select <id>' to pick another storage.")
		})),
	)

	app := &App{
		logger:   root,
		metrics:  mt,
		configs:  configs,
		manager:  manager,
		debounce: cfg.Debounce,
		tasks: tasks.New(manager,
			tasks.WithMetadataType(cfg.MetadataType),
			tasks.WithLogger(logger.Component(root, "tasks")),
		),
	}
	if cfg.MetricsAddr != "" {
		app.serveMetrics(cfg.MetricsAddr)
	}
	return app, nil
}

func loadTranslator(path string) (schema.Translator, error) {
	if path == "" {
		return schema.IdentityTranslator, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, &CLIError{
			Operation:   "load translations",
			Cause:       "cannot open catalog",
			Details:     err.Error(),
			Suggestions: []string{"--language expects a YAML file of state: translation pairs"},
			Underlying:  err,
		}
	}
	defer f.Close()
	tr, err := schema.LoadTranslations(f)
	if err != nil {
		return nil, WrapError("load translations", err)
	}
	return tr, nil
}

func (a *App) serveMetrics(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(a.metrics.Registry, promhttp.HandlerOpts{}))
	a.server = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error().Err(err).Str("addr", addr).Msg("metrics server stopped")
		}
	}()
	a.logger.Info().Str("addr", addr).Msg("serving metrics")
}

// Close releases the storage connection and stops the metrics server
func (a *App) Close() error {
	var errs []error
	if a.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		errs = append(errs, a.server.Shutdown(ctx))
		cancel()
	}
	errs = append(errs, a.manager.Close(), a.configs.Close())
	return errors.Join(errs...)
}
