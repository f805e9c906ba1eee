// Package app provides the application context and dependency management
// for the curator CLI. It centralizes configuration, logging and the
// lifecycle of the storage backend behind the curator client.
package app

import (
	"context"
	"io"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog"

	"github.com/agentstation/curator"
	"github.com/agentstation/curator/cmd/application"
	"github.com/agentstation/curator/pkg/errors"
	"github.com/agentstation/curator/pkg/storage/badger"
	"github.com/agentstation/curator/pkg/storage/files"
	"github.com/agentstation/curator/pkg/versions"
)

// Compile-time interface check.
var _ application.Application = (*App)(nil)

// App represents the curator application with all its dependencies.
type App struct {
	// Version information
	version string
	commit  string
	date    string
	builtBy string

	config *Config
	logger *zerolog.Logger
	out    io.Writer

	// Client and its backend (lazy-initialized, singleton)
	mu      sync.RWMutex
	client  curator.Client
	closers []io.Closer
}

// New creates a new App instance with the given version information.
func New(version, commit, date, builtBy string, opts ...Option) (*App, error) {
	app := &App{
		version: version,
		commit:  commit,
		date:    date,
		builtBy: builtBy,
	}

	config, err := LoadConfig("")
	if err != nil {
		return nil, errors.WrapResource("load", "config", "", err)
	}
	app.config = config

	logger := NewLogger(config)
	app.logger = &logger

	for _, opt := range opts {
		if err := opt(app); err != nil {
			return nil, err
		}
	}
	return app, nil
}

// Version returns the version information.
func (a *App) Version() string { return a.version }

// Commit returns the git commit hash.
func (a *App) Commit() string { return a.commit }

// Date returns the build date.
func (a *App) Date() string { return a.date }

// BuiltBy returns the build system identifier.
func (a *App) BuiltBy() string { return a.builtBy }

// Config returns the application configuration.
func (a *App) Config() *Config { return a.config }

// Logger returns the application logger.
func (a *App) Logger() *zerolog.Logger { return a.logger }

// OutputFormat returns the configured output format.
func (a *App) OutputFormat() string { return a.config.Format }

// Client returns the curator client, opening the configured backend on
// first use. It is safe for concurrent use.
func (a *App) Client() (curator.Client, error) {
	a.mu.RLock()
	if a.client != nil {
		c := a.client
		a.mu.RUnlock()
		return c, nil
	}
	a.mu.RUnlock()

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.client != nil {
		return a.client, nil
	}

	store, err := a.openStore()
	if err != nil {
		return nil, err
	}

	c, err := curator.New(
		curator.WithStore(store, a.config.Backend),
		curator.WithMaxVersionsPerItem(a.config.MaxVersionsPerItem),
		curator.WithMinVersions(a.config.MinVersions),
		curator.WithRetentionPolicy(a.retentionPolicy()),
		curator.WithCleanupInterval(a.config.CleanupInterval),
	)
	if err != nil {
		return nil, errors.WrapResource("create", "client", a.config.Backend, err)
	}

	a.logger.Debug().
		Str("backend", a.config.Backend).
		Str("data_dir", a.config.DataDir).
		Msg("Opened version store")

	a.client = c
	return c, nil
}

// retentionPolicy builds the cleanup policy from configuration.
func (a *App) retentionPolicy() versions.CleanupOptions {
	policy := versions.DefaultCleanupOptions()
	policy.OlderThanDays = a.config.RetentionDays
	policy.KeepMinimumVersions = a.config.KeepMinimumVersions
	policy.PreserveTagged = a.config.PreserveTagged
	return policy
}

func (a *App) openStore() (versions.Store, error) {
	switch a.config.Backend {
	case BackendMemory:
		return versions.NewMemoryStore(), nil
	case BackendBadger:
		cfg := badger.DefaultConfig(filepath.Join(a.config.DataDir, "badger"))
		cfg.Logger = a.logger
		store, err := badger.Open(cfg)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, store)
		return store, nil
	default:
		store, err := files.NewOS(filepath.Join(a.config.DataDir, "entities"))
		if err != nil {
			return nil, err
		}
		return store, nil
	}
}

// Shutdown stops background work and closes the storage backend.
func (a *App) Shutdown(_ context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	var firstErr error
	if a.client != nil {
		if err := a.client.Close(); err != nil {
			a.logger.Error().Err(err).Msg("Failed to stop client during shutdown")
			firstErr = err
		}
	}
	for _, c := range a.closers {
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	a.client = nil
	a.closers = nil
	return firstErr
}

// Option is a functional option for configuring the App.
type Option func(*App) error

// WithConfig sets a custom configuration.
func WithConfig(config *Config) Option {
	return func(a *App) error {
		a.config = config
		return nil
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *zerolog.Logger) Option {
	return func(a *App) error {
		a.logger = logger
		return nil
	}
}

// WithOutput redirects command output, which defaults to stdout.
func WithOutput(w io.Writer) Option {
	return func(a *App) error {
		a.out = w
		return nil
	}
}

// WithClient sets a custom client (useful for testing).
func WithClient(c curator.Client) Option {
	return func(a *App) error {
		a.client = c
		return nil
	}
}
