package lib

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/slok/extagger/internal/conventions"
	"github.com/slok/extagger/internal/log"
	"github.com/slok/extagger/internal/metrics"
	metricsprometheus "github.com/slok/extagger/internal/metrics/prometheus"
	"github.com/slok/extagger/internal/process"
	"github.com/slok/extagger/internal/storage"
	"github.com/slok/extagger/internal/storage/memory"
	"github.com/slok/extagger/internal/storage/sqlite"
)

// Config configures the SDK client.
//
// All fields are optional and have sensible defaults. At minimum, an empty
// Config{} will use ~/.extagger/extagger.db for the handler registry.
type Config struct {
	// DBPath is the SQLite handler registry path.
	// Default: ~/.extagger/extagger.db.
	DBPath string

	// DataDir is the base directory for extagger data.
	// Default: ~/.extagger.
	DataDir string

	// TempDir is where the exchange files are created for handlers without their
	// own temp dir.
	// Default: the system temp dir.
	TempDir string

	// Logger receives structured log output from the SDK.
	// Default: noop (silent). See the log sub-package for the interface.
	Logger log.Logger

	// MetricsRegisterer registers the tagging Prometheus metrics.
	// Default: no metrics.
	MetricsRegisterer prometheus.Registerer

	// InMemoryRegistry keeps the registered handlers in memory instead of SQLite,
	// they are lost when the client is closed. DBPath is ignored.
	InMemoryRegistry bool
}

func (c *Config) defaults() error {
	if c.DataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("could not get user home dir: %w", err)
		}
		c.DataDir = filepath.Join(home, conventions.DefaultDataDir)
	}

	if c.DBPath == "" {
		c.DBPath = conventions.DBPath(c.DataDir)
	}

	if c.Logger == nil {
		c.Logger = log.Noop
	}

	return nil
}

// Client is the main SDK entry point for tagging documents programmatically.
//
// Create a Client with [New] and release its resources with [Client.Close].
// A Client is safe for concurrent use.
type Client struct {
	repo    storage.Repository
	runner  process.Runner
	metrics metrics.Recorder
	tempDir string
	logger  log.Logger
	closeFn func() error
}

// New creates a new SDK client backed by a SQLite handler registry.
//
// The caller must call [Client.Close] when done to release the database
// connection. Typically used with defer:
//
//	client, err := lib.New(ctx, lib.Config{})
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
func New(ctx context.Context, cfg Config) (*Client, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	var recorder metrics.Recorder = metrics.Noop
	if cfg.MetricsRegisterer != nil {
		r, err := metricsprometheus.NewRecorder(cfg.MetricsRegisterer)
		if err != nil {
			return nil, fmt.Errorf("could not create metrics recorder: %w", err)
		}
		recorder = r
	}

	runner, err := process.NewExecRunner(process.ExecRunnerConfig{Logger: cfg.Logger})
	if err != nil {
		return nil, fmt.Errorf("could not create process runner: %w", err)
	}

	c := &Client{
		runner:  runner,
		metrics: recorder,
		tempDir: cfg.TempDir,
		logger:  cfg.Logger,
	}

	if cfg.InMemoryRegistry {
		repo, err := memory.NewRepository(memory.RepositoryConfig{Logger: cfg.Logger})
		if err != nil {
			return nil, fmt.Errorf("could not create repository: %w", err)
		}
		c.repo = repo
		return c, nil
	}

	repo, err := sqlite.NewRepository(ctx, sqlite.RepositoryConfig{
		DBPath: cfg.DBPath,
		Logger: cfg.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create repository: %w", err)
	}
	c.repo = repo
	c.closeFn = repo.Close

	return c, nil
}

// Close releases resources held by the client, including the database connection.
// After Close returns, the client must not be used.
func (c *Client) Close() error {
	if c.closeFn != nil {
		return c.closeFn()
	}
	return nil
}
