package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/slok/extagger/internal/log"
	"github.com/slok/extagger/internal/model"
	storageio "github.com/slok/extagger/internal/storage/io"
	"github.com/slok/extagger/internal/storage/sqlite/migrations"
)

// RepositoryConfig is the configuration for the SQLite repository.
type RepositoryConfig struct {
	DBPath string
	Logger log.Logger
}

func (c *RepositoryConfig) defaults() error {
	if c.DBPath == "" {
		return fmt.Errorf("db path is required")
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "storage.SQLite"})
	return nil
}

// Repository is a SQLite implementation of storage.Repository. Handler configurations are
// stored in their YAML representation.
type Repository struct {
	db     *sql.DB
	logger log.Logger
}

// NewRepository creates a new SQLite repository.
func NewRepository(ctx context.Context, cfg RepositoryConfig) (*Repository, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	dir := filepath.Dir(cfg.DBPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("could not create db directory: %w", err)
	}

	dsn := fmt.Sprintf("%s?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", cfg.DBPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("could not open database: %w", err)
	}

	migrator, err := migrations.NewMigrator(migrations.MigratorConfig{DB: db, Logger: cfg.Logger})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("could not create migrator: %w", err)
	}
	if err := migrator.Up(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("could not run migrations: %w", err)
	}

	cfg.Logger.Debugf("SQLite repository initialized at %s", cfg.DBPath)

	return &Repository{db: db, logger: cfg.Logger}, nil
}

// Close closes the database connection.
func (r *Repository) Close() error { return r.db.Close() }

// CreateHandler creates a new handler in the repository.
func (r *Repository) CreateHandler(ctx context.Context, h model.Handler) error {
	if h.ID == "" {
		return fmt.Errorf("handler id is required: %w", model.ErrNotValid)
	}
	if err := h.Validate(); err != nil {
		return fmt.Errorf("invalid handler: %w", err)
	}

	config, err := storageio.MarshalHandler(h)
	if err != nil {
		return fmt.Errorf("could not encode handler: %w", err)
	}

	query := `
		INSERT INTO handlers (id, name, command, config, created_at)
		VALUES (?, ?, ?, ?, ?)
	`

	_, err = r.db.ExecContext(ctx, query, h.ID, h.Name, h.Config.Command, string(config), h.CreatedAt.Unix())
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed: handlers.") {
			return fmt.Errorf("handler already exists: %w", model.ErrAlreadyExists)
		}
		return fmt.Errorf("could not insert handler: %w", err)
	}

	r.logger.Debugf("Created handler in repository: %s", h.ID)
	return nil
}

// GetHandler retrieves a handler by ID.
func (r *Repository) GetHandler(ctx context.Context, id string) (*model.Handler, error) {
	query := `SELECT id, config, created_at FROM handlers WHERE id = ?`

	h, err := r.scanOne(ctx, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("handler %s: %w", id, model.ErrNotFound)
		}
		return nil, fmt.Errorf("could not query handler: %w", err)
	}

	return h, nil
}

// GetHandlerByName retrieves a handler by name.
func (r *Repository) GetHandlerByName(ctx context.Context, name string) (*model.Handler, error) {
	query := `SELECT id, config, created_at FROM handlers WHERE name = ?`

	h, err := r.scanOne(ctx, query, name)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("handler with name %s: %w", name, model.ErrNotFound)
		}
		return nil, fmt.Errorf("could not query handler: %w", err)
	}

	return h, nil
}

// ListHandlers returns all handlers, newest first.
func (r *Repository) ListHandlers(ctx context.Context) ([]model.Handler, error) {
	query := `SELECT id, config, created_at FROM handlers ORDER BY created_at DESC, name ASC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("could not query handlers: %w", err)
	}
	defer rows.Close()

	var handlers []model.Handler
	for rows.Next() {
		h, err := r.scanRow(rows)
		if err != nil {
			return nil, fmt.Errorf("could not scan row: %w", err)
		}
		handlers = append(handlers, h)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return handlers, nil
}

// DeleteHandler deletes a handler.
func (r *Repository) DeleteHandler(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM handlers WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("could not delete handler: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("could not get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("handler %s: %w", id, model.ErrNotFound)
	}

	r.logger.Debugf("Deleted handler from repository: %s", id)
	return nil
}

func (r *Repository) scanOne(ctx context.Context, query string, arg any) (*model.Handler, error) {
	row := r.db.QueryRowContext(ctx, query, arg)
	h, err := r.scanRow(row)
	if err != nil {
		return nil, err
	}
	return &h, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func (r *Repository) scanRow(s scanner) (model.Handler, error) {
	var (
		id        string
		config    string
		createdAt int64
	)
	if err := s.Scan(&id, &config, &createdAt); err != nil {
		return model.Handler{}, err
	}

	h, err := storageio.UnmarshalHandler([]byte(config))
	if err != nil {
		return model.Handler{}, fmt.Errorf("could not decode handler %s: %w", id, err)
	}
	h.ID = id
	h.CreatedAt = time.Unix(createdAt, 0).UTC()

	return h, nil
}
