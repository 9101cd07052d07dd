package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/slok/extagger/internal/log"
	"github.com/slok/extagger/internal/model"
)

// RepositoryConfig is the configuration for the memory repository.
type RepositoryConfig struct {
	Logger log.Logger
}

func (c *RepositoryConfig) defaults() error {
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "storage.Memory"})
	return nil
}

// Repository is an in-memory implementation of storage.Repository.
type Repository struct {
	handlers map[string]model.Handler
	mu       sync.RWMutex
	logger   log.Logger
}

// NewRepository creates a new memory repository.
func NewRepository(cfg RepositoryConfig) (*Repository, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Repository{
		handlers: make(map[string]model.Handler),
		logger:   cfg.Logger,
	}, nil
}

// CreateHandler creates a new handler in the repository.
func (r *Repository) CreateHandler(ctx context.Context, h model.Handler) error {
	if h.ID == "" {
		return fmt.Errorf("handler id is required: %w", model.ErrNotValid)
	}
	if err := h.Validate(); err != nil {
		return fmt.Errorf("invalid handler: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.handlers[h.ID]; ok {
		return fmt.Errorf("handler with id %s: %w", h.ID, model.ErrAlreadyExists)
	}
	for _, existing := range r.handlers {
		if existing.Name == h.Name {
			return fmt.Errorf("handler with name %s: %w", h.Name, model.ErrAlreadyExists)
		}
	}

	r.handlers[h.ID] = h
	r.logger.Debugf("Created handler in repository: %s", h.ID)

	return nil
}

// GetHandler retrieves a handler by ID.
func (r *Repository) GetHandler(ctx context.Context, id string) (*model.Handler, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	h, ok := r.handlers[id]
	if !ok {
		return nil, fmt.Errorf("handler %s: %w", id, model.ErrNotFound)
	}

	return &h, nil
}

// GetHandlerByName retrieves a handler by name.
func (r *Repository) GetHandlerByName(ctx context.Context, name string) (*model.Handler, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, h := range r.handlers {
		if h.Name == name {
			return &h, nil
		}
	}

	return nil, fmt.Errorf("handler with name %s: %w", name, model.ErrNotFound)
}

// ListHandlers returns all handlers, newest first.
func (r *Repository) ListHandlers(ctx context.Context) ([]model.Handler, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	handlers := make([]model.Handler, 0, len(r.handlers))
	for _, h := range r.handlers {
		handlers = append(handlers, h)
	}
	sort.SliceStable(handlers, func(i, j int) bool {
		if handlers[i].CreatedAt.Equal(handlers[j].CreatedAt) {
			return handlers[i].Name < handlers[j].Name
		}
		return handlers[i].CreatedAt.After(handlers[j].CreatedAt)
	})

	return handlers, nil
}

// DeleteHandler deletes a handler.
func (r *Repository) DeleteHandler(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.handlers[id]; !ok {
		return fmt.Errorf("handler %s: %w", id, model.ErrNotFound)
	}

	delete(r.handlers, id)
	r.logger.Debugf("Deleted handler from repository: %s", id)

	return nil
}
