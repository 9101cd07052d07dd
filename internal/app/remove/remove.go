package remove

import (
	"context"
	"errors"
	"fmt"

	"github.com/oklog/ulid/v2"

	"github.com/slok/extagger/internal/log"
	"github.com/slok/extagger/internal/model"
	"github.com/slok/extagger/internal/storage"
)

// ServiceConfig is the configuration for the remove service.
type ServiceConfig struct {
	Repository storage.Repository
	Logger     log.Logger
}

func (c *ServiceConfig) defaults() error {
	if c.Repository == nil {
		return fmt.Errorf("repository is required")
	}

	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "app.Remove"})

	return nil
}

// Service removes a registered handler.
type Service struct {
	repo   storage.Repository
	logger log.Logger
}

// NewService creates a new remove service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Service{
		repo:   cfg.Repository,
		logger: cfg.Logger,
	}, nil
}

// Request represents the remove request parameters.
type Request struct {
	// NameOrID is the handler name or ID to remove.
	NameOrID string
}

// Run removes a handler by name or ID and returns the removed handler.
func (s *Service) Run(ctx context.Context, req Request) (*model.Handler, error) {
	s.logger.Debugf("removing handler: %s", req.NameOrID)

	// Lookup handler by name first, then by ID if it's a ULID.
	h, err := s.repo.GetHandlerByName(ctx, req.NameOrID)
	if errors.Is(err, model.ErrNotFound) && isULID(req.NameOrID) {
		h, err = s.repo.GetHandler(ctx, req.NameOrID)
	}
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return nil, fmt.Errorf("handler not found: %s: %w", req.NameOrID, model.ErrNotFound)
		}
		return nil, fmt.Errorf("could not get handler: %w", err)
	}

	if err := s.repo.DeleteHandler(ctx, h.ID); err != nil {
		return nil, fmt.Errorf("could not delete handler from repository: %w", err)
	}

	s.logger.Infof("removed handler: %s (ID: %s)", h.Name, h.ID)
	return h, nil
}

func isULID(s string) bool {
	_, err := ulid.ParseStrict(s)
	return err == nil
}
