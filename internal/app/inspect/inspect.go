package inspect

import (
	"context"
	"errors"
	"fmt"

	"github.com/oklog/ulid/v2"

	"github.com/slok/extagger/internal/log"
	"github.com/slok/extagger/internal/model"
	"github.com/slok/extagger/internal/storage"
)

// ServiceConfig is the configuration for the inspect service.
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
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "app.Inspect"})

	return nil
}

// Service retrieves registered handlers.
type Service struct {
	repo   storage.Repository
	logger log.Logger
}

// NewService creates a new inspect service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Service{
		repo:   cfg.Repository,
		logger: cfg.Logger,
	}, nil
}

// Request represents the inspect request parameters.
type Request struct {
	// NameOrID is the handler name or ID to get.
	NameOrID string
}

// Run retrieves a handler by name or ID.
// It tries name lookup first, then ID lookup if the input is a ULID.
func (s *Service) Run(ctx context.Context, req Request) (*model.Handler, error) {
	s.logger.Debugf("getting handler: %s", req.NameOrID)

	h, err := s.repo.GetHandlerByName(ctx, req.NameOrID)
	if err == nil {
		s.logger.Debugf("found handler by name: %s", h.ID)
		return h, nil
	}

	if errors.Is(err, model.ErrNotFound) && isULID(req.NameOrID) {
		s.logger.Debugf("name lookup failed, trying ID lookup")
		h, err = s.repo.GetHandler(ctx, req.NameOrID)
		if err == nil {
			s.logger.Debugf("found handler by ID: %s", h.ID)
			return h, nil
		}
	}

	if errors.Is(err, model.ErrNotFound) {
		return nil, fmt.Errorf("handler not found: %s: %w", req.NameOrID, model.ErrNotFound)
	}

	return nil, fmt.Errorf("could not get handler: %w", err)
}

func isULID(s string) bool {
	_, err := ulid.ParseStrict(s)
	return err == nil
}
