package list

import (
	"context"
	"fmt"
	"strings"

	"github.com/slok/extagger/internal/log"
	"github.com/slok/extagger/internal/model"
	"github.com/slok/extagger/internal/storage"
)

// ServiceConfig is the configuration for the list service.
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
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "app.List"})

	return nil
}

// Service lists registered handlers with optional filtering.
type Service struct {
	repo   storage.Repository
	logger log.Logger
}

// NewService creates a new list service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Service{
		repo:   cfg.Repository,
		logger: cfg.Logger,
	}, nil
}

// Request represents the list request parameters.
type Request struct {
	// NamePrefix is an optional filter to only show handlers whose name starts with it.
	NamePrefix string
}

// Run lists all handlers, newest first.
func (s *Service) Run(ctx context.Context, req Request) ([]model.Handler, error) {
	s.logger.Debugf("listing handlers with name prefix: %q", req.NamePrefix)

	handlers, err := s.repo.ListHandlers(ctx)
	if err != nil {
		return nil, fmt.Errorf("could not list handlers: %w", err)
	}

	if req.NamePrefix != "" {
		filtered := make([]model.Handler, 0, len(handlers))
		for _, h := range handlers {
			if strings.HasPrefix(h.Name, req.NamePrefix) {
				filtered = append(filtered, h)
			}
		}
		handlers = filtered
	}

	s.logger.Debugf("found %d handlers", len(handlers))
	return handlers, nil
}
