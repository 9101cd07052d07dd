package register

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/slok/extagger/internal/log"
	"github.com/slok/extagger/internal/model"
	"github.com/slok/extagger/internal/storage"
)

// ServiceConfig is the configuration for the register service.
type ServiceConfig struct {
	Repository storage.Repository
	// TimeNow is the clock used for the creation time, defaults to time.Now.
	TimeNow func() time.Time
	Logger  log.Logger
}

func (c *ServiceConfig) defaults() error {
	if c.Repository == nil {
		return fmt.Errorf("repository is required")
	}
	if c.TimeNow == nil {
		c.TimeNow = time.Now
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "app.Register"})
	return nil
}

// Service handles handler registration business logic.
type Service struct {
	repo    storage.Repository
	timeNow func() time.Time
	logger  log.Logger
}

// NewService creates a new register service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Service{
		repo:    cfg.Repository,
		timeNow: cfg.TimeNow,
		logger:  cfg.Logger,
	}, nil
}

// RegisterOptions are the options for registering a handler.
type RegisterOptions struct {
	Name   string
	Config model.HandlerConfig
}

// Register stores a new named handler.
func (s *Service) Register(ctx context.Context, opts RegisterOptions) (*model.Handler, error) {
	now := s.timeNow().UTC()
	h := model.Handler{
		ID:        ulid.MustNew(ulid.Timestamp(now), ulid.DefaultEntropy()).String(),
		Name:      opts.Name,
		Config:    opts.Config,
		CreatedAt: now,
	}

	// 1. Validate.
	if err := h.Validate(); err != nil {
		return nil, fmt.Errorf("invalid handler: %w", err)
	}

	// 2. Check name uniqueness.
	_, err := s.repo.GetHandlerByName(ctx, h.Name)
	if err == nil {
		return nil, fmt.Errorf("handler with name %q already exists: %w", h.Name, model.ErrAlreadyExists)
	}
	if !errors.Is(err, model.ErrNotFound) {
		return nil, fmt.Errorf("could not check name uniqueness: %w", err)
	}

	// 3. Save.
	if err := s.repo.CreateHandler(ctx, h); err != nil {
		return nil, fmt.Errorf("could not save handler: %w", err)
	}

	s.logger.Infof("Registered handler: %s (%s)", h.Name, h.ID)

	return &h, nil
}
