package lib

import (
	"context"
	"fmt"

	"github.com/slok/extagger/internal/app/inspect"
	"github.com/slok/extagger/internal/app/list"
	"github.com/slok/extagger/internal/app/register"
	"github.com/slok/extagger/internal/app/remove"
	storageio "github.com/slok/extagger/internal/storage/io"
)

// ParseHandler decodes a YAML handler definition, the same format the extagger CLI
// registers. The returned handler has no ID.
func ParseHandler(data []byte) (*Handler, error) {
	h, err := storageio.UnmarshalHandler(data)
	if err != nil {
		return nil, mapError(err)
	}

	result := fromInternalHandler(h)
	return &result, nil
}

// RegisterHandler stores a new named handler.
func (c *Client) RegisterHandler(ctx context.Context, opts RegisterHandlerOpts) (*Handler, error) {
	svc, err := register.NewService(register.ServiceConfig{
		Repository: c.repo,
		Logger:     c.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create service: %w", err)
	}

	h, err := svc.Register(ctx, register.RegisterOptions{
		Name:   opts.Name,
		Config: toInternalHandlerConfig(opts.Config),
	})
	if err != nil {
		return nil, mapError(err)
	}

	result := fromInternalHandler(*h)
	return &result, nil
}

// GetHandler returns a registered handler by name or ID.
func (c *Client) GetHandler(ctx context.Context, nameOrID string) (*Handler, error) {
	svc, err := inspect.NewService(inspect.ServiceConfig{
		Repository: c.repo,
		Logger:     c.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create service: %w", err)
	}

	h, err := svc.Run(ctx, inspect.Request{NameOrID: nameOrID})
	if err != nil {
		return nil, mapError(err)
	}

	result := fromInternalHandler(*h)
	return &result, nil
}

// ListHandlers returns the registered handlers, newest first.
// Pass nil opts to list all of them.
func (c *Client) ListHandlers(ctx context.Context, opts *ListHandlersOpts) ([]Handler, error) {
	svc, err := list.NewService(list.ServiceConfig{
		Repository: c.repo,
		Logger:     c.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create service: %w", err)
	}

	req := list.Request{}
	if opts != nil {
		req.NamePrefix = opts.NamePrefix
	}

	hs, err := svc.Run(ctx, req)
	if err != nil {
		return nil, mapError(err)
	}

	return fromInternalHandlerList(hs), nil
}

// RemoveHandler removes a registered handler by name or ID.
func (c *Client) RemoveHandler(ctx context.Context, nameOrID string) error {
	svc, err := remove.NewService(remove.ServiceConfig{
		Repository: c.repo,
		Logger:     c.logger,
	})
	if err != nil {
		return fmt.Errorf("could not create service: %w", err)
	}

	if _, err := svc.Run(ctx, remove.Request{NameOrID: nameOrID}); err != nil {
		return mapError(err)
	}

	return nil
}
