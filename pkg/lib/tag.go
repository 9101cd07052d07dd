package lib

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/slok/extagger/internal/app/inspect"
	"github.com/slok/extagger/internal/app/tag"
	"github.com/slok/extagger/internal/metaformat"
	"github.com/slok/extagger/internal/model"
	utilsenv "github.com/slok/extagger/internal/utils/env"
)

// TagOpts are the document and per call options of a tagging.
type TagOpts struct {
	// Reference is the document reference, bound to ${REFERENCE}.
	Reference string
	// Content is the document content (optional).
	Content io.Reader
	// Metadata is the document metadata, it's updated in place with the harvested
	// fields when the tagging succeeds. Required.
	Metadata Metadata
	// Output receives the transformed content (optional).
	Output io.Writer
	// Env is set over the handler environment.
	Env map[string]string
}

// TagResult is the result of a successful tagging.
type TagResult struct {
	// InvocationID identifies the execution in the logs.
	InvocationID string
	// ExitCode is the handler exit code.
	ExitCode int
	// Warnings are the extraction rule misconfigurations found while extracting.
	Warnings []string
}

// TagError is returned by a failed tagging.
type TagError struct {
	// Stage is the tagging stage that failed (e.g. run-process).
	Stage string
	// Token is the placeholder involved (e.g. REFERENCE), empty when not applicable.
	Token string
	// RuleIndex is the extraction rule involved, -1 when not applicable.
	RuleIndex int

	err error
}

func (e *TagError) Error() string { return e.err.Error() }
func (e *TagError) Unwrap() error { return e.err }

// Tag runs a registered handler (by name or ID) on a document.
func (c *Client) Tag(ctx context.Context, nameOrID string, opts TagOpts) (*TagResult, error) {
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

	return c.tag(ctx, h.Config, opts)
}

// TagWithConfig runs an unregistered handler configuration on a document.
func (c *Client) TagWithConfig(ctx context.Context, cfg HandlerConfig, opts TagOpts) (*TagResult, error) {
	return c.tag(ctx, toInternalHandlerConfig(cfg), opts)
}

func (c *Client) tag(ctx context.Context, cfg model.HandlerConfig, opts TagOpts) (*TagResult, error) {
	svc, err := tag.NewService(tag.ServiceConfig{
		Runner:          c.runner,
		Formats:         metaformat.NewDefaultRegistry(),
		TempDir:         c.tempDir,
		MetricsRecorder: c.metrics,
		Logger:          c.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create service: %w", err)
	}

	if len(opts.Env) > 0 {
		cfg.Env = utilsenv.MergeMaps(cfg.Env, opts.Env)
	}

	req := tag.Request{
		Reference: opts.Reference,
		Content:   opts.Content,
		Output:    opts.Output,
		Config:    cfg,
	}
	if opts.Metadata != nil {
		req.Metadata = model.Metadata(opts.Metadata)
	}

	res, err := svc.Tag(ctx, req)
	if err != nil {
		return nil, mapTagError(err)
	}

	result := &TagResult{
		InvocationID: res.InvocationID,
		ExitCode:     res.ExitCode,
	}
	for _, w := range res.Warnings {
		result.Warnings = append(result.Warnings, w.String())
	}

	return result, nil
}

func mapTagError(err error) error {
	var stErr *model.StageError
	if !errors.As(err, &stErr) {
		return mapError(err)
	}

	return &TagError{
		Stage:     string(stErr.Stage),
		Token:     string(stErr.Token),
		RuleIndex: stErr.RuleIndex,
		err:       mapError(err),
	}
}
