package lib

import (
	"errors"
	"time"

	"github.com/slok/extagger/internal/model"
)

// Stream is the handler output stream an extraction rule reads from.
type Stream string

const (
	// StreamBoth applies the rule to stdout and stderr (default).
	StreamBoth Stream = "both"
	// StreamStdout applies the rule only to stdout.
	StreamStdout Stream = "stdout"
	// StreamStderr applies the rule only to stderr.
	StreamStderr Stream = "stderr"
)

// Metadata is the document metadata, a field can have multiple values.
type Metadata map[string][]string

// FieldSpec describes how a rule match becomes a metadata field value. It is one of
// [FixedField] or [DynamicField].
type FieldSpec interface {
	fieldSpec()
}

// FixedField stores the ValueGroup capture under a constant field name. A ValueGroup
// of 0 uses the whole match.
type FixedField struct {
	Name       string
	ValueGroup int
}

// DynamicField takes the field name from the NameGroup capture and the value from
// the ValueGroup capture.
type DynamicField struct {
	NameGroup  int
	ValueGroup int
}

func (FixedField) fieldSpec()   {}
func (DynamicField) fieldSpec() {}

// ExtractionRule is a regular expression applied line by line to the handler output.
type ExtractionRule struct {
	Pattern string
	// Stream selects the output stream, empty means both.
	Stream Stream
	Field  FieldSpec
}

// ExitPolicy decides which handler exit codes are successful.
type ExitPolicy struct {
	// AcceptedExitCodes are the accepted exit codes, empty means only 0.
	AcceptedExitCodes []int
	// AcceptAny accepts every exit code.
	AcceptAny bool
}

// HandlerConfig is the configuration of an external handler.
type HandlerConfig struct {
	// Command is the command template, see the package docs for the placeholders.
	Command    string
	WorkingDir string
	// InputDisabled doesn't send the document content to the handler.
	InputDisabled bool
	// PipeMetadata writes the input metadata to stdin when the command has no
	// ${INPUT_META} placeholder.
	PipeMetadata bool
	// MetadataInputFormat is the ${INPUT_META} format (json, yaml, xml, properties).
	MetadataInputFormat string
	// MetadataOutputFormat is the ${OUTPUT_META} format (json, yaml, xml, properties).
	MetadataOutputFormat string
	ExtractionRules      []ExtractionRule
	// Env is set over the inherited environment.
	Env     map[string]string
	TempDir string
	// KeepTempFiles doesn't remove the exchange files, useful to debug handlers.
	KeepTempFiles bool
	// Timeout bounds the handler execution, 0 means no timeout.
	Timeout    time.Duration
	ExitPolicy ExitPolicy
	// StrictExtraction fails when a rule references a capture group its pattern
	// doesn't have, instead of using the whole match.
	StrictExtraction bool
}

// Handler is a registered handler.
type Handler struct {
	// ID is the unique identifier (ULID) assigned at registration.
	ID        string
	Name      string
	Config    HandlerConfig
	CreatedAt time.Time
}

// RegisterHandlerOpts are the options for [Client.RegisterHandler].
type RegisterHandlerOpts struct {
	Name   string
	Config HandlerConfig
}

// ListHandlersOpts are the options for [Client.ListHandlers].
type ListHandlersOpts struct {
	// NamePrefix only returns the handlers whose name starts with it.
	NamePrefix string
}

// Sentinel errors, they can be checked with [errors.Is].
var (
	// ErrNotFound is returned when a handler is not found.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists is returned when a handler with the same name already exists.
	ErrAlreadyExists = errors.New("already exists")
	// ErrNotValid is returned when a handler definition is not valid.
	ErrNotValid = errors.New("not valid")

	// ErrConfiguration is returned on unbound placeholders, unknown formats or invalid rules.
	ErrConfiguration = errors.New("configuration error")
	// ErrProcessLaunch is returned when the handler process could not be started.
	ErrProcessLaunch = errors.New("process launch error")
	// ErrProcessExecution is returned when the handler exit code is not accepted.
	ErrProcessExecution = errors.New("process execution error")
	// ErrIO is returned on exchange file failures.
	ErrIO = errors.New("io error")
	// ErrTimeout is returned when the handler exceeded its timeout or the context was cancelled.
	ErrTimeout = errors.New("timeout error")
	// ErrExtraction is returned on strict extraction rule failures.
	ErrExtraction = errors.New("extraction error")
)

// --- Handler conversion helpers ---

func toInternalHandlerConfig(c HandlerConfig) model.HandlerConfig {
	cfg := model.HandlerConfig{
		Command:              c.Command,
		WorkingDir:           c.WorkingDir,
		InputDisabled:        c.InputDisabled,
		PipeMetadata:         c.PipeMetadata,
		MetadataInputFormat:  c.MetadataInputFormat,
		MetadataOutputFormat: c.MetadataOutputFormat,
		Env:                  c.Env,
		TempDir:              c.TempDir,
		KeepTempFiles:        c.KeepTempFiles,
		Timeout:              c.Timeout,
		ExitPolicy: model.ExitPolicy{
			AcceptedExitCodes: c.ExitPolicy.AcceptedExitCodes,
			AcceptAny:         c.ExitPolicy.AcceptAny,
		},
		StrictExtraction: c.StrictExtraction,
	}

	for _, r := range c.ExtractionRules {
		rule := model.ExtractionRule{Pattern: r.Pattern, Stream: model.Stream(r.Stream)}
		switch f := r.Field.(type) {
		case FixedField:
			rule.Field = model.FixedField{Name: f.Name, ValueGroup: f.ValueGroup}
		case *FixedField:
			rule.Field = model.FixedField{Name: f.Name, ValueGroup: f.ValueGroup}
		case DynamicField:
			rule.Field = model.DynamicField{NameGroup: f.NameGroup, ValueGroup: f.ValueGroup}
		case *DynamicField:
			rule.Field = model.DynamicField{NameGroup: f.NameGroup, ValueGroup: f.ValueGroup}
		}
		cfg.ExtractionRules = append(cfg.ExtractionRules, rule)
	}

	return cfg
}

func fromInternalHandlerConfig(c model.HandlerConfig) HandlerConfig {
	cfg := HandlerConfig{
		Command:              c.Command,
		WorkingDir:           c.WorkingDir,
		InputDisabled:        c.InputDisabled,
		PipeMetadata:         c.PipeMetadata,
		MetadataInputFormat:  c.MetadataInputFormat,
		MetadataOutputFormat: c.MetadataOutputFormat,
		Env:                  c.Env,
		TempDir:              c.TempDir,
		KeepTempFiles:        c.KeepTempFiles,
		Timeout:              c.Timeout,
		ExitPolicy: ExitPolicy{
			AcceptedExitCodes: c.ExitPolicy.AcceptedExitCodes,
			AcceptAny:         c.ExitPolicy.AcceptAny,
		},
		StrictExtraction: c.StrictExtraction,
	}

	for _, r := range c.ExtractionRules {
		rule := ExtractionRule{Pattern: r.Pattern, Stream: Stream(r.Stream)}
		switch f := r.Field.(type) {
		case model.FixedField:
			rule.Field = FixedField{Name: f.Name, ValueGroup: f.ValueGroup}
		case model.DynamicField:
			rule.Field = DynamicField{NameGroup: f.NameGroup, ValueGroup: f.ValueGroup}
		}
		cfg.ExtractionRules = append(cfg.ExtractionRules, rule)
	}

	return cfg
}

func fromInternalHandler(h model.Handler) Handler {
	return Handler{
		ID:        h.ID,
		Name:      h.Name,
		Config:    fromInternalHandlerConfig(h.Config),
		CreatedAt: h.CreatedAt,
	}
}

func fromInternalHandlerList(hs []model.Handler) []Handler {
	result := make([]Handler, len(hs))
	for i, h := range hs {
		result[i] = fromInternalHandler(h)
	}
	return result
}

// --- Error mapping helpers ---

var sentinels = []struct {
	internal error
	public   error
}{
	{internal: model.ErrNotFound, public: ErrNotFound},
	{internal: model.ErrAlreadyExists, public: ErrAlreadyExists},
	{internal: model.ErrNotValid, public: ErrNotValid},
	{internal: model.ErrConfiguration, public: ErrConfiguration},
	{internal: model.ErrProcessLaunch, public: ErrProcessLaunch},
	{internal: model.ErrProcessExecution, public: ErrProcessExecution},
	{internal: model.ErrIO, public: ErrIO},
	{internal: model.ErrTimeout, public: ErrTimeout},
	{internal: model.ErrExtraction, public: ErrExtraction},
}

func mapError(err error) error {
	if err == nil {
		return nil
	}

	me := &mappedError{original: err}
	for _, s := range sentinels {
		if errors.Is(err, s.internal) {
			me.sentinels = append(me.sentinels, s.public)
		}
	}
	if len(me.sentinels) == 0 {
		return err
	}

	return me
}

type mappedError struct {
	original  error
	sentinels []error
}

func (e *mappedError) Error() string { return e.original.Error() }

func (e *mappedError) Is(target error) bool {
	for _, s := range e.sentinels {
		if target == s {
			return true
		}
	}
	return false
}

func (e *mappedError) Unwrap() error { return e.original }
