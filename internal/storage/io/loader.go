package io

import (
	"bytes"
	"context"
	"fmt"
	"io/fs"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/slok/extagger/internal/model"
)

// HandlerYAMLRepository loads handler definitions from YAML files.
type HandlerYAMLRepository struct {
	fs fs.FS
}

// NewHandlerYAMLRepository creates a new YAML handler repository.
func NewHandlerYAMLRepository(filesystem fs.FS) *HandlerYAMLRepository {
	return &HandlerYAMLRepository{fs: filesystem}
}

// GetHandler loads a handler definition from a YAML file and returns a validated domain model.
// The returned handler has no ID.
func (r *HandlerYAMLRepository) GetHandler(ctx context.Context, path string) (model.Handler, error) {
	data, err := fs.ReadFile(r.fs, path)
	if err != nil {
		return model.Handler{}, fmt.Errorf("reading handler file: %w", err)
	}

	if ctx.Err() != nil {
		return model.Handler{}, ctx.Err()
	}

	return UnmarshalHandler(data)
}

// UnmarshalHandler decodes and validates a YAML handler definition.
func UnmarshalHandler(data []byte) (model.Handler, error) {
	var h Handler
	if err := yaml.Unmarshal(data, &h); err != nil {
		return model.Handler{}, fmt.Errorf("parsing YAML: %w", err)
	}

	if err := h.validate(); err != nil {
		return model.Handler{}, fmt.Errorf("invalid handler: %w: %w", err, model.ErrNotValid)
	}

	return h.toModel()
}

// MarshalHandler encodes a handler definition as YAML, it can be loaded back with UnmarshalHandler.
func MarshalHandler(h model.Handler) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(FromModel(h)); err != nil {
		return nil, fmt.Errorf("encoding YAML: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("encoding YAML: %w", err)
	}

	return buf.Bytes(), nil
}

// Handler represents the YAML structure of a handler definition.
type Handler struct {
	Name             string            `json:"name" yaml:"name"`
	Command          string            `json:"command" yaml:"command"`
	WorkingDir       string            `json:"working_dir,omitempty" yaml:"working_dir,omitempty"`
	InputDisabled    bool              `json:"input_disabled,omitempty" yaml:"input_disabled,omitempty"`
	PipeMetadata     bool              `json:"pipe_metadata,omitempty" yaml:"pipe_metadata,omitempty"`
	Metadata         MetadataConfig    `json:"metadata,omitempty" yaml:"metadata,omitempty"`
	Env              map[string]string `json:"env,omitempty" yaml:"env,omitempty"`
	TempDir          string            `json:"temp_dir,omitempty" yaml:"temp_dir,omitempty"`
	KeepTempFiles    bool              `json:"keep_temp_files,omitempty" yaml:"keep_temp_files,omitempty"`
	Timeout          string            `json:"timeout,omitempty" yaml:"timeout,omitempty"`
	ExitPolicy       ExitPolicy        `json:"exit_policy,omitempty" yaml:"exit_policy,omitempty"`
	StrictExtraction bool              `json:"strict_extraction,omitempty" yaml:"strict_extraction,omitempty"`
	ExtractionRules  []ExtractionRule  `json:"extraction_rules,omitempty" yaml:"extraction_rules,omitempty"`
}

// MetadataConfig represents the YAML structure of the metadata exchange formats.
type MetadataConfig struct {
	InputFormat  string `json:"input_format,omitempty" yaml:"input_format,omitempty"`
	OutputFormat string `json:"output_format,omitempty" yaml:"output_format,omitempty"`
}

// ExitPolicy represents the YAML structure of the exit code policy.
type ExitPolicy struct {
	AcceptedCodes []int `json:"accepted_codes,omitempty" yaml:"accepted_codes,omitempty,flow"`
	AcceptAny     bool  `json:"accept_any,omitempty" yaml:"accept_any,omitempty"`
}

// ExtractionRule represents the YAML structure of an extraction rule. A rule has a fixed
// field name (field) or takes it from a capture group (name_group).
type ExtractionRule struct {
	Pattern    string `json:"pattern" yaml:"pattern"`
	Stream     string `json:"stream,omitempty" yaml:"stream,omitempty"`
	Field      string `json:"field,omitempty" yaml:"field,omitempty"`
	NameGroup  *int   `json:"name_group,omitempty" yaml:"name_group,omitempty"`
	ValueGroup int    `json:"value_group,omitempty" yaml:"value_group,omitempty"`
}

func (h Handler) validate() error {
	if h.Name == "" {
		return fmt.Errorf("name is required")
	}
	if h.Command == "" {
		return fmt.Errorf("command is required")
	}
	if h.Timeout != "" {
		d, err := time.ParseDuration(h.Timeout)
		if err != nil {
			return fmt.Errorf("invalid timeout: %w", err)
		}
		if d < 0 {
			return fmt.Errorf("timeout can't be negative")
		}
	}

	for i, r := range h.ExtractionRules {
		if err := r.validate(); err != nil {
			return fmt.Errorf("extraction rule %d: %w", i, err)
		}
	}

	return nil
}

func (r ExtractionRule) validate() error {
	if r.Pattern == "" {
		return fmt.Errorf("pattern is required")
	}
	if r.Field == "" && r.NameGroup == nil {
		return fmt.Errorf("field or name_group is required")
	}
	if r.Field != "" && r.NameGroup != nil {
		return fmt.Errorf("field and name_group can't be used at the same time")
	}
	return nil
}

func (h Handler) toModel() (model.Handler, error) {
	var timeout time.Duration
	if h.Timeout != "" {
		timeout, _ = time.ParseDuration(h.Timeout)
	}

	cfg := model.HandlerConfig{
		Command:              h.Command,
		WorkingDir:           h.WorkingDir,
		InputDisabled:        h.InputDisabled,
		PipeMetadata:         h.PipeMetadata,
		MetadataInputFormat:  h.Metadata.InputFormat,
		MetadataOutputFormat: h.Metadata.OutputFormat,
		Env:                  h.Env,
		TempDir:              h.TempDir,
		KeepTempFiles:        h.KeepTempFiles,
		Timeout:              timeout,
		ExitPolicy: model.ExitPolicy{
			AcceptedExitCodes: h.ExitPolicy.AcceptedCodes,
			AcceptAny:         h.ExitPolicy.AcceptAny,
		},
		StrictExtraction: h.StrictExtraction,
	}

	for _, r := range h.ExtractionRules {
		rule := model.ExtractionRule{
			Pattern: r.Pattern,
			Stream:  model.Stream(r.Stream),
		}
		if r.NameGroup != nil {
			rule.Field = model.DynamicField{NameGroup: *r.NameGroup, ValueGroup: r.ValueGroup}
		} else {
			rule.Field = model.FixedField{Name: r.Field, ValueGroup: r.ValueGroup}
		}
		cfg.ExtractionRules = append(cfg.ExtractionRules, rule)
	}

	if err := cfg.Validate(); err != nil {
		return model.Handler{}, fmt.Errorf("invalid handler config: %w", err)
	}

	return model.Handler{Name: h.Name, Config: cfg}, nil
}

// FromModel returns the file representation of a handler.
func FromModel(h model.Handler) Handler {
	c := h.Config
	y := Handler{
		Name:          h.Name,
		Command:       c.Command,
		WorkingDir:    c.WorkingDir,
		InputDisabled: c.InputDisabled,
		PipeMetadata:  c.PipeMetadata,
		Metadata: MetadataConfig{
			InputFormat:  c.MetadataInputFormat,
			OutputFormat: c.MetadataOutputFormat,
		},
		Env:           c.Env,
		TempDir:       c.TempDir,
		KeepTempFiles: c.KeepTempFiles,
		ExitPolicy: ExitPolicy{
			AcceptedCodes: c.ExitPolicy.AcceptedExitCodes,
			AcceptAny:     c.ExitPolicy.AcceptAny,
		},
		StrictExtraction: c.StrictExtraction,
	}
	if c.Timeout > 0 {
		y.Timeout = c.Timeout.String()
	}

	for _, r := range c.ExtractionRules {
		yr := ExtractionRule{Pattern: r.Pattern, Stream: string(r.Stream)}
		switch f := r.Field.(type) {
		case model.FixedField:
			yr.Field = f.Name
			yr.ValueGroup = f.ValueGroup
		case model.DynamicField:
			g := f.NameGroup
			yr.NameGroup = &g
			yr.ValueGroup = f.ValueGroup
		}
		y.ExtractionRules = append(y.ExtractionRules, yr)
	}

	return y
}
