package model

import (
	"fmt"
	"strings"
	"time"
)

// Token is a command placeholder token.
type Token string

const (
	// TokenInput is replaced with the input content file path.
	TokenInput Token = "INPUT"
	// TokenOutput is replaced with the output content file path.
	TokenOutput Token = "OUTPUT"
	// TokenInputMeta is replaced with the input metadata file path.
	TokenInputMeta Token = "INPUT_META"
	// TokenOutputMeta is replaced with the output metadata file path.
	TokenOutputMeta Token = "OUTPUT_META"
	// TokenReference is replaced with the document reference.
	TokenReference Token = "REFERENCE"
)

// Tokens is the placeholder token vocabulary.
var Tokens = []Token{TokenInput, TokenOutput, TokenInputMeta, TokenOutputMeta, TokenReference}

// Placeholder returns the token as written in a command template.
func (t Token) Placeholder() string { return "${" + string(t) + "}" }

// Stream is the external process output stream an extraction rule reads from.
type Stream string

const (
	StreamBoth   Stream = "both"
	StreamStdout Stream = "stdout"
	StreamStderr Stream = "stderr"
)

// Covers returns true if the stream selection includes s.
func (s Stream) Covers(o Stream) bool {
	if s == "" || s == StreamBoth {
		return true
	}
	return s == o
}

// FieldSpec describes how a rule match becomes a metadata field value. It is one of
// FixedField or DynamicField.
type FieldSpec interface {
	fieldSpec()
}

// FixedField stores the ValueGroup capture under a constant field name. A ValueGroup of 0
// uses the whole match.
type FixedField struct {
	Name       string
	ValueGroup int
}

// DynamicField takes the field name from NameGroup and the value from ValueGroup.
type DynamicField struct {
	NameGroup  int
	ValueGroup int
}

func (FixedField) fieldSpec()   {}
func (DynamicField) fieldSpec() {}

// ExtractionRule is a regex applied line by line to the external process output.
type ExtractionRule struct {
	Pattern string
	Stream  Stream
	Field   FieldSpec
}

// Validate validates the rule.
func (r ExtractionRule) Validate() error {
	if r.Pattern == "" {
		return fmt.Errorf("pattern is required: %w", ErrNotValid)
	}

	switch r.Stream {
	case "", StreamBoth, StreamStdout, StreamStderr:
	default:
		return fmt.Errorf("unknown stream %q: %w", r.Stream, ErrNotValid)
	}

	switch f := r.Field.(type) {
	case FixedField:
		if f.Name == "" {
			return fmt.Errorf("field name is required: %w", ErrNotValid)
		}
		if f.ValueGroup < 0 {
			return fmt.Errorf("value group can't be negative: %w", ErrNotValid)
		}
	case DynamicField:
		if f.NameGroup < 0 || f.ValueGroup < 0 {
			return fmt.Errorf("groups can't be negative: %w", ErrNotValid)
		}
	default:
		return fmt.Errorf("field or field group is required: %w", ErrNotValid)
	}

	return nil
}

// ExitPolicy decides which external process exit codes are successful.
type ExitPolicy struct {
	// AcceptedExitCodes are the accepted exit codes, empty means only 0.
	AcceptedExitCodes []int
	// AcceptAny accepts every exit code.
	AcceptAny bool
}

// Accepts returns true if the exit code is accepted by the policy.
func (p ExitPolicy) Accepts(code int) bool {
	if p.AcceptAny {
		return true
	}
	if len(p.AcceptedExitCodes) == 0 {
		return code == 0
	}
	for _, c := range p.AcceptedExitCodes {
		if c == code {
			return true
		}
	}
	return false
}

// HandlerConfig is the configuration of an external handler.
type HandlerConfig struct {
	// Command is the command template, it can contain placeholder tokens.
	Command    string
	WorkingDir string
	// InputDisabled suppresses sending the document content to the process.
	InputDisabled bool
	// PipeMetadata sends the serialized input metadata through stdin when the command
	// has no INPUT_META placeholder and stdin is not used by the content.
	PipeMetadata         bool
	MetadataInputFormat  string
	MetadataOutputFormat string
	ExtractionRules      []ExtractionRule
	Env                  map[string]string
	// TempDir is where exchange files are created, empty uses the system temp dir.
	TempDir string
	// KeepTempFiles disables the exchange files deletion (debugging).
	KeepTempFiles bool
	// Timeout bounds the process execution, 0 means no timeout.
	Timeout    time.Duration
	ExitPolicy ExitPolicy
	// StrictExtraction fails the invocation when a rule references a missing group.
	StrictExtraction bool
}

// Validate validates the handler configuration.
func (c HandlerConfig) Validate() error {
	if strings.TrimSpace(c.Command) == "" {
		return fmt.Errorf("command is required: %w", ErrNotValid)
	}

	if c.Timeout < 0 {
		return fmt.Errorf("timeout can't be negative: %w", ErrNotValid)
	}

	if c.PipeMetadata && c.MetadataInputFormat == "" {
		return fmt.Errorf("metadata input format is required when piping metadata: %w", ErrNotValid)
	}

	for i, r := range c.ExtractionRules {
		if err := r.Validate(); err != nil {
			return &RuleError{RuleIndex: i, Err: err}
		}
	}

	return nil
}

// Handler is a named handler configuration stored in the registry.
type Handler struct {
	ID        string
	Name      string
	Config    HandlerConfig
	CreatedAt time.Time
}

// Validate validates the handler.
func (h Handler) Validate() error {
	if h.Name == "" {
		return fmt.Errorf("name is required: %w", ErrNotValid)
	}
	if err := h.Config.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// ProcessOutcome is the result of running the external process once.
type ProcessOutcome struct {
	ExitCode int
	Stdout   []byte
	Stderr   []byte
}
