package model

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound is returned when a resource is not found.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists is returned when a resource already exists.
	ErrAlreadyExists = errors.New("already exists")
	// ErrNotValid is returned when a resource is not valid.
	ErrNotValid = errors.New("not valid")
)

// Error kinds returned by a tagging invocation, they can be checked with errors.Is.
var (
	// ErrConfiguration is returned on unbound placeholders, unknown formats or invalid rules.
	ErrConfiguration = errors.New("configuration error")
	// ErrProcessLaunch is returned when the external process could not be started.
	ErrProcessLaunch = errors.New("process launch error")
	// ErrProcessExecution is returned when the external process exit code is not accepted.
	ErrProcessExecution = errors.New("process execution error")
	// ErrIO is returned on temporary file creation, read or write failures.
	ErrIO = errors.New("io error")
	// ErrTimeout is returned when the external process exceeded its time bound.
	ErrTimeout = errors.New("timeout error")
	// ErrExtraction is returned when an extraction rule is misconfigured at apply time.
	ErrExtraction = errors.New("extraction error")
)

// Stage is a step of a tagging invocation.
type Stage string

const (
	StageInit                Stage = "init"
	StageResolvePlaceholders Stage = "resolve-placeholders"
	StageStageArtifacts      Stage = "stage-artifacts"
	StageRunProcess          Stage = "run-process"
	StageExtractStdout       Stage = "extract-stdout"
	StageExtractStderr       Stage = "extract-stderr"
	StageApplyOutputMetadata Stage = "apply-output-metadata"
	StageCleanup             Stage = "cleanup"
	StageDone                Stage = "done"
)

// StageError is the error returned by a failed tagging invocation. It identifies the
// stage that failed and, when it applies, the placeholder token or the rule index
// involved.
type StageError struct {
	Stage Stage
	// Kind is one of the Err* kind sentinels.
	Kind error
	// Token is set when the failure is about a command placeholder.
	Token Token
	// RuleIndex is the offending extraction rule index, -1 when not applicable.
	RuleIndex int
	Err       error
}

// NewStageError returns a StageError without rule index.
func NewStageError(stage Stage, kind error, err error) *StageError {
	return &StageError{Stage: stage, Kind: kind, RuleIndex: -1, Err: err}
}

func (e *StageError) Error() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s stage failed", e.Stage)
	if e.Token != "" {
		fmt.Fprintf(&sb, " (placeholder %s)", e.Token.Placeholder())
	}
	if e.RuleIndex >= 0 {
		fmt.Fprintf(&sb, " (rule %d)", e.RuleIndex)
	}
	if e.Kind != nil {
		fmt.Fprintf(&sb, ": %s", e.Kind)
	}
	if e.Err != nil {
		fmt.Fprintf(&sb, ": %s", e.Err)
	}
	return sb.String()
}

// Unwrap makes errors.Is match both the kind and the cause.
func (e *StageError) Unwrap() []error {
	errs := make([]error, 0, 2)
	if e.Kind != nil {
		errs = append(errs, e.Kind)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// RuleError is a misconfiguration of an extraction rule.
type RuleError struct {
	RuleIndex int
	Err       error
}

func (e *RuleError) Error() string { return fmt.Sprintf("rule %d: %s", e.RuleIndex, e.Err) }
func (e *RuleError) Unwrap() error { return e.Err }

// TokenError is an error about a command placeholder.
type TokenError struct {
	Token Token
	Err   error
}

func (e *TokenError) Error() string {
	return fmt.Sprintf("placeholder %s: %s", e.Token.Placeholder(), e.Err)
}
func (e *TokenError) Unwrap() error { return e.Err }
