package tag

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/slok/extagger/internal/extract"
	"github.com/slok/extagger/internal/log"
	"github.com/slok/extagger/internal/metaformat"
	"github.com/slok/extagger/internal/metrics"
	"github.com/slok/extagger/internal/model"
	"github.com/slok/extagger/internal/placeholder"
	"github.com/slok/extagger/internal/process"
	"github.com/slok/extagger/internal/tempfile"
)

// ServiceConfig is the configuration for the tag service.
type ServiceConfig struct {
	Runner  process.Runner
	Formats *metaformat.Registry
	// TempDir is used for the exchange files of handlers without their own temp dir.
	TempDir         string
	MetricsRecorder metrics.Recorder
	Logger          log.Logger
}

func (c *ServiceConfig) defaults() error {
	if c.Runner == nil {
		return fmt.Errorf("runner is required")
	}
	if c.Formats == nil {
		c.Formats = metaformat.NewDefaultRegistry()
	}
	if c.MetricsRecorder == nil {
		c.MetricsRecorder = metrics.Noop
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "app.Tag"})
	return nil
}

// Service runs external handlers on documents.
type Service struct {
	runner  process.Runner
	formats *metaformat.Registry
	tempDir string
	metrics metrics.Recorder
	logger  log.Logger
}

// NewService creates a new tag service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Service{
		runner:  cfg.Runner,
		formats: cfg.Formats,
		tempDir: cfg.TempDir,
		metrics: cfg.MetricsRecorder,
		logger:  cfg.Logger,
	}, nil
}

// Request contains the parameters for tagging a document.
type Request struct {
	// Reference is the document reference, bound to ${REFERENCE}.
	Reference string
	// Content is the document content (optional).
	Content io.Reader
	// Metadata is the caller owned document metadata, the harvested fields are merged
	// into it only when the tagging succeeds.
	Metadata model.Metadata
	// Output receives the transformed content (optional): the ${OUTPUT} file when
	// the command has it, the process stdout otherwise.
	Output io.Writer
	Config model.HandlerConfig
}

// Result is the result of a successful tagging.
type Result struct {
	InvocationID string
	ExitCode     int
	// Warnings are the extraction rule misconfigurations found while extracting.
	Warnings []extract.RuleWarning
}

// exchange is the data exchange plan of an invocation.
type exchange struct {
	template   placeholder.Template
	contentIn  contentStrategy
	pipeMeta   bool
	inMetaFmt  metaformat.Format
	outMetaFmt metaformat.Format
}

type contentStrategy int

const (
	contentSuppressed contentStrategy = iota
	contentStdin
	contentFile
)

// Tag runs the external handler on a document and merges the harvested metadata into
// the request metadata.
//
// The invocation goes through these stages, the temporary files are always removed:
//
//	init -> resolve-placeholders -> stage-artifacts -> run-process -> extract-stdout ->
//	extract-stderr -> apply-output-metadata -> cleanup -> done
func (s *Service) Tag(ctx context.Context, req Request) (res *Result, err error) {
	invocationID := uuid.NewString()
	logger := s.logger.WithValues(log.Kv{"invocation": invocationID, "reference": req.Reference})
	ctx = logger.SetValuesOnCtx(ctx, log.Kv{"invocation": invocationID})

	start := time.Now()
	stage := model.StageInit
	defer func() {
		if err != nil {
			logger.Errorf("Tagging failed: %s", err)
		}
		observed := model.StageDone
		if err != nil {
			observed = stage
		}
		s.metrics.ObserveTagInvocation(ctx, observed, err == nil, time.Since(start))
	}()

	// Init.
	if req.Metadata == nil {
		return nil, model.NewStageError(stage, model.ErrConfiguration, fmt.Errorf("metadata is required"))
	}
	if err := req.Config.Validate(); err != nil {
		return nil, newConfigError(stage, err)
	}
	rules, err := extract.Compile(req.Config.ExtractionRules)
	if err != nil {
		return nil, newConfigError(stage, err)
	}

	// Resolve placeholders.
	stage = model.StageResolvePlaceholders
	ex, err := s.planExchange(req)
	if err != nil {
		return nil, newConfigError(stage, err)
	}

	// Stage artifacts.
	stage = model.StageStageArtifacts
	tempDir := req.Config.TempDir
	if tempDir == "" {
		tempDir = s.tempDir
	}
	scope, err := tempfile.NewScope(tempfile.ScopeConfig{
		Dir:    tempDir,
		Prefix: "extagger-" + invocationID[:8],
		Keep:   req.Config.KeepTempFiles,
		Logger: logger,
	})
	if err != nil {
		return nil, model.NewStageError(stage, model.ErrIO, err)
	}
	defer func() {
		logger.Debugf("Entering %s stage", model.StageCleanup)
		scope.Cleanup()
	}()

	args, stdin, outputs, err := s.stageArtifacts(req, ex, scope)
	if err != nil {
		var tkErr *model.TokenError
		if errors.As(err, &tkErr) {
			return nil, &model.StageError{Stage: stage, Kind: model.ErrConfiguration, Token: tkErr.Token, RuleIndex: -1, Err: err}
		}
		return nil, model.NewStageError(stage, kindOf(err, model.ErrIO), err)
	}

	// Run process.
	stage = model.StageRunProcess
	logger.Debugf("Entering %s stage", stage)
	outcome, err := s.runner.Run(ctx, process.Request{
		Args:       args,
		WorkingDir: req.Config.WorkingDir,
		Env:        req.Config.Env,
		Stdin:      stdin,
		Timeout:    req.Config.Timeout,
	})
	if err != nil {
		return nil, model.NewStageError(stage, kindOf(err, model.ErrIO), err)
	}
	if !req.Config.ExitPolicy.Accepts(outcome.ExitCode) {
		return nil, model.NewStageError(stage, model.ErrProcessExecution, fmt.Errorf("exit code %d not accepted, stderr: %q", outcome.ExitCode, tail(outcome.Stderr, 512)))
	}

	res = &Result{InvocationID: invocationID, ExitCode: outcome.ExitCode}
	harvested := req.Metadata.Clone()

	// Extract stdout and stderr.
	for _, st := range []struct {
		stage  model.Stage
		stream model.Stream
		data   []byte
	}{
		{stage: model.StageExtractStdout, stream: model.StreamStdout, data: outcome.Stdout},
		{stage: model.StageExtractStderr, stream: model.StreamStderr, data: outcome.Stderr},
	} {
		stage = st.stage
		logger.Debugf("Entering %s stage", stage)

		before := countValues(harvested)
		warnings := rules.Apply(harvested, st.stream, string(st.data))
		s.metrics.AddExtractedValues(ctx, st.stream, countValues(harvested)-before)

		for _, w := range warnings {
			logger.Warningf("Extraction rule misconfigured: %s", w)
		}
		res.Warnings = append(res.Warnings, warnings...)

		if req.Config.StrictExtraction && len(warnings) > 0 {
			w := warnings[0]
			return nil, &model.StageError{Stage: stage, Kind: model.ErrExtraction, RuleIndex: w.RuleIndex, Err: errors.New(w.String())}
		}
	}

	// Apply output metadata and content.
	stage = model.StageApplyOutputMetadata
	logger.Debugf("Entering %s stage", stage)
	if err := s.applyOutputs(req, harvested, ex, scope, outputs, outcome); err != nil {
		return nil, model.NewStageError(stage, kindOf(err, model.ErrIO), err)
	}
	for _, f := range harvested.Fields() {
		req.Metadata.Set(f, harvested.Get(f)...)
	}

	stage = model.StageDone
	logger.Debugf("Document tagged with exit code %d", outcome.ExitCode)

	return res, nil
}

func (s *Service) planExchange(req Request) (*exchange, error) {
	tpl, err := placeholder.Parse(req.Config.Command)
	if err != nil {
		return nil, err
	}
	ex := &exchange{template: tpl}

	switch {
	case req.Config.InputDisabled && tpl.Has(model.TokenInput):
		return nil, &model.TokenError{Token: model.TokenInput, Err: fmt.Errorf("input is disabled: %w", model.ErrConfiguration)}
	case req.Config.InputDisabled:
		ex.contentIn = contentSuppressed
	case tpl.Has(model.TokenInput):
		ex.contentIn = contentFile
	default:
		ex.contentIn = contentStdin
	}

	if req.Config.PipeMetadata && !tpl.Has(model.TokenInputMeta) {
		if ex.contentIn == contentStdin {
			return nil, fmt.Errorf("can't pipe metadata, stdin is used by the content: %w", model.ErrConfiguration)
		}
		ex.pipeMeta = true
	}

	if tpl.Has(model.TokenInputMeta) || ex.pipeMeta {
		ex.inMetaFmt, err = s.formats.Get(req.Config.MetadataInputFormat)
		if err != nil {
			return nil, &model.TokenError{Token: model.TokenInputMeta, Err: err}
		}
	}
	if tpl.Has(model.TokenOutputMeta) {
		ex.outMetaFmt, err = s.formats.Get(req.Config.MetadataOutputFormat)
		if err != nil {
			return nil, &model.TokenError{Token: model.TokenOutputMeta, Err: err}
		}
	}

	// Fail fast on unbound placeholders before any file is created.
	if _, err := tpl.Resolve(s.bindings(req, map[model.Token]string{
		model.TokenInput:      "",
		model.TokenOutput:     "",
		model.TokenInputMeta:  "",
		model.TokenOutputMeta: "",
	})); err != nil {
		return nil, err
	}

	return ex, nil
}

func (s *Service) bindings(req Request, paths map[model.Token]string) map[model.Token]string {
	b := make(map[model.Token]string, len(paths)+1)
	for k, v := range paths {
		b[k] = v
	}
	if req.Reference != "" {
		b[model.TokenReference] = req.Reference
	}
	return b
}

// stagedOutputs are the output files the process may write.
type stagedOutputs struct {
	content  string
	metadata string
}

func (s *Service) stageArtifacts(req Request, ex *exchange, scope *tempfile.Scope) (args []string, stdin io.Reader, outputs stagedOutputs, err error) {
	paths := map[model.Token]string{}
	tpl := ex.template

	switch ex.contentIn {
	case contentFile:
		p, err := scope.Write(tempfile.KindInput, req.Content)
		if err != nil {
			return nil, nil, outputs, err
		}
		paths[model.TokenInput] = p
	case contentStdin:
		stdin = req.Content
	}

	if tpl.Has(model.TokenInputMeta) || ex.pipeMeta {
		var buf bytes.Buffer
		if err := ex.inMetaFmt.Encode(&buf, req.Metadata); err != nil {
			return nil, nil, outputs, fmt.Errorf("could not encode input metadata: %w: %w", err, model.ErrIO)
		}

		if ex.pipeMeta {
			stdin = &buf
		} else {
			p, err := scope.Write(tempfile.KindInputMetadata, &buf)
			if err != nil {
				return nil, nil, outputs, err
			}
			paths[model.TokenInputMeta] = p
		}
	}

	if tpl.Has(model.TokenOutput) {
		p, err := scope.Create(tempfile.KindOutput)
		if err != nil {
			return nil, nil, outputs, err
		}
		paths[model.TokenOutput] = p
		outputs.content = p
	}

	if tpl.Has(model.TokenOutputMeta) {
		p, err := scope.Create(tempfile.KindOutputMetadata)
		if err != nil {
			return nil, nil, outputs, err
		}
		paths[model.TokenOutputMeta] = p
		outputs.metadata = p
	}

	args, err = tpl.Resolve(s.bindings(req, paths))
	if err != nil {
		return nil, nil, outputs, err
	}

	return args, stdin, outputs, nil
}

func (s *Service) applyOutputs(req Request, harvested model.Metadata, ex *exchange, scope *tempfile.Scope, outputs stagedOutputs, outcome *model.ProcessOutcome) error {
	if outputs.metadata != "" {
		data, err := scope.ReadOptional(outputs.metadata)
		if err != nil {
			return err
		}
		if len(bytes.TrimSpace(data)) > 0 {
			meta, err := ex.outMetaFmt.Decode(bytes.NewReader(data))
			if err != nil {
				return fmt.Errorf("could not decode output metadata: %w: %w", err, model.ErrIO)
			}
			for _, f := range meta.Fields() {
				harvested.Set(f, meta.Get(f)...)
			}
		}
	}

	if req.Output == nil {
		return nil
	}

	content := outcome.Stdout
	if outputs.content != "" {
		data, err := scope.ReadOptional(outputs.content)
		if err != nil {
			return err
		}
		content = data
	}
	if _, err := req.Output.Write(content); err != nil {
		return fmt.Errorf("could not write output content: %w: %w", err, model.ErrIO)
	}

	return nil
}

func newConfigError(stage model.Stage, err error) *model.StageError {
	e := model.NewStageError(stage, model.ErrConfiguration, err)

	var ruleErr *model.RuleError
	if errors.As(err, &ruleErr) {
		e.RuleIndex = ruleErr.RuleIndex
	}
	var tkErr *model.TokenError
	if errors.As(err, &tkErr) {
		e.Token = tkErr.Token
	}

	return e
}

var kinds = []error{
	model.ErrConfiguration,
	model.ErrProcessLaunch,
	model.ErrProcessExecution,
	model.ErrTimeout,
	model.ErrExtraction,
	model.ErrIO,
}

// kindOf returns the error kind of err or def if it has none.
func kindOf(err error, def error) error {
	for _, k := range kinds {
		if errors.Is(err, k) {
			return k
		}
	}
	return def
}

func countValues(m model.Metadata) int {
	n := 0
	for _, v := range m {
		n += len(v)
	}
	return n
}

func tail(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[len(b)-n:])
}
