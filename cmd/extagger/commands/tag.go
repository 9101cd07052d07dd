package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/slok/extagger/internal/app/inspect"
	"github.com/slok/extagger/internal/app/tag"
	"github.com/slok/extagger/internal/conventions"
	"github.com/slok/extagger/internal/metaformat"
	metricsprometheus "github.com/slok/extagger/internal/metrics/prometheus"
	"github.com/slok/extagger/internal/model"
	"github.com/slok/extagger/internal/process"
	utilsenv "github.com/slok/extagger/internal/utils/env"
)

type TagCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	// Handler selection.
	configFile string
	handler    string

	// Document.
	input          string
	metadataFile   string
	metadataFormat string
	fields         []string
	reference      string
	output         string
	stdout         bool

	// Handler overrides.
	envSpecs      []string
	timeout       time.Duration
	keepTempFiles bool
	strict        bool

	format          string
	metricsTextfile string
}

// NewTagCommand returns the tag command.
func NewTagCommand(rootCmd *RootCommand, app *kingpin.Application) *TagCommand {
	c := &TagCommand{rootCmd: rootCmd}

	c.Cmd = app.Command("tag", "Run an external handler on a document and print the resulting metadata.")

	c.Cmd.Flag("config", "Path to a handler YAML definition.").Short('f').StringVar(&c.configFile)
	c.Cmd.Flag("handler", "Registered handler name or ID.").Short('H').StringVar(&c.handler)

	c.Cmd.Flag("input", "Document content file, stdin when missing.").Short('i').StringVar(&c.input)
	c.Cmd.Flag("metadata", "Initial document metadata file.").Short('m').StringVar(&c.metadataFile)
	c.Cmd.Flag("metadata-format", "Initial document metadata file format.").Default(metaformat.FormatJSON).StringVar(&c.metadataFormat)
	c.Cmd.Flag("field", "Initial metadata field (KEY=VALUE). Can be repeated.").Short('F').StringsVar(&c.fields)
	c.Cmd.Flag("reference", "Document reference, available as ${REFERENCE}.").Short('r').StringVar(&c.reference)
	c.Cmd.Flag("output", "File for the transformed content.").Short('o').StringVar(&c.output)
	c.Cmd.Flag("stdout", "Write the transformed content to stdout instead of the metadata.").BoolVar(&c.stdout)

	c.Cmd.Flag("env", "Environment variables (KEY=VALUE or KEY from current environment). Can be repeated.").Short('e').StringsVar(&c.envSpecs)
	c.Cmd.Flag("timeout", "Handler execution timeout (overrides the definition one).").DurationVar(&c.timeout)
	c.Cmd.Flag("keep-temp-files", "Don't remove the exchange files after the execution.").BoolVar(&c.keepTempFiles)
	c.Cmd.Flag("strict", "Fail on extraction rule misconfigurations.").BoolVar(&c.strict)

	c.Cmd.Flag("format", "Output format (table, json).").Default(formatTable).EnumVar(&c.format, formatTable, formatJSON)
	c.Cmd.Flag("metrics-textfile", "Write the Prometheus metrics of the execution to this file.").StringVar(&c.metricsTextfile)

	return c
}

func (c TagCommand) Name() string { return c.Cmd.FullCommand() }

func (c TagCommand) Run(ctx context.Context) error {
	logger := c.rootCmd.Logger

	if (c.configFile == "") == (c.handler == "") {
		return fmt.Errorf("one of --config or --handler is required")
	}
	if c.output != "" && c.stdout {
		return fmt.Errorf("--output and --stdout can't be used together")
	}

	cfg, err := c.handlerConfig(ctx)
	if err != nil {
		return err
	}

	meta, err := c.initialMetadata()
	if err != nil {
		return err
	}

	// Content input.
	var content io.Reader
	if !cfg.InputDisabled {
		if c.input == "" {
			content = c.rootCmd.Stdin
		} else {
			f, err := os.Open(c.input)
			if err != nil {
				return fmt.Errorf("could not open input: %w", err)
			}
			defer f.Close()
			content = f
		}
	}

	// Content output.
	var out *countingWriter
	switch {
	case c.stdout:
		out = &countingWriter{w: c.rootCmd.Stdout}
	case c.output != "":
		f, err := os.Create(c.output)
		if err != nil {
			return fmt.Errorf("could not create output: %w", err)
		}
		defer f.Close()
		out = &countingWriter{w: f}
	}

	// Metrics.
	reg := prometheus.NewRegistry()
	recorder, err := metricsprometheus.NewRecorder(reg)
	if err != nil {
		return fmt.Errorf("could not create metrics recorder: %w", err)
	}

	runner, err := process.NewExecRunner(process.ExecRunnerConfig{Logger: logger})
	if err != nil {
		return fmt.Errorf("could not create process runner: %w", err)
	}

	svc, err := tag.NewService(tag.ServiceConfig{
		Runner:          runner,
		Formats:         metaformat.NewDefaultRegistry(),
		TempDir:         conventions.TmpPath(c.rootCmd.DataDir),
		MetricsRecorder: recorder,
		Logger:          logger,
	})
	if err != nil {
		return fmt.Errorf("could not create service: %w", err)
	}

	if err := os.MkdirAll(conventions.TmpPath(c.rootCmd.DataDir), 0o755); err != nil {
		return fmt.Errorf("could not create exchange files dir: %w", err)
	}

	req := tag.Request{
		Reference: c.reference,
		Content:   content,
		Metadata:  meta,
		Config:    cfg,
	}
	if out != nil {
		req.Output = out
	}

	res, tagErr := svc.Tag(ctx, req)

	if c.metricsTextfile != "" {
		if err := prometheus.WriteToTextfile(c.metricsTextfile, reg); err != nil {
			logger.Warningf("Could not write metrics textfile: %s", err)
		}
	}

	if tagErr != nil {
		return fmt.Errorf("could not tag document: %w", tagErr)
	}

	var written int64
	if out != nil {
		written = out.n
	}
	logger.Infof("Document tagged (exit code: %d, warnings: %d, output: %d bytes)", res.ExitCode, len(res.Warnings), written)

	// Stdout already used by the transformed content.
	if c.stdout {
		return nil
	}

	if err := newPrinter(c.format, c.rootCmd.Stdout).PrintMetadata(meta); err != nil {
		return fmt.Errorf("could not print metadata: %w", err)
	}

	return nil
}

func (c TagCommand) handlerConfig(ctx context.Context) (model.HandlerConfig, error) {
	var cfg model.HandlerConfig

	if c.configFile != "" {
		h, err := loadHandlerFile(ctx, c.configFile)
		if err != nil {
			return cfg, err
		}
		cfg = h.Config
	} else {
		repo, err := newRepository(ctx, c.rootCmd)
		if err != nil {
			return cfg, err
		}
		defer repo.Close()

		svc, err := inspect.NewService(inspect.ServiceConfig{
			Repository: repo,
			Logger:     c.rootCmd.Logger,
		})
		if err != nil {
			return cfg, fmt.Errorf("could not create service: %w", err)
		}

		h, err := svc.Run(ctx, inspect.Request{NameOrID: c.handler})
		if err != nil {
			return cfg, fmt.Errorf("could not get handler: %w", err)
		}
		cfg = h.Config
	}

	cliEnv, err := utilsenv.ParseSpecs(c.envSpecs)
	if err != nil {
		return cfg, fmt.Errorf("invalid --env value: %w", err)
	}
	cfg.Env = utilsenv.MergeMaps(cfg.Env, cliEnv)

	if c.timeout > 0 {
		cfg.Timeout = c.timeout
	}
	if c.keepTempFiles {
		cfg.KeepTempFiles = true
	}
	if c.strict {
		cfg.StrictExtraction = true
	}

	return cfg, nil
}

func (c TagCommand) initialMetadata() (model.Metadata, error) {
	meta := model.Metadata{}

	if c.metadataFile != "" {
		f, err := metaformat.NewDefaultRegistry().Get(c.metadataFormat)
		if err != nil {
			return nil, fmt.Errorf("invalid --metadata-format: %w", err)
		}

		file, err := os.Open(c.metadataFile)
		if err != nil {
			return nil, fmt.Errorf("could not open metadata: %w", err)
		}
		defer file.Close()

		meta, err = f.Decode(file)
		if err != nil {
			return nil, fmt.Errorf("could not decode metadata: %w", err)
		}
		if meta == nil {
			meta = model.Metadata{}
		}
	}

	fields, err := parseFieldSpecs(c.fields)
	if err != nil {
		return nil, fmt.Errorf("invalid --field value: %w", err)
	}
	for _, f := range fields {
		meta.Add(f.name, f.value)
	}

	return meta, nil
}

type fieldSpec struct {
	name  string
	value string
}

// parseFieldSpecs parses `KEY=VALUE` metadata field specs keeping their order, a
// repeated key adds another value.
func parseFieldSpecs(specs []string) ([]fieldSpec, error) {
	fields := make([]fieldSpec, 0, len(specs))
	for _, spec := range specs {
		name, value, ok := strings.Cut(spec, "=")
		if !ok {
			return nil, fmt.Errorf("missing '=' in field %q", spec)
		}
		name = strings.TrimSpace(name)
		if name == "" {
			return nil, fmt.Errorf("field name cannot be empty in %q", spec)
		}
		fields = append(fields, fieldSpec{name: name, value: value})
	}
	return fields, nil
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
