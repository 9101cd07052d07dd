// Package process runs external processes capturing their output streams.
package process

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"syscall"
	"time"

	"github.com/slok/extagger/internal/log"
	"github.com/slok/extagger/internal/model"
	"github.com/slok/extagger/internal/utils/env"
)

// Request is an external process execution request.
type Request struct {
	// Args is the argument vector, the first one is the executable.
	Args []string
	// WorkingDir is the process working directory (optional).
	WorkingDir string
	// Env is merged over the inherited environment.
	Env map[string]string
	// Stdin is written to the process standard input (optional).
	Stdin io.Reader
	// Timeout bounds the execution, 0 means no bound.
	Timeout time.Duration
}

// Runner knows how to run external processes.
type Runner interface {
	Run(ctx context.Context, req Request) (*model.ProcessOutcome, error)
}

//go:generate mockery --output processmock --outpkg processmock --name Runner --structname MockRunner --filename mock_runner.go

// ExecRunnerConfig is the configuration of the exec runner.
type ExecRunnerConfig struct {
	// Environ returns the inherited environment, defaults to os.Environ.
	Environ func() []string
	// KillGrace is how long Run waits for the stdio pipes after the process is killed or exits.
	KillGrace time.Duration
	Logger    log.Logger
}

func (c *ExecRunnerConfig) defaults() error {
	if c.Environ == nil {
		c.Environ = os.Environ
	}
	if c.KillGrace <= 0 {
		c.KillGrace = 2 * time.Second
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "process.ExecRunner"})
	return nil
}

// ExecRunner runs external processes on the local host.
type ExecRunner struct {
	environ   func() []string
	killGrace time.Duration
	logger    log.Logger
}

// NewExecRunner returns a new ExecRunner.
func NewExecRunner(cfg ExecRunnerConfig) (*ExecRunner, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &ExecRunner{
		environ:   cfg.Environ,
		killGrace: cfg.KillGrace,
		logger:    cfg.Logger,
	}, nil
}

// Run launches the process, writes the stdin and drains stdout and stderr concurrently.
// It returns when the process has exited and both output streams reached their end,
// or KillGrace after the process is gone if other processes keep them open.
// A non-zero exit code is not an error.
func (r *ExecRunner) Run(ctx context.Context, req Request) (*model.ProcessOutcome, error) {
	if len(req.Args) == 0 || req.Args[0] == "" {
		return nil, fmt.Errorf("command is empty: %w", model.ErrConfiguration)
	}

	if req.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	logger := r.logger.WithCtxValues(ctx)

	cmd := exec.CommandContext(ctx, req.Args[0], req.Args[1:]...)
	cmd.Dir = req.WorkingDir
	cmd.Env = env.ToEnviron(env.MergeMaps(env.FromEnviron(r.environ()), req.Env))
	cmd.WaitDelay = r.killGrace
	setProcessGroup(cmd)
	cmd.Cancel = func() error { return killProcessGroup(cmd) }

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	var stdin io.WriteCloser
	if req.Stdin != nil {
		p, err := cmd.StdinPipe()
		if err != nil {
			return nil, fmt.Errorf("could not create stdin pipe: %w: %w", err, model.ErrIO)
		}
		stdin = p
	}

	logger.Debugf("Starting process %q", req.Args)
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("could not start %q: %w: %w", req.Args[0], err, model.ErrProcessLaunch)
	}

	// The stdin writer is owned by us and not by exec, a stdin reader that never
	// ends must not keep Run blocked after the process is gone.
	stdinDone := make(chan error, 1)
	if stdin != nil {
		go func() { stdinDone <- writeStdin(stdin, req.Stdin) }()
	} else {
		stdinDone <- nil
	}

	// Wait closes the output pipes KillGrace after a kill or exit, even if
	// descendants still hold them.
	waitErr := cmd.Wait()

	if ctxErr := ctx.Err(); ctxErr != nil {
		if errors.Is(ctxErr, context.DeadlineExceeded) {
			return nil, fmt.Errorf("process %q killed after %s: %w", req.Args[0], req.Timeout, model.ErrTimeout)
		}
		return nil, fmt.Errorf("process %q cancelled: %w: %w", req.Args[0], ctxErr, model.ErrTimeout)
	}

	select {
	case err := <-stdinDone:
		if err != nil {
			return nil, err
		}
	case <-time.After(r.killGrace):
		logger.Warningf("Process %q exited before its stdin was fully read, ignoring the rest", req.Args[0])
	}

	exitCode := 0
	var exitErr *exec.ExitError
	switch {
	case waitErr == nil:
	case errors.As(waitErr, &exitErr):
		exitCode = exitErr.ExitCode()
	case errors.Is(waitErr, exec.ErrWaitDelay):
		logger.Warningf("Process %q exited but its output was held open by other processes, output may be truncated", req.Args[0])
		exitCode = cmd.ProcessState.ExitCode()
	default:
		return nil, fmt.Errorf("could not wait for %q: %w: %w", req.Args[0], waitErr, model.ErrIO)
	}

	logger.Debugf("Process %q exited with code %d (stdout: %d bytes, stderr: %d bytes)", req.Args[0], exitCode, stdout.Len(), stderr.Len())

	return &model.ProcessOutcome{
		ExitCode: exitCode,
		Stdout:   stdout.Bytes(),
		Stderr:   stderr.Bytes(),
	}, nil
}

func writeStdin(w io.WriteCloser, r io.Reader) error {
	defer w.Close()

	if _, err := io.Copy(w, r); err != nil && !isBrokenPipe(err) {
		return fmt.Errorf("could not write stdin: %w: %w", err, model.ErrIO)
	}
	if err := w.Close(); err != nil && !isBrokenPipe(err) {
		return fmt.Errorf("could not close stdin: %w: %w", err, model.ErrIO)
	}
	return nil
}

func isBrokenPipe(err error) bool {
	return errors.Is(err, syscall.EPIPE) || errors.Is(err, os.ErrClosed)
}
