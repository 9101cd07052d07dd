//go:build !windows

package process_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slok/extagger/internal/log"
	"github.com/slok/extagger/internal/model"
	"github.com/slok/extagger/internal/process"
)

func TestExecRunnerRun(t *testing.T) {
	bigInput := strings.Repeat("0123456789abcdef\n", 64*1024)

	tests := map[string]struct {
		environ    []string
		req        process.Request
		expOutcome *model.ProcessOutcome
		expErrKind error
	}{
		"Stdout and stderr should be captured separately.": {
			req: process.Request{
				Args: []string{"sh", "-c", "echo out1; echo err1 >&2; echo out2"},
			},
			expOutcome: &model.ProcessOutcome{
				ExitCode: 0,
				Stdout:   []byte("out1\nout2\n"),
				Stderr:   []byte("err1\n"),
			},
		},

		"Stdin should be written and closed.": {
			req: process.Request{
				Args:  []string{"cat"},
				Stdin: strings.NewReader("1 2 3\n4 5 6"),
			},
			expOutcome: &model.ProcessOutcome{
				ExitCode: 0,
				Stdout:   []byte("1 2 3\n4 5 6"),
				Stderr:   []byte{},
			},
		},

		"Big outputs on both streams should not deadlock.": {
			req: process.Request{
				Args:  []string{"sh", "-c", "cat; cat /dev/null; printf '%s' \"$BIG\" >&2"},
				Stdin: strings.NewReader(bigInput),
				Env:   map[string]string{"BIG": strings.Repeat("e", 96*1024)},
			},
			expOutcome: &model.ProcessOutcome{
				ExitCode: 0,
				Stdout:   []byte(bigInput),
				Stderr:   []byte(strings.Repeat("e", 96*1024)),
			},
		},

		"A process that doesn't read its stdin should not fail.": {
			req: process.Request{
				Args:  []string{"true"},
				Stdin: strings.NewReader(bigInput),
			},
			expOutcome: &model.ProcessOutcome{ExitCode: 0, Stdout: []byte{}, Stderr: []byte{}},
		},

		"A non-zero exit code should be returned without error.": {
			req: process.Request{
				Args: []string{"sh", "-c", "echo failing >&2; exit 3"},
			},
			expOutcome: &model.ProcessOutcome{ExitCode: 3, Stdout: []byte{}, Stderr: []byte("failing\n")},
		},

		"Environment overrides should be merged over the inherited environment.": {
			environ: []string{"PATH=/usr/bin:/bin", "EXT_BASE=base", "EXT_OVERRIDE=base"},
			req: process.Request{
				Args: []string{"sh", "-c", "echo $EXT_BASE $EXT_OVERRIDE $EXT_NEW"},
				Env:  map[string]string{"EXT_OVERRIDE": "override", "EXT_NEW": "new"},
			},
			expOutcome: &model.ProcessOutcome{ExitCode: 0, Stdout: []byte("base override new\n"), Stderr: []byte{}},
		},

		"A missing executable should fail with a launch error.": {
			req: process.Request{
				Args: []string{"/this/does/not/exist/extagger-missing-bin"},
			},
			expErrKind: model.ErrProcessLaunch,
		},

		"An empty command should fail with a configuration error.": {
			req:        process.Request{},
			expErrKind: model.ErrConfiguration,
		},

		"A process exceeding the timeout should be killed.": {
			req: process.Request{
				Args:    []string{"sh", "-c", "sleep 30 & sleep 30"},
				Timeout: 200 * time.Millisecond,
			},
			expErrKind: model.ErrTimeout,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert := assert.New(t)
			require := require.New(t)

			cfg := process.ExecRunnerConfig{Logger: log.Noop}
			if test.environ != nil {
				cfg.Environ = func() []string { return test.environ }
			}
			runner, err := process.NewExecRunner(cfg)
			require.NoError(err)

			start := time.Now()
			gotOutcome, err := runner.Run(context.TODO(), test.req)

			if test.expErrKind != nil {
				require.Error(err)
				assert.True(errors.Is(err, test.expErrKind), "unexpected error: %s", err)
				assert.Less(time.Since(start), 10*time.Second)
				return
			}

			require.NoError(err)
			assert.Equal(test.expOutcome.ExitCode, gotOutcome.ExitCode)
			assert.Equal(string(test.expOutcome.Stdout), string(gotOutcome.Stdout))
			assert.Equal(string(test.expOutcome.Stderr), string(gotOutcome.Stderr))
		})
	}
}

func TestExecRunnerWorkingDir(t *testing.T) {
	require := require.New(t)

	dir, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(err)

	runner, err := process.NewExecRunner(process.ExecRunnerConfig{})
	require.NoError(err)

	outcome, err := runner.Run(context.TODO(), process.Request{
		Args:       []string{"pwd"},
		WorkingDir: dir,
	})
	require.NoError(err)
	assert.Equal(t, dir, strings.TrimSpace(string(outcome.Stdout)))
}

func TestExecRunnerContextCancel(t *testing.T) {
	require := require.New(t)

	runner, err := process.NewExecRunner(process.ExecRunnerConfig{})
	require.NoError(err)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(100 * time.Millisecond)
		cancel()
	}()

	var stdin bytes.Buffer
	_, err = runner.Run(ctx, process.Request{Args: []string{"sleep", "30"}, Stdin: &stdin})
	require.Error(err)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.True(t, errors.Is(err, model.ErrTimeout))
}

func TestExecRunnerTimeoutBoundsRun(t *testing.T) {
	tests := map[string]struct {
		req   func(t *testing.T) process.Request
		maxIn time.Duration
	}{
		"A stdin that never ends should not block after the timeout.": {
			req: func(t *testing.T) process.Request {
				pr, pw := io.Pipe()
				t.Cleanup(func() { _ = pw.Close() })
				return process.Request{
					Args:    []string{"sleep", "30"},
					Stdin:   pr,
					Timeout: 200 * time.Millisecond,
				}
			},
			maxIn: 2 * time.Second,
		},

		"A detached descendant holding the output should not block after the timeout.": {
			req: func(t *testing.T) process.Request {
				return process.Request{
					Args:    []string{"sh", "-c", "setsid sleep 5 & sleep 30"},
					Timeout: 200 * time.Millisecond,
				}
			},
			maxIn: 2 * time.Second,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert := assert.New(t)
			require := require.New(t)

			runner, err := process.NewExecRunner(process.ExecRunnerConfig{KillGrace: 100 * time.Millisecond})
			require.NoError(err)

			start := time.Now()
			_, err = runner.Run(context.TODO(), test.req(t))
			require.Error(err)
			assert.True(errors.Is(err, model.ErrTimeout), "unexpected error: %s", err)
			assert.Less(time.Since(start), test.maxIn)
		})
	}
}

func TestExecRunnerDetachedDescendantAfterExit(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	runner, err := process.NewExecRunner(process.ExecRunnerConfig{KillGrace: 100 * time.Millisecond})
	require.NoError(err)

	start := time.Now()
	outcome, err := runner.Run(context.TODO(), process.Request{
		Args: []string{"sh", "-c", "echo done; setsid sleep 5 & exit 4"},
	})
	require.NoError(err)
	assert.Equal(4, outcome.ExitCode)
	assert.Less(time.Since(start), 2*time.Second)
}
