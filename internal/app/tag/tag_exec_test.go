//go:build !windows

package tag_test

import (
	"bytes"
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slok/extagger/internal/app/tag"
	"github.com/slok/extagger/internal/model"
	"github.com/slok/extagger/internal/process"
	"github.com/slok/extagger/internal/testutil/externalapp"
)

const (
	extAppInput          = "1 2 3\n4 5 6\n7 8 9"
	extAppExpectedOutput = "3 2 1\n6 5 4\n9 8 7\n"
)

func newExtAppConfig(t *testing.T, args string) model.HandlerConfig {
	cmd, err := externalapp.Command(args)
	require.NoError(t, err)

	return model.HandlerConfig{
		Command:              cmd,
		MetadataInputFormat:  "properties",
		MetadataOutputFormat: "properties",
		Env: map[string]string{
			externalapp.EnvEnable:       "1",
			externalapp.EnvStdoutBefore: "field1:StdoutBefore",
			externalapp.EnvStdoutAfter:  "<field2>StdoutAfter</field2>",
			externalapp.EnvStderrBefore: "field3 StdErrBefore",
			externalapp.EnvStderrAfter:  "StdErrAfter:field4",
		},
		ExtractionRules: []model.ExtractionRule{
			{Pattern: `^(f.*):(.*)`, Field: model.DynamicField{NameGroup: 1, ValueGroup: 2}},
			{Pattern: `^<field2>(.*)</field2>`, Field: model.FixedField{Name: "field2", ValueGroup: 1}},
			{Pattern: `^f.*StdErr.*`, Field: model.FixedField{Name: "field3", ValueGroup: 1}},
			{Pattern: `^(S.*?):(.*)`, Field: model.DynamicField{NameGroup: 2, ValueGroup: 1}},
		},
	}
}

func newExecService(t *testing.T) *tag.Service {
	runner, err := process.NewExecRunner(process.ExecRunnerConfig{})
	require.NoError(t, err)

	svc, err := tag.NewService(tag.ServiceConfig{Runner: runner, TempDir: t.TempDir()})
	require.NoError(t, err)

	return svc
}

func newExtAppMetadata() model.Metadata {
	return model.Metadata{
		"metaFileField1": {"this is a first test"},
		"metaFileField2": {"this is a second test value1", "this is a second test value2"},
	}
}

func TestServiceTagExternalApp(t *testing.T) {
	tests := map[string]struct {
		args   string
		expOut string
	}{
		"Content and metadata through files should be tagged.": {
			args:   "-ic ${INPUT} -im ${INPUT_META} -om ${OUTPUT_META} -ref ${REFERENCE}",
			expOut: "field1:StdoutBefore\n" + extAppExpectedOutput + "<field2>StdoutAfter</field2>\n",
		},

		"Content through stdin and an output file should be tagged.": {
			args:   "-oc ${OUTPUT} -im ${INPUT_META} -om ${OUTPUT_META}",
			expOut: extAppExpectedOutput,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert := assert.New(t)
			require := require.New(t)

			svc := newExecService(t)
			meta := newExtAppMetadata()
			var out bytes.Buffer

			res, err := svc.Tag(context.TODO(), tag.Request{
				Reference: "N/A",
				Content:   strings.NewReader(extAppInput),
				Metadata:  meta,
				Output:    &out,
				Config:    newExtAppConfig(t, test.args),
			})
			require.NoError(err)

			assert.Equal("test first a is this", meta.GetFirst("metaFileField1"))
			assert.Equal([]string{"value1 test second a is this", "value2 test second a is this"}, meta.Get("metaFileField2"))
			assert.Equal([]string{"StdoutBefore"}, meta.Get("field1"))
			assert.Equal([]string{"StdoutAfter"}, meta.Get("field2"))
			assert.Equal([]string{"field3 StdErrBefore"}, meta.Get("field3"))
			assert.Equal([]string{"StdErrAfter"}, meta.Get("field4"))
			assert.Equal(test.expOut, out.String())

			require.Len(res.Warnings, 1)
			assert.Equal(2, res.Warnings[0].RuleIndex)
			assert.Equal(0, res.ExitCode)
		})
	}
}

func TestServiceTagExternalAppFailures(t *testing.T) {
	tests := map[string]struct {
		args     string
		timeout  time.Duration
		expStage model.Stage
		expKind  error
	}{
		"A failing app should fail with an execution error.": {
			args:     "-exit 3",
			expStage: model.StageRunProcess,
			expKind:  model.ErrProcessExecution,
		},

		"A slow app should fail with a timeout error.": {
			args:     "-sleep 30s",
			timeout:  200 * time.Millisecond,
			expStage: model.StageRunProcess,
			expKind:  model.ErrTimeout,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert := assert.New(t)
			require := require.New(t)

			svc := newExecService(t)
			cfg := newExtAppConfig(t, "-ic ${INPUT} "+test.args)
			cfg.Timeout = test.timeout
			cfg.TempDir = t.TempDir()

			start := time.Now()
			_, err := svc.Tag(context.TODO(), tag.Request{
				Content:  strings.NewReader(extAppInput),
				Metadata: newExtAppMetadata(),
				Config:   cfg,
			})
			require.Error(err)
			assert.Less(time.Since(start), 10*time.Second)

			var stErr *model.StageError
			require.True(errors.As(err, &stErr))
			assert.Equal(test.expStage, stErr.Stage)
			assert.True(errors.Is(err, test.expKind))

			entries, err := os.ReadDir(cfg.TempDir)
			require.NoError(err)
			assert.Empty(entries)
		})
	}
}
