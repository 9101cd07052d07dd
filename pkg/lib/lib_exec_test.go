//go:build !windows

package lib_test

import (
	"bytes"
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slok/extagger/internal/testutil/externalapp"
	"github.com/slok/extagger/pkg/lib"
)

func TestMain(m *testing.M) {
	externalapp.RunIfEnabled()
	os.Exit(m.Run())
}

func extAppConfig(t *testing.T, args string) lib.HandlerConfig {
	cmd, err := externalapp.Command(args)
	require.NoError(t, err)

	return lib.HandlerConfig{
		Command:              cmd,
		MetadataInputFormat:  "properties",
		MetadataOutputFormat: "properties",
		Env: map[string]string{
			externalapp.EnvEnable:      "1",
			externalapp.EnvStderrAfter: "lang=en",
		},
		ExtractionRules: []lib.ExtractionRule{
			{Pattern: `^(\w+)=(.*)$`, Stream: lib.StreamStderr, Field: lib.DynamicField{NameGroup: 1, ValueGroup: 2}},
		},
	}
}

func TestTagWithConfig(t *testing.T) {
	tests := map[string]struct {
		cfg     func(t *testing.T) lib.HandlerConfig
		opts    func() lib.TagOpts
		expMeta lib.Metadata
		expOut  string
		expErr  error
	}{
		"Tagging with files should update the metadata.": {
			cfg: func(t *testing.T) lib.HandlerConfig {
				return extAppConfig(t, "-ic ${INPUT} -oc ${OUTPUT} -im ${INPUT_META} -om ${OUTPUT_META}")
			},
			opts: func() lib.TagOpts {
				return lib.TagOpts{
					Content:  strings.NewReader("a b c"),
					Metadata: lib.Metadata{"title": {"hello big world"}},
				}
			},
			expMeta: lib.Metadata{
				"title": {"world big hello"},
				"lang":  {"en"},
			},
			expOut: "c b a\n",
		},

		"Call environment should override the handler one.": {
			cfg: func(t *testing.T) lib.HandlerConfig {
				return extAppConfig(t, "")
			},
			opts: func() lib.TagOpts {
				return lib.TagOpts{
					Content:  strings.NewReader("a b"),
					Metadata: lib.Metadata{},
					Env:      map[string]string{externalapp.EnvStderrAfter: "lang=es"},
				}
			},
			expMeta: lib.Metadata{"lang": {"es"}},
			expOut:  "b a\n",
		},

		"A not accepted exit code should fail.": {
			cfg: func(t *testing.T) lib.HandlerConfig {
				return extAppConfig(t, "-exit 4")
			},
			opts: func() lib.TagOpts {
				return lib.TagOpts{Content: strings.NewReader("a"), Metadata: lib.Metadata{}}
			},
			expErr: lib.ErrProcessExecution,
		},

		"An accepted exit code should succeed.": {
			cfg: func(t *testing.T) lib.HandlerConfig {
				cfg := extAppConfig(t, "-exit 4")
				cfg.ExitPolicy.AcceptedExitCodes = []int{0, 4}
				return cfg
			},
			opts: func() lib.TagOpts {
				return lib.TagOpts{Content: strings.NewReader("a"), Metadata: lib.Metadata{}}
			},
			expMeta: lib.Metadata{"lang": {"en"}},
			expOut:  "a\n",
		},

		"A slow handler should time out.": {
			cfg: func(t *testing.T) lib.HandlerConfig {
				cfg := extAppConfig(t, "-sleep 30s")
				cfg.Timeout = 200 * time.Millisecond
				return cfg
			},
			opts: func() lib.TagOpts {
				return lib.TagOpts{Content: strings.NewReader("a"), Metadata: lib.Metadata{}}
			},
			expErr: lib.ErrTimeout,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			client := newTestClient(t, lib.Config{})

			opts := test.opts()
			var out bytes.Buffer
			opts.Output = &out

			_, err := client.TagWithConfig(context.Background(), test.cfg(t), opts)

			if test.expErr != nil {
				var tagErr *lib.TagError
				assert.True(t, errors.As(err, &tagErr), "got: %v", err)
				assert.True(t, errors.Is(err, test.expErr), "got: %v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, test.expMeta, opts.Metadata)
			assert.Equal(t, test.expOut, out.String())
		})
	}
}

func TestTagRegisteredHandler(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	ctx := context.Background()

	reg := prometheus.NewRegistry()
	client := newTestClient(t, lib.Config{MetricsRegisterer: reg})

	_, err := client.RegisterHandler(ctx, lib.RegisterHandlerOpts{
		Name:   "reverse",
		Config: extAppConfig(t, "-ic ${INPUT}"),
	})
	require.NoError(err)

	meta := lib.Metadata{}
	var out bytes.Buffer
	res, err := client.Tag(ctx, "reverse", lib.TagOpts{
		Content:  strings.NewReader("x y"),
		Metadata: meta,
		Output:   &out,
	})
	require.NoError(err)
	assert.Equal(0, res.ExitCode)
	assert.NotEmpty(res.InvocationID)
	assert.Empty(res.Warnings)
	assert.Equal(lib.Metadata{"lang": {"en"}}, meta)
	assert.Equal("y x\n", out.String())

	count, err := testutil.GatherAndCount(reg, "extagger_tag_invocation_duration_seconds")
	require.NoError(err)
	assert.Equal(1, count)

	_, err = client.Tag(ctx, "missing", lib.TagOpts{Metadata: meta})
	assert.True(errors.Is(err, lib.ErrNotFound), "got: %v", err)
}
