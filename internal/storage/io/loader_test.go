package io_test

import (
	"context"
	"testing"
	"testing/fstest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slok/extagger/internal/model"
	storageio "github.com/slok/extagger/internal/storage/io"
)

func TestHandlerYAMLRepositoryGetHandler(t *testing.T) {
	tests := map[string]struct {
		fs         fstest.MapFS
		path       string
		expHandler model.Handler
		expErr     bool
		errMsg     string
	}{
		"Valid handler with fixed and dynamic rules should load successfully.": {
			fs: fstest.MapFS{
				"handler.yaml": &fstest.MapFile{
					Data: []byte(`name: reverser
command: reverse -ic ${INPUT} -om ${OUTPUT_META}
metadata:
  input_format: json
  output_format: properties
env:
  FOO: bar
timeout: 30s
exit_policy:
  accepted_codes: [0, 1]
extraction_rules:
  - pattern: ^(f.*):(.*)
    name_group: 1
    value_group: 2
  - pattern: ^<field2>(.*)</field2>
    stream: stdout
    field: field2
    value_group: 1
`),
				},
			},
			path: "handler.yaml",
			expHandler: model.Handler{
				Name: "reverser",
				Config: model.HandlerConfig{
					Command:              "reverse -ic ${INPUT} -om ${OUTPUT_META}",
					MetadataInputFormat:  "json",
					MetadataOutputFormat: "properties",
					Env:                  map[string]string{"FOO": "bar"},
					Timeout:              30 * time.Second,
					ExitPolicy:           model.ExitPolicy{AcceptedExitCodes: []int{0, 1}},
					ExtractionRules: []model.ExtractionRule{
						{Pattern: "^(f.*):(.*)", Field: model.DynamicField{NameGroup: 1, ValueGroup: 2}},
						{Pattern: "^<field2>(.*)</field2>", Stream: model.StreamStdout, Field: model.FixedField{Name: "field2", ValueGroup: 1}},
					},
				},
			},
		},

		"Missing file should return error.": {
			fs:     fstest.MapFS{},
			path:   "nonexistent.yaml",
			expErr: true,
			errMsg: "reading handler file",
		},

		"Invalid YAML should return error.": {
			fs: fstest.MapFS{
				"invalid.yaml": &fstest.MapFile{Data: []byte(`invalid: yaml: content: {}`)},
			},
			path:   "invalid.yaml",
			expErr: true,
			errMsg: "parsing YAML",
		},

		"Missing name should return error.": {
			fs: fstest.MapFS{
				"h.yaml": &fstest.MapFile{Data: []byte("command: app\n")},
			},
			path:   "h.yaml",
			expErr: true,
			errMsg: "name is required",
		},

		"Missing command should return error.": {
			fs: fstest.MapFS{
				"h.yaml": &fstest.MapFile{Data: []byte("name: h\n")},
			},
			path:   "h.yaml",
			expErr: true,
			errMsg: "command is required",
		},

		"Invalid timeout should return error.": {
			fs: fstest.MapFS{
				"h.yaml": &fstest.MapFile{Data: []byte("name: h\ncommand: app\ntimeout: soon\n")},
			},
			path:   "h.yaml",
			expErr: true,
			errMsg: "invalid timeout",
		},

		"A rule with field and name group should return error.": {
			fs: fstest.MapFS{
				"h.yaml": &fstest.MapFile{Data: []byte(`name: h
command: app
extraction_rules:
  - pattern: (a)(b)
    field: x
    name_group: 1
`)},
			},
			path:   "h.yaml",
			expErr: true,
			errMsg: "extraction rule 0",
		},

		"A rule with an unknown stream should return error.": {
			fs: fstest.MapFS{
				"h.yaml": &fstest.MapFile{Data: []byte(`name: h
command: app
extraction_rules:
  - pattern: a
    stream: stdin
    field: x
`)},
			},
			path:   "h.yaml",
			expErr: true,
			errMsg: "unknown stream",
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert := assert.New(t)

			repo := storageio.NewHandlerYAMLRepository(test.fs)
			h, err := repo.GetHandler(context.TODO(), test.path)

			if test.expErr {
				if assert.Error(err) {
					assert.Contains(err.Error(), test.errMsg)
				}
			} else if assert.NoError(err) {
				assert.Equal(test.expHandler, h)
			}
		})
	}
}

func TestMarshalUnmarshalHandler(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	h := model.Handler{
		Name: "my-handler",
		Config: model.HandlerConfig{
			Command:              "my command",
			InputDisabled:        true,
			TempDir:              "/some/path",
			MetadataInputFormat:  "json",
			MetadataOutputFormat: "xml",
			ExtractionRules: []model.ExtractionRule{
				{Pattern: "asdf.*", Field: model.FixedField{Name: "blah"}},
				{Pattern: "qwer.*", Field: model.FixedField{Name: "halb"}},
			},
			Env: map[string]string{
				"env1": "value1",
				"env2": "value2",
			},
		},
	}

	data, err := storageio.MarshalHandler(h)
	require.NoError(err)

	got, err := storageio.UnmarshalHandler(data)
	require.NoError(err)
	assert.Equal(h, got)
}
