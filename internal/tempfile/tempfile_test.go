package tempfile_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slok/extagger/internal/log"
	"github.com/slok/extagger/internal/tempfile"
)

func TestScope(t *testing.T) {
	tests := map[string]struct {
		keep      bool
		expExists bool
	}{
		"Cleanup should delete every allocated file.": {
			keep:      false,
			expExists: false,
		},

		"Cleanup with keep should not delete the files.": {
			keep:      true,
			expExists: true,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert := assert.New(t)
			require := require.New(t)

			dir := t.TempDir()
			s, err := tempfile.NewScope(tempfile.ScopeConfig{
				Dir:    dir,
				Prefix: "test",
				Keep:   test.keep,
				Logger: log.Noop,
			})
			require.NoError(err)

			in, err := s.Write(tempfile.KindInput, strings.NewReader("hello"))
			require.NoError(err)
			out, err := s.Create(tempfile.KindOutputMetadata)
			require.NoError(err)

			assert.Equal(dir, filepath.Dir(in))
			assert.NotEqual(in, out)
			assert.Contains(filepath.Base(in), "test-input-")
			data, err := os.ReadFile(in)
			require.NoError(err)
			assert.Equal("hello", string(data))

			// A file removed by someone else should not break the cleanup.
			require.NoError(os.Remove(out))

			s.Cleanup()

			_, err = os.Stat(in)
			assert.Equal(test.expExists, err == nil)
			assert.Empty(s.Paths())
		})
	}
}

func TestScopeReadOptional(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	s, err := tempfile.NewScope(tempfile.ScopeConfig{Dir: t.TempDir()})
	require.NoError(err)
	defer s.Cleanup()

	p, err := s.Create(tempfile.KindOutput)
	require.NoError(err)
	require.NoError(os.Remove(p))

	data, err := s.ReadOptional(p)
	assert.NoError(err)
	assert.Empty(data)
}

func TestScopeCreateOnMissingDirFails(t *testing.T) {
	s, err := tempfile.NewScope(tempfile.ScopeConfig{Dir: filepath.Join(t.TempDir(), "missing")})
	require.NoError(t, err)

	_, err = s.Create(tempfile.KindInput)
	assert.Error(t, err)
}
