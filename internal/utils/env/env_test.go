package env_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/slok/extagger/internal/utils/env"
)

func TestParseSpecs(t *testing.T) {
	t.Setenv("EXTAGGER_TEST_VAR", "from-env")

	tests := map[string]struct {
		specs  []string
		expEnv map[string]string
		expErr bool
	}{
		"Key values should be parsed.": {
			specs:  []string{"A=1", "B=x=y", "C="},
			expEnv: map[string]string{"A": "1", "B": "x=y", "C": ""},
		},

		"A bare key should be taken from the environment.": {
			specs:  []string{"EXTAGGER_TEST_VAR"},
			expEnv: map[string]string{"EXTAGGER_TEST_VAR": "from-env"},
		},

		"A bare key missing from the environment should fail.": {
			specs:  []string{"EXTAGGER_TEST_MISSING_VAR"},
			expErr: true,
		},

		"An invalid key should fail.": {
			specs:  []string{"1A=b"},
			expErr: true,
		},

		"An empty spec should fail.": {
			specs:  []string{""},
			expErr: true,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert := assert.New(t)

			got, err := env.ParseSpecs(test.specs)

			if test.expErr {
				assert.Error(err)
			} else if assert.NoError(err) {
				assert.Equal(test.expEnv, got)
			}
		})
	}
}

func TestEnvironRoundTrip(t *testing.T) {
	assert := assert.New(t)

	base := env.FromEnviron([]string{"B=2", "A=1", "A=3", "BROKEN", "X=a=b"})
	assert.Equal(map[string]string{"A": "3", "B": "2", "X": "a=b"}, base)

	merged := env.MergeMaps(base, map[string]string{"B": "override", "C": "new"})
	assert.Equal([]string{"A=3", "B=override", "C=new", "X=a=b"}, env.ToEnviron(merged))
}
