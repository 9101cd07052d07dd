package placeholder_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slok/extagger/internal/model"
	"github.com/slok/extagger/internal/placeholder"
)

func TestParse(t *testing.T) {
	tests := map[string]struct {
		command   string
		expArgs   []string
		expTokens []model.Token
		expErr    bool
	}{
		"A simple command should be split by whitespace.": {
			command: "my   command\t-a b",
			expArgs: []string{"my", "command", "-a", "b"},
		},

		"Quoted text should be a single argument.": {
			command: `app "a b" 'c  d' e\ f`,
			expArgs: []string{"app", "a b", "c  d", "e f"},
		},

		"Tokens without surrounding whitespace should be detected.": {
			command:   "app -in=${INPUT}.txt ${REFERENCE}${OUTPUT_META}",
			expArgs:   []string{"app", "-in=${INPUT}.txt", "${REFERENCE}${OUTPUT_META}"},
			expTokens: []model.Token{model.TokenInput, model.TokenOutputMeta, model.TokenReference},
		},

		"Unknown placeholders should not be tokens.": {
			command: "app ${FOO}",
			expArgs: []string{"app", "${FOO}"},
		},

		"An unterminated quote should fail.": {
			command: `app "abc`,
			expErr:  true,
		},

		"An empty command should fail.": {
			command: "   ",
			expErr:  true,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert := assert.New(t)

			tpl, err := placeholder.Parse(test.command)

			if test.expErr {
				assert.Error(err)
				assert.True(errors.Is(err, model.ErrConfiguration))
			} else if assert.NoError(err) {
				assert.Equal(test.expArgs, tpl.Args())
				assert.Equal(test.expTokens, tpl.Tokens())
			}
		})
	}
}

func TestResolve(t *testing.T) {
	tests := map[string]struct {
		command  string
		bindings map[model.Token]string
		expArgs  []string
		expToken model.Token
		expErr   bool
	}{
		"Bound tokens should be replaced.": {
			command: "app -ic ${INPUT} -ref=${REFERENCE}",
			bindings: map[model.Token]string{
				model.TokenInput:     "/tmp/in",
				model.TokenReference: "doc-1",
			},
			expArgs: []string{"app", "-ic", "/tmp/in", "-ref=doc-1"},
		},

		"Bound tokens not present should be ignored.": {
			command: "app ${INPUT}",
			bindings: map[model.Token]string{
				model.TokenInput:      "/tmp/in",
				model.TokenOutputMeta: "/tmp/om",
			},
			expArgs: []string{"app", "/tmp/in"},
		},

		"Resolved values should not be rescanned.": {
			command: "app ${REFERENCE} ${INPUT}",
			bindings: map[model.Token]string{
				model.TokenInput:     "/tmp/in",
				model.TokenReference: "${INPUT}",
			},
			expArgs: []string{"app", "${INPUT}", "/tmp/in"},
		},

		"A token used many times should be replaced everywhere.": {
			command:  "app ${INPUT} ${INPUT}:${INPUT}",
			bindings: map[model.Token]string{model.TokenInput: "x"},
			expArgs:  []string{"app", "x", "x:x"},
		},

		"A present unbound token should fail naming the token.": {
			command:  "app ${INPUT} ${OUTPUT}",
			bindings: map[model.Token]string{model.TokenInput: "/tmp/in"},
			expToken: model.TokenOutput,
			expErr:   true,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert := assert.New(t)
			require := require.New(t)

			tpl, err := placeholder.Parse(test.command)
			require.NoError(err)

			args, err := tpl.Resolve(test.bindings)

			if test.expErr {
				require.Error(err)
				assert.True(errors.Is(err, model.ErrConfiguration))
				var tkErr *model.TokenError
				require.True(errors.As(err, &tkErr))
				assert.Equal(test.expToken, tkErr.Token)
			} else if assert.NoError(err) {
				assert.Equal(test.expArgs, args)
			}
		})
	}
}

func TestResolveNeverLeavesBoundTokens(t *testing.T) {
	bindings := map[model.Token]string{}
	for _, tk := range model.Tokens {
		bindings[tk] = "/resolved/" + strings.ToLower(string(tk))
	}

	for _, tk := range model.Tokens {
		tpl, err := placeholder.Parse("cmd a" + tk.Placeholder() + "b " + tk.Placeholder())
		require.NoError(t, err)

		args, err := tpl.Resolve(bindings)
		require.NoError(t, err)
		for _, a := range args {
			assert.NotContains(t, a, tk.Placeholder())
		}
	}
}
