// Package placeholder parses command templates into argument vectors and replaces the
// placeholder tokens (e.g. ${INPUT}) they contain.
//
// Templates are never passed to a shell: quoting only groups text into a single
// argument and substitution is plain text replacement.
package placeholder

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/slok/extagger/internal/model"
)

// Template is a parsed command template.
type Template struct {
	args   []string
	tokens []model.Token
}

// Parse splits a command into arguments. Whitespace separates arguments, single and
// double quotes group text and backslash escapes the next character (except inside
// single quotes).
func Parse(command string) (Template, error) {
	args, err := split(command)
	if err != nil {
		return Template{}, fmt.Errorf("%w: %w", err, model.ErrConfiguration)
	}
	if len(args) == 0 {
		return Template{}, fmt.Errorf("command is empty: %w", model.ErrConfiguration)
	}

	var tokens []model.Token
	for _, t := range model.Tokens {
		for _, a := range args {
			if strings.Contains(a, t.Placeholder()) {
				tokens = append(tokens, t)
				break
			}
		}
	}

	return Template{args: args, tokens: tokens}, nil
}

// Args returns a copy of the unresolved arguments.
func (t Template) Args() []string { return append([]string(nil), t.args...) }

// Tokens returns the tokens present in the template.
func (t Template) Tokens() []model.Token { return append([]model.Token(nil), t.tokens...) }

// Has returns true if the token is present in the template.
func (t Template) Has(token model.Token) bool {
	for _, tk := range t.tokens {
		if tk == token {
			return true
		}
	}
	return false
}

// Resolve returns the argument vector with every present token replaced by its binding.
// A present token without binding is an error, bindings for tokens not present are
// ignored. Replaced values are not scanned again.
func (t Template) Resolve(bindings map[model.Token]string) ([]string, error) {
	for _, tk := range t.tokens {
		if _, ok := bindings[tk]; !ok {
			return nil, &model.TokenError{Token: tk, Err: fmt.Errorf("unbound placeholder: %w", model.ErrConfiguration)}
		}
	}

	oldnew := make([]string, 0, len(t.tokens)*2)
	for _, tk := range t.tokens {
		oldnew = append(oldnew, tk.Placeholder(), bindings[tk])
	}
	// A single Replacer pass never rescans replaced text.
	r := strings.NewReplacer(oldnew...)

	resolved := make([]string, len(t.args))
	for i, a := range t.args {
		resolved[i] = r.Replace(a)
	}

	return resolved, nil
}

func split(command string) ([]string, error) {
	var (
		args    []string
		current strings.Builder
		inArg   bool
		quote   rune
		escaped bool
	)

	for _, c := range command {
		switch {
		case escaped:
			current.WriteRune(c)
			escaped = false
		case c == '\\' && quote != '\'':
			escaped = true
			inArg = true
		case quote != 0:
			if c == quote {
				quote = 0
				continue
			}
			current.WriteRune(c)
		case c == '"' || c == '\'':
			quote = c
			inArg = true
		case unicode.IsSpace(c):
			if inArg {
				args = append(args, current.String())
				current.Reset()
				inArg = false
			}
		default:
			current.WriteRune(c)
			inArg = true
		}
	}

	if quote != 0 {
		return nil, fmt.Errorf("unterminated %c quote in command", quote)
	}
	if escaped {
		current.WriteRune('\\')
	}
	if inArg {
		args = append(args, current.String())
	}

	return args, nil
}
