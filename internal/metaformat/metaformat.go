// Package metaformat serializes metadata to exchange it with external processes.
package metaformat

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/slok/extagger/internal/model"
)

// Format names.
const (
	FormatJSON       = "json"
	FormatXML        = "xml"
	FormatProperties = "properties"
	FormatYAML       = "yaml"
)

// Format knows how to encode and decode metadata.
type Format interface {
	Name() string
	Encode(w io.Writer, meta model.Metadata) error
	Decode(r io.Reader) (model.Metadata, error)
}

// Registry gets formats by name.
type Registry struct {
	formats map[string]Format
}

// NewRegistry returns a registry with the formats.
func NewRegistry(formats ...Format) *Registry {
	r := &Registry{formats: map[string]Format{}}
	for _, f := range formats {
		r.formats[strings.ToLower(f.Name())] = f
	}
	return r
}

// NewDefaultRegistry returns a registry with all the formats of this package.
func NewDefaultRegistry() *Registry {
	return NewRegistry(JSON{}, XML{}, Properties{}, YAML{})
}

// Get returns the format by name (case insensitive). Unknown formats are configuration
// errors.
func (r *Registry) Get(name string) (Format, error) {
	f, ok := r.formats[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("unsupported metadata format %q (supported: %s): %w", name, strings.Join(r.Names(), ", "), model.ErrConfiguration)
	}
	return f, nil
}

// Names returns the sorted format names.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.formats))
	for n := range r.formats {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// toValues converts a decoded generic value (JSON or YAML) to field values.
func toValues(field string, v any) ([]string, error) {
	switch tv := v.(type) {
	case nil:
		return nil, nil
	case string:
		return []string{tv}, nil
	case []any:
		values := make([]string, 0, len(tv))
		for _, e := range tv {
			switch te := e.(type) {
			case nil:
				continue
			case string:
				values = append(values, te)
			case map[string]any, []any:
				return nil, fmt.Errorf("field %q: nested values are not supported", field)
			default:
				values = append(values, fmt.Sprint(te))
			}
		}
		return values, nil
	case map[string]any:
		return nil, fmt.Errorf("field %q: nested values are not supported", field)
	default:
		return []string{fmt.Sprint(tv)}, nil
	}
}
