package metaformat

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/slok/extagger/internal/model"
)

// YAML encodes metadata as a YAML mapping of string sequences.
type YAML struct{}

func (YAML) Name() string { return FormatYAML }

func (YAML) Encode(w io.Writer, meta model.Metadata) error {
	if meta == nil {
		meta = model.Metadata{}
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(map[string][]string(meta)); err != nil {
		return fmt.Errorf("could not encode yaml: %w", err)
	}
	return enc.Close()
}

func (YAML) Decode(r io.Reader) (model.Metadata, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("could not read yaml: %w", err)
	}

	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("could not decode yaml: %w", err)
	}

	meta := model.Metadata{}
	for k, v := range raw {
		values, err := toValues(k, v)
		if err != nil {
			return nil, err
		}
		meta.Set(k, values...)
	}
	return meta, nil
}
