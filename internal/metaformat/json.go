package metaformat

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/slok/extagger/internal/model"
)

// JSON encodes metadata as a JSON object of string arrays. Decoding also accepts plain
// string values.
type JSON struct{}

func (JSON) Name() string { return FormatJSON }

func (JSON) Encode(w io.Writer, meta model.Metadata) error {
	if meta == nil {
		meta = model.Metadata{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(meta)
}

func (JSON) Decode(r io.Reader) (model.Metadata, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("could not read json: %w", err)
	}
	if len(data) == 0 {
		return model.Metadata{}, nil
	}

	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("could not decode json: %w", err)
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
