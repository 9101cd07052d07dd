package metaformat

import (
	"fmt"
	"io"
	"strings"

	"github.com/magiconair/properties"

	"github.com/slok/extagger/internal/model"
)

// PropertiesValueSeparator joins the values of a multi-valued field in a properties file.
const PropertiesValueSeparator = "^|~"

// Properties encodes metadata as a Java style properties file, multiple values are
// joined with PropertiesValueSeparator. Expansion of ${...} values is disabled.
type Properties struct{}

func (Properties) Name() string { return FormatProperties }

func (Properties) Encode(w io.Writer, meta model.Metadata) error {
	p := properties.NewProperties()
	p.DisableExpansion = true

	for _, f := range meta.Fields() {
		values := meta.Get(f)
		if len(values) == 0 {
			continue
		}
		if _, _, err := p.Set(f, strings.Join(values, PropertiesValueSeparator)); err != nil {
			return fmt.Errorf("could not set property %q: %w", f, err)
		}
	}

	if _, err := p.Write(w, properties.UTF8); err != nil {
		return fmt.Errorf("could not write properties: %w", err)
	}
	return nil
}

func (Properties) Decode(r io.Reader) (model.Metadata, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("could not read properties: %w", err)
	}

	l := &properties.Loader{Encoding: properties.UTF8, DisableExpansion: true}
	p, err := l.LoadBytes(data)
	if err != nil {
		return nil, fmt.Errorf("could not decode properties: %w", err)
	}

	meta := model.Metadata{}
	for _, k := range p.Keys() {
		v, _ := p.Get(k)
		meta.Set(k, strings.Split(v, PropertiesValueSeparator)...)
	}
	return meta, nil
}
