package metaformat

import (
	"encoding/xml"
	"fmt"
	"io"

	"github.com/slok/extagger/internal/model"
)

// XML encodes metadata as:
//
//	<metadata>
//	  <field name="title">
//	    <value>A title</value>
//	  </field>
//	</metadata>
type XML struct{}

type xmlMetadata struct {
	XMLName xml.Name   `xml:"metadata"`
	Fields  []xmlField `xml:"field"`
}

type xmlField struct {
	Name   string   `xml:"name,attr"`
	Values []string `xml:"value"`
}

func (XML) Name() string { return FormatXML }

func (XML) Encode(w io.Writer, meta model.Metadata) error {
	doc := xmlMetadata{}
	for _, f := range meta.Fields() {
		doc.Fields = append(doc.Fields, xmlField{Name: f, Values: meta.Get(f)})
	}

	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("could not encode xml: %w", err)
	}
	_, err := io.WriteString(w, "\n")
	return err
}

func (XML) Decode(r io.Reader) (model.Metadata, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("could not read xml: %w", err)
	}
	if len(data) == 0 {
		return model.Metadata{}, nil
	}

	var doc xmlMetadata
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("could not decode xml: %w", err)
	}

	meta := model.Metadata{}
	for _, f := range doc.Fields {
		if f.Name == "" {
			return nil, fmt.Errorf("xml field without name")
		}
		meta.Add(f.Name, f.Values...)
	}
	return meta, nil
}
