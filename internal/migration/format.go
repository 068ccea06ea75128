package migration

import (
	"bytes"
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"io"

	"sigs.k8s.io/yaml"
)

// SegmentFormat encodes the payload of one segment. A payload holds the rows
// of a single type, each labelled with the type's alias.
type SegmentFormat interface {
	// Extension is the suffix of entries written in this format.
	Extension() string
	Encode(w io.Writer, alias string, rows []any) error
	// Decode parses a payload. resolve maps a row label to the translator able to
	// hold it; its errors are returned unchanged.
	Decode(data []byte, resolve func(alias string) (Translator, error)) ([]any, error)
}

var (
	YAML SegmentFormat = yamlFormat{}
	XML  SegmentFormat = xmlFormat{}
)

func FormatByName(name string) (SegmentFormat, error) {
	switch name {
	case YAML.Extension(), "yml":
		return YAML, nil
	case XML.Extension():
		return XML, nil
	default:
		return nil, newErrInvalidArgument("unknown segment format %q", name)
	}
}

// yamlFormat writes a document with a single key, the alias, holding the list of rows.
type yamlFormat struct{}

func (yamlFormat) Extension() string {
	return "yaml"
}

func (yamlFormat) Encode(w io.Writer, alias string, rows []any) error {
	if rows == nil {
		rows = []any{}
	}
	data, err := yaml.Marshal(map[string][]any{alias: rows})
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

func (yamlFormat) Decode(data []byte, resolve func(alias string) (Translator, error)) ([]any, error) {
	var doc map[string][]json.RawMessage
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	if len(doc) != 1 {
		return nil, fmt.Errorf("expected a single root key, found %d", len(doc))
	}

	for alias, items := range doc {
		tr, err := resolve(alias)
		if err != nil {
			return nil, err
		}

		rows := make([]any, 0, len(items))
		for _, item := range items {
			row := tr.NewBackup()
			if err := json.Unmarshal(item, row); err != nil {
				return nil, err
			}
			rows = append(rows, row)
		}
		return rows, nil
	}
	return nil, nil
}

const xmlListElement = "list"

// xmlFormat writes <list> holding one element per row named after the alias.
type xmlFormat struct{}

func (xmlFormat) Extension() string {
	return "xml"
}

func (xmlFormat) Encode(w io.Writer, alias string, rows []any) error {
	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}

	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")

	list := xml.StartElement{Name: xml.Name{Local: xmlListElement}}
	if err := enc.EncodeToken(list); err != nil {
		return err
	}
	for _, row := range rows {
		if err := enc.EncodeElement(row, xml.StartElement{Name: xml.Name{Local: alias}}); err != nil {
			return err
		}
	}
	if err := enc.EncodeToken(list.End()); err != nil {
		return err
	}
	return enc.Flush()
}

func (xmlFormat) Decode(data []byte, resolve func(alias string) (Translator, error)) ([]any, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))

	root, err := nextStartElement(dec)
	if err != nil {
		return nil, err
	}
	if root.Name.Local != xmlListElement {
		return nil, fmt.Errorf("unexpected root element <%s>", root.Name.Local)
	}

	var (
		rows  []any
		tr    Translator
		alias string
	)
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			return nil, io.ErrUnexpectedEOF
		}
		if err != nil {
			return nil, err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			if tr == nil || t.Name.Local != alias {
				if tr, err = resolve(t.Name.Local); err != nil {
					return nil, err
				}
				alias = t.Name.Local
			}
			row := tr.NewBackup()
			if err := dec.DecodeElement(row, &t); err != nil {
				return nil, err
			}
			rows = append(rows, row)
		case xml.EndElement:
			return rows, nil
		}
	}
}

func nextStartElement(dec *xml.Decoder) (xml.StartElement, error) {
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			return xml.StartElement{}, errors.New("no root element")
		}
		if err != nil {
			return xml.StartElement{}, err
		}
		if se, ok := tok.(xml.StartElement); ok {
			return se, nil
		}
	}
}
