package payload

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Shape identifies the wire form a flow payload was (or will be) encoded in.
// Admin versions have historically produced two formats: a bare JSON array of
// flow nodes, and a wrapper object carrying the array plus a revision marker.
type Shape int

const (
	// ShapeBare is a plain JSON array of flow nodes.
	ShapeBare Shape = iota
	// ShapeScoped is the wrapper form {"flows": [...], "rev": "..."}.
	ShapeScoped
)

func (s Shape) String() string {
	switch s {
	case ShapeBare:
		return "bare"
	case ShapeScoped:
		return "scoped"
	default:
		return fmt.Sprintf("shape(%d)", int(s))
	}
}

// Payload is a set of flow nodes in either wire shape.
type Payload struct {
	Flows []map[string]any
	Rev   string
	Shape Shape
}

// scopedDoc is the wrapper wire form.
type scopedDoc struct {
	Flows []map[string]any `json:"flows"`
	Rev   string           `json:"rev,omitempty"`
}

// Empty returns the default payload for a store with no flow data yet:
// a bare empty array with no revision marker.
func Empty() *Payload {
	return &Payload{Flows: []map[string]any{}, Shape: ShapeBare}
}

// Decode parses either wire form. The first non-whitespace byte decides:
// '[' is the bare array form, '{' is the wrapper form.
func Decode(data []byte) (*Payload, error) {
	trimmed := bytes.TrimLeft(data, " \t\r\n")
	if len(trimmed) == 0 {
		return Empty(), nil
	}

	switch trimmed[0] {
	case '[':
		var flows []map[string]any
		if err := json.Unmarshal(trimmed, &flows); err != nil {
			return nil, fmt.Errorf("decode bare flow payload: %w", err)
		}
		if flows == nil {
			flows = []map[string]any{}
		}
		return &Payload{Flows: flows, Shape: ShapeBare}, nil
	case '{':
		var doc scopedDoc
		if err := json.Unmarshal(trimmed, &doc); err != nil {
			return nil, fmt.Errorf("decode scoped flow payload: %w", err)
		}
		if doc.Flows == nil {
			doc.Flows = []map[string]any{}
		}
		return &Payload{Flows: doc.Flows, Rev: doc.Rev, Shape: ShapeScoped}, nil
	default:
		return nil, fmt.Errorf("flow payload is neither array nor object (leading byte %q)", trimmed[0])
	}
}

// AsBare returns a copy of p in the bare shape. The revision marker does not
// survive the conversion since the bare form has nowhere to carry it.
func (p *Payload) AsBare() *Payload {
	return &Payload{Flows: p.Flows, Shape: ShapeBare}
}

// AsScoped returns a copy of p in the wrapper shape, carrying rev.
func (p *Payload) AsScoped(rev string) *Payload {
	if rev == "" {
		rev = p.Rev
	}
	return &Payload{Flows: p.Flows, Rev: rev, Shape: ShapeScoped}
}

// Encode serializes p in its own shape.
func (p *Payload) Encode() ([]byte, error) {
	if p.Shape == ShapeScoped {
		return json.Marshal(scopedDoc{Flows: p.Flows, Rev: p.Rev})
	}
	return json.Marshal(p.Flows)
}

// IDs returns the node ids in flow order. Nodes without a string id are
// skipped.
func (p *Payload) IDs() []string {
	ids := make([]string, 0, len(p.Flows))
	for _, node := range p.Flows {
		if id, ok := node["id"].(string); ok {
			ids = append(ids, id)
		}
	}
	return ids
}
