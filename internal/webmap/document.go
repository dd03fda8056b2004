package webmap

import (
	"encoding/json"
	"fmt"
)

// Document is the root web map definition. It owns the operational layer
// tree and the document-level expression list; every key the mutation tools
// do not touch rides along in the remainder and is written back verbatim.
//
// A Document is owned exclusively by one operation between fetch and
// persist. It is not safe for concurrent mutation and is discarded after
// the persisted copy is re-fetched for verification.
type Document struct {
	// Layers holds the top-level operational layers in stored order.
	Layers []LayerNode

	// Expressions holds the document-level expressionInfos records.
	Expressions []*ExpressionInfo

	hasLayers      bool
	hasExpressions bool
	rest           map[string]json.RawMessage
}

// ParseDocument decodes a raw web map definition.
func ParseDocument(data []byte) (*Document, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("web map document: %w", err)
	}

	doc := &Document{rest: raw}

	if layers, ok := raw[keyOperationalLayers]; ok {
		var rawLayers []json.RawMessage
		if err := json.Unmarshal(layers, &rawLayers); err != nil {
			return nil, fmt.Errorf("operationalLayers: %w", err)
		}
		doc.hasLayers = true
		delete(raw, keyOperationalLayers)

		doc.Layers = make([]LayerNode, 0, len(rawLayers))
		for i, rawLayer := range rawLayers {
			node, err := unmarshalLayerNode(rawLayer)
			if err != nil {
				return nil, fmt.Errorf("operationalLayers[%d]: %w", i, err)
			}
			doc.Layers = append(doc.Layers, node)
		}
	}

	if exprs, ok := raw[keyExpressionInfos]; ok {
		parsed, err := unmarshalExpressionInfos(exprs)
		if err != nil {
			return nil, err
		}
		doc.Expressions = parsed
		doc.hasExpressions = true
		delete(raw, keyExpressionInfos)
	}

	return doc, nil
}

// HasLayers reports whether the document carried the top-level layer key at
// all. A document without it is structurally anomalous: the walker yields
// nothing and mutations find zero matches.
func (d *Document) HasLayers() bool {
	return d.hasLayers
}

// EnsureExpressions marks the expression list present so an empty list is
// still written back, mirroring how the store materializes the key on first
// expression registration.
func (d *Document) EnsureExpressions() {
	d.hasExpressions = true
}

// MarshalJSON implements json.Marshaler for Document.
func (d *Document) MarshalJSON() ([]byte, error) {
	m := cloneRest(d.rest, 2)

	if d.hasLayers {
		layers := make([]json.RawMessage, 0, len(d.Layers))
		for i, node := range d.Layers {
			data, err := json.Marshal(node)
			if err != nil {
				return nil, fmt.Errorf("operationalLayers[%d]: %w", i, err)
			}
			layers = append(layers, data)
		}
		if err := setJSON(m, keyOperationalLayers, layers); err != nil {
			return nil, err
		}
	}

	if d.hasExpressions || len(d.Expressions) > 0 {
		if err := setJSON(m, keyExpressionInfos, d.Expressions); err != nil {
			return nil, err
		}
	}

	return json.Marshal(m)
}

// Encode serializes the document for persistence.
func (d *Document) Encode() ([]byte, error) {
	return json.Marshal(d)
}
