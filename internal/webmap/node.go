package webmap

import (
	"encoding/json"
	"fmt"
)

// Document keys shared across the mutation tools.
const (
	keyOperationalLayers    = "operationalLayers"
	keyLayers               = "layers"
	keyURL                  = "url"
	keyTitle                = "title"
	keyLayerDefinition      = "layerDefinition"
	keyDefinitionExpression = "definitionExpression"
	keyFormInfo             = "formInfo"
	keyFormElements         = "formElements"
	keyExpressionInfos      = "expressionInfos"
)

// UnnamedLayer is the display fallback for layers without a title.
const UnnamedLayer = "Unnamed Layer"

// LayerNode is a sealed interface over the two operational layer kinds.
// Only *GroupLayer and *FeatureLayerRef implement it.
type LayerNode interface {
	layerNode() // Sealed - only these types implement it

	// DisplayTitle returns the node's title, or UnnamedLayer when absent.
	DisplayTitle() string
}

// GroupLayer is a nesting layer: a display title plus an ordered sequence of
// child nodes. Children are kept in stored order, which is the reverse of
// display order; use the walker for display-order traversal.
type GroupLayer struct {
	Title    string
	Children []LayerNode

	hasTitle bool
	rest     map[string]json.RawMessage
}

func (*GroupLayer) layerNode() {}

// DisplayTitle implements LayerNode.
func (g *GroupLayer) DisplayTitle() string {
	if g.Title == "" {
		return UnnamedLayer
	}
	return g.Title
}

// FeatureLayerRef is a leaf layer referencing remote feature data by address.
// Address may be empty for layer kinds that embed their data (map notes);
// such nodes are walked but are never mutation targets.
type FeatureLayerRef struct {
	Title   string
	Address string

	// Definition holds the layer's filter configuration; nil when the raw
	// layer carries no layerDefinition object.
	Definition *LayerDefinition

	// Form holds the layer's editing-form configuration; nil when the raw
	// layer carries no formInfo object.
	Form *FormInfo

	hasTitle   bool
	hasAddress bool
	rest       map[string]json.RawMessage
}

func (*FeatureLayerRef) layerNode() {}

// DisplayTitle implements LayerNode.
func (f *FeatureLayerRef) DisplayTitle() string {
	if f.Title == "" {
		return UnnamedLayer
	}
	return f.Title
}

// EnsureDefinition returns the layer's definition object, creating an empty
// one first if the layer has none.
func (f *FeatureLayerRef) EnsureDefinition() *LayerDefinition {
	if f.Definition == nil {
		f.Definition = &LayerDefinition{}
	}
	return f.Definition
}

// LayerDefinition carries the slice of layerDefinition this package mutates:
// the row-filter predicate. Everything else round-trips in the remainder.
type LayerDefinition struct {
	expression    string
	hasExpression bool
	rest          map[string]json.RawMessage
}

// Expression returns the definition expression and whether one is set.
// An absent expression is distinct from an empty one.
func (d *LayerDefinition) Expression() (string, bool) {
	return d.expression, d.hasExpression
}

// SetExpression sets the definition expression.
func (d *LayerDefinition) SetExpression(expr string) {
	d.expression = expr
	d.hasExpression = true
}

// NewGroupLayer builds a group with the given children in stored order.
// Intended for constructing documents in tests and synthetic fixtures.
func NewGroupLayer(title string, children ...LayerNode) *GroupLayer {
	return &GroupLayer{Title: title, Children: children, hasTitle: title != ""}
}

// NewFeatureLayerRef builds a leaf layer reference.
func NewFeatureLayerRef(title, address string) *FeatureLayerRef {
	return &FeatureLayerRef{
		Title:      title,
		Address:    address,
		hasTitle:   title != "",
		hasAddress: address != "",
	}
}

// unmarshalLayerNode decodes one raw operational layer. A "layers" array
// forces group semantics even when an address is also present; the stray
// address then survives in the group's remainder.
func unmarshalLayerNode(data []byte) (LayerNode, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("layer node: %w", err)
	}

	if children, ok := raw[keyLayers]; ok && isJSONArray(children) {
		return unmarshalGroupLayer(raw)
	}
	return unmarshalFeatureLayerRef(raw)
}

func unmarshalGroupLayer(raw map[string]json.RawMessage) (*GroupLayer, error) {
	g := &GroupLayer{rest: raw}

	if title, ok := raw[keyTitle]; ok {
		if err := json.Unmarshal(title, &g.Title); err != nil {
			return nil, fmt.Errorf("group title: %w", err)
		}
		g.hasTitle = true
		delete(raw, keyTitle)
	}

	var children []json.RawMessage
	if err := json.Unmarshal(raw[keyLayers], &children); err != nil {
		return nil, fmt.Errorf("group %q children: %w", g.DisplayTitle(), err)
	}
	delete(raw, keyLayers)

	g.Children = make([]LayerNode, 0, len(children))
	for i, child := range children {
		node, err := unmarshalLayerNode(child)
		if err != nil {
			return nil, fmt.Errorf("group %q child %d: %w", g.DisplayTitle(), i, err)
		}
		g.Children = append(g.Children, node)
	}
	return g, nil
}

func unmarshalFeatureLayerRef(raw map[string]json.RawMessage) (*FeatureLayerRef, error) {
	f := &FeatureLayerRef{rest: raw}

	if title, ok := raw[keyTitle]; ok {
		if err := json.Unmarshal(title, &f.Title); err != nil {
			return nil, fmt.Errorf("layer title: %w", err)
		}
		f.hasTitle = true
		delete(raw, keyTitle)
	}

	if addr, ok := raw[keyURL]; ok {
		if err := json.Unmarshal(addr, &f.Address); err != nil {
			return nil, fmt.Errorf("layer %q url: %w", f.DisplayTitle(), err)
		}
		f.hasAddress = true
		delete(raw, keyURL)
	}

	if def, ok := raw[keyLayerDefinition]; ok {
		parsed, err := unmarshalLayerDefinition(def)
		if err != nil {
			return nil, fmt.Errorf("layer %q: %w", f.DisplayTitle(), err)
		}
		f.Definition = parsed
		delete(raw, keyLayerDefinition)
	}

	if form, ok := raw[keyFormInfo]; ok {
		parsed, err := unmarshalFormInfo(form)
		if err != nil {
			return nil, fmt.Errorf("layer %q: %w", f.DisplayTitle(), err)
		}
		f.Form = parsed
		delete(raw, keyFormInfo)
	}

	return f, nil
}

func unmarshalLayerDefinition(data []byte) (*LayerDefinition, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("layerDefinition: %w", err)
	}

	d := &LayerDefinition{rest: raw}
	if expr, ok := raw[keyDefinitionExpression]; ok {
		if err := json.Unmarshal(expr, &d.expression); err != nil {
			return nil, fmt.Errorf("definitionExpression: %w", err)
		}
		d.hasExpression = true
		delete(raw, keyDefinitionExpression)
	}
	return d, nil
}

// MarshalJSON implements json.Marshaler for GroupLayer.
func (g *GroupLayer) MarshalJSON() ([]byte, error) {
	m := cloneRest(g.rest, 2)
	if g.hasTitle || g.Title != "" {
		if err := setJSON(m, keyTitle, g.Title); err != nil {
			return nil, err
		}
	}

	children := make([]json.RawMessage, 0, len(g.Children))
	for i, child := range g.Children {
		data, err := json.Marshal(child)
		if err != nil {
			return nil, fmt.Errorf("group %q child %d: %w", g.DisplayTitle(), i, err)
		}
		children = append(children, data)
	}
	if err := setJSON(m, keyLayers, children); err != nil {
		return nil, err
	}
	return json.Marshal(m)
}

// MarshalJSON implements json.Marshaler for FeatureLayerRef.
func (f *FeatureLayerRef) MarshalJSON() ([]byte, error) {
	m := cloneRest(f.rest, 4)
	if f.hasTitle || f.Title != "" {
		if err := setJSON(m, keyTitle, f.Title); err != nil {
			return nil, err
		}
	}
	if f.hasAddress || f.Address != "" {
		if err := setJSON(m, keyURL, f.Address); err != nil {
			return nil, err
		}
	}
	if f.Definition != nil {
		if err := setJSON(m, keyLayerDefinition, f.Definition); err != nil {
			return nil, err
		}
	}
	if f.Form != nil {
		if err := setJSON(m, keyFormInfo, f.Form); err != nil {
			return nil, err
		}
	}
	return json.Marshal(m)
}

// MarshalJSON implements json.Marshaler for LayerDefinition.
func (d *LayerDefinition) MarshalJSON() ([]byte, error) {
	m := cloneRest(d.rest, 1)
	if d.hasExpression {
		if err := setJSON(m, keyDefinitionExpression, d.expression); err != nil {
			return nil, err
		}
	}
	return json.Marshal(m)
}

// cloneRest copies a remainder map with headroom for typed keys.
func cloneRest(rest map[string]json.RawMessage, extra int) map[string]json.RawMessage {
	m := make(map[string]json.RawMessage, len(rest)+extra)
	for k, v := range rest {
		m[k] = v
	}
	return m
}

// setJSON marshals v into m under key.
func setJSON(m map[string]json.RawMessage, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", key, err)
	}
	m[key] = data
	return nil
}

// isJSONArray reports whether data's first non-space byte opens an array.
func isJSONArray(data []byte) bool {
	for _, b := range data {
		switch b {
		case ' ', '\t', '\n', '\r':
			continue
		case '[':
			return true
		default:
			return false
		}
	}
	return false
}
