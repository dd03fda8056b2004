package webmap

import (
	"encoding/json"
	"fmt"
	"log/slog"
)

// DefaultGroupLabel is the group that receives placed field elements when a
// request names none.
const DefaultGroupLabel = "Metadata"

// Form element discriminator values.
const (
	elementTypeGroup = "group"
	elementTypeField = "field"
)

// FormElement is a sealed interface over the form-element kinds. Only
// *GroupElement, *FieldElement, and *OpaqueElement implement it. Opaque
// elements carry kinds this package does not model (text, relationship,
// attachment, ...) and round-trip byte for byte.
type FormElement interface {
	formElement() // Sealed - only these types implement it
}

// GroupElement is a labeled container of nested form elements.
type GroupElement struct {
	Label    string
	Elements []FormElement

	hasLabel    bool
	hasElements bool
	rest        map[string]json.RawMessage
}

func (*GroupElement) formElement() {}

// FieldElement binds one attribute field into the editing form. Its value
// and editability are driven by named expressions.
type FieldElement struct {
	Label              string
	FieldName          string
	ValueExpression    string
	EditableExpression string

	// InputType is the input descriptor, kept verbatim: descriptors vary by
	// widget kind and are only ever written whole, on element creation.
	InputType json.RawMessage

	hasLabel              bool
	hasFieldName          bool
	hasValueExpression    bool
	hasEditableExpression bool
	rest                  map[string]json.RawMessage
}

func (*FieldElement) formElement() {}

// OpaqueElement preserves an unmodeled form-element kind untouched.
type OpaqueElement struct {
	raw json.RawMessage
}

func (*OpaqueElement) formElement() {}

// MarshalJSON implements json.Marshaler for OpaqueElement.
func (o *OpaqueElement) MarshalJSON() ([]byte, error) {
	return o.raw, nil
}

// FormInfo is a layer's editing-form configuration.
type FormInfo struct {
	Elements []FormElement

	// Expressions holds the form's own nested expressionInfos when present.
	// The registry operates on the document-level list; this one is modeled
	// for inspection and round-trip only.
	Expressions []*ExpressionInfo

	hasElements    bool
	hasExpressions bool
	rest           map[string]json.RawMessage
}

// EnsureElements marks the element list present so an empty list still
// serializes, mirroring how the store materializes formElements on first
// placement.
func (fi *FormInfo) EnsureElements() {
	fi.hasElements = true
}

func unmarshalFormInfo(data []byte) (*FormInfo, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("formInfo: %w", err)
	}

	fi := &FormInfo{rest: raw}

	if elements, ok := raw[keyFormElements]; ok {
		var rawElements []json.RawMessage
		if err := json.Unmarshal(elements, &rawElements); err != nil {
			return nil, fmt.Errorf("formElements: %w", err)
		}
		fi.hasElements = true
		delete(raw, keyFormElements)

		fi.Elements = make([]FormElement, 0, len(rawElements))
		for i, rawElement := range rawElements {
			element, err := unmarshalFormElement(rawElement)
			if err != nil {
				return nil, fmt.Errorf("formElements[%d]: %w", i, err)
			}
			fi.Elements = append(fi.Elements, element)
		}
	}

	if exprs, ok := raw[keyExpressionInfos]; ok {
		parsed, err := unmarshalExpressionInfos(exprs)
		if err != nil {
			return nil, fmt.Errorf("formInfo: %w", err)
		}
		fi.Expressions = parsed
		fi.hasExpressions = true
		delete(raw, keyExpressionInfos)
	}

	return fi, nil
}

// MarshalJSON implements json.Marshaler for FormInfo.
func (fi *FormInfo) MarshalJSON() ([]byte, error) {
	m := cloneRest(fi.rest, 2)

	if fi.hasElements || len(fi.Elements) > 0 {
		elements := make([]json.RawMessage, 0, len(fi.Elements))
		for i, element := range fi.Elements {
			data, err := json.Marshal(element)
			if err != nil {
				return nil, fmt.Errorf("formElements[%d]: %w", i, err)
			}
			elements = append(elements, data)
		}
		if err := setJSON(m, keyFormElements, elements); err != nil {
			return nil, err
		}
	}

	if fi.hasExpressions || len(fi.Expressions) > 0 {
		if err := setJSON(m, keyExpressionInfos, fi.Expressions); err != nil {
			return nil, err
		}
	}

	return json.Marshal(m)
}

// unmarshalFormElement dispatches on the "type" discriminator. Unrecognized
// or absent kinds are preserved opaquely.
func unmarshalFormElement(data []byte) (FormElement, error) {
	var discriminator struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &discriminator); err != nil {
		return nil, fmt.Errorf("form element: %w", err)
	}

	switch discriminator.Type {
	case elementTypeGroup:
		return unmarshalGroupElement(data)
	case elementTypeField:
		return unmarshalFieldElement(data)
	default:
		return &OpaqueElement{raw: append(json.RawMessage(nil), data...)}, nil
	}
}

func unmarshalGroupElement(data []byte) (*GroupElement, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("group element: %w", err)
	}
	delete(raw, "type")

	g := &GroupElement{rest: raw}
	if label, ok := raw["label"]; ok {
		if err := json.Unmarshal(label, &g.Label); err != nil {
			return nil, fmt.Errorf("group element label: %w", err)
		}
		g.hasLabel = true
		delete(raw, "label")
	}

	if elements, ok := raw["elements"]; ok {
		var rawElements []json.RawMessage
		if err := json.Unmarshal(elements, &rawElements); err != nil {
			return nil, fmt.Errorf("group %q elements: %w", g.Label, err)
		}
		g.hasElements = true
		delete(raw, "elements")

		g.Elements = make([]FormElement, 0, len(rawElements))
		for i, rawElement := range rawElements {
			element, err := unmarshalFormElement(rawElement)
			if err != nil {
				return nil, fmt.Errorf("group %q elements[%d]: %w", g.Label, i, err)
			}
			g.Elements = append(g.Elements, element)
		}
	}

	return g, nil
}

func unmarshalFieldElement(data []byte) (*FieldElement, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("field element: %w", err)
	}
	delete(raw, "type")

	f := &FieldElement{rest: raw}
	for key, target := range map[string]struct {
		dst *string
		has *bool
	}{
		"label":              {&f.Label, &f.hasLabel},
		"fieldName":          {&f.FieldName, &f.hasFieldName},
		"valueExpression":    {&f.ValueExpression, &f.hasValueExpression},
		"editableExpression": {&f.EditableExpression, &f.hasEditableExpression},
	} {
		if v, ok := raw[key]; ok {
			if err := json.Unmarshal(v, target.dst); err != nil {
				return nil, fmt.Errorf("field element %s: %w", key, err)
			}
			*target.has = true
			delete(raw, key)
		}
	}

	if input, ok := raw["inputType"]; ok {
		f.InputType = append(json.RawMessage(nil), input...)
		delete(raw, "inputType")
	}

	return f, nil
}

// MarshalJSON implements json.Marshaler for GroupElement.
func (g *GroupElement) MarshalJSON() ([]byte, error) {
	m := cloneRest(g.rest, 3)
	if err := setJSON(m, "type", elementTypeGroup); err != nil {
		return nil, err
	}
	if g.hasLabel || g.Label != "" {
		if err := setJSON(m, "label", g.Label); err != nil {
			return nil, err
		}
	}
	if g.hasElements || len(g.Elements) > 0 {
		elements := make([]json.RawMessage, 0, len(g.Elements))
		for i, element := range g.Elements {
			data, err := json.Marshal(element)
			if err != nil {
				return nil, fmt.Errorf("group %q elements[%d]: %w", g.Label, i, err)
			}
			elements = append(elements, data)
		}
		if err := setJSON(m, "elements", elements); err != nil {
			return nil, err
		}
	}
	return json.Marshal(m)
}

// MarshalJSON implements json.Marshaler for FieldElement.
func (f *FieldElement) MarshalJSON() ([]byte, error) {
	m := cloneRest(f.rest, 6)
	if err := setJSON(m, "type", elementTypeField); err != nil {
		return nil, err
	}
	for key, field := range map[string]struct {
		value string
		has   bool
	}{
		"label":              {f.Label, f.hasLabel},
		"fieldName":          {f.FieldName, f.hasFieldName},
		"valueExpression":    {f.ValueExpression, f.hasValueExpression},
		"editableExpression": {f.EditableExpression, f.hasEditableExpression},
	} {
		if field.has || field.value != "" {
			if err := setJSON(m, key, field.value); err != nil {
				return nil, err
			}
		}
	}
	if f.InputType != nil {
		m["inputType"] = f.InputType
	}
	return json.Marshal(m)
}

// DefaultTextBoxInput is the input descriptor given to newly created field
// elements.
func DefaultTextBoxInput() json.RawMessage {
	return json.RawMessage(`{"type":"text-box","maxLength":255,"minLength":0}`)
}

// NewGroupElement builds an empty labeled group.
func NewGroupElement(label string) *GroupElement {
	return &GroupElement{Label: label, hasLabel: true, hasElements: true, Elements: []FormElement{}}
}

// NewFieldElement builds a field element carrying the default text-box
// input descriptor.
func NewFieldElement(label, fieldName, valueExpression, editableExpression string) *FieldElement {
	return &FieldElement{
		Label:                 label,
		FieldName:             fieldName,
		ValueExpression:       valueExpression,
		EditableExpression:    editableExpression,
		InputType:             DefaultTextBoxInput(),
		hasLabel:              true,
		hasFieldName:          true,
		hasValueExpression:    true,
		hasEditableExpression: true,
	}
}

// PlaceFieldRequest describes one field-element placement.
type PlaceFieldRequest struct {
	FieldName      string
	ExpressionName string
	// GroupLabel defaults to DefaultGroupLabel.
	GroupLabel string
	// Label defaults to FieldLabel(FieldName).
	Label string
	// Editable selects which system boolean constant drives editability.
	Editable bool
}

// Placer locates, moves, creates, and rebinds field elements within one
// layer's form.
type Placer struct {
	form   *FormInfo
	logger *slog.Logger
}

// NewPlacer wraps a layer's form. A nil logger falls back to slog.Default().
func NewPlacer(form *FormInfo, logger *slog.Logger) *Placer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Placer{form: form, logger: logger}
}

// PlaceField ensures a field element for req.FieldName exists inside the
// target group with the requested bindings.
//
// An existing element (first depth-first match in literal document order
// wins if duplicates exist) is detached from wherever it lives and
// re-attached to the target group when it is elsewhere, then its bindings
// are updated property by property. The return value reports whether any
// binding changed or an element was created; a bare move with already
// correct bindings reports false.
func (p *Placer) PlaceField(req PlaceFieldRequest) bool {
	groupLabel := req.GroupLabel
	if groupLabel == "" {
		groupLabel = DefaultGroupLabel
	}
	label := req.Label
	if label == "" {
		label = FieldLabel(req.FieldName)
	}

	p.form.EnsureElements()

	existing := findFieldElement(p.form.Elements, req.FieldName)
	if existing == nil {
		target := p.findOrCreateGroup(groupLabel)
		target.Elements = append(target.Elements, NewFieldElement(
			label, req.FieldName, req.ExpressionName, editableExpression(req.Editable),
		))
		p.logger.Info("added field element",
			"field", req.FieldName, "group", groupLabel)
		return true
	}

	parent := findParentGroup(p.form.Elements, existing)
	if parent == nil || parent.Label != groupLabel {
		p.detach(existing, parent)
		target := p.findOrCreateGroup(groupLabel)
		target.Elements = append(target.Elements, existing)
		p.logger.Info("moved field element",
			"field", req.FieldName, "group", groupLabel)
	}

	return p.updateFieldElement(existing, req.ExpressionName, req.FieldName, label, req.Editable)
}

// editableExpression maps the editable flag onto its system constant.
func editableExpression(editable bool) string {
	if editable {
		return ExprSystemTrue
	}
	return ExprSystemFalse
}

// findFieldElement returns the first element bound to fieldName, searching
// depth-first in literal document order. Duplicate bindings are a
// pre-existing anomaly; the first match wins and the rest are left alone.
func findFieldElement(elements []FormElement, fieldName string) *FieldElement {
	for _, element := range elements {
		switch e := element.(type) {
		case *FieldElement:
			if e.FieldName == fieldName {
				return e
			}
		case *GroupElement:
			if found := findFieldElement(e.Elements, fieldName); found != nil {
				return found
			}
		}
	}
	return nil
}

// findParentGroup returns the group whose element list holds target, or nil
// when target sits at the top level (or is absent).
func findParentGroup(elements []FormElement, target *FieldElement) *GroupElement {
	for _, element := range elements {
		group, ok := element.(*GroupElement)
		if !ok {
			continue
		}
		for _, child := range group.Elements {
			if child == FormElement(target) {
				return group
			}
		}
		if nested := findParentGroup(group.Elements, target); nested != nil {
			return nested
		}
	}
	return nil
}

// detach removes target from its parent group's list, or from the top level
// when parent is nil.
func (p *Placer) detach(target *FieldElement, parent *GroupElement) {
	if parent != nil {
		parent.Elements = removeElement(parent.Elements, target)
		p.logger.Info("detached field element", "field", target.FieldName, "from", parent.Label)
		return
	}
	p.form.Elements = removeElement(p.form.Elements, target)
	p.logger.Info("detached field element from top level", "field", target.FieldName)
}

// removeElement drops the element identical to target, preserving order.
func removeElement(elements []FormElement, target *FieldElement) []FormElement {
	for i, element := range elements {
		if element == FormElement(target) {
			return append(elements[:i], elements[i+1:]...)
		}
	}
	return elements
}

// findOrCreateGroup returns the top-level group labeled label, appending a
// fresh empty one when absent.
func (p *Placer) findOrCreateGroup(label string) *GroupElement {
	for _, element := range p.form.Elements {
		if group, ok := element.(*GroupElement); ok && group.Label == label {
			group.hasElements = true
			return group
		}
	}

	group := NewGroupElement(label)
	p.form.Elements = append(p.form.Elements, group)
	p.logger.Info("created form group", "group", label)
	return group
}

// updateFieldElement rebinds the element property by property, reporting
// whether anything actually changed.
func (p *Placer) updateFieldElement(element *FieldElement, expressionName, fieldName, label string, editable bool) bool {
	changed := false

	if element.ValueExpression != expressionName {
		element.ValueExpression = expressionName
		element.hasValueExpression = true
		changed = true
	}

	if want := editableExpression(editable); element.EditableExpression != want {
		element.EditableExpression = want
		element.hasEditableExpression = true
		changed = true
	}

	if fieldName != "" && element.FieldName != fieldName {
		element.FieldName = fieldName
		element.hasFieldName = true
		changed = true
	}

	if label != "" && element.Label != label {
		element.Label = label
		element.hasLabel = true
		changed = true
	}

	if changed {
		p.logger.Info("updated field element", "field", element.FieldName)
	}
	return changed
}
