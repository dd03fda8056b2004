package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/fieldmaps/webmapctl/internal/fields"
	"github.com/fieldmaps/webmapctl/internal/webmap"
)

// GlobalFormRequest places one field's default-value element on every layer
// that exposes both the field and a form. The value is registered as a
// string expression regardless of the field's declared type.
type GlobalFormRequest struct {
	ItemID string
	Field  string
	Value  string
	// GroupLabel defaults to webmap.DefaultGroupLabel; Label to a
	// title-cased rendering of Field.
	GroupLabel string
	Label      string
	Editable   bool
	Simulate   bool
}

// LayerFormConfig is one layer's entry in a per-layer form request. Field
// and Value are required. The expression name, element label, and group
// placement are derived when not configured.
type LayerFormConfig struct {
	Field      string `json:"field" yaml:"field"`
	Value      string `json:"value" yaml:"value"`
	GroupLabel string `json:"group,omitempty" yaml:"group,omitempty"`
	Label      string `json:"label,omitempty" yaml:"label,omitempty"`
	Editable   bool   `json:"editable,omitempty" yaml:"editable,omitempty"`
}

// PerLayerFormRequest applies individually configured form defaults per
// layer address.
type PerLayerFormRequest struct {
	ItemID string
	Layers map[string]LayerFormConfig
	// OverwriteExpressions rewrites an already registered expression whose
	// text differs from the newly formatted value. Off by default: an
	// existing registration wins and the run stays idempotent.
	OverwriteExpressions bool
	Simulate             bool
}

// FormResult extends FilterResult with the names of expressions the run
// newly registered on the document.
type FormResult struct {
	FilterResult
	ExpressionsCreated []string `json:"expressionsCreated"`
}

func newFormResult() *FormResult {
	return &FormResult{
		FilterResult:       *newFilterResult(),
		ExpressionsCreated: []string{},
	}
}

// DeriveExpressionName maps a field name to its canonical expression name:
// "project_number" becomes "expr/set-project-number".
func DeriveExpressionName(fieldName string) string {
	slug := strings.ReplaceAll(strings.ToLower(fieldName), "_", "-")
	return "expr/set-" + slug
}

// ApplyPerLayerFormDefaults configures a default-value form element on each
// layer named in the request.
//
// Per layer, the run derives the expression name from the configured field,
// resolves the field's declared type, formats the value for that type,
// registers the expression, and places the field element inside its target
// group. A layer with no form configuration at all is skipped before any
// expression is registered for it: defaults are only injected into forms
// that already exist. A value that does not satisfy the field's declared
// type is an error for that address, not a skip.
//
// ExpressionsCreated lists names this run added to the document; an
// expression shared by several configured layers is created once and
// reported once.
func (e *Engine) ApplyPerLayerFormDefaults(ctx context.Context, req PerLayerFormRequest) (*FormResult, error) {
	if req.ItemID == "" {
		return nil, errors.New("an item id is required")
	}

	result := newFormResult()
	if len(req.Layers) == 0 {
		e.logger.Warn("no layer configurations provided")
		return result, nil
	}
	e.logger.Info("applying per-layer form defaults", "item", req.ItemID, "configured", len(req.Layers))

	item, doc, err := e.fetchWebMap(ctx, req.ItemID)
	if err != nil {
		return nil, err
	}
	if !doc.HasLayers() {
		e.logger.Warn("web map has no operational layers", "item", req.ItemID)
		return result, nil
	}

	resolver := fields.NewResolver(e.schema, e.logger)
	registry := webmap.NewRegistry(doc, e.logger)

	walker := webmap.NewWalker(doc, webmap.WalkOptions{Logger: e.logger})
	for {
		visit, ok := walker.Next()
		if !ok {
			break
		}
		ref, ok := visit.Node.(*webmap.FeatureLayerRef)
		if !ok || ref.Address == "" {
			continue
		}
		cfg, ok := req.Layers[ref.Address]
		if !ok {
			continue
		}

		if cfg.Field == "" {
			result.Errors[ref.Address] = "Missing field in configuration"
			continue
		}
		if cfg.Value == "" {
			result.Errors[ref.Address] = "Missing value in configuration"
			continue
		}
		if ref.Form == nil {
			e.logger.Info("layer has no form configuration, skipping", "layer", ref.DisplayTitle())
			result.Skipped = append(result.Skipped, ref.Address)
			continue
		}

		layerFields, err := resolver.Fields(ctx, ref.Address)
		if err != nil {
			e.logger.Error("layer schema unavailable",
				"layer", ref.DisplayTitle(),
				"address", ref.Address,
				"error", err,
			)
			result.Errors[ref.Address] = err.Error()
			continue
		}
		if !hasField(layerFields, cfg.Field) {
			e.logger.Warn("layer does not contain field",
				"layer", ref.DisplayTitle(),
				"field", cfg.Field,
			)
			result.Skipped = append(result.Skipped, ref.Address)
			continue
		}

		literal, err := e.formatter.Format(cfg.Value, resolver.TypeOf(ctx, ref.Address, cfg.Field))
		if err != nil {
			e.logger.Error("default value does not fit field type",
				"layer", ref.DisplayTitle(),
				"field", cfg.Field,
				"error", err,
			)
			result.Errors[ref.Address] = err.Error()
			continue
		}

		name := DeriveExpressionName(cfg.Field)
		outcome := registry.Upsert(webmap.UpsertRequest{
			Name:       name,
			Expression: literal.Arcade(),
			ReturnType: expressionReturnType(literal),
			Overwrite:  req.OverwriteExpressions,
		})
		if outcome == webmap.UpsertCreated {
			result.ExpressionsCreated = append(result.ExpressionsCreated, name)
		}

		placer := webmap.NewPlacer(ref.Form, e.logger)
		changed := placer.PlaceField(webmap.PlaceFieldRequest{
			FieldName:      cfg.Field,
			ExpressionName: name,
			GroupLabel:     cfg.GroupLabel,
			Label:          cfg.Label,
			Editable:       cfg.Editable,
		})
		if changed {
			e.logger.Info("updated form element",
				"layer", ref.DisplayTitle(),
				"field", cfg.Field,
			)
			result.Updated = append(result.Updated, ref.Address)
		} else {
			result.Skipped = append(result.Skipped, ref.Address)
		}
	}
	e.logger.Info("per-layer form defaults applied in memory",
		"updated", len(result.Updated),
		"skipped", len(result.Skipped),
		"errors", len(result.Errors),
		"expressions", len(result.ExpressionsCreated),
	)

	e.persistLayerRun(ctx, item, doc, result.Errors, req.Simulate)
	return result, nil
}

// ApplyGlobalFormDefault places one field's default-value element on every
// layer that exposes the field and already has a form.
//
// The expression is registered on the document before any layer is
// examined, so it is available for later runs even when zero layers match.
// Layers whose schemas cannot be read are skipped with a logged warning.
// There is no post-save verification for form runs.
func (e *Engine) ApplyGlobalFormDefault(ctx context.Context, req GlobalFormRequest) ([]string, error) {
	if req.ItemID == "" || req.Field == "" || req.Value == "" {
		return nil, errors.New("an item id, a target field, and a default value are required")
	}
	e.logger.Info("applying global form default",
		"item", req.ItemID,
		"field", req.Field,
	)

	item, doc, err := e.fetchWebMap(ctx, req.ItemID)
	if err != nil {
		return nil, err
	}

	updated := []string{}
	if !doc.HasLayers() {
		e.logger.Warn("web map has no operational layers", "item", req.ItemID)
		return updated, nil
	}

	literal, err := e.formatter.Format(req.Value, fields.TypeString)
	if err != nil {
		return nil, err
	}
	name := DeriveExpressionName(req.Field)
	webmap.NewRegistry(doc, e.logger).Upsert(webmap.UpsertRequest{
		Name:       name,
		Expression: literal.Arcade(),
	})

	resolver := fields.NewResolver(e.schema, e.logger)

	walker := webmap.NewWalker(doc, webmap.WalkOptions{Logger: e.logger})
	for {
		visit, ok := walker.Next()
		if !ok {
			break
		}
		ref, ok := visit.Node.(*webmap.FeatureLayerRef)
		if !ok || ref.Address == "" {
			continue
		}
		if ref.Form == nil {
			e.logger.Debug("layer has no form configuration, skipping", "layer", ref.DisplayTitle())
			continue
		}
		if !resolver.FieldExists(ctx, ref.Address, req.Field) {
			e.logger.Debug("layer does not contain field",
				"layer", ref.DisplayTitle(),
				"field", req.Field,
			)
			continue
		}

		placer := webmap.NewPlacer(ref.Form, e.logger)
		changed := placer.PlaceField(webmap.PlaceFieldRequest{
			FieldName:      req.Field,
			ExpressionName: name,
			GroupLabel:     req.GroupLabel,
			Label:          req.Label,
			Editable:       req.Editable,
		})
		if changed {
			e.logger.Info("updated form element", "layer", ref.DisplayTitle(), "field", req.Field)
			updated = append(updated, ref.Address)
		}
	}
	e.logger.Info("form default applied in memory", "item", req.ItemID, "layers", len(updated))

	if req.Simulate {
		e.logger.Info("simulate mode, changes not saved", "item", req.ItemID)
		return updated, nil
	}

	ack, err := e.persist(ctx, item, doc)
	if err != nil {
		return nil, err
	}
	if !ack {
		return nil, fmt.Errorf("item %s: %w", req.ItemID, ErrUpdateDeclined)
	}

	e.logger.Info("web map update completed", "item", req.ItemID)
	return updated, nil
}

// expressionReturnType picks the declared Arcade return type for a formatted
// default: quoted literals are strings, bare numerics and epoch dates are
// numbers.
func expressionReturnType(literal fields.Literal) string {
	if literal.Quoted {
		return webmap.ReturnTypeString
	}
	return webmap.ReturnTypeNumber
}
