package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/fieldmaps/webmapctl/internal/fields"
	"github.com/fieldmaps/webmapctl/internal/webmap"
)

// GlobalFilterRequest applies one filter expression to every layer whose
// schema contains Field.
type GlobalFilterRequest struct {
	ItemID string
	Field  string
	Where  string
	// Simulate performs every in-memory step but suppresses the save and
	// the verification that follows it.
	Simulate bool
}

// LayerFilterConfig is one layer's entry in a per-layer filter request.
// Both parts are required; an entry missing either is recorded as an error
// for that address.
type LayerFilterConfig struct {
	Field string `json:"field" yaml:"field"`
	Where string `json:"where" yaml:"where"`
}

// PerLayerFilterRequest applies an individually configured filter per layer
// address. Layers absent from the map are never touched.
type PerLayerFilterRequest struct {
	ItemID   string
	Layers   map[string]LayerFilterConfig
	Simulate bool
}

// FilterResult reports per-layer outcomes of a batch mutation. A skip means
// the layer was considered and found benignly inapplicable; an entry in
// Errors means that single layer failed while the batch continued.
type FilterResult struct {
	Updated []string          `json:"updated"`
	Skipped []string          `json:"skipped"`
	Errors  map[string]string `json:"errors"`
}

func newFilterResult() *FilterResult {
	return &FilterResult{
		Updated: []string{},
		Skipped: []string{},
		Errors:  map[string]string{},
	}
}

// ApplyGlobalFilter sets the definition expression of every layer whose
// schema contains the target field, then persists and verifies.
//
// The returned addresses are in display order. A layer whose schema cannot
// be read is skipped silently with a logged warning; global mode has no
// per-layer error channel.
//
// After a successful save the document is re-fetched and the filter state
// recomputed. The run succeeds only if at least one layer that matched the
// field before the save now carries the requested expression; a run that
// matched no layers fails verification unconditionally, even when the save
// itself was acknowledged.
func (e *Engine) ApplyGlobalFilter(ctx context.Context, req GlobalFilterRequest) ([]string, error) {
	if req.ItemID == "" || req.Field == "" || req.Where == "" {
		return nil, errors.New("an item id, a target field, and a filter expression are required")
	}
	e.logger.Info("applying global filter",
		"item", req.ItemID,
		"field", req.Field,
		"where", req.Where,
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

	resolver := fields.NewResolver(e.schema, e.logger)
	before := captureFilterState(ctx, doc, resolver, req.Field, e.logger)
	e.logger.Info("captured filter state", "item", req.ItemID, "matching", len(before))

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
		if !resolver.FieldExists(ctx, ref.Address, req.Field) {
			continue
		}

		ref.EnsureDefinition().SetExpression(req.Where)
		e.logger.Info("updated layer filter", "layer", ref.DisplayTitle())
		updated = append(updated, ref.Address)
	}
	e.logger.Info("filter applied in memory", "item", req.ItemID, "layers", len(updated))

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

	// Confirm against a fresh copy; the acknowledgment alone proves nothing
	// about document content.
	_, saved, err := e.fetchWebMap(ctx, req.ItemID)
	if err != nil {
		return nil, fmt.Errorf("verify saved changes: %w", err)
	}
	after := captureFilterState(ctx, saved, resolver, req.Field, e.logger)
	if !verifyFilterApplied(before, after, req.Where) {
		return nil, fmt.Errorf("item %s: %w", req.ItemID, ErrVerificationFailed)
	}

	e.logger.Info("changes verified", "item", req.ItemID, "layers", len(updated))
	return updated, nil
}

// ApplyPerLayerFilters applies an individually configured filter to each
// layer named in the request. Outcomes accumulate per address: updated,
// skipped when the configured field is absent from the layer's schema, or an
// error message when the entry is incomplete or the schema cannot be read.
//
// A failed save is reported under SaveErrorKey in the result's Errors map
// rather than as a returned error, so the per-layer outcomes computed before
// the save still reach the caller.
func (e *Engine) ApplyPerLayerFilters(ctx context.Context, req PerLayerFilterRequest) (*FilterResult, error) {
	if req.ItemID == "" {
		return nil, errors.New("an item id is required")
	}

	result := newFilterResult()
	if len(req.Layers) == 0 {
		e.logger.Warn("no layer configurations provided")
		return result, nil
	}
	e.logger.Info("applying per-layer filters", "item", req.ItemID, "configured", len(req.Layers))

	item, doc, err := e.fetchWebMap(ctx, req.ItemID)
	if err != nil {
		return nil, err
	}
	if !doc.HasLayers() {
		e.logger.Warn("web map has no operational layers", "item", req.ItemID)
		return result, nil
	}

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
		cfg, ok := req.Layers[ref.Address]
		if !ok {
			continue
		}

		if cfg.Field == "" || cfg.Where == "" {
			e.logger.Warn("incomplete layer configuration",
				"layer", ref.DisplayTitle(),
				"address", ref.Address,
			)
			result.Errors[ref.Address] = "Incomplete configuration"
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

		ref.EnsureDefinition().SetExpression(cfg.Where)
		e.logger.Info("updated layer filter", "layer", ref.DisplayTitle(), "field", cfg.Field)
		result.Updated = append(result.Updated, ref.Address)
	}
	e.logger.Info("per-layer filters applied in memory",
		"updated", len(result.Updated),
		"skipped", len(result.Skipped),
		"errors", len(result.Errors),
	)

	e.persistLayerRun(ctx, item, doc, result.Errors, req.Simulate)
	return result, nil
}
