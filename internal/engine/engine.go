package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/fieldmaps/webmapctl/internal/fields"
	"github.com/fieldmaps/webmapctl/internal/portal"
	"github.com/fieldmaps/webmapctl/internal/webmap"
)

// ContentStore is the slice of the remote content service the engine needs:
// item metadata, the raw definition document, and the single-call update.
// *portal.Client satisfies it.
type ContentStore interface {
	Item(ctx context.Context, itemID string) (*portal.Item, error)
	ItemData(ctx context.Context, itemID string) ([]byte, error)
	UpdateItemData(ctx context.Context, owner, itemID string, data []byte) (bool, error)
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine's structured logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// Engine applies filter and form-default mutations to web map definitions.
//
// All three public operations share the same shape: fetch the document,
// walk the layer tree, mutate in place, persist once. Construction is
// cheap; an Engine holds no per-operation state and may be reused.
type Engine struct {
	store     ContentStore
	schema    fields.SchemaService
	formatter *fields.Formatter
	logger    *slog.Logger
}

// New creates an Engine over the given content store and schema service.
// In production both are the same *portal.Client.
func New(store ContentStore, schema fields.SchemaService, opts ...Option) *Engine {
	e := &Engine{
		store:  store,
		schema: schema,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.formatter = fields.NewFormatter(e.logger)
	return e
}

// fetchWebMap runs the shared operation preamble: load the item record,
// reject non web maps, then load and decode the definition document.
// Store errors, including portal.ErrNotFound, propagate wrapped.
func (e *Engine) fetchWebMap(ctx context.Context, itemID string) (*portal.Item, *webmap.Document, error) {
	item, err := e.store.Item(ctx, itemID)
	if err != nil {
		return nil, nil, fmt.Errorf("fetch item %s: %w", itemID, err)
	}
	if item.Type != portal.ItemTypeWebMap {
		return nil, nil, fmt.Errorf("item %s: %w: found type %q", itemID, ErrNotWebMap, item.Type)
	}

	data, err := e.store.ItemData(ctx, itemID)
	if err != nil {
		return nil, nil, fmt.Errorf("fetch item %s data: %w", itemID, err)
	}
	doc, err := webmap.ParseDocument(data)
	if err != nil {
		return nil, nil, fmt.Errorf("item %s: %w", itemID, err)
	}
	return item, doc, nil
}

// persist encodes the mutated document and writes it back in one update
// call. The returned bool is the store's acknowledgment.
func (e *Engine) persist(ctx context.Context, item *portal.Item, doc *webmap.Document) (bool, error) {
	data, err := doc.Encode()
	if err != nil {
		return false, fmt.Errorf("encode web map document: %w", err)
	}
	ack, err := e.store.UpdateItemData(ctx, item.Owner, item.ID, data)
	if err != nil {
		return false, fmt.Errorf("update item %s: %w", item.ID, err)
	}
	return ack, nil
}

// persistLayerRun is the save tail shared by the per-layer operations. A
// failed or declined save lands under SaveErrorKey in errs instead of
// aborting, so the caller's partial per-layer outcomes survive.
func (e *Engine) persistLayerRun(ctx context.Context, item *portal.Item, doc *webmap.Document, errs map[string]string, simulate bool) {
	if simulate {
		e.logger.Info("simulate mode, changes not saved", "item", item.ID)
		return
	}

	e.logger.Info("saving changes to web map", "item", item.ID)
	ack, err := e.persist(ctx, item, doc)
	switch {
	case err != nil:
		e.logger.Error("saving web map failed", "item", item.ID, "error", err)
		errs[SaveErrorKey] = err.Error()
	case !ack:
		e.logger.Error("content store declined the update", "item", item.ID)
		errs[SaveErrorKey] = "Failed to save changes to web map"
	default:
		e.logger.Info("web map update completed", "item", item.ID)
	}
}

// hasField reports whether name appears in a layer's resolved field list.
func hasField(list []fields.Field, name string) bool {
	for _, f := range list {
		if f.Name == name {
			return true
		}
	}
	return false
}
