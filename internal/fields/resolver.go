package fields

import (
	"context"
	"log/slog"
)

// SchemaService fetches a layer's attribute schema from the remote service.
type SchemaService interface {
	LayerFields(ctx context.Context, layerURL string) ([]Field, error)
}

type schemaResult struct {
	fields []Field
	err    error
}

// Resolver answers field-existence and field-type questions for feature
// layers. Each layer's schema is fetched at most once per Resolver, both
// outcomes memoized, so construct one Resolver per engine operation.
type Resolver struct {
	schema SchemaService
	logger *slog.Logger
	cache  map[string]schemaResult
}

// NewResolver wraps a schema service. A nil logger falls back to
// slog.Default().
func NewResolver(schema SchemaService, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		schema: schema,
		logger: logger,
		cache:  make(map[string]schemaResult),
	}
}

// Fields returns the layer's schema, fetching it on first use.
func (r *Resolver) Fields(ctx context.Context, layerURL string) ([]Field, error) {
	if result, ok := r.cache[layerURL]; ok {
		return result.fields, result.err
	}
	flds, err := r.schema.LayerFields(ctx, layerURL)
	r.cache[layerURL] = schemaResult{fields: flds, err: err}
	return flds, err
}

// FieldExists reports whether the layer's schema carries the named field.
// Remote failures are logged and reported as absence, so one unreachable
// layer cannot abort a batch.
func (r *Resolver) FieldExists(ctx context.Context, layerURL, fieldName string) bool {
	if layerURL == "" || fieldName == "" {
		return false
	}
	flds, err := r.Fields(ctx, layerURL)
	if err != nil {
		r.logger.Warn("field lookup failed", "layer", layerURL, "error", err)
		return false
	}
	for _, field := range flds {
		if field.Name == fieldName {
			return true
		}
	}
	return false
}

// TypeOf returns the declared type of the named field, defaulting to
// TypeString when the field or the schema cannot be resolved.
func (r *Resolver) TypeOf(ctx context.Context, layerURL, fieldName string) string {
	flds, err := r.Fields(ctx, layerURL)
	if err != nil {
		r.logger.Warn("field type lookup failed", "layer", layerURL, "error", err)
		return TypeString
	}
	for _, field := range flds {
		if field.Name == fieldName && field.Type != "" {
			return field.Type
		}
	}
	return TypeString
}
