package engine

import (
	"context"
	"errors"

	"github.com/fieldmaps/webmapctl/internal/fields"
	"github.com/fieldmaps/webmapctl/internal/webmap"
)

// ItemSummary is the catalog metadata echoed with an inventory.
type ItemSummary struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Owner    string `json:"owner"`
	Modified int64  `json:"modified"`
}

// LayerInfo describes one feature layer of a web map.
type LayerInfo struct {
	Address   string         `json:"address,omitempty"`
	Title     string         `json:"title"`
	GroupPath []string       `json:"groupPath,omitempty"`
	Fields    []fields.Field `json:"fields,omitempty"`
	HasForm   bool           `json:"hasForm"`
	Filter    string         `json:"filter,omitempty"`
}

// Inventory is the inspection report for one web map.
type Inventory struct {
	Item   ItemSummary `json:"item"`
	Layers []LayerInfo `json:"layers"`
}

// Inspect reports every feature layer of the web map in display order:
// address, group path, field schema, current filter expression, and whether
// an editing form is configured. A layer whose schema cannot be read is
// reported without fields rather than failing the inventory.
func (e *Engine) Inspect(ctx context.Context, itemID string) (*Inventory, error) {
	if itemID == "" {
		return nil, errors.New("an item id is required")
	}

	item, doc, err := e.fetchWebMap(ctx, itemID)
	if err != nil {
		return nil, err
	}

	inv := &Inventory{
		Item: ItemSummary{
			ID:       item.ID,
			Title:    item.Title,
			Owner:    item.Owner,
			Modified: item.Modified,
		},
		Layers: []LayerInfo{},
	}

	resolver := fields.NewResolver(e.schema, e.logger)
	walker := webmap.NewWalker(doc, webmap.WalkOptions{TrackPaths: true, Logger: e.logger})
	for {
		visit, ok := walker.Next()
		if !ok {
			break
		}
		ref, ok := visit.Node.(*webmap.FeatureLayerRef)
		if !ok {
			continue
		}

		info := LayerInfo{
			Address:   ref.Address,
			Title:     ref.DisplayTitle(),
			GroupPath: visit.Path,
			HasForm:   ref.Form != nil,
		}
		if ref.Definition != nil {
			if expr, ok := ref.Definition.Expression(); ok {
				info.Filter = expr
			}
		}
		if ref.Address != "" {
			list, err := resolver.Fields(ctx, ref.Address)
			if err != nil {
				e.logger.Warn("layer schema unavailable",
					"layer", visit.PathString(), "error", err)
			} else {
				info.Fields = list
			}
		}
		inv.Layers = append(inv.Layers, info)
	}
	return inv, nil
}
