package engine

import (
	"context"
	"log/slog"

	"github.com/fieldmaps/webmapctl/internal/fields"
	"github.com/fieldmaps/webmapctl/internal/webmap"
)

// filterState is one layer's observed filter at snapshot time. An absent
// definition expression is distinct from an empty one.
type filterState struct {
	title      string
	expression string
	present    bool
}

// filterSnapshot maps layer addresses to their filter state. Global filter
// runs take one snapshot before mutating and one from the re-fetched
// document after saving.
type filterSnapshot map[string]filterState

// captureFilterState snapshots the filter of every layer whose remote schema
// contains field. Layers without an address never match; layers with an
// unreadable schema are left out of the snapshot rather than failing it.
func captureFilterState(ctx context.Context, doc *webmap.Document, resolver *fields.Resolver, field string, logger *slog.Logger) filterSnapshot {
	snapshot := filterSnapshot{}

	walker := webmap.NewWalker(doc, webmap.WalkOptions{Logger: logger})
	for {
		visit, ok := walker.Next()
		if !ok {
			break
		}
		ref, ok := visit.Node.(*webmap.FeatureLayerRef)
		if !ok || ref.Address == "" {
			continue
		}
		if !resolver.FieldExists(ctx, ref.Address, field) {
			continue
		}

		state := filterState{title: ref.DisplayTitle()}
		if ref.Definition != nil {
			state.expression, state.present = ref.Definition.Expression()
		}
		snapshot[ref.Address] = state
	}

	return snapshot
}

// verifyFilterApplied reports whether at least one layer that matched the
// target field before the save now carries the intended expression. An empty
// before state fails unconditionally: nothing matched, so nothing can be
// confirmed.
func verifyFilterApplied(before, after filterSnapshot, want string) bool {
	if len(before) == 0 {
		return false
	}
	for address := range before {
		state, ok := after[address]
		if ok && state.present && state.expression == want {
			return true
		}
	}
	return false
}
