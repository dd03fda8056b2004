package webmap

import (
	"log/slog"
	"strings"
)

// Visit is one step of a layer-tree traversal: the node itself plus the
// titles of the groups enclosing it, outermost first. Path is nil unless the
// walker was built with TrackPaths.
type Visit struct {
	Node LayerNode
	Path []string
}

// PathString renders the visit as "Group/Subgroup/Layer Title".
func (v Visit) PathString() string {
	title := v.Node.DisplayTitle()
	if len(v.Path) == 0 {
		return title
	}
	return strings.Join(v.Path, "/") + "/" + title
}

// WalkOptions configures a Walker.
type WalkOptions struct {
	// TrackPaths enables group-path bookkeeping on every visit. Leave off
	// when only flat address access is needed; path slices are then nil.
	TrackPaths bool

	// Logger receives the structural warning for documents without a layer
	// collection. Defaults to slog.Default().
	Logger *slog.Logger
}

// Walker yields every node of a document's operational layer tree exactly
// once: groups and leaves alike, in display order. It is a finite,
// non-restartable cursor; create a new Walker per traversal.
//
// The queue is FIFO. When a group is dequeued its children are pushed in
// reverse of their stored order, because the content store persists children
// reversed relative to display order.
type Walker struct {
	queue      []Visit
	trackPaths bool
}

// NewWalker builds a traversal over doc's layer tree. A document lacking the
// operational layer collection produces an exhausted walker and one warning;
// callers observe zero matches rather than an error.
func NewWalker(doc *Document, opts WalkOptions) *Walker {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	w := &Walker{trackPaths: opts.TrackPaths}
	if !doc.HasLayers() {
		logger.Warn("web map document has no operational layers")
		return w
	}

	w.queue = make([]Visit, 0, len(doc.Layers))
	for _, node := range doc.Layers {
		w.queue = append(w.queue, Visit{Node: node})
	}
	return w
}

// Next returns the next visit in display order. The second result is false
// once the traversal is exhausted.
func (w *Walker) Next() (Visit, bool) {
	if len(w.queue) == 0 {
		return Visit{}, false
	}

	visit := w.queue[0]
	w.queue = w.queue[1:]

	if group, ok := visit.Node.(*GroupLayer); ok && len(group.Children) > 0 {
		var childPath []string
		if w.trackPaths {
			childPath = append(append([]string{}, visit.Path...), group.DisplayTitle())
		}

		// Stored order is reversed; push back-to-front to restore
		// display order on the FIFO queue.
		for i := len(group.Children) - 1; i >= 0; i-- {
			w.queue = append(w.queue, Visit{Node: group.Children[i], Path: childPath})
		}
	}

	return visit, true
}
