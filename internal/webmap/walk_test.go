package webmap

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustParseDocument(t *testing.T, data string) *Document {
	t.Helper()
	doc, err := ParseDocument([]byte(data))
	require.NoError(t, err)
	return doc
}

func collectVisits(w *Walker) []Visit {
	var visits []Visit
	for {
		v, ok := w.Next()
		if !ok {
			return visits
		}
		visits = append(visits, v)
	}
}

func TestWalkerYieldsEveryNodeExactlyOnce(t *testing.T) {
	// Two groups and three leaves: the walker must yield all five nodes,
	// and exactly the three leaves carry an address.
	doc := mustParseDocument(t, `{
		"operationalLayers": [
			{"title": "Top", "url": "https://example.com/0"},
			{"title": "Outer", "layers": [
				{"title": "Inner", "layers": [
					{"title": "Deep", "url": "https://example.com/1"}
				]},
				{"title": "Mid", "url": "https://example.com/2"}
			]}
		]
	}`)

	visits := collectVisits(NewWalker(doc, WalkOptions{}))
	require.Len(t, visits, 5)

	addressed := 0
	for _, v := range visits {
		if f, ok := v.Node.(*FeatureLayerRef); ok && f.Address != "" {
			addressed++
		}
	}
	assert.Equal(t, 3, addressed)
}

func TestWalkerRestoresDisplayOrder(t *testing.T) {
	// The store persists children reversed: stored [C, B, A] must be
	// yielded as A, B, C.
	doc := mustParseDocument(t, `{
		"operationalLayers": [
			{"title": "Group", "layers": [
				{"title": "C", "url": "https://example.com/c"},
				{"title": "B", "url": "https://example.com/b"},
				{"title": "A", "url": "https://example.com/a"}
			]}
		]
	}`)

	var titles []string
	for _, v := range collectVisits(NewWalker(doc, WalkOptions{})) {
		titles = append(titles, v.Node.DisplayTitle())
	}
	assert.Equal(t, []string{"Group", "A", "B", "C"}, titles)
}

func TestWalkerMissingLayerCollection(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))

	doc := mustParseDocument(t, `{"baseMap": {"title": "Topographic"}}`)
	visits := collectVisits(NewWalker(doc, WalkOptions{Logger: logger}))

	assert.Empty(t, visits)
	assert.Contains(t, logs.String(), "no operational layers")
}

func TestWalkerEmptyLayerCollection(t *testing.T) {
	// An empty collection is present but yields nothing, without the
	// structural warning.
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))

	doc := mustParseDocument(t, `{"operationalLayers": []}`)
	visits := collectVisits(NewWalker(doc, WalkOptions{Logger: logger}))

	assert.Empty(t, visits)
	assert.NotContains(t, logs.String(), "no operational layers")
}

func TestWalkerPathTracking(t *testing.T) {
	doc := mustParseDocument(t, `{
		"operationalLayers": [
			{"title": "Region", "layers": [
				{"title": "Sites", "layers": [
					{"title": "Wells", "url": "https://example.com/wells"}
				]}
			]}
		]
	}`)

	visits := collectVisits(NewWalker(doc, WalkOptions{TrackPaths: true}))
	require.Len(t, visits, 3)

	byTitle := map[string]Visit{}
	for _, v := range visits {
		byTitle[v.Node.DisplayTitle()] = v
	}

	assert.Nil(t, byTitle["Region"].Path)
	assert.Equal(t, []string{"Region"}, byTitle["Sites"].Path)
	assert.Equal(t, []string{"Region", "Sites"}, byTitle["Wells"].Path)
	assert.Equal(t, "Region/Sites/Wells", byTitle["Wells"].PathString())
}

func TestWalkerPathsOffByDefault(t *testing.T) {
	doc := mustParseDocument(t, `{
		"operationalLayers": [
			{"title": "Group", "layers": [{"title": "Leaf", "url": "https://example.com/0"}]}
		]
	}`)

	for _, v := range collectVisits(NewWalker(doc, WalkOptions{})) {
		assert.Nil(t, v.Path)
	}
}

func TestWalkerIsExhaustedNotRestartable(t *testing.T) {
	doc := mustParseDocument(t, `{
		"operationalLayers": [{"title": "Only", "url": "https://example.com/0"}]
	}`)

	w := NewWalker(doc, WalkOptions{})
	_, ok := w.Next()
	require.True(t, ok)

	_, ok = w.Next()
	assert.False(t, ok)
	_, ok = w.Next()
	assert.False(t, ok)
}

func TestWalkerYieldsPointersIntoDocument(t *testing.T) {
	// Mutating a yielded node must mutate the document itself.
	doc := mustParseDocument(t, `{
		"operationalLayers": [
			{"title": "Group", "layers": [
				{"title": "Leaf", "url": "https://example.com/0"}
			]}
		]
	}`)

	for _, v := range collectVisits(NewWalker(doc, WalkOptions{})) {
		if f, ok := v.Node.(*FeatureLayerRef); ok {
			f.EnsureDefinition().SetExpression("STATUS = 'Active'")
		}
	}

	group, ok := doc.Layers[0].(*GroupLayer)
	require.True(t, ok)
	leaf, ok := group.Children[0].(*FeatureLayerRef)
	require.True(t, ok)
	require.NotNil(t, leaf.Definition)

	expr, set := leaf.Definition.Expression()
	assert.True(t, set)
	assert.Equal(t, "STATUS = 'Active'", expr)
}
