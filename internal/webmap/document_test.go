package webmap

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// A realistic document slice: unknown keys at every level must survive an
// unmarshal/marshal round trip untouched.
const roundTripDoc = `{
	"authoringApp": "ArcGISMapViewer",
	"baseMap": {"baseMapLayers": [{"id": "topo"}], "title": "Topographic"},
	"spatialReference": {"wkid": 102100},
	"operationalLayers": [
		{
			"id": "abc123",
			"title": "Field Sites",
			"url": "https://example.com/FeatureServer/0",
			"layerType": "ArcGISFeatureLayer",
			"opacity": 0.8,
			"layerDefinition": {
				"minScale": 50000,
				"definitionExpression": "STATUS = 'Active'"
			},
			"formInfo": {
				"title": "Site Form",
				"formElements": [
					{"type": "field", "fieldName": "name", "label": "Name"},
					{"type": "text", "text": "Fill this in carefully"},
					{"type": "group", "label": "Details", "elements": [
						{"type": "field", "fieldName": "status", "label": "Status",
						 "inputType": {"type": "combo-box", "choices": ["Active", "Closed"]}}
					]}
				]
			}
		},
		{
			"title": "Boundaries",
			"layerType": "GroupLayer",
			"layers": [
				{"title": "Parcels", "url": "https://example.com/FeatureServer/1"},
				{"title": "Notes", "featureCollection": {"layers": []}}
			]
		}
	],
	"expressionInfos": [
		{"name": "expr/custom", "expression": "\"x\"", "returnType": "string",
		 "title": "Custom", "extraKey": true}
	]
}`

func TestDocumentRoundTripPreservesUnknownKeys(t *testing.T) {
	doc := mustParseDocument(t, roundTripDoc)

	out, err := doc.Encode()
	require.NoError(t, err)
	assert.JSONEq(t, roundTripDoc, string(out))
}

func TestDocumentMutationSurvivesEncode(t *testing.T) {
	doc := mustParseDocument(t, roundTripDoc)

	w := NewWalker(doc, WalkOptions{})
	for {
		v, ok := w.Next()
		if !ok {
			break
		}
		if f, ok := v.Node.(*FeatureLayerRef); ok && f.Address != "" {
			f.EnsureDefinition().SetExpression("REGION = 'West'")
		}
	}

	out, err := doc.Encode()
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(out, &raw))

	layers := raw["operationalLayers"].([]any)
	first := layers[0].(map[string]any)
	def := first["layerDefinition"].(map[string]any)
	assert.Equal(t, "REGION = 'West'", def["definitionExpression"])
	assert.Equal(t, float64(50000), def["minScale"], "untouched definition keys must survive")

	group := layers[1].(map[string]any)
	children := group["layers"].([]any)
	parcels := children[0].(map[string]any)
	parcelDef := parcels["layerDefinition"].(map[string]any)
	assert.Equal(t, "REGION = 'West'", parcelDef["definitionExpression"])
}

func TestLayerNodeDispatch(t *testing.T) {
	tests := []struct {
		name  string
		raw   string
		group bool
	}{
		{"leaf with url", `{"title": "Leaf", "url": "https://example.com/0"}`, false},
		{"leaf without url", `{"title": "Notes"}`, false},
		{"group", `{"title": "G", "layers": [{"title": "L"}]}`, true},
		{"group with stray url", `{"title": "G", "url": "https://example.com/9", "layers": []}`, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			node, err := unmarshalLayerNode([]byte(tt.raw))
			require.NoError(t, err)

			_, isGroup := node.(*GroupLayer)
			assert.Equal(t, tt.group, isGroup)
		})
	}
}

func TestGroupWithStrayAddressRoundTrips(t *testing.T) {
	raw := `{"title": "G", "url": "https://example.com/9", "layers": [{"title": "L", "url": "https://example.com/1"}]}`

	node, err := unmarshalLayerNode([]byte(raw))
	require.NoError(t, err)

	out, err := json.Marshal(node)
	require.NoError(t, err)
	assert.JSONEq(t, raw, string(out))
}

func TestLayerDefinitionAbsentExpressionStaysAbsent(t *testing.T) {
	node, err := unmarshalLayerNode([]byte(`{
		"title": "L", "url": "https://example.com/0",
		"layerDefinition": {"minScale": 1000}
	}`))
	require.NoError(t, err)

	leaf := node.(*FeatureLayerRef)
	_, set := leaf.Definition.Expression()
	assert.False(t, set)

	out, err := json.Marshal(node)
	require.NoError(t, err)
	assert.NotContains(t, string(out), "definitionExpression")
}

func TestEnsureDefinitionCreatesOnce(t *testing.T) {
	leaf := NewFeatureLayerRef("L", "https://example.com/0")
	require.Nil(t, leaf.Definition)

	def := leaf.EnsureDefinition()
	def.SetExpression("A = 1")
	assert.Same(t, def, leaf.EnsureDefinition())

	out, err := json.Marshal(leaf)
	require.NoError(t, err)
	assert.JSONEq(t, `{"title": "L", "url": "https://example.com/0",
		"layerDefinition": {"definitionExpression": "A = 1"}}`, string(out))
}

func TestDisplayTitleFallback(t *testing.T) {
	assert.Equal(t, UnnamedLayer, NewFeatureLayerRef("", "https://example.com/0").DisplayTitle())
	assert.Equal(t, "Wells", NewFeatureLayerRef("Wells", "").DisplayTitle())
}

func TestParseDocumentRejectsMalformed(t *testing.T) {
	_, err := ParseDocument([]byte(`{"operationalLayers": "nope"}`))
	require.Error(t, err)

	_, err = ParseDocument([]byte(`not json`))
	require.Error(t, err)
}
