package engine

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldmaps/webmapctl/internal/fields"
	"github.com/fieldmaps/webmapctl/internal/webmap"
)

func captureFixture(t *testing.T, schema *fakeSchema) (*webmap.Document, *fields.Resolver, *slog.Logger) {
	t.Helper()
	doc, err := webmap.ParseDocument([]byte(testDoc))
	require.NoError(t, err)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return doc, fields.NewResolver(schema, logger), logger
}

func TestCaptureFilterStateCollectsFieldBearingLayers(t *testing.T) {
	doc, resolver, logger := captureFixture(t, newFakeSchema())

	snapshot := captureFilterState(context.Background(), doc, resolver, "ZONE", logger)

	require.Len(t, snapshot, 2)

	wells := snapshot[wellsAddress]
	assert.Equal(t, "Wells", wells.title)
	assert.True(t, wells.present)
	assert.Equal(t, "STATUS = 'active'", wells.expression)

	parcels := snapshot[parcelsAddress]
	assert.Equal(t, "Parcels", parcels.title)
	assert.False(t, parcels.present, "layer without a layerDefinition has no expression")

	assert.NotContains(t, snapshot, roadsAddress)
}

func TestCaptureFilterStateSkipsUnreadableLayers(t *testing.T) {
	schema := newFakeSchema()
	schema.errs[wellsAddress] = errors.New("layer unavailable")
	doc, resolver, logger := captureFixture(t, schema)

	snapshot := captureFilterState(context.Background(), doc, resolver, "ZONE", logger)

	require.Len(t, snapshot, 1)
	assert.Contains(t, snapshot, parcelsAddress)
}

func TestVerifyFilterApplied(t *testing.T) {
	want := "ZONE = 'commercial'"
	matching := filterState{expression: want, present: true}

	tests := []struct {
		name   string
		before filterSnapshot
		after  filterSnapshot
		ok     bool
	}{
		{
			name:   "empty before state never verifies",
			before: filterSnapshot{},
			after:  filterSnapshot{wellsAddress: matching},
			ok:     false,
		},
		{
			name:   "one matching layer suffices",
			before: filterSnapshot{wellsAddress: {}, parcelsAddress: {}},
			after:  filterSnapshot{parcelsAddress: matching},
			ok:     true,
		},
		{
			name:   "layer gone after save",
			before: filterSnapshot{wellsAddress: {}},
			after:  filterSnapshot{},
			ok:     false,
		},
		{
			name:   "expression differs",
			before: filterSnapshot{wellsAddress: {}},
			after:  filterSnapshot{wellsAddress: {expression: "ZONE = 'other'", present: true}},
			ok:     false,
		},
		{
			name:   "expression still absent",
			before: filterSnapshot{wellsAddress: {}},
			after:  filterSnapshot{wellsAddress: {}},
			ok:     false,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.ok, verifyFilterApplied(tc.before, tc.after, want))
		})
	}
}
