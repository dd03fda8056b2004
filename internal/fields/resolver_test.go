package fields

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSchema struct {
	fields map[string][]Field
	err    error
	calls  int
}

func (s *fakeSchema) LayerFields(_ context.Context, layerURL string) ([]Field, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.fields[layerURL], nil
}

const wellsURL = "https://services.example.com/FeatureServer/0"

func wellsSchema() *fakeSchema {
	return &fakeSchema{fields: map[string][]Field{
		wellsURL: {
			{Name: "OBJECTID", Type: TypeOID},
			{Name: "REGION", Type: TypeString, Alias: "Region"},
			{Name: "DEPTH", Type: TypeDouble},
			{Name: "UNTYPED"},
		},
	}}
}

func TestFieldExists(t *testing.T) {
	r := NewResolver(wellsSchema(), nil)
	ctx := context.Background()

	assert.True(t, r.FieldExists(ctx, wellsURL, "REGION"))
	assert.False(t, r.FieldExists(ctx, wellsURL, "MISSING"))
	assert.False(t, r.FieldExists(ctx, "", "REGION"))
	assert.False(t, r.FieldExists(ctx, wellsURL, ""))
}

func TestResolverFetchesEachLayerOnce(t *testing.T) {
	schema := wellsSchema()
	r := NewResolver(schema, nil)
	ctx := context.Background()

	r.FieldExists(ctx, wellsURL, "REGION")
	r.FieldExists(ctx, wellsURL, "DEPTH")
	r.TypeOf(ctx, wellsURL, "REGION")

	assert.Equal(t, 1, schema.calls)
}

func TestResolverFailsSoft(t *testing.T) {
	var buf bytes.Buffer
	schema := &fakeSchema{err: errors.New("connection refused")}
	r := NewResolver(schema, slog.New(slog.NewTextHandler(&buf, nil)))
	ctx := context.Background()

	assert.False(t, r.FieldExists(ctx, wellsURL, "REGION"))
	assert.Equal(t, TypeString, r.TypeOf(ctx, wellsURL, "REGION"))
	assert.Contains(t, buf.String(), "field lookup failed")

	// The failure is memoized alongside successes.
	_, err := r.Fields(ctx, wellsURL)
	require.Error(t, err)
	assert.Equal(t, 1, schema.calls)
}

func TestTypeOf(t *testing.T) {
	r := NewResolver(wellsSchema(), nil)
	ctx := context.Background()

	assert.Equal(t, TypeDouble, r.TypeOf(ctx, wellsURL, "DEPTH"))
	assert.Equal(t, TypeString, r.TypeOf(ctx, wellsURL, "MISSING"))
	assert.Equal(t, TypeString, r.TypeOf(ctx, wellsURL, "UNTYPED"))
}

func TestFamilyOf(t *testing.T) {
	tests := []struct {
		declaredType string
		want         Family
	}{
		{TypeInteger, FamilyInteger},
		{TypeSmallInteger, FamilyInteger},
		{TypeOID, FamilyInteger},
		{TypeDouble, FamilyFloat},
		{TypeSingle, FamilyFloat},
		{TypeDate, FamilyDate},
		{TypeString, FamilyString},
		{TypeGUID, FamilyString},
		{TypeGlobalID, FamilyString},
		{"esriFieldTypeGeometry", FamilyString},
		{"", FamilyString},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FamilyOf(tt.declaredType), tt.declaredType)
	}
}

func TestDisplayName(t *testing.T) {
	assert.Equal(t, "Integer", DisplayName(TypeInteger))
	assert.Equal(t, "Text", DisplayName(TypeString))
	assert.Equal(t, "Object ID", DisplayName(TypeOID))
	assert.Equal(t, "esriFieldTypeXML", DisplayName("esriFieldTypeXML"))
}
