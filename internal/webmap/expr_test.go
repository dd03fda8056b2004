package webmap

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func exprNames(doc *Document) []string {
	names := make([]string, 0, len(doc.Expressions))
	for _, info := range doc.Expressions {
		names = append(names, info.Name)
	}
	return names
}

func TestUpsertCreatesWithSystemConstants(t *testing.T) {
	doc := mustParseDocument(t, `{"operationalLayers": []}`)
	reg := NewRegistry(doc, nil)

	outcome := reg.Upsert(UpsertRequest{Name: "expr/set-project-number", Expression: `"PN-100"`})
	require.Equal(t, UpsertCreated, outcome)

	// Both boolean singletons are created lazily alongside the first
	// registration.
	assert.Equal(t, []string{
		ExprSystemFalse,
		ExprSystemTrue,
		"expr/set-project-number",
	}, exprNames(doc))

	created := reg.Find("expr/set-project-number")
	require.NotNil(t, created)
	assert.Equal(t, `"PN-100"`, created.Expression)
	assert.Equal(t, ReturnTypeString, created.ReturnType)
	assert.Equal(t, "Set Project Number", created.Title)

	truthy := reg.Find(ExprSystemTrue)
	require.NotNil(t, truthy)
	assert.Equal(t, "true", truthy.Expression)
	assert.Equal(t, "boolean", truthy.ReturnType)
	assert.Equal(t, "True", truthy.Title)
}

func TestUpsertIsIdempotent(t *testing.T) {
	doc := mustParseDocument(t, `{"operationalLayers": []}`)
	reg := NewRegistry(doc, nil)

	req := UpsertRequest{Name: "expr/set-status", Expression: `"Active"`}
	require.Equal(t, UpsertCreated, reg.Upsert(req))

	count := len(doc.Expressions)
	assert.Equal(t, UpsertUnchanged, reg.Upsert(req))
	assert.Len(t, doc.Expressions, count, "repeated upsert must not grow the list")
}

func TestUpsertWithoutOverwriteIgnoresNewValue(t *testing.T) {
	doc := mustParseDocument(t, `{"expressionInfos": [
		{"name": "expr/set-status", "expression": "\"Old\"", "returnType": "string", "title": "Set Status"}
	]}`)
	reg := NewRegistry(doc, nil)

	outcome := reg.Upsert(UpsertRequest{Name: "expr/set-status", Expression: `"New"`})
	assert.Equal(t, UpsertUnchanged, outcome)
	assert.Equal(t, `"Old"`, reg.Find("expr/set-status").Expression)
}

func TestUpsertOverwrite(t *testing.T) {
	doc := mustParseDocument(t, `{"expressionInfos": [
		{"name": "expr/set-status", "expression": "\"Old\"", "returnType": "string", "title": "Set Status"}
	]}`)
	reg := NewRegistry(doc, nil)

	outcome := reg.Upsert(UpsertRequest{Name: "expr/set-status", Expression: `"New"`, Overwrite: true})
	assert.Equal(t, UpsertUpdated, outcome)
	assert.Equal(t, `"New"`, reg.Find("expr/set-status").Expression)

	// Same value again: no churn even with Overwrite set.
	outcome = reg.Upsert(UpsertRequest{Name: "expr/set-status", Expression: `"New"`, Overwrite: true})
	assert.Equal(t, UpsertUnchanged, outcome)
}

func TestEnsureSystemConstantsCreatesEachAtMostOnce(t *testing.T) {
	doc := mustParseDocument(t, `{"expressionInfos": [
		{"name": "expr/system/true", "expression": "true", "returnType": "boolean", "title": "True"}
	]}`)
	reg := NewRegistry(doc, nil)

	created := reg.EnsureSystemConstants()
	assert.Equal(t, []string{ExprSystemFalse}, created)

	assert.Empty(t, reg.EnsureSystemConstants())
	assert.Len(t, doc.Expressions, 2)
}

func TestExpressionListMaterializedOnFirstRegistration(t *testing.T) {
	doc := mustParseDocument(t, `{"operationalLayers": []}`)
	reg := NewRegistry(doc, nil)
	reg.EnsureSystemConstants()

	out, err := doc.Encode()
	require.NoError(t, err)
	assert.Contains(t, string(out), `"expressionInfos"`)
}

func TestSynthesizeTitle(t *testing.T) {
	tests := []struct {
		name     string
		expected string
	}{
		{"expr/set-project-number", "Set Project Number"},
		{"expr/system/false", "False"},
		{"plain", "Plain"},
		{"expr/mixed-CASE-words", "Mixed Case Words"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, SynthesizeTitle(tt.name))
		})
	}
}

func TestFieldLabel(t *testing.T) {
	assert.Equal(t, "Project Number", FieldLabel("project_number"))
	assert.Equal(t, "Status", FieldLabel("STATUS"))
	assert.Equal(t, "Site Id", FieldLabel("site_id"))
}
