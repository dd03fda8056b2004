package cli

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldmaps/webmapctl/internal/engine"
)

func TestInspectListsLayers(t *testing.T) {
	s := newFakeService(t)
	rootOpts := testRootOptions(t, s)

	buf := &bytes.Buffer{}
	cmd := NewInspectCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"abc123"})

	require.NoError(t, cmd.Execute())

	output := buf.String()
	assert.Contains(t, output, "Web map: Field Operations (abc123), owner gis_admin")
	assert.Contains(t, output, "Modified: 2024-06-10T06:13:20Z")
	assert.Contains(t, output, "Wells\n")
	assert.Contains(t, output, "Infrastructure/Parcels")
	assert.Contains(t, output, "address: "+s.wellsAddress())
	assert.Contains(t, output, "form: configured")
	assert.Contains(t, output, "OBJECTID (Object ID)")
	assert.Contains(t, output, "STATUS (Text)")
	assert.Contains(t, output, "DEPTH (Double)")
}

func TestInspectJSON(t *testing.T) {
	s := newFakeService(t)
	rootOpts := testRootOptions(t, s)
	rootOpts.Format = "json"

	buf := &bytes.Buffer{}
	cmd := NewInspectCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"abc123"})

	require.NoError(t, cmd.Execute())

	var resp struct {
		Status string           `json:"status"`
		Data   engine.Inventory `json:"data"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "abc123", resp.Data.Item.ID)
	require.Len(t, resp.Data.Layers, 2)
	assert.Equal(t, "Wells", resp.Data.Layers[0].Title)
	assert.Empty(t, resp.Data.Layers[0].GroupPath)
	assert.Equal(t, []string{"Infrastructure"}, resp.Data.Layers[1].GroupPath)
	assert.True(t, resp.Data.Layers[1].HasForm)
}

func TestInspectQueryMatchesDocument(t *testing.T) {
	s := newFakeService(t)
	rootOpts := testRootOptions(t, s)

	buf := &bytes.Buffer{}
	cmd := NewInspectCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"abc123", "--query", "$.operationalLayers[*].title"})

	require.NoError(t, cmd.Execute())

	output := buf.String()
	assert.Contains(t, output, `"Wells"`)
	assert.Contains(t, output, `"Infrastructure"`)
}

func TestInspectQueryNoMatches(t *testing.T) {
	s := newFakeService(t)
	rootOpts := testRootOptions(t, s)

	buf := &bytes.Buffer{}
	cmd := NewInspectCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"abc123", "--query", "$.bookmarks[*].name"})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, buf.String(), "No matches.")
}

func TestInspectQueryInvalidExpression(t *testing.T) {
	s := newFakeService(t)
	rootOpts := testRootOptions(t, s)

	buf := &bytes.Buffer{}
	cmd := NewInspectCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"abc123", "--query", "$["})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid jsonpath")
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestInspectUnknownItem(t *testing.T) {
	s := newFakeService(t)
	rootOpts := testRootOptions(t, s)

	buf := &bytes.Buffer{}
	cmd := NewInspectCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"missing999"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "inspect web map")
	assert.Equal(t, ExitFailure, GetExitCode(err))
}

func TestInspectRequiresItemArgument(t *testing.T) {
	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text"}
	cmd := NewInspectCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "arg")
}

func TestInspectSendsToken(t *testing.T) {
	s := newFakeService(t)
	rootOpts := testRootOptions(t, s)
	rootOpts.TokenEnv = "WEBMAPCTL_TEST_TOKEN"
	t.Setenv("WEBMAPCTL_TEST_TOKEN", "sekret")

	buf := &bytes.Buffer{}
	cmd := NewInspectCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"abc123"})

	require.NoError(t, cmd.Execute())
	assert.Equal(t, "Bearer sekret", s.authHeader())
}
