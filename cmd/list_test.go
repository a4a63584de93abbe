package cmd

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/greyhoundforty/blueterm/internal/cloud"
	"github.com/greyhoundforty/blueterm/internal/session"
)

func listSnapshot() session.Snapshot {
	return session.Snapshot{
		Family: cloud.FamilyKubernetes,
		Region: "eu-de",
		ResourceGroups: []cloud.ResourceGroup{
			{ID: "rg-1", Name: "Default", Default: true},
			{ID: "rg-2", Name: "prod"},
		},
		Resources: []cloud.Resource{
			{Family: cloud.FamilyKubernetes, ID: "c1", Name: "iks-prod", Status: cloud.StatusRunning, Region: "eu-de",
				Attributes: map[string]string{"version": "1.31.4", "workers": "3"}},
			{Family: cloud.FamilyKubernetes, ID: "c2", Name: "iks-dev", Status: cloud.StatusWarning, Region: "eu-de"},
		},
		Loaded: true,
	}
}

func TestWriteResourcesJSON(t *testing.T) {
	snap := listSnapshot()
	var buf bytes.Buffer
	require.NoError(t, writeResources(&buf, "json", snap, snap.Resources))

	var got []cloud.Resource
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	require.Len(t, got, 2)
	assert.Equal(t, "3", got[0].Attributes["workers"])
}

func TestWriteResourcesYAMLEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeResources(&buf, "yaml", listSnapshot(), nil))

	var got []cloud.Resource
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &got))
	assert.Empty(t, got)
	assert.Equal(t, "[]\n", buf.String())
}

func TestWriteResourcesTable(t *testing.T) {
	snap := listSnapshot()
	var buf bytes.Buffer
	require.NoError(t, writeResources(&buf, "table", snap, snap.Filter("warn")))
	out := buf.String()
	assert.Contains(t, out, "iks-dev")
	assert.NotContains(t, out, "iks-prod")
	assert.Contains(t, out, "VERSION")
}

func TestWriteResourcesTableEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeResources(&buf, "table", listSnapshot(), nil))
	assert.Equal(t, "No Kubernetes found in eu-de / all groups.\n", buf.String())
}

func TestResolveGroup(t *testing.T) {
	snap := listSnapshot()

	id, err := resolveGroup(snap, "PROD")
	require.NoError(t, err)
	assert.Equal(t, "rg-2", id)

	id, err = resolveGroup(snap, "rg-1")
	require.NoError(t, err)
	assert.Equal(t, "rg-1", id)

	_, err = resolveGroup(snap, "staging")
	assert.True(t, cloud.IsKind(err, cloud.KindInvalidRequest))
}
