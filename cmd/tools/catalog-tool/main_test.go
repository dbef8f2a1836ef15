package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"staffing-gateway/pkg/registry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateCatalog_BuiltIn(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, validateCatalog(&out, ""))
	assert.Contains(t, out.String(), "Catalog validation passed")
}

func TestListResources_ByTag(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, listResources(&out, "", "bulk"))

	assert.Contains(t, out.String(), "assignments-send-invitations")
	assert.Contains(t, out.String(), "[bulk]")
	assert.NotContains(t, out.String(), "inventory")
}

func TestResolve_DropsUnknownQueryKeys(t *testing.T) {
	var out bytes.Buffer
	err := resolve(&out, "", "technician-schedule", "get",
		map[string]string{"id": "T 7"}, "from_date=2024-01-01&bogus=1")
	require.NoError(t, err)

	assert.Contains(t, out.String(), "dropped: bogus")
	assert.Contains(t, out.String(), "GET /api/management/technicians/T%207/schedule?from_date=2024-01-01")
}

func TestResolve_UndeclaredVerb(t *testing.T) {
	var out bytes.Buffer
	assert.Error(t, resolve(&out, "", "dashboard-stats", "DELETE", nil, ""))
}

func TestUpdateResource_RoundTrip(t *testing.T) {
	cat, err := registry.Default()
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "resources.json")
	require.NoError(t, saveCatalog(cat, path))

	require.NoError(t, updateResource(path, "inventory", "label", "equipment"))

	updated, err := registry.LoadCatalog(path)
	require.NoError(t, err)
	inv, ok := updated.Find("inventory")
	require.True(t, ok)
	assert.Equal(t, "equipment", inv.Label)

	assert.Error(t, updateResource(path, "inventory", "pagination", "cursor"))
	assert.Error(t, updateResource(path, "missing", "label", "x"))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "cursor")
}
