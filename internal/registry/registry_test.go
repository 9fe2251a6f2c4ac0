package registry

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devvyn/aafc-herbarium-dwc-extraction-2025-sub001/internal/model"
	"github.com/devvyn/aafc-herbarium-dwc-extraction-2025-sub001/internal/resilience"
)

func writeRegistry(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fields.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_EmptyPathUsesDefaults(t *testing.T) {
	reg, err := Load("")
	require.NoError(t, err)
	assert.True(t, reg.Known(model.FieldCatalogNumber))
	assert.True(t, reg.Known(model.FieldVerbatimLabel))
	require.NotEmpty(t, reg.Required())
}

func TestLoad_CustomFile(t *testing.T) {
	path := writeRegistry(t, `
fields:
  - key: catalogNumber
    term: http://rs.tdwg.org/dwc/terms/catalogNumber
    required: true
  - key: scientificName
    required: true
  - key: localBarcodeNumber
`)
	reg, err := Load(path)
	require.NoError(t, err)
	assert.True(t, reg.Known("localBarcodeNumber"))
	assert.False(t, reg.Known(model.FieldLocality), "custom registries replace, not extend")
	assert.Len(t, reg.Required(), 2)
	assert.Equal(t, "http://rs.tdwg.org/dwc/terms/catalogNumber", reg.ByKey("catalogNumber").Term)
}

func TestLoad_SkipsMalformedEntries(t *testing.T) {
	path := writeRegistry(t, `
fields:
  - key: catalogNumber
  - term: http://example.org/orphan
  - key: catalogNumber
`)
	reg, err := Load(path)
	require.NoError(t, err)
	assert.Len(t, reg.Fields, 1, "keyless and duplicate entries are dropped")
}

func TestRequireKeys(t *testing.T) {
	reg, err := Load("")
	require.NoError(t, err)

	require.NoError(t, RequireKeys(reg, nil))
	require.NoError(t, RequireKeys(reg, []string{model.FieldCatalogNumber, model.FieldEventDate}))

	err = RequireKeys(reg, []string{model.FieldCatalogNumber, "barcode"})
	require.Error(t, err)
	assert.True(t, resilience.IsConfiguration(err))
	assert.Contains(t, err.Error(), `"barcode"`)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)

	_, err = Load(writeRegistry(t, "fields: [not: [valid"))
	require.Error(t, err)

	_, err = Load(writeRegistry(t, "fields: []"))
	require.Error(t, err)
}
