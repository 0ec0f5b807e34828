package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleConfig = `{
  "limits": {"time_to_live": 0, "max_files": 0, "distribution": 30, "scanner": 10, "max_depth": 5},
  "tasting": {"content_type_db": "", "rules": "./rules"},
  "scanners": {
    "Strings": [{"positive": {"flavors": ["*"]}}],
    "Pdf": [{"negative": {"flavors": ["application/zip"]}, "priority": 7}]
  }
}`

func TestLoadAppliesDefaultPriority(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	require.NoError(t, os.WriteFile(path, []byte(sampleConfig), 0o644))

	k, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 30, k.Limits.Distribution)
	assert.Equal(t, 5, k.Limits.MaxDepth)

	stringsRules, ok := k.Scanners.Lookup("Strings")
	require.True(t, ok)
	require.Len(t, stringsRules, 1)
	assert.Equal(t, defaultPriority, stringsRules[0].Priority)

	pdfRules, ok := k.Scanners.Lookup("Pdf")
	require.True(t, ok)
	assert.Equal(t, 7, pdfRules[0].Priority)

	require.Len(t, k.Scanners, 2)
	assert.Equal(t, "Strings", k.Scanners[0].Name, "scanner order must match the configuration document")
	assert.Equal(t, "Pdf", k.Scanners[1].Name)
}

func TestValidateRejectsMissingLimits(t *testing.T) {
	err := Validate([]byte(`{"tasting": {}}`))
	assert.Error(t, err)
}

func TestValidateRejectsMissingDistribution(t *testing.T) {
	err := Validate([]byte(`{"limits": {"max_depth": 1}}`))
	assert.Error(t, err)
}
