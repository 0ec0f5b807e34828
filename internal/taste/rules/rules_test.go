package rules

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeRuleFile(t *testing.T, dir, name string, defs []Definition) {
	t.Helper()
	raw, err := json.Marshal(defs)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), raw, 0o644))
}

func TestCompileAndMatchAnyPattern(t *testing.T) {
	dir := t.TempDir()
	writeRuleFile(t, dir, "suspicious.json", []Definition{
		{Tag: "suspicious", Patterns: []string{"evil", "malware"}},
	})

	rs, err := Compile(dir, "*.json")
	require.NoError(t, err)

	assert.Equal(t, []string{"suspicious"}, rs.Match([]byte("this contains evil code")))
	assert.Empty(t, rs.Match([]byte("totally fine")))
}

func TestCompileAndMatchCondition(t *testing.T) {
	dir := t.TempDir()
	writeRuleFile(t, dir, "combo.json", []Definition{
		{Tag: "combo", Patterns: []string{"alpha", "beta", "gamma"}, Condition: "Count >= 2"},
	})

	rs, err := Compile(dir, "*.json")
	require.NoError(t, err)

	assert.Empty(t, rs.Match([]byte("alpha only")))
	assert.Equal(t, []string{"combo"}, rs.Match([]byte("alpha and beta here")))
}

func TestCompileRejectsBadPattern(t *testing.T) {
	dir := t.TempDir()
	writeRuleFile(t, dir, "bad.json", []Definition{
		{Tag: "bad", Patterns: []string{"(unclosed"}},
	})
	_, err := Compile(dir, "*.json")
	assert.Error(t, err)
}

func TestCompileNestedDirectories(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "nested")
	require.NoError(t, os.MkdirAll(sub, 0o755))
	writeRuleFile(t, sub, "r.json", []Definition{
		{Tag: "nested-tag", Patterns: []string{"x"}},
	})

	rs, err := Compile(dir, "*.json")
	require.NoError(t, err)
	assert.Equal(t, []string{"nested-tag"}, rs.Match([]byte("x")))
}
