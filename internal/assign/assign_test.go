package assign

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scanforge/filescand/internal/config"
)

func TestAssignWildcardPositiveMatchesEverything(t *testing.T) {
	e, err := New(config.ScannerRules{
		{Name: "Strings", Rules: []config.Rule{
			{Positive: &config.Condition{Flavors: []string{"*"}}, Priority: 5},
		}},
	})
	require.NoError(t, err)

	out := e.Assign([]string{"text/plain"}, "a.txt", "", 64)
	require.Len(t, out, 1)
	assert.Equal(t, "Strings", out[0].Name)
}

func TestAssignNegativeFlavorExcludesScanner(t *testing.T) {
	e, err := New(config.ScannerRules{
		{Name: "Pdf", Rules: []config.Rule{{
			Positive: &config.Condition{Flavors: []string{"*"}},
			Negative: &config.Condition{Flavors: []string{"application/zip"}},
			Priority: 5,
		}}},
	})
	require.NoError(t, err)

	out := e.Assign([]string{"application/zip"}, "a.zip", "", 64)
	assert.Empty(t, out)

	out2 := e.Assign([]string{"application/pdf"}, "a.pdf", "", 64)
	require.Len(t, out2, 1)
	assert.Equal(t, "Pdf", out2[0].Name)
}

func TestAssignSortsByDescendingPriorityStableOnTies(t *testing.T) {
	e, err := New(config.ScannerRules{
		{Name: "Low", Rules: []config.Rule{{Positive: &config.Condition{Flavors: []string{"*"}}, Priority: 3}}},
		{Name: "High", Rules: []config.Rule{{Positive: &config.Condition{Flavors: []string{"*"}}, Priority: 9}}},
		{Name: "TieA", Rules: []config.Rule{{Positive: &config.Condition{Flavors: []string{"*"}}, Priority: 5}}},
		{Name: "TieB", Rules: []config.Rule{{Positive: &config.Condition{Flavors: []string{"*"}}, Priority: 5}}},
	})
	require.NoError(t, err)

	out := e.Assign([]string{"text/plain"}, "a.txt", "", 1)
	var names []string
	for _, a := range out {
		names = append(names, a.Name)
	}
	require.Len(t, names, 4)
	assert.Equal(t, "High", names[0])
	assert.Equal(t, "Low", names[len(names)-1])
	// TieA and TieB share priority 5; configuration order (TieA before
	// TieB) must be preserved rather than randomized by map iteration.
	assert.Equal(t, "TieA", names[1])
	assert.Equal(t, "TieB", names[2])
}

func TestAssignFilenameRegex(t *testing.T) {
	e, err := New(config.ScannerRules{
		{Name: "Archive", Rules: []config.Rule{{Positive: &config.Condition{Filename: `\.zip$`}, Priority: 5}}},
	})
	require.NoError(t, err)

	out := e.Assign(nil, "payload.zip", "", 10)
	require.Len(t, out, 1)

	out2 := e.Assign(nil, "payload.txt", "", 10)
	assert.Empty(t, out2)
}

func TestAssignFallsThroughToNextRuleWhenNeitherMatches(t *testing.T) {
	e, err := New(config.ScannerRules{
		{Name: "Multi", Rules: []config.Rule{
			{Positive: &config.Condition{Flavors: []string{"image/png"}}, Priority: 9},
			{Positive: &config.Condition{Flavors: []string{"*"}}, Priority: 1},
		}},
	})
	require.NoError(t, err)

	out := e.Assign([]string{"text/plain"}, "a.txt", "", 1)
	require.Len(t, out, 1)
	assert.Equal(t, 1, out[0].Priority)
}

func TestAssignWhenExpressionIsAdditive(t *testing.T) {
	e, err := New(config.ScannerRules{
		{Name: "BigOnly", Rules: []config.Rule{{
			Positive: &config.Condition{Flavors: []string{"*"}},
			Priority: 5,
			When:     "Size > 1000",
		}}},
	})
	require.NoError(t, err)

	small := e.Assign([]string{"text/plain"}, "a.txt", "", 10)
	assert.Empty(t, small)

	big := e.Assign([]string{"text/plain"}, "a.txt", "", 5000)
	require.Len(t, big, 1)
}

func TestAssignPreservesConfigurationOrderAcrossManyScanners(t *testing.T) {
	var entries config.ScannerRules
	names := []string{"Zebra", "Alpha", "Mike", "Bravo", "Sierra"}
	for _, n := range names {
		entries = append(entries, config.ScannerEntry{
			Name:  n,
			Rules: []config.Rule{{Positive: &config.Condition{Flavors: []string{"*"}}, Priority: 5}},
		})
	}

	for i := 0; i < 20; i++ {
		e, err := New(entries)
		require.NoError(t, err)
		out := e.Assign([]string{"text/plain"}, "a.txt", "", 1)
		require.Len(t, out, len(names))
		for idx, a := range out {
			assert.Equal(t, names[idx], a.Name, "equal-priority order must match configuration order on every run")
		}
	}
}
