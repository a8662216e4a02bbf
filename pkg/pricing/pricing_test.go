package pricing_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/masmetrics/spendguard/pkg/pricing"
)

func TestDefault(t *testing.T) {
	table := pricing.Default()

	cost, err := table.CostPer1k("gpt-4o")
	require.NoError(t, err)
	assert.True(t, cost.Equal(decimal.RequireFromString("0.005")))

	cost, err = table.CostPer1k("claude-3-opus")
	require.NoError(t, err)
	assert.True(t, cost.Equal(decimal.RequireFromString("0.015")))

	_, err = table.CostPer1k("unknown-model")
	assert.Error(t, err)
}

func TestDefault_ModelsSorted(t *testing.T) {
	models := pricing.Default().Models()
	require.NotEmpty(t, models)
	assert.IsIncreasing(t, models)
	assert.Contains(t, models, "gpt-3.5-turbo")
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pricing.yaml")
	content := `updated: "2025-06-01"
models:
  - model: custom-model
    cost_per_1k_tokens: "0.0042"
  - model: free-model
    cost_per_1k_tokens: "0"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	table, err := pricing.LoadFile(path)
	require.NoError(t, err)

	cost, err := table.CostPer1k("custom-model")
	require.NoError(t, err)
	assert.True(t, cost.Equal(decimal.RequireFromString("0.0042")))

	cost, err = table.CostPer1k("free-model")
	require.NoError(t, err)
	assert.True(t, cost.IsZero())

	// A loaded file replaces the defaults entirely.
	_, err = table.CostPer1k("gpt-4o")
	assert.Error(t, err)
}

func TestLoadFile_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := pricing.LoadFile(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)

	empty := filepath.Join(dir, "empty.yaml")
	require.NoError(t, os.WriteFile(empty, []byte("models: []\n"), 0o644))
	_, err = pricing.LoadFile(empty)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no models")

	badCost := filepath.Join(dir, "bad-cost.yaml")
	require.NoError(t, os.WriteFile(badCost, []byte("models:\n  - model: m\n    cost_per_1k_tokens: \"abc\"\n"), 0o644))
	_, err = pricing.LoadFile(badCost)
	assert.Error(t, err)

	negative := filepath.Join(dir, "negative.yaml")
	require.NoError(t, os.WriteFile(negative, []byte("models:\n  - model: m\n    cost_per_1k_tokens: \"-1\"\n"), 0o644))
	_, err = pricing.LoadFile(negative)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "non-negative")

	noName := filepath.Join(dir, "no-name.yaml")
	require.NoError(t, os.WriteFile(noName, []byte("models:\n  - cost_per_1k_tokens: \"0.01\"\n"), 0o644))
	_, err = pricing.LoadFile(noName)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing model name")
}
