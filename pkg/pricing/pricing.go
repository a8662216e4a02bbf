// Package pricing holds the per-model token pricing table used by the
// simulator CLI and the demo seeder. Pricing can be loaded from a YAML
// file; a built-in table covers common models.
package pricing

import (
	"fmt"
	"os"
	"sort"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// ModelPricing is one model's cost per 1000 tokens.
type ModelPricing struct {
	Model           string `yaml:"model"`
	CostPer1kTokens string `yaml:"cost_per_1k_tokens"`
}

// tableFile is the YAML document layout for a pricing file.
type tableFile struct {
	Updated string         `yaml:"updated,omitempty"`
	Models  []ModelPricing `yaml:"models"`
}

// Table maps model names to their cost per 1000 tokens.
type Table struct {
	models map[string]decimal.Decimal
}

// Default returns the built-in pricing table.
func Default() *Table {
	t, err := newTable([]ModelPricing{
		{Model: "gpt-4-turbo", CostPer1kTokens: "0.01"},
		{Model: "gpt-4o", CostPer1kTokens: "0.005"},
		{Model: "gpt-3.5-turbo", CostPer1kTokens: "0.0015"},
		{Model: "claude-3-opus", CostPer1kTokens: "0.015"},
		{Model: "claude-3-sonnet", CostPer1kTokens: "0.003"},
	})
	if err != nil {
		panic(err) // built-in table is constant
	}
	return t
}

// LoadFile reads a YAML pricing file.
func LoadFile(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read pricing file %s: %w", path, err)
	}

	var file tableFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse pricing file %s: %w", path, err)
	}
	if len(file.Models) == 0 {
		return nil, fmt.Errorf("pricing file %s: no models defined", path)
	}

	t, err := newTable(file.Models)
	if err != nil {
		return nil, fmt.Errorf("pricing file %s: %w", path, err)
	}
	return t, nil
}

func newTable(entries []ModelPricing) (*Table, error) {
	models := make(map[string]decimal.Decimal, len(entries))
	for _, entry := range entries {
		if entry.Model == "" {
			return nil, fmt.Errorf("pricing entry missing model name")
		}
		cost, err := decimal.NewFromString(entry.CostPer1kTokens)
		if err != nil {
			return nil, fmt.Errorf("model %s: parse cost %q: %w", entry.Model, entry.CostPer1kTokens, err)
		}
		if cost.IsNegative() {
			return nil, fmt.Errorf("model %s: cost must be non-negative, got %s", entry.Model, cost)
		}
		models[entry.Model] = cost
	}
	return &Table{models: models}, nil
}

// CostPer1k returns the cost per 1000 tokens for a model.
func (t *Table) CostPer1k(model string) (decimal.Decimal, error) {
	cost, ok := t.models[model]
	if !ok {
		return decimal.Zero, fmt.Errorf("no pricing for model %q", model)
	}
	return cost, nil
}

// Models returns all known model names, sorted.
func (t *Table) Models() []string {
	names := make([]string, 0, len(t.models))
	for name := range t.models {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
