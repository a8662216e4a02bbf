// Package forecast converts workflow shape parameters into a deterministic
// cost breakdown and monthly projection. It is a pure function of its
// inputs: no state, no side effects, safe for concurrent use.
package forecast

import (
	"github.com/shopspring/decimal"

	"github.com/masmetrics/spendguard/pkg/model"
)

// The monthly projection assumes a fixed cadence of 10 workflow runs per
// day over a 30-day month. This is a business assumption, not a measured
// rate, and is deliberately not configurable.
const (
	runsPerDay   = 10
	daysPerMonth = 30
)

var oneThousand = decimal.NewFromInt(1000)

// Request holds the workflow shape being forecast. Zero agents, steps, or
// tokens yield a zero-cost breakdown rather than an error; negative values
// are rejected.
type Request struct {
	NumAgents            int64           `json:"num_agents"`
	AvgStepsPerAgent     int64           `json:"avg_steps_per_agent"`
	TokensPerStep        int64           `json:"tokens_per_step"`
	ModelCostPer1kTokens decimal.Decimal `json:"model_cost_per_1k_tokens"`
	ToolCallsPerStep     int64           `json:"tool_calls_per_step"`
	ToolCostPerCall      decimal.Decimal `json:"tool_cost_per_call"`
}

// Validate rejects negative inputs, naming the offending field.
func (r Request) Validate() error {
	switch {
	case r.NumAgents < 0:
		return model.Validationf("num_agents", "must be non-negative, got %d", r.NumAgents)
	case r.AvgStepsPerAgent < 0:
		return model.Validationf("avg_steps_per_agent", "must be non-negative, got %d", r.AvgStepsPerAgent)
	case r.TokensPerStep < 0:
		return model.Validationf("tokens_per_step", "must be non-negative, got %d", r.TokensPerStep)
	case r.ModelCostPer1kTokens.IsNegative():
		return model.Validationf("model_cost_per_1k_tokens", "must be non-negative, got %s", r.ModelCostPer1kTokens)
	case r.ToolCallsPerStep < 0:
		return model.Validationf("tool_calls_per_step", "must be non-negative, got %d", r.ToolCallsPerStep)
	case r.ToolCostPerCall.IsNegative():
		return model.Validationf("tool_cost_per_call", "must be non-negative, got %s", r.ToolCostPerCall)
	}
	return nil
}

// Forecast computes the cost breakdown for a workflow shape.
func Forecast(req Request) (*model.CostBreakdown, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	tokenCostPerStep := decimal.NewFromInt(req.TokensPerStep).
		Div(oneThousand).
		Mul(req.ModelCostPer1kTokens)
	toolCostPerStep := decimal.NewFromInt(req.ToolCallsPerStep).
		Mul(req.ToolCostPerCall)

	costPerStep := tokenCostPerStep.Add(toolCostPerStep)
	costPerAgent := costPerStep.Mul(decimal.NewFromInt(req.AvgStepsPerAgent))
	costPerWorkflow := costPerAgent.Mul(decimal.NewFromInt(req.NumAgents))
	monthlyProjection := costPerWorkflow.
		Mul(decimal.NewFromInt(runsPerDay)).
		Mul(decimal.NewFromInt(daysPerMonth))

	return &model.CostBreakdown{
		TokenCostPerStep:  tokenCostPerStep,
		ToolCostPerStep:   toolCostPerStep,
		CostPerStep:       costPerStep,
		CostPerAgent:      costPerAgent,
		CostPerWorkflow:   costPerWorkflow,
		MonthlyProjection: monthlyProjection,
	}, nil
}
