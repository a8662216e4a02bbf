package forecast_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/masmetrics/spendguard/pkg/forecast"
	"github.com/masmetrics/spendguard/pkg/model"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func baseRequest() forecast.Request {
	return forecast.Request{
		NumAgents:            3,
		AvgStepsPerAgent:     4,
		TokensPerStep:        2000,
		ModelCostPer1kTokens: dec("0.005"),
		ToolCallsPerStep:     2,
		ToolCostPerCall:      dec("0.05"),
	}
}

func TestForecast_Breakdown(t *testing.T) {
	breakdown, err := forecast.Forecast(baseRequest())
	require.NoError(t, err)

	// token: 2000/1000 * 0.005 = 0.01; tool: 2 * 0.05 = 0.10
	assert.True(t, breakdown.TokenCostPerStep.Equal(dec("0.01")), "got %s", breakdown.TokenCostPerStep)
	assert.True(t, breakdown.ToolCostPerStep.Equal(dec("0.10")), "got %s", breakdown.ToolCostPerStep)
	assert.True(t, breakdown.CostPerStep.Equal(dec("0.11")), "got %s", breakdown.CostPerStep)
	assert.True(t, breakdown.CostPerAgent.Equal(dec("0.44")), "got %s", breakdown.CostPerAgent)
	assert.True(t, breakdown.CostPerWorkflow.Equal(dec("1.32")), "got %s", breakdown.CostPerWorkflow)
	// 1.32 * 10 runs/day * 30 days
	assert.True(t, breakdown.MonthlyProjection.Equal(dec("396")), "got %s", breakdown.MonthlyProjection)
}

func TestForecast_Pure(t *testing.T) {
	req := baseRequest()

	first, err := forecast.Forecast(req)
	require.NoError(t, err)
	second, err := forecast.Forecast(req)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestForecast_ZeroInputs(t *testing.T) {
	breakdown, err := forecast.Forecast(forecast.Request{})
	require.NoError(t, err)

	assert.True(t, breakdown.CostPerStep.IsZero())
	assert.True(t, breakdown.CostPerAgent.IsZero())
	assert.True(t, breakdown.CostPerWorkflow.IsZero())
	assert.True(t, breakdown.MonthlyProjection.IsZero())
}

func TestForecast_AgentScaling(t *testing.T) {
	req := baseRequest()
	single, err := forecast.Forecast(req)
	require.NoError(t, err)

	req.NumAgents *= 2
	double, err := forecast.Forecast(req)
	require.NoError(t, err)

	assert.True(t, double.CostPerWorkflow.Equal(single.CostPerWorkflow.Mul(dec("2"))))
	assert.True(t, double.MonthlyProjection.Equal(single.MonthlyProjection.Mul(dec("2"))))
	// Per-step and per-agent costs are unchanged
	assert.True(t, double.CostPerAgent.Equal(single.CostPerAgent))
}

func TestForecast_RejectsNegativeInputs(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*forecast.Request)
		field  string
	}{
		{"agents", func(r *forecast.Request) { r.NumAgents = -1 }, "num_agents"},
		{"steps", func(r *forecast.Request) { r.AvgStepsPerAgent = -1 }, "avg_steps_per_agent"},
		{"tokens", func(r *forecast.Request) { r.TokensPerStep = -1 }, "tokens_per_step"},
		{"model cost", func(r *forecast.Request) { r.ModelCostPer1kTokens = dec("-0.01") }, "model_cost_per_1k_tokens"},
		{"tool calls", func(r *forecast.Request) { r.ToolCallsPerStep = -1 }, "tool_calls_per_step"},
		{"tool cost", func(r *forecast.Request) { r.ToolCostPerCall = dec("-0.01") }, "tool_cost_per_call"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := baseRequest()
			tc.mutate(&req)

			_, err := forecast.Forecast(req)
			require.Error(t, err)
			assert.True(t, model.IsValidation(err))
			assert.Contains(t, err.Error(), tc.field)
		})
	}
}
