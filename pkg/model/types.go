package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// SpendRecord captures the cost of one executed workflow agent run.
// Records are append-only: once written they are never mutated or deleted.
type SpendRecord struct {
	ID         string          `json:"id" db:"id"`
	CustomerID string          `json:"customer_id" db:"customer_id"`
	WorkflowID string          `json:"workflow_id" db:"workflow_id"`
	AgentID    string          `json:"agent_id" db:"agent_id"`
	ModelName  string          `json:"model_name,omitempty" db:"model_name"`
	Cost       decimal.Decimal `json:"cost" db:"cost"`
	TokenCount int64           `json:"token_count" db:"token_count"`
	StepCount  int64           `json:"step_count" db:"step_count"`
	OccurredAt time.Time       `json:"occurred_at" db:"occurred_at"`
}

// Policy is a customer's budget configuration. Policies are never updated
// in place; a newer policy for the same customer supersedes older ones.
type Policy struct {
	PolicyID            string          `json:"policy_id" db:"policy_id"`
	CustomerID          string          `json:"customer_id" db:"customer_id"`
	DailyBudgetLimit    decimal.Decimal `json:"daily_budget_limit" db:"daily_budget_limit"`
	WorkflowBudgetLimit decimal.Decimal `json:"workflow_budget_limit" db:"workflow_budget_limit"`
	StepLimitPerAgent   int64           `json:"step_limit_per_agent" db:"step_limit_per_agent"`
	CreatedAt           time.Time       `json:"created_at" db:"created_at"`
}

// PolicyCreate holds the caller-supplied fields for a new policy.
type PolicyCreate struct {
	CustomerID          string          `json:"customer_id"`
	DailyBudgetLimit    decimal.Decimal `json:"daily_budget_limit"`
	WorkflowBudgetLimit decimal.Decimal `json:"workflow_budget_limit"`
	StepLimitPerAgent   int64           `json:"step_limit_per_agent"`
}

// GuardrailStatus is the verdict for a prospective execution.
type GuardrailStatus string

const (
	StatusPass  GuardrailStatus = "PASS"
	StatusWarn  GuardrailStatus = "WARN"
	StatusBlock GuardrailStatus = "BLOCK"
)

// CostPressure is a traffic-light signal for how close projected spend is
// to the daily budget ceiling.
type CostPressure string

const (
	PressureGreen CostPressure = "GREEN"
	PressureAmber CostPressure = "AMBER"
	PressureRed   CostPressure = "RED"
)

// GuardrailVerdict is the outcome of one guardrail evaluation. It is
// computed fresh per call and never persisted.
type GuardrailVerdict struct {
	Status              GuardrailStatus `json:"status"`
	Reason              string          `json:"reason"`
	DailySpend          decimal.Decimal `json:"daily_spend"`
	DailyBudgetLimit    decimal.Decimal `json:"daily_budget_limit"`
	WorkflowBudgetLimit decimal.Decimal `json:"workflow_budget_limit"`
	CostPressure        CostPressure    `json:"cost_pressure"`
	SpendVelocity       decimal.Decimal `json:"spend_velocity"`
}

// CostBreakdown is the forecaster output: a deterministic decomposition of
// a workflow's cost plus a monthly projection.
type CostBreakdown struct {
	TokenCostPerStep  decimal.Decimal `json:"token_cost_per_step"`
	ToolCostPerStep   decimal.Decimal `json:"tool_cost_per_step"`
	CostPerStep       decimal.Decimal `json:"cost_per_step"`
	CostPerAgent      decimal.Decimal `json:"cost_per_agent"`
	CostPerWorkflow   decimal.Decimal `json:"cost_per_workflow"`
	MonthlyProjection decimal.Decimal `json:"monthly_projection"`
}

// TrendPoint is one day of aggregated cost in a summary trend.
type TrendPoint struct {
	Date string          `json:"date"`
	Cost decimal.Decimal `json:"cost"`
}

// CostSummary is a rollup of the spend ledger over a trailing window.
type CostSummary struct {
	TotalCost           decimal.Decimal            `json:"total_cost"`
	TotalExecutions     int64                      `json:"total_executions"`
	AvgCostPerExecution decimal.Decimal            `json:"avg_cost_per_execution"`
	TotalTokens         int64                      `json:"total_tokens"`
	CostByAgent         map[string]decimal.Decimal `json:"cost_by_agent"`
	CostByWorkflow      map[string]decimal.Decimal `json:"cost_by_workflow"`
	CostTrend           []TrendPoint               `json:"cost_trend"`
	SpikeDetected       bool                       `json:"spike_detected"`
}

// DayStart returns midnight UTC for the day containing t.
func DayStart(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
