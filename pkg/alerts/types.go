package alerts

import (
	"context"

	"github.com/shopspring/decimal"
)

// AlertLevel indicates the severity of a guardrail alert.
type AlertLevel string

const (
	AlertWarn     AlertLevel = "warn"      // Verdict was WARN
	AlertBlock    AlertLevel = "block"     // Verdict was BLOCK
	AlertFailOpen AlertLevel = "fail_open" // Evaluation passed because no policy exists
)

// Alert represents a guardrail verdict worth notifying about.
type Alert struct {
	Level            AlertLevel      `json:"level"`
	CustomerID       string          `json:"customer_id"`
	WorkflowID       string          `json:"workflow_id"`
	Status           string          `json:"status"`
	Reason           string          `json:"reason"`
	DailySpend       decimal.Decimal `json:"daily_spend"`
	DailyBudgetLimit decimal.Decimal `json:"daily_budget_limit"`
	CostPressure     string          `json:"cost_pressure"`
	Message          string          `json:"message"`
}

// Notifier sends alerts to external systems.
type Notifier interface {
	// Name returns the notifier identifier.
	Name() string

	// Send delivers an alert. Implementations must be safe for concurrent use.
	Send(ctx context.Context, alert Alert) error
}
