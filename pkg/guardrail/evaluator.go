// Package guardrail decides, for every prospective workflow execution,
// whether it may proceed. The evaluator reads the spend ledger and policy
// store, derives cost pressure and spend velocity, and returns a
// PASS/WARN/BLOCK verdict. Evaluation never writes to the ledger, so
// what-if evaluations do not pollute spend history and re-evaluating the
// same inputs is idempotent.
package guardrail

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/masmetrics/spendguard/pkg/alerts"
	"github.com/masmetrics/spendguard/pkg/model"
	"github.com/masmetrics/spendguard/pkg/storage"
)

// FailMode controls what happens when a customer has no policy configured.
type FailMode string

const (
	// FailOpen returns PASS when no policy exists: spend is unbounded
	// until a policy is created. This matches the historical default and
	// is safety-relevant, so every fail-open verdict is logged and alerted.
	FailOpen FailMode = "open"

	// FailClosed returns BLOCK when no policy exists.
	FailClosed FailMode = "closed"
)

// amberRatio is the fraction of the daily budget at which projected spend
// starts to WARN.
var amberRatio = decimal.RequireFromString("0.8")

var oneHundred = decimal.NewFromInt(100)

// velocityWindow is the trailing window over which spend velocity is
// measured, expressed in currency per hour.
const velocityWindow = time.Hour

// Request identifies the execution being evaluated.
type Request struct {
	CustomerID    string          `json:"customer_id"`
	WorkflowID    string          `json:"workflow_id"`
	AgentID       string          `json:"agent_id"`
	ExecutionCost decimal.Decimal `json:"execution_cost"`
	StepCount     int64           `json:"step_count"`
}

// Evaluator is the budget guardrail decision engine. It holds no state of
// its own; every verdict is a fresh read-then-decide pass over the ledger
// and the policy store.
type Evaluator struct {
	ledger    storage.Ledger
	policies  storage.PolicyStore
	failMode  FailMode
	notifiers []alerts.Notifier
	logger    *slog.Logger
	now       func() time.Time
}

// Option configures an Evaluator.
type Option func(*Evaluator)

// WithFailMode sets the behavior when no policy exists for a customer.
func WithFailMode(mode FailMode) Option {
	return func(e *Evaluator) { e.failMode = mode }
}

// WithNotifiers sets the notifiers dispatched on WARN, BLOCK, and
// fail-open verdicts.
func WithNotifiers(notifiers []alerts.Notifier) Option {
	return func(e *Evaluator) { e.notifiers = notifiers }
}

// WithClock overrides the evaluator's time source.
func WithClock(now func() time.Time) Option {
	return func(e *Evaluator) { e.now = now }
}

// NewEvaluator creates a guardrail evaluator. The default fail mode is
// FailOpen.
func NewEvaluator(ledger storage.Ledger, policies storage.PolicyStore, logger *slog.Logger, opts ...Option) *Evaluator {
	e := &Evaluator{
		ledger:   ledger,
		policies: policies,
		failMode: FailOpen,
		logger:   logger,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Evaluate produces a verdict for a prospective execution. The verdict is
// a best-effort snapshot: the two reads (policy, ledger) may race with
// concurrent appends, but the execution under evaluation is never counted
// in daily_spend because evaluation precedes recording.
func (e *Evaluator) Evaluate(ctx context.Context, req Request) (*model.GuardrailVerdict, error) {
	if req.CustomerID == "" {
		return nil, model.Validationf("customer_id", "must not be empty")
	}
	if req.ExecutionCost.IsNegative() {
		return nil, model.Validationf("execution_cost", "must be non-negative, got %s", req.ExecutionCost)
	}
	if req.StepCount < 1 {
		return nil, model.Validationf("step_count", "must be positive, got %d", req.StepCount)
	}

	policy, err := e.policies.GetActivePolicy(ctx, req.CustomerID)
	if errors.Is(err, model.ErrPolicyNotFound) {
		return e.noPolicyVerdict(ctx, req), nil
	}
	if err != nil {
		return nil, fmt.Errorf("fetch policy: %w", err)
	}

	now := e.now().UTC()
	dayStart := model.DayStart(now)

	dailySpend, err := e.ledger.SumCostSince(ctx, req.CustomerID, dayStart)
	if err != nil {
		return nil, fmt.Errorf("sum daily spend: %w", err)
	}

	velocity, err := e.spendVelocity(ctx, req.CustomerID, now)
	if err != nil {
		return nil, fmt.Errorf("compute spend velocity: %w", err)
	}

	projected := dailySpend.Add(req.ExecutionCost)
	pressure := e.costPressure(policy, projected, dailySpend, velocity, now, dayStart)
	status, reason := e.decide(policy, req, projected, velocity, pressure)

	verdict := &model.GuardrailVerdict{
		Status:              status,
		Reason:              reason,
		DailySpend:          dailySpend,
		DailyBudgetLimit:    policy.DailyBudgetLimit,
		WorkflowBudgetLimit: policy.WorkflowBudgetLimit,
		CostPressure:        pressure,
		SpendVelocity:       velocity,
	}

	e.logger.Info("guardrail evaluated",
		"customer_id", req.CustomerID,
		"workflow_id", req.WorkflowID,
		"status", status,
		"pressure", pressure,
		"daily_spend", dailySpend.String(),
		"execution_cost", req.ExecutionCost.String(),
		"reason", reason,
	)

	if status != model.StatusPass {
		level := alerts.AlertWarn
		if status == model.StatusBlock {
			level = alerts.AlertBlock
		}
		e.notify(ctx, level, req, verdict)
	}

	return verdict, nil
}

// spendVelocity measures cost accrued in the trailing one-hour window,
// expressed as currency per hour. Fewer than 2 records in the window is
// too thin a signal; velocity is then zero.
func (e *Evaluator) spendVelocity(ctx context.Context, customerID string, now time.Time) (decimal.Decimal, error) {
	stats, err := e.ledger.WindowStats(ctx, customerID, now.Add(-velocityWindow), now)
	if err != nil {
		return decimal.Zero, err
	}
	if stats.Executions < 2 {
		return decimal.Zero, nil
	}
	return stats.TotalCost, nil
}

// costPressure derives the traffic-light signal from projected daily spend
// and from extrapolating the current velocity over the rest of the UTC day.
func (e *Evaluator) costPressure(policy *model.Policy, projected, dailySpend, velocity decimal.Decimal, now, dayStart time.Time) model.CostPressure {
	switch {
	case projected.GreaterThanOrEqual(policy.DailyBudgetLimit):
		return model.PressureRed
	case projected.GreaterThanOrEqual(policy.DailyBudgetLimit.Mul(amberRatio)):
		return model.PressureAmber
	}

	hoursRemaining := dayStart.AddDate(0, 0, 1).Sub(now).Hours()
	forecast := dailySpend.Add(velocity.Mul(decimal.NewFromFloat(hoursRemaining)))
	if forecast.GreaterThan(policy.DailyBudgetLimit) {
		return model.PressureAmber
	}

	return model.PressureGreen
}

// decide applies the guardrail rules in order of strictness; the first
// triggered rule determines the status and names itself in the reason.
func (e *Evaluator) decide(policy *model.Policy, req Request, projected, velocity decimal.Decimal, pressure model.CostPressure) (model.GuardrailStatus, string) {
	warnThreshold := policy.DailyBudgetLimit.Mul(amberRatio)

	switch {
	case projected.GreaterThan(policy.DailyBudgetLimit):
		return model.StatusBlock, fmt.Sprintf(
			"projected daily spend $%s exceeds daily budget $%s",
			projected.StringFixed(4), policy.DailyBudgetLimit.StringFixed(2))

	case req.ExecutionCost.GreaterThan(policy.WorkflowBudgetLimit):
		return model.StatusBlock, fmt.Sprintf(
			"workflow cost $%s exceeds workflow limit $%s",
			req.ExecutionCost.StringFixed(2), policy.WorkflowBudgetLimit.StringFixed(2))

	case req.StepCount > policy.StepLimitPerAgent:
		return model.StatusBlock, fmt.Sprintf(
			"step count %d exceeds per-agent step limit %d",
			req.StepCount, policy.StepLimitPerAgent)

	case pressure == model.PressureAmber || projected.GreaterThan(warnThreshold):
		if projected.GreaterThanOrEqual(warnThreshold) {
			pct := projected.Div(policy.DailyBudgetLimit).Mul(oneHundred)
			return model.StatusWarn, fmt.Sprintf(
				"projected daily spend $%s is at %s%% of daily budget $%s",
				projected.StringFixed(4), pct.StringFixed(0), policy.DailyBudgetLimit.StringFixed(2))
		}
		return model.StatusWarn, fmt.Sprintf(
			"spend velocity $%s/hour would exhaust daily budget $%s before end of day",
			velocity.StringFixed(4), policy.DailyBudgetLimit.StringFixed(2))

	default:
		return model.StatusPass, "within budget"
	}
}

// noPolicyVerdict resolves a missing policy according to the configured
// fail mode. Either way the outcome is logged loudly: fail-open means
// unbounded spend until a policy is created.
func (e *Evaluator) noPolicyVerdict(ctx context.Context, req Request) *model.GuardrailVerdict {
	verdict := &model.GuardrailVerdict{
		DailySpend:          decimal.Zero,
		DailyBudgetLimit:    decimal.Zero,
		WorkflowBudgetLimit: decimal.Zero,
		CostPressure:        model.PressureGreen,
		SpendVelocity:       decimal.Zero,
	}

	if e.failMode == FailClosed {
		verdict.Status = model.StatusBlock
		verdict.Reason = fmt.Sprintf("no policy configured for customer %s; blocking (fail-closed)", req.CustomerID)
		e.logger.Warn("guardrail fail-closed: no policy",
			"customer_id", req.CustomerID,
			"workflow_id", req.WorkflowID,
		)
		e.notify(ctx, alerts.AlertBlock, req, verdict)
		return verdict
	}

	verdict.Status = model.StatusPass
	verdict.Reason = fmt.Sprintf("no policy configured for customer %s; defaulting to PASS (fail-open)", req.CustomerID)
	e.logger.Warn("guardrail fail-open: no policy, spend is unbounded",
		"customer_id", req.CustomerID,
		"workflow_id", req.WorkflowID,
	)
	e.notify(ctx, alerts.AlertFailOpen, req, verdict)
	return verdict
}

func (e *Evaluator) notify(ctx context.Context, level alerts.AlertLevel, req Request, verdict *model.GuardrailVerdict) {
	if len(e.notifiers) == 0 {
		return
	}

	alert := alerts.Alert{
		Level:            level,
		CustomerID:       req.CustomerID,
		WorkflowID:       req.WorkflowID,
		Status:           string(verdict.Status),
		Reason:           verdict.Reason,
		DailySpend:       verdict.DailySpend,
		DailyBudgetLimit: verdict.DailyBudgetLimit,
		CostPressure:     string(verdict.CostPressure),
		Message: fmt.Sprintf("Guardrail %s for customer %s: %s",
			verdict.Status, req.CustomerID, verdict.Reason),
	}

	for _, notifier := range e.notifiers {
		if err := notifier.Send(ctx, alert); err != nil {
			e.logger.Error("send alert failed",
				"notifier", notifier.Name(),
				"customer_id", req.CustomerID,
				"error", err,
			)
		}
	}
}
