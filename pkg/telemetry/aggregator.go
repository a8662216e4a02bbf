// Package telemetry rolls the spend ledger up into reporting summaries:
// totals, per-agent and per-workflow breakdowns, a gap-free daily trend,
// and spike detection. It reads the ledger and nothing else.
package telemetry

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/masmetrics/spendguard/pkg/model"
	"github.com/masmetrics/spendguard/pkg/storage"
)

// MaxWindowDays bounds the summary window.
const MaxWindowDays = 90

// DefaultWindowDays is the summary window when the caller does not specify one.
const DefaultWindowDays = 7

var two = decimal.NewFromInt(2)

// Aggregator computes cost summaries over a trailing window of UTC
// calendar days.
type Aggregator struct {
	ledger storage.Ledger
	logger *slog.Logger
	now    func() time.Time
}

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithClock overrides the aggregator's time source.
func WithClock(now func() time.Time) Option {
	return func(a *Aggregator) { a.now = now }
}

// NewAggregator creates a telemetry aggregator over the given ledger.
func NewAggregator(ledger storage.Ledger, logger *slog.Logger, opts ...Option) *Aggregator {
	a := &Aggregator{
		ledger: ledger,
		logger: logger,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Summarize aggregates the trailing `days` calendar days, inclusive of
// today. An empty customerID summarizes all customers. Summarization
// never errors on empty data; it returns a zeroed summary with a
// complete, zero-filled trend.
func (a *Aggregator) Summarize(ctx context.Context, customerID string, days int) (*model.CostSummary, error) {
	if days < 1 {
		return nil, model.Validationf("days", "must be positive, got %d", days)
	}
	if days > MaxWindowDays {
		return nil, model.Validationf("days", "must be at most %d, got %d", MaxWindowDays, days)
	}

	now := a.now().UTC()
	start := model.DayStart(now).AddDate(0, 0, -(days - 1))
	end := start.AddDate(0, 0, days)

	stats, err := a.ledger.WindowStats(ctx, customerID, start, end)
	if err != nil {
		return nil, fmt.Errorf("window stats: %w", err)
	}

	byAgent, err := a.ledger.CostByAgent(ctx, customerID, start, end)
	if err != nil {
		return nil, fmt.Errorf("cost by agent: %w", err)
	}

	byWorkflow, err := a.ledger.CostByWorkflow(ctx, customerID, start, end)
	if err != nil {
		return nil, fmt.Errorf("cost by workflow: %w", err)
	}

	byDay, err := a.ledger.CostByDay(ctx, customerID, start, end)
	if err != nil {
		return nil, fmt.Errorf("cost by day: %w", err)
	}

	// One trend point per day in the window, zero-filled, chronological,
	// so charts never show gaps.
	trend := make([]model.TrendPoint, 0, days)
	for i := 0; i < days; i++ {
		day := start.AddDate(0, 0, i).Format("2006-01-02")
		cost, ok := byDay[day]
		if !ok {
			cost = decimal.Zero
		}
		trend = append(trend, model.TrendPoint{Date: day, Cost: cost})
	}

	// Spike: any single day above twice the average daily cost. The
	// average includes zero-cost days, so a single-day window can never
	// spike against itself.
	avgDaily := stats.TotalCost.Div(decimal.NewFromInt(int64(days)))
	spikeThreshold := avgDaily.Mul(two)
	spike := false
	for _, point := range trend {
		if point.Cost.GreaterThan(spikeThreshold) {
			spike = true
			break
		}
	}

	avgCost := decimal.Zero
	if stats.Executions > 0 {
		avgCost = stats.TotalCost.Div(decimal.NewFromInt(stats.Executions))
	}

	summary := &model.CostSummary{
		TotalCost:           stats.TotalCost,
		TotalExecutions:     stats.Executions,
		AvgCostPerExecution: avgCost,
		TotalTokens:         stats.TotalTokens,
		CostByAgent:         byAgent,
		CostByWorkflow:      byWorkflow,
		CostTrend:           trend,
		SpikeDetected:       spike,
	}

	a.logger.Debug("telemetry summarized",
		"customer_id", customerID,
		"days", days,
		"total_cost", stats.TotalCost.String(),
		"executions", stats.Executions,
		"spike", spike,
	)

	return summary, nil
}
