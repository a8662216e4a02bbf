package telemetry_test

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/masmetrics/spendguard/pkg/model"
	"github.com/masmetrics/spendguard/pkg/storage"
	"github.com/masmetrics/spendguard/pkg/telemetry"
)

var testNow = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func newTestAggregator(t *testing.T) (*telemetry.Aggregator, *storage.SQLite) {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	store, err := storage.NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	agg := telemetry.NewAggregator(store, logger, telemetry.WithClock(func() time.Time { return testNow }))
	return agg, store
}

func addRecord(t *testing.T, store *storage.SQLite, customer, workflow, agent, cost string, tokens int64, occurredAt time.Time) {
	t.Helper()
	err := store.Append(context.Background(), &model.SpendRecord{
		CustomerID: customer,
		WorkflowID: workflow,
		AgentID:    agent,
		Cost:       dec(cost),
		TokenCount: tokens,
		StepCount:  2,
		OccurredAt: occurredAt,
	})
	require.NoError(t, err)
}

func TestSummarize_EmptyLedger(t *testing.T) {
	agg, _ := newTestAggregator(t)

	summary, err := agg.Summarize(context.Background(), "cust-a", 7)
	require.NoError(t, err)

	assert.True(t, summary.TotalCost.IsZero())
	assert.Zero(t, summary.TotalExecutions)
	assert.True(t, summary.AvgCostPerExecution.IsZero())
	assert.False(t, summary.SpikeDetected)

	// The trend is still gap-free: one zero point per day, chronological.
	require.Len(t, summary.CostTrend, 7)
	assert.Equal(t, "2025-06-09", summary.CostTrend[0].Date)
	assert.Equal(t, "2025-06-15", summary.CostTrend[6].Date)
	for _, point := range summary.CostTrend {
		assert.True(t, point.Cost.IsZero())
	}
}

func TestSummarize_Totals(t *testing.T) {
	agg, store := newTestAggregator(t)

	addRecord(t, store, "cust-a", "wf-research", "planner-agent", "0.10", 1000, testNow.Add(-2*time.Hour))
	addRecord(t, store, "cust-a", "wf-research", "coder-agent", "0.30", 3000, testNow.Add(-26*time.Hour))
	addRecord(t, store, "cust-a", "wf-support", "planner-agent", "0.20", 2000, testNow.Add(-49*time.Hour))

	summary, err := agg.Summarize(context.Background(), "cust-a", 7)
	require.NoError(t, err)

	assert.True(t, summary.TotalCost.Equal(dec("0.60")), "got %s", summary.TotalCost)
	assert.Equal(t, int64(3), summary.TotalExecutions)
	assert.True(t, summary.AvgCostPerExecution.Equal(dec("0.20")), "got %s", summary.AvgCostPerExecution)
	assert.Equal(t, int64(6000), summary.TotalTokens)

	require.Contains(t, summary.CostByAgent, "planner-agent")
	assert.True(t, summary.CostByAgent["planner-agent"].Equal(dec("0.30")))
	assert.True(t, summary.CostByAgent["coder-agent"].Equal(dec("0.30")))

	require.Contains(t, summary.CostByWorkflow, "wf-research")
	assert.True(t, summary.CostByWorkflow["wf-research"].Equal(dec("0.40")))
	assert.True(t, summary.CostByWorkflow["wf-support"].Equal(dec("0.20")))
}

func TestSummarize_TrendZeroFilled(t *testing.T) {
	agg, store := newTestAggregator(t)

	// Spend on the 13th and 15th; the 14th must appear as an explicit zero.
	addRecord(t, store, "cust-a", "wf-1", "planner-agent", "0.50", 500, testNow.Add(-48*time.Hour))
	addRecord(t, store, "cust-a", "wf-1", "planner-agent", "0.25", 250, testNow.Add(-1*time.Hour))

	summary, err := agg.Summarize(context.Background(), "cust-a", 3)
	require.NoError(t, err)

	require.Len(t, summary.CostTrend, 3)
	assert.Equal(t, "2025-06-13", summary.CostTrend[0].Date)
	assert.True(t, summary.CostTrend[0].Cost.Equal(dec("0.50")))
	assert.Equal(t, "2025-06-14", summary.CostTrend[1].Date)
	assert.True(t, summary.CostTrend[1].Cost.IsZero())
	assert.Equal(t, "2025-06-15", summary.CostTrend[2].Date)
	assert.True(t, summary.CostTrend[2].Cost.Equal(dec("0.25")))
}

func TestSummarize_SpikeDetection(t *testing.T) {
	agg, store := newTestAggregator(t)

	// Six quiet days at $1, one day at $10. Average over 7 days is
	// 16/7 ≈ 2.29, threshold ≈ 4.57, so the $10 day is a spike.
	for i := 1; i <= 6; i++ {
		addRecord(t, store, "cust-a", "wf-1", "planner-agent", "1", 100, testNow.Add(-time.Duration(i)*24*time.Hour))
	}
	addRecord(t, store, "cust-a", "wf-1", "planner-agent", "10", 100, testNow.Add(-1*time.Hour))

	summary, err := agg.Summarize(context.Background(), "cust-a", 7)
	require.NoError(t, err)
	assert.True(t, summary.SpikeDetected)
}

func TestSummarize_NoSpikeOnFlatSpend(t *testing.T) {
	agg, store := newTestAggregator(t)

	for i := 0; i < 7; i++ {
		addRecord(t, store, "cust-a", "wf-1", "planner-agent", "2", 100, testNow.Add(-time.Duration(i)*24*time.Hour))
	}

	summary, err := agg.Summarize(context.Background(), "cust-a", 7)
	require.NoError(t, err)
	assert.False(t, summary.SpikeDetected)
}

func TestSummarize_SingleDayWindowNeverSpikes(t *testing.T) {
	agg, store := newTestAggregator(t)
	addRecord(t, store, "cust-a", "wf-1", "planner-agent", "100", 100, testNow.Add(-1*time.Hour))

	summary, err := agg.Summarize(context.Background(), "cust-a", 1)
	require.NoError(t, err)
	assert.False(t, summary.SpikeDetected)
}

func TestSummarize_FiltersByCustomer(t *testing.T) {
	agg, store := newTestAggregator(t)

	addRecord(t, store, "cust-a", "wf-1", "planner-agent", "1", 100, testNow.Add(-1*time.Hour))
	addRecord(t, store, "cust-b", "wf-1", "planner-agent", "5", 500, testNow.Add(-1*time.Hour))

	summary, err := agg.Summarize(context.Background(), "cust-a", 7)
	require.NoError(t, err)
	assert.True(t, summary.TotalCost.Equal(dec("1")))
	assert.Equal(t, int64(1), summary.TotalExecutions)

	// Empty customer ID aggregates everyone.
	all, err := agg.Summarize(context.Background(), "", 7)
	require.NoError(t, err)
	assert.True(t, all.TotalCost.Equal(dec("6")))
	assert.Equal(t, int64(2), all.TotalExecutions)
}

func TestSummarize_ExcludesRecordsOutsideWindow(t *testing.T) {
	agg, store := newTestAggregator(t)

	addRecord(t, store, "cust-a", "wf-1", "planner-agent", "1", 100, testNow.Add(-1*time.Hour))
	addRecord(t, store, "cust-a", "wf-1", "planner-agent", "99", 100, testNow.AddDate(0, 0, -10))

	summary, err := agg.Summarize(context.Background(), "cust-a", 7)
	require.NoError(t, err)
	assert.True(t, summary.TotalCost.Equal(dec("1")), "got %s", summary.TotalCost)
}

func TestSummarize_ValidatesWindow(t *testing.T) {
	agg, _ := newTestAggregator(t)

	_, err := agg.Summarize(context.Background(), "cust-a", 0)
	require.Error(t, err)
	assert.True(t, model.IsValidation(err))

	_, err = agg.Summarize(context.Background(), "cust-a", telemetry.MaxWindowDays+1)
	require.Error(t, err)
	assert.True(t, model.IsValidation(err))

	_, err = agg.Summarize(context.Background(), "cust-a", telemetry.MaxWindowDays)
	require.NoError(t, err)
}
