package storage

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/masmetrics/spendguard/pkg/model"
)

// Ledger is the append-only record of executed workflow costs. Appended
// records are immutable; ordering is established by OccurredAt, not by
// insertion order.
type Ledger interface {
	// Append persists a single spend record. It rejects negative cost,
	// non-positive step counts, and negative token counts.
	Append(ctx context.Context, record *model.SpendRecord) error

	// SumCostSince returns the total cost for a customer with
	// occurred_at >= since.
	SumCostSince(ctx context.Context, customerID string, since time.Time) (decimal.Decimal, error)

	// SumCostInWindow returns the total cost for a customer with
	// start <= occurred_at < end.
	SumCostInWindow(ctx context.Context, customerID string, start, end time.Time) (decimal.Decimal, error)

	// WindowStats returns total cost, execution count, and token count for
	// a customer in [start, end). An empty customerID matches all customers.
	WindowStats(ctx context.Context, customerID string, start, end time.Time) (WindowStats, error)

	// CostByDay returns total cost per UTC calendar day (key 2006-01-02)
	// for records in [start, end). Days with no records are absent.
	CostByDay(ctx context.Context, customerID string, start, end time.Time) (map[string]decimal.Decimal, error)

	// CostByAgent returns total cost per agent for records in [start, end).
	CostByAgent(ctx context.Context, customerID string, start, end time.Time) (map[string]decimal.Decimal, error)

	// CostByWorkflow returns total cost per workflow for records in [start, end).
	CostByWorkflow(ctx context.Context, customerID string, start, end time.Time) (map[string]decimal.Decimal, error)

	// Query returns individual records matching the filter, most recent first.
	Query(ctx context.Context, filter RecordFilter) ([]model.SpendRecord, error)
}

// PolicyStore holds budget policies. Policies are created, never mutated;
// the most recently created policy per customer is the active one.
type PolicyStore interface {
	// CreatePolicy persists a new policy and returns it with a generated
	// ID and creation timestamp.
	CreatePolicy(ctx context.Context, create model.PolicyCreate) (*model.Policy, error)

	// GetActivePolicy returns the most recently created policy for a
	// customer, or model.ErrPolicyNotFound when none exists.
	GetActivePolicy(ctx context.Context, customerID string) (*model.Policy, error)

	// ListPolicies returns all policies for a customer, newest first.
	ListPolicies(ctx context.Context, customerID string) ([]model.Policy, error)
}

// Store combines the spend ledger and policy store over one backend.
type Store interface {
	Ledger
	PolicyStore

	// Close releases resources.
	Close() error
}

// WindowStats aggregates a customer's records inside a time window.
type WindowStats struct {
	TotalCost   decimal.Decimal
	Executions  int64
	TotalTokens int64
}

// RecordFilter controls which spend records a Query returns. Zero-valued
// fields are ignored.
type RecordFilter struct {
	CustomerID string
	WorkflowID string
	AgentID    string
	Start      time.Time
	End        time.Time
	Limit      int
}
