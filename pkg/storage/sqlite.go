package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/masmetrics/spendguard/pkg/model"

	_ "modernc.org/sqlite"
)

// SQLite implements the Store interface using an SQLite database.
//
// Monetary values are stored as decimal strings and summed in Go with
// fixed-point arithmetic, so totals over many small records cannot
// accumulate binary-float error.
type SQLite struct {
	db *sql.DB
}

// NewSQLite opens or creates an SQLite database at the given path.
func NewSQLite(dbPath string) (*SQLite, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Enable WAL mode for concurrent reads
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLite{db: db}, nil
}

func (s *SQLite) Append(ctx context.Context, record *model.SpendRecord) error {
	if record.Cost.IsNegative() {
		return model.Validationf("cost", "must be non-negative, got %s", record.Cost)
	}
	if record.StepCount < 1 {
		return model.Validationf("step_count", "must be positive, got %d", record.StepCount)
	}
	if record.TokenCount < 0 {
		return model.Validationf("token_count", "must be non-negative, got %d", record.TokenCount)
	}

	if record.ID == "" {
		record.ID = uuid.New().String()
	}
	if record.OccurredAt.IsZero() {
		record.OccurredAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO spend_records (id, customer_id, workflow_id, agent_id, model_name, cost, token_count, step_count, occurred_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		record.ID, record.CustomerID, record.WorkflowID, record.AgentID,
		record.ModelName, record.Cost.String(),
		record.TokenCount, record.StepCount, record.OccurredAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert spend record: %w", err)
	}
	return nil
}

func (s *SQLite) SumCostSince(ctx context.Context, customerID string, since time.Time) (decimal.Decimal, error) {
	return s.sumCosts(ctx, customerID, since, time.Time{})
}

func (s *SQLite) SumCostInWindow(ctx context.Context, customerID string, start, end time.Time) (decimal.Decimal, error) {
	return s.sumCosts(ctx, customerID, start, end)
}

// sumCosts scans cost strings and adds them in decimal. A zero end time
// means no upper bound.
func (s *SQLite) sumCosts(ctx context.Context, customerID string, start, end time.Time) (decimal.Decimal, error) {
	query := "SELECT cost FROM spend_records"
	where, args := timeWindowClause(customerID, start, end)
	if where != "" {
		query += " WHERE " + where
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return decimal.Zero, fmt.Errorf("sum costs: %w", err)
	}
	defer rows.Close()

	total := decimal.Zero
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return decimal.Zero, fmt.Errorf("scan cost: %w", err)
		}
		cost, err := decimal.NewFromString(raw)
		if err != nil {
			return decimal.Zero, fmt.Errorf("parse stored cost %q: %w", raw, err)
		}
		total = total.Add(cost)
	}
	return total, rows.Err()
}

func (s *SQLite) WindowStats(ctx context.Context, customerID string, start, end time.Time) (WindowStats, error) {
	query := "SELECT cost, token_count FROM spend_records"
	where, args := timeWindowClause(customerID, start, end)
	if where != "" {
		query += " WHERE " + where
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return WindowStats{}, fmt.Errorf("window stats: %w", err)
	}
	defer rows.Close()

	stats := WindowStats{TotalCost: decimal.Zero}
	for rows.Next() {
		var raw string
		var tokens int64
		if err := rows.Scan(&raw, &tokens); err != nil {
			return WindowStats{}, fmt.Errorf("scan window row: %w", err)
		}
		cost, err := decimal.NewFromString(raw)
		if err != nil {
			return WindowStats{}, fmt.Errorf("parse stored cost %q: %w", raw, err)
		}
		stats.TotalCost = stats.TotalCost.Add(cost)
		stats.Executions++
		stats.TotalTokens += tokens
	}
	return stats, rows.Err()
}

func (s *SQLite) CostByDay(ctx context.Context, customerID string, start, end time.Time) (map[string]decimal.Decimal, error) {
	query := "SELECT occurred_at, cost FROM spend_records"
	where, args := timeWindowClause(customerID, start, end)
	if where != "" {
		query += " WHERE " + where
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("cost by day: %w", err)
	}
	defer rows.Close()

	result := make(map[string]decimal.Decimal)
	for rows.Next() {
		var occurredAt time.Time
		var raw string
		if err := rows.Scan(&occurredAt, &raw); err != nil {
			return nil, fmt.Errorf("scan day row: %w", err)
		}
		cost, err := decimal.NewFromString(raw)
		if err != nil {
			return nil, fmt.Errorf("parse stored cost %q: %w", raw, err)
		}
		day := occurredAt.UTC().Format("2006-01-02")
		result[day] = result[day].Add(cost)
	}
	return result, rows.Err()
}

func (s *SQLite) CostByAgent(ctx context.Context, customerID string, start, end time.Time) (map[string]decimal.Decimal, error) {
	return s.costByField(ctx, "agent_id", customerID, start, end)
}

func (s *SQLite) CostByWorkflow(ctx context.Context, customerID string, start, end time.Time) (map[string]decimal.Decimal, error) {
	return s.costByField(ctx, "workflow_id", customerID, start, end)
}

func (s *SQLite) costByField(ctx context.Context, field, customerID string, start, end time.Time) (map[string]decimal.Decimal, error) {
	query := fmt.Sprintf("SELECT %s, cost FROM spend_records", field)
	where, args := timeWindowClause(customerID, start, end)
	if where != "" {
		query += " WHERE " + where
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("cost by %s: %w", field, err)
	}
	defer rows.Close()

	result := make(map[string]decimal.Decimal)
	for rows.Next() {
		var key, raw string
		if err := rows.Scan(&key, &raw); err != nil {
			return nil, fmt.Errorf("scan %s row: %w", field, err)
		}
		cost, err := decimal.NewFromString(raw)
		if err != nil {
			return nil, fmt.Errorf("parse stored cost %q: %w", raw, err)
		}
		result[key] = result[key].Add(cost)
	}
	return result, rows.Err()
}

func (s *SQLite) Query(ctx context.Context, filter RecordFilter) ([]model.SpendRecord, error) {
	query := "SELECT id, customer_id, workflow_id, agent_id, model_name, cost, token_count, step_count, occurred_at FROM spend_records"
	where, args := buildWhereClause(filter)
	if where != "" {
		query += " WHERE " + where
	}
	query += " ORDER BY occurred_at DESC"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query spend records: %w", err)
	}
	defer rows.Close()

	var records []model.SpendRecord
	for rows.Next() {
		var r model.SpendRecord
		var raw string
		if err := rows.Scan(&r.ID, &r.CustomerID, &r.WorkflowID, &r.AgentID,
			&r.ModelName, &raw, &r.TokenCount, &r.StepCount, &r.OccurredAt); err != nil {
			return nil, fmt.Errorf("scan spend row: %w", err)
		}
		cost, err := decimal.NewFromString(raw)
		if err != nil {
			return nil, fmt.Errorf("parse stored cost %q: %w", raw, err)
		}
		r.Cost = cost
		records = append(records, r)
	}
	return records, rows.Err()
}

func (s *SQLite) CreatePolicy(ctx context.Context, create model.PolicyCreate) (*model.Policy, error) {
	if create.CustomerID == "" {
		return nil, model.Validationf("customer_id", "must not be empty")
	}
	if !create.DailyBudgetLimit.IsPositive() {
		return nil, model.Validationf("daily_budget_limit", "must be positive, got %s", create.DailyBudgetLimit)
	}
	if !create.WorkflowBudgetLimit.IsPositive() {
		return nil, model.Validationf("workflow_budget_limit", "must be positive, got %s", create.WorkflowBudgetLimit)
	}
	if create.StepLimitPerAgent < 1 {
		return nil, model.Validationf("step_limit_per_agent", "must be positive, got %d", create.StepLimitPerAgent)
	}

	policy := &model.Policy{
		PolicyID:            uuid.New().String(),
		CustomerID:          create.CustomerID,
		DailyBudgetLimit:    create.DailyBudgetLimit,
		WorkflowBudgetLimit: create.WorkflowBudgetLimit,
		StepLimitPerAgent:   create.StepLimitPerAgent,
		CreatedAt:           time.Now().UTC(),
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO budget_policies (policy_id, customer_id, daily_budget_limit, workflow_budget_limit, step_limit_per_agent, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		policy.PolicyID, policy.CustomerID,
		policy.DailyBudgetLimit.String(), policy.WorkflowBudgetLimit.String(),
		policy.StepLimitPerAgent, policy.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert policy: %w", err)
	}
	return policy, nil
}

func (s *SQLite) GetActivePolicy(ctx context.Context, customerID string) (*model.Policy, error) {
	// Last-write-wins: the most recently created policy is the active one.
	// rowid breaks ties between policies created in the same instant.
	row := s.db.QueryRowContext(ctx,
		`SELECT policy_id, customer_id, daily_budget_limit, workflow_budget_limit, step_limit_per_agent, created_at
		 FROM budget_policies WHERE customer_id = ?
		 ORDER BY created_at DESC, rowid DESC LIMIT 1`, customerID)

	policy, err := scanPolicy(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("customer %q: %w", customerID, model.ErrPolicyNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get active policy: %w", err)
	}
	return policy, nil
}

func (s *SQLite) ListPolicies(ctx context.Context, customerID string) ([]model.Policy, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT policy_id, customer_id, daily_budget_limit, workflow_budget_limit, step_limit_per_agent, created_at
		 FROM budget_policies WHERE customer_id = ?
		 ORDER BY created_at DESC, rowid DESC`, customerID)
	if err != nil {
		return nil, fmt.Errorf("list policies: %w", err)
	}
	defer rows.Close()

	var policies []model.Policy
	for rows.Next() {
		policy, err := scanPolicy(rows)
		if err != nil {
			return nil, fmt.Errorf("scan policy row: %w", err)
		}
		policies = append(policies, *policy)
	}
	return policies, rows.Err()
}

func (s *SQLite) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPolicy(row rowScanner) (*model.Policy, error) {
	var p model.Policy
	var daily, workflow string
	if err := row.Scan(&p.PolicyID, &p.CustomerID, &daily, &workflow,
		&p.StepLimitPerAgent, &p.CreatedAt); err != nil {
		return nil, err
	}

	var err error
	if p.DailyBudgetLimit, err = decimal.NewFromString(daily); err != nil {
		return nil, fmt.Errorf("parse daily limit %q: %w", daily, err)
	}
	if p.WorkflowBudgetLimit, err = decimal.NewFromString(workflow); err != nil {
		return nil, fmt.Errorf("parse workflow limit %q: %w", workflow, err)
	}
	return &p, nil
}

// timeWindowClause builds a WHERE clause for a customer and [start, end)
// window. Empty customerID matches all customers; a zero end means no
// upper bound.
func timeWindowClause(customerID string, start, end time.Time) (string, []any) {
	var conditions []string
	var args []any

	if customerID != "" {
		conditions = append(conditions, "customer_id = ?")
		args = append(args, customerID)
	}
	if !start.IsZero() {
		conditions = append(conditions, "occurred_at >= ?")
		args = append(args, start.UTC())
	}
	if !end.IsZero() {
		conditions = append(conditions, "occurred_at < ?")
		args = append(args, end.UTC())
	}

	return strings.Join(conditions, " AND "), args
}

// buildWhereClause constructs a SQL WHERE clause from a RecordFilter.
func buildWhereClause(filter RecordFilter) (string, []any) {
	var conditions []string
	var args []any

	if filter.CustomerID != "" {
		conditions = append(conditions, "customer_id = ?")
		args = append(args, filter.CustomerID)
	}
	if filter.WorkflowID != "" {
		conditions = append(conditions, "workflow_id = ?")
		args = append(args, filter.WorkflowID)
	}
	if filter.AgentID != "" {
		conditions = append(conditions, "agent_id = ?")
		args = append(args, filter.AgentID)
	}
	if !filter.Start.IsZero() {
		conditions = append(conditions, "occurred_at >= ?")
		args = append(args, filter.Start.UTC())
	}
	if !filter.End.IsZero() {
		conditions = append(conditions, "occurred_at < ?")
		args = append(args, filter.End.UTC())
	}

	return strings.Join(conditions, " AND "), args
}
