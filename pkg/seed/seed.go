// Package seed loads a synthetic multi-agent workload into the spend
// ledger so dashboards have something to show in demo environments.
package seed

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/shopspring/decimal"

	"github.com/masmetrics/spendguard/pkg/model"
	"github.com/masmetrics/spendguard/pkg/pricing"
	"github.com/masmetrics/spendguard/pkg/storage"
)

// DefaultCustomer is the customer the demo dataset belongs to.
const DefaultCustomer = "demo-customer"

const historyDays = 14

var agentNames = []string{
	"planner-agent",
	"research-agent",
	"writer-agent",
	"reviewer-agent",
	"tool-agent",
	"summarizer-agent",
	"validator-agent",
	"router-agent",
}

var workflowTypes = []string{
	"content-generation",
	"data-analysis",
	"customer-support",
	"code-review",
	"document-processing",
}

// Result reports whether seeding ran.
type Result struct {
	Message string `json:"message"`
	Seeded  bool   `json:"seeded"`
	Records int    `json:"records,omitempty"`
}

// Seeder writes demo spend records to a ledger.
type Seeder struct {
	ledger  storage.Ledger
	pricing *pricing.Table
	logger  *slog.Logger
	rng     *rand.Rand
	now     func() time.Time
}

// Option configures a Seeder.
type Option func(*Seeder)

// WithSeed fixes the random source so seeded data is reproducible.
func WithSeed(seed int64) Option {
	return func(s *Seeder) { s.rng = rand.New(rand.NewSource(seed)) }
}

// WithClock overrides the seeder's time source.
func WithClock(now func() time.Time) Option {
	return func(s *Seeder) { s.now = now }
}

// NewSeeder creates a demo data seeder.
func NewSeeder(ledger storage.Ledger, table *pricing.Table, logger *slog.Logger, opts ...Option) *Seeder {
	s := &Seeder{
		ledger:  ledger,
		pricing: table,
		logger:  logger,
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Seed generates a 14-day history of workflow executions for the demo
// customer. Seeding is idempotent: if the customer already has records,
// nothing is written.
func (s *Seeder) Seed(ctx context.Context) (*Result, error) {
	existing, err := s.ledger.Query(ctx, storage.RecordFilter{
		CustomerID: DefaultCustomer,
		Limit:      1,
	})
	if err != nil {
		return nil, fmt.Errorf("check existing demo data: %w", err)
	}
	if len(existing) > 0 {
		return &Result{Message: "Demo data already exists", Seeded: false}, nil
	}

	models := s.pricing.Models()
	if len(models) == 0 {
		return nil, fmt.Errorf("pricing table has no models")
	}

	now := s.now().UTC()
	records := 0

	for dayOffset := 0; dayOffset < historyDays; dayOffset++ {
		day := now.AddDate(0, 0, -dayOffset)
		runs := s.rng.Intn(10) + 3

		for run := 0; run < runs; run++ {
			workflowID := "workflow-" + workflowTypes[s.rng.Intn(len(workflowTypes))]
			modelName := models[s.rng.Intn(len(models))]
			costPer1k, err := s.pricing.CostPer1k(modelName)
			if err != nil {
				return nil, fmt.Errorf("seed pricing: %w", err)
			}

			numAgents := s.rng.Intn(7) + 2
			if numAgents > len(agentNames) {
				numAgents = len(agentNames)
			}
			for _, agentID := range sample(s.rng, agentNames, numAgents) {
				record := s.agentRun(day, workflowID, agentID, modelName, costPer1k)
				if err := s.ledger.Append(ctx, record); err != nil {
					return nil, fmt.Errorf("append demo record: %w", err)
				}
				records++
			}
		}
	}

	s.logger.Info("demo data seeded",
		"customer_id", DefaultCustomer,
		"records", records,
		"days", historyDays,
	)

	return &Result{Message: "Demo data seeded", Seeded: true, Records: records}, nil
}

// agentRun generates one agent's contribution to a workflow run: a few
// steps of token spend plus occasional tool calls.
func (s *Seeder) agentRun(day time.Time, workflowID, agentID, modelName string, costPer1k decimal.Decimal) *model.SpendRecord {
	steps := int64(s.rng.Intn(6) + 1)

	var tokens int64
	toolCost := decimal.Zero
	for step := int64(0); step < steps; step++ {
		tokens += int64(s.rng.Intn(2501) + 500)  // input
		tokens += int64(s.rng.Intn(1801) + 200)  // output
		for call := s.rng.Intn(5); call > 0; call-- {
			perCall := decimal.NewFromFloat(s.rng.Float64()*0.49 + 0.01).Round(4)
			toolCost = toolCost.Add(perCall)
		}
	}

	tokenCost := decimal.NewFromInt(tokens).
		Div(decimal.NewFromInt(1000)).
		Mul(costPer1k)
	cost := tokenCost.Add(toolCost).Round(6)

	occurredAt := model.DayStart(day).
		Add(time.Duration(s.rng.Intn(24)) * time.Hour).
		Add(time.Duration(s.rng.Intn(60)) * time.Minute)

	return &model.SpendRecord{
		CustomerID: DefaultCustomer,
		WorkflowID: workflowID,
		AgentID:    agentID,
		ModelName:  modelName,
		Cost:       cost,
		TokenCount: tokens,
		StepCount:  steps,
		OccurredAt: occurredAt,
	}
}

// sample picks n distinct elements from the pool.
func sample(rng *rand.Rand, pool []string, n int) []string {
	picked := make([]string, len(pool))
	copy(picked, pool)
	rng.Shuffle(len(picked), func(i, j int) {
		picked[i], picked[j] = picked[j], picked[i]
	})
	return picked[:n]
}
