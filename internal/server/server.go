package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/masmetrics/spendguard/internal/metrics"
	"github.com/masmetrics/spendguard/pkg/forecast"
	"github.com/masmetrics/spendguard/pkg/guardrail"
	"github.com/masmetrics/spendguard/pkg/model"
	"github.com/masmetrics/spendguard/pkg/seed"
	"github.com/masmetrics/spendguard/pkg/storage"
	"github.com/masmetrics/spendguard/pkg/telemetry"
)

// Server exposes the engine's operations to the presentation layer. It is
// request/response glue only: all decision logic lives in the pkg
// components.
type Server struct {
	store      storage.Store
	evaluator  *guardrail.Evaluator
	aggregator *telemetry.Aggregator
	seeder     *seed.Seeder
	mux        *http.ServeMux
	logger     *slog.Logger
}

// NewServer creates the API server.
func NewServer(store storage.Store, evaluator *guardrail.Evaluator, aggregator *telemetry.Aggregator, seeder *seed.Seeder, logger *slog.Logger) *Server {
	s := &Server{
		store:      store,
		evaluator:  evaluator,
		aggregator: aggregator,
		seeder:     seeder,
		mux:        http.NewServeMux(),
		logger:     logger,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /healthz", s.handleHealth)
	s.mux.HandleFunc("POST /simulate/workflow-cost", s.handleSimulate)
	s.mux.HandleFunc("GET /telemetry/cost-summary", s.handleCostSummary)
	s.mux.HandleFunc("POST /telemetry/execution-event", s.handleIngestEvent)
	s.mux.HandleFunc("POST /policies/create", s.handleCreatePolicy)
	s.mux.HandleFunc("GET /policies/{customer_id}", s.handleListPolicies)
	s.mux.HandleFunc("POST /guardrail/evaluate", s.handleEvaluate)
	s.mux.HandleFunc("POST /seed-demo-data", s.handleSeed)
	s.mux.Handle("GET /metrics", promhttp.Handler())
}

// Handler returns the HTTP handler for this server.
func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleSimulate(w http.ResponseWriter, r *http.Request) {
	var req forecast.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	breakdown, err := forecast.Forecast(req)
	if err != nil {
		s.writeError(w, "simulate workflow cost", err)
		return
	}
	s.writeJSON(w, http.StatusOK, breakdown)
}

func (s *Server) handleCostSummary(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	days := telemetry.DefaultWindowDays
	if raw := r.URL.Query().Get("days"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			http.Error(w, "days must be an integer", http.StatusBadRequest)
			return
		}
		days = parsed
	}

	summary, err := s.aggregator.Summarize(ctx, r.URL.Query().Get("customer_id"), days)
	if err != nil {
		s.writeError(w, "summarize telemetry", err)
		return
	}
	s.writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleIngestEvent(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	var record model.SpendRecord
	if err := json.NewDecoder(r.Body).Decode(&record); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if err := s.store.Append(ctx, &record); err != nil {
		s.writeError(w, "ingest execution event", err)
		return
	}
	metrics.ObserveRecordAppended()
	s.writeJSON(w, http.StatusCreated, record)
}

func (s *Server) handleCreatePolicy(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	var create model.PolicyCreate
	if err := json.NewDecoder(r.Body).Decode(&create); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	policy, err := s.store.CreatePolicy(ctx, create)
	if err != nil {
		s.writeError(w, "create policy", err)
		return
	}
	s.writeJSON(w, http.StatusCreated, policy)
}

func (s *Server) handleListPolicies(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	policies, err := s.store.ListPolicies(ctx, r.PathValue("customer_id"))
	if err != nil {
		s.writeError(w, "list policies", err)
		return
	}
	if policies == nil {
		policies = []model.Policy{}
	}
	s.writeJSON(w, http.StatusOK, policies)
}

func (s *Server) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	var req guardrail.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	verdict, err := s.evaluator.Evaluate(ctx, req)
	if err != nil {
		s.writeError(w, "evaluate guardrail", err)
		return
	}
	metrics.ObserveEvaluation(string(verdict.Status))
	s.writeJSON(w, http.StatusOK, verdict)
}

func (s *Server) handleSeed(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	result, err := s.seeder.Seed(ctx)
	if err != nil {
		s.writeError(w, "seed demo data", err)
		return
	}
	if result.Seeded {
		metrics.ObserveSeededRecords(result.Records)
	}
	s.writeJSON(w, http.StatusOK, result)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("encode response", "error", err)
	}
}

// writeError maps validation errors to 400 with the offending field named;
// everything else is a generic 500.
func (s *Server) writeError(w http.ResponseWriter, op string, err error) {
	if model.IsValidation(err) {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	s.logger.Error(op, "error", err)
	http.Error(w, "internal error", http.StatusInternalServerError)
}
