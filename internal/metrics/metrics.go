package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	initOnce sync.Once

	evaluationsTotal   *prometheus.CounterVec
	recordsTotal       prometheus.Counter
	seededRecordsTotal prometheus.Counter
)

// Init registers metrics on the default Prometheus registry exactly once.
func Init() {
	initOnce.Do(func() {
		evaluationsTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "guardrail_evaluations_total",
				Help: "Total number of guardrail evaluations by verdict status.",
			},
			[]string{"status"},
		)

		recordsTotal = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "spend_records_total",
				Help: "Total number of spend records appended to the ledger.",
			},
		)

		seededRecordsTotal = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "seeded_records_total",
				Help: "Total number of demo records written by the seeder.",
			},
		)

		prometheus.MustRegister(evaluationsTotal, recordsTotal, seededRecordsTotal)
	})
}

// ObserveEvaluation counts one guardrail evaluation by status.
func ObserveEvaluation(status string) {
	if evaluationsTotal != nil {
		evaluationsTotal.WithLabelValues(status).Inc()
	}
}

// ObserveRecordAppended counts one ledger append.
func ObserveRecordAppended() {
	if recordsTotal != nil {
		recordsTotal.Inc()
	}
}

// ObserveSeededRecords counts records written by the demo seeder.
func ObserveSeededRecords(n int) {
	if seededRecordsTotal != nil {
		seededRecordsTotal.Add(float64(n))
	}
}
