package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type DBMetrics struct {
	QueryDuration *prometheus.HistogramVec
}

type BusinessMetrics struct {
	DecisionsTotal           *prometheus.CounterVec
	CreditScoreDistribution  prometheus.Histogram
	CustomersRegisteredTotal prometheus.Counter
	LoansIngestedTotal       prometheus.Counter
}

var (
	DB = DBMetrics{
		QueryDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "credit_engine_db_query_duration_seconds",
				Help:    "Histogram of database query latencies.",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
			},
			[]string{"query_name", "status"},
		),
	}

	Business = BusinessMetrics{
		DecisionsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "credit_engine_loan_decisions_total",
				Help: "Total number of loan decisions, by operation and outcome.",
			},
			[]string{"operation", "outcome"},
		),
		CreditScoreDistribution: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "credit_engine_credit_score",
				Help:    "Distribution of computed credit scores.",
				Buckets: []float64{0, 10, 20, 30, 40, 50, 60, 70, 80, 90, 100},
			},
		),
		CustomersRegisteredTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "credit_engine_customers_registered_total",
				Help: "Total number of customers successfully registered.",
			},
		),
		LoansIngestedTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "credit_engine_loans_ingested_total",
				Help: "Total number of loan records upserted by the ingestion job.",
			},
		),
	}
)

func RecordDBQuery(queryName, status string, duration time.Duration) {
	DB.QueryDuration.WithLabelValues(queryName, status).Observe(duration.Seconds())
}

func RecordDecision(operation, outcome string) {
	Business.DecisionsTotal.WithLabelValues(operation, outcome).Inc()
}

func RecordCreditScore(score int) {
	Business.CreditScoreDistribution.Observe(float64(score))
}

func RecordCustomerRegistered() {
	Business.CustomersRegisteredTotal.Inc()
}

func RecordLoanIngested() {
	Business.LoansIngestedTotal.Inc()
}
