// Package metrics registers the prometheus collectors shared by the services
// and the HTTP layer.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

var (
	LoanTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fred_loan_transitions_total",
		Help: "Loan application transitions by transition and outcome",
	}, []string{"transition", "outcome"})

	DebtPayments = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fred_debt_payments_total",
		Help: "Debt payments by outcome",
	}, []string{"outcome"})

	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fred_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "route", "status"})

	HTTPLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "fred_http_request_duration_seconds",
		Help:    "Request latency",
		Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1},
	}, []string{"method", "route"})
)

// Outcome maps an error to the outcome label.
func Outcome(err error) string {
	if err != nil {
		return OutcomeFailure
	}
	return OutcomeSuccess
}
