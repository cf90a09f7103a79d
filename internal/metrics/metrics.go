// Package metrics holds the Prometheus instruments shared by the solver
// and the HTTP service.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	solveDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "horizon_solve_duration_seconds",
		Help:    "Duration of LP solves in seconds",
		Buckets: prometheus.ExponentialBuckets(0.01, 2.0, 14), // 10ms .. ~163s
	}, []string{"mode"})

	solvesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "horizon_solves_total",
		Help: "Number of LP solves by mode and outcome",
	}, []string{"mode", "outcome"})

	lpVariables = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "horizon_lp_variables",
		Help: "Variable count of the most recently assembled LP",
	})

	lpConstraints = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "horizon_lp_constraints",
		Help: "Constraint count of the most recently assembled LP",
	})

	resultRowsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "horizon_result_rows_total",
		Help: "Rows written to the output database by table",
	}, []string{"table"})

	apiRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "horizon_api_requests_total",
		Help: "API requests by route and status code",
	}, []string{"route", "code"})
)

// RecordSolve records one solve of the given mode ("deterministic",
// "stochastic", "myopic", "mga", "moo") with its outcome and duration.
func RecordSolve(mode, outcome string, d time.Duration) {
	solveDuration.WithLabelValues(mode).Observe(d.Seconds())
	solvesTotal.WithLabelValues(mode, outcome).Inc()
}

// RecordProblemSize records the dimensions of an assembled LP.
func RecordProblemSize(variables, constraints int) {
	lpVariables.Set(float64(variables))
	lpConstraints.Set(float64(constraints))
}

// RecordResultRows counts rows persisted to one output table.
func RecordResultRows(table string, n int) {
	resultRowsTotal.WithLabelValues(table).Add(float64(n))
}

// RecordAPIRequest counts one API request.
func RecordAPIRequest(route string, code int) {
	apiRequestsTotal.WithLabelValues(route, codeLabel(code)).Inc()
}

func codeLabel(code int) string {
	switch {
	case code < 300:
		return "2xx"
	case code < 400:
		return "3xx"
	case code < 500:
		return "4xx"
	default:
		return "5xx"
	}
}
