// Package scheduler – Prometheus instrumentation for the background jobs.
//
// Label cardinality stays bounded: "job" is one of the three fixed job
// names and "outcome" is ok or error.
package scheduler

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// jobRuns counts completed job cycles by job name and outcome.
	jobRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scheduler_job_runs_total",
			Help: "Total number of background job cycles.",
		},
		[]string{"job", "outcome"},
	)

	// jobDuration records cycle duration in seconds by job name.
	jobDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "scheduler_job_duration_seconds",
			Help:    "Duration of background job cycles in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"job"},
	)

	// jobItems counts processed items by job name and per-item result.
	jobItems = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scheduler_job_items_total",
			Help: "Total number of items handled by background jobs.",
		},
		[]string{"job", "result"},
	)
)

func init() {
	prometheus.MustRegister(jobRuns, jobDuration, jobItems)
}

// observeRun records the metrics of one finished job cycle.
func observeRun(job string, seconds float64, runErr error, succeeded, failed, skipped int) {
	outcome := "ok"
	if runErr != nil {
		outcome = "error"
	}
	jobRuns.WithLabelValues(job, outcome).Inc()
	jobDuration.WithLabelValues(job).Observe(seconds)
	jobItems.WithLabelValues(job, "succeeded").Add(float64(succeeded))
	jobItems.WithLabelValues(job, "failed").Add(float64(failed))
	jobItems.WithLabelValues(job, "skipped").Add(float64(skipped))
}
