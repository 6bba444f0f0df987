// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ContentValidations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "content_validations_total",
			Help: "Total number of step content validations",
		},
		[]string{"step_type"},
	)

	ContentIssues = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "content_issues_total",
			Help: "Total number of content issues reported",
		},
		[]string{"issue_type"},
	)

	ContentValidationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "content_validation_duration_seconds",
			Help:    "Duration of step content validation in seconds",
			Buckets: []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"step_type"},
	)

	StepPreviews = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "step_previews_total",
			Help: "Total number of step previews by strategy and outcome",
		},
		[]string{"strategy", "status"},
	)

	TierLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tier_lookups_total",
			Help: "Organization tier lookups by source",
		},
		[]string{"source"},
	)

	WorkerJobsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_completed_total",
			Help: "Total number of jobs completed by worker",
		},
		[]string{"task_type"},
	)

	WorkerJobsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_failed_total",
			Help: "Total number of jobs failed by worker",
		},
		[]string{"task_type", "error_code"},
	)

	WorkerJobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "worker_job_duration_seconds",
			Help: "Duration of job processing in seconds",
		},
		[]string{"task_type"},
	)

	WorkerJobsActive = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "worker_jobs_active",
			Help: "Number of active jobs per worker",
		},
		[]string{"task_type"},
	)
)
