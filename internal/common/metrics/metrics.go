// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
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

	// Pipeline

	PipelineRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crm_query_runs_total",
			Help: "Total number of query pipeline runs by outcome",
		},
		[]string{"outcome"},
	)

	PipelineStageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "crm_query_stage_duration_seconds",
			Help:    "Duration of each pipeline stage in seconds",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
		},
		[]string{"stage"},
	)

	ResolutionAttempts = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "crm_query_resolution_attempts",
			Help:    "Number of model attempts needed to resolve an entity",
			Buckets: []float64{1, 2, 3},
		},
	)

	PlaceholderRewrites = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crm_query_placeholder_rewrites_total",
			Help: "Generated queries touched by the placeholder guard",
		},
		[]string{"result"},
	)

	// Downstream services

	SalesforceAPICalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "salesforce_api_calls_total",
			Help: "Salesforce REST calls by operation and HTTP status",
		},
		[]string{"operation", "status"},
	)

	SalesforceAPIDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "salesforce_api_duration_seconds",
			Help: "Salesforce REST call latency in seconds",
		},
		[]string{"operation"},
	)

	GenAIRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "genai_requests_total",
			Help: "Completion requests by result class",
		},
		[]string{"result"},
	)

	GenAIRequestDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "genai_request_duration_seconds",
			Help:    "Completion request latency in seconds",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10),
		},
	)
)
