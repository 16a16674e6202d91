// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	PipelineRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_requests_total",
			Help: "Total number of commands processed, by channel and resulting action",
		},
		[]string{"channel", "action"},
	)

	PipelineStageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pipeline_stage_duration_seconds",
			Help:    "Duration of each pipeline stage in seconds",
			Buckets: []float64{.001, .005, .01, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"stage"},
	)

	PipelineReplays = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_replays_total",
			Help: "Requests answered from the idempotency ledger, by stored state",
		},
		[]string{"state"},
	)

	PipelineIntents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_intents_total",
			Help: "Extracted intents by brain",
		},
		[]string{"intent", "brain"},
	)

	GatewayCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_gateway_calls_total",
			Help: "External effect executions by kind and final status",
		},
		[]string{"effect", "status"},
	)

	AuditWriteFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pipeline_audit_write_failures_total",
			Help: "Audit records that could not be persisted",
		},
	)

	SecurityViolations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_security_violations_total",
			Help: "Inbound requests rejected before the pipeline",
		},
		[]string{"reason"},
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
