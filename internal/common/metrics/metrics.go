// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	AssessmentsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assessments_completed_total",
			Help: "Total number of completed assessments by decision",
		},
		[]string{"decision"},
	)

	AssessmentsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assessments_failed_total",
			Help: "Total number of assessments aborted before a waypoint was produced",
		},
		[]string{"error_code"},
	)

	AssessmentDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name: "assessment_duration_seconds",
			Help: "End-to-end assessment duration in seconds",
		},
	)

	ConnectorCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "connector_calls_total",
			Help: "Connector call outcomes by connector and status",
		},
		[]string{"connector", "status"},
	)

	ConnectorRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "connector_retries_total",
			Help: "Single-bounded retries performed on transient connector failures",
		},
		[]string{"connector"},
	)

	ConnectorLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "connector_latency_seconds",
			Help: "Connector call latency in seconds",
		},
		[]string{"connector"},
	)

	BorderlineFlagged = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "assessments_borderline_total",
			Help: "Assessments flagged for medical-director review",
		},
	)
)
