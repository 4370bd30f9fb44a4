// Package metrics provides Prometheus metrics instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// APIRequestDuration tracks client API call duration per operation.
	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "assistant_api_request_duration_seconds",
			Help:    "Backend API call duration in seconds",
			Buckets: []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"operation", "status"},
	)

	// APIRequestsTotal tracks total client API calls.
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assistant_api_requests_total",
			Help: "Total backend API calls",
		},
		[]string{"operation", "status"},
	)

	// ChatTurnsTotal tracks submitted chat turns by outcome.
	ChatTurnsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assistant_chat_turns_total",
			Help: "Chat turns submitted through the session controller",
		},
		[]string{"outcome"},
	)

	// ConversationsTotal tracks conversations created through the registry.
	ConversationsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "assistant_conversations_total",
			Help: "Conversations created",
		},
	)

	// ServerRequestDuration tracks stub server request duration.
	ServerRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "stub_request_duration_seconds",
			Help:    "Stub server request duration in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path", "status"},
	)

	// ServerRequestsTotal tracks total stub server requests.
	ServerRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stub_requests_total",
			Help: "Total stub server requests",
		},
		[]string{"method", "path", "status"},
	)

	// LLMCompletionDuration tracks stub LLM completion latency.
	LLMCompletionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "stub_llm_completion_duration_seconds",
			Help:    "LLM completion duration in the stub answerer",
			Buckets: []float64{.1, .25, .5, 1, 2, 5, 10, 20, 30, 60},
		},
		[]string{"provider", "status"},
	)
)

// RecordAPIRequest records metrics for one client API call.
func RecordAPIRequest(operation, status string, duration float64) {
	APIRequestDuration.WithLabelValues(operation, status).Observe(duration)
	APIRequestsTotal.WithLabelValues(operation, status).Inc()
}

// RecordServerRequest records metrics for one stub server request.
func RecordServerRequest(method, path, status string, duration float64) {
	ServerRequestDuration.WithLabelValues(method, path, status).Observe(duration)
	ServerRequestsTotal.WithLabelValues(method, path, status).Inc()
}
