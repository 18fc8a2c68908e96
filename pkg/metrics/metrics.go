package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mimir_http_requests_total",
			Help: "Total number of admin HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mimir_http_request_duration_seconds",
			Help:    "Admin HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// Container lifecycle metrics
	ContainersTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mimir_containers_total",
			Help: "Container lifecycle operations by outcome",
		},
		[]string{"operation", "status"},
	)

	// Document metrics
	DocumentsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mimir_documents_total",
			Help: "Documents submitted through bulk operations by outcome",
		},
		[]string{"operation", "outcome"},
	)

	BulkDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mimir_bulk_duration_seconds",
			Help:    "Duration of a whole streamed bulk submission",
			Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60, 300, 900, 3600},
		},
		[]string{"operation"},
	)

	// Publication metrics
	PublicationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mimir_publications_total",
			Help: "Container publications by visibility and outcome",
		},
		[]string{"visibility", "status"},
	)

	SagaStepsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mimir_saga_steps_total",
			Help: "Saga steps by outcome",
		},
		[]string{"saga", "step", "status"},
	)

	SagaStepDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mimir_saga_step_duration_seconds",
			Help:    "Saga step duration in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"saga", "step"},
	)

	// Backend metrics
	BackendRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mimir_backend_requests_total",
			Help: "Requests issued to the search backend",
		},
		[]string{"operation", "status"},
	)

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "mimir_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)
)
