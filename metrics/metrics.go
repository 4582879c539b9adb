package metrics

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "civicaid_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "civicaid_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{0.001, 0.01, 0.1, 0.5, 1, 5, 10},
		},
		[]string{"method", "endpoint"},
	)

	// Intake metrics
	submissionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "civicaid_submissions_total",
			Help: "Total number of citizen submissions",
		},
		[]string{"type"}, // complaint, rti, traffic_violation
	)

	otpOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "civicaid_otp_operations_total",
			Help: "Total number of OTP operations",
		},
		[]string{"operation", "result"}, // request/verify, ok/cooldown/mismatch/expired/exhausted
	)

	documentsRendered = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "civicaid_documents_rendered_total",
			Help: "Total number of filing documents rendered",
		},
		[]string{"type"},
	)

	// WebSocket metrics
	websocketConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "civicaid_websocket_connections",
			Help: "Number of active WebSocket connections",
		},
	)

	// Database metrics
	dbConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "civicaid_db_connections_active",
			Help: "Number of active database connections",
		},
	)

	dbConnectionsIdle = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "civicaid_db_connections_idle",
			Help: "Number of idle database connections",
		},
	)

	// Redis metrics
	redisConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "civicaid_redis_connections_active",
			Help: "Number of active Redis connections",
		},
	)

	// Error metrics
	errorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "civicaid_errors_total",
			Help: "Total number of errors",
		},
		[]string{"type", "component"}, // auth, database, redis, validation
	)

	// Worker metrics
	cleanupRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "civicaid_cleanup_runs_total",
			Help: "Total number of maintenance passes",
		},
		[]string{"status"}, // success, failure
	)

	cleanupDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "civicaid_cleanup_duration_seconds",
			Help:    "Maintenance pass duration in seconds",
			Buckets: []float64{1, 5, 10, 30, 60, 300, 600},
		},
	)
)

// PrometheusMiddleware creates a Fiber middleware for Prometheus metrics
func PrometheusMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		// Process request
		err := c.Next()

		// Record metrics
		duration := time.Since(start).Seconds()
		method := c.Method()
		path := c.Route().Path
		if path == "" {
			path = c.Path()
		}
		statusCode := strconv.Itoa(c.Response().StatusCode())

		httpRequestsTotal.WithLabelValues(method, path, statusCode).Inc()
		httpRequestDuration.WithLabelValues(method, path).Observe(duration)

		return err
	}
}

// IncrementSubmission increments the submission counter for a type
func IncrementSubmission(submissionType string) {
	submissionsTotal.WithLabelValues(submissionType).Inc()
}

// IncrementOTPOperation increments the OTP operation counter
func IncrementOTPOperation(operation, result string) {
	otpOperationsTotal.WithLabelValues(operation, result).Inc()
}

// IncrementDocumentRendered increments the rendered document counter
func IncrementDocumentRendered(documentType string) {
	documentsRendered.WithLabelValues(documentType).Inc()
}

// UpdateWebSocketConnections updates WebSocket connections gauge
func UpdateWebSocketConnections(count int) {
	websocketConnections.Set(float64(count))
}

// UpdateDatabaseMetrics updates database connection metrics
func UpdateDatabaseMetrics(active, idle int) {
	dbConnectionsActive.Set(float64(active))
	dbConnectionsIdle.Set(float64(idle))
}

// UpdateRedisConnections updates Redis connection metrics
func UpdateRedisConnections(count int) {
	redisConnectionsActive.Set(float64(count))
}

// IncrementError increments error counter
func IncrementError(errorType, component string) {
	errorsTotal.WithLabelValues(errorType, component).Inc()
}

// RecordCleanupRun records the outcome of a maintenance pass
func RecordCleanupRun(status string, duration time.Duration) {
	cleanupRunsTotal.WithLabelValues(status).Inc()
	cleanupDuration.Observe(duration.Seconds())
}
