package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "secretsanta_http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "secretsanta_http_request_duration_seconds",
		Help:    "Duration of HTTP requests",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	storeOperationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "secretsanta_store_operation_duration_seconds",
		Help:    "Duration of collection loads and saves by outcome",
		Buckets: []float64{.001, .005, .01, .05, .1, .25, .5, 1, 2.5},
	}, []string{"operation", "result"})

	drawOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "secretsanta_draw_operations_total",
		Help: "Draw lifecycle operations by kind and result",
	}, []string{"operation", "result"})

	loginAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "secretsanta_login_attempts_total",
		Help: "Login attempts by result",
	}, []string{"result"})

	breakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "secretsanta_circuit_breaker_state",
		Help: "Circuit breaker state (0 closed, 1 open, 2 half-open)",
	}, []string{"name"})

	activityStreams = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "secretsanta_activity_streams",
		Help: "Open activity log websocket streams",
	})
)

// ObserveHTTPRequest records an HTTP request metric
func ObserveHTTPRequest(method, path, status string, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, path, status).Inc()
	httpRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
}

// StoreObserver feeds record store timings into Prometheus.
type StoreObserver struct{}

// ObserveStoreOperation records one load or save.
func (StoreObserver) ObserveStoreOperation(operation, result string, d time.Duration) {
	storeOperationDuration.WithLabelValues(operation, result).Observe(d.Seconds())
}

// ObserveDraw counts a draw operation such as create, activate or purchase.
func ObserveDraw(operation, result string) {
	drawOperations.WithLabelValues(operation, result).Inc()
}

// ObserveLogin counts a login attempt.
func ObserveLogin(result string) {
	loginAttempts.WithLabelValues(result).Inc()
}

// SetBreakerState exposes a circuit breaker state.
func SetBreakerState(name string, state int) {
	breakerState.WithLabelValues(name).Set(float64(state))
}

// StreamOpened and StreamClosed track live activity log viewers.
func StreamOpened() { activityStreams.Inc() }

func StreamClosed() { activityStreams.Dec() }
