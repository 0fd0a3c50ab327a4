package obs

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Shared HTTP metrics.
var (
	httpInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "http_in_flight_requests",
		Help: "In-flight HTTP requests.",
	})

	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets, // [0.005..10]
		},
		[]string{"method", "path", "status"},
	)

	loginAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sigepic_login_attempts_total",
			Help: "Login attempts by outcome.",
		},
		[]string{"result"},
	)

	ready = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "sigepic_ready",
		Help: "1 when the service is accepting traffic.",
	})
)

// Init registers the metrics in the default registry.
func Init() {
	prometheus.MustRegister(httpInFlight, httpRequestsTotal, httpRequestDuration, loginAttempts, ready)
}

// Handler exposes the Prometheus scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// SetReady flips the readiness gauge.
func SetReady(ok bool) {
	if ok {
		ready.Set(1)
		return
	}
	ready.Set(0)
}

// CountLogin records one login attempt outcome: "success", "invalid",
// "locked" or "inactive".
func CountLogin(result string) {
	loginAttempts.WithLabelValues(result).Inc()
}

// CanonicalPath collapses per-entity path segments so metric labels stay
// low-cardinality: /v1/usuarios/<id> becomes /v1/usuarios/:id. Query strings
// are stripped.
func CanonicalPath(path string) string {
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	if path == "" {
		return "/"
	}
	parts := strings.Split(path, "/")
	// /v1/usuarios/:id and /v1/usuarios/:id/desbloquear
	if (len(parts) == 4 || len(parts) == 5) && parts[1] == "v1" && parts[2] == "usuarios" && parts[3] != "" {
		parts[3] = ":id"
		return strings.Join(parts, "/")
	}
	return path
}

// Instrument wraps next with RPS, latency and in-flight measurements.
func Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := CanonicalPath(r.URL.Path)
		method := r.Method

		httpInFlight.Inc()
		start := time.Now()

		sw := &statusWriter{ResponseWriter: w, code: 200}
		next.ServeHTTP(sw, r)

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(sw.code)

		httpRequestDuration.WithLabelValues(method, path, status).Observe(duration)
		httpRequestsTotal.WithLabelValues(method, path, status).Inc()
		httpInFlight.Dec()
	})
}

// statusWriter captures the response code for the metrics labels.
type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}
