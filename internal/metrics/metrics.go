package metrics

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mockmate",
		Name:      "http_requests_total",
		Help:      "Total number of HTTP requests received",
	}, []string{"method", "path", "status"})

	httpLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "mockmate",
		Name:      "http_request_duration_seconds",
		Help:      "Duration of HTTP requests in seconds",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	httpInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "mockmate",
		Name:      "http_in_flight_requests",
		Help:      "Current number of in-flight HTTP requests",
	})

	// ModelRetries counts failed primary-path generation attempts that
	// were retried.
	ModelRetries = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "mockmate",
		Name:      "model_retries_total",
		Help:      "Retried model generation attempts",
	})

	// QuestionFallbacks counts exhaustions of the primary question path.
	QuestionFallbacks = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "mockmate",
		Name:      "question_fallbacks_total",
		Help:      "Question generations that fell back to the simplified prompt",
	})

	SessionsCompleted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "mockmate",
		Name:      "sessions_completed_total",
		Help:      "Sessions that reached COMPLETED",
	})

	SessionsAbandoned = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "mockmate",
		Name:      "sessions_abandoned_total",
		Help:      "Sessions terminated below the completeness threshold",
	})

	MinutesDeducted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "mockmate",
		Name:      "minutes_deducted_total",
		Help:      "Practice minutes consumed by sessions",
	})
)

type responseRecorder struct {
	http.ResponseWriter
	status int
}

func (r *responseRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *responseRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	return r.ResponseWriter.Write(b)
}

// Hijack keeps websocket upgrades working behind the middleware.
func (r *responseRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if h, ok := r.ResponseWriter.(http.Hijacker); ok {
		return h.Hijack()
	}
	return nil, nil, fmt.Errorf("metrics: underlying ResponseWriter does not support hijacking")
}

// Middleware records request metrics with Prometheus labels.
func Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rec := &responseRecorder{ResponseWriter: w, status: http.StatusOK}
			start := time.Now()

			httpInFlight.Inc()
			defer httpInFlight.Dec()

			next.ServeHTTP(rec, r)

			labels := prometheus.Labels{
				"method": r.Method,
				"path":   r.URL.Path,
				"status": strconv.Itoa(rec.status),
			}

			httpRequests.With(labels).Inc()
			httpLatency.With(labels).Observe(time.Since(start).Seconds())
		})
	}
}

// Handler exposes the default Prometheus metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
