package obs

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HTTPMetrics tracks request counts, latency and concurrency for one side of
// the portal conversation: the CLI's outbound client or the fake server.
type HTTPMetrics struct {
	inFlight prometheus.Gauge
	total    *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewHTTPMetrics builds and registers the collectors under namespace_subsystem_*.
func NewHTTPMetrics(reg prometheus.Registerer, namespace, subsystem string) *HTTPMetrics {
	m := &HTTPMetrics{
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "in_flight_requests",
			Help:      "In-flight HTTP requests.",
		}),
		total: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "requests_total",
				Help:      "Total number of HTTP requests.",
			},
			[]string{"method", "path", "status"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "request_duration_seconds",
				Help:      "HTTP request latencies in seconds.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "path", "status"},
		),
	}
	if reg != nil {
		reg.MustRegister(m.inFlight, m.total, m.duration)
	}
	return m
}

// Begin marks a request in flight and returns the function that records it.
// status 0 stands for a transport failure and is labelled "error".
func (m *HTTPMetrics) Begin(method, path string) func(status int) {
	if m == nil {
		return func(int) {}
	}
	m.inFlight.Inc()
	start := time.Now()
	route := CanonicalPath(path)
	return func(status int) {
		code := "error"
		if status > 0 {
			code = strconv.Itoa(status)
		}
		m.duration.WithLabelValues(method, route, code).Observe(time.Since(start).Seconds())
		m.total.WithLabelValues(method, route, code).Inc()
		m.inFlight.Dec()
	}
}

// Total exposes the request counter for tests.
func (m *HTTPMetrics) Total() *prometheus.CounterVec { return m.total }

// Instrument wraps a server handler with the same collectors.
func (m *HTTPMetrics) Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		done := m.Begin(r.Method, r.URL.Path)
		sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}
		next.ServeHTTP(sw, r)
		done(sw.code)
	})
}

// Handler serves the given gatherer in exposition format.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// WriteTextfile dumps the registry for the node exporter textfile collector.
func WriteTextfile(path string, g prometheus.Gatherer) error {
	return prometheus.WriteToTextfile(path, g)
}

// CanonicalPath collapses identifiers so label cardinality stays bounded:
// /job/17/register becomes /job/:id/register.
func CanonicalPath(path string) string {
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	if path == "" {
		return "/"
	}
	segments := strings.Split(path, "/")
	for i, seg := range segments {
		if isIdentifier(seg) {
			segments[i] = ":id"
		}
	}
	return strings.Join(segments, "/")
}

func isIdentifier(seg string) bool {
	if seg == "" {
		return false
	}
	digits := 0
	for _, r := range seg {
		if r >= '0' && r <= '9' {
			digits++
		}
	}
	if digits == len(seg) {
		return true
	}
	// ULIDs and UUIDs: long and mostly alphanumeric noise.
	return len(seg) >= 20 && digits > 0
}

type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}
