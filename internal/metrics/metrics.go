package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "umbra_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"path", "method", "code"},
	)

	httpDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "umbra_http_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path", "method"},
	)

	oracleQueriesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "umbra_oracle_queries_total",
			Help: "Total number of separation queries issued by searches.",
		},
	)

	searchDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "umbra_search_duration_seconds",
			Help:    "Minimal-separation search duration in seconds.",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"strategy"},
	)

	overlapDrawsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "umbra_overlap_draws_total",
			Help: "Monte Carlo draws by classification.",
		},
		[]string{"class"},
	)

	overlapDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "umbra_overlap_duration_seconds",
			Help:    "Overlap estimation duration in seconds.",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
	)

	overlapFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "umbra_overlap_degenerate_total",
			Help: "Estimations that ended with no draw inside the target disc.",
		},
	)

	cacheRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "umbra_report_cache_requests_total",
			Help: "Report cache lookups by result (hit, miss, shared).",
		},
		[]string{"result"},
	)

	cacheEntries = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "umbra_report_cache_entries",
			Help: "Reports currently held in the cache.",
		},
	)

	computationsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "umbra_computations_active",
			Help: "Eclipse computations currently running for API clients.",
		},
	)

	computationsRejectedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "umbra_computations_rejected_total",
			Help: "API computations refused by the concurrency limiter.",
		},
	)
)

func init() {
	prometheus.MustRegister(httpRequestsTotal)
	prometheus.MustRegister(httpDurationSeconds)
	prometheus.MustRegister(oracleQueriesTotal)
	prometheus.MustRegister(searchDurationSeconds)
	prometheus.MustRegister(overlapDrawsTotal)
	prometheus.MustRegister(overlapDurationSeconds)
	prometheus.MustRegister(overlapFailuresTotal)
	prometheus.MustRegister(cacheRequestsTotal)
	prometheus.MustRegister(cacheEntries)
	prometheus.MustRegister(computationsActive)
	prometheus.MustRegister(computationsRejectedTotal)
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordSearch records one completed search.
func RecordSearch(strategy string, duration time.Duration, queries int) {
	oracleQueriesTotal.Add(float64(queries))
	searchDurationSeconds.WithLabelValues(strategy).Observe(duration.Seconds())
}

// RecordOverlap records one completed estimation.
func RecordOverlap(duration time.Duration, both, targetOnly, discarded int64) {
	overlapDrawsTotal.WithLabelValues("both").Add(float64(both))
	overlapDrawsTotal.WithLabelValues("target_only").Add(float64(targetOnly))
	overlapDrawsTotal.WithLabelValues("discarded").Add(float64(discarded))
	overlapDurationSeconds.Observe(duration.Seconds())
}

// RecordDegenerate counts an estimation with an empty denominator.
func RecordDegenerate() {
	overlapFailuresTotal.Inc()
}

// RecordCacheLookup counts a report cache lookup; result is hit, miss or shared.
func RecordCacheLookup(result string) {
	cacheRequestsTotal.WithLabelValues(result).Inc()
}

// SetCacheEntries sets the current number of cached reports.
func SetCacheEntries(n int) {
	cacheEntries.Set(float64(n))
}

// IncComputationsActive increments the running computation gauge.
func IncComputationsActive() {
	computationsActive.Inc()
}

// DecComputationsActive decrements the running computation gauge.
func DecComputationsActive() {
	computationsActive.Dec()
}

// IncComputationsRejected counts a computation refused by the limiter.
func IncComputationsRejected() {
	computationsRejectedTotal.Inc()
}

// knownRoutes are served paths that keep their own label.
var knownRoutes = map[string]bool{
	"/healthz":        true,
	"/readyz":         true,
	"/metrics":        true,
	"/api/v1/eclipse": true,
	"/api/v1/zones":   true,
	"/api/v1/stats":   true,
}

// normalizeRoute bounds label cardinality: unknown paths collapse to "other".
func normalizeRoute(path string) string {
	if knownRoutes[path] {
		return path
	}
	return "other"
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Middleware records request count and duration for each request.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(rw, r)

		duration := time.Since(start).Seconds()
		code := strconv.Itoa(rw.statusCode)
		path := normalizeRoute(r.URL.Path)

		httpRequestsTotal.WithLabelValues(path, r.Method, code).Inc()
		httpDurationSeconds.WithLabelValues(path, r.Method).Observe(duration)
	})
}
