// Package metrics provides Prometheus metrics for report ingestion and queries.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Micos01/dir-analysis/internal/entry"
)

var (
	// HTTP request metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dirana_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dirana_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	// Ingestion metrics
	ingestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dirana_ingests_total",
			Help: "Total report ingestions by result",
		},
		[]string{"result"},
	)

	ingestDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "dirana_ingest_duration_seconds",
			Help:    "Time to ingest a report end to end",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 14),
		},
	)

	linesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dirana_report_lines_total",
			Help: "Report lines read, by outcome",
		},
		[]string{"outcome"},
	)

	batchCommitDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "dirana_batch_commit_duration_seconds",
			Help:    "Time to write and commit one record batch",
			Buckets: prometheus.DefBuckets,
		},
	)

	recordsWrittenTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dirana_records_written_total",
			Help: "Records handed to the store in committed batches",
		},
	)

	indexBuildDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "dirana_index_build_duration_seconds",
			Help:    "Time to build secondary indexes after bulk load",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 14),
		},
	)

	// Active index metrics
	activeDirs = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "dirana_active_directories",
			Help: "Directories in the active index",
		},
	)

	activeFiles = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "dirana_active_files",
			Help: "Files in the active index",
		},
	)

	activeBytes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "dirana_active_total_bytes",
			Help: "Reported size of the active index root",
		},
	)

	// Query metrics
	queryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dirana_query_duration_seconds",
			Help:    "Query duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"query"},
	)

	// SSE metrics
	sseConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "dirana_sse_connections_active",
			Help: "Number of active SSE connections",
		},
	)

	sseEventsSentTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dirana_sse_events_sent_total",
			Help: "Total events written to SSE clients",
		},
	)

	progressEventsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dirana_progress_events_total",
			Help: "Total progress events published",
		},
	)
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordHTTPRequest records an HTTP request metric.
func RecordHTTPRequest(method, route string, status int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	httpRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// RecordIngest records the outcome of one ingestion.
func RecordIngest(duration time.Duration, success bool) {
	result := "success"
	if !success {
		result = "error"
	}
	ingestsTotal.WithLabelValues(result).Inc()
	if success {
		ingestDuration.Observe(duration.Seconds())
	}
}

// RecordLineStats adds the line counters of a finished scan.
func RecordLineStats(s entry.Stats) {
	linesTotal.WithLabelValues("directory").Add(float64(s.Dirs))
	linesTotal.WithLabelValues("file").Add(float64(s.Files))
	linesTotal.WithLabelValues("malformed").Add(float64(s.Malformed))
	linesTotal.WithLabelValues("orphan").Add(float64(s.Orphans))
	linesTotal.WithLabelValues("dropped").Add(float64(s.Dropped))
}

// RecordBatchCommit records one committed batch.
func RecordBatchCommit(records int, duration time.Duration) {
	recordsWrittenTotal.Add(float64(records))
	batchCommitDuration.Observe(duration.Seconds())
}

// RecordIndexBuild records the index build duration.
func RecordIndexBuild(duration time.Duration) {
	indexBuildDuration.Observe(duration.Seconds())
}

// SetActiveSummary sets the gauges describing the active index.
func SetActiveSummary(s entry.Summary) {
	activeDirs.Set(float64(s.TotalDirs))
	activeFiles.Set(float64(s.TotalFiles))
	activeBytes.Set(float64(s.TotalSizeBytes))
}

// RecordQuery records a query duration.
func RecordQuery(query string, duration time.Duration) {
	queryDuration.WithLabelValues(query).Observe(duration.Seconds())
}

// SetSSEConnectionsActive sets the number of active SSE connections.
func SetSSEConnectionsActive(count int) {
	sseConnectionsActive.Set(float64(count))
}

// RecordSSEEventSent records an event written to one SSE client.
func RecordSSEEventSent() {
	sseEventsSentTotal.Inc()
}

// RecordProgressEvent records a progress event publication.
func RecordProgressEvent() {
	progressEventsTotal.Inc()
}

// responseWriter wraps http.ResponseWriter to capture status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// Middleware records request metrics labelled by the matched chi route, so
// query strings and path parameters do not create new series.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rw, r)

		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}
		RecordHTTPRequest(r.Method, route, rw.statusCode, time.Since(start))
	})
}
