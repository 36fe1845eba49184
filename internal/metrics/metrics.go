package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feed_relay_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "feed_relay_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "feed_relay_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)
)

// Feed aggregator metrics
var (
	FeedPagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feed_relay_feed_pages_total",
			Help: "Total number of feed pages requested from upstream by outcome",
		},
		[]string{"status"}, // "success", "protocol_error", "request_error"
	)

	FeedPageDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "feed_relay_feed_page_duration_seconds",
			Help:    "Upstream feed page request duration in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 15, 30},
		},
	)

	FeedItemsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feed_relay_feed_items_total",
			Help: "Total number of upstream feed entries by outcome",
		},
		[]string{"outcome"}, // "delivered", "dropped"
	)

	FeedUpstreamRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "feed_relay_feed_upstream_retries_total",
			Help: "Total number of retried upstream feed requests",
		},
	)
)

// Media cache metrics
var (
	CacheLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feed_relay_cache_lookups_total",
			Help: "Total number of media cache lookups by result; a miss is counted once per fetch started",
		},
		[]string{"result"}, // "hit", "recheck_hit", "miss"
	)

	CacheSharedWaits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "feed_relay_cache_shared_waits_total",
			Help: "Total number of requests that waited on an in-flight fetch+transcode for the same key",
		},
	)

	CacheJobsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "feed_relay_cache_jobs_in_flight",
			Help: "Number of fetch+transcode sequences currently running",
		},
	)

	CachePublishedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feed_relay_cache_publish_total",
			Help: "Total number of cache fill attempts by outcome",
		},
		[]string{"status"}, // "success", "fetch_error", "transcode_error", "io_error"
	)
)

// Source fetch metrics
var (
	FetchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "feed_relay_fetch_duration_seconds",
			Help:    "Source media download duration in seconds",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 30},
		},
	)

	FetchBytesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "feed_relay_fetch_bytes_total",
			Help: "Total number of source media bytes downloaded",
		},
	)
)

// Transcoder metrics
var (
	TranscoderJobsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feed_relay_transcoder_jobs_total",
			Help: "Total number of transcoding jobs",
		},
		[]string{"status"},
	)

	TranscoderJobDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "feed_relay_transcoder_job_duration_seconds",
			Help:    "Transcoding job duration in seconds",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600},
		},
	)

	TranscoderJobsInProgress = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "feed_relay_transcoder_jobs_in_progress",
			Help: "Number of transcoding jobs currently in progress",
		},
	)
)

// Filesystem retry metrics
var (
	FilesystemRetryAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feed_relay_filesystem_retry_attempts_total",
			Help: "Total number of filesystem operation retries after a stale file handle",
		},
		[]string{"operation"},
	)

	FilesystemRetrySuccess = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feed_relay_filesystem_retry_success_total",
			Help: "Total number of filesystem operations that succeeded after retrying",
		},
		[]string{"operation"},
	)

	FilesystemRetryFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feed_relay_filesystem_retry_failures_total",
			Help: "Total number of filesystem operations that exhausted their retries",
		},
		[]string{"operation"},
	)

	FilesystemStaleErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feed_relay_filesystem_stale_errors_total",
			Help: "Total number of ESTALE errors observed",
		},
		[]string{"operation"},
	)

	FilesystemRetryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "feed_relay_filesystem_retry_duration_seconds",
			Help:    "Total duration of filesystem operations including retries",
			Buckets: []float64{0.0001, 0.001, 0.01, 0.05, 0.1, 0.25, 0.5, 1},
		},
		[]string{"operation"},
	)
)

// Application info metric
var (
	AppInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "feed_relay_app_info",
			Help: "Application information",
		},
		[]string{"version", "commit", "go_version"},
	)
)

// SetAppInfo sets the application info metric
func SetAppInfo(version, commit, goVersion string) {
	AppInfo.WithLabelValues(version, commit, goVersion).Set(1)
}

// InitializeMetrics pre-populates all expected label combinations so that
// every metric is exported from the first Prometheus scrape.
func InitializeMetrics() {
	for _, s := range []string{"success", "protocol_error", "request_error"} {
		FeedPagesTotal.WithLabelValues(s)
	}
	for _, o := range []string{"delivered", "dropped"} {
		FeedItemsTotal.WithLabelValues(o)
	}
	for _, r := range []string{"hit", "recheck_hit", "miss"} {
		CacheLookupsTotal.WithLabelValues(r)
	}
	for _, s := range []string{"success", "fetch_error", "transcode_error", "io_error"} {
		CachePublishedTotal.WithLabelValues(s)
	}
	for _, s := range []string{"success", "error", "timeout"} {
		TranscoderJobsTotal.WithLabelValues(s)
	}
	for _, op := range []string{"stat", "open"} {
		FilesystemRetryAttempts.WithLabelValues(op)
		FilesystemRetrySuccess.WithLabelValues(op)
		FilesystemRetryFailures.WithLabelValues(op)
		FilesystemStaleErrors.WithLabelValues(op)
		FilesystemRetryDuration.WithLabelValues(op)
	}
}
