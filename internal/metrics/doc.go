// Package metrics provides Prometheus instrumentation for the feed relay.
//
// All metrics are registered with the default registry through promauto and
// are prefixed with "feed_relay_".
//
// # Metric Categories
//
//   - HTTP: request counts, durations and in-flight requests per route
//   - Feed: upstream page outcomes, durations, delivered/dropped entries, retries
//   - Cache: hit/miss lookups, shared waits on in-flight keys, fill outcomes
//   - Fetch: source download durations and bytes
//   - Transcoder: FFmpeg job outcomes, durations and concurrency
//   - Filesystem: stale file handle retries on the cache volume
//
// Expose them by mounting promhttp.Handler():
//
//	mux.Handle("/metrics", promhttp.Handler())
package metrics
