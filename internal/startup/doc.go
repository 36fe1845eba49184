// Package startup handles application initialization, configuration loading,
// and startup/shutdown logging.
//
// # Configuration
//
// Options are parsed from command line flags with environment fallbacks by
// [ParseOptions] and resolved by [LoadConfig]:
//
//   - PORT: HTTP server port (default: 5000)
//   - CACHE_DIR: Directory for transcoded media (default: ./video_cache)
//   - COOKIES_FILE: JSON cookie export for the upstream session (default: ./cookies.json)
//   - UPSTREAM_URL: Upstream API base (default: https://m.tiktok.com/)
//   - FEED_TIMEOUT, FEED_RETRIES: Feed page ceiling and transport retries (default: 15s, 2)
//   - FETCH_TIMEOUT, TRANSCODE_TIMEOUT: Media download and conversion ceilings (default: 30s, 5m)
//   - FFMPEG_PATH: FFmpeg binary (default: ffmpeg)
//   - METRICS_ENABLED, METRICS_PORT: Prometheus metrics server (default: true, 9090)
//   - LOG_LEVEL, DEBUG, LOG_HEALTH_CHECKS, NO_COLOR: Logging
//
// The cache directory is created if missing and must be writable.
//
// # Build Information
//
// Build-time variables are injected via ldflags and exposed via [GetBuildInfo].
package startup
