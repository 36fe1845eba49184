// Package main provides the entry point for the Feed Relay application.
//
// Feed Relay pages a third-party short-video recommendation feed for clients
// that cannot talk to the upstream API or play its codecs directly. Each feed
// item's media URL is rewritten to point back at the relay; on first access
// the relay downloads the video, converts it to baseline-profile H.264/AAC
// with FFmpeg, stores the result, and serves it from disk from then on.
//
// # Application Lifecycle
//
//  1. Option Parsing: Flags with environment fallbacks
//  2. Configuration Loading: Validates options and prepares the cache directory
//  3. Session Setup: Loads the cookie export and masks cookie values in logs
//  4. Component Initialization:
//     - Transcoder: Probes FFmpeg
//     - Media Cache: Sweeps leftover staging files
//     - Feed Aggregator: Points at the upstream recommendation endpoint
//  5. HTTP Server Setup: Routes, metrics and logging middleware
//  6. Graceful Shutdown: Handles SIGINT/SIGTERM, aborts cache jobs, kills FFmpeg
//
// # HTTP Server
//
// The application runs two HTTP servers:
//
//  1. Main Server (default port 5000):
//     - GET /fyp: One page of the feed
//     - GET /media/{key}?src=, GET /media?file=&url=: Cached video
//     - GET /video_proxy?file=&url=: Alias kept for older clients
//     - GET /health, /healthz, /livez, /readyz, /version: Probes
//
//  2. Metrics Server (default port 9090, optional):
//     - Prometheus metrics endpoint (/metrics)
//
// # Environment Variables
//
// See package startup for the full list. Every option is also available as a
// command line flag; run with --help.
//
// # Build Information
//
// Version information is injected at build time via ldflags:
//
//	go build -ldflags "-X feed-relay/internal/startup.Version=1.0.0 \
//	  -X feed-relay/internal/startup.Commit=$(git rev-parse HEAD) \
//	  -X feed-relay/internal/startup.BuildTime=$(date -u +%Y-%m-%dT%H:%M:%SZ)"
package main
