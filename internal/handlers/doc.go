// Package handlers provides the HTTP front door of the feed relay.
//
// It includes handlers for:
//   - Paging the recommendation feed (/fyp)
//   - Serving cached, transcoded media (/media and the /video_proxy alias)
//   - Health, liveness, readiness and version probes
package handlers
