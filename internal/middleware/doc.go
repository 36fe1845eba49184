// Package middleware provides HTTP middleware for the feed relay.
//
// It includes:
//   - Request logging in W3C Extended Log Format, with source URLs reduced to their host
//   - Prometheus request metrics labelled by route template
//   - Configurable filtering for health checks
package middleware
