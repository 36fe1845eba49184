package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"feed-relay/internal/feed"
	"feed-relay/internal/mediacache"
)

// DefaultFeedCount is the page size used when the client sends none.
const DefaultFeedCount = 10

// FeedSource produces pages of normalized feed items.
type FeedSource interface {
	FetchPage(ctx context.Context, cursor string, count int, origin feed.Origin) (feed.Page, error)
}

// MediaSource resolves cache keys to ready-to-serve files.
type MediaSource interface {
	Serve(ctx context.Context, key, src string) (*mediacache.Handle, error)
	Stats() (mediacache.Stats, error)
	InFlight() int
	Dir() string
}

// Config holds handler settings that are fixed at startup.
type Config struct {
	// FFmpegAvailable reports whether the converter was found at startup.
	FFmpegAvailable bool
	// StartTime is used to report uptime. Defaults to the time of New.
	StartTime time.Time
	// TrustProxyHeaders makes feed URLs follow X-Forwarded-Proto and
	// X-Forwarded-Host. Enable only behind a reverse proxy that sets them.
	TrustProxyHeaders bool
}

// Handlers serves the HTTP front door of the relay.
type Handlers struct {
	feed              FeedSource
	media             MediaSource
	ffmpegAvailable   bool
	trustProxyHeaders bool
	startTime         time.Time
}

func New(feedSrc FeedSource, mediaSrc MediaSource, cfg Config) *Handlers {
	start := cfg.StartTime
	if start.IsZero() {
		start = time.Now()
	}
	return &Handlers{
		feed:              feedSrc,
		media:             mediaSrc,
		ffmpegAvailable:   cfg.FFmpegAvailable,
		trustProxyHeaders: cfg.TrustProxyHeaders,
		startTime:         start,
	}
}

// requestOrigin returns the scheme and host the client used to reach us.
// Reverse proxy headers are honored only when trustProxy is set; otherwise
// any client could choose the host written into feed URLs.
func requestOrigin(r *http.Request, trustProxy bool) feed.Origin {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	host := r.Host
	if !trustProxy {
		return feed.Origin{Scheme: scheme, Host: host}
	}

	if proto, _, _ := strings.Cut(r.Header.Get("X-Forwarded-Proto"), ","); strings.TrimSpace(proto) != "" {
		scheme = strings.ToLower(strings.TrimSpace(proto))
	}
	if fwd, _, _ := strings.Cut(r.Header.Get("X-Forwarded-Host"), ","); strings.TrimSpace(fwd) != "" {
		host = strings.TrimSpace(fwd)
	}

	return feed.Origin{Scheme: scheme, Host: host}
}
