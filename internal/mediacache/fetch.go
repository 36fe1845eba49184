package mediacache

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"feed-relay/internal/logging"
	"feed-relay/internal/metrics"
)

// Requester issues outbound requests carrying session credentials.
// *session.Session implements it.
type Requester interface {
	NewRequest(ctx context.Context, method, rawURL string, body io.Reader) (*http.Request, error)
	Do(req *http.Request) (*http.Response, error)
}

// download streams src into a new file at dst and returns the byte count.
// dst is left behind on failure; the caller removes it.
func download(ctx context.Context, requester Requester, src, dst string) (int64, error) {
	start := time.Now()
	defer func() {
		metrics.FetchDuration.Observe(time.Since(start).Seconds())
	}()

	req, err := requester.NewRequest(ctx, http.MethodGet, src, nil)
	if err != nil {
		return 0, fmt.Errorf("%w: build request: %w", ErrUpstreamFetch, err)
	}

	resp, err := requester.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrUpstreamFetch, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return 0, &FetchError{StatusCode: resp.StatusCode, URL: req.URL.Redacted()}
	}

	f, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return 0, fmt.Errorf("%w: create staging file: %w", ErrIO, err)
	}

	n, copyErr := io.Copy(f, resp.Body)
	closeErr := f.Close()
	metrics.FetchBytesTotal.Add(float64(n))

	if copyErr != nil {
		// io.Copy does not say which side failed.
		return n, fmt.Errorf("%w: read body: %w", ErrUpstreamFetch, copyErr)
	}
	if closeErr != nil {
		return n, fmt.Errorf("%w: close staging file: %w", ErrIO, closeErr)
	}

	logging.Debug("Fetched %d bytes from %s", n, req.URL.Host)
	return n, nil
}
