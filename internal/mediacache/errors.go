package mediacache

import (
	"errors"
	"fmt"
)

// Sentinel errors for cache operations. Failures are never cached: a later
// call for the same key starts over.
var (
	// ErrInvalidArgument indicates an empty or unusable key or source URL.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrUpstreamFetch indicates the source media could not be downloaded.
	ErrUpstreamFetch = errors.New("upstream fetch failed")

	// ErrTranscode indicates the converter failed or timed out.
	ErrTranscode = errors.New("transcode failed")

	// ErrIO indicates a local filesystem failure while staging or publishing.
	ErrIO = errors.New("cache io error")
)

// FetchError reports a non-2xx response from the media source.
type FetchError struct {
	StatusCode int
	URL        string
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("%s: status %d from %s", ErrUpstreamFetch, e.StatusCode, e.URL)
}

// Is makes errors.Is(err, ErrUpstreamFetch) hold for a *FetchError.
func (e *FetchError) Is(target error) bool {
	return target == ErrUpstreamFetch
}
