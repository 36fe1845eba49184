/*
Package filesystem wraps os.Stat and os.Open with retry logic for NFS stale
file handle errors.

The media cache directory is frequently a network mount shared between relay
replicas. Lookups against it can transiently fail with ESTALE (errno 116)
while the server revalidates handles; those failures are retried with
exponential backoff driven by github.com/go-pkgz/repeater. Every other error
is returned immediately.

	info, err := filesystem.StatWithRetry(path, filesystem.DefaultRetryConfig())

Defaults: 3 retries, 50ms initial backoff, 500ms maximum backoff.

Retry metrics are reported through an [Observer] installed with [SetObserver].
*/
package filesystem
