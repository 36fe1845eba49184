// Package mediacache implements the on-disk media cache behind the /media
// route.
//
// On the first request for a key the proxy downloads the source URL into a
// hidden staging directory, converts it with a Transcoder into a private
// output file, and publishes the result with an atomic rename to
// {dir}/{key}. A published file is always a complete conversion and is
// served for every later request without contacting the source again.
//
// Concurrent requests for the same key share one download and one
// conversion through a singleflight group. Failures leave nothing behind in
// the cache and are not remembered, so the next request retries.
//
// The package also owns the URL convention that points clients at the
// proxy (MediaURL), which the feed package uses when building pages.
package mediacache
