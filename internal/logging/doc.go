// Package logging provides the leveled logging interface used across the
// relay.
//
// Messages are written through the standard library logger with a "[LEVEL]"
// prefix. [Setup] installs github.com/go-pkgz/lgr behind the standard logger,
// which adds millisecond timestamps, optional colors and secret masking so that
// session cookie values loaded at startup never reach the log output.
//
// The log level is configured via the DEBUG or LOG_LEVEL environment variables,
// or explicitly via [SetLevel].
package logging
