package filesystem

import (
	"context"
	"errors"
	"os"
	"syscall"
	"time"

	"github.com/go-pkgz/repeater/v2"

	"feed-relay/internal/logging"
)

// errNotRetryable stops the repeater for errors other than ESTALE.
var errNotRetryable = errors.New("not retryable")

// RetryConfig configures retry behavior for filesystem operations
type RetryConfig struct {
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// DefaultRetryConfig returns sensible defaults for NFS retry behavior
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:     3,
		InitialBackoff: 50 * time.Millisecond,
		MaxBackoff:     500 * time.Millisecond,
	}
}

// isNFSStaleError checks if an error is an NFS stale file handle error
func isNFSStaleError(err error) bool {
	if err == nil {
		return false
	}

	var errno syscall.Errno
	if errors.As(err, &errno) {
		return errno == syscall.ESTALE
	}

	return false
}

// withRetry runs fn until it succeeds, fails with a non-ESTALE error, or the
// configured retries are exhausted. The error of the last attempt is returned.
func withRetry(op, path string, config RetryConfig, fn func() error) error {
	start := time.Now()
	obs := observe()
	attempt := 0
	var lastErr error

	retrier := repeater.NewBackoff(config.MaxRetries+1, config.InitialBackoff, repeater.WithMaxDelay(config.MaxBackoff))
	_ = retrier.Do(context.Background(), func() error {
		if attempt > 0 {
			if obs != nil {
				obs.ObserveRetryAttempt(op)
			}
			logging.Debug("NFS %s stale file handle for %s, retrying (attempt %d/%d)", op, path, attempt, config.MaxRetries)
		}
		attempt++

		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if !isNFSStaleError(lastErr) {
			return errNotRetryable
		}
		if obs != nil {
			obs.ObserveStaleError(op)
		}
		return lastErr
	}, errNotRetryable)

	if obs != nil {
		obs.ObserveRetryDuration(op, time.Since(start).Seconds())
	}

	switch {
	case lastErr == nil && attempt > 1:
		logging.Info("NFS %s succeeded on retry %d for %s", op, attempt-1, path)
		if obs != nil {
			obs.ObserveRetrySuccess(op)
		}
	case isNFSStaleError(lastErr):
		logging.Warn("NFS %s failed after %d retries for %s: %v", op, config.MaxRetries, path, lastErr)
		if obs != nil {
			obs.ObserveRetryFailure(op)
		}
	}

	return lastErr
}

// StatWithRetry performs os.Stat with retry logic for NFS stale file handle errors
func StatWithRetry(path string, config RetryConfig) (os.FileInfo, error) {
	var info os.FileInfo
	err := withRetry("stat", path, config, func() error {
		var err error
		info, err = os.Stat(path)
		return err
	})
	if err != nil {
		return nil, err
	}
	return info, nil
}

// OpenWithRetry performs os.Open with retry logic for NFS stale file handle errors
func OpenWithRetry(path string, config RetryConfig) (*os.File, error) {
	var file *os.File
	err := withRetry("open", path, config, func() error {
		var err error
		file, err = os.Open(path)
		return err
	})
	if err != nil {
		return nil, err
	}
	return file, nil
}
