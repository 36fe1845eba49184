package mediacache

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"feed-relay/internal/filesystem"
	"feed-relay/internal/logging"
	"feed-relay/internal/metrics"
)

const (
	// ContentType is served for every cache entry.
	ContentType = "video/mp4"

	// DefaultFetchTimeout bounds a source download.
	DefaultFetchTimeout = 30 * time.Second

	// DefaultTranscodeTimeout bounds a conversion.
	DefaultTranscodeTimeout = 5 * time.Minute

	// stagingDirName holds partial downloads and unpublished conversions.
	// It is hidden so it can never collide with a valid key.
	stagingDirName = ".staging"
)

// Cache outcomes reported by Serve. OutcomeShared marks a miss whose fetch
// and conversion served several concurrent callers.
const (
	OutcomeHit    = "hit"
	OutcomeMiss   = "miss"
	OutcomeShared = "shared"

	// OutcomeHeader carries the outcome on media responses.
	OutcomeHeader = "X-Cache"
)

// Transcoder converts the media at inputPath into a playable file at outputPath.
type Transcoder interface {
	Transcode(ctx context.Context, inputPath, outputPath string) error
}

// Config configures a Proxy.
type Config struct {
	// Dir is the cache directory. It is created if missing.
	Dir string
	// Requester downloads source media.
	Requester Requester
	// Transcoder converts downloads into cache entries.
	Transcoder Transcoder
	// FetchTimeout bounds one download. Defaults to DefaultFetchTimeout.
	FetchTimeout time.Duration
	// TranscodeTimeout bounds one conversion. Defaults to DefaultTranscodeTimeout.
	TranscodeTimeout time.Duration
	// Retry configures ESTALE retries on cache lookups.
	Retry *filesystem.RetryConfig
}

// Handle describes a published cache entry.
type Handle struct {
	Key         string
	Path        string
	ContentType string
	Size        int64
	ModTime     time.Time
	// Outcome is OutcomeHit, OutcomeMiss or OutcomeShared for this call.
	Outcome string

	retry filesystem.RetryConfig
}

// Open opens the entry for reading. The caller closes the file.
func (h *Handle) Open() (*os.File, error) {
	f, err := filesystem.OpenWithRetry(h.Path, h.retry)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %w", ErrIO, h.Key, err)
	}
	return f, nil
}

// Stats summarizes the published entries of the cache directory.
type Stats struct {
	Entries int   `json:"entries"`
	Bytes   int64 `json:"bytes"`
}

// Proxy fetches, transcodes and caches media on first access and serves
// the cached file afterwards. Work for a key runs at most once at a time;
// different keys proceed in parallel.
type Proxy struct {
	dir              string
	stagingDir       string
	requester        Requester
	transcoder       Transcoder
	fetchTimeout     time.Duration
	transcodeTimeout time.Duration
	retry            filesystem.RetryConfig

	group    singleflight.Group
	inFlight atomic.Int64

	// ctx outlives individual requests so an abandoned leader still
	// finishes; Close cancels it.
	ctx    context.Context
	cancel context.CancelFunc
}

// New creates the cache directory layout and removes staging files left
// behind by a previous run.
func New(cfg Config) (*Proxy, error) {
	if cfg.Dir == "" {
		return nil, fmt.Errorf("%w: cache directory is required", ErrInvalidArgument)
	}
	if cfg.Requester == nil || cfg.Transcoder == nil {
		return nil, fmt.Errorf("%w: requester and transcoder are required", ErrInvalidArgument)
	}

	p := &Proxy{
		dir:              cfg.Dir,
		stagingDir:       filepath.Join(cfg.Dir, stagingDirName),
		requester:        cfg.Requester,
		transcoder:       cfg.Transcoder,
		fetchTimeout:     cfg.FetchTimeout,
		transcodeTimeout: cfg.TranscodeTimeout,
		retry:            filesystem.DefaultRetryConfig(),
	}
	if p.fetchTimeout <= 0 {
		p.fetchTimeout = DefaultFetchTimeout
	}
	if p.transcodeTimeout <= 0 {
		p.transcodeTimeout = DefaultTranscodeTimeout
	}
	if cfg.Retry != nil {
		p.retry = *cfg.Retry
	}

	if err := os.MkdirAll(p.stagingDir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: create cache directory: %w", ErrIO, err)
	}
	if n := p.sweepStaging(); n > 0 {
		logging.Info("Removed %d stale staging files from %s", n, p.stagingDir)
	}

	p.ctx, p.cancel = context.WithCancel(context.Background())
	return p, nil
}

// Dir returns the cache directory.
func (p *Proxy) Dir() string {
	return p.dir
}

// Serve returns the cache entry for key, fetching src and transcoding it on a
// miss. A published entry is returned without contacting src. Concurrent
// callers for the same key share one fetch and one conversion. If ctx ends
// first, Serve returns ctx.Err() while the shared work continues.
func (p *Proxy) Serve(ctx context.Context, key, src string) (*Handle, error) {
	if key == "" || src == "" {
		return nil, fmt.Errorf("%w: key and source url are required", ErrInvalidArgument)
	}
	if !ValidKey(key) {
		return nil, fmt.Errorf("%w: invalid key %q", ErrInvalidArgument, key)
	}

	if h, err := p.lookup(key); err == nil {
		metrics.CacheLookupsTotal.WithLabelValues("hit").Inc()
		logging.Debug("Cache hit: %s", key)
		h.Outcome = OutcomeHit
		return h, nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}

	// DoChan re-panics in its own goroutine, which would kill the process.
	ch := p.group.DoChan(key, func() (val any, err error) {
		defer func() {
			if r := recover(); r != nil {
				metrics.CachePublishedTotal.WithLabelValues("io_error").Inc()
				logging.Error("Recovered panic while populating %s: %v", key, r)
				val, err = nil, fmt.Errorf("%w: populate %s: panic: %v", ErrIO, key, r)
			}
		}()
		return p.populate(key, src)
	})

	select {
	case <-ctx.Done():
		logging.Debug("Caller gave up waiting for %s: %v", key, ctx.Err())
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		// every caller gets its own copy of the shared result
		h := *res.Val.(*Handle)
		h.Outcome = OutcomeMiss
		if res.Shared {
			metrics.CacheSharedWaits.Inc()
			h.Outcome = OutcomeShared
		}
		return &h, nil
	}
}

// InFlight returns the number of keys currently being populated.
func (p *Proxy) InFlight() int {
	return int(p.inFlight.Load())
}

// Stats counts published entries and their total size.
func (p *Proxy) Stats() (Stats, error) {
	entries, err := os.ReadDir(p.dir)
	if err != nil {
		return Stats{}, fmt.Errorf("%w: read cache directory: %w", ErrIO, err)
	}

	var st Stats
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		st.Entries++
		st.Bytes += info.Size()
	}
	return st, nil
}

// Close aborts in-flight work. Entries being populated are not published.
func (p *Proxy) Close() {
	p.cancel()
}

// lookup stats the published path for key. It returns an error wrapping
// fs.ErrNotExist on a miss.
func (p *Proxy) lookup(key string) (*Handle, error) {
	path := filepath.Join(p.dir, key)
	info, err := filesystem.StatWithRetry(path, p.retry)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: stat %s: %w", ErrIO, key, err)
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("%w: %s is not a regular file", ErrIO, key)
	}
	return &Handle{
		Key:         key,
		Path:        path,
		ContentType: ContentType,
		Size:        info.Size(),
		ModTime:     info.ModTime(),
		retry:       p.retry,
	}, nil
}

// populate runs as the singleflight leader for key. It re-checks the cache
// first since a previous leader may have published between the caller's
// lookup and the start of this flight.
func (p *Proxy) populate(key, src string) (*Handle, error) {
	if h, err := p.lookup(key); err == nil {
		metrics.CacheLookupsTotal.WithLabelValues("recheck_hit").Inc()
		return h, nil
	}
	metrics.CacheLookupsTotal.WithLabelValues("miss").Inc()

	p.inFlight.Add(1)
	metrics.CacheJobsInFlight.Inc()
	defer func() {
		p.inFlight.Add(-1)
		metrics.CacheJobsInFlight.Dec()
	}()

	start := time.Now()
	logging.Info("Cache miss for %s, fetching source", key)

	token := uuid.NewString()
	staged := filepath.Join(p.stagingDir, key+"."+token+".part")
	output := filepath.Join(p.stagingDir, key+"."+token+".mp4")
	defer removeQuietly(staged)

	fetchCtx, cancelFetch := context.WithTimeout(p.ctx, p.fetchTimeout)
	size, err := download(fetchCtx, p.requester, src, staged)
	cancelFetch()
	if err != nil {
		metrics.CachePublishedTotal.WithLabelValues("fetch_error").Inc()
		logging.Warn("Fetch failed for %s: %v", key, err)
		return nil, fmt.Errorf("fetch %s: %w", key, err)
	}

	transcodeCtx, cancelTranscode := context.WithTimeout(p.ctx, p.transcodeTimeout)
	err = p.transcode(transcodeCtx, staged, output)
	cancelTranscode()
	if err != nil {
		removeQuietly(output)
		metrics.CachePublishedTotal.WithLabelValues("transcode_error").Inc()
		logging.Warn("Transcode failed for %s: %v", key, err)
		return nil, fmt.Errorf("%w: %s: %w", ErrTranscode, key, err)
	}

	final := filepath.Join(p.dir, key)
	if err := os.Rename(output, final); err != nil {
		removeQuietly(output)
		metrics.CachePublishedTotal.WithLabelValues("io_error").Inc()
		logging.Error("Publish failed for %s: %v", key, err)
		return nil, fmt.Errorf("%w: publish %s: %w", ErrIO, key, err)
	}

	h, err := p.lookup(key)
	if err != nil {
		metrics.CachePublishedTotal.WithLabelValues("io_error").Inc()
		return nil, fmt.Errorf("%w: stat published %s: %w", ErrIO, key, err)
	}

	metrics.CachePublishedTotal.WithLabelValues("success").Inc()
	logging.Info("Cached %s (%d bytes fetched, %d bytes published) in %v",
		key, size, h.Size, time.Since(start).Round(time.Millisecond))
	return h, nil
}

// transcode runs the converter, reporting a panic as an error.
func (p *Proxy) transcode(ctx context.Context, inputPath, outputPath string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("converter panic: %v", r)
		}
	}()
	return p.transcoder.Transcode(ctx, inputPath, outputPath)
}

// sweepStaging removes every file in the staging directory and returns how
// many were removed. Only called before the proxy accepts work.
func (p *Proxy) sweepStaging() int {
	entries, err := os.ReadDir(p.stagingDir)
	if err != nil {
		return 0
	}
	removed := 0
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if err := os.Remove(filepath.Join(p.stagingDir, e.Name())); err == nil {
			removed++
		}
	}
	return removed
}

func removeQuietly(path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		logging.Warn("Failed to remove %s: %v", path, err)
	}
}
