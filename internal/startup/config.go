package startup

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/jessevdk/go-flags"

	"feed-relay/internal/logging"
)

// Options are the command line flags, each with an environment fallback.
type Options struct {
	Port             string        `short:"p" long:"port" env:"PORT" default:"5000" description:"HTTP listen port"`
	CacheDir         string        `long:"cache-dir" env:"CACHE_DIR" default:"./video_cache" description:"directory holding transcoded media"`
	CookiesFile      string        `long:"cookies" env:"COOKIES_FILE" default:"./cookies.json" description:"JSON cookie export used to authenticate upstream"`
	UpstreamURL      string        `long:"upstream" env:"UPSTREAM_URL" default:"https://m.tiktok.com/" description:"upstream API base URL"`
	FeedTimeout      time.Duration `long:"feed-timeout" env:"FEED_TIMEOUT" default:"15s" description:"ceiling for one feed page request"`
	FeedRetries      int           `long:"feed-retries" env:"FEED_RETRIES" default:"2" description:"retries after a feed transport failure"`
	FetchTimeout     time.Duration `long:"fetch-timeout" env:"FETCH_TIMEOUT" default:"30s" description:"ceiling for one media download"`
	TranscodeTimeout time.Duration `long:"transcode-timeout" env:"TRANSCODE_TIMEOUT" default:"5m" description:"ceiling for one conversion"`
	FFmpegPath       string        `long:"ffmpeg" env:"FFMPEG_PATH" default:"ffmpeg" description:"ffmpeg binary"`
	MetricsEnabled   string        `long:"metrics" env:"METRICS_ENABLED" default:"true" description:"serve Prometheus metrics"`
	MetricsPort      string        `long:"metrics-port" env:"METRICS_PORT" default:"9090" description:"Prometheus metrics port"`
	MemoryLimit      int64         `long:"memory-limit" env:"MEMORY_LIMIT" description:"container memory limit in bytes"`
	MemoryRatio      float64       `long:"memory-ratio" env:"MEMORY_RATIO" default:"0.5" description:"share of MEMORY_LIMIT for the Go heap"`
	LogHealthChecks  string        `long:"log-health-checks" env:"LOG_HEALTH_CHECKS" default:"true" description:"log health probe requests"`
	TrustProxy       bool          `long:"trust-proxy-headers" env:"TRUST_PROXY_HEADERS" description:"build feed URLs from X-Forwarded-Proto/Host"`
	LogLevel         string        `long:"log-level" env:"LOG_LEVEL" default:"info" description:"debug, info, warn or error"`
	Debug            bool          `long:"dbg" env:"DEBUG" description:"debug mode, same as --log-level=debug"`
	NoColor          bool          `long:"no-color" env:"NO_COLOR" description:"disable color output"`
	Version          bool          `short:"V" long:"version" description:"show version info"`
}

// ErrHelp is returned by ParseOptions when help was requested and printed.
var ErrHelp = errors.New("help requested")

// ParseOptions parses args (without the program name) and the environment.
func ParseOptions(args []string) (Options, error) {
	var opts Options
	parser := flags.NewParser(&opts, flags.Default)
	if _, err := parser.ParseArgs(args); err != nil {
		var flagsErr *flags.Error
		if errors.As(err, &flagsErr) && flagsErr.Type == flags.ErrHelp {
			return opts, ErrHelp
		}
		return opts, err
	}
	if opts.Debug {
		opts.LogLevel = "debug"
	}
	return opts, nil
}

// Config holds the resolved application configuration
type Config struct {
	Port             string
	MetricsPort      string
	CacheDir         string
	CookiesFile      string
	UpstreamURL      string
	FeedTimeout      time.Duration
	FeedRetries      int
	FetchTimeout     time.Duration
	TranscodeTimeout time.Duration
	FFmpegPath       string
	MetricsEnabled   bool
	LogHealthChecks  bool
	TrustProxy       bool
	MemoryLimit      int64
	MemoryRatio      float64
}

// LoadConfig validates opts, prints the startup banner and configuration,
// and prepares the cache directory, which must be writable.
func LoadConfig(opts Options) (*Config, error) {
	printBanner()
	logSystemInfo()

	logging.Info("------------------------------------------------------------")
	logging.Info("CONFIGURATION")
	logging.Info("------------------------------------------------------------")

	metricsEnabled := parseBool("METRICS_ENABLED", opts.MetricsEnabled, true)
	logHealthChecks := parseBool("LOG_HEALTH_CHECKS", opts.LogHealthChecks, true)

	logging.Info("  PORT:                %s", opts.Port)
	logging.Info("  CACHE_DIR:           %s", opts.CacheDir)
	logging.Info("  COOKIES_FILE:        %s", opts.CookiesFile)
	logging.Info("  UPSTREAM_URL:        %s", opts.UpstreamURL)
	logging.Info("  FEED_TIMEOUT:        %v", opts.FeedTimeout)
	logging.Info("  FEED_RETRIES:        %d", opts.FeedRetries)
	logging.Info("  FETCH_TIMEOUT:       %v", opts.FetchTimeout)
	logging.Info("  TRANSCODE_TIMEOUT:   %v", opts.TranscodeTimeout)
	logging.Info("  FFMPEG_PATH:         %s", opts.FFmpegPath)
	logging.Info("  METRICS_PORT:        %s", opts.MetricsPort)
	logging.Info("  METRICS_ENABLED:     %v", metricsEnabled)
	logging.Info("  MEMORY_LIMIT:        %d", opts.MemoryLimit)
	logging.Info("  MEMORY_RATIO:        %.2f", opts.MemoryRatio)
	logging.Info("  LOG_HEALTH_CHECKS:   %v", logHealthChecks)
	logging.Info("  TRUST_PROXY_HEADERS: %v", opts.TrustProxy)
	logging.Info("  LOG_LEVEL:           %s", logging.GetLevel())

	if err := validatePort("PORT", opts.Port); err != nil {
		return nil, err
	}
	if metricsEnabled {
		if err := validatePort("METRICS_PORT", opts.MetricsPort); err != nil {
			return nil, err
		}
	}
	if u, err := url.Parse(opts.UpstreamURL); err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid UPSTREAM_URL %q", opts.UpstreamURL)
	}
	for name, d := range map[string]time.Duration{
		"FEED_TIMEOUT":      opts.FeedTimeout,
		"FETCH_TIMEOUT":     opts.FetchTimeout,
		"TRANSCODE_TIMEOUT": opts.TranscodeTimeout,
	} {
		if d <= 0 {
			return nil, fmt.Errorf("%s must be positive, got %v", name, d)
		}
	}
	if opts.FeedRetries < 0 {
		return nil, fmt.Errorf("FEED_RETRIES must not be negative, got %d", opts.FeedRetries)
	}

	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("DIRECTORY SETUP")
	logging.Info("------------------------------------------------------------")

	cacheDir, err := filepath.Abs(opts.CacheDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve cache directory path: %w", err)
	}
	logging.Info("  Cache directory (absolute): %s", cacheDir)

	if err := ensureDirectory(cacheDir, "cache"); err != nil {
		return nil, fmt.Errorf("cache directory error: %w", err)
	}

	logging.Debug("  Testing cache directory write access...")
	if err := testWriteAccess(cacheDir); err != nil {
		return nil, fmt.Errorf("cache directory is not writable: %w", err)
	}
	logging.Info("  [OK] Cache directory is writable")

	logging.Info("")
	logging.Info("  Feature availability:")
	logging.Info("    Metrics:     %s", enabledString(metricsEnabled))

	return &Config{
		Port:             opts.Port,
		MetricsPort:      opts.MetricsPort,
		CacheDir:         cacheDir,
		CookiesFile:      opts.CookiesFile,
		UpstreamURL:      opts.UpstreamURL,
		FeedTimeout:      opts.FeedTimeout,
		FeedRetries:      opts.FeedRetries,
		FetchTimeout:     opts.FetchTimeout,
		TranscodeTimeout: opts.TranscodeTimeout,
		FFmpegPath:       opts.FFmpegPath,
		MetricsEnabled:   metricsEnabled,
		LogHealthChecks:  logHealthChecks,
		TrustProxy:       opts.TrustProxy,
		MemoryLimit:      opts.MemoryLimit,
		MemoryRatio:      opts.MemoryRatio,
	}, nil
}

func validatePort(name, value string) error {
	port, err := strconv.Atoi(value)
	if err != nil || port < 1 || port > 65535 {
		return fmt.Errorf("invalid %s %q", name, value)
	}
	return nil
}

// parseBool parses a boolean option, falling back to defaultValue with a
// warning on garbage.
func parseBool(name, value string, defaultValue bool) bool {
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		logging.Warn("Invalid boolean value for %s: %q, using default: %v", name, value, defaultValue)
		return defaultValue
	}
	return parsed
}

func enabledString(enabled bool) string {
	if enabled {
		return "ENABLED"
	}
	return "DISABLED"
}

func ensureDirectory(path, name string) error {
	logging.Debug("  Checking %s directory: %s", name, path)

	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		logging.Debug("    Directory does not exist, creating...")
		if err := os.MkdirAll(path, 0o755); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
		logging.Debug("    [OK] Created directory: %s", path)
		return nil
	}

	if err != nil {
		return fmt.Errorf("failed to stat directory: %w", err)
	}

	if !info.IsDir() {
		return fmt.Errorf("path exists but is not a directory")
	}

	logging.Debug("    [OK] Directory exists")
	return nil
}

func testWriteAccess(dir string) error {
	testFile := filepath.Join(dir, ".write-test")
	if err := os.WriteFile(testFile, []byte("test"), 0o644); err != nil {
		return err
	}
	if err := os.Remove(testFile); err != nil {
		logging.Warn("failed to remove write test file %s: %v", testFile, err)
	}
	return nil
}
