package startup

import (
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gorilla/mux"
)

func TestGetBuildInfo(t *testing.T) {
	info := GetBuildInfo()

	if info.Version == "" {
		t.Error("Expected Version to be set")
	}
	if info.OS == "" || info.Arch == "" {
		t.Error("Expected OS and Arch to be set")
	}
	if info.GoVersion != GoVersion {
		t.Errorf("Expected GoVersion=%s, got %s", GoVersion, info.GoVersion)
	}
}

func TestParseOptionsDefaults(t *testing.T) {
	opts, err := ParseOptions(nil)
	if err != nil {
		t.Fatalf("ParseOptions failed: %v", err)
	}

	if opts.Port != "5000" {
		t.Errorf("Expected default port 5000, got %s", opts.Port)
	}
	if opts.CacheDir != "./video_cache" {
		t.Errorf("Expected default cache dir ./video_cache, got %s", opts.CacheDir)
	}
	if opts.FeedTimeout != 15*time.Second {
		t.Errorf("Expected feed timeout 15s, got %v", opts.FeedTimeout)
	}
	if opts.FetchTimeout != 30*time.Second {
		t.Errorf("Expected fetch timeout 30s, got %v", opts.FetchTimeout)
	}
	if opts.TranscodeTimeout != 5*time.Minute {
		t.Errorf("Expected transcode timeout 5m, got %v", opts.TranscodeTimeout)
	}
	if opts.UpstreamURL != "https://m.tiktok.com/" {
		t.Errorf("Expected default upstream, got %s", opts.UpstreamURL)
	}
	if opts.TrustProxy {
		t.Error("Expected proxy headers to be untrusted by default")
	}
}

func TestParseOptionsFlagsAndEnv(t *testing.T) {
	t.Setenv("FETCH_TIMEOUT", "45s")
	t.Setenv("COOKIES_FILE", "/etc/relay/cookies.json")

	opts, err := ParseOptions([]string{"--port", "8081", "--dbg"})
	if err != nil {
		t.Fatalf("ParseOptions failed: %v", err)
	}

	if opts.Port != "8081" {
		t.Errorf("Expected port from flag, got %s", opts.Port)
	}
	if opts.FetchTimeout != 45*time.Second {
		t.Errorf("Expected fetch timeout from env, got %v", opts.FetchTimeout)
	}
	if opts.CookiesFile != "/etc/relay/cookies.json" {
		t.Errorf("Expected cookies file from env, got %s", opts.CookiesFile)
	}
	if opts.LogLevel != "debug" {
		t.Errorf("Expected --dbg to force debug level, got %s", opts.LogLevel)
	}
}

func TestParseOptionsErrors(t *testing.T) {
	if _, err := ParseOptions([]string{"--help"}); !errors.Is(err, ErrHelp) {
		t.Errorf("Expected ErrHelp, got %v", err)
	}
	if _, err := ParseOptions([]string{"--no-such-flag"}); err == nil {
		t.Error("Expected error for unknown flag")
	}
	if _, err := ParseOptions([]string{"--feed-timeout", "soon"}); err == nil {
		t.Error("Expected error for bad duration")
	}
}

func validOptions(t *testing.T) Options {
	t.Helper()
	return Options{
		Port:             "5000",
		CacheDir:         filepath.Join(t.TempDir(), "cache"),
		CookiesFile:      "cookies.json",
		UpstreamURL:      "https://m.tiktok.com/",
		FeedTimeout:      15 * time.Second,
		FeedRetries:      2,
		FetchTimeout:     30 * time.Second,
		TranscodeTimeout: 5 * time.Minute,
		FFmpegPath:       "ffmpeg",
		MetricsEnabled:   "true",
		MetricsPort:      "9090",
		LogHealthChecks:  "false",
		TrustProxy:       true,
	}
}

func TestLoadConfig(t *testing.T) {
	opts := validOptions(t)

	config, err := LoadConfig(opts)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if !filepath.IsAbs(config.CacheDir) {
		t.Errorf("Expected absolute cache dir, got %s", config.CacheDir)
	}
	if info, err := os.Stat(config.CacheDir); err != nil || !info.IsDir() {
		t.Errorf("Expected cache dir to be created: %v", err)
	}
	if !config.MetricsEnabled {
		t.Error("Expected metrics enabled")
	}
	if config.LogHealthChecks {
		t.Error("Expected health check logging disabled")
	}
	if !config.TrustProxy {
		t.Error("Expected proxy headers to be trusted")
	}
	if _, err := os.Stat(filepath.Join(config.CacheDir, ".write-test")); !os.IsNotExist(err) {
		t.Error("Expected write probe to be removed")
	}
}

func TestLoadConfigInvalid(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Options)
	}{
		{name: "Bad port", modify: func(o *Options) { o.Port = "http" }},
		{name: "Port out of range", modify: func(o *Options) { o.Port = "70000" }},
		{name: "Bad metrics port", modify: func(o *Options) { o.MetricsPort = "0" }},
		{name: "Relative upstream", modify: func(o *Options) { o.UpstreamURL = "m.tiktok.com" }},
		{name: "Zero fetch timeout", modify: func(o *Options) { o.FetchTimeout = 0 }},
		{name: "Negative retries", modify: func(o *Options) { o.FeedRetries = -1 }},
		{name: "Cache dir is a file", modify: func(o *Options) {
			f := filepath.Join(filepath.Dir(o.CacheDir), "file")
			_ = os.WriteFile(f, []byte("x"), 0o644)
			o.CacheDir = f
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := validOptions(t)
			tt.modify(&opts)
			if _, err := LoadConfig(opts); err == nil {
				t.Error("Expected error")
			}
		})
	}
}

func TestLoadConfigMetricsDisabledSkipsPortCheck(t *testing.T) {
	opts := validOptions(t)
	opts.MetricsEnabled = "false"
	opts.MetricsPort = ""

	config, err := LoadConfig(opts)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if config.MetricsEnabled {
		t.Error("Expected metrics disabled")
	}
}

func TestParseBool(t *testing.T) {
	tests := []struct {
		value        string
		defaultValue bool
		want         bool
	}{
		{"", true, true},
		{"", false, false},
		{"true", false, true},
		{"0", true, false},
		{"FALSE", true, false},
		{"maybe", true, true},
		{"maybe", false, false},
	}

	for _, tt := range tests {
		if got := parseBool("TEST", tt.value, tt.defaultValue); got != tt.want {
			t.Errorf("parseBool(%q, %v) = %v, want %v", tt.value, tt.defaultValue, got, tt.want)
		}
	}
}

func TestGetRoutes(t *testing.T) {
	router := mux.NewRouter()
	noop := func(http.ResponseWriter, *http.Request) {}
	router.HandleFunc("/fyp", noop).Methods(http.MethodGet).Name("feed")
	router.HandleFunc("/media/{key}", noop).Methods(http.MethodGet, http.MethodHead)
	router.HandleFunc("/livez", noop)

	routes, err := GetRoutes(router)
	if err != nil {
		t.Fatalf("GetRoutes failed: %v", err)
	}

	if len(routes) != 4 {
		t.Fatalf("Expected 4 routes, got %d: %+v", len(routes), routes)
	}
	if routes[0].Name != "feed" || routes[0].Path != "/fyp" {
		t.Errorf("Unexpected first route %+v", routes[0])
	}
	if routes[3].Method != "*" {
		t.Errorf("Expected wildcard method for route without methods, got %s", routes[3].Method)
	}
}

func TestGetRouteGroup(t *testing.T) {
	tests := map[string]string{
		"/fyp":         "fyp",
		"/media/{key}": "media",
		"/":            "",
		"/video_proxy": "video_proxy",
	}
	for path, want := range tests {
		if got := getRouteGroup(path); got != want {
			t.Errorf("getRouteGroup(%q) = %q, want %q", path, got, want)
		}
	}
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		in   int64
		want string
	}{
		{0, "0 B"},
		{1023, "1023 B"},
		{1024, "1.0 KiB"},
		{1536, "1.5 KiB"},
		{5 * 1024 * 1024, "5.0 MiB"},
		{3 * 1024 * 1024 * 1024, "3.0 GiB"},
	}
	for _, tt := range tests {
		if got := formatBytes(tt.in); got != tt.want {
			t.Errorf("formatBytes(%d) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
