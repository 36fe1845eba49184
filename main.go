package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"feed-relay/internal/feed"
	"feed-relay/internal/filesystem"
	"feed-relay/internal/handlers"
	"feed-relay/internal/logging"
	"feed-relay/internal/mediacache"
	"feed-relay/internal/memory"
	"feed-relay/internal/metrics"
	"feed-relay/internal/middleware"
	"feed-relay/internal/session"
	"feed-relay/internal/startup"
	"feed-relay/internal/transcoder"
)

func main() {
	startTime := time.Now()

	opts, err := startup.ParseOptions(os.Args[1:])
	if err != nil {
		if errors.Is(err, startup.ErrHelp) {
			os.Exit(0)
		}
		os.Exit(1)
	}

	if opts.Version {
		info := startup.GetBuildInfo()
		fmt.Printf("Version: %s\nCommit: %s\nGolang: %s\n", info.Version, info.Commit, info.GoVersion)
		os.Exit(0)
	}

	logging.Setup(logging.Options{Level: opts.LogLevel, NoColor: opts.NoColor})

	config, err := startup.LoadConfig(opts)
	if err != nil {
		startup.LogFatal("Configuration error: %v", err)
	}
	startup.LogMemoryInit(memory.Configure(config.MemoryLimit, config.MemoryRatio))

	// Cookies are loaded after the config dump so their values can be
	// masked from every later log line.
	cookies, err := session.LoadCookies(config.CookiesFile)
	if err != nil {
		startup.LogFatal("Failed to load cookies: %v", err)
	}
	sess, err := session.New(session.Config{Cookies: cookies})
	if err != nil {
		startup.LogFatal("Failed to create session: %v", err)
	}
	logging.Setup(logging.Options{Level: opts.LogLevel, NoColor: opts.NoColor, Secrets: sess.Secrets()})
	startup.LogSessionInit(sess.CookieCount(), config.UpstreamURL)

	metrics.SetAppInfo(startup.Version, startup.Commit, startup.GoVersion)
	metrics.InitializeMetrics()
	filesystem.SetObserver(metrics.NewFilesystemObserver())

	trans := transcoder.New(config.FFmpegPath, config.TranscodeTimeout)
	probeCtx, cancelProbe := context.WithTimeout(context.Background(), 5*time.Second)
	ffmpegVersion, ffmpegErr := trans.Version(probeCtx)
	cancelProbe()
	startup.LogTranscoderInit(ffmpegVersion, ffmpegErr)

	proxy, err := mediacache.New(mediacache.Config{
		Dir:              config.CacheDir,
		Requester:        sess,
		Transcoder:       trans,
		FetchTimeout:     config.FetchTimeout,
		TranscodeTimeout: config.TranscodeTimeout,
	})
	if err != nil {
		startup.LogFatal("Failed to initialize media cache: %v", err)
	}
	if stats, err := proxy.Stats(); err == nil {
		startup.LogCacheInit(config.CacheDir, stats.Entries, stats.Bytes)
	}

	aggregator, err := feed.New(sess, feed.Config{
		BaseURL: config.UpstreamURL,
		Timeout: config.FeedTimeout,
		Retries: config.FeedRetries,
	})
	if err != nil {
		startup.LogFatal("Failed to initialize feed: %v", err)
	}

	h := handlers.New(aggregator, proxy, handlers.Config{
		FFmpegAvailable:   ffmpegErr == nil,
		StartTime:         startTime,
		TrustProxyHeaders: config.TrustProxy,
	})

	router := setupRouter(h)
	router.Use(middleware.Metrics(middleware.DefaultMetricsConfig()))
	startup.LogHTTPRoutes(router, config.LogHealthChecks)

	loggingConfig := middleware.DefaultLoggingConfig()
	loggingConfig.LogHealthChecks = config.LogHealthChecks
	handler := middleware.Logger(loggingConfig)(router)

	// WriteTimeout stays 0: a first request for a video waits for the
	// download and conversion before any byte is written.
	srv := &http.Server{
		Addr:              ":" + config.Port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      0,
		IdleTimeout:       60 * time.Second,
	}

	var metricsSrv *http.Server
	if config.MetricsEnabled {
		metricsSrv = newMetricsServer(config.MetricsPort)
		go func() {
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logging.Error("Metrics server error: %v", err)
			}
		}()
	}

	done := make(chan struct{})
	go handleShutdown(srv, metricsSrv, proxy, trans, done)

	startup.LogServerStarted(startup.ServerConfig{
		Port:            config.Port,
		MetricsPort:     config.MetricsPort,
		MetricsEnabled:  config.MetricsEnabled,
		StartupDuration: time.Since(startTime),
	})
	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		startup.LogFatal("Server error: %v", err)
	}
	<-done
}

func setupRouter(h *handlers.Handlers) *mux.Router {
	r := mux.NewRouter()

	// Probes
	r.HandleFunc("/health", h.HealthCheck).Methods(http.MethodGet, http.MethodHead)
	r.HandleFunc("/healthz", h.HealthCheck).Methods(http.MethodGet, http.MethodHead)
	r.HandleFunc("/livez", h.LivenessCheck).Methods(http.MethodGet, http.MethodHead)
	r.HandleFunc("/readyz", h.ReadinessCheck).Methods(http.MethodGet)
	r.HandleFunc("/version", h.GetVersion).Methods(http.MethodGet)

	// Feed
	r.HandleFunc("/fyp", h.GetFeed).Methods(http.MethodGet)

	// Media
	r.HandleFunc(mediacache.MediaRoute, h.GetMedia).Methods(http.MethodGet, http.MethodHead)
	r.HandleFunc(mediacache.MediaRoute+"/{key}", h.GetMedia).Methods(http.MethodGet, http.MethodHead)
	r.HandleFunc("/video_proxy", h.GetMedia).Methods(http.MethodGet, http.MethodHead)

	return r
}

func newMetricsServer(port string) *http.Server {
	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.Handler())

	return &http.Server{
		Addr:              ":" + port,
		Handler:           metricsMux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}

func handleShutdown(srv, metricsSrv *http.Server, proxy *mediacache.Proxy, trans *transcoder.Transcoder, done chan<- struct{}) {
	defer close(done)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan

	startup.LogShutdownInitiated(sig.String())

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	startup.LogShutdownStep("Aborting in-flight cache jobs")
	proxy.Close()
	startup.LogShutdownStepComplete("Cache jobs aborted")

	startup.LogShutdownStep("Cleaning up transcoder")
	trans.Cleanup()
	startup.LogShutdownStepComplete("Transcoder cleanup complete")

	startup.LogShutdownStep("Shutting down HTTP server")
	if err := srv.Shutdown(ctx); err != nil {
		logging.Warn("Server shutdown error: %v", err)
	} else {
		startup.LogShutdownStepComplete("HTTP server stopped")
	}

	if metricsSrv != nil {
		startup.LogShutdownStep("Shutting down metrics server")
		if err := metricsSrv.Shutdown(ctx); err != nil {
			logging.Warn("Metrics server shutdown error: %v", err)
		} else {
			startup.LogShutdownStepComplete("Metrics server stopped")
		}
	}

	startup.LogShutdownComplete()
}
