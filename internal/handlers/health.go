package handlers

import (
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"feed-relay/internal/logging"
	"feed-relay/internal/mediacache"
	"feed-relay/internal/startup"
)

const (
	statusHealthy  = "healthy"
	statusDegraded = "degraded"
)

// HealthResponse contains the health check response
type HealthResponse struct {
	Status  string `json:"status"`
	Ready   bool   `json:"ready"`
	Version string `json:"version"`
	Uptime  string `json:"uptime"`

	// Cache info
	Cache      mediacache.Stats `json:"cache"`
	CacheError string           `json:"cacheError,omitempty"`
	InFlight   int              `json:"inFlight"`
	FFmpeg     bool             `json:"ffmpeg"`

	// System info
	GoVersion    string `json:"goVersion"`
	NumCPU       int    `json:"numCpu"`
	NumGoroutine int    `json:"numGoroutine"`
}

// HealthCheck returns the health status of the service
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	ready := h.isReady()

	response := HealthResponse{
		Status:       statusHealthy,
		Ready:        ready,
		Version:      startup.Version,
		Uptime:       time.Since(h.startTime).Round(time.Second).String(),
		InFlight:     h.media.InFlight(),
		FFmpeg:       h.ffmpegAvailable,
		GoVersion:    runtime.Version(),
		NumCPU:       runtime.NumCPU(),
		NumGoroutine: runtime.NumGoroutine(),
	}

	stats, err := h.media.Stats()
	if err != nil {
		response.CacheError = err.Error()
	} else {
		response.Cache = stats
	}

	if !ready || err != nil {
		response.Status = statusDegraded
	}

	w.Header().Set("Content-Type", "application/json")
	if ready {
		w.WriteHeader(http.StatusOK)
	} else {
		w.WriteHeader(http.StatusServiceUnavailable)
	}

	if r.Method != http.MethodHead {
		writeJSON(w, response)
	}
}

// LivenessCheck is a simple liveness probe (always returns 200 if server is running)
func (h *Handlers) LivenessCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	// For HEAD requests, only send headers (no body)
	if r.Method != http.MethodHead {
		writeJSON(w, map[string]string{
			"status": "alive",
		})
	}
}

// ReadinessCheck returns 200 only when the cache directory is writable and
// FFmpeg is available
func (h *Handlers) ReadinessCheck(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if h.isReady() {
		w.WriteHeader(http.StatusOK)
		writeJSON(w, map[string]string{
			"status": "ready",
		})
	} else {
		w.WriteHeader(http.StatusServiceUnavailable)
		writeJSON(w, map[string]string{
			"status": "not_ready",
		})
	}
}

func (h *Handlers) isReady() bool {
	if !h.ffmpegAvailable {
		return false
	}
	return cacheWritable(h.media.Dir())
}

// cacheWritable probes dir with a hidden temp file so the probe never
// shows up as a cache entry.
func cacheWritable(dir string) bool {
	f, err := os.CreateTemp(dir, ".ready-*")
	if err != nil {
		logging.Debug("Cache directory %s not writable: %v", dir, err)
		return false
	}
	name := f.Name()
	_ = f.Close()
	if err := os.Remove(name); err != nil {
		logging.Warn("failed to remove readiness probe %s: %v", filepath.Base(name), err)
	}
	return true
}
