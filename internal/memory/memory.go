package memory

import (
	"math"
	"os"
	"runtime/debug"

	"feed-relay/internal/logging"
)

// DefaultRatio is the share of the container limit given to the Go heap.
// FFmpeg children live in the same cgroup and need the rest.
const DefaultRatio = 0.5

// Result describes the memory limit that was applied.
type Result struct {
	// Source is "GOMEMLIMIT", "MEMORY_LIMIT" or "none".
	Source         string
	ContainerLimit int64
	GoMemLimit     int64
	Ratio          float64
}

// Configured reports whether a soft memory limit is in effect.
func (r Result) Configured() bool {
	return r.GoMemLimit > 0
}

// Configure sets the Go soft memory limit to ratio of containerLimit. An
// explicit GOMEMLIMIT in the environment wins, and a non-positive
// containerLimit leaves the runtime default in place.
func Configure(containerLimit int64, ratio float64) Result {
	if env := os.Getenv("GOMEMLIMIT"); env != "" {
		res := Result{Source: "GOMEMLIMIT"}
		if limit := debug.SetMemoryLimit(-1); limit > 0 && limit < math.MaxInt64 {
			res.GoMemLimit = limit
		}
		return res
	}

	if containerLimit <= 0 {
		return Result{Source: "none"}
	}

	if ratio <= 0 || ratio > 1 {
		logging.Warn("  MEMORY_RATIO %.2f out of range (0.0-1.0], using default %.2f", ratio, DefaultRatio)
		ratio = DefaultRatio
	}

	limit := int64(float64(containerLimit) * ratio)
	debug.SetMemoryLimit(limit)

	return Result{
		Source:         "MEMORY_LIMIT",
		ContainerLimit: containerLimit,
		GoMemLimit:     limit,
		Ratio:          ratio,
	}
}
