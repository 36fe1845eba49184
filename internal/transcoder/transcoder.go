package transcoder

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"sync"
	"time"

	"feed-relay/internal/logging"
	"feed-relay/internal/metrics"
)

// DefaultTimeout bounds a single conversion when no timeout is configured.
const DefaultTimeout = 5 * time.Minute

// maxStderrTail is how much FFmpeg stderr is kept for error reports.
const maxStderrTail = 2048

// ErrTimeout is returned when a conversion exceeds its configured ceiling.
var ErrTimeout = errors.New("transcode timed out")

// Transcoder converts downloaded media into baseline-profile H.264/AAC MP4
// files that legacy mobile players can decode.
type Transcoder struct {
	ffmpegPath string
	timeout    time.Duration
	processes  map[string]*exec.Cmd
	processMu  sync.Mutex
}

// New creates a new Transcoder instance. An empty ffmpegPath resolves "ffmpeg"
// from PATH; a non-positive timeout uses DefaultTimeout.
func New(ffmpegPath string, timeout time.Duration) *Transcoder {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	return &Transcoder{
		ffmpegPath: ffmpegPath,
		timeout:    timeout,
		processes:  make(map[string]*exec.Cmd),
	}
}

// buildFFmpegArgs returns the argument list for a one-shot conversion of
// inputPath into outputPath.
func buildFFmpegArgs(inputPath, outputPath string) []string {
	return []string{
		"-y",
		"-hide_banner",
		"-loglevel", "error",
		"-i", inputPath,
		"-c:v", "libx264",
		"-profile:v", "baseline",
		"-level", "3.0",
		"-pix_fmt", "yuv420p",
		"-preset", "ultrafast",
		"-c:a", "aac",
		"-movflags", "+faststart",
		"-f", "mp4",
		outputPath,
	}
}

// Transcode runs FFmpeg against inputPath, writing the result to outputPath.
// It returns an error on a non-zero exit, abnormal termination, or when the
// configured timeout elapses. The caller owns cleanup of outputPath.
func (t *Transcoder) Transcode(ctx context.Context, inputPath, outputPath string) error {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, t.ffmpegPath, buildFFmpegArgs(inputPath, outputPath)...)
	cmd.WaitDelay = 5 * time.Second

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	t.processMu.Lock()
	t.processes[outputPath] = cmd
	t.processMu.Unlock()

	defer func() {
		t.processMu.Lock()
		delete(t.processes, outputPath)
		t.processMu.Unlock()
	}()

	metrics.TranscoderJobsInProgress.Inc()
	defer metrics.TranscoderJobsInProgress.Dec()

	start := time.Now()
	logging.Debug("Transcoding %s -> %s", inputPath, outputPath)

	err := cmd.Run()
	metrics.TranscoderJobDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			metrics.TranscoderJobsTotal.WithLabelValues("timeout").Inc()
			return fmt.Errorf("%w after %v", ErrTimeout, t.timeout)
		}
		metrics.TranscoderJobsTotal.WithLabelValues("error").Inc()
		tail := stderrTail(stderr.String())
		logging.Error("FFmpeg stderr: %s", tail)
		if tail != "" {
			return fmt.Errorf("ffmpeg: %w: %s", err, tail)
		}
		return fmt.Errorf("ffmpeg: %w", err)
	}

	metrics.TranscoderJobsTotal.WithLabelValues("success").Inc()
	logging.Debug("Transcoded %s in %v", outputPath, time.Since(start))
	return nil
}

// Active returns the number of FFmpeg processes currently running.
func (t *Transcoder) Active() int {
	t.processMu.Lock()
	defer t.processMu.Unlock()
	return len(t.processes)
}

// Version runs "ffmpeg -version" and returns the first line of its output.
func (t *Transcoder) Version(ctx context.Context) (string, error) {
	path, err := exec.LookPath(t.ffmpegPath)
	if err != nil {
		return "", fmt.Errorf("%s not found in PATH", t.ffmpegPath)
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	output, err := exec.CommandContext(ctx, path, "-version").Output()
	if err != nil {
		return "", fmt.Errorf("failed to get ffmpeg version: %w", err)
	}

	line, _, _ := strings.Cut(string(output), "\n")
	return strings.TrimSpace(line), nil
}

// Cleanup stops all active transcoding processes.
func (t *Transcoder) Cleanup() {
	t.processMu.Lock()
	defer t.processMu.Unlock()

	for path, cmd := range t.processes {
		if cmd.Process != nil {
			logging.Info("Killing transcoding process for: %s", path)
			if err := cmd.Process.Kill(); err != nil {
				logging.Warn("failed to kill transcoding process for %s: %v", path, err)
			}
		}
	}
}

func stderrTail(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > maxStderrTail {
		s = s[len(s)-maxStderrTail:]
	}
	return s
}
