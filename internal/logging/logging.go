package logging

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/fatih/color"
	"github.com/go-pkgz/lgr"
)

// LogLevel represents the severity of a log message
type LogLevel int32

const (
	// LevelDebug is the debug log level
	LevelDebug LogLevel = iota
	// LevelInfo is the info log level
	LevelInfo
	// LevelWarn is the warning log level
	LevelWarn
	// LevelError is the error log level
	LevelError
)

var (
	currentLevel atomic.Int32
	levelOnce    sync.Once
)

// Options configures the lgr backend installed by Setup.
type Options struct {
	// Level overrides the level derived from DEBUG / LOG_LEVEL when non-empty.
	Level string
	// NoColor disables the ANSI colorizer.
	NoColor bool
	// Secrets are masked in every emitted line (cookie values, tokens).
	Secrets []string
	// Out receives log output. Defaults to stdout.
	Out io.Writer
}

func initLevel() {
	levelOnce.Do(func() {
		if debug := os.Getenv("DEBUG"); debug != "" {
			switch strings.ToLower(debug) {
			case "1", "true", "yes", "on":
				currentLevel.Store(int32(LevelDebug))
				return
			}
		}
		currentLevel.Store(int32(ParseLevel(os.Getenv("LOG_LEVEL"))))
	})
}

// ParseLevel converts a level name to a LogLevel. Unknown names map to LevelInfo.
func ParseLevel(s string) LogLevel {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

// SetLevel overrides the current log level.
func SetLevel(l LogLevel) {
	initLevel()
	currentLevel.Store(int32(l))
}

// GetLevel returns the current log level
func GetLevel() LogLevel {
	initLevel()
	return LogLevel(currentLevel.Load())
}

// IsDebugEnabled returns true if debug logging is enabled
func IsDebugEnabled() bool {
	return GetLevel() <= LevelDebug
}

// Setup routes the standard logger through lgr. Every message emitted by this
// package keeps its "[LEVEL]" prefix, which lgr uses for filtering and coloring.
func Setup(opts Options) {
	if opts.Level != "" {
		SetLevel(ParseLevel(opts.Level))
	}

	lgrOpts := []lgr.Option{lgr.Msec, lgr.LevelBraces}
	if IsDebugEnabled() {
		lgrOpts = append(lgrOpts, lgr.Debug)
	}
	if opts.Out != nil {
		lgrOpts = append(lgrOpts, lgr.Out(opts.Out), lgr.Err(opts.Out))
	}
	if !opts.NoColor {
		lgrOpts = append(lgrOpts, lgr.Map(lgr.Mapper{
			ErrorFunc:  func(s string) string { return color.New(color.FgHiRed).Sprint(s) },
			WarnFunc:   func(s string) string { return color.New(color.FgRed).Sprint(s) },
			InfoFunc:   func(s string) string { return color.New(color.FgYellow).Sprint(s) },
			DebugFunc:  func(s string) string { return color.New(color.FgWhite).Sprint(s) },
			CallerFunc: func(s string) string { return color.New(color.FgBlue).Sprint(s) },
			TimeFunc:   func(s string) string { return color.New(color.FgCyan).Sprint(s) },
		}))
	}

	secrets := make([]string, 0, len(opts.Secrets))
	for _, s := range opts.Secrets {
		// masking very short values would garble unrelated text
		if len(s) >= 6 {
			secrets = append(secrets, s)
		}
	}
	if len(secrets) > 0 {
		lgrOpts = append(lgrOpts, lgr.Secret(secrets...))
	}

	lgr.SetupStdLogger(lgrOpts...)
	lgr.Setup(lgrOpts...)
}

// Debug logs a debug message (only if DEBUG=true or LOG_LEVEL=debug)
func Debug(format string, args ...interface{}) {
	if GetLevel() <= LevelDebug {
		log.Printf("[DEBUG] "+format, args...)
	}
}

// Info logs an info message
func Info(format string, args ...interface{}) {
	if GetLevel() <= LevelInfo {
		log.Printf("[INFO] "+format, args...)
	}
}

// Warn logs a warning message
func Warn(format string, args ...interface{}) {
	if GetLevel() <= LevelWarn {
		log.Printf("[WARN] "+format, args...)
	}
}

// Error logs an error message
func Error(format string, args ...interface{}) {
	if GetLevel() <= LevelError {
		log.Printf("[ERROR] "+format, args...)
	}
}

// Fatal logs an error message and exits
func Fatal(format string, args ...interface{}) {
	log.Fatalf("[FATAL] "+format, args...)
}

// Println is a pass-through to log.Println for messages that should always print
func Println(args ...interface{}) {
	log.Println(args...)
}

// String returns the string representation of a log level
func (l LogLevel) String() string {
	switch l {
	case LevelDebug:
		return "debug"
	case LevelInfo:
		return "info"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	default:
		return fmt.Sprintf("unknown(%d)", l)
	}
}
