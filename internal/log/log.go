// Package log configures the process-wide slog logger. Logs go to a
// rotated file so they never interleave with command output or the TUI.
package log

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	initOnce    sync.Once
	initialized atomic.Bool
)

func Setup(logFile string, debug bool) {
	initOnce.Do(func() {
		logRotator := &lumberjack.Logger{
			Filename:   logFile,
			MaxSize:    5, // MB
			MaxBackups: 2,
			MaxAge:     30, // days
		}

		level := slog.LevelInfo
		if debug {
			level = slog.LevelDebug
		}

		handler := slog.NewJSONHandler(logRotator, &slog.HandlerOptions{
			Level:     level,
			AddSource: debug,
		})

		slog.SetDefault(slog.New(handler).With("pid", os.Getpid()))
		initialized.Store(true)
	})
}

func Initialized() bool {
	return initialized.Load()
}

// RecoverPanic writes a panic and its stack next to the log file, runs
// cleanup, and re-panics so the exit status stays non-zero.
func RecoverPanic(logFile string, cleanup func()) {
	r := recover()
	if r == nil {
		return
	}
	if cleanup != nil {
		cleanup()
	}
	name := fmt.Sprintf("cs-panic-%s.log", time.Now().Format("20060102-150405"))
	path := filepath.Join(filepath.Dir(logFile), name)
	if f, err := os.Create(path); err == nil {
		fmt.Fprintf(f, "Panic: %v\n\nTime: %s\n\nStack Trace:\n%s\n", r, time.Now().Format(time.RFC3339), debug.Stack())
		f.Close()
		fmt.Fprintf(os.Stderr, "cs crashed; details in %s\n", path)
	}
	panic(r)
}
