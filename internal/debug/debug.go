// Package debug holds the logger shared by every package in the
// module. It is silent unless $SWPRESENT_DEBUG or $WAYLAND_DEBUG is set
// to a positive integer or a logger is installed with SetLogger.
package debug

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"sync/atomic"
)

type nopHandler struct{}

func (nopHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (nopHandler) Handle(context.Context, slog.Record) error { return nil }
func (nopHandler) WithAttrs([]slog.Attr) slog.Handler        { return nopHandler{} }
func (nopHandler) WithGroup(string) slog.Handler             { return nopHandler{} }

var logger atomic.Pointer[slog.Logger]

func init() {
	logger.Store(slog.New(nopHandler{}))

	if level(os.Getenv("SWPRESENT_DEBUG")) > 0 || level(os.Getenv("WAYLAND_DEBUG")) > 0 {
		logger.Store(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		})))
	}
}

func level(v string) int64 {
	n, err := strconv.ParseInt(v, 10, 0)
	if err != nil {
		return 0
	}
	return n
}

// SetLogger replaces the shared logger. A nil logger restores the
// silent default.
func SetLogger(l *slog.Logger) {
	if l == nil {
		l = slog.New(nopHandler{})
	}
	logger.Store(l)
}

// Logger returns the shared logger.
func Logger() *slog.Logger {
	return logger.Load()
}

// Printf logs a preformatted debug message. It is used for wire
// tracing, where the arguments are already rendered by the caller.
func Printf(str string, args ...any) {
	l := logger.Load()
	if !l.Enabled(context.Background(), slog.LevelDebug) {
		return
	}
	l.Debug(fmt.Sprintf(str, args...))
}
