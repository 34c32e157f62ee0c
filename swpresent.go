// Package swpresent presents frames drawn by a software renderer in
// host windows.
//
// The work is split across several packages. format describes host
// pixel formats, config turns a driver's framebuffer configurations
// into the configs surfaces are created with, and surface binds those
// surfaces to host windows. native defines what a host window has to
// provide, and shm and wayland implement it. swrast is a software
// driver to render with, and procaddr resolves its entry points by
// name.
//
// This package only holds the logger they all share.
package swpresent

import (
	"log/slog"

	"deedles.dev/swpresent/internal/debug"
)

// SetLogger sets the logger used by every package in the module. A
// nil logger silences logging, which is the default unless
// $SWPRESENT_DEBUG or $WAYLAND_DEBUG is set to a positive integer.
func SetLogger(l *slog.Logger) {
	debug.SetLogger(l)
}

// Logger returns the logger used by every package in the module.
func Logger() *slog.Logger {
	return debug.Logger()
}
