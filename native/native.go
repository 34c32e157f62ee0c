// Package native defines the contract between the presentation
// adapter and the host window system.
package native

import (
	"errors"
	"sync"

	"deedles.dev/swpresent/format"
)

// ErrReleased is returned by a Handle whose window reference has
// already been given back.
var ErrReleased = errors.New("window reference released")

// Buffer describes a writable region of pixel memory owned by the
// host.
type Buffer struct {
	Format format.Format
	Width  int
	Height int
	// Stride is the distance between rows, in pixels.
	Stride int
	Bits   []byte
}

// Size returns the number of bytes of the buffer that hold pixel data.
// It is zero if the buffer's format is not in the format table.
func (b Buffer) Size() int {
	return format.BytesPerPixel(b.Format) * b.Stride * b.Height
}

// Window is a host window that can have frames posted into it.
type Window interface {
	// Lock acquires the window's next buffer for writing. It may block
	// until the host is done with a previously posted buffer.
	Lock() (Buffer, error)

	// UnlockAndPost releases the locked buffer and queues it for
	// display.
	UnlockAndPost() error

	// Unlock releases the locked buffer without displaying it.
	Unlock() error

	// Width returns the window's current width.
	Width() int

	// Height returns the window's current height.
	Height() int

	// Acquire adds a reference to the window.
	Acquire()

	// Release removes a reference to the window.
	Release()
}

// Handle is a single reference to a Window. Creating one acquires a
// reference and Release gives it back at most once.
type Handle struct {
	win  Window
	once sync.Once
}

// Retain acquires a reference to win and returns a Handle holding it.
func Retain(win Window) *Handle {
	win.Acquire()
	return &Handle{win: win}
}

// Window returns the referenced window, or ErrReleased if the
// reference has been released.
func (h *Handle) Window() (Window, error) {
	if h == nil || h.win == nil {
		return nil, ErrReleased
	}
	return h.win, nil
}

// Release gives the reference back to the window. Calls after the
// first are no-ops.
func (h *Handle) Release() {
	if h == nil {
		return
	}
	h.once.Do(func() {
		h.win.Release()
		h.win = nil
	})
}
