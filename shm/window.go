package shm

import (
	"errors"
	"fmt"
	"image"
	"os"
	"sync"

	"deedles.dev/swpresent/format"
	"deedles.dev/swpresent/internal/debug"
	"deedles.dev/swpresent/native"
	"golang.org/x/sys/unix"
)

var (
	// ErrClosed is returned by operations on a Window whose last
	// reference has been released.
	ErrClosed = errors.New("window closed")

	// ErrNotLocked is returned when unlocking a Window that isn't
	// locked.
	ErrNotLocked = errors.New("window not locked")
)

// Window is a headless host window with a single buffer in shared
// memory. It starts with one reference, held by its creator.
type Window struct {
	// Posted, if not nil, is called with the buffer every time a frame
	// is posted. The buffer's memory is only valid for the duration of
	// the call.
	Posted func(native.Buffer)

	lock chan struct{}

	m      sync.Mutex
	format format.Format
	w, h   int
	file   *os.File
	mmap   Mmap
	refs   int
	frames int
	closed bool
}

// NewWindow creates a Window of the given format and size.
func NewWindow(f format.Format, w, h int) (win *Window, err error) {
	defer func() {
		if err != nil {
			win.close()
		}
	}()

	win = &Window{
		lock:   make(chan struct{}, 1),
		format: f,
		w:      w,
		h:      h,
		refs:   1,
	}

	size, err := format.BufferSize(f, w, h)
	if err != nil {
		return win, err
	}
	if size <= 0 {
		return win, fmt.Errorf("invalid window size %vx%v", w, h)
	}

	file, err := Create()
	if err != nil {
		return win, fmt.Errorf("create SHM file: %w", err)
	}
	win.file = file

	err = win.file.Truncate(int64(size))
	if err != nil {
		return win, fmt.Errorf("truncate SHM file: %w", err)
	}

	mmap, err := MapShared(win.file, size, unix.PROT_READ|unix.PROT_WRITE)
	if err != nil {
		return win, fmt.Errorf("mmap SHM file: %w", err)
	}
	win.mmap = mmap

	return win, nil
}

func (win *Window) buffer() native.Buffer {
	return native.Buffer{
		Format: win.format,
		Width:  win.w,
		Height: win.h,
		Stride: win.w,
		Bits:   win.mmap,
	}
}

// Lock locks the window's buffer. It blocks while another caller holds
// the lock.
func (win *Window) Lock() (native.Buffer, error) {
	win.lock <- struct{}{}

	win.m.Lock()
	defer win.m.Unlock()

	if win.closed {
		<-win.lock
		return native.Buffer{}, ErrClosed
	}

	return win.buffer(), nil
}

func (win *Window) unlock(post bool) error {
	if len(win.lock) == 0 {
		return ErrNotLocked
	}
	defer func() { <-win.lock }()

	win.m.Lock()
	buf := win.buffer()
	if post {
		win.frames++
	}
	frames := win.frames
	win.m.Unlock()

	if post {
		debug.Logger().Debug("shm window posted frame", "frame", frames, "size", buf.Size())
		if win.Posted != nil {
			win.Posted(buf)
		}
	}
	return nil
}

// UnlockAndPost unlocks the buffer and records it as the window's
// displayed frame.
func (win *Window) UnlockAndPost() error {
	return win.unlock(true)
}

// Unlock unlocks the buffer without posting it.
func (win *Window) Unlock() error {
	return win.unlock(false)
}

func (win *Window) Width() int {
	win.m.Lock()
	defer win.m.Unlock()
	return win.w
}

func (win *Window) Height() int {
	win.m.Lock()
	defer win.m.Unlock()
	return win.h
}

// Frames returns the number of frames that have been posted.
func (win *Window) Frames() int {
	win.m.Lock()
	defer win.m.Unlock()
	return win.frames
}

func (win *Window) Acquire() {
	win.m.Lock()
	defer win.m.Unlock()
	win.refs++
}

// Release removes a reference. The window's memory is released along
// with the last reference.
func (win *Window) Release() {
	win.m.Lock()
	defer win.m.Unlock()

	win.refs--
	if win.refs == 0 {
		win.close()
	}
}

// Refs returns the window's reference count.
func (win *Window) Refs() int {
	win.m.Lock()
	defer win.m.Unlock()
	return win.refs
}

func (win *Window) close() {
	if win.closed {
		return
	}
	win.closed = true

	if win.mmap != nil {
		err := win.mmap.Unmap()
		if err != nil {
			debug.Logger().Warn("unmap shm window", "err", err)
		}
		win.mmap = nil
	}
	if win.file != nil {
		win.file.Close()
	}
}

// Resize changes the size of the window's buffer. It waits for the
// buffer to be unlocked first. The buffer's contents are undefined
// afterwards.
func (win *Window) Resize(w, h int) error {
	win.lock <- struct{}{}
	defer func() { <-win.lock }()

	win.m.Lock()
	defer win.m.Unlock()

	if win.closed {
		return ErrClosed
	}
	if (w == win.w) && (h == win.h) {
		return nil
	}

	size, err := format.BufferSize(win.format, w, h)
	if err != nil {
		return err
	}
	if size <= 0 {
		return fmt.Errorf("invalid window size %vx%v", w, h)
	}

	err = win.mmap.Unmap()
	if err != nil {
		return fmt.Errorf("unmap: %w", err)
	}
	win.mmap = nil

	err = win.file.Truncate(int64(size))
	if err != nil {
		return fmt.Errorf("truncate: %w", err)
	}
	mmap, err := MapShared(win.file, size, unix.PROT_READ|unix.PROT_WRITE)
	if err != nil {
		return fmt.Errorf("mmap: %w", err)
	}
	win.mmap = mmap
	win.w = w
	win.h = h

	return nil
}

// Frame returns a copy of the window's buffer as an image.
func (win *Window) Frame() (image.Image, error) {
	win.m.Lock()
	defer win.m.Unlock()

	if win.closed {
		return nil, ErrClosed
	}

	pix := make([]byte, len(win.mmap))
	copy(pix, win.mmap)
	return format.Image(win.format, pix, win.w, win.w, win.h)
}
