package wayland

import (
	"errors"
	"fmt"
	"image"

	"deedles.dev/swpresent/config"
	"deedles.dev/swpresent/format"
	"deedles.dev/swpresent/internal/debug"
	"deedles.dev/swpresent/native"
	"golang.org/x/image/draw"
)

var (
	// ErrClosed is returned by Lock once the window has been closed by
	// the compositor or has lost its last reference.
	ErrClosed = errors.New("window closed")

	// ErrLocked is returned by Lock if a buffer is already locked.
	ErrLocked = errors.New("window buffer already locked")

	// ErrNotLocked is returned when unlocking a window that isn't
	// locked.
	ErrNotLocked = errors.New("window buffer not locked")
)

// Options configure a Window.
type Options struct {
	Title string
	AppID string

	// Width and Height are the size used until the compositor picks
	// one. They default to 640x480.
	Width  int
	Height int

	// Format is the pixel format of the window's buffers. If it is
	// zero, the first format in config.Visuals that the compositor
	// supports is used.
	Format format.Format

	// Buffers is the number of buffers the window cycles through. It
	// defaults to 2.
	Buffers int
}

func (opts *Options) withDefaults() Options {
	var o Options
	if opts != nil {
		o = *opts
	}
	if o.Width <= 0 {
		o.Width = 640
	}
	if o.Height <= 0 {
		o.Height = 480
	}
	if o.Buffers <= 0 {
		o.Buffers = 2
	}
	return o
}

// Window is an xdg-shell toplevel that implements native.Window.
// Locking returns a buffer the compositor isn't reading, waiting for
// one to be released if every buffer is in use.
type Window struct {
	client     *Client
	opts       Options
	compositor *Compositor
	shm        *Shm
	wmBase     *XdgWmBase
	surface    *Surface
	xdgSurface *XdgSurface
	toplevel   *XdgToplevel

	format  format.Format
	buffers []*ImageBuffer
	locked  *ImageBuffer
	posted  *ImageBuffer

	w, h       int
	pendingW   int
	pendingH   int
	configured bool
	closed     bool
	refs       int
	frames     int
}

var _ native.Window = (*Window)(nil)

// Open creates a window. The returned Window holds one reference that
// belongs to the caller.
func Open(client *Client, opts *Options) (*Window, error) {
	win := Window{
		client: client,
		opts:   opts.withDefaults(),
		refs:   1,
	}
	win.w, win.h = win.opts.Width, win.opts.Height

	err := win.open()
	if err != nil {
		win.destroy()
		return nil, errors.Join(err, win.update())
	}

	debug.Logger().Info("wayland window opened",
		"format", win.format,
		"width", win.w,
		"height", win.h,
	)

	return &win, nil
}

func (win *Window) open() (err error) {
	client := win.client

	registry := client.Display().GetRegistry()
	err = client.RoundTrip()
	if err != nil {
		return fmt.Errorf("get globals: %w", err)
	}

	win.compositor, err = BindCompositor(registry)
	if err != nil {
		return err
	}
	win.shm, err = BindShm(registry)
	if err != nil {
		return err
	}
	win.wmBase, err = BindXdgWmBase(registry)
	if err != nil {
		return err
	}

	err = client.RoundTrip()
	if err != nil {
		return fmt.Errorf("bind globals: %w", err)
	}

	win.format, err = win.chooseFormat()
	if err != nil {
		return err
	}

	win.surface = win.compositor.CreateSurface()
	win.xdgSurface = win.wmBase.GetXdgSurface(win.surface)
	win.xdgSurface.Configure = win.configure
	win.toplevel = win.xdgSurface.GetToplevel()
	win.toplevel.Configure = func(w, h int32, states []byte) {
		win.pendingW, win.pendingH = int(w), int(h)
	}
	win.toplevel.Close = func() { win.closed = true }
	if win.opts.Title != "" {
		win.toplevel.SetTitle(win.opts.Title)
	}
	if win.opts.AppID != "" {
		win.toplevel.SetAppID(win.opts.AppID)
	}
	win.surface.Commit()

	for !win.configured {
		err = client.RoundTrip()
		if err != nil {
			return fmt.Errorf("wait for configure: %w", err)
		}
	}
	return nil
}

func (win *Window) chooseFormat() (format.Format, error) {
	if win.opts.Format != 0 {
		sf, ok := ShmFormatFor(win.opts.Format)
		if !ok || !win.shm.HasFormat(sf) {
			return 0, format.UnsupportedFormatError{Format: win.opts.Format}
		}
		return win.opts.Format, nil
	}

	for _, f := range config.Visuals {
		sf, ok := ShmFormatFor(f)
		if ok && win.shm.HasFormat(sf) {
			return f, nil
		}
	}
	return 0, errors.New("compositor supports none of the usable shm formats")
}

func (win *Window) configure(serial uint32) {
	if win.pendingW > 0 {
		win.w = win.pendingW
	}
	if win.pendingH > 0 {
		win.h = win.pendingH
	}
	win.configured = true
}

// Format returns the pixel format of the window's buffers.
func (win *Window) Format() format.Format {
	return win.format
}

// update dispatches whatever events have arrived without waiting for
// more.
func (win *Window) update() error {
	return win.client.Flush()
}

func (win *Window) Lock() (native.Buffer, error) {
	if win.locked != nil {
		return native.Buffer{}, ErrLocked
	}

	err := win.update()
	if err != nil {
		return native.Buffer{}, err
	}

	buf, err := win.nextBuffer()
	if err != nil {
		return native.Buffer{}, err
	}

	err = buf.Resize(int32(win.w), int32(win.h))
	if err != nil {
		return native.Buffer{}, fmt.Errorf("resize buffer: %w", err)
	}

	win.locked = buf
	return native.Buffer{
		Format: win.format,
		Width:  win.w,
		Height: win.h,
		Stride: win.w,
		Bits:   buf.Bytes(),
	}, nil
}

// nextBuffer returns a buffer the compositor is not reading,
// allocating a new one while there are fewer than opts.Buffers.
func (win *Window) nextBuffer() (*ImageBuffer, error) {
	for {
		if win.closed || (win.refs <= 0) {
			return nil, ErrClosed
		}

		for _, buf := range win.buffers {
			if !buf.Busy() {
				return buf, nil
			}
		}

		if len(win.buffers) < win.opts.Buffers {
			buf, err := NewImageBuffer(win.shm, win.format, int32(win.w), int32(win.h))
			if err != nil {
				return nil, fmt.Errorf("create buffer: %w", err)
			}
			win.buffers = append(win.buffers, buf)
			return buf, nil
		}

		err := win.client.Wait()
		if err != nil {
			return nil, err
		}
	}
}

func (win *Window) UnlockAndPost() error {
	buf := win.locked
	if buf == nil {
		return ErrNotLocked
	}
	win.locked = nil

	buf.busy = true
	win.surface.Attach(buf.Buffer(), 0, 0)
	win.surface.DamageBuffer(0, 0, int32(win.w), int32(win.h))
	win.surface.Commit()
	win.posted = buf
	win.frames++

	debug.Printf("posted frame %v (%vx%v)", win.frames, win.w, win.h)
	return win.update()
}

func (win *Window) Unlock() error {
	if win.locked == nil {
		return ErrNotLocked
	}
	win.locked = nil
	return nil
}

// Width returns the width most recently configured by the compositor.
func (win *Window) Width() int {
	win.refresh()
	return win.w
}

// Height returns the height most recently configured by the
// compositor.
func (win *Window) Height() int {
	win.refresh()
	return win.h
}

// refresh processes pending events for the size getters, which have
// no way to return an error.
func (win *Window) refresh() {
	err := win.update()
	if err != nil {
		debug.Logger().Warn("wayland window update failed", "err", err)
	}
}

// Closed reports whether the compositor has asked for the window to
// be closed.
func (win *Window) Closed() bool {
	return win.closed
}

// Frames returns the number of frames that have been posted.
func (win *Window) Frames() int {
	return win.frames
}

func (win *Window) Acquire() {
	win.refs++
}

// Release drops a reference. The window is destroyed when the last
// one is gone.
func (win *Window) Release() {
	win.refs--
	if win.refs == 0 {
		win.destroy()
		win.update()
	}
}

func (win *Window) destroy() {
	for _, buf := range win.buffers {
		buf.Destroy()
	}
	win.buffers = nil
	win.locked = nil
	win.posted = nil

	if win.toplevel != nil {
		win.toplevel.Destroy()
		win.toplevel = nil
	}
	if win.xdgSurface != nil {
		win.xdgSurface.Destroy()
		win.xdgSurface = nil
	}
	if win.surface != nil {
		win.surface.Destroy()
		win.surface = nil
	}
}

// Frame returns a copy of the most recently posted frame.
func (win *Window) Frame() (image.Image, error) {
	if win.posted == nil {
		return nil, errors.New("no frame has been posted")
	}

	src, err := win.posted.Image()
	if err != nil {
		return nil, err
	}

	dst := image.NewRGBA(src.Bounds())
	draw.Draw(dst, dst.Rect, src, src.Bounds().Min, draw.Src)
	return dst, nil
}
