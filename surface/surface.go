package surface

import (
	"errors"
	"fmt"

	"deedles.dev/swpresent/config"
	"deedles.dev/swpresent/format"
	"deedles.dev/swpresent/native"
)

// Surface is a rendering target bound to a host window, a
// caller-provided pixmap, or an offscreen buffer.
type Surface struct {
	display    *Display
	kind       config.Kind
	conf       *config.Config
	colorspace config.Colorspace
	handle     *native.Handle
	drawable   Drawable

	// buffer is the most recently locked window buffer, or the
	// storage of pixmap and pbuffer surfaces.
	buffer     native.Buffer
	bufferSize int

	width, height int
	swapInterval  int
	destroyed     bool
}

// CreateWindowSurface creates a surface that presents into win. The
// surface holds a reference to win until it is destroyed.
func (d *Display) CreateWindowSurface(conf *config.Config, win native.Window, attrs Attribs) (*Surface, error) {
	if win == nil {
		return nil, ErrNoWindow
	}

	s, err := d.create(config.Window, conf, win, nil, attrs)
	if err != nil {
		return nil, err
	}
	s.swapInterval = 1
	return s, nil
}

// CreatePixmapSurface creates a surface that presents into pixmap,
// which must stay valid for the surface's lifetime.
func (d *Display) CreatePixmapSurface(conf *config.Config, pixmap *native.Buffer, attrs Attribs) (*Surface, error) {
	if pixmap == nil {
		return nil, AllocationError{Op: "create pixmap surface", Err: errors.New("no pixmap")}
	}
	return d.create(config.Pixmap, conf, nil, pixmap, attrs)
}

// CreatePbufferSurface creates an offscreen surface of the size given
// in attrs.
func (d *Display) CreatePbufferSurface(conf *config.Config, attrs Attribs) (*Surface, error) {
	return d.create(config.Pbuffer, conf, nil, nil, attrs)
}

func (d *Display) create(kind config.Kind, conf *config.Config, win native.Window, pixmap *native.Buffer, attrs Attribs) (*Surface, error) {
	if d.terminated {
		return nil, ErrTerminated
	}

	dc, ok := conf.DriverConfig(kind, attrs.Colorspace)
	if !ok {
		return nil, ConfigMismatchError{
			Config:     conf.ID,
			Kind:       kind,
			Colorspace: attrs.Colorspace,
		}
	}

	s := &Surface{
		display:    d,
		kind:       kind,
		conf:       conf,
		colorspace: attrs.Colorspace,
	}
	err := s.init(dc, win, pixmap, attrs)
	if err != nil {
		s.release()
		return nil, err
	}

	d.surfaces.Add(s)
	d.log.Debug("surface created",
		"kind", kind,
		"config", conf.ID,
		"width", s.width,
		"height", s.height,
		"format", s.buffer.Format,
		"buffer_size", s.bufferSize,
	)

	return s, nil
}

// init acquires everything s needs. Whatever it managed to acquire
// before failing is left for release.
func (s *Surface) init(dc *config.DriverConfig, win native.Window, pixmap *native.Buffer, attrs Attribs) error {
	switch s.kind {
	case config.Window:
		s.handle = native.Retain(win)
		s.width = win.Width()
		s.height = win.Height()

	case config.Pixmap:
		s.buffer = *pixmap
		s.width = pixmap.Width
		s.height = pixmap.Height

	case config.Pbuffer:
		err := s.allocPbuffer(attrs.Width, attrs.Height)
		if err != nil {
			return err
		}
	}

	drawable, err := s.display.driver.CreateDrawable(dc, s)
	if err != nil {
		return AllocationError{Op: "create drawable", Err: err}
	}
	s.drawable = drawable

	if s.kind != config.Window {
		s.bufferSize = s.buffer.Size()
		return nil
	}

	err = s.establishBuffer(win)
	if err != nil {
		return AllocationError{Op: "establish window buffer", Err: err}
	}
	return nil
}

func (s *Surface) allocPbuffer(w, h int) error {
	if (w < 0) || (h < 0) || (w > MaxPbufferWidth) || (h > MaxPbufferHeight) {
		return AllocationError{
			Op:  "create pbuffer surface",
			Err: fmt.Errorf("invalid size %vx%v", w, h),
		}
	}

	s.width = w
	s.height = h
	s.buffer = native.Buffer{
		Format: s.conf.NativeVisual,
		Width:  w,
		Height: h,
		Stride: w,
	}
	s.buffer.Bits = make([]byte, s.buffer.Size())
	return nil
}

// establishBuffer locks and posts the window's buffer once to find out
// the buffer's size.
func (s *Surface) establishBuffer(win native.Window) error {
	buf, err := win.Lock()
	if err != nil {
		return fmt.Errorf("lock window buffer: %w", err)
	}
	s.buffer = buf
	s.bufferSize = buf.Size()

	err = win.UnlockAndPost()
	if err != nil {
		return fmt.Errorf("post window buffer: %w", err)
	}
	return nil
}

// release frees everything the surface holds. The drawable is
// destroyed before the window reference is given back.
func (s *Surface) release() {
	if s.drawable != nil {
		s.drawable.Destroy()
		s.drawable = nil
	}
	s.handle.Release()
	s.buffer.Bits = nil
}

// Destroy destroys the surface. Calling it more than once has no
// effect.
func (s *Surface) Destroy() {
	if s.destroyed {
		return
	}
	s.destroyed = true

	s.release()
	s.display.surfaces.Delete(s)
	s.display.log.Debug("surface destroyed", "kind", s.kind, "config", s.conf.ID)
}

// Kind returns the kind of surface s is.
func (s *Surface) Kind() config.Kind {
	return s.kind
}

// Drawable returns the driver's half of the surface.
func (s *Surface) Drawable() Drawable {
	return s.drawable
}

// Config returns the config s was created with.
func (s *Surface) Config() *config.Config {
	return s.conf
}

// Present copies data into the surface's buffer and displays it. data
// must be exactly the size of the buffer. If Present fails, the
// previously displayed frame is left alone.
func (s *Surface) Present(data []byte) error {
	if s.destroyed {
		return ErrDestroyed
	}

	if s.kind != config.Window {
		return s.presentStorage(data)
	}

	win, err := s.handle.Window()
	if err != nil {
		return err
	}

	if (s.bufferSize != 0) && (len(data) != s.bufferSize) {
		return SizeMismatchError{Want: s.bufferSize, Got: len(data)}
	}

	buf, err := win.Lock()
	if err != nil {
		return fmt.Errorf("lock window buffer: %w", err)
	}
	s.buffer = buf
	s.bufferSize = buf.Size()

	err = s.check(data)
	if err != nil {
		return errors.Join(err, win.Unlock())
	}

	copy(buf.Bits[:s.bufferSize], data)

	err = win.UnlockAndPost()
	if err != nil {
		return fmt.Errorf("post window buffer: %w", err)
	}
	return nil
}

// check validates data against the current buffer.
func (s *Surface) check(data []byte) error {
	if format.BytesPerPixel(s.buffer.Format) == 0 {
		return format.UnsupportedFormatError{Format: s.buffer.Format}
	}
	if len(data) != s.bufferSize {
		return SizeMismatchError{Want: s.bufferSize, Got: len(data)}
	}
	if len(s.buffer.Bits) < s.bufferSize {
		return SizeMismatchError{Want: s.bufferSize, Got: len(s.buffer.Bits)}
	}
	return nil
}

func (s *Surface) presentStorage(data []byte) error {
	err := s.check(data)
	if err != nil {
		return err
	}

	copy(s.buffer.Bits, data)
	return nil
}

// Geometry returns the surface's bounds. For window surfaces, the
// size is the window's current size as reported by the host.
func (s *Surface) Geometry() (x, y, w, h int) {
	if s.kind != config.Window {
		return 0, 0, s.width, s.height
	}

	win, err := s.handle.Window()
	if err != nil {
		return 0, 0, s.width, s.height
	}
	return 0, 0, win.Width(), win.Height()
}

// BufferInfo describes the buffer frames are presented into, as of
// the last time it was locked.
func (s *Surface) BufferInfo() (f format.Format, stride, height int) {
	return s.buffer.Format, s.buffer.Stride, s.buffer.Height
}

// Query returns the value of a surface attribute. The width and
// height are refreshed from the host first.
func (s *Surface) Query(attr Attrib) (int, error) {
	if s.destroyed {
		return 0, ErrDestroyed
	}

	switch attr {
	case Width, Height:
		_, _, s.width, s.height = s.Geometry()
		if attr == Width {
			return s.width, nil
		}
		return s.height, nil
	case ConfigID:
		return s.conf.ID, nil
	case SwapInterval:
		return s.swapInterval, nil
	case PostSubBufferSupported:
		// The whole back buffer is copied on every present.
		return 1, nil
	case Colorspace:
		return int(s.colorspace), nil
	case Kind:
		return int(s.kind), nil
	case BufferSize:
		return s.bufferSize, nil
	case TextureFormat:
		return int(s.conf.Texture), nil
	default:
		return 0, BadAttributeError{Attrib: attr}
	}
}

// SwapBuffers has the surface's drawable present its back buffer.
func (s *Surface) SwapBuffers() error {
	if s.destroyed {
		return ErrDestroyed
	}
	return s.drawable.SwapBuffers()
}
