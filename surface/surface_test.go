package surface

import (
	"bytes"
	"errors"
	"testing"

	"deedles.dev/swpresent/config"
	"deedles.dev/swpresent/format"
	"deedles.dev/swpresent/native"
	"github.com/gogpu/gputypes"
)

type fakeWindow struct {
	format              format.Format
	w, h, stride        int
	bits                []byte
	refs                int
	locks, posts, drops int
	lockErr             error
}

func newFakeWindow(f format.Format, w, h, stride int) *fakeWindow {
	win := fakeWindow{format: f}
	win.resize(w, h, stride)
	return &win
}

func (win *fakeWindow) resize(w, h, stride int) {
	win.w, win.h, win.stride = w, h, stride
	size := format.BytesPerPixel(win.format) * stride * h
	if size == 0 {
		size = 4 * stride * h
	}
	win.bits = make([]byte, size)
}

func (win *fakeWindow) Lock() (native.Buffer, error) {
	if win.lockErr != nil {
		return native.Buffer{}, win.lockErr
	}
	win.locks++
	return native.Buffer{
		Format: win.format,
		Width:  win.w,
		Height: win.h,
		Stride: win.stride,
		Bits:   win.bits,
	}, nil
}

func (win *fakeWindow) UnlockAndPost() error { win.posts++; return nil }
func (win *fakeWindow) Unlock() error        { win.drops++; return nil }
func (win *fakeWindow) Width() int           { return win.w }
func (win *fakeWindow) Height() int          { return win.h }
func (win *fakeWindow) Acquire()             { win.refs++ }
func (win *fakeWindow) Release()             { win.refs-- }

type fakeDriver struct {
	configs   []*config.DriverConfig
	createErr error
	drawables []*fakeDrawable
}

func (drv *fakeDriver) Name() string { return "fake" }

func (drv *fakeDriver) Configs() []*config.DriverConfig { return drv.configs }

func (drv *fakeDriver) CreateDrawable(dc *config.DriverConfig, loader Loader) (Drawable, error) {
	if drv.createErr != nil {
		return nil, drv.createErr
	}
	d := &fakeDrawable{loader: loader}
	drv.drawables = append(drv.drawables, d)
	return d, nil
}

type fakeDrawable struct {
	loader    Loader
	destroyed int
}

func (d *fakeDrawable) SwapBuffers() error {
	f, stride, h := d.loader.BufferInfo()
	data := bytes.Repeat([]byte{0xAB}, format.BytesPerPixel(f)*stride*h)
	return d.loader.Present(data)
}

func (d *fakeDrawable) Destroy() { d.destroyed++ }

func newTestDisplay(t *testing.T) (*Display, *fakeDriver) {
	t.Helper()

	var dcs []*config.DriverConfig
	for _, f := range config.Visuals {
		l, _ := f.Layout()
		dcs = append(dcs,
			&config.DriverConfig{Layout: l},
			&config.DriverConfig{Layout: l, DoubleBuffer: true},
		)
	}
	drv := &fakeDriver{configs: dcs}

	d, err := Initialize(drv, nil)
	if err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	return d, drv
}

func rgbaConfig(t *testing.T, d *Display) *config.Config {
	t.Helper()

	configs := d.ChooseConfig(config.Attribs{NativeVisual: format.RGBA8888})
	if len(configs) == 0 {
		t.Fatal("no RGBA_8888 config")
	}
	return configs[0]
}

func TestCreateDestroyBalancesRefs(t *testing.T) {
	d, drv := newTestDisplay(t)
	win := newFakeWindow(format.RGBA8888, 50, 20, 64)
	win.refs = 1

	s, err := d.CreateWindowSurface(rgbaConfig(t, d), win, Attribs{})
	if err != nil {
		t.Fatalf("CreateWindowSurface: %v", err)
	}
	if win.refs != 2 {
		t.Errorf("refs after create = %d, want 2", win.refs)
	}
	if d.Surfaces() != 1 {
		t.Errorf("Surfaces() = %d, want 1", d.Surfaces())
	}

	s.Destroy()
	s.Destroy()
	if win.refs != 1 {
		t.Errorf("refs after destroy = %d, want 1", win.refs)
	}
	if drv.drawables[0].destroyed != 1 {
		t.Errorf("drawable destroyed %d times, want 1", drv.drawables[0].destroyed)
	}
	if d.Surfaces() != 0 {
		t.Errorf("Surfaces() = %d, want 0", d.Surfaces())
	}
}

func TestCreateEstablishesBufferSize(t *testing.T) {
	d, _ := newTestDisplay(t)
	win := newFakeWindow(format.RGB565, 50, 20, 64)

	s, err := d.CreateWindowSurface(rgbaConfig(t, d), win, Attribs{})
	if err != nil {
		t.Fatalf("CreateWindowSurface: %v", err)
	}
	defer s.Destroy()

	size, err := s.Query(BufferSize)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if size != 2*64*20 {
		t.Errorf("buffer size = %d, want %d", size, 2*64*20)
	}
	if (win.locks != 1) || (win.posts != 1) {
		t.Errorf("locks, posts = %d, %d, want 1, 1", win.locks, win.posts)
	}
}

func TestPresentCopiesFrame(t *testing.T) {
	d, _ := newTestDisplay(t)
	win := newFakeWindow(format.RGBA8888, 3, 2, 4)

	s, err := d.CreateWindowSurface(rgbaConfig(t, d), win, Attribs{})
	if err != nil {
		t.Fatalf("CreateWindowSurface: %v", err)
	}
	defer s.Destroy()

	frame := make([]byte, 4*4*2)
	for i := range frame {
		frame[i] = byte(i)
	}

	err = s.Present(frame)
	if err != nil {
		t.Fatalf("Present: %v", err)
	}
	if !bytes.Equal(win.bits, frame) {
		t.Error("window buffer does not hold the presented frame")
	}
	if win.posts != 2 {
		t.Errorf("posts = %d, want 2", win.posts)
	}

	size, _ := s.Query(BufferSize)
	if size != format.BytesPerPixel(win.format)*win.stride*win.h {
		t.Errorf("buffer size = %d, want bpp*stride*height", size)
	}
}

func TestPresentSizeMismatch(t *testing.T) {
	d, _ := newTestDisplay(t)
	win := newFakeWindow(format.RGBA8888, 3, 2, 4)

	s, err := d.CreateWindowSurface(rgbaConfig(t, d), win, Attribs{})
	if err != nil {
		t.Fatalf("CreateWindowSurface: %v", err)
	}
	defer s.Destroy()

	locks, posts := win.locks, win.posts
	for _, n := range []int{0, 4*4*2 - 1, 4*4*2 + 1} {
		err = s.Present(bytes.Repeat([]byte{0xFF}, n))
		var serr SizeMismatchError
		if !errors.As(err, &serr) {
			t.Fatalf("Present(%d bytes) err = %v, want SizeMismatchError", n, err)
		}
		if (serr.Want != 4*4*2) || (serr.Got != n) {
			t.Errorf("serr = %+v", serr)
		}
	}

	if (win.locks != locks) || (win.posts != posts) {
		t.Errorf("Present touched the window: locks %d -> %d, posts %d -> %d", locks, win.locks, posts, win.posts)
	}
	if !bytes.Equal(win.bits, make([]byte, len(win.bits))) {
		t.Error("window buffer was modified")
	}
}

func TestPresentAfterHostResize(t *testing.T) {
	d, _ := newTestDisplay(t)
	win := newFakeWindow(format.RGBA8888, 3, 2, 4)

	s, err := d.CreateWindowSurface(rgbaConfig(t, d), win, Attribs{})
	if err != nil {
		t.Fatalf("CreateWindowSurface: %v", err)
	}
	defer s.Destroy()

	win.resize(8, 8, 8)
	posts := win.posts

	err = s.Present(make([]byte, 4*4*2))
	var serr SizeMismatchError
	if !errors.As(err, &serr) {
		t.Fatalf("err = %v, want SizeMismatchError", err)
	}
	if serr.Want != 4*8*8 {
		t.Errorf("serr.Want = %d, want %d", serr.Want, 4*8*8)
	}
	if win.drops != 1 {
		t.Errorf("buffer dropped %d times, want 1", win.drops)
	}
	if win.posts != posts {
		t.Error("a mismatched frame was posted")
	}

	f, stride, h := s.BufferInfo()
	if (f != format.RGBA8888) || (stride != 8) || (h != 8) {
		t.Errorf("BufferInfo() = %v, %d, %d", f, stride, h)
	}

	err = s.Present(make([]byte, 4*8*8))
	if err != nil {
		t.Fatalf("Present at new size: %v", err)
	}
}

func TestPresentUnsupportedFormat(t *testing.T) {
	d, _ := newTestDisplay(t)
	win := newFakeWindow(format.YV12, 4, 4, 4)

	s, err := d.CreateWindowSurface(rgbaConfig(t, d), win, Attribs{})
	if err != nil {
		t.Fatalf("CreateWindowSurface: %v", err)
	}
	defer s.Destroy()

	if size, _ := s.Query(BufferSize); size != 0 {
		t.Errorf("buffer size = %d, want 0", size)
	}

	err = s.Present(make([]byte, 64))
	var ferr format.UnsupportedFormatError
	if !errors.As(err, &ferr) {
		t.Fatalf("err = %v, want UnsupportedFormatError", err)
	}
	if win.posts != 1 {
		t.Errorf("posts = %d, want 1", win.posts)
	}
	if win.drops != 1 {
		t.Errorf("drops = %d, want 1", win.drops)
	}
}

func TestGeometryIsLive(t *testing.T) {
	d, _ := newTestDisplay(t)
	win := newFakeWindow(format.RGBA8888, 10, 20, 10)

	s, err := d.CreateWindowSurface(rgbaConfig(t, d), win, Attribs{})
	if err != nil {
		t.Fatalf("CreateWindowSurface: %v", err)
	}
	defer s.Destroy()

	win.resize(30, 40, 32)
	for i := 0; i < 2; i++ {
		x, y, w, h := s.Geometry()
		if (x != 0) || (y != 0) || (w != 30) || (h != 40) {
			t.Errorf("Geometry() = %d, %d, %d, %d, want 0, 0, 30, 40", x, y, w, h)
		}
	}

	w, _ := s.Query(Width)
	h, _ := s.Query(Height)
	if (w != 30) || (h != 40) {
		t.Errorf("Query(Width, Height) = %d, %d, want 30, 40", w, h)
	}
}

func TestConfigMismatch(t *testing.T) {
	d, _ := newTestDisplay(t)
	conf := rgbaConfig(t, d)
	win := newFakeWindow(format.RGBA8888, 4, 4, 4)

	_, err := d.CreateWindowSurface(conf, win, Attribs{Colorspace: config.SRGB})
	var cerr ConfigMismatchError
	if !errors.As(err, &cerr) {
		t.Fatalf("err = %v, want ConfigMismatchError", err)
	}
	if (cerr.Kind != config.Window) || (cerr.Colorspace != config.SRGB) || (cerr.Config != conf.ID) {
		t.Errorf("cerr = %+v", cerr)
	}
	if win.refs != 0 {
		t.Errorf("refs = %d, want 0", win.refs)
	}

	_, err = d.CreatePixmapSurface(conf, &native.Buffer{}, Attribs{})
	if !errors.As(err, &cerr) {
		t.Errorf("pixmap err = %v, want ConfigMismatchError", err)
	}
}

func TestCreateFailures(t *testing.T) {
	t.Run("Driver", func(t *testing.T) {
		d, drv := newTestDisplay(t)
		drv.createErr = errors.New("out of memory")
		win := newFakeWindow(format.RGBA8888, 4, 4, 4)

		_, err := d.CreateWindowSurface(rgbaConfig(t, d), win, Attribs{})
		var aerr AllocationError
		if !errors.As(err, &aerr) {
			t.Fatalf("err = %v, want AllocationError", err)
		}
		if !errors.Is(err, drv.createErr) {
			t.Error("AllocationError does not wrap the driver error")
		}
		if win.refs != 0 {
			t.Errorf("refs = %d, want 0", win.refs)
		}
		if d.Surfaces() != 0 {
			t.Errorf("Surfaces() = %d, want 0", d.Surfaces())
		}
	})

	t.Run("Pbuffer", func(t *testing.T) {
		d, drv := newTestDisplay(t)
		s, err := d.CreatePbufferSurface(rgbaConfig(t, d), Attribs{Width: -1, Height: 1})
		var aerr AllocationError
		if !errors.As(err, &aerr) {
			t.Errorf("err = %v, want AllocationError", err)
		}
		if s != nil {
			t.Error("failed creation returned a surface")
		}
		if len(drv.drawables) != 0 {
			t.Errorf("created %d drawables, want 0", len(drv.drawables))
		}
	})

	t.Run("Lock", func(t *testing.T) {
		d, drv := newTestDisplay(t)
		win := newFakeWindow(format.RGBA8888, 4, 4, 4)
		win.lockErr = errors.New("dead window")

		_, err := d.CreateWindowSurface(rgbaConfig(t, d), win, Attribs{})
		if !errors.Is(err, win.lockErr) {
			t.Fatalf("err = %v, want the lock error", err)
		}
		var aerr AllocationError
		if !errors.As(err, &aerr) {
			t.Errorf("err = %v, want AllocationError", err)
		}
		if win.refs != 0 {
			t.Errorf("refs = %d, want 0", win.refs)
		}
		if drv.drawables[0].destroyed != 1 {
			t.Error("drawable was not destroyed")
		}
		if d.Surfaces() != 0 {
			t.Errorf("Surfaces() = %d, want 0", d.Surfaces())
		}
	})

	t.Run("NoWindow", func(t *testing.T) {
		d, _ := newTestDisplay(t)
		_, err := d.CreateWindowSurface(rgbaConfig(t, d), nil, Attribs{})
		if !errors.Is(err, ErrNoWindow) {
			t.Errorf("err = %v, want ErrNoWindow", err)
		}
	})
}

func TestDestroyedSurface(t *testing.T) {
	d, _ := newTestDisplay(t)
	win := newFakeWindow(format.RGBA8888, 4, 4, 4)

	s, err := d.CreateWindowSurface(rgbaConfig(t, d), win, Attribs{})
	if err != nil {
		t.Fatalf("CreateWindowSurface: %v", err)
	}
	s.Destroy()

	if err := s.Present(make([]byte, 64)); !errors.Is(err, ErrDestroyed) {
		t.Errorf("Present err = %v, want ErrDestroyed", err)
	}
	if _, err := s.Query(Width); !errors.Is(err, ErrDestroyed) {
		t.Errorf("Query err = %v, want ErrDestroyed", err)
	}
	if err := s.SwapBuffers(); !errors.Is(err, ErrDestroyed) {
		t.Errorf("SwapBuffers err = %v, want ErrDestroyed", err)
	}
	if win.locks != 1 {
		t.Errorf("locks = %d, want 1", win.locks)
	}
}

func TestSwapBuffers(t *testing.T) {
	d, _ := newTestDisplay(t)
	win := newFakeWindow(format.BGRA8888, 5, 5, 8)

	s, err := d.CreateWindowSurface(rgbaConfig(t, d), win, Attribs{})
	if err != nil {
		t.Fatalf("CreateWindowSurface: %v", err)
	}
	defer s.Destroy()

	err = s.SwapBuffers()
	if err != nil {
		t.Fatalf("SwapBuffers: %v", err)
	}
	if !bytes.Equal(win.bits, bytes.Repeat([]byte{0xAB}, 4*8*5)) {
		t.Error("window buffer does not hold the swapped frame")
	}
	if win.posts != 2 {
		t.Errorf("posts = %d, want 2", win.posts)
	}
}

func TestPbufferSurface(t *testing.T) {
	d, _ := newTestDisplay(t)
	conf := rgbaConfig(t, d)

	s, err := d.CreatePbufferSurface(conf, Attribs{Width: 16, Height: 8})
	if err != nil {
		t.Fatalf("CreatePbufferSurface: %v", err)
	}
	defer s.Destroy()

	if _, _, w, h := s.Geometry(); (w != 16) || (h != 8) {
		t.Errorf("Geometry() size = %dx%d, want 16x8", w, h)
	}
	if n, _ := s.Query(SwapInterval); n != 0 {
		t.Errorf("swap interval = %d, want 0", n)
	}
	if err := s.Present(make([]byte, 4*16*8)); err != nil {
		t.Errorf("Present: %v", err)
	}
	var serr SizeMismatchError
	if err := s.Present(make([]byte, 3)); !errors.As(err, &serr) {
		t.Errorf("short Present err = %v, want SizeMismatchError", err)
	}

	for _, size := range [][2]int{{-1, 4}, {4, MaxPbufferHeight + 1}} {
		_, err := d.CreatePbufferSurface(conf, Attribs{Width: size[0], Height: size[1]})
		var aerr AllocationError
		if !errors.As(err, &aerr) {
			t.Errorf("CreatePbufferSurface(%v) err = %v, want AllocationError", size, err)
		}
	}
}

func TestPresentShortHostBuffer(t *testing.T) {
	d, _ := newTestDisplay(t)
	conf := rgbaConfig(t, d)
	conf.Kinds |= config.Pixmap

	pixmap := native.Buffer{
		Format: format.RGBA8888,
		Width:  4,
		Height: 4,
		Stride: 4,
		Bits:   make([]byte, 10),
	}
	s, err := d.CreatePixmapSurface(conf, &pixmap, Attribs{})
	if err != nil {
		t.Fatalf("CreatePixmapSurface: %v", err)
	}
	defer s.Destroy()

	err = s.Present(make([]byte, 64))
	var serr SizeMismatchError
	if !errors.As(err, &serr) {
		t.Fatalf("Present err = %v, want SizeMismatchError", err)
	}
	if (serr.Want != 64) || (serr.Got != 10) {
		t.Errorf("SizeMismatchError = %+v, want 64 and 10", serr)
	}
}

func TestPixmapSurface(t *testing.T) {
	d, _ := newTestDisplay(t)
	conf := rgbaConfig(t, d)
	conf.Kinds |= config.Pixmap

	pixmap := native.Buffer{
		Format: format.RGBA8888,
		Width:  2,
		Height: 2,
		Stride: 2,
		Bits:   make([]byte, 16),
	}
	s, err := d.CreatePixmapSurface(conf, &pixmap, Attribs{})
	if err != nil {
		t.Fatalf("CreatePixmapSurface: %v", err)
	}
	defer s.Destroy()

	frame := bytes.Repeat([]byte{7}, 16)
	if err := s.Present(frame); err != nil {
		t.Fatalf("Present: %v", err)
	}
	if !bytes.Equal(pixmap.Bits, frame) {
		t.Error("pixmap does not hold the presented frame")
	}
}

func TestQuery(t *testing.T) {
	d, _ := newTestDisplay(t)
	conf := rgbaConfig(t, d)
	win := newFakeWindow(format.RGBA8888, 4, 4, 4)

	s, err := d.CreateWindowSurface(conf, win, Attribs{})
	if err != nil {
		t.Fatalf("CreateWindowSurface: %v", err)
	}
	defer s.Destroy()

	tests := []struct {
		attr Attrib
		want int
	}{
		{ConfigID, conf.ID},
		{SwapInterval, 1},
		{PostSubBufferSupported, 1},
		{Colorspace, int(config.Linear)},
		{Kind, int(config.Window)},
		{BufferSize, 64},
		{TextureFormat, int(gputypes.TextureFormatRGBA8Unorm)},
	}
	for _, tt := range tests {
		got, err := s.Query(tt.attr)
		if err != nil {
			t.Errorf("Query(%v): %v", tt.attr, err)
			continue
		}
		if got != tt.want {
			t.Errorf("Query(%v) = %d, want %d", tt.attr, got, tt.want)
		}
	}

	var berr BadAttributeError
	if _, err := s.Query(Attrib(99)); !errors.As(err, &berr) {
		t.Errorf("Query(99) err = %v, want BadAttributeError", err)
	}
}

func TestTerminate(t *testing.T) {
	d, _ := newTestDisplay(t)
	conf := rgbaConfig(t, d)
	win := newFakeWindow(format.RGBA8888, 4, 4, 4)

	for i := 0; i < 3; i++ {
		_, err := d.CreateWindowSurface(conf, win, Attribs{})
		if err != nil {
			t.Fatalf("CreateWindowSurface: %v", err)
		}
	}
	if win.refs != 3 {
		t.Fatalf("refs = %d, want 3", win.refs)
	}

	d.Terminate()
	if win.refs != 0 {
		t.Errorf("refs after Terminate = %d, want 0", win.refs)
	}
	if _, err := d.CreatePbufferSurface(conf, Attribs{}); !errors.Is(err, ErrTerminated) {
		t.Errorf("err = %v, want ErrTerminated", err)
	}
}

func TestInitializeNoConfigs(t *testing.T) {
	_, err := Initialize(&fakeDriver{}, nil)
	var nerr config.NoConfigError
	if !errors.As(err, &nerr) {
		t.Errorf("err = %v, want NoConfigError", err)
	}
}

func TestCapability(t *testing.T) {
	d, _ := newTestDisplay(t)
	if d.Capability(CapRGBAOrdering) != 1 {
		t.Error("RGBA ordering should be supported")
	}
	if d.Capability(Capability(42)) != 0 {
		t.Error("unknown capability should report 0")
	}
}
