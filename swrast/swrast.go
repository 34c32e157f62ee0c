// Package swrast is a small software rendering driver. It renders
// into a back buffer in the surface's own pixel format and presents
// it by copying it into the surface on SwapBuffers.
package swrast

import (
	"errors"
	"fmt"
	"image"
	"image/color"

	"deedles.dev/swpresent/config"
	"deedles.dev/swpresent/format"
	"deedles.dev/swpresent/internal/debug"
	"deedles.dev/swpresent/procaddr"
	"deedles.dev/swpresent/surface"
	"golang.org/x/image/draw"
)

var (
	// ErrNoCurrent is returned by drawing entry points when no
	// drawable is current.
	ErrNoCurrent = errors.New("no current drawable")

	// ErrDestroyed is returned when drawing into a destroyed drawable.
	ErrDestroyed = errors.New("drawable destroyed")
)

type Driver struct {
	current    *Drawable
	clearColor color.Color
}

var _ surface.Driver = (*Driver)(nil)

func New() *Driver {
	return &Driver{clearColor: color.Transparent}
}

func (drv *Driver) Name() string {
	return "swrast"
}

// Configs returns a configuration for every visual layout, single and
// double buffered, linear and sRGB, with and without a 24 bit depth
// and 8 bit stencil buffer.
func (drv *Driver) Configs() []*config.DriverConfig {
	var configs []*config.DriverConfig
	for _, visual := range config.Visuals {
		layout, ok := visual.Layout()
		if !ok {
			continue
		}

		for _, ds := range [][2]int{{0, 0}, {24, 8}} {
			for _, double := range []bool{false, true} {
				for _, srgb := range []bool{false, true} {
					configs = append(configs, &config.DriverConfig{
						Layout:       layout,
						DepthSize:    ds[0],
						StencilSize:  ds[1],
						DoubleBuffer: double,
						SRGBCapable:  srgb,
					})
				}
			}
		}
	}
	return configs
}

func (drv *Driver) CreateDrawable(dc *config.DriverConfig, loader surface.Loader) (surface.Drawable, error) {
	visual, ok := visualFor(dc.Layout)
	if !ok {
		return nil, fmt.Errorf("no pixel format with layout %+v", dc.Layout)
	}

	return &Drawable{
		driver: drv,
		dc:     dc,
		visual: visual,
		loader: loader,
	}, nil
}

func visualFor(l format.Layout) (format.Format, bool) {
	for _, f := range config.Visuals {
		fl, ok := f.Layout()
		if ok && (fl == l) {
			return f, true
		}
	}
	return 0, false
}

// MakeCurrent makes d the target of the driver's drawing entry
// points. A nil d leaves nothing current.
func (drv *Driver) MakeCurrent(d surface.Drawable) error {
	if d == nil {
		drv.current = nil
		return nil
	}

	sd, ok := d.(*Drawable)
	if !ok || (sd.driver != drv) {
		return fmt.Errorf("drawable %T does not belong to this driver", d)
	}
	if sd.destroyed {
		return ErrDestroyed
	}
	drv.current = sd
	return nil
}

// Current returns the current drawable, or nil.
func (drv *Driver) Current() *Drawable {
	return drv.current
}

// ClearColor sets the color Clear fills with. Components are clamped
// to [0, 1].
func (drv *Driver) ClearColor(r, g, b, a float32) {
	drv.clearColor = color.NRGBA{
		R: unorm(r),
		G: unorm(g),
		B: unorm(b),
		A: unorm(a),
	}
}

func unorm(v float32) uint8 {
	return uint8(min(max(v, 0), 1)*255 + 0.5)
}

// Clear fills the current drawable's back buffer with the clear
// color.
func (drv *Driver) Clear() error {
	if drv.current == nil {
		return ErrNoCurrent
	}
	return drv.current.Fill(drv.clearColor)
}

// DrawImage scales src into r of the current drawable's back buffer.
func (drv *Driver) DrawImage(src image.Image, r image.Rectangle) error {
	if drv.current == nil {
		return ErrNoCurrent
	}
	return drv.current.DrawImage(src, r)
}

// SwapBuffers presents the current drawable.
func (drv *Driver) SwapBuffers() error {
	if drv.current == nil {
		return ErrNoCurrent
	}
	return drv.current.SwapBuffers()
}

// Procs returns the driver's drawing entry points by name.
func (drv *Driver) Procs() procaddr.DispatchTable {
	return procaddr.DispatchTable{
		"glClearColor":  drv.ClearColor,
		"glClear":       drv.Clear,
		"glDrawImage":   drv.DrawImage,
		"glSwapBuffers": drv.SwapBuffers,
	}
}

// Drawable is a back buffer tied to a surface.
type Drawable struct {
	driver *Driver
	dc     *config.DriverConfig
	visual format.Format
	loader surface.Loader

	// shape is the format, stride, and buffer height the back buffer
	// was allocated for, followed by the visible width and height.
	shape     [5]int
	pix       []byte
	img       draw.Image
	destroyed bool
}

// Back returns the back buffer, reallocating it first if the
// surface's buffer has changed size or format. Its contents are lost
// when that happens.
func (d *Drawable) Back() (draw.Image, error) {
	if d.destroyed {
		return nil, ErrDestroyed
	}

	_, _, w, h := d.loader.Geometry()
	f, stride, bh := d.loader.BufferInfo()
	if format.BytesPerPixel(f) == 0 {
		// Nothing has been locked yet, or the host uses a format
		// frames can't be rendered in.
		f, stride, bh = d.visual, w, h
	}
	w = min(w, stride)
	h = min(h, bh)

	shape := [5]int{int(f), stride, bh, w, h}
	if (d.img != nil) && (shape == d.shape) {
		return d.img, nil
	}

	size, err := format.BufferSize(f, stride, bh)
	if err != nil {
		return nil, err
	}
	pix := make([]byte, size)
	img, err := format.Image(f, pix, stride, w, h)
	if err != nil {
		return nil, err
	}

	debug.Logger().Debug("back buffer allocated",
		"format", f,
		"stride", stride,
		"width", w,
		"height", h,
		"size", size,
	)

	d.shape = shape
	d.pix = pix
	d.img = img
	return img, nil
}

// Fill fills the back buffer with c.
func (d *Drawable) Fill(c color.Color) error {
	img, err := d.Back()
	if err != nil {
		return err
	}
	draw.Draw(img, img.Bounds(), image.NewUniform(c), image.Point{}, draw.Src)
	return nil
}

// DrawImage scales src into r of the back buffer, blending it over
// what is already there.
func (d *Drawable) DrawImage(src image.Image, r image.Rectangle) error {
	img, err := d.Back()
	if err != nil {
		return err
	}
	draw.ApproxBiLinear.Scale(img, r, src, src.Bounds(), draw.Over, nil)
	return nil
}

// SwapBuffers presents the back buffer through the surface.
func (d *Drawable) SwapBuffers() error {
	_, err := d.Back()
	if err != nil {
		return err
	}
	return d.loader.Present(d.pix)
}

func (d *Drawable) Destroy() {
	if d.destroyed {
		return
	}
	d.destroyed = true
	if d.driver.current == d {
		d.driver.current = nil
	}
	d.pix = nil
	d.img = nil
}
