package format

import (
	"encoding/binary"
	"fmt"
	"image"
	"image/color"
	"image/draw"

	xformat "deedles.dev/ximage/format"
)

// Pixel is a packed pixel encoding described by a Layout. It
// implements the ximage Format interface, so its pixels can be read and
// written through ximage's Image, Model, and Color types.
//
// Channels are stored alpha-premultiplied, least significant byte
// first. Bits that no channel covers are set on write.
type Pixel struct {
	Layout Layout
	Bytes  int
}

// Pixel returns the packed encoding of f, if it has one.
func (f Format) Pixel() (Pixel, bool) {
	layout, ok := f.Layout()
	if !ok {
		return Pixel{}, false
	}
	return Pixel{Layout: layout, Bytes: BytesPerPixel(f)}, true
}

func (p Pixel) Size() int { return p.Bytes }

func (p Pixel) load(data []byte) uint32 {
	if p.Bytes == 2 {
		return uint32(binary.LittleEndian.Uint16(data))
	}
	return binary.LittleEndian.Uint32(data)
}

func (p Pixel) store(data []byte, v uint32) {
	if p.Bytes == 2 {
		binary.LittleEndian.PutUint16(data, uint16(v))
		return
	}
	binary.LittleEndian.PutUint32(data, v)
}

func (p Pixel) Read(data []byte) (r, g, b, a uint32) {
	v := p.load(data)

	var c [4]uint32
	for i, shift := range p.Layout.Shifts {
		size := p.Layout.Sizes[i]
		if (shift < 0) || (size == 0) {
			c[i] = 0xFFFF
			continue
		}
		top := uint32(1)<<size - 1
		c[i] = (v >> shift & top) * 0xFFFF / top
	}
	return c[0], c[1], c[2], c[3]
}

func (p Pixel) Write(buf []byte, r, g, b, a uint32) {
	c := [4]uint32{r, g, b, a}

	var v, used uint32
	for i, shift := range p.Layout.Shifts {
		size := p.Layout.Sizes[i]
		if (shift < 0) || (size == 0) {
			continue
		}
		top := uint32(1)<<size - 1
		v |= (c[i] >> (16 - size)) << shift
		used |= top << shift
	}

	all := uint32(1)<<(8*p.Bytes) - 1
	if p.Bytes >= 4 {
		all = ^uint32(0)
	}
	p.store(buf, v|(all&^used))
}

// Image returns an image that reads and writes pix directly. stride
// is counted in pixels. Buffers whose rows have no padding are
// returned as ximage images; the rest as *Strided.
func Image(f Format, pix []byte, stride, width, height int) (draw.Image, error) {
	size, err := BufferSize(f, stride, height)
	if err != nil {
		return nil, err
	}
	if len(pix) < size {
		return nil, fmt.Errorf("%v buffer of %v bytes is smaller than %v", f, len(pix), size)
	}

	p, ok := f.Pixel()
	if !ok {
		return nil, UnsupportedFormatError{Format: f}
	}

	r := image.Rect(0, 0, width, height)
	if stride == width {
		return &xformat.Image{Format: p, Rect: r, Pix: pix[:size]}, nil
	}
	return &Strided{Format: p, Pix: pix[:size], Stride: stride * p.Bytes, Rect: r}, nil
}

// Strided is an ximage-style image whose rows may be longer than its
// width.
type Strided struct {
	Format xformat.Format
	// Pix holds the image's pixels. The pixel at (x, y) starts at
	// Pix[(y-Rect.Min.Y)*Stride + (x-Rect.Min.X)*Format.Size()].
	Pix []byte
	// Stride is the Pix stride (in bytes) between vertically adjacent pixels.
	Stride int
	Rect   image.Rectangle
}

func (img *Strided) Bounds() image.Rectangle { return img.Rect }

func (img *Strided) ColorModel() color.Model { return xformat.Model{Format: img.Format} }

// PixOffset returns the index of the first element of Pix that corresponds to
// the pixel at (x, y).
func (img *Strided) PixOffset(x, y int) int {
	return (y-img.Rect.Min.Y)*img.Stride + (x-img.Rect.Min.X)*img.Format.Size()
}

func (img *Strided) At(x, y int) color.Color {
	c := xformat.Color{Format: img.Format}
	if !(image.Point{x, y}.In(img.Rect)) {
		return &c
	}

	i := img.PixOffset(x, y)
	copy(c.Slice(), img.Pix[i:])
	return &c
}

func (img *Strided) Set(x, y int, c color.Color) {
	if !(image.Point{x, y}.In(img.Rect)) {
		return
	}

	size := img.Format.Size()
	i := img.PixOffset(x, y)
	r, g, b, a := c.RGBA()
	img.Format.Write(img.Pix[i:i+size:i+size], r, g, b, a)
}

// SubImage returns an image representing the portion of the image p visible
// through r. The returned value shares pixels with the original image.
func (img *Strided) SubImage(r image.Rectangle) image.Image {
	r = r.Intersect(img.Rect)
	if r.Empty() {
		return &Strided{Format: img.Format}
	}
	i := img.PixOffset(r.Min.X, r.Min.Y)
	return &Strided{
		Format: img.Format,
		Pix:    img.Pix[i:],
		Stride: img.Stride,
		Rect:   r,
	}
}
