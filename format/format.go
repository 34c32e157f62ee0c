// Package format describes the pixel formats used by host window
// buffers and how many bytes each of them occupies.
package format

import (
	"fmt"

	"github.com/gogpu/gputypes"
)

// Format is a host pixel format code. The numbering follows the
// graphics HAL used by mobile window systems.
type Format int32

const (
	RGBA8888              Format = 1
	RGBX8888              Format = 2
	RGB888                Format = 3
	RGB565                Format = 4
	BGRA8888              Format = 5
	YCbCr422SP            Format = 16
	YCrCb420SP            Format = 17
	YCbCr422I             Format = 20
	RGBAFP16              Format = 22
	Raw16                 Format = 32
	Blob                  Format = 33
	ImplementationDefined Format = 34
	YCbCr420888           Format = 35
	RawOpaque             Format = 36
	Raw10                 Format = 37
	Raw12                 Format = 38
	RGBA1010102           Format = 43
	Y8                    Format = 0x20203859
	Y16                   Format = 0x20363159
	YV12                  Format = 0x32315659
)

var names = map[Format]string{
	RGBA8888:              "RGBA_8888",
	RGBX8888:              "RGBX_8888",
	RGB888:                "RGB_888",
	RGB565:                "RGB_565",
	BGRA8888:              "BGRA_8888",
	YCbCr422SP:            "YCBCR_422_SP",
	YCrCb420SP:            "YCRCB_420_SP",
	YCbCr422I:             "YCBCR_422_I",
	RGBAFP16:              "RGBA_FP16",
	Raw16:                 "RAW16",
	Blob:                  "BLOB",
	ImplementationDefined: "IMPLEMENTATION_DEFINED",
	YCbCr420888:           "YCBCR_420_888",
	RawOpaque:             "RAW_OPAQUE",
	Raw10:                 "RAW10",
	Raw12:                 "RAW12",
	RGBA1010102:           "RGBA_1010102",
	Y8:                    "Y8",
	Y16:                   "Y16",
	YV12:                  "YV12",
}

func (f Format) String() string {
	if name, ok := names[f]; ok {
		return name
	}
	return fmt.Sprintf("Format(%#x)", int32(f))
}

// BytesPerPixel returns the number of bytes a single pixel of f
// occupies in a window buffer. It returns 0 for formats that can't be
// used to size a buffer, which includes every planar and raw format.
func BytesPerPixel(f Format) int {
	switch f {
	case RGBAFP16:
		return 8
	case RGBA8888, ImplementationDefined, RGBX8888, BGRA8888, RGBA1010102:
		// IMPLEMENTATION_DEFINED buffers are allocated as RGBX_8888 by
		// the allocators this is used with.
		return 4
	case RGB565:
		return 2
	default:
		return 0
	}
}

// BufferSize returns the size in bytes of a buffer of f with the given
// stride, in pixels, and height.
func BufferSize(f Format, stride, height int) (int, error) {
	bpp := BytesPerPixel(f)
	if bpp == 0 {
		return 0, UnsupportedFormatError{Format: f}
	}
	return bpp * stride * height, nil
}

// Layout describes where each of a format's red, green, blue, and
// alpha channels lives inside a pixel. A shift of -1 marks an absent
// channel.
type Layout struct {
	Shifts [4]int
	Sizes  [4]uint
}

// Bits returns the total number of color bits in the layout.
func (l Layout) Bits() uint {
	return l.Sizes[0] + l.Sizes[1] + l.Sizes[2] + l.Sizes[3]
}

// Layout returns the channel layout of f. Only formats that can back
// a rendering config have one.
func (f Format) Layout() (Layout, bool) {
	switch f {
	case RGBA8888:
		return Layout{Shifts: [4]int{0, 8, 16, 24}, Sizes: [4]uint{8, 8, 8, 8}}, true
	case RGBX8888:
		return Layout{Shifts: [4]int{0, 8, 16, -1}, Sizes: [4]uint{8, 8, 8, 0}}, true
	case RGB565:
		return Layout{Shifts: [4]int{11, 5, 0, -1}, Sizes: [4]uint{5, 6, 5, 0}}, true
	case BGRA8888:
		return Layout{Shifts: [4]int{16, 8, 0, 24}, Sizes: [4]uint{8, 8, 8, 8}}, true
	default:
		return Layout{}, false
	}
}

// TextureFormat returns the GPU texture format with the same memory
// layout as f, or TextureFormatUndefined if there isn't one.
func (f Format) TextureFormat() gputypes.TextureFormat {
	switch f {
	case RGBA8888, RGBX8888:
		return gputypes.TextureFormatRGBA8Unorm
	case BGRA8888:
		return gputypes.TextureFormatBGRA8Unorm
	default:
		return gputypes.TextureFormatUndefined
	}
}

// UnsupportedFormatError is returned when a buffer has a format that
// isn't in the format table.
type UnsupportedFormatError struct {
	Format Format
}

func (err UnsupportedFormatError) Error() string {
	return fmt.Sprintf("unsupported pixel format: %v", err.Format)
}
