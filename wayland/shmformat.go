package wayland

import (
	"fmt"

	"deedles.dev/swpresent/format"
)

// ShmFormat is a wl_shm pixel format. Most are DRM fourcc codes.
type ShmFormat uint32

const (
	ShmFormatARGB8888 ShmFormat = 0
	ShmFormatXRGB8888 ShmFormat = 1
	ShmFormatRGB565   ShmFormat = 0x36314752
	ShmFormatABGR8888 ShmFormat = 0x34324241
	ShmFormatXBGR8888 ShmFormat = 0x34324258
)

// wl_shm formats name channels from the most significant bit of a
// little-endian word, so their byte order is the reverse of the name.
var shmFormats = map[format.Format]ShmFormat{
	format.RGBA8888: ShmFormatABGR8888,
	format.RGBX8888: ShmFormatXBGR8888,
	format.RGB565:   ShmFormatRGB565,
	format.BGRA8888: ShmFormatARGB8888,
}

// ShmFormatFor returns the wl_shm format with the same memory layout
// as f.
func ShmFormatFor(f format.Format) (ShmFormat, bool) {
	sf, ok := shmFormats[f]
	return sf, ok
}

func (f ShmFormat) String() string {
	switch f {
	case ShmFormatARGB8888:
		return "argb8888"
	case ShmFormatXRGB8888:
		return "xrgb8888"
	case ShmFormatRGB565:
		return "rgb565"
	case ShmFormatABGR8888:
		return "abgr8888"
	case ShmFormatXBGR8888:
		return "xbgr8888"
	default:
		return fmt.Sprintf("ShmFormat(%#x)", uint32(f))
	}
}
