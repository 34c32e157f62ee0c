package surface

import (
	"fmt"

	"deedles.dev/swpresent/config"
)

// Attrib is a surface attribute that can be queried.
type Attrib int

const (
	Width Attrib = iota + 1
	Height
	ConfigID
	SwapInterval
	PostSubBufferSupported
	Colorspace
	Kind
	BufferSize

	// TextureFormat is the gputypes.TextureFormat that the surface's
	// buffer can be uploaded as without conversion.
	TextureFormat
)

func (a Attrib) String() string {
	switch a {
	case Width:
		return "width"
	case Height:
		return "height"
	case ConfigID:
		return "config id"
	case SwapInterval:
		return "swap interval"
	case PostSubBufferSupported:
		return "post sub-buffer supported"
	case Colorspace:
		return "colorspace"
	case Kind:
		return "kind"
	case BufferSize:
		return "buffer size"
	case TextureFormat:
		return "texture format"
	default:
		return fmt.Sprintf("Attrib(%d)", int(a))
	}
}

// Attribs are the attributes a surface is created with.
type Attribs struct {
	// Width and Height give the size of pbuffer surfaces. They are
	// ignored for the other kinds.
	Width  int
	Height int

	Colorspace config.Colorspace
}

// Capability is a loader capability a driver can ask the display
// about.
type Capability int

const (
	// CapRGBAOrdering reports whether the display accepts configs with
	// RGBA channel ordering as well as BGRA.
	CapRGBAOrdering Capability = iota + 1
)

// The largest pbuffer that can be created.
const (
	MaxPbufferWidth  = 16384
	MaxPbufferHeight = 16384
)
