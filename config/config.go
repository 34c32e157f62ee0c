// Package config enumerates the rendering configurations that can be
// used to draw into host windows.
//
// Configurations are built by matching the configurations a rendering
// driver supports against the pixel formats the host can display. The
// order of the result matters: many clients pick the first
// configuration whose channel sizes match their window while ignoring
// the channel order, so every configuration for a format is listed
// before any configuration for the next format in the priority list.
package config

import (
	"fmt"
	"strings"

	"deedles.dev/swpresent/format"
	"deedles.dev/swpresent/internal/debug"
	"deedles.dev/swpresent/internal/set"
	"github.com/gogpu/gputypes"
)

// Kind is a bitmask of surface kinds.
type Kind uint

const (
	Window Kind = 1 << iota
	Pixmap
	Pbuffer
)

func (k Kind) String() string {
	if k == 0 {
		return "none"
	}

	var names []string
	for _, n := range []struct {
		k    Kind
		name string
	}{{Window, "window"}, {Pixmap, "pixmap"}, {Pbuffer, "pbuffer"}} {
		if k&n.k != 0 {
			names = append(names, n.name)
			k &^= n.k
		}
	}
	if k != 0 {
		names = append(names, fmt.Sprintf("%#x", uint(k)))
	}
	return strings.Join(names, "|")
}

// Colorspace is the colorspace a surface is rendered in.
type Colorspace int

const (
	Linear Colorspace = iota
	SRGB
)

func (cs Colorspace) String() string {
	switch cs {
	case Linear:
		return "linear"
	case SRGB:
		return "sRGB"
	default:
		return fmt.Sprintf("Colorspace(%d)", int(cs))
	}
}

// DriverConfig is a framebuffer configuration supported by a rendering
// driver.
type DriverConfig struct {
	Layout       format.Layout
	DepthSize    int
	StencilSize  int
	Samples      int
	DoubleBuffer bool
	SRGBCapable  bool
}

// Config is a configuration that can be used to create surfaces.
type Config struct {
	ID int

	// NativeVisual is the host pixel format the configuration renders
	// in.
	NativeVisual format.Format

	// Texture is the GPU texture format with the same memory layout
	// as NativeVisual, or TextureFormatUndefined if there is none.
	Texture gputypes.TextureFormat

	Layout      format.Layout
	DepthSize   int
	StencilSize int
	Samples     int
	Kinds       Kind

	// drivers is indexed by [double buffered][sRGB].
	drivers [2][2]*DriverConfig
}

func index(b bool) int {
	if b {
		return 1
	}
	return 0
}

// DriverConfig returns the driver configuration to use for a surface
// of the given kind and colorspace. Window surfaces are double
// buffered and everything else is single buffered.
func (c *Config) DriverConfig(kind Kind, cs Colorspace) (*DriverConfig, bool) {
	if c.Kinds&kind == 0 {
		return nil, false
	}
	dc := c.drivers[index(kind == Window)][index(cs == SRGB)]
	return dc, dc != nil
}

func (c *Config) String() string {
	return fmt.Sprintf("config %d (%v, depth %d, stencil %d, %v)", c.ID, c.NativeVisual, c.DepthSize, c.StencilSize, c.Kinds)
}

// Visuals lists, in priority order, the host formats that
// configurations are generated for. BGRA_8888 must come after
// RGBA_8888: it is only used when no RGBA_8888 configuration exists,
// as BGRA configurations are unreliable on the hosts this targets.
var Visuals = []format.Format{
	format.RGBA8888,
	format.RGBX8888,
	format.RGB565,
	format.BGRA8888,
}

// SurfaceKinds is the set of surface kinds generated configurations
// support.
const SurfaceKinds = Window | Pbuffer

type key struct {
	visual  format.Format
	depth   int
	stencil int
	samples int
}

// Enumerate builds the list of configurations from a driver's
// configurations. Driver configurations that differ only in double
// buffering or sRGB support are merged into a single configuration.
func Enumerate(drivers []*DriverConfig) ([]*Config, error) {
	var configs []*Config
	byKey := make(map[key]*Config)
	registered := set.New[format.Format]()

	for _, visual := range Visuals {
		if (visual == format.BGRA8888) && registered.Has(format.RGBA8888) {
			debug.Logger().Debug("skipping BGRA visual, RGBA is available")
			debug.Logger().Warn("no driver config supports native format", "format", visual)
			continue
		}

		layout, ok := visual.Layout()
		if !ok {
			return nil, format.UnsupportedFormatError{Format: visual}
		}

		var count int
		for _, dc := range drivers {
			if dc.Layout != layout {
				continue
			}

			k := key{
				visual:  visual,
				depth:   dc.DepthSize,
				stencil: dc.StencilSize,
				samples: dc.Samples,
			}
			conf, ok := byKey[k]
			if !ok {
				conf = &Config{
					ID:           len(configs) + 1,
					NativeVisual: visual,
					Texture:      visual.TextureFormat(),
					Layout:       layout,
					DepthSize:    dc.DepthSize,
					StencilSize:  dc.StencilSize,
					Samples:      dc.Samples,
					Kinds:        SurfaceKinds,
				}
				byKey[k] = conf
				configs = append(configs, conf)
			}

			slot := &conf.drivers[index(dc.DoubleBuffer)][index(dc.SRGBCapable)]
			if *slot == nil {
				*slot = dc
			}
			count++
		}

		if count == 0 {
			debug.Logger().Warn("no driver config supports native format", "format", visual)
			continue
		}
		registered.Add(visual)
	}

	if len(configs) == 0 {
		return nil, NoConfigError{Drivers: len(drivers)}
	}
	return configs, nil
}

// NoConfigError is returned by Enumerate when none of the driver's
// configurations match a host format.
type NoConfigError struct {
	Drivers int
}

func (err NoConfigError) Error() string {
	return fmt.Sprintf("failed to create any config from %v driver configs", err.Drivers)
}
