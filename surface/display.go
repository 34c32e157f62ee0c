// Package surface binds rendering surfaces to host windows and
// presents the frames a software driver renders into them.
//
// A Display owns the configs built from a Driver's framebuffer
// configurations. Surfaces created on it hold a reference to their
// window for their whole lifetime. Presenting a frame locks the
// window's next buffer, copies the whole frame into it, and posts it
// back to the host.
//
// Nothing in this package starts goroutines or locks anything of its
// own. A Surface must only be used from one goroutine at a time.
package surface

import (
	"fmt"
	"log/slog"

	"deedles.dev/swpresent/config"
	"deedles.dev/swpresent/format"
	"deedles.dev/swpresent/internal/debug"
	"deedles.dev/swpresent/internal/set"
)

// Driver is a rendering driver.
type Driver interface {
	// Name identifies the driver in logs.
	Name() string

	// Configs returns the framebuffer configurations the driver can
	// render with.
	Configs() []*config.DriverConfig

	// CreateDrawable creates the driver's half of a surface. The
	// drawable finds out about the surface and presents into it
	// through loader.
	CreateDrawable(dc *config.DriverConfig, loader Loader) (Drawable, error)
}

// Drawable is the driver-side resource tied to a Surface.
type Drawable interface {
	// SwapBuffers presents the drawable's back buffer.
	SwapBuffers() error

	// Destroy frees the drawable.
	Destroy()
}

// Loader is the view of a Surface given to its Drawable.
type Loader interface {
	// Geometry returns the surface's current bounds.
	Geometry() (x, y, w, h int)

	// BufferInfo describes the buffer frames are presented into.
	BufferInfo() (f format.Format, stride, height int)

	// Present copies a frame into the surface's buffer and displays
	// it.
	Present(data []byte) error
}

// Options configure a Display.
type Options struct {
	// Logger is used instead of the module's shared logger if it is
	// not nil.
	Logger *slog.Logger
}

type Display struct {
	driver     Driver
	configs    []*config.Config
	surfaces   set.Set[*Surface]
	log        *slog.Logger
	terminated bool
}

// Initialize creates a display for drv. It fails if none of the
// driver's configurations can be used with a host format.
func Initialize(drv Driver, opts *Options) (*Display, error) {
	log := debug.Logger()
	if (opts != nil) && (opts.Logger != nil) {
		log = opts.Logger
	}

	configs, err := config.Enumerate(drv.Configs())
	if err != nil {
		return nil, fmt.Errorf("enumerate configs for %v: %w", drv.Name(), err)
	}

	log.Info("display initialized", "driver", drv.Name(), "configs", len(configs))

	return &Display{
		driver:   drv,
		configs:  configs,
		surfaces: set.New[*Surface](),
		log:      log,
	}, nil
}

// Configs returns the display's configs in priority order.
func (d *Display) Configs() []*config.Config {
	return append([]*config.Config(nil), d.configs...)
}

// ChooseConfig returns the configs that satisfy attrs in priority
// order.
func (d *Display) ChooseConfig(attrs config.Attribs) []*config.Config {
	return config.Choose(d.configs, attrs)
}

// Capability answers a driver's question about what the display
// supports.
func (d *Display) Capability(c Capability) uint {
	switch c {
	case CapRGBAOrdering:
		return 1
	default:
		return 0
	}
}

// Surfaces returns the number of surfaces that have been created and
// not yet destroyed.
func (d *Display) Surfaces() int {
	return d.surfaces.Len()
}

// Terminate destroys every surface that is still alive. The display
// can't be used to create surfaces afterwards.
func (d *Display) Terminate() {
	if d.terminated {
		return
	}
	d.terminated = true

	for s := range d.surfaces {
		s.Destroy()
	}
	d.log.Info("display terminated", "driver", d.driver.Name())
}
