package surface

import (
	"errors"
	"fmt"

	"deedles.dev/swpresent/config"
)

var (
	// ErrDestroyed is returned by operations on a destroyed Surface.
	ErrDestroyed = errors.New("surface destroyed")

	// ErrNoWindow is returned when a window surface is requested
	// without a window.
	ErrNoWindow = errors.New("no native window")

	// ErrTerminated is returned when creating a surface on a terminated
	// Display.
	ErrTerminated = errors.New("display terminated")
)

// AllocationError is returned when the resources backing a surface
// can't be obtained.
type AllocationError struct {
	Op  string
	Err error
}

func (err AllocationError) Error() string {
	return fmt.Sprintf("%v: allocation failed: %v", err.Op, err.Err)
}

func (err AllocationError) Unwrap() error {
	return err.Err
}

// ConfigMismatchError is returned when a config can't be used for the
// requested kind of surface in the requested colorspace.
type ConfigMismatchError struct {
	Config     int
	Kind       config.Kind
	Colorspace config.Colorspace
}

func (err ConfigMismatchError) Error() string {
	return fmt.Sprintf("config %v does not support %v surfaces in the %v colorspace", err.Config, err.Kind, err.Colorspace)
}

// SizeMismatchError is returned by Present when the frame it is given
// isn't exactly the size of the surface's buffer.
type SizeMismatchError struct {
	Want int
	Got  int
}

func (err SizeMismatchError) Error() string {
	return fmt.Sprintf("frame is %v bytes, buffer is %v bytes", err.Got, err.Want)
}

// BadAttributeError is returned by Query for an unknown attribute.
type BadAttributeError struct {
	Attrib Attrib
}

func (err BadAttributeError) Error() string {
	return fmt.Sprintf("bad surface attribute: %v", err.Attrib)
}
