package config

import (
	"deedles.dev/swpresent/format"
	"deedles.dev/swpresent/internal/xslices"
)

// Attribs are the requirements passed to Choose. Zero values mean
// "don't care". Sizes are minimums.
type Attribs struct {
	ID           int
	RedSize      uint
	GreenSize    uint
	BlueSize     uint
	AlphaSize    uint
	DepthSize    int
	StencilSize  int
	Kinds        Kind
	NativeVisual format.Format
}

// Matches reports whether c satisfies attrs.
func (attrs Attribs) Matches(c *Config) bool {
	if (attrs.ID != 0) && (c.ID != attrs.ID) {
		return false
	}
	if (attrs.NativeVisual != 0) && (c.NativeVisual != attrs.NativeVisual) {
		return false
	}
	if c.Kinds&attrs.Kinds != attrs.Kinds {
		return false
	}

	sizes := c.Layout.Sizes
	return (sizes[0] >= attrs.RedSize) &&
		(sizes[1] >= attrs.GreenSize) &&
		(sizes[2] >= attrs.BlueSize) &&
		(sizes[3] >= attrs.AlphaSize) &&
		(c.DepthSize >= attrs.DepthSize) &&
		(c.StencilSize >= attrs.StencilSize)
}

// Choose returns the configs that match attrs, in their original
// order.
func Choose(configs []*Config, attrs Attribs) []*Config {
	return xslices.Filter(configs, attrs.Matches)
}
