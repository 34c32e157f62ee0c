package wire

import (
	"math"
	"strconv"
)

// Fixed is a signed 24.8 fixed-point number, the protocol's only
// non-integer argument type.
type Fixed int32

func FixedInt(v int) Fixed {
	return Fixed(v << 8)
}

// FixedFloat rounds v to the nearest representable value.
func FixedFloat(v float64) Fixed {
	return Fixed(math.Round(v * 256))
}

// Int returns the integer part of f, rounded towards negative
// infinity.
func (f Fixed) Int() int {
	return int(f >> 8)
}

// Frac returns the fractional part of f in 256ths. It is always
// non-negative, so that f == Int()*256 + Frac().
func (f Fixed) Frac() int {
	return int(f & 0xFF)
}

func (f Fixed) Float() float64 {
	return float64(f) / 256
}

func (f Fixed) String() string {
	return strconv.FormatFloat(f.Float(), 'f', -1, 64)
}
