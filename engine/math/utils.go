package math

import (
	m "math"

	"golang.org/x/exp/constraints"
)

// Clamp returns the value `f` clamped to the range [low, high].
// It works for any numeric type (integers and floats).
func Clamp[T constraints.Ordered](f, low, high T) T {
	if f < low {
		return low
	}
	if f > high {
		return high
	}
	return f
}

// MipCount returns the number of levels of a full mip chain for the extent.
func MipCount(width, height uint32) uint32 {
	largest := max(width, height)
	if largest == 0 {
		return 1
	}
	return uint32(m.Floor(m.Log2(float64(largest)))) + 1
}

// HalveExtent is the per-level reduction used when building mip chains.
func HalveExtent(dim int32) int32 {
	if dim > 1 {
		return dim / 2
	}
	return 1
}

// MipChainExtents returns the extent of every level for a chain of the given
// length, halving the previous level each step. Integer halving lands on
// max(1, dim>>level) at every level.
func MipChainExtents(width, height int32, levels uint32) [][2]int32 {
	out := make([][2]int32, 0, levels)
	w, h := width, height
	for i := uint32(0); i < levels; i++ {
		out = append(out, [2]int32{w, h})
		w, h = HalveExtent(w), HalveExtent(h)
	}
	return out
}

// RevertGamma converts an sRGB encoded channel to linear space.
func RevertGamma(c float32) float32 {
	return float32(m.Pow(float64(c), 2.2))
}

// AlignUp rounds size up to a multiple of alignment. Alignment must be a power of two.
func AlignUp[T constraints.Unsigned](size, alignment T) T {
	if alignment == 0 {
		return size
	}
	return (size + alignment - 1) &^ (alignment - 1)
}
