// Package heightfield provides the scalar elevation grid shared by the generators.
package heightfield

import (
	"errors"
	"fmt"
	"math"
)

var (
	// ErrInvalidSize is returned when a grid dimension is zero or negative.
	ErrInvalidSize = errors.New("heightfield: invalid size")
	// ErrOutOfBounds is returned when a crop exceeds the source grid.
	ErrOutOfBounds = errors.New("heightfield: out of bounds")
)

// Grid is a row-major 2D array of elevations (index = x + y*width).
//
// Samples are only reachable through the clamped or wrapped accessors;
// callers pick the discipline that matches their algorithm.
type Grid struct {
	width  int
	height int
	data   []float32
}

// New allocates a zeroed grid.
func New(width, height int) (*Grid, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrInvalidSize, width, height)
	}
	return &Grid{
		width:  width,
		height: height,
		data:   make([]float32, width*height),
	}, nil
}

// FromValues wraps a copy of values as a width x height grid.
func FromValues(width, height int, values []float32) (*Grid, error) {
	g, err := New(width, height)
	if err != nil {
		return nil, err
	}
	if len(values) != width*height {
		return nil, fmt.Errorf("%w: got %d values for %dx%d", ErrInvalidSize, len(values), width, height)
	}
	copy(g.data, values)
	return g, nil
}

// Width returns the number of columns.
func (g *Grid) Width() int { return g.width }

// Height returns the number of rows.
func (g *Grid) Height() int { return g.height }

// Len returns the sample count, Width*Height.
func (g *Grid) Len() int { return len(g.data) }

// ClampedAt returns the sample at (x,y) and false when the coordinate lies outside the grid.
func (g *Grid) ClampedAt(x, y int) (float32, bool) {
	if x < 0 || y < 0 || x >= g.width || y >= g.height {
		return 0, false
	}
	return g.data[x+y*g.width], true
}

// SetClamped writes v at (x,y). Out-of-range writes are dropped and report false.
func (g *Grid) SetClamped(x, y int, v float32) bool {
	if x < 0 || y < 0 || x >= g.width || y >= g.height {
		return false
	}
	g.data[x+y*g.width] = v
	return true
}

// WrappedAt returns the sample at (x,y) using toroidal addressing.
func (g *Grid) WrappedAt(x, y int) float32 {
	return g.data[g.wrappedIndex(x, y)]
}

// SetWrapped writes v at (x,y) using toroidal addressing.
func (g *Grid) SetWrapped(x, y int, v float32) {
	g.data[g.wrappedIndex(x, y)] = v
}

func (g *Grid) wrappedIndex(x, y int) int {
	return wrapIndex(x, g.width) + wrapIndex(y, g.height)*g.width
}

func wrapIndex(x, max int) int {
	x %= max
	if x < 0 {
		x += max
	}
	return x
}

// MinMax returns the smallest and largest sample.
func (g *Grid) MinMax() (float32, float32) {
	minV := float32(math.MaxFloat32)
	maxV := float32(-math.MaxFloat32)
	for _, v := range g.data {
		if v < minV {
			minV = v
		}
		if v > maxV {
			maxV = v
		}
	}
	return minV, maxV
}

// Normalize remaps all samples linearly so the minimum becomes 0 and the maximum 1.
// A flat field (min == max) is mapped to all zeros.
func (g *Grid) Normalize() {
	minV, maxV := g.MinMax()
	span := maxV - minV
	if span == 0 {
		for i := range g.data {
			g.data[i] = 0
		}
		return
	}
	for i, v := range g.data {
		g.data[i] = (v - minV) / span
	}
}

// Crop copies the [0,width) x [0,height) corner of g into a new grid.
// No resampling happens; values are copied as-is.
func (g *Grid) Crop(width, height int) (*Grid, error) {
	if width > g.width || height > g.height {
		return nil, fmt.Errorf("%w: crop %dx%d from %dx%d", ErrOutOfBounds, width, height, g.width, g.height)
	}
	out, err := New(width, height)
	if err != nil {
		return nil, err
	}
	for y := 0; y < height; y++ {
		copy(out.data[y*width:(y+1)*width], g.data[y*g.width:y*g.width+width])
	}
	return out, nil
}

// Values returns a copy of the row-major samples.
func (g *Grid) Values() []float32 {
	out := make([]float32, len(g.data))
	copy(out, g.data)
	return out
}

// Clone returns an independent copy of g.
func (g *Grid) Clone() *Grid {
	return &Grid{width: g.width, height: g.height, data: g.Values()}
}
