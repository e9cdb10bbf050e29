// Package normalmap derives per-sample surface normals from square heightfields.
package normalmap

import (
	"errors"
	"fmt"
	"math"
)

// ErrLengthMismatch is returned when the height slice is not length*length samples.
var ErrLengthMismatch = errors.New("normalmap: height data does not match length")

// Vec3 is a 3D vector; normals produced by Generate have unit length.
type Vec3 struct {
	X, Y, Z float32
}

// Up is the normal of a flat surface.
var Up = Vec3{0, 0, 1}

// Generate estimates the normal of every sample of a length x length row-major
// heightfield from central differences. Edge samples substitute their own
// value for the missing neighbour.
func Generate(heights []float32, length int) ([]Vec3, error) {
	if length <= 0 {
		return nil, fmt.Errorf("%w: length %d", ErrLengthMismatch, length)
	}
	if len(heights) != length*length {
		return nil, fmt.Errorf("%w: got %d samples, want %d", ErrLengthMismatch, len(heights), length*length)
	}

	at := func(x, y int) float32 { return heights[x+y*length] }

	out := make([]Vec3, 0, len(heights))
	for y := 0; y < length; y++ {
		for x := 0; x < length; x++ {
			c := at(x, y)
			fx0, fx1, fy0, fy1 := c, c, c, c
			if x > 0 {
				fx0 = at(x-1, y)
			}
			if x < length-1 {
				fx1 = at(x+1, y)
			}
			if y > 0 {
				fy0 = at(x, y-1)
			}
			if y < length-1 {
				fy1 = at(x, y+1)
			}

			scaleX := positionScale(x, length)
			scaleY := positionScale(y, length)

			dx := float64(fx1-fx0) / (2 * scaleX)
			dy := float64(fy1-fy0) / (2 * scaleY)

			out = append(out, normalize(-dx, -dy, (scaleX+scaleY)/float64(length)))
		}
	}
	return out, nil
}

// positionScale remaps coord from [1,length] to [0,1], floored at the texel
// spacing so the first two columns never yield a zero or negative factor.
func positionScale(coord, length int) float64 {
	if length <= 1 {
		return 1
	}
	spacing := 1 / float64(length-1)
	s := float64(coord-1) / float64(length-1)
	if s < spacing {
		return spacing
	}
	return s
}

func normalize(x, y, z float64) Vec3 {
	l := math.Sqrt(x*x + y*y + z*z)
	if l == 0 || math.IsInf(l, 0) || math.IsNaN(l) {
		return Up
	}
	return Vec3{X: float32(x / l), Y: float32(y / l), Z: float32(z / l)}
}

// Length returns the Euclidean norm of v.
func (v Vec3) Length() float64 {
	return math.Sqrt(float64(v.X)*float64(v.X) + float64(v.Y)*float64(v.Y) + float64(v.Z)*float64(v.Z))
}

// Pack converts normals to three bytes per sample, remapping each component
// from [-1,1] to [0,255] with truncation.
func Pack(normals []Vec3) []byte {
	out := make([]byte, 0, len(normals)*3)
	for _, n := range normals {
		out = append(out, toByte(n.X), toByte(n.Y), toByte(n.Z))
	}
	return out
}

func toByte(v float32) byte {
	f := (float64(v) + 1) * 0.5 * 255
	if f <= 0 {
		return 0
	}
	if f >= 255 {
		return 255
	}
	return byte(f)
}

// UpFacing extracts the z component of every normal.
func UpFacing(normals []Vec3) []float32 {
	out := make([]float32, len(normals))
	for i, n := range normals {
		out[i] = n.Z
	}
	return out
}
