// Package mipmap builds reduced-resolution levels of float images.
package mipmap

import (
	"errors"
	"fmt"
)

// ErrInvalidImage is returned for images whose data does not match their dimensions.
var ErrInvalidImage = errors.New("mipmap: invalid image")

// HDRImage is a generic float pixel buffer, row-major and interleaved by component.
type HDRImage struct {
	Width      int
	Height     int
	Components int
	Data       []float32
}

// NewHDRImage wraps data as a width x height image with the given component count.
func NewHDRImage(width, height, components int, data []float32) (HDRImage, error) {
	img := HDRImage{Width: width, Height: height, Components: components, Data: data}
	return img, img.validate()
}

func (img HDRImage) validate() error {
	if img.Width <= 0 || img.Height <= 0 || img.Components <= 0 {
		return fmt.Errorf("%w: %dx%dx%d", ErrInvalidImage, img.Width, img.Height, img.Components)
	}
	if len(img.Data) != img.Width*img.Height*img.Components {
		return fmt.Errorf("%w: %d values for %dx%dx%d", ErrInvalidImage, len(img.Data), img.Width, img.Height, img.Components)
	}
	return nil
}

// At returns component c of pixel (x,y).
func (img HDRImage) At(x, y, c int) float32 {
	return img.Data[(x+y*img.Width)*img.Components+c]
}

// Filter selects how a 2x2 block is combined.
type Filter int

const (
	// FilterBox averages the four texels.
	FilterBox Filter = iota
	// FilterLegacy sums the first three texels and adds a quarter of the
	// fourth. It reproduces the output of earlier terrain builds.
	FilterLegacy
)

// ParseFilter maps "box" and "legacy" to a Filter.
func ParseFilter(s string) (Filter, error) {
	switch s {
	case "", "box":
		return FilterBox, nil
	case "legacy":
		return FilterLegacy, nil
	default:
		return 0, fmt.Errorf("unknown mip filter %q (want box or legacy)", s)
	}
}

func (f Filter) String() string {
	if f == FilterLegacy {
		return "legacy"
	}
	return "box"
}

// Reduce halves both dimensions by combining non-overlapping 2x2 blocks.
// An odd trailing row or column is dropped. A dimension of 1 stays 1 and
// its block collapses to the available texels.
func Reduce(img HDRImage, filter Filter) (HDRImage, error) {
	if err := img.validate(); err != nil {
		return HDRImage{}, err
	}

	w := max(img.Width/2, 1)
	h := max(img.Height/2, 1)
	out := HDRImage{Width: w, Height: h, Components: img.Components, Data: make([]float32, 0, w*h*img.Components)}

	for y := 0; y < h; y++ {
		y0 := min(2*y, img.Height-1)
		y1 := min(2*y+1, img.Height-1)
		for x := 0; x < w; x++ {
			x0 := min(2*x, img.Width-1)
			x1 := min(2*x+1, img.Width-1)
			for c := 0; c < img.Components; c++ {
				a := img.At(x0, y0, c)
				b := img.At(x1, y0, c)
				d := img.At(x0, y1, c)
				e := img.At(x1, y1, c)

				var v float32
				if filter == FilterLegacy {
					v = a + b + d + e/4
				} else {
					v = (a + b + d + e) / 4
				}
				out.Data = append(out.Data, v)
			}
		}
	}
	return out, nil
}

// Chain returns the base image followed by up to levels reductions,
// stopping once a 1x1 level has been produced.
func Chain(img HDRImage, levels int, filter Filter) ([]HDRImage, error) {
	if err := img.validate(); err != nil {
		return nil, err
	}
	chain := []HDRImage{img}
	cur := img
	for i := 0; i < levels; i++ {
		if cur.Width == 1 && cur.Height == 1 {
			break
		}
		next, err := Reduce(cur, filter)
		if err != nil {
			return nil, fmt.Errorf("failed to reduce level %d: %w", i+1, err)
		}
		chain = append(chain, next)
		cur = next
	}
	return chain, nil
}

// CreateMipMap returns the image reduced level times (or to 1x1, whichever comes first).
func CreateMipMap(img HDRImage, level int, filter Filter) (HDRImage, error) {
	chain, err := Chain(img, level, filter)
	if err != nil {
		return HDRImage{}, err
	}
	return chain[len(chain)-1], nil
}

// Levels returns the number of reductions needed to reach 1x1.
func Levels(width, height int) int {
	n := 0
	for width > 1 || height > 1 {
		width = max(width/2, 1)
		height = max(height/2, 1)
		n++
	}
	return n
}
