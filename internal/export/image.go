// Package export converts heightmaps and normal maps to images and raw
// buffers, and reads height images back.
package export

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/MeKo-Tech/fractalterrain/internal/normalmap"
)

// ErrDimensionMismatch is returned when a value slice does not cover width x height samples.
var ErrDimensionMismatch = errors.New("export: data does not match dimensions")

func checkDims(n, width, height int) error {
	if width <= 0 || height <= 0 || n != width*height {
		return fmt.Errorf("%w: %d values for %dx%d", ErrDimensionMismatch, n, width, height)
	}
	return nil
}

// GrayImage quantizes [0,1] heights to 8-bit gray. Out-of-range values are clamped.
func GrayImage(heights []float32, width, height int) (*image.Gray, error) {
	if err := checkDims(len(heights), width, height); err != nil {
		return nil, err
	}
	img := image.NewGray(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.SetGray(x, y, color.Gray{Y: uint8(quantize(heights[x+y*width], 255))})
		}
	}
	return img, nil
}

// Gray16Image quantizes [0,1] heights to 16-bit gray.
func Gray16Image(heights []float32, width, height int) (*image.Gray16, error) {
	if err := checkDims(len(heights), width, height); err != nil {
		return nil, err
	}
	img := image.NewGray16(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.SetGray16(x, y, color.Gray16{Y: uint16(quantize(heights[x+y*width], 65535))})
		}
	}
	return img, nil
}

// NormalImage stores packed normals in the RGB channels of an opaque image.
func NormalImage(normals []normalmap.Vec3, length int) (*image.NRGBA, error) {
	if err := checkDims(len(normals), length, length); err != nil {
		return nil, err
	}
	packed := normalmap.Pack(normals)
	img := image.NewNRGBA(image.Rect(0, 0, length, length))
	for i := 0; i < len(normals); i++ {
		img.Pix[i*4+0] = packed[i*3+0]
		img.Pix[i*4+1] = packed[i*3+1]
		img.Pix[i*4+2] = packed[i*3+2]
		img.Pix[i*4+3] = 255
	}
	return img, nil
}

// HeightsFromImage converts any image to row-major luminance values in [0,1].
func HeightsFromImage(img image.Image) ([]float32, int, int) {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	out := make([]float32, 0, w*h)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			g := color.Gray16Model.Convert(img.At(x, y)).(color.Gray16)
			out = append(out, float32(g.Y)/65535)
		}
	}
	return out, w, h
}

func quantize(v float32, top float64) float64 {
	f := float64(v)
	if math.IsNaN(f) || f <= 0 {
		return 0
	}
	if f >= 1 {
		return top
	}
	return math.Round(f * top)
}
