package export

import (
	"image"

	"github.com/disintegration/gift"
)

// Preview scales a height image to size pixels wide, keeping the aspect ratio.
func Preview(src *image.Gray16, size int) *image.Gray16 {
	g := gift.New(gift.Resize(size, 0, gift.LanczosResampling))
	dst := image.NewGray16(g.Bounds(src.Bounds()))
	g.Draw(dst, src)
	return dst
}

// Smooth applies a Gaussian blur to a height image.
// A sigma of zero or less returns src unchanged.
func Smooth(src *image.Gray16, sigma float32) *image.Gray16 {
	if sigma <= 0 {
		return src
	}
	g := gift.New(gift.GaussianBlur(sigma))
	dst := image.NewGray16(g.Bounds(src.Bounds()))
	g.Draw(dst, src)
	return dst
}
