// Package texture generates tileable ground textures and splats them onto
// terrain color maps by height and slope.
package texture

import (
	"fmt"
	"image"
	"image/color"
	"math"
)

// Layer names a ground material.
type Layer string

const (
	LayerSand  Layer = "sand"
	LayerGrass Layer = "grass"
	LayerRock  Layer = "rock"
	LayerSnow  Layer = "snow"
)

// DefaultLayerTextures maps layers to their default texture filenames.
var DefaultLayerTextures = map[Layer]string{
	LayerSand:  "sand.png",
	LayerGrass: "grass.png",
	LayerRock:  "rock.png",
	LayerSnow:  "snow.png",
}

// TextureNameForLayer returns the default texture filename for a layer.
func TextureNameForLayer(layer Layer) (string, bool) {
	name, ok := DefaultLayerTextures[layer]
	return name, ok
}

// SplatThresholds control where each layer appears. Heights are in [0,1];
// Steep is an up-facing value below which the surface counts as rock.
type SplatThresholds struct {
	Shore float64
	Snow  float64
	Steep float64
	Blend float64
}

// DefaultSplatThresholds suit normalized Diamond-Square terrain.
var DefaultSplatThresholds = SplatThresholds{
	Shore: 0.22,
	Snow:  0.78,
	Steep: 0.7,
	Blend: 0.05,
}

// mod wraps a into [0,b).
func mod(a, b int) int {
	r := a % b
	if r < 0 {
		r += b
	}
	return r
}

// TileTexture repeats src over a size x size image starting at texel
// (offsetX, offsetY) of the infinite tiling, so neighbouring outputs with
// adjacent offsets join without seams. Rows are copied in runs.
func TileTexture(src image.Image, size int, offsetX, offsetY int) *image.NRGBA {
	if src == nil || size <= 0 {
		return nil
	}
	dst := image.NewNRGBA(image.Rect(0, 0, size, size))
	sb := src.Bounds()
	tw, th := sb.Dx(), sb.Dy()
	if tw == 0 || th == 0 {
		return dst
	}

	tile := toNRGBA(src)
	for y := 0; y < size; y++ {
		srow := tile.Pix[mod(offsetY+y, th)*tile.Stride:]
		drow := dst.Pix[y*dst.Stride : y*dst.Stride+size*4]
		for x := 0; x < size; {
			sx := mod(offsetX+x, tw)
			run := min(tw-sx, size-x)
			copy(drow[x*4:(x+run)*4], srow[sx*4:(sx+run)*4])
			x += run
		}
	}
	return dst
}

// toNRGBA returns src as an NRGBA image anchored at the origin.
func toNRGBA(src image.Image) *image.NRGBA {
	if n, ok := src.(*image.NRGBA); ok && n.Rect.Min == (image.Point{}) {
		return n
	}
	b := src.Bounds()
	out := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			out.Set(x, y, src.At(b.Min.X+x, b.Min.Y+y))
		}
	}
	return out
}

// Splat blends the layer textures over a length x length terrain.
// heights and upFacing are row-major per-sample values; upFacing is the z
// component of the surface normal. Missing layers are skipped.
func Splat(heights, upFacing []float32, length int, textures map[Layer]image.Image, th SplatThresholds) (*image.NRGBA, error) {
	if length <= 0 || len(heights) != length*length || len(upFacing) != len(heights) {
		return nil, fmt.Errorf("splat: %d heights and %d normals for length %d", len(heights), len(upFacing), length)
	}
	if len(textures) == 0 {
		return nil, fmt.Errorf("splat: no textures")
	}

	layers := make(map[Layer]*image.NRGBA, len(textures))
	for layer, tex := range textures {
		if tex != nil && !tex.Bounds().Empty() {
			layers[layer] = TileTexture(tex, length, 0, 0)
		}
	}

	dst := image.NewNRGBA(image.Rect(0, 0, length, length))
	for y := 0; y < length; y++ {
		for x := 0; x < length; x++ {
			i := x + y*length
			weights := splatWeights(float64(heights[i]), float64(upFacing[i]), th)

			var r, g, b, total float64
			for _, layer := range defaultTextureOrder {
				w := weights[layer]
				tex, ok := layers[layer]
				if !ok || w <= 0 {
					continue
				}
				c := tex.NRGBAAt(x, y)
				r += w * float64(c.R)
				g += w * float64(c.G)
				b += w * float64(c.B)
				total += w
			}
			if total == 0 {
				continue
			}
			dst.SetNRGBA(x, y, color.NRGBA{
				R: uint8(math.Round(r / total)),
				G: uint8(math.Round(g / total)),
				B: uint8(math.Round(b / total)),
				A: 255,
			})
		}
	}
	return dst, nil
}

func splatWeights(h, up float64, th SplatThresholds) map[Layer]float64 {
	blend := math.Max(th.Blend, 1e-6)
	sand := 1 - smoothstep(th.Shore-blend, th.Shore+blend, h)
	snow := smoothstep(th.Snow-blend, th.Snow+blend, h)
	rock := 1 - smoothstep(th.Steep-blend, th.Steep+blend, up)

	rest := 1.0
	weights := make(map[Layer]float64, 4)
	weights[LayerRock] = rock
	rest -= rock
	weights[LayerSnow] = snow * rest
	weights[LayerSand] = sand * rest
	weights[LayerGrass] = math.Max(0, rest-weights[LayerSnow]-weights[LayerSand])
	return weights
}

func smoothstep(edge0, edge1, x float64) float64 {
	t := clamp01((x - edge0) / (edge1 - edge0))
	return t * t * (3 - 2*t)
}
