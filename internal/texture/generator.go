package texture

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"log/slog"
	"math/bits"
	"os"
	"path/filepath"

	"github.com/MeKo-Tech/fractalterrain/internal/diamondsquare"
	"github.com/MeKo-Tech/fractalterrain/internal/noise"
)

// TextureParams defines a tileable ground texture.
type TextureParams struct {
	Size             int // Power of two
	FeatureSizeRatio int // Larger values repeat the pattern more densely
	Low              color.RGBA
	High             color.RGBA
	Seed             uint32
}

// TextureWriteResult reports which textures were written or skipped.
type TextureWriteResult struct {
	Written []string
	Skipped []string
	Seed    uint32
}

var defaultTextureOrder = []Layer{
	LayerSand,
	LayerGrass,
	LayerRock,
	LayerSnow,
}

var defaultTextureRamps = map[Layer][2]color.RGBA{
	LayerSand:  {{R: 176, G: 156, B: 112, A: 255}, {R: 232, G: 214, B: 168, A: 255}},
	LayerGrass: {{R: 46, G: 82, B: 34, A: 255}, {R: 118, G: 156, B: 70, A: 255}},
	LayerRock:  {{R: 84, G: 80, B: 76, A: 255}, {R: 160, G: 154, B: 146, A: 255}},
	LayerSnow:  {{R: 214, G: 222, B: 234, A: 255}, {R: 252, G: 252, B: 255, A: 255}},
}

// minFeatureSize keeps small default textures from collapsing to a few seeded points.
const minFeatureSize = 16

var defaultFeatureRatios = map[Layer]int{
	LayerSand:  8,
	LayerGrass: 4,
	LayerRock:  1,
	LayerSnow:  2,
}

// WriteDefaultTextures generates the default ground texture set into dir.
// A zero seed picks one entropy seed for the whole set; it is returned in the result.
func WriteDefaultTextures(dir string, size int, seed uint32, overwrite bool) (TextureWriteResult, error) {
	result := TextureWriteResult{}
	if !isPowerOfTwo(size) || size < 2 {
		return result, fmt.Errorf("size must be a power of two >= 2, got %d", size)
	}
	if seed == 0 {
		seed = noise.EntropySeed()
		slog.Info("Ground textures using entropy seed", "seed", seed)
	}
	result.Seed = seed
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return result, fmt.Errorf("failed to create texture dir: %w", err)
	}

	for i, layer := range defaultTextureOrder {
		filename, ok := DefaultLayerTextures[layer]
		if !ok {
			return result, fmt.Errorf("missing default texture filename for layer %s", layer)
		}
		path := filepath.Join(dir, filename)
		if !overwrite {
			if _, err := os.Stat(path); err == nil {
				result.Skipped = append(result.Skipped, path)
				continue
			}
		}

		ramp := defaultTextureRamps[layer]
		params := TextureParams{
			Size:             size,
			FeatureSizeRatio: min(defaultFeatureRatios[layer], max(size/minFeatureSize, 1)),
			Low:              ramp[0],
			High:             ramp[1],
			Seed:             seed + uint32(i)*1000,
		}

		img, err := GenerateGroundTexture(params)
		if err != nil {
			return result, fmt.Errorf("failed to generate %s texture: %w", layer, err)
		}

		if err := writePNG(path, img); err != nil {
			return result, err
		}
		result.Written = append(result.Written, path)
	}

	return result, nil
}

func writePNG(path string, img image.Image) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create texture %s: %w", path, err)
	}
	defer file.Close()

	if err := png.Encode(file, img); err != nil {
		return fmt.Errorf("failed to encode texture %s: %w", path, err)
	}
	return nil
}

// GenerateGroundTexture fills a wrapped Diamond-Square field and maps it
// through the Low..High color ramp. The result tiles seamlessly.
func GenerateGroundTexture(p TextureParams) (*image.RGBA, error) {
	if !isPowerOfTwo(p.Size) || p.Size < 2 {
		return nil, fmt.Errorf("size must be a power of two >= 2, got %d", p.Size)
	}

	ds, err := diamondsquare.New(diamondsquare.Config{
		Exponent:         bits.TrailingZeros(uint(p.Size)),
		Wrap:             true,
		FeatureSizeRatio: p.FeatureSizeRatio,
		Seed:             p.Seed,
	}, nil)
	if err != nil {
		return nil, err
	}

	field := ds.Heightmap().Clone()
	field.Normalize()

	out := image.NewRGBA(image.Rect(0, 0, p.Size, p.Size))
	for y := 0; y < p.Size; y++ {
		for x := 0; x < p.Size; x++ {
			t := float64(field.WrappedAt(x, y))
			out.SetRGBA(x, y, color.RGBA{
				R: lerp8(p.Low.R, p.High.R, t),
				G: lerp8(p.Low.G, p.High.G, t),
				B: lerp8(p.Low.B, p.High.B, t),
				A: 255,
			})
		}
	}
	return out, nil
}

func isPowerOfTwo(n int) bool { return n > 0 && n&(n-1) == 0 }

func lerp8(a, b uint8, t float64) uint8 {
	return uint8(float64(a) + (float64(b)-float64(a))*clamp01(t) + 0.5)
}

func clamp01(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}
