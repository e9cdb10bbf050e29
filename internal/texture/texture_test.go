package texture

import (
	"image"
	"image/color"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateGroundTextureIsDeterministic(t *testing.T) {
	p := TextureParams{
		Size:             32,
		FeatureSizeRatio: 2,
		Low:              color.RGBA{R: 0, G: 0, B: 0, A: 255},
		High:             color.RGBA{R: 255, G: 255, B: 255, A: 255},
		Seed:             1337,
	}
	a, err := GenerateGroundTexture(p)
	require.NoError(t, err)
	b, err := GenerateGroundTexture(p)
	require.NoError(t, err)

	assert.Equal(t, image.Rect(0, 0, 32, 32), a.Bounds())
	assert.Equal(t, a.Pix, b.Pix)
}

func TestGenerateGroundTextureSpansRamp(t *testing.T) {
	low := color.RGBA{R: 10, G: 20, B: 30, A: 255}
	high := color.RGBA{R: 210, G: 220, B: 230, A: 255}
	img, err := GenerateGroundTexture(TextureParams{Size: 16, FeatureSizeRatio: 1, Low: low, High: high, Seed: 9})
	require.NoError(t, err)

	var sawLow, sawHigh bool
	for y := 0; y < 16; y++ {
		for x := 0; x < 16; x++ {
			c := img.RGBAAt(x, y)
			require.GreaterOrEqual(t, c.R, low.R)
			require.LessOrEqual(t, c.R, high.R)
			sawLow = sawLow || c == low
			sawHigh = sawHigh || c == high
		}
	}
	assert.True(t, sawLow, "minimum should map to the low color")
	assert.True(t, sawHigh, "maximum should map to the high color")
}

func TestGenerateGroundTextureRejectsBadSize(t *testing.T) {
	for _, size := range []int{0, 1, 3, 24} {
		_, err := GenerateGroundTexture(TextureParams{Size: size, Seed: 1})
		require.Error(t, err, "size %d", size)
	}
}

func TestWriteDefaultTextures(t *testing.T) {
	dir := t.TempDir()

	result, err := WriteDefaultTextures(dir, 16, 42, false)
	require.NoError(t, err)
	assert.Len(t, result.Written, len(defaultTextureOrder))
	assert.Empty(t, result.Skipped)
	assert.Equal(t, uint32(42), result.Seed)

	for _, path := range result.Written {
		_, err := os.Stat(path)
		require.NoError(t, err)
	}

	again, err := WriteDefaultTextures(dir, 16, 42, false)
	require.NoError(t, err)
	assert.Empty(t, again.Written)
	assert.Len(t, again.Skipped, len(defaultTextureOrder))

	loaded, err := LoadDefaultTextures(dir)
	require.NoError(t, err)
	assert.Len(t, loaded, len(DefaultLayerTextures))
	assert.Equal(t, image.Rect(0, 0, 16, 16), loaded[LayerRock].Bounds())
}

func TestWriteDefaultTexturesEntropySeed(t *testing.T) {
	result, err := WriteDefaultTextures(t.TempDir(), 8, 0, true)
	require.NoError(t, err)
	assert.NotZero(t, result.Seed)
}

func TestLoadDefaultTexturesMissing(t *testing.T) {
	_, err := LoadDefaultTextures(t.TempDir())
	require.Error(t, err)
}

func TestTextureNameForLayer(t *testing.T) {
	name, ok := TextureNameForLayer(LayerSnow)
	require.True(t, ok)
	assert.Equal(t, "snow.png", name)

	_, ok = TextureNameForLayer(Layer("lava"))
	assert.False(t, ok)
}

func TestTileTextureWithOffsetsSeamless(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 4, 4))
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			src.SetNRGBA(x, y, color.NRGBA{R: uint8(10*x + y), G: uint8(20*y + x), B: uint8(x + 2*y), A: 255})
		}
	}

	ref := TileTexture(src, 8, 0, 0)
	right := TileTexture(src, 4, 4, 0)
	bottom := TileTexture(src, 4, 0, 4)

	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			assert.Equal(t, ref.NRGBAAt(x+4, y), right.NRGBAAt(x, y))
			assert.Equal(t, ref.NRGBAAt(x, y+4), bottom.NRGBAAt(x, y))
		}
	}

	assert.Nil(t, TileTexture(nil, 4, 0, 0))
}

func solid(c color.NRGBA) image.Image {
	img := image.NewNRGBA(image.Rect(0, 0, 2, 2))
	for y := 0; y < 2; y++ {
		for x := 0; x < 2; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
	return img
}

func TestSplatPicksLayerByHeightAndSlope(t *testing.T) {
	sand := color.NRGBA{R: 200, G: 180, B: 120, A: 255}
	grass := color.NRGBA{R: 50, G: 120, B: 40, A: 255}
	rock := color.NRGBA{R: 90, G: 90, B: 90, A: 255}
	snow := color.NRGBA{R: 250, G: 250, B: 250, A: 255}
	textures := map[Layer]image.Image{
		LayerSand:  solid(sand),
		LayerGrass: solid(grass),
		LayerRock:  solid(rock),
		LayerSnow:  solid(snow),
	}

	heights := []float32{0.0, 0.5, 0.5, 1.0}
	up := []float32{1, 1, 0.2, 1}
	img, err := Splat(heights, up, 2, textures, DefaultSplatThresholds)
	require.NoError(t, err)

	assert.Equal(t, sand, img.NRGBAAt(0, 0))
	assert.Equal(t, grass, img.NRGBAAt(1, 0))
	assert.Equal(t, rock, img.NRGBAAt(0, 1))
	assert.Equal(t, snow, img.NRGBAAt(1, 1))
}

func TestSplatRejectsMismatch(t *testing.T) {
	_, err := Splat(make([]float32, 4), make([]float32, 3), 2, map[Layer]image.Image{LayerRock: solid(color.NRGBA{})}, DefaultSplatThresholds)
	require.Error(t, err)

	_, err = Splat(make([]float32, 4), make([]float32, 4), 2, nil, DefaultSplatThresholds)
	require.Error(t, err)
}

func TestTileTextureFromSubImage(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 6, 6))
	for y := 0; y < 6; y++ {
		for x := 0; x < 6; x++ {
			src.SetRGBA(x, y, color.RGBA{R: uint8(x), G: uint8(y), A: 255})
		}
	}
	sub := src.SubImage(image.Rect(2, 3, 5, 5)) // 3x2 tile starting at (2,3)

	out := TileTexture(sub, 7, -1, 1)
	require.Equal(t, image.Rect(0, 0, 7, 7), out.Bounds())
	for y := 0; y < 7; y++ {
		for x := 0; x < 7; x++ {
			want := color.NRGBA{R: uint8(2 + mod(x-1, 3)), G: uint8(3 + mod(y+1, 2)), A: 255}
			require.Equal(t, want, out.NRGBAAt(x, y), "at %d,%d", x, y)
		}
	}
}

func TestSplatTilesSmallTextures(t *testing.T) {
	checker := image.NewNRGBA(image.Rect(0, 0, 2, 1))
	checker.SetNRGBA(0, 0, color.NRGBA{R: 255, A: 255})
	checker.SetNRGBA(1, 0, color.NRGBA{B: 255, A: 255})

	heights := make([]float32, 9)
	up := make([]float32, 9)
	for i := range heights {
		heights[i] = 0.5
		up[i] = 1
	}
	img, err := Splat(heights, up, 3, map[Layer]image.Image{LayerGrass: checker}, DefaultSplatThresholds)
	require.NoError(t, err)

	assert.Equal(t, color.NRGBA{R: 255, A: 255}, img.NRGBAAt(2, 2))
	assert.Equal(t, color.NRGBA{B: 255, A: 255}, img.NRGBAAt(1, 0))
}
