package export

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/fractalterrain/internal/normalmap"
	"github.com/MeKo-Tech/fractalterrain/internal/terrain"
)

func ramp(w, h int) []float32 {
	out := make([]float32, w*h)
	for i := range out {
		out[i] = float32(i) / float32(len(out)-1)
	}
	return out
}

func TestGrayImageQuantizesAndClamps(t *testing.T) {
	img, err := GrayImage([]float32{0, 0.5, 1, -3, 7, 0.25}, 3, 2)
	require.NoError(t, err)
	assert.Equal(t, []uint8{0, 128, 255, 0, 255, 64}, img.Pix)
}

func TestDimensionMismatch(t *testing.T) {
	_, err := GrayImage(make([]float32, 5), 2, 2)
	require.ErrorIs(t, err, ErrDimensionMismatch)
	_, err = Gray16Image(nil, 0, 0)
	require.ErrorIs(t, err, ErrDimensionMismatch)
	_, err = NormalImage(make([]normalmap.Vec3, 3), 2)
	require.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestGray16PNGRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "height.png")
	heights := ramp(7, 5)
	require.NoError(t, WriteGray16PNG(path, heights, 7, 5))

	got, w, h, err := ReadGrayImage(path)
	require.NoError(t, err)
	assert.Equal(t, 7, w)
	assert.Equal(t, 5, h)
	require.Len(t, got, len(heights))
	for i := range heights {
		assert.InDelta(t, heights[i], got[i], 1e-4, "sample %d", i)
	}
}

func TestGrayPNGRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "height8.png")
	heights := ramp(4, 4)
	require.NoError(t, WriteGrayPNG(path, heights, 4, 4))

	got, _, _, err := ReadGrayImage(path)
	require.NoError(t, err)
	for i := range heights {
		assert.InDelta(t, heights[i], got[i], 1.0/255, "sample %d", i)
	}
}

func TestTIFF16RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "height.tiff")
	heights := ramp(9, 9)
	require.NoError(t, WriteTIFF16(path, heights, 9, 9))

	got, w, h, err := ReadGrayImage(path)
	require.NoError(t, err)
	assert.Equal(t, 9, w)
	assert.Equal(t, 9, h)
	for i := range heights {
		assert.InDelta(t, heights[i], got[i], 1e-4, "sample %d", i)
	}
}

func TestWriteNormalPNG(t *testing.T) {
	path := filepath.Join(t.TempDir(), "normals.png")
	normals := []normalmap.Vec3{normalmap.Up, {X: -1, Y: 0, Z: 0}, {X: 0, Y: 1, Z: 0}, normalmap.Up}
	require.NoError(t, WriteNormalPNG(path, normals, 2))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	img, err := png.Decode(f)
	require.NoError(t, err)

	c := color.NRGBAModel.Convert(img.At(0, 0)).(color.NRGBA)
	assert.Equal(t, color.NRGBA{R: 127, G: 127, B: 255, A: 255}, c)
	c = color.NRGBAModel.Convert(img.At(1, 0)).(color.NRGBA)
	assert.Equal(t, color.NRGBA{R: 0, G: 127, B: 127, A: 255}, c)
}

func TestRaw32RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "height.r32")
	values := []float32{0, 0.125, -2.5, 1e-7, 3.4e38}
	require.NoError(t, WriteRaw32(path, values))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, int64(len(values)*4), info.Size())

	got, err := ReadRaw32(path)
	require.NoError(t, err)
	assert.Equal(t, values, got)
}

func TestReadRaw32RejectsPartialValue(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.r32")
	require.NoError(t, os.WriteFile(path, []byte{1, 2, 3}, 0o644))
	_, err := ReadRaw32(path)
	require.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestReadGrayImageMissingFile(t *testing.T) {
	_, _, _, err := ReadGrayImage(filepath.Join(t.TempDir(), "missing.png"))
	require.Error(t, err)
}

func TestPreviewKeepsAspect(t *testing.T) {
	src, err := Gray16Image(ramp(16, 8), 16, 8)
	require.NoError(t, err)

	dst := Preview(src, 4)
	assert.Equal(t, image.Rect(0, 0, 4, 2), dst.Bounds())
}

func TestSmoothFlatImageUnchanged(t *testing.T) {
	flat := make([]float32, 8*8)
	for i := range flat {
		flat[i] = 0.5
	}
	src, err := Gray16Image(flat, 8, 8)
	require.NoError(t, err)

	assert.Same(t, src, Smooth(src, 0))

	dst := Smooth(src, 1.5)
	require.Equal(t, src.Bounds(), dst.Bounds())
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			assert.InDelta(t, float64(src.Gray16At(x, y).Y), float64(dst.Gray16At(x, y).Y), 2)
		}
	}
}

func TestEncodeOBJ(t *testing.T) {
	heights := []float32{0, 1, 0, 1}
	normals := []normalmap.Vec3{normalmap.Up, normalmap.Up, normalmap.Up, normalmap.Up}
	mesh, err := terrain.BuildMesh(heights, normals, 2)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, EncodeOBJ(&buf, mesh))

	counts := map[string]int{}
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		kind, _, _ := strings.Cut(line, " ")
		counts[kind]++
	}
	assert.Equal(t, map[string]int{"v": 4, "vt": 4, "vn": 4, "f": 2}, counts)
	assert.Contains(t, buf.String(), "v -1 0 -1\n")
	assert.Contains(t, buf.String(), "f 1/1/1 2/2/2 3/3/3\n")
}
