package export

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"image"
	"image/png"
	"io"
	"math"
	"os"

	"golang.org/x/image/tiff"

	"github.com/MeKo-Tech/fractalterrain/internal/normalmap"

	_ "image/jpeg" // Register JPEG decoder
)

// WriteGrayPNG writes heights as an 8-bit grayscale PNG.
func WriteGrayPNG(path string, heights []float32, width, height int) error {
	img, err := GrayImage(heights, width, height)
	if err != nil {
		return err
	}
	return WritePNG(path, img)
}

// WriteGray16PNG writes heights as a 16-bit grayscale PNG.
func WriteGray16PNG(path string, heights []float32, width, height int) error {
	img, err := Gray16Image(heights, width, height)
	if err != nil {
		return err
	}
	return WritePNG(path, img)
}

// WriteTIFF16 writes heights as a deflate-compressed 16-bit grayscale TIFF.
func WriteTIFF16(path string, heights []float32, width, height int) error {
	img, err := Gray16Image(heights, width, height)
	if err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer file.Close()

	if err := tiff.Encode(file, img, &tiff.Options{Compression: tiff.Deflate}); err != nil {
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}
	return nil
}

// WriteNormalPNG writes packed normals as an RGB PNG.
func WriteNormalPNG(path string, normals []normalmap.Vec3, length int) error {
	img, err := NormalImage(normals, length)
	if err != nil {
		return err
	}
	return WritePNG(path, img)
}

// WriteRaw32 writes values as little-endian float32 with no header.
func WriteRaw32(path string, values []float32) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer file.Close()

	w := bufio.NewWriter(file)
	if err := EncodeRaw32(w, values); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// EncodeRaw32 streams values to w as little-endian float32.
func EncodeRaw32(w io.Writer, values []float32) error {
	var buf [4]byte
	for _, v := range values {
		binary.LittleEndian.PutUint32(buf[:], math.Float32bits(v))
		if _, err := w.Write(buf[:]); err != nil {
			return err
		}
	}
	return nil
}

// ReadRaw32 reads a headerless little-endian float32 file.
func ReadRaw32(path string) ([]float32, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	if len(data)%4 != 0 {
		return nil, fmt.Errorf("%w: %s has %d bytes", ErrDimensionMismatch, path, len(data))
	}
	out := make([]float32, len(data)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return out, nil
}

// ReadGrayImage decodes a PNG, JPEG or TIFF file into [0,1] luminance values.
func ReadGrayImage(path string) ([]float32, int, int, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer file.Close()

	img, _, err := image.Decode(file)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	values, w, h := HeightsFromImage(img)
	return values, w, h, nil
}

// WritePNG encodes any image as PNG.
func WritePNG(path string, img image.Image) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer file.Close()

	if err := EncodePNG(file, img); err != nil {
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}
	return nil
}

// EncodePNG writes img to w with default compression.
func EncodePNG(w io.Writer, img image.Image) error {
	return png.Encode(w, img)
}
