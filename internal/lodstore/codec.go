package lodstore

import (
	"encoding/binary"
	"fmt"
	"math"
	"sync"

	"github.com/klauspost/compress/zstd"
)

// Shared codecs, built on first use; EncodeAll and DecodeAll are safe for
// concurrent use.
var (
	encoderOnce sync.Once
	encoder     *zstd.Encoder
	encoderErr  error

	decoderOnce sync.Once
	decoder     *zstd.Decoder
	decoderErr  error
)

func sharedEncoder() (*zstd.Encoder, error) {
	encoderOnce.Do(func() {
		encoder, encoderErr = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if encoderErr != nil {
			encoderErr = fmt.Errorf("failed to create zstd encoder: %w", encoderErr)
		}
	})
	return encoder, encoderErr
}

func sharedDecoder() (*zstd.Decoder, error) {
	decoderOnce.Do(func() {
		decoder, decoderErr = zstd.NewReader(nil)
		if decoderErr != nil {
			decoderErr = fmt.Errorf("failed to create zstd decoder: %w", decoderErr)
		}
	})
	return decoder, decoderErr
}

// encodeFloats packs values as little-endian float32 and zstd-compresses them.
func encodeFloats(values []float32) ([]byte, error) {
	enc, err := sharedEncoder()
	if err != nil {
		return nil, err
	}
	raw := make([]byte, len(values)*4)
	for i, v := range values {
		binary.LittleEndian.PutUint32(raw[i*4:], math.Float32bits(v))
	}
	return enc.EncodeAll(raw, make([]byte, 0, len(raw)/2)), nil
}

// decodeFloats reverses encodeFloats and checks the sample count.
func decodeFloats(data []byte, want int) ([]float32, error) {
	dec, err := sharedDecoder()
	if err != nil {
		return nil, err
	}
	raw, err := dec.DecodeAll(data, make([]byte, 0, want*4))
	if err != nil {
		return nil, err
	}
	if len(raw) != want*4 {
		return nil, fmt.Errorf("payload has %d bytes, want %d", len(raw), want*4)
	}
	out := make([]float32, want)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[i*4:]))
	}
	return out, nil
}
