// Package terrain turns Diamond-Square output into ready-to-upload terrain
// buffers: trimmed normalized heightmaps and indexed meshes.
package terrain

import (
	"fmt"
	"log/slog"

	"github.com/MeKo-Tech/fractalterrain/internal/diamondsquare"
	"github.com/MeKo-Tech/fractalterrain/internal/heightfield"
	"github.com/MeKo-Tech/fractalterrain/internal/noise"
)

// Options tune CreateHeightmap. The zero value produces a plain
// entropy-seeded Diamond-Square terrain.
type Options struct {
	// Seed for the generator; 0 picks an entropy seed.
	Seed uint32
	// DetailStrength adds a Perlin layer of this amplitude before normalization.
	DetailStrength float64
	// DetailScale is the Perlin feature size in samples.
	DetailScale float64
	Logger      *slog.Logger
}

func (o Options) log() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return slog.Default()
}

// Generate runs the bounded generator on the smallest 2^n+1 grid covering
// size, applies the optional detail layer and normalizes to [0,1].
// The returned grid is not trimmed.
func Generate(size int, opts Options) (*heightfield.Grid, uint32, error) {
	n, err := diamondsquare.ExponentFor(size)
	if err != nil {
		return nil, 0, err
	}

	ds, err := diamondsquare.New(diamondsquare.Config{Exponent: n, Seed: opts.Seed}, opts.log())
	if err != nil {
		return nil, 0, err
	}

	grid := ds.Heightmap().Clone()
	noise.Detail(grid, opts.DetailStrength, opts.DetailScale, int64(ds.Seed()))
	grid.Normalize()

	opts.log().Debug("Generated heightfield",
		"size", size,
		"exponent", n,
		"grid", grid.Width(),
		"seed", ds.Seed())

	return grid, ds.Seed(), nil
}

// CreateHeightmap returns a size*size row-major heightmap with values in
// [0,1] together with the seed it was generated from.
func CreateHeightmap(size int, opts Options) ([]float32, uint32, error) {
	grid, seed, err := Generate(size, opts)
	if err != nil {
		return nil, 0, err
	}

	trimmed, err := grid.Crop(size, size)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to trim heightfield: %w", err)
	}
	return trimmed.Values(), seed, nil
}
