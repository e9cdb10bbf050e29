// Package diamondsquare implements seed-driven Diamond-Square heightfield generation
// in an edge-bounded and a toroidal (tileable) variant.
package diamondsquare

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/MeKo-Tech/fractalterrain/internal/heightfield"
	"github.com/MeKo-Tech/fractalterrain/internal/noise"
)

// MaxExponent caps grid sizes at 2^14+1 samples per side.
const MaxExponent = 14

var (
	// ErrInvalidExponent is returned for exponents outside the supported range.
	ErrInvalidExponent = errors.New("diamondsquare: invalid exponent")
	// ErrInvalidFeatureRatio is returned when the feature size ratio does not evenly divide the grid.
	ErrInvalidFeatureRatio = errors.New("diamondsquare: invalid feature size ratio")
)

// Config selects the variant and its parameters.
type Config struct {
	// Exponent n: bounded grids are 2^n+1 per side, wrapped grids 2^n.
	Exponent int
	// Wrap selects toroidal addressing; the result tiles seamlessly.
	Wrap bool
	// FeatureSizeRatio refines only a 2^n/ratio sub-square in wrapped mode.
	// Must be a power of two no larger than 2^n. Zero means 1. Ignored when Wrap is false.
	FeatureSizeRatio int
	// Seed for the amplitude source. Zero picks an entropy seed.
	Seed uint32
}

// DiamondSquare owns a generated heightfield. Generation runs in New.
type DiamondSquare struct {
	grid *heightfield.Grid
	src  *noise.Source
}

// New validates cfg and generates the heightfield synchronously.
func New(cfg Config, logger *slog.Logger) (*DiamondSquare, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	var src *noise.Source
	if cfg.Seed != 0 {
		src = noise.NewSourceWithSeed(cfg.Seed)
	} else {
		src = noise.NewSource()
		logger.Info("Diamond square using entropy seed", "seed", src.Seed(), "wrapped", cfg.Wrap)
	}

	ds := &DiamondSquare{src: src}

	var err error
	if cfg.Wrap {
		ds.grid, err = generateWrapped(cfg.Exponent, cfg.featureSizeRatio(), src)
	} else {
		ds.grid, err = generateBounded(cfg.Exponent, src)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to generate heightfield: %w", err)
	}
	return ds, nil
}

// Heightmap returns the generated grid. Callers must treat it as read-only
// or Clone it before mutating.
func (d *DiamondSquare) Heightmap() *heightfield.Grid { return d.grid }

// Seed returns the seed the heightfield was generated from.
func (d *DiamondSquare) Seed() uint32 { return d.src.Seed() }

func (c Config) featureSizeRatio() int {
	if c.FeatureSizeRatio == 0 {
		return 1
	}
	return c.FeatureSizeRatio
}

func (c Config) validate() error {
	minExp := 0
	if c.Wrap {
		minExp = 1
	}
	if c.Exponent < minExp || c.Exponent > MaxExponent {
		return fmt.Errorf("%w: %d (want %d..%d)", ErrInvalidExponent, c.Exponent, minExp, MaxExponent)
	}
	if !c.Wrap {
		return nil
	}
	ratio := c.featureSizeRatio()
	if ratio < 1 || ratio&(ratio-1) != 0 || ratio > 1<<c.Exponent {
		return fmt.Errorf("%w: %d for grid size %d", ErrInvalidFeatureRatio, c.FeatureSizeRatio, 1<<c.Exponent)
	}
	return nil
}

// ExponentFor returns the smallest n with 2^n+1 >= size.
func ExponentFor(size int) (int, error) {
	if size <= 0 {
		return 0, fmt.Errorf("%w: size %d", heightfield.ErrInvalidSize, size)
	}
	n := 0
	for (1<<n)+1 < size {
		n++
	}
	if n > MaxExponent {
		return 0, fmt.Errorf("%w: size %d needs exponent %d", ErrInvalidExponent, size, n)
	}
	return n, nil
}
