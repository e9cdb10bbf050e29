package noise

import (
	"github.com/aquilax/go-perlin"

	"github.com/MeKo-Tech/fractalterrain/internal/heightfield"
)

// Perlin parameters for the detail layer.
// alpha: persistence, beta: lacunarity, n: octaves.
const (
	detailAlpha   = 2.0
	detailBeta    = 2.0
	detailOctaves = 3
)

// Detail adds a Perlin noise layer to every sample of g.
// strength scales the noise (roughly [-1,1] before scaling) and scale
// sets the feature size in samples (larger = smoother). A zero strength
// leaves g untouched.
func Detail(g *heightfield.Grid, strength, scale float64, seed int64) {
	if g == nil || strength == 0 {
		return
	}
	if scale <= 0 {
		scale = 1
	}

	p := perlin.NewPerlin(detailAlpha, detailBeta, detailOctaves, seed)
	for y := 0; y < g.Height(); y++ {
		for x := 0; x < g.Width(); x++ {
			v, _ := g.ClampedAt(x, y)
			n := p.Noise2D(float64(x)/scale, float64(y)/scale)
			g.SetClamped(x, y, v+float32(strength*n))
		}
	}
}
