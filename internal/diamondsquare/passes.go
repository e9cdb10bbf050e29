package diamondsquare

import (
	"github.com/MeKo-Tech/fractalterrain/internal/heightfield"
)

// Amplitude supplies the random perturbation added to every refined sample.
// *noise.Source satisfies it.
type Amplitude interface {
	Float() float32
}

var (
	diagonal = [4][2]int{{-1, -1}, {1, -1}, {-1, 1}, {1, 1}}
	cardinal = [4][2]int{{-1, 0}, {1, 0}, {0, -1}, {0, 1}}
)

func perturb(mean float32, amp Amplitude, scale float64) float32 {
	return mean + float32(float64(amp.Float())*scale)
}

// generateBounded fills a (2^n+1)^2 grid. Neighbours outside the grid are
// excluded from both the sum and the divisor.
func generateBounded(n int, amp Amplitude) (*heightfield.Grid, error) {
	res := 1<<n + 1
	g, err := heightfield.New(res, res)
	if err != nil {
		return nil, err
	}

	g.SetClamped(0, 0, amp.Float())
	g.SetClamped(0, res-1, amp.Float())
	g.SetClamped(res-1, 0, amp.Float())
	g.SetClamped(res-1, res-1, amp.Float())

	scale := 1.0
	for step := res - 1; step > 1; step /= 2 {
		boundedDiamondPass(g, step, scale, amp)
		boundedSquarePass(g, step, scale, amp)
		scale /= 2
	}
	return g, nil
}

// boundedDiamondPass sets every cell centre of the current step lattice to
// the mean of its in-bounds diagonal neighbours.
func boundedDiamondPass(g *heightfield.Grid, step int, scale float64, amp Amplitude) {
	hs := step / 2
	for y := hs; y < g.Height(); y += step {
		for x := hs; x < g.Width(); x += step {
			g.SetClamped(x, y, perturb(clampedMean(g, x, y, hs, diagonal), amp, scale))
		}
	}
}

// boundedSquarePass sets every edge midpoint of the current step lattice to
// the mean of its in-bounds cardinal neighbours. Rows on the lattice are
// visited first, then the offset rows.
func boundedSquarePass(g *heightfield.Grid, step int, scale float64, amp Amplitude) {
	hs := step / 2
	for y := 0; y < g.Height(); y += step {
		for x := hs; x < g.Width(); x += step {
			g.SetClamped(x, y, perturb(clampedMean(g, x, y, hs, cardinal), amp, scale))
		}
	}
	for y := hs; y < g.Height(); y += step {
		for x := 0; x < g.Width(); x += step {
			g.SetClamped(x, y, perturb(clampedMean(g, x, y, hs, cardinal), amp, scale))
		}
	}
}

func clampedMean(g *heightfield.Grid, x, y, dist int, dirs [4][2]int) float32 {
	var sum float32
	count := 0
	for _, d := range dirs {
		if v, ok := g.ClampedAt(x+d[0]*dist, y+d[1]*dist); ok {
			sum += v
			count++
		}
	}
	if count == 0 {
		return 0
	}
	return sum / float32(count)
}

// generateWrapped fills a 2^n square grid with toroidal addressing. Only the
// 2^n/ratio corner square is seeded; the refinement then runs over the whole
// torus at that feature size.
func generateWrapped(n, ratio int, amp Amplitude) (*heightfield.Grid, error) {
	res := 1 << n
	g, err := heightfield.New(res, res)
	if err != nil {
		return nil, err
	}

	featureSize := res / ratio
	g.SetWrapped(0, 0, amp.Float())
	g.SetWrapped(featureSize, 0, amp.Float())
	g.SetWrapped(0, featureSize, amp.Float())
	g.SetWrapped(featureSize, featureSize, amp.Float())

	scale := 1.0
	for step := featureSize; step > 1; step /= 2 {
		wrappedDiamondPass(g, step, scale, amp)
		wrappedSquarePass(g, step, scale, amp)
		scale /= 2
	}
	return g, nil
}

func wrappedDiamondPass(g *heightfield.Grid, step int, scale float64, amp Amplitude) {
	hs := step / 2
	for y := hs; y < g.Height(); y += step {
		for x := hs; x < g.Width(); x += step {
			g.SetWrapped(x, y, perturb(wrappedMean(g, x, y, hs, diagonal), amp, scale))
		}
	}
}

func wrappedSquarePass(g *heightfield.Grid, step int, scale float64, amp Amplitude) {
	hs := step / 2
	for y := 0; y < g.Height(); y += step {
		for x := hs; x < g.Width(); x += step {
			g.SetWrapped(x, y, perturb(wrappedMean(g, x, y, hs, cardinal), amp, scale))
		}
	}
	for y := hs; y < g.Height(); y += step {
		for x := 0; x < g.Width(); x += step {
			g.SetWrapped(x, y, perturb(wrappedMean(g, x, y, hs, cardinal), amp, scale))
		}
	}
}

// wrappedMean always averages exactly four neighbours.
func wrappedMean(g *heightfield.Grid, x, y, dist int, dirs [4][2]int) float32 {
	var sum float32
	for _, d := range dirs {
		sum += g.WrappedAt(x+d[0]*dist, y+d[1]*dist)
	}
	return sum / 4
}
