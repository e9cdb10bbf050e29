// Package noise provides the random amplitude source used by the fractal generators.
package noise

import (
	crand "crypto/rand"
	"encoding/binary"
	"math/rand"
	"time"
)

// StdDev is the standard deviation of values returned by Source.Float.
// Roughly 99.7% of draws fall within [-1.5, 1.5].
const StdDev = 0.5

// Source draws zero-mean Gaussian perturbations from a uint32 seed.
// A Source is not safe for concurrent use.
type Source struct {
	rng  *rand.Rand
	seed uint32
}

// NewSource returns a Source seeded from system entropy.
// The chosen seed is available through Seed and is never zero.
func NewSource() *Source {
	return NewSourceWithSeed(EntropySeed())
}

// NewSourceWithSeed returns a deterministic Source.
func NewSourceWithSeed(seed uint32) *Source {
	return &Source{
		rng:  rand.New(rand.NewSource(int64(seed))),
		seed: seed,
	}
}

// Seed returns the seed the Source was constructed with.
func (s *Source) Seed() uint32 { return s.seed }

// Reseed restarts the sequence from seed. The construction seed reported
// by Seed is unchanged.
func (s *Source) Reseed(seed uint32) {
	s.rng.Seed(int64(seed))
}

// Float draws one sample from N(0, StdDev).
func (s *Source) Float() float32 {
	return float32(s.rng.NormFloat64() * StdDev)
}

// EntropySeed returns a non-zero seed from crypto/rand, falling back to the clock.
func EntropySeed() uint32 {
	var buf [4]byte
	var seed uint32
	if _, err := crand.Read(buf[:]); err == nil {
		seed = binary.LittleEndian.Uint32(buf[:])
	} else {
		seed = uint32(time.Now().UnixNano())
	}
	if seed == 0 {
		seed = 1
	}
	return seed
}
