package rand

import (
	"github.com/pkg/errors"
	"github.com/seehuhn/mt19937"
)

// A Generator wraps a Mersenne twister. Each pipeline run owns exactly one
// Generator; it is not safe for concurrent use and it never reseeds itself,
// so two generators built from the same seed produce the same stream.
type Generator struct {
	mt   *mt19937.MT19937
	Seed int64 // Seed used at construction (0 when seeded from a slice)
}

// NewGenerator creates a new PRNG based on the given seed
func NewGenerator(seed int64) (*Generator, error) {
	r := mt19937.New()
	r.Seed(seed)

	return &Generator{mt: r, Seed: seed}, nil
}

// NewGeneratorSlice seeds the twister with the reference init_by_array
// routine, which is handy for checking against the canonical output.
func NewGeneratorSlice(key []uint64) (*Generator, error) {
	if len(key) < 1 {
		return nil, errors.New("Seed slice must contain at least one value")
	}

	r := mt19937.New()
	r.SeedFromSlice(key)

	return &Generator{mt: r}, nil
}

// Uint64 returns the next raw 64-bit value
func (g *Generator) Uint64() uint64 {
	return g.mt.Uint64()
}

// Int63 provides the same interface as Go's math/rand
func (g *Generator) Int63() int64 {
	return g.mt.Int63()
}

// Int63n is a copy of the current Go code
func (g *Generator) Int63n(n int64) int64 {
	if n <= 0 {
		panic("invalid argument to Int63n")
	}

	if n&(n-1) == 0 { // n is power of two, can mask
		return g.Int63() & (n - 1)
	}

	max := int64((1 << 63) - 1 - (1<<63)%uint64(n))
	v := g.Int63()
	for v > max {
		v = g.Int63()
	}

	return v % n
}

// Float64 returns a uniform draw on [0, 1). We use the commented, simpler
// implmentation since we don't have the same support requirements as the
// standard library.
func (g *Generator) Float64() float64 {
	return float64(g.Int63n(1<<53)) / (1 << 53)
}

// Uniform returns a uniform draw on [lo, hi)
func (g *Generator) Uniform(lo, hi float64) float64 {
	return lo + g.Float64()*(hi-lo)
}
