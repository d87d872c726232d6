// Package rng supplies the bounded pseudo-random numbers used for
// iteration counts and mutation decisions.
package rng

import (
	"math/rand/v2"
	"time"
)

// Rand is the randomness source handed to stages and mutators.
type Rand interface {
	// Next returns the next raw 64-bit value.
	Next() uint64

	// Below returns a uniform value in [0, n). It returns 0 when n is 0.
	Below(n uint64) uint64
}

// StdRand is a seeded PCG generator.
type StdRand struct {
	seed uint64
	r    *rand.Rand
}

// New creates a generator. A zero seed is replaced with one derived from the clock.
func New(seed uint64) *StdRand {
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	return &StdRand{
		seed: seed,
		r:    rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
	}
}

// Seed returns the seed the generator was created with.
func (s *StdRand) Seed() uint64 {
	return s.seed
}

func (s *StdRand) Next() uint64 {
	return s.r.Uint64()
}

func (s *StdRand) Below(n uint64) uint64 {
	if n == 0 {
		return 0
	}
	return s.r.Uint64N(n)
}

// Between returns a uniform value in [lo, hi]. lo must not exceed hi.
func Between(r Rand, lo, hi uint64) uint64 {
	if hi <= lo {
		return lo
	}
	return lo + r.Below(hi-lo+1)
}

// Choose returns a random index into a collection of length n, or -1 when n is 0.
func Choose(r Rand, n int) int {
	if n <= 0 {
		return -1
	}
	return int(r.Below(uint64(n)))
}

