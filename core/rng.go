package core

import (
	"math/rand"
	"sync"
)

// drawSource is the single seedable random generator behind every
// stochastic decision (outage trials, per-message drop draws). Using
// one source per CommsModel keeps scenarios reproducible: a fixed
// seed and an identical sequence of ticks and sends replays the exact
// same decisions.
//
// The mutex makes draws safe from delivery callbacks running on a
// different goroutine than the recomputation pass.
type drawSource struct {
	mu sync.Mutex
	r  *rand.Rand
}

func newDrawSource(seed int64) *drawSource {
	return &drawSource{r: rand.New(rand.NewSource(seed))}
}

// Float64 returns a uniform draw in [0, 1).
func (s *drawSource) Float64() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.r.Float64()
}

// Uniform returns a uniform draw in [min, max).
func (s *drawSource) Uniform(min, max float64) float64 {
	if max <= min {
		return min
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return min + s.r.Float64()*(max-min)
}
