package sensor

import (
	"math/rand/v2"
	"sync"
	"time"
)

const (
	simMaxVariation = 5.0
	simDropEvery    = 30 * time.Second
	simDropChance   = 0.10
)

// SimulatedSource stands in for a load cell: a slow random walk around the
// box weight, with an occasional 5-14 g drop that stays until the box is
// empty, at which point it refills.
type SimulatedSource struct {
	mu        sync.Mutex
	full      float64
	base      float64
	variation float64
	rng       *rand.Rand
	now       func() time.Time
	lastDrop  time.Time
}

func NewSimulatedSource(baseWeight float64, rng *rand.Rand, now func() time.Time) *SimulatedSource {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	if now == nil {
		now = time.Now
	}
	return &SimulatedSource{
		full:     baseWeight,
		base:     baseWeight,
		rng:      rng,
		now:      now,
		lastDrop: now(),
	}
}

func (s *SimulatedSource) Read() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	// +/-0.1 g step, clamped to +/-5 g
	s.variation += float64(s.rng.IntN(20)-10) / 100.0
	s.variation = min(max(s.variation, -simMaxVariation), simMaxVariation)

	now := s.now()
	if now.Sub(s.lastDrop) > simDropEvery && s.rng.Float64() < simDropChance {
		s.base -= float64(5 + s.rng.IntN(10))
		s.lastDrop = now
		if s.base <= 0 {
			s.base = s.full
		}
	}

	return s.base + s.variation
}
