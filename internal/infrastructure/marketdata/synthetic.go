package marketdata

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/dexflow/dexbot/internal/domain"
)

// SyntheticProvider generates random-walk candles for simulation mode. It is
// only wired when the simulation flag is set explicitly: trading on
// fabricated prices must never be a silent fallback.
type SyntheticProvider struct {
	rng     *rand.Rand
	prices  map[string]float64
	mu      sync.Mutex
	timeNow func() time.Time
}

func NewSyntheticProvider(seed int64) *SyntheticProvider {
	return &SyntheticProvider{
		rng:     rand.New(rand.NewSource(seed)),
		prices:  make(map[string]float64),
		timeNow: time.Now,
	}
}

func (s *SyntheticProvider) basePrice(pair string) float64 {
	if p, ok := s.prices[pair]; ok {
		return p
	}
	p := 1000 + s.rng.Float64()*2000
	s.prices[pair] = p
	return p
}

// GetCandles returns a random walk of limit candles ending at the pair's
// current synthetic price, oldest first.
func (s *SyntheticProvider) GetCandles(_ context.Context, pair, _ string, limit int) ([]domain.Candle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	price := s.basePrice(pair)
	now := s.timeNow()

	candles := make([]domain.Candle, 0, limit)
	for i := 0; i < limit; i++ {
		change := (s.rng.Float64() - 0.5) * 0.05
		price = price * (1 + change)

		candles = append(candles, domain.Candle{
			Time:   now.Add(-time.Duration(limit-i) * time.Minute).Unix(),
			Open:   price,
			High:   price * (1 + s.rng.Float64()*0.02),
			Low:    price * (1 - s.rng.Float64()*0.02),
			Close:  price,
			Volume: s.rng.Float64() * 1000,
		})
	}

	s.prices[pair] = price
	return candles, nil
}

func (s *SyntheticProvider) GetCurrentPrice(_ context.Context, pair string) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.basePrice(pair), nil
}
