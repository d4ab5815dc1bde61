package subtitles

import (
	"log"
	"sync"
	"time"

	"github.com/sony/gobreaker"
)

// BreakerSet keeps one circuit breaker per provider. A provider that fails
// consecutively is muted for the configured window, then probed with a single
// request before readmission.
type BreakerSet struct {
	mu        sync.Mutex
	breakers  map[string]*gobreaker.CircuitBreaker
	threshold uint32
	mute      time.Duration
}

// NewBreakerSet builds an empty registry with the given trip policy.
func NewBreakerSet(failureThreshold int, mute time.Duration) *BreakerSet {
	if failureThreshold < 1 {
		failureThreshold = 1
	}
	return &BreakerSet{
		breakers:  make(map[string]*gobreaker.CircuitBreaker),
		threshold: uint32(failureThreshold),
		mute:      mute,
	}
}

func (b *BreakerSet) get(provider string) *gobreaker.CircuitBreaker {
	b.mu.Lock()
	defer b.mu.Unlock()
	if cb, ok := b.breakers[provider]; ok {
		return cb
	}
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        provider,
		MaxRequests: 1,
		Timeout:     b.mute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= b.threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Printf("[breaker] provider=%s state %s -> %s", name, from, to)
		},
	})
	b.breakers[provider] = cb
	return cb
}

// Execute runs fn through the provider's breaker. While the breaker is open
// the call is rejected without reaching the provider and the error maps to
// ErrProviderUnavailable.
func (b *BreakerSet) Execute(provider string, fn func() ([]Candidate, error)) ([]Candidate, error) {
	result, err := b.get(provider).Execute(func() (interface{}, error) {
		return fn()
	})
	if err != nil {
		if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
			return nil, ErrProviderUnavailable
		}
		return nil, err
	}
	candidates, _ := result.([]Candidate)
	return candidates, nil
}

// Muted reports whether the provider's breaker currently rejects calls.
func (b *BreakerSet) Muted(provider string) bool {
	return b.get(provider).State() == gobreaker.StateOpen
}
