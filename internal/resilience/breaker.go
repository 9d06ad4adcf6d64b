// Package resilience provides the retrying HTTP client and circuit breaker
// used for outbound calls to the print vendor and the payment provider.
package resilience

import (
	"errors"
	"math/rand"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// ErrOpenCircuit is returned when the breaker refuses a request.
var ErrOpenCircuit = errors.New("resilience: circuit breaker open")

// Breaker trips after a run of consecutive failures and stays open for a
// cool-off period. The first request after the cool-off acts as the probe.
type Breaker struct {
	mu        sync.Mutex
	failures  int
	threshold int
	openFor   time.Duration
	openedAt  time.Time
	target    string
	logger    zerolog.Logger
}

// NewBreaker constructs a breaker that opens after threshold consecutive
// failures and rejects requests for openFor.
func NewBreaker(target string, threshold int, openFor time.Duration, logger zerolog.Logger) *Breaker {
	if threshold <= 0 {
		threshold = 5
	}
	if openFor <= 0 {
		openFor = 30 * time.Second
	}
	return &Breaker{threshold: threshold, openFor: openFor, target: target, logger: logger}
}

// Allow reports whether a request may proceed.
func (b *Breaker) Allow() bool {
	if b == nil {
		return true
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failures < b.threshold {
		return true
	}
	if time.Since(b.openedAt) >= b.openFor {
		// Probe: let one request through. A failure re-opens immediately.
		b.failures = b.threshold - 1
		return true
	}
	return false
}

// Report records the outcome of a request.
func (b *Breaker) Report(success bool) {
	if b == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if success {
		if b.failures >= b.threshold {
			b.logger.Info().Str("target", b.target).Msg("breaker_closed")
		}
		b.failures = 0
		return
	}
	b.failures++
	if b.failures == b.threshold {
		b.openedAt = time.Now()
		b.logger.Warn().Str("target", b.target).Dur("open_for", b.openFor).Msg("breaker_opened")
	}
}

// Backoff returns an exponential backoff for attempt with proportional jitter.
func Backoff(base time.Duration, attempt int, jitterPct float64) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if base <= 0 {
		base = 100 * time.Millisecond
	}
	d := base * time.Duration(1<<uint(attempt-1))
	if jitterPct <= 0 {
		return d
	}
	delta := (rand.Float64()*2 - 1) * float64(d) * jitterPct
	return d + time.Duration(delta)
}
