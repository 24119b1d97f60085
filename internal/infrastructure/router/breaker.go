package router

import (
	"fmt"
	"sync"
	"time"
)

// ErrBreakerOpen is returned while the circuit breaker refuses acquisitions.
var ErrBreakerOpen = fmt.Errorf("router circuit breaker open")

// Breaker is a fail-fast guard over router connections. After maxErrors
// consecutive failures it opens; the cooldown doubles with every further
// failure, capped at maxCooldown. After a cooldown elapses a single
// half-open probe may pass; its success resets all counters.
type Breaker struct {
	maxErrors   int
	base        time.Duration
	maxCooldown time.Duration

	mu       sync.Mutex
	errors   int
	openedAt time.Time
	halfOpen bool
	now      func() time.Time
}

func NewBreaker(maxErrors int, base, maxCooldown time.Duration) *Breaker {
	if maxErrors <= 0 {
		maxErrors = 5
	}
	if base <= 0 {
		base = 10 * time.Second
	}
	if maxCooldown <= 0 {
		maxCooldown = 5 * time.Minute
	}
	return &Breaker{
		maxErrors:   maxErrors,
		base:        base,
		maxCooldown: maxCooldown,
		now:         time.Now,
	}
}

// Allow reports whether a connection attempt may proceed. When the breaker
// is open past its cooldown it admits exactly one half-open probe.
func (b *Breaker) Allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.errors < b.maxErrors {
		return nil
	}

	if b.now().Before(b.openedAt.Add(b.cooldown())) {
		return ErrBreakerOpen
	}

	if b.halfOpen {
		return ErrBreakerOpen
	}
	b.halfOpen = true
	return nil
}

// RecordFailure counts one failure and (re)opens the breaker window.
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.errors++
	b.openedAt = b.now()
	b.halfOpen = false
}

// RecordSuccess closes the breaker and resets counters.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.errors = 0
	b.halfOpen = false
}

// IsOpen reports whether acquisitions currently fail fast.
func (b *Breaker) IsOpen() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.errors >= b.maxErrors && b.now().Before(b.openedAt.Add(b.cooldown()))
}

// Errors returns the consecutive error count.
func (b *Breaker) Errors() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.errors
}

// cooldown is base << (errors - maxErrors + 1), capped. Callers hold b.mu.
func (b *Breaker) cooldown() time.Duration {
	shift := b.errors - b.maxErrors + 1
	if shift < 1 {
		shift = 1
	}
	// Guard the shift to avoid overflow before capping.
	if shift > 20 {
		shift = 20
	}
	d := b.base << uint(shift)
	if d > b.maxCooldown {
		d = b.maxCooldown
	}
	return d
}
