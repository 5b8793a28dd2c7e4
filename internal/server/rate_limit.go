package server

import (
	"sync"
	"time"

	"github.com/adcondev/relay-daemon/internal/dependencies/clock"
)

// MessageRateLimiter restricts how many chat frames a single address
// can relay per minute.
type MessageRateLimiter struct {
	mu        sync.Mutex
	attempts  map[string][]time.Time
	maxPerMin int
	clock     clock.Clock
}

// NewMessageRateLimiter creates a limiter allowing maxPerMinute frames per address.
func NewMessageRateLimiter(maxPerMinute int, clk clock.Clock) *MessageRateLimiter {
	if clk == nil {
		clk = clock.New()
	}
	return &MessageRateLimiter{
		attempts:  make(map[string][]time.Time),
		maxPerMin: maxPerMinute,
		clock:     clk,
	}
}

// Allow returns true if the address has not exceeded the rate limit.
func (rl *MessageRateLimiter) Allow(addr string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.clock.Now()
	cutoff := now.Add(-time.Minute)

	recent := make([]time.Time, 0, rl.maxPerMin)
	for _, t := range rl.attempts[addr] {
		if t.After(cutoff) {
			recent = append(recent, t)
		}
	}

	if len(recent) >= rl.maxPerMin {
		rl.attempts[addr] = recent
		return false
	}

	rl.attempts[addr] = append(recent, now)
	return true
}

// Forget drops the history of an address
func (rl *MessageRateLimiter) Forget(addr string) {
	rl.mu.Lock()
	delete(rl.attempts, addr)
	rl.mu.Unlock()
}
