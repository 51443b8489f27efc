// Package ratelimit admits command executions through a sliding window.
package ratelimit

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrRateLimited is returned by Allow when the window is full.
var ErrRateLimited = errors.New("rate limit exceeded")

// Config sizes the window.
type Config struct {
	MaxRequests int
	Window      time.Duration
}

// Limiter keeps the admission timestamps of the last Window. A nil
// *Limiter admits everything.
type Limiter struct {
	mu    sync.Mutex
	max   int
	win   time.Duration
	stamp []time.Time
	now   func() time.Time
}

// New creates a limiter. MaxRequests and Window must be positive.
func New(cfg Config) (*Limiter, error) {
	if cfg.MaxRequests <= 0 {
		return nil, fmt.Errorf("max requests must be positive, got %d", cfg.MaxRequests)
	}
	if cfg.Window <= 0 {
		return nil, fmt.Errorf("window must be positive, got %s", cfg.Window)
	}
	return &Limiter{
		max:   cfg.MaxRequests,
		win:   cfg.Window,
		stamp: make([]time.Time, 0, cfg.MaxRequests),
		now:   time.Now,
	}, nil
}

// Check admits one request and records it, or denies without recording.
func (l *Limiter) Check() bool {
	if l == nil {
		return true
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.prune(now)
	if len(l.stamp) >= l.max {
		return false
	}
	l.stamp = append(l.stamp, now)
	return true
}

// Allow is Check returning ErrRateLimited with the wait on denial.
func (l *Limiter) Allow() error {
	if l.Check() {
		return nil
	}
	return fmt.Errorf("%w: retry in %s", ErrRateLimited, l.WaitTime())
}

// WaitTime returns how long until the next request would be admitted.
func (l *Limiter) WaitTime() time.Duration {
	if l == nil {
		return 0
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.prune(now)
	if len(l.stamp) < l.max {
		return 0
	}
	wait := l.stamp[0].Add(l.win).Sub(now)
	if wait < 0 {
		return 0
	}
	return wait
}

// Remaining returns how many requests the window would still admit.
func (l *Limiter) Remaining() int {
	if l == nil {
		return -1
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.prune(l.now())
	return l.max - len(l.stamp)
}

// prune drops timestamps at or before now-win. Caller holds mu.
func (l *Limiter) prune(now time.Time) {
	cutoff := now.Add(-l.win)
	i := 0
	for i < len(l.stamp) && !l.stamp[i].After(cutoff) {
		i++
	}
	if i > 0 {
		l.stamp = append(l.stamp[:0], l.stamp[i:]...)
	}
}
