// Package ratelimit gates request issuance against the remote API. It bounds
// concurrent in-flight requests with a counting semaphore, steady-state
// throughput with a token bucket, and enters a pool-wide cooldown whenever
// the API signals rate-limit rejection.
package ratelimit

import (
	"sync"
	"time"
)

// cooldownState tracks the pool-wide cooldown window. A burst of 429-style
// rejections must throttle the entire pool, not just the offending worker,
// so the window is shared and only ever extended, never shortened.
type cooldownState struct {
	mu    sync.Mutex
	until time.Time
}

// Enter extends the cooldown window to now+d if that is later than the
// current window end. Returns true if the window was extended.
func (s *cooldownState) Enter(d time.Duration) bool {
	if d <= 0 {
		return false
	}

	until := time.Now().Add(d)

	s.mu.Lock()
	defer s.mu.Unlock()
	if until.After(s.until) {
		s.until = until
		return true
	}
	return false
}

// Remaining returns the time left in the cooldown window, or 0 if none is
// active.
func (s *cooldownState) Remaining() time.Duration {
	s.mu.Lock()
	until := s.until
	s.mu.Unlock()

	d := time.Until(until)
	if d < 0 {
		return 0
	}
	return d
}

// Active reports whether a cooldown window is currently in effect.
func (s *cooldownState) Active() bool {
	return s.Remaining() > 0
}
