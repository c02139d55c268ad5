package ratelimit

import (
	"log"
	"sync"
	"time"

	"social-chat/internal/apperrors"
	"social-chat/internal/observability"
)

// Limiter applies per-user sliding-window admission control. State is
// process-local and lost on restart; it only bounds short bursts.
type Limiter struct {
	burst  int
	window time.Duration

	mu      sync.Mutex
	windows map[int64][]time.Time
	enabled bool

	now func() time.Time
}

// New builds a Limiter admitting at most burst calls per user per window.
func New(burst int, window time.Duration) *Limiter {
	return &Limiter{
		burst:   burst,
		window:  window,
		windows: make(map[int64][]time.Time),
		enabled: true,
		now:     time.Now,
	}
}

// Allow admits the call or fails with RATE_LIMITED. Rejected calls are not
// recorded against the window.
func (l *Limiter) Allow(userID int64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.enabled {
		return nil
	}

	now := l.now()
	cutoff := now.Add(-l.window)

	timestamps := l.windows[userID]
	kept := timestamps[:0]
	for _, ts := range timestamps {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}

	if len(kept) >= l.burst {
		l.windows[userID] = kept
		observability.IncRateLimited()
		log.Printf("rate limit exceeded user=%d count=%d window=%s", userID, len(kept), l.window)
		return apperrors.New(apperrors.CodeRateLimited, "rate limit exceeded")
	}

	l.windows[userID] = append(kept, now)
	return nil
}

// SetEnabled toggles rate limiting. Disabling is a test/ops escape hatch.
func (l *Limiter) SetEnabled(enabled bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.enabled = enabled
	log.Printf("rate limiting enabled=%t", enabled)
}

// Reset clears a user's window.
func (l *Limiter) Reset(userID int64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.windows, userID)
}

// Count reports how many admissions remain recorded in the user's window.
func (l *Limiter) Count(userID int64) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := l.now().Add(-l.window)
	count := 0
	for _, ts := range l.windows[userID] {
		if ts.After(cutoff) {
			count++
		}
	}
	return count
}
