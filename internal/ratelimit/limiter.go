package ratelimit

import (
	"sync"
	"time"
)

const (
	// WindowDuration is the sliding window size
	WindowDuration = time.Minute
)

// Limiter paces outgoing chat messages per account with a sliding window
type Limiter struct {
	limit   int                    // max messages per window (0 = disabled)
	windows map[string][]time.Time // account -> send times inside the window
	now     func() time.Time
	mu      sync.Mutex
}

// New creates a limiter allowing limit messages per minute per account.
// limit <= 0 disables it.
func New(limit int) *Limiter {
	return &Limiter{
		limit:   limit,
		windows: make(map[string][]time.Time),
		now:     time.Now,
	}
}

// Limit returns the configured messages per minute
func (l *Limiter) Limit() int {
	return l.limit
}

// prune drops timestamps that left the window; caller holds mu
func (l *Limiter) prune(key string, now time.Time) []time.Time {
	cutoff := now.Add(-WindowDuration)
	kept := l.windows[key][:0]
	for _, ts := range l.windows[key] {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	if len(kept) == 0 {
		delete(l.windows, key)
		return nil
	}
	l.windows[key] = kept
	return kept
}

// Allow records a message for key and reports whether it may be sent
func (l *Limiter) Allow(key string) bool {
	if l.limit <= 0 {
		return true
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	window := l.prune(key, now)
	if len(window) >= l.limit {
		return false
	}
	l.windows[key] = append(window, now)
	return true
}

// Remaining returns how many messages key may still send in the current
// window, or -1 when limiting is disabled
func (l *Limiter) Remaining(key string) int {
	if l.limit <= 0 {
		return -1
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	remaining := l.limit - len(l.prune(key, l.now()))
	if remaining < 0 {
		remaining = 0
	}
	return remaining
}

// RetryAfter returns how long key must wait before the next message is
// allowed. Zero means a message can be sent now.
func (l *Limiter) RetryAfter(key string) time.Duration {
	if l.limit <= 0 {
		return 0
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	window := l.prune(key, now)
	if len(window) < l.limit {
		return 0
	}
	// Oldest entry leaving the window frees a slot
	return window[0].Add(WindowDuration).Sub(now)
}

// Reset clears the window for key (e.g. after logout)
func (l *Limiter) Reset(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.windows, key)
}

// ResetAll clears all windows
func (l *Limiter) ResetAll() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.windows = make(map[string][]time.Time)
}
