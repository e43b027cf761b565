package limiter

import (
	"context"
	"sync"
	"time"
)

type window struct {
	count   int
	resetAt time.Time
}

// MemoryLimiter is a fixed-window counter for a single process.
type MemoryLimiter struct {
	mu      sync.Mutex
	limit   int
	window  time.Duration
	entries map[string]*window
	now     func() time.Time
}

// NewMemoryLimiter allows limit attempts per key every window.
func NewMemoryLimiter(limit int, win time.Duration) *MemoryLimiter {
	return &MemoryLimiter{
		limit:   limit,
		window:  win,
		entries: make(map[string]*window),
		now:     time.Now,
	}
}

// Allow records an attempt for key and reports whether it is within the limit.
func (l *MemoryLimiter) Allow(ctx context.Context, key string) (bool, time.Duration, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.sweep(now)

	w, ok := l.entries[key]
	if !ok {
		w = &window{resetAt: now.Add(l.window)}
		l.entries[key] = w
	}
	w.count++

	if w.count <= l.limit {
		return true, 0, nil
	}
	return false, w.resetAt.Sub(now), nil
}

// Reset clears the counter for key.
func (l *MemoryLimiter) Reset(ctx context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.entries, key)
	return nil
}

// sweep drops elapsed windows. Callers hold mu.
func (l *MemoryLimiter) sweep(now time.Time) {
	for key, w := range l.entries {
		if !now.Before(w.resetAt) {
			delete(l.entries, key)
		}
	}
}
