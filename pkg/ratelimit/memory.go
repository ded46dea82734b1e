package ratelimit

import (
	"context"
	"sync"
	"time"
)

type window struct {
	start  time.Time
	count  int
	length time.Duration
}

// MemoryLimiter keeps windows in process memory. Limits are per instance only.
type MemoryLimiter struct {
	mu      sync.Mutex
	windows map[string]*window
	now     func() time.Time
}

func NewMemoryLimiter() *MemoryLimiter {
	return NewMemoryLimiterWithClock(time.Now)
}

func NewMemoryLimiterWithClock(now func() time.Time) *MemoryLimiter {
	return &MemoryLimiter{
		windows: make(map[string]*window),
		now:     now,
	}
}

func (l *MemoryLimiter) Consume(_ context.Context, key string, policy Policy) (bool, error) {
	if policy.Points <= 0 || policy.Window <= 0 {
		return true, nil
	}

	now := l.now()
	k := counterKey(policy.Name, key)

	l.mu.Lock()
	defer l.mu.Unlock()

	w, ok := l.windows[k]
	if !ok || now.Sub(w.start) >= policy.Window {
		l.windows[k] = &window{start: now, count: 1, length: policy.Window}
		return true, nil
	}

	if w.count >= policy.Points {
		return false, nil
	}
	w.count++
	return true, nil
}

// Sweep drops windows that have already elapsed and returns how many were removed.
func (l *MemoryLimiter) Sweep() int {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	removed := 0
	for k, w := range l.windows {
		if now.Sub(w.start) >= w.length {
			delete(l.windows, k)
			removed++
		}
	}
	return removed
}

func counterKey(policy, key string) string {
	return "ratelimit:" + policy + ":" + key
}
