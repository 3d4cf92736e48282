package services

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// attemptLimiter throttles password checks per user. A nil limiter allows
// everything.
type attemptLimiter struct {
	mu       sync.Mutex
	every    time.Duration
	burst    int
	limiters map[string]*rate.Limiter
}

func newAttemptLimiter(every time.Duration, burst int) *attemptLimiter {
	if burst <= 0 {
		return nil
	}
	return &attemptLimiter{every: every, burst: burst, limiters: make(map[string]*rate.Limiter)}
}

func (l *attemptLimiter) allow(userID string) bool {
	if l == nil {
		return true
	}
	l.mu.Lock()
	lim, ok := l.limiters[userID]
	if !ok {
		lim = rate.NewLimiter(rate.Every(l.every), l.burst)
		l.limiters[userID] = lim
	}
	l.mu.Unlock()
	return lim.Allow()
}
