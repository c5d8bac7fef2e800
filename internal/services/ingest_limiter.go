package services

import (
	"sync"

	"golang.org/x/time/rate"
)

// IngestLimiter rate limits telemetry per bin so a misbehaving sensor
// cannot flood the history table.
type IngestLimiter struct {
	limit rate.Limit
	burst int

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewIngestLimiter allows perSecond readings per bin with the given burst.
// perSecond <= 0 disables limiting.
func NewIngestLimiter(perSecond float64, burst int) *IngestLimiter {
	limit := rate.Limit(perSecond)
	if perSecond <= 0 {
		limit = rate.Inf
	}
	if burst < 1 {
		burst = 1
	}
	return &IngestLimiter{
		limit:    limit,
		burst:    burst,
		limiters: make(map[string]*rate.Limiter),
	}
}

// Allow reports whether a reading for binID may be accepted now
func (l *IngestLimiter) Allow(binID string) bool {
	l.mu.Lock()
	lim, ok := l.limiters[binID]
	if !ok {
		lim = rate.NewLimiter(l.limit, l.burst)
		l.limiters[binID] = lim
	}
	l.mu.Unlock()
	return lim.Allow()
}

// Forget drops the limiter of a deleted bin
func (l *IngestLimiter) Forget(binID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.limiters, binID)
}
