// Package ratelimit provides keyed token buckets with idle eviction
package ratelimit

import (
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"ruleexplain/internal/platform/config"
)

// evictEvery is how many Allow calls pass between idle sweeps
const evictEvery = 512

// Keyed applies one token bucket per key, e.g. per client IP
type Keyed struct {
	limit   rate.Limit
	burst   int
	idleTTL time.Duration

	mu    sync.Mutex
	byKey map[string]*bucket
	hits  uint64
}

type bucket struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

// New returns nil when rps or burst is not positive; a nil *Keyed allows everything
func New(rps float64, burst int, idleTTL time.Duration) *Keyed {
	if rps <= 0 || burst <= 0 {
		return nil
	}
	if idleTTL <= 0 {
		idleTTL = 10 * time.Minute
	}
	return &Keyed{
		limit:   rate.Limit(rps),
		burst:   burst,
		idleTTL: idleTTL,
		byKey:   make(map[string]*bucket),
	}
}

// FromConfig reads RPS, BURST and IDLE_TTL under c
func FromConfig(c config.Conf) *Keyed {
	return New(
		c.MayFloat64("RPS", 0),
		c.MayInt("BURST", 0),
		c.MayDuration("IDLE_TTL", 10*time.Minute),
	)
}

// Allow consumes one token for key at now; empty keys are never limited
func (l *Keyed) Allow(key string, now time.Time) bool {
	if l == nil {
		return true
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return true
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.byKey[key]
	if !ok {
		b = &bucket{lim: rate.NewLimiter(l.limit, l.burst)}
		l.byKey[key] = b
	}
	b.lastSeen = now
	allowed := b.lim.AllowN(now, 1)

	l.hits++
	if l.hits%evictEvery == 0 {
		l.evict(now)
	}
	return allowed
}

// Len reports how many keys are tracked
func (l *Keyed) Len() int {
	if l == nil {
		return 0
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.byKey)
}

func (l *Keyed) evict(now time.Time) {
	cutoff := now.Add(-l.idleTTL)
	for k, b := range l.byKey {
		if b.lastSeen.Before(cutoff) {
			delete(l.byKey, k)
		}
	}
}
