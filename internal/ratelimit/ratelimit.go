// Package ratelimit keeps one token bucket per key (a device id) and forgets
// keys that have been idle for a while.
package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const idleTTL = 5 * time.Minute

type entry struct {
	limiter *rate.Limiter
	expires time.Time
}

// Keyed is a set of per-key limiters. A nil *Keyed allows everything.
type Keyed struct {
	limit rate.Limit
	burst int

	mu      sync.Mutex
	entries map[string]*entry
	now     func() time.Time
}

// New returns a limiter allowing perMinute events per key, with a burst of
// half that. perMinute <= 0 disables limiting and returns nil.
func New(perMinute int) *Keyed {
	if perMinute <= 0 {
		return nil
	}
	return &Keyed{
		limit:   rate.Every(time.Minute / time.Duration(perMinute)),
		burst:   max(perMinute/2, 1),
		entries: map[string]*entry{},
		now:     time.Now,
	}
}

// Allow reports whether an event for key may happen now.
func (k *Keyed) Allow(key string) bool {
	if k == nil {
		return true
	}
	k.mu.Lock()
	defer k.mu.Unlock()

	now := k.now()
	for key, e := range k.entries {
		if now.After(e.expires) {
			delete(k.entries, key)
		}
	}

	e, ok := k.entries[key]
	if !ok {
		e = &entry{limiter: rate.NewLimiter(k.limit, k.burst)}
		k.entries[key] = e
	}
	e.expires = now.Add(idleTTL)
	return e.limiter.AllowN(now, 1)
}

// Len returns the number of tracked keys.
func (k *Keyed) Len() int {
	if k == nil {
		return 0
	}
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.entries)
}
