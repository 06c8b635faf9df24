// Package cache keeps recorded minutes per date so balance reads do not have
// to touch the daily attendance table. Entries are only ever invalidated when
// a new heartbeat arrives for that date.
package cache

import (
	"context"
	"sync"
	"time"

	"github.com/attendlog/internal/ledger"
)

// MinutesCache stores recorded minutes keyed by date.
type MinutesCache interface {
	// GetMany returns the cached values for the requested dates; missing
	// dates are absent from the result.
	GetMany(ctx context.Context, dates []ledger.Date) (map[ledger.Date]int, error)
	SetMany(ctx context.Context, values map[ledger.Date]int) error
	Invalidate(ctx context.Context, date ledger.Date) error
	Flush(ctx context.Context) error
}

type memoryEntry struct {
	minutes int
	expires time.Time
}

// Memory is an in-process MinutesCache.
type Memory struct {
	ttl     time.Duration
	mu      sync.RWMutex
	entries map[ledger.Date]memoryEntry
	now     func() time.Time
}

// NewMemory returns an empty cache; ttl <= 0 keeps entries until invalidated.
func NewMemory(ttl time.Duration) *Memory {
	return &Memory{ttl: ttl, entries: make(map[ledger.Date]memoryEntry), now: time.Now}
}

func (m *Memory) GetMany(_ context.Context, dates []ledger.Date) (map[ledger.Date]int, error) {
	now := m.now()
	out := make(map[ledger.Date]int, len(dates))
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, d := range dates {
		e, ok := m.entries[d]
		if !ok || (!e.expires.IsZero() && now.After(e.expires)) {
			continue
		}
		out[d] = e.minutes
	}
	return out, nil
}

func (m *Memory) SetMany(_ context.Context, values map[ledger.Date]int) error {
	var expires time.Time
	if m.ttl > 0 {
		expires = m.now().Add(m.ttl)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for d, v := range values {
		m.entries[d] = memoryEntry{minutes: v, expires: expires}
	}
	return nil
}

func (m *Memory) Invalidate(_ context.Context, date ledger.Date) error {
	m.mu.Lock()
	delete(m.entries, date)
	m.mu.Unlock()
	return nil
}

func (m *Memory) Flush(_ context.Context) error {
	m.mu.Lock()
	m.entries = make(map[ledger.Date]memoryEntry)
	m.mu.Unlock()
	return nil
}

// Len reports the number of stored entries, expired ones included.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}
