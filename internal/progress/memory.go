package progress

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-process progress store used when no Redis address is
// configured, and as the test double for pipeline tests.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[int64]memoryEntry
	now     func() time.Time
}

type memoryEntry struct {
	percent   int
	expiresAt time.Time
}

// NewMemoryStore builds an empty in-process store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[int64]memoryEntry),
		now:     time.Now,
	}
}

// SetClock overrides the time source (used in TTL tests).
func (s *MemoryStore) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// Set stores the clamped percent value with the given TTL.
func (s *MemoryStore) Set(_ context.Context, jobID int64, percent int, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[jobID] = memoryEntry{
		percent:   clamp(percent),
		expiresAt: s.now().Add(ttl),
	}
	return nil
}

// Get reads the progress value, expiring stale entries lazily.
func (s *MemoryStore) Get(_ context.Context, jobID int64) (int, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[jobID]
	if !ok {
		return 0, false, nil
	}
	if s.now().After(entry.expiresAt) {
		delete(s.entries, jobID)
		return 0, false, nil
	}
	return entry.percent, true, nil
}
