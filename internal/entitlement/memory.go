package entitlement

import (
	"context"
	"sync"
	"time"
)

type flagEntry struct {
	on        bool
	expiresAt time.Time
}

func (e *flagEntry) isExpired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

// MemoryFlagStore keeps flags in process memory
type MemoryFlagStore struct {
	flags sync.Map
	now   func() time.Time
}

// NewMemoryFlagStore creates an empty in-memory flag store
func NewMemoryFlagStore() *MemoryFlagStore {
	return &MemoryFlagStore{now: time.Now}
}

// GetFlag returns the flag; expired entries are dropped
func (s *MemoryFlagStore) GetFlag(_ context.Context, key string) (bool, bool, error) {
	v, ok := s.flags.Load(key)
	if !ok {
		return false, false, nil
	}
	entry := v.(*flagEntry)
	if entry.isExpired(s.now()) {
		s.flags.Delete(key)
		return false, false, nil
	}
	return entry.on, true, nil
}

// SetFlag stores the flag
func (s *MemoryFlagStore) SetFlag(_ context.Context, key string, on bool, ttl time.Duration) error {
	entry := &flagEntry{on: on}
	if ttl > 0 {
		entry.expiresAt = s.now().Add(ttl)
	}
	s.flags.Store(key, entry)
	return nil
}
