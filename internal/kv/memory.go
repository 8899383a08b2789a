package kv

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	value     string
	expiresAt time.Time
}

// memoryStore is an in-process Store used for tests and single-node runs
// without a Redis deployment.
type memoryStore struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	lists   map[string][]string
	now     func() time.Time
}

// NewMemory returns an in-memory Store with TTL support.
func NewMemory() Store {
	return &memoryStore{
		entries: make(map[string]memoryEntry),
		lists:   make(map[string][]string),
		now:     time.Now,
	}
}

func (s *memoryStore) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.RLock()
	entry, ok := s.entries[key]
	s.mu.RUnlock()
	if !ok {
		return "", false, nil
	}
	if !entry.expiresAt.IsZero() && s.now().After(entry.expiresAt) {
		s.mu.Lock()
		delete(s.entries, key)
		s.mu.Unlock()
		return "", false, nil
	}
	return entry.value, true, nil
}

func (s *memoryStore) SetEx(_ context.Context, key, value string, ttl time.Duration) error {
	var expiresAt time.Time
	if ttl > 0 {
		expiresAt = s.now().Add(ttl)
	}
	s.mu.Lock()
	s.entries[key] = memoryEntry{value: value, expiresAt: expiresAt}
	s.mu.Unlock()
	return nil
}

func (s *memoryStore) RPush(_ context.Context, key, value string) error {
	s.mu.Lock()
	s.lists[key] = append(s.lists[key], value)
	s.mu.Unlock()
	return nil
}

func (s *memoryStore) LRange(_ context.Context, key string, start, stop int64) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	list := s.lists[key]
	n := int64(len(list))
	if start < 0 {
		start += n
	}
	if stop < 0 {
		stop += n
	}
	if start < 0 {
		start = 0
	}
	if stop >= n {
		stop = n - 1
	}
	if n == 0 || start > stop || start >= n {
		return nil, nil
	}
	out := make([]string, stop-start+1)
	copy(out, list[start:stop+1])
	return out, nil
}

func (s *memoryStore) Close() error {
	return nil
}
