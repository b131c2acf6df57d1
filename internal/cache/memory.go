package cache

import (
	"context"
	"strings"
	"sync"
	"time"
)

// MemoryStore is a process-local Store, used for single-invocation runs and
// tests. Safe for concurrent use.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]*Entry
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]*Entry)}
}

func (s *MemoryStore) Get(ctx context.Context, key string) (*Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if entry, ok := s.entries[key]; ok {
		return entry, nil
	}
	return nil, nil
}

func (s *MemoryStore) PutIfAbsent(ctx context.Context, key string, blob []byte) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[key]; ok {
		return false, nil
	}
	s.entries[key] = &Entry{Key: key, Blob: blob, WrittenAt: time.Now()}
	return true, nil
}

func (s *MemoryStore) FindByPrefix(ctx context.Context, prefix string) (*Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var best *Entry
	for key, entry := range s.entries {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		if best == nil || entry.WrittenAt.After(best.WrittenAt) ||
			(entry.WrittenAt.Equal(best.WrittenAt) && key > best.Key) {
			best = entry
		}
	}
	return best, nil
}
