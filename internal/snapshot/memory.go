package snapshot

import (
	"context"
	"fmt"
	"sync"
)

// MemoryStore keeps snapshots in memory for development and tests.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMemory creates an empty in-memory snapshot store.
func NewMemory() *MemoryStore {
	return &MemoryStore{data: make(map[string][]byte)}
}

// Put stores a copy of the snapshot and returns a pseudo URI.
func (s *MemoryStore) Put(_ context.Context, contentID string, html []byte) (string, error) {
	if contentID == "" {
		return "", fmt.Errorf("content id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[contentID] = append([]byte(nil), html...)
	return "memory://" + contentID, nil
}

// Get returns a stored snapshot, reporting whether it exists.
func (s *MemoryStore) Get(_ context.Context, contentID string) ([]byte, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.data[contentID]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), data...), true, nil
}
