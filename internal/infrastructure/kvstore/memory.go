// Package kvstore provides the key-value storage capability behind the
// local submission gateway.
package kvstore

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/erp/orderdesk/internal/domain/trade"
)

// ErrQuotaExceeded is returned when a write would exceed the store's capacity
var ErrQuotaExceeded = errors.New("storage quota exceeded")

// MemoryStore implements KeyValueStore using an in-memory map.
// This is suitable for single-instance deployments and testing.
type MemoryStore struct {
	mu       sync.RWMutex
	entries  map[string]string
	maxBytes int
	size     int
}

// NewMemoryStore creates a new in-memory store. A positive maxBytes caps the
// total size of keys and values, like a browser storage quota.
func NewMemoryStore(maxBytes int) *MemoryStore {
	return &MemoryStore{
		entries:  make(map[string]string),
		maxBytes: maxBytes,
	}
}

// Get returns the value stored under key
func (s *MemoryStore) Get(ctx context.Context, key string) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.entries[key]
	return v, ok, nil
}

// Set stores value under key, replacing any previous value
func (s *MemoryStore) Set(ctx context.Context, key, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	size := s.size + len(key) + len(value)
	if old, ok := s.entries[key]; ok {
		size -= len(key) + len(old)
	}
	if s.maxBytes > 0 && size > s.maxBytes {
		return fmt.Errorf("setting %q: %w", key, ErrQuotaExceeded)
	}
	s.entries[key] = value
	s.size = size
	return nil
}

// Remove deletes key. Removing an absent key is not an error.
func (s *MemoryStore) Remove(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if old, ok := s.entries[key]; ok {
		s.size -= len(key) + len(old)
		delete(s.entries, key)
	}
	return nil
}

// Len returns the number of keys in the store (for testing/monitoring)
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Ensure MemoryStore implements KeyValueStore
var _ trade.KeyValueStore = (*MemoryStore)(nil)
