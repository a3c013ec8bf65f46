// Package memory is an in-process avatar store for tests and development.
package memory

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/utafrali/accounts/internal/storage"
)

// Store keeps file contents in a map.
type Store struct {
	mu      sync.RWMutex
	files   map[string][]byte
	deleted []string
}

// New returns an empty Store.
func New() *Store {
	return &Store{files: make(map[string][]byte)}
}

// Put stores data under key.
func (s *Store) Put(key string, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[key] = data
}

// Has reports whether key is stored.
func (s *Store) Has(key string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.files[key]
	return ok
}

// Deleted returns the keys passed to Delete, in call order.
func (s *Store) Deleted() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.deleted...)
}

// Delete removes key. Missing keys are not an error.
func (s *Store) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if strings.TrimSpace(key) == "" {
		return fmt.Errorf("%w: empty key", storage.ErrInvalidKey)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.files, key)
	s.deleted = append(s.deleted, key)
	return nil
}
