// Package memory provides an in-process Backend backed by a map.
//
// It is deterministic (no admission policy, no eviction) which makes it the
// backend of choice for tests and single-process tools. Expired entries are
// dropped lazily by the next Add or CAS on the same key.
package memory

import (
	"sync"
	"time"

	"github.com/unkn0wn-root/idcache/backend"
	"github.com/unkn0wn-root/idcache/internal/bytestore"
)

type Options struct {
	DefaultTTL time.Duration    // expiry for cached values; 0 => none
	Now        func() time.Time // clock override for tests
}

// Backend is a map-backed backend.Backend.
type Backend struct {
	*bytestore.Store
	m *mapStore
}

var _ backend.Backend = (*Backend)(nil)

func New() *Backend { return NewWithOptions(Options{}) }

func NewWithOptions(opts Options) *Backend {
	m := &mapStore{m: make(map[string][]byte)}
	return &Backend{
		Store: bytestore.New(m, bytestore.Options{DefaultTTL: opts.DefaultTTL, Now: opts.Now}),
		m:     m,
	}
}

// Len returns the number of stored frames, expired ones included.
func (b *Backend) Len() int {
	b.m.mu.RLock()
	defer b.m.mu.RUnlock()
	return len(b.m.m)
}

// Flush drops every entry.
func (b *Backend) Flush() {
	b.m.mu.Lock()
	b.m.m = make(map[string][]byte)
	b.m.mu.Unlock()
}

type mapStore struct {
	mu sync.RWMutex
	m  map[string][]byte
}

func (s *mapStore) Get(key string) ([]byte, bool, error) {
	s.mu.RLock()
	v, ok := s.m[key]
	s.mu.RUnlock()
	return v, ok, nil
}

func (s *mapStore) Put(key string, value []byte, _ time.Duration) error {
	s.mu.Lock()
	s.m[key] = value
	s.mu.Unlock()
	return nil
}

func (s *mapStore) Del(key string) error {
	s.mu.Lock()
	delete(s.m, key)
	s.mu.Unlock()
	return nil
}

func (s *mapStore) Close() error { return nil }
