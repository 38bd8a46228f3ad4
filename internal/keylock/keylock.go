// Package keylock provides striped mutexes keyed by string.
package keylock

import (
	"sync"

	"github.com/cespare/xxhash/v2"
)

const defaultStripes = 256

// Striped maps keys onto a fixed set of mutexes. Two keys may share a
// stripe; a key always maps to the same one.
type Striped struct {
	mu []sync.Mutex
}

// New returns a Striped with n stripes (n <= 0 => 256).
func New(n int) *Striped {
	if n <= 0 {
		n = defaultStripes
	}
	return &Striped{mu: make([]sync.Mutex, n)}
}

// For returns the mutex guarding key.
func (s *Striped) For(key string) *sync.Mutex {
	return &s.mu[xxhash.Sum64String(key)%uint64(len(s.mu))]
}

// Do runs fn while holding the stripe for key.
func (s *Striped) Do(key string, fn func()) {
	m := s.For(key)
	m.Lock()
	defer m.Unlock()
	fn()
}
