// Package bytestore turns a plain in-process byte store into a
// backend.Backend.
//
// Raw stores (maps, ristretto, bigcache) have no concurrency tokens and
// sometimes no per-entry TTL. Store wraps every value in a wire stamp that
// carries a monotonically increasing version (the token) and an absolute
// expiry, and serializes Add/CAS/Set per key with striped locks so the
// check-then-write sequences are atomic within the process.
package bytestore

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/unkn0wn-root/idcache/backend"
	"github.com/unkn0wn-root/idcache/internal/keylock"
	"github.com/unkn0wn-root/idcache/internal/wire"
)

// Raw is a byte store without tokens. Must be safe for concurrent use.
type Raw interface {
	// Get returns (nil, false, nil) on miss.
	Get(key string) ([]byte, bool, error)
	// Put stores value; ttl is a hint (<= 0 => no expiry) that stores may ignore.
	Put(key string, value []byte, ttl time.Duration) error
	Del(key string) error
	Close() error
}

type Options struct {
	Stripes    int              // 0 => 256
	DefaultTTL time.Duration    // expiry for values written by Add/CAS; 0 => none
	Now        func() time.Time // nil => time.Now
}

// Store implements backend.Backend on top of a Raw store.
type Store struct {
	raw        Raw
	locks      *keylock.Striped
	seq        atomic.Uint64
	now        func() time.Time
	defaultTTL time.Duration
}

var _ backend.Backend = (*Store)(nil)

func New(raw Raw, opts Options) *Store {
	s := &Store{
		raw:        raw,
		locks:      keylock.New(opts.Stripes),
		now:        opts.Now,
		defaultTTL: opts.DefaultTTL,
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

func (s *Store) Get(_ context.Context, key string) (backend.Item, bool, error) {
	st, ok, err := s.load(key, false)
	if err != nil || !ok {
		return backend.Item{}, false, err
	}
	return backend.Item{Value: st.Payload, Token: backend.Token(st.Version)}, true, nil
}

func (s *Store) Add(_ context.Context, key string, value []byte) (bool, error) {
	m := s.locks.For(key)
	m.Lock()
	defer m.Unlock()

	_, ok, err := s.load(key, true)
	if err != nil {
		return false, err
	}
	if ok {
		return false, nil
	}
	if err := s.put(key, value, s.defaultTTL); err != nil {
		return false, err
	}
	return true, nil
}

func (s *Store) CAS(_ context.Context, key string, value []byte, token backend.Token) (bool, error) {
	m := s.locks.For(key)
	m.Lock()
	defer m.Unlock()

	st, ok, err := s.load(key, true)
	if err != nil {
		return false, err
	}
	if !ok || backend.Token(st.Version) != token {
		return false, nil
	}
	if err := s.put(key, value, s.defaultTTL); err != nil {
		return false, err
	}
	return true, nil
}

func (s *Store) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	m := s.locks.For(key)
	m.Lock()
	defer m.Unlock()
	return s.put(key, value, ttl)
}

func (s *Store) Close(context.Context) error { return s.raw.Close() }

// load returns the live stamp at key. Expired and undecodable frames are
// reported as absent. They are deleted only when prune is set, which
// requires the stripe lock for key: an unlocked delete could erase a
// tombstone written after the read.
func (s *Store) load(key string, prune bool) (wire.Stamp, bool, error) {
	b, ok, err := s.raw.Get(key)
	if err != nil {
		return wire.Stamp{}, false, backend.Unavailable("get", err)
	}
	if !ok {
		return wire.Stamp{}, false, nil
	}
	st, err := wire.DecodeStamp(b)
	if err != nil || st.Expired(s.now().UnixNano()) {
		if prune {
			_ = s.raw.Del(key)
		}
		return wire.Stamp{}, false, nil
	}
	return st, true, nil
}

func (s *Store) put(key string, value []byte, ttl time.Duration) error {
	var exp int64
	if ttl > 0 {
		exp = s.now().Add(ttl).UnixNano()
	}
	frame := wire.EncodeStamp(wire.Stamp{
		Version:   s.seq.Add(1),
		ExpiresAt: exp,
		Payload:   value,
	})
	if err := s.raw.Put(key, frame, ttl); err != nil {
		return backend.Unavailable("put", err)
	}
	return nil
}
