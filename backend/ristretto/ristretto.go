// Package ristretto adapts dgraph-io/ristretto to backend.Backend.
//
// Ristretto is an admission-controlled cache: a write may be dropped under
// pressure or rejected by the cost policy. Every write is waited on and read
// back; one that did not land fails with backend.ErrUnavailable, so a
// rejected tombstone is reported as a failed invalidation instead of being
// silently lost.
package ristretto

import (
	"bytes"
	"errors"
	"time"

	rc "github.com/dgraph-io/ristretto"

	"github.com/unkn0wn-root/idcache/backend"
	"github.com/unkn0wn-root/idcache/internal/bytestore"
)

type Config struct {
	NumCounters int64
	MaxCost     int64
	BufferItems int64
	Metrics     bool
	DefaultTTL  time.Duration // expiry for cached values; 0 => none
}

// Backend stores stamped frames in a ristretto cache. Cost is the frame size.
type Backend struct {
	*bytestore.Store
	c *rc.Cache
}

var _ backend.Backend = (*Backend)(nil)

func New(cfg Config) (*Backend, error) {
	if cfg.NumCounters <= 0 || cfg.MaxCost <= 0 || cfg.BufferItems <= 0 {
		return nil, errors.New("ristretto: invalid config")
	}
	c, err := rc.NewCache(&rc.Config{
		NumCounters: cfg.NumCounters,
		MaxCost:     cfg.MaxCost,
		BufferItems: cfg.BufferItems,
		Metrics:     cfg.Metrics,
	})
	if err != nil {
		return nil, err
	}
	return &Backend{
		Store: bytestore.New(raw{c: c}, bytestore.Options{DefaultTTL: cfg.DefaultTTL}),
		c:     c,
	}, nil
}

// Metrics exposes ristretto's counters (nil unless Config.Metrics).
func (b *Backend) Metrics() *rc.Metrics { return b.c.Metrics }

var errNotAdmitted = errors.New("ristretto: write not admitted")

type raw struct{ c *rc.Cache }

func (r raw) Get(key string) ([]byte, bool, error) {
	v, ok := r.c.Get(key)
	if !ok {
		return nil, false, nil
	}
	b, _ := v.([]byte)
	if b == nil {
		return nil, false, nil
	}
	return b, true, nil
}

func (r raw) Put(key string, value []byte, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0
	}
	if !r.c.SetWithTTL(key, value, int64(len(value)), ttl) {
		return errNotAdmitted
	}
	// make the write visible to the next Get under the same stripe lock
	r.c.Wait()
	v, ok := r.c.Get(key)
	if b, _ := v.([]byte); !ok || !bytes.Equal(b, value) {
		return errNotAdmitted
	}
	return nil
}

func (r raw) Del(key string) error {
	r.c.Del(key)
	return nil
}

func (r raw) Close() error {
	r.c.Wait()
	r.c.Close()
	return nil
}
