// Package bigcache adapts allegro/bigcache/v3 to backend.Backend.
//
// BigCache has a single global LifeWindow and no per-entry TTL, so tombstone
// expiry is enforced from the stamp written alongside every value.
package bigcache

import (
	"context"
	"errors"
	"time"

	bc "github.com/allegro/bigcache/v3"

	"github.com/unkn0wn-root/idcache/backend"
	"github.com/unkn0wn-root/idcache/internal/bytestore"
)

type Config struct {
	LifeWindow         time.Duration // global eviction window; 0 => 10m
	CleanWindow        time.Duration
	MaxEntriesInWindow int
	MaxEntrySize       int
	HardMaxCacheSizeMB int // ~ memory limit; 0 = unlimited
	DefaultTTL         time.Duration
}

type Backend struct {
	*bytestore.Store
}

var _ backend.Backend = (*Backend)(nil)

func New(ctx context.Context, cfg Config) (*Backend, error) {
	life := cfg.LifeWindow
	if life <= 0 {
		life = 10 * time.Minute
	}
	conf := bc.DefaultConfig(life)
	if cfg.CleanWindow > 0 {
		conf.CleanWindow = cfg.CleanWindow
	}
	if cfg.MaxEntriesInWindow > 0 {
		conf.MaxEntriesInWindow = cfg.MaxEntriesInWindow
	}
	if cfg.MaxEntrySize > 0 {
		conf.MaxEntrySize = cfg.MaxEntrySize
	}
	if cfg.HardMaxCacheSizeMB > 0 {
		conf.HardMaxCacheSize = cfg.HardMaxCacheSizeMB
	}
	c, err := bc.New(ctx, conf)
	if err != nil {
		return nil, err
	}
	return &Backend{
		Store: bytestore.New(raw{c: c}, bytestore.Options{DefaultTTL: cfg.DefaultTTL}),
	}, nil
}

type raw struct{ c *bc.BigCache }

func (r raw) Get(key string) ([]byte, bool, error) {
	b, err := r.c.Get(key)
	if errors.Is(err, bc.ErrEntryNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return b, true, nil
}

func (r raw) Put(key string, value []byte, _ time.Duration) error {
	return r.c.Set(key, value)
}

func (r raw) Del(key string) error {
	err := r.c.Delete(key)
	if errors.Is(err, bc.ErrEntryNotFound) {
		return nil
	}
	return err
}

func (r raw) Close() error { return r.c.Close() }
