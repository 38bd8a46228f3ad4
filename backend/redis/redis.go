// Package redis adapts a go-redis client to backend.Backend.
//
// Redis has no memcached-style CAS token, so every value is wrapped in a
// wire stamp carrying a random 64-bit version; the version is the token.
// Add maps to SET NX, CAS to a WATCH/MULTI transaction that re-reads the
// stamp, and Set to SET with an expiry.
package redis

import (
	"context"
	"errors"
	"math/rand"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/unkn0wn-root/idcache/backend"
	"github.com/unkn0wn-root/idcache/internal/wire"
)

var ErrNilClient = errors.New("redis backend: nil client")

// errLostRace aborts a WATCH callback when the stored version moved.
var errLostRace = errors.New("redis backend: token mismatch")

type Config struct {
	Client      goredis.UniversalClient
	CloseClient bool          // set true only if this backend exclusively owns the client
	DefaultTTL  time.Duration // expiry for cached values; 0 => none
}

type Redis struct {
	rdb         goredis.UniversalClient
	closeClient bool
	defaultTTL  time.Duration
}

var _ backend.Backend = (*Redis)(nil)

func New(cfg Config) (*Redis, error) {
	if cfg.Client == nil {
		return nil, ErrNilClient
	}
	return &Redis{rdb: cfg.Client, closeClient: cfg.CloseClient, defaultTTL: cfg.DefaultTTL}, nil
}

// Get returns the stamped payload. Bytes written by someone else are
// returned as-is with token 0 so a CAS with that token can replace them.
func (p *Redis) Get(ctx context.Context, key string) (backend.Item, bool, error) {
	b, err := p.rdb.Get(ctx, key).Bytes()
	if err == goredis.Nil {
		return backend.Item{}, false, nil
	}
	if err != nil {
		return backend.Item{}, false, backend.Unavailable("get", err)
	}
	st, err := wire.DecodeStamp(b)
	if err != nil {
		return backend.Item{Value: b}, true, nil
	}
	return backend.Item{Value: st.Payload, Token: backend.Token(st.Version)}, true, nil
}

func (p *Redis) Add(ctx context.Context, key string, value []byte) (bool, error) {
	ok, err := p.rdb.SetNX(ctx, key, p.frame(value), p.defaultTTL).Result()
	if err != nil {
		return false, backend.Unavailable("add", err)
	}
	return ok, nil
}

func (p *Redis) CAS(ctx context.Context, key string, value []byte, token backend.Token) (bool, error) {
	frame := p.frame(value)
	err := p.rdb.Watch(ctx, func(tx *goredis.Tx) error {
		cur, err := tx.Get(ctx, key).Bytes()
		if err == goredis.Nil {
			return errLostRace
		}
		if err != nil {
			return err
		}
		if versionOf(cur) != token {
			return errLostRace
		}
		_, err = tx.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
			pipe.Set(ctx, key, frame, p.defaultTTL)
			return nil
		})
		return err
	}, key)

	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, errLostRace), errors.Is(err, goredis.TxFailedErr):
		return false, nil
	default:
		return false, backend.Unavailable("cas", err)
	}
}

func (p *Redis) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0
	}
	if err := p.rdb.Set(ctx, key, p.frame(value), ttl).Err(); err != nil {
		return backend.Unavailable("set", err)
	}
	return nil
}

// Close releases the underlying redis client only when this backend owns it.
// Safe to call multiple times; repeated calls become no-ops.
func (p *Redis) Close(context.Context) error {
	if p.closeClient {
		if err := p.rdb.Close(); err != nil && !errors.Is(err, goredis.ErrClosed) {
			return err
		}
	}
	return nil
}

func (p *Redis) frame(value []byte) []byte {
	return wire.EncodeStamp(wire.Stamp{Version: newVersion(), Payload: value})
}

// versionOf returns 0 for frames that are not stamps.
func versionOf(b []byte) backend.Token {
	st, err := wire.DecodeStamp(b)
	if err != nil {
		return 0
	}
	return backend.Token(st.Version)
}

// newVersion never returns 0; 0 marks foreign bytes.
func newVersion() uint64 {
	for {
		if v := rand.Uint64(); v != 0 {
			return v
		}
	}
}
