// Package breaker wraps a backend.Backend in a circuit breaker.
//
// While the circuit is open every call fails fast with an error matching
// backend.ErrUnavailable, which idcache already treats as a miss or no-op.
// A struggling cache therefore degrades to direct source-of-truth reads
// instead of adding its timeout to every request.
//
// Only transport failures count against the circuit. A lost race (Add or
// CAS returning false) is a normal outcome.
package breaker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker"

	"github.com/unkn0wn-root/idcache/backend"
)

type Config struct {
	Name             string
	MaxRequests      uint32        // requests allowed through while half-open
	Interval         time.Duration // closed-state counter reset period
	Timeout          time.Duration // open-state duration before half-open
	FailureThreshold float64       // failure ratio that trips the circuit
	MinRequests      uint32        // requests observed before the ratio is evaluated

	// OnStateChange is called on every transition, e.g. for logging.
	OnStateChange func(name string, from, to string)
}

// DefaultConfig trips at 50% failures over at least 10 requests and probes
// again after 5 seconds.
func DefaultConfig(name string) Config {
	return Config{
		Name:             name,
		MaxRequests:      1,
		Interval:         10 * time.Second,
		Timeout:          5 * time.Second,
		FailureThreshold: 0.5,
		MinRequests:      10,
	}
}

type Backend struct {
	inner backend.Backend
	cb    *gobreaker.CircuitBreaker
}

var _ backend.Backend = (*Backend)(nil)

func New(inner backend.Backend, cfg Config) *Backend {
	st := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			if c.Requests < cfg.MinRequests {
				return false
			}
			return float64(c.TotalFailures)/float64(c.Requests) >= cfg.FailureThreshold
		},
		IsSuccessful: func(err error) bool {
			// context cancellation is the caller's doing, not the backend's
			return err == nil || errors.Is(err, context.Canceled)
		},
	}
	if cfg.OnStateChange != nil {
		st.OnStateChange = func(name string, from, to gobreaker.State) {
			cfg.OnStateChange(name, from.String(), to.String())
		}
	}
	return &Backend{inner: inner, cb: gobreaker.NewCircuitBreaker(st)}
}

// State returns "closed", "half-open" or "open".
func (b *Backend) State() string { return b.cb.State().String() }

type getResult struct {
	item backend.Item
	ok   bool
}

func (b *Backend) Get(ctx context.Context, key string) (backend.Item, bool, error) {
	res, err := b.cb.Execute(func() (interface{}, error) {
		it, ok, err := b.inner.Get(ctx, key)
		return getResult{item: it, ok: ok}, err
	})
	if err != nil {
		return backend.Item{}, false, wrap("get", err)
	}
	r := res.(getResult)
	return r.item, r.ok, nil
}

func (b *Backend) Add(ctx context.Context, key string, value []byte) (bool, error) {
	return b.execBool("add", func() (bool, error) { return b.inner.Add(ctx, key, value) })
}

func (b *Backend) CAS(ctx context.Context, key string, value []byte, token backend.Token) (bool, error) {
	return b.execBool("cas", func() (bool, error) { return b.inner.CAS(ctx, key, value, token) })
}

func (b *Backend) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	_, err := b.cb.Execute(func() (interface{}, error) {
		return nil, b.inner.Set(ctx, key, value, ttl)
	})
	return wrap("set", err)
}

func (b *Backend) Close(ctx context.Context) error { return b.inner.Close(ctx) }

func (b *Backend) execBool(op string, fn func() (bool, error)) (bool, error) {
	res, err := b.cb.Execute(func() (interface{}, error) { return fn() })
	if err != nil {
		return false, wrap(op, err)
	}
	return res.(bool), nil
}

func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("idcache: circuit %s on %s: %w", err, op, backend.ErrUnavailable)
	}
	return backend.Unavailable(op, err)
}
