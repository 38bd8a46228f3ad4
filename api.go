package idcache

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"github.com/unkn0wn-root/idcache/backend"
	"github.com/unkn0wn-root/idcache/keys"
)

// Config tunes a Cache. The zero value is usable: no namespace, the
// process default backend, 10s tombstones, context-marked transactions.
type Config struct {
	Namespace string          // key prefix shared by every model; per-model override in ModelOptions
	Backend   backend.Backend // nil => WithBackend override or SetDefaultBackend

	TombstoneTTL  time.Duration                  // 0 => DefaultTombstoneTTL
	InTransaction func(ctx context.Context) bool // nil => InTransaction

	Logger         Logger               // if nil, NopLogger is used
	Hooks          Hooks                // if nil, NopHooks is used
	TracerProvider trace.TracerProvider // nil => otel global provider

	CoalesceLoads bool // share one loader call between concurrent misses on a key
	Disabled      bool // every fetch goes straight to the loader
}

// Cache holds the runtime shared by every registered model.
type Cache struct {
	keys         keys.Deriver
	backend      backend.Backend
	tombstoneTTL time.Duration
	inTx         func(context.Context) bool
	log          Logger
	hooks        Hooks
	tracer       trace.Tracer
	group        *singleflight.Group
	enabled      bool
}

func New(cfg Config) (*Cache, error) {
	if cfg.TombstoneTTL < 0 {
		return nil, errors.New("idcache: negative tombstone ttl")
	}
	c := &Cache{
		keys:         keys.Deriver{Namespace: cfg.Namespace},
		backend:      cfg.Backend,
		tombstoneTTL: coalesce(cfg.TombstoneTTL, DefaultTombstoneTTL),
		inTx:         txSignal(cfg.InTransaction),
		log:          coalesce[Logger](cfg.Logger, NopLogger{}),
		hooks:        coalesce[Hooks](cfg.Hooks, NopHooks{}),
		tracer:       tracer(cfg.TracerProvider),
		enabled:      !cfg.Disabled,
	}
	if cfg.CoalesceLoads {
		c.group = new(singleflight.Group)
	}
	return c, nil
}

func (c *Cache) Enabled() bool { return c.enabled }

// Keys returns the deriver for the cache-wide namespace.
func (c *Cache) Keys() keys.Deriver { return c.keys }

// TombstoneTTL returns the expiry used for invalidation markers.
func (c *Cache) TombstoneTTL() time.Duration { return c.tombstoneTTL }

// Backend resolves the store for ctx: a WithBackend override, then
// Config.Backend, then the process default. Nil when none is set.
func (c *Cache) Backend(ctx context.Context) backend.Backend {
	if b, ok := BackendFromContext(ctx); ok {
		return b
	}
	if c.backend != nil {
		return c.backend
	}
	return DefaultBackend()
}

// Close closes Config.Backend. Context overrides and the process default
// are owned by whoever installed them.
func (c *Cache) Close(ctx context.Context) error {
	if c.backend != nil {
		return c.backend.Close(ctx)
	}
	return nil
}
