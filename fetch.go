package idcache

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/unkn0wn-root/idcache/backend"
	"github.com/unkn0wn-root/idcache/codec"
)

// Loader reads from the source of truth. ok=false means "no such row" and
// is cached as nil.
type Loader[V any] func(ctx context.Context) (v V, ok bool, err error)

// Bypass reasons reported to Hooks.Bypass.
const (
	BypassTransaction = "transaction"
	BypassDisabled    = "disabled"
	BypassNoBackend   = "no_backend"
)

// source picks the backend for one read, or reports why the cache must be
// skipped.
func (c *Cache) source(ctx context.Context) (backend.Backend, string) {
	if !c.enabled {
		return nil, BypassDisabled
	}
	if c.inTx(ctx) {
		return nil, BypassTransaction
	}
	b := c.Backend(ctx)
	if b == nil {
		return nil, BypassNoBackend
	}
	return b, ""
}

// ReadThrough runs the fetch protocol for a single key: return a cached
// result, or load, cache and return it. The loaded result is returned even
// when the write-back fails or loses a race.
func ReadThrough[V any](ctx context.Context, c *Cache, key string, cd codec.Codec[V], load Loader[V]) (V, bool, error) {
	return readThrough(ctx, c, "custom", key, cd, load)
}

func readThrough[V any](ctx context.Context, c *Cache, kind, key string, cd codec.Codec[V], load Loader[V]) (V, bool, error) {
	b, reason := c.source(ctx)
	if b == nil {
		c.hooks.Bypass(key, reason)
		c.logBypass(key, reason)
		return load(ctx)
	}

	ctx, span := c.tracer.Start(ctx, "idcache.fetch",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("idcache.kind", kind),
			attribute.String("idcache.key", key),
		))
	defer span.End()

	e, err := Find(ctx, b, cd, key)
	if err != nil {
		c.backendError(span, "get", key, err)
		v, ok, err := loadShared(ctx, c, key, load)
		recordOutcome(span, "degraded", err)
		return v, ok, err
	}
	if e.Corrupt() {
		c.hooks.CorruptEntry(key)
		c.logCorrupt(key)
	}
	if e.Exists() {
		c.hooks.Hit(key)
		span.SetAttributes(attribute.Bool("idcache.nil", e.State() == Nil))
		recordOutcome(span, "hit", nil)
		v, ok := e.Value()
		return v, ok, nil
	}

	c.hooks.Miss(key)
	v, ok, err := loadShared(ctx, c, key, load)
	if err != nil {
		recordOutcome(span, "miss", err)
		return v, false, err
	}
	if ok {
		e.SetValue(v)
	} else {
		e.SetNil()
	}
	saveEntry(ctx, c, span, e)
	recordOutcome(span, "miss", nil)
	return v, ok, nil
}

// loadShared calls the loader, sharing the call between concurrent misses
// on the same key when CoalesceLoads is set.
func loadShared[V any](ctx context.Context, c *Cache, key string, load Loader[V]) (V, bool, error) {
	if c.group == nil {
		return load(ctx)
	}
	type result struct {
		v  V
		ok bool
	}
	r, err, _ := c.group.Do(key, func() (any, error) {
		v, ok, err := load(ctx)
		return result{v: v, ok: ok}, err
	})
	if err != nil {
		var zero V
		return zero, false, err
	}
	res := r.(result)
	return res.v, res.ok, nil
}

// saveEntry writes e back. Failures and lost races are reported, never
// returned: the caller already holds the loaded result.
func saveEntry[V any](ctx context.Context, c *Cache, span trace.Span, e *Entry[V]) {
	saved, err := e.Save(ctx)
	switch {
	case err != nil:
		c.backendError(span, "save", e.Key(), err)
	case !saved:
		c.hooks.LostRace(e.Key())
		span.SetAttributes(attribute.Bool("idcache.lost_race", true))
		c.logLostRace(e.Key())
	}
}

func (c *Cache) backendError(span trace.Span, op, key string, err error) {
	c.hooks.BackendError(op, key, err)
	span.RecordError(err, trace.WithAttributes(attribute.String("idcache.op", op)))
	c.logBackendError(op, key, err)
}

func recordOutcome(span trace.Span, outcome string, err error) {
	span.SetAttributes(attribute.String("idcache.outcome", outcome))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}
