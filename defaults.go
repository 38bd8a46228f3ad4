package idcache

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/unkn0wn-root/idcache/codec"
)

const (
	// DefaultTombstoneTTL bounds how long an invalidation marker blocks
	// repopulation of a key.
	DefaultTombstoneTTL = 10 * time.Second

	defaultPrimaryKey = "id"
	tracerName        = "github.com/unkn0wn-root/idcache"
)

// coalesce returns def when v is the zero value of T - otherwise v.
func coalesce[T comparable](v, def T) T {
	var zero T
	if v == zero {
		return def
	}
	return v
}

// orJSON falls back to the JSON codec for entities, keys and attributes.
func orJSON[V any](c codec.Codec[V]) codec.Codec[V] {
	if c == nil {
		return codec.JSON[V]{}
	}
	return c
}

func txSignal(fn func(context.Context) bool) func(context.Context) bool {
	if fn == nil {
		return InTransaction
	}
	return fn
}

func tracer(tp trace.TracerProvider) trace.Tracer {
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	return tp.Tracer(tracerName)
}
