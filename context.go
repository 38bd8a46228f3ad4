package idcache

import (
	"context"
	"sync/atomic"

	"github.com/unkn0wn-root/idcache/backend"
)

type (
	backendCtxKey struct{}
	txCtxKey      struct{}
)

// WithBackend returns a context whose cache operations use b instead of
// the configured backend. The override is scoped to ctx and everything
// derived from it.
func WithBackend(ctx context.Context, b backend.Backend) context.Context {
	return context.WithValue(ctx, backendCtxKey{}, b)
}

// BackendFromContext returns the override installed by WithBackend.
func BackendFromContext(ctx context.Context) (backend.Backend, bool) {
	b, ok := ctx.Value(backendCtxKey{}).(backend.Backend)
	return b, ok && b != nil
}

// WithTransaction marks ctx as running inside an open transaction of the
// source of truth. Fetches under such a context bypass the cache.
func WithTransaction(ctx context.Context) context.Context {
	return context.WithValue(ctx, txCtxKey{}, true)
}

// InTransaction reports whether ctx was marked by WithTransaction. It is the
// default Config.InTransaction.
func InTransaction(ctx context.Context) bool {
	v, _ := ctx.Value(txCtxKey{}).(bool)
	return v
}

type backendHolder struct{ b backend.Backend }

var defaultBackend atomic.Pointer[backendHolder]

// SetDefaultBackend installs the process-wide fallback used by caches that
// have no Config.Backend. Passing nil clears it.
func SetDefaultBackend(b backend.Backend) {
	if b == nil {
		defaultBackend.Store(nil)
		return
	}
	defaultBackend.Store(&backendHolder{b: b})
}

func DefaultBackend() backend.Backend {
	if h := defaultBackend.Load(); h != nil {
		return h.b
	}
	return nil
}
