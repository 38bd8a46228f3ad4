// Package asynchook moves idcache hook calls off the hot path.
//
// usage:
//
//	raw := sloghook.New(slog.Default(), sloghook.Options{ReadEvery: 100})
//	hooks := asynchook.New(raw, 1, 1000) // 1 worker; queue 1000 events
//	defer hooks.Close()
//
//	cache, _ := idcache.New(idcache.Config{Backend: b, Hooks: hooks})
//
// Events are dropped, not blocked on, when the queue is full.
package asynchook

import (
	"sync"
	"sync/atomic"

	"github.com/unkn0wn-root/idcache"
)

type Hooks struct {
	inner   idcache.Hooks
	q       chan func()
	wg      sync.WaitGroup
	once    sync.Once
	mu      sync.RWMutex
	closed  bool
	dropped atomic.Uint64
}

var _ idcache.Hooks = (*Hooks)(nil)

func New(inner idcache.Hooks, workers, qlen int) *Hooks {
	if workers <= 0 {
		workers = 1
	}
	if qlen <= 0 {
		qlen = 1024
	}
	if inner == nil {
		inner = idcache.NopHooks{}
	}

	h := &Hooks{inner: inner, q: make(chan func(), qlen)}
	h.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer h.wg.Done()
			for f := range h.q {
				f()
			}
		}()
	}
	return h
}

// Close stops accepting events and waits for queued ones to run.
func (h *Hooks) Close() {
	h.once.Do(func() {
		h.mu.Lock()
		h.closed = true
		close(h.q)
		h.mu.Unlock()
		h.wg.Wait()
	})
}

// Dropped returns the number of events discarded on a full or closed queue.
func (h *Hooks) Dropped() uint64 { return h.dropped.Load() }

func (h *Hooks) try(f func()) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		h.dropped.Add(1)
		return
	}
	select {
	case h.q <- f:
	default: // drop
		h.dropped.Add(1)
	}
}

func (h *Hooks) Hit(k string)          { h.try(func() { h.inner.Hit(k) }) }
func (h *Hooks) Miss(k string)         { h.try(func() { h.inner.Miss(k) }) }
func (h *Hooks) Bypass(k, r string)    { h.try(func() { h.inner.Bypass(k, r) }) }
func (h *Hooks) LostRace(k string)     { h.try(func() { h.inner.LostRace(k) }) }
func (h *Hooks) CorruptEntry(k string) { h.try(func() { h.inner.CorruptEntry(k) }) }
func (h *Hooks) TombstoneFailed(k string, err error) {
	h.try(func() { h.inner.TombstoneFailed(k, err) })
}
func (h *Hooks) BackendError(op, k string, err error) {
	h.try(func() { h.inner.BackendError(op, k, err) })
}
