// Package sloghook logs idcache hook events through log/slog.
//
// Per-read events (hit, miss, bypass) are logged at Debug and sampled;
// failures are always logged. Keys are redacted since they embed predicate
// values.
package sloghook

import (
	"log/slog"
	"sync/atomic"

	"github.com/unkn0wn-root/idcache"
	"github.com/unkn0wn-root/idcache/keys"
)

type Options struct {
	// Sampling to avoid floods; 0/1 = log all.
	ReadEvery     uint64 // hit, miss, bypass
	LostRaceEvery uint64
	// Optional key redactor. Defaults to an xxhash digest.
	Redact func(string) string
}

type Hooks struct {
	l    *slog.Logger
	opts Options

	readCtr atomic.Uint64
	raceCtr atomic.Uint64
}

var _ idcache.Hooks = (*Hooks)(nil)

func New(l *slog.Logger, opts Options) *Hooks {
	return &Hooks{l: l, opts: opts}
}

func (h *Hooks) redact(k string) string {
	if h.opts.Redact != nil {
		return h.opts.Redact(k)
	}
	return keys.HashString(k)
}

func sample(n uint64, ctr *atomic.Uint64) bool {
	if n == 0 || n == 1 {
		return true
	}
	return ctr.Add(1)%n == 0
}

func (h *Hooks) read(event, key string, args ...any) {
	if h.l == nil || !sample(h.opts.ReadEvery, &h.readCtr) {
		return
	}
	h.l.Debug(event, append([]any{"key", h.redact(key)}, args...)...)
}

func (h *Hooks) Hit(key string)            { h.read("idcache.hit", key) }
func (h *Hooks) Miss(key string)           { h.read("idcache.miss", key) }
func (h *Hooks) Bypass(key, reason string) { h.read("idcache.bypass", key, "reason", reason) }

func (h *Hooks) LostRace(key string) {
	if h.l == nil || !sample(h.opts.LostRaceEvery, &h.raceCtr) {
		return
	}
	h.l.Debug("idcache.lost_race", "key", h.redact(key))
}

func (h *Hooks) CorruptEntry(key string) {
	if h.l == nil {
		return
	}
	h.l.Warn("idcache.corrupt_entry", "key", h.redact(key))
}

func (h *Hooks) BackendError(op, key string, err error) {
	if h.l == nil {
		return
	}
	h.l.Warn("idcache.backend_error",
		"op", op,
		"key", h.redact(key),
		"err", err)
}

func (h *Hooks) TombstoneFailed(key string, err error) {
	if h.l == nil {
		return
	}
	h.l.Error("idcache.tombstone_failed",
		"key", h.redact(key),
		"err", err)
}
