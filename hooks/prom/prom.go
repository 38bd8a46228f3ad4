// Package promhook exports idcache hook events as Prometheus counters.
//
// Every counter is labelled by key category (attribute, blob, index), never
// by key, to keep cardinality bounded.
package promhook

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/unkn0wn-root/idcache"
	"github.com/unkn0wn-root/idcache/keys"
)

// Hooks counts cache events. Register it with a prometheus.Registerer.
type Hooks struct {
	Reads      *prometheus.CounterVec // category, result=hit|miss|bypass
	Bypasses   *prometheus.CounterVec // reason
	LostRaces  *prometheus.CounterVec // category
	Corrupt    *prometheus.CounterVec // category
	Errors     *prometheus.CounterVec // op
	Tombstones *prometheus.CounterVec // category; failed writes only
}

var (
	_ idcache.Hooks        = (*Hooks)(nil)
	_ prometheus.Collector = (*Hooks)(nil)
)

func New(namespace string) *Hooks {
	counter := func(name, help string, labels ...string) *prometheus.CounterVec {
		return prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "idcache",
			Name:      name,
			Help:      help,
		}, labels)
	}
	return &Hooks{
		Reads:      counter("reads_total", "Cache reads by outcome.", "category", "result"),
		Bypasses:   counter("bypass_total", "Reads served straight from the loader.", "reason"),
		LostRaces:  counter("lost_races_total", "Write-backs that lost to a concurrent writer or invalidation.", "category"),
		Corrupt:    counter("corrupt_entries_total", "Entries that could not be decoded.", "category"),
		Errors:     counter("backend_errors_total", "Backend failures by primitive.", "op"),
		Tombstones: counter("tombstone_failures_total", "Invalidation tombstones that could not be written.", "category"),
	}
}

// MustRegister registers every counter with r and returns h.
func (h *Hooks) MustRegister(r prometheus.Registerer) *Hooks {
	r.MustRegister(h)
	return h
}

func (h *Hooks) Describe(ch chan<- *prometheus.Desc) {
	for _, c := range h.all() {
		c.Describe(ch)
	}
}

func (h *Hooks) Collect(ch chan<- prometheus.Metric) {
	for _, c := range h.all() {
		c.Collect(ch)
	}
}

func (h *Hooks) all() []*prometheus.CounterVec {
	return []*prometheus.CounterVec{h.Reads, h.Bypasses, h.LostRaces, h.Corrupt, h.Errors, h.Tombstones}
}

func category(key string) string {
	if c := keys.CategoryOf(key); c != "" {
		return c
	}
	return "other"
}

func (h *Hooks) Hit(key string)  { h.Reads.WithLabelValues(category(key), "hit").Inc() }
func (h *Hooks) Miss(key string) { h.Reads.WithLabelValues(category(key), "miss").Inc() }

func (h *Hooks) Bypass(key, reason string) {
	h.Reads.WithLabelValues(category(key), "bypass").Inc()
	h.Bypasses.WithLabelValues(reason).Inc()
}

func (h *Hooks) LostRace(key string)                 { h.LostRaces.WithLabelValues(category(key)).Inc() }
func (h *Hooks) CorruptEntry(key string)             { h.Corrupt.WithLabelValues(category(key)).Inc() }
func (h *Hooks) BackendError(op, _ string, _ error)  { h.Errors.WithLabelValues(op).Inc() }
func (h *Hooks) TombstoneFailed(key string, _ error) { h.Tombstones.WithLabelValues(category(key)).Inc() }
