package idcache

import (
	"context"

	"github.com/unkn0wn-root/idcache/backend"
	"github.com/unkn0wn-root/idcache/keys"
)

// EventKind is the kind of committed mutation.
type EventKind uint8

const (
	Created EventKind = iota + 1
	Updated
	Destroyed
)

func (k EventKind) String() string {
	switch k {
	case Created:
		return "created"
	case Updated:
		return "updated"
	case Destroyed:
		return "destroyed"
	default:
		return "unknown"
	}
}

// Event describes one committed mutation. Before is ignored for Created,
// After for Destroyed.
type Event[E any] struct {
	Kind   EventKind
	Before E
	After  E
}

func (m *Model[E, K]) AfterCreate(ctx context.Context, e E) error {
	return m.Invalidate(ctx, Event[E]{Kind: Created, After: e})
}

func (m *Model[E, K]) AfterUpdate(ctx context.Context, before, after E) error {
	return m.Invalidate(ctx, Event[E]{Kind: Updated, Before: before, After: after})
}

func (m *Model[E, K]) AfterDestroy(ctx context.Context, e E) error {
	return m.Invalidate(ctx, Event[E]{Kind: Destroyed, Before: e})
}

// Invalidate tombstones every key affected by ev. Call it after the source
// of truth committed the change. Every key is attempted; failures are
// collected in *InvalidateError and also reported to Hooks and Logger.
func (m *Model[E, K]) Invalidate(ctx context.Context, ev Event[E]) error {
	c := m.cache
	ks := m.InvalidationKeys(ev)
	if len(ks) == 0 {
		return nil
	}

	// Disabled only stops this process from reading. Others may share the
	// backend, so writes still tombstone whatever backend resolves.
	b := c.Backend(ctx)
	if b == nil && !c.enabled {
		return nil
	}
	var failures []KeyError
	for _, key := range ks {
		var err error
		if b == nil {
			err = backend.ErrUnavailable
		} else {
			err = Delete(ctx, b, key, c.tombstoneTTL)
		}
		if err != nil {
			c.hooks.TombstoneFailed(key, err)
			failures = append(failures, KeyError{Key: key, Err: err})
		}
	}
	c.logInvalidation(m.name, ev.Kind, len(ks), failures)
	if len(failures) == 0 {
		return nil
	}
	return &InvalidateError{Entity: m.name, Failures: failures}
}

// InvalidationKeys returns the de-duplicated keys an event makes stale.
//
//   - Created: the blob, and every attribute and index key for the new values
//     (clears cached nils left by earlier misses).
//   - Updated: the blob under the old and new id; every attribute whose
//     value or predicate columns changed and every index with a changed
//     column, each for both the old and the new predicate values.
//   - Destroyed: the blob, and every attribute and index key for the old values.
func (m *Model[E, K]) InvalidationKeys(ev Event[E]) []string {
	var ks keySet
	attrs, indexes := m.predicates()

	switch ev.Kind {
	case Created, Destroyed:
		e := ev.After
		if ev.Kind == Destroyed {
			e = ev.Before
		}
		ks.add(m.BlobKey(m.id(e)))
		cols := m.columns(e)
		for _, p := range attrs {
			ks.add(m.keys.Attribute(m.name, p.name, p.by, valuesOf(cols, p.by)))
		}
		for _, p := range indexes {
			ks.add(m.keys.Index(m.name, p.by, valuesOf(cols, p.by)))
		}

	case Updated:
		ks.add(m.BlobKey(m.id(ev.Before)))
		ks.add(m.BlobKey(m.id(ev.After)))
		old, cur := m.columns(ev.Before), m.columns(ev.After)
		for _, p := range attrs {
			if !changed(old, cur, p.name) && !changed(old, cur, p.by...) {
				continue
			}
			ks.add(m.keys.Attribute(m.name, p.name, p.by, valuesOf(old, p.by)))
			ks.add(m.keys.Attribute(m.name, p.name, p.by, valuesOf(cur, p.by)))
		}
		for _, p := range indexes {
			if !changed(old, cur, p.by...) {
				continue
			}
			ks.add(m.keys.Index(m.name, p.by, valuesOf(old, p.by)))
			ks.add(m.keys.Index(m.name, p.by, valuesOf(cur, p.by)))
		}
	}
	return ks.list
}

// columns returns the column values of e. The primary key comes from ID
// when Attributes leaves it out, since attributes are keyed by it by default.
func (m *Model[E, K]) columns(e E) map[string]any {
	cols := make(map[string]any)
	if m.attrs != nil {
		for k, v := range m.attrs(e) {
			cols[k] = v
		}
	}
	if _, ok := cols[m.pk]; !ok {
		cols[m.pk] = m.id(e)
	}
	return cols
}

func valuesOf(cols map[string]any, by []string) []any {
	vs := make([]any, len(by))
	for i, c := range by {
		vs[i] = cols[c]
	}
	return vs
}

// changed compares by canonical form, so values that derive the same key
// (int32 vs int64) are not a change.
func changed(old, cur map[string]any, names ...string) bool {
	for _, n := range names {
		if keys.Canonical(old[n]) != keys.Canonical(cur[n]) {
			return true
		}
	}
	return false
}

type keySet struct {
	seen map[string]struct{}
	list []string
}

func (s *keySet) add(k string) {
	if s.seen == nil {
		s.seen = make(map[string]struct{})
	}
	if _, ok := s.seen[k]; ok {
		return
	}
	s.seen[k] = struct{}{}
	s.list = append(s.list, k)
}
