package idcache

import (
	"context"
	"errors"
	"time"

	"github.com/unkn0wn-root/idcache/backend"
	"github.com/unkn0wn-root/idcache/codec"
	"github.com/unkn0wn-root/idcache/internal/wire"
)

// State is what a slot held when it was last read.
type State uint8

const (
	Absent    State = iota // nothing stored, or nothing decodable
	Tombstone              // invalidated recently; blocks Add until it expires
	Nil                    // cached negative result
	Present                // cached value
)

func (s State) String() string {
	switch s {
	case Absent:
		return "absent"
	case Tombstone:
		return "tombstone"
	case Nil:
		return "nil"
	case Present:
		return "present"
	default:
		return "unknown"
	}
}

var errEmptySave = errors.New("idcache: save without a value")

// Entry is one cache slot as observed by a single find/save cycle. It is not
// safe for concurrent use and must not be kept beyond that cycle.
type Entry[V any] struct {
	key     string
	backend backend.Backend
	codec   codec.Codec[V]

	state   State
	value   V
	token   backend.Token
	found   bool // token is meaningful
	corrupt bool
	dirty   bool
}

// NewEntry returns an absent entry without a token. Saving it uses Add.
func NewEntry[V any](b backend.Backend, c codec.Codec[V], key string) *Entry[V] {
	return &Entry[V]{key: key, backend: b, codec: c}
}

// Find reads key. On a backend error the returned entry is absent and
// tokenless, and the error is returned alongside it. Bytes that fail to
// decode yield an absent entry that keeps its token, so Save overwrites
// them with CAS.
func Find[V any](ctx context.Context, b backend.Backend, c codec.Codec[V], key string) (*Entry[V], error) {
	e := NewEntry(b, c, key)
	it, ok, err := b.Get(ctx, key)
	if err != nil {
		return e, err
	}
	if !ok {
		return e, nil
	}
	e.found = true
	e.token = it.Token

	kind, payload, err := wire.DecodeEntry(it.Value)
	if err != nil {
		e.corrupt = true
		return e, nil
	}
	switch kind {
	case wire.KindTombstone:
		e.state = Tombstone
	case wire.KindNil:
		e.state = Nil
	case wire.KindValue:
		v, err := c.Decode(payload)
		if err != nil {
			e.corrupt = true
			return e, nil
		}
		e.value = v
		e.state = Present
	}
	return e, nil
}

func (e *Entry[V]) Key() string { return e.key }

func (e *Entry[V]) State() State { return e.state }

// Exists reports whether the slot holds a usable result (value or nil).
func (e *Entry[V]) Exists() bool { return e.state == Present || e.state == Nil }

// Corrupt reports whether the stored bytes could not be decoded.
func (e *Entry[V]) Corrupt() bool { return e.corrupt }

// Token returns the concurrency token observed by Find.
func (e *Entry[V]) Token() (backend.Token, bool) { return e.token, e.found }

// Value returns the cached value; false for the nil sentinel and for
// entries without a result.
func (e *Entry[V]) Value() (V, bool) {
	if e.state != Present {
		var zero V
		return zero, false
	}
	return e.value, true
}

func (e *Entry[V]) SetValue(v V) {
	e.value = v
	e.state = Present
	e.dirty = true
}

// SetNil stores the nil sentinel: the source of truth has no result.
func (e *Entry[V]) SetNil() {
	var zero V
	e.value = zero
	e.state = Nil
	e.dirty = true
}

// Save writes the entry back: Add when Find saw nothing, CAS with the
// observed token otherwise. false means another writer or an invalidation
// got there first; callers must not retry.
func (e *Entry[V]) Save(ctx context.Context) (bool, error) {
	if !e.dirty {
		return false, errEmptySave
	}
	var frame []byte
	switch e.state {
	case Present:
		payload, err := e.codec.Encode(e.value)
		if err != nil {
			return false, err
		}
		frame = wire.EncodeEntry(wire.KindValue, payload)
	case Nil:
		frame = wire.EncodeEntry(wire.KindNil, nil)
	default:
		return false, errEmptySave
	}
	if e.found {
		return e.backend.CAS(ctx, e.key, frame, e.token)
	}
	return e.backend.Add(ctx, e.key, frame)
}

// Delete overwrites key with a tombstone that expires after ttl. Readers
// treat the tombstone as a miss, and a stale writer that saw the slot empty
// cannot Add over it.
func Delete(ctx context.Context, b backend.Backend, key string, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = DefaultTombstoneTTL
	}
	return b.Set(ctx, key, wire.EncodeEntry(wire.KindTombstone, nil), ttl)
}
