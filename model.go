package idcache

import (
	"context"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/unkn0wn-root/idcache/codec"
	"github.com/unkn0wn-root/idcache/keys"
)

// ModelOptions registers an entity type E with primary key K.
type ModelOptions[E any, K comparable] struct {
	// Required
	Name    string        // entity name used in keys, e.g. "Record"
	Columns []keys.Column // persisted columns; their fingerprint versions blob keys
	ID      func(E) K
	Load    func(ctx context.Context, id K) (E, bool, error)

	// Attributes returns the column values of an entity, keyed by column
	// name. Invalidation compares them across a change. Required when any
	// attribute or index is registered.
	Attributes func(E) map[string]any

	Namespace  string                                              // overrides Config.Namespace
	PrimaryKey string                                              // default "id"
	Codec      codec.Codec[E]                                      // default JSON
	KeyCodec   codec.Codec[K]                                      // default JSON; stored in index slots
	LoadMany   func(ctx context.Context, ids []K) (map[K]E, error) // batch loader for FetchMulti misses
}

// Model is a registered entity type. Create with NewModel; register
// attributes and indexes before serving traffic.
type Model[E any, K comparable] struct {
	cache       *Cache
	name        string
	keys        keys.Deriver
	fingerprint string
	pk          string

	id       func(E) K
	attrs    func(E) map[string]any
	codec    codec.Codec[E]
	keyCodec codec.Codec[K]
	load     func(context.Context, K) (E, bool, error)
	loadMany func(context.Context, []K) (map[K]E, error)

	mu         sync.RWMutex
	attributes []predicate
	indexes    []predicate
}

// predicate is the invalidation metadata of a cached attribute or index.
type predicate struct {
	name string // attribute name; empty for indexes
	by   []string
}

func NewModel[E any, K comparable](c *Cache, opts ModelOptions[E, K]) (*Model[E, K], error) {
	switch {
	case c == nil:
		return nil, fmt.Errorf("%w: nil cache", ErrInvalidModel)
	case opts.Name == "":
		return nil, fmt.Errorf("%w: name is required", ErrInvalidModel)
	case len(opts.Columns) == 0:
		return nil, fmt.Errorf("%w: %s: columns are required", ErrInvalidModel, opts.Name)
	case opts.ID == nil:
		return nil, fmt.Errorf("%w: %s: ID is required", ErrInvalidModel, opts.Name)
	case opts.Load == nil:
		return nil, fmt.Errorf("%w: %s: Load is required", ErrInvalidModel, opts.Name)
	}

	m := &Model[E, K]{
		cache:       c,
		name:        opts.Name,
		keys:        c.keys,
		fingerprint: keys.Fingerprint(opts.Columns),
		pk:          coalesce(opts.PrimaryKey, defaultPrimaryKey),
		id:          opts.ID,
		attrs:       opts.Attributes,
		codec:       orJSON(opts.Codec),
		keyCodec:    orJSON(opts.KeyCodec),
		load:        opts.Load,
		loadMany:    opts.LoadMany,
	}
	if opts.Namespace != "" {
		m.keys = keys.Deriver{Namespace: opts.Namespace}
	}
	return m, nil
}

func (m *Model[E, K]) Name() string { return m.name }

// Fingerprint returns the schema fingerprint embedded in blob keys.
func (m *Model[E, K]) Fingerprint() string { return m.fingerprint }

func (m *Model[E, K]) BlobKey(id K) string {
	return m.keys.Blob(m.name, m.fingerprint, id)
}

// FetchByID returns the entity with primary key id. A missing row is
// ok=false, not an error, and is cached as nil.
func (m *Model[E, K]) FetchByID(ctx context.Context, id K) (E, bool, error) {
	return readThrough(ctx, m.cache, keys.Blob, m.BlobKey(id), m.codec, func(ctx context.Context) (E, bool, error) {
		return m.load(ctx, id)
	})
}

// Fetch is FetchByID that reports a missing row as *NotFoundError.
func (m *Model[E, K]) Fetch(ctx context.Context, id K) (E, error) {
	e, ok, err := m.FetchByID(ctx, id)
	if err != nil {
		return e, err
	}
	if !ok {
		return e, &NotFoundError{Entity: m.name, Key: keys.Format(id)}
	}
	return e, nil
}

// Exists reports whether a row with primary key id exists. It shares the
// blob slot with FetchByID but never decodes the cached entity.
func (m *Model[E, K]) Exists(ctx context.Context, id K) (bool, error) {
	_, ok, err := readThrough[[]byte](ctx, m.cache, keys.Blob, m.BlobKey(id), codec.Bytes{}, func(ctx context.Context) ([]byte, bool, error) {
		e, ok, err := m.load(ctx, id)
		if err != nil || !ok {
			return nil, false, err
		}
		b, err := m.codec.Encode(e)
		if err != nil {
			return nil, false, err
		}
		return b, true, nil
	})
	return ok, err
}

// FetchMulti returns the entities for ids in the order given, skipping ids
// with no row. Hits come from the cache; misses are loaded together with
// LoadMany when set, one by one with Load otherwise, and written back
// individually.
func (m *Model[E, K]) FetchMulti(ctx context.Context, ids []K) ([]E, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	b, reason := m.cache.source(ctx)
	if b == nil {
		for _, id := range ids {
			key := m.BlobKey(id)
			m.cache.hooks.Bypass(key, reason)
			m.cache.logBypass(key, reason)
		}
		found, err := m.loadMissing(ctx, ids)
		if err != nil {
			return nil, err
		}
		return ordered(ids, found), nil
	}

	ctx, span := m.cache.tracer.Start(ctx, "idcache.fetch_multi",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("idcache.entity", m.name),
			attribute.Int("idcache.requested", len(ids)),
		))
	defer span.End()

	found := make(map[K]E, len(ids))
	pending := make(map[K]*Entry[E])
	var misses []K
	for _, id := range ids {
		if _, dup := pending[id]; dup {
			continue
		}
		if _, dup := found[id]; dup {
			continue
		}
		key := m.BlobKey(id)
		e, err := Find(ctx, b, m.codec, key)
		if err != nil {
			m.cache.backendError(span, "get", key, err)
			e = nil
		} else if e.Corrupt() {
			m.cache.hooks.CorruptEntry(key)
			m.cache.logCorrupt(key)
		}
		if e != nil && e.Exists() {
			m.cache.hooks.Hit(key)
			if v, ok := e.Value(); ok {
				found[id] = v
			} else {
				// cached nil; remember it so a repeated id is not reloaded
				pending[id] = nil
			}
			continue
		}
		m.cache.hooks.Miss(key)
		pending[id] = e
		misses = append(misses, id)
	}
	span.SetAttributes(attribute.Int("idcache.misses", len(misses)))

	if len(misses) > 0 {
		loaded, err := m.loadMissing(ctx, misses)
		if err != nil {
			recordOutcome(span, "miss", err)
			return nil, err
		}
		for _, id := range misses {
			e := pending[id]
			v, ok := loaded[id]
			if ok {
				found[id] = v
			}
			if e == nil {
				// Find failed; skip the write-back
				continue
			}
			if ok {
				e.SetValue(v)
			} else {
				e.SetNil()
			}
			saveEntry(ctx, m.cache, span, e)
		}
	}
	recordOutcome(span, "ok", nil)
	return ordered(ids, found), nil
}

func (m *Model[E, K]) loadMissing(ctx context.Context, ids []K) (map[K]E, error) {
	if m.loadMany != nil {
		out, err := m.loadMany(ctx, ids)
		if err != nil {
			return nil, err
		}
		if out == nil {
			out = map[K]E{}
		}
		return out, nil
	}
	out := make(map[K]E, len(ids))
	for _, id := range ids {
		e, ok, err := m.load(ctx, id)
		if err != nil {
			return nil, err
		}
		if ok {
			out[id] = e
		}
	}
	return out, nil
}

func ordered[E any, K comparable](ids []K, found map[K]E) []E {
	out := make([]E, 0, len(ids))
	for _, id := range ids {
		if v, ok := found[id]; ok {
			out = append(out, v)
		}
	}
	return out
}

func (m *Model[E, K]) addPredicate(list *[]predicate, p predicate) {
	m.mu.Lock()
	*list = append(*list, p)
	m.mu.Unlock()
}

func (m *Model[E, K]) predicates() (attrs, indexes []predicate) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]predicate(nil), m.attributes...), append([]predicate(nil), m.indexes...)
}
