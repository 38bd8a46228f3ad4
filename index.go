package idcache

import (
	"context"
	"fmt"
	"strings"

	"github.com/unkn0wn-root/idcache/codec"
	"github.com/unkn0wn-root/idcache/keys"
)

// IndexOptions declares a secondary-index lookup: the primary keys of rows
// whose By columns equal the given values.
type IndexOptions[K any] struct {
	By     []string // ordered column names; at least one
	Unique bool     // at most one row per predicate; the slot holds a single key
	Load   func(ctx context.Context, values []any) ([]K, error)
}

// Index is a cached secondary-index lookup on a model.
type Index[E any, K comparable] struct {
	model  *Model[E, K]
	by     []string
	unique bool
	load   func(context.Context, []any) ([]K, error)
}

// CacheIndex registers an index on m. Indexes are invalidated whenever any
// of their By columns change.
func (m *Model[E, K]) CacheIndex(opts IndexOptions[K]) (*Index[E, K], error) {
	if len(opts.By) == 0 {
		return nil, fmt.Errorf("%w: %s: index needs at least one column", ErrInvalidModel, m.name)
	}
	if opts.Load == nil {
		return nil, fmt.Errorf("%w: %s: index on %s needs Load", ErrInvalidModel, m.name, keys.By(opts.By))
	}
	if m.attrs == nil {
		return nil, fmt.Errorf("%w: %s: indexes need ModelOptions.Attributes", ErrInvalidModel, m.name)
	}
	by := append([]string(nil), opts.By...)
	m.addPredicate(&m.indexes, predicate{by: by})
	return &Index[E, K]{model: m, by: by, unique: opts.Unique, load: opts.Load}, nil
}

func (ix *Index[E, K]) By() []string { return append([]string(nil), ix.by...) }

func (ix *Index[E, K]) Unique() bool { return ix.unique }

func (ix *Index[E, K]) Key(values ...any) (string, error) {
	if len(values) != len(ix.by) {
		return "", arityError("index "+ix.model.name+"("+strings.Join(ix.by, ",")+")", len(ix.by), len(values))
	}
	return ix.model.keys.Index(ix.model.name, ix.by, values), nil
}

// FetchIDs returns the primary keys matching values. An empty result is
// cached as nil.
func (ix *Index[E, K]) FetchIDs(ctx context.Context, values ...any) ([]K, error) {
	key, err := ix.Key(values...)
	if err != nil {
		return nil, err
	}
	c := ix.model.cache
	if ix.unique {
		id, ok, err := readThrough(ctx, c, keys.Index, key, ix.model.keyCodec, func(ctx context.Context) (K, bool, error) {
			var zero K
			ids, err := ix.load(ctx, values)
			if err != nil || len(ids) == 0 {
				return zero, false, err
			}
			return ids[0], true, nil
		})
		if err != nil || !ok {
			return nil, err
		}
		return []K{id}, nil
	}

	ids, _, err := readThrough(ctx, c, keys.Index, key, codec.List[K]{Inner: ix.model.keyCodec}, func(ctx context.Context) ([]K, bool, error) {
		ids, err := ix.load(ctx, values)
		if err != nil || len(ids) == 0 {
			return nil, false, err
		}
		return ids, true, nil
	})
	return ids, err
}

// Fetch returns the first entity matching values, resolved through the
// model's blob cache. ok=false when nothing matches.
func (ix *Index[E, K]) Fetch(ctx context.Context, values ...any) (E, bool, error) {
	var zero E
	ids, err := ix.FetchIDs(ctx, values...)
	if err != nil || len(ids) == 0 {
		return zero, false, err
	}
	if ix.unique || len(ids) == 1 {
		return ix.model.FetchByID(ctx, ids[0])
	}
	all, err := ix.model.FetchMulti(ctx, ids)
	if err != nil || len(all) == 0 {
		return zero, false, err
	}
	return all[0], true, nil
}

// MustFetch is Fetch that reports no match as *NotFoundError.
func (ix *Index[E, K]) MustFetch(ctx context.Context, values ...any) (E, error) {
	e, ok, err := ix.Fetch(ctx, values...)
	if err != nil {
		return e, err
	}
	if !ok {
		return e, &NotFoundError{Entity: ix.model.name, Key: ix.describe(values)}
	}
	return e, nil
}

// FetchAll returns every entity matching values in index order.
func (ix *Index[E, K]) FetchAll(ctx context.Context, values ...any) ([]E, error) {
	ids, err := ix.FetchIDs(ctx, values...)
	if err != nil || len(ids) == 0 {
		return nil, err
	}
	return ix.model.FetchMulti(ctx, ids)
}

func (ix *Index[E, K]) describe(values []any) string {
	parts := make([]string, len(ix.by))
	for i, col := range ix.by {
		parts[i] = fmt.Sprintf("%s=%v", col, values[i])
	}
	return strings.Join(parts, ",")
}
