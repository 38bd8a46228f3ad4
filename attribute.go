package idcache

import (
	"context"
	"fmt"
	"strings"

	"github.com/unkn0wn-root/idcache/codec"
	"github.com/unkn0wn-root/idcache/keys"
)

// AttributeOptions declares a cached single-attribute lookup: the value of
// column Name on the row whose By columns equal the given values.
type AttributeOptions[A any] struct {
	Name  string
	By    []string       // default: the primary key
	Codec codec.Codec[A] // default JSON
	Load  func(ctx context.Context, values []any) (A, bool, error)
}

// Attribute is a cached attribute lookup. Safe for concurrent use.
type Attribute[A any] struct {
	cache  *Cache
	keys   keys.Deriver
	entity string
	name   string
	by     []string
	codec  codec.Codec[A]
	load   func(context.Context, []any) (A, bool, error)
}

// CacheAttribute registers an attribute lookup on m. The attribute is
// invalidated when Name or any By column changes.
func CacheAttribute[E any, K comparable, A any](m *Model[E, K], opts AttributeOptions[A]) (*Attribute[A], error) {
	if opts.Name == "" {
		return nil, fmt.Errorf("%w: %s: attribute name is required", ErrInvalidModel, m.name)
	}
	if opts.Load == nil {
		return nil, fmt.Errorf("%w: %s.%s: Load is required", ErrInvalidModel, m.name, opts.Name)
	}
	if m.attrs == nil {
		return nil, fmt.Errorf("%w: %s: attributes need ModelOptions.Attributes", ErrInvalidModel, m.name)
	}
	by := append([]string(nil), opts.By...)
	if len(by) == 0 {
		by = []string{m.pk}
	}
	m.addPredicate(&m.attributes, predicate{name: opts.Name, by: by})
	return &Attribute[A]{
		cache:  m.cache,
		keys:   m.keys,
		entity: m.name,
		name:   opts.Name,
		by:     by,
		codec:  orJSON(opts.Codec),
		load:   opts.Load,
	}, nil
}

func (a *Attribute[A]) Name() string { return a.name }

func (a *Attribute[A]) By() []string { return append([]string(nil), a.by...) }

func (a *Attribute[A]) Key(values ...any) (string, error) {
	if len(values) != len(a.by) {
		return "", arityError("attribute "+a.entity+"."+a.name+" by "+strings.Join(a.by, ","), len(a.by), len(values))
	}
	return a.keys.Attribute(a.entity, a.name, a.by, values), nil
}

// Fetch returns the attribute of the row matching values. ok=false when
// there is no such row; that result is cached as nil.
func (a *Attribute[A]) Fetch(ctx context.Context, values ...any) (A, bool, error) {
	key, err := a.Key(values...)
	if err != nil {
		var zero A
		return zero, false, err
	}
	return readThrough(ctx, a.cache, keys.Attribute, key, a.codec, func(ctx context.Context) (A, bool, error) {
		return a.load(ctx, values)
	})
}
