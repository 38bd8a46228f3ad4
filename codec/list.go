package codec

import "github.com/unkn0wn-root/idcache/internal/wire"

// List encodes a slice by framing each element encoded with Inner.
// Used for the primary-key lists held by non-unique index slots.
type List[V any] struct {
	Inner Codec[V]
}

func (c List[V]) Encode(vs []V) ([]byte, error) {
	items := make([][]byte, 0, len(vs))
	for _, v := range vs {
		b, err := c.Inner.Encode(v)
		if err != nil {
			return nil, err
		}
		items = append(items, b)
	}
	return wire.EncodeList(items)
}

func (c List[V]) Decode(b []byte) ([]V, error) {
	items, err := wire.DecodeList(b)
	if err != nil {
		return nil, err
	}
	out := make([]V, 0, len(items))
	for _, it := range items {
		v, err := c.Inner.Decode(it)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}
