package codec

import "fmt"

// Limit rejects payloads larger than MaxDecode bytes before handing them to
// Inner. Cached bytes come from a shared store, so a bounded decode keeps a
// single oversized entry from ballooning a reader. MaxDecode <= 0 disables
// the check. Encode is forwarded unchanged.
type Limit[V any] struct {
	Inner     Codec[V]
	MaxDecode int
}

func (c Limit[V]) Encode(v V) ([]byte, error) { return c.Inner.Encode(v) }

func (c Limit[V]) Decode(b []byte) (V, error) {
	if c.MaxDecode > 0 && len(b) > c.MaxDecode {
		var zero V
		return zero, fmt.Errorf("codec: payload too large: %d > %d", len(b), c.MaxDecode)
	}
	return c.Inner.Decode(b)
}
