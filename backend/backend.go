// Package backend defines the key-value store contract used by idcache.
//
// A Backend exposes exactly four primitives: Get (value + concurrency
// token), Add (write iff absent), CAS (write iff the token is unchanged) and
// Set (unconditional write with a bounded TTL, used only for tombstones).
// All correctness guarantees of idcache rest on Add and CAS being atomic
// per key; the layer above performs no locking of its own.
//
// Implementations MUST be byte-for-byte transparent: Get returns exactly the
// bytes last written by Add, CAS or Set for that key.
//
// Every error returned by a Backend is treated by callers as a miss (reads)
// or a no-op (writes). Returning ErrUnavailable (or wrapping it) signals
// that the store could not be reached at all.
package backend

import (
	"context"
	"errors"
	"time"
)

// ErrUnavailable reports that the backend could not serve the request
// (network failure, open circuit, no backend configured).
var ErrUnavailable = errors.New("idcache: backend unavailable")

// Token is an opaque concurrency token returned by Get. It is only
// meaningful for the key it was read from and only until that slot changes.
type Token uint64

// Item is a stored value together with its token.
type Item struct {
	Value []byte
	Token Token
}

// Backend is the physical key-value store. Must be safe for concurrent use.
type Backend interface {
	// Get returns (item, true, nil) on hit and (Item{}, false, nil) on miss.
	Get(ctx context.Context, key string) (Item, bool, error)

	// Add stores value only if no entry exists at key. Any existing entry,
	// tombstones included, makes Add return false.
	Add(ctx context.Context, key string, value []byte) (bool, error)

	// CAS stores value only if the entry at key is still associated with
	// token. Returns false when the slot changed or vanished since Get.
	CAS(ctx context.Context, key string, value []byte, token Token) (bool, error)

	// Set overwrites the entry at key unconditionally. The entry expires
	// after ttl.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Close releases resources.
	Close(ctx context.Context) error
}

// Unavailable wraps err so that errors.Is(err, ErrUnavailable) holds.
func Unavailable(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrUnavailable) {
		return err
	}
	return &OpError{Op: op, Err: err}
}

// OpError is a backend failure tagged with the primitive that failed.
type OpError struct {
	Op  string
	Err error
}

func (e *OpError) Error() string { return "idcache: backend " + e.Op + ": " + e.Err.Error() }

func (e *OpError) Unwrap() []error { return []error{ErrUnavailable, e.Err} }
