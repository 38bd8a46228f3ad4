package idcache

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound is matched by *NotFoundError from strict fetches.
	ErrNotFound = errors.New("idcache: not found")

	// ErrArity is returned when a fetch passes a different number of
	// predicate values than the attribute or index declares.
	ErrArity = errors.New("idcache: wrong number of predicate values")

	// ErrInvalidModel is returned by registration for incomplete options.
	ErrInvalidModel = errors.New("idcache: invalid model options")
)

type NotFoundError struct {
	Entity string
	Key    string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("idcache: %s %s not found", e.Entity, e.Key)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// KeyError is a single tombstone write that failed.
type KeyError struct {
	Key string
	Err error
}

// InvalidateError collects every tombstone that could not be written for one
// mutation. The remaining keys were still attempted.
type InvalidateError struct {
	Entity   string
	Failures []KeyError
}

func (e *InvalidateError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "idcache: invalidate %s: %d key(s) failed", e.Entity, len(e.Failures))
	for i, f := range e.Failures {
		if i == 3 {
			fmt.Fprintf(&b, "; and %d more", len(e.Failures)-i)
			break
		}
		fmt.Fprintf(&b, "; %q: %v", f.Key, f.Err)
	}
	return b.String()
}

func (e *InvalidateError) Unwrap() []error {
	errs := make([]error, 0, len(e.Failures))
	for _, f := range e.Failures {
		if f.Err != nil {
			errs = append(errs, f.Err)
		}
	}
	return errs
}

func arityError(what string, want, got int) error {
	return fmt.Errorf("%w: %s takes %d, got %d", ErrArity, what, want, got)
}
