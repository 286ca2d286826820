package kg

import (
	"errors"
	"fmt"
)

var (
	// ErrStoreUnavailable marks transient graph store failures (network,
	// timeout). Callers should back off and retry the triple.
	ErrStoreUnavailable = errors.New("graph store unavailable")

	// ErrDuplicateConflict indicates the store violated its conditional-create
	// atomicity and produced a duplicate node or edge. This should never
	// happen with an idempotent upsert design and is treated as a fatal bug,
	// not silently resolved.
	ErrDuplicateConflict = errors.New("duplicate node or edge conflict")
)

// InvalidTripleError marks a triple whose subject or object canonicalizes to
// an empty name. The batch driver skips and logs these; they never abort a
// batch.
type InvalidTripleError struct {
	Reason string
	Triple RawTriple
}

func (e *InvalidTripleError) Error() string {
	return fmt.Sprintf("invalid triple (%q, %q, %q): %s",
		e.Triple.Subject, e.Triple.Predicate, e.Triple.Object, e.Reason)
}

// IsInvalidTriple reports whether err is (or wraps) an InvalidTripleError.
func IsInvalidTriple(err error) bool {
	var ite *InvalidTripleError
	return errors.As(err, &ite)
}

// IsStoreUnavailable reports whether err is (or wraps) ErrStoreUnavailable.
func IsStoreUnavailable(err error) bool {
	return errors.Is(err, ErrStoreUnavailable)
}
