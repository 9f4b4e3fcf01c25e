package chat

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation is returned for malformed requests (empty text,
	// unsupported language code, oversized audio). Rejected before any
	// external call.
	ErrValidation = errors.New("validation failed")

	// ErrNotFound is returned when a referenced message id does not exist.
	ErrNotFound = errors.New("message not found")

	// ErrConflict is returned when an insert collides with an existing id.
	ErrConflict = errors.New("duplicate message id")

	// ErrPersistence is returned when a backend write or delete fails.
	// The caller decides what to do with any optimistic local entry.
	ErrPersistence = errors.New("persistence failed")

	// ErrFetch is returned when the initial backend read fails.
	ErrFetch = errors.New("fetch failed")

	// ErrService is returned for transient upstream failures
	// (translation, transcription, summary).
	ErrService = errors.New("service unavailable")
)

// OpError ties a failure to the logical operation that produced it.
// Kind is one of the sentinel errors above so callers can branch with
// errors.Is without string matching.
type OpError struct {
	Op   string
	Kind error
	Err  error
}

func (e OpError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %v", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %v: %v", e.Op, e.Kind, e.Err)
}

func (e OpError) Unwrap() error { return e.Kind }

// Opf wraps err as an OpError of the given kind.
func Opf(op string, kind, err error) error {
	return OpError{Op: op, Kind: kind, Err: err}
}

// IsValidation reports whether err represents ErrValidation.
func IsValidation(err error) bool { return errors.Is(err, ErrValidation) }

// IsNotFound reports whether err represents ErrNotFound.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// IsConflict reports whether err represents ErrConflict.
func IsConflict(err error) bool { return errors.Is(err, ErrConflict) }

// IsPersistence reports whether err represents ErrPersistence.
func IsPersistence(err error) bool { return errors.Is(err, ErrPersistence) }

// IsFetch reports whether err represents ErrFetch.
func IsFetch(err error) bool { return errors.Is(err, ErrFetch) }

// IsService reports whether err represents ErrService.
func IsService(err error) bool { return errors.Is(err, ErrService) }
