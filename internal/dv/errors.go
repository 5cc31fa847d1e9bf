package dv

import "errors"

// Error kinds returned by the service. Callers classify failures with
// errors.Is; the wrapped cause is kept in the chain.
var (
	// ErrNotFound reports a container, item, revision or thumbnail that
	// does not exist in the catalog.
	ErrNotFound = errors.New("not found")

	// ErrConflict reports a state inconsistency: a name already taken,
	// a MIME type change, a missing or corrupt file.
	ErrConflict = errors.New("conflict")

	// ErrWrite reports a filesystem write failure. Any compensation has
	// already been attempted when it is returned.
	ErrWrite = errors.New("write error")

	// ErrReadonly reports a mutation attempted on a readonly container.
	ErrReadonly = errors.New("container is readonly")

	// ErrValidation reports invalid input such as a bad name or tag.
	ErrValidation = errors.New("validation failed")
)
