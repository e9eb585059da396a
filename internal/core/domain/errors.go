package domain

import "errors"

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists indicates an entity already exists.
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrNoTargetPaths indicates no target paths resolve for the active
	// document version. This is a configuration failure and aborts the
	// run early; all other failures are contained per node instance.
	ErrNoTargetPaths = errors.New("no target paths resolvable for version")

	// ErrUnknownVersion indicates the alias table has no entries for the
	// requested document version. The resolver falls back to canonical
	// paths; this error is only used for diagnostics, never raised by
	// the resolver itself.
	ErrUnknownVersion = errors.New("unknown document version")

	// ErrScopeViolation indicates an attempted match across document
	// types. Document type is the mandatory matching scope; crossing it
	// is a programming error, not a recoverable condition.
	ErrScopeViolation = errors.New("document type scope violation")

	// ErrLibraryConflict indicates a concurrent write was detected while
	// updating the pattern library. Callers retry once with a re-read,
	// then surface it as a soft failure.
	ErrLibraryConflict = errors.New("pattern library write conflict")

	// ErrMaskingFailed indicates the field classifier failed and the
	// masking pass is not configured as best-effort. The node instance
	// is rejected rather than risk leaking unmasked sensitive data.
	ErrMaskingFailed = errors.New("masking failed")

	// ErrRunCancelled indicates the extraction run was aborted by the
	// caller. Already-matched instances are still reported.
	ErrRunCancelled = errors.New("run cancelled")

	// ErrDescriberUnavailable indicates the description service is not
	// configured. Pattern descriptions are best-effort; matching is
	// unaffected.
	ErrDescriberUnavailable = errors.New("describer unavailable")
)
