package hserrors

import "errors"

// Error taxonomy of the history store. Repositories and the service wrap
// these with operation context, so callers match with errors.Is.
var (
	// ErrStorageUnavailable marks a backend connection or execution failure.
	// Never retried internally; retry policy belongs to the caller.
	ErrStorageUnavailable = errors.New("storage unavailable")

	// ErrVersionConflict marks a lost race on a (path_id, version_no) slot.
	// Internal signal: the history service converts it into a retry and
	// it never reaches external callers.
	ErrVersionConflict = errors.New("version number conflict")

	// ErrVersioningFailed is returned when the upsert retry budget is
	// exhausted, which indicates pathological contention on one path.
	ErrVersioningFailed = errors.New("versioning failed: retries exhausted")

	// ErrNotFound marks a lookup of a specific identity that does not exist.
	// Filtered reads return empty results instead.
	ErrNotFound = errors.New("not found")
)
