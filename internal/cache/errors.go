package cache

// artifactNotFoundError signals an unknown artifact id for 404 mapping.
type artifactNotFoundError struct{ id string }

func (e artifactNotFoundError) Error() string { return "artifact not found: " + e.id }

// ErrArtifactNotFound constructs an artifactNotFoundError.
func ErrArtifactNotFound(id string) error { return artifactNotFoundError{id: id} }

// IsArtifactNotFound reports whether err indicates a missing artifact id.
func IsArtifactNotFound(err error) bool {
	_, ok := err.(artifactNotFoundError)
	return ok
}

// insufficientStorageError signals the admission check denied a download
// before any filesystem I/O.
type insufficientStorageError struct {
	id        string
	required  int64
	available int64
}

func (e insufficientStorageError) Error() string {
	return "insufficient storage for " + e.id
}

// IsInsufficientStorage reports whether err indicates denied disk admission.
func IsInsufficientStorage(err error) bool {
	_, ok := err.(insufficientStorageError)
	return ok
}

// downloadFailedError wraps a network/disk error during fetch. The cache
// entry is marked failed and a later ensure call may retry.
type downloadFailedError struct {
	id    string
	cause error
}

func (e downloadFailedError) Error() string {
	return "download failed: " + e.id + ": " + e.cause.Error()
}

func (e downloadFailedError) Unwrap() error { return e.cause }

// IsDownloadFailed reports whether err indicates a failed fetch. Integrity
// failures also satisfy this predicate since both retry the same way.
func IsDownloadFailed(err error) bool {
	switch err.(type) {
	case downloadFailedError, integrityError:
		return true
	}
	return false
}

// integrityError signals a downloaded but incomplete artifact.
type integrityError struct{ id string }

func (e integrityError) Error() string { return "integrity check failed: " + e.id }

// IsIntegrityFailed reports whether err indicates an incomplete artifact.
func IsIntegrityFailed(err error) bool {
	_, ok := err.(integrityError)
	return ok
}
