// Package apperr defines the error kinds shared across moodify. Callers wrap
// them with fmt.Errorf("...: %w") and match with errors.Is.
package apperr

import "errors"

var (
	// ErrAuthRequired means the user has no valid provider session.
	ErrAuthRequired = errors.New("authentication required")
	// ErrRateLimited means an external provider rejected the call for rate reasons.
	ErrRateLimited = errors.New("rate limit exceeded, please try again later")
	// ErrNotFound means the requested entity does not exist.
	ErrNotFound = errors.New("not found")
	// ErrProviderFailure covers embedding and vector store failures.
	ErrProviderFailure = errors.New("provider failure")
	// ErrIngestionFailed is returned when an ingestion batch could not be committed.
	ErrIngestionFailed = errors.New("ingestion failed")
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrConflict means another ingestion for the same user is in progress.
	ErrConflict = errors.New("conflict")
	// ErrForbidden means the target resource is not owned by moodify.
	ErrForbidden = errors.New("forbidden")
)

// Retryable reports whether err is worth retrying later without user action.
func Retryable(err error) bool {
	return errors.Is(err, ErrRateLimited) || errors.Is(err, ErrConflict)
}
