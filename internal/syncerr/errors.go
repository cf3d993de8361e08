// Package syncerr defines the error taxonomy shared by adapters, the
// repository, the rate limiter, and the executor. Errors are plain
// sentinel values wrapped with context via fmt.Errorf("...: %w", ...),
// classified back to a Kind with Classify.
package syncerr

import "errors"

var (
	// ErrAuthFailed means credentials are invalid or revoked. Surfaced
	// to the caller; never retried.
	ErrAuthFailed = errors.New("authentication failed")

	// ErrRateLimited is transient; retried with backoff and counts
	// against the retry budget.
	ErrRateLimited = errors.New("rate limited")

	// ErrTransient is a network blip or 5xx; retried with backoff.
	ErrTransient = errors.New("transient failure")

	// ErrNotPermitted means an adapter capability or the Safety Gate
	// refused the operation. Surfaced, never retried.
	ErrNotPermitted = errors.New("not permitted")

	// ErrConflict is a repository uniqueness or invariant violation.
	// Surfaced; triggers local transaction rollback.
	ErrConflict = errors.New("conflict")

	// ErrNotFound means the external id is unknown (e.g. the remote
	// track was removed globally). Becomes a skipped change with a note.
	ErrNotFound = errors.New("not found")

	// ErrCancelled is cooperative cancellation. Terminal.
	ErrCancelled = errors.New("cancelled")

	// ErrStopped means the emergency stop flag was set. Terminal.
	ErrStopped = errors.New("stopped")
)

// Kind is the taxonomy of spec.md §7, independent of the specific
// sentinel so callers can switch on it without an import cycle back to
// this package's error values if they'd rather not.
type Kind string

const (
	KindAuthFailed   Kind = "auth_failed"
	KindRateLimited  Kind = "rate_limited"
	KindTransient    Kind = "transient"
	KindNotPermitted Kind = "not_permitted"
	KindConflict     Kind = "conflict"
	KindNotFound     Kind = "not_found"
	KindCancelled    Kind = "cancelled"
	KindStopped      Kind = "stopped"
	KindUnknown      Kind = "unknown"
)

// Classify maps an error (however deeply wrapped) to its Kind.
func Classify(err error) Kind {
	switch {
	case err == nil:
		return KindUnknown
	case errors.Is(err, ErrAuthFailed):
		return KindAuthFailed
	case errors.Is(err, ErrRateLimited):
		return KindRateLimited
	case errors.Is(err, ErrTransient):
		return KindTransient
	case errors.Is(err, ErrNotPermitted):
		return KindNotPermitted
	case errors.Is(err, ErrConflict):
		return KindConflict
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrCancelled):
		return KindCancelled
	case errors.Is(err, ErrStopped):
		return KindStopped
	default:
		return KindUnknown
	}
}

// Retryable reports whether an error of this Kind should be retried by
// the executor/rate limiter rather than immediately propagated.
// AuthFailed, NotPermitted, Cancelled, and Stopped never retry.
func Retryable(k Kind) bool {
	switch k {
	case KindRateLimited, KindTransient:
		return true
	default:
		return false
	}
}

// JobFatal reports whether an error of this Kind should abort the
// whole job (roll back the local transaction, leave the previous
// snapshot intact) rather than just failing the one SyncChange it
// occurred on.
func JobFatal(k Kind) bool {
	switch k {
	case KindAuthFailed, KindStopped, KindCancelled:
		return true
	default:
		return false
	}
}
