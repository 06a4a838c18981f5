package sync

import "errors"

var (
	// ErrNotAuthenticated means no bearer identity is configured or the
	// remote rejected the token. The engine degrades to local-only; it is
	// never fatal.
	ErrNotAuthenticated = errors.New("not authenticated")

	// ErrQuotaExceeded means the cloud quota is exhausted for first-time
	// uploads. Local data keeps being served; already-synced records may
	// still be overwritten.
	ErrQuotaExceeded = errors.New("quota exceeded")

	// ErrNetwork wraps transport failures. Retry is the caller's concern,
	// via the next periodic tick.
	ErrNetwork = errors.New("network error")

	// ErrNotFound means the remote has no such resource. For metadata
	// patches this is a hard failure; for deletions it counts as success.
	ErrNotFound = errors.New("not found")
)
