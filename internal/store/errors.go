package store

import "errors"

var (
	// ErrStorageUnavailable means the store itself could not be opened.
	// Fatal at startup, recoverable nowhere else.
	ErrStorageUnavailable = errors.New("storage unavailable")

	// ErrItemUnavailable means a single record or blob is missing or
	// unreadable. Callers skip and report; it never aborts a batch or a
	// page render.
	ErrItemUnavailable = errors.New("item unavailable")
)
