package domain

import "errors"

var (
	// ErrFetchFailed marks a transport error or non-2xx response while
	// downloading an external asset. Non-fatal: the owning document is
	// marked failed and retried on a later run.
	ErrFetchFailed = errors.New("fetch failed")

	// ErrEmptyBody marks a successful response with no payload.
	ErrEmptyBody = errors.New("empty response body")

	// ErrLockHeld signals that another session took the processing lease
	// before this one could acquire it.
	ErrLockHeld = errors.New("processing lock held")
)
