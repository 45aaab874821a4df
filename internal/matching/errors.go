package matching

import "errors"

var (
	// ErrProfileNotFound surfaces a missing requester or candidate profile.
	// Not retried; the caller sent an id we do not know.
	ErrProfileNotFound = errors.New("profile not found")

	// ErrRecordNotFound means no match record exists for the directional pair.
	ErrRecordNotFound = errors.New("match record not found")

	// ErrInvalidState rejects a lifecycle action attempted from a state that
	// forbids it, so duplicate client retries stay detectable.
	ErrInvalidState = errors.New("action not allowed from current match state")

	// ErrInvalidCursor rejects a continuation token we did not issue.
	ErrInvalidCursor = errors.New("invalid continuation token")
)
