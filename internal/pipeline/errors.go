package pipeline

import "errors"

var (
	// ErrInvalidRequest is returned for a malformed range or stage request.
	ErrInvalidRequest = errors.New("invalid request")

	// ErrRunInProgress is returned when a background run is already active.
	ErrRunInProgress = errors.New("a run is already in progress")

	// ErrNoTheory marks a chunk that has no theory to build on.
	ErrNoTheory = errors.New("chunk has no theory")

	// ErrUnrecoverableResponse marks a backend response nothing usable could
	// be recovered from.
	ErrUnrecoverableResponse = errors.New("unrecoverable backend response")
)
