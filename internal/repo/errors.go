package repo

import "errors"

var (
	// ErrNotFound covers both "no such record" and "record no longer
	// active"; callers must not be able to tell the two apart.
	ErrNotFound = errors.New("repo: record not found")

	// ErrAlreadyRotated is returned to the loser of a rotation race. The
	// session service treats it as a reuse-detection signal.
	ErrAlreadyRotated = errors.New("repo: record already rotated")
)
