package service

import "errors"

// The HTTP layer maps every one of these to the same "not authenticated"
// response; the distinction only survives in logs and audit events.
var (
	ErrInvalidToken    = errors.New("service: invalid token")
	ErrRevokedOrReused = errors.New("service: token revoked or reused")
	ErrUserInactive    = errors.New("service: user inactive")
)

// ErrForbidden is the one failure that is not an authentication problem: a
// valid caller addressing someone else's sessions without the admin role.
var ErrForbidden = errors.New("service: forbidden")
