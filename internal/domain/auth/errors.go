package auth

import "errors"

var (
	ErrInvalidToken    = errors.New("invalid or expired token")
	ErrMissingIdentity = errors.New("member identity missing from request context")
	ErrNotAMember      = errors.New("token does not belong to a club member")
)
