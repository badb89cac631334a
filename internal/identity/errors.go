package identity

import "errors"

// Identity errors.
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrWrongPortal        = errors.New("account cannot sign in to this portal")
	ErrInvalidPortal      = errors.New("invalid portal")
	ErrInvalidToken       = errors.New("invalid token")
	ErrUserNotFound       = errors.New("user not found")
)
