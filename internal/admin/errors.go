package admin

import "errors"

// Administration errors.
var (
	ErrUserNotFound   = errors.New("user not found")
	ErrGroupNotFound  = errors.New("group not found")
	ErrNameRequired   = errors.New("name is required")
	ErrInvalidRole    = errors.New("invalid role")
	ErrEmailTaken     = errors.New("email already in use")
	ErrNameTaken      = errors.New("name already in use")
	ErrGroupNameTaken = errors.New("group name already in use")
	ErrUnknownGroup   = errors.New("unknown resolver group")
)
