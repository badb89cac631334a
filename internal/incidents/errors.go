package incidents

import "errors"

// Domain errors.
var (
	ErrIncidentNotFound         = errors.New("incident not found")
	ErrShortDescriptionRequired = errors.New("short description is required")
	ErrCallerRequired           = errors.New("caller is required")
	ErrInvalidStatus            = errors.New("invalid incident status")
	ErrInvalidPriority          = errors.New("invalid incident priority")
	ErrInvalidResolutionCode    = errors.New("invalid resolution code")
	ErrResolutionNotesRequired  = errors.New("resolution notes are required when status is Resolved or Closed")
	ErrForbidden                = errors.New("not allowed to create incidents")
	ErrForbiddenField           = errors.New("not allowed to change this field")
)
