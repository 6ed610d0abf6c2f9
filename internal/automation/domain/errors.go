package domain

import "errors"

var (
	// ErrNotFound indicates the requested automation does not exist.
	ErrNotFound = errors.New("automation not found")
	// ErrValidation indicates the automation is missing required
	// template fields and must be rejected before any send attempt.
	ErrValidation = errors.New("automation template is invalid")
	// ErrInactive indicates the automation exists but is deactivated.
	ErrInactive = errors.New("automation is inactive")
)
