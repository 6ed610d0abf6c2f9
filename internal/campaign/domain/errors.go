package domain

import "errors"

var (
	// ErrNotFound indicates the requested campaign does not exist.
	ErrNotFound = errors.New("campaign not found")
	// ErrValidation indicates required template fields are missing;
	// the campaign is rejected before any send attempt.
	ErrValidation = errors.New("campaign template is invalid")
	// ErrInvalidTransition indicates a status change that would move
	// the campaign backward.
	ErrInvalidTransition = errors.New("invalid campaign status transition")
)
