package domain

import "errors"

var (
	// ErrNotFound indicates no delivery log matches the correlation key.
	ErrNotFound = errors.New("delivery log not found")
	// ErrUnparsableEvent indicates a provider payload could not be
	// normalized. It is logged and skipped, never surfaced.
	ErrUnparsableEvent = errors.New("unparsable provider event")
	// ErrStaleStatus indicates a status update lost the forward-only
	// race: another writer already advanced the log at least as far.
	ErrStaleStatus = errors.New("delivery status already advanced")
)
