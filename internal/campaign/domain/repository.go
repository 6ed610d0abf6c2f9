package domain

import (
	"context"

	"github.com/google/uuid"
)

// CounterDelta is an atomic increment applied to a campaign's counters.
// All fields are additive; zero fields are left untouched.
type CounterDelta struct {
	Recipients int
	Sent       int
	Delivered  int
	Opened     int
	Clicked    int
	Bounced    int
}

// CampaignRepository persists campaigns. Status updates are
// compare-and-set on the previous status so concurrent dispatch attempts
// cannot both move a campaign into sending.
type CampaignRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Campaign, error)

	// TransitionStatus moves a campaign from one status to another. It
	// returns ErrInvalidTransition when the stored status is no longer
	// `from`.
	TransitionStatus(ctx context.Context, id uuid.UUID, from, to CampaignStatus) error

	// IncrementCounters applies delta with atomic SQL increments.
	IncrementCounters(ctx context.Context, id uuid.UUID, delta CounterDelta) error

	// RaiseCounters lifts tracked counts up to the provider-reported
	// aggregates during reconciliation. It only ever raises values,
	// never lowers them.
	RaiseCounters(ctx context.Context, id uuid.UUID, delivered, opened, clicked, bounced int) error

	// ListDispatched returns campaigns that have left draft, for
	// reconciliation sweeps.
	ListDispatched(ctx context.Context) ([]*Campaign, error)
}
