package domain

import (
	"context"

	"github.com/google/uuid"
)

// MemberRepository provides the read paths the engine needs to resolve
// audiences, plus the opt-out write backing the unsubscribe link.
type MemberRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Member, error)
	GetByIDs(ctx context.Context, ids []uuid.UUID) ([]*Member, error)

	// ListActive returns active members who have not opted out of
	// email, for all-members audiences.
	ListActive(ctx context.Context) ([]*Member, error)

	// ListByTiers returns active, email-opted-in members of any of the
	// given tiers.
	ListByTiers(ctx context.Context, tiers []string) ([]*Member, error)

	// ListRewardEligible returns the drawing pool for a tier: active
	// members of that tier with a valid email who have not opted out of
	// reward notifications.
	ListRewardEligible(ctx context.Context, tier string) ([]*Member, error)

	// SetEmailOptOut records an unsubscribe (or re-subscribe).
	SetEmailOptOut(ctx context.Context, id uuid.UUID, optOut bool) error
}
