package domain

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Subscription tiers, lowest to highest.
const (
	TierFree string = "free"
	TierLite string = "lite"
	TierPro  string = "pro"
)

// Member is the engine's read model of a subscriber. The account surface
// owns the records; the engine reads them to resolve audiences and
// drawing eligibility, and only ever writes the opt-out flags (from the
// unsubscribe link).
type Member struct {
	ID           uuid.UUID `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	Tier         string    `json:"tier"`
	IsActive     bool      `json:"is_active"`
	EmailOptOut  bool      `json:"email_opt_out"`
	RewardOptOut bool      `json:"reward_opt_out"`
	CreatedAt    time.Time `json:"created_at"`
}

// HasValidEmail is a cheap plausibility check, not RFC validation; the
// delivery gateway is the authority on deliverability.
func (m *Member) HasValidEmail() bool {
	at := strings.Index(m.Email, "@")
	return at > 0 && at < len(m.Email)-1
}

var (
	// ErrNotFound indicates the requested member does not exist.
	ErrNotFound = errors.New("member not found")
)
