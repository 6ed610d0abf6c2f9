package domain

import (
	"time"

	"github.com/google/uuid"

	"github.com/Edness1/ColorCompete-sub001/internal/template"
)

// CampaignStatus moves forward only: draft -> sending -> sent, with
// failed reachable from sending alone.
type CampaignStatus string

const (
	StatusDraft   CampaignStatus = "draft"
	StatusSending CampaignStatus = "sending"
	StatusSent    CampaignStatus = "sent"
	StatusFailed  CampaignStatus = "failed"
)

// CanTransitionTo enforces the forward-only status progression.
func (s CampaignStatus) CanTransitionTo(next CampaignStatus) bool {
	switch s {
	case StatusDraft:
		return next == StatusSending
	case StatusSending:
		return next == StatusSent || next == StatusFailed
	}
	return false
}

// AudienceType selects how a campaign's recipients are resolved.
type AudienceType string

const (
	AudienceAll     AudienceType = "all"
	AudienceTiers   AudienceType = "tiers"
	AudienceMembers AudienceType = "members"
)

// Audience describes which members a campaign targets.
type Audience struct {
	Type      AudienceType `json:"type"`
	Tiers     []string     `json:"tiers,omitempty"`
	MemberIDs []uuid.UUID  `json:"member_ids,omitempty"`
}

// Counters are the campaign's tracked aggregate counts. Sent is written
// by the dispatcher; the rest by the tracker and the reconciler.
type Counters struct {
	Recipients int `json:"recipients"`
	Sent       int `json:"sent"`
	Delivered  int `json:"delivered"`
	Opened     int `json:"opened"`
	Clicked    int `json:"clicked"`
	Bounced    int `json:"bounced"`
}

// Campaign is an authored one-off send. The admin surface owns authoring;
// the engine reads campaigns to dispatch them and writes back status and
// counters.
type Campaign struct {
	ID        uuid.UUID                `json:"id"`
	Name      string                   `json:"name"`
	Template  template.MessageTemplate `json:"template"`
	Audience  Audience                 `json:"audience"`
	Status    CampaignStatus           `json:"status"`
	Counters  Counters                 `json:"counters"`
	CreatedAt time.Time                `json:"created_at"`
	UpdatedAt time.Time                `json:"updated_at"`
}

// Validate rejects campaigns missing required template fields before any
// send attempt.
func (c *Campaign) Validate() error {
	if c.Template.Subject == "" {
		return ErrValidation
	}
	if c.Template.HTML == "" && c.Template.Text == "" {
		return ErrValidation
	}
	return nil
}
