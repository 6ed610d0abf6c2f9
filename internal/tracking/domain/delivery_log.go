package domain

import (
	"time"

	"github.com/google/uuid"
)

// DeliveryStatus is the lifecycle state of one (recipient, message)
// delivery. Progression is forward-only: sent -> delivered -> opened ->
// clicked, with bounced and failed as terminal failure states.
type DeliveryStatus string

const (
	StatusSent      DeliveryStatus = "sent"
	StatusDelivered DeliveryStatus = "delivered"
	StatusOpened    DeliveryStatus = "opened"
	StatusClicked   DeliveryStatus = "clicked"
	StatusBounced   DeliveryStatus = "bounced"
	StatusFailed    DeliveryStatus = "failed"
)

// rank orders the forward progression. Terminal failure states rank
// above everything so nothing can move past them.
func (s DeliveryStatus) rank() int {
	switch s {
	case StatusSent:
		return 1
	case StatusDelivered:
		return 2
	case StatusOpened:
		return 3
	case StatusClicked:
		return 4
	case StatusBounced, StatusFailed:
		return 5
	}
	return 0
}

// IsTerminal reports whether no further transition is allowed.
func (s DeliveryStatus) IsTerminal() bool {
	return s == StatusBounced || s == StatusFailed
}

// CanAdvanceTo reports whether a transition from s to next is a forward
// move. Equal or backward moves are rejected, as is any move out of a
// terminal state.
func (s DeliveryStatus) CanAdvanceTo(next DeliveryStatus) bool {
	if s.IsTerminal() {
		return false
	}
	return next.rank() > s.rank()
}

// EngagementEvent is one recorded open or click. The histories are
// append-only; replayed provider events append here even when the status
// does not advance.
type EngagementEvent struct {
	Timestamp time.Time `json:"timestamp"`
	URL       string    `json:"url,omitempty"`
	UserAgent string    `json:"user_agent,omitempty"`
}

// DeliveryLog tracks one message's delivery lifecycle for one recipient.
// Inbound provider events are correlated by ProviderMessageID.
type DeliveryLog struct {
	ID                uuid.UUID         `json:"id"`
	CampaignID        *uuid.UUID        `json:"campaign_id,omitempty"`
	AutomationID      *uuid.UUID        `json:"automation_id,omitempty"`
	MemberID          uuid.UUID         `json:"member_id"`
	Email             string            `json:"email"`
	Subject           string            `json:"subject"`
	Status            DeliveryStatus    `json:"status"`
	ProviderMessageID string            `json:"provider_message_id,omitempty"`
	ErrorMessage      string            `json:"error_message,omitempty"`
	Opens             []EngagementEvent `json:"opens,omitempty"`
	Clicks            []EngagementEvent `json:"clicks,omitempty"`
	SentAt            time.Time         `json:"sent_at"`
	UpdatedAt         time.Time         `json:"updated_at"`
}
