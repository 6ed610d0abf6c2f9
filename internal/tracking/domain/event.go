package domain

import "time"

// EventType classifies a normalized inbound provider event.
type EventType string

const (
	EventDelivered EventType = "delivered"
	EventOpened    EventType = "opened"
	EventClicked   EventType = "clicked"
	EventBounced   EventType = "bounced"
	EventFailed    EventType = "failed"
)

// StatusFor maps an event to the delivery status it implies.
func (t EventType) StatusFor() (DeliveryStatus, bool) {
	switch t {
	case EventDelivered:
		return StatusDelivered, true
	case EventOpened:
		return StatusOpened, true
	case EventClicked:
		return StatusClicked, true
	case EventBounced:
		return StatusBounced, true
	case EventFailed:
		return StatusFailed, true
	}
	return "", false
}

// NormalizedEvent is the single event shape the tracker consumes. The
// per-provider adapters at the webhook boundary produce it; raw provider
// payload shapes never reach the tracker.
type NormalizedEvent struct {
	ProviderMessageID string            `json:"provider_message_id"`
	EventType         EventType         `json:"event_type"`
	Timestamp         time.Time         `json:"timestamp"`
	URL               string            `json:"url,omitempty"`
	UserAgent         string            `json:"user_agent,omitempty"`
	Reason            string            `json:"reason,omitempty"` // bounce/failure detail
	Metadata          map[string]string `json:"metadata,omitempty"`
}
