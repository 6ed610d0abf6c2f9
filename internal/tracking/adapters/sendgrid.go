package adapters

import (
	"encoding/json"
	"fmt"
	"time"

	trackingdomain "github.com/Edness1/ColorCompete-sub001/internal/tracking/domain"
)

// SendGridAdapter parses SendGrid event webhooks: a flat JSON array with
// one object per event, second-resolution unix timestamps, and the
// provider message id under "sg_message_id".
type SendGridAdapter struct{}

type sendGridEvent struct {
	Event       string `json:"event"`
	SGMessageID string `json:"sg_message_id"`
	Timestamp   int64  `json:"timestamp"`
	URL         string `json:"url"`
	UserAgent   string `json:"useragent"`
	Reason      string `json:"reason"`
	Type        string `json:"type"` // bounce classification
}

func (a *SendGridAdapter) GetName() string { return "sendgrid" }

func (a *SendGridAdapter) Parse(body []byte) ([]trackingdomain.NormalizedEvent, error) {
	var raw []sendGridEvent
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", trackingdomain.ErrUnparsableEvent, err)
	}

	events := make([]trackingdomain.NormalizedEvent, 0, len(raw))
	for _, e := range raw {
		eventType, ok := a.mapEvent(e.Event)
		if !ok {
			// processed, deferred, etc. carry no lifecycle meaning here.
			continue
		}
		event := trackingdomain.NormalizedEvent{
			ProviderMessageID: e.SGMessageID,
			EventType:         eventType,
			URL:               e.URL,
			UserAgent:         e.UserAgent,
			Reason:            e.Reason,
		}
		if e.Timestamp > 0 {
			event.Timestamp = time.Unix(e.Timestamp, 0).UTC()
		}
		if e.Type != "" {
			event.Metadata = map[string]string{"bounce_type": e.Type}
		}
		events = append(events, event)
	}
	return events, nil
}

func (a *SendGridAdapter) mapEvent(name string) (trackingdomain.EventType, bool) {
	switch name {
	case "delivered":
		return trackingdomain.EventDelivered, true
	case "open":
		return trackingdomain.EventOpened, true
	case "click":
		return trackingdomain.EventClicked, true
	case "bounce":
		return trackingdomain.EventBounced, true
	case "dropped":
		return trackingdomain.EventFailed, true
	}
	return "", false
}
