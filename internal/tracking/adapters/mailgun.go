package adapters

import (
	"encoding/json"
	"fmt"
	"time"

	trackingdomain "github.com/Edness1/ColorCompete-sub001/internal/tracking/domain"
)

// MailgunAdapter parses Mailgun webhooks: one event per request, nested
// under "event-data", with fractional unix timestamps and the provider
// message id under message.headers.message-id.
type MailgunAdapter struct{}

type mailgunPayload struct {
	EventData struct {
		Event     string  `json:"event"`
		Timestamp float64 `json:"timestamp"`
		Message   struct {
			Headers struct {
				MessageID string `json:"message-id"`
			} `json:"headers"`
		} `json:"message"`
		URL        string `json:"url"`
		ClientInfo struct {
			UserAgent string `json:"user-agent"`
		} `json:"client-info"`
		DeliveryStatus struct {
			Description string `json:"description"`
			Message     string `json:"message"`
		} `json:"delivery-status"`
		Severity string `json:"severity"`
	} `json:"event-data"`
}

func (a *MailgunAdapter) GetName() string { return "mailgun" }

func (a *MailgunAdapter) Parse(body []byte) ([]trackingdomain.NormalizedEvent, error) {
	var payload mailgunPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("%w: %v", trackingdomain.ErrUnparsableEvent, err)
	}

	data := payload.EventData
	eventType, ok := a.mapEvent(data.Event, data.Severity)
	if !ok {
		return nil, nil
	}

	reason := data.DeliveryStatus.Description
	if reason == "" {
		reason = data.DeliveryStatus.Message
	}
	event := trackingdomain.NormalizedEvent{
		ProviderMessageID: data.Message.Headers.MessageID,
		EventType:         eventType,
		URL:               data.URL,
		UserAgent:         data.ClientInfo.UserAgent,
		Reason:            reason,
	}
	if data.Timestamp > 0 {
		sec := int64(data.Timestamp)
		nsec := int64((data.Timestamp - float64(sec)) * 1e9)
		event.Timestamp = time.Unix(sec, nsec).UTC()
	}
	return []trackingdomain.NormalizedEvent{event}, nil
}

func (a *MailgunAdapter) mapEvent(name, severity string) (trackingdomain.EventType, bool) {
	switch name {
	case "delivered":
		return trackingdomain.EventDelivered, true
	case "opened":
		return trackingdomain.EventOpened, true
	case "clicked":
		return trackingdomain.EventClicked, true
	case "failed":
		// Mailgun reports both hard bounces and transient failures as
		// "failed", split by severity.
		if severity == "permanent" {
			return trackingdomain.EventBounced, true
		}
		return trackingdomain.EventFailed, true
	}
	return "", false
}
