package app

import (
	"context"
	"encoding/json"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/Edness1/ColorCompete-sub001/internal/platform/messagebroker"
	trackingdomain "github.com/Edness1/ColorCompete-sub001/internal/tracking/domain"
)

const eventTimeout = 30 * time.Second

// StartConsuming subscribes the tracker to the delivery-event subject.
// The webhook handlers publish one message per normalized event.
func (t *Tracker) StartConsuming(client *messagebroker.NATSClient, subject, queueGroup string) (*nats.Subscription, error) {
	handler := func(msg *nats.Msg) {
		var event trackingdomain.NormalizedEvent
		if err := json.Unmarshal(msg.Data, &event); err != nil {
			t.logger.Error("Failed to unmarshal delivery event", "error", err, "subject", msg.Subject)
			eventsCounter.WithLabelValues("unknown", "unmarshal_error").Inc()
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), eventTimeout)
		defer cancel()

		if err := t.Apply(ctx, event); err != nil {
			t.logger.ErrorContext(ctx, "Failed to apply delivery event",
				"error", err, "provider_message_id", event.ProviderMessageID, "event_type", event.EventType)
		}
	}

	return client.QueueSubscribe(subject, queueGroup, handler)
}
