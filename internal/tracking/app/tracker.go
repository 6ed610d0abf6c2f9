package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Edness1/ColorCompete-sub001/internal/campaign/domain"
	trackingdomain "github.com/Edness1/ColorCompete-sub001/internal/tracking/domain"
)

// Tracker applies normalized provider events to delivery logs. Status
// only ever moves forward; open and click histories are append-only, so
// replayed events still land in the histories even when the status stays
// put.
type Tracker struct {
	deliveryRepo trackingdomain.DeliveryLogRepository
	campaignRepo domain.CampaignRepository
	logger       *slog.Logger
	now          func() time.Time
}

func NewTracker(deliveryRepo trackingdomain.DeliveryLogRepository, campaignRepo domain.CampaignRepository, logger *slog.Logger) *Tracker {
	return &Tracker{
		deliveryRepo: deliveryRepo,
		campaignRepo: campaignRepo,
		logger:       logger.With("service", "tracker"),
		now:          time.Now,
	}
}

// Apply processes one normalized event. Events for unknown provider
// message ids are logged and dropped; they are expected (messages sent
// outside the engine, or webhook retries arriving after log cleanup) and
// must not fail the webhook batch.
func (t *Tracker) Apply(ctx context.Context, event trackingdomain.NormalizedEvent) error {
	if event.ProviderMessageID == "" {
		eventsCounter.WithLabelValues(string(event.EventType), "missing_id").Inc()
		return fmt.Errorf("event has no provider message id: %w", trackingdomain.ErrUnparsableEvent)
	}

	status, ok := event.EventType.StatusFor()
	if !ok {
		eventsCounter.WithLabelValues(string(event.EventType), "unknown_type").Inc()
		return fmt.Errorf("unknown event type %q: %w", event.EventType, trackingdomain.ErrUnparsableEvent)
	}

	log, err := t.deliveryRepo.GetByProviderMessageID(ctx, event.ProviderMessageID)
	if err != nil {
		if errors.Is(err, trackingdomain.ErrNotFound) {
			t.logger.WarnContext(ctx, "Event references unknown provider message id, skipping",
				"provider_message_id", event.ProviderMessageID, "event_type", event.EventType)
			eventsCounter.WithLabelValues(string(event.EventType), "unknown_message").Inc()
			return nil
		}
		return fmt.Errorf("failed to resolve delivery log: %w", err)
	}

	t.appendEngagement(ctx, log, event)

	if !log.Status.CanAdvanceTo(status) {
		// Out-of-order or replayed event; the history append above is
		// the only effect.
		eventsCounter.WithLabelValues(string(event.EventType), "no_advance").Inc()
		return nil
	}

	errorMessage := ""
	if status == trackingdomain.StatusBounced || status == trackingdomain.StatusFailed {
		errorMessage = event.Reason
	}
	if err := t.deliveryRepo.UpdateStatus(ctx, log.ID, status, errorMessage, t.now().UTC()); err != nil {
		if errors.Is(err, trackingdomain.ErrStaleStatus) {
			// Another consumer advanced the log between our read and
			// write; their event carried the effect.
			eventsCounter.WithLabelValues(string(event.EventType), "no_advance").Inc()
			return nil
		}
		return fmt.Errorf("failed to update delivery status: %w", err)
	}

	t.bumpCampaignCounter(ctx, log, status)
	eventsCounter.WithLabelValues(string(event.EventType), "applied").Inc()
	t.logger.InfoContext(ctx, "Delivery status advanced",
		"delivery_log_id", log.ID, "from", log.Status, "to", status)
	return nil
}

func (t *Tracker) appendEngagement(ctx context.Context, log *trackingdomain.DeliveryLog, event trackingdomain.NormalizedEvent) {
	engagement := trackingdomain.EngagementEvent{
		Timestamp: event.Timestamp,
		URL:       event.URL,
		UserAgent: event.UserAgent,
	}
	if engagement.Timestamp.IsZero() {
		engagement.Timestamp = t.now().UTC()
	}

	var err error
	switch event.EventType {
	case trackingdomain.EventOpened:
		err = t.deliveryRepo.AppendOpen(ctx, log.ID, engagement)
	case trackingdomain.EventClicked:
		err = t.deliveryRepo.AppendClick(ctx, log.ID, engagement)
	default:
		return
	}
	if err != nil {
		t.logger.ErrorContext(ctx, "Failed to append engagement event",
			"error", err, "delivery_log_id", log.ID, "event_type", event.EventType)
	}
}

// bumpCampaignCounter reflects a first-time status advance in the
// campaign's aggregate counters. Advances are counted once because the
// status check already filtered replays.
func (t *Tracker) bumpCampaignCounter(ctx context.Context, log *trackingdomain.DeliveryLog, status trackingdomain.DeliveryStatus) {
	if log.CampaignID == nil {
		return
	}
	var delta domain.CounterDelta
	switch status {
	case trackingdomain.StatusDelivered:
		delta.Delivered = 1
	case trackingdomain.StatusOpened:
		delta.Opened = 1
	case trackingdomain.StatusClicked:
		delta.Clicked = 1
	case trackingdomain.StatusBounced:
		delta.Bounced = 1
	default:
		return
	}
	if err := t.campaignRepo.IncrementCounters(ctx, *log.CampaignID, delta); err != nil {
		t.logger.ErrorContext(ctx, "Failed to increment campaign counters from event",
			"error", err, "campaign_id", *log.CampaignID)
	}
}
