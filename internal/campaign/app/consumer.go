package app

import (
	"context"
	"encoding/json"
	"time"

	"github.com/nats-io/nats.go"

	autodomain "github.com/Edness1/ColorCompete-sub001/internal/automation/domain"
	"github.com/Edness1/ColorCompete-sub001/internal/platform/messagebroker"
)

const jobTimeout = 10 * time.Minute

// StartConsuming subscribes the dispatcher to the dispatch-job subject.
// Each job runs under its own timeout so one slow batch cannot wedge the
// consumer; failures are logged and counted, never fatal.
func (d *Dispatcher) StartConsuming(client *messagebroker.NATSClient, subject, queueGroup string) (*nats.Subscription, error) {
	handler := func(msg *nats.Msg) {
		var payload autodomain.DispatchJobPayload
		if err := json.Unmarshal(msg.Data, &payload); err != nil {
			d.logger.Error("Failed to unmarshal dispatch job payload", "error", err, "subject", msg.Subject)
			dispatchJobsCounter.WithLabelValues("unmarshal_error").Inc()
			return
		}

		jobCtx, cancel := context.WithTimeout(context.Background(), jobTimeout)
		defer cancel()

		summary, err := d.HandleDispatchJob(jobCtx, payload)
		if err != nil {
			d.logger.ErrorContext(jobCtx, "Failed to process dispatch job", "error", err,
				"automation_id", payload.AutomationID, "campaign_id", payload.CampaignID)
			dispatchJobsCounter.WithLabelValues("error").Inc()
			return
		}
		dispatchJobsCounter.WithLabelValues("success").Inc()
		d.logger.InfoContext(jobCtx, "Dispatch job processed",
			"attempted", summary.Attempted, "sent", summary.Sent)
	}

	return client.QueueSubscribe(subject, queueGroup, handler)
}
