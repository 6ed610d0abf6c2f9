package app

import (
	"context"
	"log/slog"
	"time"

	"github.com/Edness1/ColorCompete-sub001/internal/campaign/domain"
	"github.com/Edness1/ColorCompete-sub001/internal/mailer"
)

// Reconciler periodically pulls aggregate stats from the delivery
// provider and lifts campaign counters up to them. Webhook events can be
// dropped or arrive late; the provider's aggregates are the backstop.
// Counters are only ever raised, never lowered, so a stale provider
// report cannot undo event-driven counts.
type Reconciler struct {
	gateway      mailer.Gateway
	campaignRepo domain.CampaignRepository
	logger       *slog.Logger
	interval     time.Duration
}

func NewReconciler(gateway mailer.Gateway, campaignRepo domain.CampaignRepository, logger *slog.Logger, interval time.Duration) *Reconciler {
	if interval <= 0 {
		interval = time.Hour
	}
	return &Reconciler{
		gateway:      gateway,
		campaignRepo: campaignRepo,
		logger:       logger.With("service", "reconciler"),
		interval:     interval,
	}
}

// Run sweeps on the configured interval until the context is cancelled.
func (r *Reconciler) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.logger.InfoContext(ctx, "Reconciler started", "interval", r.interval.String())
	for {
		select {
		case <-ctx.Done():
			r.logger.InfoContext(ctx, "Reconciler stopping")
			return ctx.Err()
		case <-ticker.C:
			if err := r.Sweep(ctx); err != nil {
				r.logger.ErrorContext(ctx, "Reconciliation sweep failed", "error", err)
			}
		}
	}
}

// Sweep reconciles every dispatched campaign once. Per-campaign failures
// are logged and skipped; one unreachable stats record must not starve
// the rest.
func (r *Reconciler) Sweep(ctx context.Context) error {
	campaigns, err := r.campaignRepo.ListDispatched(ctx)
	if err != nil {
		reconcileRunsCounter.WithLabelValues("error").Inc()
		return err
	}

	for _, c := range campaigns {
		stats, err := r.gateway.Stats(ctx, c.ID.String())
		if err != nil {
			r.logger.WarnContext(ctx, "Failed to fetch provider stats for campaign",
				"error", err, "campaign_id", c.ID)
			continue
		}
		if err := r.campaignRepo.RaiseCounters(ctx, c.ID, stats.Delivered, stats.Opened, stats.Clicked, stats.Bounced); err != nil {
			r.logger.ErrorContext(ctx, "Failed to raise campaign counters",
				"error", err, "campaign_id", c.ID)
		}
	}

	reconcileRunsCounter.WithLabelValues("success").Inc()
	r.logger.InfoContext(ctx, "Reconciliation sweep finished", "campaigns", len(campaigns))
	return nil
}
