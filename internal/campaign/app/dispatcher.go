package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	autodomain "github.com/Edness1/ColorCompete-sub001/internal/automation/domain"
	"github.com/Edness1/ColorCompete-sub001/internal/campaign/domain"
	"github.com/Edness1/ColorCompete-sub001/internal/mailer"
	memberdomain "github.com/Edness1/ColorCompete-sub001/internal/member/domain"
	"github.com/Edness1/ColorCompete-sub001/internal/template"
	trackingdomain "github.com/Edness1/ColorCompete-sub001/internal/tracking/domain"
)

// Mode distinguishes production sends, which mutate campaign/automation
// counters and write delivery logs, from diagnostic preview sends, which
// render and deliver identically but mutate nothing.
type Mode string

const (
	ModeProduction Mode = "production"
	ModePreview    Mode = "preview"
)

// PersonalizationBuilder supplies extra per-recipient scope values
// (per-user metrics, recipient-specific URLs) on top of what the
// dispatcher builds itself.
type PersonalizationBuilder func(m *memberdomain.Member) map[string]any

// DispatchInput is one batch send.
type DispatchInput struct {
	Template       template.MessageTemplate
	Recipients     []*memberdomain.Member
	Personalize    PersonalizationBuilder
	Mode           Mode
	CampaignID     *uuid.UUID
	AutomationID   *uuid.UUID
	TriggerContext map[string]any
}

// RecipientResult records the outcome for one recipient. A failure here
// never aborts the rest of the batch.
type RecipientResult struct {
	MemberID          uuid.UUID `json:"member_id"`
	Email             string    `json:"email"`
	Success           bool      `json:"success"`
	ProviderMessageID string    `json:"provider_message_id,omitempty"`
	Error             string    `json:"error,omitempty"`
}

// DispatchSummary is the structured result operators receive. Attempted
// counts recipients actually handed to the gateway; a cancelled batch's
// remainder appears in Results with an error but is not counted.
type DispatchSummary struct {
	Attempted int               `json:"attempted"`
	Sent      int               `json:"sent"`
	Results   []RecipientResult `json:"results"`
}

// DispatcherConfig holds the dispatcher tunables.
type DispatcherConfig struct {
	// SendInterval is the minimum time between consecutive sends in a
	// batch, enforced to stay inside provider rate limits.
	SendInterval      time.Duration
	UnsubscribeSecret string
	PublicURL         string
	FromAddress       string
	FromName          string
}

// Dispatcher drives the renderer and the delivery gateway for a batch of
// recipients under a bounded-throughput discipline.
type Dispatcher struct {
	gateway        mailer.Gateway
	deliveryRepo   trackingdomain.DeliveryLogRepository
	campaignRepo   domain.CampaignRepository
	automationRepo autodomain.AutomationRepository
	memberRepo     memberdomain.MemberRepository
	logger         *slog.Logger
	cfg            DispatcherConfig
	now            func() time.Time
}

func NewDispatcher(
	gateway mailer.Gateway,
	deliveryRepo trackingdomain.DeliveryLogRepository,
	campaignRepo domain.CampaignRepository,
	automationRepo autodomain.AutomationRepository,
	memberRepo memberdomain.MemberRepository,
	logger *slog.Logger,
	cfg DispatcherConfig,
) *Dispatcher {
	if cfg.SendInterval <= 0 {
		cfg.SendInterval = 75 * time.Millisecond
	}
	return &Dispatcher{
		gateway:        gateway,
		deliveryRepo:   deliveryRepo,
		campaignRepo:   campaignRepo,
		automationRepo: automationRepo,
		memberRepo:     memberRepo,
		logger:         logger.With("service", "dispatcher"),
		cfg:            cfg,
		now:            time.Now,
	}
}

// Dispatch renders and sends to each recipient in order, one DeliveryLog
// row per recipient in production mode. Recipients are attempted in the
// order supplied; the ticker between sends is the cancellation point, so
// an in-flight provider call always completes.
func (d *Dispatcher) Dispatch(ctx context.Context, in DispatchInput) (*DispatchSummary, error) {
	if in.Template.Subject == "" || (in.Template.HTML == "" && in.Template.Text == "") {
		return nil, domain.ErrValidation
	}
	if in.Mode == "" {
		in.Mode = ModeProduction
	}

	summary := &DispatchSummary{
		Results: make([]RecipientResult, 0, len(in.Recipients)),
	}
	if len(in.Recipients) == 0 {
		return summary, nil
	}

	timer := prometheus.NewTimer(dispatchDurationHist.WithLabelValues(string(in.Mode)))
	defer timer.ObserveDuration()

	ticker := time.NewTicker(d.cfg.SendInterval)
	defer ticker.Stop()

	cancelled := false
	for i, m := range in.Recipients {
		if i > 0 && !cancelled {
			select {
			case <-ticker.C:
			case <-ctx.Done():
				cancelled = true
				d.logger.WarnContext(ctx, "Dispatch cancelled mid-batch; remaining recipients not attempted",
					"remaining", len(in.Recipients)-i)
			}
		}
		if cancelled {
			summary.Results = append(summary.Results, RecipientResult{
				MemberID: m.ID,
				Email:    m.Email,
				Error:    "dispatch cancelled before send",
			})
			continue
		}

		summary.Attempted++
		result := d.sendOne(ctx, in, m)
		if result.Success {
			summary.Sent++
		}
		summary.Results = append(summary.Results, result)
	}

	if in.Mode == ModeProduction {
		d.recordCounters(ctx, in, summary)
	}

	recipientsSentCounter.WithLabelValues(string(in.Mode), "success").Add(float64(summary.Sent))
	recipientsSentCounter.WithLabelValues(string(in.Mode), "failure").Add(float64(summary.Attempted - summary.Sent))
	d.logger.InfoContext(ctx, "Dispatch finished",
		"mode", in.Mode, "attempted", summary.Attempted, "sent", summary.Sent)
	return summary, nil
}

// sendOne handles a single recipient: build scope, render, deliver,
// record. Errors are captured in the result entry, never returned.
func (d *Dispatcher) sendOne(ctx context.Context, in DispatchInput, m *memberdomain.Member) RecipientResult {
	result := RecipientResult{MemberID: m.ID, Email: m.Email}

	logID := uuid.New()
	scope := d.buildScope(m, in)
	rendered := template.RenderMessage(in.Template, scope)

	sendResult, err := d.gateway.Send(ctx, mailer.SendRequest{
		InternalMessageID: logID.String(),
		To:                m.Email,
		ToName:            m.Name,
		FromAddress:       d.cfg.FromAddress,
		FromName:          d.cfg.FromName,
		Subject:           rendered.Subject,
		HTML:              rendered.HTML,
		Text:              rendered.Text,
	})

	switch {
	case err != nil:
		result.Error = err.Error()
		d.logger.ErrorContext(ctx, "Delivery gateway call failed",
			"error", err, "recipient", m.Email, "delivery_log_id", logID)
	case !sendResult.Success:
		result.Error = sendResult.ErrorMessage
		d.logger.WarnContext(ctx, "Delivery gateway rejected message",
			"error", sendResult.ErrorMessage, "recipient", m.Email, "delivery_log_id", logID)
	default:
		result.Success = true
		result.ProviderMessageID = sendResult.ProviderMessageID
	}

	if in.Mode == ModeProduction {
		d.writeDeliveryLog(ctx, logID, in, m, rendered.Subject, result)
	}
	return result
}

func (d *Dispatcher) writeDeliveryLog(ctx context.Context, logID uuid.UUID, in DispatchInput, m *memberdomain.Member, subject string, result RecipientResult) {
	now := d.now().UTC()
	log := &trackingdomain.DeliveryLog{
		ID:                logID,
		CampaignID:        in.CampaignID,
		AutomationID:      in.AutomationID,
		MemberID:          m.ID,
		Email:             m.Email,
		Subject:           subject,
		Status:            trackingdomain.StatusSent,
		ProviderMessageID: result.ProviderMessageID,
		SentAt:            now,
		UpdatedAt:         now,
	}
	if !result.Success {
		log.Status = trackingdomain.StatusFailed
		log.ErrorMessage = result.Error
	}
	if err := d.deliveryRepo.Create(ctx, log); err != nil {
		// The send already happened; losing the log row is an
		// observability gap, not a send failure.
		d.logger.ErrorContext(ctx, "Failed to write delivery log",
			"error", err, "delivery_log_id", logID, "recipient", m.Email)
	}
}

func (d *Dispatcher) recordCounters(ctx context.Context, in DispatchInput, summary *DispatchSummary) {
	now := d.now().UTC()
	if in.CampaignID != nil {
		delta := domain.CounterDelta{Recipients: summary.Attempted, Sent: summary.Sent}
		if err := d.campaignRepo.IncrementCounters(ctx, *in.CampaignID, delta); err != nil {
			d.logger.ErrorContext(ctx, "Failed to increment campaign counters", "error", err, "campaign_id", *in.CampaignID)
		}
	}
	if in.AutomationID != nil && summary.Sent > 0 {
		if err := d.automationRepo.RecordSend(ctx, *in.AutomationID, summary.Sent, now); err != nil {
			d.logger.ErrorContext(ctx, "Failed to record automation send", "error", err, "automation_id", *in.AutomationID)
		}
	}
}

// DispatchCampaign resolves a campaign's audience and dispatches it. A
// preview renders and delivers to the same audience but leaves status,
// counters and delivery logs untouched.
func (d *Dispatcher) DispatchCampaign(ctx context.Context, campaignID uuid.UUID, preview bool) (*DispatchSummary, error) {
	c, err := d.campaignRepo.GetByID(ctx, campaignID)
	if err != nil {
		return nil, fmt.Errorf("failed to load campaign %s: %w", campaignID, err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}

	recipients, err := d.resolveAudience(ctx, c.Audience)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve campaign audience: %w", err)
	}

	mode := ModeProduction
	if preview {
		mode = ModePreview
	}

	if !preview {
		if !c.Status.CanTransitionTo(domain.StatusSending) {
			return nil, fmt.Errorf("campaign %s is not dispatchable from status %q: %w", c.ID, c.Status, domain.ErrInvalidTransition)
		}
		if err := d.campaignRepo.TransitionStatus(ctx, c.ID, c.Status, domain.StatusSending); err != nil {
			return nil, err
		}
	}

	summary, err := d.Dispatch(ctx, DispatchInput{
		Template:   c.Template,
		Recipients: recipients,
		Mode:       mode,
		CampaignID: &c.ID,
	})
	if err != nil {
		return nil, err
	}

	if !preview {
		final := domain.StatusSent
		if summary.Attempted > 0 && summary.Sent == 0 {
			final = domain.StatusFailed
		}
		if err := d.campaignRepo.TransitionStatus(ctx, c.ID, domain.StatusSending, final); err != nil {
			d.logger.ErrorContext(ctx, "Failed to finalize campaign status", "error", err, "campaign_id", c.ID, "status", final)
		}
	}
	return summary, nil
}

// DispatchAutomation loads an automation and dispatches its template. The
// trigger context decides the audience: a "member_id" entry targets that
// single member (welcome mails, winner notifications); otherwise the
// automation goes to all active members.
func (d *Dispatcher) DispatchAutomation(ctx context.Context, automationID uuid.UUID, triggerContext map[string]any, preview bool) (*DispatchSummary, error) {
	a, err := d.automationRepo.GetByID(ctx, automationID)
	if err != nil {
		return nil, fmt.Errorf("failed to load automation %s: %w", automationID, err)
	}
	if !a.IsActive {
		// Deactivated between fire and consume; skip quietly.
		d.logger.InfoContext(ctx, "Automation deactivated before dispatch, skipping", "automation_id", a.ID)
		return &DispatchSummary{}, nil
	}
	if err := a.Validate(); err != nil {
		return nil, err
	}

	recipients, err := d.resolveAutomationAudience(ctx, triggerContext)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve automation audience: %w", err)
	}

	scope := make(map[string]any, len(triggerContext)+2)
	for k, v := range triggerContext {
		scope[k] = v
	}
	if a.RewardSettings != nil {
		if _, ok := scope["prize_amount"]; !ok {
			scope["prize_amount"] = a.RewardSettings.Amount
		}
		if _, ok := scope["reward_message"]; !ok {
			scope["reward_message"] = a.RewardSettings.Message
		}
	}

	mode := ModeProduction
	if preview {
		mode = ModePreview
	}

	return d.Dispatch(ctx, DispatchInput{
		Template:       a.Template,
		Recipients:     recipients,
		Mode:           mode,
		AutomationID:   &a.ID,
		TriggerContext: scope,
	})
}

func (d *Dispatcher) resolveAudience(ctx context.Context, audience domain.Audience) ([]*memberdomain.Member, error) {
	switch audience.Type {
	case domain.AudienceTiers:
		return d.memberRepo.ListByTiers(ctx, audience.Tiers)
	case domain.AudienceMembers:
		return d.memberRepo.GetByIDs(ctx, audience.MemberIDs)
	default:
		return d.memberRepo.ListActive(ctx)
	}
}

func (d *Dispatcher) resolveAutomationAudience(ctx context.Context, triggerContext map[string]any) ([]*memberdomain.Member, error) {
	if raw, ok := triggerContext["member_id"]; ok {
		idStr, _ := raw.(string)
		id, err := uuid.Parse(idStr)
		if err != nil {
			return nil, fmt.Errorf("trigger context member_id %q is not a UUID: %w", idStr, err)
		}
		m, err := d.memberRepo.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		return []*memberdomain.Member{m}, nil
	}
	return d.memberRepo.ListActive(ctx)
}

// HandleDispatchJob routes one consumed dispatch job to the campaign or
// automation path.
func (d *Dispatcher) HandleDispatchJob(ctx context.Context, payload autodomain.DispatchJobPayload) (*DispatchSummary, error) {
	switch {
	case payload.CampaignID != nil:
		return d.DispatchCampaign(ctx, *payload.CampaignID, payload.Preview)
	case payload.AutomationID != nil:
		return d.DispatchAutomation(ctx, *payload.AutomationID, payload.Context, payload.Preview)
	default:
		return nil, errors.New("dispatch job carries neither campaign nor automation id")
	}
}
