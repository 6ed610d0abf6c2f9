package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/google/uuid"

	autodomain "github.com/Edness1/ColorCompete-sub001/internal/automation/domain"
	campaignapp "github.com/Edness1/ColorCompete-sub001/internal/campaign/app"
	"github.com/Edness1/ColorCompete-sub001/internal/drawing/domain"
	"github.com/Edness1/ColorCompete-sub001/internal/giftcard"
	memberdomain "github.com/Edness1/ColorCompete-sub001/internal/member/domain"
	"github.com/Edness1/ColorCompete-sub001/internal/template"
)

// Notifier is the slice of the dispatcher the drawing engine needs to
// notify a winner.
type Notifier interface {
	Dispatch(ctx context.Context, in campaignapp.DispatchInput) (*campaignapp.DispatchSummary, error)
}

// DrawingResult is the structured summary an operator receives from a
// drawing run.
type DrawingResult struct {
	Drawing          *domain.MonthlyDrawing `json:"drawing"`
	AlreadyCompleted bool                   `json:"already_completed"`
	NoEligible       bool                   `json:"no_eligible"`
	WinnerNotified   bool                   `json:"winner_notified"`
}

// EngineConfig carries the per-tier prize defaults. An active
// drawing-winner automation's reward settings override these.
type EngineConfig struct {
	PrizeAmounts map[string]float64
}

// Engine runs monthly reward drawings. One record per (month, year,
// tier); winner selection and disbursement are decoupled so a failed
// disbursement can be retried without re-selecting.
type Engine struct {
	repo           domain.DrawingRepository
	memberRepo     memberdomain.MemberRepository
	automationRepo autodomain.AutomationRepository
	issuer         giftcard.Issuer
	notifier       Notifier
	logger         *slog.Logger
	cfg            EngineConfig
	now            func() time.Time
	pick           func(n int) int
}

func NewEngine(
	repo domain.DrawingRepository,
	memberRepo memberdomain.MemberRepository,
	automationRepo autodomain.AutomationRepository,
	issuer giftcard.Issuer,
	notifier Notifier,
	logger *slog.Logger,
	cfg EngineConfig,
) *Engine {
	return &Engine{
		repo:           repo,
		memberRepo:     memberRepo,
		automationRepo: automationRepo,
		issuer:         issuer,
		notifier:       notifier,
		logger:         logger.With("service", "drawing"),
		cfg:            cfg,
		now:            time.Now,
		pick:           rand.Intn,
	}
}

// Run executes the drawing for the current period and the given tier.
// Re-invocation in the same period is a no-op returning the existing
// record; an incomplete record with a winner goes straight to the
// disbursement retry path.
func (e *Engine) Run(ctx context.Context, tier string) (*DrawingResult, error) {
	now := e.now().UTC()
	month, year := now.Month(), now.Year()

	automation := e.lookupAutomation(ctx)
	prize := e.prizeAmount(tier, automation)

	candidate := &domain.MonthlyDrawing{
		ID:          uuid.New(),
		Month:       month,
		Year:        year,
		Tier:        tier,
		PrizeAmount: prize,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	drawing, created, err := e.repo.InsertIfAbsent(ctx, candidate)
	if err != nil {
		return nil, fmt.Errorf("failed to create drawing record: %w", err)
	}

	if drawing.IsCompleted {
		e.logger.InfoContext(ctx, "Drawing already completed for period, returning existing record",
			"period", drawing.Period())
		drawingRunsCounter.WithLabelValues(tier, "already_completed").Inc()
		return &DrawingResult{Drawing: drawing, AlreadyCompleted: true}, nil
	}
	if !created && drawing.Winner == nil {
		// A concurrent run inserted the record but has not selected yet;
		// treat like a fresh record and let SetWinner race benignly (the
		// snapshot write is idempotent per period).
		e.logger.WarnContext(ctx, "Drawing record exists without winner, re-running selection",
			"period", drawing.Period())
	}

	if drawing.Winner == nil {
		winner, noEligible, err := e.selectWinner(ctx, drawing)
		if err != nil {
			return nil, err
		}
		if noEligible {
			drawingRunsCounter.WithLabelValues(tier, "no_eligible").Inc()
			return &DrawingResult{Drawing: drawing, NoEligible: true}, nil
		}
		drawing.Winner = winner
	} else {
		e.logger.InfoContext(ctx, "Drawing has winner but no disbursement, retrying disbursement",
			"period", drawing.Period(), "member_id", drawing.Winner.MemberID)
	}

	if err := e.disburse(ctx, drawing); err != nil {
		drawingRunsCounter.WithLabelValues(tier, "disbursement_failed").Inc()
		return &DrawingResult{Drawing: drawing}, err
	}

	notified := e.notifyWinner(ctx, drawing, automation)
	drawingRunsCounter.WithLabelValues(tier, "completed").Inc()
	e.logger.InfoContext(ctx, "Drawing completed",
		"period", drawing.Period(), "member_id", drawing.Winner.MemberID, "prize_amount", drawing.PrizeAmount)
	return &DrawingResult{Drawing: drawing, WinnerNotified: notified}, nil
}

// selectWinner snapshots the eligible pool and persists the uniform
// random choice before any disbursement attempt.
func (e *Engine) selectWinner(ctx context.Context, drawing *domain.MonthlyDrawing) (*domain.Winner, bool, error) {
	eligible, err := e.memberRepo.ListRewardEligible(ctx, drawing.Tier)
	if err != nil {
		return nil, false, fmt.Errorf("failed to list eligible members: %w", err)
	}

	pool := make([]domain.Participant, 0, len(eligible))
	for _, m := range eligible {
		if !m.HasValidEmail() {
			continue
		}
		pool = append(pool, domain.Participant{MemberID: m.ID, Email: m.Email, Name: m.Name})
	}
	if len(pool) == 0 {
		e.logger.InfoContext(ctx, "No eligible participants for drawing, completing without winner",
			"period", drawing.Period())
		return nil, true, nil
	}

	chosen := pool[e.pick(len(pool))]
	winner := &domain.Winner{MemberID: chosen.MemberID, Email: chosen.Email, Name: chosen.Name}

	if err := e.repo.SetWinner(ctx, drawing.ID, pool, winner, e.now().UTC()); err != nil {
		return nil, false, fmt.Errorf("failed to persist drawing winner: %w", err)
	}
	drawing.Participants = pool
	e.logger.InfoContext(ctx, "Drawing winner selected",
		"period", drawing.Period(), "member_id", winner.MemberID, "pool_size", len(pool))
	return winner, false, nil
}

// disburse makes the single gift card call for this run and marks the
// drawing completed on success. On failure the record keeps its winner
// and stays incomplete for a retried invocation.
func (e *Engine) disburse(ctx context.Context, drawing *domain.MonthlyDrawing) error {
	result, err := e.issuer.Issue(ctx, giftcard.IssueRequest{
		ExternalID:     drawing.Period(),
		Amount:         drawing.PrizeAmount,
		RecipientEmail: drawing.Winner.Email,
		RecipientName:  drawing.Winner.Name,
		Note:           fmt.Sprintf("ColorCompete %s %d drawing prize", drawing.Month, drawing.Year),
	})
	if err != nil {
		e.logger.ErrorContext(ctx, "Gift card disbursement failed; drawing stays incomplete for retry",
			"error", err, "period", drawing.Period(), "member_id", drawing.Winner.MemberID)
		return fmt.Errorf("%w for drawing %s: %v", domain.ErrDisbursement, drawing.Period(), err)
	}

	details := &domain.GiftCardDetails{
		ProviderOrderID: result.ProviderOrderID,
		Code:            result.Code,
		RedeemURL:       result.RedeemURL,
		IssuedAt:        e.now().UTC(),
	}
	if err := e.repo.Complete(ctx, drawing.ID, details, e.now().UTC()); err != nil {
		// The card is issued; the provider-side external id keeps a
		// retried Complete from double-issuing.
		return fmt.Errorf("failed to mark drawing completed: %w", err)
	}
	drawing.GiftCard = details
	drawing.IsCompleted = true
	return nil
}

// notifyWinner sends the winner notification through the dispatcher,
// preferring the drawing-winner automation's template and falling back
// to the built-in one. Notification failure never fails the drawing;
// the prize is already disbursed.
func (e *Engine) notifyWinner(ctx context.Context, drawing *domain.MonthlyDrawing, automation *autodomain.Automation) bool {
	tpl, ok := template.Builtin("drawing_winner")
	if automation != nil {
		tpl = automation.Template
		ok = true
	}
	if !ok {
		e.logger.ErrorContext(ctx, "No winner notification template available", "period", drawing.Period())
		return false
	}

	recipient := &memberdomain.Member{
		ID:    drawing.Winner.MemberID,
		Email: drawing.Winner.Email,
		Name:  drawing.Winner.Name,
		Tier:  drawing.Tier,
	}
	in := campaignapp.DispatchInput{
		Template:   tpl,
		Recipients: []*memberdomain.Member{recipient},
		Mode:       campaignapp.ModeProduction,
		TriggerContext: map[string]any{
			"prize_amount":   drawing.PrizeAmount,
			"gift_card_code": drawing.GiftCard.Code,
			"redeem_url":     drawing.GiftCard.RedeemURL,
			"drawing_month":  drawing.Month.String(),
			"drawing_year":   drawing.Year,
			"tier":           drawing.Tier,
		},
	}
	if automation != nil {
		in.AutomationID = &automation.ID
	}

	summary, err := e.notifier.Dispatch(ctx, in)
	if err != nil {
		e.logger.ErrorContext(ctx, "Failed to dispatch winner notification",
			"error", err, "period", drawing.Period(), "member_id", drawing.Winner.MemberID)
		return false
	}
	return summary.Sent > 0
}

func (e *Engine) lookupAutomation(ctx context.Context) *autodomain.Automation {
	a, err := e.automationRepo.GetByTrigger(ctx, autodomain.TriggerDrawingWinner)
	if err != nil {
		if !errors.Is(err, autodomain.ErrNotFound) {
			e.logger.WarnContext(ctx, "Failed to look up drawing-winner automation", "error", err)
		}
		return nil
	}
	return a
}

func (e *Engine) prizeAmount(tier string, automation *autodomain.Automation) float64 {
	if automation != nil && automation.RewardSettings != nil && automation.RewardSettings.Amount > 0 {
		return automation.RewardSettings.Amount
	}
	return e.cfg.PrizeAmounts[tier]
}
