package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Edness1/ColorCompete-sub001/internal/automation/domain"
	"github.com/Edness1/ColorCompete-sub001/internal/platform/messagebroker"
)

// Scheduler arms one timer per active time-based automation and publishes
// a dispatch job when it fires. Event-based automations bypass timers and
// are fired through FireNow by external collaborators.
type Scheduler struct {
	repo      domain.AutomationRepository
	publisher messagebroker.Publisher
	logger    *slog.Logger
	subject   string

	mu     sync.Mutex
	timers map[uuid.UUID]*time.Timer

	// now is swappable for tests.
	now func() time.Time
}

// NewScheduler creates a Scheduler publishing dispatch jobs on subject.
func NewScheduler(
	repo domain.AutomationRepository,
	publisher messagebroker.Publisher,
	logger *slog.Logger,
	subject string,
) *Scheduler {
	return &Scheduler{
		repo:      repo,
		publisher: publisher,
		logger:    logger.With("service", "scheduler"),
		subject:   subject,
		timers:    make(map[uuid.UUID]*time.Timer),
		now:       time.Now,
	}
}

// Start arms timers for every active time-based automation. One
// automation failing to schedule does not affect the others.
func (s *Scheduler) Start(ctx context.Context) error {
	automations, err := s.repo.ListActive(ctx)
	if err != nil {
		return fmt.Errorf("failed to list active automations: %w", err)
	}

	seen := make(map[domain.TriggerType]int)
	armed := 0
	for _, a := range automations {
		seen[a.TriggerType]++
		if seen[a.TriggerType] == 2 {
			s.logger.WarnContext(ctx, "Multiple active automations share a trigger type; trigger lookups use the most recently updated one",
				"trigger_type", a.TriggerType)
		}
		if !a.TriggerType.IsTimeBased() {
			continue
		}
		if err := s.Schedule(a); err != nil {
			s.logger.ErrorContext(ctx, "Failed to schedule automation", "error", err, "automation_id", a.ID, "name", a.Name)
			continue
		}
		armed++
	}

	s.logger.InfoContext(ctx, "Scheduler started", "active_automations", len(automations), "timers_armed", armed)
	return nil
}

// Schedule arms (or re-arms) the timer for a time-based automation. Any
// existing timer for the same id is cancelled first, so updates can never
// leave two live timers behind.
func (s *Scheduler) Schedule(a *domain.Automation) error {
	if !a.TriggerType.IsTimeBased() {
		return fmt.Errorf("automation %s has event-based trigger %q and cannot be timer-scheduled", a.ID, a.TriggerType)
	}

	next, err := NextFire(a.Schedule, a.TriggerType, s.now())
	if err != nil && next.IsZero() {
		return err
	}
	if err != nil {
		// Timezone fallback: the fire time is usable, just not in the
		// zone the automation asked for.
		s.logger.Error("Automation scheduled with timezone fallback", "error", err, "automation_id", a.ID)
	}

	id := a.ID
	delay := next.Sub(s.now())

	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.timers[id]; ok {
		existing.Stop()
	}
	s.timers[id] = time.AfterFunc(delay, func() { s.fire(id) })

	s.logger.Info("Automation scheduled", "automation_id", id, "name", a.Name, "next_fire_at", next.UTC().Format(time.RFC3339))
	return nil
}

// Cancel stops the pending timer for an automation, if any. An in-flight
// dispatch batch is not interrupted.
func (s *Scheduler) Cancel(id uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if timer, ok := s.timers[id]; ok {
		timer.Stop()
		delete(s.timers, id)
		s.logger.Info("Automation schedule cancelled", "automation_id", id)
	}
}

// Stop cancels all pending timers.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, timer := range s.timers {
		timer.Stop()
		delete(s.timers, id)
	}
	s.logger.Info("Scheduler stopped, all timers cancelled")
}

// FireNow triggers an automation immediately with the given event
// context. External collaborators use this for event-based triggers
// ("a contest winner was just set"); the admin surface uses it for
// manual triggers of any automation.
func (s *Scheduler) FireNow(ctx context.Context, automationID uuid.UUID, triggerContext map[string]any) error {
	a, err := s.repo.GetByID(ctx, automationID)
	if err != nil {
		return fmt.Errorf("failed to load automation %s: %w", automationID, err)
	}
	if !a.IsActive {
		return domain.ErrInactive
	}
	if err := a.Validate(); err != nil {
		return err
	}
	return s.publishJob(ctx, a, triggerContext)
}

// FireTrigger fires the canonical automation for an event-based trigger
// type, if one is active. A missing automation is not an error: the event
// simply has nothing configured to announce it.
func (s *Scheduler) FireTrigger(ctx context.Context, trigger domain.TriggerType, triggerContext map[string]any) error {
	a, err := s.repo.GetByTrigger(ctx, trigger)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			s.logger.InfoContext(ctx, "No active automation for trigger", "trigger_type", trigger)
			return nil
		}
		return fmt.Errorf("failed to look up automation for trigger %q: %w", trigger, err)
	}
	if err := a.Validate(); err != nil {
		s.logger.WarnContext(ctx, "Automation for trigger has invalid template, skipping", "trigger_type", trigger, "automation_id", a.ID)
		return err
	}
	return s.publishJob(ctx, a, triggerContext)
}

// fire runs when a timer elapses. Failures (including panics) are
// isolated: they are logged, counted, and never prevent the automation
// from being re-armed for its next occurrence or affect other
// automations.
func (s *Scheduler) fire(id uuid.UUID) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			s.logger.ErrorContext(ctx, "Recovered panic while firing automation", "automation_id", id, "panic", r)
			automationFiresCounter.WithLabelValues("unknown", "panic").Inc()
		}
		s.rearm(ctx, id)
	}()

	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to load automation for firing", "error", err, "automation_id", id)
		automationFiresCounter.WithLabelValues("unknown", "load_error").Inc()
		return
	}
	if !a.IsActive {
		s.logger.InfoContext(ctx, "Automation deactivated before firing, skipping", "automation_id", id)
		return
	}
	if err := a.Validate(); err != nil {
		s.logger.WarnContext(ctx, "Automation template invalid at fire time, skipping send", "automation_id", id, "error", err)
		automationFiresCounter.WithLabelValues(string(a.TriggerType), "validation_error").Inc()
		return
	}

	if err := s.publishJob(ctx, a, nil); err != nil {
		s.logger.ErrorContext(ctx, "Failed to publish dispatch job for automation", "error", err, "automation_id", id)
	}
}

// rearm schedules the next occurrence after a fire. Deactivated or
// deleted automations are dropped from the timer registry.
func (s *Scheduler) rearm(ctx context.Context, id uuid.UUID) {
	a, err := s.repo.GetByID(ctx, id)
	if err != nil || !a.IsActive || !a.TriggerType.IsTimeBased() {
		s.mu.Lock()
		delete(s.timers, id)
		s.mu.Unlock()
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			s.logger.ErrorContext(ctx, "Failed to reload automation for rescheduling", "error", err, "automation_id", id)
		}
		return
	}
	if err := s.Schedule(a); err != nil {
		s.logger.ErrorContext(ctx, "Failed to reschedule automation after fire", "error", err, "automation_id", id)
	}
}

func (s *Scheduler) publishJob(ctx context.Context, a *domain.Automation, triggerContext map[string]any) error {
	payload := domain.DispatchJobPayload{
		AutomationID: &a.ID,
		Context:      triggerContext,
	}
	data, err := payload.ToJSON()
	if err != nil {
		automationFiresCounter.WithLabelValues(string(a.TriggerType), "marshal_error").Inc()
		return fmt.Errorf("failed to marshal dispatch job payload: %w", err)
	}

	if err := s.publisher.Publish(ctx, s.subject, data); err != nil {
		automationFiresCounter.WithLabelValues(string(a.TriggerType), "publish_error").Inc()
		return fmt.Errorf("failed to publish dispatch job: %w", err)
	}

	automationFiresCounter.WithLabelValues(string(a.TriggerType), "published").Inc()
	s.logger.InfoContext(ctx, "Dispatch job published", "automation_id", a.ID, "trigger_type", a.TriggerType, "subject", s.subject)
	return nil
}
