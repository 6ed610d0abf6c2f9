package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/Edness1/ColorCompete-sub001/internal/template"
)

// TriggerType identifies what causes an automation to fire.
type TriggerType string

const (
	// Time-based recurring triggers, fired by the scheduler.
	TriggerDaily   TriggerType = "daily"
	TriggerWeekly  TriggerType = "weekly"
	TriggerMonthly TriggerType = "monthly"

	// Event-based triggers, fired by external collaborators through
	// the FireNow entry point.
	TriggerContestWinner       TriggerType = "contest_winner"
	TriggerNewSubscriber       TriggerType = "new_subscriber"
	TriggerSubscriptionRenewal TriggerType = "subscription_renewal"
	TriggerDrawingWinner       TriggerType = "drawing_winner"
)

// IsTimeBased reports whether the trigger fires on a recurring schedule.
func (t TriggerType) IsTimeBased() bool {
	switch t {
	case TriggerDaily, TriggerWeekly, TriggerMonthly:
		return true
	}
	return false
}

// Schedule describes when a time-based automation fires. Time is a
// 24-hour "HH:MM" wall-clock value interpreted in Timezone.
type Schedule struct {
	Time       string `json:"time"`
	Timezone   string `json:"timezone"`
	DayOfWeek  *int   `json:"day_of_week,omitempty"`  // 0 = Sunday, used by weekly triggers
	DayOfMonth *int   `json:"day_of_month,omitempty"` // 1..31, clamped to month length
}

// RewardSettings configures reward-class automations.
type RewardSettings struct {
	Amount  float64 `json:"amount"`
	Message string  `json:"message"`
}

// Automation binds a trigger condition to a message template and an
// optional schedule. TotalSent and LastTriggered are written only by the
// dispatcher after a production (non-preview) send.
type Automation struct {
	ID             uuid.UUID                `json:"id"`
	Name           string                   `json:"name"`
	IsActive       bool                     `json:"is_active"`
	TriggerType    TriggerType              `json:"trigger_type"`
	Template       template.MessageTemplate `json:"template"`
	Schedule       Schedule                 `json:"schedule"`
	RewardSettings *RewardSettings          `json:"reward_settings,omitempty"`
	TotalSent      int                      `json:"total_sent"`
	LastTriggered  *time.Time               `json:"last_triggered,omitempty"`
	CreatedAt      time.Time                `json:"created_at"`
	UpdatedAt      time.Time                `json:"updated_at"`
}

// Validate checks the automation can be dispatched at all: a subject and
// at least one body are required before any send is attempted.
func (a *Automation) Validate() error {
	if a.Template.Subject == "" {
		return ErrValidation
	}
	if a.Template.HTML == "" && a.Template.Text == "" {
		return ErrValidation
	}
	return nil
}

// DispatchJobPayload is the message published on the dispatch subject
// when an automation fires (or an admin dispatches a campaign). The
// dispatcher consumes it.
type DispatchJobPayload struct {
	AutomationID *uuid.UUID     `json:"automation_id,omitempty"`
	CampaignID   *uuid.UUID     `json:"campaign_id,omitempty"`
	Context      map[string]any `json:"context,omitempty"`
	Preview      bool           `json:"preview,omitempty"`
}

// ToJSON marshals the payload for publishing.
func (p *DispatchJobPayload) ToJSON() (json.RawMessage, error) {
	return json.Marshal(p)
}
