package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// AutomationRepository manages persisted automations. The admin surface
// owns creation and editing; the engine reads automations to drive sends
// and writes back send counters.
type AutomationRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Automation, error)

	// GetByTrigger returns the canonical automation for a trigger: the
	// most recently updated active one. Duplicate trigger types are a
	// caller error; callers that care should log when ListActive shows
	// more than one.
	GetByTrigger(ctx context.Context, trigger TriggerType) (*Automation, error)

	// ListActive returns all active automations, used to arm timers at
	// startup.
	ListActive(ctx context.Context) ([]*Automation, error)

	// RecordSend atomically increments total_sent and sets
	// last_triggered. Only production sends call this.
	RecordSend(ctx context.Context, id uuid.UUID, sentCount int, triggeredAt time.Time) error
}
