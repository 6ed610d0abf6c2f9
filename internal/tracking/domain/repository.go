package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// DeliveryLogRepository persists delivery logs. One row per
// (recipient, message); the dispatcher creates rows, the tracker
// advances them.
type DeliveryLogRepository interface {
	Create(ctx context.Context, log *DeliveryLog) error
	GetByID(ctx context.Context, id uuid.UUID) (*DeliveryLog, error)

	// GetByProviderMessageID resolves the correlation key carried by
	// inbound provider events. Returns ErrNotFound when unresolvable.
	GetByProviderMessageID(ctx context.Context, providerMessageID string) (*DeliveryLog, error)

	// UpdateStatus sets the status; callers are responsible for
	// checking CanAdvanceTo first.
	UpdateStatus(ctx context.Context, id uuid.UUID, status DeliveryStatus, errorMessage string, updatedAt time.Time) error

	// AppendOpen and AppendClick append to the event histories without
	// touching the status. Histories are append-only.
	AppendOpen(ctx context.Context, id uuid.UUID, event EngagementEvent) error
	AppendClick(ctx context.Context, id uuid.UUID, event EngagementEvent) error
}
