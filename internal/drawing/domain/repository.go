package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// DrawingRepository persists monthly drawings. The (month, year, tier)
// key is backed by a unique constraint; InsertIfAbsent is the single
// compare-and-set point that keeps concurrent runs from creating two
// drawings for one period.
type DrawingRepository interface {
	// InsertIfAbsent inserts the drawing unless a record for its
	// (month, year, tier) already exists, and returns the stored record
	// either way, with created reporting whether the insert won.
	InsertIfAbsent(ctx context.Context, drawing *MonthlyDrawing) (stored *MonthlyDrawing, created bool, err error)

	GetByPeriod(ctx context.Context, month time.Month, year int, tier string) (*MonthlyDrawing, error)

	// SetWinner persists the participant snapshot and the selected
	// winner. Called before any disbursement attempt.
	SetWinner(ctx context.Context, id uuid.UUID, participants []Participant, winner *Winner, updatedAt time.Time) error

	// Complete stores the gift card details and marks the drawing
	// completed. The last write for a period.
	Complete(ctx context.Context, id uuid.UUID, giftCard *GiftCardDetails, updatedAt time.Time) error
}
