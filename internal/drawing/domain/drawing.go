package domain

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Participant is a member snapshot taken at draw time. Eligibility is
// evaluated once; later tier changes or opt-outs do not rewrite history.
type Participant struct {
	MemberID uuid.UUID `json:"member_id"`
	Email    string    `json:"email"`
	Name     string    `json:"name"`
}

// Winner is the selected participant.
type Winner struct {
	MemberID uuid.UUID `json:"member_id"`
	Email    string    `json:"email"`
	Name     string    `json:"name"`
}

// GiftCardDetails records a successful disbursement. Present only after
// the gift card provider confirmed the order.
type GiftCardDetails struct {
	ProviderOrderID string    `json:"provider_order_id"`
	Code            string    `json:"code"`
	RedeemURL       string    `json:"redeem_url"`
	IssuedAt        time.Time `json:"issued_at"`
}

// MonthlyDrawing is one reward drawing for a (month, year, tier)
// period. The compound key is unique; the record moves through
// {created} -> {winner selected} -> {disbursed, completed} and a
// completed record never changes again.
type MonthlyDrawing struct {
	ID           uuid.UUID        `json:"id"`
	Month        time.Month       `json:"month"`
	Year         int              `json:"year"`
	Tier         string           `json:"tier"`
	PrizeAmount  float64          `json:"prize_amount"`
	Participants []Participant    `json:"participants,omitempty"`
	Winner       *Winner          `json:"winner,omitempty"`
	GiftCard     *GiftCardDetails `json:"gift_card,omitempty"`
	IsCompleted  bool             `json:"is_completed"`
	CreatedAt    time.Time        `json:"created_at"`
	UpdatedAt    time.Time        `json:"updated_at"`
}

// Period formats the drawing's period for logs and idempotency keys.
func (d *MonthlyDrawing) Period() string {
	return fmt.Sprintf("%04d-%02d-%s", d.Year, int(d.Month), d.Tier)
}

var (
	// ErrNotFound indicates the requested drawing does not exist.
	ErrNotFound = errors.New("drawing not found")

	// ErrDisbursement wraps a gift card provider failure. The drawing
	// keeps its winner and stays incomplete so a retry can re-attempt
	// disbursement without re-selecting.
	ErrDisbursement = errors.New("gift card disbursement failed")
)
