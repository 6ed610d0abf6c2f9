// Package mailer defines the Delivery Gateway port: the boundary through
// which the engine hands rendered messages to a third-party email
// provider, and from which it pulls authoritative aggregate statistics
// during reconciliation.
package mailer

import "context"

// SendRequest holds the data for delivering one rendered message.
type SendRequest struct {
	InternalMessageID string // our DeliveryLog id, for correlation in logs
	To                string
	ToName            string
	FromAddress       string
	FromName          string
	Subject           string
	HTML              string
	Text              string
}

// SendResult is the outcome of a delivery attempt as reported by the
// provider. Success means accepted by the provider, not delivered to the
// recipient; delivery is tracked later from inbound events.
type SendResult struct {
	Success           bool
	ProviderMessageID string
	StatusCode        int
	ErrorMessage      string
	ProviderName      string
}

// ProviderStats is the provider's authoritative aggregate view of one
// campaign, used to correct locally tracked counts that drifted due to
// missed webhook deliveries.
type ProviderStats struct {
	Delivered int
	Opened    int
	Clicked   int
	Bounced   int
}

// Gateway is the Delivery Gateway port.
type Gateway interface {
	Send(ctx context.Context, request SendRequest) (*SendResult, error)
	Stats(ctx context.Context, campaignID string) (*ProviderStats, error)
	GetName() string
}
