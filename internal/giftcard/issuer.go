package giftcard

import "context"

// IssueRequest asks the gift card provider for one card.
type IssueRequest struct {
	// ExternalID makes the issue idempotent on the provider side;
	// callers derive it from the drawing so a retried disbursement
	// cannot double-issue.
	ExternalID     string
	Amount         float64
	Currency       string
	RecipientEmail string
	RecipientName  string
	Note           string
}

// IssueResult is the provider's record of an issued card.
type IssueResult struct {
	ProviderOrderID string
	Code            string
	RedeemURL       string
	Amount          float64
	Currency        string
}

// Issuer is the outbound port to a gift card provider.
type Issuer interface {
	Issue(ctx context.Context, request IssueRequest) (*IssueResult, error)
	GetName() string
}
