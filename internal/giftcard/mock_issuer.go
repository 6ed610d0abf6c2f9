package giftcard

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// MockIssuer is a simulated gift card provider for development and
// testing. It honors external-id idempotency the way a real provider
// would: re-issuing the same external id returns the original card.
type MockIssuer struct {
	logger   *slog.Logger
	name     string
	failRate float64 // 0.0 to 1.0

	mu     sync.Mutex
	issued map[string]*IssueResult
}

func NewMockIssuer(logger *slog.Logger, name string, failRate float64) Issuer {
	if name == "" {
		name = "mock-giftcard"
	}
	return &MockIssuer{
		logger:   logger.With("provider", name),
		name:     name,
		failRate: failRate,
		issued:   make(map[string]*IssueResult),
	}
}

func (i *MockIssuer) GetName() string {
	return i.name
}

func (i *MockIssuer) Issue(ctx context.Context, request IssueRequest) (*IssueResult, error) {
	i.mu.Lock()
	defer i.mu.Unlock()

	if existing, ok := i.issued[request.ExternalID]; ok {
		i.logger.InfoContext(ctx, "MockIssuer: duplicate order, returning original card",
			"external_id", request.ExternalID)
		return existing, nil
	}

	if rand.Float64() < i.failRate {
		errMsg := fmt.Sprintf("MockIssuer simulated failure for order %s", request.ExternalID)
		i.logger.WarnContext(ctx, errMsg)
		return nil, fmt.Errorf("%s", errMsg)
	}

	currency := request.Currency
	if currency == "" {
		currency = "USD"
	}
	code := strings.ToUpper(uuid.NewString()[:13])
	result := &IssueResult{
		ProviderOrderID: uuid.NewString(),
		Code:            code,
		RedeemURL:       "https://giftcards.example/redeem/" + code,
		Amount:          request.Amount,
		Currency:        currency,
	}
	i.issued[request.ExternalID] = result

	i.logger.InfoContext(ctx, "MockIssuer: card issued (simulated)",
		"external_id", request.ExternalID, "order_id", result.ProviderOrderID, "amount", request.Amount)
	return result, nil
}

var _ Issuer = (*MockIssuer)(nil)
