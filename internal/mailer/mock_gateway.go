package mailer

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/google/uuid"
)

// MockGateway is a simulated delivery provider for development and
// testing. It can simulate per-send failures and latency.
type MockGateway struct {
	logger       *slog.Logger
	name         string
	failRate     float64 // 0.0 to 1.0
	minLatencyMs int
	maxLatencyMs int
}

func NewMockGateway(logger *slog.Logger, name string, failRate float64, minLatencyMs, maxLatencyMs int) Gateway {
	if name == "" {
		name = "mock-mailer"
	}
	return &MockGateway{
		logger:       logger.With("provider", name),
		name:         name,
		failRate:     failRate,
		minLatencyMs: minLatencyMs,
		maxLatencyMs: maxLatencyMs,
	}
}

func (g *MockGateway) GetName() string {
	return g.name
}

func (g *MockGateway) Send(ctx context.Context, request SendRequest) (*SendResult, error) {
	if g.maxLatencyMs > g.minLatencyMs {
		latency := g.minLatencyMs + rand.Intn(g.maxLatencyMs-g.minLatencyMs+1)
		time.Sleep(time.Duration(latency) * time.Millisecond)
	}

	g.logger.InfoContext(ctx, "MockGateway: Send called",
		"message_id", request.InternalMessageID,
		"recipient", request.To,
		"subject", request.Subject)

	if rand.Float64() < g.failRate {
		errMsg := fmt.Sprintf("MockGateway simulated failure for recipient %s", request.To)
		g.logger.WarnContext(ctx, errMsg, "message_id", request.InternalMessageID)
		return &SendResult{
			Success:      false,
			StatusCode:   500,
			ErrorMessage: errMsg,
			ProviderName: g.name,
		}, nil
	}

	providerMsgID := uuid.NewString()
	g.logger.InfoContext(ctx, "MockGateway: message accepted (simulated)",
		"message_id", request.InternalMessageID,
		"provider_message_id", providerMsgID)

	return &SendResult{
		Success:           true,
		StatusCode:        202,
		ProviderMessageID: providerMsgID,
		ProviderName:      g.name,
	}, nil
}

func (g *MockGateway) Stats(ctx context.Context, campaignID string) (*ProviderStats, error) {
	// The mock provider reports nothing to reconcile against.
	return &ProviderStats{}, nil
}
