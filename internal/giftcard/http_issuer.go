package giftcard

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// HTTPIssuer orders gift cards from a JSON-over-HTTP provider API with
// bearer authentication. The external id is forwarded so the provider
// deduplicates retried orders.
type HTTPIssuer struct {
	logger     *slog.Logger
	httpClient *http.Client
	apiURL     string
	apiKey     string
	name       string
}

func NewHTTPIssuer(logger *slog.Logger, name, apiURL, apiKey string, httpClient *http.Client) *HTTPIssuer {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	if name == "" {
		name = "http-giftcard"
	}
	return &HTTPIssuer{
		logger:     logger.With("provider", name),
		httpClient: httpClient,
		apiURL:     apiURL,
		apiKey:     apiKey,
		name:       name,
	}
}

func (i *HTTPIssuer) GetName() string {
	return i.name
}

type httpIssueRequestBody struct {
	ExternalID     string  `json:"external_id"`
	Amount         float64 `json:"amount"`
	Currency       string  `json:"currency"`
	RecipientEmail string  `json:"recipient_email"`
	RecipientName  string  `json:"recipient_name,omitempty"`
	Note           string  `json:"note,omitempty"`
}

type httpIssueResponseBody struct {
	OrderID   string  `json:"order_id"`
	Code      string  `json:"code"`
	RedeemURL string  `json:"redeem_url"`
	Amount    float64 `json:"amount"`
	Currency  string  `json:"currency"`
	Message   string  `json:"message"`
}

func (i *HTTPIssuer) Issue(ctx context.Context, request IssueRequest) (*IssueResult, error) {
	if request.Currency == "" {
		request.Currency = "USD"
	}
	reqBytes, err := json.Marshal(httpIssueRequestBody{
		ExternalID:     request.ExternalID,
		Amount:         request.Amount,
		Currency:       request.Currency,
		RecipientEmail: request.RecipientEmail,
		RecipientName:  request.RecipientName,
		Note:           request.Note,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal issue request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, i.apiURL+"/v1/orders", bytes.NewBuffer(reqBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to create issue request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+i.apiKey)

	httpResp, err := i.httpClient.Do(httpReq)
	if err != nil {
		i.logger.ErrorContext(ctx, "Failed to reach gift card provider", "error", err, "external_id", request.ExternalID)
		return nil, fmt.Errorf("failed to send request to gift card provider: %w", err)
	}
	defer httpResp.Body.Close()

	respBytes, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read gift card provider response (status %d): %w", httpResp.StatusCode, err)
	}

	var body httpIssueResponseBody
	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		errMsg := fmt.Sprintf("provider returned status %d", httpResp.StatusCode)
		if err := json.Unmarshal(respBytes, &body); err == nil && body.Message != "" {
			errMsg = body.Message
		}
		i.logger.WarnContext(ctx, "Gift card provider rejected order",
			"status_code", httpResp.StatusCode, "error", errMsg, "external_id", request.ExternalID)
		return nil, fmt.Errorf("gift card order failed: %s", errMsg)
	}

	if err := json.Unmarshal(respBytes, &body); err != nil {
		// Unlike mail sends, an order without its code is useless; the
		// provider-side external id keeps the retry safe.
		return nil, fmt.Errorf("failed to decode gift card provider response: %w", err)
	}

	return &IssueResult{
		ProviderOrderID: body.OrderID,
		Code:            body.Code,
		RedeemURL:       body.RedeemURL,
		Amount:          body.Amount,
		Currency:        body.Currency,
	}, nil
}

var _ Issuer = (*HTTPIssuer)(nil)
