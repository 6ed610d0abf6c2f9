package mailer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"
)

// HTTPGateway delivers through a JSON-over-HTTP email provider API with
// bearer authentication. The request/response shapes follow the common
// transactional-mail pattern: POST a message, get back a provider
// message id; GET per-campaign aggregate stats.
type HTTPGateway struct {
	logger      *slog.Logger
	httpClient  *http.Client
	apiURL      string
	apiKey      string
	name        string
	fromAddress string
	fromName    string
}

func NewHTTPGateway(logger *slog.Logger, name, apiURL, apiKey, fromAddress, fromName string, httpClient *http.Client) *HTTPGateway {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	if name == "" {
		name = "http-mailer"
	}
	return &HTTPGateway{
		logger:      logger.With("provider", name),
		httpClient:  httpClient,
		apiURL:      apiURL,
		apiKey:      apiKey,
		name:        name,
		fromAddress: fromAddress,
		fromName:    fromName,
	}
}

func (g *HTTPGateway) GetName() string {
	return g.name
}

type httpSendRequestBody struct {
	From    httpAddress `json:"from"`
	To      httpAddress `json:"to"`
	Subject string      `json:"subject"`
	HTML    string      `json:"html,omitempty"`
	Text    string      `json:"text,omitempty"`
	Ref     string      `json:"ref,omitempty"` // echoed back in webhook metadata
}

type httpAddress struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

type httpSendResponseBody struct {
	MessageID string `json:"message_id"`
	Status    string `json:"status"`
	Message   string `json:"message"`
}

type httpStatsResponseBody struct {
	Delivered int `json:"delivered"`
	Opened    int `json:"opened"`
	Clicked   int `json:"clicked"`
	Bounced   int `json:"bounced"`
}

func (g *HTTPGateway) Send(ctx context.Context, request SendRequest) (*SendResult, error) {
	from := httpAddress{Email: request.FromAddress, Name: request.FromName}
	if from.Email == "" {
		from = httpAddress{Email: g.fromAddress, Name: g.fromName}
	}

	reqBody := httpSendRequestBody{
		From:    from,
		To:      httpAddress{Email: request.To, Name: request.ToName},
		Subject: request.Subject,
		HTML:    request.HTML,
		Text:    request.Text,
		Ref:     request.InternalMessageID,
	}

	reqBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal send request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.apiURL+"/v1/messages", bytes.NewBuffer(reqBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to create send request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+g.apiKey)

	httpResp, err := g.httpClient.Do(httpReq)
	if err != nil {
		g.logger.ErrorContext(ctx, "Failed to reach mail provider", "error", err, "message_id", request.InternalMessageID)
		return nil, fmt.Errorf("failed to send request to mail provider: %w", err)
	}
	defer httpResp.Body.Close()

	respBytes, readErr := io.ReadAll(httpResp.Body)
	if readErr != nil {
		return &SendResult{
			Success:      false,
			StatusCode:   httpResp.StatusCode,
			ErrorMessage: fmt.Sprintf("failed to read provider response (status %d): %v", httpResp.StatusCode, readErr),
			ProviderName: g.name,
		}, nil
	}

	if httpResp.StatusCode >= 200 && httpResp.StatusCode < 300 {
		var okResp httpSendResponseBody
		if err := json.Unmarshal(respBytes, &okResp); err != nil {
			// Accepted by the provider but the body is unparsable; we
			// lose the provider message id, not the send.
			g.logger.WarnContext(ctx, "Provider accepted message but response body was unparsable",
				"status_code", httpResp.StatusCode, "message_id", request.InternalMessageID)
			return &SendResult{
				Success:      true,
				StatusCode:   httpResp.StatusCode,
				ProviderName: g.name,
			}, nil
		}
		return &SendResult{
			Success:           true,
			StatusCode:        httpResp.StatusCode,
			ProviderMessageID: okResp.MessageID,
			ProviderName:      g.name,
		}, nil
	}

	var errResp httpSendResponseBody
	errMsg := fmt.Sprintf("provider returned status %d", httpResp.StatusCode)
	if err := json.Unmarshal(respBytes, &errResp); err == nil && errResp.Message != "" {
		errMsg = errResp.Message
	}
	g.logger.WarnContext(ctx, "Mail provider rejected message",
		"status_code", httpResp.StatusCode, "error", errMsg, "message_id", request.InternalMessageID)

	return &SendResult{
		Success:      false,
		StatusCode:   httpResp.StatusCode,
		ErrorMessage: errMsg,
		ProviderName: g.name,
	}, nil
}

func (g *HTTPGateway) Stats(ctx context.Context, campaignID string) (*ProviderStats, error) {
	statsURL := fmt.Sprintf("%s/v1/stats?campaign=%s", g.apiURL, url.QueryEscape(campaignID))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, statsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create stats request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+g.apiKey)

	httpResp, err := g.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch provider stats: %w", err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		return nil, fmt.Errorf("provider stats request returned status %d", httpResp.StatusCode)
	}

	var body httpStatsResponseBody
	if err := json.NewDecoder(httpResp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("failed to decode provider stats: %w", err)
	}

	return &ProviderStats{
		Delivered: body.Delivered,
		Opened:    body.Opened,
		Clicked:   body.Clicked,
		Bounced:   body.Bounced,
	}, nil
}

var _ Gateway = (*HTTPGateway)(nil)
var _ Gateway = (*MockGateway)(nil)
