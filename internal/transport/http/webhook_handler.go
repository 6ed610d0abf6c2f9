package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chi_middleware "github.com/go-chi/chi/v5/middleware"

	"github.com/Edness1/ColorCompete-sub001/internal/platform/messagebroker"
	"github.com/Edness1/ColorCompete-sub001/internal/tracking/adapters"
)

const maxWebhookBodySize = 1 << 20 // 1 MB

// WebhookHandler receives delivery event webhooks from email providers,
// verifies the signature, normalizes the payload through the provider's
// adapter, and publishes one broker message per event. Processing is
// asynchronous; the provider gets its 200 as soon as the events are on
// the broker.
type WebhookHandler struct {
	publisher  messagebroker.Publisher
	subject    string
	signingKey string
	logger     *slog.Logger
}

func NewWebhookHandler(publisher messagebroker.Publisher, subject, signingKey string, logger *slog.Logger) *WebhookHandler {
	return &WebhookHandler{
		publisher:  publisher,
		subject:    subject,
		signingKey: signingKey,
		logger:     logger.With("component", "webhook_handler"),
	}
}

// HandleDeliveryWebhook handles POST /webhooks/email/{provider}.
func (h *WebhookHandler) HandleDeliveryWebhook(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := chi_middleware.GetReqID(ctx)
	provider := chi.URLParam(r, "provider")
	logger := h.logger.With("request_id", requestID, "provider", provider)

	adapter, err := adapters.ForProvider(provider)
	if err != nil {
		logger.WarnContext(ctx, "Webhook for unknown provider", "error", err)
		http.Error(w, "Unknown provider", http.StatusNotFound)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxWebhookBodySize)
	rawPayload, err := io.ReadAll(r.Body)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to read webhook request body", "error", err)
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			http.Error(w, "Request body too large", http.StatusRequestEntityTooLarge)
		} else {
			http.Error(w, "Error reading request body", http.StatusBadRequest)
		}
		return
	}

	signature := r.Header.Get("X-Webhook-Signature")
	if err := adapters.VerifySignature(rawPayload, signature, h.signingKey); err != nil {
		logger.WarnContext(ctx, "Webhook signature verification failed", "signature_present", signature != "")
		http.Error(w, "Signature verification failed", http.StatusUnauthorized)
		return
	}

	events, err := adapter.Parse(rawPayload)
	if err != nil {
		logger.WarnContext(ctx, "Failed to parse webhook payload", "error", err, "payload_size", len(rawPayload))
		http.Error(w, "Unparsable payload", http.StatusBadRequest)
		return
	}

	published := 0
	for _, event := range events {
		data, err := json.Marshal(event)
		if err != nil {
			logger.ErrorContext(ctx, "Failed to marshal normalized event", "error", err)
			continue
		}
		if err := h.publishEvent(ctx, data); err != nil {
			logger.ErrorContext(ctx, "Failed to publish delivery event",
				"error", err, "provider_message_id", event.ProviderMessageID)
			http.Error(w, "Failed to enqueue events", http.StatusInternalServerError)
			return
		}
		published++
	}

	logger.InfoContext(ctx, "Delivery webhook processed", "events_received", len(events), "events_published", published)
	writeJSON(w, logger, http.StatusOK, map[string]int{"accepted": published})
}

func (h *WebhookHandler) publishEvent(ctx context.Context, data []byte) error {
	return h.publisher.Publish(ctx, h.subject, data)
}

// RegisterRoutes registers the webhook surface on a Chi router.
func (h *WebhookHandler) RegisterRoutes(r chi.Router) {
	r.Post("/email/{provider}", h.HandleDeliveryWebhook)
}
