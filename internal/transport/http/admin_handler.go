package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	autodomain "github.com/Edness1/ColorCompete-sub001/internal/automation/domain"
	campaignapp "github.com/Edness1/ColorCompete-sub001/internal/campaign/app"
	campaigndomain "github.com/Edness1/ColorCompete-sub001/internal/campaign/domain"
	drawingapp "github.com/Edness1/ColorCompete-sub001/internal/drawing/app"
	drawingdomain "github.com/Edness1/ColorCompete-sub001/internal/drawing/domain"
	"github.com/Edness1/ColorCompete-sub001/internal/template"
)

// AutomationTrigger fires an automation on demand.
type AutomationTrigger interface {
	FireNow(ctx context.Context, automationID uuid.UUID, triggerContext map[string]any) error
}

// CampaignDispatcher dispatches a campaign to its audience.
type CampaignDispatcher interface {
	DispatchCampaign(ctx context.Context, campaignID uuid.UUID, preview bool) (*campaignapp.DispatchSummary, error)
}

// DrawingRunner runs the current period's drawing for a tier.
type DrawingRunner interface {
	Run(ctx context.Context, tier string) (*drawingapp.DrawingResult, error)
}

// AdminHandler exposes the engine's callable surface to the admin
// authoring service. Authentication sits in front of this router at the
// edge; these endpoints are not publicly reachable.
type AdminHandler struct {
	trigger    AutomationTrigger
	dispatcher CampaignDispatcher
	drawings   DrawingRunner
	logger     *slog.Logger
	validate   *validator.Validate
}

func NewAdminHandler(trigger AutomationTrigger, dispatcher CampaignDispatcher, drawings DrawingRunner, logger *slog.Logger, validate *validator.Validate) *AdminHandler {
	return &AdminHandler{
		trigger:    trigger,
		dispatcher: dispatcher,
		drawings:   drawings,
		logger:     logger.With("component", "admin_handler"),
		validate:   validate,
	}
}

// mapDomainErrorToHTTPStatus translates engine errors into HTTP status
// codes with the error text as the body.
func mapDomainErrorToHTTPStatus(w http.ResponseWriter, logger *slog.Logger, err error, operation string) {
	logEntry := logger.With("operation", operation, "error", err)
	switch {
	case errors.Is(err, autodomain.ErrNotFound), errors.Is(err, campaigndomain.ErrNotFound), errors.Is(err, drawingdomain.ErrNotFound):
		logEntry.Warn("Resource not found")
		http.Error(w, fmt.Sprintf("Resource not found: %s", err.Error()), http.StatusNotFound)
	case errors.Is(err, autodomain.ErrValidation), errors.Is(err, campaigndomain.ErrValidation):
		logEntry.Warn("Validation rejected")
		http.Error(w, fmt.Sprintf("Invalid request: %s", err.Error()), http.StatusBadRequest)
	case errors.Is(err, autodomain.ErrInactive):
		logEntry.Warn("Automation inactive")
		http.Error(w, fmt.Sprintf("Automation inactive: %s", err.Error()), http.StatusConflict)
	case errors.Is(err, campaigndomain.ErrInvalidTransition):
		logEntry.Warn("Invalid campaign status transition")
		http.Error(w, fmt.Sprintf("Conflict: %s", err.Error()), http.StatusConflict)
	case errors.Is(err, drawingdomain.ErrDisbursement):
		logEntry.Error("Disbursement failed")
		http.Error(w, fmt.Sprintf("Disbursement failed: %s", err.Error()), http.StatusBadGateway)
	default:
		logEntry.Error("Unhandled engine error")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

// RenderPreview renders a built-in or inline template against supplied
// variables. Nothing is sent and nothing is persisted.
func (h *AdminHandler) RenderPreview(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var reqDTO RenderPreviewRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&reqDTO); err != nil {
		h.logger.WarnContext(ctx, "Failed to decode request body for RenderPreview", "error", err)
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	var tpl template.MessageTemplate
	switch {
	case reqDTO.Template != nil:
		tpl = *reqDTO.Template
	case reqDTO.TemplateName != "":
		builtin, ok := template.Builtin(reqDTO.TemplateName)
		if !ok {
			h.logger.WarnContext(ctx, "Unknown built-in template requested", "template_name", reqDTO.TemplateName)
			http.Error(w, fmt.Sprintf("Unknown template %q; available: %v", reqDTO.TemplateName, template.BuiltinNames()), http.StatusNotFound)
			return
		}
		tpl = builtin
	default:
		http.Error(w, "Either template_name or template is required", http.StatusBadRequest)
		return
	}

	rendered := template.RenderMessage(tpl, reqDTO.Variables)
	writeJSON(w, h.logger, http.StatusOK, RenderPreviewResponseDTO{
		Subject: rendered.Subject,
		HTML:    rendered.HTML,
		Text:    rendered.Text,
	})
}

// TriggerAutomation fires an automation immediately through the
// scheduler's event path.
func (h *AdminHandler) TriggerAutomation(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	automationID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		h.logger.WarnContext(ctx, "Invalid automation ID for TriggerAutomation", "error", err)
		http.Error(w, "Invalid automation ID", http.StatusBadRequest)
		return
	}

	var reqDTO TriggerAutomationRequestDTO
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&reqDTO); err != nil {
			h.logger.WarnContext(ctx, "Failed to decode request body for TriggerAutomation", "error", err)
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}
	}

	if err := h.trigger.FireNow(ctx, automationID, reqDTO.Context); err != nil {
		mapDomainErrorToHTTPStatus(w, h.logger, err, "TriggerAutomation")
		return
	}

	h.logger.InfoContext(ctx, "Automation trigger accepted", "automation_id", automationID)
	writeJSON(w, h.logger, http.StatusAccepted, map[string]string{"status": "accepted"})
}

// DispatchCampaign dispatches a campaign and returns the per-recipient
// summary.
func (h *AdminHandler) DispatchCampaign(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	campaignID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		h.logger.WarnContext(ctx, "Invalid campaign ID for DispatchCampaign", "error", err)
		http.Error(w, "Invalid campaign ID", http.StatusBadRequest)
		return
	}

	var reqDTO DispatchCampaignRequestDTO
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&reqDTO); err != nil {
			h.logger.WarnContext(ctx, "Failed to decode request body for DispatchCampaign", "error", err)
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}
	}

	summary, err := h.dispatcher.DispatchCampaign(ctx, campaignID, reqDTO.Preview)
	if err != nil {
		mapDomainErrorToHTTPStatus(w, h.logger, err, "DispatchCampaign")
		return
	}

	h.logger.InfoContext(ctx, "Campaign dispatched",
		"campaign_id", campaignID, "preview", reqDTO.Preview, "attempted", summary.Attempted, "sent", summary.Sent)
	writeJSON(w, h.logger, http.StatusOK, summary)
}

// RunDrawing runs the current period's drawing for the requested tier
// and returns the structured result.
func (h *AdminHandler) RunDrawing(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var reqDTO RunDrawingRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&reqDTO); err != nil {
		h.logger.WarnContext(ctx, "Failed to decode request body for RunDrawing", "error", err)
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if err := h.validate.StructCtx(ctx, reqDTO); err != nil {
		h.logger.WarnContext(ctx, "Validation failed for RunDrawing", "error", err)
		http.Error(w, fmt.Sprintf("Validation error: %s", err.Error()), http.StatusBadRequest)
		return
	}

	result, err := h.drawings.Run(ctx, reqDTO.Tier)
	if err != nil {
		mapDomainErrorToHTTPStatus(w, h.logger, err, "RunDrawing")
		return
	}

	h.logger.InfoContext(ctx, "Drawing run finished",
		"tier", reqDTO.Tier, "already_completed", result.AlreadyCompleted, "no_eligible", result.NoEligible)
	writeJSON(w, h.logger, http.StatusOK, result)
}

// RegisterRoutes registers the admin surface on a Chi router.
func (h *AdminHandler) RegisterRoutes(r chi.Router) {
	r.Post("/render-preview", h.RenderPreview)
	r.Post("/automations/{id}/trigger", h.TriggerAutomation)
	r.Post("/campaigns/{id}/dispatch", h.DispatchCampaign)
	r.Post("/drawings/run", h.RunDrawing)
}

func writeJSON(w http.ResponseWriter, logger *slog.Logger, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Error("Failed to encode response body", "error", err)
	}
}
