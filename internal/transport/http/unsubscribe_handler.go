package http

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	campaignapp "github.com/Edness1/ColorCompete-sub001/internal/campaign/app"
	memberdomain "github.com/Edness1/ColorCompete-sub001/internal/member/domain"
)

// UnsubscribeHandler serves the unsubscribe links embedded in outgoing
// mail. The signed token in the query string identifies the member; a
// valid token flips their email opt-out flag.
type UnsubscribeHandler struct {
	memberRepo memberdomain.MemberRepository
	secret     string
	logger     *slog.Logger
}

func NewUnsubscribeHandler(memberRepo memberdomain.MemberRepository, secret string, logger *slog.Logger) *UnsubscribeHandler {
	return &UnsubscribeHandler{
		memberRepo: memberRepo,
		secret:     secret,
		logger:     logger.With("component", "unsubscribe_handler"),
	}
}

// HandleUnsubscribe handles GET /unsubscribe?token=...
func (h *UnsubscribeHandler) HandleUnsubscribe(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	token := r.URL.Query().Get("token")
	if token == "" {
		http.Error(w, "Missing token", http.StatusBadRequest)
		return
	}

	memberID, err := campaignapp.ParseUnsubscribeToken(token, h.secret)
	if err != nil {
		h.logger.WarnContext(ctx, "Rejected unsubscribe token", "error", err)
		http.Error(w, "Invalid or expired unsubscribe link", http.StatusBadRequest)
		return
	}

	if err := h.memberRepo.SetEmailOptOut(ctx, memberID, true); err != nil {
		if errors.Is(err, memberdomain.ErrNotFound) {
			// The account is gone; from the clicker's perspective the
			// unsubscribe succeeded.
			h.logger.InfoContext(ctx, "Unsubscribe for unknown member", "member_id", memberID)
		} else {
			h.logger.ErrorContext(ctx, "Failed to set email opt-out", "error", err, "member_id", memberID)
			http.Error(w, "Internal server error", http.StatusInternalServerError)
			return
		}
	}

	h.logger.InfoContext(ctx, "Member unsubscribed", "member_id", memberID)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("<html><body><p>You have been unsubscribed. You will no longer receive emails from us.</p></body></html>")); err != nil {
		h.logger.WarnContext(ctx, "Failed to write unsubscribe response", "error", err)
	}
}

// RegisterRoutes registers the unsubscribe surface on a Chi router.
func (h *UnsubscribeHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.HandleUnsubscribe)
}
