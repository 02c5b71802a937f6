package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/redraftlabs/redraft/pkg/catalog"
	"github.com/redraftlabs/redraft/pkg/ledger"
	"github.com/redraftlabs/redraft/pkg/logger"
	"github.com/redraftlabs/redraft/pkg/transition"
	"github.com/redraftlabs/redraft/svc/billing"
)

const maxWebhookBody = 1 << 20

// BillingHandlers serves webhook ingestion and self-service billing.
type BillingHandlers struct {
	svc *billing.Service
	log *slog.Logger
}

func NewBillingHandlers(svc *billing.Service, log *slog.Logger) *BillingHandlers {
	if log == nil {
		log = slog.Default()
	}
	return &BillingHandlers{svc: svc, log: log}
}

// HandleWebhook ingests one provider event. 400 covers bad signatures
// and malformed payloads only; events the reconciler declines to apply
// are acknowledged so the provider does not retry them forever.
func (h *BillingHandlers) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		respondError(w, http.StatusBadRequest, "unreadable body")
		return
	}

	err = h.svc.HandleWebhook(r.Context(), body, r.Header.Get("Paddle-Signature"))
	switch {
	case err == nil:
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	case errors.Is(err, billing.ErrSignatureInvalid), errors.Is(err, billing.ErrMalformedEvent):
		h.log.WarnContext(r.Context(), "webhook rejected", logger.Error(err))
		respondError(w, http.StatusBadRequest, "invalid webhook")
	default:
		h.log.ErrorContext(r.Context(), "webhook processing failed", logger.Error(err))
		respondError(w, http.StatusInternalServerError, "internal error")
	}
}

type planChangeRequest struct {
	Plan          string `json:"plan"`
	BillingPeriod string `json:"billing_period"`
}

type entryResponse struct {
	Plan          string    `json:"plan"`
	BillingPeriod string    `json:"billing_period"`
	WordBalance   int64     `json:"word_balance"`
	CycleRenewsAt time.Time `json:"cycle_renews_at,omitzero"`
	Status        string    `json:"status,omitempty"`
}

func toEntryResponse(e *ledger.Entry) entryResponse {
	return entryResponse{
		Plan:          string(e.Plan),
		BillingPeriod: string(e.BillingPeriod),
		WordBalance:   e.WordBalance,
		CycleRenewsAt: e.CycleRenewsAt,
		Status:        e.Status,
	}
}

// ChangePlan serves self-service plan changes. Transition denials
// answer 409 with the earliest legal retry time.
func (h *BillingHandlers) ChangePlan(w http.ResponseWriter, r *http.Request) {
	var req planChangeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	change := transition.Change{
		Plan:          catalog.Tier(req.Plan),
		BillingPeriod: catalog.BillingPeriod(req.BillingPeriod),
	}

	entry, err := h.svc.ChangePlan(r.Context(), userFrom(r), change)
	var denied *billing.PlanChangeDeniedError
	switch {
	case err == nil:
		respondJSON(w, http.StatusOK, toEntryResponse(entry))
	case errors.As(err, &denied):
		resp := errorResponse{Error: deniedMessage(denied.Reason)}
		if !denied.RetryAt.IsZero() {
			resp.RetryAt = denied.RetryAt.UTC().Format(time.RFC3339)
		}
		respondJSON(w, http.StatusConflict, resp)
	case errors.Is(err, ledger.ErrEntryNotFound):
		respondError(w, http.StatusNotFound, "subscriber not found")
	default:
		h.log.ErrorContext(r.Context(), "plan change failed", logger.UserID(userFrom(r)), logger.Error(err))
		respondError(w, http.StatusInternalServerError, "internal error")
	}
}

func deniedMessage(reason error) string {
	switch {
	case errors.Is(reason, transition.ErrDowngradeBlocked):
		return "downgrades take effect at the end of the current billing cycle"
	case errors.Is(reason, transition.ErrPeriodLocked):
		return "billing period changes take effect at the next renewal"
	default:
		return "plan change not allowed"
	}
}

// PortalSession answers a customer portal URL, 502 when the provider
// cannot produce one.
func (h *BillingHandlers) PortalSession(w http.ResponseWriter, r *http.Request) {
	url, err := h.svc.PortalSession(r.Context(), userFrom(r))
	switch {
	case err == nil:
		respondJSON(w, http.StatusOK, map[string]string{"url": url})
	case errors.Is(err, ledger.ErrEntryNotFound):
		respondError(w, http.StatusNotFound, "subscriber not found")
	case errors.Is(err, billing.ErrPortalUnavailable):
		respondError(w, http.StatusBadGateway, "customer portal unavailable")
	default:
		h.log.ErrorContext(r.Context(), "portal session failed", logger.UserID(userFrom(r)), logger.Error(err))
		respondError(w, http.StatusInternalServerError, "internal error")
	}
}
