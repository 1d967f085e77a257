package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	apperrors "github.com/reportlens/securelink-server-go/internal/errors"
	"github.com/reportlens/securelink-server-go/internal/model"
	"github.com/reportlens/securelink-server-go/internal/service"
)

// WebhookHandler receives payment-confirmed events from the payment
// collaborator and drives the purchase orchestrator.
type WebhookHandler struct {
	orchestrator *service.PurchaseOrchestrator
}

func NewWebhookHandler(orchestrator *service.PurchaseOrchestrator) *WebhookHandler {
	return &WebhookHandler{orchestrator: orchestrator}
}

func (h *WebhookHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/payment", h.PaymentConfirmed)
	return r
}

// POST /webhooks/payment
//
// A replayed event returns the originally-computed result with a 200;
// the payment collaborator retries webhooks and must never see a
// conflict for an event that was in fact fulfilled.
func (h *WebhookHandler) PaymentConfirmed(w http.ResponseWriter, r *http.Request) {
	var event model.PaymentEvent
	if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
		writeError(w, apperrors.ValidationError("Invalid JSON body"))
		return
	}

	result, err := h.orchestrator.Fulfill(r.Context(), event)
	if err != nil {
		if appErr, ok := apperrors.AsAppError(err); ok {
			log.Warn().
				Str("paymentEventId", event.PaymentEventID).
				Str("code", string(appErr.Code)).
				Msg("payment fulfillment rejected")
			writeError(w, appErr)
			return
		}
		log.Error().Err(err).
			Str("paymentEventId", event.PaymentEventID).
			Msg("payment fulfillment failed")
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}
