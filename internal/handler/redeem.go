package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	apperrors "github.com/reportlens/securelink-server-go/internal/errors"
	"github.com/reportlens/securelink-server-go/internal/service"
	"github.com/reportlens/securelink-server-go/internal/util"
)

// RedeemHandler is the public redemption surface. The credential id is
// the path segment of the access URL printed in fulfillment emails and
// QR codes.
type RedeemHandler struct {
	gate *service.RedemptionGate
}

func NewRedeemHandler(gate *service.RedemptionGate) *RedeemHandler {
	return &RedeemHandler{gate: gate}
}

func (h *RedeemHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/{credentialID}", h.Redeem)
	return r
}

// POST /r/{credentialID}
func (h *RedeemHandler) Redeem(w http.ResponseWriter, r *http.Request) {
	credentialID := chi.URLParam(r, "credentialID")
	if credentialID == "" {
		writeError(w, apperrors.NotFound("Link"))
		return
	}

	result, err := h.gate.Redeem(r.Context(), credentialID)
	if err != nil {
		if !apperrors.IsAppError(err) {
			log.Error().Err(err).
				Str("credentialId", util.MaskCredentialID(credentialID)).
				Msg("redemption failed")
		}
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}
