package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	apperrors "github.com/reportlens/securelink-server-go/internal/errors"
	"github.com/reportlens/securelink-server-go/internal/service"
)

// PartnerHandler exposes the partner registry and the per-pool
// inventory query.
type PartnerHandler struct {
	partners  *service.PartnerService
	allocator *service.InventoryAllocator
}

func NewPartnerHandler(partners *service.PartnerService, allocator *service.InventoryAllocator) *PartnerHandler {
	return &PartnerHandler{partners: partners, allocator: allocator}
}

func (h *PartnerHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/", h.Create)
	r.Get("/", h.List)
	r.Get("/{partnerID}", h.Get)
	r.Get("/{partnerID}/inventory", h.Inventory)
	return r
}

type createPartnerRequest struct {
	Name       string `json:"name"`
	BrandLabel string `json:"brandLabel"`
}

// POST /v1/partners
func (h *PartnerHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createPartnerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperrors.ValidationError("Invalid JSON body"))
		return
	}

	partner, err := h.partners.Create(r.Context(), req.Name, req.BrandLabel)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, partner)
}

// GET /v1/partners
func (h *PartnerHandler) List(w http.ResponseWriter, r *http.Request) {
	partners, err := h.partners.List(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("list partners")
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"partners": partners})
}

// GET /v1/partners/{partnerID}
func (h *PartnerHandler) Get(w http.ResponseWriter, r *http.Request) {
	partner, err := h.partners.Get(r.Context(), chi.URLParam(r, "partnerID"))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, partner)
}

// GET /v1/partners/{partnerID}/inventory
//
// Purchase-flow pre-validation: answers "can this purchase even be
// fulfilled" without committing anything.
func (h *PartnerHandler) Inventory(w http.ResponseWriter, r *http.Request) {
	partnerID := chi.URLParam(r, "partnerID")

	if _, err := h.partners.Get(r.Context(), partnerID); err != nil {
		writeError(w, err)
		return
	}

	summary, err := h.allocator.Availability(r.Context(), partnerID)
	if err != nil {
		log.Error().Err(err).Str("partnerId", partnerID).Msg("inventory query failed")
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, summary)
}
