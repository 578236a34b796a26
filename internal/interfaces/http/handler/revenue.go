package handler

import (
	"github.com/gin-gonic/gin"

	revenueapp "github.com/stayledger/backend/internal/application/revenue"
	"github.com/stayledger/backend/internal/domain/revenue"
)

// DecomposeRequest carries reservation facts and the listing's business model
type DecomposeRequest struct {
	Facts         *revenue.RawReservationFacts `json:"facts" binding:"required"`
	BusinessModel *revenue.BusinessModel       `json:"business_model" binding:"required"`
}

// DecomposeBatchRequest lists reservations to load and decompose
type DecomposeBatchRequest struct {
	ReservationIDs []string `json:"reservation_ids" binding:"required,min=1,max=500,dive,required"`
}

// ReservationURI identifies one reservation
type ReservationURI struct {
	ReservationID string `uri:"reservation_id" binding:"required"`
}

// RevenueHandler exposes reservation revenue decomposition
type RevenueHandler struct {
	BaseHandler
	service *revenueapp.Service
}

// NewRevenueHandler creates a new RevenueHandler
func NewRevenueHandler(service *revenueapp.Service) *RevenueHandler {
	return &RevenueHandler{service: service}
}

// Decompose splits the reservation described in the body
// POST /revenue/decompose
func (h *RevenueHandler) Decompose(c *gin.Context) {
	var req DecomposeRequest
	if !h.BindJSON(c, &req) {
		return
	}

	rev, err := h.service.Decompose(c.Request.Context(), *req.Facts, *req.BusinessModel)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, rev)
}

// DecomposeBatch decomposes stored reservations. Reservations that fail
// are listed in failures; the request itself still succeeds.
// POST /revenue/decompose/batch
func (h *RevenueHandler) DecomposeBatch(c *gin.Context) {
	var req DecomposeBatchRequest
	if !h.BindJSON(c, &req) {
		return
	}

	result, err := h.service.DecomposeReservations(c.Request.Context(), req.ReservationIDs)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

// GetReservationRevenue decomposes one stored reservation
// GET /reservations/:reservation_id/revenue
func (h *RevenueHandler) GetReservationRevenue(c *gin.Context) {
	var uri ReservationURI
	if !h.BindURI(c, &uri) {
		return
	}

	rev, err := h.service.DecomposeReservation(c.Request.Context(), uri.ReservationID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, rev)
}
