package handler

import (
	"github.com/stayledger/backend/internal/interfaces/http/router"
)

// RevenueRoutes groups the revenue endpoints
func RevenueRoutes(h *RevenueHandler) *router.DomainGroup {
	g := router.NewDomainGroup("revenue", "")
	g.POST("/revenue/decompose", h.Decompose)
	g.POST("/revenue/decompose/batch", h.DecomposeBatch)
	g.GET("/reservations/:reservation_id/revenue", h.GetReservationRevenue)
	return g
}

// StatementRoutes groups the statement and statement reconciliation
// endpoints, which share the /listings/:listing_id/statements prefix
func StatementRoutes(h *StatementHandler, r *ReconciliationHandler) *router.DomainGroup {
	g := router.NewDomainGroup("statement", "")
	g.POST("/statements/build", h.Build)

	listing := g.Group("listing-statements", "/listings/:listing_id/statements")
	listing.GET("", h.ListLocked)
	listing.GET("/:year/:month", h.Get)
	listing.POST("/:year/:month/lock", h.Lock)
	listing.GET("/:year/:month/export", h.Export)
	listing.POST("/:year/:month/reconcile", r.ReconcileStatement)
	return g
}

// ReconciliationRoutes groups the stand-alone reconciliation endpoint
func ReconciliationRoutes(h *ReconciliationHandler) *router.DomainGroup {
	g := router.NewDomainGroup("reconciliation", "/reconciliations")
	g.POST("", h.Reconcile)
	return g
}
