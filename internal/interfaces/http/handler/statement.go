package handler

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	statementapp "github.com/stayledger/backend/internal/application/statement"
	"github.com/stayledger/backend/internal/domain/reconciliation"
	"github.com/stayledger/backend/internal/domain/revenue"
	"github.com/stayledger/backend/internal/domain/shared"
	"github.com/stayledger/backend/internal/domain/statement"
	"github.com/stayledger/backend/internal/infrastructure/logger"
	"github.com/stayledger/backend/internal/interfaces/http/middleware"
)

// PeriodURI identifies a listing's statement month
type PeriodURI struct {
	ListingID string `uri:"listing_id" binding:"required"`
	Year      int    `uri:"year" binding:"required,min=1900,max=9999"`
	Month     int    `uri:"month" binding:"required,min=1,max=12"`
}

// ListingURI identifies a listing
type ListingURI struct {
	ListingID string `uri:"listing_id" binding:"required"`
}

// BuildStatementRequest carries already allocated reservations and
// expenses to aggregate
type BuildStatementRequest struct {
	ListingID    string                        `json:"listing_id" binding:"required"`
	Month        int                           `json:"month" binding:"required,min=1,max=12"`
	Year         int                           `json:"year" binding:"required,min=1900,max=9999"`
	Reservations []*revenue.ReservationRevenue `json:"reservations"`
	Expenses     []statement.ExpenseLine       `json:"expenses"`
}

// SelectionRequest optionally narrows the bank transactions used by a
// reconciled lock or a reconciliation
type SelectionRequest struct {
	Selection *reconciliation.TransactionSelection `json:"selection"`
}

// ExportQuery selects the export format
type ExportQuery struct {
	Format string `form:"format" binding:"omitempty,oneof=xlsx pdf"`
}

// StatementHandler exposes owner statements
type StatementHandler struct {
	BaseHandler
	service *statementapp.Service
}

// NewStatementHandler creates a new StatementHandler
func NewStatementHandler(service *statementapp.Service) *StatementHandler {
	return &StatementHandler{service: service}
}

// Build aggregates the given reservations into a draft without storing it
// POST /statements/build
func (h *StatementHandler) Build(c *gin.Context) {
	var req BuildStatementRequest
	if !h.BindJSON(c, &req) {
		return
	}

	stmt, err := h.service.BuildStatement(c.Request.Context(), req.ListingID, req.Month, req.Year,
		req.Reservations, req.Expenses)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, stmt)
}

// Get returns the locked statement of a month, or a fresh draft
// GET /listings/:listing_id/statements/:year/:month
func (h *StatementHandler) Get(c *gin.Context) {
	var uri PeriodURI
	if !h.BindURI(c, &uri) {
		return
	}

	stmt, err := h.service.GetStatement(c.Request.Context(), uri.ListingID, uri.Month, uri.Year)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, stmt)
}

// ListLocked returns the listing's locked statements, oldest first
// GET /listings/:listing_id/statements
func (h *StatementHandler) ListLocked(c *gin.Context) {
	var uri ListingURI
	if !h.BindURI(c, &uri) {
		return
	}

	stmts, err := h.service.ListLocked(c.Request.Context(), uri.ListingID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, stmts)
}

// Lock freezes a month. With a selection in the body the lock only happens
// when the month's payouts reconcile with the selected transactions.
// POST /listings/:listing_id/statements/:year/:month/lock
func (h *StatementHandler) Lock(c *gin.Context) {
	var uri PeriodURI
	if !h.BindURI(c, &uri) {
		return
	}
	sel, reconciled, ok := bindSelection(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	var (
		stmt *statement.OwnerStatement
		err  error
	)
	if reconciled {
		stmt, err = h.service.LockReconciled(ctx, uri.ListingID, uri.Month, uri.Year, sel)
	} else {
		stmt, err = h.service.LockStatement(ctx, uri.ListingID, uri.Month, uri.Year)
	}
	if err != nil {
		if shared.IsCode(err, shared.CodeAlreadyLocked) {
			logger.GetGinLogger(c).Info("Statement already locked",
				zap.Int("year", uri.Year), zap.Int("month", uri.Month))
		}
		h.HandleError(c, err)
		return
	}
	h.Created(c, stmt)
}

// Export downloads the month's statement as xlsx (default) or pdf
// GET /listings/:listing_id/statements/:year/:month/export
func (h *StatementHandler) Export(c *gin.Context) {
	var uri PeriodURI
	if !h.BindURI(c, &uri) {
		return
	}
	var query ExportQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		h.BadRequest(c, "format must be xlsx or pdf")
		return
	}
	if query.Format == "" {
		query.Format = "xlsx"
	}

	file, err := h.service.Export(c.Request.Context(), uri.ListingID, uri.Month, uri.Year, query.Format)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", file.Name))
	c.Data(http.StatusOK, file.ContentType, file.Data)
}

// bindSelection reads an optional {"selection": ...} body. present is
// false when the body or its selection is missing; ok is false when a 400
// has already been written.
func bindSelection(c *gin.Context) (sel reconciliation.TransactionSelection, present, ok bool) {
	if c.Request.ContentLength == 0 {
		return sel, false, true
	}
	var req SelectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		if errors.Is(err, io.EOF) {
			return sel, false, true
		}
		middleware.HandleBindError(c, err)
		return sel, false, false
	}
	if req.Selection == nil {
		return sel, false, true
	}
	sel = *req.Selection
	sel.Vendor = strings.TrimSpace(sel.Vendor)
	return sel, true, true
}
