package handler

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	reconciliationapp "github.com/stayledger/backend/internal/application/reconciliation"
	"github.com/stayledger/backend/internal/domain/shared/valueobject"
)

// ReconcileRequest carries expected payouts and received amounts. Amounts
// may be JSON numbers or decimal strings.
type ReconcileRequest struct {
	ReservationPayouts []decimal.Decimal `json:"reservation_payouts"`
	TransactionAmounts []decimal.Decimal `json:"transaction_amounts"`
	Currency           string            `json:"currency" binding:"omitempty,len=3"`
}

// ReconciliationHandler exposes payout reconciliation
type ReconciliationHandler struct {
	BaseHandler
	service  *reconciliationapp.Service
	currency valueobject.Currency
}

// NewReconciliationHandler creates a new ReconciliationHandler. Requests
// without a currency are read in currency.
func NewReconciliationHandler(service *reconciliationapp.Service, currency valueobject.Currency) *ReconciliationHandler {
	if currency == "" {
		currency = valueobject.DefaultCurrency
	}
	return &ReconciliationHandler{service: service, currency: currency}
}

// Reconcile answers whether the payouts were paid by the transactions.
// can_reconcile=false is a normal answer, not an error.
// POST /reconciliations
func (h *ReconciliationHandler) Reconcile(c *gin.Context) {
	var req ReconcileRequest
	if !h.BindJSON(c, &req) {
		return
	}
	currency := h.currency
	if req.Currency != "" {
		currency = valueobject.Currency(strings.ToUpper(req.Currency))
	}

	res, err := h.service.Reconcile(c.Request.Context(),
		toMoney(req.ReservationPayouts, currency),
		toMoney(req.TransactionAmounts, currency),
	)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, res)
}

// ReconcileStatement compares a month's payouts with bank transactions.
// An empty selection covers the whole month.
// POST /listings/:listing_id/statements/:year/:month/reconcile
func (h *ReconciliationHandler) ReconcileStatement(c *gin.Context) {
	var uri PeriodURI
	if !h.BindURI(c, &uri) {
		return
	}
	sel, _, ok := bindSelection(c)
	if !ok {
		return
	}

	res, err := h.service.ReconcileStatement(c.Request.Context(), uri.ListingID, uri.Month, uri.Year, sel)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, res)
}

func toMoney(amounts []decimal.Decimal, currency valueobject.Currency) []valueobject.Money {
	out := make([]valueobject.Money, 0, len(amounts))
	for _, a := range amounts {
		m, _ := valueobject.NewMoney(a, currency)
		out = append(out, m)
	}
	return out
}
