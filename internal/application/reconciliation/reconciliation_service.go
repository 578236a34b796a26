package reconciliation

import (
	"context"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/stayledger/backend/internal/domain/reconciliation"
	"github.com/stayledger/backend/internal/domain/shared"
	"github.com/stayledger/backend/internal/domain/shared/valueobject"
	"github.com/stayledger/backend/internal/infrastructure/metrics"
)

// StatementReconciler compares a statement period with bank transactions
type StatementReconciler interface {
	Reconcile(ctx context.Context, listingID string, month, year int,
		sel reconciliation.TransactionSelection) (reconciliation.Result, error)
}

// Service answers whether expected payouts were paid
type Service struct {
	statements StatementReconciler
	currency   valueobject.Currency
	logger     *zap.Logger
}

// NewService creates a reconciliation Service. statements may be nil when
// statement reconciliation is not offered.
func NewService(statements StatementReconciler, currency valueobject.Currency, logger *zap.Logger) *Service {
	if currency == "" {
		currency = valueobject.DefaultCurrency
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{statements: statements, currency: currency, logger: logger}
}

// Reconcile compares reservation payouts with transaction amounts. Every
// amount must be in the service currency.
func (s *Service) Reconcile(
	ctx context.Context,
	payouts, transactions []valueobject.Money,
) (reconciliation.MoneyResult, error) {
	p, err := s.amounts(payouts)
	if err != nil {
		return reconciliation.MoneyResult{}, err
	}
	t, err := s.amounts(transactions)
	if err != nil {
		return reconciliation.MoneyResult{}, err
	}

	res := reconciliation.Reconcile(p, t)
	metrics.IncReconcile(res.Outcome())
	s.logger.Debug("reconciliation",
		zap.Int("payouts", len(p)),
		zap.Int("transactions", len(t)),
		zap.String("outcome", res.Outcome()),
	)
	return res.InCurrency(s.currency), nil
}

// ReconcileStatement compares a statement period's payouts with the
// selected bank transactions.
func (s *Service) ReconcileStatement(
	ctx context.Context,
	listingID string,
	month, year int,
	sel reconciliation.TransactionSelection,
) (reconciliation.MoneyResult, error) {
	if s.statements == nil {
		return reconciliation.MoneyResult{}, shared.NewDomainError(shared.CodeInvalidState, "statement reconciliation is not configured")
	}
	if !sel.Sign.IsValid() {
		return reconciliation.MoneyResult{}, shared.NewDomainErrorf(shared.CodeInvalidInput, "unknown amount sign %q", sel.Sign)
	}
	if sel.From != nil && sel.To != nil && sel.To.Before(*sel.From) {
		return reconciliation.MoneyResult{}, shared.NewDomainError(shared.CodeInvalidInput, "selection ends before it starts")
	}
	res, err := s.statements.Reconcile(ctx, listingID, month, year, sel)
	if err != nil {
		return reconciliation.MoneyResult{}, err
	}
	return res.InCurrency(s.currency), nil
}

func (s *Service) amounts(values []valueobject.Money) ([]decimal.Decimal, error) {
	out := make([]decimal.Decimal, 0, len(values))
	for _, v := range values {
		if v.Currency() != s.currency {
			return nil, shared.NewDomainErrorf(shared.CodeInvalidInput,
				"amount in %s cannot be reconciled in %s", v.Currency(), s.currency)
		}
		out = append(out, v.Amount())
	}
	return out, nil
}
