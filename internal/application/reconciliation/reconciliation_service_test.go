package reconciliation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/stayledger/backend/internal/domain/reconciliation"
	"github.com/stayledger/backend/internal/domain/shared"
	"github.com/stayledger/backend/internal/domain/shared/valueobject"
)

// MockStatementReconciler is a mock implementation of StatementReconciler
type MockStatementReconciler struct {
	mock.Mock
}

func (m *MockStatementReconciler) Reconcile(ctx context.Context, listingID string, month, year int,
	sel reconciliation.TransactionSelection) (reconciliation.Result, error) {
	args := m.Called(ctx, listingID, month, year, sel)
	return args.Get(0).(reconciliation.Result), args.Error(1)
}

func usd(values ...string) []valueobject.Money {
	out := make([]valueobject.Money, len(values))
	for i, v := range values {
		out[i] = valueobject.MustMoney(v, valueobject.USD)
	}
	return out
}

func TestService_Reconcile(t *testing.T) {
	svc := NewService(nil, valueobject.USD, nil)
	ctx := context.Background()

	tests := []struct {
		name         string
		payouts      []valueobject.Money
		transactions []valueobject.Money
		canReconcile bool
		gap          string
	}{
		{"empty payouts", nil, usd("10"), false, ""},
		{"exact", usd("100"), usd("100"), true, "0"},
		{"sub-cent gap", usd("100"), usd("99.995"), true, "0.005"},
		{"one cent", usd("100"), usd("99.99"), false, "0.01"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := svc.Reconcile(ctx, tt.payouts, tt.transactions)
			require.NoError(t, err)
			assert.Equal(t, tt.canReconcile, res.CanReconcile)
			if tt.gap == "" {
				assert.Nil(t, res.GapToReconcile)
				return
			}
			require.NotNil(t, res.GapToReconcile)
			assert.True(t, res.GapToReconcile.Amount().Equal(decimal.RequireFromString(tt.gap)),
				"gap %s", res.GapToReconcile.Amount())
		})
	}

	t.Run("currency mismatch", func(t *testing.T) {
		_, err := svc.Reconcile(ctx, usd("100"), []valueobject.Money{valueobject.MustMoney("100", "EUR")})
		assert.True(t, shared.IsCode(err, shared.CodeInvalidInput))
	})
}

func TestService_ReconcileStatement(t *testing.T) {
	ctx := context.Background()
	from := time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, time.March, 15, 0, 0, 0, 0, time.UTC)

	t.Run("delegates and converts", func(t *testing.T) {
		statements := new(MockStatementReconciler)
		sel := reconciliation.TransactionSelection{Vendor: "Airbnb", From: &from, To: &to}
		statements.On("Reconcile", ctx, "listing-1", 3, 2024, sel).Return(
			reconciliation.Reconcile([]decimal.Decimal{decimal.NewFromInt(50)}, []decimal.Decimal{decimal.NewFromInt(50)}), nil)

		res, err := NewService(statements, valueobject.USD, nil).ReconcileStatement(ctx, "listing-1", 3, 2024, sel)
		require.NoError(t, err)
		assert.True(t, res.CanReconcile)
		require.NotNil(t, res.SumReservations)
		assert.Equal(t, valueobject.USD, res.SumReservations.Currency())
		statements.AssertExpectations(t)
	})

	t.Run("invalid selection", func(t *testing.T) {
		statements := new(MockStatementReconciler)
		svc := NewService(statements, valueobject.USD, nil)

		_, err := svc.ReconcileStatement(ctx, "listing-1", 3, 2024, reconciliation.TransactionSelection{From: &to, To: &from})
		assert.True(t, shared.IsCode(err, shared.CodeInvalidInput))

		_, err = svc.ReconcileStatement(ctx, "listing-1", 3, 2024, reconciliation.TransactionSelection{Sign: "SIDEWAYS"})
		assert.True(t, shared.IsCode(err, shared.CodeInvalidInput))
		statements.AssertNotCalled(t, "Reconcile", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("statement errors pass through", func(t *testing.T) {
		statements := new(MockStatementReconciler)
		statements.On("Reconcile", ctx, "listing-1", 3, 2024, reconciliation.TransactionSelection{}).
			Return(reconciliation.Result{}, errors.New("db down"))

		_, err := NewService(statements, valueobject.USD, nil).ReconcileStatement(ctx, "listing-1", 3, 2024, reconciliation.TransactionSelection{})
		assert.EqualError(t, err, "db down")
	})

	t.Run("not configured", func(t *testing.T) {
		_, err := NewService(nil, "", nil).ReconcileStatement(ctx, "listing-1", 3, 2024, reconciliation.TransactionSelection{})
		assert.True(t, shared.IsCode(err, shared.CodeInvalidState))
	})
}
