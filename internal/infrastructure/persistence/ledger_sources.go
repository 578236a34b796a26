package persistence

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/stayledger/backend/internal/domain/reconciliation"
	"github.com/stayledger/backend/internal/domain/revenue"
	"github.com/stayledger/backend/internal/domain/statement"
	"github.com/stayledger/backend/internal/infrastructure/persistence/models"
)

// GormReservationSource reads reservations from the property management
// database
type GormReservationSource struct {
	db *gorm.DB
}

// NewGormReservationSource creates a new GormReservationSource
func NewGormReservationSource(db *gorm.DB) *GormReservationSource {
	return &GormReservationSource{db: db}
}

// GetReservation returns nil, nil when the reservation does not exist
func (s *GormReservationSource) GetReservation(ctx context.Context, reservationID string) (*revenue.RawReservationFacts, error) {
	var model models.ReservationModel
	if err := s.db.WithContext(ctx).First(&model, "id = ?", reservationID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// ListCheckingOut returns the non-cancelled reservations of a listing whose
// check-out falls in [from, to)
func (s *GormReservationSource) ListCheckingOut(
	ctx context.Context,
	listingID string,
	from, to time.Time,
) ([]revenue.RawReservationFacts, error) {
	var reservationModels []models.ReservationModel
	if err := s.db.WithContext(ctx).
		Where("listing_id = ? AND check_out >= ? AND check_out < ? AND status <> ?",
			listingID, from, to, models.ReservationStatusCancelled).
		Order("check_out ASC, id ASC").
		Find(&reservationModels).Error; err != nil {
		return nil, err
	}
	facts := make([]revenue.RawReservationFacts, len(reservationModels))
	for i := range reservationModels {
		facts[i] = *reservationModels[i].ToDomain()
	}
	return facts, nil
}

// GormBusinessModelSource reads and stores listing business models
type GormBusinessModelSource struct {
	db *gorm.DB
}

// NewGormBusinessModelSource creates a new GormBusinessModelSource
func NewGormBusinessModelSource(db *gorm.DB) *GormBusinessModelSource {
	return &GormBusinessModelSource{db: db}
}

// GetBusinessModel returns nil, nil when the listing has no model
func (s *GormBusinessModelSource) GetBusinessModel(ctx context.Context, listingID string) (*revenue.BusinessModel, error) {
	var model models.BusinessModelModel
	if err := s.db.WithContext(ctx).First(&model, "listing_id = ?", listingID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// SaveBusinessModel validates and upserts a listing's business model
func (s *GormBusinessModelSource) SaveBusinessModel(ctx context.Context, bm *revenue.BusinessModel) error {
	if err := bm.Validate(); err != nil {
		return err
	}
	var model models.BusinessModelModel
	model.FromDomain(bm)
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "listing_id"}}, UpdateAll: true}).
		Create(&model).Error
}

// GormExpenseSource reads listing expenses
type GormExpenseSource struct {
	db *gorm.DB
}

// NewGormExpenseSource creates a new GormExpenseSource
func NewGormExpenseSource(db *gorm.DB) *GormExpenseSource {
	return &GormExpenseSource{db: db}
}

// GetExpensesForPeriod returns the expenses dated inside the period
func (s *GormExpenseSource) GetExpensesForPeriod(
	ctx context.Context,
	listingID string,
	period statement.Period,
) ([]statement.ExpenseLine, error) {
	var expenseModels []models.ExpenseModel
	if err := s.db.WithContext(ctx).
		Where("listing_id = ? AND date >= ? AND date < ?", listingID, period.Start(), period.End()).
		Order("date ASC, id ASC").
		Find(&expenseModels).Error; err != nil {
		return nil, err
	}
	lines := make([]statement.ExpenseLine, len(expenseModels))
	for i := range expenseModels {
		lines[i] = expenseModels[i].ToDomain()
	}
	return lines, nil
}

// GormBankTransactionSource reads the operating account's transactions
type GormBankTransactionSource struct {
	db *gorm.DB
}

// NewGormBankTransactionSource creates a new GormBankTransactionSource
func NewGormBankTransactionSource(db *gorm.DB) *GormBankTransactionSource {
	return &GormBankTransactionSource{db: db}
}

// GetBankTransactions pushes the selection down to SQL. Explicit IDs
// replace every other filter.
func (s *GormBankTransactionSource) GetBankTransactions(
	ctx context.Context,
	listingID string,
	sel reconciliation.TransactionSelection,
) ([]reconciliation.BankTransaction, error) {
	query := s.db.WithContext(ctx).Where("listing_id = ?", listingID)
	if len(sel.IDs) > 0 {
		query = query.Where("id IN ?", sel.IDs)
	} else {
		if vendor := strings.TrimSpace(sel.Vendor); vendor != "" {
			query = query.Where("LOWER(TRIM(vendor)) = ?", strings.ToLower(vendor))
		}
		if sel.From != nil {
			query = query.Where("date >= ?", startOfDay(*sel.From))
		}
		if sel.To != nil {
			query = query.Where("date < ?", startOfDay(*sel.To).AddDate(0, 0, 1))
		}
		switch sel.Sign {
		case reconciliation.SignCredit:
			query = query.Where("amount > 0")
		case reconciliation.SignDebit:
			query = query.Where("amount < 0")
		}
	}

	var txModels []models.BankTransactionModel
	if err := query.Order("date ASC, id ASC").Find(&txModels).Error; err != nil {
		return nil, err
	}
	txs := make([]reconciliation.BankTransaction, len(txModels))
	for i := range txModels {
		txs[i] = txModels[i].ToDomain()
	}
	return txs, nil
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
