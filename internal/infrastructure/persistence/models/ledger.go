package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/stayledger/backend/internal/domain/reconciliation"
	"github.com/stayledger/backend/internal/domain/revenue"
	"github.com/stayledger/backend/internal/domain/shared/valueobject"
	"github.com/stayledger/backend/internal/domain/statement"
)

// ReservationStatusCancelled marks bookings that never produce revenue
const ReservationStatusCancelled = "CANCELLED"

// ReservationModel is a booking as the property management app stores it
type ReservationModel struct {
	ID                    string            `gorm:"type:varchar(64);primaryKey"`
	ListingID             string            `gorm:"type:varchar(64);not null;index:idx_reservations_listing_checkout,priority:1"`
	Channel               string            `gorm:"type:varchar(32);not null"`
	Status                string            `gorm:"type:varchar(20);not null;default:'CONFIRMED'"`
	CheckIn               time.Time         `gorm:"type:date;not null"`
	CheckOut              time.Time         `gorm:"type:date;not null;index:idx_reservations_listing_checkout,priority:2"`
	Guests                int               `gorm:"not null;default:0"`
	NightlyRate           decimal.Decimal   `gorm:"type:decimal(14,2);not null"`
	NightlyRates          []decimal.Decimal `gorm:"type:jsonb;serializer:json"`
	Fees                  []revenue.RawFee  `gorm:"type:jsonb;serializer:json"`
	DiscountAmount        *decimal.Decimal  `gorm:"type:decimal(14,2)"`
	ChannelCommissionRate decimal.Decimal   `gorm:"type:decimal(9,6);not null;default:0"`
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// TableName returns the table name for GORM
func (ReservationModel) TableName() string {
	return "reservations"
}

// ToDomain converts the row into decomposer input
func (m *ReservationModel) ToDomain() *revenue.RawReservationFacts {
	return &revenue.RawReservationFacts{
		ReservationID:         m.ID,
		ListingID:             m.ListingID,
		Channel:               revenue.ParseChannel(m.Channel),
		CheckIn:               m.CheckIn,
		CheckOut:              m.CheckOut,
		Guests:                m.Guests,
		NightlyRate:           m.NightlyRate,
		NightlyRates:          m.NightlyRates,
		Fees:                  m.Fees,
		DiscountAmount:        m.DiscountAmount,
		ChannelCommissionRate: valueobject.RatioOf(m.ChannelCommissionRate),
	}
}

// BusinessModelModel holds a listing's revenue-sharing agreement. Nested
// rules are stored as JSON documents.
type BusinessModelModel struct {
	ListingID            string                          `gorm:"type:varchar(64);primaryKey"`
	PMCShare             decimal.Decimal                 `gorm:"column:pmc_share;type:decimal(9,6);not null"`
	Deductions           revenue.Deductions              `gorm:"type:jsonb;serializer:json"`
	TaxRates             revenue.TaxRates                `gorm:"type:jsonb;serializer:json"`
	LongStayExemptNights map[revenue.TaxJurisdiction]int `gorm:"type:jsonb;serializer:json"`
	Fees                 []revenue.FeeDefinition         `gorm:"type:jsonb;serializer:json"`
	Discounts            []revenue.DiscountRule          `gorm:"type:jsonb;serializer:json"`
	CreditCardFeeRate    decimal.Decimal                 `gorm:"type:decimal(9,6);not null;default:0"`
	AirbnbRemitsTaxes    bool                            `gorm:"not null;default:false"`
	TaxDiscountedRevenue *bool
	UpdatedAt            time.Time
}

// TableName returns the table name for GORM
func (BusinessModelModel) TableName() string {
	return "business_models"
}

// ToDomain converts the row into a BusinessModel
func (m *BusinessModelModel) ToDomain() *revenue.BusinessModel {
	return &revenue.BusinessModel{
		ListingID:            m.ListingID,
		PMCShare:             valueobject.RatioOf(m.PMCShare),
		Deductions:           m.Deductions,
		TaxRates:             m.TaxRates,
		LongStayExemptNights: m.LongStayExemptNights,
		Fees:                 m.Fees,
		Discounts:            m.Discounts,
		CreditCardFeeRate:    valueobject.RatioOf(m.CreditCardFeeRate),
		AirbnbRemitsTaxes:    m.AirbnbRemitsTaxes,
		TaxDiscountedRevenue: m.TaxDiscountedRevenue,
	}
}

// FromDomain populates the row from a BusinessModel
func (m *BusinessModelModel) FromDomain(bm *revenue.BusinessModel) {
	m.ListingID = bm.ListingID
	m.PMCShare = bm.PMCShare.Decimal()
	m.Deductions = bm.Deductions
	m.TaxRates = bm.TaxRates
	m.LongStayExemptNights = bm.LongStayExemptNights
	m.Fees = bm.Fees
	m.Discounts = bm.Discounts
	m.CreditCardFeeRate = bm.CreditCardFeeRate.Decimal()
	m.AirbnbRemitsTaxes = bm.AirbnbRemitsTaxes
	m.TaxDiscountedRevenue = bm.TaxDiscountedRevenue
}

// ExpenseModel is a listing expense. ManagerShare is the fraction the
// manager bears; zero means the owner pays it all.
type ExpenseModel struct {
	ID           string          `gorm:"type:varchar(64);primaryKey"`
	ListingID    string          `gorm:"type:varchar(64);not null;index:idx_expenses_listing_date,priority:1"`
	Date         time.Time       `gorm:"type:date;not null;index:idx_expenses_listing_date,priority:2"`
	Description  string          `gorm:"type:varchar(255)"`
	Category     string          `gorm:"type:varchar(64)"`
	Amount       decimal.Decimal `gorm:"type:decimal(14,2);not null"`
	ManagerShare decimal.Decimal `gorm:"type:decimal(9,6);not null;default:0"`
	CreatedAt    time.Time
}

// TableName returns the table name for GORM
func (ExpenseModel) TableName() string {
	return "expenses"
}

// ToDomain converts the row into a split expense line
func (m *ExpenseModel) ToDomain() statement.ExpenseLine {
	return statement.ExpenseLine{
		ID:          m.ID,
		Date:        m.Date,
		Description: m.Description,
		Category:    m.Category,
		Value:       valueobject.NewSplit(m.Amount, valueobject.RatioOf(m.ManagerShare)),
	}
}

// BankTransactionModel is a line of the operating account
type BankTransactionModel struct {
	ID          string          `gorm:"type:varchar(64);primaryKey"`
	ListingID   string          `gorm:"type:varchar(64);not null;index:idx_bank_transactions_listing_date,priority:1"`
	Amount      decimal.Decimal `gorm:"type:decimal(14,4);not null"`
	Date        time.Time       `gorm:"type:date;not null;index:idx_bank_transactions_listing_date,priority:2"`
	Vendor      string          `gorm:"type:varchar(128)"`
	Description string          `gorm:"type:varchar(255)"`
	CreatedAt   time.Time
}

// TableName returns the table name for GORM
func (BankTransactionModel) TableName() string {
	return "bank_transactions"
}

// ToDomain converts the row into a BankTransaction
func (m *BankTransactionModel) ToDomain() reconciliation.BankTransaction {
	return reconciliation.BankTransaction{
		ID:          m.ID,
		Amount:      m.Amount,
		Date:        m.Date,
		Vendor:      m.Vendor,
		Description: m.Description,
	}
}

// StatementLockModel is a frozen owner statement. The unique index on
// (listing_id, year, month) is the authoritative at-most-once guard.
type StatementLockModel struct {
	ID               uuid.UUID       `gorm:"type:uuid;primaryKey"`
	ListingID        string          `gorm:"type:varchar(64);not null;uniqueIndex:idx_statement_locks_period,priority:1"`
	Year             int             `gorm:"not null;uniqueIndex:idx_statement_locks_period,priority:2"`
	Month            int             `gorm:"not null;uniqueIndex:idx_statement_locks_period,priority:3"`
	Currency         string          `gorm:"type:varchar(3);not null"`
	ReservationCount int             `gorm:"not null"`
	NetRevenue       decimal.Decimal `gorm:"type:decimal(14,2);not null"`
	OwnerNetRevenue  decimal.Decimal `gorm:"type:decimal(14,2);not null"`
	Payout           decimal.Decimal `gorm:"type:decimal(14,2);not null"`
	SnapshotHash     string          `gorm:"type:char(64);not null"`
	Snapshot         string          `gorm:"type:jsonb;not null"`
	LockedAt         time.Time       `gorm:"not null"`
	CreatedAt        time.Time
}

// TableName returns the table name for GORM
func (StatementLockModel) TableName() string {
	return "statement_locks"
}

// FromDomain freezes a locked statement into a row
func (m *StatementLockModel) FromDomain(s *statement.OwnerStatement) error {
	if !s.IsLocked() || s.LockedAt == nil {
		return fmt.Errorf("statement for listing %s %s is not locked", s.ListingID, s.Period)
	}
	snapshot, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshal statement snapshot: %w", err)
	}
	m.ID = s.ID
	m.ListingID = s.ListingID
	m.Year = s.Period.Year
	m.Month = int(s.Period.Month)
	m.Currency = string(s.Currency)
	m.ReservationCount = s.ReservationCount
	m.NetRevenue = s.Totals.NetRevenue.Amount()
	m.OwnerNetRevenue = s.Totals.NetRevenue.OwnerAmount()
	m.Payout = s.Totals.Payout.Amount()
	m.SnapshotHash = s.SnapshotHash
	m.Snapshot = string(snapshot)
	m.LockedAt = *s.LockedAt
	return nil
}

// ToDomain restores the frozen statement
func (m *StatementLockModel) ToDomain() (*statement.OwnerStatement, error) {
	var s statement.OwnerStatement
	if err := json.Unmarshal([]byte(m.Snapshot), &s); err != nil {
		return nil, fmt.Errorf("unmarshal statement snapshot %s: %w", m.ID, err)
	}
	if s.SnapshotHash == "" {
		s.SnapshotHash = m.SnapshotHash
	}
	if s.SnapshotHash != m.SnapshotHash {
		return nil, fmt.Errorf("%w: stored hash differs from snapshot", statement.ErrSnapshotCorrupted)
	}
	return &s, nil
}

// All returns every model the engine reads or writes, for AutoMigrate in
// tests.
func All() []any {
	return []any{
		&ReservationModel{},
		&BusinessModelModel{},
		&ExpenseModel{},
		&BankTransactionModel{},
		&StatementLockModel{},
	}
}
