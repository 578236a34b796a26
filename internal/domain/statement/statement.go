package statement

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/stayledger/backend/internal/domain/revenue"
	"github.com/stayledger/backend/internal/domain/shared"
	"github.com/stayledger/backend/internal/domain/shared/valueobject"
)

// Status is the lifecycle state of an owner statement
type Status string

const (
	StatusDraft  Status = "DRAFT"
	StatusLocked Status = "LOCKED"
)

// IsValid checks if the status is known
func (s Status) IsValid() bool {
	return s == StatusDraft || s == StatusLocked
}

// String returns the string representation of Status
func (s Status) String() string {
	return string(s)
}

// ErrSnapshotCorrupted is returned when a locked statement no longer matches
// the hash it was frozen with.
var ErrSnapshotCorrupted = errors.New("statement snapshot hash mismatch")

// ReservationFailure records a reservation left out of a statement or batch
type ReservationFailure struct {
	ReservationID string `json:"reservation_id"`
	Code          string `json:"code"`
	Message       string `json:"message"`
}

// FailureFromError converts an error into a ReservationFailure
func FailureFromError(reservationID string, err error) ReservationFailure {
	var de *shared.DomainError
	if errors.As(err, &de) {
		return ReservationFailure{ReservationID: reservationID, Code: de.Code, Message: de.Message}
	}
	return ReservationFailure{ReservationID: reservationID, Code: "INTERNAL_ERROR", Message: err.Error()}
}

// AccommodationRow is one reservation's accommodation line on a statement
type AccommodationRow struct {
	ReservationID     string                    `json:"reservation_id"`
	Channel           revenue.Channel           `json:"channel"`
	CheckIn           time.Time                 `json:"check_in"`
	CheckOut          time.Time                 `json:"check_out"`
	Nights            int                       `json:"nights"`
	RoomRateTotal     valueobject.MonetarySplit `json:"room_rate_total"`
	Discount          valueobject.MonetarySplit `json:"discount"`
	GrossRevenue      valueobject.MonetarySplit `json:"gross_revenue"`
	Taxes             valueobject.MonetarySplit `json:"taxes"`
	ChannelCommission valueobject.MonetarySplit `json:"channel_commission"`
	CreditCard        valueobject.MonetarySplit `json:"credit_card"`
	NetRevenue        valueobject.MonetarySplit `json:"net_revenue"`
	Payout            valueobject.Money         `json:"payout"`
}

// GuestFeeRow is one fee line of one reservation
type GuestFeeRow struct {
	ReservationID     string                    `json:"reservation_id"`
	Category          revenue.FeeCategory       `json:"category"`
	RawType           string                    `json:"raw_type"`
	Gross             valueobject.MonetarySplit `json:"gross"`
	Taxes             valueobject.MonetarySplit `json:"taxes"`
	ChannelCommission valueobject.MonetarySplit `json:"channel_commission"`
	CreditCard        valueobject.MonetarySplit `json:"credit_card"`
	Net               valueobject.MonetarySplit `json:"net"`
}

// Totals are element-wise sums over every row of a statement
type Totals struct {
	RoomRateTotal     valueobject.MonetarySplit `json:"room_rate_total"`
	Discount          valueobject.MonetarySplit `json:"discount"`
	GrossRevenue      valueobject.MonetarySplit `json:"gross_revenue"`
	AccommodationTax  valueobject.MonetarySplit `json:"accommodation_taxes"`
	AccommodationNet  valueobject.MonetarySplit `json:"accommodation_net"`
	GuestFeesGross    valueobject.MonetarySplit `json:"guest_fees_gross"`
	GuestFeesTaxes    valueobject.MonetarySplit `json:"guest_fees_taxes"`
	GuestFeesNet      valueobject.MonetarySplit `json:"guest_fees_net"`
	GrossBookingValue valueobject.MonetarySplit `json:"gross_booking_value"`
	TotalTaxes        valueobject.MonetarySplit `json:"total_taxes"`
	CreditCard        valueobject.MonetarySplit `json:"credit_card"`
	ChannelCommission valueobject.MonetarySplit `json:"channel_commission"`
	NetRevenue        valueobject.MonetarySplit `json:"net_revenue"`
	Expenses          valueobject.MonetarySplit `json:"expenses"`
	NetIncome         valueobject.MonetarySplit `json:"net_income"`
	Payout            valueobject.Money         `json:"payout"`
}

// OwnerStatement is a listing's monthly statement.
// A DRAFT is rebuilt from its sources on every read; a LOCKED statement is
// a frozen snapshot and never changes again.
type OwnerStatement struct {
	shared.BaseAggregateRoot
	ListingID         string               `json:"listing_id"`
	Period            Period               `json:"period"`
	Status            Status               `json:"status"`
	Currency          valueobject.Currency `json:"currency"`
	AccommodationRows []AccommodationRow   `json:"accommodation_rows"`
	GuestFeeRows      []GuestFeeRow        `json:"guest_fee_rows"`
	Expenses          ExpenseSummary       `json:"expenses"`
	Totals            Totals               `json:"totals"`
	Failures          []ReservationFailure `json:"failures"`
	ReservationCount  int                  `json:"reservation_count"`
	LockedAt          *time.Time           `json:"locked_at,omitempty"`
	SnapshotHash      string               `json:"snapshot_hash,omitempty"`
}

// IsLocked reports whether the statement has been frozen
func (s *OwnerStatement) IsLocked() bool {
	return s.Status == StatusLocked
}

// Lock freezes the statement. It is the only state transition and cannot
// be undone; locking twice fails with ALREADY_LOCKED.
func (s *OwnerStatement) Lock(now time.Time) error {
	if s.IsLocked() {
		return shared.NewDomainErrorf(shared.CodeAlreadyLocked,
			"statement for listing %s %s is already locked", s.ListingID, s.Period)
	}
	lockedAt := now.UTC()
	s.Status = StatusLocked
	s.LockedAt = &lockedAt
	s.Touch(lockedAt)

	hash, err := s.ComputeSnapshotHash()
	if err != nil {
		return fmt.Errorf("hash statement snapshot: %w", err)
	}
	s.SnapshotHash = hash
	s.AddDomainEvent(NewStatementLockedEvent(s))
	return nil
}

// snapshot is the frozen content covered by the snapshot hash
type snapshot struct {
	ListingID         string               `json:"listing_id"`
	Period            Period               `json:"period"`
	Currency          valueobject.Currency `json:"currency"`
	AccommodationRows []AccommodationRow   `json:"accommodation_rows"`
	GuestFeeRows      []GuestFeeRow        `json:"guest_fee_rows"`
	Expenses          ExpenseSummary       `json:"expenses"`
	Totals            Totals               `json:"totals"`
	Failures          []ReservationFailure `json:"failures"`
	ReservationCount  int                  `json:"reservation_count"`
	LockedAt          *time.Time           `json:"locked_at"`
}

// ComputeSnapshotHash returns the hex SHA-256 of the statement's content
func (s *OwnerStatement) ComputeSnapshotHash() (string, error) {
	data, err := json.Marshal(snapshot{
		ListingID:         s.ListingID,
		Period:            s.Period,
		Currency:          s.Currency,
		AccommodationRows: s.AccommodationRows,
		GuestFeeRows:      s.GuestFeeRows,
		Expenses:          s.Expenses,
		Totals:            s.Totals,
		Failures:          s.Failures,
		ReservationCount:  s.ReservationCount,
		LockedAt:          s.LockedAt,
	})
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// VerifySnapshot checks a locked statement against its stored hash
func (s *OwnerStatement) VerifySnapshot() error {
	if !s.IsLocked() {
		return nil
	}
	hash, err := s.ComputeSnapshotHash()
	if err != nil {
		return fmt.Errorf("hash statement snapshot: %w", err)
	}
	if hash != s.SnapshotHash {
		return fmt.Errorf("%w: listing %s %s", ErrSnapshotCorrupted, s.ListingID, s.Period)
	}
	return nil
}

// Payouts returns the expected payout of every reservation on the statement
func (s *OwnerStatement) Payouts() []decimal.Decimal {
	out := make([]decimal.Decimal, 0, len(s.AccommodationRows))
	for _, row := range s.AccommodationRows {
		out = append(out, row.Payout.Amount())
	}
	return out
}
