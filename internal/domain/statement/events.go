package statement

import (
	"time"

	"github.com/google/uuid"

	"github.com/stayledger/backend/internal/domain/shared"
	"github.com/stayledger/backend/internal/domain/shared/valueobject"
)

// EventTypeStatementLocked is the type name of StatementLockedEvent
const EventTypeStatementLocked = "StatementLocked"

// AggregateTypeOwnerStatement names the aggregate in events
const AggregateTypeOwnerStatement = "OwnerStatement"

// StatementLockedEvent is raised when a statement is frozen
type StatementLockedEvent struct {
	shared.BaseDomainEvent
	StatementID      uuid.UUID                 `json:"statement_id"`
	ListingID        string                    `json:"listing_id"`
	Period           Period                    `json:"period"`
	LockedAt         time.Time                 `json:"locked_at"`
	SnapshotHash     string                    `json:"snapshot_hash"`
	ReservationCount int                       `json:"reservation_count"`
	NetRevenue       valueobject.MonetarySplit `json:"net_revenue"`
	Payout           valueobject.Money         `json:"payout"`

	// Statement is the frozen snapshot, carried for archiving
	Statement *OwnerStatement `json:"-"`
}

// NewStatementLockedEvent creates a StatementLockedEvent for a locked statement
func NewStatementLockedEvent(s *OwnerStatement) *StatementLockedEvent {
	var lockedAt time.Time
	if s.LockedAt != nil {
		lockedAt = *s.LockedAt
	}
	return &StatementLockedEvent{
		BaseDomainEvent:  shared.NewBaseDomainEvent(EventTypeStatementLocked, AggregateTypeOwnerStatement, s.ID),
		StatementID:      s.ID,
		ListingID:        s.ListingID,
		Period:           s.Period,
		LockedAt:         lockedAt,
		SnapshotHash:     s.SnapshotHash,
		ReservationCount: s.ReservationCount,
		NetRevenue:       s.Totals.NetRevenue,
		Payout:           s.Totals.Payout,
		Statement:        s,
	}
}
