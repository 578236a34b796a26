package statement

import (
	"context"
)

// LockRepository stores frozen statements. At most one locked statement
// may exist per listing and period; PersistLock fails with ALREADY_LOCKED
// when another writer got there first.
type LockRepository interface {
	PersistLock(ctx context.Context, stmt *OwnerStatement) error
	// FindLocked returns nil, nil when the period has not been locked
	FindLocked(ctx context.Context, listingID string, period Period) (*OwnerStatement, error)
	ListLocked(ctx context.Context, listingID string) ([]*OwnerStatement, error)
}

// ExpenseSource reads a listing's expenses for a statement period
type ExpenseSource interface {
	GetExpensesForPeriod(ctx context.Context, listingID string, period Period) ([]ExpenseLine, error)
}
