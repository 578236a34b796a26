package persistence

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/stayledger/backend/internal/domain/shared"
	"github.com/stayledger/backend/internal/domain/statement"
	"github.com/stayledger/backend/internal/infrastructure/persistence/models"
)

// GormStatementLockRepository implements statement.LockRepository using GORM
type GormStatementLockRepository struct {
	db *gorm.DB
}

// NewGormStatementLockRepository creates a new GormStatementLockRepository
func NewGormStatementLockRepository(db *gorm.DB) *GormStatementLockRepository {
	return &GormStatementLockRepository{db: db}
}

// WithTx returns a new repository instance with the given transaction
func (r *GormStatementLockRepository) WithTx(tx *gorm.DB) *GormStatementLockRepository {
	return &GormStatementLockRepository{db: tx}
}

// PersistLock inserts a frozen statement. A second lock for the same
// listing and period violates the unique index and fails with
// ALREADY_LOCKED.
func (r *GormStatementLockRepository) PersistLock(ctx context.Context, stmt *statement.OwnerStatement) error {
	var model models.StatementLockModel
	if err := model.FromDomain(stmt); err != nil {
		return shared.NewDomainError(shared.CodeInvalidState, err.Error())
	}
	if err := r.db.WithContext(ctx).Create(&model).Error; err != nil {
		if isUniqueViolation(err) {
			return shared.NewDomainErrorf(shared.CodeAlreadyLocked,
				"statement for listing %s %s is already locked", stmt.ListingID, stmt.Period)
		}
		return fmt.Errorf("insert statement lock: %w", err)
	}
	return nil
}

// FindLocked returns the frozen statement of a period, or nil when the
// period is still a draft
func (r *GormStatementLockRepository) FindLocked(
	ctx context.Context,
	listingID string,
	period statement.Period,
) (*statement.OwnerStatement, error) {
	var model models.StatementLockModel
	err := r.db.WithContext(ctx).
		Where("listing_id = ? AND year = ? AND month = ?", listingID, period.Year, int(period.Month)).
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return model.ToDomain()
}

// ListLocked returns every frozen statement of a listing, oldest first
func (r *GormStatementLockRepository) ListLocked(ctx context.Context, listingID string) ([]*statement.OwnerStatement, error) {
	var lockModels []models.StatementLockModel
	if err := r.db.WithContext(ctx).
		Where("listing_id = ?", listingID).
		Order("year ASC, month ASC").
		Find(&lockModels).Error; err != nil {
		return nil, err
	}
	statements := make([]*statement.OwnerStatement, 0, len(lockModels))
	for i := range lockModels {
		s, err := lockModels[i].ToDomain()
		if err != nil {
			return nil, err
		}
		statements = append(statements, s)
	}
	return statements, nil
}

// isUniqueViolation recognizes duplicate-key errors whether or not the
// dialector translated them
func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate key") ||
		strings.Contains(msg, "unique constraint failed") ||
		strings.Contains(msg, "sqlstate 23505")
}
