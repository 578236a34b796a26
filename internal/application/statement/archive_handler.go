package statement

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/stayledger/backend/internal/domain/shared"
	"github.com/stayledger/backend/internal/domain/statement"
	"github.com/stayledger/backend/internal/infrastructure/metrics"
)

// Archive stores immutable objects
type Archive interface {
	Put(ctx context.Context, key string, body []byte, contentType string) error
}

// ArchiveHandler copies every locked statement snapshot to an archive
type ArchiveHandler struct {
	archive Archive
	logger  *zap.Logger
}

// NewArchiveHandler creates an ArchiveHandler
func NewArchiveHandler(archive Archive, logger *zap.Logger) *ArchiveHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ArchiveHandler{archive: archive, logger: logger}
}

// EventTypes implements shared.EventHandler
func (h *ArchiveHandler) EventTypes() []string {
	return []string{statement.EventTypeStatementLocked}
}

// Handle implements shared.EventHandler
func (h *ArchiveHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	locked, ok := event.(*statement.StatementLockedEvent)
	if !ok || locked.Statement == nil {
		return nil
	}

	data, err := json.Marshal(locked.Statement)
	if err != nil {
		metrics.IncStatementArchive(metrics.ResultError)
		return fmt.Errorf("marshal statement snapshot: %w", err)
	}
	key := ArchiveKey(locked.ListingID, locked.Period, locked.SnapshotHash)
	if err := h.archive.Put(ctx, key, data, "application/json"); err != nil {
		metrics.IncStatementArchive(metrics.ResultError)
		h.logger.Error("failed to archive locked statement",
			zap.String("listing_id", locked.ListingID),
			zap.String("period", locked.Period.String()),
			zap.String("key", key),
			zap.Error(err),
		)
		return fmt.Errorf("archive statement %s: %w", key, err)
	}

	metrics.IncStatementArchive(metrics.ResultSuccess)
	h.logger.Info("locked statement archived",
		zap.String("listing_id", locked.ListingID),
		zap.String("period", locked.Period.String()),
		zap.String("key", key),
		zap.Int("bytes", len(data)),
	)
	return nil
}

// ArchiveKey is the object key of a locked statement snapshot
func ArchiveKey(listingID string, period statement.Period, hash string) string {
	return fmt.Sprintf("statements/%s/%s/%s.json", listingID, period, hash)
}
