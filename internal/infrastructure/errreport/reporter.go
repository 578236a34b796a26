// Package errreport delivers errors that must reach operators without
// failing the caller.
package errreport

import (
	"context"
	"errors"
	"sort"

	"go.uber.org/zap"

	"github.com/stayledger/backend/internal/domain/shared"
	"github.com/stayledger/backend/internal/infrastructure/logger"
)

// Nop discards every report
var Nop shared.ErrorReporter = shared.NopReporter{}

// ZapReporter writes reports to a zap logger. Domain errors are logged at
// warn with their code; everything else is logged at error.
type ZapReporter struct {
	logger *zap.Logger
}

// NewZapReporter creates a ZapReporter
func NewZapReporter(l *zap.Logger) *ZapReporter {
	if l == nil {
		l = zap.NewNop()
	}
	return &ZapReporter{logger: l.Named("errreport")}
}

// Report implements shared.ErrorReporter
func (r *ZapReporter) Report(ctx context.Context, err error, tags map[string]string) {
	if err == nil {
		return
	}
	fields := make([]zap.Field, 0, len(tags)+3)
	fields = append(fields, zap.Error(err))
	if id := logger.GetRequestID(ctx); id != "" {
		fields = append(fields, zap.String("request_id", id))
	}

	keys := make([]string, 0, len(tags))
	for k := range tags {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fields = append(fields, zap.String(k, tags[k]))
	}

	log := logger.WithTraceContext(ctx, r.logger)
	var de *shared.DomainError
	if errors.As(err, &de) {
		log.Warn("Reported domain error", append(fields, zap.String("code", de.Code))...)
		return
	}
	log.Error("Reported error", fields...)
}
