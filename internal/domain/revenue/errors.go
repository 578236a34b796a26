package revenue

import (
	"github.com/stayledger/backend/internal/domain/shared"
)

func invalidInput(format string, args ...any) error {
	return shared.NewDomainErrorf(shared.CodeInvalidRevenueInput, format, args...)
}

func invalidModel(format string, args ...any) error {
	return shared.NewDomainErrorf(shared.CodeInvalidBusinessModel, format, args...)
}
