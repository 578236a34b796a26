package statement

import (
	"time"

	"github.com/stayledger/backend/internal/domain/shared/valueobject"
)

// ExpenseLine is a listing expense, already divided between manager and owner
type ExpenseLine struct {
	ID          string                    `json:"id"`
	Date        time.Time                 `json:"date"`
	Description string                    `json:"description"`
	Category    string                    `json:"category"`
	Value       valueobject.MonetarySplit `json:"value"`
}

// ExpenseSummary is the period's expenses with their element-wise total
type ExpenseSummary struct {
	Lines []ExpenseLine               `json:"lines"`
	Total valueobject.MonetarySplit `json:"total"`
}

// NewExpenseSummary totals the given lines
func NewExpenseSummary(lines []ExpenseLine) ExpenseSummary {
	summary := ExpenseSummary{Lines: make([]ExpenseLine, 0, len(lines))}
	for _, l := range lines {
		summary.Lines = append(summary.Lines, l)
		summary.Total = summary.Total.Add(l.Value)
	}
	return summary
}
