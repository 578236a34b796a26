package reconciliation

import (
	"context"
)

// BankTransactionSource reads the operating account's transactions
type BankTransactionSource interface {
	GetBankTransactions(ctx context.Context, listingID string, sel TransactionSelection) ([]BankTransaction, error)
}
