package port

import (
	"context"
	"errors"

	"github.com/rl1809/stock-ledger/internal/core/domain"
)

var ErrOptimisticLock = errors.New("optimistic lock conflict")

type LedgerRepository interface {
	// ApplyAdjustment sets the product quantity if its version still equals expectedVersion
	// and appends the transaction in the same database transaction.
	// Returns ErrOptimisticLock when the version moved.
	ApplyAdjustment(ctx context.Context, productID int64, expectedVersion, newQuantity int, tx domain.StockTransaction) error

	// ListTransactions returns up to limit records for a product, newest first
	ListTransactions(ctx context.Context, productID int64, limit int) ([]domain.StockTransaction, error)
}
