package inventory

import "context"

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetMovement(ctx context.Context, id int64) (Movement, error)
	GetBatch(ctx context.Context, batchID string) (Batch, error)
	ListBatches(ctx context.Context, filter BatchFilter) ([]Batch, error)
	ListLedger(ctx context.Context, filter LedgerFilter) ([]LedgerEntry, error)
	ReconcileBatch(ctx context.Context, batchID string) (Reconciliation, error)
	ReconcileAll(ctx context.Context) ([]Reconciliation, error)
	GetProductInfo(ctx context.Context, sku string) (ProductInfo, error)
}

// TxRepository exposes the transactional operations used by the commit
// engine. Every method runs inside the transaction opened by WithTx; row
// locks taken here are held until that transaction ends.
type TxRepository interface {
	InsertMovement(ctx context.Context, m Movement) (int64, error)
	InsertMovementLines(ctx context.Context, movementID int64, lines []MovementLine) error
	GetMovementForUpdate(ctx context.Context, id int64) (Movement, error)
	ListMovementLines(ctx context.Context, movementID int64) ([]MovementLine, error)
	SetMovementStatus(ctx context.Context, id int64, status MovementStatus) error

	// CreateBatch inserts a new batch row. A second insert for the same batch
	// id fails with ErrDuplicateBatch, never updates.
	CreateBatch(ctx context.Context, b Batch) error
	// GetBatchForUpdate acquires an exclusive row lock on the batch and
	// returns the current row.
	GetBatchForUpdate(ctx context.Context, batchID string) (Batch, error)
	// ListBatchesForAllocation locks and returns every batch for the product
	// and warehouse with stock on hand, ordered by received date then batch id.
	ListBatchesForAllocation(ctx context.Context, sku, warehouseID string) ([]Batch, error)
	// UpdateBatchQty writes the new quantity computed under the row lock and
	// returns the persisted value.
	UpdateBatchQty(ctx context.Context, batchID string, qty int64) (int64, error)
	UpdateBatchCompliance(ctx context.Context, b Batch) error

	AppendLedger(ctx context.Context, entries []LedgerEntry) error
}

// ProductInfo is the read-only product projection the core needs for FBA
// exports; product master data is owned elsewhere.
type ProductInfo struct {
	SKU     string
	Title   string
	HSNCode string
	Status  string
}
