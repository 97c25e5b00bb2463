package inventory

import (
	"context"
	"fmt"
)

// batchStore wraps the transactional repository with the locked
// read-modify-write primitives every quantity mutation goes through.
type batchStore struct {
	tx TxRepository
}

// LockAndRead acquires an exclusive row lock on the batch, scoped to the
// enclosing transaction, and returns the current row.
func (s batchStore) LockAndRead(ctx context.Context, batchID string) (Batch, error) {
	return s.tx.GetBatchForUpdate(ctx, batchID)
}

// ApplyDelta computes the new quantity in memory inside the lock scope,
// rejects negative results, writes it back and re-reads the persisted value.
func (s batchStore) ApplyDelta(ctx context.Context, b Batch, delta int64) (int64, error) {
	newQty := b.CurrentQty + delta
	if newQty < 0 {
		return 0, fmt.Errorf("batch %s would go to %d: %w", b.BatchID, newQty, ErrNegativeStock)
	}
	persisted, err := s.tx.UpdateBatchQty(ctx, b.BatchID, newQty)
	if err != nil {
		return 0, err
	}
	if persisted < 0 {
		return 0, fmt.Errorf("batch %s persisted at %d: %w", b.BatchID, persisted, ErrNegativeStock)
	}
	return persisted, nil
}
