package inventory

import (
	"context"
	"fmt"
)

// allocateFIFO selects batches to satisfy an outbound quantity request,
// oldest received first, ties broken by batch id. Every candidate batch stays
// locked for the remainder of the transaction so a concurrent allocator
// cannot double-count the same available quantity.
//
// A request for qty <= 0 is a no-op yielding no lines. When the eligible
// batches cannot cover the request the allocation fails with
// ErrNegativeStock and no partial reservation survives the rollback.
func allocateFIFO(ctx context.Context, tx TxRepository, sku, warehouseID string, qty int64) ([]AllocationLine, error) {
	if qty <= 0 {
		return []AllocationLine{}, nil
	}
	candidates, err := tx.ListBatchesForAllocation(ctx, sku, warehouseID)
	if err != nil {
		return nil, err
	}
	allocated := []AllocationLine{}
	remaining := qty
	for _, batch := range candidates {
		take := batch.CurrentQty
		if take > remaining {
			take = remaining
		}
		if take <= 0 {
			continue
		}
		allocated = append(allocated, AllocationLine{Batch: batch, Quantity: take})
		remaining -= take
		if remaining <= 0 {
			break
		}
	}
	if remaining > 0 {
		return nil, fmt.Errorf("sku %s at %s short by %d: %w", sku, warehouseID, remaining, ErrNegativeStock)
	}
	return allocated, nil
}
