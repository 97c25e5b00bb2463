package inventory

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
)

// FBAPlanRow is one line of an FBA shipment plan to resolve against stock.
type FBAPlanRow struct {
	SKU      string
	Quantity int64
	FCCode   string
}

// FBAExportRow is the resolved, batch-level line for the outbound paperwork.
type FBAExportRow struct {
	BatchID         string
	SKU             string
	AmazonSTNPrice  *decimal.Decimal
	GSTRatePct      *decimal.Decimal
	HSNCode         string
	ProductName     string
	QuantityRemoved int64
	FCCode          string
}

// BuildFBAExport resolves a shipment plan through the FIFO allocator and
// produces export rows. The allocation is a dry run: quantities move only
// when the corresponding fba movement commits. Every allocated batch must be
// compliance-complete since the stock is leaving the warehouse.
func (s *Service) BuildFBAExport(ctx context.Context, warehouseID string, rows []FBAPlanRow) ([]FBAExportRow, error) {
	export := []FBAExportRow{}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		for _, row := range rows {
			product, err := s.repo.GetProductInfo(ctx, row.SKU)
			if err != nil {
				return err
			}
			allocated, err := allocateFIFO(ctx, tx, row.SKU, warehouseID, row.Quantity)
			if err != nil {
				return err
			}
			if len(allocated) == 0 && row.Quantity > 0 {
				return fmt.Errorf("sku %s at %s: %w", row.SKU, warehouseID, ErrNegativeStock)
			}
			if err := validateCompliance(allocated); err != nil {
				return err
			}
			for _, alloc := range allocated {
				batch := alloc.Batch
				name := batch.EwaybillProductName
				if name == "" {
					name = product.Title
				}
				export = append(export, FBAExportRow{
					BatchID:         batch.BatchID,
					SKU:             batch.SKU,
					AmazonSTNPrice:  batch.AmazonSTNPrice,
					GSTRatePct:      batch.GSTRatePctOverride,
					HSNCode:         product.HSNCode,
					ProductName:     name,
					QuantityRemoved: alloc.Quantity,
					FCCode:          row.FCCode,
				})
			}
		}
		return nil
	})
	if err != nil {
		s.countFailure(err)
		return nil, err
	}
	return export, nil
}
