package inventory

import (
	"time"

	"github.com/shopspring/decimal"
)

type createMovementRequest struct {
	Type          string        `json:"type" validate:"required,oneof=transfer fba adjustment scrap return"`
	FromWarehouse string        `json:"from_warehouse,omitempty"`
	ToWarehouse   string        `json:"to_warehouse,omitempty"`
	Channel       string        `json:"channel,omitempty"`
	ExternalRef   string        `json:"external_ref,omitempty"`
	Lines         []lineRequest `json:"lines" validate:"required,min=1,dive"`
}

type lineRequest struct {
	SKU      string `json:"sku" validate:"required"`
	BatchID  string `json:"batch_id" validate:"required"`
	Quantity int64  `json:"quantity" validate:"required,gt=0"`
	Note     string `json:"note,omitempty"`
}

type createReceiptRequest struct {
	ToWarehouse string               `json:"to_warehouse" validate:"required"`
	ExternalRef string               `json:"external_ref,omitempty"`
	Lines       []receiptLineRequest `json:"lines" validate:"required,min=1,dive"`
}

type receiptLineRequest struct {
	BatchID         string           `json:"batch_id" validate:"required"`
	SKU             string           `json:"sku" validate:"required"`
	Quantity        int64            `json:"quantity" validate:"required,gt=0"`
	ReceivedDate    string           `json:"received_date,omitempty"`
	UnitCost        *decimal.Decimal `json:"unit_cost,omitempty"`
	SupplierBatchNo string           `json:"supplier_batch_no,omitempty"`
	Note            string           `json:"note,omitempty"`
}

type allocationRequest struct {
	Type        string `json:"type,omitempty" validate:"omitempty,oneof=transfer fba adjustment scrap return"`
	SKU         string `json:"sku" validate:"required"`
	WarehouseID string `json:"warehouse_id" validate:"required"`
	Quantity    int64  `json:"quantity" validate:"required,gt=0"`
	Channel     string `json:"channel,omitempty"`
	ExternalRef string `json:"external_ref,omitempty"`
	Note        string `json:"note,omitempty"`
	// DryRun skips movement creation and only reports the allocation.
	DryRun bool `json:"dry_run,omitempty"`
}

type compliancePatchRequest struct {
	GSTRatePct          *decimal.Decimal `json:"gst_rate_pct,omitempty"`
	Accession           *string          `json:"accession,omitempty"`
	AmazonSTNPrice      *decimal.Decimal `json:"amazon_stn_price,omitempty"`
	EwaybillProductName *string          `json:"ewaybill_product_name,omitempty"`
	EwaybillPrice       *decimal.Decimal `json:"ewaybill_price,omitempty"`
	PiecesPerCarton     *int64           `json:"pieces_per_carton,omitempty" validate:"omitempty,gt=0"`
	BaseCostINR         *decimal.Decimal `json:"base_cost_inr,omitempty"`
	BaseCostRMB         *decimal.Decimal `json:"base_cost_rmb,omitempty"`
	BaseCostUSD         *decimal.Decimal `json:"base_cost_usd,omitempty"`
	UnitCost            *decimal.Decimal `json:"unit_cost,omitempty"`
	Notes               *string          `json:"notes,omitempty"`
}

type fbaExportRequest struct {
	WarehouseID string           `json:"warehouse_id" validate:"required"`
	Rows        []fbaPlanRequest `json:"rows" validate:"required,min=1,dive"`
}

type fbaPlanRequest struct {
	SKU      string `json:"sku" validate:"required"`
	Quantity int64  `json:"quantity" validate:"required,gt=0"`
	FCCode   string `json:"fc_code" validate:"required"`
}

type movementResponse struct {
	ID            int64                  `json:"id"`
	TS            time.Time              `json:"ts"`
	Type          string                 `json:"type"`
	Status        string                 `json:"status"`
	FromWarehouse string                 `json:"from_warehouse,omitempty"`
	ToWarehouse   string                 `json:"to_warehouse,omitempty"`
	Channel       string                 `json:"channel,omitempty"`
	ExternalRef   string                 `json:"external_ref,omitempty"`
	CreatedBy     int64                  `json:"created_by"`
	Lines         []movementLineResponse `json:"lines"`
}

type movementLineResponse struct {
	ID       int64  `json:"id"`
	SKU      string `json:"sku"`
	BatchID  string `json:"batch_id"`
	Quantity int64  `json:"quantity"`
	Note     string `json:"note,omitempty"`
}

func toMovementResponse(m Movement) movementResponse {
	resp := movementResponse{
		ID:            m.ID,
		TS:            m.TS,
		Type:          string(m.Type),
		Status:        string(m.Status),
		FromWarehouse: m.FromWarehouse,
		ToWarehouse:   m.ToWarehouse,
		Channel:       m.Channel,
		ExternalRef:   m.ExternalRef,
		CreatedBy:     m.CreatedBy,
		Lines:         []movementLineResponse{},
	}
	for _, line := range m.Lines {
		resp.Lines = append(resp.Lines, movementLineResponse{
			ID:       line.ID,
			SKU:      line.SKU,
			BatchID:  line.BatchID,
			Quantity: line.Quantity,
			Note:     line.Note,
		})
	}
	return resp
}

type batchResponse struct {
	BatchID          string           `json:"batch_id"`
	SKU              string           `json:"sku"`
	WarehouseID      string           `json:"warehouse_id"`
	ReceivedDate     time.Time        `json:"received_date"`
	StartingQty      int64            `json:"starting_qty"`
	CurrentQty       int64            `json:"current_qty"`
	UnitCost         *decimal.Decimal `json:"unit_cost,omitempty"`
	ComplianceStatus string           `json:"compliance_status"`
}

func toBatchResponse(b Batch) batchResponse {
	return batchResponse{
		BatchID:          b.BatchID,
		SKU:              b.SKU,
		WarehouseID:      b.WarehouseID,
		ReceivedDate:     b.ReceivedDate,
		StartingQty:      b.StartingQty,
		CurrentQty:       b.CurrentQty,
		UnitCost:         b.UnitCost,
		ComplianceStatus: string(b.ComplianceStatus),
	}
}

type allocationResponse struct {
	BatchID  string `json:"batch_id"`
	SKU      string `json:"sku"`
	Quantity int64  `json:"quantity"`
}

type reconciliationResponse struct {
	BatchID     string `json:"batch_id"`
	StartingQty int64  `json:"starting_qty"`
	QtyIn       int64  `json:"qty_in"`
	QtyOut      int64  `json:"qty_out"`
	CurrentQty  int64  `json:"current_qty"`
	Expected    int64  `json:"expected"`
	Balanced    bool   `json:"balanced"`
}

func toReconciliationResponse(rec Reconciliation) reconciliationResponse {
	return reconciliationResponse{
		BatchID:     rec.BatchID,
		StartingQty: rec.StartingQty,
		QtyIn:       rec.QtyIn,
		QtyOut:      rec.QtyOut,
		CurrentQty:  rec.CurrentQty,
		Expected:    rec.Expected(),
		Balanced:    rec.Balanced(),
	}
}
