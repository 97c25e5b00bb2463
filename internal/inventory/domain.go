package inventory

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// MovementType enumerates supported stock movements.
type MovementType string

const (
	// MovementTypeReceipt represents inbound stock creating or filling batches.
	MovementTypeReceipt MovementType = "receipt"
	// MovementTypeTransfer moves stock out of a warehouse towards another.
	MovementTypeTransfer MovementType = "transfer"
	// MovementTypeFBA sends stock to the FBA sales channel.
	MovementTypeFBA MovementType = "fba"
	// MovementTypeAdjustment corrects stock levels manually.
	MovementTypeAdjustment MovementType = "adjustment"
	// MovementTypeScrap writes off damaged or expired stock.
	MovementTypeScrap MovementType = "scrap"
	// MovementTypeReturn ships stock back to a supplier.
	MovementTypeReturn MovementType = "return"
)

// Valid reports whether the movement type is a known value.
func (t MovementType) Valid() bool {
	switch t {
	case MovementTypeReceipt, MovementTypeTransfer, MovementTypeFBA,
		MovementTypeAdjustment, MovementTypeScrap, MovementTypeReturn:
		return true
	}
	return false
}

// MovementStatus is the movement state machine: draft is initial, committed
// and cancelled are terminal.
type MovementStatus string

const (
	MovementStatusDraft     MovementStatus = "draft"
	MovementStatusCommitted MovementStatus = "committed"
	MovementStatusCancelled MovementStatus = "cancelled"
)

// ComplianceStatus is derived from the required compliance fields of a batch.
type ComplianceStatus string

const (
	CompliancePending  ComplianceStatus = "pending"
	ComplianceComplete ComplianceStatus = "complete"
)

// Batch is a physically received lot of a SKU at a warehouse.
type Batch struct {
	BatchID         string
	SKU             string
	WarehouseID     string
	ReceivedDate    time.Time
	SupplierBatchNo string
	UnitCost        *decimal.Decimal
	StartingQty     int64
	CurrentQty      int64
	ExpiryDate      *time.Time
	Notes           string

	GSTRatePctOverride  *decimal.Decimal
	Accession           string
	AmazonSTNPrice      *decimal.Decimal
	EwaybillProductName string
	EwaybillPrice       *decimal.Decimal
	PiecesPerCarton     *int64
	BaseCostINR         *decimal.Decimal
	BaseCostRMB         *decimal.Decimal
	BaseCostUSD         *decimal.Decimal

	ComplianceStatus ComplianceStatus
}

// IsCompliant reports whether every required compliance field is populated.
// ComplianceStatus is the materialized value of this predicate; it is never
// set independently.
func (b Batch) IsCompliant() bool {
	if b.GSTRatePctOverride == nil || b.AmazonSTNPrice == nil || b.EwaybillPrice == nil {
		return false
	}
	if b.BaseCostINR == nil || b.BaseCostRMB == nil || b.BaseCostUSD == nil {
		return false
	}
	if b.Accession == "" || b.EwaybillProductName == "" {
		return false
	}
	if b.PiecesPerCarton == nil {
		return false
	}
	return true
}

// DeriveComplianceStatus recomputes the materialized compliance status.
func (b *Batch) DeriveComplianceStatus() {
	if b.IsCompliant() {
		b.ComplianceStatus = ComplianceComplete
	} else {
		b.ComplianceStatus = CompliancePending
	}
}

// Movement models a proposed or committed set of quantity changes.
type Movement struct {
	ID            int64
	TS            time.Time
	Type          MovementType
	Status        MovementStatus
	FromWarehouse string
	ToWarehouse   string
	Channel       string
	ExternalRef   string
	CreatedBy     int64
	ApprovedBy    *int64
	Lines         []MovementLine
}

// MovementLine applies a quantity to one batch according to the parent
// movement's type. The receipt-only fields describe the batch to create at
// commit time; they are empty for every other movement type.
type MovementLine struct {
	ID         int64
	MovementID int64
	SKU        string
	BatchID    string
	Quantity   int64
	Note       string

	ReceivedDate    *time.Time
	UnitCost        *decimal.Decimal
	SupplierBatchNo string
}

// LedgerEntry is one immutable row of the append-only stock ledger. Exactly
// one of QtyIn/QtyOut is non-zero.
type LedgerEntry struct {
	ID           int64
	TS           time.Time
	MovementType MovementType
	MovementID   int64
	WarehouseID  string
	SKU          string
	BatchID      string
	QtyIn        int64
	QtyOut       int64
	UnitCost     *decimal.Decimal
	UserID       int64
	Memo         string
}

// AllocationLine pairs a batch with the quantity to consume from it.
type AllocationLine struct {
	Batch    Batch
	Quantity int64
}

// Reconciliation compares a batch quantity against its ledger history.
type Reconciliation struct {
	BatchID     string
	StartingQty int64
	QtyIn       int64
	QtyOut      int64
	CurrentQty  int64
}

// Expected returns the quantity the ledger accounts for.
func (r Reconciliation) Expected() int64 {
	return r.StartingQty + r.QtyIn - r.QtyOut
}

// Balanced reports whether the persisted quantity matches the ledger.
func (r Reconciliation) Balanced() bool {
	return r.Expected() == r.CurrentQty
}

// BatchFilter narrows batch queries.
type BatchFilter struct {
	SKU         string
	WarehouseID string
	OnlyInStock bool
}

// LedgerFilter narrows ledger queries.
type LedgerFilter struct {
	BatchID string
	SKU     string
	From    time.Time
	To      time.Time
	Limit   int
}

// Error taxonomy. Every failure aborts the whole commit transaction and
// carries enough identity (batch id, movement id) to act on.
var (
	// ErrNotFound indicates a referenced product/batch/warehouse/movement does not exist.
	ErrNotFound = errors.New("inventory: not found")
	// ErrDuplicateBatch indicates an attempt to create a batch id that already exists.
	ErrDuplicateBatch = errors.New("inventory: batch already exists")
	// ErrNegativeStock indicates an allocation or commit would drive a batch below zero.
	ErrNegativeStock = errors.New("inventory: negative stock not allowed")
	// ErrCompliancePending indicates a non-receipt line references a batch that
	// is not compliance-complete.
	ErrCompliancePending = errors.New("inventory: batch pending compliance")
	// ErrAlreadyProcessed indicates the movement is not in draft when commit or
	// cancel is attempted.
	ErrAlreadyProcessed = errors.New("inventory: movement already processed")
	// ErrInvalidQuantity indicates a non-positive line quantity.
	ErrInvalidQuantity = errors.New("inventory: quantity must be positive")
	// ErrDuplicateLine indicates two lines of one movement reference the same batch.
	ErrDuplicateLine = errors.New("inventory: duplicate batch line in movement")
)
