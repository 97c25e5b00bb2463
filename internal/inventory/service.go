package inventory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/lotkeeper/lotkeeper/internal/shared"
)

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// MetricsPort receives domain counters for committed and failed movements.
type MetricsPort interface {
	MovementCommitted(movementType string)
	AllocationFailed(reason string)
}

// Service owns the movement state machine and coordinates allocation,
// compliance checking, quantity mutation and ledger append as one atomic
// unit per commit.
type Service struct {
	repo    RepositoryPort
	audit   AuditPort
	metrics MetricsPort
}

// NewService builds Service. Audit and metrics are optional.
func NewService(repo RepositoryPort, audit AuditPort, metrics MetricsPort) *Service {
	return &Service{repo: repo, audit: audit, metrics: metrics}
}

// LineInput references an existing batch in a draft movement.
type LineInput struct {
	SKU      string
	BatchID  string
	Quantity int64
	Note     string
}

// CreateMovementInput describes a draft movement over existing batches.
type CreateMovementInput struct {
	Type          MovementType
	FromWarehouse string
	ToWarehouse   string
	Channel       string
	ExternalRef   string
	ActorID       int64
	Lines         []LineInput
}

// ReceiptLineInput describes one batch to create when the receipt commits.
type ReceiptLineInput struct {
	BatchID         string
	SKU             string
	Quantity        int64
	ReceivedDate    time.Time
	UnitCost        *decimal.Decimal
	SupplierBatchNo string
	Note            string
}

// ReceiptInput describes a draft receipt movement.
type ReceiptInput struct {
	ToWarehouse string
	ExternalRef string
	ActorID     int64
	Lines       []ReceiptLineInput
}

// OutboundInput requests an outbound movement resolved through the FIFO
// allocator instead of explicit batch references.
type OutboundInput struct {
	Type        MovementType
	SKU         string
	WarehouseID string
	Quantity    int64
	Channel     string
	ExternalRef string
	ActorID     int64
	Note        string
}

// CreateMovement stores a draft movement with explicit batch lines. Drafts
// have no visible side effects on stock.
func (s *Service) CreateMovement(ctx context.Context, input CreateMovementInput) (Movement, error) {
	if !input.Type.Valid() {
		return Movement{}, fmt.Errorf("inventory: unknown movement type %q", input.Type)
	}
	if input.Type == MovementTypeReceipt {
		return Movement{}, errors.New("inventory: receipts must be created through the receipt path")
	}
	if len(input.Lines) == 0 {
		return Movement{}, errors.New("inventory: movement requires at least one line")
	}
	seen := map[string]bool{}
	for _, line := range input.Lines {
		if line.Quantity <= 0 {
			return Movement{}, fmt.Errorf("batch %s: %w", line.BatchID, ErrInvalidQuantity)
		}
		if seen[line.SKU+"\x00"+line.BatchID] {
			return Movement{}, fmt.Errorf("batch %s: %w", line.BatchID, ErrDuplicateLine)
		}
		seen[line.SKU+"\x00"+line.BatchID] = true
		if _, err := s.repo.GetBatch(ctx, line.BatchID); err != nil {
			return Movement{}, err
		}
	}

	movement := Movement{
		TS:            time.Now().UTC(),
		Type:          input.Type,
		Status:        MovementStatusDraft,
		FromWarehouse: input.FromWarehouse,
		ToWarehouse:   input.ToWarehouse,
		Channel:       input.Channel,
		ExternalRef:   input.ExternalRef,
		CreatedBy:     input.ActorID,
	}
	var movementID int64
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		id, err := tx.InsertMovement(ctx, movement)
		if err != nil {
			return err
		}
		movementID = id
		lines := make([]MovementLine, 0, len(input.Lines))
		for _, line := range input.Lines {
			lines = append(lines, MovementLine{
				MovementID: id,
				SKU:        line.SKU,
				BatchID:    line.BatchID,
				Quantity:   line.Quantity,
				Note:       line.Note,
			})
		}
		return tx.InsertMovementLines(ctx, id, lines)
	})
	if err != nil {
		return Movement{}, err
	}
	return s.repo.GetMovement(ctx, movementID)
}

// CreateReceipt stores a draft receipt movement. The batches it names are
// created only when the receipt commits, so cancelling the draft leaves no
// trace.
func (s *Service) CreateReceipt(ctx context.Context, input ReceiptInput) (Movement, error) {
	if input.ToWarehouse == "" {
		return Movement{}, errors.New("inventory: receipt requires a destination warehouse")
	}
	if len(input.Lines) == 0 {
		return Movement{}, errors.New("inventory: receipt requires at least one line")
	}
	seen := map[string]bool{}
	for _, line := range input.Lines {
		if line.Quantity <= 0 {
			return Movement{}, fmt.Errorf("batch %s: %w", line.BatchID, ErrInvalidQuantity)
		}
		if line.BatchID == "" || line.SKU == "" {
			return Movement{}, errors.New("inventory: receipt line requires batch id and sku")
		}
		if seen[line.BatchID] {
			return Movement{}, fmt.Errorf("batch %s: %w", line.BatchID, ErrDuplicateLine)
		}
		seen[line.BatchID] = true
		if _, err := s.repo.GetBatch(ctx, line.BatchID); err == nil {
			return Movement{}, fmt.Errorf("batch %s: %w", line.BatchID, ErrDuplicateBatch)
		} else if !errors.Is(err, ErrNotFound) {
			return Movement{}, err
		}
	}

	movement := Movement{
		TS:          time.Now().UTC(),
		Type:        MovementTypeReceipt,
		Status:      MovementStatusDraft,
		ToWarehouse: input.ToWarehouse,
		ExternalRef: input.ExternalRef,
		CreatedBy:   input.ActorID,
	}
	var movementID int64
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		id, err := tx.InsertMovement(ctx, movement)
		if err != nil {
			return err
		}
		movementID = id
		lines := make([]MovementLine, 0, len(input.Lines))
		for _, line := range input.Lines {
			received := line.ReceivedDate
			if received.IsZero() {
				received = time.Now().UTC()
			}
			lines = append(lines, MovementLine{
				MovementID:      id,
				SKU:             line.SKU,
				BatchID:         line.BatchID,
				Quantity:        line.Quantity,
				Note:            line.Note,
				ReceivedDate:    &received,
				UnitCost:        line.UnitCost,
				SupplierBatchNo: line.SupplierBatchNo,
			})
		}
		return tx.InsertMovementLines(ctx, id, lines)
	})
	if err != nil {
		return Movement{}, err
	}
	return s.repo.GetMovement(ctx, movementID)
}

// CreateOutbound resolves an outbound quantity request through the FIFO
// allocator and stores the resulting draft movement.
func (s *Service) CreateOutbound(ctx context.Context, input OutboundInput) (Movement, error) {
	if !input.Type.Valid() || input.Type == MovementTypeReceipt {
		return Movement{}, fmt.Errorf("inventory: invalid outbound movement type %q", input.Type)
	}
	if input.Quantity <= 0 {
		return Movement{}, ErrInvalidQuantity
	}

	movement := Movement{
		TS:            time.Now().UTC(),
		Type:          input.Type,
		Status:        MovementStatusDraft,
		FromWarehouse: input.WarehouseID,
		Channel:       input.Channel,
		ExternalRef:   input.ExternalRef,
		CreatedBy:     input.ActorID,
	}
	var movementID int64
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		allocated, err := allocateFIFO(ctx, tx, input.SKU, input.WarehouseID, input.Quantity)
		if err != nil {
			return err
		}
		if err := validateCompliance(allocated); err != nil {
			return err
		}
		id, err := tx.InsertMovement(ctx, movement)
		if err != nil {
			return err
		}
		movementID = id
		lines := make([]MovementLine, 0, len(allocated))
		for _, alloc := range allocated {
			lines = append(lines, MovementLine{
				MovementID: id,
				SKU:        alloc.Batch.SKU,
				BatchID:    alloc.Batch.BatchID,
				Quantity:   alloc.Quantity,
				Note:       input.Note,
			})
		}
		return tx.InsertMovementLines(ctx, id, lines)
	})
	if err != nil {
		s.countFailure(err)
		return Movement{}, err
	}
	return s.repo.GetMovement(ctx, movementID)
}

// Allocate runs the FIFO allocator without creating a movement. The candidate
// locks are released when the read-only transaction ends.
func (s *Service) Allocate(ctx context.Context, sku, warehouseID string, qty int64) ([]AllocationLine, error) {
	var allocated []AllocationLine
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		lines, err := allocateFIFO(ctx, tx, sku, warehouseID, qty)
		if err != nil {
			return err
		}
		if err := validateCompliance(lines); err != nil {
			return err
		}
		allocated = lines
		return nil
	})
	if err != nil {
		s.countFailure(err)
		return nil, err
	}
	return allocated, nil
}

// Commit executes the single mutating transition of the movement state
// machine. The whole operation is one transaction: batch locks, compliance
// checks, quantity deltas, ledger appends and the status flip either all
// happen or none do. Commit is not idempotent; committing a non-draft
// movement fails with ErrAlreadyProcessed.
func (s *Service) Commit(ctx context.Context, movementID int64) (Movement, error) {
	var movementType MovementType
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		movement, err := tx.GetMovementForUpdate(ctx, movementID)
		if err != nil {
			return err
		}
		if movement.Status != MovementStatusDraft {
			return fmt.Errorf("movement %d is %s: %w", movementID, movement.Status, ErrAlreadyProcessed)
		}
		movementType = movement.Type

		lines, err := tx.ListMovementLines(ctx, movementID)
		if err != nil {
			return err
		}
		// Lock order must match the allocator's: batch id ascending. This is a
		// correctness property, not a tuning choice.
		sort.Slice(lines, func(i, j int) bool { return lines[i].BatchID < lines[j].BatchID })

		store := batchStore{tx: tx}
		now := time.Now().UTC()
		entries := make([]LedgerEntry, 0, len(lines))
		for _, line := range lines {
			batch, err := s.resolveBatch(ctx, tx, store, movement, line)
			if err != nil {
				return err
			}
			if movement.Type != MovementTypeReceipt {
				if err := validateCompliance([]AllocationLine{{Batch: batch, Quantity: line.Quantity}}); err != nil {
					return err
				}
			}
			delta := -line.Quantity
			qtyIn, qtyOut := int64(0), line.Quantity
			if movement.Type == MovementTypeReceipt {
				delta = line.Quantity
				qtyIn, qtyOut = line.Quantity, 0
			}
			if _, err := store.ApplyDelta(ctx, batch, delta); err != nil {
				return err
			}
			entries = append(entries, LedgerEntry{
				TS:           now,
				MovementType: movement.Type,
				MovementID:   movementID,
				WarehouseID:  batch.WarehouseID,
				SKU:          batch.SKU,
				BatchID:      batch.BatchID,
				QtyIn:        qtyIn,
				QtyOut:       qtyOut,
				UnitCost:     batch.UnitCost,
				UserID:       movement.CreatedBy,
				Memo:         line.Note,
			})
		}
		if err := tx.AppendLedger(ctx, entries); err != nil {
			return err
		}
		return tx.SetMovementStatus(ctx, movementID, MovementStatusCommitted)
	})
	if err != nil {
		s.countFailure(err)
		return Movement{}, err
	}

	if s.metrics != nil {
		s.metrics.MovementCommitted(string(movementType))
	}
	committed, err := s.repo.GetMovement(ctx, movementID)
	if err != nil {
		return Movement{}, err
	}
	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			ActorID:  committed.CreatedBy,
			Action:   fmt.Sprintf("inventory:commit:%s", committed.Type),
			Entity:   "movement",
			EntityID: fmt.Sprintf("%d", committed.ID),
			Meta: map[string]any{
				"type":  string(committed.Type),
				"lines": len(committed.Lines),
			},
		})
	}
	return committed, nil
}

// resolveBatch locks the batch a line refers to, creating it first for
// receipt lines. Receipt batches start at zero so the committed quantity
// flows through the ledger.
func (s *Service) resolveBatch(ctx context.Context, tx TxRepository, store batchStore, movement Movement, line MovementLine) (Batch, error) {
	if movement.Type != MovementTypeReceipt {
		return store.LockAndRead(ctx, line.BatchID)
	}
	received := movement.TS
	if line.ReceivedDate != nil {
		received = *line.ReceivedDate
	}
	batch := Batch{
		BatchID:          line.BatchID,
		SKU:              line.SKU,
		WarehouseID:      movement.ToWarehouse,
		ReceivedDate:     received,
		SupplierBatchNo:  line.SupplierBatchNo,
		UnitCost:         line.UnitCost,
		StartingQty:      0,
		CurrentQty:       0,
		ComplianceStatus: CompliancePending,
	}
	if err := tx.CreateBatch(ctx, batch); err != nil {
		return Batch{}, err
	}
	return store.LockAndRead(ctx, line.BatchID)
}

// Cancel transitions a draft movement to the cancelled terminal state. It
// never touches batch rows.
func (s *Service) Cancel(ctx context.Context, movementID int64) (Movement, error) {
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		movement, err := tx.GetMovementForUpdate(ctx, movementID)
		if err != nil {
			return err
		}
		if movement.Status != MovementStatusDraft {
			return fmt.Errorf("movement %d is %s: %w", movementID, movement.Status, ErrAlreadyProcessed)
		}
		return tx.SetMovementStatus(ctx, movementID, MovementStatusCancelled)
	})
	if err != nil {
		return Movement{}, err
	}
	return s.repo.GetMovement(ctx, movementID)
}

// GetMovement fetches a movement with its lines.
func (s *Service) GetMovement(ctx context.Context, movementID int64) (Movement, error) {
	return s.repo.GetMovement(ctx, movementID)
}

// ListBatches is the read path for the allocator, planner and operators.
func (s *Service) ListBatches(ctx context.Context, filter BatchFilter) ([]Batch, error) {
	return s.repo.ListBatches(ctx, filter)
}

// GetBatch returns one batch with quantity and compliance status.
func (s *Service) GetBatch(ctx context.Context, batchID string) (Batch, error) {
	return s.repo.GetBatch(ctx, batchID)
}

// Ledger queries the append-only ledger for audit and reconciliation.
func (s *Service) Ledger(ctx context.Context, filter LedgerFilter) ([]LedgerEntry, error) {
	return s.repo.ListLedger(ctx, filter)
}

// Reconcile verifies the ledger accounts for the batch's persisted quantity.
func (s *Service) Reconcile(ctx context.Context, batchID string) (Reconciliation, error) {
	return s.repo.ReconcileBatch(ctx, batchID)
}

// ReconcileAll sweeps every batch against the ledger.
func (s *Service) ReconcileAll(ctx context.Context) ([]Reconciliation, error) {
	return s.repo.ReconcileAll(ctx)
}

// CompliancePatch back-fills compliance fields on a batch. Nil fields are
// left untouched.
type CompliancePatch struct {
	GSTRatePct          *decimal.Decimal
	Accession           *string
	AmazonSTNPrice      *decimal.Decimal
	EwaybillProductName *string
	EwaybillPrice       *decimal.Decimal
	PiecesPerCarton     *int64
	BaseCostINR         *decimal.Decimal
	BaseCostRMB         *decimal.Decimal
	BaseCostUSD         *decimal.Decimal
	UnitCost            *decimal.Decimal
	Notes               *string
	ActorID             int64
}

// UpdateCompliance applies the patch under the batch row lock and recomputes
// the derived compliance status.
func (s *Service) UpdateCompliance(ctx context.Context, batchID string, patch CompliancePatch) (Batch, error) {
	var updated Batch
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		batch, err := tx.GetBatchForUpdate(ctx, batchID)
		if err != nil {
			return err
		}
		if patch.GSTRatePct != nil {
			batch.GSTRatePctOverride = patch.GSTRatePct
		}
		if patch.Accession != nil {
			batch.Accession = *patch.Accession
		}
		if patch.AmazonSTNPrice != nil {
			batch.AmazonSTNPrice = patch.AmazonSTNPrice
		}
		if patch.EwaybillProductName != nil {
			batch.EwaybillProductName = *patch.EwaybillProductName
		}
		if patch.EwaybillPrice != nil {
			batch.EwaybillPrice = patch.EwaybillPrice
		}
		if patch.PiecesPerCarton != nil {
			batch.PiecesPerCarton = patch.PiecesPerCarton
		}
		if patch.BaseCostINR != nil {
			batch.BaseCostINR = patch.BaseCostINR
		}
		if patch.BaseCostRMB != nil {
			batch.BaseCostRMB = patch.BaseCostRMB
		}
		if patch.BaseCostUSD != nil {
			batch.BaseCostUSD = patch.BaseCostUSD
		}
		if patch.UnitCost != nil {
			batch.UnitCost = patch.UnitCost
		}
		if patch.Notes != nil {
			batch.Notes = *patch.Notes
		}
		batch.DeriveComplianceStatus()
		if err := tx.UpdateBatchCompliance(ctx, batch); err != nil {
			return err
		}
		updated = batch
		return nil
	})
	if err != nil {
		return Batch{}, err
	}
	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			ActorID:  patch.ActorID,
			Action:   "inventory:compliance_update",
			Entity:   "batch",
			EntityID: batchID,
			Meta:     map[string]any{"status": string(updated.ComplianceStatus)},
		})
	}
	return updated, nil
}

func (s *Service) countFailure(err error) {
	if s.metrics == nil {
		return
	}
	switch {
	case errors.Is(err, ErrNegativeStock):
		s.metrics.AllocationFailed("negative_stock")
	case errors.Is(err, ErrCompliancePending):
		s.metrics.AllocationFailed("compliance_pending")
	case errors.Is(err, ErrAlreadyProcessed):
		s.metrics.AllocationFailed("already_processed")
	case errors.Is(err, ErrNotFound):
		s.metrics.AllocationFailed("not_found")
	default:
		s.metrics.AllocationFailed("other")
	}
}
