package inventory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

// memoryState holds the mutable tables shared by the fake repository. WithTx
// clones it so a failed transaction leaves the visible state untouched, the
// same way a rolled-back database transaction would.
type memoryState struct {
	movements      map[int64]Movement
	lines          map[int64][]MovementLine
	batches        map[string]Batch
	ledger         []LedgerEntry
	products       map[string]ProductInfo
	nextMovementID int64
	nextLineID     int64
}

func newMemoryState() *memoryState {
	return &memoryState{
		movements: map[int64]Movement{},
		lines:     map[int64][]MovementLine{},
		batches:   map[string]Batch{},
		products:  map[string]ProductInfo{},
	}
}

func (s *memoryState) clone() *memoryState {
	next := newMemoryState()
	next.nextMovementID = s.nextMovementID
	next.nextLineID = s.nextLineID
	for id, m := range s.movements {
		next.movements[id] = m
	}
	for id, lines := range s.lines {
		next.lines[id] = append([]MovementLine(nil), lines...)
	}
	for id, b := range s.batches {
		next.batches[id] = b
	}
	next.ledger = append([]LedgerEntry(nil), s.ledger...)
	for sku, p := range s.products {
		next.products[sku] = p
	}
	return next
}

type memoryRepo struct {
	state *memoryState
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{state: newMemoryState()}
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	snapshot := r.state.clone()
	if err := fn(ctx, &memoryTx{state: snapshot}); err != nil {
		return err
	}
	r.state = snapshot
	return nil
}

func (r *memoryRepo) GetMovement(_ context.Context, id int64) (Movement, error) {
	m, ok := r.state.movements[id]
	if !ok {
		return Movement{}, fmt.Errorf("movement %d: %w", id, ErrNotFound)
	}
	m.Lines = append([]MovementLine(nil), r.state.lines[id]...)
	return m, nil
}

func (r *memoryRepo) GetBatch(_ context.Context, batchID string) (Batch, error) {
	b, ok := r.state.batches[batchID]
	if !ok {
		return Batch{}, fmt.Errorf("batch %s: %w", batchID, ErrNotFound)
	}
	return b, nil
}

func (r *memoryRepo) ListBatches(_ context.Context, filter BatchFilter) ([]Batch, error) {
	out := []Batch{}
	for _, b := range r.state.batches {
		if filter.SKU != "" && b.SKU != filter.SKU {
			continue
		}
		if filter.WarehouseID != "" && b.WarehouseID != filter.WarehouseID {
			continue
		}
		if filter.OnlyInStock && b.CurrentQty <= 0 {
			continue
		}
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].BatchID < out[j].BatchID })
	return out, nil
}

func (r *memoryRepo) ListLedger(_ context.Context, filter LedgerFilter) ([]LedgerEntry, error) {
	out := []LedgerEntry{}
	for _, e := range r.state.ledger {
		if filter.BatchID != "" && e.BatchID != filter.BatchID {
			continue
		}
		if filter.SKU != "" && e.SKU != filter.SKU {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

func (r *memoryRepo) ReconcileBatch(_ context.Context, batchID string) (Reconciliation, error) {
	b, ok := r.state.batches[batchID]
	if !ok {
		return Reconciliation{}, fmt.Errorf("batch %s: %w", batchID, ErrNotFound)
	}
	rec := Reconciliation{BatchID: batchID, StartingQty: b.StartingQty, CurrentQty: b.CurrentQty}
	for _, e := range r.state.ledger {
		if e.BatchID != batchID {
			continue
		}
		rec.QtyIn += e.QtyIn
		rec.QtyOut += e.QtyOut
	}
	return rec, nil
}

func (r *memoryRepo) ReconcileAll(ctx context.Context) ([]Reconciliation, error) {
	out := []Reconciliation{}
	for id := range r.state.batches {
		rec, err := r.ReconcileBatch(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].BatchID < out[j].BatchID })
	return out, nil
}

func (r *memoryRepo) GetProductInfo(_ context.Context, sku string) (ProductInfo, error) {
	p, ok := r.state.products[sku]
	if !ok {
		return ProductInfo{}, fmt.Errorf("product %s: %w", sku, ErrNotFound)
	}
	return p, nil
}

type memoryTx struct {
	state *memoryState
}

func (t *memoryTx) InsertMovement(_ context.Context, m Movement) (int64, error) {
	t.state.nextMovementID++
	m.ID = t.state.nextMovementID
	t.state.movements[m.ID] = m
	return m.ID, nil
}

func (t *memoryTx) InsertMovementLines(_ context.Context, movementID int64, lines []MovementLine) error {
	for _, line := range lines {
		t.state.nextLineID++
		line.ID = t.state.nextLineID
		line.MovementID = movementID
		t.state.lines[movementID] = append(t.state.lines[movementID], line)
	}
	return nil
}

func (t *memoryTx) GetMovementForUpdate(_ context.Context, id int64) (Movement, error) {
	m, ok := t.state.movements[id]
	if !ok {
		return Movement{}, fmt.Errorf("movement %d: %w", id, ErrNotFound)
	}
	return m, nil
}

func (t *memoryTx) ListMovementLines(_ context.Context, movementID int64) ([]MovementLine, error) {
	return append([]MovementLine(nil), t.state.lines[movementID]...), nil
}

func (t *memoryTx) SetMovementStatus(_ context.Context, id int64, status MovementStatus) error {
	m, ok := t.state.movements[id]
	if !ok {
		return fmt.Errorf("movement %d: %w", id, ErrNotFound)
	}
	m.Status = status
	t.state.movements[id] = m
	return nil
}

func (t *memoryTx) CreateBatch(_ context.Context, b Batch) error {
	if _, ok := t.state.batches[b.BatchID]; ok {
		return fmt.Errorf("batch %s: %w", b.BatchID, ErrDuplicateBatch)
	}
	t.state.batches[b.BatchID] = b
	return nil
}

func (t *memoryTx) GetBatchForUpdate(_ context.Context, batchID string) (Batch, error) {
	b, ok := t.state.batches[batchID]
	if !ok {
		return Batch{}, fmt.Errorf("batch %s: %w", batchID, ErrNotFound)
	}
	return b, nil
}

func (t *memoryTx) ListBatchesForAllocation(_ context.Context, sku, warehouseID string) ([]Batch, error) {
	out := []Batch{}
	for _, b := range t.state.batches {
		if b.SKU != sku || b.WarehouseID != warehouseID || b.CurrentQty <= 0 {
			continue
		}
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].ReceivedDate.Equal(out[j].ReceivedDate) {
			return out[i].ReceivedDate.Before(out[j].ReceivedDate)
		}
		return out[i].BatchID < out[j].BatchID
	})
	return out, nil
}

func (t *memoryTx) UpdateBatchQty(_ context.Context, batchID string, qty int64) (int64, error) {
	b, ok := t.state.batches[batchID]
	if !ok {
		return 0, fmt.Errorf("batch %s: %w", batchID, ErrNotFound)
	}
	b.CurrentQty = qty
	t.state.batches[batchID] = b
	return qty, nil
}

func (t *memoryTx) UpdateBatchCompliance(_ context.Context, b Batch) error {
	if _, ok := t.state.batches[b.BatchID]; !ok {
		return fmt.Errorf("batch %s: %w", b.BatchID, ErrNotFound)
	}
	t.state.batches[b.BatchID] = b
	return nil
}

func (t *memoryTx) AppendLedger(_ context.Context, entries []LedgerEntry) error {
	t.state.ledger = append(t.state.ledger, entries...)
	return nil
}

type fakeMetrics struct {
	committed []string
	failures  []string
}

func (m *fakeMetrics) MovementCommitted(movementType string) {
	m.committed = append(m.committed, movementType)
}

func (m *fakeMetrics) AllocationFailed(reason string) {
	m.failures = append(m.failures, reason)
}

func dec(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func i64(v int64) *int64 { return &v }

// compliantBatch builds a batch with every compliance field populated.
func compliantBatch(batchID, sku, warehouseID string, qty int64, received time.Time) Batch {
	b := Batch{
		BatchID:             batchID,
		SKU:                 sku,
		WarehouseID:         warehouseID,
		ReceivedDate:        received,
		StartingQty:         qty,
		CurrentQty:          qty,
		UnitCost:            dec("120.50"),
		GSTRatePctOverride:  dec("18"),
		Accession:           "ACC-7",
		AmazonSTNPrice:      dec("310"),
		EwaybillProductName: "Steel Bottle 750ml",
		EwaybillPrice:       dec("290"),
		PiecesPerCarton:     i64(24),
		BaseCostINR:         dec("95"),
		BaseCostRMB:         dec("8.1"),
		BaseCostUSD:         dec("1.15"),
	}
	b.DeriveComplianceStatus()
	return b
}

func pendingBatch(batchID, sku, warehouseID string, qty int64, received time.Time) Batch {
	return Batch{
		BatchID:          batchID,
		SKU:              sku,
		WarehouseID:      warehouseID,
		ReceivedDate:     received,
		StartingQty:      qty,
		CurrentQty:       qty,
		ComplianceStatus: CompliancePending,
	}
}

func newTestService(t *testing.T) (*Service, *memoryRepo, *fakeMetrics) {
	t.Helper()
	repo := newMemoryRepo()
	metrics := &fakeMetrics{}
	return NewService(repo, nil, metrics), repo, metrics
}

func TestCreateReceiptDraftHasNoSideEffects(t *testing.T) {
	svc, repo, _ := newTestService(t)
	ctx := context.Background()

	movement, err := svc.CreateReceipt(ctx, ReceiptInput{
		ToWarehouse: "WH-MAIN",
		ActorID:     7,
		Lines: []ReceiptLineInput{
			{BatchID: "B-100", SKU: "SKU-A", Quantity: 40, UnitCost: dec("99.90")},
		},
	})
	require.NoError(t, err)
	require.Equal(t, MovementStatusDraft, movement.Status)
	require.Equal(t, MovementTypeReceipt, movement.Type)
	require.Len(t, movement.Lines, 1)

	// No batch and no ledger rows exist while the receipt is a draft.
	_, err = repo.GetBatch(ctx, "B-100")
	require.ErrorIs(t, err, ErrNotFound)
	require.Empty(t, repo.state.ledger)
}

func TestCommitReceiptCreatesBatchThroughLedger(t *testing.T) {
	svc, repo, metrics := newTestService(t)
	ctx := context.Background()
	received := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)

	movement, err := svc.CreateReceipt(ctx, ReceiptInput{
		ToWarehouse: "WH-MAIN",
		ActorID:     7,
		Lines: []ReceiptLineInput{
			{BatchID: "B-100", SKU: "SKU-A", Quantity: 40, ReceivedDate: received, UnitCost: dec("99.90"), SupplierBatchNo: "SUP-9"},
		},
	})
	require.NoError(t, err)

	committed, err := svc.Commit(ctx, movement.ID)
	require.NoError(t, err)
	require.Equal(t, MovementStatusCommitted, committed.Status)

	batch, err := svc.GetBatch(ctx, "B-100")
	require.NoError(t, err)
	require.Equal(t, int64(0), batch.StartingQty)
	require.Equal(t, int64(40), batch.CurrentQty)
	require.Equal(t, received, batch.ReceivedDate)
	require.Equal(t, "SUP-9", batch.SupplierBatchNo)
	require.Equal(t, CompliancePending, batch.ComplianceStatus)
	require.True(t, batch.UnitCost.Equal(decimal.RequireFromString("99.90")))

	entries, err := svc.Ledger(ctx, LedgerFilter{BatchID: "B-100"})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, int64(40), entries[0].QtyIn)
	require.Equal(t, int64(0), entries[0].QtyOut)
	require.Equal(t, int64(7), entries[0].UserID)

	rec, err := svc.Reconcile(ctx, "B-100")
	require.NoError(t, err)
	require.True(t, rec.Balanced())
	require.Equal(t, []string{"receipt"}, metrics.committed)
	require.Len(t, repo.state.ledger, 1)
}

func TestCommitIsNotIdempotent(t *testing.T) {
	svc, _, metrics := newTestService(t)
	ctx := context.Background()

	movement, err := svc.CreateReceipt(ctx, ReceiptInput{
		ToWarehouse: "WH-MAIN",
		Lines:       []ReceiptLineInput{{BatchID: "B-100", SKU: "SKU-A", Quantity: 10}},
	})
	require.NoError(t, err)
	_, err = svc.Commit(ctx, movement.ID)
	require.NoError(t, err)

	_, err = svc.Commit(ctx, movement.ID)
	require.ErrorIs(t, err, ErrAlreadyProcessed)

	batch, err := svc.GetBatch(ctx, "B-100")
	require.NoError(t, err)
	require.Equal(t, int64(10), batch.CurrentQty)
	entries, err := svc.Ledger(ctx, LedgerFilter{BatchID: "B-100"})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Contains(t, metrics.failures, "already_processed")
}

func TestCancelDraftLeavesNoTrace(t *testing.T) {
	svc, repo, _ := newTestService(t)
	ctx := context.Background()

	movement, err := svc.CreateReceipt(ctx, ReceiptInput{
		ToWarehouse: "WH-MAIN",
		Lines:       []ReceiptLineInput{{BatchID: "B-100", SKU: "SKU-A", Quantity: 10}},
	})
	require.NoError(t, err)

	cancelled, err := svc.Cancel(ctx, movement.ID)
	require.NoError(t, err)
	require.Equal(t, MovementStatusCancelled, cancelled.Status)

	_, err = repo.GetBatch(ctx, "B-100")
	require.ErrorIs(t, err, ErrNotFound)
	require.Empty(t, repo.state.ledger)

	// Cancelled is terminal.
	_, err = svc.Cancel(ctx, movement.ID)
	require.ErrorIs(t, err, ErrAlreadyProcessed)
	_, err = svc.Commit(ctx, movement.ID)
	require.ErrorIs(t, err, ErrAlreadyProcessed)
}

func TestCreateReceiptRejectsExistingBatch(t *testing.T) {
	svc, repo, _ := newTestService(t)
	ctx := context.Background()
	repo.state.batches["B-100"] = compliantBatch("B-100", "SKU-A", "WH-MAIN", 5, time.Now().UTC())

	_, err := svc.CreateReceipt(ctx, ReceiptInput{
		ToWarehouse: "WH-MAIN",
		Lines:       []ReceiptLineInput{{BatchID: "B-100", SKU: "SKU-A", Quantity: 10}},
	})
	require.ErrorIs(t, err, ErrDuplicateBatch)
}

func TestCommitDuplicateBatchRollsBackWholeMovement(t *testing.T) {
	svc, repo, _ := newTestService(t)
	ctx := context.Background()

	// Two drafts racing on the same new batch id. The loser fails at commit
	// and its other line must not survive.
	first, err := svc.CreateReceipt(ctx, ReceiptInput{
		ToWarehouse: "WH-MAIN",
		Lines:       []ReceiptLineInput{{BatchID: "B-100", SKU: "SKU-A", Quantity: 10}},
	})
	require.NoError(t, err)
	second, err := svc.CreateReceipt(ctx, ReceiptInput{
		ToWarehouse: "WH-MAIN",
		Lines: []ReceiptLineInput{
			{BatchID: "B-100", SKU: "SKU-A", Quantity: 4},
			{BatchID: "B-200", SKU: "SKU-A", Quantity: 6},
		},
	})
	require.NoError(t, err)

	_, err = svc.Commit(ctx, first.ID)
	require.NoError(t, err)

	_, err = svc.Commit(ctx, second.ID)
	require.ErrorIs(t, err, ErrDuplicateBatch)

	_, err = repo.GetBatch(ctx, "B-200")
	require.ErrorIs(t, err, ErrNotFound)
	batch, err := svc.GetBatch(ctx, "B-100")
	require.NoError(t, err)
	require.Equal(t, int64(10), batch.CurrentQty)
	loser, err := svc.GetMovement(ctx, second.ID)
	require.NoError(t, err)
	require.Equal(t, MovementStatusDraft, loser.Status)
}

func TestAllocateFollowsFIFOOrder(t *testing.T) {
	svc, repo, _ := newTestService(t)
	ctx := context.Background()
	day := func(d int) time.Time { return time.Date(2025, 1, d, 0, 0, 0, 0, time.UTC) }
	repo.state.batches["B-OLD"] = compliantBatch("B-OLD", "SKU-A", "WH-MAIN", 5, day(1))
	repo.state.batches["B-MID"] = compliantBatch("B-MID", "SKU-A", "WH-MAIN", 5, day(2))
	repo.state.batches["B-NEW"] = compliantBatch("B-NEW", "SKU-A", "WH-MAIN", 5, day(3))

	lines, err := svc.Allocate(ctx, "SKU-A", "WH-MAIN", 8)
	require.NoError(t, err)
	require.Len(t, lines, 2)
	require.Equal(t, "B-OLD", lines[0].Batch.BatchID)
	require.Equal(t, int64(5), lines[0].Quantity)
	require.Equal(t, "B-MID", lines[1].Batch.BatchID)
	require.Equal(t, int64(3), lines[1].Quantity)
}

func TestAllocateBreaksReceivedDateTiesByBatchID(t *testing.T) {
	svc, repo, _ := newTestService(t)
	ctx := context.Background()
	received := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	repo.state.batches["B-B"] = compliantBatch("B-B", "SKU-A", "WH-MAIN", 5, received)
	repo.state.batches["B-A"] = compliantBatch("B-A", "SKU-A", "WH-MAIN", 5, received)

	lines, err := svc.Allocate(ctx, "SKU-A", "WH-MAIN", 6)
	require.NoError(t, err)
	require.Len(t, lines, 2)
	require.Equal(t, "B-A", lines[0].Batch.BatchID)
	require.Equal(t, "B-B", lines[1].Batch.BatchID)
}

func TestAllocateShortfallFails(t *testing.T) {
	svc, repo, metrics := newTestService(t)
	ctx := context.Background()
	repo.state.batches["B-100"] = compliantBatch("B-100", "SKU-A", "WH-MAIN", 3, time.Now().UTC())

	_, err := svc.Allocate(ctx, "SKU-A", "WH-MAIN", 10)
	require.ErrorIs(t, err, ErrNegativeStock)
	require.Contains(t, metrics.failures, "negative_stock")
}

func TestAllocateZeroQuantityIsNoop(t *testing.T) {
	svc, _, _ := newTestService(t)

	lines, err := svc.Allocate(context.Background(), "SKU-A", "WH-MAIN", 0)
	require.NoError(t, err)
	require.Empty(t, lines)
}

func TestAllocateRejectsPendingCompliance(t *testing.T) {
	svc, repo, metrics := newTestService(t)
	ctx := context.Background()
	repo.state.batches["B-100"] = pendingBatch("B-100", "SKU-A", "WH-MAIN", 10, time.Now().UTC())

	_, err := svc.Allocate(ctx, "SKU-A", "WH-MAIN", 5)
	require.ErrorIs(t, err, ErrCompliancePending)
	require.Contains(t, err.Error(), "B-100")
	require.Contains(t, metrics.failures, "compliance_pending")
}

func TestCreateOutboundStoresAllocatedDraft(t *testing.T) {
	svc, repo, _ := newTestService(t)
	ctx := context.Background()
	day := func(d int) time.Time { return time.Date(2025, 1, d, 0, 0, 0, 0, time.UTC) }
	repo.state.batches["B-OLD"] = compliantBatch("B-OLD", "SKU-A", "WH-MAIN", 5, day(1))
	repo.state.batches["B-NEW"] = compliantBatch("B-NEW", "SKU-A", "WH-MAIN", 5, day(2))

	movement, err := svc.CreateOutbound(ctx, OutboundInput{
		Type:        MovementTypeFBA,
		SKU:         "SKU-A",
		WarehouseID: "WH-MAIN",
		Quantity:    7,
		Channel:     "amazon_fba",
	})
	require.NoError(t, err)
	require.Equal(t, MovementStatusDraft, movement.Status)
	require.Len(t, movement.Lines, 2)
	require.Equal(t, "B-OLD", movement.Lines[0].BatchID)
	require.Equal(t, int64(5), movement.Lines[0].Quantity)
	require.Equal(t, "B-NEW", movement.Lines[1].BatchID)
	require.Equal(t, int64(2), movement.Lines[1].Quantity)

	// Allocation alone reserves nothing across transactions.
	batch, err := svc.GetBatch(ctx, "B-OLD")
	require.NoError(t, err)
	require.Equal(t, int64(5), batch.CurrentQty)
}

func TestCommitOutboundDecrementsAndAppendsLedger(t *testing.T) {
	svc, repo, metrics := newTestService(t)
	ctx := context.Background()
	repo.state.batches["B-100"] = compliantBatch("B-100", "SKU-A", "WH-MAIN", 20, time.Now().UTC())

	movement, err := svc.CreateMovement(ctx, CreateMovementInput{
		Type:          MovementTypeTransfer,
		FromWarehouse: "WH-MAIN",
		ToWarehouse:   "WH-NORTH",
		ActorID:       3,
		Lines:         []LineInput{{SKU: "SKU-A", BatchID: "B-100", Quantity: 8, Note: "restock"}},
	})
	require.NoError(t, err)

	_, err = svc.Commit(ctx, movement.ID)
	require.NoError(t, err)

	batch, err := svc.GetBatch(ctx, "B-100")
	require.NoError(t, err)
	require.Equal(t, int64(12), batch.CurrentQty)

	entries, err := svc.Ledger(ctx, LedgerFilter{BatchID: "B-100"})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, int64(0), entries[0].QtyIn)
	require.Equal(t, int64(8), entries[0].QtyOut)
	require.Equal(t, MovementTypeTransfer, entries[0].MovementType)
	require.Equal(t, "restock", entries[0].Memo)
	require.True(t, entries[0].UnitCost.Equal(decimal.RequireFromString("120.50")))

	rec, err := svc.Reconcile(ctx, "B-100")
	require.NoError(t, err)
	require.True(t, rec.Balanced())
	require.Equal(t, []string{"transfer"}, metrics.committed)
}

func TestCommitIsAllOrNothing(t *testing.T) {
	svc, repo, _ := newTestService(t)
	ctx := context.Background()
	repo.state.batches["B-A"] = compliantBatch("B-A", "SKU-A", "WH-MAIN", 50, time.Now().UTC())
	repo.state.batches["B-B"] = compliantBatch("B-B", "SKU-B", "WH-MAIN", 2, time.Now().UTC())

	movement, err := svc.CreateMovement(ctx, CreateMovementInput{
		Type:          MovementTypeScrap,
		FromWarehouse: "WH-MAIN",
		Lines: []LineInput{
			{SKU: "SKU-A", BatchID: "B-A", Quantity: 10},
			{SKU: "SKU-B", BatchID: "B-B", Quantity: 5},
		},
	})
	require.NoError(t, err)

	_, err = svc.Commit(ctx, movement.ID)
	require.ErrorIs(t, err, ErrNegativeStock)
	require.Contains(t, err.Error(), "B-B")

	// The first line's decrement must not survive the failed commit.
	batchA, err := svc.GetBatch(ctx, "B-A")
	require.NoError(t, err)
	require.Equal(t, int64(50), batchA.CurrentQty)
	require.Empty(t, repo.state.ledger)
	after, err := svc.GetMovement(ctx, movement.ID)
	require.NoError(t, err)
	require.Equal(t, MovementStatusDraft, after.Status)
}

func TestCommitRejectsPendingComplianceBeforeMutation(t *testing.T) {
	svc, repo, _ := newTestService(t)
	ctx := context.Background()
	repo.state.batches["B-100"] = pendingBatch("B-100", "SKU-A", "WH-MAIN", 10, time.Now().UTC())

	movement, err := svc.CreateMovement(ctx, CreateMovementInput{
		Type:          MovementTypeTransfer,
		FromWarehouse: "WH-MAIN",
		ToWarehouse:   "WH-NORTH",
		Lines:         []LineInput{{SKU: "SKU-A", BatchID: "B-100", Quantity: 4}},
	})
	require.NoError(t, err)

	_, err = svc.Commit(ctx, movement.ID)
	require.ErrorIs(t, err, ErrCompliancePending)

	batch, err := svc.GetBatch(ctx, "B-100")
	require.NoError(t, err)
	require.Equal(t, int64(10), batch.CurrentQty)
	require.Empty(t, repo.state.ledger)
}

func TestCommitReceiptSkipsComplianceGate(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	movement, err := svc.CreateReceipt(ctx, ReceiptInput{
		ToWarehouse: "WH-MAIN",
		Lines:       []ReceiptLineInput{{BatchID: "B-100", SKU: "SKU-A", Quantity: 10}},
	})
	require.NoError(t, err)

	// A brand new batch is always compliance-pending; the receipt still lands.
	_, err = svc.Commit(ctx, movement.ID)
	require.NoError(t, err)
	batch, err := svc.GetBatch(ctx, "B-100")
	require.NoError(t, err)
	require.Equal(t, CompliancePending, batch.ComplianceStatus)
	require.Equal(t, int64(10), batch.CurrentQty)
}

func TestCreateMovementValidation(t *testing.T) {
	svc, repo, _ := newTestService(t)
	ctx := context.Background()
	repo.state.batches["B-100"] = compliantBatch("B-100", "SKU-A", "WH-MAIN", 10, time.Now().UTC())

	_, err := svc.CreateMovement(ctx, CreateMovementInput{
		Type:  MovementTypeReceipt,
		Lines: []LineInput{{SKU: "SKU-A", BatchID: "B-100", Quantity: 1}},
	})
	require.Error(t, err)

	_, err = svc.CreateMovement(ctx, CreateMovementInput{
		Type:  MovementTypeTransfer,
		Lines: []LineInput{{SKU: "SKU-A", BatchID: "B-100", Quantity: 0}},
	})
	require.ErrorIs(t, err, ErrInvalidQuantity)

	_, err = svc.CreateMovement(ctx, CreateMovementInput{
		Type: MovementTypeTransfer,
		Lines: []LineInput{
			{SKU: "SKU-A", BatchID: "B-100", Quantity: 1},
			{SKU: "SKU-A", BatchID: "B-100", Quantity: 2},
		},
	})
	require.ErrorIs(t, err, ErrDuplicateLine)

	_, err = svc.CreateMovement(ctx, CreateMovementInput{
		Type:  MovementTypeTransfer,
		Lines: []LineInput{{SKU: "SKU-A", BatchID: "B-MISSING", Quantity: 1}},
	})
	require.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateComplianceDerivesStatus(t *testing.T) {
	svc, repo, _ := newTestService(t)
	ctx := context.Background()
	repo.state.batches["B-100"] = pendingBatch("B-100", "SKU-A", "WH-MAIN", 10, time.Now().UTC())

	acc := "ACC-1"
	name := "Steel Bottle 750ml"
	partial, err := svc.UpdateCompliance(ctx, "B-100", CompliancePatch{
		GSTRatePct: dec("18"),
		Accession:  &acc,
	})
	require.NoError(t, err)
	require.Equal(t, CompliancePending, partial.ComplianceStatus)

	full, err := svc.UpdateCompliance(ctx, "B-100", CompliancePatch{
		AmazonSTNPrice:      dec("310"),
		EwaybillProductName: &name,
		EwaybillPrice:       dec("290"),
		PiecesPerCarton:     i64(24),
		BaseCostINR:         dec("95"),
		BaseCostRMB:         dec("8.1"),
		BaseCostUSD:         dec("1.15"),
	})
	require.NoError(t, err)
	require.Equal(t, ComplianceComplete, full.ComplianceStatus)

	// Once complete the batch is eligible for outbound allocation.
	lines, err := svc.Allocate(ctx, "SKU-A", "WH-MAIN", 5)
	require.NoError(t, err)
	require.Len(t, lines, 1)
}

func TestReconcileDetectsDrift(t *testing.T) {
	svc, repo, _ := newTestService(t)
	ctx := context.Background()

	movement, err := svc.CreateReceipt(ctx, ReceiptInput{
		ToWarehouse: "WH-MAIN",
		Lines:       []ReceiptLineInput{{BatchID: "B-100", SKU: "SKU-A", Quantity: 10}},
	})
	require.NoError(t, err)
	_, err = svc.Commit(ctx, movement.ID)
	require.NoError(t, err)

	rec, err := svc.Reconcile(ctx, "B-100")
	require.NoError(t, err)
	require.True(t, rec.Balanced())

	// Mutate the quantity behind the ledger's back.
	b := repo.state.batches["B-100"]
	b.CurrentQty = 7
	repo.state.batches["B-100"] = b

	rec, err = svc.Reconcile(ctx, "B-100")
	require.NoError(t, err)
	require.False(t, rec.Balanced())
	require.Equal(t, int64(10), rec.Expected())
}

func TestMovementLifecycle(t *testing.T) {
	svc, repo, metrics := newTestService(t)
	ctx := context.Background()

	// Receive, backfill compliance, transfer out, then scrap the remainder.
	receipt, err := svc.CreateReceipt(ctx, ReceiptInput{
		ToWarehouse: "WH-MAIN",
		ActorID:     1,
		Lines:       []ReceiptLineInput{{BatchID: "B-100", SKU: "SKU-A", Quantity: 30, UnitCost: dec("85")}},
	})
	require.NoError(t, err)
	_, err = svc.Commit(ctx, receipt.ID)
	require.NoError(t, err)

	acc := "ACC-2"
	name := "Copper Lamp"
	_, err = svc.UpdateCompliance(ctx, "B-100", CompliancePatch{
		GSTRatePct:          dec("12"),
		Accession:           &acc,
		AmazonSTNPrice:      dec("410"),
		EwaybillProductName: &name,
		EwaybillPrice:       dec("400"),
		PiecesPerCarton:     i64(12),
		BaseCostINR:         dec("85"),
		BaseCostRMB:         dec("7.2"),
		BaseCostUSD:         dec("1.02"),
	})
	require.NoError(t, err)

	transfer, err := svc.CreateOutbound(ctx, OutboundInput{
		Type:        MovementTypeTransfer,
		SKU:         "SKU-A",
		WarehouseID: "WH-MAIN",
		Quantity:    18,
		ActorID:     1,
	})
	require.NoError(t, err)
	_, err = svc.Commit(ctx, transfer.ID)
	require.NoError(t, err)

	scrap, err := svc.CreateOutbound(ctx, OutboundInput{
		Type:        MovementTypeScrap,
		SKU:         "SKU-A",
		WarehouseID: "WH-MAIN",
		Quantity:    12,
		ActorID:     1,
	})
	require.NoError(t, err)
	_, err = svc.Commit(ctx, scrap.ID)
	require.NoError(t, err)

	batch, err := svc.GetBatch(ctx, "B-100")
	require.NoError(t, err)
	require.Equal(t, int64(0), batch.CurrentQty)

	rec, err := svc.Reconcile(ctx, "B-100")
	require.NoError(t, err)
	require.True(t, rec.Balanced())
	require.Equal(t, int64(30), rec.QtyIn)
	require.Equal(t, int64(30), rec.QtyOut)
	require.Equal(t, []string{"receipt", "transfer", "scrap"}, metrics.committed)
	require.Len(t, repo.state.ledger, 3)
}

func TestBuildFBAExport(t *testing.T) {
	svc, repo, _ := newTestService(t)
	ctx := context.Background()
	day := func(d int) time.Time { return time.Date(2025, 2, d, 0, 0, 0, 0, time.UTC) }
	repo.state.products["SKU-A"] = ProductInfo{SKU: "SKU-A", Title: "Steel Bottle", HSNCode: "7323", Status: "active"}

	old := compliantBatch("B-OLD", "SKU-A", "WH-MAIN", 6, day(1))
	newer := compliantBatch("B-NEW", "SKU-A", "WH-MAIN", 6, day(2))
	newer.EwaybillProductName = ""
	newer.DeriveComplianceStatus()
	require.Equal(t, CompliancePending, newer.ComplianceStatus)
	newer.EwaybillProductName = "Steel Bottle XL"
	newer.DeriveComplianceStatus()
	repo.state.batches["B-OLD"] = old
	repo.state.batches["B-NEW"] = newer

	export, err := svc.BuildFBAExport(ctx, "WH-MAIN", []FBAPlanRow{
		{SKU: "SKU-A", Quantity: 9, FCCode: "BOM7"},
	})
	require.NoError(t, err)
	require.Len(t, export, 2)
	require.Equal(t, "B-OLD", export[0].BatchID)
	require.Equal(t, int64(6), export[0].QuantityRemoved)
	require.Equal(t, "B-NEW", export[1].BatchID)
	require.Equal(t, int64(3), export[1].QuantityRemoved)
	require.Equal(t, "7323", export[0].HSNCode)
	require.Equal(t, "BOM7", export[0].FCCode)

	// The export is a dry run; nothing moved.
	batch, err := svc.GetBatch(ctx, "B-OLD")
	require.NoError(t, err)
	require.Equal(t, int64(6), batch.CurrentQty)
	require.Empty(t, repo.state.ledger)
}

func TestBuildFBAExportRejectsPendingBatch(t *testing.T) {
	svc, repo, _ := newTestService(t)
	ctx := context.Background()
	repo.state.products["SKU-A"] = ProductInfo{SKU: "SKU-A", Title: "Steel Bottle", HSNCode: "7323"}
	repo.state.batches["B-100"] = pendingBatch("B-100", "SKU-A", "WH-MAIN", 10, time.Now().UTC())

	_, err := svc.BuildFBAExport(ctx, "WH-MAIN", []FBAPlanRow{{SKU: "SKU-A", Quantity: 4, FCCode: "DEL4"}})
	require.ErrorIs(t, err, ErrCompliancePending)
}

func TestApplyDeltaRejectsNegative(t *testing.T) {
	repo := newMemoryRepo()
	repo.state.batches["B-100"] = compliantBatch("B-100", "SKU-A", "WH-MAIN", 3, time.Now().UTC())

	err := repo.WithTx(context.Background(), func(ctx context.Context, tx TxRepository) error {
		store := batchStore{tx: tx}
		batch, err := store.LockAndRead(ctx, "B-100")
		if err != nil {
			return err
		}
		_, err = store.ApplyDelta(ctx, batch, -5)
		return err
	})
	require.ErrorIs(t, err, ErrNegativeStock)

	var notFound error
	_ = repo.WithTx(context.Background(), func(ctx context.Context, tx TxRepository) error {
		store := batchStore{tx: tx}
		_, notFound = store.LockAndRead(ctx, "B-MISSING")
		return nil
	})
	require.ErrorIs(t, notFound, ErrNotFound)
}

func TestCountFailureMapsErrors(t *testing.T) {
	metrics := &fakeMetrics{}
	svc := NewService(newMemoryRepo(), nil, metrics)

	svc.countFailure(fmt.Errorf("x: %w", ErrNegativeStock))
	svc.countFailure(fmt.Errorf("x: %w", ErrCompliancePending))
	svc.countFailure(fmt.Errorf("x: %w", ErrAlreadyProcessed))
	svc.countFailure(fmt.Errorf("x: %w", ErrNotFound))
	svc.countFailure(errors.New("boom"))
	require.Equal(t, []string{"negative_stock", "compliance_pending", "already_processed", "not_found", "other"}, metrics.failures)
}
