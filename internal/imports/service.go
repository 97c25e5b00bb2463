package imports

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/lotkeeper/lotkeeper/internal/inventory"
	"github.com/lotkeeper/lotkeeper/internal/shared"
)

// InventoryPort is the slice of the movement engine the receiving import
// drives. Batches are created by committing receipt movements, never by
// writing batch rows directly.
type InventoryPort interface {
	GetBatch(ctx context.Context, batchID string) (inventory.Batch, error)
	CreateReceipt(ctx context.Context, input inventory.ReceiptInput) (inventory.Movement, error)
	Commit(ctx context.Context, movementID int64) (inventory.Movement, error)
	UpdateCompliance(ctx context.Context, batchID string, patch inventory.CompliancePatch) (inventory.Batch, error)
}

// AuditPort records import runs in the audit trail.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service runs the CSV import pipelines.
type Service struct {
	repo   Repository
	stock  InventoryPort
	audit  AuditPort
	logger *slog.Logger
}

// NewService builds the import service. Audit is optional.
func NewService(repo Repository, stock InventoryPort, audit AuditPort, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, stock: stock, audit: audit, logger: logger}
}

// ImportReceiving turns a receiving CSV into committed receipt movements,
// one per warehouse, then back-fills the compliance metadata the file
// carried. Rows whose batch id already exists are skipped. Each warehouse
// movement commits on its own: a failure in a later group does not roll
// back groups already committed, and the partial result returned with the
// error lists the movements that went through.
func (s *Service) ImportReceiving(ctx context.Context, raw string, actorID int64) (ReceivingResult, error) {
	records, err := ParseReceivingCSV(raw)
	if err != nil {
		return ReceivingResult{}, fmt.Errorf("%w: %v", ErrBadFile, err)
	}

	byWarehouse := map[string][]ReceivingRecord{}
	skipped := 0
	for _, record := range records {
		_, err := s.stock.GetBatch(ctx, record.BatchID)
		if err == nil {
			skipped++
			continue
		}
		if !errors.Is(err, inventory.ErrNotFound) {
			return ReceivingResult{}, err
		}
		byWarehouse[record.WarehouseID] = append(byWarehouse[record.WarehouseID], record)
	}

	warehouses := make([]string, 0, len(byWarehouse))
	for id := range byWarehouse {
		warehouses = append(warehouses, id)
	}
	sort.Strings(warehouses)

	result := ReceivingResult{Skipped: skipped}
	for _, warehouseID := range warehouses {
		group := byWarehouse[warehouseID]
		input := inventory.ReceiptInput{ToWarehouse: warehouseID, ActorID: actorID}
		for _, record := range group {
			unitCost, err := parseOptionalDecimal(record.Metadata["unit_cost"])
			if err != nil {
				return result, fmt.Errorf("%w: batch %s: bad unit_cost", ErrBadFile, record.BatchID)
			}
			input.Lines = append(input.Lines, inventory.ReceiptLineInput{
				BatchID:         record.BatchID,
				SKU:             record.SKU,
				Quantity:        record.Quantity,
				ReceivedDate:    record.Date,
				UnitCost:        unitCost,
				SupplierBatchNo: record.Metadata["supplier_batch_no"],
			})
		}
		movement, err := s.stock.CreateReceipt(ctx, input)
		if err != nil {
			return result, err
		}
		if _, err := s.stock.Commit(ctx, movement.ID); err != nil {
			return result, err
		}
		result.MovementIDs = append(result.MovementIDs, movement.ID)
		result.Created += len(group)

		for _, record := range group {
			patch, err := compliancePatchFromMetadata(record.Metadata, actorID)
			if err != nil {
				return result, fmt.Errorf("%w: batch %s: %v", ErrBadFile, record.BatchID, err)
			}
			if patch == nil {
				continue
			}
			if _, err := s.stock.UpdateCompliance(ctx, record.BatchID, *patch); err != nil {
				return result, err
			}
		}
	}

	run, err := s.recordRun(ctx, KindReceiving, result.Created, skipped, actorID)
	if err != nil {
		return result, err
	}
	result.Run = run
	return result, nil
}

// ImportSellerboard upserts sellerboard metrics. A file whose content was
// already imported fails with ErrDuplicateFile; the dedupe ledger survives
// restarts.
func (s *Service) ImportSellerboard(ctx context.Context, raw string, asOf time.Time, actorID int64) (Run, error) {
	sum := sha256.Sum256([]byte(raw))
	hash := hex.EncodeToString(sum[:])
	seen, err := s.repo.SeenFileHash(ctx, hash)
	if err != nil {
		return Run{}, err
	}
	if seen {
		return Run{}, ErrDuplicateFile
	}

	if asOf.IsZero() {
		asOf = time.Now().UTC()
	}
	rows, err := ParseSellerboardCSV(raw, asOf)
	if err != nil {
		return Run{}, fmt.Errorf("%w: %v", ErrBadFile, err)
	}
	for _, row := range rows {
		if err := s.repo.EnsureProduct(ctx, row.SKU); err != nil {
			return Run{}, err
		}
		if err := s.repo.UpsertSellerboard(ctx, row); err != nil {
			return Run{}, err
		}
	}
	if err := s.repo.RecordFileHash(ctx, hash, time.Now().UTC()); err != nil {
		return Run{}, err
	}
	return s.recordRun(ctx, KindSellerboard, len(rows), 0, actorID)
}

// ImportManualOrders upserts the manually tracked open order quantities.
func (s *Service) ImportManualOrders(ctx context.Context, raw string, actorID int64) (Run, error) {
	rows, err := ParseManualOrdersCSV(raw)
	if err != nil {
		return Run{}, fmt.Errorf("%w: %v", ErrBadFile, err)
	}
	for _, row := range rows {
		if err := s.repo.EnsureProduct(ctx, row.SKU); err != nil {
			return Run{}, err
		}
		if err := s.repo.UpsertManualOrders(ctx, row); err != nil {
			return Run{}, err
		}
	}
	return s.recordRun(ctx, KindManualOrders, len(rows), 0, actorID)
}

// CleanupFileHashes evicts dedupe entries older than the TTL.
func (s *Service) CleanupFileHashes(ctx context.Context, ttl time.Duration) (int64, error) {
	return s.repo.DeleteFileHashesBefore(ctx, time.Now().UTC().Add(-ttl))
}

func (s *Service) recordRun(ctx context.Context, kind string, rows, skipped int, actorID int64) (Run, error) {
	run := Run{
		ID:        uuid.New(),
		Kind:      kind,
		Rows:      rows,
		Skipped:   skipped,
		CreatedBy: actorID,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.repo.InsertRun(ctx, run); err != nil {
		return Run{}, err
	}
	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			ActorID:  actorID,
			Action:   "imports:" + kind,
			Entity:   "import_run",
			EntityID: run.ID.String(),
			Meta:     map[string]any{"rows": rows, "skipped": skipped},
		})
	}
	return run, nil
}

// compliancePatchFromMetadata maps receiving CSV metadata columns onto the
// batch compliance patch. Returns nil when no column is set.
func compliancePatchFromMetadata(metadata map[string]string, actorID int64) (*inventory.CompliancePatch, error) {
	patch := inventory.CompliancePatch{ActorID: actorID}
	touched := false

	gst, err := parseOptionalDecimal(metadata["gst_rate_pct"])
	if err != nil {
		return nil, fmt.Errorf("bad gst_rate_pct")
	}
	if gst != nil {
		patch.GSTRatePct = gst
		touched = true
	}
	stn, err := parseOptionalDecimal(metadata["amazon_stn_price"])
	if err != nil {
		return nil, fmt.Errorf("bad amazon_stn_price")
	}
	if stn != nil {
		patch.AmazonSTNPrice = stn
		touched = true
	}
	ewb, err := parseOptionalDecimal(metadata["ewaybill_price"])
	if err != nil {
		return nil, fmt.Errorf("bad ewaybill_price")
	}
	if ewb != nil {
		patch.EwaybillPrice = ewb
		touched = true
	}
	inr, err := parseOptionalDecimal(metadata["base_cost_inr"])
	if err != nil {
		return nil, fmt.Errorf("bad base_cost_inr")
	}
	if inr != nil {
		patch.BaseCostINR = inr
		touched = true
	}
	rmb, err := parseOptionalDecimal(metadata["base_cost_rmb"])
	if err != nil {
		return nil, fmt.Errorf("bad base_cost_rmb")
	}
	if rmb != nil {
		patch.BaseCostRMB = rmb
		touched = true
	}
	usd, err := parseOptionalDecimal(metadata["base_cost_usd"])
	if err != nil {
		return nil, fmt.Errorf("bad base_cost_usd")
	}
	if usd != nil {
		patch.BaseCostUSD = usd
		touched = true
	}
	if name := metadata["product_name"]; name != "" {
		patch.EwaybillProductName = &name
		touched = true
	}
	if acc := metadata["accession"]; acc != "" {
		patch.Accession = &acc
		touched = true
	}
	if ppc := metadata["pieces_per_carton"]; ppc != "" {
		n, err := parseIntOrZero(ppc)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("bad pieces_per_carton")
		}
		patch.PiecesPerCarton = &n
		touched = true
	}

	if !touched {
		return nil, nil
	}
	return &patch, nil
}
