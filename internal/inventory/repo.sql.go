package inventory

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lotkeeper/lotkeeper/internal/platform/db"
)

// Repository persists inventory data in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const pgUniqueViolation = "23505"

const batchColumns = `batch_id, sku, warehouse_id, received_date, supplier_batch_no, unit_cost,
starting_qty, current_qty, expiry_date, notes,
gst_rate_pct_override, accession, amazon_stn_price, ewaybill_product_name, ewaybill_price,
pieces_per_carton, base_cost_inr, base_cost_rmb, base_cost_usd, compliance_status`

// WithTx executes the callback inside a repeatable-read transaction. Row locks
// taken by the callback are held until commit or rollback.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("inventory repository not initialised")
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

func (r *Repository) GetMovement(ctx context.Context, id int64) (Movement, error) {
	var m Movement
	err := r.pool.QueryRow(ctx, `SELECT id, ts, type, status, COALESCE(from_warehouse,''), COALESCE(to_warehouse,''), channel, external_ref, created_by, approved_by
FROM movements WHERE id=$1`, id).
		Scan(&m.ID, &m.TS, &m.Type, &m.Status, &m.FromWarehouse, &m.ToWarehouse, &m.Channel, &m.ExternalRef, &m.CreatedBy, &m.ApprovedBy)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Movement{}, fmt.Errorf("movement %d: %w", id, ErrNotFound)
		}
		return Movement{}, err
	}
	lines, err := scanMovementLines(ctx, r.pool, id)
	if err != nil {
		return Movement{}, err
	}
	m.Lines = lines
	return m, nil
}

func (r *Repository) GetBatch(ctx context.Context, batchID string) (Batch, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+batchColumns+` FROM batches WHERE batch_id=$1`, batchID)
	return scanBatch(row, batchID)
}

func (r *Repository) ListBatches(ctx context.Context, filter BatchFilter) ([]Batch, error) {
	query := `SELECT ` + batchColumns + ` FROM batches WHERE 1=1`
	args := []any{}
	if filter.SKU != "" {
		args = append(args, filter.SKU)
		query += fmt.Sprintf(" AND sku=$%d", len(args))
	}
	if filter.WarehouseID != "" {
		args = append(args, filter.WarehouseID)
		query += fmt.Sprintf(" AND warehouse_id=$%d", len(args))
	}
	if filter.OnlyInStock {
		query += " AND current_qty > 0"
	}
	query += " ORDER BY received_date ASC, batch_id ASC"
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectBatches(rows)
}

func (r *Repository) ListLedger(ctx context.Context, filter LedgerFilter) ([]LedgerEntry, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 200
	}
	query := `SELECT id, ts, movement_type, movement_id, warehouse_id, sku, batch_id, qty_in, qty_out, unit_cost, user_id, memo
FROM stock_ledger WHERE 1=1`
	args := []any{}
	if filter.BatchID != "" {
		args = append(args, filter.BatchID)
		query += fmt.Sprintf(" AND batch_id=$%d", len(args))
	}
	if filter.SKU != "" {
		args = append(args, filter.SKU)
		query += fmt.Sprintf(" AND sku=$%d", len(args))
	}
	if !filter.From.IsZero() {
		args = append(args, filter.From)
		query += fmt.Sprintf(" AND ts >= $%d", len(args))
	}
	if !filter.To.IsZero() {
		args = append(args, filter.To)
		query += fmt.Sprintf(" AND ts <= $%d", len(args))
	}
	args = append(args, limit)
	query += fmt.Sprintf(" ORDER BY ts ASC, id ASC LIMIT $%d", len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	entries := []LedgerEntry{}
	for rows.Next() {
		var e LedgerEntry
		if err := rows.Scan(&e.ID, &e.TS, &e.MovementType, &e.MovementID, &e.WarehouseID, &e.SKU, &e.BatchID, &e.QtyIn, &e.QtyOut, &e.UnitCost, &e.UserID, &e.Memo); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// ReconcileBatch compares a batch quantity against its ledger history.
func (r *Repository) ReconcileBatch(ctx context.Context, batchID string) (Reconciliation, error) {
	var rec Reconciliation
	err := r.pool.QueryRow(ctx, `SELECT b.batch_id, b.starting_qty, b.current_qty,
COALESCE(SUM(l.qty_in),0), COALESCE(SUM(l.qty_out),0)
FROM batches b LEFT JOIN stock_ledger l ON l.batch_id = b.batch_id
WHERE b.batch_id=$1
GROUP BY b.batch_id, b.starting_qty, b.current_qty`, batchID).
		Scan(&rec.BatchID, &rec.StartingQty, &rec.CurrentQty, &rec.QtyIn, &rec.QtyOut)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Reconciliation{}, fmt.Errorf("batch %s: %w", batchID, ErrNotFound)
		}
		return Reconciliation{}, err
	}
	return rec, nil
}

// ReconcileAll returns the reconciliation rows for every batch, drifting ones first.
func (r *Repository) ReconcileAll(ctx context.Context) ([]Reconciliation, error) {
	rows, err := r.pool.Query(ctx, `SELECT b.batch_id, b.starting_qty, b.current_qty,
COALESCE(SUM(l.qty_in),0), COALESCE(SUM(l.qty_out),0)
FROM batches b LEFT JOIN stock_ledger l ON l.batch_id = b.batch_id
GROUP BY b.batch_id, b.starting_qty, b.current_qty
ORDER BY (b.current_qty = b.starting_qty + COALESCE(SUM(l.qty_in),0) - COALESCE(SUM(l.qty_out),0)), b.batch_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	recs := []Reconciliation{}
	for rows.Next() {
		var rec Reconciliation
		if err := rows.Scan(&rec.BatchID, &rec.StartingQty, &rec.CurrentQty, &rec.QtyIn, &rec.QtyOut); err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

func (r *Repository) GetProductInfo(ctx context.Context, sku string) (ProductInfo, error) {
	var p ProductInfo
	err := r.pool.QueryRow(ctx, `SELECT sku, title, hsn_code, status FROM products WHERE sku=$1`, sku).
		Scan(&p.SKU, &p.Title, &p.HSNCode, &p.Status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ProductInfo{}, fmt.Errorf("product %s: %w", sku, ErrNotFound)
		}
		return ProductInfo{}, err
	}
	return p, nil
}

type txRepository struct {
	tx pgx.Tx
}

func (r *txRepository) InsertMovement(ctx context.Context, m Movement) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO movements (ts, type, status, from_warehouse, to_warehouse, channel, external_ref, created_by, approved_by)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9) RETURNING id`,
		m.TS, string(m.Type), string(m.Status), nullString(m.FromWarehouse), nullString(m.ToWarehouse), m.Channel, m.ExternalRef, m.CreatedBy, m.ApprovedBy).Scan(&id)
	return id, err
}

func (r *txRepository) InsertMovementLines(ctx context.Context, movementID int64, lines []MovementLine) error {
	for _, line := range lines {
		_, err := r.tx.Exec(ctx, `INSERT INTO movement_lines (movement_id, sku, batch_id, quantity, note, received_date, unit_cost, supplier_batch_no)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
			movementID, line.SKU, line.BatchID, line.Quantity, line.Note, line.ReceivedDate, line.UnitCost, line.SupplierBatchNo)
		if err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("movement %d batch %s: %w", movementID, line.BatchID, ErrDuplicateLine)
			}
			return err
		}
	}
	return nil
}

func (r *txRepository) GetMovementForUpdate(ctx context.Context, id int64) (Movement, error) {
	var m Movement
	err := r.tx.QueryRow(ctx, `SELECT id, ts, type, status, COALESCE(from_warehouse,''), COALESCE(to_warehouse,''), channel, external_ref, created_by, approved_by
FROM movements WHERE id=$1 FOR UPDATE`, id).
		Scan(&m.ID, &m.TS, &m.Type, &m.Status, &m.FromWarehouse, &m.ToWarehouse, &m.Channel, &m.ExternalRef, &m.CreatedBy, &m.ApprovedBy)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Movement{}, fmt.Errorf("movement %d: %w", id, ErrNotFound)
		}
		return Movement{}, err
	}
	return m, nil
}

func (r *txRepository) ListMovementLines(ctx context.Context, movementID int64) ([]MovementLine, error) {
	return scanMovementLines(ctx, r.tx, movementID)
}

func (r *txRepository) SetMovementStatus(ctx context.Context, id int64, status MovementStatus) error {
	tag, err := r.tx.Exec(ctx, `UPDATE movements SET status=$2, ts=NOW() WHERE id=$1`, id, string(status))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("movement %d: %w", id, ErrNotFound)
	}
	return nil
}

func (r *txRepository) CreateBatch(ctx context.Context, b Batch) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO batches (`+batchColumns+`)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20)`,
		b.BatchID, b.SKU, b.WarehouseID, b.ReceivedDate, b.SupplierBatchNo, b.UnitCost,
		b.StartingQty, b.CurrentQty, b.ExpiryDate, b.Notes,
		b.GSTRatePctOverride, b.Accession, b.AmazonSTNPrice, b.EwaybillProductName, b.EwaybillPrice,
		b.PiecesPerCarton, b.BaseCostINR, b.BaseCostRMB, b.BaseCostUSD, string(b.ComplianceStatus))
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("batch %s: %w", b.BatchID, ErrDuplicateBatch)
		}
		return err
	}
	return nil
}

func (r *txRepository) GetBatchForUpdate(ctx context.Context, batchID string) (Batch, error) {
	row := r.tx.QueryRow(ctx, `SELECT `+batchColumns+` FROM batches WHERE batch_id=$1 FOR UPDATE`, batchID)
	return scanBatch(row, batchID)
}

func (r *txRepository) ListBatchesForAllocation(ctx context.Context, sku, warehouseID string) ([]Batch, error) {
	// Deterministic order doubles as the lock acquisition order, so two
	// concurrent allocators can never deadlock on the same candidate set.
	rows, err := r.tx.Query(ctx, `SELECT `+batchColumns+` FROM batches
WHERE sku=$1 AND warehouse_id=$2 AND current_qty > 0
ORDER BY received_date ASC, batch_id ASC
FOR UPDATE`, sku, warehouseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectBatches(rows)
}

func (r *txRepository) UpdateBatchQty(ctx context.Context, batchID string, qty int64) (int64, error) {
	var persisted int64
	err := r.tx.QueryRow(ctx, `UPDATE batches SET current_qty=$2 WHERE batch_id=$1 RETURNING current_qty`, batchID, qty).Scan(&persisted)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, fmt.Errorf("batch %s: %w", batchID, ErrNotFound)
		}
		return 0, err
	}
	return persisted, nil
}

func (r *txRepository) UpdateBatchCompliance(ctx context.Context, b Batch) error {
	tag, err := r.tx.Exec(ctx, `UPDATE batches SET
gst_rate_pct_override=$2, accession=$3, amazon_stn_price=$4, ewaybill_product_name=$5, ewaybill_price=$6,
pieces_per_carton=$7, base_cost_inr=$8, base_cost_rmb=$9, base_cost_usd=$10,
unit_cost=$11, notes=$12, compliance_status=$13
WHERE batch_id=$1`,
		b.BatchID,
		b.GSTRatePctOverride, b.Accession, b.AmazonSTNPrice, b.EwaybillProductName, b.EwaybillPrice,
		b.PiecesPerCarton, b.BaseCostINR, b.BaseCostRMB, b.BaseCostUSD,
		b.UnitCost, b.Notes, string(b.ComplianceStatus))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("batch %s: %w", b.BatchID, ErrNotFound)
	}
	return nil
}

func (r *txRepository) AppendLedger(ctx context.Context, entries []LedgerEntry) error {
	for _, e := range entries {
		_, err := r.tx.Exec(ctx, `INSERT INTO stock_ledger (ts, movement_type, movement_id, warehouse_id, sku, batch_id, qty_in, qty_out, unit_cost, user_id, memo)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
			e.TS, string(e.MovementType), e.MovementID, e.WarehouseID, e.SKU, e.BatchID, e.QtyIn, e.QtyOut, e.UnitCost, e.UserID, e.Memo)
		if err != nil {
			return err
		}
	}
	return nil
}

type rowQuerier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func scanMovementLines(ctx context.Context, q rowQuerier, movementID int64) ([]MovementLine, error) {
	rows, err := q.Query(ctx, `SELECT id, movement_id, sku, batch_id, quantity, note, received_date, unit_cost, supplier_batch_no
FROM movement_lines WHERE movement_id=$1 ORDER BY batch_id ASC`, movementID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	lines := []MovementLine{}
	for rows.Next() {
		var l MovementLine
		if err := rows.Scan(&l.ID, &l.MovementID, &l.SKU, &l.BatchID, &l.Quantity, &l.Note, &l.ReceivedDate, &l.UnitCost, &l.SupplierBatchNo); err != nil {
			return nil, err
		}
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

func scanBatch(row pgx.Row, batchID string) (Batch, error) {
	var b Batch
	err := row.Scan(&b.BatchID, &b.SKU, &b.WarehouseID, &b.ReceivedDate, &b.SupplierBatchNo, &b.UnitCost,
		&b.StartingQty, &b.CurrentQty, &b.ExpiryDate, &b.Notes,
		&b.GSTRatePctOverride, &b.Accession, &b.AmazonSTNPrice, &b.EwaybillProductName, &b.EwaybillPrice,
		&b.PiecesPerCarton, &b.BaseCostINR, &b.BaseCostRMB, &b.BaseCostUSD, &b.ComplianceStatus)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Batch{}, fmt.Errorf("batch %s: %w", batchID, ErrNotFound)
		}
		return Batch{}, err
	}
	return b, nil
}

func collectBatches(rows pgx.Rows) ([]Batch, error) {
	batches := []Batch{}
	for rows.Next() {
		var b Batch
		if err := rows.Scan(&b.BatchID, &b.SKU, &b.WarehouseID, &b.ReceivedDate, &b.SupplierBatchNo, &b.UnitCost,
			&b.StartingQty, &b.CurrentQty, &b.ExpiryDate, &b.Notes,
			&b.GSTRatePctOverride, &b.Accession, &b.AmazonSTNPrice, &b.EwaybillProductName, &b.EwaybillPrice,
			&b.PiecesPerCarton, &b.BaseCostINR, &b.BaseCostRMB, &b.BaseCostUSD, &b.ComplianceStatus); err != nil {
			return nil, err
		}
		batches = append(batches, b)
	}
	return batches, rows.Err()
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
