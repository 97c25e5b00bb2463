package planner

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/lotkeeper/lotkeeper/internal/platform/db"
)

// SourceRow is the raw planning input gathered per SKU.
type SourceRow struct {
	Product                ProductParams
	ADU                    float64
	OnHand                 int64
	FBAStock               int64
	OrderedUnits           int64
	SellerboardRecommended int64
	AvgUnitCost            decimal.Decimal
}

// SnapshotRow is one persisted planner verdict.
type SnapshotRow struct {
	SKU                     string          `json:"sku"`
	ComputedAt              time.Time       `json:"computed_at"`
	ADU                     float64         `json:"adu"`
	OnHand                  int64           `json:"on_hand"`
	FBAStock                int64           `json:"fba_stock"`
	OrderedUnits            int64           `json:"ordered_units"`
	SellerboardRecommended  int64           `json:"sellerboard_recommended"`
	ReorderQty              int64           `json:"reorder_qty"`
	SendToFBA               int64           `json:"send_to_fba"`
	LowFBAFlag              bool            `json:"low_fba_flag"`
	LessThanSellerboardFlag bool            `json:"less_than_sellerboard_flag"`
	ExcessUnits             int64           `json:"excess_units"`
	ExcessValue             decimal.Decimal `json:"excess_value"`
}

// Repository reads planning inputs and persists snapshots.
type Repository interface {
	ListSourceRows(ctx context.Context, warehouseID string) ([]SourceRow, error)
	ReplaceSnapshot(ctx context.Context, rows []SnapshotRow) error
	ListSnapshot(ctx context.Context) ([]SnapshotRow, error)
}

type repo struct {
	db *pgxpool.Pool
}

// NewRepository creates the planner repository.
func NewRepository(db *pgxpool.Pool) Repository {
	return &repo{db: db}
}

// ListSourceRows joins product planning parameters with batch quantities,
// sellerboard metrics and open manual orders. The on-hand and average cost
// are scoped to the given warehouse.
func (r *repo) ListSourceRows(ctx context.Context, warehouseID string) ([]SourceRow, error) {
	rows, err := r.db.Query(ctx, `
		SELECT p.sku, p.status, p.moq, p.order_round_multiple, p.safety_stock_days,
			p.fba_target_days, p.months_rule_override,
			COALESCE(sm.adu, 0),
			COALESCE(sm.fba_available, 0) + COALESCE(sm.fba_reserved, 0),
			COALESCE(sm.recommended_quantity, 0),
			COALESCE(mo.ordered_1, 0) + COALESCE(mo.ordered_2, 0) + COALESCE(mo.ordered_3, 0),
			COALESCE(b.on_hand, 0),
			COALESCE(b.avg_cost, 0)
		FROM products p
		LEFT JOIN sellerboard_metrics sm ON sm.sku = p.sku
		LEFT JOIN manual_orders mo ON mo.sku = p.sku
		LEFT JOIN (
			SELECT sku, SUM(current_qty) AS on_hand, AVG(unit_cost) AS avg_cost
			FROM batches WHERE warehouse_id = $1 GROUP BY sku
		) b ON b.sku = p.sku
		ORDER BY p.sku`, warehouseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SourceRow
	for rows.Next() {
		var row SourceRow
		if err := rows.Scan(&row.Product.SKU, &row.Product.Status, &row.Product.MOQ,
			&row.Product.OrderRoundMultiple, &row.Product.SafetyStockDays,
			&row.Product.FBATargetDays, &row.Product.MonthsRuleOverride,
			&row.ADU, &row.FBAStock, &row.SellerboardRecommended,
			&row.OrderedUnits, &row.OnHand, &row.AvgUnitCost); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// ReplaceSnapshot swaps the snapshot table contents atomically.
func (r *repo) ReplaceSnapshot(ctx context.Context, snapshot []SnapshotRow) error {
	return db.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM planner_snapshot`); err != nil {
			return err
		}
		for _, row := range snapshot {
			if _, err := tx.Exec(ctx, `
				INSERT INTO planner_snapshot (sku, computed_at, adu, on_hand, fba_stock,
					ordered_units, sellerboard_recommended, reorder_qty, send_to_fba,
					low_fba_flag, less_than_sellerboard_flag, excess_units, excess_value)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
				row.SKU, row.ComputedAt, row.ADU, row.OnHand, row.FBAStock,
				row.OrderedUnits, row.SellerboardRecommended, row.ReorderQty, row.SendToFBA,
				row.LowFBAFlag, row.LessThanSellerboardFlag, row.ExcessUnits, row.ExcessValue); err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *repo) ListSnapshot(ctx context.Context) ([]SnapshotRow, error) {
	rows, err := r.db.Query(ctx, `
		SELECT sku, computed_at, adu, on_hand, fba_stock, ordered_units,
			sellerboard_recommended, reorder_qty, send_to_fba, low_fba_flag,
			less_than_sellerboard_flag, excess_units, excess_value
		FROM planner_snapshot ORDER BY sku`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SnapshotRow
	for rows.Next() {
		var row SnapshotRow
		if err := rows.Scan(&row.SKU, &row.ComputedAt, &row.ADU, &row.OnHand,
			&row.FBAStock, &row.OrderedUnits, &row.SellerboardRecommended,
			&row.ReorderQty, &row.SendToFBA, &row.LowFBAFlag,
			&row.LessThanSellerboardFlag, &row.ExcessUnits, &row.ExcessValue); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}
