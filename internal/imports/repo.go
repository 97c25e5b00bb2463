package imports

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists import side tables: sellerboard metrics, manual
// orders, the file dedupe ledger and import run records.
type Repository interface {
	EnsureProduct(ctx context.Context, sku string) error
	UpsertSellerboard(ctx context.Context, row SellerboardRow) error
	UpsertManualOrders(ctx context.Context, row ManualOrdersRow) error

	SeenFileHash(ctx context.Context, hash string) (bool, error)
	RecordFileHash(ctx context.Context, hash string, at time.Time) error
	DeleteFileHashesBefore(ctx context.Context, cutoff time.Time) (int64, error)

	InsertRun(ctx context.Context, run Run) error
}

type repo struct {
	db *pgxpool.Pool
}

// NewRepository creates the imports repository.
func NewRepository(db *pgxpool.Pool) Repository {
	return &repo{db: db}
}

// EnsureProduct creates a stub product when the SKU is unknown, titled by
// its SKU until master data fills it in.
func (r *repo) EnsureProduct(ctx context.Context, sku string) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO products (sku, title, status, created_at, updated_at)
		VALUES ($1, $1, 'active', NOW(), NOW())
		ON CONFLICT (sku) DO NOTHING`, sku)
	return err
}

func (r *repo) UpsertSellerboard(ctx context.Context, row SellerboardRow) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO sellerboard_metrics (sku, adu, fba_available, fba_reserved, recommended_quantity, as_of_ts)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (sku) DO UPDATE SET
			adu = EXCLUDED.adu,
			fba_available = EXCLUDED.fba_available,
			fba_reserved = EXCLUDED.fba_reserved,
			recommended_quantity = EXCLUDED.recommended_quantity,
			as_of_ts = EXCLUDED.as_of_ts`,
		row.SKU, row.ADU, row.FBAAvailable, row.FBAReserved, row.RecommendedQuantity, row.AsOf)
	return err
}

func (r *repo) UpsertManualOrders(ctx context.Context, row ManualOrdersRow) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO manual_orders (sku, ordered_1, ordered_2, ordered_3, updated_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (sku) DO UPDATE SET
			ordered_1 = EXCLUDED.ordered_1,
			ordered_2 = EXCLUDED.ordered_2,
			ordered_3 = EXCLUDED.ordered_3,
			updated_at = NOW()`,
		row.SKU, row.Ordered1, row.Ordered2, row.Ordered3)
	return err
}

func (r *repo) SeenFileHash(ctx context.Context, hash string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM import_file_hashes WHERE hash = $1)`, hash).Scan(&exists)
	return exists, err
}

func (r *repo) RecordFileHash(ctx context.Context, hash string, at time.Time) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO import_file_hashes (hash, imported_at) VALUES ($1, $2)
		ON CONFLICT (hash) DO NOTHING`, hash, at)
	return err
}

func (r *repo) DeleteFileHashesBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM import_file_hashes WHERE imported_at < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *repo) InsertRun(ctx context.Context, run Run) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO import_runs (id, kind, rows, skipped, created_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		run.ID, run.Kind, run.Rows, run.Skipped, run.CreatedBy, run.CreatedAt)
	return err
}
