package masterdata

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lotkeeper/lotkeeper/internal/platform/httpx"
)

// repo implements Repository interface.
type repo struct {
	db *pgxpool.Pool
}

// NewRepository creates a new master data repository.
func NewRepository(db *pgxpool.Pool) Repository {
	return &repo{db: db}
}

const productColumns = `sku, title, hsn_code, gst_rate_pct, brand, status, moq,
	order_round_multiple, lead_time_days, safety_stock_days, fba_target_days,
	months_rule_override, supplier_id, notes, created_at, updated_at`

// Product operations

func (r *repo) ListProducts(ctx context.Context, filters ListFilters) ([]Product, int, error) {
	where := []string{"1=1"}
	args := []any{}
	if filters.Search != "" {
		args = append(args, "%"+strings.ToLower(filters.Search)+"%")
		where = append(where, fmt.Sprintf("(LOWER(sku) LIKE $%d OR LOWER(title) LIKE $%d)", len(args), len(args)))
	}
	if filters.Status != "" {
		args = append(args, filters.Status)
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	if filters.Supplier != "" {
		args = append(args, filters.Supplier)
		where = append(where, fmt.Sprintf("supplier_id = $%d", len(args)))
	}
	cond := strings.Join(where, " AND ")

	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM products WHERE `+cond, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit := filters.Limit
	if limit <= 0 {
		limit = 50
	}
	offset := 0
	if filters.Page > 1 {
		offset = (filters.Page - 1) * limit
	}
	args = append(args, limit, offset)
	query := fmt.Sprintf(`SELECT %s FROM products WHERE %s ORDER BY sku LIMIT $%d OFFSET $%d`,
		productColumns, cond, len(args)-1, len(args))

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var products []Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, 0, err
		}
		products = append(products, p)
	}
	return products, total, rows.Err()
}

func (r *repo) GetProduct(ctx context.Context, sku string) (Product, error) {
	row := r.db.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE sku = $1`, sku)
	p, err := scanProduct(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Product{}, fmt.Errorf("product %s: %w", sku, httpx.ErrNotFound)
	}
	return p, err
}

func (r *repo) CreateProduct(ctx context.Context, product Product) (Product, error) {
	now := time.Now().UTC()
	_, err := r.db.Exec(ctx, `
		INSERT INTO products (sku, title, hsn_code, gst_rate_pct, brand, status, moq,
			order_round_multiple, lead_time_days, safety_stock_days, fba_target_days,
			months_rule_override, supplier_id, notes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $15)`,
		product.SKU, product.Title, product.HSNCode, product.GSTRatePct, product.Brand,
		product.Status, product.MOQ, product.OrderRoundMultiple, product.LeadTimeDays,
		product.SafetyStockDays, product.FBATargetDays, product.MonthsRuleOverride,
		product.SupplierID, product.Notes, now)
	if isUniqueViolation(err) {
		return Product{}, fmt.Errorf("product %s: %w", product.SKU, httpx.ErrDuplicate)
	}
	if err != nil {
		return Product{}, err
	}
	product.CreatedAt = now
	product.UpdatedAt = now
	return product, nil
}

func (r *repo) UpdateProduct(ctx context.Context, sku string, product Product) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE products SET title = $1, hsn_code = $2, gst_rate_pct = $3, brand = $4,
			status = $5, moq = $6, order_round_multiple = $7, lead_time_days = $8,
			safety_stock_days = $9, fba_target_days = $10, months_rule_override = $11,
			supplier_id = $12, notes = $13, updated_at = NOW()
		WHERE sku = $14`,
		product.Title, product.HSNCode, product.GSTRatePct, product.Brand, product.Status,
		product.MOQ, product.OrderRoundMultiple, product.LeadTimeDays, product.SafetyStockDays,
		product.FBATargetDays, product.MonthsRuleOverride, product.SupplierID, product.Notes, sku)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("product %s: %w", sku, httpx.ErrNotFound)
	}
	return nil
}

func (r *repo) DeleteProduct(ctx context.Context, sku string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM products WHERE sku = $1`, sku)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("product %s: %w", sku, httpx.ErrNotFound)
	}
	return nil
}

// Warehouse operations

func (r *repo) ListWarehouses(ctx context.Context) ([]Warehouse, error) {
	rows, err := r.db.Query(ctx, `SELECT id, name, address, created_at, updated_at FROM warehouses ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var warehouses []Warehouse
	for rows.Next() {
		var w Warehouse
		if err := rows.Scan(&w.ID, &w.Name, &w.Address, &w.CreatedAt, &w.UpdatedAt); err != nil {
			return nil, err
		}
		warehouses = append(warehouses, w)
	}
	return warehouses, rows.Err()
}

func (r *repo) GetWarehouse(ctx context.Context, id string) (Warehouse, error) {
	var w Warehouse
	err := r.db.QueryRow(ctx, `SELECT id, name, address, created_at, updated_at FROM warehouses WHERE id = $1`, id).
		Scan(&w.ID, &w.Name, &w.Address, &w.CreatedAt, &w.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Warehouse{}, fmt.Errorf("warehouse %s: %w", id, httpx.ErrNotFound)
	}
	return w, err
}

func (r *repo) CreateWarehouse(ctx context.Context, warehouse Warehouse) (Warehouse, error) {
	now := time.Now().UTC()
	_, err := r.db.Exec(ctx, `INSERT INTO warehouses (id, name, address, created_at, updated_at) VALUES ($1, $2, $3, $4, $4)`,
		warehouse.ID, warehouse.Name, warehouse.Address, now)
	if isUniqueViolation(err) {
		return Warehouse{}, fmt.Errorf("warehouse %s: %w", warehouse.ID, httpx.ErrDuplicate)
	}
	if err != nil {
		return Warehouse{}, err
	}
	warehouse.CreatedAt = now
	warehouse.UpdatedAt = now
	return warehouse, nil
}

func (r *repo) UpdateWarehouse(ctx context.Context, id string, warehouse Warehouse) error {
	tag, err := r.db.Exec(ctx, `UPDATE warehouses SET name = $1, address = $2, updated_at = NOW() WHERE id = $3`,
		warehouse.Name, warehouse.Address, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("warehouse %s: %w", id, httpx.ErrNotFound)
	}
	return nil
}

func (r *repo) DeleteWarehouse(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM warehouses WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("warehouse %s: %w", id, httpx.ErrNotFound)
	}
	return nil
}

// Supplier operations

func (r *repo) ListSuppliers(ctx context.Context, filters ListFilters) ([]Supplier, error) {
	query := `SELECT id, name, contact, default_lead_time_days, moq, round_multiple, is_active, created_at, updated_at FROM suppliers`
	args := []any{}
	if filters.Search != "" {
		query += ` WHERE LOWER(name) LIKE $1`
		args = append(args, "%"+strings.ToLower(filters.Search)+"%")
	}
	query += ` ORDER BY name`

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var suppliers []Supplier
	for rows.Next() {
		var s Supplier
		if err := rows.Scan(&s.ID, &s.Name, &s.Contact, &s.DefaultLeadTimeDays, &s.MOQ, &s.RoundMultiple, &s.IsActive, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, err
		}
		suppliers = append(suppliers, s)
	}
	return suppliers, rows.Err()
}

func (r *repo) GetSupplier(ctx context.Context, id string) (Supplier, error) {
	var s Supplier
	err := r.db.QueryRow(ctx, `SELECT id, name, contact, default_lead_time_days, moq, round_multiple, is_active, created_at, updated_at FROM suppliers WHERE id = $1`, id).
		Scan(&s.ID, &s.Name, &s.Contact, &s.DefaultLeadTimeDays, &s.MOQ, &s.RoundMultiple, &s.IsActive, &s.CreatedAt, &s.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Supplier{}, fmt.Errorf("supplier %s: %w", id, httpx.ErrNotFound)
	}
	return s, err
}

func (r *repo) CreateSupplier(ctx context.Context, supplier Supplier) (Supplier, error) {
	now := time.Now().UTC()
	_, err := r.db.Exec(ctx, `
		INSERT INTO suppliers (id, name, contact, default_lead_time_days, moq, round_multiple, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)`,
		supplier.ID, supplier.Name, supplier.Contact, supplier.DefaultLeadTimeDays,
		supplier.MOQ, supplier.RoundMultiple, supplier.IsActive, now)
	if isUniqueViolation(err) {
		return Supplier{}, fmt.Errorf("supplier %s: %w", supplier.ID, httpx.ErrDuplicate)
	}
	if err != nil {
		return Supplier{}, err
	}
	supplier.CreatedAt = now
	supplier.UpdatedAt = now
	return supplier, nil
}

func (r *repo) UpdateSupplier(ctx context.Context, id string, supplier Supplier) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE suppliers SET name = $1, contact = $2, default_lead_time_days = $3,
			moq = $4, round_multiple = $5, is_active = $6, updated_at = NOW()
		WHERE id = $7`,
		supplier.Name, supplier.Contact, supplier.DefaultLeadTimeDays, supplier.MOQ,
		supplier.RoundMultiple, supplier.IsActive, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("supplier %s: %w", id, httpx.ErrNotFound)
	}
	return nil
}

func (r *repo) DeleteSupplier(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM suppliers WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("supplier %s: %w", id, httpx.ErrNotFound)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(row rowScanner) (Product, error) {
	var p Product
	err := row.Scan(&p.SKU, &p.Title, &p.HSNCode, &p.GSTRatePct, &p.Brand, &p.Status,
		&p.MOQ, &p.OrderRoundMultiple, &p.LeadTimeDays, &p.SafetyStockDays,
		&p.FBATargetDays, &p.MonthsRuleOverride, &p.SupplierID, &p.Notes,
		&p.CreatedAt, &p.UpdatedAt)
	return p, err
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
