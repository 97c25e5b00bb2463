package masterdata

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// ListFilters represents standard list page filters.
type ListFilters struct {
	Page     int
	Limit    int
	Search   string
	Status   string
	Supplier string
}

// Product is the catalog entry a SKU resolves to. The planning fields feed
// reorder computations; stock itself lives in batches.
type Product struct {
	SKU                string           `json:"sku"`
	Title              string           `json:"title"`
	HSNCode            string           `json:"hsn_code"`
	GSTRatePct         *decimal.Decimal `json:"gst_rate_pct"`
	Brand              string           `json:"brand"`
	Status             string           `json:"status"`
	MOQ                int64            `json:"moq"`
	OrderRoundMultiple int64            `json:"order_round_multiple"`
	LeadTimeDays       int              `json:"lead_time_days"`
	SafetyStockDays    int              `json:"safety_stock_days"`
	FBATargetDays      int              `json:"fba_target_days"`
	MonthsRuleOverride *decimal.Decimal `json:"months_rule_override"`
	SupplierID         *string          `json:"supplier_id"`
	Notes              string           `json:"notes"`
	CreatedAt          time.Time        `json:"created_at"`
	UpdatedAt          time.Time        `json:"updated_at"`
}

// Product status values.
const (
	ProductActive       = "active"
	ProductDiscontinued = "discontinued"
)

// Warehouse is a physical stock location.
type Warehouse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Address   string    `json:"address"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Supplier represents a supplier entity.
type Supplier struct {
	ID                  string    `json:"id"`
	Name                string    `json:"name"`
	Contact             string    `json:"contact"`
	DefaultLeadTimeDays int       `json:"default_lead_time_days"`
	MOQ                 int64     `json:"moq"`
	RoundMultiple       int64     `json:"round_multiple"`
	IsActive            bool      `json:"is_active"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}

// Repository interface for master data operations.
type Repository interface {
	ListProducts(ctx context.Context, filters ListFilters) ([]Product, int, error)
	GetProduct(ctx context.Context, sku string) (Product, error)
	CreateProduct(ctx context.Context, product Product) (Product, error)
	UpdateProduct(ctx context.Context, sku string, product Product) error
	DeleteProduct(ctx context.Context, sku string) error

	ListWarehouses(ctx context.Context) ([]Warehouse, error)
	GetWarehouse(ctx context.Context, id string) (Warehouse, error)
	CreateWarehouse(ctx context.Context, warehouse Warehouse) (Warehouse, error)
	UpdateWarehouse(ctx context.Context, id string, warehouse Warehouse) error
	DeleteWarehouse(ctx context.Context, id string) error

	ListSuppliers(ctx context.Context, filters ListFilters) ([]Supplier, error)
	GetSupplier(ctx context.Context, id string) (Supplier, error)
	CreateSupplier(ctx context.Context, supplier Supplier) (Supplier, error)
	UpdateSupplier(ctx context.Context, id string, supplier Supplier) error
	DeleteSupplier(ctx context.Context, id string) error
}

// Service interface for master data operations.
type Service interface {
	ListProducts(ctx context.Context, filters ListFilters) ([]Product, int, error)
	GetProduct(ctx context.Context, sku string) (Product, error)
	CreateProduct(ctx context.Context, product Product) (Product, error)
	UpdateProduct(ctx context.Context, sku string, product Product) error
	DeleteProduct(ctx context.Context, sku string) error

	ListWarehouses(ctx context.Context) ([]Warehouse, error)
	GetWarehouse(ctx context.Context, id string) (Warehouse, error)
	CreateWarehouse(ctx context.Context, warehouse Warehouse) (Warehouse, error)
	UpdateWarehouse(ctx context.Context, id string, warehouse Warehouse) error
	DeleteWarehouse(ctx context.Context, id string) error

	ListSuppliers(ctx context.Context, filters ListFilters) ([]Supplier, error)
	GetSupplier(ctx context.Context, id string) (Supplier, error)
	CreateSupplier(ctx context.Context, supplier Supplier) (Supplier, error)
	UpdateSupplier(ctx context.Context, id string, supplier Supplier) error
	DeleteSupplier(ctx context.Context, id string) error
}
