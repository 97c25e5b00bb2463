package masterdata

import (
	"context"
	"fmt"
	"strings"

	"github.com/lotkeeper/lotkeeper/internal/platform/httpx"
)

// service implements Service interface.
type service struct {
	repo Repository
}

// NewService creates a new master data service.
func NewService(repo Repository) Service {
	return &service{repo: repo}
}

// Product operations

func (s *service) ListProducts(ctx context.Context, filters ListFilters) ([]Product, int, error) {
	return s.repo.ListProducts(ctx, filters)
}

func (s *service) GetProduct(ctx context.Context, sku string) (Product, error) {
	if sku == "" {
		return Product{}, fmt.Errorf("sku is required: %w", httpx.ErrValidation)
	}
	return s.repo.GetProduct(ctx, sku)
}

func (s *service) CreateProduct(ctx context.Context, product Product) (Product, error) {
	if err := validateProduct(product); err != nil {
		return Product{}, err
	}
	if product.Status == "" {
		product.Status = ProductActive
	}
	if product.SupplierID != nil {
		if _, err := s.repo.GetSupplier(ctx, *product.SupplierID); err != nil {
			return Product{}, err
		}
	}
	return s.repo.CreateProduct(ctx, product)
}

func (s *service) UpdateProduct(ctx context.Context, sku string, product Product) error {
	if sku == "" {
		return fmt.Errorf("sku is required: %w", httpx.ErrValidation)
	}
	if err := validateProduct(product); err != nil {
		return err
	}
	if product.SupplierID != nil {
		if _, err := s.repo.GetSupplier(ctx, *product.SupplierID); err != nil {
			return err
		}
	}
	return s.repo.UpdateProduct(ctx, sku, product)
}

func (s *service) DeleteProduct(ctx context.Context, sku string) error {
	if sku == "" {
		return fmt.Errorf("sku is required: %w", httpx.ErrValidation)
	}
	return s.repo.DeleteProduct(ctx, sku)
}

// Warehouse operations

func (s *service) ListWarehouses(ctx context.Context) ([]Warehouse, error) {
	return s.repo.ListWarehouses(ctx)
}

func (s *service) GetWarehouse(ctx context.Context, id string) (Warehouse, error) {
	if id == "" {
		return Warehouse{}, fmt.Errorf("warehouse id is required: %w", httpx.ErrValidation)
	}
	return s.repo.GetWarehouse(ctx, id)
}

func (s *service) CreateWarehouse(ctx context.Context, warehouse Warehouse) (Warehouse, error) {
	if err := validateWarehouse(warehouse); err != nil {
		return Warehouse{}, err
	}
	return s.repo.CreateWarehouse(ctx, warehouse)
}

func (s *service) UpdateWarehouse(ctx context.Context, id string, warehouse Warehouse) error {
	if id == "" {
		return fmt.Errorf("warehouse id is required: %w", httpx.ErrValidation)
	}
	if warehouse.Name == "" {
		return fmt.Errorf("warehouse name is required: %w", httpx.ErrValidation)
	}
	return s.repo.UpdateWarehouse(ctx, id, warehouse)
}

func (s *service) DeleteWarehouse(ctx context.Context, id string) error {
	if id == "" {
		return fmt.Errorf("warehouse id is required: %w", httpx.ErrValidation)
	}
	return s.repo.DeleteWarehouse(ctx, id)
}

// Supplier operations

func (s *service) ListSuppliers(ctx context.Context, filters ListFilters) ([]Supplier, error) {
	return s.repo.ListSuppliers(ctx, filters)
}

func (s *service) GetSupplier(ctx context.Context, id string) (Supplier, error) {
	if id == "" {
		return Supplier{}, fmt.Errorf("supplier id is required: %w", httpx.ErrValidation)
	}
	return s.repo.GetSupplier(ctx, id)
}

func (s *service) CreateSupplier(ctx context.Context, supplier Supplier) (Supplier, error) {
	if err := validateSupplier(supplier); err != nil {
		return Supplier{}, err
	}
	return s.repo.CreateSupplier(ctx, supplier)
}

func (s *service) UpdateSupplier(ctx context.Context, id string, supplier Supplier) error {
	if id == "" {
		return fmt.Errorf("supplier id is required: %w", httpx.ErrValidation)
	}
	if err := validateSupplier(supplier); err != nil {
		return err
	}
	return s.repo.UpdateSupplier(ctx, id, supplier)
}

func (s *service) DeleteSupplier(ctx context.Context, id string) error {
	if id == "" {
		return fmt.Errorf("supplier id is required: %w", httpx.ErrValidation)
	}
	return s.repo.DeleteSupplier(ctx, id)
}

func validateProduct(p Product) error {
	if strings.TrimSpace(p.SKU) == "" {
		return fmt.Errorf("sku is required: %w", httpx.ErrValidation)
	}
	if strings.TrimSpace(p.Title) == "" {
		return fmt.Errorf("title is required: %w", httpx.ErrValidation)
	}
	if p.Status != "" && p.Status != ProductActive && p.Status != ProductDiscontinued {
		return fmt.Errorf("unknown product status %q: %w", p.Status, httpx.ErrValidation)
	}
	if p.MOQ < 0 || p.OrderRoundMultiple < 0 {
		return fmt.Errorf("moq and round multiple must be non-negative: %w", httpx.ErrValidation)
	}
	if p.LeadTimeDays < 0 || p.SafetyStockDays < 0 || p.FBATargetDays < 0 {
		return fmt.Errorf("day fields must be non-negative: %w", httpx.ErrValidation)
	}
	return nil
}

func validateWarehouse(w Warehouse) error {
	if strings.TrimSpace(w.ID) == "" {
		return fmt.Errorf("warehouse id is required: %w", httpx.ErrValidation)
	}
	if strings.TrimSpace(w.Name) == "" {
		return fmt.Errorf("warehouse name is required: %w", httpx.ErrValidation)
	}
	return nil
}

func validateSupplier(sp Supplier) error {
	if strings.TrimSpace(sp.ID) == "" {
		return fmt.Errorf("supplier id is required: %w", httpx.ErrValidation)
	}
	if strings.TrimSpace(sp.Name) == "" {
		return fmt.Errorf("supplier name is required: %w", httpx.ErrValidation)
	}
	if sp.DefaultLeadTimeDays < 0 || sp.MOQ < 0 || sp.RoundMultiple < 0 {
		return fmt.Errorf("supplier numeric fields must be non-negative: %w", httpx.ErrValidation)
	}
	return nil
}
