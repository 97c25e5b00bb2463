package masterdata

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lotkeeper/lotkeeper/internal/platform/httpx"
)

type fakeRepo struct {
	products   map[string]Product
	warehouses map[string]Warehouse
	suppliers  map[string]Supplier
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		products:   map[string]Product{},
		warehouses: map[string]Warehouse{},
		suppliers:  map[string]Supplier{},
	}
}

func (r *fakeRepo) ListProducts(_ context.Context, filters ListFilters) ([]Product, int, error) {
	out := []Product{}
	for _, p := range r.products {
		if filters.Search != "" && !strings.Contains(strings.ToLower(p.SKU+p.Title), strings.ToLower(filters.Search)) {
			continue
		}
		if filters.Status != "" && p.Status != filters.Status {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SKU < out[j].SKU })
	return out, len(out), nil
}

func (r *fakeRepo) GetProduct(_ context.Context, sku string) (Product, error) {
	p, ok := r.products[sku]
	if !ok {
		return Product{}, fmt.Errorf("product %s: %w", sku, httpx.ErrNotFound)
	}
	return p, nil
}

func (r *fakeRepo) CreateProduct(_ context.Context, product Product) (Product, error) {
	if _, ok := r.products[product.SKU]; ok {
		return Product{}, fmt.Errorf("product %s: %w", product.SKU, httpx.ErrDuplicate)
	}
	r.products[product.SKU] = product
	return product, nil
}

func (r *fakeRepo) UpdateProduct(_ context.Context, sku string, product Product) error {
	if _, ok := r.products[sku]; !ok {
		return fmt.Errorf("product %s: %w", sku, httpx.ErrNotFound)
	}
	product.SKU = sku
	r.products[sku] = product
	return nil
}

func (r *fakeRepo) DeleteProduct(_ context.Context, sku string) error {
	if _, ok := r.products[sku]; !ok {
		return fmt.Errorf("product %s: %w", sku, httpx.ErrNotFound)
	}
	delete(r.products, sku)
	return nil
}

func (r *fakeRepo) ListWarehouses(_ context.Context) ([]Warehouse, error) {
	out := []Warehouse{}
	for _, w := range r.warehouses {
		out = append(out, w)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *fakeRepo) GetWarehouse(_ context.Context, id string) (Warehouse, error) {
	w, ok := r.warehouses[id]
	if !ok {
		return Warehouse{}, fmt.Errorf("warehouse %s: %w", id, httpx.ErrNotFound)
	}
	return w, nil
}

func (r *fakeRepo) CreateWarehouse(_ context.Context, warehouse Warehouse) (Warehouse, error) {
	if _, ok := r.warehouses[warehouse.ID]; ok {
		return Warehouse{}, fmt.Errorf("warehouse %s: %w", warehouse.ID, httpx.ErrDuplicate)
	}
	r.warehouses[warehouse.ID] = warehouse
	return warehouse, nil
}

func (r *fakeRepo) UpdateWarehouse(_ context.Context, id string, warehouse Warehouse) error {
	if _, ok := r.warehouses[id]; !ok {
		return fmt.Errorf("warehouse %s: %w", id, httpx.ErrNotFound)
	}
	warehouse.ID = id
	r.warehouses[id] = warehouse
	return nil
}

func (r *fakeRepo) DeleteWarehouse(_ context.Context, id string) error {
	if _, ok := r.warehouses[id]; !ok {
		return fmt.Errorf("warehouse %s: %w", id, httpx.ErrNotFound)
	}
	delete(r.warehouses, id)
	return nil
}

func (r *fakeRepo) ListSuppliers(_ context.Context, filters ListFilters) ([]Supplier, error) {
	out := []Supplier{}
	for _, s := range r.suppliers {
		if filters.Search != "" && !strings.Contains(strings.ToLower(s.Name), strings.ToLower(filters.Search)) {
			continue
		}
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *fakeRepo) GetSupplier(_ context.Context, id string) (Supplier, error) {
	s, ok := r.suppliers[id]
	if !ok {
		return Supplier{}, fmt.Errorf("supplier %s: %w", id, httpx.ErrNotFound)
	}
	return s, nil
}

func (r *fakeRepo) CreateSupplier(_ context.Context, supplier Supplier) (Supplier, error) {
	if _, ok := r.suppliers[supplier.ID]; ok {
		return Supplier{}, fmt.Errorf("supplier %s: %w", supplier.ID, httpx.ErrDuplicate)
	}
	r.suppliers[supplier.ID] = supplier
	return supplier, nil
}

func (r *fakeRepo) UpdateSupplier(_ context.Context, id string, supplier Supplier) error {
	if _, ok := r.suppliers[id]; !ok {
		return fmt.Errorf("supplier %s: %w", id, httpx.ErrNotFound)
	}
	supplier.ID = id
	r.suppliers[id] = supplier
	return nil
}

func (r *fakeRepo) DeleteSupplier(_ context.Context, id string) error {
	if _, ok := r.suppliers[id]; !ok {
		return fmt.Errorf("supplier %s: %w", id, httpx.ErrNotFound)
	}
	delete(r.suppliers, id)
	return nil
}

func TestCreateProductDefaultsToActive(t *testing.T) {
	svc := NewService(newFakeRepo())

	created, err := svc.CreateProduct(context.Background(), Product{SKU: "SKU-A", Title: "Steel Bottle"})
	require.NoError(t, err)
	require.Equal(t, ProductActive, created.Status)
}

func TestCreateProductValidation(t *testing.T) {
	svc := NewService(newFakeRepo())
	ctx := context.Background()

	_, err := svc.CreateProduct(ctx, Product{Title: "No SKU"})
	require.ErrorIs(t, err, httpx.ErrValidation)

	_, err = svc.CreateProduct(ctx, Product{SKU: "SKU-A"})
	require.ErrorIs(t, err, httpx.ErrValidation)

	_, err = svc.CreateProduct(ctx, Product{SKU: "SKU-A", Title: "x", Status: "paused"})
	require.ErrorIs(t, err, httpx.ErrValidation)

	_, err = svc.CreateProduct(ctx, Product{SKU: "SKU-A", Title: "x", MOQ: -1})
	require.ErrorIs(t, err, httpx.ErrValidation)
}

func TestCreateProductChecksSupplierExists(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo)
	ctx := context.Background()

	supplierID := "SUP-1"
	_, err := svc.CreateProduct(ctx, Product{SKU: "SKU-A", Title: "x", SupplierID: &supplierID})
	require.ErrorIs(t, err, httpx.ErrNotFound)

	repo.suppliers["SUP-1"] = Supplier{ID: "SUP-1", Name: "Foshan Trading"}
	_, err = svc.CreateProduct(ctx, Product{SKU: "SKU-A", Title: "x", SupplierID: &supplierID})
	require.NoError(t, err)
}

func TestProductDuplicateSKU(t *testing.T) {
	svc := NewService(newFakeRepo())
	ctx := context.Background()

	_, err := svc.CreateProduct(ctx, Product{SKU: "SKU-A", Title: "x"})
	require.NoError(t, err)
	_, err = svc.CreateProduct(ctx, Product{SKU: "SKU-A", Title: "y"})
	require.ErrorIs(t, err, httpx.ErrDuplicate)
}

func TestWarehouseCRUD(t *testing.T) {
	svc := NewService(newFakeRepo())
	ctx := context.Background()

	_, err := svc.CreateWarehouse(ctx, Warehouse{Name: "Main"})
	require.ErrorIs(t, err, httpx.ErrValidation)

	created, err := svc.CreateWarehouse(ctx, Warehouse{ID: "WH-MAIN", Name: "Main"})
	require.NoError(t, err)
	require.Equal(t, "WH-MAIN", created.ID)

	require.NoError(t, svc.UpdateWarehouse(ctx, "WH-MAIN", Warehouse{Name: "Main Store", Address: "Plot 4"}))
	got, err := svc.GetWarehouse(ctx, "WH-MAIN")
	require.NoError(t, err)
	require.Equal(t, "Main Store", got.Name)

	require.NoError(t, svc.DeleteWarehouse(ctx, "WH-MAIN"))
	_, err = svc.GetWarehouse(ctx, "WH-MAIN")
	require.ErrorIs(t, err, httpx.ErrNotFound)
}

func TestSupplierValidation(t *testing.T) {
	svc := NewService(newFakeRepo())
	ctx := context.Background()

	_, err := svc.CreateSupplier(ctx, Supplier{ID: "SUP-1"})
	require.ErrorIs(t, err, httpx.ErrValidation)

	_, err = svc.CreateSupplier(ctx, Supplier{ID: "SUP-1", Name: "Foshan Trading", MOQ: -2})
	require.ErrorIs(t, err, httpx.ErrValidation)

	_, err = svc.CreateSupplier(ctx, Supplier{ID: "SUP-1", Name: "Foshan Trading", DefaultLeadTimeDays: 45})
	require.NoError(t, err)
}

func TestListProductsFilters(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo)
	ctx := context.Background()
	repo.products["SKU-A"] = Product{SKU: "SKU-A", Title: "Steel Bottle", Status: ProductActive}
	repo.products["SKU-B"] = Product{SKU: "SKU-B", Title: "Copper Lamp", Status: ProductDiscontinued}

	active, total, err := svc.ListProducts(ctx, ListFilters{Status: ProductActive})
	require.NoError(t, err)
	require.Equal(t, 1, total)
	require.Equal(t, "SKU-A", active[0].SKU)

	matched, _, err := svc.ListProducts(ctx, ListFilters{Search: "lamp"})
	require.NoError(t, err)
	require.Len(t, matched, 1)
	require.Equal(t, "SKU-B", matched[0].SKU)
}
