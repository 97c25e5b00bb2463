package imports

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	// ErrDuplicateFile indicates the exact file content was already imported.
	ErrDuplicateFile = errors.New("imports: file already imported")
	// ErrBadFile indicates the uploaded file failed parsing or validation.
	ErrBadFile = errors.New("imports: bad file")
)

// ReceivingRecord is one parsed row of a receiving CSV. Metadata holds the
// optional compliance columns keyed by header name.
type ReceivingRecord struct {
	Date        time.Time
	BatchID     string
	SKU         string
	Quantity    int64
	WarehouseID string
	Metadata    map[string]string
}

// SellerboardRow is one parsed row of a sellerboard stock export.
type SellerboardRow struct {
	SKU                 string
	ADU                 float64
	FBAAvailable        int64
	FBAReserved         int64
	RecommendedQuantity int64
	AsOf                time.Time
}

// ManualOrdersRow carries the three open purchase order quantities per SKU.
type ManualOrdersRow struct {
	SKU      string
	Ordered1 int64
	Ordered2 int64
	Ordered3 int64
}

// Import run kinds.
const (
	KindReceiving    = "receiving"
	KindSellerboard  = "sellerboard"
	KindManualOrders = "manual_orders"
)

// Run records one import execution.
type Run struct {
	ID        uuid.UUID `json:"id"`
	Kind      string    `json:"kind"`
	Rows      int       `json:"rows"`
	Skipped   int       `json:"skipped"`
	CreatedBy int64     `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
}

// ReceivingResult summarises a receiving import.
type ReceivingResult struct {
	Run         Run     `json:"run"`
	MovementIDs []int64 `json:"movement_ids"`
	Created     int     `json:"created"`
	Skipped     int     `json:"skipped"`
}

// parseOptionalDecimal returns nil for blank values.
func parseOptionalDecimal(raw string) (*decimal.Decimal, error) {
	if raw == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return nil, err
	}
	return &d, nil
}
