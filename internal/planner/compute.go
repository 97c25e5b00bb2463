package planner

import "github.com/shopspring/decimal"

// ProductParams carries the planning knobs a product is configured with.
type ProductParams struct {
	SKU                string
	Status             string
	MOQ                int64
	OrderRoundMultiple int64
	SafetyStockDays    int
	FBATargetDays      int
	MonthsRuleOverride *decimal.Decimal
}

const statusDiscontinued = "discontinued"

// Inputs is everything reorder planning needs for one SKU.
type Inputs struct {
	Product                ProductParams
	ADU                    float64
	OnHand                 int64
	FBAStock               int64
	OrderedUnits           int64
	SellerboardRecommended int64
	AvgUnitCost            decimal.Decimal
}

// Outputs is the planner verdict for one SKU.
type Outputs struct {
	ReorderQty              int64
	SendToFBA               int64
	LowFBAFlag              bool
	LessThanSellerboardFlag bool
	ExcessUnits             int64
	ExcessValue             decimal.Decimal
}

// ChinaTarget computes the replenishment target in units. The months rule is
// the override when set, otherwise 4 months for fast movers (adu > 6) and 3
// for the rest, plus safety stock days worth of cover.
func ChinaTarget(p ProductParams, adu float64) int64 {
	months := 3.0
	if adu > 6 {
		months = 4.0
	}
	if p.MonthsRuleOverride != nil {
		months = p.MonthsRuleOverride.InexactFloat64()
	}
	return int64(adu*30*months + adu*float64(p.SafetyStockDays))
}

// TotalStock sums the units already owned or on order.
func TotalStock(onHand, fbaStock, ordered int64) int64 {
	return onHand + fbaStock + ordered
}

// RoundToMultiple rounds up to the next order multiple.
func RoundToMultiple(value, multiple int64) int64 {
	if multiple <= 1 {
		return value
	}
	remainder := value % multiple
	if remainder == 0 {
		return value
	}
	return value + (multiple - remainder)
}

// ReorderQty computes how many units to order from the supplier.
// Discontinued products never reorder. A positive reorder is rounded up to
// the order multiple and floored at the MOQ.
func ReorderQty(in Inputs) int64 {
	if in.Product.Status == statusDiscontinued {
		return 0
	}
	target := ChinaTarget(in.Product, in.ADU)
	total := TotalStock(in.OnHand, in.FBAStock, in.OrderedUnits)
	reorder := target - total
	if reorder < 0 {
		reorder = 0
	}
	reorder = RoundToMultiple(reorder, in.Product.OrderRoundMultiple)
	if reorder > 0 && in.Product.MOQ > 0 && reorder < in.Product.MOQ {
		reorder = in.Product.MOQ
	}
	return reorder
}

// SendToFBA computes how many on-hand units to ship towards FBA to reach the
// target days of cover. With sendAll set, discontinued products flush their
// whole on-hand quantity.
func SendToFBA(p ProductParams, adu float64, fbaStock, onHand int64, sendAll bool) int64 {
	if sendAll && p.Status == statusDiscontinued {
		return onHand
	}
	if onHand <= 0 {
		return 0
	}
	want := int64(adu*float64(p.FBATargetDays)) - fbaStock
	if want < 0 {
		want = 0
	}
	if want > onHand {
		want = onHand
	}
	return want
}

// LowFBAFlag marks SKUs running dry at FBA while stock sits in the warehouse.
func LowFBAFlag(fbaStock, onHand int64) bool {
	return fbaStock < 10 && onHand > 5
}

// LessThanSellerboard reports whether total stock trails the sellerboard
// recommendation. Always false for discontinued products.
func LessThanSellerboard(in Inputs) bool {
	if in.Product.Status == statusDiscontinued {
		return false
	}
	total := TotalStock(in.OnHand, in.FBAStock, in.OrderedUnits)
	return in.SellerboardRecommended-total > 0
}

// Excess returns units above 120 days of cover and their value at the
// average batch unit cost.
func Excess(adu float64, onHand, fbaStock int64, avgUnitCost decimal.Decimal) (int64, decimal.Decimal) {
	threshold := int64(adu * 120)
	combined := onHand + fbaStock
	if combined <= threshold {
		return 0, decimal.Zero
	}
	units := combined - threshold
	return units, avgUnitCost.Mul(decimal.NewFromInt(units))
}

// BuildOutputs runs every planner computation for one SKU.
func BuildOutputs(in Inputs) Outputs {
	excessUnits, excessValue := Excess(in.ADU, in.OnHand, in.FBAStock, in.AvgUnitCost)
	return Outputs{
		ReorderQty:              ReorderQty(in),
		SendToFBA:               SendToFBA(in.Product, in.ADU, in.FBAStock, in.OnHand, false),
		LowFBAFlag:              LowFBAFlag(in.FBAStock, in.OnHand),
		LessThanSellerboardFlag: LessThanSellerboard(in),
		ExcessUnits:             excessUnits,
		ExcessValue:             excessValue,
	}
}
