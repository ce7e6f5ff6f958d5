package order

import (
	"time"

	"github.com/google/uuid"

	"github.com/foodshed/market-api/internal/adjustment"
)

// LineItem is one variant line of an order. Price is the unit price in
// minor currency units. MaxQuantity supports the "up to" ordering model
// where shoppers state the most they are willing to receive.
type LineItem struct {
	ID          uuid.UUID
	OrderID     uuid.UUID
	ProductID   uuid.UUID
	VariantID   uuid.UUID
	Quantity    int32
	MaxQuantity *int32
	Price       int64
	Currency    string
	CreatedAt   time.Time
}

// Total returns the line total in minor units.
func (li LineItem) Total() int64 {
	return int64(li.Quantity) * li.Price
}

// Order is a shopper's order placed through a distributor, optionally within
// an order cycle. Adjustments are derived state owned by the distribution
// charge recompute and never edited directly.
type Order struct {
	ID            uuid.UUID
	Number        string
	CustomerID    *uuid.UUID
	DistributorID *uuid.UUID
	OrderCycleID  *uuid.UUID
	State         string
	Currency      string
	LineItems     []LineItem
	Adjustments   []adjustment.Adjustment
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// ItemTotal sums the line totals.
func (o Order) ItemTotal() int64 {
	var total int64
	for _, li := range o.LineItems {
		total += li.Total()
	}
	return total
}

// ItemCount sums line quantities.
func (o Order) ItemCount() int32 {
	var count int32
	for _, li := range o.LineItems {
		count += li.Quantity
	}
	return count
}

// Total is the order total including all adjustments.
func (o Order) Total() int64 {
	return o.ItemTotal() + adjustment.SumAmount(o.Adjustments)
}

// AdminAndHandlingTotal sums order-scoped enterprise fee adjustments,
// excluding the per-line-item ones.
func (o Order) AdminAndHandlingTotal() int64 {
	var total int64
	for _, adj := range adjustment.ByOrigin(o.Adjustments, adjustment.OriginEnterpriseFee) {
		if adj.Scope != adjustment.ScopeLineItem {
			total += adj.Amount
		}
	}
	return total
}

// PaymentFeeTotal sums payment method fee adjustments.
func (o Order) PaymentFeeTotal() int64 {
	return adjustment.SumAmount(adjustment.ByOrigin(o.Adjustments, adjustment.OriginPaymentMethod))
}

// EnterpriseFeeTax sums the tax included in enterprise fee adjustments.
func (o Order) EnterpriseFeeTax() int64 {
	return adjustment.SumIncludedTax(adjustment.ByOrigin(o.Adjustments, adjustment.OriginEnterpriseFee))
}

// TotalTax sums the included tax across all adjustments.
func (o Order) TotalTax() int64 {
	return adjustment.SumIncludedTax(o.Adjustments)
}

// FindLineItemByVariant returns the line for the variant, if present.
func (o Order) FindLineItemByVariant(variantID uuid.UUID) (LineItem, bool) {
	for _, li := range o.LineItems {
		if li.VariantID == variantID {
			return li, true
		}
	}
	return LineItem{}, false
}

// LineItemVariants lists the variant ids in the order.
func (o Order) LineItemVariants() []uuid.UUID {
	out := make([]uuid.UUID, 0, len(o.LineItems))
	for _, li := range o.LineItems {
		out = append(out, li.VariantID)
	}
	return out
}
