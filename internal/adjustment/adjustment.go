package adjustment

import (
	"time"

	"github.com/google/uuid"
)

// Origin discriminates what produced an adjustment. Recomputes clear and
// recreate only their own origin, so manual and tax adjustments survive.
type Origin string

const (
	OriginEnterpriseFee  Origin = "enterprise_fee"
	OriginPaymentMethod  Origin = "payment_method"
	OriginTaxRate        Origin = "tax_rate"
	OriginAdmin          Origin = "admin"
	OriginBillablePeriod Origin = "billable_period"
)

// Scope names what the adjustment was computed against.
type Scope string

const (
	ScopeOrder          Scope = "order"
	ScopeLineItem       Scope = "line_item"
	ScopeBillablePeriod Scope = "billable_period"
)

// Adjustment is a derived charge attached to an order. Amount and
// IncludedTax are minor currency units.
type Adjustment struct {
	ID          uuid.UUID
	OrderID     uuid.UUID
	Origin      Origin
	OriginID    uuid.UUID
	Scope       Scope
	SourceID    uuid.UUID
	Label       string
	Amount      int64
	IncludedTax int64
	Currency    string
	CreatedAt   time.Time
}

// SumAmount totals the adjustments' amounts.
func SumAmount(adjustments []Adjustment) int64 {
	var total int64
	for _, adj := range adjustments {
		total += adj.Amount
	}
	return total
}

// SumIncludedTax totals the tax contained in the adjustments.
func SumIncludedTax(adjustments []Adjustment) int64 {
	var total int64
	for _, adj := range adjustments {
		total += adj.IncludedTax
	}
	return total
}

// ByOrigin returns the adjustments produced by the given origin.
func ByOrigin(adjustments []Adjustment, origin Origin) []Adjustment {
	out := make([]Adjustment, 0, len(adjustments))
	for _, adj := range adjustments {
		if adj.Origin == origin {
			out = append(out, adj)
		}
	}
	return out
}

// ByScope returns the adjustments computed against the given scope.
func ByScope(adjustments []Adjustment, scope Scope) []Adjustment {
	out := make([]Adjustment, 0, len(adjustments))
	for _, adj := range adjustments {
		if adj.Scope == scope {
			out = append(out, adj)
		}
	}
	return out
}
