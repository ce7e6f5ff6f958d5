package cycle

import (
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/foodshed/market-api/internal/fee"
)

// Direction tells whether an exchange brings produce into the cycle or out
// to a distributor.
type Direction string

const (
	Incoming Direction = "incoming"
	Outgoing Direction = "outgoing"
)

// Exchange is a directed link between an enterprise and an order cycle,
// carrying the variants available through it and the fees charged on them.
// Fees stay in definition order; adjustments are created in that order.
type Exchange struct {
	ID           uuid.UUID
	OrderCycleID uuid.UUID
	SenderID     uuid.UUID
	ReceiverID   uuid.UUID
	Direction    Direction
	VariantIDs   []uuid.UUID
	Fees         []fee.EnterpriseFee
}

// Carries reports whether the exchange makes the variant available.
func (e Exchange) Carries(variantID uuid.UUID) bool {
	for _, id := range e.VariantIDs {
		if id == variantID {
			return true
		}
	}
	return false
}

// OrderCycle is a time-boxed trading window. CoordinatorFees are the
// order-level fees applied once per order placed through the cycle.
type OrderCycle struct {
	ID              uuid.UUID
	Name            string
	CoordinatorID   uuid.UUID
	OrdersOpenAt    time.Time
	OrdersCloseAt   time.Time
	Tags            []string
	Exchanges       []Exchange
	CoordinatorFees []fee.EnterpriseFee
}

// CandidateID lets order cycles pass through tag rule filters.
func (oc OrderCycle) CandidateID() uuid.UUID { return oc.ID }

// TagList lets order cycles pass through tag rule filters.
func (oc OrderCycle) TagList() []string { return oc.Tags }

// Open reports whether orders can currently be placed through the cycle.
func (oc OrderCycle) Open(now time.Time) bool {
	return !now.Before(oc.OrdersOpenAt) && now.Before(oc.OrdersCloseAt)
}

// HasDistributor reports whether the distributor receives an outgoing
// exchange from this cycle.
func (oc OrderCycle) HasDistributor(distributorID uuid.UUID) bool {
	for _, ex := range oc.Exchanges {
		if ex.Direction == Outgoing && ex.ReceiverID == distributorID {
			return true
		}
	}
	return false
}

// HasVariant reports whether the variant is supplied through any outgoing
// exchange of the cycle.
func (oc OrderCycle) HasVariant(variantID uuid.UUID) bool {
	for _, ex := range oc.Exchanges {
		if ex.Direction == Outgoing && ex.Carries(variantID) {
			return true
		}
	}
	return false
}

// VariantsFor lists the variant ids available to a distributor through the
// cycle's outgoing exchanges.
func (oc OrderCycle) VariantsFor(distributorID uuid.UUID) []uuid.UUID {
	seen := map[uuid.UUID]struct{}{}
	var out []uuid.UUID
	for _, ex := range oc.Exchanges {
		if ex.Direction != Outgoing || ex.ReceiverID != distributorID {
			continue
		}
		for _, id := range ex.VariantIDs {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			out = append(out, id)
		}
	}
	return out
}

// FeesForVariant collects the per-item fees charged on the variant's path
// through the cycle: fees on incoming exchanges carrying the variant, then
// fees on the outgoing exchange to the distributor, each set in definition
// order.
func (oc OrderCycle) FeesForVariant(distributorID, variantID uuid.UUID) []fee.EnterpriseFee {
	var fees []fee.EnterpriseFee
	for _, ex := range oc.Exchanges {
		if ex.Direction == Incoming && ex.Carries(variantID) {
			fees = append(fees, ex.Fees...)
		}
	}
	for _, ex := range oc.Exchanges {
		if ex.Direction == Outgoing && ex.ReceiverID == distributorID && ex.Carries(variantID) {
			fees = append(fees, ex.Fees...)
		}
	}
	return fees
}

// EarliestClosingTimes maps each distributor to the soonest close among the
// open cycles serving it. Shopfronts use it for the "orders close" banner.
func EarliestClosingTimes(cycles []OrderCycle, now time.Time) map[uuid.UUID]time.Time {
	closing := map[uuid.UUID]time.Time{}
	for _, oc := range cycles {
		if !oc.Open(now) {
			continue
		}
		for _, ex := range oc.Exchanges {
			if ex.Direction != Outgoing {
				continue
			}
			current, ok := closing[ex.ReceiverID]
			if !ok || oc.OrdersCloseAt.Before(current) {
				closing[ex.ReceiverID] = oc.OrdersCloseAt
			}
		}
	}
	return closing
}

// SortByClose orders cycles by closing time ascending, then id for
// determinism.
func SortByClose(cycles []OrderCycle) {
	sort.SliceStable(cycles, func(i, j int) bool {
		if !cycles[i].OrdersCloseAt.Equal(cycles[j].OrdersCloseAt) {
			return cycles[i].OrdersCloseAt.Before(cycles[j].OrdersCloseAt)
		}
		return cycles[i].ID.String() < cycles[j].ID.String()
	})
}
