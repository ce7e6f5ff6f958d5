package distribution

import (
	"errors"

	"github.com/google/uuid"

	"github.com/foodshed/market-api/internal/adjustment"
	"github.com/foodshed/market-api/internal/cycle"
	"github.com/foodshed/market-api/internal/fee"
	"github.com/foodshed/market-api/internal/order"
)

// ErrMissingDistributor is returned when a recompute is requested for an
// order that has no distributor. This is a caller error, never retried.
var ErrMissingDistributor = errors.New("distribution: order has no distributor")

// Context carries the distribution state an order's charges are computed
// against: the order cycle (may be nil) and the direct product distribution
// links for the order's products and distributor, keyed by product id.
type Context struct {
	OrderCycle           *cycle.OrderCycle
	ProductDistributions map[uuid.UUID]fee.ProductDistribution
}

// Config holds the process-wide defaults that feed the computation.
type Config struct {
	Currency string
}

// Calculate derives the full enterprise-fee adjustment set for the order's
// current composition and distribution context. It is pure: callers persist
// the result under the order's recompute lock.
//
// Per line item: when the variant is supplied through the order cycle, every
// fee on its exchanges produces one adjustment; otherwise a direct product
// distribution link, if present, produces one. Then each order-level
// coordinator fee of the cycle produces one order-scoped adjustment.
func Calculate(o order.Order, dctx Context, cfg Config) ([]adjustment.Adjustment, error) {
	if o.DistributorID == nil {
		return nil, ErrMissingDistributor
	}
	distributorID := *o.DistributorID
	currency := o.Currency
	if currency == "" {
		currency = cfg.Currency
	}

	var adjustments []adjustment.Adjustment
	for _, li := range o.LineItems {
		fees, err := lineItemFees(li, distributorID, dctx)
		if err != nil {
			return nil, err
		}
		basis := fee.Basis{Total: li.Total(), Quantity: li.Quantity}
		for _, f := range fees {
			adj, err := buildAdjustment(o.ID, f, basis, adjustment.ScopeLineItem, li.ID, currency)
			if err != nil {
				return nil, err
			}
			adjustments = append(adjustments, adj)
		}
	}

	if dctx.OrderCycle != nil {
		basis := fee.Basis{Total: o.ItemTotal(), Quantity: o.ItemCount()}
		for _, f := range dctx.OrderCycle.CoordinatorFees {
			adj, err := buildAdjustment(o.ID, f, basis, adjustment.ScopeOrder, o.ID, currency)
			if err != nil {
				return nil, err
			}
			adjustments = append(adjustments, adj)
		}
	}
	return adjustments, nil
}

func lineItemFees(li order.LineItem, distributorID uuid.UUID, dctx Context) ([]fee.EnterpriseFee, error) {
	if dctx.OrderCycle != nil && dctx.OrderCycle.HasVariant(li.VariantID) {
		return dctx.OrderCycle.FeesForVariant(distributorID, li.VariantID), nil
	}
	if pd, ok := dctx.ProductDistributions[li.ProductID]; ok && pd.DistributorID == distributorID {
		return []fee.EnterpriseFee{pd.Fee}, nil
	}
	return nil, nil
}

func buildAdjustment(orderID uuid.UUID, f fee.EnterpriseFee, basis fee.Basis, scope adjustment.Scope, sourceID uuid.UUID, currency string) (adjustment.Adjustment, error) {
	amount, err := f.Calculator.Compute(basis)
	if err != nil {
		return adjustment.Adjustment{}, err
	}
	return adjustment.Adjustment{
		ID:          uuid.New(),
		OrderID:     orderID,
		Origin:      adjustment.OriginEnterpriseFee,
		OriginID:    f.ID,
		Scope:       scope,
		SourceID:    sourceID,
		Label:       f.Label(),
		Amount:      amount,
		IncludedTax: fee.IncludedTax(amount, f.IncludedTaxRateBps),
		Currency:    currency,
	}, nil
}
