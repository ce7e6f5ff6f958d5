package store

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/foodshed/market-api/internal/adjustment"
	"github.com/foodshed/market-api/internal/distribution"
	"github.com/foodshed/market-api/internal/fee"
	"github.com/foodshed/market-api/internal/order"
)

// RecomputeTx opens the transaction a distribution charge recompute runs in.
// An error from fn rolls everything back, so adjustments are never left
// cleared but not recreated.
func (s *Store) RecomputeTx(ctx context.Context, fn func(ctx context.Context, tx distribution.Tx) error) error {
	return s.WithinTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		return fn(ctx, &recomputeTx{store: s, tx: tx})
	})
}

type recomputeTx struct {
	store *Store
	tx    pgx.Tx
}

func (r *recomputeTx) OrderForUpdate(ctx context.Context, orderID uuid.UUID) (order.Order, error) {
	return r.store.getOrder(ctx, r.tx, orderID, true)
}

func (r *recomputeTx) DistributionContext(ctx context.Context, o order.Order) (distribution.Context, error) {
	var dctx distribution.Context
	if o.OrderCycleID != nil {
		oc, err := r.store.getOrderCycle(ctx, r.tx, *o.OrderCycleID)
		if err != nil {
			return distribution.Context{}, err
		}
		dctx.OrderCycle = &oc
	}
	if o.DistributorID != nil {
		productIDs := make([]uuid.UUID, 0, len(o.LineItems))
		seen := map[uuid.UUID]struct{}{}
		for _, li := range o.LineItems {
			if _, ok := seen[li.ProductID]; ok {
				continue
			}
			seen[li.ProductID] = struct{}{}
			productIDs = append(productIDs, li.ProductID)
		}
		links, err := productDistributionsFor(ctx, r.tx, *o.DistributorID, productIDs)
		if err != nil {
			return distribution.Context{}, err
		}
		dctx.ProductDistributions = links
	} else {
		dctx.ProductDistributions = map[uuid.UUID]fee.ProductDistribution{}
	}
	return dctx, nil
}

func (r *recomputeTx) DeleteAdjustmentsByOrigin(ctx context.Context, orderID uuid.UUID, origin adjustment.Origin) error {
	return deleteAdjustmentsByOrigin(ctx, r.tx, orderID, origin)
}

func (r *recomputeTx) InsertAdjustments(ctx context.Context, adjustments []adjustment.Adjustment) error {
	return insertAdjustments(ctx, r.tx, adjustments)
}
