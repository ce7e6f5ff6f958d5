package distribution

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/foodshed/market-api/internal/adjustment"
	"github.com/foodshed/market-api/internal/lock"
	"github.com/foodshed/market-api/internal/obs"
	"github.com/foodshed/market-api/internal/order"
)

// Tx is the slice of the store a recompute runs against, inside one
// transaction.
type Tx interface {
	// OrderForUpdate loads the order with its line items under a row lock.
	OrderForUpdate(ctx context.Context, orderID uuid.UUID) (order.Order, error)
	// DistributionContext resolves the order cycle and product distribution
	// links for the loaded order.
	DistributionContext(ctx context.Context, o order.Order) (Context, error)
	// DeleteAdjustmentsByOrigin removes the order's adjustments of one
	// origin, both line-item and order scoped, leaving other origins alone.
	DeleteAdjustmentsByOrigin(ctx context.Context, orderID uuid.UUID, origin adjustment.Origin) error
	// InsertAdjustments persists freshly computed adjustments.
	InsertAdjustments(ctx context.Context, adjustments []adjustment.Adjustment) error
}

// Store opens recompute transactions. An error returned from fn rolls the
// whole transaction back so a cleared-but-not-recreated state is never
// persisted.
type Store interface {
	RecomputeTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

// Service rebuilds an order's fee-derived adjustments whenever its contents
// or distribution context change. Runs are serialized per order by a Redis
// lock; different orders recompute independently.
type Service struct {
	Store        Store
	Locker       lock.Locker
	LockTTL      time.Duration
	LockAttempts int
	Cfg          Config
	Log          zerolog.Logger
}

// LockKey returns the per-order lock key.
func LockKey(orderID uuid.UUID) string {
	return "recompute:order:" + orderID.String()
}

// Recompute makes the order's enterprise-fee adjustments consistent with its
// current line items, distributor and order cycle. The previous adjustments
// of that origin are fully replaced; manual, payment and tax adjustments are
// untouched. Lock contention is retried a bounded number of times before
// lock.ErrLockTimeout is surfaced.
func (s *Service) Recompute(ctx context.Context, orderID uuid.UUID) error {
	if s == nil || s.Store == nil {
		return errors.New("distribution: service not configured")
	}
	attempts := s.LockAttempts
	if attempts <= 0 {
		attempts = 3
	}

	start := time.Now()
	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		err = s.Locker.WithLock(ctx, LockKey(orderID), s.LockTTL, func(ctx context.Context) error {
			return s.recomputeLocked(ctx, orderID)
		})
		if !errors.Is(err, lock.ErrLockTimeout) {
			break
		}
		s.Log.Warn().Str("order_id", orderID.String()).Int("attempt", attempt).Msg("recompute lock busy")
	}

	obs.ObserveRecompute(time.Since(start), err)
	if err != nil {
		return err
	}
	s.Log.Debug().Str("order_id", orderID.String()).Msg("distribution charge recomputed")
	return nil
}

func (s *Service) recomputeLocked(ctx context.Context, orderID uuid.UUID) error {
	return s.Store.RecomputeTx(ctx, func(ctx context.Context, tx Tx) error {
		o, err := tx.OrderForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		dctx, err := tx.DistributionContext(ctx, o)
		if err != nil {
			return err
		}
		adjustments, err := Calculate(o, dctx, s.Cfg)
		if err != nil {
			return err
		}
		if err := tx.DeleteAdjustmentsByOrigin(ctx, orderID, adjustment.OriginEnterpriseFee); err != nil {
			return err
		}
		if len(adjustments) == 0 {
			return nil
		}
		if err := tx.InsertAdjustments(ctx, adjustments); err != nil {
			return err
		}
		if obs.AdjustmentsWritten != nil {
			for _, adj := range adjustments {
				obs.AdjustmentsWritten.WithLabelValues(string(adj.Scope)).Inc()
			}
		}
		return nil
	})
}
