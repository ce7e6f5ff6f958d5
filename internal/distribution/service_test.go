package distribution_test

import (
	"context"
	"errors"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/foodshed/market-api/internal/adjustment"
	"github.com/foodshed/market-api/internal/cycle"
	"github.com/foodshed/market-api/internal/distribution"
	"github.com/foodshed/market-api/internal/fee"
	"github.com/foodshed/market-api/internal/lock"
	"github.com/foodshed/market-api/internal/order"
)

// memStore keeps an order plus its adjustments in memory and implements the
// recompute transaction contract against them.
type memStore struct {
	order       order.Order
	dctx        distribution.Context
	adjustments []adjustment.Adjustment

	loadErr   error
	deletes   int
	inserts   int
	rollbacks int
}

func (m *memStore) RecomputeTx(ctx context.Context, fn func(ctx context.Context, tx distribution.Tx) error) error {
	snapshot := make([]adjustment.Adjustment, len(m.adjustments))
	copy(snapshot, m.adjustments)
	if err := fn(ctx, (*memTx)(m)); err != nil {
		m.adjustments = snapshot
		m.rollbacks++
		return err
	}
	return nil
}

type memTx memStore

func (m *memTx) OrderForUpdate(ctx context.Context, orderID uuid.UUID) (order.Order, error) {
	if m.loadErr != nil {
		return order.Order{}, m.loadErr
	}
	return m.order, nil
}

func (m *memTx) DistributionContext(ctx context.Context, o order.Order) (distribution.Context, error) {
	return m.dctx, nil
}

func (m *memTx) DeleteAdjustmentsByOrigin(ctx context.Context, orderID uuid.UUID, origin adjustment.Origin) error {
	m.deletes++
	kept := m.adjustments[:0]
	for _, adj := range m.adjustments {
		if adj.OrderID == orderID && adj.Origin == origin {
			continue
		}
		kept = append(kept, adj)
	}
	m.adjustments = kept
	return nil
}

func (m *memTx) InsertAdjustments(ctx context.Context, adjustments []adjustment.Adjustment) error {
	m.inserts++
	m.adjustments = append(m.adjustments, adjustments...)
	return nil
}

func newLocker(t *testing.T) lock.Locker {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return lock.Locker{R: client, RetryBackoff: 5 * time.Millisecond, AcquireTimeout: time.Second}
}

func feeOrder() (order.Order, distribution.Context) {
	distributor := uuid.New()
	variant := uuid.New()
	li := order.LineItem{ID: uuid.New(), VariantID: variant, ProductID: uuid.New(), Quantity: 2, Price: 500}
	o := order.Order{ID: uuid.New(), DistributorID: &distributor, Currency: "AUD", LineItems: []order.LineItem{li}}
	oc := &cycle.OrderCycle{
		Exchanges: []cycle.Exchange{
			{Direction: cycle.Outgoing, ReceiverID: distributor, VariantIDs: []uuid.UUID{variant},
				Fees: []fee.EnterpriseFee{{ID: uuid.New(), Name: "Transport", Calculator: fee.Calculator{Kind: fee.CalcFlatRate, Amount: 200}}}},
		},
	}
	return o, distribution.Context{OrderCycle: oc}
}

func TestRecomputeReplacesEnterpriseFeeAdjustments(t *testing.T) {
	o, dctx := feeOrder()
	stale := adjustment.Adjustment{
		ID: uuid.New(), OrderID: o.ID, Origin: adjustment.OriginEnterpriseFee,
		Scope: adjustment.ScopeOrder, SourceID: o.ID, Amount: 9999,
	}
	manual := adjustment.Adjustment{
		ID: uuid.New(), OrderID: o.ID, Origin: adjustment.OriginAdmin,
		Scope: adjustment.ScopeOrder, SourceID: o.ID, Amount: -100,
	}
	store := &memStore{order: o, dctx: dctx, adjustments: []adjustment.Adjustment{stale, manual}}

	svc := &distribution.Service{Store: store, Locker: newLocker(t), Log: zerolog.Nop()}
	require.NoError(t, svc.Recompute(context.Background(), o.ID))

	feeAdjs := adjustment.ByOrigin(store.adjustments, adjustment.OriginEnterpriseFee)
	require.Len(t, feeAdjs, 1)
	require.Equal(t, int64(200), feeAdjs[0].Amount)

	// Manual adjustments survive untouched.
	adminAdjs := adjustment.ByOrigin(store.adjustments, adjustment.OriginAdmin)
	require.Len(t, adminAdjs, 1)
	require.Equal(t, manual.ID, adminAdjs[0].ID)
}

func TestRecomputeIsIdempotent(t *testing.T) {
	o, dctx := feeOrder()
	store := &memStore{order: o, dctx: dctx}

	svc := &distribution.Service{Store: store, Locker: newLocker(t), Log: zerolog.Nop()}
	require.NoError(t, svc.Recompute(context.Background(), o.ID))
	first := adjustment.SumAmount(store.adjustments)

	require.NoError(t, svc.Recompute(context.Background(), o.ID))
	require.Equal(t, first, adjustment.SumAmount(store.adjustments))
	require.Len(t, store.adjustments, 1)
	require.Equal(t, 2, store.deletes)
}

func TestRecomputeRollsBackOnLoadFailure(t *testing.T) {
	o, dctx := feeOrder()
	stale := adjustment.Adjustment{
		ID: uuid.New(), OrderID: o.ID, Origin: adjustment.OriginEnterpriseFee,
		Scope: adjustment.ScopeOrder, SourceID: o.ID, Amount: 42,
	}
	store := &memStore{order: o, dctx: dctx, adjustments: []adjustment.Adjustment{stale}}
	store.loadErr = errors.New("connection reset")

	svc := &distribution.Service{Store: store, Locker: newLocker(t), Log: zerolog.Nop()}
	err := svc.Recompute(context.Background(), o.ID)
	require.Error(t, err)
	require.Equal(t, 1, store.rollbacks)
	require.Len(t, store.adjustments, 1)
}

func TestRecomputeMissingDistributorKeepsNothing(t *testing.T) {
	o, dctx := feeOrder()
	o.DistributorID = nil
	store := &memStore{order: o, dctx: dctx}

	svc := &distribution.Service{Store: store, Locker: newLocker(t), Log: zerolog.Nop()}
	err := svc.Recompute(context.Background(), o.ID)
	require.ErrorIs(t, err, distribution.ErrMissingDistributor)
	require.Zero(t, store.inserts)
}

func TestRecomputeRetriesLockTimeout(t *testing.T) {
	o, dctx := feeOrder()
	store := &memStore{order: o, dctx: dctx}
	locker := newLocker(t)

	// Park a competing holder on the order's lock key.
	held := make(chan struct{})
	release := make(chan struct{})
	go func() {
		_ = locker.WithLock(context.Background(), distribution.LockKey(o.ID), time.Second, func(context.Context) error {
			close(held)
			<-release
			return nil
		})
	}()
	<-held

	svc := &distribution.Service{
		Store:        store,
		Locker:       lock.Locker{R: locker.R, RetryBackoff: 5 * time.Millisecond, AcquireTimeout: 20 * time.Millisecond},
		LockAttempts: 2,
		Log:          zerolog.Nop(),
	}
	err := svc.Recompute(context.Background(), o.ID)
	require.ErrorIs(t, err, lock.ErrLockTimeout)
	require.Zero(t, store.inserts)

	close(release)
	require.Eventually(t, func() bool {
		return svc.Recompute(context.Background(), o.ID) == nil
	}, time.Second, 10*time.Millisecond)
	require.Len(t, store.adjustments, 1)
}
