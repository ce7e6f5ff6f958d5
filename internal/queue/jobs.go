package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/foodshed/market-api/internal/events"
	"github.com/foodshed/market-api/internal/obs"
)

// KindRecompute is the task kind carrying distribution charge recomputes.
const KindRecompute = "distribution-recompute"

// RecomputePayload identifies the order whose charges must be rebuilt.
type RecomputePayload struct {
	OrderID uuid.UUID `json:"orderId"`
	Reason  string    `json:"reason,omitempty"`
}

// RecomputeScheduler turns order change events into queued recompute tasks.
// The idempotency key collapses bursts of changes to the same order into one
// pending task.
type RecomputeScheduler struct {
	Enqueuer Enqueuer
	Log      zerolog.Logger
}

// Schedule implements events.Scheduler.
func (s RecomputeScheduler) Schedule(ctx context.Context, event events.DomainEvent) error {
	if !needsRecompute(event.Topic) {
		return nil
	}
	payload, err := json.Marshal(RecomputePayload{OrderID: event.AggregateID, Reason: event.Topic})
	if err != nil {
		return err
	}
	err = s.Enqueuer.Enqueue(ctx, Task{
		Kind:           KindRecompute,
		Payload:        payload,
		IdempotencyKey: event.AggregateID.String(),
		MaxAttempts:    5,
	})
	if err != nil {
		return fmt.Errorf("enqueue recompute: %w", err)
	}
	if obs.RecomputeJobsEnqueued != nil {
		obs.RecomputeJobsEnqueued.Inc()
	}
	s.Log.Debug().Str("order_id", event.AggregateID.String()).Str("reason", event.Topic).Msg("recompute enqueued")
	return nil
}

func needsRecompute(topic string) bool {
	for _, t := range events.RecomputeTopics() {
		if t == topic {
			return true
		}
	}
	return false
}

// Recomputer runs one distribution charge recompute.
type Recomputer interface {
	Recompute(ctx context.Context, orderID uuid.UUID) error
}

// RecomputeHandler adapts the recompute service to the worker contract.
func RecomputeHandler(svc Recomputer) func(context.Context, Task) error {
	return func(ctx context.Context, t Task) error {
		var payload RecomputePayload
		if err := json.Unmarshal(t.Payload, &payload); err != nil {
			return fmt.Errorf("decode recompute payload: %w", err)
		}
		if payload.OrderID == uuid.Nil {
			return fmt.Errorf("recompute payload missing order id")
		}
		return svc.Recompute(ctx, payload.OrderID)
	}
}
