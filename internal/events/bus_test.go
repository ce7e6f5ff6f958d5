package events_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/foodshed/market-api/internal/events"
)

type stubStore struct {
	last events.DomainEvent
}

func (s *stubStore) InsertDomainEvent(_ context.Context, topic string, aggregateID uuid.UUID, payload []byte) (events.DomainEvent, error) {
	s.last = events.DomainEvent{
		ID:          uuid.New(),
		Topic:       topic,
		AggregateID: aggregateID,
		Payload:     payload,
		OccurredAt:  time.Now(),
	}
	return s.last, nil
}

type captureScheduler struct {
	events []events.DomainEvent
	err    error
}

func (c *captureScheduler) Schedule(_ context.Context, event events.DomainEvent) error {
	c.events = append(c.events, event)
	return c.err
}

type captureNotifier struct {
	events []events.DomainEvent
}

func (c *captureNotifier) Notify(_ context.Context, event events.DomainEvent) error {
	c.events = append(c.events, event)
	return nil
}

func TestEmitPersistsEvent(t *testing.T) {
	store := &stubStore{}
	scheduler := &captureScheduler{}
	notifier := &captureNotifier{}
	bus := events.Bus{
		Store:     store,
		Scheduler: scheduler,
		Notifiers: []events.Notifier{notifier},
	}

	aggregate := uuid.New()
	payload := map[string]any{"orderId": "123"}
	event, err := bus.Emit(context.Background(), events.TopicOrderCreated, aggregate, payload)
	require.NoError(t, err)
	require.Equal(t, events.TopicOrderCreated, store.last.Topic)
	require.JSONEq(t, `{"orderId":"123"}`, string(store.last.Payload))
	require.Len(t, scheduler.events, 1)
	require.Len(t, notifier.events, 1)
	require.Equal(t, event.ID, scheduler.events[0].ID)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(event.Payload, &decoded))
	require.Equal(t, "123", decoded["orderId"])
}

func TestEmitSurvivesSchedulerFailure(t *testing.T) {
	store := &stubStore{}
	scheduler := &captureScheduler{err: errors.New("queue down")}
	bus := events.Bus{Store: store, Scheduler: scheduler}

	_, err := bus.Emit(context.Background(), events.TopicOrderContentsChanged, uuid.New(), nil)
	require.Error(t, err)
	// The event is journaled even when fan-out fails, so it can be replayed.
	require.Equal(t, events.TopicOrderContentsChanged, store.last.Topic)
}

func TestEmitValidatesInput(t *testing.T) {
	bus := events.Bus{Store: &stubStore{}}

	_, err := bus.Emit(context.Background(), " ", uuid.New(), nil)
	require.Error(t, err)

	_, err = bus.Emit(context.Background(), events.TopicOrderCreated, uuid.Nil, nil)
	require.Error(t, err)

	_, err = bus.Emit(context.Background(), events.TopicOrderCreated, uuid.New(), "not-json")
	require.Error(t, err)
}
