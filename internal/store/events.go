package store

import (
	"context"

	"github.com/google/uuid"

	"github.com/foodshed/market-api/internal/events"
)

// InsertDomainEvent journals one domain event and returns the stored row.
func (s *Store) InsertDomainEvent(ctx context.Context, topic string, aggregateID uuid.UUID, payload []byte) (events.DomainEvent, error) {
	ev := events.DomainEvent{
		ID:          uuid.New(),
		Topic:       topic,
		AggregateID: aggregateID,
		Payload:     payload,
	}
	err := s.Pool.QueryRow(ctx, `
		INSERT INTO domain_events (id, topic, aggregate_id, payload)
		VALUES ($1, $2, $3, $4)
		RETURNING occurred_at`,
		ev.ID, ev.Topic, ev.AggregateID, ev.Payload).Scan(&ev.OccurredAt)
	if err != nil {
		return events.DomainEvent{}, err
	}
	return ev, nil
}

// ListDomainEvents returns recent events for one aggregate, newest first.
func (s *Store) ListDomainEvents(ctx context.Context, aggregateID uuid.UUID, limit int) ([]events.DomainEvent, error) {
	rows, err := s.Pool.Query(ctx, `
		SELECT id, topic, aggregate_id, payload, occurred_at
		FROM domain_events
		WHERE aggregate_id = $1
		ORDER BY occurred_at DESC
		LIMIT $2`, aggregateID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []events.DomainEvent
	for rows.Next() {
		var ev events.DomainEvent
		if err := rows.Scan(&ev.ID, &ev.Topic, &ev.AggregateID, &ev.Payload, &ev.OccurredAt); err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}
