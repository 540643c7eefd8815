package repository

import (
	"context"
	"time"

	"github.com/fjod/go_cart/fulfillment-service/internal/domain"
)

type sqlOutbox struct {
	q querier
}

func (o *sqlOutbox) Append(ctx context.Context, event *domain.OutboxEvent) error {
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}

	query := `INSERT INTO outbox_events (aggregate_id, event_type, payload, created_at)
	          VALUES ($1, $2, $3, $4) RETURNING id`

	err := o.q.QueryRowContext(ctx, query,
		event.AggregateID,
		event.EventType,
		string(event.Payload),
		event.CreatedAt.UTC()).Scan(&event.ID)
	if err != nil {
		return persistenceError("insert outbox event", err)
	}
	return nil
}

func (o *sqlOutbox) GetUnprocessedEvents(ctx context.Context, limit int) ([]*domain.OutboxEvent, error) {
	query := `SELECT id, aggregate_id, event_type, payload, created_at
	          FROM outbox_events WHERE processed_at IS NULL
	          ORDER BY id LIMIT $1`

	rows, err := o.q.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, persistenceError("query outbox events", err)
	}
	defer rows.Close()

	var events []*domain.OutboxEvent
	for rows.Next() {
		var event domain.OutboxEvent
		var payload string
		if err := rows.Scan(&event.ID, &event.AggregateID, &event.EventType, &payload, &event.CreatedAt); err != nil {
			return nil, persistenceError("scan outbox event", err)
		}
		event.Payload = []byte(payload)
		events = append(events, &event)
	}
	if err := rows.Err(); err != nil {
		return nil, persistenceError("outbox rows iteration", err)
	}

	return events, nil
}

func (o *sqlOutbox) MarkEventAsProcessed(ctx context.Context, id int64) error {
	query := `UPDATE outbox_events SET processed_at = $1 WHERE id = $2`

	if _, err := o.q.ExecContext(ctx, query, time.Now().UTC(), id); err != nil {
		return persistenceError("mark outbox event processed", err)
	}
	return nil
}
