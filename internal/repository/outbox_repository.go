package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

func (r *Repository) InsertEvent(ctx context.Context, aggregateID, eventType string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", eventType, err)
	}

	query := `
		INSERT INTO outbox_events (event_id, aggregate_id, event_type, payload)
		VALUES ($1, $2, $3, $4)
	`
	if _, err := r.q.ExecContext(ctx, query, uuid.New(), aggregateID, eventType, data); err != nil {
		return mapError("insert outbox event", err)
	}
	return nil
}

func (r *Repository) GetUnprocessedEvents(ctx context.Context, limit int) ([]*OutboxEvent, error) {
	query := `
		SELECT id, event_id, aggregate_id, event_type, payload, created_at
		FROM outbox_events
		WHERE processed_at IS NULL
		ORDER BY id
		LIMIT $1
	`

	rows, err := r.q.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, mapError("query outbox events", err)
	}
	defer rows.Close()

	var events []*OutboxEvent
	for rows.Next() {
		e := &OutboxEvent{}
		var payload []byte
		if err := rows.Scan(&e.ID, &e.EventID, &e.AggregateID, &e.EventType, &payload, &e.CreatedAt); err != nil {
			return nil, mapError("scan outbox event", err)
		}
		e.Payload = payload
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError("outbox rows", err)
	}
	return events, nil
}

func (r *Repository) MarkEventAsProcessed(ctx context.Context, id int64) error {
	if _, err := r.q.ExecContext(ctx, `UPDATE outbox_events SET processed_at = NOW() WHERE id = $1`, id); err != nil {
		return mapError("mark outbox event", err)
	}
	return nil
}
