package repository

import (
	"context"
	"time"

	"cinema-order-engine/internal/infra"
	"cinema-order-engine/internal/infra/db"
	"cinema-order-engine/internal/pkg/pgconv"
	"cinema-order-engine/internal/usecase/shared"

	"github.com/jackc/pgx/v5"
)

const (
	enqueueEventSQL = `
INSERT INTO order_events (event_id, topic, payload, created_at)
VALUES ($1, $2, $3, $4)`

	claimPendingEventsSQL = `
SELECT id, event_id, topic, payload, attempts, created_at
FROM order_events
WHERE published_at IS NULL AND attempts < $2
ORDER BY id
LIMIT $1
FOR UPDATE SKIP LOCKED`

	markEventPublishedSQL = `UPDATE order_events SET published_at = $2, attempts = attempts + 1, last_error = NULL WHERE id = $1`
	markEventFailedSQL    = `UPDATE order_events SET attempts = attempts + 1, last_error = $2 WHERE id = $1`
)

type OutboxRepository struct {
	db db.DBTX
}

func NewOutboxRepository(db db.DBTX) *OutboxRepository {
	return &OutboxRepository{db: db}
}

func (r *OutboxRepository) Enqueue(ctx context.Context, event shared.OutboxEvent) error {
	_, err := r.db.Exec(ctx, enqueueEventSQL,
		pgconv.UUIDToPgtype(event.EventID),
		event.Topic,
		event.Payload,
		pgconv.TimeToPgtype(event.CreatedAt),
	)
	if err != nil {
		return infra.WrapRepoErr("failed to enqueue order event", err)
	}
	return nil
}

func (r *OutboxRepository) ClaimPending(ctx context.Context, limit, maxAttempts int) ([]shared.OutboxEvent, error) {
	rows, err := r.db.Query(ctx, claimPendingEventsSQL, limit, maxAttempts)
	if err != nil {
		return nil, infra.WrapRepoErr("failed to claim pending order events", err)
	}

	events, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (shared.OutboxEvent, error) {
		var e shared.OutboxEvent
		err := row.Scan(&e.ID, &e.EventID, &e.Topic, &e.Payload, &e.Attempts, &e.CreatedAt)
		return e, err
	})
	if err != nil {
		return nil, infra.WrapRepoErr("failed to scan pending order events", err)
	}
	return events, nil
}

func (r *OutboxRepository) MarkPublished(ctx context.Context, id int64, at time.Time) error {
	if _, err := r.db.Exec(ctx, markEventPublishedSQL, id, pgconv.TimeToPgtype(at)); err != nil {
		return infra.WrapRepoErr("failed to mark order event published", err)
	}
	return nil
}

func (r *OutboxRepository) MarkFailed(ctx context.Context, id int64, reason string) error {
	if _, err := r.db.Exec(ctx, markEventFailedSQL, id, reason); err != nil {
		return infra.WrapRepoErr("failed to mark order event failed", err)
	}
	return nil
}
