package repository

import (
	"context"

	"cinema-order-engine/internal/infra"
	"cinema-order-engine/internal/infra/db"
	"cinema-order-engine/internal/pkg/pgconv"
	"cinema-order-engine/internal/usecase/shared"
)

// An expired record for the same key is overwritten; a live one is never
// reached here because the engine replays it first.
const saveIdempotencyKeySQL = `
INSERT INTO idempotency_keys (key, user_name, request_hash, order_id, expires_at)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (key, user_name) DO UPDATE
SET request_hash = EXCLUDED.request_hash,
    order_id     = EXCLUDED.order_id,
    created_at   = now(),
    expires_at   = EXCLUDED.expires_at
WHERE idempotency_keys.expires_at <= now()`

const deleteExpiredIdempotencyKeysSQL = `DELETE FROM idempotency_keys WHERE expires_at <= now()`

type IdempotencyRepository struct {
	db db.DBTX
}

func NewIdempotencyRepository(db db.DBTX) *IdempotencyRepository {
	return &IdempotencyRepository{db: db}
}

func (r *IdempotencyRepository) Save(ctx context.Context, rec shared.IdempotencyRecord) error {
	tag, err := r.db.Exec(ctx, saveIdempotencyKeySQL,
		pgconv.UUIDToPgtype(rec.Key),
		rec.UserName,
		rec.RequestHash,
		rec.OrderID,
		pgconv.TimeToPgtype(rec.ExpiresAt),
	)
	if err != nil {
		return infra.WrapRepoErr("failed to save idempotency key", err)
	}
	if tag.RowsAffected() == 0 {
		return infra.WrapRepoErr("idempotency key already in use", nil, infra.KindDuplicateKey)
	}
	return nil
}

func (r *IdempotencyRepository) DeleteExpired(ctx context.Context) (int64, error) {
	tag, err := r.db.Exec(ctx, deleteExpiredIdempotencyKeysSQL)
	if err != nil {
		return 0, infra.WrapRepoErr("failed to delete expired idempotency keys", err)
	}
	return tag.RowsAffected(), nil
}
