package readstore

import (
	"context"

	"cinema-order-engine/internal/infra"
	"cinema-order-engine/internal/infra/db"
	"cinema-order-engine/internal/pkg/pgconv"
	"cinema-order-engine/internal/usecase/shared"

	"github.com/google/uuid"
)

const idempotencyByKeySQL = `
SELECT key, user_name, request_hash, order_id, expires_at
FROM idempotency_keys
WHERE key = $1 AND user_name = $2 AND expires_at > now()`

type IdempotencyReadStore struct {
	db db.DBTX
}

func NewIdempotencyReadStore(db db.DBTX) *IdempotencyReadStore {
	return &IdempotencyReadStore{db: db}
}

// Get treats an expired record as absent. Expiry is judged by the database
// clock, the same one the upsert in IdempotencyRepository.Save uses.
func (r *IdempotencyReadStore) Get(ctx context.Context, key uuid.UUID, userName string) (*shared.IdempotencyRecord, error) {
	var rec shared.IdempotencyRecord
	err := r.db.QueryRow(ctx, idempotencyByKeySQL, pgconv.UUIDToPgtype(key), userName).
		Scan(&rec.Key, &rec.UserName, &rec.RequestHash, &rec.OrderID, &rec.ExpiresAt)
	if err != nil {
		return nil, infra.WrapRepoErr("failed to get idempotency key", err)
	}
	return &rec, nil
}
