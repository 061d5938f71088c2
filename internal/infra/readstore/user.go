package readstore

import (
	"context"

	"cinema-order-engine/internal/domain/order"
	"cinema-order-engine/internal/infra"
	"cinema-order-engine/internal/infra/db"
	"cinema-order-engine/internal/usecase/shared"
)

const userByNameSQL = `SELECT user_name, display_name, balance FROM users WHERE user_name = $1`

type UserReadStore struct {
	db db.DBTX
}

func NewUserReadStore(db db.DBTX) *UserReadStore {
	return &UserReadStore{db: db}
}

func (r *UserReadStore) FindByName(ctx context.Context, userName string) (*shared.UserSnapshot, error) {
	var (
		u       shared.UserSnapshot
		balance int64
	)
	err := r.db.QueryRow(ctx, userByNameSQL, userName).Scan(&u.UserName, &u.DisplayName, &balance)
	if err != nil {
		return nil, infra.WrapRepoErr("failed to find user", err)
	}
	u.Balance = order.Money(balance)
	return &u, nil
}
