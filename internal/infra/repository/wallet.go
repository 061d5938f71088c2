package repository

import (
	"context"

	"cinema-order-engine/internal/domain/order"
	"cinema-order-engine/internal/infra"
	"cinema-order-engine/internal/infra/db"
)

const (
	lockBalanceSQL = `SELECT balance FROM users WHERE user_name = $1 FOR UPDATE`
	debitSQL       = `UPDATE users SET balance = balance - $2 WHERE user_name = $1 RETURNING balance`
)

type WalletRepository struct {
	db db.DBTX
}

func NewWalletRepository(db db.DBTX) *WalletRepository {
	return &WalletRepository{db: db}
}

func (r *WalletRepository) LockBalance(ctx context.Context, userName string) (order.Money, error) {
	var balance int64
	err := r.db.QueryRow(ctx, lockBalanceSQL, userName).Scan(&balance)
	if err != nil {
		return 0, infra.WrapRepoErr("failed to lock wallet", err)
	}
	return order.Money(balance), nil
}

// Debit decrements unconditionally; the users_balance_non_negative constraint
// surfaces as KindCheckViolated if a caller skipped the sufficiency check.
func (r *WalletRepository) Debit(ctx context.Context, userName string, amount order.Money) (order.Money, error) {
	var balance int64
	err := r.db.QueryRow(ctx, debitSQL, userName, amount.Int64()).Scan(&balance)
	if err != nil {
		return 0, infra.WrapRepoErr("failed to debit wallet", err)
	}
	return order.Money(balance), nil
}
