package repository

import (
	"context"

	"cinema-order-engine/internal/domain/order"
	"cinema-order-engine/internal/infra"
	"cinema-order-engine/internal/infra/db"
	"cinema-order-engine/internal/pkg/pgconv"
)

const (
	createOrderSQL = `
INSERT INTO orders (user_name, showing_id, ticket_unit_price, total, created_at)
VALUES ($1, $2, $3, $4, $5)
RETURNING id`

	addOrderSeatSQL = `
INSERT INTO order_seats (order_id, seq, showing_id, seat_row, seat_col)
VALUES ($1, $2, $3, $4, $5)`

	addOrderItemSQL = `
INSERT INTO order_items (order_id, seq, product_id, name, category, unit_price, quantity)
VALUES ($1, $2, $3, $4, $5, $6, $7)`
)

type OrderRepository struct {
	db db.DBTX
}

func NewOrderRepository(db db.DBTX) *OrderRepository {
	return &OrderRepository{db: db}
}

func (r *OrderRepository) CreateHeader(ctx context.Context, o order.NewOrder) (int64, error) {
	var id int64
	err := r.db.QueryRow(ctx, createOrderSQL,
		o.Payer,
		pgconv.Int8FromPtr(o.ShowingID),
		o.TicketUnitPrice.Int64(),
		o.Total.Int64(),
		pgconv.TimeToPgtype(o.CreatedAt),
	).Scan(&id)
	if err != nil {
		return 0, infra.WrapRepoErr("failed to create order", err)
	}
	return id, nil
}

func (r *OrderRepository) AddSeat(ctx context.Context, orderID int64, seq int, showingID int64, seat order.Seat) error {
	_, err := r.db.Exec(ctx, addOrderSeatSQL, orderID, seq, showingID, seat.RowLabel(), seat.Col)
	if err != nil {
		return infra.WrapRepoErr("failed to add order seat", err)
	}
	return nil
}

func (r *OrderRepository) AddLine(ctx context.Context, orderID int64, seq int, line order.PricedLine) error {
	_, err := r.db.Exec(ctx, addOrderItemSQL,
		orderID,
		seq,
		line.ProductID,
		line.Name,
		line.Category,
		line.UnitPrice.Int64(),
		line.Quantity,
	)
	if err != nil {
		return infra.WrapRepoErr("failed to add order item", err)
	}
	return nil
}
