package repository

import (
	"context"

	"cinema-order-engine/internal/domain/order"
	"cinema-order-engine/internal/infra"
	"cinema-order-engine/internal/infra/db"
	"cinema-order-engine/internal/pkg/pgconv"
)

// A concurrent insert of the same key waits for the holder's transaction; it
// then returns no row if the holder committed or inserts if it rolled back.
const claimSeatSQL = `
INSERT INTO seat_bookings (showing_id, seat_row, seat_col, order_id)
VALUES ($1, $2, $3, $4)
ON CONFLICT (showing_id, seat_row, seat_col) DO NOTHING
RETURNING order_id`

type SeatRepository struct {
	db db.DBTX
}

func NewSeatRepository(db db.DBTX) *SeatRepository {
	return &SeatRepository{db: db}
}

func (r *SeatRepository) TryClaim(ctx context.Context, showingID int64, seat order.Seat, orderID int64) (bool, error) {
	var owner int64
	err := r.db.QueryRow(ctx, claimSeatSQL, showingID, seat.RowLabel(), seat.Col, orderID).Scan(&owner)
	if err != nil {
		if pgconv.IsNoRows(err) {
			return false, nil
		}
		return false, infra.WrapRepoErr("failed to claim seat "+seat.String(), err)
	}
	return true, nil
}
