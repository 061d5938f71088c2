package readstore

import (
	"context"

	"cinema-order-engine/internal/domain/order"
	"cinema-order-engine/internal/infra"
	"cinema-order-engine/internal/infra/db"
	"cinema-order-engine/internal/pkg/pgconv"
	"cinema-order-engine/internal/usecase/shared"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

const (
	receiptHeaderSQL = `
SELECT o.id, o.user_name, o.ticket_unit_price, o.total, o.created_at,
       s.id, m.title, s.studio_name, s.starts_at, s.price
FROM orders o
LEFT JOIN showings s ON s.id = o.showing_id
LEFT JOIN movies m ON m.id = s.movie_id
WHERE o.id = $1`

	receiptSeatsSQL = `SELECT seat_row, seat_col FROM order_seats WHERE order_id = $1 ORDER BY seq`

	receiptItemsSQL = `
SELECT product_id, name, category, unit_price, quantity
FROM order_items
WHERE order_id = $1
ORDER BY seq`
)

type ReceiptReadStore struct {
	db db.DBTX
}

func NewReceiptReadStore(db db.DBTX) *ReceiptReadStore {
	return &ReceiptReadStore{db: db}
}

func (r *ReceiptReadStore) FindByID(ctx context.Context, orderID int64) (*shared.Receipt, error) {
	var (
		rc           shared.Receipt
		unitPrice    int64
		total        int64
		showingID    pgtype.Int8
		movieTitle   pgtype.Text
		studioName   pgtype.Text
		startsAt     pgtype.Timestamptz
		showingPrice pgtype.Int8
	)
	err := r.db.QueryRow(ctx, receiptHeaderSQL, orderID).Scan(
		&rc.OrderID, &rc.UserName, &unitPrice, &total, &rc.CreatedAt,
		&showingID, &movieTitle, &studioName, &startsAt, &showingPrice,
	)
	if err != nil {
		return nil, infra.WrapRepoErr("failed to find order", err)
	}
	rc.TicketUnitPrice = order.Money(unitPrice)
	rc.Total = order.Money(total)

	if id := pgconv.Int8ToPtr(showingID); id != nil {
		rc.Showing = &shared.ShowingSnapshot{
			ID:         *id,
			MovieTitle: movieTitle.String,
			StudioName: studioName.String,
			StartsAt:   startsAt.Time,
			Price:      order.Money(showingPrice.Int64),
		}
	}

	if rc.Seats, err = r.seats(ctx, orderID); err != nil {
		return nil, err
	}
	if rc.Lines, err = r.lines(ctx, orderID); err != nil {
		return nil, err
	}

	return &rc, nil
}

func (r *ReceiptReadStore) seats(ctx context.Context, orderID int64) ([]order.Seat, error) {
	rows, err := r.db.Query(ctx, receiptSeatsSQL, orderID)
	if err != nil {
		return nil, infra.WrapRepoErr("failed to load order seats", err)
	}
	seats, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (order.Seat, error) {
		var (
			label string
			col   int
		)
		if err := row.Scan(&label, &col); err != nil {
			return order.Seat{}, err
		}
		return order.NewSeat(label, col)
	})
	if err != nil {
		return nil, infra.WrapRepoErr("failed to scan order seats", err)
	}
	return seats, nil
}

func (r *ReceiptReadStore) lines(ctx context.Context, orderID int64) ([]order.PricedLine, error) {
	rows, err := r.db.Query(ctx, receiptItemsSQL, orderID)
	if err != nil {
		return nil, infra.WrapRepoErr("failed to load order items", err)
	}
	lines, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (order.PricedLine, error) {
		var (
			l         order.PricedLine
			unitPrice int64
		)
		if err := row.Scan(&l.ProductID, &l.Name, &l.Category, &unitPrice, &l.Quantity); err != nil {
			return order.PricedLine{}, err
		}
		l.UnitPrice = order.Money(unitPrice)
		l.Subtotal = order.Money(unitPrice * int64(l.Quantity))
		return l, nil
	})
	if err != nil {
		return nil, infra.WrapRepoErr("failed to scan order items", err)
	}
	return lines, nil
}
