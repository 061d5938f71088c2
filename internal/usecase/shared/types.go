package shared

import (
	"time"

	"cinema-order-engine/internal/domain/order"

	"github.com/google/uuid"
)

type UserSnapshot struct {
	UserName    string
	DisplayName string
	Balance     order.Money
}

type ShowingSnapshot struct {
	ID         int64
	MovieTitle string
	StudioName string
	StartsAt   time.Time
	Price      order.Money
}

func (s *ShowingSnapshot) ToDomain() *order.Showing {
	if s == nil {
		return nil
	}
	return &order.Showing{
		ID:       s.ID,
		Price:    s.Price,
		Title:    s.MovieTitle,
		StartsAt: s.StartsAt,
		Studio:   s.StudioName,
	}
}

type ProductSnapshot struct {
	ID        int64
	Name      string
	Category  string
	UnitPrice order.Money
}

func ProductsToDomain(snaps []ProductSnapshot) []order.Product {
	out := make([]order.Product, len(snaps))
	for i, p := range snaps {
		out[i] = order.Product{ID: p.ID, Name: p.Name, Category: p.Category, UnitPrice: p.UnitPrice}
	}
	return out
}

type IdempotencyRecord struct {
	Key         uuid.UUID
	UserName    string
	RequestHash string
	OrderID     int64
	ExpiresAt   time.Time
}

// Receipt is a committed order as stored, used to answer replayed requests.
type Receipt struct {
	OrderID         int64
	UserName        string
	TicketUnitPrice order.Money
	Total           order.Money
	CreatedAt       time.Time
	Showing         *ShowingSnapshot
	Seats           []order.Seat
	Lines           []order.PricedLine
}

type OutboxEvent struct {
	ID        int64
	EventID   uuid.UUID
	Topic     string
	Payload   []byte
	Attempts  int
	CreatedAt time.Time
}
