//go:build unit || e2e

package builder

import (
	"time"

	"cinema-order-engine/internal/domain/order"
	reqdto "cinema-order-engine/internal/handler/dto/request"
	"cinema-order-engine/internal/usecase/commands"
)

type OrderBuilder struct {
	Payer     string
	ShowingID *int64
	Seats     []string
	Items     []order.ItemRequest
	Price     int64
	Balance   int64
	CreatedAt time.Time
}

func NewOrderBuilder() *OrderBuilder {
	showingID := int64(1)
	return &OrderBuilder{
		Payer:     "alice",
		ShowingID: &showingID,
		Seats:     []string{"A-1", "A-2"},
		Items:     []order.ItemRequest{{ProductID: 1, Quantity: 2}},
		Price:     50000,
		Balance:   500000,
		CreatedAt: time.Date(2024, 5, 1, 19, 0, 0, 0, time.UTC),
	}
}

func (b *OrderBuilder) With(mutate func(*OrderBuilder)) *OrderBuilder {
	mutate(b)
	return b
}

func (b *OrderBuilder) BuildRequestDTO() reqdto.PlaceOrderRequest {
	req := reqdto.PlaceOrderRequest{ShowingID: b.ShowingID}
	for _, s := range b.Seats {
		req.Seats = append(req.Seats, reqdto.SeatInput{Label: s})
	}
	for _, it := range b.Items {
		req.Items = append(req.Items, reqdto.ItemInput{ProductID: it.ProductID, Quantity: it.Quantity})
	}
	return req
}

// BuildResult returns the engine result for the builder's request, pricing every
// item at 25000 as "Popcorn".
func (b *OrderBuilder) BuildResult() *commands.PlaceOrderResult {
	seats := make([]order.Seat, 0, len(b.Seats))
	for _, label := range b.Seats {
		s, err := order.ParseSeat(label)
		if err != nil {
			panic(err)
		}
		seats = append(seats, s)
	}

	var lines []order.PricedLine
	total := order.Money(0)
	for _, it := range b.Items {
		sub := order.Money(25000 * int64(it.Quantity))
		lines = append(lines, order.PricedLine{
			ProductID: it.ProductID,
			Name:      "Popcorn",
			Category:  "snack",
			UnitPrice: 25000,
			Quantity:  it.Quantity,
			Subtotal:  sub,
		})
		total += sub
	}

	result := &commands.PlaceOrderResult{
		OrderID:   42,
		Payer:     b.Payer,
		SeatCount: len(seats),
		Seats:     seats,
		Lines:     lines,
		CreatedAt: b.CreatedAt,
	}
	if b.ShowingID != nil {
		result.TicketUnitPrice = order.Money(b.Price)
		total += order.Money(b.Price * int64(len(seats)))
		result.Showing = &commands.ShowingInfo{
			ID:       *b.ShowingID,
			Title:    "Dune: Part Two",
			StartsAt: b.CreatedAt.Add(2 * time.Hour),
			Studio:   "Studio 1",
		}
	}
	result.Total = total
	result.RemainingBalance = order.Money(b.Balance) - total
	return result
}
