package order

import (
	"time"
)

type Showing struct {
	ID       int64
	Price    Money
	Title    string
	StartsAt time.Time
	Studio   string
}

type Product struct {
	ID        int64
	Name      string
	Category  string
	UnitPrice Money
}

type PricedLine struct {
	ProductID int64
	Name      string
	Category  string
	UnitPrice Money
	Quantity  int
	Subtotal  Money
}

type Quote struct {
	TicketUnitPrice Money
	SeatCount       int
	TicketSubtotal  Money
	Lines           []PricedLine
	Total           Money
}

// Price computes the authoritative total of plan from catalog data. showing must be
// non-nil when the plan has tickets; products holds whatever the catalog returned,
// and any requested id missing from it fails the whole quote with the lowest such id.
func Price(plan *Plan, showing *Showing, products []Product) (*Quote, error) {
	q := &Quote{}

	if plan.HasTickets() {
		if showing == nil || showing.ID != *plan.ShowingID {
			return nil, ErrShowingNotFound
		}
		sub, err := showing.Price.Times(len(plan.Seats))
		if err != nil {
			return nil, err
		}
		q.TicketUnitPrice = showing.Price
		q.SeatCount = len(plan.Seats)
		q.TicketSubtotal = sub
	}

	byID := make(map[int64]Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}

	total := q.TicketSubtotal
	q.Lines = make([]PricedLine, 0, len(plan.Items))
	// plan.Items is sorted, so the first miss is the lowest id
	for _, it := range plan.Items {
		p, ok := byID[it.ProductID]
		if !ok {
			return nil, ProductUnavailable(it.ProductID)
		}
		sub, err := p.UnitPrice.Times(it.Quantity)
		if err != nil {
			return nil, err
		}
		if total, err = total.Add(sub); err != nil {
			return nil, err
		}
		q.Lines = append(q.Lines, PricedLine{
			ProductID: p.ID,
			Name:      p.Name,
			Category:  p.Category,
			UnitPrice: p.UnitPrice,
			Quantity:  it.Quantity,
			Subtotal:  sub,
		})
	}
	q.Total = total

	return q, nil
}

// NewOrder is the header row written when an order is created.
type NewOrder struct {
	Payer           string
	ShowingID       *int64
	TicketUnitPrice Money
	Total           Money
	CreatedAt       time.Time
}

func NewOrderFromQuote(plan *Plan, quote *Quote, now time.Time) NewOrder {
	return NewOrder{
		Payer:           plan.Payer,
		ShowingID:       plan.ShowingID,
		TicketUnitPrice: quote.TicketUnitPrice,
		Total:           quote.Total,
		CreatedAt:       now,
	}
}
