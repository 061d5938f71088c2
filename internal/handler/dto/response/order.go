package response

import (
	"time"

	"cinema-order-engine/internal/usecase/commands"

	"github.com/jinzhu/copier"
)

type OrderResponse struct {
	OrderID          int64          `json:"orderId"`
	UserName         string         `json:"userName"`
	Total            int64          `json:"total"`
	TicketUnitPrice  int64          `json:"ticketUnitPrice"`
	TicketSeatCount  int            `json:"ticketSeatCount"`
	ShowingID        *int64         `json:"showingId,omitempty"`
	MovieTitle       string         `json:"movieTitle,omitempty"`
	ShowTime         *time.Time     `json:"showTime,omitempty"`
	StudioName       string         `json:"studioName,omitempty"`
	Seats            []string       `json:"seats"`
	Items            []LineResponse `json:"items"`
	RemainingBalance int64          `json:"remainingBalance"`
	CreatedAt        time.Time      `json:"createdAt"`
	Replayed         bool           `json:"replayed"`
}

type LineResponse struct {
	ProductID int64  `json:"productId"`
	Name      string `json:"name"`
	Category  string `json:"category"`
	UnitPrice int64  `json:"unitPrice"`
	Quantity  int    `json:"quantity"`
	Subtotal  int64  `json:"subtotal"`
}

func FromPlaceOrderResult(r *commands.PlaceOrderResult) (*OrderResponse, error) {
	res := &OrderResponse{
		OrderID:          r.OrderID,
		UserName:         r.Payer,
		Total:            r.Total.Int64(),
		TicketUnitPrice:  r.TicketUnitPrice.Int64(),
		TicketSeatCount:  r.SeatCount,
		Seats:            make([]string, len(r.Seats)),
		Items:            []LineResponse{},
		RemainingBalance: r.RemainingBalance.Int64(),
		CreatedAt:        r.CreatedAt,
		Replayed:         r.Replayed,
	}

	if s := r.Showing; s != nil {
		id, startsAt := s.ID, s.StartsAt
		res.ShowingID = &id
		res.MovieTitle = s.Title
		res.ShowTime = &startsAt
		res.StudioName = s.Studio
	}

	for i, seat := range r.Seats {
		res.Seats[i] = seat.String()
	}

	if err := copier.Copy(&res.Items, r.Lines); err != nil {
		return nil, err
	}
	return res, nil
}
