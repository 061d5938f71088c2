package request

import (
	"bytes"
	"encoding/json"
	"fmt"

	"cinema-order-engine/internal/domain/order"
	"cinema-order-engine/internal/usecase/commands"

	"github.com/google/uuid"
)

type PlaceOrderRequest struct {
	ShowingID *int64      `json:"showingId,omitempty"`
	Seats     []SeatInput `json:"seats,omitempty"`
	Items     []ItemInput `json:"items,omitempty"`
}

// SeatInput accepts either the "A-1" label or a {"row":"A","col":1} object.
type SeatInput struct {
	Label string `json:"-"`
	Row   string `json:"row"`
	Col   int    `json:"col"`
}

type seatObject struct {
	Row string `json:"row"`
	Col int    `json:"col"`
}

func (s *SeatInput) UnmarshalJSON(data []byte) error {
	if bytes.HasPrefix(bytes.TrimSpace(data), []byte(`"`)) {
		var label string
		if err := json.Unmarshal(data, &label); err != nil {
			return err
		}
		*s = SeatInput{Label: label}
		return nil
	}

	var obj seatObject
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	*s = SeatInput{Row: obj.Row, Col: obj.Col}
	return nil
}

func (s SeatInput) MarshalJSON() ([]byte, error) {
	if s.Label != "" {
		return json.Marshal(s.Label)
	}
	return json.Marshal(seatObject{Row: s.Row, Col: s.Col})
}

// Text renders the seat as an "A-1" label; objects are checked by the engine
// like any other label.
func (s SeatInput) Text() string {
	if s.Label != "" {
		return s.Label
	}
	return fmt.Sprintf("%s-%d", s.Row, s.Col)
}

type ItemInput struct {
	ProductID int64 `json:"productId"`
	Quantity  int   `json:"quantity"`
}

// ToInput converts the body into engine input. Seats stay raw labels so that
// malformed ones are rejected, counted and logged by the engine.
func (r PlaceOrderRequest) ToInput(payer string, key *uuid.UUID) commands.PlaceOrderInput {
	labels := make([]string, 0, len(r.Seats))
	for _, in := range r.Seats {
		labels = append(labels, in.Text())
	}

	items := make([]order.ItemRequest, 0, len(r.Items))
	for _, in := range r.Items {
		items = append(items, order.ItemRequest{ProductID: in.ProductID, Quantity: in.Quantity})
	}

	return commands.PlaceOrderInput{
		Payer:          payer,
		ShowingID:      r.ShowingID,
		SeatLabels:     labels,
		Items:          items,
		IdempotencyKey: key,
	}
}
