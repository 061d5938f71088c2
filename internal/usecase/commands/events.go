package commands

import (
	"time"

	"github.com/google/uuid"
)

const TopicOrderPlaced = "order.placed"

// OrderPlacedEvent is the outbox payload published after an order commits.
type OrderPlacedEvent struct {
	EventID   uuid.UUID         `json:"event_id"`
	Type      string            `json:"type"`
	OrderID   int64             `json:"order_id"`
	UserName  string            `json:"user_name"`
	ShowingID *int64            `json:"showing_id,omitempty"`
	Seats     []string          `json:"seats"`
	Items     []OrderPlacedItem `json:"items"`
	Total     int64             `json:"total"`
	CreatedAt time.Time         `json:"created_at"`
}

type OrderPlacedItem struct {
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
	UnitPrice int64 `json:"unit_price"`
}
