package order

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

type ItemRequest struct {
	ProductID int64
	Quantity  int
}

// Plan is a validated purchase request: seats deduplicated in row-major order,
// items merged per product and sorted by product id.
type Plan struct {
	Payer     string
	ShowingID *int64
	Seats     []Seat
	Items     []ItemRequest
}

func NewPlan(payer string, showingID *int64, seats []Seat, items []ItemRequest) (*Plan, error) {
	payer = strings.TrimSpace(payer)
	if payer == "" {
		return nil, ErrUserNotFound
	}

	// clients send showing 0 for concessions-only orders
	if showingID != nil && *showingID <= 0 {
		showingID = nil
	}

	if showingID == nil && len(items) == 0 {
		return nil, ErrEmptyOrder
	}
	if showingID != nil && len(seats) == 0 {
		return nil, ErrSeatsRequired
	}
	if showingID == nil && len(seats) > 0 {
		return nil, InvalidSeat("seats given without a showing")
	}

	normalized, err := NormalizeSeats(seats)
	if err != nil {
		return nil, err
	}

	merged, err := mergeItems(items)
	if err != nil {
		return nil, err
	}

	var sid *int64
	if showingID != nil {
		id := *showingID
		sid = &id
	}

	return &Plan{
		Payer:     payer,
		ShowingID: sid,
		Seats:     normalized,
		Items:     merged,
	}, nil
}

func mergeItems(items []ItemRequest) ([]ItemRequest, error) {
	qty := make(map[int64]int, len(items))
	for _, it := range items {
		if it.Quantity <= 0 {
			return nil, InvalidQuantity(fmt.Sprintf("product %d quantity %d", it.ProductID, it.Quantity))
		}
		if it.ProductID <= 0 {
			return nil, ProductUnavailable(it.ProductID)
		}
		sum := qty[it.ProductID] + it.Quantity
		if sum < qty[it.ProductID] {
			return nil, InvalidQuantity(fmt.Sprintf("product %d quantity overflow", it.ProductID))
		}
		qty[it.ProductID] = sum
	}

	out := make([]ItemRequest, 0, len(qty))
	for id, q := range qty {
		out = append(out, ItemRequest{ProductID: id, Quantity: q})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ProductID < out[j].ProductID })
	return out, nil
}

func (p *Plan) HasTickets() bool {
	return p.ShowingID != nil
}

func (p *Plan) ProductIDs() []int64 {
	ids := make([]int64, len(p.Items))
	for i, it := range p.Items {
		ids[i] = it.ProductID
	}
	return ids
}

// Fingerprint identifies the normalized request so a replayed idempotency key can
// be checked against the request it was first used with.
func (p *Plan) Fingerprint() string {
	type fpItem struct {
		ProductID int64 `json:"p"`
		Quantity  int   `json:"q"`
	}
	payload := struct {
		Payer     string   `json:"payer"`
		ShowingID *int64   `json:"showing"`
		Seats     []string `json:"seats"`
		Items     []fpItem `json:"items"`
	}{
		Payer:     p.Payer,
		ShowingID: p.ShowingID,
		Seats:     make([]string, len(p.Seats)),
		Items:     make([]fpItem, len(p.Items)),
	}
	for i, s := range p.Seats {
		payload.Seats[i] = s.String()
	}
	for i, it := range p.Items {
		payload.Items[i] = fpItem{ProductID: it.ProductID, Quantity: it.Quantity}
	}

	b, _ := json.Marshal(payload)
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}
