//go:build unit

package order_test

import (
	"math"
	"testing"
	"time"

	"cinema-order-engine/internal/domain/order"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustPlan(t *testing.T, showingID *int64, seats []order.Seat, items []order.ItemRequest) *order.Plan {
	t.Helper()
	p, err := order.NewPlan("alice", showingID, seats, items)
	require.NoError(t, err)
	return p
}

func TestPrice(t *testing.T) {
	show := &order.Showing{ID: 1, Price: 50000, Title: "Interstellar", StartsAt: time.Date(2026, 1, 2, 19, 0, 0, 0, time.UTC), Studio: "Studio 1"}
	popcorn := order.Product{ID: 2, Name: "Popcorn", Category: "food", UnitPrice: 25000}
	cola := order.Product{ID: 5, Name: "Cola", Category: "drink", UnitPrice: 15000}

	t.Run("success: tickets and concessions", func(t *testing.T) {
		plan := mustPlan(t, showing(1),
			[]order.Seat{{Row: 'A', Col: 1}, {Row: 'A', Col: 2}},
			[]order.ItemRequest{{ProductID: 5, Quantity: 2}, {ProductID: 2, Quantity: 1}},
		)

		q, err := order.Price(plan, show, []order.Product{cola, popcorn})
		require.NoError(t, err)

		want := &order.Quote{
			TicketUnitPrice: 50000,
			SeatCount:       2,
			TicketSubtotal:  100000,
			Lines: []order.PricedLine{
				{ProductID: 2, Name: "Popcorn", Category: "food", UnitPrice: 25000, Quantity: 1, Subtotal: 25000},
				{ProductID: 5, Name: "Cola", Category: "drink", UnitPrice: 15000, Quantity: 2, Subtotal: 30000},
			},
			Total: 155000,
		}
		if diff := cmp.Diff(want, q); diff != "" {
			t.Errorf("quote mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("success: concessions only", func(t *testing.T) {
		plan := mustPlan(t, nil, nil, []order.ItemRequest{{ProductID: 2, Quantity: 3}})
		q, err := order.Price(plan, nil, []order.Product{popcorn})
		require.NoError(t, err)
		assert.Equal(t, order.Money(0), q.TicketUnitPrice)
		assert.Equal(t, 0, q.SeatCount)
		assert.Equal(t, order.Money(75000), q.Total)
	})

	t.Run("error: missing showing", func(t *testing.T) {
		plan := mustPlan(t, showing(1), []order.Seat{{Row: 'A', Col: 1}}, nil)
		_, err := order.Price(plan, nil, nil)
		assert.ErrorIs(t, err, order.ErrShowingNotFound)
	})

	t.Run("error: lowest missing product reported", func(t *testing.T) {
		plan := mustPlan(t, nil, nil, []order.ItemRequest{
			{ProductID: 99, Quantity: 1},
			{ProductID: 2, Quantity: 1},
			{ProductID: 42, Quantity: 1},
		})
		_, err := order.Price(plan, nil, []order.Product{popcorn})
		require.ErrorIs(t, err, order.ErrProductUnavailable)

		var oe *order.Error
		require.ErrorAs(t, err, &oe)
		assert.Equal(t, int64(42), oe.ProductID)
	})

	t.Run("error: overflow is rejected", func(t *testing.T) {
		huge := order.Product{ID: 2, Name: "Gold", UnitPrice: order.Money(math.MaxInt64 / 2)}
		plan := mustPlan(t, nil, nil, []order.ItemRequest{{ProductID: 2, Quantity: 3}})
		_, err := order.Price(plan, nil, []order.Product{huge})
		assert.ErrorIs(t, err, order.ErrInvalidQuantity)
	})

	t.Run("success: client order of catalog rows does not matter", func(t *testing.T) {
		plan := mustPlan(t, nil, nil, []order.ItemRequest{{ProductID: 2, Quantity: 1}, {ProductID: 5, Quantity: 1}})
		q1, err := order.Price(plan, nil, []order.Product{popcorn, cola})
		require.NoError(t, err)
		q2, err := order.Price(plan, nil, []order.Product{cola, popcorn})
		require.NoError(t, err)
		assert.Equal(t, q1, q2)
	})
}

func TestNewOrderFromQuote(t *testing.T) {
	plan := mustPlan(t, showing(4), []order.Seat{{Row: 'B', Col: 3}}, nil)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	q := &order.Quote{TicketUnitPrice: 40000, SeatCount: 1, TicketSubtotal: 40000, Total: 40000}

	got := order.NewOrderFromQuote(plan, q, now)
	assert.Equal(t, "alice", got.Payer)
	require.NotNil(t, got.ShowingID)
	assert.Equal(t, int64(4), *got.ShowingID)
	assert.Equal(t, order.Money(40000), got.TicketUnitPrice)
	assert.Equal(t, order.Money(40000), got.Total)
	assert.Equal(t, now, got.CreatedAt)
}
