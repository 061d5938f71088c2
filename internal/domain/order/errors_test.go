//go:build unit

package order_test

import (
	"errors"
	"fmt"
	"testing"

	"cinema-order-engine/internal/domain/order"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorKinds(t *testing.T) {
	seat := order.Seat{Row: 'A', Col: 1}

	conflict := order.SeatConflict(seat)
	assert.ErrorIs(t, conflict, order.ErrSeatConflict)
	assert.NotErrorIs(t, conflict, order.ErrInsufficientBalance)
	require.NotNil(t, conflict.Seat)
	assert.Equal(t, seat, *conflict.Seat)
	assert.Contains(t, conflict.Error(), "A-1")

	wrapped := fmt.Errorf("place order: %w", conflict)
	assert.Equal(t, order.KindSeatConflict, order.KindOf(wrapped))
	assert.True(t, order.IsKind(wrapped, order.KindSeatConflict))

	assert.Equal(t, order.Kind(""), order.KindOf(errors.New("plain")))
}

func TestPersistenceFailure(t *testing.T) {
	cause := errors.New("connection reset")
	err := order.PersistenceFailure(cause)

	assert.ErrorIs(t, err, order.ErrPersistenceFailure)
	assert.ErrorIs(t, err, cause)
	assert.True(t, err.Retryable())
	assert.Equal(t, "persistence failure", err.Message())

	assert.False(t, order.SeatConflict(order.Seat{Row: 'B', Col: 2}).Retryable())
	assert.False(t, order.InsufficientBalance(1, 2).Retryable())
}
