//go:build unit

package errs_test

import (
	"errors"
	"testing"

	"cinema-order-engine/internal/pkg/errs"

	"github.com/stretchr/testify/assert"
)

func TestWrapAndMark(t *testing.T) {
	assert.Nil(t, errs.Wrap(nil, "noop"))
	assert.Nil(t, errs.Wrapf(nil, "noop %d", 1))

	base := errors.New("connection refused")
	wrapped := errs.Wrapf(base, "lock wallet %s", "alice")
	assert.ErrorIs(t, wrapped, base)
	assert.Contains(t, wrapped.Error(), "lock wallet alice")

	marked := errs.Mark(wrapped, errs.ErrDatabaseOperationFailed)
	assert.True(t, errs.Is(marked, errs.ErrDatabaseOperationFailed))
	assert.True(t, errs.Is(marked, base))

	assert.Equal(t, errs.ErrTxRetriesExhausted, errs.Mark(nil, errs.ErrTxRetriesExhausted))
}

func TestExtractStackLines(t *testing.T) {
	assert.Nil(t, errs.ExtractStackLines(nil, 3))

	lines := errs.ExtractStackLines(errs.New("boom"), 2)
	assert.LessOrEqual(t, len(lines), 2)
	assert.Contains(t, lines[0], "boom")
}
