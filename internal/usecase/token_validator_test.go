//go:build unit

package usecase_test

import (
	"testing"
	"time"

	"cinema-order-engine/internal/pkg/jwt"
	"cinema-order-engine/internal/usecase"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenValidator(t *testing.T) {
	svc := jwt.NewService("secret", time.Hour)
	validator := usecase.NewTokenValidator(svc)

	token, err := svc.GenerateToken("budi", "Budi")
	require.NoError(t, err)

	name, err := validator.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "budi", name)

	_, err = validator.ValidateToken("broken")
	assert.ErrorIs(t, err, jwt.ErrInvalidToken)
}
