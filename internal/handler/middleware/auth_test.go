//go:build unit

package middleware_test

import (
	"net/http"
	"testing"
	"time"

	"cinema-order-engine/internal/handler/middleware"
	"cinema-order-engine/internal/pkg/config"
	"cinema-order-engine/internal/pkg/jwt"
	"cinema-order-engine/internal/usecase"
	"cinema-order-engine/tests/common/authtest"
	"cinema-order-engine/tests/common/httptest"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func authRouter(cfg config.JWTConfig) *gin.Engine {
	gin.SetMode(gin.TestMode)
	validator := usecase.NewTokenValidator(jwt.NewService(cfg.Secret, time.Hour))
	auth := middleware.NewAuthMiddleware(validator)

	r := gin.New()
	r.GET("/me", auth.RequireAuth(), func(c *gin.Context) {
		name, _ := middleware.GetUserName(c)
		c.JSON(http.StatusOK, gin.H{"userName": name})
	})
	return r
}

func TestRequireAuth(t *testing.T) {
	cfg := config.NewTestConfig().JWT
	router := authRouter(cfg)
	tokens := authtest.NewJWTHelper(cfg)

	t.Run("valid token sets the payer", func(t *testing.T) {
		rec := httptest.PerformRequest(t, router, http.MethodGet, "/me", nil, tokens.GenerateToken(t, "alice"))

		var body map[string]string
		httptest.AssertSuccessResponse(t, rec, http.StatusOK, &body)
		assert.Equal(t, "alice", body["userName"])
	})

	t.Run("missing token", func(t *testing.T) {
		rec := httptest.PerformRequest(t, router, http.MethodGet, "/me", nil, "")
		httptest.AssertErrorResponse(t, rec, http.StatusUnauthorized, "Access token required")
	})

	t.Run("expired token", func(t *testing.T) {
		rec := httptest.PerformRequest(t, router, http.MethodGet, "/me", nil, tokens.CreateExpiredToken(t, "alice"))
		httptest.AssertErrorResponse(t, rec, http.StatusUnauthorized, "Invalid or expired token")
	})

	t.Run("token signed with another secret", func(t *testing.T) {
		other := authtest.NewJWTHelper(config.JWTConfig{Secret: "other-secret", Duration: "1h"})
		rec := httptest.PerformRequest(t, router, http.MethodGet, "/me", nil, other.GenerateToken(t, "alice"))
		httptest.AssertErrorResponse(t, rec, http.StatusUnauthorized, "Invalid or expired token")
	})
}
