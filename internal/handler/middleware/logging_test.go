//go:build unit

package middleware_test

import (
	"bufio"
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"testing"

	"cinema-order-engine/internal/handler/middleware"
	"cinema-order-engine/internal/pkg/config"
	"cinema-order-engine/tests/common/httptest"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loggedRouter(buf *bytes.Buffer, handler gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	logger := slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	r := gin.New()
	r.Use(middleware.LoggingMiddleware(logger, config.LogConfig{TimeZone: "UTC"}))
	r.POST("/orders", func(c *gin.Context) {
		middleware.SetUserName(c, "alice")
		c.Next()
	}, handler)
	return r
}

// completedLine returns the "Request completed" entry.
func completedLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	sc := bufio.NewScanner(buf)
	for sc.Scan() {
		var entry map[string]any
		require.NoError(t, json.Unmarshal(sc.Bytes(), &entry))
		if entry["msg"] == "Request completed" {
			return entry
		}
	}
	t.Fatal("no completed request line logged")
	return nil
}

func TestLoggingMiddleware_PlacedOrder(t *testing.T) {
	var buf bytes.Buffer
	router := loggedRouter(&buf, func(c *gin.Context) {
		middleware.SetOrderOutcome(c, 42, "placed")
		c.Status(http.StatusCreated)
	})

	rec := httptest.PerformRequestWithHeaders(t, router, http.MethodPost, "/orders", nil, "",
		map[string]string{"Idempotency-Key": " 3f0c2a9e-6f53-4c1e-9a53-2d3d7c1f0b11 "})

	require.Equal(t, http.StatusCreated, rec.Code)
	entry := completedLine(t, &buf)
	assert.Equal(t, "INFO", entry["level"])
	assert.Equal(t, "3f0c2a9e-6f53-4c1e-9a53-2d3d7c1f0b11", entry["idempotency_key"])
	assert.Equal(t, "alice", entry["user_name"])
	assert.Equal(t, float64(42), entry["order_id"])
	assert.Equal(t, "placed", entry["order_outcome"])
	assert.Equal(t, float64(http.StatusCreated), entry["status_code"])
	assert.Equal(t, rec.Header().Get("X-Request-ID"), entry["request_id"])
}

func TestLoggingMiddleware_LevelFollowsStatus(t *testing.T) {
	testCases := []struct {
		name      string
		status    int
		wantLevel string
	}{
		{name: "rejection is a warning", status: http.StatusConflict, wantLevel: "WARN"},
		{name: "server fault is an error", status: http.StatusServiceUnavailable, wantLevel: "ERROR"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var buf bytes.Buffer
			router := loggedRouter(&buf, func(c *gin.Context) {
				middleware.SetOrderOutcome(c, 0, "seat_conflict")
				c.Status(tc.status)
			})

			httptest.PerformRequest(t, router, http.MethodPost, "/orders", nil, "")

			entry := completedLine(t, &buf)
			assert.Equal(t, tc.wantLevel, entry["level"])
			assert.Equal(t, "seat_conflict", entry["order_outcome"])
			assert.NotContains(t, entry, "order_id")
			assert.NotContains(t, entry, "idempotency_key")
		})
	}
}
