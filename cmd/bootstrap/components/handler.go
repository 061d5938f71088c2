package components

import (
	"log/slog"

	"cinema-order-engine/internal/handler"
	"cinema-order-engine/internal/handler/api"
	"cinema-order-engine/internal/handler/middleware"
	"cinema-order-engine/internal/pkg/config"
	"cinema-order-engine/internal/pkg/metrics"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
)

var HandlerModule = fx.Module("handler",
	fx.Provide(
		api.NewOrderHandler,
		middleware.NewAuthMiddleware,
		NewRateLimiter,
	),
	fx.Invoke(NewRouter),
)

type RouterParams struct {
	fx.In

	Engine         *gin.Engine
	Config         config.Config
	OrderHandler   *api.OrderHandler
	AuthMiddleware *middleware.AuthMiddleware
	RateLimiter    *middleware.RateLimiter
	ServerMetrics  *metrics.ServerMetrics
	Gatherer       prometheus.Gatherer
	Logger         *slog.Logger
}

func NewRouter(p RouterParams) {
	handler.NewRouter(p.Engine, p.Config, handler.RouterDeps{
		OrderHandler:   p.OrderHandler,
		AuthMiddleware: p.AuthMiddleware,
		RateLimiter:    p.RateLimiter,
		ServerMetrics:  p.ServerMetrics,
		Gatherer:       p.Gatherer,
		Logger:         p.Logger,
	})
}

func NewRateLimiter(rdb redis.Scripter, cfg config.Config, logger *slog.Logger) *middleware.RateLimiter {
	return middleware.NewRateLimiter(rdb, cfg.RateLimit, logger)
}
