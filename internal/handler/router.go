package handler

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"cinema-order-engine/internal/handler/api"
	"cinema-order-engine/internal/handler/middleware"
	"cinema-order-engine/internal/pkg/config"
	"cinema-order-engine/internal/pkg/metrics"
)

type route struct {
	Method  string
	Path    string
	Handler gin.HandlerFunc
	Mw      []gin.HandlerFunc
}

type RouterDeps struct {
	OrderHandler   *api.OrderHandler
	AuthMiddleware *middleware.AuthMiddleware
	RateLimiter    *middleware.RateLimiter
	ServerMetrics  *metrics.ServerMetrics
	Gatherer       prometheus.Gatherer
	Logger         *slog.Logger
}

func NewRouter(engine *gin.Engine, cfg config.Config, deps RouterDeps) {
	setupMiddleware(engine, cfg, deps)
	setupRoutes(engine, deps)
}

func setupMiddleware(engine *gin.Engine, cfg config.Config, deps RouterDeps) {
	// Recovery must be first (outermost) to catch panics from all other middleware
	engine.Use(middleware.CustomRecovery())
	engine.Use(middleware.NewCORSMiddleware(cfg.CORS))
	engine.Use(middleware.LoggingMiddleware(deps.Logger, cfg.Log))
	engine.Use(middleware.MetricsMiddleware(deps.ServerMetrics))
	engine.Use(middleware.ErrorHandler())
}

func setupRoutes(engine *gin.Engine, deps RouterDeps) {
	engine.GET("/health", healthCheck)

	if deps.Gatherer != nil {
		engine.GET("/metrics", gin.WrapH(metrics.Handler(deps.Gatherer)))
	}

	if gin.Mode() == gin.DebugMode {
		engine.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	apiGroup := engine.Group("/api")
	{
		orders := apiGroup.Group("/orders")
		orders.Use(deps.AuthMiddleware.RequireAuth())
		{
			addRoutes(orders, []route{
				{
					Method:  http.MethodPost,
					Path:    "",
					Handler: deps.OrderHandler.PlaceOrder,
					Mw:      []gin.HandlerFunc{deps.RateLimiter.Limit("orders")},
				},
			})
		}
	}
}

// @Summary Health check
// @Description Check if the service is healthy
// @Tags health
// @Produce json
// @Success 200 {object} map[string]string
// @Router /health [get]
func healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"message": "Service is healthy",
	})
}

func addRoutes(g *gin.RouterGroup, rs []route) {
	for _, r := range rs {
		h := r.Handler
		if len(r.Mw) > 0 {
			h = chainHandlers(append(r.Mw, r.Handler)...)
		}
		switch r.Method {
		case http.MethodGet:
			g.GET(r.Path, h)
		case http.MethodPost:
			g.POST(r.Path, h)
		case http.MethodPut:
			g.PUT(r.Path, h)
		case http.MethodPatch:
			g.PATCH(r.Path, h)
		case http.MethodDelete:
			g.DELETE(r.Path, h)
		default:
			g.Any(r.Path, h)
		}
	}
}

func chainHandlers(hs ...gin.HandlerFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		for _, h := range hs {
			h(c)
			if c.IsAborted() {
				return
			}
		}
	}
}
