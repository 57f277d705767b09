package router

import (
	"net/http"

	"ordermail/internal/common"
	"ordermail/internal/config"
	"ordermail/internal/domain/notification"
	"ordermail/internal/middleware"

	"github.com/gin-gonic/gin"
)

// New creates and configures the Gin router with all middleware and routes.
// The returned limiter is exposed so the caller can evict idle clients.
func New(
	cfg *config.Config,
	notificationHandler *notification.Handler,
) (*gin.Engine, *middleware.RateLimiter) {
	gin.SetMode(cfg.Server.Mode)

	r := gin.New()

	// Order matters: request ID before the access log.
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.AccessLog())
	r.Use(middleware.CORS(
		cfg.CORS.AllowedOrigins,
		cfg.CORS.AllowedMethods,
		cfg.CORS.AllowedHeaders,
	))

	rateLimiter := middleware.NewRateLimiter(
		cfg.RateLimit.RequestsPerSecond,
		cfg.RateLimit.Burst,
	)
	r.Use(rateLimiter.Middleware())

	r.GET("/health", healthCheck)
	r.NoRoute(func(c *gin.Context) {
		common.Error(c, http.StatusNotFound, "route not found: "+c.Request.Method+" "+c.Request.URL.Path)
	})

	protectedAPI := r.Group("/api/v1")
	protectedAPI.Use(middleware.Auth(cfg.Auth.APIKeys))
	{
		notificationHandler.RegisterRoutes(protectedAPI)
	}

	// The printer summary is triggered by an external scheduler with the cron key.
	scheduled := r.Group("/api/v1")
	scheduled.Use(middleware.CronOrAPIKey(cfg.Auth.CronKey, cfg.Auth.APIKeys))
	{
		notificationHandler.RegisterPrinterRoutes(scheduled)
	}

	return r, rateLimiter
}

// healthCheck handles GET /health
func healthCheck(c *gin.Context) {
	common.Success(c, http.StatusOK, gin.H{
		"status":  "ok",
		"service": "ordermail",
	})
}
