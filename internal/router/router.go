package router

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/stemsi/handgame-backend/internal/config"
	"github.com/stemsi/handgame-backend/internal/handler"
	"github.com/stemsi/handgame-backend/internal/middleware"
	"github.com/stemsi/handgame-backend/internal/response"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Session *handler.SessionHandler
	Word    *handler.WordHandler
	Result  *handler.ResultHandler
	WS      *handler.WSHandler
	System  *handler.SystemHandler
	// Metrics serves the Prometheus registry.
	Metrics http.Handler
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
func SetupRouter(handlers *Handlers, cfg *config.Config) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	router := gin.Default()

	// ─── CORS ──────────────────────────────────────────────────────────
	// If AllowedOrigins is set in config, restrict to that list;
	// otherwise allow all (*) so dev works without extra config.
	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID", "Retry-After"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	router.Use(response.RequestIDMiddleware())

	// /metrics negotiates its own gzip encoding.
	router.Use(middleware.BrotliWithConfig(middleware.BrotliConfig{
		Quality:   middleware.DefaultBrotliConfig.Quality,
		MinLength: middleware.DefaultBrotliConfig.MinLength,
		SkipPaths: []string{"/metrics"},
	}))

	router.GET("/health", middleware.NoStore(), handlers.System.Health)
	if handlers.Metrics != nil {
		router.GET("/metrics", gin.WrapH(handlers.Metrics))
	}

	createLimiter := middleware.NewRateLimiter(cfg.SessionRateLimit, time.Minute)

	api := router.Group("/api/v1")
	{
		// ─── Sessions ──────────────────────────────────────────────────
		sessions := api.Group("/sessions")
		sessions.Use(middleware.NoStore())
		{
			sessions.POST("", createLimiter.Middleware(), handlers.Session.Create)
			sessions.GET("/:session_id", handlers.Session.Get)
			sessions.POST("/:session_id/restart", handlers.Session.Restart)
			sessions.DELETE("/:session_id", handlers.Session.Quit)
		}

		// Reference videos rarely change; let browsers keep them for an hour.
		api.GET("/words/video", middleware.CacheControl(3600), handlers.Word.Video)

		api.GET("/results", handlers.Result.List)
		api.GET("/system/metrics", handlers.System.SystemMetricsSSE)
	}

	ws := router.Group("/ws/v1")
	{
		ws.GET("/sessions/:session_id/stream", handlers.WS.SessionStream)
	}

	return router
}
