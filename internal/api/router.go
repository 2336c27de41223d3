package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/liliang-cn/agriassist/internal/api/admin"
	"github.com/liliang-cn/agriassist/internal/api/assistant"
	"github.com/liliang-cn/agriassist/internal/api/middleware"
	"github.com/liliang-cn/agriassist/internal/logger"
	"go.uber.org/zap"
)

// RouterConfig holds configuration for the router
type RouterConfig struct {
	APIKey       string
	AllowOrigins []string
	MetricsPath  string
}

// Services are the collaborators the routes call into
type Services struct {
	Chat        assistant.ChatService
	Recommender assistant.Recommender
	Assessor    assistant.Assessor
	Sessions    assistant.SessionReader
	Admin       admin.Service
	// Metrics is served on MetricsPath when set
	Metrics http.Handler
}

// SetupRouter sets up the Gin router
func SetupRouter(svc Services, cfg RouterConfig, log *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.GinMiddleware(log))

	// CORS middleware
	r.Use(middleware.CORS(cfg.AllowOrigins))

	// Health check
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	if svc.Metrics != nil && cfg.MetricsPath != "" {
		r.GET(cfg.MetricsPath, gin.WrapH(svc.Metrics))
	}

	// Assistant API (public)
	assistantHandler := assistant.NewHandler(svc.Chat, svc.Recommender, svc.Assessor, svc.Sessions)
	assistantHandler.RegisterRoutes(r.Group("/api"))

	// Admin API (requires API key)
	adminHandler := admin.NewHandler(svc.Admin)
	adminGroup := r.Group("/api/admin")
	adminGroup.Use(middleware.Auth(cfg.APIKey))
	adminHandler.RegisterRoutes(adminGroup)

	return r
}
