package api

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/yourusername/medialink-go/api/handlers"
	"github.com/yourusername/medialink-go/api/middleware"
	"github.com/yourusername/medialink-go/internal/app"
	"github.com/yourusername/medialink-go/internal/domain"
)

// SetupRouter sets up the local status API. It is observational only: the
// browser extension remains the sole command surface.
func SetupRouter(
	orch *app.Orchestrator,
	history domain.HistoryRepository,
	hub *handlers.ProgressHub,
	log *zap.Logger,
) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()

	// Middleware
	router.Use(middleware.Logger(log))
	router.Use(middleware.Recovery(log))

	// Health endpoint
	statusHandler := handlers.NewStatusHandler(orch, history, log)
	router.GET("/health", statusHandler.Health)

	// API v1 routes
	v1 := router.Group("/api/v1")
	{
		v1.GET("/sessions", statusHandler.ListSessions)
		v1.GET("/history", statusHandler.ListHistory)
		v1.GET("/history/stats", statusHandler.HistoryStats)
	}

	// Live progress stream
	if hub != nil {
		router.GET("/ws/progress", hub.HandleWebSocket)
	}

	return router
}
