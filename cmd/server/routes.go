package main

import (
	"github.com/gin-gonic/gin"
	"github.com/studymate/backend/internal/handlers"
	"github.com/studymate/backend/internal/middleware"
	"github.com/studymate/backend/internal/models"
	"github.com/studymate/backend/pkg/logger"
)

// registerRoutes sets up all HTTP routes on the given Gin engine.
func registerRoutes(r *gin.Engine, svc *appServices) {
	// Middleware
	r.Use(logger.GinLogger(), logger.GinRecovery())
	r.RedirectTrailingSlash = false
	r.RedirectFixedPath = false
	r.Use(middleware.CORS())

	// Rate limiter for the completion routes, which cost money upstream
	answerLimiter := middleware.NewRateLimiter(10, 20)

	// Health and metrics
	healthHandler := handlers.NewHealthHandler()
	r.GET("/health", healthHandler.CheckHealth)
	r.GET("/metrics", handlers.Metrics)

	// API routes
	api := r.Group("/api")
	{
		// Answers (rate limited)
		answers := api.Group("/answers", answerLimiter.Middleware())
		{
			answers.POST("", svc.answerHandler.Generate)
			answers.POST("/analyze", svc.answerHandler.Analyze)
		}

		// Usage statistics
		api.GET("/usage/daily", svc.usageHandler.GetDaily)
		api.GET("/usage/monthly", svc.usageHandler.GetMonthly)
		api.GET("/usage/summary", svc.usageHandler.GetSummary)

		// Runtime settings
		settingsHandler := handlers.NewSettingsHandler(models.GetDB())
		api.GET("/settings", settingsHandler.List)
		api.PUT("/settings/:key", settingsHandler.Update)
	}
}
