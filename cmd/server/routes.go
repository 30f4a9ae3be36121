package main

import (
	"github.com/gin-gonic/gin"
	"github.com/huangang/codecritic/internal/handlers"
	"github.com/huangang/codecritic/internal/middleware"
	"github.com/huangang/codecritic/pkg/logger"
)

// registerRoutes sets up all HTTP routes on the given Gin engine.
func registerRoutes(r *gin.Engine, svc *appServices) {
	r.Use(logger.GinLogger(), logger.GinRecovery())
	r.Use(middleware.CORS(svc.corsOrigins))

	r.GET("/", handlers.Root)
	r.GET("/metrics", handlers.Metrics(svc.registry))

	api := r.Group("/api", svc.dailyLimiter.Middleware())
	{
		withSlash(api, "GET", "/health", svc.healthHandler.CheckHealth)
		api.GET("/events/reviews", svc.sseHandler.StreamReviewEvents)

		protected := api.Group("", svc.httpMetrics.Handler(), middleware.TokenRequired(svc.auth), middleware.AuditLog())
		{
			withSlash(protected, "POST", "/reviews", svc.submitLimiter.Middleware(), svc.reviewHandler.Submit)
			withSlash(protected, "GET", "/reviews", svc.reviewHandler.List)
			protected.GET("/reviews/:id", svc.reviewHandler.GetByID)
			withSlash(protected, "GET", "/stats", svc.statsHandler.GetStats)
			withSlash(protected, "GET", "/languages", svc.reviewHandler.Languages)
		}
	}
}

// withSlash registers path both bare and with a trailing slash. Both forms answer directly,
// POST included.
func withSlash(g *gin.RouterGroup, method, path string, h ...gin.HandlerFunc) {
	g.Handle(method, path, h...)
	g.Handle(method, path+"/", h...)
}
