package main

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/wanderwise/wanderwise/auth"
	"github.com/wanderwise/wanderwise/config"
	"github.com/wanderwise/wanderwise/logger"
	"github.com/wanderwise/wanderwise/metrics"
)

func SetupRouter(cfg *config.Config, handler *FlightHandler, log zerolog.Logger, m *metrics.Metrics, gatherer prometheus.Gatherer) *gin.Engine {
	r := gin.New()

	// Add middleware
	r.Use(gin.Recovery())
	r.Use(logger.GinMiddleware(log))
	r.Use(m.GinMiddleware())
	r.Use(CORSMiddleware())

	// Unauthenticated endpoints
	r.GET("/", handler.Index)
	r.GET("/health", handler.HealthCheck)
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	// API routes
	api := r.Group("/api/v1")
	if cfg.JWTSecret != "" {
		api.Use(AuthMiddleware(auth.NewJWTService(cfg.JWTSecret)))
	} else {
		log.Warn().Msg("JWT_SECRET not set, API routes are unauthenticated")
	}

	api.POST("/flights/search", handler.SearchFlights)
	api.POST("/trips", handler.PlanTrip)
	api.GET("/progress/:requestId/stream", handler.StreamProgress)

	return r
}
