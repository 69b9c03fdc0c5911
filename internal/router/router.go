// Package router registers the HTTP routes on the Echo instance.
package router

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/PI-PropertEase/CalendarService/internal/config"
	"github.com/PI-PropertEase/CalendarService/internal/handler"
	"github.com/PI-PropertEase/CalendarService/internal/metrics"
	"github.com/PI-PropertEase/CalendarService/internal/middleware"
)

// RegisterRoutes wires the public probes plus the token-protected calendar
// surface.  Redis-backed middleware is applied only when a client is
// available; a nil rdb leaves cache and rate limiting disabled.
func RegisterRoutes(e *echo.Echo, h *handler.EventHandler, mx *metrics.Metrics, jwtSecret string, rdb *redis.Client) {
	e.GET("/healthz", handler.Health)
	if mx != nil {
		e.GET("/metrics", echo.WrapHandler(mx.Handler()))
	}

	events := e.Group("/v1/events")
	events.Use(middleware.JWTAuth(jwtSecret))
	events.Use(middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb))

	// The cache sits on the listing routes only; mutations must always hit
	// the database.  Entries expire by TTL, so a listing may lag a mutation
	// by up to CACHE_TTL.
	cached := middleware.NewRedisCache(config.LoadCacheConfig(), rdb)
	events.GET("", h.ListEvents, cached)
	events.GET("/reservation", h.ListReservations, cached)
	events.GET("/management/types", h.ListManagementTypes, cached)
	events.GET("/management/:kind", h.ListManagementEvents, cached)

	events.POST("/management/:kind", h.CreateManagementEvent)
	events.PUT("/management/:kind/:id", h.UpdateManagementEvent)
	events.DELETE("/management/:kind/:id", h.DeleteManagementEvent)

	e.RouteNotFound("/*", func(c echo.Context) error {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "not found"})
	})
}
