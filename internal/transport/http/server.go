// Package http provides the HTTP server for the query orchestrator.
package http

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/finsight/orchestrator/internal/auth"
	"github.com/finsight/orchestrator/internal/ratelimit"
	"github.com/finsight/orchestrator/internal/service"
	v1 "github.com/finsight/orchestrator/internal/transport/http/v1"
)

// NewServer creates and configures the HTTP server. Every /v1 route sits
// behind session verification and the per-user rate limit; /health does not.
func NewServer(svc *service.Service, verifier auth.Verifier, limiter ratelimit.Limiter) *echo.Echo {
	e := echo.New()
	e.HideBanner = true

	// Middleware
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	// Handlers
	handler := v1.NewHandler(svc)

	// Register Routes
	group := e.Group("/v1", v1.AuthMiddleware(verifier), v1.RateLimitMiddleware(limiter))
	handler.RegisterRoutes(group)

	return e
}
