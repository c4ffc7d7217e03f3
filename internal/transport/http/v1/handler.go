// Package v1 implements the public query API.
package v1

import (
	"github.com/labstack/echo/v4"

	"github.com/finsight/orchestrator/internal/domain"
	"github.com/finsight/orchestrator/internal/service"
)

// Handler serves the v1 API.
type Handler struct {
	service *service.Service
}

// NewHandler creates a new v1 handler.
func NewHandler(svc *service.Service) *Handler {
	return &Handler{service: svc}
}

// RegisterRoutes registers the v1 routes on g.
func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.POST("/query", h.PostQuery)
	g.DELETE("/query", h.DeleteQuery)
	g.GET("/query/:query_id/events", h.GetQueryEvents)
	g.GET("/monitor", h.GetMonitor)
	g.POST("/monitor/loadtest", h.PostLoadTest)
}

// errorJSON is the body of every non-2xx response.
func errorJSON(code domain.ErrorCode, message string) map[string]*domain.ErrorBody {
	return map[string]*domain.ErrorBody{
		"error": {Code: code, Message: message},
	}
}

// userID returns the verified caller set by the auth middleware.
func userID(c echo.Context) string {
	id, _ := c.Get(ContextKeyUserID).(string)
	return id
}
