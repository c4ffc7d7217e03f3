package v1

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/finsight/orchestrator/internal/domain"
	"github.com/finsight/orchestrator/internal/monitor"
	"github.com/finsight/orchestrator/internal/stream"
)

// GetMonitor returns the performance snapshot.
// GET /v1/monitor?range=5m
func (h *Handler) GetMonitor(c echo.Context) error {
	within := time.Duration(0)
	if v := c.QueryParam("range"); v != "" {
		parsed, err := time.ParseDuration(v)
		if err != nil || parsed <= 0 {
			return c.JSON(http.StatusBadRequest, errorJSON(domain.ErrCodeInternal, "invalid range"))
		}
		within = parsed
	}
	return c.JSON(http.StatusOK, h.service.Monitor().Snapshot(within))
}

// LoadTestRequest is the body of POST /v1/monitor/loadtest.
type LoadTestRequest struct {
	monitor.LoadTestConfig
	// Query overrides the canned query fired at the pipeline.
	Query string `json:"query,omitempty"`
}

const defaultLoadTestQuery = "How much did I spend last month?"

// PostLoadTest fires synthetic queries through the full pipeline and reports
// latency and throughput. The run executes as the calling user.
// POST /v1/monitor/loadtest
func (h *Handler) PostLoadTest(c echo.Context) error {
	ctx := c.Request().Context()

	var req LoadTestRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorJSON(domain.ErrCodeInternal, "invalid request body"))
	}
	query := req.Query
	if query == "" {
		query = defaultLoadTestQuery
	}
	uid := userID(c)

	result, err := monitor.RunLoadTest(ctx, req.LoadTestConfig, func(ctx context.Context) error {
		_, err := h.service.HandleQuery(ctx, &domain.QueryRequest{
			UserID: uid,
			Query:  query,
		}, stream.NewCollector())
		return err
	})
	if err != nil {
		if errors.Is(err, monitor.ErrInvalidLoadTest) {
			return c.JSON(http.StatusBadRequest, errorJSON(domain.ErrCodeInternal, err.Error()))
		}
		return c.JSON(http.StatusInternalServerError, errorJSON(domain.ErrCodeInternal, err.Error()))
	}
	return c.JSON(http.StatusOK, result)
}
