package v1

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/finsight/orchestrator/internal/domain"
	"github.com/finsight/orchestrator/internal/stream"
)

const maxQueryLength = 2000

// QueryRequest is the body of POST /v1/query.
type QueryRequest struct {
	Query     string                    `json:"query"`
	Streaming bool                      `json:"streaming"`
	Context   []domain.ConversationTurn `json:"context,omitempty"`
	Filters   map[string]string         `json:"filters,omitempty"`
}

// PostQuery runs one natural-language query.
// POST /v1/query
func (h *Handler) PostQuery(c echo.Context) error {
	ctx := c.Request().Context()

	var req QueryRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorJSON(domain.ErrCodeInternal, "invalid request body"))
	}
	if req.Query == "" {
		return c.JSON(http.StatusBadRequest, errorJSON(domain.ErrCodeInternal, "query is required"))
	}
	if len(req.Query) > maxQueryLength {
		return c.JSON(http.StatusBadRequest, errorJSON(domain.ErrCodeInternal, "query is too long"))
	}

	domainReq := &domain.QueryRequest{
		UserID:    userID(c),
		Query:     req.Query,
		Streaming: req.Streaming,
		Context:   req.Context,
		Filters:   req.Filters,
	}

	if req.Streaming {
		return h.streamQuery(c, domainReq)
	}

	collector := stream.NewCollector()
	resp, err := h.service.HandleQuery(ctx, domainReq, collector)
	if err != nil {
		return queryError(c, err)
	}
	return c.JSON(http.StatusOK, resp)
}

// streamQuery delivers progress as newline-delimited JSON. Once the stream
// is open every failure travels as a terminal error event, not a status code.
func (h *Handler) streamQuery(c echo.Context, req *domain.QueryRequest) error {
	res := c.Response()
	res.Header().Set(echo.HeaderContentType, "application/x-ndjson")
	res.Header().Set("Cache-Control", "no-cache")
	res.WriteHeader(http.StatusOK)

	encoder := stream.NewEncoder(res)
	_, err := h.service.HandleQuery(c.Request().Context(), req, encoder)
	if err != nil && errors.Is(err, domain.ErrStreamTransport) {
		c.Logger().Warnf("streaming consumer disconnected: %v", err)
	}
	return nil
}

// DeleteQuery drops every cached response for the caller.
// DELETE /v1/query
func (h *Handler) DeleteQuery(c echo.Context) error {
	ctx := c.Request().Context()

	if err := h.service.ClearCache(ctx, userID(c)); err != nil {
		return c.JSON(http.StatusInternalServerError, errorJSON(domain.ErrCodeInternal, err.Error()))
	}
	return c.JSON(http.StatusOK, map[string]any{"ok": true})
}

// GetQueryEvents returns the persisted audit trail for one query.
// GET /v1/query/:query_id/events
func (h *Handler) GetQueryEvents(c echo.Context) error {
	ctx := c.Request().Context()
	queryID := c.Param("query_id")

	run, err := h.service.GetQueryRun(ctx, queryID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, errorJSON(domain.ErrCodeInternal, err.Error()))
	}
	if run == nil || run.UserID != userID(c) {
		return c.JSON(http.StatusNotFound, errorJSON(domain.ErrCodeInternal, "query not found"))
	}

	afterTs := int64(0)
	if v := c.QueryParam("after_ts"); v != "" {
		parsed, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return c.JSON(http.StatusBadRequest, errorJSON(domain.ErrCodeInternal, "invalid after_ts"))
		}
		afterTs = parsed
	}
	limit := 100
	if v := c.QueryParam("limit"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed <= 0 || parsed > 1000 {
			return c.JSON(http.StatusBadRequest, errorJSON(domain.ErrCodeInternal, "invalid limit"))
		}
		limit = parsed
	}

	events, err := h.service.GetQueryEvents(ctx, queryID, afterTs, limit)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, errorJSON(domain.ErrCodeInternal, err.Error()))
	}
	return c.JSON(http.StatusOK, map[string]any{
		"query_id": queryID,
		"status":   run.Status,
		"events":   events,
	})
}

// queryError maps pipeline failures to status codes for the JSON path.
// Unresolvable queries never reach here; they complete with a clarifying
// message.
func queryError(c echo.Context, err error) error {
	body := errorJSON(domain.CodeForError(err), err.Error())
	if domain.CodeForError(err) == domain.ErrCodePipelineTimeout {
		return c.JSON(http.StatusRequestTimeout, body)
	}
	return c.JSON(http.StatusInternalServerError, body)
}
