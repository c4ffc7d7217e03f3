package v1

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finsight/orchestrator/internal/monitor"
)

func TestGetMonitorSnapshot(t *testing.T) {
	e := newTestRouter(t, 60)

	rec := doJSON(e, http.MethodPost, "/v1/query", "demo", `{"query":"top merchants last month"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(e, http.MethodGet, "/v1/monitor?range=5m", "demo", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var report monitor.Report
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.Equal(t, 1, report.RealTime.Requests)
	assert.NotEmpty(t, report.Trends)
	assert.NotEmpty(t, report.TopSlowOperations)
	assert.Greater(t, report.Resources.Goroutines, 0)
}

func TestGetMonitorInvalidRange(t *testing.T) {
	e := newTestRouter(t, 60)
	rec := doJSON(e, http.MethodGet, "/v1/monitor?range=bogus", "demo", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPostLoadTest(t *testing.T) {
	e := newTestRouter(t, 1000)

	rec := doJSON(e, http.MethodPost, "/v1/monitor/loadtest", "demo",
		`{"testName":"smoke","requests":10,"concurrency":2}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var result monitor.LoadTestResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, "smoke", result.TestName)
	assert.Equal(t, 10, result.TotalRequests)
	assert.Equal(t, 10, result.SuccessfulRequests)
	assert.Zero(t, result.FailedRequests)
	assert.Greater(t, result.Throughput, 0.0)
}

func TestPostLoadTestInvalidConfig(t *testing.T) {
	e := newTestRouter(t, 60)

	rec := doJSON(e, http.MethodPost, "/v1/monitor/loadtest", "demo",
		`{"testName":"bad","requests":0,"concurrency":4}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
