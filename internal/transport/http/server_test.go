package http

import (
	"context"
	"encoding/json"
	nethttp "net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finsight/orchestrator/internal/auth"
	"github.com/finsight/orchestrator/internal/cache"
	"github.com/finsight/orchestrator/internal/config"
	"github.com/finsight/orchestrator/internal/engine"
	"github.com/finsight/orchestrator/internal/functions"
	"github.com/finsight/orchestrator/internal/monitor"
	"github.com/finsight/orchestrator/internal/ratelimit"
	"github.com/finsight/orchestrator/internal/repository"
	"github.com/finsight/orchestrator/internal/resolver"
	"github.com/finsight/orchestrator/internal/service"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	store, err := repository.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	require.NoError(t, store.SeedDemoData(context.Background()))

	catalog := functions.NewBuiltinCatalog(store)
	cacheStore, err := cache.NewStore(cache.DriverMemory)
	require.NoError(t, err)
	t.Cleanup(func() { cacheStore.Close() })

	limiter, err := ratelimit.NewLimiter(ratelimit.DriverMemory, ratelimit.WithPerMinute(60))
	require.NoError(t, err)
	t.Cleanup(func() { limiter.Close() })

	cfg := &config.Config{PipelineTimeout: 10 * time.Second, ExecTimeout: 5 * time.Second}
	svc := service.New(
		store,
		resolver.NewKeywordResolver(catalog),
		engine.New(catalog, nil, cfg.ExecTimeout),
		cacheStore,
		monitor.New(15*time.Minute, 1000),
		cfg,
	)

	srv := httptest.NewServer(NewServer(svc, auth.StaticVerifier{}, limiter))
	t.Cleanup(srv.Close)
	return srv
}

func TestHealthEndpoint(t *testing.T) {
	srv := newTestServer(t)

	resp, err := nethttp.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, nethttp.StatusOK, resp.StatusCode)
	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ok", body["status"])
}

func TestQueryThroughRealServer(t *testing.T) {
	srv := newTestServer(t)

	req, err := nethttp.NewRequest(nethttp.MethodPost, srv.URL+"/v1/query",
		strings.NewReader(`{"query":"How much did I spend on food last month?"}`))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer demo")

	resp, err := nethttp.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, nethttp.StatusOK, resp.StatusCode)
	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Contains(t, body["message"], "food")
}

func TestV1RequiresAuthThroughRealServer(t *testing.T) {
	srv := newTestServer(t)

	resp, err := nethttp.Post(srv.URL+"/v1/query", "application/json",
		strings.NewReader(`{"query":"anything"}`))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, nethttp.StatusUnauthorized, resp.StatusCode)
}
