package service

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finsight/orchestrator/internal/cache"
	"github.com/finsight/orchestrator/internal/config"
	"github.com/finsight/orchestrator/internal/domain"
	"github.com/finsight/orchestrator/internal/engine"
	"github.com/finsight/orchestrator/internal/functions"
	"github.com/finsight/orchestrator/internal/monitor"
	"github.com/finsight/orchestrator/internal/repository"
	"github.com/finsight/orchestrator/internal/resolver"
	"github.com/finsight/orchestrator/internal/stream"
	"github.com/finsight/orchestrator/internal/synthesizer"
)

// countingInvoker wraps the catalog, counting executions and optionally
// slowing them down so concurrent requests overlap.
type countingInvoker struct {
	catalog *functions.Catalog
	delay   time.Duration
	calls   int64
}

func (c *countingInvoker) Execute(ctx context.Context, userID, name string, args map[string]any) (json.RawMessage, error) {
	atomic.AddInt64(&c.calls, 1)
	if c.delay > 0 {
		select {
		case <-time.After(c.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return c.catalog.Execute(ctx, userID, name, args)
}

func (c *countingInvoker) count() int64 {
	return atomic.LoadInt64(&c.calls)
}

func newTestService(t *testing.T, delay, execTimeout time.Duration) (*Service, *countingInvoker) {
	t.Helper()

	store, err := repository.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	require.NoError(t, store.SeedDemoData(context.Background()))

	catalog := functions.NewBuiltinCatalog(store)
	invoker := &countingInvoker{catalog: catalog, delay: delay}

	cacheStore, err := cache.NewStore(cache.DriverMemory, cache.WithTTL(time.Minute))
	require.NoError(t, err)
	t.Cleanup(func() { cacheStore.Close() })

	cfg := &config.Config{
		PipelineTimeout: 10 * time.Second,
		ExecTimeout:     execTimeout,
	}
	svc := New(
		store,
		resolver.NewKeywordResolver(catalog),
		engine.New(invoker, nil, execTimeout),
		cacheStore,
		monitor.New(15*time.Minute, 1000),
		cfg,
	)
	return svc, invoker
}

// unresolvableResolver rejects every query, as the LLM resolver does when
// all model tool calls fail validation.
type unresolvableResolver struct{}

func (unresolvableResolver) Resolve(ctx context.Context, req *domain.QueryRequest) ([]domain.FunctionInvocation, error) {
	return nil, domain.ErrUnresolvableQuery
}

func newTestServiceWithResolver(t *testing.T, res resolver.Resolver) *Service {
	t.Helper()

	store, err := repository.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	require.NoError(t, store.SeedDemoData(context.Background()))

	catalog := functions.NewBuiltinCatalog(store)
	cacheStore, err := cache.NewStore(cache.DriverMemory, cache.WithTTL(time.Minute))
	require.NoError(t, err)
	t.Cleanup(func() { cacheStore.Close() })

	cfg := &config.Config{PipelineTimeout: 10 * time.Second, ExecTimeout: 5 * time.Second}
	return New(
		store,
		res,
		engine.New(catalog, nil, cfg.ExecTimeout),
		cacheStore,
		monitor.New(15*time.Minute, 1000),
		cfg,
	)
}

func demoRequest(query string) *domain.QueryRequest {
	return &domain.QueryRequest{UserID: "demo", Query: query}
}

func TestHandleQueryEndToEnd(t *testing.T) {
	svc, invoker := newTestService(t, 0, 5*time.Second)

	col := stream.NewCollector()
	resp, err := svc.HandleQuery(context.Background(), demoRequest("How much did I spend on food last month?"), col)
	require.NoError(t, err)

	assert.False(t, resp.Cached)
	assert.Contains(t, resp.Message, "food")
	assert.Contains(t, resp.Data, "spending_by_category")
	assert.EqualValues(t, 1, invoker.count())

	events := col.Events()
	require.NotEmpty(t, events)
	assert.Equal(t, domain.StreamEventStart, events[0].Type)
	assert.Equal(t, domain.StreamEventComplete, events[len(events)-1].Type)
	assert.Equal(t, resp.Message, col.Message())
}

func TestStreamingAndNonStreamingMatch(t *testing.T) {
	query := "What were my top merchants last month?"

	svcA, _ := newTestService(t, 0, 5*time.Second)
	col := stream.NewCollector()
	direct, err := svcA.HandleQuery(context.Background(), demoRequest(query), col)
	require.NoError(t, err)

	svcB, _ := newTestService(t, 0, 5*time.Second)
	var buf bytes.Buffer
	streamed, err := svcB.HandleQuery(context.Background(), demoRequest(query), stream.NewEncoder(&buf))
	require.NoError(t, err)

	assert.Equal(t, direct.Message, streamed.Message)
	assert.Equal(t, direct.Insights, streamed.Insights)
	assert.Equal(t, direct.Data, streamed.Data)

	// Deltas on the wire must reassemble to exactly the response message.
	var deltas strings.Builder
	scanner := bufio.NewScanner(&buf)
	for scanner.Scan() {
		var ev domain.StreamEvent
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &ev))
		if ev.Type == domain.StreamEventContentDelta {
			deltas.WriteString(ev.Delta)
		}
	}
	require.NoError(t, scanner.Err())
	assert.Equal(t, streamed.Message, deltas.String())
}

func TestConcurrentIdenticalQueriesComputeOnce(t *testing.T) {
	svc, invoker := newTestService(t, 200*time.Millisecond, 5*time.Second)

	const workers = 6
	responses := make([]*domain.QueryResponse, workers)
	errs := make([]error, workers)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			responses[i], errs[i] = svc.HandleQuery(context.Background(),
				demoRequest("How much did I spend on food last month?"), stream.NewCollector())
		}(i)
	}
	wg.Wait()

	assert.EqualValues(t, 1, invoker.count(), "identical in-flight queries must share one computation")

	var owners, attached int
	for i := 0; i < workers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, responses[0].Message, responses[i].Message)
		if responses[i].Cached {
			attached++
		} else {
			owners++
		}
	}
	assert.Equal(t, 1, owners)
	assert.Equal(t, workers-1, attached)
}

func TestCacheHitOnRepeat(t *testing.T) {
	svc, invoker := newTestService(t, 0, 5*time.Second)
	ctx := context.Background()

	first, err := svc.HandleQuery(ctx, demoRequest("How much did I spend on food last month?"), stream.NewCollector())
	require.NoError(t, err)
	assert.False(t, first.Cached)

	// Same question, trivially different phrasing.
	second, err := svc.HandleQuery(ctx, demoRequest("how much did I spend on FOOD last month"), stream.NewCollector())
	require.NoError(t, err)
	assert.True(t, second.Cached)
	assert.Equal(t, first.Message, second.Message)
	assert.EqualValues(t, 1, invoker.count())
}

func TestFiltersSplitCacheEntries(t *testing.T) {
	svc, invoker := newTestService(t, 0, 5*time.Second)
	ctx := context.Background()

	reqA := demoRequest("How much did I spend last month?")
	reqA.Filters = map[string]string{"currency": "USD"}
	_, err := svc.HandleQuery(ctx, reqA, stream.NewCollector())
	require.NoError(t, err)

	reqB := demoRequest("How much did I spend last month?")
	reqB.Filters = map[string]string{"currency": "EUR"}
	resp, err := svc.HandleQuery(ctx, reqB, stream.NewCollector())
	require.NoError(t, err)

	assert.False(t, resp.Cached)
	assert.EqualValues(t, 2, invoker.count())
}

func TestClearCacheForcesRecompute(t *testing.T) {
	svc, invoker := newTestService(t, 0, 5*time.Second)
	ctx := context.Background()

	_, err := svc.HandleQuery(ctx, demoRequest("top merchants last month"), stream.NewCollector())
	require.NoError(t, err)
	require.NoError(t, svc.ClearCache(ctx, "demo"))

	resp, err := svc.HandleQuery(ctx, demoRequest("top merchants last month"), stream.NewCollector())
	require.NoError(t, err)
	assert.False(t, resp.Cached)
	assert.EqualValues(t, 2, invoker.count())
}

func TestZeroInvocationsClarifies(t *testing.T) {
	svc, invoker := newTestService(t, 0, 5*time.Second)

	col := stream.NewCollector()
	resp, err := svc.HandleQuery(context.Background(), demoRequest("hello there"), col)
	require.NoError(t, err)

	assert.Equal(t, synthesizer.ClarifyingMessage, resp.Message)
	assert.Zero(t, invoker.count())
	for _, ev := range col.Events() {
		assert.NotEqual(t, domain.StreamEventFunctionCalls, ev.Type)
	}
}

func TestUnresolvableQueryCompletesWithClarification(t *testing.T) {
	svc := newTestServiceWithResolver(t, unresolvableResolver{})

	col := stream.NewCollector()
	resp, err := svc.HandleQuery(context.Background(), demoRequest("what is the meaning of life?"), col)
	require.NoError(t, err, "an unresolvable query is a successful run, not a failure")

	assert.Equal(t, synthesizer.ClarifyingMessage, resp.Message)
	assert.False(t, resp.Cached)

	events := col.Events()
	require.NotEmpty(t, events)
	assert.Equal(t, domain.StreamEventComplete, events[len(events)-1].Type,
		"the stream must close with complete, never a terminal error event")
	for _, ev := range events {
		assert.NotEqual(t, domain.StreamEventError, ev.Type)
	}

	queryID := events[0].QueryID
	run, err := svc.GetQueryRun(context.Background(), queryID)
	require.NoError(t, err)
	require.NotNil(t, run)
	assert.Equal(t, domain.QueryStatusDone, run.Status)
}

func TestEngineTimeoutNotCached(t *testing.T) {
	svc, invoker := newTestService(t, 300*time.Millisecond, 50*time.Millisecond)
	ctx := context.Background()

	first, err := svc.HandleQuery(ctx, demoRequest("How much did I spend on food last month?"), stream.NewCollector())
	require.NoError(t, err)
	assert.Contains(t, first.Message, "unavailable")

	second, err := svc.HandleQuery(ctx, demoRequest("How much did I spend on food last month?"), stream.NewCollector())
	require.NoError(t, err)
	assert.False(t, second.Cached, "a timed-out run must never satisfy later queries")
	assert.EqualValues(t, 2, invoker.count())
}

func TestAuditTrail(t *testing.T) {
	svc, _ := newTestService(t, 0, 5*time.Second)
	ctx := context.Background()

	col := stream.NewCollector()
	_, err := svc.HandleQuery(ctx, demoRequest("any anomalies last month?"), col)
	require.NoError(t, err)

	queryID := col.Events()[0].QueryID
	require.NotEmpty(t, queryID)

	run, err := svc.GetQueryRun(ctx, queryID)
	require.NoError(t, err)
	require.NotNil(t, run)
	assert.Equal(t, domain.QueryStatusDone, run.Status)
	assert.False(t, run.CacheHit)

	events, err := svc.GetQueryEvents(ctx, queryID, 0, 100)
	require.NoError(t, err)
	types := make(map[domain.EventType]bool)
	for _, ev := range events {
		types[ev.Type] = true
	}
	assert.True(t, types[domain.EventTypeQueryReceived])
	assert.True(t, types[domain.EventTypeFunctionsResolved])
	assert.True(t, types[domain.EventTypeFunctionResult])
	assert.True(t, types[domain.EventTypeQueryCompleted])
}

func TestConversationHistoryPersisted(t *testing.T) {
	svc, _ := newTestService(t, 0, 5*time.Second)
	ctx := context.Background()

	_, err := svc.HandleQuery(ctx, demoRequest("How much did I spend on food last month?"), stream.NewCollector())
	require.NoError(t, err)

	turns, err := svc.store.GetTurns(ctx, "demo", 10)
	require.NoError(t, err)
	require.Len(t, turns, 2)
	assert.Equal(t, "user", turns[0].Role)
	assert.Equal(t, "assistant", turns[1].Role)
}
