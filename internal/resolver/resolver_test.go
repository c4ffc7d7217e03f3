package resolver

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finsight/orchestrator/internal/adapter/llm"
	"github.com/finsight/orchestrator/internal/domain"
	"github.com/finsight/orchestrator/internal/functions"
	"github.com/finsight/orchestrator/internal/repository"
)

func testCatalog(t *testing.T) *functions.Catalog {
	t.Helper()
	store, err := repository.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return functions.NewBuiltinCatalog(store)
}

func TestKeywordResolverFoodLastMonth(t *testing.T) {
	r := NewKeywordResolver(testCatalog(t))

	invs, err := r.Resolve(context.Background(), &domain.QueryRequest{
		UserID: "u1",
		Query:  "How much did I spend on food last month?",
	})
	require.NoError(t, err)
	require.Len(t, invs, 1)
	assert.Equal(t, "spending_by_category", invs[0].Name)
	assert.Equal(t, "last_month", invs[0].Args["period"])
	assert.Equal(t, "food", invs[0].Args["category"])
	assert.Equal(t, 0, invs[0].Index)
}

func TestKeywordResolverGreetingIsEmpty(t *testing.T) {
	r := NewKeywordResolver(testCatalog(t))

	invs, err := r.Resolve(context.Background(), &domain.QueryRequest{UserID: "u1", Query: "hello there"})
	require.NoError(t, err)
	assert.Empty(t, invs)
}

func TestKeywordResolverMultiFunction(t *testing.T) {
	r := NewKeywordResolver(testCatalog(t))

	invs, err := r.Resolve(context.Background(), &domain.QueryRequest{
		UserID: "u1",
		Query:  "which merchants got my money this month and was anything unusual?",
	})
	require.NoError(t, err)
	require.Len(t, invs, 2)
	// Normalized order is name-sorted regardless of rule order.
	assert.Equal(t, "anomaly_scan", invs[0].Name)
	assert.Equal(t, "top_merchants", invs[1].Name)
	assert.Equal(t, 0, invs[0].Index)
	assert.Equal(t, 1, invs[1].Index)
}

func TestKeywordResolverDeterministic(t *testing.T) {
	r := NewKeywordResolver(testCatalog(t))
	req := &domain.QueryRequest{UserID: "u1", Query: "food and transport spending trend this year"}

	first, err := r.Resolve(context.Background(), req)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		again, err := r.Resolve(context.Background(), req)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestNormalizeSortsAndIndexes(t *testing.T) {
	invs := []domain.FunctionInvocation{
		{Name: "top_merchants", Args: map[string]any{"period": "last_month", "limit": 5}},
		{Name: "anomaly_scan", Args: map[string]any{"period": "last_month"}},
		{Name: "anomaly_scan", Args: map[string]any{"period": "this_month"}},
	}

	out := Normalize(invs)
	require.Len(t, out, 3)
	assert.Equal(t, "anomaly_scan", out[0].Name)
	assert.Equal(t, "last_month", out[0].Args["period"])
	assert.Equal(t, "anomaly_scan", out[1].Name)
	assert.Equal(t, "top_merchants", out[2].Name)
	for i := range out {
		assert.Equal(t, i, out[i].Index)
	}
	// Input order must not leak through.
	assert.Equal(t, 0, out[0].Index)
}

func TestLLMResolverParsesToolCalls(t *testing.T) {
	catalog := testCatalog(t)
	client := llm.NewMockClient()
	client.QueueToolCalls(llm.ToolCall{
		ID:   "call_1",
		Type: "function",
		Function: llm.ToolCallFunction{
			Name:      "spending_by_category",
			Arguments: `{"period":"last_month","category":"food"}`,
		},
	})

	r := NewLLMResolver(client, catalog, "mock")
	invs, err := r.Resolve(context.Background(), &domain.QueryRequest{
		UserID:  "u1",
		Query:   "how much did I spend on food last month?",
		Context: []domain.ConversationTurn{{Role: "user", Content: "hi"}, {Role: "assistant", Content: "hello"}},
	})
	require.NoError(t, err)
	require.Len(t, invs, 1)
	assert.Equal(t, "spending_by_category", invs[0].Name)
	assert.Equal(t, "food", invs[0].Args["category"])

	// The catalog and the conversation context both reach the model.
	require.Len(t, client.Requests, 1)
	assert.Len(t, client.Requests[0].Tools, 4)
	assert.Len(t, client.Requests[0].Messages, 4) // system + 2 turns + query
}

func TestLLMResolverNoToolCallsIsEmpty(t *testing.T) {
	r := NewLLMResolver(llm.NewMockClient(), testCatalog(t), "mock")

	invs, err := r.Resolve(context.Background(), &domain.QueryRequest{UserID: "u1", Query: "good morning"})
	require.NoError(t, err)
	assert.Empty(t, invs)
}

func TestLLMResolverRejectsUnknownFunctions(t *testing.T) {
	client := llm.NewMockClient()
	client.QueueToolCalls(llm.ToolCall{
		ID:   "call_1",
		Type: "function",
		Function: llm.ToolCallFunction{
			Name:      "transfer_funds",
			Arguments: `{"amount": 100}`,
		},
	})

	r := NewLLMResolver(client, testCatalog(t), "mock")
	_, err := r.Resolve(context.Background(), &domain.QueryRequest{UserID: "u1", Query: "move my money"})
	assert.ErrorIs(t, err, domain.ErrUnresolvableQuery)
}
