package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finsight/orchestrator/internal/domain"
)

func TestNormalizeQuery(t *testing.T) {
	cases := map[string]string{
		"How much did I spend on food?":     "how much did i spend on food",
		"  how   much did\tI spend on food": "how much did i spend on food",
		"HOW MUCH DID I SPEND ON FOOD!!!":   "how much did i spend on food",
		"top merchants this month.":         "top merchants this month",
	}
	for input, want := range cases {
		assert.Equal(t, want, NormalizeQuery(input), "input %q", input)
	}
}

func TestFingerprintStability(t *testing.T) {
	filters := map[string]string{"category": "food", "currency": "USD"}

	first := Fingerprint("u1", "How much on food?", filters)
	for i := 0; i < 20; i++ {
		assert.Equal(t, first, Fingerprint("u1", "how   much on FOOD", filters))
	}

	assert.NotEqual(t, first, Fingerprint("u2", "How much on food?", filters))
	assert.NotEqual(t, first, Fingerprint("u1", "How much on transport?", filters))
	assert.NotEqual(t, first, Fingerprint("u1", "How much on food?", map[string]string{"category": "transport"}))
}

func TestMemoryStorePutLookup(t *testing.T) {
	store, err := NewStore(DriverMemory, WithTTL(time.Minute))
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	resp := &domain.QueryResponse{Message: "You spent $54.20 on food.", Cached: false}

	got, err := store.Lookup(ctx, "k1")
	require.NoError(t, err)
	assert.Nil(t, got)

	require.NoError(t, store.Put(ctx, "k1", "u1", resp))

	got, err = store.Lookup(ctx, "k1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, resp.Message, got.Message)
}

func TestMemoryStoreReturnsCopies(t *testing.T) {
	store, err := NewStore(DriverMemory)
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	resp := &domain.QueryResponse{Message: "original", Insights: []string{"a"}}
	require.NoError(t, store.Put(ctx, "k1", "u1", resp))

	got, err := store.Lookup(ctx, "k1")
	require.NoError(t, err)
	got.Message = "mutated"
	got.Insights[0] = "b"

	again, err := store.Lookup(ctx, "k1")
	require.NoError(t, err)
	assert.Equal(t, "original", again.Message)
	assert.Equal(t, []string{"a"}, again.Insights)
}

func TestMemoryStoreExpiry(t *testing.T) {
	store, err := NewStore(DriverMemory, WithTTL(20*time.Millisecond), WithSweepInterval(time.Hour))
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	require.NoError(t, store.Put(ctx, "k1", "u1", &domain.QueryResponse{Message: "hi"}))

	time.Sleep(40 * time.Millisecond)

	got, err := store.Lookup(ctx, "k1")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestMemoryStoreInvalidateUser(t *testing.T) {
	store, err := NewStore(DriverMemory, WithTTL(time.Minute))
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	require.NoError(t, store.Put(ctx, "k1", "u1", &domain.QueryResponse{Message: "a"}))
	require.NoError(t, store.Put(ctx, "k2", "u1", &domain.QueryResponse{Message: "b"}))
	require.NoError(t, store.Put(ctx, "k3", "u2", &domain.QueryResponse{Message: "c"}))

	require.NoError(t, store.InvalidateUser(ctx, "u1"))

	got, err := store.Lookup(ctx, "k1")
	require.NoError(t, err)
	assert.Nil(t, got)
	got, err = store.Lookup(ctx, "k2")
	require.NoError(t, err)
	assert.Nil(t, got)
	got, err = store.Lookup(ctx, "k3")
	require.NoError(t, err)
	assert.NotNil(t, got)
}

func TestMemoryStoreInvalidateAbsentKey(t *testing.T) {
	store, err := NewStore(DriverMemory, WithTTL(time.Minute))
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	require.NoError(t, store.Invalidate(ctx, "never-stored"))
	require.NoError(t, store.InvalidateUser(ctx, "nobody"))

	require.NoError(t, store.Put(ctx, "k1", "u1", &domain.QueryResponse{Message: "a"}))
	require.NoError(t, store.Invalidate(ctx, "still-not-there"))

	got, err := store.Lookup(ctx, "k1")
	require.NoError(t, err)
	assert.NotNil(t, got)
}

func TestNewStoreInvalidDriver(t *testing.T) {
	_, err := NewStore(DriverType("cassandra"))
	assert.ErrorIs(t, err, ErrInvalidDriver)
}

func TestNewStoreRedisRequiresClient(t *testing.T) {
	_, err := NewStore(DriverRedis)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}
