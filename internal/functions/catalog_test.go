package functions

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finsight/orchestrator/internal/domain"
	"github.com/finsight/orchestrator/internal/repository"
)

func newCatalog(t *testing.T) (*Catalog, *repository.SQLiteStore) {
	t.Helper()
	store, err := repository.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return NewBuiltinCatalog(store), store
}

func insertReceipt(t *testing.T, store *repository.SQLiteStore, id, userID, merchant, category string, cents int64, at time.Time) {
	t.Helper()
	err := store.InsertReceipt(context.Background(), &domain.Receipt{
		ReceiptID:   id,
		UserID:      userID,
		Merchant:    merchant,
		Category:    category,
		AmountCents: cents,
		Currency:    "USD",
		OccurredAt:  at,
	})
	require.NoError(t, err)
}

func TestCatalogDefinitions(t *testing.T) {
	catalog, _ := newCatalog(t)

	defs := catalog.Definitions()
	require.Len(t, defs, 4)
	assert.Equal(t, "spending_by_category", defs[0].Name)
	assert.True(t, catalog.Has("anomaly_scan"))
	assert.False(t, catalog.Has("delete_everything"))
}

func TestSpendingByCategoryExecute(t *testing.T) {
	catalog, store := newCatalog(t)
	lastMonth := time.Now().UTC().AddDate(0, -1, 0)
	at := time.Date(lastMonth.Year(), lastMonth.Month(), 10, 12, 0, 0, 0, time.UTC)
	insertReceipt(t, store, "r1", "u1", "Green Grocer", "food", 5420, at)
	insertReceipt(t, store, "r2", "u1", "Corner Cafe", "food", 1280, at.AddDate(0, 0, 2))
	insertReceipt(t, store, "r3", "u1", "Metro Transit", "transport", 4500, at.AddDate(0, 0, 3))

	raw, err := catalog.Execute(context.Background(), "u1", "spending_by_category",
		map[string]any{"period": "last_month", "category": "food"})
	require.NoError(t, err)

	var breakdown domain.CategoryBreakdown
	require.NoError(t, json.Unmarshal(raw, &breakdown))
	assert.Equal(t, "67.00", breakdown.Total)
	require.Len(t, breakdown.Categories, 1)
	assert.Equal(t, "food", breakdown.Categories[0].Category)
	assert.Equal(t, "67.00", breakdown.Categories[0].Total)
	assert.InDelta(t, 1.0, breakdown.Categories[0].Share, 1e-9)
}

func TestNormalizeRejectsBadArgs(t *testing.T) {
	catalog, _ := newCatalog(t)

	_, err := catalog.Normalize("spending_by_category", map[string]any{"period": "yesterday-ish"})
	assert.Error(t, err)

	_, err = catalog.Normalize("top_merchants", map[string]any{"period": "last_month", "limit": float64(500)})
	assert.Error(t, err)

	_, err = catalog.Normalize("spending_trend", map[string]any{"period": "last_month", "interval": "hour"})
	assert.Error(t, err)

	_, err = catalog.Normalize("no_such_function", map[string]any{})
	assert.Error(t, err)
}

func TestNormalizeFillsDefaultsAndDropsStrayKeys(t *testing.T) {
	catalog, _ := newCatalog(t)

	args, err := catalog.Normalize("top_merchants", map[string]any{
		"period":  "last_month",
		"verbose": true, // not part of the schema
	})
	require.NoError(t, err)
	assert.Equal(t, defaultTopLimit, args["limit"])
	_, hasStray := args["verbose"]
	assert.False(t, hasStray)

	// Defaults keep canonicalization stable.
	again, err := catalog.Normalize("top_merchants", map[string]any{"period": "last_month"})
	require.NoError(t, err)
	assert.Equal(t, args, again)
}

func TestExecuteUnknownFunction(t *testing.T) {
	catalog, _ := newCatalog(t)
	_, err := catalog.Execute(context.Background(), "u1", "spending_forecast", nil)
	assert.Error(t, err)
}

func TestResolvePeriodBounds(t *testing.T) {
	now := time.Date(2026, 8, 29, 15, 0, 0, 0, time.UTC)

	p, err := resolvePeriod(PeriodLastMonth, now)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC), p.From)
	assert.Equal(t, time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC), p.To)

	p, err = resolvePeriod(PeriodLast7Days, now)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 8, 22, 0, 0, 0, 0, time.UTC), p.From)

	_, err = resolvePeriod("fortnight", now)
	assert.Error(t, err)
}
