// Package repository persists financial records, conversation history, and
// the query audit log.
package repository

import (
	"context"
	"encoding/json"
	"time"

	"github.com/finsight/orchestrator/internal/domain"
)

// CategoryAgg is one aggregated row of per-category spending.
type CategoryAgg struct {
	Category   string
	TotalCents int64
	Count      int
}

// MerchantAgg is one aggregated row of per-merchant spending.
type MerchantAgg struct {
	Merchant   string
	TotalCents int64
	Count      int
}

// TrendAgg is one time bucket of aggregated spending.
type TrendAgg struct {
	Bucket     string
	TotalCents int64
	Count      int
}

// AnomalyRow is one receipt exceeding its category baseline.
type AnomalyRow struct {
	ReceiptID     string
	Merchant      string
	Category      string
	AmountCents   int64
	BaselineCents int64
	OccurredAt    time.Time
}

// RecordStore is the read-only view of the financial record store consumed
// by the data access function catalog.
type RecordStore interface {
	// SpendingByCategory aggregates spending per category within the period.
	// An empty category means all categories.
	SpendingByCategory(ctx context.Context, userID string, p domain.Period, category string) ([]CategoryAgg, error)

	// TopMerchants returns the highest-spend merchants within the period.
	TopMerchants(ctx context.Context, userID string, p domain.Period, limit int) ([]MerchantAgg, error)

	// SpendingTrend buckets spending by day, week, or month.
	SpendingTrend(ctx context.Context, userID string, p domain.Period, interval string) ([]TrendAgg, error)

	// ScanAnomalies returns receipts whose amount exceeds factor times the
	// category average over the period.
	ScanAnomalies(ctx context.Context, userID string, p domain.Period, factor float64) ([]AnomalyRow, error)
}

// Store is the full persistence surface.
type Store interface {
	RecordStore

	InsertReceipt(ctx context.Context, r *domain.Receipt) error

	CreateQueryRun(ctx context.Context, q *domain.QueryRun) error
	UpdateQueryRunCompleted(ctx context.Context, queryID string, status domain.QueryStatus, cacheHit bool, durationMs int64, errPayload json.RawMessage) error
	GetQueryRun(ctx context.Context, queryID string) (*domain.QueryRun, error)

	CreateEvent(ctx context.Context, e *domain.Event) error
	GetEvents(ctx context.Context, queryID string, afterTs int64, limit int) ([]domain.Event, error)

	CreateTurn(ctx context.Context, userID, role, content string) error
	GetTurns(ctx context.Context, userID string, limit int) ([]domain.ConversationTurn, error)

	Close() error
}
