package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Receipt is one persisted financial record. Amounts are stored in cents to
// keep arithmetic exact; decimal conversion happens at the read boundary.
type Receipt struct {
	ReceiptID   string    `json:"receipt_id"`
	UserID      string    `json:"user_id"`
	Merchant    string    `json:"merchant"`
	Category    string    `json:"category"`
	AmountCents int64     `json:"amount_cents"`
	Currency    string    `json:"currency"`
	OccurredAt  time.Time `json:"occurred_at"`
}

// Amount returns the receipt amount as an exact decimal.
func (r Receipt) Amount() decimal.Decimal {
	return decimal.New(r.AmountCents, -2)
}

// Period bounds a data access query. From is inclusive, To exclusive.
type Period struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// CategorySpend is an aggregated spend for one category.
type CategorySpend struct {
	Category string  `json:"category"`
	Total    string  `json:"total"` // two decimal places
	Count    int     `json:"count"`
	Share    float64 `json:"share"` // fraction of the period total
}

// CategoryBreakdown is the payload of the spending_by_category function.
type CategoryBreakdown struct {
	Period     Period          `json:"period"`
	Currency   string          `json:"currency"`
	Total      string          `json:"total"`
	Categories []CategorySpend `json:"categories"`
}

// MerchantSpend is an aggregated spend for one merchant.
type MerchantSpend struct {
	Merchant string `json:"merchant"`
	Total    string `json:"total"`
	Count    int    `json:"count"`
}

// MerchantRanking is the payload of the top_merchants function.
type MerchantRanking struct {
	Period    Period          `json:"period"`
	Currency  string          `json:"currency"`
	Merchants []MerchantSpend `json:"merchants"`
}

// TrendPoint is one bucket in a spending trend.
type TrendPoint struct {
	Bucket string `json:"bucket"` // e.g. "2026-07" or "2026-07-14"
	Total  string `json:"total"`
	Count  int    `json:"count"`
}

// TrendSeries is the payload of the spending_trend function.
type TrendSeries struct {
	Period   Period       `json:"period"`
	Interval string       `json:"interval"` // "day" | "week" | "month"
	Currency string       `json:"currency"`
	Points   []TrendPoint `json:"points"`
}

// Anomaly flags one receipt well above its category baseline.
type Anomaly struct {
	ReceiptID  string    `json:"receipt_id"`
	Merchant   string    `json:"merchant"`
	Category   string    `json:"category"`
	Amount     string    `json:"amount"`
	Baseline   string    `json:"baseline"` // category average over the period
	OccurredAt time.Time `json:"occurred_at"`
}

// AnomalyReport is the payload of the anomaly_scan function.
type AnomalyReport struct {
	Period    Period    `json:"period"`
	Currency  string    `json:"currency"`
	Anomalies []Anomaly `json:"anomalies"`
}
