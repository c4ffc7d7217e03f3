package functions

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/finsight/orchestrator/internal/domain"
	"github.com/finsight/orchestrator/internal/repository"
)

const (
	defaultCurrency    = "USD"
	defaultTopLimit    = 5
	maxTopLimit        = 50
	anomalyFactor      = 3.0
	defaultTrendBucket = "month"
)

// NewBuiltinCatalog builds the fixed catalog over the given record store.
func NewBuiltinCatalog(store repository.RecordStore) *Catalog {
	c := NewCatalog()

	c.MustRegister(Definition{
		Name:        "spending_by_category",
		Description: "Total spending per category for a period, optionally narrowed to one category.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"period":   periodSchema(),
				"category": map[string]any{"type": "string", "description": "Optional category filter, e.g. food."},
			},
			"required": []string{"period"},
		},
	}, normalizePeriodArgs("category"), func(ctx context.Context, userID string, args map[string]any) (json.RawMessage, error) {
		p, err := periodFromArgs(args)
		if err != nil {
			return nil, err
		}
		category, _ := args["category"].(string)

		aggs, err := store.SpendingByCategory(ctx, userID, p, category)
		if err != nil {
			return nil, err
		}

		var totalCents int64
		for _, a := range aggs {
			totalCents += a.TotalCents
		}
		breakdown := domain.CategoryBreakdown{
			Period:     p,
			Currency:   defaultCurrency,
			Total:      formatCents(totalCents),
			Categories: make([]domain.CategorySpend, 0, len(aggs)),
		}
		for _, a := range aggs {
			share := 0.0
			if totalCents > 0 {
				share = float64(a.TotalCents) / float64(totalCents)
			}
			breakdown.Categories = append(breakdown.Categories, domain.CategorySpend{
				Category: a.Category,
				Total:    formatCents(a.TotalCents),
				Count:    a.Count,
				Share:    share,
			})
		}
		return json.Marshal(breakdown)
	})

	c.MustRegister(Definition{
		Name:        "top_merchants",
		Description: "Merchants ranked by total spend within a period.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"period": periodSchema(),
				"limit":  map[string]any{"type": "integer", "description": "How many merchants to return.", "default": defaultTopLimit},
			},
			"required": []string{"period"},
		},
	}, normalizeTopMerchantsArgs, func(ctx context.Context, userID string, args map[string]any) (json.RawMessage, error) {
		p, err := periodFromArgs(args)
		if err != nil {
			return nil, err
		}
		limit := intArg(args, "limit", defaultTopLimit)

		aggs, err := store.TopMerchants(ctx, userID, p, limit)
		if err != nil {
			return nil, err
		}
		ranking := domain.MerchantRanking{
			Period:    p,
			Currency:  defaultCurrency,
			Merchants: make([]domain.MerchantSpend, 0, len(aggs)),
		}
		for _, a := range aggs {
			ranking.Merchants = append(ranking.Merchants, domain.MerchantSpend{
				Merchant: a.Merchant,
				Total:    formatCents(a.TotalCents),
				Count:    a.Count,
			})
		}
		return json.Marshal(ranking)
	})

	c.MustRegister(Definition{
		Name:        "spending_trend",
		Description: "Spending bucketed over time to show how it changes within a period.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"period":   periodSchema(),
				"interval": map[string]any{"type": "string", "enum": []string{"day", "week", "month"}, "default": defaultTrendBucket},
			},
			"required": []string{"period"},
		},
	}, normalizeTrendArgs, func(ctx context.Context, userID string, args map[string]any) (json.RawMessage, error) {
		p, err := periodFromArgs(args)
		if err != nil {
			return nil, err
		}
		interval, _ := args["interval"].(string)
		if interval == "" {
			interval = defaultTrendBucket
		}

		aggs, err := store.SpendingTrend(ctx, userID, p, interval)
		if err != nil {
			return nil, err
		}
		series := domain.TrendSeries{
			Period:   p,
			Interval: interval,
			Currency: defaultCurrency,
			Points:   make([]domain.TrendPoint, 0, len(aggs)),
		}
		for _, a := range aggs {
			series.Points = append(series.Points, domain.TrendPoint{
				Bucket: a.Bucket,
				Total:  formatCents(a.TotalCents),
				Count:  a.Count,
			})
		}
		return json.Marshal(series)
	})

	c.MustRegister(Definition{
		Name:        "anomaly_scan",
		Description: "Receipts well above their category baseline within a period.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"period": periodSchema(),
			},
			"required": []string{"period"},
		},
	}, normalizePeriodArgs(), func(ctx context.Context, userID string, args map[string]any) (json.RawMessage, error) {
		p, err := periodFromArgs(args)
		if err != nil {
			return nil, err
		}

		rows, err := store.ScanAnomalies(ctx, userID, p, anomalyFactor)
		if err != nil {
			return nil, err
		}
		report := domain.AnomalyReport{
			Period:    p,
			Currency:  defaultCurrency,
			Anomalies: make([]domain.Anomaly, 0, len(rows)),
		}
		for _, r := range rows {
			report.Anomalies = append(report.Anomalies, domain.Anomaly{
				ReceiptID:  r.ReceiptID,
				Merchant:   r.Merchant,
				Category:   r.Category,
				Amount:     formatCents(r.AmountCents),
				Baseline:   formatCents(r.BaselineCents),
				OccurredAt: r.OccurredAt,
			})
		}
		return json.Marshal(report)
	})

	return c
}

func periodSchema() map[string]any {
	return map[string]any{
		"type": "string",
		"enum": []string{PeriodThisMonth, PeriodLastMonth, PeriodLast7Days, PeriodLast30Days, PeriodThisYear},
	}
}

// normalizePeriodArgs validates the period and keeps only the listed extra
// string keys, so canonicalized invocations never carry stray arguments.
func normalizePeriodArgs(extraKeys ...string) Normalizer {
	return func(args map[string]any) (map[string]any, error) {
		out := map[string]any{}
		period, _ := args["period"].(string)
		if period == "" {
			period = PeriodLastMonth
		}
		if !namedPeriods[period] {
			return nil, fmt.Errorf("invalid period: %q", period)
		}
		out["period"] = period
		for _, key := range extraKeys {
			if v, ok := args[key].(string); ok && v != "" {
				out[key] = v
			}
		}
		return out, nil
	}
}

func normalizeTopMerchantsArgs(args map[string]any) (map[string]any, error) {
	out, err := normalizePeriodArgs()(args)
	if err != nil {
		return nil, err
	}
	limit := intArg(args, "limit", defaultTopLimit)
	if limit <= 0 || limit > maxTopLimit {
		return nil, fmt.Errorf("limit must be between 1 and %d", maxTopLimit)
	}
	out["limit"] = limit
	return out, nil
}

func normalizeTrendArgs(args map[string]any) (map[string]any, error) {
	out, err := normalizePeriodArgs()(args)
	if err != nil {
		return nil, err
	}
	interval, _ := args["interval"].(string)
	if interval == "" {
		interval = defaultTrendBucket
	}
	switch interval {
	case "day", "week", "month":
	default:
		return nil, fmt.Errorf("invalid interval: %q", interval)
	}
	out["interval"] = interval
	return out, nil
}

func periodFromArgs(args map[string]any) (domain.Period, error) {
	name, _ := args["period"].(string)
	if name == "" {
		name = PeriodLastMonth
	}
	return resolvePeriod(name, time.Now())
}

// intArg reads an integer argument; JSON numbers arrive as float64.
func intArg(args map[string]any, key string, defaultVal int) int {
	switch v := args[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return defaultVal
	}
}

func formatCents(cents int64) string {
	return decimal.New(cents, -2).StringFixed(2)
}
