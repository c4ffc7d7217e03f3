package resolver

import (
	"context"
	"strings"

	"github.com/finsight/orchestrator/internal/domain"
	"github.com/finsight/orchestrator/internal/functions"
)

// KeywordResolver is a deterministic rule-based resolver used in mock mode
// and in tests. It understands the same catalog as the LLM resolver but maps
// queries by keyword instead of model inference.
type KeywordResolver struct {
	catalog *functions.Catalog
}

// NewKeywordResolver creates a keyword resolver.
func NewKeywordResolver(catalog *functions.Catalog) *KeywordResolver {
	return &KeywordResolver{catalog: catalog}
}

var _ Resolver = (*KeywordResolver)(nil)

// Checked in order so multi-keyword queries resolve the same way every time.
var categoryKeywords = []struct {
	keyword  string
	category string
}{
	{"food", "food"},
	{"groceries", "food"},
	{"restaurant", "food"},
	{"transport", "transport"},
	{"commute", "transport"},
	{"utilities", "utilities"},
	{"electricity", "utilities"},
	{"entertainment", "entertainment"},
	{"electronics", "electronics"},
}

// Resolve implements Resolver.
func (r *KeywordResolver) Resolve(ctx context.Context, req *domain.QueryRequest) ([]domain.FunctionInvocation, error) {
	q := strings.ToLower(req.Query)

	spendy := containsAny(q, "spend", "spent", "pay", "paid", "cost", "buy", "bought", "money", "expense")
	if !spendy {
		if containsAny(q, "hi", "hello", "hey", "thanks", "thank you") {
			return nil, nil
		}
		if !containsAny(q, "merchant", "trend", "anomal", "unusual", "categor") {
			// Out of domain; let the canned synthesis ask for clarification.
			return nil, nil
		}
	}

	period := periodFromText(q)
	var invs []domain.FunctionInvocation

	if containsAny(q, "anomal", "unusual", "weird", "suspicious") {
		invs = append(invs, domain.FunctionInvocation{
			Name: "anomaly_scan",
			Args: map[string]any{"period": period},
		})
	}
	if containsAny(q, "merchant", "store", "shop", "where") {
		invs = append(invs, domain.FunctionInvocation{
			Name: "top_merchants",
			Args: map[string]any{"period": period, "limit": float64(5)},
		})
	}
	if containsAny(q, "trend", "over time", "change", "month by month", "history") {
		invs = append(invs, domain.FunctionInvocation{
			Name: "spending_trend",
			Args: map[string]any{"period": period, "interval": "day"},
		})
	}

	if len(invs) == 0 || categoryFromText(q) != "" {
		args := map[string]any{"period": period}
		if category := categoryFromText(q); category != "" {
			args["category"] = category
		}
		invs = append(invs, domain.FunctionInvocation{
			Name: "spending_by_category",
			Args: args,
		})
	}

	for i, inv := range invs {
		normalized, err := r.catalog.Normalize(inv.Name, inv.Args)
		if err != nil {
			return nil, domain.ErrUnresolvableQuery
		}
		invs[i].Args = normalized
	}
	return Normalize(invs), nil
}

func periodFromText(q string) string {
	switch {
	case strings.Contains(q, "last month"):
		return functions.PeriodLastMonth
	case strings.Contains(q, "this month"):
		return functions.PeriodThisMonth
	case strings.Contains(q, "this year"), strings.Contains(q, "year to date"):
		return functions.PeriodThisYear
	case strings.Contains(q, "week"), strings.Contains(q, "7 days"):
		return functions.PeriodLast7Days
	case strings.Contains(q, "30 days"):
		return functions.PeriodLast30Days
	default:
		return functions.PeriodLastMonth
	}
}

func categoryFromText(q string) string {
	for _, kw := range categoryKeywords {
		if strings.Contains(q, kw.keyword) {
			return kw.category
		}
	}
	return ""
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
