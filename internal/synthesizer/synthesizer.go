// Package synthesizer turns aggregated function results into a message and
// a list of discrete insights. Output is deterministic for identical inputs.
package synthesizer

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/finsight/orchestrator/internal/domain"
)

// ClarifyingMessage is returned when the resolver found nothing actionable.
const ClarifyingMessage = "I can help with questions about your spending records. " +
	"Try asking something like \"How much did I spend on food last month?\" or \"What were my top merchants this month?\""

const noDataMessage = "No data for this period."

// Synthesize builds the response message, the aggregated data payload, and
// the insight list from the (possibly partial) function results. Results it
// cannot interpret are skipped and noted, never fatal.
func Synthesize(results []domain.FunctionResult) (string, map[string]json.RawMessage, []string) {
	if len(results) == 0 {
		return ClarifyingMessage, map[string]json.RawMessage{}, []string{}
	}

	var parts []string
	var failed []string
	insights := []string{}
	data := map[string]json.RawMessage{}

	for _, res := range results {
		if !res.OK {
			reason := "error"
			if res.Error != nil {
				reason = string(res.Error.Code)
			}
			failed = append(failed, fmt.Sprintf("%s (%s)", res.Name, reason))
			continue
		}

		key := res.Name
		if _, exists := data[key]; exists {
			key = fmt.Sprintf("%s_%d", res.Name, res.Index)
		}
		data[key] = res.Data

		part, resInsights, ok := describe(res)
		if !ok {
			failed = append(failed, fmt.Sprintf("%s (unreadable result)", res.Name))
			continue
		}
		if part != "" {
			parts = append(parts, part)
		}
		insights = append(insights, resInsights...)
	}

	var message string
	switch {
	case len(parts) == 0 && len(failed) == 0:
		message = noDataMessage
	case len(parts) == 0:
		message = "I could not retrieve your data right now."
	default:
		message = strings.Join(parts, " ")
	}
	if len(failed) > 0 {
		message += " Some data was unavailable: " + strings.Join(failed, ", ") + "."
	}

	return message, data, insights
}

func describe(res domain.FunctionResult) (string, []string, bool) {
	switch res.Name {
	case "spending_by_category":
		var b domain.CategoryBreakdown
		if err := json.Unmarshal(res.Data, &b); err != nil {
			return "", nil, false
		}
		return describeCategories(b)
	case "top_merchants":
		var r domain.MerchantRanking
		if err := json.Unmarshal(res.Data, &r); err != nil {
			return "", nil, false
		}
		return describeMerchants(r)
	case "spending_trend":
		var s domain.TrendSeries
		if err := json.Unmarshal(res.Data, &s); err != nil {
			return "", nil, false
		}
		return describeTrend(s)
	case "anomaly_scan":
		var a domain.AnomalyReport
		if err := json.Unmarshal(res.Data, &a); err != nil {
			return "", nil, false
		}
		return describeAnomalies(a)
	default:
		// Unknown payload shape; keep the data but say nothing about it.
		return "", nil, true
	}
}

func describeCategories(b domain.CategoryBreakdown) (string, []string, bool) {
	if len(b.Categories) == 0 {
		return noDataMessage, nil, true
	}

	var insights []string
	top := b.Categories[0]
	if len(b.Categories) == 1 {
		msg := fmt.Sprintf("You spent %s on %s %s.", money(top.Total), top.Category, periodPhrase(b.Period))
		return msg, insights, true
	}

	msg := fmt.Sprintf("You spent %s across %d categories %s; %s was the largest at %s (%s).",
		money(b.Total), len(b.Categories), periodPhrase(b.Period), top.Category, money(top.Total), percent(top.Share))
	if top.Share >= 0.4 {
		insights = append(insights, fmt.Sprintf("%s accounts for %s of your spending in this period.", top.Category, percent(top.Share)))
	}
	return msg, insights, true
}

func describeMerchants(r domain.MerchantRanking) (string, []string, bool) {
	if len(r.Merchants) == 0 {
		return noDataMessage, nil, true
	}
	top := r.Merchants[0]
	msg := fmt.Sprintf("Your top merchant %s was %s at %s over %d purchases.",
		periodPhrase(r.Period), top.Merchant, money(top.Total), top.Count)
	insights := []string{fmt.Sprintf("Most of your spending went to %s (%s).", top.Merchant, money(top.Total))}
	return msg, insights, true
}

func describeTrend(s domain.TrendSeries) (string, []string, bool) {
	if len(s.Points) == 0 {
		return noDataMessage, nil, true
	}
	first := s.Points[0]
	last := s.Points[len(s.Points)-1]
	if len(s.Points) == 1 {
		return fmt.Sprintf("You spent %s in %s.", money(first.Total), first.Bucket), nil, true
	}

	msg := fmt.Sprintf("Your spending went from %s in %s to %s in %s.",
		money(first.Total), first.Bucket, money(last.Total), last.Bucket)

	var insights []string
	firstVal, err1 := decimal.NewFromString(first.Total)
	lastVal, err2 := decimal.NewFromString(last.Total)
	if err1 == nil && err2 == nil && firstVal.IsPositive() {
		change, _ := lastVal.Sub(firstVal).Div(firstVal).Mul(decimal.NewFromInt(100)).Float64()
		switch {
		case change >= 10:
			insights = append(insights, fmt.Sprintf("Spending is up %.1f%% across this period.", change))
		case change <= -10:
			insights = append(insights, fmt.Sprintf("Spending is down %.1f%% across this period.", -change))
		}
	}
	return msg, insights, true
}

func describeAnomalies(a domain.AnomalyReport) (string, []string, bool) {
	if len(a.Anomalies) == 0 {
		return fmt.Sprintf("Nothing unusual turned up %s.", periodPhrase(a.Period)), nil, true
	}
	top := a.Anomalies[0]
	msg := fmt.Sprintf("Found %d unusually large transaction(s) %s.", len(a.Anomalies), periodPhrase(a.Period))
	insights := []string{fmt.Sprintf("%s at %s is well above the %s category baseline of %s.",
		money(top.Amount), top.Merchant, top.Category, money(top.Baseline))}
	return msg, insights, true
}

func money(amount string) string {
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return "$" + amount
	}
	return "$" + d.StringFixed(2)
}

func percent(share float64) string {
	return fmt.Sprintf("%.1f%%", share*100)
}

func periodPhrase(p domain.Period) string {
	return fmt.Sprintf("between %s and %s", p.From.Format("Jan 2"), p.To.Format("Jan 2"))
}
