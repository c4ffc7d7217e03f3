package functions

import (
	"fmt"
	"time"

	"github.com/finsight/orchestrator/internal/domain"
)

// Named periods accepted by every catalog function.
const (
	PeriodThisMonth  = "this_month"
	PeriodLastMonth  = "last_month"
	PeriodLast7Days  = "last_7_days"
	PeriodLast30Days = "last_30_days"
	PeriodThisYear   = "this_year"
)

var namedPeriods = map[string]bool{
	PeriodThisMonth:  true,
	PeriodLastMonth:  true,
	PeriodLast7Days:  true,
	PeriodLast30Days: true,
	PeriodThisYear:   true,
}

// resolvePeriod turns a named period into concrete bounds at execution time.
func resolvePeriod(name string, now time.Time) (domain.Period, error) {
	now = now.UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)

	switch name {
	case PeriodThisMonth:
		return domain.Period{From: monthStart, To: monthStart.AddDate(0, 1, 0)}, nil
	case PeriodLastMonth:
		return domain.Period{From: monthStart.AddDate(0, -1, 0), To: monthStart}, nil
	case PeriodLast7Days:
		return domain.Period{From: today.AddDate(0, 0, -7), To: today.AddDate(0, 0, 1)}, nil
	case PeriodLast30Days:
		return domain.Period{From: today.AddDate(0, 0, -30), To: today.AddDate(0, 0, 1)}, nil
	case PeriodThisYear:
		yearStart := time.Date(now.Year(), 1, 1, 0, 0, 0, 0, time.UTC)
		return domain.Period{From: yearStart, To: yearStart.AddDate(1, 0, 0)}, nil
	default:
		return domain.Period{}, fmt.Errorf("unknown period: %s", name)
	}
}
