package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/finsight/orchestrator/internal/domain"
)

// SeedDemoData inserts a small fixed set of receipts for the demo user so a
// fresh instance can answer queries. No-op when receipts already exist.
func (s *SQLiteStore) SeedDemoData(ctx context.Context) error {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM receipts`).Scan(&count); err != nil {
		return fmt.Errorf("failed to count receipts: %w", err)
	}
	if count > 0 {
		return nil
	}

	now := time.Now().UTC()
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	lastMonth := monthStart.AddDate(0, -1, 0)

	seed := []domain.Receipt{
		{ReceiptID: "rc_demo_01", Merchant: "Green Grocer", Category: "food", AmountCents: 5420, OccurredAt: lastMonth.AddDate(0, 0, 2)},
		{ReceiptID: "rc_demo_02", Merchant: "Corner Cafe", Category: "food", AmountCents: 1275, OccurredAt: lastMonth.AddDate(0, 0, 5)},
		{ReceiptID: "rc_demo_03", Merchant: "Green Grocer", Category: "food", AmountCents: 6180, OccurredAt: lastMonth.AddDate(0, 0, 12)},
		{ReceiptID: "rc_demo_04", Merchant: "Metro Transit", Category: "transport", AmountCents: 4500, OccurredAt: lastMonth.AddDate(0, 0, 8)},
		{ReceiptID: "rc_demo_05", Merchant: "City Power", Category: "utilities", AmountCents: 9830, OccurredAt: lastMonth.AddDate(0, 0, 15)},
		{ReceiptID: "rc_demo_06", Merchant: "Streamflix", Category: "entertainment", AmountCents: 1599, OccurredAt: lastMonth.AddDate(0, 0, 18)},
		{ReceiptID: "rc_demo_07", Merchant: "Corner Cafe", Category: "food", AmountCents: 980, OccurredAt: monthStart.AddDate(0, 0, 1)},
		{ReceiptID: "rc_demo_08", Merchant: "Gadget Hub", Category: "electronics", AmountCents: 64900, OccurredAt: monthStart.AddDate(0, 0, 3)},
	}

	for i := range seed {
		seed[i].UserID = "demo"
		seed[i].Currency = "USD"
		if err := s.InsertReceipt(ctx, &seed[i]); err != nil {
			return err
		}
	}
	return nil
}
