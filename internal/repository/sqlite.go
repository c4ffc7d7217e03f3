package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/finsight/orchestrator/internal/domain"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store.
func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// For in-memory SQLite, multiple connections create separate databases.
	// Keep a single connection to avoid schema/data disappearing across goroutines.
	if dsn == ":memory:" || strings.Contains(dsn, "mode=memory") {
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// migrate runs database migrations.
func (s *SQLiteStore) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS receipts (
			receipt_id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			merchant TEXT NOT NULL,
			category TEXT NOT NULL,
			amount_cents INTEGER NOT NULL,
			currency TEXT NOT NULL DEFAULT 'USD',
			occurred_at DATETIME NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_receipts_user_time ON receipts(user_id, occurred_at)`,
		`CREATE INDEX IF NOT EXISTS idx_receipts_user_category ON receipts(user_id, category)`,
		`CREATE TABLE IF NOT EXISTS queries (
			query_id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			query_text TEXT NOT NULL,
			status TEXT NOT NULL,
			cache_hit INTEGER NOT NULL DEFAULT 0,
			duration_ms INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			ended_at DATETIME,
			error TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_queries_user ON queries(user_id, created_at)`,
		`CREATE TABLE IF NOT EXISTS query_events (
			event_id TEXT PRIMARY KEY,
			query_id TEXT NOT NULL,
			ts INTEGER NOT NULL,
			type TEXT NOT NULL,
			payload TEXT,
			FOREIGN KEY (query_id) REFERENCES queries(query_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_query_events ON query_events(query_id, ts)`,
		`CREATE TABLE IF NOT EXISTS turns (
			turn_id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id TEXT NOT NULL,
			role TEXT NOT NULL,
			content TEXT NOT NULL,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_turns_user ON turns(user_id, created_at)`,
	}

	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// InsertReceipt inserts one financial record.
func (s *SQLiteStore) InsertReceipt(ctx context.Context, r *domain.Receipt) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO receipts (receipt_id, user_id, merchant, category, amount_cents, currency, occurred_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		r.ReceiptID, r.UserID, r.Merchant, r.Category, r.AmountCents, r.Currency, r.OccurredAt)
	if err != nil {
		return fmt.Errorf("failed to insert receipt: %w", err)
	}
	return nil
}

// SpendingByCategory implements RecordStore.
func (s *SQLiteStore) SpendingByCategory(ctx context.Context, userID string, p domain.Period, category string) ([]CategoryAgg, error) {
	query := `SELECT category, SUM(amount_cents), COUNT(*)
		FROM receipts
		WHERE user_id = ? AND occurred_at >= ? AND occurred_at < ?`
	args := []any{userID, p.From, p.To}
	if category != "" {
		query += ` AND category = ?`
		args = append(args, category)
	}
	query += ` GROUP BY category ORDER BY SUM(amount_cents) DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query category spending: %w", err)
	}
	defer rows.Close()

	var aggs []CategoryAgg
	for rows.Next() {
		var a CategoryAgg
		if err := rows.Scan(&a.Category, &a.TotalCents, &a.Count); err != nil {
			return nil, fmt.Errorf("failed to scan category row: %w", err)
		}
		aggs = append(aggs, a)
	}
	return aggs, rows.Err()
}

// TopMerchants implements RecordStore.
func (s *SQLiteStore) TopMerchants(ctx context.Context, userID string, p domain.Period, limit int) ([]MerchantAgg, error) {
	if limit <= 0 {
		limit = 5
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT merchant, SUM(amount_cents), COUNT(*)
		 FROM receipts
		 WHERE user_id = ? AND occurred_at >= ? AND occurred_at < ?
		 GROUP BY merchant
		 ORDER BY SUM(amount_cents) DESC
		 LIMIT ?`,
		userID, p.From, p.To, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query top merchants: %w", err)
	}
	defer rows.Close()

	var aggs []MerchantAgg
	for rows.Next() {
		var a MerchantAgg
		if err := rows.Scan(&a.Merchant, &a.TotalCents, &a.Count); err != nil {
			return nil, fmt.Errorf("failed to scan merchant row: %w", err)
		}
		aggs = append(aggs, a)
	}
	return aggs, rows.Err()
}

// SpendingTrend implements RecordStore.
func (s *SQLiteStore) SpendingTrend(ctx context.Context, userID string, p domain.Period, interval string) ([]TrendAgg, error) {
	var format string
	switch interval {
	case "day":
		format = "%Y-%m-%d"
	case "week":
		format = "%Y-W%W"
	default:
		format = "%Y-%m"
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT strftime(?, occurred_at) AS bucket, SUM(amount_cents), COUNT(*)
		 FROM receipts
		 WHERE user_id = ? AND occurred_at >= ? AND occurred_at < ?
		 GROUP BY bucket
		 ORDER BY bucket ASC`,
		format, userID, p.From, p.To)
	if err != nil {
		return nil, fmt.Errorf("failed to query spending trend: %w", err)
	}
	defer rows.Close()

	var aggs []TrendAgg
	for rows.Next() {
		var a TrendAgg
		if err := rows.Scan(&a.Bucket, &a.TotalCents, &a.Count); err != nil {
			return nil, fmt.Errorf("failed to scan trend row: %w", err)
		}
		aggs = append(aggs, a)
	}
	return aggs, rows.Err()
}

// ScanAnomalies implements RecordStore.
func (s *SQLiteStore) ScanAnomalies(ctx context.Context, userID string, p domain.Period, factor float64) ([]AnomalyRow, error) {
	if factor <= 0 {
		factor = 3.0
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT r.receipt_id, r.merchant, r.category, r.amount_cents,
		        CAST(b.avg_cents AS INTEGER), r.occurred_at
		 FROM receipts r
		 JOIN (
			SELECT category, AVG(amount_cents) AS avg_cents
			FROM receipts
			WHERE user_id = ? AND occurred_at >= ? AND occurred_at < ?
			GROUP BY category
		 ) b ON r.category = b.category
		 WHERE r.user_id = ? AND r.occurred_at >= ? AND r.occurred_at < ?
		   AND r.amount_cents > b.avg_cents * ?
		 ORDER BY r.amount_cents DESC`,
		userID, p.From, p.To, userID, p.From, p.To, factor)
	if err != nil {
		return nil, fmt.Errorf("failed to query anomalies: %w", err)
	}
	defer rows.Close()

	var anomalies []AnomalyRow
	for rows.Next() {
		var a AnomalyRow
		if err := rows.Scan(&a.ReceiptID, &a.Merchant, &a.Category, &a.AmountCents, &a.BaselineCents, &a.OccurredAt); err != nil {
			return nil, fmt.Errorf("failed to scan anomaly row: %w", err)
		}
		anomalies = append(anomalies, a)
	}
	return anomalies, rows.Err()
}

// CreateQueryRun inserts the audit record for a new run.
func (s *SQLiteStore) CreateQueryRun(ctx context.Context, q *domain.QueryRun) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO queries (query_id, user_id, query_text, status, cache_hit, duration_ms, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		q.QueryID, q.UserID, q.QueryText, q.Status, boolToInt(q.CacheHit), q.DurationMs, q.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create query run: %w", err)
	}
	return nil
}

// UpdateQueryRunCompleted marks a run terminal.
func (s *SQLiteStore) UpdateQueryRunCompleted(ctx context.Context, queryID string, status domain.QueryStatus, cacheHit bool, durationMs int64, errPayload json.RawMessage) error {
	var errText sql.NullString
	if len(errPayload) > 0 {
		errText = sql.NullString{String: string(errPayload), Valid: true}
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE queries SET status = ?, cache_hit = ?, duration_ms = ?, ended_at = ?, error = ?
		 WHERE query_id = ?`,
		status, boolToInt(cacheHit), durationMs, time.Now(), errText, queryID)
	if err != nil {
		return fmt.Errorf("failed to update query run: %w", err)
	}
	return nil
}

// GetQueryRun retrieves one audit record, or nil when absent.
func (s *SQLiteStore) GetQueryRun(ctx context.Context, queryID string) (*domain.QueryRun, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT query_id, user_id, query_text, status, cache_hit, duration_ms, created_at, ended_at, error
		 FROM queries WHERE query_id = ?`, queryID)

	var q domain.QueryRun
	var cacheHit int
	var endedAt sql.NullTime
	var errText sql.NullString
	err := row.Scan(&q.QueryID, &q.UserID, &q.QueryText, &q.Status, &cacheHit, &q.DurationMs, &q.CreatedAt, &endedAt, &errText)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get query run: %w", err)
	}
	q.CacheHit = cacheHit != 0
	if endedAt.Valid {
		q.EndedAt = &endedAt.Time
	}
	if errText.Valid {
		q.Error = json.RawMessage(errText.String)
	}
	return &q, nil
}

// CreateEvent inserts one audit event.
func (s *SQLiteStore) CreateEvent(ctx context.Context, e *domain.Event) error {
	var payload sql.NullString
	if len(e.Payload) > 0 {
		payload = sql.NullString{String: string(e.Payload), Valid: true}
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO query_events (event_id, query_id, ts, type, payload) VALUES (?, ?, ?, ?, ?)`,
		e.EventID, e.QueryID, e.Ts, e.Type, payload)
	if err != nil {
		return fmt.Errorf("failed to create event: %w", err)
	}
	return nil
}

// GetEvents returns events for a run ordered by timestamp.
func (s *SQLiteStore) GetEvents(ctx context.Context, queryID string, afterTs int64, limit int) ([]domain.Event, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT event_id, query_id, ts, type, payload
		 FROM query_events
		 WHERE query_id = ? AND ts > ?
		 ORDER BY ts ASC
		 LIMIT ?`,
		queryID, afterTs, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get events: %w", err)
	}
	defer rows.Close()

	events := []domain.Event{}
	for rows.Next() {
		var e domain.Event
		var payload sql.NullString
		if err := rows.Scan(&e.EventID, &e.QueryID, &e.Ts, &e.Type, &payload); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		if payload.Valid {
			e.Payload = json.RawMessage(payload.String)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// CreateTurn appends one conversation turn for a user.
func (s *SQLiteStore) CreateTurn(ctx context.Context, userID, role, content string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO turns (user_id, role, content) VALUES (?, ?, ?)`,
		userID, role, content)
	if err != nil {
		return fmt.Errorf("failed to create turn: %w", err)
	}
	return nil
}

// GetTurns returns the most recent turns for a user in chronological order.
func (s *SQLiteStore) GetTurns(ctx context.Context, userID string, limit int) ([]domain.ConversationTurn, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT role, content FROM (
			SELECT turn_id, role, content FROM turns
			WHERE user_id = ?
			ORDER BY turn_id DESC
			LIMIT ?
		 ) ORDER BY turn_id ASC`,
		userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get turns: %w", err)
	}
	defer rows.Close()

	var turns []domain.ConversationTurn
	for rows.Next() {
		var t domain.ConversationTurn
		if err := rows.Scan(&t.Role, &t.Content); err != nil {
			return nil, fmt.Errorf("failed to scan turn: %w", err)
		}
		turns = append(turns, t)
	}
	return turns, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

var _ Store = (*SQLiteStore)(nil)
