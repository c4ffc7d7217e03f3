package domain

import (
	"encoding/json"
	"time"
)

// QueryRun is the persisted audit record for one orchestration run.
type QueryRun struct {
	QueryID    string          `json:"query_id"`
	UserID     string          `json:"user_id"`
	QueryText  string          `json:"query_text"`
	Status     QueryStatus     `json:"status"`
	CacheHit   bool            `json:"cache_hit"`
	DurationMs int64           `json:"duration_ms"`
	CreatedAt  time.Time       `json:"created_at"`
	EndedAt    *time.Time      `json:"ended_at,omitempty"`
	Error      json.RawMessage `json:"error,omitempty"`
}

// Event is one persisted pipeline audit event.
type Event struct {
	EventID string          `json:"event_id"`
	QueryID string          `json:"query_id"`
	Ts      int64           `json:"ts"`
	Type    EventType       `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}
