package analytics

import "time"

type EventType string

const (
	EventAsk  EventType = "ask"
	EventRank EventType = "rank"
)

// Status values of an ask event.
const (
	StatusAnswered = "answered"
	StatusFailed   = "failed"
	StatusRanked   = "ranked"
)

// AskEvent records one question handled by the engine.
type AskEvent struct {
	Type               EventType `json:"type"`
	SessionID          string    `json:"session_id"`
	RequestID          string    `json:"request_id,omitempty"`
	Question           string    `json:"question"`
	NormalizedQuestion string    `json:"normalized_question"`
	Intent             string    `json:"intent"`
	ResultCount        int       `json:"result_count"`
	TopLabel           string    `json:"top_label,omitempty"`
	TopScore           float64   `json:"top_score,omitempty"`
	NoLocalMatch       bool      `json:"no_local_match"`
	Status             string    `json:"status"`
	ErrorKind          string    `json:"error_kind,omitempty"`
	Attempts           int       `json:"attempts"`
	CacheHit           bool      `json:"cache_hit"`
	LatencyMs          int64     `json:"latency_ms"`
	Timestamp          time.Time `json:"timestamp"`
}
