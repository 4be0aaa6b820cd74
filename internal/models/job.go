package models

import (
	"time"

	"github.com/google/uuid"
)

// PredictionJob is a queued submission waiting for a worker. The text stays
// with the session's controller and is looked up by sequence.
type PredictionJob struct {
	ID         uuid.UUID `json:"id"`
	SessionID  uuid.UUID `json:"session_id"`
	Sequence   int64     `json:"sequence"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

// CheckRecord is the audit row written for every finished cycle. The
// submitted text is never stored.
type CheckRecord struct {
	ID         uuid.UUID   `json:"id"`
	SessionID  uuid.UUID   `json:"session_id"`
	Sequence   int64       `json:"sequence"`
	State      State       `json:"state"`
	Failure    FailureKind `json:"failure,omitempty"`
	Label      Label       `json:"label,omitempty"`
	DurationMS int64       `json:"duration_ms"`
	Endpoint   string      `json:"endpoint"`
	CreatedAt  time.Time   `json:"created_at"`
}

type CheckStats struct {
	Total      int64                 `json:"total"`
	ByState    map[State]int64       `json:"by_state"`
	ByLabel    map[Label]int64       `json:"by_label"`
	ByFailure  map[FailureKind]int64 `json:"by_failure"`
	AvgLatency float64               `json:"avg_latency_ms"`
}

// WebSocket message types
type WSMessage struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

const WSTypeStateUpdate = "state_update"

// API Error response
type APIError struct {
	Code      string            `json:"code"`
	Message   string            `json:"message"`
	Fields    map[string]string `json:"fields,omitempty"`
	RequestID string            `json:"request_id"`
}

type ErrorResponse struct {
	Error APIError `json:"error"`
}

type SessionResponse struct {
	SessionID uuid.UUID `json:"session_id"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}
