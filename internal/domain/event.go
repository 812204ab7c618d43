package domain

import (
	"time"
)

// TriageEventKind categorizes audit events emitted by a triage session.
type TriageEventKind string

const (
	EventTransition     TriageEventKind = "transition"
	EventReset          TriageEventKind = "reset"
	EventEmergency      TriageEventKind = "emergency"
	EventGatewayFailure TriageEventKind = "gateway_failure"
)

// TriageEvent is a persisted audit record. It never carries message text.
type TriageEvent struct {
	ID           string          `json:"id"`
	UserID       string          `json:"user_id"`
	SessionID    string          `json:"session_id"`
	Kind         TriageEventKind `json:"kind"`
	FromPhase    string          `json:"from_phase,omitempty"`
	ToPhase      string          `json:"to_phase,omitempty"`
	WarningCount int             `json:"warning_count"`
	Detail       string          `json:"detail,omitempty"`
	RequestID    string          `json:"request_id,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
}
