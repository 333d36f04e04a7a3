package models

import (
	"strings"
	"time"
)

type AskRequest struct {
	Question string `json:"question"`
	TopK     int    `json:"top_k,omitempty"`
	Stream   bool   `json:"stream"`
}

// NormalizeAskRequest trims the question and applies protocol defaults.
func NormalizeAskRequest(req AskRequest) AskRequest {
	req.Question = strings.TrimSpace(req.Question)
	req.Stream = true
	if req.TopK < 0 {
		req.TopK = 0
	}
	return req
}

// ErrorInfo is the normalized body of a non-2xx backend response and the
// input to failure classification.
type ErrorInfo struct {
	Message    string         `json:"message"`
	ErrorCode  string         `json:"error_code"`
	TraceID    string         `json:"trace_id,omitempty"`
	Details    map[string]any `json:"details,omitempty"`
	RetryAfter int            `json:"retry_after,omitempty"` // seconds
}

type RefreshResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in,omitempty"`
	TokenType   string `json:"token_type,omitempty"`
}

// Credential is a bearer token together with its decoded expiry.
type Credential struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (c Credential) IsZero() bool {
	return c.Token == ""
}

// SessionState names the orchestrator's lifecycle states.
type SessionState string

const (
	SessionIdle       SessionState = "idle"
	SessionRequesting SessionState = "requesting"
	SessionStreaming  SessionState = "streaming"
	SessionRecovering SessionState = "recovering"
	SessionCompleted  SessionState = "completed"
	SessionFailed     SessionState = "failed"
)

// StreamStats is the diagnostic snapshot returned by GetStats.
type StreamStats struct {
	State         SessionState      `json:"state"`
	RequestID     string            `json:"request_id,omitempty"`
	TraceID       string            `json:"trace_id,omitempty"`
	CurrentPhase  ChunkType         `json:"current_phase,omitempty"`
	ChunksByType  map[ChunkType]int `json:"chunks_by_type"`
	ChunksTotal   int               `json:"chunks_total"`
	Attempts      int               `json:"attempts"`
	Recoveries    int               `json:"recoveries"`
	StartedAt     time.Time         `json:"started_at,omitempty"`
	DurationMs    int64             `json:"duration_ms"`
	Completed     bool              `json:"completed"`
	HasError      bool              `json:"has_error"`
	LastErrorCode string            `json:"last_error_code,omitempty"`
}
