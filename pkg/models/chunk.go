package models

import "time"

// ChunkType identifies the phase a stream chunk belongs to. Wire values are
// lowercase; the set is closed and ordered by the protocol contract.
type ChunkType string

const (
	ChunkThinking      ChunkType = "thinking"
	ChunkTechnicalView ChunkType = "technical_view"
	ChunkData          ChunkType = "data"
	ChunkBusinessView  ChunkType = "business_view"
	ChunkError         ChunkType = "error"
	ChunkEnd           ChunkType = "end"
)

// AllChunkTypes lists every legal chunk type in contractual order.
func AllChunkTypes() []ChunkType {
	return []ChunkType{
		ChunkThinking,
		ChunkTechnicalView,
		ChunkData,
		ChunkBusinessView,
		ChunkError,
		ChunkEnd,
	}
}

func (t ChunkType) Valid() bool {
	switch t {
	case ChunkThinking, ChunkTechnicalView, ChunkData, ChunkBusinessView, ChunkError, ChunkEnd:
		return true
	}
	return false
}

// Chunk is one parsed NDJSON line. Exactly one payload pointer is non-nil
// and it always matches Type; the parser guarantees this.
type Chunk struct {
	Type      ChunkType `json:"type"`
	TraceID   string    `json:"trace_id"`
	Timestamp time.Time `json:"timestamp"`

	Thinking      *ThinkingPayload      `json:"thinking,omitempty"`
	TechnicalView *TechnicalViewPayload `json:"technical_view,omitempty"`
	Data          *DataPayload          `json:"data,omitempty"`
	BusinessView  *BusinessViewPayload  `json:"business_view,omitempty"`
	Error         *ErrorPayload         `json:"error,omitempty"`
	End           *EndPayload           `json:"end,omitempty"`
}

type ThinkingPayload struct {
	Content string `json:"content"`
	Step    int    `json:"step,omitempty"`
}

type TechnicalViewPayload struct {
	SQL         string   `json:"sql"`
	Assumptions []string `json:"assumptions"`
	IsSafe      bool     `json:"is_safe"`
	PolicyHash  string   `json:"policy_hash,omitempty"`
}

type DataPayload struct {
	Rows []map[string]any `json:"rows"`
}

type BusinessViewPayload struct {
	Text    string         `json:"text"`
	Metrics map[string]any `json:"metrics,omitempty"`
	Chart   map[string]any `json:"chart,omitempty"`
}

type ErrorPayload struct {
	Message   string         `json:"message"`
	ErrorCode string         `json:"error_code"`
	Details   map[string]any `json:"details,omitempty"`
}

type EndPayload struct {
	Message     string `json:"message,omitempty"`
	TotalChunks int    `json:"total_chunks,omitempty"`
}
