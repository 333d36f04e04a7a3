package stream

import (
	"errors"
	"testing"

	"ask-insight/go-client/pkg/models"
)

func TestParseThinkingChunk(t *testing.T) {
	line := `{"type":"thinking","trace_id":"tr-1","timestamp":"2026-03-01T10:00:00Z","payload":{"content":"looking at schema","step":1}}`
	chunk, err := ParseChunk([]byte(line))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if chunk.Type != models.ChunkThinking || chunk.TraceID != "tr-1" {
		t.Fatalf("unexpected envelope: %+v", chunk)
	}
	if chunk.Thinking == nil || chunk.Thinking.Content != "looking at schema" || chunk.Thinking.Step != 1 {
		t.Fatalf("unexpected payload: %+v", chunk.Thinking)
	}
	if chunk.Timestamp.IsZero() {
		t.Fatalf("timestamp not parsed")
	}
}

func TestParseTechnicalView(t *testing.T) {
	line := `{"type":"technical_view","trace_id":"tr-1","payload":{"sql":"SELECT * FROM sales","assumptions":["fiscal year"],"is_safe":true,"policy_hash":"abc"}}`
	chunk, err := ParseChunk([]byte(line))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	tv := chunk.TechnicalView
	if tv == nil || tv.SQL != "SELECT * FROM sales" || !tv.IsSafe || len(tv.Assumptions) != 1 {
		t.Fatalf("unexpected payload: %+v", tv)
	}
}

func TestParseDataObjectAndBareArray(t *testing.T) {
	object := `{"type":"data","trace_id":"tr-1","payload":{"rows":[{"region":"north","total":12}]}}`
	bare := `{"type":"data","trace_id":"tr-1","payload":[{"region":"south","total":7}]}`

	for _, line := range []string{object, bare} {
		chunk, err := ParseChunk([]byte(line))
		if err != nil {
			t.Fatalf("parse failed for %s: %v", line, err)
		}
		if chunk.Data == nil || len(chunk.Data.Rows) != 1 {
			t.Fatalf("unexpected rows: %+v", chunk.Data)
		}
	}
}

func TestParseErrorAndEnd(t *testing.T) {
	chunk, err := ParseChunk([]byte(`{"type":"error","trace_id":"tr-1","payload":{"message":"denied","error_code":"POLICY_VIOLATION"}}`))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if chunk.Error == nil || chunk.Error.ErrorCode != "POLICY_VIOLATION" {
		t.Fatalf("unexpected error payload: %+v", chunk.Error)
	}

	chunk, err = ParseChunk([]byte(`{"type":"end","trace_id":"tr-1","payload":{"total_chunks":5}}`))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if chunk.End == nil || chunk.End.TotalChunks != 5 {
		t.Fatalf("unexpected end payload: %+v", chunk.End)
	}
}

func TestParseRejectsUnknownType(t *testing.T) {
	_, err := ParseChunk([]byte(`{"type":"status","trace_id":"tr-1","payload":{}}`))
	if !errors.Is(err, ErrUnknownChunkType) {
		t.Fatalf("expected ErrUnknownChunkType, got %v", err)
	}
}

func TestParseRejectsMalformedLine(t *testing.T) {
	_, err := ParseChunk([]byte(`{"type":"thinking","trace`))
	if !errors.Is(err, ErrMalformedChunk) {
		t.Fatalf("expected ErrMalformedChunk, got %v", err)
	}
}

func TestParseEmptyLine(t *testing.T) {
	_, err := ParseChunk([]byte("   \n"))
	if !errors.Is(err, ErrEmptyLine) {
		t.Fatalf("expected ErrEmptyLine, got %v", err)
	}
}

func TestParseBadTimestamp(t *testing.T) {
	_, err := ParseChunk([]byte(`{"type":"thinking","trace_id":"tr-1","timestamp":"yesterday","payload":{"content":"x"}}`))
	if !errors.Is(err, ErrMalformedChunk) {
		t.Fatalf("expected ErrMalformedChunk, got %v", err)
	}
}
