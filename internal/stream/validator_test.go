package stream

import (
	"errors"
	"strings"
	"testing"
	"time"

	"ask-insight/go-client/pkg/models"
)

func testChunk(t models.ChunkType, traceID string) models.Chunk {
	c := models.Chunk{Type: t, TraceID: traceID, Timestamp: time.Now().UTC()}
	switch t {
	case models.ChunkThinking:
		c.Thinking = &models.ThinkingPayload{Content: "analyzing question"}
	case models.ChunkTechnicalView:
		c.TechnicalView = &models.TechnicalViewPayload{SQL: "SELECT 1", IsSafe: true}
	case models.ChunkData:
		c.Data = &models.DataPayload{Rows: []map[string]any{{"n": 1}}}
	case models.ChunkBusinessView:
		c.BusinessView = &models.BusinessViewPayload{Text: "one row"}
	case models.ChunkError:
		c.Error = &models.ErrorPayload{Message: "boom", ErrorCode: "QUERY_FAILED"}
	case models.ChunkEnd:
		c.End = &models.EndPayload{}
	}
	return c
}

func TestFullSequenceAccepted(t *testing.T) {
	v := NewValidator()
	sequence := []models.ChunkType{
		models.ChunkThinking,
		models.ChunkTechnicalView,
		models.ChunkData,
		models.ChunkBusinessView,
		models.ChunkEnd,
	}
	for _, tag := range sequence {
		if err := v.Validate(testChunk(tag, "trace-1")); err != nil {
			t.Fatalf("chunk %s rejected: %v", tag, err)
		}
	}
	if !v.IsComplete() {
		t.Fatalf("expected complete session")
	}
	if err := v.CompletionCheck(); err != nil {
		t.Fatalf("completion check failed: %v", err)
	}
	if missing := v.MissingTags(); len(missing) != 0 {
		t.Fatalf("expected no missing tags, got %v", missing)
	}
	if got := len(v.Chunks()); got != 5 {
		t.Fatalf("expected 5 accepted chunks, got %d", got)
	}
}

func TestFirstChunkMustBeThinking(t *testing.T) {
	v := NewValidator()
	err := v.Validate(testChunk(models.ChunkData, "trace-1"))
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if verr.Reason != ReasonFirstChunkNotThinking {
		t.Fatalf("unexpected reason: %s", verr.Reason)
	}
	if len(verr.ExpectedNext) != 1 || verr.ExpectedNext[0] != models.ChunkThinking {
		t.Fatalf("unexpected expected set: %v", verr.ExpectedNext)
	}
}

func TestInvalidTransitionThinkingToData(t *testing.T) {
	v := NewValidator()
	if err := v.Validate(testChunk(models.ChunkThinking, "trace-1")); err != nil {
		t.Fatalf("thinking rejected: %v", err)
	}
	err := v.Validate(testChunk(models.ChunkData, "trace-1"))
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if verr.Reason != ReasonInvalidTransition {
		t.Fatalf("unexpected reason: %s", verr.Reason)
	}
	if !strings.Contains(verr.Message, "invalid transition: thinking -> data") {
		t.Fatalf("unexpected message: %q", verr.Message)
	}
	want := []models.ChunkType{models.ChunkTechnicalView, models.ChunkError, models.ChunkEnd}
	if len(verr.ExpectedNext) != len(want) {
		t.Fatalf("unexpected expected set: %v", verr.ExpectedNext)
	}
	for i, tag := range want {
		if verr.ExpectedNext[i] != tag {
			t.Fatalf("expected set %v, got %v", want, verr.ExpectedNext)
		}
	}
	// Rejection leaves the session untouched.
	if v.Phase() != models.ChunkThinking || len(v.Chunks()) != 1 {
		t.Fatalf("rejection mutated session state")
	}
}

func TestTraceIDMismatchNeverOverwrites(t *testing.T) {
	v := NewValidator()
	if err := v.Validate(testChunk(models.ChunkThinking, "trace-1")); err != nil {
		t.Fatalf("thinking rejected: %v", err)
	}
	err := v.Validate(testChunk(models.ChunkTechnicalView, "trace-2"))
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if verr.Reason != ReasonTraceIDMismatch {
		t.Fatalf("unexpected reason: %s", verr.Reason)
	}
	if v.TraceID() != "trace-1" {
		t.Fatalf("session trace id overwritten: %s", v.TraceID())
	}
}

func TestErrorThenEnd(t *testing.T) {
	v := NewValidator()
	for _, tag := range []models.ChunkType{models.ChunkThinking, models.ChunkError, models.ChunkEnd} {
		if err := v.Validate(testChunk(tag, "trace-1")); err != nil {
			t.Fatalf("chunk %s rejected: %v", tag, err)
		}
	}
	if !v.HasError() || !v.IsComplete() {
		t.Fatalf("expected hasError and isComplete, got %v %v", v.HasError(), v.IsComplete())
	}
}

func TestNothingAfterEnd(t *testing.T) {
	v := NewValidator()
	for _, tag := range []models.ChunkType{models.ChunkThinking, models.ChunkEnd} {
		if err := v.Validate(testChunk(tag, "trace-1")); err != nil {
			t.Fatalf("chunk %s rejected: %v", tag, err)
		}
	}
	err := v.Validate(testChunk(models.ChunkThinking, "trace-1"))
	var verr *ValidationError
	if !errors.As(err, &verr) || verr.Reason != ReasonInvalidTransition {
		t.Fatalf("expected terminal-state rejection, got %v", err)
	}
	if len(verr.ExpectedNext) != 0 {
		t.Fatalf("end is terminal, expected empty set, got %v", verr.ExpectedNext)
	}
}

func TestSecondErrorRejected(t *testing.T) {
	v := NewValidator()
	for _, tag := range []models.ChunkType{models.ChunkThinking, models.ChunkError} {
		if err := v.Validate(testChunk(tag, "trace-1")); err != nil {
			t.Fatalf("chunk %s rejected: %v", tag, err)
		}
	}
	if err := v.Validate(testChunk(models.ChunkError, "trace-1")); err == nil {
		t.Fatalf("expected second error chunk rejected")
	}
}

func TestCompletionCheckIncomplete(t *testing.T) {
	v := NewValidator()
	if err := v.Validate(testChunk(models.ChunkThinking, "trace-1")); err != nil {
		t.Fatalf("thinking rejected: %v", err)
	}
	err := v.CompletionCheck()
	var verr *ValidationError
	if !errors.As(err, &verr) || verr.Reason != ReasonIncompleteStream {
		t.Fatalf("expected incomplete stream, got %v", err)
	}
	if !strings.Contains(verr.Message, "end") {
		t.Fatalf("expected missing end named, got %q", verr.Message)
	}
}

func TestMissingTagsAfterErrorTermination(t *testing.T) {
	v := NewValidator()
	for _, tag := range []models.ChunkType{models.ChunkThinking, models.ChunkError, models.ChunkEnd} {
		if err := v.Validate(testChunk(tag, "trace-1")); err != nil {
			t.Fatalf("chunk %s rejected: %v", tag, err)
		}
	}
	missing := v.MissingTags()
	want := map[models.ChunkType]bool{
		models.ChunkTechnicalView: true,
		models.ChunkData:          true,
		models.ChunkBusinessView:  true,
	}
	if len(missing) != len(want) {
		t.Fatalf("unexpected missing tags: %v", missing)
	}
	for _, tag := range missing {
		if !want[tag] {
			t.Fatalf("unexpected missing tag %s", tag)
		}
	}
}

func TestResetClearsState(t *testing.T) {
	v := NewValidator()
	for _, tag := range []models.ChunkType{models.ChunkThinking, models.ChunkEnd} {
		if err := v.Validate(testChunk(tag, "trace-1")); err != nil {
			t.Fatalf("chunk %s rejected: %v", tag, err)
		}
	}
	v.Reset()
	if v.Phase() != "" || v.TraceID() != "" || v.IsComplete() || v.HasError() || len(v.Chunks()) != 0 {
		t.Fatalf("reset left state behind")
	}
	if err := v.Validate(testChunk(models.ChunkThinking, "trace-9")); err != nil {
		t.Fatalf("fresh session rejected thinking: %v", err)
	}
}
