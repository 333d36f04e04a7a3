package stream

import (
	"fmt"
	"strings"

	"ask-insight/go-client/pkg/models"
)

// Rejection reasons reported by the validator.
const (
	ReasonFirstChunkNotThinking = "FIRST_CHUNK_NOT_THINKING"
	ReasonTraceIDMismatch       = "TRACE_ID_MISMATCH"
	ReasonInvalidTransition     = "INVALID_TRANSITION"
	ReasonIncompleteStream      = "INCOMPLETE_STREAM"
)

// ValidationError rejects one chunk against the phase contract. ExpectedNext
// lists the tags that would have been accepted instead.
type ValidationError struct {
	Reason       string
	Message      string
	ExpectedNext []models.ChunkType
}

func (e *ValidationError) Error() string {
	return e.Message
}

// transitions maps the current phase to the set of legal next tags. The
// empty phase means no chunk has been accepted yet. End is terminal.
var transitions = map[models.ChunkType][]models.ChunkType{
	"":                        {models.ChunkThinking},
	models.ChunkThinking:      {models.ChunkTechnicalView, models.ChunkError, models.ChunkEnd},
	models.ChunkTechnicalView: {models.ChunkData, models.ChunkBusinessView, models.ChunkError, models.ChunkEnd},
	models.ChunkData:          {models.ChunkBusinessView, models.ChunkError, models.ChunkEnd},
	models.ChunkBusinessView:  {models.ChunkError, models.ChunkEnd},
	models.ChunkError:         {models.ChunkEnd},
	models.ChunkEnd:           {},
}

// requiredTags are the tags a fully formed answer stream carries; used for
// diagnostics only, never for acceptance.
var requiredTags = []models.ChunkType{
	models.ChunkThinking,
	models.ChunkTechnicalView,
	models.ChunkData,
	models.ChunkBusinessView,
	models.ChunkEnd,
}

// Validator enforces the phase-transition contract for one session. It is
// exclusively owned by its session and not safe for concurrent use.
type Validator struct {
	phase    models.ChunkType
	traceID  string
	chunks   []models.Chunk
	complete bool
	hasError bool
}

func NewValidator() *Validator {
	return &Validator{}
}

// Reset returns the validator to its initial state for a fresh session.
func (v *Validator) Reset() {
	v.phase = ""
	v.traceID = ""
	v.chunks = nil
	v.complete = false
	v.hasError = false
}

// Validate accepts or rejects the next chunk. On acceptance the chunk is
// appended and the phase advances; rejection leaves all state untouched.
func (v *Validator) Validate(chunk models.Chunk) error {
	if len(v.chunks) == 0 && chunk.Type != models.ChunkThinking {
		return &ValidationError{
			Reason:       ReasonFirstChunkNotThinking,
			Message:      fmt.Sprintf("first chunk must be thinking, got %s", chunk.Type),
			ExpectedNext: []models.ChunkType{models.ChunkThinking},
		}
	}

	if v.traceID == "" {
		v.traceID = chunk.TraceID
	} else if chunk.TraceID != v.traceID {
		return &ValidationError{
			Reason:  ReasonTraceIDMismatch,
			Message: fmt.Sprintf("trace id mismatch: session %s, chunk %s", v.traceID, chunk.TraceID),
		}
	}

	allowed := transitions[v.phase]
	if !containsType(allowed, chunk.Type) {
		from := string(v.phase)
		if from == "" {
			from = "none"
		}
		return &ValidationError{
			Reason:       ReasonInvalidTransition,
			Message:      fmt.Sprintf("invalid transition: %s -> %s", from, chunk.Type),
			ExpectedNext: append([]models.ChunkType(nil), allowed...),
		}
	}

	v.chunks = append(v.chunks, chunk)
	v.phase = chunk.Type
	switch chunk.Type {
	case models.ChunkEnd:
		v.complete = true
	case models.ChunkError:
		v.hasError = true
	}
	return nil
}

// CompletionCheck reports whether the accepted sequence forms a complete
// stream: terminated by exactly one end chunk and opened by thinking.
func (v *Validator) CompletionCheck() error {
	seen := v.observedTags()
	ends := 0
	for _, c := range v.chunks {
		if c.Type == models.ChunkEnd {
			ends++
		}
	}
	if v.complete && seen[models.ChunkThinking] && ends == 1 {
		return nil
	}

	missing := make([]string, 0, 2)
	if !seen[models.ChunkThinking] {
		missing = append(missing, string(models.ChunkThinking))
	}
	if ends == 0 {
		missing = append(missing, string(models.ChunkEnd))
	}
	return &ValidationError{
		Reason:  ReasonIncompleteStream,
		Message: fmt.Sprintf("incomplete stream: missing %s", strings.Join(missing, ", ")),
	}
}

// MissingTags lists required tags never observed this session. Diagnostic
// only; error-terminated streams legitimately miss later phases.
func (v *Validator) MissingTags() []models.ChunkType {
	seen := v.observedTags()
	missing := make([]models.ChunkType, 0, len(requiredTags))
	for _, tag := range requiredTags {
		if !seen[tag] {
			missing = append(missing, tag)
		}
	}
	return missing
}

func (v *Validator) Phase() models.ChunkType { return v.phase }
func (v *Validator) TraceID() string         { return v.traceID }
func (v *Validator) IsComplete() bool        { return v.complete }
func (v *Validator) HasError() bool          { return v.hasError }

// Chunks returns a copy of the accepted chunks in arrival order.
func (v *Validator) Chunks() []models.Chunk {
	return append([]models.Chunk(nil), v.chunks...)
}

func (v *Validator) observedTags() map[models.ChunkType]bool {
	seen := make(map[models.ChunkType]bool, len(v.chunks))
	for _, c := range v.chunks {
		seen[c.Type] = true
	}
	return seen
}

func containsType(list []models.ChunkType, t models.ChunkType) bool {
	for _, item := range list {
		if item == t {
			return true
		}
	}
	return false
}
