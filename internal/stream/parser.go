package stream

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"ask-insight/go-client/pkg/models"
)

var (
	ErrEmptyLine        = errors.New("empty stream line")
	ErrMalformedChunk   = errors.New("malformed chunk envelope")
	ErrUnknownChunkType = errors.New("unknown chunk type")
)

type envelope struct {
	Type      string          `json:"type"`
	TraceID   string          `json:"trace_id"`
	Timestamp string          `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
}

// ParseChunk decodes one NDJSON line into a typed chunk. The payload is
// decoded per tag; a tag outside the closed set is a protocol defect, not
// a value to pass through.
func ParseChunk(line []byte) (models.Chunk, error) {
	trimmed := strings.TrimSpace(string(line))
	if trimmed == "" {
		return models.Chunk{}, ErrEmptyLine
	}

	var env envelope
	if err := json.Unmarshal([]byte(trimmed), &env); err != nil {
		return models.Chunk{}, fmt.Errorf("%w: %v", ErrMalformedChunk, err)
	}

	chunk := models.Chunk{
		Type:    models.ChunkType(env.Type),
		TraceID: env.TraceID,
	}
	if !chunk.Type.Valid() {
		return models.Chunk{}, fmt.Errorf("%w: %q", ErrUnknownChunkType, env.Type)
	}
	if env.Timestamp != "" {
		ts, err := time.Parse(time.RFC3339Nano, env.Timestamp)
		if err != nil {
			return models.Chunk{}, fmt.Errorf("%w: bad timestamp %q", ErrMalformedChunk, env.Timestamp)
		}
		chunk.Timestamp = ts
	}

	if err := decodePayload(&chunk, env.Payload); err != nil {
		return models.Chunk{}, err
	}
	return chunk, nil
}

func decodePayload(chunk *models.Chunk, raw json.RawMessage) error {
	if len(raw) == 0 {
		raw = json.RawMessage("{}")
	}
	switch chunk.Type {
	case models.ChunkThinking:
		var p models.ThinkingPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return payloadError(chunk.Type, err)
		}
		chunk.Thinking = &p
	case models.ChunkTechnicalView:
		var p models.TechnicalViewPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return payloadError(chunk.Type, err)
		}
		chunk.TechnicalView = &p
	case models.ChunkData:
		p, err := decodeDataPayload(raw)
		if err != nil {
			return payloadError(chunk.Type, err)
		}
		chunk.Data = p
	case models.ChunkBusinessView:
		var p models.BusinessViewPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return payloadError(chunk.Type, err)
		}
		chunk.BusinessView = &p
	case models.ChunkError:
		var p models.ErrorPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return payloadError(chunk.Type, err)
		}
		chunk.Error = &p
	case models.ChunkEnd:
		var p models.EndPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return payloadError(chunk.Type, err)
		}
		chunk.End = &p
	default:
		return fmt.Errorf("%w: %q", ErrUnknownChunkType, chunk.Type)
	}
	return nil
}

// decodeDataPayload accepts both {"rows":[...]} and a bare row array; the
// backend has emitted both shapes.
func decodeDataPayload(raw json.RawMessage) (*models.DataPayload, error) {
	trimmed := strings.TrimSpace(string(raw))
	if strings.HasPrefix(trimmed, "[") {
		var rows []map[string]any
		if err := json.Unmarshal(raw, &rows); err != nil {
			return nil, err
		}
		return &models.DataPayload{Rows: rows}, nil
	}
	var p models.DataPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func payloadError(t models.ChunkType, err error) error {
	return fmt.Errorf("%w: %s payload: %v", ErrMalformedChunk, t, err)
}
