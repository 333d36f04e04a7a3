package session

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"ask-insight/go-client/internal/auth"
	"ask-insight/go-client/internal/classify"
	"ask-insight/go-client/internal/ids"
	"ask-insight/go-client/internal/metrics"
	"ask-insight/go-client/internal/platform/ratelimiter"
	"ask-insight/go-client/internal/stream"
	"ask-insight/go-client/pkg/models"
)

var (
	ErrSessionActive = errors.New("a session is already running")
	ErrCancelled     = errors.New("session cancelled")
)

const (
	maxLineBytes         = 4 << 20
	defaultRecoveryDelay = 2 * time.Second
	limiterPollInterval  = 200 * time.Millisecond

	requestIDHeader = "X-Request-ID"
)

// Callback receives each accepted chunk in exact wire order.
type Callback func(chunk models.Chunk)

// Failure is the terminal error of a session, carrying the classifier's
// verdict so the caller can present the right affordance.
type Failure struct {
	Decision classify.Decision
	Err      error
}

func (f *Failure) Error() string {
	if f.Err != nil {
		return fmt.Sprintf("session failed (%s): %v", f.Decision.Code, f.Err)
	}
	return fmt.Sprintf("session failed (%s): %s", f.Decision.Code, f.Decision.UserMessage)
}

func (f *Failure) Unwrap() error { return f.Err }

// Result describes how a session ended.
type Result struct {
	Completed  bool
	HasError   bool
	TraceID    string
	RequestID  string
	ErrorChunk *models.ErrorPayload
	// Diagnostic reports a completion-check defect on an otherwise
	// terminated stream; it never triggers a retry.
	Diagnostic string
}

// TokenSource is the slice of the credential manager the orchestrator
// depends on.
type TokenSource interface {
	EnsureValid(ctx context.Context) (models.Credential, error)
}

// Config wires one orchestrator. Tokens and Classifier are shared across
// concurrent sessions; everything else is per-orchestrator.
type Config struct {
	AskURL     string
	HTTPClient *http.Client
	Tokens     TokenSource
	Classifier *classify.Classifier
	Logger     *slog.Logger
	Metrics    *metrics.StreamMetrics
	Limiter    *ratelimiter.EndpointLimiter

	// RecoveryEnabled turns on full-restart recovery after transport
	// interruptions. The protocol has no resume primitive; recovery is
	// always a brand-new session under the same request id.
	RecoveryEnabled bool
	RecoveryDelay   time.Duration
}

// Orchestrator drives one streaming question/answer exchange at a time.
// Each concurrent question gets its own Orchestrator; instances share only
// the injected token manager and classifier.
type Orchestrator struct {
	askURL        string
	client        *http.Client
	tokens        TokenSource
	classifier    *classify.Classifier
	logger        *slog.Logger
	metrics       *metrics.StreamMetrics
	limiter       *ratelimiter.EndpointLimiter
	recovery      bool
	recoveryDelay time.Duration

	mu           sync.Mutex
	state        models.SessionState
	validator    *stream.Validator
	requestID    string
	traceID      string
	chunksByType map[models.ChunkType]int
	attempts     int
	recoveries   int
	startedAt    time.Time
	endedAt      time.Time
	lastErrCode  string
	cancel       context.CancelFunc
}

func New(cfg Config) *Orchestrator {
	o := &Orchestrator{
		askURL:        cfg.AskURL,
		client:        cfg.HTTPClient,
		tokens:        cfg.Tokens,
		classifier:    cfg.Classifier,
		logger:        cfg.Logger,
		metrics:       cfg.Metrics,
		limiter:       cfg.Limiter,
		recovery:      cfg.RecoveryEnabled,
		recoveryDelay: cfg.RecoveryDelay,
		state:         models.SessionIdle,
		validator:     stream.NewValidator(),
		chunksByType:  make(map[models.ChunkType]int),
	}
	if o.client == nil {
		// No overall timeout: the answer stream is long-lived and
		// cancellation runs through the request context.
		o.client = &http.Client{}
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	if o.recoveryDelay <= 0 {
		o.recoveryDelay = defaultRecoveryDelay
	}
	return o
}

// Start runs one complete session, forwarding each accepted chunk to
// onChunk in wire order, and blocks until the session reaches a terminal
// state. Retries and recovery restarts happen inside this call.
func (o *Orchestrator) Start(ctx context.Context, req models.AskRequest, onChunk Callback) (Result, error) {
	req = models.NormalizeAskRequest(req)

	requestID, err := ids.NewRequestID()
	if err != nil {
		return Result{}, err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	o.mu.Lock()
	if o.state == models.SessionRequesting || o.state == models.SessionStreaming || o.state == models.SessionRecovering {
		o.mu.Unlock()
		cancel()
		return Result{}, ErrSessionActive
	}
	o.resetLocked()
	o.requestID = requestID
	o.startedAt = time.Now()
	o.state = models.SessionRequesting
	o.cancel = cancel
	o.mu.Unlock()

	o.metrics.SessionStarted()
	result, err := o.run(ctx, req, onChunk)

	o.mu.Lock()
	o.endedAt = time.Now()
	if err != nil {
		o.state = models.SessionFailed
	} else {
		o.state = models.SessionCompleted
	}
	o.cancel = nil
	duration := o.endedAt.Sub(o.startedAt).Seconds()
	o.mu.Unlock()

	if err != nil {
		o.metrics.SessionFailed(duration)
	} else {
		o.metrics.SessionCompleted(duration)
		if o.classifier != nil {
			o.classifier.RecordSuccess(requestID)
		}
	}
	result.RequestID = requestID
	return result, err
}

// Cancel aborts the running session at the next read boundary. A
// cancelled session is terminal; recovery is suppressed.
func (o *Orchestrator) Cancel() {
	o.mu.Lock()
	cancel := o.cancel
	o.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// GetStats returns a diagnostic snapshot; safe to call at any time.
func (o *Orchestrator) GetStats() models.StreamStats {
	o.mu.Lock()
	defer o.mu.Unlock()

	counts := make(map[models.ChunkType]int, len(o.chunksByType))
	total := 0
	for tag, n := range o.chunksByType {
		counts[tag] = n
		total += n
	}
	stats := models.StreamStats{
		State:         o.state,
		RequestID:     o.requestID,
		TraceID:       o.traceID,
		CurrentPhase:  o.validator.Phase(),
		ChunksByType:  counts,
		ChunksTotal:   total,
		Attempts:      o.attempts,
		Recoveries:    o.recoveries,
		StartedAt:     o.startedAt,
		Completed:     o.validator.IsComplete(),
		HasError:      o.validator.HasError(),
		LastErrorCode: o.lastErrCode,
	}
	switch {
	case !o.endedAt.IsZero():
		stats.DurationMs = o.endedAt.Sub(o.startedAt).Milliseconds()
	case !o.startedAt.IsZero():
		stats.DurationMs = time.Since(o.startedAt).Milliseconds()
	}
	return stats
}

func (o *Orchestrator) resetLocked() {
	o.validator.Reset()
	o.traceID = ""
	o.chunksByType = make(map[models.ChunkType]int)
	o.attempts = 0
	o.recoveries = 0
	o.lastErrCode = ""
	o.endedAt = time.Time{}
}

// run is the retry/recovery loop around one logical request. Every
// iteration starts a brand-new session: there is no resumption.
func (o *Orchestrator) run(ctx context.Context, req models.AskRequest, onChunk Callback) (Result, error) {
	for {
		o.setState(models.SessionRequesting)

		resp, info, err := o.issueRequest(ctx, req)
		if err != nil {
			return Result{}, err
		}
		if info != nil {
			decision := o.decide(ctx, *info)
			if ctx.Err() != nil {
				return Result{}, fmt.Errorf("%w: %v", ErrCancelled, ctx.Err())
			}
			if !decision.ShouldRetry {
				return Result{}, &Failure{Decision: decision}
			}
			o.metrics.Retry(decision.Code)
			o.logger.Info("request retry scheduled",
				"request_id", o.currentRequestID(),
				"code", decision.Code,
				"delay_ms", decision.RetryAfterMs,
				"attempt", decision.Attempt)
			if err := sleepCtx(ctx, time.Duration(decision.RetryAfterMs)*time.Millisecond); err != nil {
				return Result{}, err
			}
			continue
		}

		o.setState(models.SessionStreaming)
		result, err := o.consume(ctx, resp.Body, onChunk)
		resp.Body.Close()
		if err == nil {
			return result, nil
		}

		var ferr *Failure
		if errors.As(err, &ferr) {
			return Result{}, err
		}
		if ctx.Err() != nil {
			return Result{}, fmt.Errorf("%w: %v", ErrCancelled, ctx.Err())
		}

		// Transport-level interruption mid-stream.
		if !o.recovery || !isRecoverable(err) {
			o.setLastError(classify.CodeConnectionLost)
			return Result{}, &Failure{
				Decision: classify.Decision{
					Code:           classify.CodeConnectionLost,
					UserMessage:    classify.UserMessage(classify.CodeConnectionLost, err.Error()),
					RequiredAction: classify.ActionWait,
				},
				Err: err,
			}
		}
		decision := o.decide(ctx, models.ErrorInfo{
			ErrorCode: classify.CodeStreamInterrupted,
			Message:   err.Error(),
		})
		if !decision.ShouldRetry {
			return Result{}, &Failure{Decision: decision, Err: err}
		}

		o.setState(models.SessionRecovering)
		o.metrics.Recovery()
		o.logger.Warn("stream interrupted, restarting session",
			"request_id", o.currentRequestID(),
			"error", err,
			"delay", o.recoveryDelay)
		if err := sleepCtx(ctx, o.recoveryDelay); err != nil {
			return Result{}, err
		}

		// The restarted session is brand new; partial caller state from
		// before the restart is invalid.
		o.mu.Lock()
		o.validator.Reset()
		o.traceID = ""
		o.chunksByType = make(map[models.ChunkType]int)
		o.recoveries++
		o.mu.Unlock()
	}
}

// issueRequest performs the POST and normalizes a non-2xx body into
// ErrorInfo. resp is non-nil only on 2xx.
func (o *Orchestrator) issueRequest(ctx context.Context, req models.AskRequest) (*http.Response, *models.ErrorInfo, error) {
	if err := o.waitLimiter(ctx); err != nil {
		return nil, nil, err
	}

	cred, err := o.tokens.EnsureValid(ctx)
	if err != nil {
		return nil, nil, o.credentialFailure(err)
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, nil, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, o.askURL, bytes.NewReader(body))
	if err != nil {
		return nil, nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/x-ndjson")
	httpReq.Header.Set("Authorization", "Bearer "+cred.Token)
	httpReq.Header.Set(requestIDHeader, o.currentRequestID())

	o.mu.Lock()
	o.attempts++
	o.mu.Unlock()

	resp, err := o.client.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, nil, fmt.Errorf("%w: %v", ErrCancelled, ctx.Err())
		}
		// Pre-stream transport failure goes through the generic table.
		return nil, &models.ErrorInfo{
			ErrorCode: classify.CodeConnectionLost,
			Message:   err.Error(),
		}, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		info := decodeErrorBody(resp)
		resp.Body.Close()
		return nil, &info, nil
	}
	return resp, nil, nil
}

// consume reads the NDJSON body line by line until a terminal chunk, a
// protocol violation or a transport error.
func (o *Orchestrator) consume(ctx context.Context, body io.Reader, onChunk Callback) (Result, error) {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)

	var result Result
	for scanner.Scan() {
		if ctx.Err() != nil {
			return Result{}, fmt.Errorf("%w: %v", ErrCancelled, ctx.Err())
		}
		line := scanner.Bytes()
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}

		chunk, err := stream.ParseChunk(line)
		if err != nil {
			return Result{}, o.protocolFailure(classify.CodeInvalidChunk, err)
		}

		if err := o.acceptChunk(chunk); err != nil {
			return Result{}, err
		}
		onChunk(chunk)

		// Terminal chunks stop consumption immediately; nothing may be
		// forwarded after them.
		if chunk.Type == models.ChunkError {
			result.HasError = true
			result.ErrorChunk = chunk.Error
			o.noteErrorCode(chunk.Error)
			break
		}
		if chunk.Type == models.ChunkEnd {
			break
		}
	}
	if err := scanner.Err(); err != nil {
		if ctx.Err() != nil {
			return Result{}, fmt.Errorf("%w: %v", ErrCancelled, ctx.Err())
		}
		return Result{}, err
	}

	o.mu.Lock()
	result.TraceID = o.validator.TraceID()
	result.Completed = o.validator.IsComplete()
	result.HasError = result.HasError || o.validator.HasError()
	completionErr := error(nil)
	if !result.HasError {
		completionErr = o.validator.CompletionCheck()
	}
	o.mu.Unlock()

	if completionErr != nil {
		// The stream already terminated; a completion defect is reported,
		// never retried.
		result.Diagnostic = completionErr.Error()
		o.logger.Warn("stream terminated incomplete",
			"request_id", o.currentRequestID(),
			"trace_id", result.TraceID,
			"diagnostic", result.Diagnostic)
	}
	return result, nil
}

// acceptChunk validates and records one chunk. A rejection is a fatal
// protocol defect, not a transient condition.
func (o *Orchestrator) acceptChunk(chunk models.Chunk) error {
	o.mu.Lock()
	err := o.validator.Validate(chunk)
	if err == nil {
		o.chunksByType[chunk.Type]++
		if o.traceID == "" {
			o.traceID = o.validator.TraceID()
		}
		o.mu.Unlock()
		o.metrics.ChunkReceived(string(chunk.Type))
		return nil
	}
	o.mu.Unlock()

	var verr *stream.ValidationError
	code := classify.CodeChunkOrderViolation
	if errors.As(err, &verr) && verr.Reason == stream.ReasonTraceIDMismatch {
		code = classify.CodeTraceIDMismatch
	}
	return o.protocolFailure(code, err)
}

func (o *Orchestrator) protocolFailure(code string, err error) error {
	o.setLastError(code)
	o.logger.Error("protocol violation", "request_id", o.currentRequestID(), "code", code, "error", err)
	decision := classify.Decision{
		Code:           code,
		UserMessage:    classify.UserMessage(code, err.Error()),
		RequiredAction: classify.ActionContactSupport,
	}
	return &Failure{Decision: decision, Err: err}
}

// credentialFailure maps token-manager errors to a login-shaped failure.
func (o *Orchestrator) credentialFailure(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrCancelled, err)
	}
	code := classify.CodeRefreshFailed
	if errors.Is(err, auth.ErrRefreshTokenExpired) || errors.Is(err, auth.ErrNoCredential) {
		code = classify.CodeRefreshTokenExpired
	}
	o.setLastError(code)
	return &Failure{
		Decision: classify.Decision{
			Code:           code,
			UserMessage:    classify.UserMessage(code, err.Error()),
			RequiredAction: classify.ActionLogin,
		},
		Err: err,
	}
}

func (o *Orchestrator) decide(ctx context.Context, info models.ErrorInfo) classify.Decision {
	o.setLastError(info.ErrorCode)
	if o.classifier == nil {
		return classify.Decision{
			Code:           info.ErrorCode,
			UserMessage:    classify.UserMessage(info.ErrorCode, info.Message),
			RequiredAction: classify.ActionNone,
		}
	}
	return o.classifier.Decide(ctx, o.currentRequestID(), info)
}

// waitLimiter blocks until the endpoint limiter admits the request.
func (o *Orchestrator) waitLimiter(ctx context.Context) error {
	for !o.limiter.Allow(o.askURL, time.Now()) {
		if err := sleepCtx(ctx, limiterPollInterval); err != nil {
			return err
		}
	}
	return nil
}

func (o *Orchestrator) setState(s models.SessionState) {
	o.mu.Lock()
	o.state = s
	o.mu.Unlock()
}

func (o *Orchestrator) setLastError(code string) {
	o.mu.Lock()
	o.lastErrCode = code
	o.mu.Unlock()
}

func (o *Orchestrator) noteErrorCode(p *models.ErrorPayload) {
	if p == nil {
		return
	}
	o.setLastError(p.ErrorCode)
}

func (o *Orchestrator) currentRequestID() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.requestID
}

// decodeErrorBody normalizes a non-2xx response, honoring a Retry-After
// header when the body omits retry_after.
func decodeErrorBody(resp *http.Response) models.ErrorInfo {
	info := models.ErrorInfo{
		ErrorCode: classify.CodeInternalError,
		Message:   fmt.Sprintf("unexpected status %d", resp.StatusCode),
	}
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err == nil && len(bytes.TrimSpace(raw)) > 0 {
		var parsed models.ErrorInfo
		if jerr := json.Unmarshal(raw, &parsed); jerr == nil && parsed.ErrorCode != "" {
			info = parsed
		}
	}
	if info.RetryAfter == 0 {
		if header := resp.Header.Get("Retry-After"); header != "" {
			if seconds, err := strconv.Atoi(strings.TrimSpace(header)); err == nil {
				info.RetryAfter = seconds
			}
		}
	}
	return info
}

// isRecoverable matches transport interruptions worth a full restart:
// connection drops, resets, timeouts, interrupted transfers.
func isRecoverable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, pattern := range []string{"connection", "network", "timeout", "interrupted", "broken pipe", "reset by peer", "eof"} {
		if strings.Contains(msg, pattern) {
			return true
		}
	}
	return false
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%w: %v", ErrCancelled, ctx.Err())
	}
}
