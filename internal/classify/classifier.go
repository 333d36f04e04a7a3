package classify

import (
	"context"
	"errors"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"ask-insight/go-client/pkg/models"
)

// immediateRetryDelayMs is the nominal delay after a successful in-band
// token refresh; long enough to let the transport settle, nothing more.
const immediateRetryDelayMs = 100

// Decision is the classifier's verdict for one failure.
type Decision struct {
	Code           string
	ShouldRetry    bool
	RetryAfterMs   int
	UserMessage    string
	RequiredAction RequiredAction
	TraceID        string
	Attempt        int
}

// CredentialRefresher is the slice of the token manager the classifier
// needs for auth-code handling.
type CredentialRefresher interface {
	Refresh(ctx context.Context) (models.Credential, error)
	Clear()
}

// Classifier maps backend failures to retry decisions. Attempt counters
// are per request id and shared across a request's recovery restarts; the
// counter map is safe for concurrent sessions.
type Classifier struct {
	policies map[string]RetryPolicy
	tokens   CredentialRefresher
	logger   *slog.Logger

	mu        sync.Mutex
	attempts  map[string]int
	refreshed map[string]bool
	rnd       *rand.Rand
}

func NewClassifier(policies map[string]RetryPolicy, tokens CredentialRefresher, logger *slog.Logger) *Classifier {
	if policies == nil {
		policies = DefaultPolicies()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Classifier{
		policies:  policies,
		tokens:    tokens,
		logger:    logger,
		attempts:  make(map[string]int),
		refreshed: make(map[string]bool),
		rnd:       rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Decide classifies one failure for the given request id. Auth codes
// bypass the retry table entirely.
func (c *Classifier) Decide(ctx context.Context, requestID string, info models.ErrorInfo) Decision {
	if IsAuthCode(info.ErrorCode) {
		return c.decideAuth(ctx, requestID, info)
	}
	return c.decideFromPolicy(requestID, info)
}

// RecordSuccess drops the counters for a request that finished.
func (c *Classifier) RecordSuccess(requestID string) {
	c.mu.Lock()
	delete(c.attempts, requestID)
	delete(c.refreshed, requestID)
	c.mu.Unlock()
}

// Attempts reports the current counter for diagnostics.
func (c *Classifier) Attempts(requestID string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.attempts[requestID]
}

func (c *Classifier) decideAuth(ctx context.Context, requestID string, info models.ErrorInfo) Decision {
	base := Decision{
		Code:        info.ErrorCode,
		UserMessage: UserMessage(info.ErrorCode, info.Message),
		TraceID:     info.TraceID,
	}

	switch info.ErrorCode {
	case CodeTokenExpired:
		if c.tokens == nil {
			base.RequiredAction = ActionLogin
			return base
		}
		// One refresh-and-retry per request. A second TOKEN_EXPIRED after
		// a successful refresh means retrying cannot help.
		c.mu.Lock()
		already := c.refreshed[requestID]
		delete(c.refreshed, requestID)
		c.mu.Unlock()
		if already {
			c.logger.Warn("token rejected again after refresh, login required", "request_id", requestID)
			c.tokens.Clear()
			base.RequiredAction = ActionLogin
			return base
		}
		if _, err := c.tokens.Refresh(ctx); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				base.RequiredAction = ActionNone
				return base
			}
			c.logger.Info("in-band refresh failed, login required", "error", err)
			c.tokens.Clear()
			base.RequiredAction = ActionLogin
			base.UserMessage = UserMessage(CodeRefreshFailed, info.Message)
			return base
		}
		c.mu.Lock()
		c.refreshed[requestID] = true
		c.mu.Unlock()
		base.ShouldRetry = true
		base.RetryAfterMs = immediateRetryDelayMs
		base.RequiredAction = ActionNone
		return base
	case CodeUnauthorized, CodeTokenInvalid:
		if c.tokens != nil {
			c.tokens.Clear()
		}
		base.RequiredAction = ActionLogin
		return base
	case CodeInvalidCredentials:
		base.RequiredAction = ActionNone
		return base
	case CodeForbidden:
		base.RequiredAction = ActionContactSupport
		return base
	}
	base.RequiredAction = ActionLogin
	return base
}

func (c *Classifier) decideFromPolicy(requestID string, info models.ErrorInfo) Decision {
	decision := Decision{
		Code:           info.ErrorCode,
		UserMessage:    UserMessage(info.ErrorCode, info.Message),
		RequiredAction: actionForCode(info.ErrorCode),
		TraceID:        info.TraceID,
	}

	policy, known := c.policies[info.ErrorCode]
	if !known || !policy.Enabled {
		c.dropCounter(requestID)
		return decision
	}

	c.mu.Lock()
	attempts := c.attempts[requestID]
	if attempts >= policy.MaxAttempts {
		delete(c.attempts, requestID)
		c.mu.Unlock()
		c.logger.Debug("retry budget exhausted", "request_id", requestID, "code", info.ErrorCode, "attempts", attempts)
		return decision
	}
	c.attempts[requestID] = attempts + 1
	jitter := 0
	if policy.JitterMs > 0 {
		jitter = c.rnd.Intn(policy.JitterMs)
	}
	c.mu.Unlock()

	// A server-dictated delay is authoritative; jitter applies only to
	// client-computed backoff.
	delay := policy.BaseDelayMs
	if info.RetryAfter > 0 {
		delay = info.RetryAfter * 1000
	} else {
		if policy.Exponential {
			delay = policy.BaseDelayMs * pow2(attempts)
		}
		delay += jitter
	}

	decision.ShouldRetry = true
	decision.RetryAfterMs = delay
	decision.Attempt = attempts + 1
	return decision
}

func (c *Classifier) dropCounter(requestID string) {
	c.mu.Lock()
	delete(c.attempts, requestID)
	c.mu.Unlock()
}

func pow2(n int) int {
	if n < 0 {
		return 1
	}
	if n > 16 {
		n = 16
	}
	return 1 << n
}
