package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"ask-insight/go-client/pkg/models"
)

var (
	ErrNoCredential        = errors.New("no credential available")
	ErrRefreshTokenExpired = errors.New("refresh token expired")
	ErrRefreshFailed       = errors.New("credential refresh failed")
)

const (
	defaultExpiryThreshold = 5 * time.Minute
	defaultRefreshTimeout  = 10 * time.Second
)

// TokenStore is the session-scoped persistence collaborator for the cached
// credential. Implementations must tolerate Clear with nothing stored.
type TokenStore interface {
	Load() (models.Credential, error)
	Save(cred models.Credential) error
	Clear() error
}

// refreshOp is the shared in-flight refresh handle. Late callers wait on
// done and read the result; the slot-holder closes done exactly once.
type refreshOp struct {
	done chan struct{}
	cred models.Credential
	err  error
}

// Manager owns the single cached credential and collapses concurrent
// refresh triggers into one network call. Construct it once in the
// composition root and inject it; there is no package-level instance.
type Manager struct {
	refreshURL string
	client     *http.Client
	store      TokenStore
	logger     *slog.Logger
	threshold  time.Duration
	timeout    time.Duration

	onRefresh func(success bool)

	mu       sync.Mutex
	cred     models.Credential
	inflight *refreshOp
}

type ManagerConfig struct {
	RefreshURL      string
	HTTPClient      *http.Client
	Store           TokenStore
	Logger          *slog.Logger
	ExpiryThreshold time.Duration
	RefreshTimeout  time.Duration
	// OnRefresh observes refresh outcomes; wired to metrics in the
	// composition root.
	OnRefresh func(success bool)
}

func NewManager(cfg ManagerConfig) *Manager {
	m := &Manager{
		refreshURL: cfg.RefreshURL,
		client:     cfg.HTTPClient,
		store:      cfg.Store,
		logger:     cfg.Logger,
		threshold:  cfg.ExpiryThreshold,
		timeout:    cfg.RefreshTimeout,
		onRefresh:  cfg.OnRefresh,
	}
	if m.client == nil {
		m.client = &http.Client{}
	}
	if m.logger == nil {
		m.logger = slog.Default()
	}
	if m.threshold <= 0 {
		m.threshold = defaultExpiryThreshold
	}
	if m.timeout <= 0 {
		m.timeout = defaultRefreshTimeout
	}
	if cfg.Store != nil {
		if cred, err := cfg.Store.Load(); err == nil && !cred.IsZero() {
			m.cred = cred
		}
	}
	return m
}

// SetCredential installs a freshly issued token, decoding its expiry claim.
// Issuance itself (login) happens outside this package.
func (m *Manager) SetCredential(token string) {
	cred := models.Credential{Token: token}
	if exp, ok := DecodeExpiry(token); ok {
		cred.ExpiresAt = exp
	}
	m.mu.Lock()
	m.cred = cred
	m.mu.Unlock()
	if m.store != nil {
		if err := m.store.Save(cred); err != nil {
			m.logger.Warn("credential store save failed", "error", err)
		}
	}
}

// Current returns the cached credential without validity checks.
func (m *Manager) Current() models.Credential {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cred
}

// EnsureValid returns a credential whose expiry is comfortably in the
// future, refreshing if needed. Concurrent callers arriving while a
// refresh is outstanding all join that refresh and observe its outcome;
// exactly one network call is made.
func (m *Manager) EnsureValid(ctx context.Context) (models.Credential, error) {
	m.mu.Lock()
	if op := m.inflight; op != nil {
		m.mu.Unlock()
		return waitRefresh(ctx, op)
	}
	if m.credValidLocked(time.Now()) {
		cred := m.cred
		m.mu.Unlock()
		return cred, nil
	}
	m.mu.Unlock()
	return m.Refresh(ctx)
}

// Refresh forces one single-flight refresh regardless of local validity;
// used when the backend has already declared the token expired. Callers
// arriving mid-refresh join the outstanding operation.
func (m *Manager) Refresh(ctx context.Context) (models.Credential, error) {
	m.mu.Lock()
	if op := m.inflight; op != nil {
		m.mu.Unlock()
		return waitRefresh(ctx, op)
	}
	if m.cred.IsZero() {
		m.mu.Unlock()
		return models.Credential{}, ErrNoCredential
	}
	op := &refreshOp{done: make(chan struct{})}
	m.inflight = op
	current := m.cred
	m.mu.Unlock()

	go m.runRefresh(op, current)
	return waitRefresh(ctx, op)
}

// Clear drops the cached credential, its stored copy and any in-flight
// refresh handle. Safe to call repeatedly and with nothing cached.
func (m *Manager) Clear() {
	m.mu.Lock()
	m.cred = models.Credential{}
	m.inflight = nil
	m.mu.Unlock()
	if m.store != nil {
		if err := m.store.Clear(); err != nil {
			m.logger.Warn("credential store clear failed", "error", err)
		}
	}
}

// credValidLocked applies the staleness threshold against the decoded
// expiry claim. Tokens that do not decode count as expired.
func (m *Manager) credValidLocked(now time.Time) bool {
	if m.cred.IsZero() {
		return false
	}
	exp, ok := DecodeExpiry(m.cred.Token)
	if !ok {
		return false
	}
	return now.Before(exp.Add(-m.threshold))
}

func (m *Manager) runRefresh(op *refreshOp, current models.Credential) {
	cred, err := m.performRefresh(current)

	// A Clear issued while the refresh was outstanding supersedes the
	// result; neither memory nor the store may be repopulated then.
	m.mu.Lock()
	superseded := m.inflight != op
	if err == nil && !superseded {
		m.cred = cred
	}
	if !superseded {
		m.inflight = nil
	}
	m.mu.Unlock()

	if err == nil && !superseded && m.store != nil {
		if serr := m.store.Save(cred); serr != nil {
			m.logger.Warn("credential store save failed", "error", serr)
		}
	}

	op.cred = cred
	op.err = err
	close(op.done)

	if m.onRefresh != nil {
		m.onRefresh(err == nil)
	}
}

// performRefresh issues the bounded refresh call authenticated with the
// current credential.
func (m *Manager) performRefresh(current models.Credential) (models.Credential, error) {
	ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.refreshURL, bytes.NewReader([]byte("{}")))
	if err != nil {
		return models.Credential{}, fmt.Errorf("%w: %v", ErrRefreshFailed, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+current.Token)

	resp, err := m.client.Do(req)
	if err != nil {
		return models.Credential{}, fmt.Errorf("%w: %v", ErrRefreshFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		m.logger.Info("refresh rejected, re-authentication required")
		return models.Credential{}, ErrRefreshTokenExpired
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return models.Credential{}, fmt.Errorf("%w: status %d", ErrRefreshFailed, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return models.Credential{}, fmt.Errorf("%w: %v", ErrRefreshFailed, err)
	}
	var parsed models.RefreshResponse
	if err := json.Unmarshal(body, &parsed); err != nil || parsed.AccessToken == "" {
		return models.Credential{}, fmt.Errorf("%w: bad refresh response", ErrRefreshFailed)
	}

	cred := models.Credential{Token: parsed.AccessToken}
	if exp, ok := DecodeExpiry(parsed.AccessToken); ok {
		cred.ExpiresAt = exp
	} else if parsed.ExpiresIn > 0 {
		cred.ExpiresAt = time.Now().Add(time.Duration(parsed.ExpiresIn) * time.Second)
	}
	m.logger.Debug("credential refreshed", "expires_at", cred.ExpiresAt)
	return cred, nil
}

func waitRefresh(ctx context.Context, op *refreshOp) (models.Credential, error) {
	select {
	case <-op.done:
		return op.cred, op.err
	case <-ctx.Done():
		return models.Credential{}, ctx.Err()
	}
}
