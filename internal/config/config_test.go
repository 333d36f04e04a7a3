package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"ask-insight/go-client/internal/classify"
)

func TestDefaultConfig(t *testing.T) {
	cfg := Default()
	if cfg.AskURL == "" || cfg.RefreshURL == "" {
		t.Fatal("defaults must carry backend endpoints")
	}
	if cfg.RefreshTimeout != 10*time.Second {
		t.Fatalf("unexpected refresh timeout: %v", cfg.RefreshTimeout)
	}
	if cfg.ExpiryThreshold != 5*time.Minute {
		t.Fatalf("unexpected expiry threshold: %v", cfg.ExpiryThreshold)
	}
	if !cfg.RecoveryEnabled || cfg.RecoveryDelay != 2*time.Second {
		t.Fatalf("unexpected recovery defaults: %v %v", cfg.RecoveryEnabled, cfg.RecoveryDelay)
	}
	if _, ok := cfg.RetryPolicies[classify.CodeRateLimitExceeded]; !ok {
		t.Fatal("defaults must include the built-in retry table")
	}
}

func TestLoadFromPathMergesFileOverDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	doc := `
backend:
  askUrl: https://api.example.com/api/v1/ask
auth:
  refreshTimeout: 3s
recovery:
  enabled: false
retryPolicies:
  RATE_LIMIT_EXCEEDED:
    enabled: true
    maxAttempts: 7
    baseDelayMs: 500
    exponential: true
    jitterMs: 100
`
	if err := os.WriteFile(path, []byte(doc), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg := LoadFromPath(path)
	if cfg.AskURL != "https://api.example.com/api/v1/ask" {
		t.Fatalf("unexpected ask url: %s", cfg.AskURL)
	}
	if cfg.RefreshURL != Default().RefreshURL {
		t.Fatalf("unset file field must keep default, got %s", cfg.RefreshURL)
	}
	if cfg.RefreshTimeout != 3*time.Second {
		t.Fatalf("unexpected refresh timeout: %v", cfg.RefreshTimeout)
	}
	if cfg.RecoveryEnabled {
		t.Fatal("file must be able to disable recovery")
	}

	policy := cfg.RetryPolicies[classify.CodeRateLimitExceeded]
	if policy.MaxAttempts != 7 || policy.BaseDelayMs != 500 {
		t.Fatalf("retry policy override not applied: %+v", policy)
	}
	if _, ok := cfg.RetryPolicies[classify.CodeServiceUnavailable]; !ok {
		t.Fatal("override must merge over the default table, not replace it")
	}
}

func TestLoadFromPathMissingFileFallsBackToDefaults(t *testing.T) {
	cfg := LoadFromPath(filepath.Join(t.TempDir(), "absent.yaml"))
	if cfg.AskURL != Default().AskURL {
		t.Fatalf("expected defaults, got %s", cfg.AskURL)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("ASK_BACKEND_URL", "https://env.example.com/ask")
	t.Setenv("ASK_TOKEN_PASSPHRASE", "hunter2")
	t.Setenv("ASK_RECOVERY_ENABLED", "false")

	cfg := LoadFromPath(filepath.Join(t.TempDir(), "absent.yaml"))
	if cfg.AskURL != "https://env.example.com/ask" {
		t.Fatalf("env override ignored: %s", cfg.AskURL)
	}
	if cfg.TokenPassphrase != "hunter2" {
		t.Fatal("passphrase env not applied")
	}
	if cfg.RecoveryEnabled {
		t.Fatal("recovery env override not applied")
	}
}

func TestEnvOverrideInvalidBoolIgnored(t *testing.T) {
	t.Setenv("ASK_RECOVERY_ENABLED", "maybe")
	cfg := Default()
	ApplyEnvOverrides(&cfg)
	if !cfg.RecoveryEnabled {
		t.Fatal("invalid bool must leave the default in place")
	}
}
