// Package config loads the client configuration: built-in defaults, then an
// optional YAML file, then environment overrides, in that order.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"ask-insight/go-client/internal/classify"

	"gopkg.in/yaml.v3"
)

// Config is the fully resolved runtime configuration.
type Config struct {
	AskURL     string
	RefreshURL string

	RequestTimeout  time.Duration
	RefreshTimeout  time.Duration
	ExpiryThreshold time.Duration

	RecoveryEnabled bool
	RecoveryDelay   time.Duration

	RequestsPerSecond float64
	Burst             int

	TokenPath       string
	TokenPassphrase string

	LogLevel string

	RetryPolicies map[string]classify.RetryPolicy
}

// FileConfig mirrors the YAML document. Pointer fields distinguish "absent"
// from zero so file values only override what they actually set.
type FileConfig struct {
	Backend struct {
		AskURL         string        `yaml:"askUrl"`
		RefreshURL     string        `yaml:"refreshUrl"`
		RequestTimeout time.Duration `yaml:"requestTimeout"`
	} `yaml:"backend"`
	Auth struct {
		RefreshTimeout  time.Duration `yaml:"refreshTimeout"`
		ExpiryThreshold time.Duration `yaml:"expiryThreshold"`
		TokenPath       string        `yaml:"tokenPath"`
	} `yaml:"auth"`
	Recovery struct {
		Enabled *bool         `yaml:"enabled"`
		Delay   time.Duration `yaml:"delay"`
	} `yaml:"recovery"`
	RateLimit struct {
		RequestsPerSecond float64 `yaml:"requestsPerSecond"`
		Burst             int     `yaml:"burst"`
	} `yaml:"rateLimit"`
	Log struct {
		Level string `yaml:"level"`
	} `yaml:"log"`
	RetryPolicies map[string]classify.RetryPolicy `yaml:"retryPolicies"`
}

func Default() Config {
	return Config{
		AskURL:            "http://localhost:8000/api/v1/ask",
		RefreshURL:        "http://localhost:8000/api/v1/auth/refresh",
		RequestTimeout:    0, // streaming; cancellation via context
		RefreshTimeout:    10 * time.Second,
		ExpiryThreshold:   5 * time.Minute,
		RecoveryEnabled:   true,
		RecoveryDelay:     2 * time.Second,
		RequestsPerSecond: 2,
		Burst:             4,
		TokenPath:         defaultTokenPath(),
		LogLevel:          "info",
		RetryPolicies:     classify.DefaultPolicies(),
	}
}

// LoadFromPath resolves the configuration. An empty path falls back to the
// conventional candidates; a missing or unparsable file is skipped, not
// fatal, matching how the daemon-side loaders behave.
func LoadFromPath(configPath string) Config {
	cfg := Default()

	candidates := make([]string, 0, 2)
	if configPath != "" {
		candidates = append(candidates, configPath)
	} else {
		candidates = append(candidates,
			"configs/config.yaml",
			"config.yaml",
		)
	}

	for _, path := range candidates {
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}

		var parsed FileConfig
		if err := yaml.Unmarshal(data, &parsed); err != nil {
			continue
		}

		merged := cfg
		Merge(&merged, parsed)
		ApplyEnvOverrides(&merged)
		return merged
	}

	ApplyEnvOverrides(&cfg)
	return cfg
}

func Merge(dst *Config, src FileConfig) {
	if src.Backend.AskURL != "" {
		dst.AskURL = src.Backend.AskURL
	}
	if src.Backend.RefreshURL != "" {
		dst.RefreshURL = src.Backend.RefreshURL
	}
	if src.Backend.RequestTimeout != 0 {
		dst.RequestTimeout = src.Backend.RequestTimeout
	}
	if src.Auth.RefreshTimeout != 0 {
		dst.RefreshTimeout = src.Auth.RefreshTimeout
	}
	if src.Auth.ExpiryThreshold != 0 {
		dst.ExpiryThreshold = src.Auth.ExpiryThreshold
	}
	if src.Auth.TokenPath != "" {
		dst.TokenPath = src.Auth.TokenPath
	}
	if src.Recovery.Enabled != nil {
		dst.RecoveryEnabled = *src.Recovery.Enabled
	}
	if src.Recovery.Delay != 0 {
		dst.RecoveryDelay = src.Recovery.Delay
	}
	if src.RateLimit.RequestsPerSecond != 0 {
		dst.RequestsPerSecond = src.RateLimit.RequestsPerSecond
	}
	if src.RateLimit.Burst != 0 {
		dst.Burst = src.RateLimit.Burst
	}
	if src.Log.Level != "" {
		dst.LogLevel = src.Log.Level
	}
	if src.RetryPolicies != nil {
		dst.RetryPolicies = classify.MergePolicies(dst.RetryPolicies, src.RetryPolicies)
	}
}

func ApplyEnvOverrides(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv("ASK_BACKEND_URL")); v != "" {
		cfg.AskURL = v
	}
	if v := strings.TrimSpace(os.Getenv("ASK_REFRESH_URL")); v != "" {
		cfg.RefreshURL = v
	}
	if v := strings.TrimSpace(os.Getenv("ASK_TOKEN_PATH")); v != "" {
		cfg.TokenPath = v
	}
	if v := os.Getenv("ASK_TOKEN_PASSPHRASE"); v != "" {
		cfg.TokenPassphrase = v
	}
	if v := strings.TrimSpace(os.Getenv("ASK_LOG_LEVEL")); v != "" {
		cfg.LogLevel = v
	}

	raw := strings.TrimSpace(os.Getenv("ASK_RECOVERY_ENABLED"))
	if raw == "" {
		return
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return
	}
	cfg.RecoveryEnabled = v
}

func defaultTokenPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "askstream-token.enc"
	}
	return home + "/.askstream/token.enc"
}
