package classify

// RetryPolicy is the immutable per-code retry configuration.
type RetryPolicy struct {
	Enabled     bool `yaml:"enabled"`
	MaxAttempts int  `yaml:"maxAttempts"`
	BaseDelayMs int  `yaml:"baseDelayMs"`
	Exponential bool `yaml:"exponential"`
	JitterMs    int  `yaml:"jitterMs"`
}

var noRetry = RetryPolicy{}

// DefaultPolicies returns the built-in retry table. Policy, validation and
// training codes stay disabled: those need changed input, not another
// attempt. Auth codes never consult this table.
func DefaultPolicies() map[string]RetryPolicy {
	transient := RetryPolicy{Enabled: true, MaxAttempts: 3, BaseDelayMs: 1000, Exponential: true, JitterMs: 250}

	return map[string]RetryPolicy{
		CodeRateLimitExceeded: {Enabled: true, MaxAttempts: 3, BaseDelayMs: 2000, Exponential: true, JitterMs: 500},
		CodeQuotaExceeded:     noRetry,

		CodeQueryFailed:  noRetry,
		CodeQueryTimeout: {Enabled: true, MaxAttempts: 2, BaseDelayMs: 2000, Exponential: true, JitterMs: 500},
		CodeInvalidSQL:   noRetry,

		CodeLLMUnavailable:   transient,
		CodeLLMTimeout:       transient,
		CodeLLMQuotaExceeded: {Enabled: true, MaxAttempts: 2, BaseDelayMs: 5000, Exponential: false, JitterMs: 1000},
		CodeGenerationFailed: {Enabled: true, MaxAttempts: 2, BaseDelayMs: 1000, Exponential: true, JitterMs: 250},

		CodeStreamInterrupted: transient,
		CodeStreamingTimeout:  transient,
		CodeConnectionLost:    transient,
		// Protocol-contract violations indicate a defect, never a
		// transient condition.
		CodeInvalidChunk:        noRetry,
		CodeChunkOrderViolation: noRetry,
		CodeTraceIDMismatch:     noRetry,

		CodeInternalError:      {Enabled: true, MaxAttempts: 2, BaseDelayMs: 1000, Exponential: true, JitterMs: 250},
		CodeServiceUnavailable: transient,
		CodeDatabaseError:      {Enabled: true, MaxAttempts: 2, BaseDelayMs: 2000, Exponential: true, JitterMs: 500},

		CodeInvalidRequest:  noRetry,
		CodeQuestionTooLong: noRetry,
		CodeEmptyQuestion:   noRetry,

		CodePolicyViolation:  noRetry,
		CodeQueryNotAllowed:  noRetry,
		CodeTableNotAllowed:  noRetry,
		CodeColumnNotAllowed: noRetry,
		CodeUnsafeQuery:      noRetry,

		CodeTrainingItemInvalid:   noRetry,
		CodeTrainingItemImmutable: noRetry,
		CodeCatalogSyncFailed:     {Enabled: true, MaxAttempts: 2, BaseDelayMs: 3000, Exponential: false, JitterMs: 500},
	}
}

// MergePolicies overlays per-code overrides onto the defaults.
func MergePolicies(base, overrides map[string]RetryPolicy) map[string]RetryPolicy {
	merged := make(map[string]RetryPolicy, len(base)+len(overrides))
	for code, policy := range base {
		merged[code] = policy
	}
	for code, policy := range overrides {
		merged[code] = policy
	}
	return merged
}
