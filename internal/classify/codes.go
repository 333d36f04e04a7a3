package classify

// Backend error codes, grouped by taxonomy. The set mirrors the /ask
// error contract; unknown codes fall through to the no-retry default.
const (
	// Authentication / authorization.
	CodeUnauthorized        = "UNAUTHORIZED"
	CodeTokenExpired        = "TOKEN_EXPIRED"
	CodeTokenInvalid        = "TOKEN_INVALID"
	CodeInvalidCredentials  = "INVALID_CREDENTIALS"
	CodeForbidden           = "FORBIDDEN"
	CodeRefreshTokenExpired = "REFRESH_TOKEN_EXPIRED"
	CodeRefreshFailed       = "REFRESH_FAILED"

	// Policy / governance denial.
	CodePolicyViolation  = "POLICY_VIOLATION"
	CodeQueryNotAllowed  = "QUERY_NOT_ALLOWED"
	CodeTableNotAllowed  = "TABLE_NOT_ALLOWED"
	CodeColumnNotAllowed = "COLUMN_NOT_ALLOWED"
	CodeUnsafeQuery      = "UNSAFE_QUERY"

	// Rate limit / quota.
	CodeRateLimitExceeded = "RATE_LIMIT_EXCEEDED"
	CodeQuotaExceeded     = "QUOTA_EXCEEDED"

	// Query execution.
	CodeQueryFailed  = "QUERY_FAILED"
	CodeQueryTimeout = "QUERY_TIMEOUT"
	CodeInvalidSQL   = "INVALID_SQL"

	// LLM service.
	CodeLLMUnavailable   = "LLM_UNAVAILABLE"
	CodeLLMTimeout       = "LLM_TIMEOUT"
	CodeLLMQuotaExceeded = "LLM_QUOTA_EXCEEDED"
	CodeGenerationFailed = "GENERATION_FAILED"

	// Streaming transport.
	CodeStreamInterrupted   = "STREAM_INTERRUPTED"
	CodeStreamingTimeout    = "STREAMING_TIMEOUT"
	CodeConnectionLost      = "CONNECTION_LOST"
	CodeInvalidChunk        = "INVALID_CHUNK"
	CodeChunkOrderViolation = "CHUNK_ORDER_VIOLATION"
	CodeTraceIDMismatch     = "TRACE_ID_MISMATCH"

	// Infrastructure.
	CodeInternalError      = "INTERNAL_ERROR"
	CodeServiceUnavailable = "SERVICE_UNAVAILABLE"
	CodeDatabaseError      = "DATABASE_ERROR"

	// Input validation.
	CodeInvalidRequest  = "INVALID_REQUEST"
	CodeQuestionTooLong = "QUESTION_TOO_LONG"
	CodeEmptyQuestion   = "EMPTY_QUESTION"

	// Training / admin.
	CodeTrainingItemInvalid   = "TRAINING_ITEM_INVALID"
	CodeTrainingItemImmutable = "TRAINING_ITEM_IMMUTABLE"
	CodeCatalogSyncFailed     = "CATALOG_SYNC_FAILED"
)

// RequiredAction tells the caller what affordance to present; the engine
// never decides presentation itself.
type RequiredAction string

const (
	ActionLogin          RequiredAction = "login"
	ActionContactSupport RequiredAction = "contact_support"
	ActionWait           RequiredAction = "wait"
	ActionNone           RequiredAction = "none"
)

// authCodes are handled outside the generic retry table.
var authCodes = map[string]bool{
	CodeUnauthorized:       true,
	CodeTokenExpired:       true,
	CodeTokenInvalid:       true,
	CodeInvalidCredentials: true,
	CodeForbidden:          true,
}

func IsAuthCode(code string) bool {
	return authCodes[code]
}
