package classify

// userMessages maps error codes to stable user-facing copy. Unrecognized
// codes fall back to the raw backend message.
var userMessages = map[string]string{
	CodeUnauthorized:        "Your session is no longer valid. Please sign in again.",
	CodeTokenExpired:        "Your session expired and is being renewed.",
	CodeTokenInvalid:        "Your session is no longer valid. Please sign in again.",
	CodeInvalidCredentials:  "The credentials you entered are incorrect.",
	CodeForbidden:           "You do not have access to this resource.",
	CodeRefreshTokenExpired: "Your session has fully expired. Please sign in again.",
	CodeRefreshFailed:       "Session renewal failed. Please sign in again.",

	CodePolicyViolation:  "This question is blocked by your organization's data policy.",
	CodeQueryNotAllowed:  "This kind of query is not permitted.",
	CodeTableNotAllowed:  "The question touches a table you cannot access.",
	CodeColumnNotAllowed: "The question touches a column you cannot access.",
	CodeUnsafeQuery:      "The generated query was rejected as unsafe.",

	CodeRateLimitExceeded: "Too many requests. Please wait a moment.",
	CodeQuotaExceeded:     "Your usage quota is exhausted.",

	CodeQueryFailed:  "The query could not be executed.",
	CodeQueryTimeout: "The query took too long and was cancelled.",
	CodeInvalidSQL:   "The generated SQL was invalid. Try rephrasing the question.",

	CodeLLMUnavailable:   "The answer service is temporarily unavailable.",
	CodeLLMTimeout:       "The answer service took too long to respond.",
	CodeLLMQuotaExceeded: "The answer service is over capacity. Please try later.",
	CodeGenerationFailed: "The answer could not be generated.",

	CodeStreamInterrupted:   "The answer stream was interrupted.",
	CodeStreamingTimeout:    "The answer stream timed out.",
	CodeConnectionLost:      "The connection to the server was lost.",
	CodeInvalidChunk:        "The server sent an invalid response.",
	CodeChunkOrderViolation: "The server response arrived out of order.",
	CodeTraceIDMismatch:     "The server response was inconsistent.",

	CodeInternalError:      "Something went wrong on the server.",
	CodeServiceUnavailable: "The service is temporarily unavailable.",
	CodeDatabaseError:      "The data warehouse reported an error.",

	CodeInvalidRequest:  "The request was malformed.",
	CodeQuestionTooLong: "The question is too long.",
	CodeEmptyQuestion:   "Please enter a question.",

	CodeTrainingItemInvalid:   "The training item is invalid.",
	CodeTrainingItemImmutable: "This training item can no longer be changed.",
	CodeCatalogSyncFailed:     "Catalog synchronization failed.",
}

// requiredActions maps non-auth codes to the affordance the caller should
// present; codes absent here default to none.
var requiredActions = map[string]RequiredAction{
	CodeRateLimitExceeded: ActionWait,
	CodeQuotaExceeded:     ActionContactSupport,

	CodeQueryTimeout: ActionWait,

	CodeLLMUnavailable:   ActionWait,
	CodeLLMTimeout:       ActionWait,
	CodeLLMQuotaExceeded: ActionWait,

	CodeStreamInterrupted: ActionWait,
	CodeStreamingTimeout:  ActionWait,
	CodeConnectionLost:    ActionWait,

	CodeInternalError:      ActionWait,
	CodeServiceUnavailable: ActionWait,
	CodeDatabaseError:      ActionWait,

	CodeChunkOrderViolation: ActionContactSupport,
	CodeTraceIDMismatch:     ActionContactSupport,
	CodeInvalidChunk:        ActionContactSupport,
}

// UserMessage returns the fixed copy for a code, falling back to the raw
// backend message.
func UserMessage(code, fallback string) string {
	if msg, ok := userMessages[code]; ok {
		return msg
	}
	if fallback != "" {
		return fallback
	}
	return "An unexpected error occurred."
}

func actionForCode(code string) RequiredAction {
	if action, ok := requiredActions[code]; ok {
		return action
	}
	return ActionNone
}
