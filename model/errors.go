package model

// ErrorCode classifies a failure surfaced on a message. Tool-level codes are
// recoverable (the turn continues); completion-level codes are terminal for
// the turn.
type ErrorCode string

const (
	// Tool-level: recovered locally, the tool loop continues.
	ErrorCodeToolNotFound  ErrorCode = "TOOL_NOT_FOUND"
	ErrorCodeToolExecution ErrorCode = "TOOL_EXECUTION_ERROR"

	// Completion-level: terminal for the turn.
	ErrorCodeCompletion ErrorCode = "COMPLETION_ERROR"
	ErrorCodeServer     ErrorCode = "SERVER_ERROR"
	ErrorCodeAuth       ErrorCode = "AUTH_ERROR"
	ErrorCodeNotFound   ErrorCode = "NOT_FOUND_ERROR"
	ErrorCodeRateLimit  ErrorCode = "RATE_LIMIT_ERROR"
	ErrorCodeNetwork    ErrorCode = "NETWORK_ERROR"

	// The tool-calling loop hit its configured round bound.
	ErrorCodeMaxRounds ErrorCode = "MAX_ROUNDS_EXCEEDED"
)
