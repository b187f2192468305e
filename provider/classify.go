package provider

import (
	"errors"
	"strings"

	"loom/model"
)

// ErrTruncatedStream is returned by an adapter when the backend's stream
// ended without a finish signal. The engine treats it as a silent partial
// failure: the transient streaming slot is discarded and no error message is
// appended to the conversation.
var ErrTruncatedStream = errors.New("stream ended without finish signal")

// IsTruncatedStream reports whether err is the truncated-stream condition.
func IsTruncatedStream(err error) bool {
	return errors.Is(err, ErrTruncatedStream)
}

// Classify maps an adapter error onto the user-facing taxonomy by substring
// inspection of its message. The SDKs embed HTTP status codes in their error
// strings; order matters where substrings overlap (a 429 body mentioning
// "server" must still classify as rate limited).
func Classify(err error) model.ErrorCode {
	if err == nil {
		return ""
	}

	msg := strings.ToLower(err.Error())

	switch {
	case strings.Contains(msg, "429") || strings.Contains(msg, "rate limit"):
		return model.ErrorCodeRateLimit
	case strings.Contains(msg, "401") || strings.Contains(msg, "403") ||
		strings.Contains(msg, "unauthorized") || strings.Contains(msg, "forbidden") ||
		strings.Contains(msg, "api key"):
		return model.ErrorCodeAuth
	case strings.Contains(msg, "404") || strings.Contains(msg, "not found"):
		return model.ErrorCodeNotFound
	case strings.Contains(msg, "500") || strings.Contains(msg, "502") ||
		strings.Contains(msg, "503") || strings.Contains(msg, "504") ||
		strings.Contains(msg, "internal server") || strings.Contains(msg, "overloaded"):
		return model.ErrorCodeServer
	case strings.Contains(msg, "timeout") || strings.Contains(msg, "timed out") ||
		strings.Contains(msg, "connection refused") || strings.Contains(msg, "no such host") ||
		strings.Contains(msg, "network"):
		return model.ErrorCodeNetwork
	default:
		return model.ErrorCodeCompletion
	}
}
