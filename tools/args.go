package tools

import "encoding/json"

// ParseArguments parses a tool call's JSON argument string into a map.
// A parse failure yields an empty map rather than an error: a malformed
// argument payload from the model is the tool's problem to report, not a
// reason to abort the turn.
func ParseArguments(argsJSON string) map[string]any {
	var args map[string]any
	if err := json.Unmarshal([]byte(argsJSON), &args); err != nil || args == nil {
		return make(map[string]any)
	}
	return args
}
