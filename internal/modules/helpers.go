package modules

import (
	"encoding/json"
	"fmt"
)

// ToJSON marshals any value to a JSON string.
func ToJSON(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to marshal response: %w", err)
	}
	return string(b), nil
}

// ToStringSlice converts []any (from MCP params) to []string.
// Non-string elements are silently skipped.
func ToStringSlice(v []any) []string {
	out := make([]string, 0, len(v))
	for _, item := range v {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// StringParam returns params[key] as a string, or fallback if absent.
func StringParam(params map[string]any, key, fallback string) string {
	if s, ok := params[key].(string); ok && s != "" {
		return s
	}
	return fallback
}

// IntParam returns params[key] as an int. JSON numbers arrive as float64.
func IntParam(params map[string]any, key string, fallback int) int {
	if f, ok := params[key].(float64); ok {
		return int(f)
	}
	return fallback
}

// BoolParam returns params[key] as a bool, or fallback if absent.
func BoolParam(params map[string]any, key string, fallback bool) bool {
	if b, ok := params[key].(bool); ok {
		return b
	}
	return fallback
}
