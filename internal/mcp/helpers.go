package mcpserver

import (
	"fmt"
	"strconv"
)

// getFloat reads a numeric argument. JSON numbers arrive as float64.
func getFloat(args map[string]any, key string, fallback float64) float64 {
	if v, ok := args[key].(float64); ok {
		return v
	}
	return fallback
}

// connectionID reads the required connectionId argument. Agents sometimes send
// ids as strings, so both forms are accepted.
func connectionID(args map[string]any) (int64, error) {
	switch v := args["connectionId"].(type) {
	case float64:
		if v > 0 {
			return int64(v), nil
		}
	case string:
		if id, err := strconv.ParseInt(v, 10, 64); err == nil && id > 0 {
			return id, nil
		}
	}
	return 0, fmt.Errorf("connectionId is required")
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
