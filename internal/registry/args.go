package registry

import (
	"encoding/json"
	"fmt"
)

// Typed accessors for normalized argument maps. They assume Validate has
// already run, so missing keys simply yield zero values.

func Float(args map[string]any, key string) float64 {
	if v, ok := args[key]; ok {
		if f, ok := toFloat(v); ok {
			return f
		}
	}
	return 0
}

func Int(args map[string]any, key string) int {
	if v, ok := args[key]; ok {
		switch n := v.(type) {
		case int:
			return n
		case float64:
			return int(n)
		}
	}
	return 0
}

func String(args map[string]any, key string) string {
	if v, ok := args[key]; ok {
		switch s := v.(type) {
		case string:
			return s
		default:
			b, _ := json.Marshal(v)
			return string(b)
		}
	}
	return ""
}

// FormatArgs renders an argument map as compact JSON for logs and the
// audit trail.
func FormatArgs(args map[string]any) string {
	if len(args) == 0 {
		return "{}"
	}
	b, err := json.Marshal(args)
	if err != nil {
		return fmt.Sprintf("%v", args)
	}
	return string(b)
}
