package audit

import (
	"fmt"
	"unicode/utf8"
)

// MaxFieldBytes caps every string value in a recorded payload. Longer values are
// cut on a rune boundary and marked with the number of bytes dropped.
const MaxFieldBytes = 64 << 10

// clampMap returns payload with oversized strings cut down. payload is not modified.
func clampMap(payload map[string]any) map[string]any {
	out := make(map[string]any, len(payload))
	for k, v := range payload {
		out[k] = clampValue(v)
	}
	return out
}

func clampValue(v any) any {
	switch t := v.(type) {
	case string:
		return clampString(t)
	case map[string]any:
		return clampMap(t)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = clampValue(e)
		}
		return out
	case []string:
		out := make([]string, len(t))
		for i, e := range t {
			out[i] = clampString(e)
		}
		return out
	default:
		return v
	}
}

func clampString(s string) string {
	if len(s) <= MaxFieldBytes {
		return s
	}
	cut := MaxFieldBytes
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + fmt.Sprintf("...[truncated %d bytes]", len(s)-cut)
}
