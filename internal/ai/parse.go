package ai

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ExtractJSON strips markdown code fences and any prose surrounding the first
// JSON object or array in raw.
func ExtractJSON(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "```") {
		raw = strings.TrimPrefix(raw, "```json")
		raw = strings.TrimPrefix(raw, "```JSON")
		raw = strings.TrimPrefix(raw, "```")
		raw = strings.TrimSpace(raw)
		if idx := strings.LastIndex(raw, "```"); idx != -1 {
			raw = raw[:idx]
		}
	}
	raw = strings.TrimSpace(strings.Trim(raw, "`"))

	if raw == "" || raw[0] == '{' || raw[0] == '[' {
		return raw
	}

	start := strings.IndexAny(raw, "{[")
	if start == -1 {
		return raw
	}
	closing := "}"
	if raw[start] == '[' {
		closing = "]"
	}
	end := strings.LastIndex(raw, closing)
	if end < start {
		return raw
	}
	return strings.TrimSpace(raw[start : end+1])
}

func CoerceString(v any) string {
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val)
	case fmt.Stringer:
		return strings.TrimSpace(val.String())
	case []any:
		parts := CoerceStrings(val)
		return strings.Join(parts, ", ")
	default:
		if v == nil {
			return ""
		}
		bytes, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(bytes)
	}
}

// CoerceStrings turns a string or a list of scalars into a list of non-empty
// strings. A single string becomes a one-element list.
func CoerceStrings(v any) []string {
	out := []string{}
	switch val := v.(type) {
	case nil:
	case string:
		if s := strings.TrimSpace(val); s != "" {
			out = append(out, s)
		}
	case []string:
		for _, item := range val {
			if s := strings.TrimSpace(item); s != "" {
				out = append(out, s)
			}
		}
	case []any:
		for _, item := range val {
			if s := CoerceString(item); s != "" {
				out = append(out, s)
			}
		}
	default:
		if s := CoerceString(val); s != "" {
			out = append(out, s)
		}
	}
	return out
}
