package plan

import (
	"encoding/json"
	"strings"
)

const fence = "```"

// CleanJSON extracts the JSON payload from a raw provider response. Valid
// JSON is returned trimmed. Otherwise the first markdown code fence
// (```json ... ``` or ``` ... ```) is unwrapped, wherever it sits in the text,
// so prose before or after the block is dropped.
func CleanJSON(raw string) string {
	s := strings.TrimSpace(raw)
	if json.Valid([]byte(s)) {
		return s
	}
	start := strings.Index(s, fence)
	if start < 0 {
		return s
	}

	body := s[start+len(fence):]
	if end := strings.Index(body, fence); end >= 0 {
		body = body[:end]
	}
	// Drop the info string (e.g. "json") in front of the payload.
	if i := strings.IndexAny(body, "{["); i >= 0 {
		body = body[i:]
	}
	return strings.TrimSpace(body)
}
