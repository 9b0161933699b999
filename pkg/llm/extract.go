package llm

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kaptinlin/jsonrepair"
)

// ExtractJSON pulls the first JSON object out of a model response that may
// be wrapped in prose or markdown fences, repairing near-JSON where needed.
func ExtractJSON(raw string) (json.RawMessage, error) {
	text := strings.TrimSpace(raw)
	if text == "" {
		return nil, fmt.Errorf("empty response")
	}

	text = stripFences(text)

	if candidate := balancedObject(text); candidate != "" {
		if json.Valid([]byte(candidate)) {
			return json.RawMessage(candidate), nil
		}
		if repaired, err := jsonrepair.JSONRepair(candidate); err == nil && json.Valid([]byte(repaired)) {
			return json.RawMessage(repaired), nil
		}
	}

	// Last resort: repair the whole text.
	repaired, err := jsonrepair.JSONRepair(text)
	if err != nil || !json.Valid([]byte(repaired)) {
		return nil, fmt.Errorf("no JSON object found in response")
	}
	if !strings.HasPrefix(strings.TrimSpace(repaired), "{") {
		return nil, fmt.Errorf("no JSON object found in response")
	}
	return json.RawMessage(repaired), nil
}

// stripFences removes a surrounding markdown code fence, if any.
func stripFences(text string) string {
	if !strings.HasPrefix(text, "```") {
		return text
	}
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	if idx := strings.LastIndex(text, "```"); idx >= 0 {
		text = text[:idx]
	}
	return strings.TrimSpace(text)
}

// balancedObject scans for the first brace-balanced object, ignoring braces
// inside strings.
func balancedObject(text string) string {
	start := strings.IndexByte(text, '{')
	if start < 0 {
		return ""
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		if escaped {
			escaped = false
			continue
		}
		switch c {
		case '\\':
			if inString {
				escaped = true
			}
		case '"':
			inString = !inString
		case '{':
			if !inString {
				depth++
			}
		case '}':
			if !inString {
				depth--
				if depth == 0 {
					return text[start : i+1]
				}
			}
		}
	}
	// Unbalanced: return the tail and let the repair pass close it.
	return text[start:]
}
