// Package router decides whether a message needs the full orchestration
// pipeline or a one-shot chat reply.
package router

import (
	"regexp"
	"strings"
)

// Decision is the routing outcome with an explanation for the debug stream.
type Decision struct {
	Smart      bool
	Confidence float64
	Reason     string
}

// complexPatterns mark queries that need tools or multi-step work.
var complexPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b(weather|temperature|forecast|rain|snow)\b`),
	regexp.MustCompile(`(?i)\b(time|date|today|tomorrow|yesterday|schedule|calendar|agenda)\b`),
	regexp.MustCompile(`(?i)\b(calculate|compute|sum|multiply|divide|percent)\b`),
	regexp.MustCompile(`(?i)\b(write|save|create|read)\b.*\b(file|note|document|poem|report)\b`),
	regexp.MustCompile(`(?i)\b(search|look up|find out|latest|news)\b`),
	regexp.MustCompile(`(?i)\bplan\b|\bstep by step\b|\bthen\b.*\band\b`),
	regexp.MustCompile(`[0-9]+\s*[-+*/^%]\s*[0-9]+`),
}

// instructionWords suggest the user wants something done, not discussed.
var instructionWords = []string{
	"write", "create", "make", "save", "find", "search", "calculate",
	"check", "look", "plan", "schedule", "remind", "book", "compare",
}

// shortQueryLimit is the length under which a query without instruction
// words is treated as simple chat.
const shortQueryLimit = 80

// Decide routes a query. "/chat " and "/plan " prefixes override the
// heuristics.
func Decide(query string) Decision {
	text := strings.TrimSpace(query)
	lower := strings.ToLower(text)

	if strings.HasPrefix(lower, "/chat") {
		return Decision{Smart: false, Confidence: 1.0, Reason: "explicit /chat override"}
	}
	if strings.HasPrefix(lower, "/plan") {
		return Decision{Smart: true, Confidence: 1.0, Reason: "explicit /plan override"}
	}

	for _, p := range complexPatterns {
		if p.MatchString(text) {
			return Decision{Smart: true, Confidence: 0.9, Reason: "matched complex pattern " + p.String()}
		}
	}

	if len(text) < shortQueryLimit {
		for _, w := range instructionWords {
			if strings.Contains(lower, w) {
				return Decision{Smart: true, Confidence: 0.6, Reason: "short query with instruction word " + w}
			}
		}
		return Decision{Smart: false, Confidence: 0.8, Reason: "short conversational query"}
	}

	// Long free-form text defaults to the smart path.
	return Decision{Smart: true, Confidence: 0.5, Reason: "long query"}
}

// StripOverride removes a routing prefix from the query, if present.
func StripOverride(query string) string {
	text := strings.TrimSpace(query)
	lower := strings.ToLower(text)
	for _, prefix := range []string{"/chat", "/plan"} {
		if strings.HasPrefix(lower, prefix) {
			return strings.TrimSpace(text[len(prefix):])
		}
	}
	return text
}
