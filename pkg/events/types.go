// Package events defines the streaming event protocol between the engine
// and the UI, and the in-memory bus that carries it.
package events

import (
	"time"
)

// EventType identifies an event variant on the stream.
type EventType string

const (
	// EventAssistantContent is the only variant rendered into the chat
	// bubble. Everything else routes to status or debug surfaces.
	EventAssistantContent EventType = "assistant_content"
	EventStatus           EventType = "status"
	EventToolTrace        EventType = "tool_trace"
	EventDebug            EventType = "debug"
	EventAskUserOpen      EventType = "ask_user_open"
	EventAskUserClose     EventType = "ask_user_close"
	EventFinalAnswer      EventType = "final_answer"
	EventError            EventType = "error"
)

// IsValid checks if the event type is one of the known variants.
func (t EventType) IsValid() bool {
	switch t {
	case EventAssistantContent, EventStatus, EventToolTrace, EventDebug,
		EventAskUserOpen, EventAskUserClose, EventFinalAnswer, EventError:
		return true
	default:
		return false
	}
}

// Terminal reports whether the variant ends the current slice's stream.
func (t EventType) Terminal() bool {
	switch t {
	case EventAskUserOpen, EventFinalAnswer, EventError:
		return true
	default:
		return false
	}
}

// Event is the wire envelope. Exactly one payload field is set, matching
// Type.
type Event struct {
	Type      EventType `json:"type"`
	SessionID string    `json:"session_id"`
	Timestamp time.Time `json:"ts"`

	AssistantContent *AssistantContentPayload `json:"assistant_content,omitempty"`
	Status           *StatusPayload           `json:"status,omitempty"`
	ToolTrace        *ToolTracePayload        `json:"tool_trace,omitempty"`
	Debug            *DebugPayload            `json:"debug,omitempty"`
	AskUserOpen      *AskUserOpenPayload      `json:"ask_user_open,omitempty"`
	AskUserClose     *AskUserClosePayload     `json:"ask_user_close,omitempty"`
	FinalAnswer      *FinalAnswerPayload      `json:"final_answer,omitempty"`
	Error            *ErrorPayload            `json:"error,omitempty"`
}

// AssistantContentPayload is a streamed delta of assistant chat text.
type AssistantContentPayload struct {
	Delta string `json:"delta"`
}

// StatusPayload reports an orchestration state transition.
type StatusPayload struct {
	State  string `json:"state"`
	Detail string `json:"detail,omitempty"`
}

// ToolTracePayload summarizes one tool invocation.
type ToolTracePayload struct {
	StepID    string `json:"step_id"`
	Tool      string `json:"tool"`
	Ok        bool   `json:"ok"`
	LatencyMs int64  `json:"latency_ms"`
	Summary   string `json:"summary,omitempty"`
}

// DebugPayload carries developer-facing diagnostics.
type DebugPayload struct {
	Message string `json:"message"`
}

// AskUserOpenPayload suspends the slice waiting for the user's answer.
type AskUserOpenPayload struct {
	AskID     string   `json:"ask_id"`
	Questions []string `json:"questions"`
	Expects   string   `json:"expects"`
}

// AskUserClosePayload closes a previously opened ask. Accepted is false when
// the question was discarded by an override rather than answered.
type AskUserClosePayload struct {
	AskID    string `json:"ask_id"`
	Accepted bool   `json:"accepted"`
}

// FinalAnswerPayload is the completed answer for the slice.
type FinalAnswerPayload struct {
	Content string `json:"content"`
}

// ErrorPayload terminates the slice with a failure.
type ErrorPayload struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}
