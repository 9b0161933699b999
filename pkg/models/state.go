package models

import (
	"encoding/json"
	"fmt"
)

// StepError records a step failure for the Judge's error log.
type StepError struct {
	StepID  string `json:"step_id"`
	Tool    string `json:"tool,omitempty"`
	Message string `json:"message"`
}

// ExecutionState accumulates artifacts and step outcomes while a plan runs.
// It survives ASK_USER suspension so a resumed slice continues from the same
// accumulated context.
type ExecutionState struct {
	Artifacts           map[string]any `json:"artifacts"`
	Completed           map[string]bool `json:"completed"`
	Errors              []StepError    `json:"errors"`
	DispatchedToolCalls int            `json:"dispatched_tool_calls"`
}

// NewExecutionState returns an empty state.
func NewExecutionState() *ExecutionState {
	return &ExecutionState{
		Artifacts: make(map[string]any),
		Completed: make(map[string]bool),
	}
}

// SetArtifact stores a step output under its output_key.
func (s *ExecutionState) SetArtifact(key string, value any) {
	if key == "" {
		return
	}
	s.Artifacts[key] = value
}

// Artifact looks up a stored value.
func (s *ExecutionState) Artifact(key string) (any, bool) {
	v, ok := s.Artifacts[key]
	return v, ok
}

// RecordError appends to the error log consumed by the Judge.
func (s *ExecutionState) RecordError(stepID, tool, message string) {
	s.Errors = append(s.Errors, StepError{StepID: stepID, Tool: tool, Message: message})
}

// CompletionRatio reports completed steps over total, for the Judge prompt.
func (s *ExecutionState) CompletionRatio(total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(len(s.Completed)) / float64(total)
}

// RenderTemplate substitutes every {{key}} in tpl with the rendered artifact
// value. Unresolved placeholders are left literal.
func (s *ExecutionState) RenderTemplate(tpl string) string {
	return placeholderRe.ReplaceAllStringFunc(tpl, func(m string) string {
		key := placeholderRe.FindStringSubmatch(m)[1]
		v, ok := s.Artifacts[key]
		if !ok {
			return m
		}
		return RenderValue(v)
	})
}

// wellKnownScalars are ToolResult data fields preferred over a JSON dump
// when rendering into user-facing text.
var wellKnownScalars = []string{"current_time", "normalized_date", "resolved_path"}

// RenderValue turns an artifact into display text. ToolResults render their
// best scalar or a compact JSON of their data; failures render as a bracketed
// failure note; maps and slices render as compact JSON.
func RenderValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case *ToolResult:
		return renderToolResult(val)
	case ToolResult:
		return renderToolResult(&val)
	case string:
		return val
	case map[string]any, []any:
		return compactJSON(val)
	default:
		return fmt.Sprint(val)
	}
}

func renderToolResult(r *ToolResult) string {
	if !r.Ok {
		return fmt.Sprintf("[tool failed: %s]", r.ErrorMessage())
	}
	for _, field := range wellKnownScalars {
		if v, ok := r.Data[field]; ok {
			return fmt.Sprint(v)
		}
	}
	if t, ok := r.Data["temperature"]; ok {
		return fmt.Sprintf("%v°C", t)
	}
	if cur, ok := r.Data["current"].(map[string]any); ok {
		if t, ok := cur["temperature"]; ok {
			return fmt.Sprintf("%v°C", t)
		}
	}
	return compactJSON(r.Data)
}

func compactJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(b)
}
