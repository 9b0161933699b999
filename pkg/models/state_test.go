package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRenderTemplate(t *testing.T) {
	st := NewExecutionState()
	st.SetArtifact("now", NewToolSuccess(map[string]any{"current_time": "2026-08-24 14:05", "timezone": "Europe/Amsterdam"}, ToolMeta{}))
	st.SetArtifact("weather", NewToolSuccess(map[string]any{"temperature": 21.5, "location": "Amsterdam"}, ToolMeta{}))
	st.SetArtifact("failed", NewToolFailure(ErrorCodeNetwork, "connection refused", ToolMeta{}))
	st.SetArtifact("user_city", "Utrecht")
	st.SetArtifact("listing", []any{"a", "b"})

	t.Run("well-known scalar preferred over json dump", func(t *testing.T) {
		assert.Equal(t, "Time: 2026-08-24 14:05", st.RenderTemplate("Time: {{now}}"))
	})

	t.Run("temperature renders with unit", func(t *testing.T) {
		assert.Equal(t, "It is 21.5°C", st.RenderTemplate("It is {{weather}}"))
	})

	t.Run("failed tool renders bracketed note", func(t *testing.T) {
		assert.Equal(t, "Result: [tool failed: connection refused]", st.RenderTemplate("Result: {{failed}}"))
	})

	t.Run("plain string artifact renders as-is", func(t *testing.T) {
		assert.Equal(t, "City: Utrecht", st.RenderTemplate("City: {{user_city}}"))
	})

	t.Run("slice renders as compact json", func(t *testing.T) {
		assert.Equal(t, `["a","b"]`, st.RenderTemplate("{{listing}}"))
	})

	t.Run("unresolved placeholder stays literal", func(t *testing.T) {
		assert.Equal(t, "missing {{nope}} here", st.RenderTemplate("missing {{nope}} here"))
	})

	t.Run("multiple substitutions in one template", func(t *testing.T) {
		out := st.RenderTemplate("{{user_city}}: {{weather}} at {{now}}")
		assert.Equal(t, "Utrecht: 21.5°C at 2026-08-24 14:05", out)
	})
}

func TestRenderNestedCurrentTemperature(t *testing.T) {
	r := NewToolSuccess(map[string]any{
		"location": "Amsterdam",
		"current":  map[string]any{"temperature": 19.0, "weather_code": 3},
	}, ToolMeta{})
	assert.Equal(t, "19°C", RenderValue(r))
}

func TestExecutionStateBookkeeping(t *testing.T) {
	st := NewExecutionState()
	st.Completed["s1"] = true
	st.RecordError("s2", "weather_get", "timeout")

	assert.InDelta(t, 0.5, st.CompletionRatio(2), 1e-9)
	assert.Equal(t, 0.0, st.CompletionRatio(0))
	assert.Len(t, st.Errors, 1)
	assert.Equal(t, "weather_get", st.Errors[0].Tool)

	st.SetArtifact("", "ignored")
	_, ok := st.Artifact("")
	assert.False(t, ok)
}
