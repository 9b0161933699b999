package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validPlan() *Plan {
	return &Plan{
		Goal:            "report the current time",
		SuccessCriteria: []string{"answer contains the current time"},
		MaxSteps:        3,
		Steps: []PlanStep{
			{ID: "s1", Type: StepTypeToolCall, Tool: "time_now", Inputs: map[string]any{}, OutputKey: "now"},
			{ID: "s2", Type: StepTypeSummarize, DependsOn: []string{"s1"}, Inputs: map[string]any{"text": "{{now}}"}, OutputKey: "summary"},
		},
		FinalAnswerTemplate: "It is {{now}}.",
	}
}

func TestStepTypeIsValid(t *testing.T) {
	tests := []struct {
		name     string
		stepType StepType
		valid    bool
	}{
		{"tool_call", StepTypeToolCall, true},
		{"web_search", StepTypeWebSearch, true},
		{"summarize", StepTypeSummarize, true},
		{"write_file", StepTypeWriteFile, true},
		{"ask_user", StepTypeAskUser, true},
		{"empty", StepType(""), false},
		{"unknown", StepType("shell_exec"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.valid, tt.stepType.IsValid())
		})
	}
}

func TestPlanValidate(t *testing.T) {
	t.Run("valid plan passes", func(t *testing.T) {
		assert.NoError(t, validPlan().Validate())
	})

	t.Run("rejects empty plan", func(t *testing.T) {
		p := validPlan()
		p.Steps = nil
		assert.ErrorContains(t, p.Validate(), "no steps")
	})

	t.Run("rejects max_steps out of range", func(t *testing.T) {
		p := validPlan()
		p.MaxSteps = 0
		assert.ErrorContains(t, p.Validate(), "max_steps")

		p = validPlan()
		p.MaxSteps = 11
		assert.ErrorContains(t, p.Validate(), "max_steps")
	})

	t.Run("rejects more steps than max_steps", func(t *testing.T) {
		p := validPlan()
		p.MaxSteps = 1
		assert.ErrorContains(t, p.Validate(), "exceeding max_steps")
	})

	t.Run("rejects duplicate step ids", func(t *testing.T) {
		p := validPlan()
		p.Steps[1].ID = "s1"
		assert.ErrorContains(t, p.Validate(), "duplicate step id")
	})

	t.Run("rejects forward dependency", func(t *testing.T) {
		p := validPlan()
		p.Steps[0].DependsOn = []string{"s2"}
		assert.ErrorContains(t, p.Validate(), "not an earlier step")
	})

	t.Run("rejects tool_call without tool", func(t *testing.T) {
		p := validPlan()
		p.Steps[0].Tool = ""
		assert.ErrorContains(t, p.Validate(), "without tool name")
	})

	t.Run("rejects retry above 1", func(t *testing.T) {
		p := validPlan()
		p.Steps[0].Retry = 2
		assert.ErrorContains(t, p.Validate(), "retry")
	})

	t.Run("rejects template referencing unknown key", func(t *testing.T) {
		p := validPlan()
		p.FinalAnswerTemplate = "It is {{never_produced}}."
		assert.ErrorContains(t, p.Validate(), "unknown key")
	})

	t.Run("allows user input keys in template", func(t *testing.T) {
		p := validPlan()
		p.FinalAnswerTemplate = "Weather in {{user_city}}: {{now}}."
		assert.NoError(t, p.Validate())
	})

	t.Run("rejects missing success criteria", func(t *testing.T) {
		p := validPlan()
		p.SuccessCriteria = nil
		assert.ErrorContains(t, p.Validate(), "success criteria")
	})
}

func TestPlaceholders(t *testing.T) {
	keys := Placeholders("Today is {{user_date}} and it is {{temp}} out, {{temp}} again")
	assert.Equal(t, []string{"user_date", "temp", "temp"}, keys)

	assert.Empty(t, Placeholders("no placeholders here"))
}

func TestPlanStepLookup(t *testing.T) {
	p := validPlan()
	step := p.Step("s2")
	require.NotNil(t, step)
	assert.Equal(t, StepTypeSummarize, step.Type)
	assert.Nil(t, p.Step("missing"))
}
