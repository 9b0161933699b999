package agent

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/triad-ai/triad/pkg/llm"
	"github.com/triad-ai/triad/pkg/models"
	"github.com/triad-ai/triad/pkg/telemetry"
)

func judgedPlan() (*models.Plan, *models.ExecutionState) {
	plan := &models.Plan{
		Goal:            "report the weather in Utrecht",
		SuccessCriteria: []string{"temperature is reported"},
		MaxSteps:        2,
		Steps: []models.PlanStep{
			{ID: "s1", Type: models.StepTypeToolCall, Tool: "weather_get", OutputKey: "weather"},
		},
		FinalAnswerTemplate: "{{weather}}",
	}
	state := models.NewExecutionState()
	state.SetArtifact("weather", models.NewToolSuccess(map[string]any{"temperature": 21.5}, models.ToolMeta{}))
	state.Completed["s1"] = true
	return plan, state
}

func TestJudgeSatisfied(t *testing.T) {
	cfg := testConfig(t)
	sink := &telemetry.MemSink{}
	client := llm.NewScriptedClient(`{"satisfied": true, "missing": [], "questions": []}`)
	j := NewJudge(client, cfg, sink, slog.Default())

	plan, state := judgedPlan()
	verdict := j.Evaluate(context.Background(), "sess", plan, state, 1, nil)

	assert.True(t, verdict.Satisfied)
	assert.Empty(t, sink.Kinds())

	prompt := client.Calls()[0].Messages[1].Content
	assert.Contains(t, prompt, "report the weather in Utrecht")
	assert.Contains(t, prompt, "1. temperature is reported")
	assert.Contains(t, prompt, "21.5")
}

func TestJudgeUnsatisfiedEmitsTelemetry(t *testing.T) {
	cfg := testConfig(t)
	sink := &telemetry.MemSink{}
	client := llm.NewScriptedClient(`{"satisfied": false, "missing": ["no temperature"], "questions": []}`)
	j := NewJudge(client, cfg, sink, slog.Default())

	plan, state := judgedPlan()
	verdict := j.Evaluate(context.Background(), "sess", plan, state, 1, nil)

	assert.False(t, verdict.Satisfied)
	assert.Equal(t, []string{"no temperature"}, verdict.Missing)
	assert.Contains(t, sink.Kinds(), telemetry.EventSpecMismatch)
}

func TestJudgeRetriesMalformedOutput(t *testing.T) {
	cfg := testConfig(t)
	sink := &telemetry.MemSink{}
	client := llm.NewScriptedClient(
		"definitely not json",
		`{"satisfied": true}`,
	)
	j := NewJudge(client, cfg, sink, slog.Default())

	plan, state := judgedPlan()
	verdict := j.Evaluate(context.Background(), "sess", plan, state, 1, nil)

	assert.True(t, verdict.Satisfied)
	assert.Len(t, client.Calls(), 2)
}

func TestJudgeFallbackVerdict(t *testing.T) {
	cfg := testConfig(t)
	sink := &telemetry.MemSink{}
	client := llm.NewScriptedClient("garbage", "still garbage")
	j := NewJudge(client, cfg, sink, slog.Default())

	plan, state := judgedPlan()
	verdict := j.Evaluate(context.Background(), "sess", plan, state, 1, nil)

	assert.False(t, verdict.Satisfied)
	assert.Equal(t, []string{"evaluation error"}, verdict.Missing)
	// The restate question routes a judge outage to the user instead of
	// burning replan iterations.
	assert.Equal(t, []string{"Could you restate your request?"}, verdict.Questions)
}

func TestJudgeRejectsTooManyQuestions(t *testing.T) {
	cfg := testConfig(t)
	sink := &telemetry.MemSink{}
	client := llm.NewScriptedClient(
		`{"satisfied": false, "questions": ["a?", "b?", "c?"]}`,
		`{"satisfied": false, "missing": ["x"], "questions": ["a?"]}`,
	)
	j := NewJudge(client, cfg, sink, slog.Default())

	plan, state := judgedPlan()
	verdict := j.Evaluate(context.Background(), "sess", plan, state, 1, nil)

	require.Len(t, verdict.Questions, 1)
	assert.Len(t, client.Calls(), 2)
}

func TestJudgePromptCarriesErrorsAndAskedQuestions(t *testing.T) {
	cfg := testConfig(t)
	sink := &telemetry.MemSink{}
	client := llm.NewScriptedClient(`{"satisfied": false, "missing": ["x"]}`)
	j := NewJudge(client, cfg, sink, slog.Default())

	plan, state := judgedPlan()
	state.RecordError("s1", "weather_get", "timeout")
	j.Evaluate(context.Background(), "sess", plan, state, 2, []string{"Which city?"})

	prompt := client.Calls()[0].Messages[1].Content
	assert.Contains(t, prompt, "timeout")
	assert.Contains(t, prompt, "Which city?")
	assert.Contains(t, prompt, "Iteration: 2")
}
