package agent

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/triad-ai/triad/pkg/models"
)

const plannerSystemTemplate = `You are a task planner. Decompose the user's request into a JSON plan.

Respond with a single JSON object:
{
  "goal": "<one sentence>",
  "success_criteria": ["<verifiable criterion>", ...],
  "max_steps": <1-10>,
  "steps": [
    {"id": "s1", "type": "tool_call|web_search|summarize|write_file|ask_user",
     "tool": "<tool name for tool_call>", "inputs": {...},
     "depends_on": ["<earlier id>"], "expect": "<what this step should produce>",
     "output_key": "<artifact key>", "retry": 0}
  ],
  "final_answer_template": "<text with {{output_key}} placeholders>"
}

Available tools:
%s

Rules:
- Step ids are s1, s2, ... and depends_on may only reference earlier steps.
- If the request mentions a relative date (today, tomorrow), call time_now first.
- Use ask_user only for subjective information you cannot look up. At most one ask_user step per plan. Set inputs.question and inputs.expects (city, date or answer).
- At most two web_search steps per plan.
- Plans that write a file must call path_planner first and the write_file step must reference the content step's output_key in its inputs.
- Reference earlier results with {{output_key}} placeholders in inputs and in final_answer_template.
- Output JSON only. No prose.`

// plannerSystemPrompt renders the system prompt with the live tool roster.
func plannerSystemPrompt(roster string) string {
	return fmt.Sprintf(plannerSystemTemplate, roster)
}

// PlanContext carries what the planner should know beyond the raw query.
type PlanContext struct {
	// KnownFacts are artifacts carried over from a suspended task, e.g.
	// the user's answer to a previous question.
	KnownFacts map[string]string
	// AskedQuestions must not be asked again.
	AskedQuestions []string
	// PatchAdvisory is the previous judge's opaque plan_patch, if any.
	PatchAdvisory json.RawMessage
	// Reason is why a replan was forced, empty on the first iteration.
	Reason string
}

func plannerUserPrompt(query string, pctx PlanContext) string {
	var b strings.Builder
	fmt.Fprintf(&b, "User request: %s\n", query)

	if len(pctx.KnownFacts) > 0 {
		b.WriteString("\nAlready known (do not ask again, use these values directly):\n")
		for k, v := range pctx.KnownFacts {
			fmt.Fprintf(&b, "- %s = %s\n", k, v)
		}
	}
	if len(pctx.AskedQuestions) > 0 {
		b.WriteString("\nQuestions already asked, never repeat them:\n")
		for _, q := range pctx.AskedQuestions {
			fmt.Fprintf(&b, "- %s\n", q)
		}
	}
	if pctx.Reason != "" {
		fmt.Fprintf(&b, "\nThe previous attempt was not sufficient: %s\n", pctx.Reason)
	}
	if len(pctx.PatchAdvisory) > 0 {
		fmt.Fprintf(&b, "\nReviewer suggestion (advisory): %s\n", string(pctx.PatchAdvisory))
	}
	return b.String()
}

const judgeSystemPrompt = `You are a strict reviewer of task execution. Decide whether the collected results satisfy the success criteria.

Respond with a single JSON object:
{"satisfied": true|false, "missing": ["<unmet criterion>"], "plan_patch": <optional suggestion>, "questions": ["<question for the user>"]}

Rules:
- satisfied=true only if every criterion is met by the artifacts shown.
- List at most 2 questions, and only for subjective information the system cannot look up itself.
- Never repeat a question from the already-asked list.
- Output JSON only. No prose.`

// artifactExcerptLimit keeps judge prompts small.
const artifactExcerptLimit = 200

func judgeUserPrompt(plan *models.Plan, state *models.ExecutionState, iteration int, askedQuestions []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Goal: %s\n\nSuccess criteria:\n", plan.Goal)
	for i, c := range plan.SuccessCriteria {
		fmt.Fprintf(&b, "%d. %s\n", i+1, c)
	}
	fmt.Fprintf(&b, "\nIteration: %d\n", iteration)
	fmt.Fprintf(&b, "Steps completed: %d/%d\n", len(state.Completed), len(plan.Steps))

	b.WriteString("\nArtifacts:\n")
	for key, value := range state.Artifacts {
		if key == models.ArtifactKeyAskUserPending {
			continue
		}
		excerpt := models.RenderValue(value)
		if len(excerpt) > artifactExcerptLimit {
			excerpt = excerpt[:artifactExcerptLimit] + "..."
		}
		fmt.Fprintf(&b, "- %s: %s\n", key, excerpt)
	}

	if len(state.Errors) > 0 {
		b.WriteString("\nErrors:\n")
		for _, e := range state.Errors {
			fmt.Fprintf(&b, "- step %s (%s): %s\n", e.StepID, e.Tool, e.Message)
		}
	}
	if len(askedQuestions) > 0 {
		b.WriteString("\nAlready asked the user:\n")
		for _, q := range askedQuestions {
			fmt.Fprintf(&b, "- %s\n", q)
		}
	}
	return b.String()
}

const summarizeSystemPrompt = `Summarize the provided material into a concise, direct answer fragment. Output plain text only.`
