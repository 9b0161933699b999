package agent

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/triad-ai/triad/pkg/config"
	"github.com/triad-ai/triad/pkg/llm"
	"github.com/triad-ai/triad/pkg/models"
	"github.com/triad-ai/triad/pkg/telemetry"
	"github.com/triad-ai/triad/pkg/tools"
)

// paramAliases maps common planner slips to each tool's real parameter.
var paramAliases = map[string]map[string]string{
	"weather_get": {"city": "location"},
	"file_read":   {"file_path": "path"},
	"math_calc":   {"query": "expression"},
}

// TraceFunc observes every tool dispatch.
type TraceFunc func(stepID, tool string, res *models.ToolResult)

// ExecuteRequest is one ACT pass over a plan.
type ExecuteRequest struct {
	SessionID string
	TaskID    string
	Plan      *models.Plan
	State     *models.ExecutionState
	// TotalUsed is the task-wide dispatched tool call count before this pass.
	TotalUsed int
	OnTrace   TraceFunc
}

// Outcome reports how an ACT pass ended.
type Outcome struct {
	// Suspended means an ask_user marker was written; Ask carries it.
	Suspended bool
	Ask       *models.AskUserPending
	// BudgetExceeded means a budget cap stopped the pass before completion.
	BudgetExceeded bool
	ExceededBudget string
	// DispatchedCalls counts tool dispatches made during this pass.
	DispatchedCalls int
}

// Executor runs plan steps in dependency order against the tool registry.
type Executor struct {
	client llm.Client
	cfg    *config.Config
	reg    *tools.Registry
	sink   telemetry.Sink
	logger *slog.Logger
	now    func() time.Time
}

// NewExecutor wires an executor. A nil now defaults to time.Now.
func NewExecutor(client llm.Client, cfg *config.Config, reg *tools.Registry, sink telemetry.Sink, logger *slog.Logger, now func() time.Time) *Executor {
	if now == nil {
		now = time.Now
	}
	return &Executor{client: client, cfg: cfg, reg: reg, sink: sink, logger: logger, now: now}
}

// Execute runs every runnable step. Completed steps are skipped, so a
// resumed task re-executes only what is still missing.
func (e *Executor) Execute(ctx context.Context, req ExecuteRequest) (out Outcome) {
	defer func() {
		out.DispatchedCalls = req.State.DispatchedToolCalls - req.TotalUsed
	}()
	trace := req.OnTrace
	if trace == nil {
		trace = func(string, string, *models.ToolResult) {}
	}

	for _, step := range topoOrder(req.Plan) {
		if req.State.Completed[step.ID] {
			continue
		}
		if !depsCompleted(step, req.State) {
			req.State.RecordError(step.ID, step.Tool, "skipped: dependency did not complete")
			continue
		}

		switch step.Type {
		case models.StepTypeAskUser:
			out.Suspended = true
			out.Ask = e.suspendOnAsk(req, step)
			return out

		case models.StepTypeSummarize:
			e.runSummarize(ctx, req, step)

		case models.StepTypeToolCall, models.StepTypeWebSearch, models.StepTypeWriteFile:
			tool := step.Tool
			if step.Type == models.StepTypeWebSearch {
				tool = "web_search"
			}
			if step.Type == models.StepTypeWriteFile {
				tool = "fs_write"
			}

			args := e.prepareArgs(tool, step, req.State)

			// A weather step without a location becomes a question
			// instead of a doomed dispatch. No budget charge.
			if tool == "weather_get" && missingLocation(args) {
				if city, ok := req.State.Artifact("user_city"); ok {
					args["location"] = fmt.Sprint(city)
				} else {
					out.Suspended = true
					out.Ask = e.suspendOnMissingLocation(req, step)
					return out
				}
			}

			if budget := e.budgetExceeded(req); budget != "" {
				out.BudgetExceeded = true
				out.ExceededBudget = budget
				return out
			}

			res := e.dispatch(ctx, req, step, tool, args, trace)
			req.State.SetArtifact(step.OutputKey, res)
			if res.Ok {
				req.State.Completed[step.ID] = true
			}

		default:
			req.State.RecordError(step.ID, "", fmt.Sprintf("unknown step type %q", step.Type))
		}
	}
	return out
}

// dispatch runs a tool with at most one retry for retryable failures.
func (e *Executor) dispatch(ctx context.Context, req ExecuteRequest, step models.PlanStep, tool string, args map[string]any, trace TraceFunc) *models.ToolResult {
	res := e.reg.Dispatch(ctx, tool, args)
	req.State.DispatchedToolCalls++
	trace(step.ID, tool, res)

	if !res.Ok && res.Retryable() && step.Retry == 1 {
		if e.budgetExceeded(req) == "" {
			e.logger.Info("retrying failed tool", "step", step.ID, "tool", tool)
			res = e.reg.Dispatch(ctx, tool, args)
			req.State.DispatchedToolCalls++
			trace(step.ID, tool, res)
		}
	}

	if !res.Ok {
		req.State.RecordError(step.ID, tool, res.ErrorMessage())
		kind := telemetry.EventExecToolFail
		if res.Error != nil && res.Error.Code == models.ErrorCodeInvalidInput {
			kind = telemetry.EventExecParamInvalid
		}
		e.sink.Emit(telemetry.Record{
			Event:     kind,
			Stage:     telemetry.StageAct,
			SessionID: req.SessionID,
			TaskID:    req.TaskID,
			Detail:    map[string]any{"step": step.ID, "tool": tool, "error": res.ErrorMessage()},
		})
	}
	return res
}

// budgetExceeded reports which cap a further dispatch would break, or "".
func (e *Executor) budgetExceeded(req ExecuteRequest) string {
	dispatched := req.State.DispatchedToolCalls
	perAct := dispatched - req.TotalUsed
	if perAct >= e.cfg.MaxToolCallsPerAct {
		return "max_tool_calls_per_act"
	}
	if dispatched >= e.cfg.MaxTotalToolCalls {
		return "max_total_tool_calls"
	}
	return ""
}

// prepareArgs interpolates, aliases, and date-normalizes a step's inputs.
// The transformation is idempotent: re-running it on its own output is a
// no-op, which matters on resume.
func (e *Executor) prepareArgs(tool string, step models.PlanStep, state *models.ExecutionState) map[string]any {
	args := make(map[string]any, len(step.Inputs))
	for k, v := range step.Inputs {
		if s, ok := v.(string); ok {
			args[k] = state.RenderTemplate(s)
		} else {
			args[k] = v
		}
	}

	// time_now takes no arguments; drop whatever the planner invented.
	if tool == "time_now" {
		return map[string]any{}
	}

	for from, to := range paramAliases[tool] {
		if v, ok := args[from]; ok {
			if _, taken := args[to]; !taken {
				args[to] = v
			}
			delete(args, from)
		}
	}

	// Rewrite relative-date phrases into concrete dates, except for the
	// normalizer itself whose job is exactly that.
	if tool != "date_normalize" {
		loc := e.cfg.Location()
		for k, v := range args {
			s, ok := v.(string)
			if !ok || !tools.ContainsRelativeDate(s) {
				continue
			}
			if normalized, err := tools.NormalizeDate(s, loc, e.now()); err == nil {
				args[k] = normalized
			}
		}
	}
	return args
}

func (e *Executor) runSummarize(ctx context.Context, req ExecuteRequest, step models.PlanStep) {
	rendered := req.State.RenderTemplate(summarizeMaterial(step))

	content, err := e.client.Complete(ctx, llm.Request{
		Model:       e.cfg.ExecutorModel,
		Temperature: e.cfg.ExecutorTemperature,
		MaxTokens:   e.cfg.MaxTokensPerStage,
		Messages: []llm.Message{
			{Role: "system", Content: summarizeSystemPrompt},
			{Role: "user", Content: rendered},
		},
	})
	if err != nil {
		// The rendered material is still a usable answer fragment.
		e.logger.Warn("summarize call failed, using raw material", "step", step.ID, "error", err)
		content = rendered
	}
	req.State.SetArtifact(step.OutputKey, content)
	req.State.Completed[step.ID] = true
}

// summarizeMaterial picks the step's source text: data, text, or content,
// whichever the planner used. With none present, every input pair becomes a
// line so nothing the planner wired in is silently dropped.
func summarizeMaterial(step models.PlanStep) string {
	for _, key := range []string{"data", "text", "content"} {
		if s, ok := step.Inputs[key].(string); ok && s != "" {
			return s
		}
	}
	keys := make([]string, 0, len(step.Inputs))
	for k := range step.Inputs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	for _, k := range keys {
		fmt.Fprintf(&b, "%s: %v\n", k, step.Inputs[k])
	}
	return b.String()
}

func (e *Executor) suspendOnAsk(req ExecuteRequest, step models.PlanStep) *models.AskUserPending {
	question, _ := step.Inputs["question"].(string)
	questions := []string{}
	if question != "" {
		questions = append(questions, req.State.RenderTemplate(question))
	}
	if raw, ok := step.Inputs["questions"].([]any); ok {
		for _, q := range raw {
			if s, ok := q.(string); ok {
				questions = append(questions, req.State.RenderTemplate(s))
			}
		}
	}
	if len(questions) == 0 {
		questions = []string{"Could you clarify what you need?"}
	}

	expects := models.AskExpectAnswer
	if s, ok := step.Inputs["expects"].(string); ok && s != "" {
		expects = models.AskExpect(s)
	}

	ask := &models.AskUserPending{
		AskID:     uuid.NewString(),
		Questions: questions,
		Expects:   expects,
		StepID:    step.ID,
		OutputKey: step.OutputKey,
	}
	// The step stays incomplete until the answer arrives; the resumed
	// replan decides whether the question still needs a step at all.
	req.State.SetArtifact(models.ArtifactKeyAskUserPending, ask)
	return ask
}

func (e *Executor) suspendOnMissingLocation(req ExecuteRequest, step models.PlanStep) *models.AskUserPending {
	ask := &models.AskUserPending{
		AskID:     uuid.NewString(),
		Questions: []string{"Which city do you want the weather for?"},
		Expects:   models.AskExpectCity,
		StepID:    step.ID,
	}
	req.State.SetArtifact(models.ArtifactKeyAskUserPending, ask)
	return ask
}

func missingLocation(args map[string]any) bool {
	v, ok := args["location"]
	if !ok {
		return true
	}
	s, ok := v.(string)
	return ok && s == ""
}

func depsCompleted(step models.PlanStep, state *models.ExecutionState) bool {
	for _, dep := range step.DependsOn {
		if !state.Completed[dep] {
			return false
		}
	}
	return true
}

// topoOrder returns steps in dependency order, breaking ties by step id.
// Plan validation guarantees depends_on only references earlier steps, so
// the graph is acyclic.
func topoOrder(plan *models.Plan) []models.PlanStep {
	indegree := make(map[string]int, len(plan.Steps))
	dependents := make(map[string][]string)
	byID := make(map[string]models.PlanStep, len(plan.Steps))
	for _, s := range plan.Steps {
		byID[s.ID] = s
		indegree[s.ID] = len(s.DependsOn)
		for _, dep := range s.DependsOn {
			dependents[dep] = append(dependents[dep], s.ID)
		}
	}

	ready := make([]string, 0, len(plan.Steps))
	for id, deg := range indegree {
		if deg == 0 {
			ready = append(ready, id)
		}
	}
	sort.Strings(ready)

	out := make([]models.PlanStep, 0, len(plan.Steps))
	for len(ready) > 0 {
		id := ready[0]
		ready = ready[1:]
		out = append(out, byID[id])

		changed := false
		for _, dep := range dependents[id] {
			indegree[dep]--
			if indegree[dep] == 0 {
				ready = append(ready, dep)
				changed = true
			}
		}
		if changed {
			sort.Strings(ready)
		}
	}
	return out
}
