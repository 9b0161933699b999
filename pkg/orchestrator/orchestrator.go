// Package orchestrator drives the PLAN, ACT, JUDGE loop for one task slice.
package orchestrator

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/triad-ai/triad/pkg/agent"
	"github.com/triad-ai/triad/pkg/config"
	"github.com/triad-ai/triad/pkg/events"
	"github.com/triad-ai/triad/pkg/models"
	"github.com/triad-ai/triad/pkg/telemetry"
)

// State is the orchestration state machine position.
type State string

const (
	StatePlan    State = "PLAN"
	StateAct     State = "ACT"
	StateJudge   State = "JUDGE"
	StateAskUser State = "ASK_USER"
	StateDone    State = "DONE"
	StateFailed  State = "FAILED"
)

// IsValid checks if the state is one of the known positions.
func (s State) IsValid() bool {
	switch s {
	case StatePlan, StateAct, StateJudge, StateAskUser, StateDone, StateFailed:
		return true
	default:
		return false
	}
}

// Result is the post-mortem of one slice. FinalAnswer is set only on DONE;
// FAILED carries ErrorMessage instead.
type Result struct {
	Status         State
	FinalAnswer    string
	ErrorMessage   string
	Ask            *models.AskUserPending
	JudgeHistory   []*models.JudgeVerdict
	PlanIterations int
	TotalToolCalls int
	Duration       time.Duration
}

// RunInput is one slice of work on a task.
type RunInput struct {
	SessionID string
	Task      *models.ActiveTask
	// Resume indicates the slice continues a task whose ask_user answer
	// was just stored. It forces a fresh plan built on the known facts.
	Resume    bool
	Publisher *events.Publisher
}

// Orchestrator coordinates the three stages under the task budgets.
type Orchestrator struct {
	planner  *agent.Planner
	executor *agent.Executor
	judge    *agent.Judge
	cfg      *config.Config
	sink     telemetry.Sink
	logger   *slog.Logger
}

// New wires an orchestrator.
func New(planner *agent.Planner, executor *agent.Executor, judge *agent.Judge, cfg *config.Config, sink telemetry.Sink, logger *slog.Logger) *Orchestrator {
	return &Orchestrator{
		planner:  planner,
		executor: executor,
		judge:    judge,
		cfg:      cfg,
		sink:     sink,
		logger:   logger,
	}
}

// Run executes one slice: plan if needed, act, judge, and either finish,
// suspend on a question, or replan within budget. All events for the slice
// are published from this goroutine, which guarantees their ordering.
func (o *Orchestrator) Run(ctx context.Context, in RunInput) *Result {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, o.cfg.MaxExecutionTime)
	defer cancel()

	task := in.Task
	pub := in.Publisher
	res := &Result{Status: StateFailed}
	defer func() {
		task.TotalToolCalls = task.State.DispatchedToolCalls
		res.PlanIterations = task.PlanIterations
		res.TotalToolCalls = task.State.DispatchedToolCalls
		res.Duration = time.Since(start)
	}()

	replanReason := ""
	var patchAdvisory []byte
	forcePlan := task.Plan == nil || in.Resume

	for {
		if err := ctx.Err(); err != nil {
			o.emitBudget(in, "max_execution_time")
			return o.fail(in, res, "I ran out of time before finishing this task (max_execution_time).", "BUDGET_EXCEEDED")
		}

		if forcePlan {
			if task.PlanIterations >= o.cfg.MaxPlanIters {
				o.emitJudgeLoop(in, nil)
				return o.fail(in, res, "I could not complete this within the allowed planning attempts.", "JUDGE_LOOP")
			}
			pub.PublishStatus(string(StatePlan), replanReason)
			plan, err := o.planner.GeneratePlan(ctx, in.SessionID, task.UserQuery, agent.PlanContext{
				KnownFacts:     userFacts(task.State),
				AskedQuestions: task.AskedQuestions,
				PatchAdvisory:  patchAdvisory,
				Reason:         replanReason,
			})
			if err != nil {
				return o.fail(in, res, "planning failed: "+err.Error(), "PLAN_FAILED")
			}
			task.Plan = plan
			task.PlanIterations++
			// A fresh plan starts from fresh completion marks; artifacts
			// survive so earlier results and answers stay addressable.
			task.State.Completed = make(map[string]bool)
			forcePlan = false
			pub.PublishDebug("plan ready: " + plan.Goal)
		}

		pub.PublishStatus(string(StateAct), "")
		outcome := o.executor.Execute(ctx, agent.ExecuteRequest{
			SessionID: in.SessionID,
			TaskID:    task.TaskID,
			Plan:      task.Plan,
			State:     task.State,
			TotalUsed: task.State.DispatchedToolCalls,
			OnTrace: func(stepID, tool string, r *models.ToolResult) {
				pub.PublishToolTrace(stepID, tool, r.Ok, r.Meta.LatencyMs, models.RenderValue(r))
			},
		})

		if outcome.Suspended {
			return o.suspend(in, res, outcome.Ask)
		}
		if outcome.BudgetExceeded {
			o.emitBudget(in, outcome.ExceededBudget)
			return o.fail(in, res, "I hit the tool budget before finishing this task ("+outcome.ExceededBudget+").", "BUDGET_EXCEEDED")
		}

		pub.PublishStatus(string(StateJudge), "")
		verdict := o.judge.Evaluate(ctx, in.SessionID, task.Plan, task.State, task.PlanIterations, task.AskedQuestions)
		res.JudgeHistory = append(res.JudgeHistory, verdict)

		if verdict.Satisfied {
			return o.finalize(in, res)
		}

		if len(verdict.Questions) > 0 && task.Plan.AskUserSteps() == 0 {
			ask := askFromVerdict(verdict)
			task.State.SetArtifact(models.ArtifactKeyAskUserPending, ask)
			return o.suspend(in, res, ask)
		}

		if task.PlanIterations >= o.cfg.MaxPlanIters {
			o.emitJudgeLoop(in, verdict.Missing)
			return o.fail(in, res, "I could not fully satisfy the request within the allowed replans.", "JUDGE_LOOP")
		}

		replanReason = strings.Join(verdict.Missing, "; ")
		patchAdvisory = verdict.PlanPatch
		forcePlan = true
	}
}

// finalize renders the answer template and completes the slice. Only a
// satisfied slice gets here, so the rendered answer carries no unresolved
// placeholders.
func (o *Orchestrator) finalize(in RunInput, res *Result) *Result {
	answer := "I could not produce an answer."
	if in.Task.Plan != nil {
		answer = in.Task.State.RenderTemplate(in.Task.Plan.FinalAnswerTemplate)
	}
	res.FinalAnswer = answer
	res.Status = StateDone
	in.Publisher.PublishFinalAnswer(res.FinalAnswer)
	return res
}

// fail ends the slice as FAILED with a user-visible message.
func (o *Orchestrator) fail(in RunInput, res *Result, message, code string) *Result {
	res.Status = StateFailed
	res.ErrorMessage = message
	in.Publisher.PublishError(message, code)
	return res
}

// suspend publishes the ask and hands control back to the user.
func (o *Orchestrator) suspend(in RunInput, res *Result, ask *models.AskUserPending) *Result {
	in.Task.AskedQuestions = append(in.Task.AskedQuestions, ask.Questions...)
	o.sink.Emit(telemetry.Record{
		Event:     telemetry.EventAskUserOpen,
		Stage:     telemetry.StageAskUser,
		SessionID: in.SessionID,
		TaskID:    in.Task.TaskID,
		Detail:    map[string]any{"ask_id": ask.AskID, "questions": ask.Questions},
	})
	in.Publisher.PublishAskUserOpen(ask.AskID, ask.Questions, string(ask.Expects))
	res.Status = StateAskUser
	res.Ask = ask
	return res
}

// emitJudgeLoop records that the plan-iteration cap ended the task.
func (o *Orchestrator) emitJudgeLoop(in RunInput, missing []string) {
	goal := ""
	if in.Task.Plan != nil {
		goal = in.Task.Plan.Goal
	}
	o.sink.Emit(telemetry.Record{
		Event:     telemetry.EventJudgeLoop,
		Stage:     telemetry.StageJudge,
		SessionID: in.SessionID,
		TaskID:    in.Task.TaskID,
		Hash:      telemetry.Hash(in.Task.UserQuery, goal),
		Detail:    map[string]any{"iterations": in.Task.PlanIterations, "missing": missing},
	})
}

func (o *Orchestrator) emitBudget(in RunInput, budget string) {
	o.sink.Emit(telemetry.Record{
		Event:     telemetry.EventBudgetExceeded,
		Stage:     telemetry.StageAct,
		SessionID: in.SessionID,
		TaskID:    in.Task.TaskID,
		Detail:    map[string]any{"budget": budget},
	})
}

// userFacts extracts the user-provided artifacts for the planner context.
func userFacts(state *models.ExecutionState) map[string]string {
	facts := make(map[string]string)
	for k, v := range state.Artifacts {
		if models.IsUserInputKey(k) {
			facts[k] = models.RenderValue(v)
		}
	}
	return facts
}

func askFromVerdict(verdict *models.JudgeVerdict) *models.AskUserPending {
	return &models.AskUserPending{
		AskID:     uuid.NewString(),
		Questions: verdict.Questions,
		Expects:   models.AskExpectAnswer,
	}
}
