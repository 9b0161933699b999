package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/triad-ai/triad/pkg/config"
	"github.com/triad-ai/triad/pkg/llm"
	"github.com/triad-ai/triad/pkg/models"
	"github.com/triad-ai/triad/pkg/telemetry"
	"github.com/triad-ai/triad/pkg/tools"
)

// Planner turns a user request into a validated Plan.
type Planner struct {
	client   llm.Client
	cfg      *config.Config
	registry *tools.Registry
	sink     telemetry.Sink
	logger   *slog.Logger
}

// NewPlanner wires a planner.
func NewPlanner(client llm.Client, cfg *config.Config, registry *tools.Registry, sink telemetry.Sink, logger *slog.Logger) *Planner {
	return &Planner{client: client, cfg: cfg, registry: registry, sink: sink, logger: logger}
}

// roster renders the tool list for the system prompt.
func (p *Planner) roster() string {
	var b strings.Builder
	for _, spec := range p.registry.OpenAITools() {
		fmt.Fprintf(&b, "- %s: %s\n", spec.Function.Name, spec.Function.Description)
		if params, ok := spec.Function.Parameters.(json.RawMessage); ok {
			fmt.Fprintf(&b, "  parameters: %s\n", string(params))
		}
	}
	return b.String()
}

// GeneratePlan asks the model for a plan, validates it, retries once with
// the validation error as feedback, and falls back to a minimal summarize
// plan when both attempts fail.
func (p *Planner) GeneratePlan(ctx context.Context, sessionID, query string, pctx PlanContext) (*models.Plan, error) {
	messages := []llm.Message{
		{Role: "system", Content: plannerSystemPrompt(p.roster())},
		{Role: "user", Content: plannerUserPrompt(query, pctx)},
	}

	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		if attempt > 0 {
			messages = append(messages, llm.Message{
				Role:    "user",
				Content: fmt.Sprintf("Your previous plan was invalid: %v. Emit a corrected JSON plan.", lastErr),
			})
		}

		raw, err := p.client.Complete(ctx, llm.Request{
			Model:       p.cfg.PlannerModel,
			Temperature: p.cfg.PlannerTemperature,
			MaxTokens:   p.cfg.MaxTokensPerStage,
			Messages:    messages,
			ForceJSON:   p.cfg.StrictJSONMode,
		})
		if err != nil {
			lastErr = err
			p.logger.Warn("planner call failed", "session_id", sessionID, "attempt", attempt, "error", err)
			continue
		}

		plan, err := p.parsePlan(raw)
		if err != nil {
			lastErr = err
			p.emit(sessionID, query, classifyPlanError(err), err)
			p.logger.Warn("planner output rejected", "session_id", sessionID, "attempt", attempt, "error", err)
			continue
		}
		return plan, nil
	}

	p.logger.Warn("planner fell back to minimal plan", "session_id", sessionID, "error", lastErr)
	return fallbackPlan(query), nil
}

func (p *Planner) parsePlan(raw string) (*models.Plan, error) {
	extracted, err := llm.ExtractJSON(raw)
	if err != nil {
		return nil, fmt.Errorf("extracting plan: %w", err)
	}

	var doc any
	if err := json.Unmarshal(extracted, &doc); err != nil {
		return nil, fmt.Errorf("decoding plan: %w", err)
	}
	if err := validatePlanDoc(doc); err != nil {
		return nil, err
	}

	plan := &models.Plan{}
	if err := json.Unmarshal(extracted, plan); err != nil {
		return nil, fmt.Errorf("decoding plan: %w", err)
	}
	if err := plan.Validate(); err != nil {
		return nil, fmt.Errorf("invalid plan: %w", err)
	}
	if err := p.checkUsefulness(plan); err != nil {
		return nil, err
	}
	return plan, nil
}

// checkUsefulness rejects plans that reference unknown tools or break the
// roster caps.
func (p *Planner) checkUsefulness(plan *models.Plan) error {
	webSearches := 0
	for _, step := range plan.Steps {
		switch step.Type {
		case models.StepTypeToolCall:
			if !p.registry.Has(step.Tool) {
				return fmt.Errorf("useless plan: unknown tool %q", step.Tool)
			}
		case models.StepTypeWebSearch:
			webSearches++
		}
	}
	if webSearches > 2 {
		return fmt.Errorf("useless plan: %d web_search steps, max 2", webSearches)
	}
	if plan.AskUserSteps() > 1 {
		return fmt.Errorf("useless plan: more than one ask_user step")
	}
	return nil
}

func classifyPlanError(err error) telemetry.EventKind {
	msg := err.Error()
	if strings.Contains(msg, "extracting plan") || strings.Contains(msg, "decoding plan") {
		return telemetry.EventPlannerNonJSON
	}
	return telemetry.EventPlanEmptyOrUseless
}

func (p *Planner) emit(sessionID, query string, kind telemetry.EventKind, err error) {
	p.sink.Emit(telemetry.Record{
		Event:     kind,
		Stage:     telemetry.StagePlan,
		SessionID: sessionID,
		Hash:      telemetry.Hash(query, ""),
		Detail:    map[string]any{"error": err.Error()},
	})
}

// fallbackPlan is the degenerate single-step plan used when the model
// cannot produce a valid one: summarize the request directly.
func fallbackPlan(query string) *models.Plan {
	return &models.Plan{
		Goal:            "answer the user's request directly",
		SuccessCriteria: []string{"a direct answer is produced"},
		MaxSteps:        1,
		Steps: []models.PlanStep{
			{
				ID:        "s1",
				Type:      models.StepTypeSummarize,
				Inputs:    map[string]any{"text": query},
				OutputKey: "answer",
			},
		},
		FinalAnswerTemplate: "{{answer}}",
	}
}
