package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/triad-ai/triad/pkg/config"
	"github.com/triad-ai/triad/pkg/llm"
	"github.com/triad-ai/triad/pkg/models"
	"github.com/triad-ai/triad/pkg/telemetry"
)

// Judge evaluates execution results against the plan's success criteria.
type Judge struct {
	client llm.Client
	cfg    *config.Config
	sink   telemetry.Sink
	logger *slog.Logger
}

// NewJudge wires a judge.
func NewJudge(client llm.Client, cfg *config.Config, sink telemetry.Sink, logger *slog.Logger) *Judge {
	return &Judge{client: client, cfg: cfg, sink: sink, logger: logger}
}

// Evaluate asks the model for a verdict, retrying once on malformed output
// and falling back to a conservative unsatisfied verdict.
func (j *Judge) Evaluate(ctx context.Context, sessionID string, plan *models.Plan, state *models.ExecutionState, iteration int, askedQuestions []string) *models.JudgeVerdict {
	messages := []llm.Message{
		{Role: "system", Content: judgeSystemPrompt},
		{Role: "user", Content: judgeUserPrompt(plan, state, iteration, askedQuestions)},
	}

	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		if attempt > 0 {
			messages = append(messages, llm.Message{
				Role:    "user",
				Content: fmt.Sprintf("Your previous verdict was invalid: %v. Emit corrected JSON.", lastErr),
			})
		}

		raw, err := j.client.Complete(ctx, llm.Request{
			Model:       j.cfg.JudgeModel,
			Temperature: j.cfg.JudgeTemperature,
			MaxTokens:   j.cfg.MaxTokensPerStage,
			Messages:    messages,
			ForceJSON:   j.cfg.StrictJSONMode,
		})
		if err != nil {
			lastErr = err
			j.logger.Warn("judge call failed", "session_id", sessionID, "attempt", attempt, "error", err)
			continue
		}

		verdict, err := parseVerdict(raw)
		if err != nil {
			lastErr = err
			j.logger.Warn("judge output rejected", "session_id", sessionID, "attempt", attempt, "error", err)
			continue
		}

		if !verdict.Satisfied {
			j.sink.Emit(telemetry.Record{
				Event:     telemetry.EventSpecMismatch,
				Stage:     telemetry.StageJudge,
				SessionID: sessionID,
				Hash:      telemetry.Hash(plan.Goal, ""),
				Detail:    map[string]any{"missing": verdict.Missing, "iteration": iteration},
			})
		}
		return verdict
	}

	j.logger.Warn("judge fell back to conservative verdict", "session_id", sessionID, "error", lastErr)
	return models.FallbackVerdict("evaluation error")
}

func parseVerdict(raw string) (*models.JudgeVerdict, error) {
	extracted, err := llm.ExtractJSON(raw)
	if err != nil {
		return nil, fmt.Errorf("extracting verdict: %w", err)
	}

	var doc any
	if err := json.Unmarshal(extracted, &doc); err != nil {
		return nil, fmt.Errorf("decoding verdict: %w", err)
	}
	if err := validateVerdictDoc(doc); err != nil {
		return nil, err
	}

	verdict := &models.JudgeVerdict{}
	if err := json.Unmarshal(extracted, verdict); err != nil {
		return nil, fmt.Errorf("decoding verdict: %w", err)
	}
	if err := verdict.Validate(); err != nil {
		return nil, err
	}
	return verdict, nil
}
