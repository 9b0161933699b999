package models

import (
	"encoding/json"
	"fmt"
)

// MaxJudgeQuestions caps the clarification questions a verdict may carry.
const MaxJudgeQuestions = 2

// JudgeVerdict is the Judge's structured decision after an ACT phase.
// PlanPatch is carried opaquely: it is advisory context for the next
// replan, never applied to the executed plan.
type JudgeVerdict struct {
	Satisfied bool            `json:"satisfied"`
	Missing   []string        `json:"missing"`
	PlanPatch json.RawMessage `json:"plan_patch,omitempty"`
	Questions []string        `json:"questions"`
}

// Validate enforces the verdict shape. An unsatisfied verdict must say what
// is missing or what to ask; a bare "no" gives the replanner nothing to act on.
func (v *JudgeVerdict) Validate() error {
	if len(v.Questions) > MaxJudgeQuestions {
		return fmt.Errorf("verdict carries %d questions, max is %d", len(v.Questions), MaxJudgeQuestions)
	}
	if !v.Satisfied && len(v.Missing) == 0 && len(v.Questions) == 0 {
		return fmt.Errorf("unsatisfied verdict must carry missing criteria or questions")
	}
	return nil
}

// FallbackVerdict is the conservative default when the Judge's output cannot
// be parsed: not satisfied, and a restate question so a judge outage asks the
// user instead of burning replans.
func FallbackVerdict(reason string) *JudgeVerdict {
	return &JudgeVerdict{
		Satisfied: false,
		Missing:   []string{reason},
		Questions: []string{"Could you restate your request?"},
	}
}
