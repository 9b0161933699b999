package models

import (
	"fmt"
	"regexp"
	"strings"
)

// StepType identifies the kind of a plan step.
type StepType string

const (
	StepTypeToolCall  StepType = "tool_call"
	StepTypeWebSearch StepType = "web_search"
	StepTypeSummarize StepType = "summarize"
	StepTypeWriteFile StepType = "write_file"
	StepTypeAskUser   StepType = "ask_user"
)

// IsValid checks if the step type is one of the known kinds.
func (t StepType) IsValid() bool {
	switch t {
	case StepTypeToolCall, StepTypeWebSearch, StepTypeSummarize, StepTypeWriteFile, StepTypeAskUser:
		return true
	default:
		return false
	}
}

// MaxPlanSteps is the hard upper bound on steps in a single plan.
const MaxPlanSteps = 10

// PlanStep is one unit of work inside a Plan.
type PlanStep struct {
	ID        string         `json:"id"`
	Type      StepType       `json:"type"`
	Tool      string         `json:"tool,omitempty"` // required iff Type == tool_call
	Inputs    map[string]any `json:"inputs"`
	DependsOn []string       `json:"depends_on"`
	Expect    string         `json:"expect"`
	OutputKey string         `json:"output_key"`
	Retry     int            `json:"retry"` // 0 or 1
}

// Plan is the Planner's output: a bounded, dependency-ordered list of steps
// plus the success criteria the Judge evaluates against.
type Plan struct {
	Goal                string     `json:"goal"`
	SuccessCriteria     []string   `json:"success_criteria"`
	MaxSteps            int        `json:"max_steps"`
	Steps               []PlanStep `json:"steps"`
	FinalAnswerTemplate string     `json:"final_answer_template"`
}

// placeholderRe matches {{key}} placeholders in templates and step inputs.
var placeholderRe = regexp.MustCompile(`\{\{([a-zA-Z0-9_.-]+)\}\}`)

// Placeholders returns the keys referenced by {{key}} occurrences in s.
func Placeholders(s string) []string {
	matches := placeholderRe.FindAllStringSubmatch(s, -1)
	keys := make([]string, 0, len(matches))
	for _, m := range matches {
		keys = append(keys, m[1])
	}
	return keys
}

// Validate enforces the plan invariants: bounded step count, unique step IDs,
// depends_on referencing earlier steps only (acyclic by construction), tool
// set on tool_call steps, retry in {0,1}, and every template placeholder
// resolving to some step's output_key or a user-input slot.
func (p *Plan) Validate() error {
	if p.MaxSteps < 1 || p.MaxSteps > MaxPlanSteps {
		return fmt.Errorf("max_steps must be between 1 and %d, got %d", MaxPlanSteps, p.MaxSteps)
	}
	if len(p.Steps) == 0 {
		return fmt.Errorf("plan has no steps")
	}
	if len(p.Steps) > p.MaxSteps {
		return fmt.Errorf("plan has %d steps, exceeding max_steps %d", len(p.Steps), p.MaxSteps)
	}
	if len(p.SuccessCriteria) == 0 {
		return fmt.Errorf("plan has no success criteria")
	}

	seen := make(map[string]bool, len(p.Steps))
	outputKeys := make(map[string]bool, len(p.Steps))
	for _, step := range p.Steps {
		if step.ID == "" {
			return fmt.Errorf("step with empty id")
		}
		if seen[step.ID] {
			return fmt.Errorf("duplicate step id %q", step.ID)
		}
		if !step.Type.IsValid() {
			return fmt.Errorf("step %s: unknown type %q", step.ID, step.Type)
		}
		if step.Type == StepTypeToolCall && step.Tool == "" {
			return fmt.Errorf("step %s: tool_call step without tool name", step.ID)
		}
		if step.Retry < 0 || step.Retry > 1 {
			return fmt.Errorf("step %s: retry must be 0 or 1, got %d", step.ID, step.Retry)
		}
		for _, dep := range step.DependsOn {
			if !seen[dep] {
				return fmt.Errorf("step %s depends on %q which is not an earlier step", step.ID, dep)
			}
		}
		seen[step.ID] = true
		if step.OutputKey != "" {
			outputKeys[step.OutputKey] = true
		}
	}

	for _, key := range Placeholders(p.FinalAnswerTemplate) {
		if !outputKeys[key] && !IsUserInputKey(key) {
			return fmt.Errorf("final_answer_template references unknown key %q", key)
		}
	}
	return nil
}

// IsUserInputKey reports whether key names a user-input slot rather than a
// step output (user answers land under user_* keys on resume).
func IsUserInputKey(key string) bool {
	return strings.HasPrefix(key, "user_")
}

// AskUserSteps counts the ask_user steps in the plan.
func (p *Plan) AskUserSteps() int {
	n := 0
	for _, s := range p.Steps {
		if s.Type == StepTypeAskUser {
			n++
		}
	}
	return n
}

// Step returns the step with the given ID, or nil.
func (p *Plan) Step(id string) *PlanStep {
	for i := range p.Steps {
		if p.Steps[i].ID == id {
			return &p.Steps[i]
		}
	}
	return nil
}
