package agent

import (
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// planSchema constrains the Planner's raw output before it is unmarshalled.
// Structural invariants (backward deps, template keys) are enforced by
// Plan.Validate afterwards.
const planSchema = `{
	"type": "object",
	"required": ["goal", "success_criteria", "max_steps", "steps", "final_answer_template"],
	"properties": {
		"goal": {"type": "string", "minLength": 1},
		"success_criteria": {"type": "array", "items": {"type": "string"}, "minItems": 1},
		"max_steps": {"type": "integer", "minimum": 1, "maximum": 10},
		"final_answer_template": {"type": "string"},
		"steps": {
			"type": "array",
			"minItems": 1,
			"maxItems": 10,
			"items": {
				"type": "object",
				"required": ["id", "type"],
				"properties": {
					"id": {"type": "string", "minLength": 1},
					"type": {"enum": ["tool_call", "web_search", "summarize", "write_file", "ask_user"]},
					"tool": {"type": "string"},
					"inputs": {"type": "object"},
					"depends_on": {"type": "array", "items": {"type": "string"}},
					"expect": {"type": "string"},
					"output_key": {"type": "string"},
					"retry": {"type": "integer", "minimum": 0, "maximum": 1}
				}
			}
		}
	}
}`

// verdictSchema constrains the Judge's raw output.
const verdictSchema = `{
	"type": "object",
	"required": ["satisfied"],
	"properties": {
		"satisfied": {"type": "boolean"},
		"missing": {"type": "array", "items": {"type": "string"}},
		"plan_patch": {},
		"questions": {"type": "array", "items": {"type": "string"}, "maxItems": 2}
	}
}`

var (
	schemaOnce     sync.Once
	compiledPlan   *jsonschema.Schema
	compiledVerdict *jsonschema.Schema
)

func compileSchemas() {
	schemaOnce.Do(func() {
		compiledPlan = mustCompile("plan.json", planSchema)
		compiledVerdict = mustCompile("verdict.json", verdictSchema)
	})
}

func mustCompile(name, schema string) *jsonschema.Schema {
	c := jsonschema.NewCompiler()
	if err := c.AddResource(name, strings.NewReader(schema)); err != nil {
		panic(err)
	}
	return c.MustCompile(name)
}

// validatePlanDoc checks a decoded plan document against the plan schema.
func validatePlanDoc(doc any) error {
	compileSchemas()
	if err := compiledPlan.Validate(doc); err != nil {
		return fmt.Errorf("plan schema: %w", err)
	}
	return nil
}

// validateVerdictDoc checks a decoded verdict document against the schema.
func validateVerdictDoc(doc any) error {
	compileSchemas()
	if err := compiledVerdict.Validate(doc); err != nil {
		return fmt.Errorf("verdict schema: %w", err)
	}
	return nil
}
