// Package tools provides the tool registry and the builtin tools the
// executor dispatches plan steps to.
package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"
	openai "github.com/sashabaranov/go-openai"

	"github.com/triad-ai/triad/pkg/models"
)

// DefaultTimeout applies to tools that do not declare their own.
const DefaultTimeout = 10 * time.Second

// Handler executes a tool against validated arguments. It returns the data
// payload or a typed tool error; the registry wraps either into the result
// envelope.
type Handler func(ctx context.Context, args map[string]any) (map[string]any, *models.ToolError)

// Definition describes one registered tool.
type Definition struct {
	Name        string
	Description string
	// Parameters is the JSON schema for the tool's arguments.
	Parameters json.RawMessage
	Timeout    time.Duration
	Handler    Handler
}

type registered struct {
	def    Definition
	schema *jsonschema.Schema
}

// Registry holds the enabled tools and dispatches invocations with argument
// validation, per-tool timeouts, and panic containment.
type Registry struct {
	mu     sync.RWMutex
	tools  map[string]*registered
	logger *slog.Logger
}

// NewRegistry returns an empty registry.
func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		tools:  make(map[string]*registered),
		logger: logger,
	}
}

// Register compiles the tool's parameter schema and adds it to the registry.
func (r *Registry) Register(def Definition) error {
	if def.Name == "" {
		return fmt.Errorf("tool with empty name")
	}
	if def.Handler == nil {
		return fmt.Errorf("tool %s has no handler", def.Name)
	}
	if def.Timeout <= 0 {
		def.Timeout = DefaultTimeout
	}
	if len(def.Parameters) == 0 {
		def.Parameters = json.RawMessage(`{"type":"object"}`)
	}

	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(def.Name+".json", bytesReader(def.Parameters)); err != nil {
		return fmt.Errorf("adding schema for %s: %w", def.Name, err)
	}
	schema, err := compiler.Compile(def.Name + ".json")
	if err != nil {
		return fmt.Errorf("compiling schema for %s: %w", def.Name, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[def.Name]; exists {
		return fmt.Errorf("tool %s already registered", def.Name)
	}
	r.tools[def.Name] = &registered{def: def, schema: schema}
	return nil
}

// MustRegister panics on registration failure. Builtin wiring only.
func (r *Registry) MustRegister(def Definition) {
	if err := r.Register(def); err != nil {
		panic(err)
	}
}

// Has reports whether a tool is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.tools[name]
	return ok
}

// Names returns the registered tool names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Timeout returns the tool's execution deadline, or DefaultTimeout for
// unknown tools.
func (r *Registry) Timeout(name string) time.Duration {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if t, ok := r.tools[name]; ok {
		return t.def.Timeout
	}
	return DefaultTimeout
}

// Dispatch runs the named tool. Every outcome is a ToolResult: unknown tool
// and schema violations fail as INVALID_INPUT without reaching the handler,
// deadline hits fail as NETWORK, handler panics fail as INTERNAL.
func (r *Registry) Dispatch(ctx context.Context, name string, args map[string]any) *models.ToolResult {
	start := time.Now()
	meta := func() models.ToolMeta {
		return models.ToolMeta{
			Source:    name,
			LatencyMs: time.Since(start).Milliseconds(),
			Params:    args,
		}
	}

	r.mu.RLock()
	t, ok := r.tools[name]
	r.mu.RUnlock()
	if !ok {
		return models.NewToolFailure(models.ErrorCodeInvalidInput,
			fmt.Sprintf("unknown tool %q", name), meta())
	}

	if args == nil {
		args = map[string]any{}
	}
	if err := t.schema.Validate(anyify(args)); err != nil {
		return models.NewToolFailure(models.ErrorCodeInvalidInput,
			fmt.Sprintf("invalid arguments: %v", err), meta())
	}

	ctx, cancel := context.WithTimeout(ctx, t.def.Timeout)
	defer cancel()

	type outcome struct {
		data map[string]any
		terr *models.ToolError
	}
	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if p := recover(); p != nil {
				r.logger.Error("tool panicked", "tool", name, "panic", p)
				done <- outcome{terr: &models.ToolError{
					Code:      models.ErrorCodeInternal,
					Message:   fmt.Sprintf("tool %s panicked: %v", name, p),
					Retryable: true,
				}}
			}
		}()
		data, terr := t.def.Handler(ctx, args)
		done <- outcome{data: data, terr: terr}
	}()

	select {
	case <-ctx.Done():
		return models.NewToolFailure(models.ErrorCodeInternal,
			fmt.Sprintf("tool %s timed out after %s", name, t.def.Timeout), meta())
	case out := <-done:
		if out.terr != nil {
			return &models.ToolResult{Ok: false, Error: out.terr, Meta: meta()}
		}
		return models.NewToolSuccess(out.data, meta())
	}
}

// OpenAITools exports the registry as OpenAI function-calling tool specs for
// the planner prompt.
func (r *Registry) OpenAITools() []openai.Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]openai.Tool, 0, len(names))
	for _, name := range names {
		t := r.tools[name]
		out = append(out, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        t.def.Name,
				Description: t.def.Description,
				Parameters:  t.def.Parameters,
			},
		})
	}
	return out
}

func bytesReader(b []byte) io.Reader {
	return bytes.NewReader(b)
}

// anyify round-trips args through JSON so the schema validator sees plain
// json types (float64 numbers) regardless of how callers built the map.
func anyify(args map[string]any) any {
	b, err := json.Marshal(args)
	if err != nil {
		return args
	}
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return args
	}
	return v
}
