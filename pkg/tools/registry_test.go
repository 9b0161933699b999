package tools

import (
	"context"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/triad-ai/triad/pkg/models"
)

func testRegistry(t *testing.T) *Registry {
	t.Helper()
	return NewRegistry(slog.Default())
}

func TestDispatchUnknownTool(t *testing.T) {
	r := testRegistry(t)
	res := r.Dispatch(context.Background(), "nope", nil)
	require.False(t, res.Ok)
	assert.Equal(t, models.ErrorCodeInvalidInput, res.Error.Code)
	assert.Contains(t, res.Error.Message, "unknown tool")
}

func TestDispatchValidatesSchema(t *testing.T) {
	r := testRegistry(t)
	called := false
	require.NoError(t, r.Register(Definition{
		Name: "echo",
		Parameters: json.RawMessage(`{
			"type": "object",
			"properties": {"text": {"type": "string"}},
			"required": ["text"]
		}`),
		Handler: func(ctx context.Context, args map[string]any) (map[string]any, *models.ToolError) {
			called = true
			return map[string]any{"text": args["text"]}, nil
		},
	}))

	res := r.Dispatch(context.Background(), "echo", map[string]any{})
	require.False(t, res.Ok)
	assert.Equal(t, models.ErrorCodeInvalidInput, res.Error.Code)
	assert.False(t, called, "handler must not run on schema violation")

	res = r.Dispatch(context.Background(), "echo", map[string]any{"text": "hi"})
	require.True(t, res.Ok)
	assert.True(t, called)
	assert.Equal(t, "hi", res.Data["text"])
	assert.Equal(t, "echo", res.Meta.Source)
}

func TestDispatchTimeout(t *testing.T) {
	r := testRegistry(t)
	require.NoError(t, r.Register(Definition{
		Name:    "slow",
		Timeout: 30 * time.Millisecond,
		Handler: func(ctx context.Context, args map[string]any) (map[string]any, *models.ToolError) {
			select {
			case <-ctx.Done():
			case <-time.After(5 * time.Second):
			}
			return map[string]any{}, nil
		},
	}))

	res := r.Dispatch(context.Background(), "slow", nil)
	require.False(t, res.Ok)
	assert.Equal(t, models.ErrorCodeInternal, res.Error.Code)
	assert.True(t, res.Retryable())
}

func TestDispatchRecoversPanic(t *testing.T) {
	r := testRegistry(t)
	require.NoError(t, r.Register(Definition{
		Name: "boom",
		Handler: func(ctx context.Context, args map[string]any) (map[string]any, *models.ToolError) {
			panic("kaboom")
		},
	}))

	res := r.Dispatch(context.Background(), "boom", nil)
	require.False(t, res.Ok)
	assert.Equal(t, models.ErrorCodeInternal, res.Error.Code)
	assert.True(t, res.Retryable())
	assert.Contains(t, res.Error.Message, "kaboom")
}

func TestRegisterRejectsDuplicates(t *testing.T) {
	r := testRegistry(t)
	def := Definition{Name: "x", Handler: func(context.Context, map[string]any) (map[string]any, *models.ToolError) { return nil, nil }}
	require.NoError(t, r.Register(def))
	assert.ErrorContains(t, r.Register(def), "already registered")
}

func TestOpenAIToolsExport(t *testing.T) {
	r := testRegistry(t)
	require.NoError(t, r.Register(Definition{
		Name:        "b_tool",
		Description: "second",
		Handler:     func(context.Context, map[string]any) (map[string]any, *models.ToolError) { return nil, nil },
	}))
	require.NoError(t, r.Register(Definition{
		Name:        "a_tool",
		Description: "first",
		Handler:     func(context.Context, map[string]any) (map[string]any, *models.ToolError) { return nil, nil },
	}))

	specs := r.OpenAITools()
	require.Len(t, specs, 2)
	assert.Equal(t, "a_tool", specs[0].Function.Name)
	assert.Equal(t, "b_tool", specs[1].Function.Name)
	assert.Equal(t, []string{"a_tool", "b_tool"}, r.Names())
}

func TestTimeoutLookup(t *testing.T) {
	r := testRegistry(t)
	require.NoError(t, r.Register(Definition{
		Name:    "quick",
		Timeout: 2 * time.Second,
		Handler: func(context.Context, map[string]any) (map[string]any, *models.ToolError) { return nil, nil },
	}))
	assert.Equal(t, 2*time.Second, r.Timeout("quick"))
	assert.Equal(t, DefaultTimeout, r.Timeout("unknown"))
}
