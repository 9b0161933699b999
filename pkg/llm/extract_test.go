package llm

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"bare object", `{"a":1}`, `{"a":1}`},
		{"fenced json", "```json\n{\"a\": 1}\n```", `{"a": 1}`},
		{"fenced without language", "```\n{\"a\": 1}\n```", `{"a": 1}`},
		{"prose around object", `Sure! Here is the plan: {"goal":"x"} hope it helps`, `{"goal":"x"}`},
		{"nested braces", `{"a":{"b":2},"c":"}"}`, `{"a":{"b":2},"c":"}"}`},
		{"braces in strings", `{"msg":"use { and } freely"}`, `{"msg":"use { and } freely"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractJSON(tt.raw)
			require.NoError(t, err)
			assert.JSONEq(t, tt.want, string(got))
		})
	}
}

func TestExtractJSONRepairsNearJSON(t *testing.T) {
	// Trailing comma and single quotes, typical model sloppiness.
	got, err := ExtractJSON(`{'goal': 'x', 'steps': [1, 2,],}`)
	require.NoError(t, err)

	var v map[string]any
	require.NoError(t, json.Unmarshal(got, &v))
	assert.Equal(t, "x", v["goal"])
}

func TestExtractJSONFailures(t *testing.T) {
	for _, raw := range []string{"", "   ", "no json here at all"} {
		_, err := ExtractJSON(raw)
		assert.Error(t, err, "raw=%q", raw)
	}
}

func TestScriptedClient(t *testing.T) {
	c := NewScriptedClient(`{"ok":true}`)
	c.Queue("second")
	c.QueueError(errors.New("rate limited"))

	out, err := c.Complete(context.Background(), Request{Model: "m1"})
	require.NoError(t, err)
	assert.Equal(t, `{"ok":true}`, out)

	out, err = c.Complete(context.Background(), Request{Model: "m2"})
	require.NoError(t, err)
	assert.Equal(t, "second", out)

	_, err = c.Complete(context.Background(), Request{})
	assert.ErrorContains(t, err, "rate limited")

	_, err = c.Complete(context.Background(), Request{})
	assert.ErrorContains(t, err, "exhausted")

	calls := c.Calls()
	require.Len(t, calls, 4)
	assert.Equal(t, "m1", calls[0].Model)
}

func TestScriptedClientStream(t *testing.T) {
	c := NewScriptedClient("hello world")
	ch, err := c.Stream(context.Background(), Request{})
	require.NoError(t, err)

	var text string
	for chunk := range ch {
		tc, ok := chunk.(*TextChunk)
		require.True(t, ok)
		text += tc.Content
	}
	assert.Equal(t, "hello world", text)
}
