package llm

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/triad-ai/triad/pkg/config"
)

func openAIClientForTest(t *testing.T, handler http.HandlerFunc) *OpenAIClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	cfg := &config.Config{APIKey: "test-key", BaseURL: srv.URL + "/v1"}
	return NewOpenAIClient(cfg, slog.Default())
}

func completionBody(content string) []byte {
	b, _ := json.Marshal(map[string]any{
		"id":      "chatcmpl-1",
		"object":  "chat.completion",
		"choices": []map[string]any{{"index": 0, "message": map[string]any{"role": "assistant", "content": content}}},
	})
	return b
}

func TestOpenAIComplete(t *testing.T) {
	var gotReq map[string]any
	c := openAIClientForTest(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		w.Header().Set("Content-Type", "application/json")
		w.Write(completionBody("hello"))
	})

	out, err := c.Complete(context.Background(), Request{
		Model:     "gpt-4o-mini",
		Messages:  []Message{{Role: "user", Content: "hi"}},
		ForceJSON: true,
	})
	require.NoError(t, err)
	assert.Equal(t, "hello", out)

	assert.Equal(t, "gpt-4o-mini", gotReq["model"])
	rf := gotReq["response_format"].(map[string]any)
	assert.Equal(t, "json_object", rf["type"])
}

func TestOpenAICompleteRetriesTransient(t *testing.T) {
	var calls atomic.Int32
	c := openAIClientForTest(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"error":{"message":"overloaded"}}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(completionBody("recovered"))
	})

	out, err := c.Complete(context.Background(), Request{Model: "m", Messages: []Message{{Role: "user", Content: "x"}}})
	require.NoError(t, err)
	assert.Equal(t, "recovered", out)
	assert.Equal(t, int32(2), calls.Load())
}

func TestOpenAICompleteNoRetryOnBadRequest(t *testing.T) {
	var calls atomic.Int32
	c := openAIClientForTest(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":{"message":"bad model"}}`))
	})

	_, err := c.Complete(context.Background(), Request{Model: "m", Messages: []Message{{Role: "user", Content: "x"}}})
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}
