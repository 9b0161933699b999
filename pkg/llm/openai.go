package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	openai "github.com/sashabaranov/go-openai"

	"github.com/triad-ai/triad/pkg/config"
)

// OpenAIClient talks to any OpenAI-compatible endpoint (OpenAI, DeepSeek,
// local gateways) via the chat completions API.
type OpenAIClient struct {
	api        *openai.Client
	maxRetries uint64
	logger     *slog.Logger
}

// NewOpenAIClient builds a client from configuration. BaseURL empty means
// the provider's default endpoint.
func NewOpenAIClient(cfg *config.Config, logger *slog.Logger) *OpenAIClient {
	apiCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		apiCfg.BaseURL = cfg.BaseURL
	}
	return &OpenAIClient{
		api:        openai.NewClientWithConfig(apiCfg),
		maxRetries: 2,
		logger:     logger,
	}
}

func (c *OpenAIClient) chatRequest(req Request) openai.ChatCompletionRequest {
	messages := make([]openai.ChatCompletionMessage, len(req.Messages))
	for i, m := range req.Messages {
		messages[i] = openai.ChatCompletionMessage{Role: m.Role, Content: m.Content}
	}
	out := openai.ChatCompletionRequest{
		Model:       req.Model,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
		Messages:    messages,
	}
	if req.ForceJSON {
		out.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}
	return out
}

// Complete runs the request with exponential backoff on transient transport
// failures.
func (c *OpenAIClient) Complete(ctx context.Context, req Request) (string, error) {
	var content string
	operation := func() error {
		resp, err := c.api.CreateChatCompletion(ctx, c.chatRequest(req))
		if err != nil {
			if retryableAPIError(err) {
				c.logger.Warn("LLM call failed, retrying", "model", req.Model, "error", err)
				return err
			}
			return backoff.Permanent(err)
		}
		if len(resp.Choices) == 0 {
			return backoff.Permanent(fmt.Errorf("empty response from model %s", req.Model))
		}
		content = resp.Choices[0].Message.Content
		return nil
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(
			backoff.WithInitialInterval(2*time.Second),
		), c.maxRetries),
		ctx,
	)
	if err := backoff.Retry(operation, policy); err != nil {
		return "", fmt.Errorf("llm completion: %w", err)
	}
	return content, nil
}

// Stream opens a streaming chat completion and forwards deltas as chunks.
func (c *OpenAIClient) Stream(ctx context.Context, req Request) (<-chan Chunk, error) {
	stream, err := c.api.CreateChatCompletionStream(ctx, c.chatRequest(req))
	if err != nil {
		return nil, fmt.Errorf("llm stream open: %w", err)
	}

	out := make(chan Chunk, 16)
	go func() {
		defer close(out)
		defer stream.Close()
		for {
			resp, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				out <- &ErrorChunk{Message: err.Error(), Retryable: retryableAPIError(err)}
				return
			}
			if len(resp.Choices) > 0 && resp.Choices[0].Delta.Content != "" {
				out <- &TextChunk{Content: resp.Choices[0].Delta.Content}
			}
		}
	}()
	return out, nil
}

// Close is a no-op; the underlying HTTP client needs no teardown.
func (c *OpenAIClient) Close() error { return nil }

// retryableAPIError classifies provider errors worth retrying: rate limits,
// server-side failures, and transport errors.
func retryableAPIError(err error) bool {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.HTTPStatusCode {
		case http.StatusTooManyRequests,
			http.StatusInternalServerError,
			http.StatusBadGateway,
			http.StatusServiceUnavailable,
			http.StatusGatewayTimeout:
			return true
		}
		return false
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode >= 500 || reqErr.HTTPStatusCode == 0
	}
	// Plain transport error.
	return true
}
