package tools

import (
	"context"
	"encoding/json"
	"time"

	"github.com/triad-ai/triad/pkg/models"
)

// SearchResult is one web search hit.
type SearchResult struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
	Rank    int    `json:"rank"`
}

// SearchBackend performs the actual search. The default deployment runs
// offline and serves canned results.
type SearchBackend interface {
	Search(ctx context.Context, query string, limit int) ([]SearchResult, error)
}

// OfflineSearchBackend fabricates deterministic placeholder results so the
// pipeline works without network access.
type OfflineSearchBackend struct{}

func (OfflineSearchBackend) Search(ctx context.Context, query string, limit int) ([]SearchResult, error) {
	canned := []SearchResult{
		{Title: "Result for: " + query, URL: "https://example.com/1", Snippet: "Offline search placeholder for " + query, Rank: 1},
		{Title: "More on: " + query, URL: "https://example.com/2", Snippet: "Second offline placeholder.", Rank: 2},
		{Title: "Background: " + query, URL: "https://example.com/3", Snippet: "Third offline placeholder.", Rank: 3},
	}
	if limit > 0 && limit < len(canned) {
		canned = canned[:limit]
	}
	return canned, nil
}

// NewWebSearchTool wraps a search backend as a registered tool.
func NewWebSearchTool(backend SearchBackend) Definition {
	if backend == nil {
		backend = OfflineSearchBackend{}
	}
	return Definition{
		Name:        "web_search",
		Description: "Search the web. Returns ranked results with title, url and snippet.",
		Parameters: json.RawMessage(`{
			"type": "object",
			"properties": {
				"query": {"type": "string"},
				"limit": {"type": "integer", "minimum": 1, "maximum": 10},
				"region": {"type": "string"}
			},
			"required": ["query"]
		}`),
		Timeout: 10 * time.Second,
		Handler: func(ctx context.Context, args map[string]any) (map[string]any, *models.ToolError) {
			query, _ := args["query"].(string)
			limit := 5
			if v, ok := args["limit"].(float64); ok {
				limit = int(v)
			}
			results, err := backend.Search(ctx, query, limit)
			if err != nil {
				return nil, &models.ToolError{
					Code:      models.ErrorCodeNetwork,
					Message:   err.Error(),
					Retryable: true,
				}
			}
			items := make([]any, len(results))
			for i, r := range results {
				items[i] = map[string]any{
					"title":   r.Title,
					"url":     r.URL,
					"snippet": r.Snippet,
					"rank":    r.Rank,
				}
			}
			return map[string]any{
				"query":         query,
				"results":       items,
				"total_results": len(items),
			}, nil
		},
	}
}
