package builtin

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"deepgraph/internal/llm"
	"deepgraph/internal/tool"
)

const tavilyEndpoint = "https://api.tavily.com/search"

type webSearch struct {
	client   *http.Client
	apiKey   string
	endpoint string
}

// NewWebSearch returns the Tavily-backed web search tool.
func NewWebSearch(apiKey string) tool.Tool {
	return newWebSearch(apiKey, nil, tavilyEndpoint)
}

func newWebSearch(apiKey string, client *http.Client, endpoint string) *webSearch {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &webSearch{client: client, apiKey: apiKey, endpoint: endpoint}
}

func (t *webSearch) Definition() llm.ToolDefinition {
	return llm.ToolDefinition{
		Name:        "web_search",
		Description: "Search the web for current information. Returns a summary and relevant results with URLs.",
		Parameters: llm.ParameterSchema{
			Type: "object",
			Properties: map[string]llm.Property{
				"query": {
					Type:        "string",
					Description: "The search query to execute",
				},
				"max_results": {
					Type:        "integer",
					Description: "Maximum number of results (1-10, default 5)",
				},
			},
			Required: []string{"query"},
		},
	}
}

func (t *webSearch) Execute(ctx context.Context, args map[string]any) (string, error) {
	if t.apiKey == "" {
		return "", fmt.Errorf("web search not configured: missing Tavily API key")
	}
	query, _ := args["query"].(string)
	if query == "" {
		return "", fmt.Errorf("query parameter required")
	}

	maxResults := 5
	if mr, ok := args["max_results"].(float64); ok {
		maxResults = int(mr)
		if maxResults < 1 {
			maxResults = 1
		}
		if maxResults > 10 {
			maxResults = 10
		}
	}

	reqBody := map[string]any{
		"api_key":        t.apiKey,
		"query":          query,
		"max_results":    maxResults,
		"search_depth":   "basic",
		"include_answer": true,
	}
	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint, bytes.NewReader(jsonData))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("search request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("search API returned status %d: %s", resp.StatusCode, string(body))
	}

	var searchResp struct {
		Query   string `json:"query"`
		Answer  string `json:"answer"`
		Results []struct {
			Title   string `json:"title"`
			URL     string `json:"url"`
			Content string `json:"content"`
		} `json:"results"`
	}
	if err := json.Unmarshal(body, &searchResp); err != nil {
		return "", fmt.Errorf("parse response: %w", err)
	}

	var out strings.Builder
	out.WriteString(fmt.Sprintf("Search: %s\n\n", searchResp.Query))
	if searchResp.Answer != "" {
		out.WriteString(fmt.Sprintf("Summary: %s\n\n", searchResp.Answer))
	}
	out.WriteString(fmt.Sprintf("%d Results:\n\n", len(searchResp.Results)))
	for i, result := range searchResp.Results {
		out.WriteString(fmt.Sprintf("%d. %s\n", i+1, result.Title))
		out.WriteString(fmt.Sprintf("   URL: %s\n", result.URL))
		out.WriteString(fmt.Sprintf("   %s\n\n", result.Content))
	}
	return strings.TrimRight(out.String(), "\n"), nil
}
