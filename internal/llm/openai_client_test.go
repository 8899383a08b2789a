package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	deeperrors "deepgraph/internal/errors"
)

func TestCompleteParsesContentAndUsage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "test-model", body["model"])
		assert.Equal(t, false, body["stream"])

		fmt.Fprint(w, `{
			"choices": [{"message": {"content": "hello"}, "finish_reason": "stop"}],
			"usage": {"prompt_tokens": 12, "completion_tokens": 3, "total_tokens": 15}
		}`)
	}))
	defer srv.Close()

	client := NewOpenAIClient("test-model", Config{APIKey: "test-key", BaseURL: srv.URL})
	resp, err := client.Complete(context.Background(), CompletionRequest{
		Messages: llmMessages("user", "hi"),
	})
	require.NoError(t, err)
	assert.Equal(t, "hello", resp.Content)
	assert.Equal(t, "stop", resp.StopReason)
	assert.Equal(t, 15, resp.Usage.TotalTokens)
	assert.Empty(t, resp.ToolCalls)
}

func llmMessages(role, content string) []Message {
	return []Message{{Role: role, Content: content}}
}

func TestCompleteParsesToolCalls(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{
			"choices": [{"message": {"content": "", "tool_calls": [
				{"id": "call-1", "type": "function",
				 "function": {"name": "web_search", "arguments": "{\"query\": \"go\"}"}}
			]}, "finish_reason": "tool_calls"}]
		}`)
	}))
	defer srv.Close()

	client := NewOpenAIClient("m", Config{BaseURL: srv.URL})
	resp, err := client.Complete(context.Background(), CompletionRequest{Messages: llmMessages("user", "q")})
	require.NoError(t, err)
	require.Len(t, resp.ToolCalls, 1)
	assert.Equal(t, "call-1", resp.ToolCalls[0].ID)
	assert.Equal(t, "web_search", resp.ToolCalls[0].Name)
	assert.Equal(t, "go", resp.ToolCalls[0].Arguments["query"])
}

func TestCompleteRepairsMalformedArguments(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Single quotes and a trailing comma in the argument payload.
		fmt.Fprint(w, `{
			"choices": [{"message": {"tool_calls": [
				{"id": "c", "type": "function",
				 "function": {"name": "t", "arguments": "{'query': 'go',}"}}
			]}, "finish_reason": "tool_calls"}]
		}`)
	}))
	defer srv.Close()

	client := NewOpenAIClient("m", Config{BaseURL: srv.URL})
	resp, err := client.Complete(context.Background(), CompletionRequest{Messages: llmMessages("user", "q")})
	require.NoError(t, err)
	require.Len(t, resp.ToolCalls, 1)
	assert.Equal(t, "go", resp.ToolCalls[0].Arguments["query"])
}

func TestCompleteClassifiesHTTPErrors(t *testing.T) {
	for _, tc := range []struct {
		status    int
		transient bool
	}{
		{http.StatusTooManyRequests, true},
		{http.StatusInternalServerError, true},
		{http.StatusBadGateway, true},
		{http.StatusBadRequest, false},
		{http.StatusUnauthorized, false},
	} {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tc.status)
			fmt.Fprint(w, `{"error": {"message": "nope"}}`)
		}))

		client := NewOpenAIClient("m", Config{BaseURL: srv.URL})
		_, err := client.Complete(context.Background(), CompletionRequest{Messages: llmMessages("user", "q")})
		require.Error(t, err, "status %d", tc.status)
		assert.Equal(t, tc.transient, deeperrors.IsTransient(err), "status %d", tc.status)
		srv.Close()
	}
}

func TestStreamCompleteAggregatesContentAndToolCalls(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		chunks := []string{
			`{"choices":[{"delta":{"content":"Hel"}}]}`,
			`{"choices":[{"delta":{"content":"lo"}}]}`,
			`{"choices":[{"delta":{"tool_calls":[{"index":0,"id":"call-1","function":{"name":"web_search","arguments":"{\"que"}}]}}]}`,
			`{"choices":[{"delta":{"tool_calls":[{"index":0,"function":{"arguments":"ry\": \"go\"}"}}]}}]}`,
			`{"choices":[{"delta":{},"finish_reason":"tool_calls"}]}`,
		}
		for _, chunk := range chunks {
			fmt.Fprintf(w, "data: %s\n\n", chunk)
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer srv.Close()

	client := NewOpenAIClient("m", Config{BaseURL: srv.URL})
	var streamed string
	sawFinal := false
	resp, err := client.StreamComplete(context.Background(), CompletionRequest{Messages: llmMessages("user", "q")}, StreamCallbacks{
		OnContentDelta: func(d ContentDelta) {
			streamed += d.Delta
			if d.Final {
				sawFinal = true
			}
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "Hello", streamed)
	assert.True(t, sawFinal)
	assert.Equal(t, "Hello", resp.Content)
	assert.Equal(t, "tool_calls", resp.StopReason)

	// Fragments spread over two chunks arrive as one complete call.
	require.Len(t, resp.ToolCalls, 1)
	assert.Equal(t, "call-1", resp.ToolCalls[0].ID)
	assert.Equal(t, "web_search", resp.ToolCalls[0].Name)
	assert.Equal(t, "go", resp.ToolCalls[0].Arguments["query"])
}

func TestStreamCompleteInterleavedToolCallIndices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		chunks := []string{
			`{"choices":[{"delta":{"tool_calls":[{"index":0,"id":"a","function":{"name":"first","arguments":"{\"x\""}}]}}]}`,
			`{"choices":[{"delta":{"tool_calls":[{"index":1,"id":"b","function":{"name":"second","arguments":"{}"}}]}}]}`,
			`{"choices":[{"delta":{"tool_calls":[{"index":0,"function":{"arguments":": 1}"}}]}}]}`,
			`{"choices":[{"delta":{},"finish_reason":"tool_calls"}]}`,
		}
		for _, chunk := range chunks {
			fmt.Fprintf(w, "data: %s\n\n", chunk)
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer srv.Close()

	client := NewOpenAIClient("m", Config{BaseURL: srv.URL})
	resp, err := client.StreamComplete(context.Background(), CompletionRequest{Messages: llmMessages("user", "q")}, StreamCallbacks{})
	require.NoError(t, err)
	require.Len(t, resp.ToolCalls, 2)
	assert.Equal(t, "first", resp.ToolCalls[0].Name)
	assert.Equal(t, float64(1), resp.ToolCalls[0].Arguments["x"])
	assert.Equal(t, "second", resp.ToolCalls[1].Name)
}

func TestJSONModeSetsResponseFormat(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		rf, ok := body["response_format"].(map[string]any)
		require.True(t, ok)
		assert.Equal(t, "json_object", rf["type"])
		fmt.Fprint(w, `{"choices": [{"message": {"content": "{}"}, "finish_reason": "stop"}]}`)
	}))
	defer srv.Close()

	client := NewOpenAIClient("m", Config{BaseURL: srv.URL})
	_, err := client.Complete(context.Background(), CompletionRequest{Messages: llmMessages("user", "q"), JSONMode: true})
	require.NoError(t, err)
}
