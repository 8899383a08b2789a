package builtin

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"deepgraph/internal/llm"
)

type stubRunner struct {
	lastQuery string
	result    string
	err       error
}

func (r *stubRunner) Run(_ context.Context, query string) (string, error) {
	r.lastQuery = query
	return r.result, r.err
}

func (r *stubRunner) Close() error { return nil }

type stubClient struct {
	content string
	err     error
}

func (c stubClient) Complete(context.Context, llm.CompletionRequest) (*llm.CompletionResponse, error) {
	if c.err != nil {
		return nil, c.err
	}
	return &llm.CompletionResponse{Content: c.content, StopReason: "stop"}, nil
}

func (c stubClient) StreamComplete(ctx context.Context, req llm.CompletionRequest, _ llm.StreamCallbacks) (*llm.CompletionResponse, error) {
	return c.Complete(ctx, req)
}

func (c stubClient) Model() string { return "stub" }

func TestGraphQueryStripsFencesBeforeExecution(t *testing.T) {
	runner := &stubRunner{result: "acme | supplier"}
	gq := NewGraphQuery(runner, stubClient{content: "```ngql\nMATCH (v:company) RETURN v LIMIT 5\n```"})

	out, err := gq.Execute(context.Background(), map[string]any{
		"question": "who supplies acme?",
	})
	require.NoError(t, err)
	assert.Equal(t, "MATCH (v:company) RETURN v LIMIT 5", runner.lastQuery)
	assert.Contains(t, out, "acme | supplier")
	assert.Contains(t, out, "MATCH (v:company)")
}

func TestGraphQueryRequiresQuestion(t *testing.T) {
	gq := NewGraphQuery(&stubRunner{}, stubClient{content: "x"})
	_, err := gq.Execute(context.Background(), map[string]any{})
	assert.Error(t, err)
}

func TestGraphQueryRejectsEmptyGeneratedQuery(t *testing.T) {
	gq := NewGraphQuery(&stubRunner{}, stubClient{content: "   "})
	_, err := gq.Execute(context.Background(), map[string]any{"question": "q"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty query")
}

func TestGraphQueryPropagatesRunnerError(t *testing.T) {
	gq := NewGraphQuery(&stubRunner{err: errors.New("space not found")}, stubClient{content: "MATCH (v) RETURN v"})
	_, err := gq.Execute(context.Background(), map[string]any{"question": "q"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "space not found")
}
