package planner

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"deepgraph/internal/llm"
	"deepgraph/internal/logging"
)

type fixedClient struct {
	content string
	err     error
}

func (c fixedClient) Complete(context.Context, llm.CompletionRequest) (*llm.CompletionResponse, error) {
	if c.err != nil {
		return nil, c.err
	}
	return &llm.CompletionResponse{Content: c.content, StopReason: "stop"}, nil
}

func (c fixedClient) StreamComplete(ctx context.Context, req llm.CompletionRequest, _ llm.StreamCallbacks) (*llm.CompletionResponse, error) {
	return c.Complete(ctx, req)
}

func (c fixedClient) Model() string { return "fixed" }

const wellFormedPlan = `{
  "sequential_tasks": [
    {"task_name": "gather", "task_description": "collect the figures"},
    {"task_name": "analyze", "task_description": "compare them"}
  ],
  "parallel_tasks": [
    {"task_name": "background", "task_description": "look up context"}
  ]
}`

func TestPlanParsesWellFormedResponse(t *testing.T) {
	p := New(fixedClient{content: wellFormedPlan}, nil, logging.Nop())
	list, err := p.Plan(context.Background(), "how did revenue develop")
	require.NoError(t, err)
	require.Len(t, list.Sequential, 2)
	require.Len(t, list.Parallel, 1)
	assert.Equal(t, "gather", list.Sequential[0].Name)
	assert.Equal(t, "background", list.Parallel[0].Name)
}

func TestPlanStripsMarkdownFences(t *testing.T) {
	fenced := "Here is the plan:\n```json\n" + wellFormedPlan + "\n```"
	p := New(fixedClient{content: fenced}, nil, logging.Nop())
	list, err := p.Plan(context.Background(), "q")
	require.NoError(t, err)
	assert.Equal(t, 3, list.Len())
}

func TestPlanRepairsSloppyJSON(t *testing.T) {
	// Trailing comma and single quotes, the usual model output damage.
	sloppy := `{'sequential_tasks': [{'task_name': 'only', 'task_description': 'do it'},], 'parallel_tasks': []}`
	p := New(fixedClient{content: sloppy}, nil, logging.Nop())
	list, err := p.Plan(context.Background(), "q")
	require.NoError(t, err)
	require.Len(t, list.Sequential, 1)
	assert.Equal(t, "only", list.Sequential[0].Name)
}

func TestPlanRejectsProse(t *testing.T) {
	p := New(fixedClient{content: "I cannot plan this, sorry."}, nil, logging.Nop())
	_, err := p.Plan(context.Background(), "q")
	assert.Error(t, err)
}

func TestPlanRejectsDuplicateNames(t *testing.T) {
	dup := `{"sequential_tasks": [{"task_name": "a", "task_description": "x"}],
		"parallel_tasks": [{"task_name": "a", "task_description": "y"}]}`
	p := New(fixedClient{content: dup}, nil, logging.Nop())
	_, err := p.Plan(context.Background(), "q")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate")
}
