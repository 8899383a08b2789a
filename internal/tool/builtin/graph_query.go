package builtin

import (
	"context"
	"fmt"
	"strings"

	"deepgraph/internal/graph"
	"deepgraph/internal/llm"
	"deepgraph/internal/tool"
)

const queryGenPrompt = `You translate natural language questions into nGQL statements for a NebulaGraph database.
Return only the query, no explanation and no markdown fences.
Use MATCH patterns where possible and LIMIT result sets to at most 30 rows.`

type graphQuery struct {
	runner graph.Runner
	client llm.Client
}

// NewGraphQuery returns a tool that answers questions against a graph
// database. The model first generates a query from the question, the runner
// executes it.
func NewGraphQuery(runner graph.Runner, client llm.Client) tool.Tool {
	return &graphQuery{runner: runner, client: client}
}

func (t *graphQuery) Definition() llm.ToolDefinition {
	return llm.ToolDefinition{
		Name:        "graph_query",
		Description: "Query the knowledge graph database with a natural language question. Returns matching entities and relationships.",
		Parameters: llm.ParameterSchema{
			Type: "object",
			Properties: map[string]llm.Property{
				"question": {
					Type:        "string",
					Description: "Natural language question about entities or relationships in the graph",
				},
			},
			Required: []string{"question"},
		},
	}
}

func (t *graphQuery) Execute(ctx context.Context, args map[string]any) (string, error) {
	question, _ := args["question"].(string)
	if strings.TrimSpace(question) == "" {
		return "", fmt.Errorf("question parameter required")
	}

	resp, err := t.client.Complete(ctx, llm.CompletionRequest{
		Messages: []llm.Message{
			{Role: "system", Content: queryGenPrompt},
			{Role: "user", Content: question},
		},
	})
	if err != nil {
		return "", fmt.Errorf("generate query: %w", err)
	}
	stmt := graph.CleanQuery(resp.Content)
	if stmt == "" {
		return "", fmt.Errorf("model produced an empty query")
	}

	result, err := t.runner.Run(ctx, stmt)
	if err != nil {
		return "", fmt.Errorf("run query: %w", err)
	}
	return fmt.Sprintf("Query:\n%s\n\nResult:\n%s", stmt, result), nil
}
