package tool

import (
	"context"

	"deepgraph/internal/llm"
)

// Tool is one capability the agent can invoke during task execution.
type Tool interface {
	// Definition returns the schema advertised to the model.
	Definition() llm.ToolDefinition

	// Execute runs the tool with the parsed arguments and returns a textual
	// result for the conversation.
	Execute(ctx context.Context, args map[string]any) (string, error)
}
