package planner

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kaptinlin/jsonrepair"

	"deepgraph/internal/llm"
	"deepgraph/internal/logging"
	"deepgraph/internal/task"
)

const planSystemPrompt = `You are a planning assistant. Decompose the user's request into a set of small, self-contained tasks.

Rules:
- Tasks that depend on each other's results go into "sequential_tasks", in dependency order.
- Independent tasks go into "parallel_tasks".
- Each task needs a short unique "task_name" and a concrete "task_description" a worker can act on without seeing the other tasks.
- Use as few tasks as the request allows. A simple request may need a single sequential task.

Respond with a JSON object of this exact shape:
{"sequential_tasks": [{"task_name": "...", "task_description": "..."}], "parallel_tasks": [{"task_name": "...", "task_description": "..."}]}`

// Planner turns a user query into an executable task list.
type Planner struct {
	client    llm.Client
	retriever *KnowledgeRetriever
	logger    logging.Logger
}

// New builds a Planner. retriever may be nil when no knowledge base is
// configured.
func New(client llm.Client, retriever *KnowledgeRetriever, logger logging.Logger) *Planner {
	return &Planner{
		client:    client,
		retriever: retriever,
		logger:    logging.OrNop(logger),
	}
}

// Plan asks the model to decompose query into tasks and validates the
// result. A response that cannot be parsed or validated fails the run.
func (p *Planner) Plan(ctx context.Context, query string) (*task.List, error) {
	userPrompt := query
	if p.retriever != nil {
		if notes, err := p.retriever.Retrieve(ctx, query); err != nil {
			p.logger.Warn("knowledge retrieval failed: %v", err)
		} else if notes != "" {
			userPrompt = fmt.Sprintf("%s\n\nRelevant background:\n%s", query, notes)
		}
	}

	resp, err := p.client.Complete(ctx, llm.CompletionRequest{
		Messages: []llm.Message{
			{Role: "system", Content: planSystemPrompt},
			{Role: "user", Content: userPrompt},
		},
		JSONMode: true,
	})
	if err != nil {
		return nil, fmt.Errorf("plan request: %w", err)
	}

	list, err := parsePlan(resp.Content)
	if err != nil {
		return nil, fmt.Errorf("parse plan: %w", err)
	}
	if err := list.Validate(); err != nil {
		return nil, fmt.Errorf("invalid plan: %w", err)
	}
	p.logger.Info("plan ready: %d sequential, %d parallel", len(list.Sequential), len(list.Parallel))
	return list, nil
}

func parsePlan(content string) (*task.List, error) {
	raw := extractJSON(content)
	var list task.List
	if err := json.Unmarshal([]byte(raw), &list); err == nil {
		return &list, nil
	}
	repaired, repairErr := jsonrepair.JSONRepair(raw)
	if repairErr != nil {
		return nil, fmt.Errorf("malformed plan JSON: %w", repairErr)
	}
	if err := json.Unmarshal([]byte(repaired), &list); err != nil {
		return nil, fmt.Errorf("malformed plan JSON after repair: %w", err)
	}
	return &list, nil
}

// extractJSON strips markdown fences and surrounding prose from a model
// response, returning the outermost JSON object.
func extractJSON(content string) string {
	trimmed := strings.TrimSpace(content)
	if strings.HasPrefix(trimmed, "```") {
		trimmed = strings.TrimPrefix(trimmed, "```json")
		trimmed = strings.TrimPrefix(trimmed, "```")
		trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
		trimmed = strings.TrimSpace(trimmed)
	}
	start := strings.Index(trimmed, "{")
	end := strings.LastIndex(trimmed, "}")
	if start >= 0 && end > start {
		return trimmed[start : end+1]
	}
	return trimmed
}
