package reporter

import (
	"context"
	"fmt"
	"strings"

	"deepgraph/internal/llm"
	"deepgraph/internal/logging"
	"deepgraph/internal/runcontext"
	"deepgraph/internal/task"
)

const reportSystemPrompt = `You are a reporting assistant. You receive the original request and the
results of the tasks that were executed for it. Write a clear, well-structured
answer to the original request in markdown, synthesizing the task results.
Mention failed tasks only when their absence affects the answer.`

// Reporter turns completed task results into the final narrative answer.
type Reporter struct {
	client llm.Client
	logger logging.Logger
}

// New builds a Reporter.
func New(client llm.Client, logger logging.Logger) *Reporter {
	return &Reporter{client: client, logger: logging.OrNop(logger)}
}

// StreamFunc receives report text as the model produces it.
type StreamFunc func(delta string)

// Report synthesizes the final answer from the tasks that produced results.
// onDelta may be nil for non-streaming use.
func (r *Reporter) Report(ctx context.Context, rc *runcontext.Context, query string, tasks []*task.Task, onDelta StreamFunc) (string, error) {
	summaries := make([]string, 0, len(tasks))
	for _, t := range tasks {
		if t.Status != task.StatusCompleted || t.Result == "" {
			continue
		}
		summaries = append(summaries, TaskSummary(rc, t))
	}
	if len(summaries) == 0 {
		return "", fmt.Errorf("no completed task results to report")
	}

	userPrompt := fmt.Sprintf("Original request:\n%s\n\nTask results:\n\n%s",
		query, strings.Join(summaries, "\n---\n\n"))

	req := llm.CompletionRequest{
		Messages: []llm.Message{
			{Role: "system", Content: reportSystemPrompt},
			{Role: "user", Content: userPrompt},
		},
	}

	var resp *llm.CompletionResponse
	var err error
	if onDelta != nil {
		resp, err = r.client.StreamComplete(ctx, req, llm.StreamCallbacks{
			OnContentDelta: func(d llm.ContentDelta) {
				if d.Delta != "" {
					onDelta(d.Delta)
				}
			},
		})
	} else {
		resp, err = r.client.Complete(ctx, req)
	}
	if err != nil {
		return "", fmt.Errorf("report request: %w", err)
	}
	r.logger.Info("report generated from %d task results", len(summaries))
	return strings.TrimSpace(resp.Content), nil
}

// TaskSummary renders one task's description, result and tool-call log into
// the block the reporter prompt is built from.
func TaskSummary(rc *runcontext.Context, t *task.Task) string {
	var b strings.Builder
	fmt.Fprintf(&b, "### %s\n\n", t.Name)
	fmt.Fprintf(&b, "Description: %s\n\n", t.Description)
	fmt.Fprintf(&b, "Result:\n%s\n", t.Result)

	records := rc.ToolCalls(t.Name)
	if len(records) > 0 {
		b.WriteString("\nTool calls:\n")
		for _, rec := range records {
			fmt.Fprintf(&b, "- %s (%s, %.0fms)\n", rec.ToolName, rec.Source, rec.DurationMS)
		}
	}
	return b.String()
}
