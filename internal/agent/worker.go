package agent

import (
	"context"
	"fmt"
	"strings"
	"time"

	"deepgraph/internal/ledger"
	"deepgraph/internal/llm"
	"deepgraph/internal/logging"
	"deepgraph/internal/runcontext"
	"deepgraph/internal/task"
	"deepgraph/internal/tool"
	"deepgraph/internal/toolcache"
)

// MaxIterationsMessage is the result of a task whose reasoning loop ran out
// of iterations before the model produced a final answer. It is a terminal
// outcome, not an error.
const MaxIterationsMessage = "Max iterations reached without final answer"

const toolErrorPrefix = "Execute Tool Function Error"

const workerSystemPrompt = `You are a diligent worker executing one task from a larger plan.
Use the available tools when they help; answer directly when they do not.
When you have everything you need, reply with the final answer for the task and nothing else.`

// Worker runs a single task to completion by alternating model turns and
// tool execution.
type Worker struct {
	client   llm.Client
	registry *tool.Registry
	cache    *toolcache.Cache
	ledger   *ledger.Ledger
	config   Config
	logger   logging.Logger
}

// Config bounds worker behaviour.
type Config struct {
	MaxIterations int
	Temperature   float64
	MaxTokens     int
}

// New builds a Worker. cache and ledger may be nil; the worker then executes
// every call directly and keeps records only in the run context.
func New(client llm.Client, registry *tool.Registry, cache *toolcache.Cache, ledg *ledger.Ledger, cfg Config, logger logging.Logger) *Worker {
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = 5
	}
	return &Worker{
		client:   client,
		registry: registry,
		cache:    cache,
		ledger:   ledg,
		config:   cfg,
		logger:   logging.OrNop(logger),
	}
}

// StreamFunc receives incremental final-answer text as the model produces it.
type StreamFunc func(delta string)

// Run executes t within rc, mutating the task in place. Prior sibling
// results, when present, are threaded into the prompt so later tasks build
// on earlier ones. Returns the task's final result text.
func (w *Worker) Run(ctx context.Context, rc *runcontext.Context, t *task.Task, priorResults []string, onDelta StreamFunc) (string, error) {
	t.Status = task.StatusInProgress
	w.logger.Info("task started: %s", t.Name)

	messages := []llm.Message{
		{Role: "system", Content: workerSystemPrompt},
		{Role: "user", Content: buildTaskPrompt(t, priorResults)},
	}
	w.logger.Debug("task %s prompt tokens (approx): %d", t.Name, CountMessageTokens(messages))

	tools := w.registry.Definitions()

	for iteration := 0; iteration < w.config.MaxIterations; iteration++ {
		if err := ctx.Err(); err != nil {
			t.Cancel()
			return "", err
		}

		req := llm.CompletionRequest{
			Messages:    messages,
			Tools:       tools,
			Temperature: w.config.Temperature,
			MaxTokens:   w.config.MaxTokens,
		}

		var resp *llm.CompletionResponse
		var err error
		if onDelta != nil {
			resp, err = w.client.StreamComplete(ctx, req, llm.StreamCallbacks{
				OnContentDelta: func(d llm.ContentDelta) {
					if d.Delta != "" {
						onDelta(d.Delta)
					}
				},
			})
		} else {
			resp, err = w.client.Complete(ctx, req)
		}
		if err != nil {
			t.Fail(err.Error())
			return "", fmt.Errorf("completion turn %d: %w", iteration+1, err)
		}

		if len(resp.ToolCalls) == 0 {
			result := strings.TrimSpace(resp.Content)
			t.Complete(result)
			w.logger.Info("task completed: %s (%d iterations)", t.Name, iteration+1)
			return result, nil
		}

		messages = append(messages, llm.Message{
			Role:      "assistant",
			Content:   resp.Content,
			ToolCalls: resp.ToolCalls,
		})
		for _, call := range resp.ToolCalls {
			result := w.executeToolCall(ctx, rc, t.Name, call)
			messages = append(messages, llm.Message{
				Role:       "tool",
				Content:    result,
				ToolCallID: call.ID,
			})
		}
	}

	t.Complete(MaxIterationsMessage)
	w.logger.Warn("task %s exhausted its iteration budget", t.Name)
	return MaxIterationsMessage, nil
}

// executeToolCall resolves and runs one requested tool call, consulting the
// result cache first and recording the outcome in the ledger and the run
// context. The returned string is always suitable as a tool-role message.
func (w *Worker) executeToolCall(ctx context.Context, rc *runcontext.Context, taskName string, call llm.ToolCall) string {
	key := toolcache.KeyFor(call.Name, call.Arguments)
	source := task.SourceExecuted
	storeFaulted := false

	var result string
	var cached bool
	if w.cache != nil {
		var err error
		result, cached, err = w.cache.Get(ctx, key)
		if err != nil {
			storeFaulted = true
		}
	}

	start := time.Now()
	var durationMS float64
	if cached {
		source = task.SourceCached
		w.logger.Debug("cache hit: tool=%s task=%s", call.Name, taskName)
	} else {
		result = w.executeDirect(ctx, call)
		durationMS = float64(time.Since(start).Microseconds()) / 1000.0
		if w.cache != nil && !strings.HasPrefix(result, toolErrorPrefix) {
			if err := w.cache.Put(ctx, key, result); err != nil {
				storeFaulted = true
			}
		}
	}

	if storeFaulted && source == task.SourceExecuted {
		source = task.SourceFallback
	}

	record := task.ToolCallRecord{
		ToolName:   call.Name,
		Arguments:  call.Arguments,
		Result:     result,
		DurationMS: durationMS,
		Timestamp:  time.Now().UTC(),
		Source:     source,
	}
	if w.ledger != nil {
		if err := w.ledger.Append(ctx, rc.RunID(), taskName, record); err != nil && record.Source == task.SourceExecuted {
			record.Source = task.SourceFallback
		}
	}
	rc.AppendToolCall(taskName, record)
	return result
}

func (w *Worker) executeDirect(ctx context.Context, call llm.ToolCall) string {
	t, err := w.registry.Resolve(call.Name)
	if err != nil {
		return fmt.Sprintf("%s: Function %s not found", toolErrorPrefix, call.Name)
	}
	result, err := t.Execute(ctx, call.Arguments)
	if err != nil {
		w.logger.Warn("tool %s failed: %v", call.Name, err)
		return fmt.Sprintf("%s: %v", toolErrorPrefix, err)
	}
	return result
}

func buildTaskPrompt(t *task.Task, priorResults []string) string {
	var b strings.Builder
	b.WriteString("Task: ")
	b.WriteString(t.Name)
	b.WriteString("\n\n")
	b.WriteString(t.Description)
	if len(priorResults) > 0 {
		b.WriteString("\n\nResults from earlier tasks, in order:\n")
		for i, r := range priorResults {
			b.WriteString(fmt.Sprintf("\n[%d] %s\n", i+1, r))
		}
	}
	return b.String()
}
