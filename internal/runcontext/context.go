package runcontext

import (
	"sync"

	"deepgraph/internal/task"
)

// Context is the shared scratch space for one run. All parties in a run see
// the same instance; access is safe from concurrent workers.
type Context struct {
	mu        sync.RWMutex
	runID     string
	values    map[string]any
	toolCalls map[string][]task.ToolCallRecord
}

// New creates an empty run context.
func New(runID string) *Context {
	return &Context{
		runID:     runID,
		values:    make(map[string]any),
		toolCalls: make(map[string][]task.ToolCallRecord),
	}
}

// RunID returns the run identifier.
func (c *Context) RunID() string {
	return c.runID
}

// Set stores a value under key, replacing any previous value.
func (c *Context) Set(key string, value any) {
	c.mu.Lock()
	c.values[key] = value
	c.mu.Unlock()
}

// Value returns the value stored under key.
func (c *Context) Value(key string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.values[key]
	return v, ok
}

// SeedTask ensures an empty tool-call list exists for the task, so reporting
// sees every planned task even when it never invoked a tool.
func (c *Context) SeedTask(taskName string) {
	c.mu.Lock()
	if _, ok := c.toolCalls[taskName]; !ok {
		c.toolCalls[taskName] = []task.ToolCallRecord{}
	}
	c.mu.Unlock()
}

// AppendToolCall records an invocation under the task's name.
func (c *Context) AppendToolCall(taskName string, record task.ToolCallRecord) {
	c.mu.Lock()
	c.toolCalls[taskName] = append(c.toolCalls[taskName], record)
	c.mu.Unlock()
}

// ToolCalls returns a copy of the invocations recorded for a task, in order.
func (c *Context) ToolCalls(taskName string) []task.ToolCallRecord {
	c.mu.RLock()
	defer c.mu.RUnlock()
	records := c.toolCalls[taskName]
	out := make([]task.ToolCallRecord, len(records))
	copy(out, records)
	return out
}
