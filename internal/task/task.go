package task

import (
	"fmt"
	"time"
)

// Status is the lifecycle state of a task. A task is immutable once its
// status is terminal (completed, failed or cancelled).
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusCancelled  Status = "cancelled"
)

// Terminal reports whether the status permits no further transitions.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// ExecutionType is the scheduling discipline a task belongs to.
type ExecutionType string

const (
	ExecutionSequential ExecutionType = "sequential"
	ExecutionParallel   ExecutionType = "parallel"
)

// Task is one unit of planner-produced work. It is owned by the scheduler and
// handed to exactly one worker for execution; only that worker mutates the
// Result/Status/Success fields.
type Task struct {
	Name          string        `json:"task_name"`
	Description   string        `json:"task_description"`
	Result        string        `json:"task_result,omitempty"`
	Status        Status        `json:"task_status"`
	Success       *bool         `json:"success,omitempty"`
	ExecutionType ExecutionType `json:"execution_type,omitempty"`
}

// Complete marks the task completed with the given result.
func (t *Task) Complete(result string) {
	if t.Status.Terminal() {
		return
	}
	t.Result = result
	t.Status = StatusCompleted
	t.Success = boolPtr(true)
}

// Fail marks the task failed, keeping the error text as its result so the
// final report can show what went wrong.
func (t *Task) Fail(msg string) {
	if t.Status.Terminal() {
		return
	}
	t.Result = msg
	t.Status = StatusFailed
	t.Success = boolPtr(false)
}

// Cancel marks the task cancelled. Distinct from failure.
func (t *Task) Cancel() {
	if t.Status.Terminal() {
		return
	}
	t.Status = StatusCancelled
	t.Success = boolPtr(false)
}

func boolPtr(b bool) *bool { return &b }

// List is the planner output: two named groups sharing one execution
// discipline each. Either group may be empty.
type List struct {
	Sequential []*Task `json:"sequential_tasks"`
	Parallel   []*Task `json:"parallel_tasks"`
}

// Len returns the total number of tasks across both groups.
func (l *List) Len() int {
	if l == nil {
		return 0
	}
	return len(l.Sequential) + len(l.Parallel)
}

// All returns every task, sequential group first.
func (l *List) All() []*Task {
	if l == nil {
		return nil
	}
	out := make([]*Task, 0, l.Len())
	out = append(out, l.Sequential...)
	out = append(out, l.Parallel...)
	return out
}

// Validate checks planner output for structural problems: empty names or
// duplicate names across both groups.
func (l *List) Validate() error {
	seen := make(map[string]bool, l.Len())
	for _, t := range l.All() {
		if t == nil || t.Name == "" {
			return fmt.Errorf("task with empty name")
		}
		if seen[t.Name] {
			return fmt.Errorf("duplicate task name: %s", t.Name)
		}
		seen[t.Name] = true
	}
	return nil
}

// RecordSource tags how a tool-call record was produced.
type RecordSource string

const (
	// SourceExecuted marks a direct, cache-missing execution.
	SourceExecuted RecordSource = "executed"
	// SourceCached marks a result served from the result cache.
	SourceCached RecordSource = "cached"
	// SourceFallback marks a direct execution taken because the cache or
	// ledger store was unreachable.
	SourceFallback RecordSource = "fallback"
)

// ToolCallRecord is one audit entry in a task's tool-call log. Records are
// append-only and their order within a task reflects causal execution order.
type ToolCallRecord struct {
	ToolName   string         `json:"tool_name"`
	Arguments  map[string]any `json:"arguments,omitempty"`
	Result     string         `json:"result"`
	DurationMS float64        `json:"duration_ms"`
	Timestamp  time.Time      `json:"timestamp"`
	Source     RecordSource   `json:"source"`
}
