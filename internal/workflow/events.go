package workflow

import (
	"fmt"
	"time"

	"deepgraph/internal/logging"
	"deepgraph/internal/task"
)

// EventType discriminates run events.
type EventType string

const (
	EventPhaseChanged  EventType = "phase_changed"
	EventTaskUpdated   EventType = "task_updated"
	EventGroupComplete EventType = "group_complete"
	EventReportDelta   EventType = "report_delta"
	EventRunFinished   EventType = "run_finished"
)

// Event is one observation from a run. Fields beyond Type and RunID are
// populated per event type.
type Event struct {
	Type      EventType          `json:"type"`
	RunID     string             `json:"run_id"`
	Timestamp time.Time          `json:"timestamp"`
	Phase     Phase              `json:"phase,omitempty"`
	Task      *task.Task         `json:"task,omitempty"`
	Group     task.ExecutionType `json:"group,omitempty"`
	GroupSize int                `json:"group_size,omitempty"`
	Delta     string             `json:"delta,omitempty"`
}

// Listener observes run events. Implementations must be safe for calls from
// multiple goroutines and must not block; slow sinks should buffer or drop.
type Listener interface {
	OnEvent(event Event)
}

type nopListener struct{}

func (nopListener) OnEvent(Event) {}

// NopListener returns a Listener that discards everything.
func NopListener() Listener {
	return nopListener{}
}

type multiListener struct {
	sinks []Listener
}

func (m multiListener) OnEvent(event Event) {
	for _, sink := range m.sinks {
		sink.OnEvent(event)
	}
}

// MultiListener fans events out to every non-nil sink.
func MultiListener(sinks ...Listener) Listener {
	filtered := make([]Listener, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			filtered = append(filtered, s)
		}
	}
	if len(filtered) == 1 {
		return filtered[0]
	}
	return multiListener{sinks: filtered}
}

type consoleListener struct {
	logger logging.Logger
}

// ConsoleListener logs run events through the given logger. Report deltas
// are suppressed; the CLI streams those to stdout itself.
func ConsoleListener(logger logging.Logger) Listener {
	return consoleListener{logger: logging.OrNop(logger)}
}

func (c consoleListener) OnEvent(event Event) {
	switch event.Type {
	case EventPhaseChanged:
		c.logger.Info("run %s: phase %s", event.RunID, event.Phase)
	case EventTaskUpdated:
		if event.Task != nil {
			c.logger.Info("run %s: task %s -> %s", event.RunID, event.Task.Name, event.Task.Status)
		}
	case EventGroupComplete:
		c.logger.Info("run %s: %s group complete (%d tasks)", event.RunID, event.Group, event.GroupSize)
	case EventRunFinished:
		c.logger.Info("run %s: finished in phase %s", event.RunID, event.Phase)
	}
}

func taskEvent(runID string, t *task.Task) Event {
	snapshot := *t
	return Event{
		Type:      EventTaskUpdated,
		RunID:     runID,
		Timestamp: time.Now().UTC(),
		Task:      &snapshot,
	}
}

func phaseEvent(runID string, phase Phase) Event {
	return Event{
		Type:      EventPhaseChanged,
		RunID:     runID,
		Timestamp: time.Now().UTC(),
		Phase:     phase,
	}
}

func groupEvent(runID string, group task.ExecutionType, size int) Event {
	return Event{
		Type:      EventGroupComplete,
		RunID:     runID,
		Timestamp: time.Now().UTC(),
		Group:     group,
		GroupSize: size,
	}
}

// String renders a compact description, handy in tests and debug logs.
func (e Event) String() string {
	switch e.Type {
	case EventTaskUpdated:
		if e.Task != nil {
			return fmt.Sprintf("%s(%s:%s)", e.Type, e.Task.Name, e.Task.Status)
		}
	case EventPhaseChanged:
		return fmt.Sprintf("%s(%s)", e.Type, e.Phase)
	case EventGroupComplete:
		return fmt.Sprintf("%s(%s:%d)", e.Type, e.Group, e.GroupSize)
	}
	return string(e.Type)
}
