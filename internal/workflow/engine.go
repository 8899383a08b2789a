package workflow

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"deepgraph/internal/agent"
	"deepgraph/internal/logging"
	"deepgraph/internal/reporter"
	"deepgraph/internal/runcontext"
	"deepgraph/internal/task"
)

// Phase is the lifecycle stage of a run. Failed and cancelled are absorbing;
// once entered the run makes no further transitions.
type Phase string

const (
	PhasePlanning   Phase = "planning"
	PhaseDispatched Phase = "dispatched"
	PhaseJoining    Phase = "joining"
	PhaseReporting  Phase = "reporting"
	PhaseDone       Phase = "done"
	PhaseFailed     Phase = "failed"
	PhaseCancelled  Phase = "cancelled"
)

// Planner produces the task list for a query.
type Planner interface {
	Plan(ctx context.Context, query string) (*task.List, error)
}

// TaskRunner executes one task, mutating it in place.
type TaskRunner interface {
	Run(ctx context.Context, rc *runcontext.Context, t *task.Task, priorResults []string, onDelta agent.StreamFunc) (string, error)
}

// ReportGenerator synthesizes the final answer from completed tasks.
type ReportGenerator interface {
	Report(ctx context.Context, rc *runcontext.Context, query string, tasks []*task.Task, onDelta reporter.StreamFunc) (string, error)
}

// Config bounds engine behaviour.
type Config struct {
	// RunTimeout bounds one whole run including the join barrier.
	// Zero means no timeout.
	RunTimeout time.Duration
}

// RunResult is the terminal state of one run.
type RunResult struct {
	RunID     string        `json:"run_id"`
	Phase     Phase         `json:"phase"`
	Query     string        `json:"query"`
	Tasks     []*task.Task  `json:"tasks"`
	Report    string        `json:"report,omitempty"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
}

// Engine drives runs through planning, dispatch, join and reporting.
type Engine struct {
	planner  Planner
	runner   TaskRunner
	reporter ReportGenerator
	listener Listener
	metrics  *Metrics
	config   Config
	logger   logging.Logger

	mu     sync.Mutex
	active map[string]context.CancelFunc
}

// NewEngine builds an Engine. listener may be nil.
func NewEngine(p Planner, r TaskRunner, rep ReportGenerator, listener Listener, cfg Config, logger logging.Logger) *Engine {
	if listener == nil {
		listener = NopListener()
	}
	return &Engine{
		planner:  p,
		runner:   r,
		reporter: rep,
		listener: listener,
		metrics:  defaultMetrics(),
		config:   cfg,
		logger:   logging.OrNop(logger),
		active:   make(map[string]context.CancelFunc),
	}
}

// NewRunID returns a fresh run identifier.
func NewRunID() string {
	var buf [6]byte
	_, _ = rand.Read(buf[:])
	return fmt.Sprintf("run-%d-%s", time.Now().UnixMilli(), hex.EncodeToString(buf[:]))
}

// Cancel aborts the run with the given ID. Reports whether a matching
// active run existed.
func (e *Engine) Cancel(runID string) bool {
	e.mu.Lock()
	cancel, ok := e.active[runID]
	e.mu.Unlock()
	if ok {
		cancel()
	}
	return ok
}

func (e *Engine) register(runID string, cancel context.CancelFunc) {
	e.mu.Lock()
	e.active[runID] = cancel
	e.mu.Unlock()
}

func (e *Engine) unregister(runID string) {
	e.mu.Lock()
	delete(e.active, runID)
	e.mu.Unlock()
}

// Run executes query under a fresh run ID. See RunWithID.
func (e *Engine) Run(ctx context.Context, query string) (*RunResult, error) {
	return e.RunWithID(ctx, NewRunID(), query)
}

// RunWithID executes query as one run. The returned RunResult is always
// non-nil and carries the terminal phase; the error is non-nil only for
// planning and reporting failures.
func (e *Engine) RunWithID(ctx context.Context, runID, query string) (*RunResult, error) {
	runCtx := ctx
	var cancel context.CancelFunc
	if e.config.RunTimeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, e.config.RunTimeout)
	} else {
		runCtx, cancel = context.WithCancel(ctx)
	}
	e.register(runID, cancel)
	defer func() {
		cancel()
		e.unregister(runID)
	}()

	result := &RunResult{
		RunID:     runID,
		Query:     query,
		StartedAt: time.Now().UTC(),
	}
	e.metrics.runStarted()
	defer func() {
		result.Duration = time.Since(result.StartedAt)
		e.metrics.runFinished(result.Phase)
		e.listener.OnEvent(Event{
			Type:      EventRunFinished,
			RunID:     runID,
			Timestamp: time.Now().UTC(),
			Phase:     result.Phase,
		})
	}()

	rc := runcontext.New(runID)
	rc.Set("query", query)

	// Planning.
	phaseStart := e.setPhase(result, runID, PhasePlanning, time.Time{})
	plan, err := e.planner.Plan(runCtx, query)
	if err != nil {
		e.finish(result, PhaseFailed)
		return result, fmt.Errorf("planning: %w", err)
	}
	for _, t := range plan.Sequential {
		t.Status = task.StatusPending
		t.ExecutionType = task.ExecutionSequential
	}
	for _, t := range plan.Parallel {
		t.Status = task.StatusPending
		t.ExecutionType = task.ExecutionParallel
	}
	result.Tasks = plan.All()
	for _, t := range result.Tasks {
		rc.SeedTask(t.Name)
	}

	// Dispatch. Both groups always produce a completion event, an empty
	// group's event arrives immediately.
	phaseStart = e.setPhase(result, runID, PhaseDispatched, phaseStart)
	groupDone := make(chan Event, 2)

	go e.runSequential(runCtx, rc, runID, plan.Sequential, groupDone)
	go e.runParallel(runCtx, rc, runID, plan.Parallel, groupDone)

	// Join barrier: exactly one event per group.
	phaseStart = e.setPhase(result, runID, PhaseJoining, phaseStart)
	received := 0
	interrupted := false
	for received < 2 && !interrupted {
		select {
		case <-runCtx.Done():
			interrupted = true
		case event := <-groupDone:
			received++
			e.listener.OnEvent(event)
		}
	}

	if interrupted {
		// Workers notice the dead context and return quickly; wait for their
		// group events so no goroutine still touches the tasks below.
		grace := time.NewTimer(5 * time.Second)
		defer grace.Stop()
		for received < 2 {
			select {
			case <-groupDone:
				received++
			case <-grace.C:
				received = 2
			}
		}
		e.cancelRemaining(runID, result.Tasks)
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
			// Timed out waiting for the groups: complete without a report.
			e.logger.Warn("run %s timed out before join completed", runID)
			e.finish(result, PhaseDone)
			return result, nil
		}
		e.finish(result, PhaseCancelled)
		return result, nil
	}

	// Reporting, skipped when nothing produced a result.
	if !hasReportable(result.Tasks) {
		e.logger.Warn("run %s produced no reportable results", runID)
		e.finish(result, PhaseDone)
		return result, nil
	}
	_ = e.setPhase(result, runID, PhaseReporting, phaseStart)
	report, err := e.reporter.Report(runCtx, rc, query, result.Tasks, func(delta string) {
		e.listener.OnEvent(Event{
			Type:      EventReportDelta,
			RunID:     runID,
			Timestamp: time.Now().UTC(),
			Delta:     delta,
		})
	})
	if err != nil {
		if runCtx.Err() != nil && !errors.Is(runCtx.Err(), context.DeadlineExceeded) {
			e.finish(result, PhaseCancelled)
			return result, nil
		}
		e.finish(result, PhaseFailed)
		return result, fmt.Errorf("reporting: %w", err)
	}
	result.Report = report
	e.finish(result, PhaseDone)
	return result, nil
}

// runSequential executes tasks in order, threading each completed result
// into the next task's prompt. A failed task does not stop its successors;
// they simply see fewer prior results.
func (e *Engine) runSequential(ctx context.Context, rc *runcontext.Context, runID string, tasks []*task.Task, done chan<- Event) {
	var prior []string
	for _, t := range tasks {
		if ctx.Err() != nil {
			t.Cancel()
			e.observeTask(runID, t)
			continue
		}
		result, err := e.runner.Run(ctx, rc, t, prior, nil)
		e.observeTask(runID, t)
		if err == nil && t.Status == task.StatusCompleted && result != "" {
			prior = append(prior, result)
		}
	}
	done <- groupEvent(runID, task.ExecutionSequential, len(tasks))
}

// runParallel executes tasks concurrently. Each task's outcome is captured
// independently; a failing sibling never aborts the others.
func (e *Engine) runParallel(ctx context.Context, rc *runcontext.Context, runID string, tasks []*task.Task, done chan<- Event) {
	g := new(errgroup.Group)
	for _, t := range tasks {
		t := t
		g.Go(func() error {
			if ctx.Err() != nil {
				t.Cancel()
			} else {
				_, _ = e.runner.Run(ctx, rc, t, nil, nil)
			}
			e.observeTask(runID, t)
			return nil
		})
	}
	_ = g.Wait()
	done <- groupEvent(runID, task.ExecutionParallel, len(tasks))
}

func (e *Engine) observeTask(runID string, t *task.Task) {
	e.metrics.observeTask(string(t.Status))
	e.listener.OnEvent(taskEvent(runID, t))
}

// cancelRemaining marks every non-terminal task cancelled.
func (e *Engine) cancelRemaining(runID string, tasks []*task.Task) {
	for _, t := range tasks {
		if !t.Status.Terminal() {
			t.Cancel()
			e.observeTask(runID, t)
		}
	}
}

func (e *Engine) setPhase(result *RunResult, runID string, phase Phase, prevStart time.Time) time.Time {
	if !prevStart.IsZero() {
		e.metrics.observePhase(result.Phase, time.Since(prevStart))
	}
	result.Phase = phase
	e.listener.OnEvent(phaseEvent(runID, phase))
	return time.Now()
}

func (e *Engine) finish(result *RunResult, phase Phase) {
	result.Phase = phase
}

func hasReportable(tasks []*task.Task) bool {
	for _, t := range tasks {
		if t.Status == task.StatusCompleted && t.Result != "" {
			return true
		}
	}
	return false
}
