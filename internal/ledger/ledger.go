package ledger

import (
	"context"
	"encoding/json"
	"fmt"

	"deepgraph/internal/kv"
	"deepgraph/internal/logging"
	"deepgraph/internal/task"
)

// Ledger appends an ordered audit trail of tool invocations per task. Writes
// are best effort: a failed append is logged and never propagated, so the
// audit trail can lose entries but cannot stall execution.
type Ledger struct {
	store  kv.Store
	logger logging.Logger
}

// New builds a Ledger over store.
func New(store kv.Store, logger logging.Logger) *Ledger {
	return &Ledger{store: store, logger: logging.OrNop(logger)}
}

func listKey(runID, taskName string) string {
	return fmt.Sprintf("tool_log:%s:%s", runID, taskName)
}

// Append records one tool invocation for the given run and task. The error
// return is informational; callers keep going regardless.
func (l *Ledger) Append(ctx context.Context, runID, taskName string, record task.ToolCallRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		l.logger.Warn("ledger marshal failed: run=%s task=%s err=%v", runID, taskName, err)
		return err
	}
	if err := l.store.RPush(ctx, listKey(runID, taskName), string(data)); err != nil {
		l.logger.Warn("ledger append failed: run=%s task=%s err=%v", runID, taskName, err)
		return err
	}
	return nil
}

// Records returns the recorded invocations for a task in append order.
// Entries that fail to decode are skipped.
func (l *Ledger) Records(ctx context.Context, runID, taskName string) ([]task.ToolCallRecord, error) {
	raw, err := l.store.LRange(ctx, listKey(runID, taskName), 0, -1)
	if err != nil {
		return nil, fmt.Errorf("read tool log: %w", err)
	}
	records := make([]task.ToolCallRecord, 0, len(raw))
	for _, entry := range raw {
		var record task.ToolCallRecord
		if err := json.Unmarshal([]byte(entry), &record); err != nil {
			l.logger.Warn("ledger decode failed: run=%s task=%s err=%v", runID, taskName, err)
			continue
		}
		records = append(records, record)
	}
	return records, nil
}
