package workflow

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMustNewMetricsToleratesReRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	first := MustNewMetrics(reg)
	require.NotNil(t, first)

	var second *Metrics
	assert.NotPanics(t, func() {
		second = MustNewMetrics(reg)
	})
	require.NotNil(t, second)

	// Both instances feed the same underlying collectors.
	first.observeTask("completed")
	second.observeTask("completed")
	first.observePhase(PhasePlanning, 10*time.Millisecond)
	first.runStarted()
	first.runFinished(PhaseDone)

	families, err := reg.Gather()
	require.NoError(t, err)
	names := map[string]bool{}
	for _, mf := range families {
		names[mf.GetName()] = true
	}
	assert.True(t, names["deepgraph_workflow_task_outcomes_total"])
	assert.True(t, names["deepgraph_workflow_phase_duration_seconds"])
	assert.True(t, names["deepgraph_workflow_runs_total"])
}
