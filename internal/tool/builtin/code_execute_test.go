package builtin

import (
	"context"
	"os/exec"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func requirePython(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("python3"); err != nil {
		t.Skip("python3 not available")
	}
}

func TestCodeExecuteRunsSnippet(t *testing.T) {
	requirePython(t)
	ce := NewCodeExecute()
	out, err := ce.Execute(context.Background(), map[string]any{
		"code": "print(6*7)",
	})
	require.NoError(t, err)
	assert.Contains(t, out, "42")
	assert.Contains(t, out, "Execution time:")
}

func TestCodeExecuteCapturesStderrOnFailure(t *testing.T) {
	requirePython(t)
	ce := NewCodeExecute()
	_, err := ce.Execute(context.Background(), map[string]any{
		"code": "raise ValueError('nope')",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ValueError")
}

func TestCodeExecuteRequiresCode(t *testing.T) {
	ce := NewCodeExecute()
	_, err := ce.Execute(context.Background(), map[string]any{"code": "   "})
	assert.Error(t, err)
}

func TestCodeExecuteTimesOut(t *testing.T) {
	requirePython(t)
	ce := NewCodeExecute()
	_, err := ce.Execute(context.Background(), map[string]any{
		"code":    "import time; time.sleep(10)",
		"timeout": float64(1),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timed out")
}
