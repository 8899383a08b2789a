package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"deepgraph/internal/agent"
	"deepgraph/internal/logging"
	"deepgraph/internal/reporter"
	"deepgraph/internal/runcontext"
	"deepgraph/internal/task"
	"deepgraph/internal/workflow"
)

type instantPlanner struct{}

func (instantPlanner) Plan(context.Context, string) (*task.List, error) {
	return &task.List{Sequential: []*task.Task{{Name: "only", Description: "d"}}}, nil
}

type instantRunner struct{}

func (instantRunner) Run(_ context.Context, _ *runcontext.Context, t *task.Task, _ []string, _ agent.StreamFunc) (string, error) {
	t.Complete("result")
	return "result", nil
}

type instantReporter struct{}

func (instantReporter) Report(_ context.Context, _ *runcontext.Context, _ string, _ []*task.Task, _ reporter.StreamFunc) (string, error) {
	return "the report", nil
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	hub := NewHub(logging.Nop())
	engine := workflow.NewEngine(instantPlanner{}, instantRunner{}, instantReporter{}, hub, workflow.Config{}, logging.Nop())
	return New(engine, hub, logging.Nop())
}

func TestHealthEndpoint(t *testing.T) {
	router := newTestServer(t).Router()
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "ok")
}

func TestRunEndpointAcceptsAndCompletes(t *testing.T) {
	srv := newTestServer(t)
	router := srv.Router()

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/run", strings.NewReader(`{"query": "what now"}`))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusAccepted, w.Code)

	var accepted struct {
		RunID string `json:"run_id"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &accepted))
	require.NotEmpty(t, accepted.RunID)

	require.Eventually(t, func() bool {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/run/"+accepted.RunID, nil))
		if w.Code != http.StatusOK {
			return false
		}
		var result workflow.RunResult
		if err := json.Unmarshal(w.Body.Bytes(), &result); err != nil {
			return false
		}
		return result.Phase == workflow.PhaseDone && result.Report == "the report"
	}, 5*time.Second, 10*time.Millisecond)
}

func TestRunEndpointRejectsMissingQuery(t *testing.T) {
	router := newTestServer(t).Router()
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/run", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCancelUnknownRun(t *testing.T) {
	router := newTestServer(t).Router()
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/cancel", strings.NewReader(`{"run_id": "run-missing"}`))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRunStatusUnknownRun(t *testing.T) {
	router := newTestServer(t).Router()
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/run/nope", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}
