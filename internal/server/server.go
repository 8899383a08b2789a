package server

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"deepgraph/internal/logging"
	"deepgraph/internal/workflow"
)

// Server exposes the run API and the websocket event feed.
type Server struct {
	engine *workflow.Engine
	hub    *Hub
	logger logging.Logger

	mu      sync.RWMutex
	results map[string]*workflow.RunResult
}

// New builds a Server around engine. hub must be the same Hub wired into the
// engine's listener chain so websocket clients see run events.
func New(engine *workflow.Engine, hub *Hub, logger logging.Logger) *Server {
	return &Server{
		engine:  engine,
		hub:     hub,
		logger:  logging.OrNop(logger),
		results: make(map[string]*workflow.RunResult),
	}
}

// Router assembles the HTTP routes.
func (s *Server) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type"},
		MaxAge:           12 * time.Hour,
		AllowCredentials: false,
	}))

	router.GET("/health", s.handleHealth)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/ws", s.hub.HandleUpgrade)

	api := router.Group("/api")
	{
		api.POST("/run", s.handleRun)
		api.POST("/cancel", s.handleCancel)
		api.GET("/run/:id", s.handleRunStatus)
	}
	return router
}

// Serve blocks listening on addr until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening on %s", addr)
		errCh <- srv.ListenAndServe()
	}()
	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type runRequest struct {
	Query string `json:"query" binding:"required"`
}

// handleRun starts a run asynchronously and returns its ID. Progress flows
// through the websocket feed; the terminal result is kept for polling.
func (s *Server) handleRun(c *gin.Context) {
	var req runRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	runID := workflow.NewRunID()
	go func() {
		result, err := s.engine.RunWithID(context.Background(), runID, req.Query)
		if err != nil {
			s.logger.Error("run %s failed: %v", runID, err)
		}
		s.mu.Lock()
		s.results[runID] = result
		s.mu.Unlock()
	}()

	c.JSON(http.StatusAccepted, gin.H{"run_id": runID})
}

type cancelRequest struct {
	RunID string `json:"run_id" binding:"required"`
}

func (s *Server) handleCancel(c *gin.Context) {
	var req cancelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !s.engine.Cancel(req.RunID) {
		c.JSON(http.StatusNotFound, gin.H{"error": "no active run with that id"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"run_id": req.RunID, "cancelled": true})
}

func (s *Server) handleRunStatus(c *gin.Context) {
	runID := c.Param("id")
	s.mu.RLock()
	result, ok := s.results[runID]
	s.mu.RUnlock()
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown or still running"})
		return
	}
	c.JSON(http.StatusOK, result)
}
