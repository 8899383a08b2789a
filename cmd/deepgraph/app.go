package main

import (
	"context"
	"fmt"

	"deepgraph/internal/agent"
	"deepgraph/internal/config"
	deeperrors "deepgraph/internal/errors"
	"deepgraph/internal/graph"
	"deepgraph/internal/kv"
	"deepgraph/internal/ledger"
	"deepgraph/internal/llm"
	"deepgraph/internal/logging"
	"deepgraph/internal/planner"
	"deepgraph/internal/reporter"
	"deepgraph/internal/tool"
	"deepgraph/internal/tool/builtin"
	"deepgraph/internal/toolcache"
	"deepgraph/internal/workflow"
)

// app holds the wired components shared by the CLI commands.
type app struct {
	cfg      *config.Config
	engine   *workflow.Engine
	listener workflow.Listener
	logger   logging.Logger

	store       kv.Store
	graphRunner graph.Runner
}

// buildApp wires the whole stack from configuration. listener receives run
// events; pass nil for a silent engine.
func buildApp(cfg *config.Config, listener workflow.Listener, logger logging.Logger) (*app, error) {
	if cfg.OpenAIAPIKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY is not set")
	}

	llmConfig := llm.Config{APIKey: cfg.OpenAIAPIKey, BaseURL: cfg.OpenAIBaseURL}
	retry := deeperrors.DefaultRetryConfig()
	plannerClient := llm.WrapWithRetry(llm.NewOpenAIClient(cfg.PlannerModel, llmConfig), retry)
	workerClient := llm.WrapWithRetry(llm.NewOpenAIClient(cfg.WorkerModel, llmConfig), retry)
	reporterClient := llm.WrapWithRetry(llm.NewOpenAIClient(cfg.ReporterModel, llmConfig), retry)
	toolClient := llm.WrapWithRetry(llm.NewOpenAIClient(cfg.ToolModel, llmConfig), retry)

	store := kv.NewRedis(cfg.RedisAddr)

	cache, err := toolcache.New(store, toolcache.Config{
		TTL:       cfg.ToolCacheTTL,
		LocalSize: cfg.ToolCacheSize,
	}, logging.NewComponentLogger("toolcache"))
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("build tool cache: %w", err)
	}
	ledg := ledger.New(store, logging.NewComponentLogger("ledger"))

	registry := tool.NewRegistry()
	registry.Register(builtin.NewCodeExecute())
	if cfg.TavilyAPIKey != "" {
		registry.Register(builtin.NewWebSearch(cfg.TavilyAPIKey))
	} else {
		logger.Warn("TAVILY_KEY not set, web_search disabled")
	}

	var graphRunner graph.Runner
	if cfg.NebulaHost != "" {
		graphRunner, err = graph.NewNebula(graph.NebulaConfig{
			Host:     cfg.NebulaHost,
			Port:     cfg.NebulaPort,
			User:     cfg.NebulaUser,
			Password: cfg.NebulaPassword,
			Space:    cfg.NebulaSpace,
		}, logging.NewComponentLogger("nebula"))
		if err != nil {
			logger.Warn("graph database unavailable, graph_query disabled: %v", err)
		} else {
			registry.Register(builtin.NewGraphQuery(graphRunner, toolClient))
		}
	}

	var retriever *planner.KnowledgeRetriever
	if cfg.KnowledgePath != "" {
		embedder := llm.NewEmbedder("", llmConfig)
		retriever, err = planner.NewKnowledgeRetriever(planner.KnowledgeConfig{}, embedder.Embed)
		if err != nil {
			logger.Warn("knowledge retriever unavailable: %v", err)
		} else if err := retriever.SeedFromFile(context.Background(), cfg.KnowledgePath); err != nil {
			logger.Warn("knowledge seeding failed: %v", err)
			retriever = nil
		}
	}

	plan := planner.New(plannerClient, retriever, logging.NewComponentLogger("planner"))
	worker := agent.New(workerClient, registry, cache, ledg, agent.Config{
		MaxIterations: cfg.MaxIterations,
		Temperature:   cfg.Temperature,
		MaxTokens:     cfg.MaxTokens,
	}, logging.NewComponentLogger("worker"))
	report := reporter.New(reporterClient, logging.NewComponentLogger("reporter"))

	engine := workflow.NewEngine(plan, worker, report, listener, workflow.Config{
		RunTimeout: cfg.RunTimeout,
	}, logging.NewComponentLogger("workflow"))

	return &app{
		cfg:         cfg,
		engine:      engine,
		listener:    listener,
		logger:      logger,
		store:       store,
		graphRunner: graphRunner,
	}, nil
}

func (a *app) Close() {
	if a.graphRunner != nil {
		_ = a.graphRunner.Close()
	}
	if a.store != nil {
		_ = a.store.Close()
	}
}
