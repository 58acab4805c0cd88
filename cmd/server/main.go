// Command server starts the logical HTTP surface (spec.md §6) backing
// the iterative analysis job model, wiring config, storage, the LLM and
// RAG collaborators, and the controller together the way
// ternarybob-quaero's cmd/quaero serve command wires its own
// application graph before starting net/http.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/finsight/analyst/internal/config"
	"github.com/finsight/analyst/internal/controller"
	"github.com/finsight/analyst/internal/grader"
	"github.com/finsight/analyst/internal/grounded"
	"github.com/finsight/analyst/internal/httpapi"
	"github.com/finsight/analyst/internal/jobstore"
	"github.com/finsight/analyst/internal/llm"
	"github.com/finsight/analyst/internal/ragstore"
	"github.com/finsight/analyst/internal/registry"
	"github.com/finsight/analyst/internal/scheduler"
)

// maxConcurrentAnalyses bounds how many jobs run their controller loop
// at once (spec.md §5 "Parallel: background workers execute analyses
// ... concurrently").
const maxConcurrentAnalyses = 4

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("configuration error", slog.String("err", err.Error()))
		os.Exit(1)
	}

	llmClient, err := llm.NewOpenAIClient(llm.OpenAIClientConfig{
		APIKey:  cfg.AgentLLMAPIKey,
		BaseURL: cfg.AgentBaseURL,
		Model:   cfg.AgentLLMModel,
	})
	if err != nil {
		logger.Error("failed to build LLM client", slog.String("err", err.Error()))
		os.Exit(1)
	}

	var groundedClient grounded.Client
	if cfg.GeminiAPIKey != "" {
		gc, err := grounded.NewGeminiClient(context.Background(), grounded.GeminiClientConfig{APIKey: cfg.GeminiAPIKey})
		if err != nil {
			logger.Warn("grounded-search client unavailable; C6 Stage 2 disabled", slog.String("err", err.Error()))
		} else {
			groundedClient = gc
		}
	}

	reg, err := newRegistry(cfg, logger)
	if err != nil {
		logger.Error("failed to open document registry", slog.String("err", err.Error()))
		os.Exit(1)
	}
	defer reg.Close()

	rag, err := newRAGGateway(cfg)
	if err != nil {
		logger.Error("failed to build RAG gateway", slog.String("err", err.Error()))
		os.Exit(1)
	}

	g := grader.New(llmClient, groundedClient)
	ctrl := controller.New(llmClient, rag, reg, g, logger)

	store, err := jobstore.Open(cfg.JobDatabasePath)
	if err != nil {
		logger.Error("failed to open job store", slog.String("err", err.Error()))
		os.Exit(1)
	}
	defer store.Close()

	sched := scheduler.New(store, ctrl, maxConcurrentAnalyses, logger)
	api := httpapi.New(sched, reg, logger)

	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: api.Routes(),
	}

	go func() {
		logger.Info("HTTP server listening", slog.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("HTTP server failed", slog.String("err", err.Error()))
			os.Exit(1)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("shutdown error", slog.String("err", err.Error()))
	}
}

func newRegistry(cfg *config.Config, logger *slog.Logger) (*registry.Registry, error) {
	store, err := registry.NewBadgerStore(cfg.RegistryDataDir)
	if err != nil {
		return nil, err
	}
	return registry.New(store, logger), nil
}

func newRAGGateway(cfg *config.Config) (*ragstore.Gateway, error) {
	if cfg.VectorDBProvider != "qdrant" {
		return ragstore.New(ragstore.NewNopBackend()), nil
	}

	embedder, err := ragstore.NewOpenAIEmbedder(ragstore.OpenAIEmbedderConfig{
		APIKey:  cfg.AgentLLMAPIKey,
		BaseURL: cfg.AgentBaseURL,
	})
	if err != nil {
		return nil, err
	}

	backend, err := ragstore.NewQdrantBackend(context.Background(), ragstore.QdrantBackendConfig{
		Host:       cfg.QdrantHost,
		Port:       cfg.QdrantPort,
		APIKey:     cfg.QdrantAPIKey,
		Collection: cfg.QdrantCollection,
		Embedder:   embedder,
	})
	if err != nil {
		return nil, err
	}
	return ragstore.New(backend), nil
}
