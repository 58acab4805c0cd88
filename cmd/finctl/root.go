// Command finctl is the administrative CLI spec.md §6 calls for: list/
// show/cancel/delete jobs, list/show registry entries, prune or reset
// the RAG store. Commands follow ternarybob-quaero's cmd/quaero
// pattern — one var-and-init() file per command family, a package-level
// runtime built once before any command runs.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/finsight/analyst/internal/config"
	"github.com/finsight/analyst/internal/controller"
	"github.com/finsight/analyst/internal/grader"
	"github.com/finsight/analyst/internal/jobstore"
	"github.com/finsight/analyst/internal/llm"
	"github.com/finsight/analyst/internal/ragstore"
	"github.com/finsight/analyst/internal/registry"
	"github.com/finsight/analyst/internal/scheduler"
)

// Exit codes (spec.md §6 "CLI surface"): 0 success, 1 configuration
// error (missing credentials), 2 partial success. exitFailure is this
// CLI's own addition for every other command failure (not found, bad
// argument, operation refused) — spec.md reserves 1 specifically for
// configuration problems, so a lookup miss must not exit identically
// to a missing API key.
const (
	exitSuccess = 0
	exitConfig  = 1
	exitPartial = 2
	exitFailure = 3
)

// exitErr pairs an error with the exit code main() should use for it,
// so a RunE handler (or initRuntime) can report something more
// specific than the default exitFailure without calling os.Exit
// directly — which would skip PersistentPostRunE's cleanup.
type exitErr struct {
	code int
	err  error
}

func (e *exitErr) Error() string { return e.err.Error() }
func (e *exitErr) Unwrap() error { return e.err }

func withExitCode(code int, err error) error {
	if err == nil {
		return nil
	}
	return &exitErr{code: code, err: err}
}

var (
	cfg    *config.Config
	logger *slog.Logger

	reg       *registry.Registry
	rag       *ragstore.Gateway
	store     *jobstore.Store
	sched     *scheduler.Scheduler
	llmClient *llm.OpenAIClient
)

var rootCmd = &cobra.Command{
	Use:   "finctl",
	Short: "Administrative CLI for the iterative analysis engine",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd == versionCmd {
			return nil
		}
		if err := initRuntime(); err != nil {
			return withExitCode(exitConfig, err)
		}
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		closeRuntime()
		return nil
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(jobsCmd)
	rootCmd.AddCommand(registryCmd)
	rootCmd.AddCommand(ragCmd)
	rootCmd.AddCommand(ingestCmd)
}

// initRuntime builds the shared collaborator graph once, before any
// command body runs. A missing AGENT_LLM_API_KEY is a configuration
// error surfaced immediately (spec.md §7 taxonomy), never reaching a
// command's own logic.
func initRuntime() error {
	logger = slog.New(slog.NewTextHandler(os.Stderr, nil))
	cfg = config.Load()
	if err := cfg.Validate(); err != nil {
		return err
	}

	regStore, err := registry.NewBadgerStore(cfg.RegistryDataDir)
	if err != nil {
		return fmt.Errorf("open registry: %w", err)
	}
	reg = registry.New(regStore, logger)

	rag = ragstore.New(ragstore.NewNopBackend())
	if cfg.VectorDBProvider == "qdrant" {
		embedder, err := ragstore.NewOpenAIEmbedder(ragstore.OpenAIEmbedderConfig{
			APIKey: cfg.AgentLLMAPIKey, BaseURL: cfg.AgentBaseURL,
		})
		if err != nil {
			return fmt.Errorf("build embedder: %w", err)
		}
		backend, err := ragstore.NewQdrantBackend(context.Background(), ragstore.QdrantBackendConfig{
			Host: cfg.QdrantHost, Port: cfg.QdrantPort, APIKey: cfg.QdrantAPIKey,
			Collection: cfg.QdrantCollection, Embedder: embedder,
		})
		if err != nil {
			return fmt.Errorf("connect qdrant: %w", err)
		}
		rag = ragstore.New(backend)
	}

	llmClient, err = llm.NewOpenAIClient(llm.OpenAIClientConfig{
		APIKey: cfg.AgentLLMAPIKey, BaseURL: cfg.AgentBaseURL, Model: cfg.AgentLLMModel,
	})
	if err != nil {
		return fmt.Errorf("build llm client: %w", err)
	}
	g := grader.New(llmClient, nil)
	ctrl := controller.New(llmClient, rag, reg, g, logger)

	store, err = jobstore.Open(cfg.JobDatabasePath)
	if err != nil {
		return fmt.Errorf("open job store: %w", err)
	}
	sched = scheduler.New(store, ctrl, 4, logger)
	return nil
}

func closeRuntime() {
	if reg != nil {
		_ = reg.Close()
	}
	if store != nil {
		_ = store.Close()
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		code := exitFailure
		var ee *exitErr
		if errors.As(err, &ee) {
			code = ee.code
		}
		os.Exit(code)
	}
}
