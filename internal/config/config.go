// Package config builds the single Config struct this module's
// startup code constructs once from environment variables and passes
// down explicitly, rather than reading os.Getenv scattered through the
// codebase (SPEC_FULL.md ambient stack: "Module-level path
// configuration via environment side effects" remapping). Local
// development loads a .env file via github.com/joho/godotenv, matching
// ternarybob-quaero's and codeready-toolchain-tarsy's use of the same
// library for 12-factor config.
package config

import (
	"os"

	"github.com/joho/godotenv"
)

// Config holds every environment variable spec.md §6 enumerates.
type Config struct {
	// AgentLLMAPIKey / AgentBaseURL configure the core chat-completion
	// LLM (internal/llm).
	AgentLLMAPIKey string
	AgentBaseURL   string
	AgentLLMModel  string

	// GeminiAPIKey configures the grounded-search LLM (internal/grounded).
	// Either GEMINI_API_KEY or GOOGLE_API_KEY is accepted.
	GeminiAPIKey string

	// EdgarUserAgent configures the filings adapter (internal/filings).
	EdgarUserAgent string

	// RAG store configuration (internal/ragstore).
	CogneeDataRoot      string
	CogneeSystemRoot     string
	GraphDatabaseProvider string
	VectorDBProvider      string
	DBProvider            string

	// QdrantHost / QdrantPort / QdrantAPIKey / QdrantCollection back
	// the concrete Qdrant-backed RAG store (SPEC_FULL.md domain stack).
	QdrantHost       string
	QdrantPort       int
	QdrantAPIKey     string
	QdrantCollection string

	// RegistryDataDir is the badger directory backing the document
	// registry (spec.md §3 invariant 5's durability requirement).
	RegistryDataDir string

	// JobDatabasePath is the sqlite file backing the analysis-jobs
	// table (spec.md §6 "Persisted state").
	JobDatabasePath string

	// HTTPAddr is the address the logical HTTP surface listens on.
	HTTPAddr string
}

// Load reads environment variables into a Config, first loading a
// local .env file if present (godotenv.Load is a no-op error that this
// function deliberately ignores — absence of a .env file is normal in
// production).
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		AgentLLMAPIKey: os.Getenv("AGENT_LLM_API_KEY"),
		AgentBaseURL:   os.Getenv("AGENT_BASE_URL"),
		AgentLLMModel:  getenvDefault("AGENT_LLM_MODEL", ""),

		GeminiAPIKey: firstNonEmpty(os.Getenv("GEMINI_API_KEY"), os.Getenv("GOOGLE_API_KEY")),

		EdgarUserAgent: getenvDefault("EDGAR_USER_AGENT", "finsight-analyst (contact@example.com)"),

		CogneeDataRoot:        os.Getenv("COGNEE_DATA_ROOT"),
		CogneeSystemRoot:      os.Getenv("COGNEE_SYSTEM_ROOT"),
		GraphDatabaseProvider:  os.Getenv("GRAPH_DATABASE_PROVIDER"),
		VectorDBProvider:       os.Getenv("VECTOR_DB_PROVIDER"),
		DBProvider:             os.Getenv("DB_PROVIDER"),

		QdrantHost:       getenvDefault("QDRANT_HOST", "localhost"),
		QdrantPort:       6334,
		QdrantAPIKey:     os.Getenv("QDRANT_API_KEY"),
		QdrantCollection: getenvDefault("QDRANT_COLLECTION", "finsight_filings"),

		RegistryDataDir: getenvDefault("REGISTRY_DATA_DIR", "./data/registry"),
		JobDatabasePath: getenvDefault("JOB_DATABASE_PATH", "./data/jobs.db"),

		HTTPAddr: getenvDefault("HTTP_ADDR", ":8080"),
	}
}

// Validate reports a configuration error (spec.md §7 taxonomy:
// "Configuration — missing credentials or unreachable providers.
// Surfaced immediately; the controller does not start") if the core
// LLM credential required for the controller to function at all is
// absent. Grounded-search and filings credentials degrade gracefully
// instead (missing Gemini credentials simply disable C6 Stage 2;
// missing EDGAR user agent falls back to a default), so they are not
// validated here.
func (c *Config) Validate() error {
	if c.AgentLLMAPIKey == "" {
		return errMissingAgentAPIKey
	}
	return nil
}

func getenvDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
