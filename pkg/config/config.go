// Package config loads engine settings from the environment, with an
// optional .env file for local development.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Backend names a graph store implementation.
type Backend string

const (
	BackendMemory   Backend = "memory"
	BackendSQLite   Backend = "sqlite"
	BackendPostgres Backend = "postgres"
)

// Settings is the full engine configuration.
type Settings struct {
	// Backend selects the graph store: memory, sqlite, or postgres.
	Backend Backend
	// SQLitePath is the database file for the sqlite backend.
	SQLitePath string
	// PostgresDSN is the connection string for the postgres backend.
	PostgresDSN string

	// MockLLM replaces the model collaborator with the deterministic mock.
	MockLLM bool
	// OpenAIKey enables the OpenAI client when set and MockLLM is off.
	OpenAIKey string
	// OpenAIBaseURL overrides the OpenAI endpoint, for proxies.
	OpenAIBaseURL string
	// OllamaHost enables the Ollama client when set and no OpenAI key is.
	OllamaHost string
	// ChatModel is the model used for extraction, chat, and judging.
	ChatModel string

	// ModelCheap, ModelDefault, and ModelPremium are the retrieval
	// routing tiers.
	ModelCheap   string
	ModelDefault string
	ModelPremium string

	// ListenAddr is the HTTP server bind address.
	ListenAddr string
	// ExportNodeLimit bounds graph exports.
	ExportNodeLimit int
	// MetricsEnabled switches the Prometheus collector on.
	MetricsEnabled bool
	// Debug lowers the log level to debug.
	Debug bool
}

// Load reads settings from the environment. A .env file in the working
// directory is merged in first when present.
func Load() (*Settings, error) {
	// Missing .env is the normal production case.
	_ = godotenv.Load()

	s := &Settings{
		Backend:         Backend(getEnvString("BRAINGRAPH_BACKEND", string(BackendSQLite))),
		SQLitePath:      getEnvString("BRAINGRAPH_SQLITE_PATH", "braingraph.db"),
		PostgresDSN:     getEnvString("BRAINGRAPH_POSTGRES_DSN", ""),
		MockLLM:         getEnvBool("BRAINGRAPH_MOCK_LLM", false),
		OpenAIKey:       getEnvString("OPENAI_API_KEY", ""),
		OpenAIBaseURL:   getEnvString("OPENAI_BASE_URL", ""),
		OllamaHost:      getEnvString("OLLAMA_HOST", ""),
		ChatModel:       getEnvString("BRAINGRAPH_CHAT_MODEL", "gpt-4o-mini"),
		ModelCheap:      getEnvString("BRAINGRAPH_MODEL_CHEAP", "gpt-4o-mini"),
		ModelDefault:    getEnvString("BRAINGRAPH_MODEL_DEFAULT", "gpt-4o"),
		ModelPremium:    getEnvString("BRAINGRAPH_MODEL_PREMIUM", "o1"),
		ListenAddr:      getEnvString("BRAINGRAPH_LISTEN_ADDR", ":8040"),
		ExportNodeLimit: getEnvInt("BRAINGRAPH_EXPORT_NODE_LIMIT", 500),
		MetricsEnabled:  getEnvBool("BRAINGRAPH_METRICS", true),
		Debug:           getEnvBool("BRAINGRAPH_DEBUG", false),
	}

	switch s.Backend {
	case BackendMemory, BackendSQLite, BackendPostgres:
	default:
		return nil, fmt.Errorf("invalid backend %q: must be memory, sqlite, or postgres", s.Backend)
	}
	if s.Backend == BackendPostgres && s.PostgresDSN == "" {
		return nil, fmt.Errorf("postgres backend requires BRAINGRAPH_POSTGRES_DSN")
	}

	if !s.MockLLM && s.OpenAIKey == "" && s.OllamaHost == "" {
		// Nothing to talk to; fall back to the mock so local commands
		// still work end to end.
		s.MockLLM = true
	}
	return s, nil
}

func getEnvString(key string, defaultValue string) string {
	value, exists := os.LookupEnv(key)
	if !exists || value == "" {
		return defaultValue
	}
	return value
}

func getEnvBool(key string, defaultValue bool) bool {
	value, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}
	if value == "true" || value == "false" {
		return value == "true"
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	value, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return n
}
