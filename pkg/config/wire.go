package config

import (
	"context"
	"fmt"
	"os"

	"github.com/charmbracelet/log"

	"github.com/braingraph/braingraph/pkg/llm"
	"github.com/braingraph/braingraph/pkg/metrics"
	"github.com/braingraph/braingraph/pkg/store"
)

// NewLogger builds the process logger from the settings.
func NewLogger(s *Settings) *log.Logger {
	level := log.InfoLevel
	if s.Debug {
		level = log.DebugLevel
	}
	return log.NewWithOptions(os.Stderr, log.Options{
		Level:           level,
		ReportTimestamp: true,
		Prefix:          "braingraph",
	})
}

// NewStore builds the configured graph store backend.
func NewStore(ctx context.Context, s *Settings) (store.GraphStore, error) {
	switch s.Backend {
	case BackendMemory:
		return store.NewMemoryStore(), nil
	case BackendSQLite:
		return store.NewSQLiteStore(s.SQLitePath)
	case BackendPostgres:
		return store.NewPostgresStore(ctx, s.PostgresDSN)
	default:
		return nil, fmt.Errorf("invalid backend %q", s.Backend)
	}
}

// NewLLM builds the configured model collaborator: mock, OpenAI, or Ollama.
func NewLLM(s *Settings) (llm.Client, error) {
	if s.MockLLM {
		return llm.NewMockClient(), nil
	}
	if s.OpenAIKey != "" {
		return llm.NewOpenAIClient(s.OpenAIKey, s.ChatModel, s.OpenAIBaseURL), nil
	}
	if s.OllamaHost != "" {
		return llm.NewOllamaClient(s.OllamaHost, s.ChatModel)
	}
	return nil, fmt.Errorf("no model collaborator configured")
}

// NewCollector builds the metrics collector. The Prometheus variant is
// returned as its concrete type so callers can mount its handler.
func NewCollector(s *Settings) metrics.Collector {
	if s.MetricsEnabled {
		return metrics.NewCollector()
	}
	return metrics.NewNoopCollector()
}
