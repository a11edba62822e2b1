package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	// Empty values read as unset, so this isolates the test from the
	// ambient environment.
	t.Setenv("BRAINGRAPH_BACKEND", "")
	t.Setenv("BRAINGRAPH_MOCK_LLM", "")
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("OLLAMA_HOST", "")

	s, err := Load()
	require.NoError(t, err)

	require.Equal(t, BackendSQLite, s.Backend)
	require.Equal(t, "braingraph.db", s.SQLitePath)
	require.Equal(t, ":8040", s.ListenAddr)
	require.Equal(t, 500, s.ExportNodeLimit)
	// Without any model credentials the mock collaborator takes over.
	require.True(t, s.MockLLM)
}

func TestLoad_InvalidBackend(t *testing.T) {
	t.Setenv("BRAINGRAPH_BACKEND", "neo4j")
	_, err := Load()
	require.Error(t, err)
}

func TestLoad_PostgresRequiresDSN(t *testing.T) {
	t.Setenv("BRAINGRAPH_BACKEND", "postgres")
	t.Setenv("BRAINGRAPH_POSTGRES_DSN", "")
	_, err := Load()
	require.Error(t, err)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("BRAINGRAPH_BACKEND", "memory")
	t.Setenv("BRAINGRAPH_MODEL_PREMIUM", "o3")
	t.Setenv("BRAINGRAPH_DEBUG", "true")
	t.Setenv("BRAINGRAPH_EXPORT_NODE_LIMIT", "50")

	s, err := Load()
	require.NoError(t, err)
	require.Equal(t, BackendMemory, s.Backend)
	require.Equal(t, "o3", s.ModelPremium)
	require.True(t, s.Debug)
	require.Equal(t, 50, s.ExportNodeLimit)
}

func TestGetEnvBool_Strict(t *testing.T) {
	t.Setenv("BRAINGRAPH_TEST_BOOL", "yes")
	require.False(t, getEnvBool("BRAINGRAPH_TEST_BOOL", false))

	t.Setenv("BRAINGRAPH_TEST_BOOL", "true")
	require.True(t, getEnvBool("BRAINGRAPH_TEST_BOOL", false))
}
