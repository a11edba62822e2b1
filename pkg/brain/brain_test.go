package brain

import (
	"context"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/braingraph/braingraph/pkg/enrich"
	"github.com/braingraph/braingraph/pkg/llm"
	"github.com/braingraph/braingraph/pkg/retrieve"
	"github.com/braingraph/braingraph/pkg/store"
)

func newTestBrain(t *testing.T) (*Brain, *store.MemoryStore) {
	t.Helper()
	s := store.NewMemoryStore()
	b, err := New(Config{Store: s, LLM: llm.NewMockClient()})
	require.NoError(t, err)
	return b, s
}

func TestNew_RequiresCollaborators(t *testing.T) {
	_, err := New(Config{LLM: llm.NewMockClient()})
	require.Error(t, err)

	_, err = New(Config{Store: store.NewMemoryStore()})
	require.Error(t, err)
}

func TestBrain_IngestPipeline(t *testing.T) {
	ctx := context.Background()
	b, s := newTestBrain(t)

	report, err := b.Ingest(ctx, []enrich.Event{
		{Type: "decision", Source: "cli", Payload: map[string]any{"what": "use sqlite", "why": "simplicity"}},
		{Type: "revert", Source: "git", Payload: map[string]any{"hash": "abc123", "reason": "broke prod"}},
		{Type: "code_index", Source: "indexer", Payload: map[string]any{"imports": []any{
			map[string]any{"from": "a.py", "to": "b.py"},
		}}},
	})
	require.NoError(t, err)
	require.Equal(t, 3, report.Events)
	require.Greater(t, report.Nodes, 0)
	require.Greater(t, report.Edges, 0)

	stored, err := s.GetNodes(ctx, []string{
		"decision:use sqlite",
		"negative:revert:abc123",
		"commit:abc123",
		"file:a.py",
		"file:b.py",
	})
	require.NoError(t, err)
	require.Len(t, stored, 5)
}

func TestBrain_IngestIdempotent(t *testing.T) {
	ctx := context.Background()
	b, s := newTestBrain(t)

	events := []enrich.Event{
		{Type: "decision", Source: "cli", Payload: map[string]any{"what": "use sqlite", "why": "simplicity"}},
	}
	_, err := b.Ingest(ctx, events)
	require.NoError(t, err)
	first, err := s.ExportGraph(ctx, 100)
	require.NoError(t, err)

	_, err = b.Ingest(ctx, events)
	require.NoError(t, err)
	second, err := s.ExportGraph(ctx, 100)
	require.NoError(t, err)

	require.Len(t, second.Nodes, len(first.Nodes))
	require.Len(t, second.Edges, len(first.Edges))
}

func TestBrain_IngestConflictVersioning(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	clock := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)
	b, err := New(Config{
		Store: s,
		LLM:   llm.NewMockClient(),
		Now:   func() time.Time { return clock },
	})
	require.NoError(t, err)

	_, err = b.Ingest(ctx, []enrich.Event{
		{Type: "decision", Source: "cli", Payload: map[string]any{"what": "use sqlite", "why": "simplicity"}},
	})
	require.NoError(t, err)

	_, err = b.Ingest(ctx, []enrich.Event{
		{Type: "decision", Source: "chat", Payload: map[string]any{"what": "use sqlite", "why": "team standard"}},
	})
	require.NoError(t, err)

	revID := "decision:use sqlite::rev:" + strconv.FormatInt(clock.UnixMilli(), 10)
	stored, err := s.GetNodes(ctx, []string{"decision:use sqlite", revID})
	require.NoError(t, err)
	require.Len(t, stored, 2)
	require.Equal(t, "decision:use sqlite", stored[revID].Props["base_id"])
}

func TestBrain_Ask(t *testing.T) {
	ctx := context.Background()
	b, s := newTestBrain(t)

	_, err := b.Ingest(ctx, []enrich.Event{
		{Type: "decision", Source: "cli", Payload: map[string]any{"what": "use redis", "why": "speed"}},
	})
	require.NoError(t, err)

	result, err := b.Ask(ctx, "Why did we pick Redis?")
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(result.Answer, "Mock response for:"))
	require.True(t, strings.HasPrefix(result.Judgement, "PASS"))
	require.Contains(t, result.Context, "use redis")

	// The question's entities were remembered.
	stored, err := s.GetNodes(ctx, []string{"entity:redis"})
	require.NoError(t, err)
	require.Len(t, stored, 1)
}

func TestBrain_CheckPlan(t *testing.T) {
	ctx := context.Background()
	b, _ := newTestBrain(t)

	_, err := b.Ingest(ctx, []enrich.Event{
		{Type: "revert", Source: "git", Payload: map[string]any{"hash": "abc123", "reason": "global mutable state"}},
	})
	require.NoError(t, err)

	warnings, err := b.CheckPlan(ctx, "introduce global mutable state for caching")
	require.NoError(t, err)
	require.Len(t, warnings, 1)
	require.Equal(t, "negative_learning:revert", warnings[0].Kind)

	clean, err := b.CheckPlan(ctx, "add pagination to the list endpoint")
	require.NoError(t, err)
	require.Empty(t, clean)
}

func TestBrain_Housekeep(t *testing.T) {
	ctx := context.Background()
	b, _ := newTestBrain(t)

	_, err := b.Ingest(ctx, []enrich.Event{
		{Type: "decision", Source: "cli", Payload: map[string]any{"what": "use sqlite"}},
	})
	require.NoError(t, err)

	report, err := b.Housekeep(ctx, false)
	require.NoError(t, err)
	require.Greater(t, report.Scored, 0)
}

func TestBrain_Retrieve(t *testing.T) {
	ctx := context.Background()
	b, _ := newTestBrain(t)

	_, err := b.Ingest(ctx, []enrich.Event{
		{Type: "code_index", Source: "indexer", Payload: map[string]any{"imports": []any{
			map[string]any{"from": "a.py", "to": "b.py"},
		}}},
	})
	require.NoError(t, err)

	result, err := b.Retrieve(ctx, retrieve.Request{Query: "what does a do", CurrentFile: "a.py"})
	require.NoError(t, err)
	require.Len(t, result.Trace.Selection, 1)
	require.Equal(t, "b.py", result.Trace.Selection[0].Path)
}

func TestClassifyError(t *testing.T) {
	tests := []struct {
		msg  string
		want string
	}{
		{"context deadline exceeded", ErrTypeTimeout},
		{"dial tcp 127.0.0.1:5432: connection refused", ErrTypeNetwork},
		{"openai api error: rate limit", ErrTypeLLM},
		{"database is locked", ErrTypeDatabase},
		{"question cannot be empty", ErrTypeValidation},
		{"something else entirely", ErrTypeUnknown},
	}
	for _, tt := range tests {
		if got := ClassifyError(errString(tt.msg)); got != tt.want {
			t.Errorf("ClassifyError(%q) = %q, want %q", tt.msg, got, tt.want)
		}
	}
	if ClassifyError(nil) != "" {
		t.Error("ClassifyError(nil) should be empty")
	}
}

type errString string

func (e errString) Error() string { return string(e) }
