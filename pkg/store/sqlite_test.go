package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func newSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSQLiteStore_UpsertIdempotent(t *testing.T) {
	ctx := context.Background()
	s := newSQLiteStore(t)

	nodes := []Node{{
		Label: "Decision", ID: "decision:use sqlite",
		Props: map[string]any{"what": "use sqlite", "why": "simplicity"}, Confidence: 0.9, Source: "cli",
	}}
	edges := []Edge{{
		Src: "decision:use sqlite", Rel: "MENTIONED_IN", Dst: "source:cli",
		Props: map[string]any{}, Source: "cli",
	}}

	require.NoError(t, s.UpsertNodesEdges(ctx, nodes, edges))
	require.NoError(t, s.UpsertNodesEdges(ctx, nodes, edges))

	all, err := s.AllNodes(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)

	degrees, err := s.DegreeCounts(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, degrees["decision:use sqlite"])
}

func TestSQLiteStore_UpsertPreservesScores(t *testing.T) {
	ctx := context.Background()
	s := newSQLiteStore(t)

	n := Node{Label: "Entity", ID: "entity:redis", Props: map[string]any{"name": "redis"}, Confidence: 0.7}
	require.NoError(t, s.UpsertNodesEdges(ctx, []Node{n}, nil))
	require.NoError(t, s.UpdateScores(ctx, []ScoreUpdate{{ID: "entity:redis", Decay: 0.5, Importance: 0.4, Archived: true}}))
	require.NoError(t, s.UpsertNodesEdges(ctx, []Node{n}, nil))

	stored, err := s.GetNodes(ctx, []string{"entity:redis"})
	require.NoError(t, err)
	got := stored["entity:redis"]
	require.Equal(t, 0.5, got.Decay)
	require.Equal(t, 0.4, got.Importance)
	require.True(t, got.Archived)
}

func TestSQLiteStore_FetchContext(t *testing.T) {
	ctx := context.Background()
	s := newSQLiteStore(t)

	require.NoError(t, s.UpsertNodesEdges(ctx, []Node{
		{Label: "Source", ID: "source:cli", Props: map[string]any{"id": "cli"}, Confidence: 1.0},
		{Label: "Decision", ID: "decision:ship it", Props: map[string]any{"what": "ship it", "why": "deadline"}, Confidence: 0.9},
	}, []Edge{
		{Src: "decision:ship it", Rel: "MENTIONED_IN", Dst: "source:cli"},
	}))

	out, err := s.FetchContext(ctx, 10)
	require.NoError(t, err)
	require.Equal(t, "- [Decision] ship it — deadline [src: cli]", out)
}

func TestSQLiteStore_TraverseImports(t *testing.T) {
	ctx := context.Background()
	s := newSQLiteStore(t)

	require.NoError(t, s.UpsertNodesEdges(ctx, []Node{
		{Label: "File", ID: FileNodeID("a.py"), Props: map[string]any{"path": "a.py"}},
		{Label: "File", ID: FileNodeID("b.py"), Props: map[string]any{"path": "b.py"}},
		{Label: "File", ID: FileNodeID("c.py"), Props: map[string]any{"path": "c.py"}},
	}, []Edge{
		{Src: FileNodeID("a.py"), Rel: "IMPORTS", Dst: FileNodeID("b.py")},
		{Src: FileNodeID("b.py"), Rel: "IMPORTS", Dst: FileNodeID("c.py")},
	}))

	trace, err := s.TraverseImports(ctx, "a.py", 2, 10)
	require.NoError(t, err)
	require.Equal(t, [][]string{
		{"a.py", "b.py"},
		{"a.py", "b.py", "c.py"},
	}, trace.Paths)

	ghost, err := s.TraverseImports(ctx, "ghost.py", 2, 10)
	require.NoError(t, err)
	require.Empty(t, ghost.Paths)
}

func TestSQLiteStore_NodesByLabel(t *testing.T) {
	ctx := context.Background()
	s := newSQLiteStore(t)

	require.NoError(t, s.UpsertNodesEdges(ctx, []Node{
		{Label: "NegativeSignal", ID: "negative:revert:abc", Props: map[string]any{"reason": "bad"}},
		{Label: "NegativeSignal", ID: "negative:revert:def", Props: map[string]any{"reason": "worse"}},
	}, nil))
	require.NoError(t, s.UpdateScores(ctx, []ScoreUpdate{{ID: "negative:revert:def", Archived: true}}))

	active, err := s.NodesByLabel(ctx, "NegativeSignal", 10, false)
	require.NoError(t, err)
	require.Len(t, active, 1)
	require.Equal(t, "negative:revert:abc", active[0].ID)
}

func TestSQLiteStore_ExportGraph(t *testing.T) {
	ctx := context.Background()
	s := newSQLiteStore(t)

	require.NoError(t, s.UpsertNodesEdges(ctx, []Node{
		{Label: "File", ID: FileNodeID("a.py"), Props: map[string]any{"path": "a.py"}},
		{Label: "File", ID: FileNodeID("b.py"), Props: map[string]any{"path": "b.py"}},
	}, []Edge{
		{Src: FileNodeID("a.py"), Rel: "IMPORTS", Dst: FileNodeID("b.py")},
	}))

	export, err := s.ExportGraph(ctx, 10)
	require.NoError(t, err)
	require.Len(t, export.Nodes, 2)
	require.Len(t, export.Edges, 1)
	require.Equal(t, "IMPORTS", export.Edges[0].Label)
	require.Equal(t, "a.py", export.Nodes[0].Label)
}
