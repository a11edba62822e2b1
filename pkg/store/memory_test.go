package store

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestMemoryStore_UpsertIdempotent(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	nodes := []Node{{
		Label:      "Decision",
		ID:         "decision:ship it",
		Props:      map[string]any{"what": "ship it"},
		Confidence: 0.9,
		Source:     "cli",
	}}
	edges := []Edge{{
		Src: "decision:ship it", Rel: "MENTIONED_IN", Dst: "source:cli",
		Props: map[string]any{}, Source: "cli",
	}}

	require.NoError(t, s.UpsertNodesEdges(ctx, nodes, edges))
	require.NoError(t, s.UpsertNodesEdges(ctx, nodes, edges))

	require.Len(t, s.nodes, 1)
	require.Len(t, s.edges, 1)
}

func TestMemoryStore_UpsertPreservesScores(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	n := Node{Label: "Entity", ID: "entity:redis", Props: map[string]any{"name": "redis"}, Confidence: 0.7}
	require.NoError(t, s.UpsertNodesEdges(ctx, []Node{n}, nil))
	require.NoError(t, s.UpdateScores(ctx, []ScoreUpdate{{ID: "entity:redis", Decay: 0.5, Importance: 0.4, Archived: true}}))

	// Re-ingesting the same node must not reset lifecycle scores.
	require.NoError(t, s.UpsertNodesEdges(ctx, []Node{n}, nil))

	stored := s.nodes["entity:redis"]
	require.Equal(t, 0.5, stored.Decay)
	require.Equal(t, 0.4, stored.Importance)
	require.True(t, stored.Archived)
}

func TestMemoryStore_UpsertPreservesEdgeCreatedAt(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	first := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s.Now = fixedClock(first)

	e := Edge{Src: "a", Rel: "IMPORTS", Dst: "b"}
	require.NoError(t, s.UpsertNodesEdges(ctx, nil, []Edge{e}))

	s.Now = fixedClock(first.Add(24 * time.Hour))
	require.NoError(t, s.UpsertNodesEdges(ctx, nil, []Edge{e}))

	require.Equal(t, first, s.edges[EdgeID("a", "IMPORTS", "b")].CreatedAt)
}

func TestMemoryStore_FetchContextSkipsSourceAndArchived(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	require.NoError(t, s.UpsertNodesEdges(ctx, []Node{
		{Label: "Source", ID: "source:cli", Props: map[string]any{"id": "cli"}},
		{Label: "Decision", ID: "decision:ship it", Props: map[string]any{"what": "ship it", "why": "deadline"}},
		{Label: "Entity", ID: "entity:old", Props: map[string]any{"name": "old"}},
	}, []Edge{
		{Src: "decision:ship it", Rel: "MENTIONED_IN", Dst: "source:cli"},
	}))
	require.NoError(t, s.UpdateScores(ctx, []ScoreUpdate{{ID: "entity:old", Archived: true}}))

	out, err := s.FetchContext(ctx, 10)
	require.NoError(t, err)

	require.Contains(t, out, "- [Decision] ship it — deadline [src: cli]")
	require.NotContains(t, out, "[Source]")
	require.NotContains(t, out, "old")
}

func TestMemoryStore_FetchContextLimit(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		s.Now = fixedClock(base.Add(time.Duration(i) * time.Hour))
		require.NoError(t, s.UpsertNodesEdges(ctx, []Node{{
			Label: "Entity",
			ID:    CanonID("entity", strings.Repeat("x", i+1)),
			Props: map[string]any{"name": strings.Repeat("x", i+1)},
		}}, nil))
	}

	out, err := s.FetchContext(ctx, 2)
	require.NoError(t, err)
	lines := strings.Split(out, "\n")
	require.Len(t, lines, 2)
	// Newest first.
	require.Contains(t, lines[0], "xxxxx")
	require.Contains(t, lines[1], "xxxx")
}

func TestMemoryStore_TraverseImports(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	files := []string{"a.py", "b.py", "c.py", "d.py"}
	var nodes []Node
	for _, f := range files {
		nodes = append(nodes, Node{Label: "File", ID: FileNodeID(f), Props: map[string]any{"path": f}})
	}
	edges := []Edge{
		{Src: FileNodeID("a.py"), Rel: "IMPORTS", Dst: FileNodeID("b.py")},
		{Src: FileNodeID("b.py"), Rel: "IMPORTS", Dst: FileNodeID("c.py")},
		{Src: FileNodeID("c.py"), Rel: "IMPORTS", Dst: FileNodeID("d.py")},
		// Cycle back to the start.
		{Src: FileNodeID("b.py"), Rel: "IMPORTS", Dst: FileNodeID("a.py")},
	}
	require.NoError(t, s.UpsertNodesEdges(ctx, nodes, edges))

	trace, err := s.TraverseImports(ctx, "a.py", 2, 10)
	require.NoError(t, err)
	require.Equal(t, "a.py", trace.Start)
	require.Equal(t, [][]string{
		{"a.py", "b.py"},
		{"a.py", "b.py", "c.py"},
	}, trace.Paths)
}

func TestMemoryStore_TraverseImportsMissingStart(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	trace, err := s.TraverseImports(ctx, "ghost.py", 2, 10)
	require.NoError(t, err)
	require.Empty(t, trace.Paths)
}

func TestMemoryStore_NodesByLabel(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	require.NoError(t, s.UpsertNodesEdges(ctx, []Node{
		{Label: "NegativeSignal", ID: "negative:revert:abc", Props: map[string]any{"reason": "bad idea"}},
		{Label: "NegativeSignal", ID: "negative:revert:def", Props: map[string]any{"reason": "worse idea"}},
		{Label: "Decision", ID: "decision:ship it", Props: map[string]any{"what": "ship it"}},
	}, nil))
	require.NoError(t, s.UpdateScores(ctx, []ScoreUpdate{{ID: "negative:revert:def", Archived: true}}))

	active, err := s.NodesByLabel(ctx, "NegativeSignal", 10, false)
	require.NoError(t, err)
	require.Len(t, active, 1)
	require.Equal(t, "negative:revert:abc", active[0].ID)

	all, err := s.NodesByLabel(ctx, "NegativeSignal", 10, true)
	require.NoError(t, err)
	require.Len(t, all, 2)
}

func TestMemoryStore_DegreeCounts(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	require.NoError(t, s.UpsertNodesEdges(ctx, nil, []Edge{
		{Src: "a", Rel: "RELATED_TO", Dst: "b"},
		{Src: "a", Rel: "RELATED_TO", Dst: "c"},
	}))

	counts, err := s.DegreeCounts(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, counts["a"])
	require.Equal(t, 1, counts["b"])
	require.Equal(t, 1, counts["c"])
}

func TestMemoryStore_ExportGraphDropsDanglingEdges(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)

	s.Now = fixedClock(base)
	require.NoError(t, s.UpsertNodesEdges(ctx, []Node{
		{Label: "File", ID: FileNodeID("old.py"), Props: map[string]any{"path": "old.py"}},
	}, nil))
	s.Now = fixedClock(base.Add(time.Hour))
	require.NoError(t, s.UpsertNodesEdges(ctx, []Node{
		{Label: "File", ID: FileNodeID("a.py"), Props: map[string]any{"path": "a.py"}},
		{Label: "File", ID: FileNodeID("b.py"), Props: map[string]any{"path": "b.py"}},
	}, []Edge{
		{Src: FileNodeID("a.py"), Rel: "IMPORTS", Dst: FileNodeID("b.py")},
		{Src: FileNodeID("a.py"), Rel: "IMPORTS", Dst: FileNodeID("old.py")},
	}))

	export, err := s.ExportGraph(ctx, 2)
	require.NoError(t, err)
	require.Len(t, export.Nodes, 2)
	require.Len(t, export.Edges, 1)
	require.Equal(t, FileNodeID("b.py"), export.Edges[0].To)
}

func TestMemoryStore_UpsertEntities(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	err := s.UpsertEntities(ctx, []Entity{
		{Name: "Redis", Type: "Tool"},
		{Name: "  ", Type: "Tool"},
	}, "chat")
	require.NoError(t, err)

	require.Contains(t, s.nodes, "entity:redis")
	require.Contains(t, s.nodes, "source:chat")
	require.Contains(t, s.edges, EdgeID("entity:redis", "MENTIONED_IN", "source:chat"))
	require.Len(t, s.nodes, 2)
}
