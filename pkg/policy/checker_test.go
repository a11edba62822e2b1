package policy

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/braingraph/braingraph/pkg/store"
)

func seedSignal(t *testing.T, s *store.MemoryStore, id, kind, reason string) {
	t.Helper()
	require.NoError(t, s.UpsertNodesEdges(context.Background(), []store.Node{{
		Label: "NegativeSignal", ID: id,
		Props: map[string]any{"kind": kind, "reason": reason}, Confidence: 1.0,
	}}, nil))
}

func TestCheckPlan_MatchesReasonSubstring(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	seedSignal(t, s, "negative:revert:abc", "revert", "global mutable state")

	c := NewChecker(s)
	warnings, err := c.CheckPlan(ctx, "Refactor the cache to use Global Mutable State for speed")
	require.NoError(t, err)
	require.Len(t, warnings, 1)

	w := warnings[0]
	require.Equal(t, "negative_learning:revert", w.Kind)
	require.Equal(t, "This plan matches a past negative-learning signal: global mutable state", w.Message)
	require.Equal(t, []string{"negative:revert:abc"}, w.Evidence)
}

func TestCheckPlan_NoMatch(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	seedSignal(t, s, "negative:revert:abc", "revert", "global mutable state")

	c := NewChecker(s)
	warnings, err := c.CheckPlan(ctx, "Add an index to the users table")
	require.NoError(t, err)
	require.Empty(t, warnings)
}

func TestCheckPlan_SkipsArchivedSignals(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	seedSignal(t, s, "negative:revert:abc", "revert", "global mutable state")
	require.NoError(t, s.UpdateScores(ctx, []store.ScoreUpdate{{ID: "negative:revert:abc", Archived: true}}))

	c := NewChecker(s)
	warnings, err := c.CheckPlan(ctx, "use global mutable state")
	require.NoError(t, err)
	require.Empty(t, warnings)
}

func TestCheckPlan_SignalWithoutKind(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	require.NoError(t, s.UpsertNodesEdges(ctx, []store.Node{{
		Label: "NegativeSignal", ID: "negative:manual:1",
		Props: map[string]any{"reason": "premature optimization"}, Confidence: 1.0,
	}}, nil))

	c := NewChecker(s)
	warnings, err := c.CheckPlan(ctx, "avoid premature optimization, then optimize anyway")
	require.NoError(t, err)
	require.Len(t, warnings, 1)
	require.Equal(t, "negative_learning:signal", warnings[0].Kind)
}

func TestCheckPlan_EmptyPlan(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	seedSignal(t, s, "negative:revert:abc", "revert", "anything")

	c := NewChecker(s)
	warnings, err := c.CheckPlan(ctx, "   ")
	require.NoError(t, err)
	require.Empty(t, warnings)
}
