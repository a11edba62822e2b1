package housekeep

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/braingraph/braingraph/pkg/store"
)

func TestDecayFor_StepTable(t *testing.T) {
	tests := []struct {
		ageDays float64
		want    float64
	}{
		{0, 0.95},
		{7, 0.95},
		{7.5, 0.80},
		{30, 0.80},
		{31, 0.50},
		{90, 0.50},
		{91, 0.30},
		{365, 0.30},
	}
	for _, tt := range tests {
		if got := decayFor(tt.ageDays); got != tt.want {
			t.Errorf("decayFor(%.1f) = %.2f, want %.2f", tt.ageDays, got, tt.want)
		}
	}
}

func TestImportanceFor_Composite(t *testing.T) {
	n := store.Node{
		Confidence: 0.8,
		Props:      map[string]any{"access_count": 3, "user_signal": 1},
	}
	got := importanceFor(n, 0.95, 6)
	// 0.25*0.95 + 0.20*1.0 + 0.20*1.0 + 0.15*0.8 + 0.20*1.0
	want := 0.2375 + 0.20 + 0.20 + 0.12 + 0.20
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("importanceFor = %.4f, want %.4f", got, want)
	}
}

func TestImportanceFor_ConnectivitySteps(t *testing.T) {
	n := store.Node{Confidence: 0.5}
	isolated := importanceFor(n, 0.95, 0)
	connected := importanceFor(n, 0.95, 3)
	hub := importanceFor(n, 0.95, 6)
	require.Less(t, isolated, connected)
	require.Less(t, connected, hub)
}

func TestScoreNode_ArchiveRules(t *testing.T) {
	now := time.Date(2026, 8, 29, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		node     store.Node
		degree   int
		archived bool
	}{
		{
			name:     "fresh confident node stays",
			node:     store.Node{Label: "Decision", Confidence: 0.9, UpdatedAt: now.Add(-24 * time.Hour)},
			degree:   2,
			archived: false,
		},
		{
			name:     "low confidence archives",
			node:     store.Node{Label: "Entity", Confidence: 0.1, UpdatedAt: now.Add(-24 * time.Hour)},
			degree:   2,
			archived: true,
		},
		{
			name:     "confidence exactly at threshold stays",
			node:     store.Node{Label: "Entity", Confidence: 0.2, UpdatedAt: now.Add(-24 * time.Hour)},
			degree:   2,
			archived: false,
		},
		{
			name:     "stale node archives",
			node:     store.Node{Label: "Entity", Confidence: 0.9, UpdatedAt: now.Add(-181 * 24 * time.Hour)},
			degree:   2,
			archived: true,
		},
		{
			name:     "age exactly at threshold stays",
			node:     store.Node{Label: "Entity", Confidence: 0.9, UpdatedAt: now.Add(-180 * 24 * time.Hour)},
			degree:   2,
			archived: false,
		},
		{
			name:     "source nodes never archive",
			node:     store.Node{Label: "Source", Confidence: 0.0, UpdatedAt: now.Add(-365 * 24 * time.Hour)},
			degree:   0,
			archived: false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u := scoreNode(tt.node, tt.degree, now)
			require.Equal(t, tt.archived, u.Archived)
		})
	}
}

func TestHousekeeper_Run(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	now := time.Date(2026, 8, 29, 0, 0, 0, 0, time.UTC)

	s.Now = func() time.Time { return now.Add(-200 * 24 * time.Hour) }
	require.NoError(t, s.UpsertNodesEdges(ctx, []store.Node{
		{Label: "Entity", ID: "entity:stale", Props: map[string]any{"name": "stale"}, Confidence: 0.9},
	}, nil))

	s.Now = func() time.Time { return now.Add(-time.Hour) }
	require.NoError(t, s.UpsertNodesEdges(ctx, []store.Node{
		{Label: "Decision", ID: "decision:fresh", Props: map[string]any{"what": "fresh"}, Confidence: 0.9},
	}, nil))

	h := NewHousekeeper(s, s)
	h.Now = func() time.Time { return now }

	report, err := h.Run(ctx, Options{})
	require.NoError(t, err)
	require.Equal(t, 2, report.Scored)
	require.Equal(t, 1, report.Archived)
	require.Equal(t, 0, report.Summaries)

	stored, err := s.GetNodes(ctx, []string{"entity:stale", "decision:fresh"})
	require.NoError(t, err)
	require.True(t, stored["entity:stale"].Archived)
	require.Equal(t, 0.30, stored["entity:stale"].Decay)
	require.False(t, stored["decision:fresh"].Archived)
	require.Equal(t, 0.95, stored["decision:fresh"].Decay)
}

func TestHousekeeper_RunIdempotent(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	now := time.Date(2026, 8, 29, 0, 0, 0, 0, time.UTC)

	s.Now = func() time.Time { return now.Add(-time.Hour) }
	require.NoError(t, s.UpsertNodesEdges(ctx, []store.Node{
		{Label: "Entity", ID: "entity:redis", Props: map[string]any{"name": "redis"}, Confidence: 0.7},
	}, nil))

	h := NewHousekeeper(s, s)
	h.Now = func() time.Time { return now }

	first, err := h.Run(ctx, Options{})
	require.NoError(t, err)
	second, err := h.Run(ctx, Options{})
	require.NoError(t, err)
	require.Equal(t, first, second)
}
