// Package housekeep recomputes lifecycle scores for the whole stored node
// population and optionally consolidates archived clusters into Summary
// nodes. Both phases are idempotent and safe to re-run at any time.
package housekeep

import (
	"context"
	"fmt"
	"time"

	"github.com/braingraph/braingraph/pkg/store"
)

// Report summarizes one housekeeping run.
type Report struct {
	Scored    int `json:"scored"`
	Archived  int `json:"archived"`
	Summaries int `json:"summaries"`
}

// Options controls a housekeeping run.
type Options struct {
	// Consolidate enables the second phase: merging archived clusters
	// into Summary nodes.
	Consolidate bool
}

// Housekeeper recomputes decay, importance, and archival for every stored
// node. It needs the store's bulk maintenance capability; callers that
// hold a plain GraphStore check for it first.
type Housekeeper struct {
	graph      store.GraphStore
	maintainer store.Maintainer

	// Now anchors age computation. Injected for deterministic tests.
	Now func() time.Time
}

// NewHousekeeper creates a housekeeper over a store with maintenance
// access. The GraphStore is used for consolidation writes.
func NewHousekeeper(graph store.GraphStore, maintainer store.Maintainer) *Housekeeper {
	return &Housekeeper{graph: graph, maintainer: maintainer, Now: time.Now}
}

// Run executes the scoring phase and, when enabled, consolidation.
func (h *Housekeeper) Run(ctx context.Context, opts Options) (*Report, error) {
	report := &Report{}

	nodes, err := h.maintainer.AllNodes(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load node population: %w", err)
	}
	degrees, err := h.maintainer.DegreeCounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load degree counts: %w", err)
	}

	now := h.Now()
	updates := make([]store.ScoreUpdate, 0, len(nodes))
	for i, n := range nodes {
		u := scoreNode(n, degrees[n.ID], now)
		updates = append(updates, u)
		if u.Archived {
			report.Archived++
		}
		// Keep the population slice in sync so consolidation sees the
		// fresh archived flags without a second full read.
		nodes[i].Decay = u.Decay
		nodes[i].Importance = u.Importance
		nodes[i].Archived = u.Archived
	}
	if err := h.maintainer.UpdateScores(ctx, updates); err != nil {
		return nil, fmt.Errorf("failed to write scores: %w", err)
	}
	report.Scored = len(updates)

	if opts.Consolidate {
		count, err := h.consolidate(ctx, nodes)
		if err != nil {
			return nil, err
		}
		report.Summaries = count
	}
	return report, nil
}

// scoreNode computes decay, importance, and the archived flag for one node.
func scoreNode(n store.Node, degree int, now time.Time) store.ScoreUpdate {
	ageDays := now.Sub(n.UpdatedAt).Hours() / 24

	decay := decayFor(ageDays)
	importance := importanceFor(n, decay, degree)

	archived := false
	if n.Label != "Source" {
		archived = n.Confidence < 0.2 || ageDays > 180 || importance < 0.15
	}
	return store.ScoreUpdate{
		ID:         n.ID,
		Decay:      decay,
		Importance: importance,
		Archived:   archived,
	}
}

// decayFor maps age to a stepped recency discount.
func decayFor(ageDays float64) float64 {
	switch {
	case ageDays <= 7:
		return 0.95
	case ageDays <= 30:
		return 0.80
	case ageDays <= 90:
		return 0.50
	default:
		return 0.30
	}
}

// importanceFor combines recency, access, connectivity, confidence, and
// explicit user signal into one composite score in [0,1].
func importanceFor(n store.Node, decay float64, degree int) float64 {
	access := 0.2
	if propFloat(n.Props, "access_count") > 0 {
		access = 1.0
	}

	connectivity := 0.2
	switch {
	case degree > 5:
		connectivity = 1.0
	case degree > 0:
		connectivity = 0.6
	}

	signal := 0.2
	if propFloat(n.Props, "user_signal") > 0 {
		signal = 1.0
	}

	return 0.25*decay + 0.20*access + 0.20*connectivity + 0.15*n.Confidence + 0.20*signal
}

func propFloat(props map[string]any, key string) float64 {
	if props == nil {
		return 0
	}
	switch v := props[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	}
	return 0
}
