package housekeep

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/braingraph/braingraph/pkg/store"
)

const (
	// maxGroupSize bounds how many archived nodes one summary absorbs.
	maxGroupSize = 200
	// maxSamples bounds the representative names kept on a summary.
	maxSamples = 10
	// summaryImportance is the fixed importance of a fresh summary.
	summaryImportance = 0.25
)

// consolidate groups archived non-Source nodes by (label, year-month of
// last update) and merges each group into one Summary node linked to every
// member via SUMMARIZES. Summarized nodes are never deleted. Summary ids
// are deterministic per group, so concurrent runs converge.
func (h *Housekeeper) consolidate(ctx context.Context, nodes []store.Node) (int, error) {
	groups := make(map[string][]store.Node)
	for _, n := range nodes {
		if !n.Archived || n.Label == "Source" || n.Label == "Summary" {
			continue
		}
		key := n.Label + "\x00" + n.UpdatedAt.Format("2006-01")
		if len(groups[key]) < maxGroupSize {
			groups[key] = append(groups[key], n)
		}
	}

	keys := make([]string, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var summaryIDs []string
	var summaries []store.Node
	var edges []store.Edge
	for _, key := range keys {
		parts := strings.SplitN(key, "\x00", 2)
		label, ym := parts[0], parts[1]
		group := groups[key]

		samples := make([]string, 0, maxSamples)
		for _, n := range group {
			if len(samples) == maxSamples {
				break
			}
			samples = append(samples, store.DisplayTitle(n))
		}

		id := "summary:" + strings.ToLower(label) + ":" + ym
		summaries = append(summaries, store.Node{
			Label: "Summary",
			ID:    id,
			Props: map[string]any{
				"type":       label,
				"ym":         ym,
				"count":      len(group),
				"samples":    samples,
				"importance": summaryImportance,
			},
			Confidence: 0.5,
			Source:     "housekeeping",
		})
		summaryIDs = append(summaryIDs, id)
		for _, n := range group {
			edges = append(edges, store.Edge{
				Src: id, Rel: "SUMMARIZES", Dst: n.ID,
				Props: map[string]any{}, Source: "housekeeping",
			})
		}
	}

	if len(summaries) == 0 {
		return 0, nil
	}
	if err := h.graph.UpsertNodesEdges(ctx, summaries, edges); err != nil {
		return 0, fmt.Errorf("failed to upsert summaries: %w", err)
	}

	// Upserts leave lifecycle columns at their previous (or zero) values;
	// stamp the summary scores explicitly.
	updates := make([]store.ScoreUpdate, 0, len(summaryIDs))
	for _, id := range summaryIDs {
		updates = append(updates, store.ScoreUpdate{
			ID:         id,
			Decay:      decayFor(0),
			Importance: summaryImportance,
			Archived:   false,
		})
	}
	if err := h.maintainer.UpdateScores(ctx, updates); err != nil {
		return 0, fmt.Errorf("failed to stamp summary scores: %w", err)
	}
	return len(summaries), nil
}
