package enrich

import (
	"github.com/braingraph/braingraph/pkg/store"
)

// maxCooccurrence caps how many nodes of a batch participate in pairwise
// co-occurrence linking, bounding the edge count at O(20^2) per event.
const maxCooccurrence = 20

// Connect adds RELATED_TO edges between the first maxCooccurrence
// non-Source nodes of a batch, in batch order. Facts that arrived in the
// same event stay close in the graph without claiming any stronger
// semantic relationship.
func Connect(nodes []store.Node, edges []store.Edge, source string) []store.Edge {
	var ids []string
	for _, n := range nodes {
		if n.Label == "Source" {
			continue
		}
		ids = append(ids, n.ID)
		if len(ids) == maxCooccurrence {
			break
		}
	}

	seen := make(map[string]bool, len(edges))
	for _, e := range edges {
		seen[e.ID] = true
	}

	for i := 0; i < len(ids); i++ {
		for j := i + 1; j < len(ids); j++ {
			id := store.EdgeID(ids[i], "RELATED_TO", ids[j])
			if seen[id] {
				continue
			}
			seen[id] = true
			edges = append(edges, store.Edge{
				ID:     id,
				Src:    ids[i],
				Rel:    "RELATED_TO",
				Dst:    ids[j],
				Props:  map[string]any{"reason": "co_occurrence"},
				Source: source,
			})
		}
	}
	return edges
}
