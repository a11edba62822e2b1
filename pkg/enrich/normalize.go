package enrich

import (
	"strings"

	"github.com/braingraph/braingraph/pkg/store"
)

// NormalizeFacts converts facts into canonical nodes and edges: trimmed,
// whitespace-collapsed, deterministically id'd, provenance-linked, and
// deduplicated within the batch.
func NormalizeFacts(facts []Fact, source string) ([]store.Node, []store.Edge) {
	var nodes []store.Node
	var edges []store.Edge

	for _, f := range facts {
		switch f.Kind {
		case "text_entity":
			name := store.Canon(valueString(f.Value, "name"))
			if name == "" {
				continue
			}
			typ := store.Canon(valueString(f.Value, "type"))
			if typ == "" {
				typ = "Entity"
			}
			nodes = append(nodes, store.Node{
				Label:      "Entity",
				ID:         store.CanonID("entity", name),
				Props:      map[string]any{"name": name, "type": typ},
				Confidence: f.Confidence,
				Source:     source,
			})

		case "decision":
			what := store.Canon(valueString(f.Value, "what"))
			if what == "" {
				continue
			}
			props := map[string]any{
				"what": what,
				"why":  store.Canon(valueString(f.Value, "why")),
			}
			if when := store.Canon(valueString(f.Value, "when")); when != "" {
				props["when"] = when
			}
			nodes = append(nodes, store.Node{
				Label:      "Decision",
				ID:         store.CanonID("decision", what),
				Props:      props,
				Confidence: f.Confidence,
				Source:     source,
			})

		case "preference":
			name := store.Canon(valueString(f.Value, "name"))
			if name == "" {
				continue
			}
			category := store.Canon(valueString(f.Value, "category"))
			nodes = append(nodes, store.Node{
				Label:      "Preference",
				ID:         store.CanonID("pref", category+":"+name),
				Props:      map[string]any{"name": name, "category": category},
				Confidence: f.Confidence,
				Source:     source,
			})

		case "pattern":
			name := store.Canon(valueString(f.Value, "name"))
			if name == "" {
				continue
			}
			ptype := store.Canon(valueString(f.Value, "type"))
			nodes = append(nodes, store.Node{
				Label:      "Pattern",
				ID:         store.CanonID("pattern", ptype+":"+name),
				Props:      map[string]any{"name": name, "type": ptype},
				Confidence: f.Confidence,
				Source:     source,
			})

		case "file_import":
			from := store.Canon(valueString(f.Value, "from"))
			to := store.Canon(valueString(f.Value, "to"))
			if from == "" || to == "" {
				continue
			}
			fromID := store.FileNodeID(from)
			toID := store.FileNodeID(to)
			nodes = append(nodes,
				store.Node{Label: "File", ID: fromID, Props: map[string]any{"path": from}, Confidence: 1.0, Source: source},
				store.Node{Label: "File", ID: toID, Props: map[string]any{"path": to}, Confidence: 1.0, Source: source},
			)
			edges = append(edges, store.Edge{
				Src: fromID, Rel: "IMPORTS", Dst: toID,
				Props: map[string]any{}, Source: source,
			})

		case "git_commit":
			hash := store.Canon(valueString(f.Value, "hash"))
			if hash == "" {
				continue
			}
			props := map[string]any{"hash": hash}
			if msg := store.Canon(valueString(f.Value, "message")); msg != "" {
				props["message"] = msg
			}
			nodes = append(nodes, store.Node{
				Label:      "Commit",
				ID:         "commit:" + strings.ToLower(hash),
				Props:      props,
				Confidence: f.Confidence,
				Source:     source,
			})

		case "revert":
			hash := store.Canon(valueString(f.Value, "hash"))
			if hash == "" {
				continue
			}
			commitID := "commit:" + strings.ToLower(hash)
			signalID := store.CanonID("negative", "revert:"+hash)
			nodes = append(nodes,
				store.Node{Label: "Commit", ID: commitID, Props: map[string]any{"hash": hash}, Confidence: 1.0, Source: source},
				store.Node{
					Label: "NegativeSignal",
					ID:    signalID,
					Props: map[string]any{
						"kind":   "revert",
						"hash":   hash,
						"reason": store.Canon(valueString(f.Value, "reason")),
					},
					Confidence: 1.0,
					Source:     source,
				},
			)
			edges = append(edges, store.Edge{
				Src: signalID, Rel: "ABOUT", Dst: commitID,
				Props: map[string]any{}, Source: source,
			})
		}
	}

	// Provenance: the batch's Source node always exists, and every other
	// node in the batch links to it.
	sourceID := store.SourceNodeID(source)
	nodes = append(nodes, store.Node{
		Label:      "Source",
		ID:         sourceID,
		Props:      map[string]any{"id": source},
		Confidence: 1.0,
		Source:     source,
	})
	for _, n := range nodes {
		if n.ID == sourceID {
			continue
		}
		edges = append(edges, store.Edge{
			Src: n.ID, Rel: "MENTIONED_IN", Dst: sourceID,
			Props: map[string]any{}, Source: source,
		})
	}

	return dedupeNodes(nodes), dedupeEdges(edges)
}

// dedupeNodes merges nodes by (label, id): later occurrences override props
// with non-nil values only, and confidence becomes the max seen. Batch
// order of first occurrences is preserved.
func dedupeNodes(nodes []store.Node) []store.Node {
	index := make(map[string]int)
	var out []store.Node
	for _, n := range nodes {
		key := n.Label + "\x00" + n.ID
		if i, ok := index[key]; ok {
			for k, v := range n.Props {
				if v != nil {
					out[i].Props[k] = v
				}
			}
			if n.Confidence > out[i].Confidence {
				out[i].Confidence = n.Confidence
			}
			continue
		}
		index[key] = len(out)
		out = append(out, n)
	}
	return out
}

// dedupeEdges drops repeated (src, rel, dst) triples, first occurrence
// wins, and fills in the deterministic edge id.
func dedupeEdges(edges []store.Edge) []store.Edge {
	seen := make(map[string]bool)
	var out []store.Edge
	for _, e := range edges {
		if e.ID == "" {
			e.ID = store.EdgeID(e.Src, e.Rel, e.Dst)
		}
		if seen[e.ID] {
			continue
		}
		seen[e.ID] = true
		out = append(out, e)
	}
	return out
}

func valueString(value map[string]any, key string) string {
	if value == nil {
		return ""
	}
	if s, ok := value[key].(string); ok {
		return s
	}
	return ""
}
