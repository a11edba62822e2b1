// Package conflict detects key-field disagreements between an incoming
// batch and stored nodes, and versions them with revision nodes instead of
// silently overwriting.
package conflict

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/braingraph/braingraph/pkg/store"
)

// keyFields lists, per label, the fields whose disagreement constitutes a
// conflict. Unlisted labels use defaultKeyFields.
var keyFields = map[string][]string{
	"Decision":       {"what", "why"},
	"Preference":     {"name", "category"},
	"Pattern":        {"name", "type"},
	"NegativeSignal": {"kind", "hash", "reason"},
	"Commit":         {"hash", "message"},
	"File":           {"path"},
}

var defaultKeyFields = []string{"name", "path", "what"}

// Resolver compares candidate nodes against stored nodes with the same id
// and mints revision nodes on mismatch.
//
// This is a best-effort read-then-decide pass: it is not protected against
// concurrent writers to the same id, and two racing ingestions can both
// see "no conflict" and overwrite each other.
type Resolver struct {
	reader store.NodeReader

	// Now supplies revision timestamps. Injected so tests mint
	// deterministic revision ids.
	Now func() time.Time
}

// NewResolver creates a resolver over the given node reader.
func NewResolver(reader store.NodeReader) *Resolver {
	return &Resolver{reader: reader, Now: time.Now}
}

// Resolve checks every candidate node against the store. For each conflict
// it appends a revision node `<id>::rev:<ms>` carrying base_id, rewrites
// the batch's edges onto the revision, and appends an EVOLVED_FROM edge
// from the revision to the original id. Candidate nodes themselves pass
// through unmodified.
func (r *Resolver) Resolve(ctx context.Context, nodes []store.Node, edges []store.Edge) ([]store.Node, []store.Edge, error) {
	if len(nodes) == 0 {
		return nodes, edges, nil
	}

	ids := make([]string, 0, len(nodes))
	for _, n := range nodes {
		ids = append(ids, n.ID)
	}
	existing, err := r.reader.GetNodes(ctx, ids)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read existing nodes: %w", err)
	}

	remap := make(map[string]string)
	outNodes := make([]store.Node, 0, len(nodes))
	for _, n := range nodes {
		outNodes = append(outNodes, n)

		prev, ok := existing[n.ID]
		if !ok || !conflicts(prev, n) {
			continue
		}

		revID := n.ID + "::rev:" + strconv.FormatInt(r.Now().UnixMilli(), 10)
		props := make(map[string]any, len(n.Props)+1)
		for k, v := range n.Props {
			props[k] = v
		}
		props["base_id"] = n.ID
		outNodes = append(outNodes, store.Node{
			Label:      n.Label,
			ID:         revID,
			Props:      props,
			Confidence: n.Confidence,
			Source:     n.Source,
		})
		remap[n.ID] = revID
	}

	if len(remap) == 0 {
		return outNodes, edges, nil
	}

	outEdges := make([]store.Edge, 0, len(edges)+len(remap))
	for _, e := range edges {
		src, srcMoved := remap[e.Src]
		dst, dstMoved := remap[e.Dst]
		if srcMoved {
			e.Src = src
		}
		if dstMoved {
			e.Dst = dst
		}
		if srcMoved || dstMoved {
			e.ID = store.EdgeID(e.Src, e.Rel, e.Dst)
		}
		outEdges = append(outEdges, e)
	}
	for oldID, revID := range remap {
		outEdges = append(outEdges, store.Edge{
			ID:     store.EdgeID(revID, "EVOLVED_FROM", oldID),
			Src:    revID,
			Rel:    "EVOLVED_FROM",
			Dst:    oldID,
			Props:  map[string]any{"reason": "conflict_detected"},
			Source: firstSource(nodes),
		})
	}
	return outNodes, outEdges, nil
}

// conflicts reports whether a stored node and a candidate disagree on any
// key field carried by both. Fields absent (or empty after trimming) on
// either side cannot conflict.
func conflicts(prev, next store.Node) bool {
	fields, ok := keyFields[next.Label]
	if !ok {
		fields = defaultKeyFields
	}
	for _, f := range fields {
		a := fieldValue(prev.Props, f)
		b := fieldValue(next.Props, f)
		if a == "" || b == "" {
			continue
		}
		if a != b {
			return true
		}
	}
	return false
}

func fieldValue(props map[string]any, key string) string {
	if props == nil {
		return ""
	}
	v, ok := props[key]
	if !ok || v == nil {
		return ""
	}
	s, ok := v.(string)
	if !ok {
		s = fmt.Sprint(v)
	}
	return strings.TrimSpace(s)
}

func firstSource(nodes []store.Node) string {
	for _, n := range nodes {
		if n.Source != "" {
			return n.Source
		}
	}
	return ""
}
