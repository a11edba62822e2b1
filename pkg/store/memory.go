package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
)

// MemoryStore is the in-process backend. It exists so the engine runs and
// tests without a database; data is not persisted. It implements every
// optional capability.
type MemoryStore struct {
	mu    sync.RWMutex
	nodes map[string]Node
	edges map[string]Edge

	// Now is the clock used for updatedAt/createdAt stamps. Tests override
	// it to build populations with known ages.
	Now func() time.Time
}

// NewMemoryStore creates an empty in-memory graph store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		nodes: make(map[string]Node),
		edges: make(map[string]Edge),
		Now:   time.Now,
	}
}

// EnsureSchema is a no-op for the memory backend.
func (m *MemoryStore) EnsureSchema(ctx context.Context) error { return nil }

// Close is a no-op for the memory backend.
func (m *MemoryStore) Close() error { return nil }

// UpsertEntities merges entities with provenance, mirroring the node and
// edge shapes the normalizer produces.
func (m *MemoryStore) UpsertEntities(ctx context.Context, entities []Entity, source string) error {
	nodes := []Node{{
		Label:      "Source",
		ID:         SourceNodeID(source),
		Props:      map[string]any{"id": source},
		Confidence: 1.0,
		Source:     source,
	}}
	var edges []Edge
	for _, ent := range entities {
		name := Canon(ent.Name)
		if name == "" {
			continue
		}
		typ := Canon(ent.Type)
		if typ == "" {
			typ = "Entity"
		}
		id := CanonID("entity", name)
		nodes = append(nodes, Node{
			Label:      "Entity",
			ID:         id,
			Props:      map[string]any{"name": name, "type": typ},
			Confidence: 0.7,
			Source:     source,
		})
		edges = append(edges, Edge{
			ID:     EdgeID(id, "MENTIONED_IN", SourceNodeID(source)),
			Src:    id,
			Rel:    "MENTIONED_IN",
			Dst:    SourceNodeID(source),
			Props:  map[string]any{},
			Source: source,
		})
	}
	return m.UpsertNodesEdges(ctx, nodes, edges)
}

// UpsertNodesEdges writes a batch with idempotent upsert semantics.
// Existing lifecycle scores survive re-ingestion.
func (m *MemoryStore) UpsertNodesEdges(ctx context.Context, nodes []Node, edges []Edge) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.Now()
	for _, n := range nodes {
		if n.Props == nil {
			n.Props = map[string]any{}
		}
		if prev, ok := m.nodes[n.ID]; ok {
			n.Decay = prev.Decay
			n.Importance = prev.Importance
			n.Archived = prev.Archived
		}
		n.UpdatedAt = now
		m.nodes[n.ID] = n
	}
	for _, e := range edges {
		if e.ID == "" {
			e.ID = EdgeID(e.Src, e.Rel, e.Dst)
		}
		if e.Props == nil {
			e.Props = map[string]any{}
		}
		if prev, ok := m.edges[e.ID]; ok {
			e.CreatedAt = prev.CreatedAt
		} else {
			e.CreatedAt = now
		}
		m.edges[e.ID] = e
	}
	return nil
}

// FetchContext renders the recency snapshot used as the brain section of a
// context pack.
func (m *MemoryStore) FetchContext(ctx context.Context, limit int) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	nodes := m.activeNodesLocked("", limit, true)
	lines := make([]string, 0, len(nodes))
	for _, n := range nodes {
		lines = append(lines, ContextLine(n, m.sourcesForLocked(n.ID, 3)))
	}
	return strings.Join(lines, "\n"), nil
}

// ExportGraph returns a bounded snapshot ordered newest first.
func (m *MemoryStore) ExportGraph(ctx context.Context, limitNodes int) (*GraphExport, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	nodes := make([]Node, 0, len(m.nodes))
	for _, n := range m.nodes {
		nodes = append(nodes, n)
	}
	sort.Slice(nodes, func(i, j int) bool {
		if !nodes[i].UpdatedAt.Equal(nodes[j].UpdatedAt) {
			return nodes[i].UpdatedAt.After(nodes[j].UpdatedAt)
		}
		return nodes[i].ID < nodes[j].ID
	})
	if limitNodes > 0 && len(nodes) > limitNodes {
		nodes = nodes[:limitNodes]
	}

	kept := make(map[string]bool, len(nodes))
	out := &GraphExport{Nodes: make([]ExportedNode, 0, len(nodes)), Edges: []ExportedEdge{}}
	for _, n := range nodes {
		kept[n.ID] = true
		out.Nodes = append(out.Nodes, ExportedNode{
			ID:          n.ID,
			Label:       DisplayTitle(n),
			Type:        n.Label,
			Props:       n.Props,
			UpdatedAtMs: n.UpdatedAt.UnixMilli(),
		})
	}

	edges := make([]Edge, 0, len(m.edges))
	for _, e := range m.edges {
		if kept[e.Src] && kept[e.Dst] {
			edges = append(edges, e)
		}
	}
	sort.Slice(edges, func(i, j int) bool {
		if !edges[i].CreatedAt.Equal(edges[j].CreatedAt) {
			return edges[i].CreatedAt.After(edges[j].CreatedAt)
		}
		return edges[i].ID < edges[j].ID
	})
	if len(edges) > maxExportEdges {
		edges = edges[:maxExportEdges]
	}
	for _, e := range edges {
		out.Edges = append(out.Edges, ExportedEdge{
			ID:          e.ID,
			From:        e.Src,
			To:          e.Dst,
			Label:       e.Rel,
			Props:       e.Props,
			CreatedAtMs: e.CreatedAt.UnixMilli(),
		})
	}
	return out, nil
}

const maxExportEdges = 5000

// TraverseImports walks forward IMPORTS edges from the start file,
// collecting node paths. Cycles are cut per path.
func (m *MemoryStore) TraverseImports(ctx context.Context, startPath string, hops, limit int) (*ImportTrace, error) {
	trace := &ImportTrace{Start: startPath, Hops: hops, Paths: [][]string{}}

	m.mu.RLock()
	defer m.mu.RUnlock()

	startID := FileNodeID(startPath)
	start, ok := m.nodes[startID]
	if !ok {
		return trace, nil
	}

	// Forward adjacency over IMPORTS only.
	next := make(map[string][]string)
	for _, e := range m.edges {
		if e.Rel == "IMPORTS" {
			next[e.Src] = append(next[e.Src], e.Dst)
		}
	}
	for _, dsts := range next {
		sort.Strings(dsts)
	}

	var walk func(id string, path []string, onPath map[string]bool)
	walk = func(id string, path []string, onPath map[string]bool) {
		if len(trace.Paths) >= limit || len(path) > hops {
			return
		}
		for _, dst := range next[id] {
			if onPath[dst] || len(trace.Paths) >= limit {
				continue
			}
			n, ok := m.nodes[dst]
			if !ok {
				continue
			}
			step := append(append([]string{}, path...), DisplayTitle(n))
			trace.Paths = append(trace.Paths, step)
			onPath[dst] = true
			walk(dst, step, onPath)
			delete(onPath, dst)
		}
	}
	walk(startID, []string{DisplayTitle(start)}, map[string]bool{startID: true})
	return trace, nil
}

// GetNodes looks up a batch of nodes by id. Missing ids are omitted.
func (m *MemoryStore) GetNodes(ctx context.Context, ids []string) (map[string]Node, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string]Node, len(ids))
	for _, id := range ids {
		if n, ok := m.nodes[id]; ok {
			out[id] = n
		}
	}
	return out, nil
}

// AllNodes returns the full node population, oldest first for stable
// housekeeping iteration.
func (m *MemoryStore) AllNodes(ctx context.Context) ([]Node, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	nodes := make([]Node, 0, len(m.nodes))
	for _, n := range m.nodes {
		nodes = append(nodes, n)
	}
	sort.Slice(nodes, func(i, j int) bool {
		if !nodes[i].UpdatedAt.Equal(nodes[j].UpdatedAt) {
			return nodes[i].UpdatedAt.Before(nodes[j].UpdatedAt)
		}
		return nodes[i].ID < nodes[j].ID
	})
	return nodes, nil
}

// DegreeCounts returns incident-edge counts per node id.
func (m *MemoryStore) DegreeCounts(ctx context.Context) (map[string]int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	counts := make(map[string]int)
	for _, e := range m.edges {
		counts[e.Src]++
		counts[e.Dst]++
	}
	return counts, nil
}

// UpdateScores writes housekeeping scores back onto stored nodes.
func (m *MemoryStore) UpdateScores(ctx context.Context, updates []ScoreUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, u := range updates {
		n, ok := m.nodes[u.ID]
		if !ok {
			continue
		}
		n.Decay = u.Decay
		n.Importance = u.Importance
		n.Archived = u.Archived
		m.nodes[u.ID] = n
	}
	return nil
}

// NodesByLabel scans nodes of one label, newest first.
func (m *MemoryStore) NodesByLabel(ctx context.Context, label string, limit int, includeArchived bool) ([]Node, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var nodes []Node
	for _, n := range m.nodes {
		if n.Label != label {
			continue
		}
		if !includeArchived && n.Archived {
			continue
		}
		nodes = append(nodes, n)
	}
	sort.Slice(nodes, func(i, j int) bool {
		if !nodes[i].UpdatedAt.Equal(nodes[j].UpdatedAt) {
			return nodes[i].UpdatedAt.After(nodes[j].UpdatedAt)
		}
		return nodes[i].ID < nodes[j].ID
	})
	if limit > 0 && len(nodes) > limit {
		nodes = nodes[:limit]
	}
	return nodes, nil
}

// activeNodesLocked returns non-archived nodes, optionally excluding Source
// nodes, newest first. Callers hold at least a read lock.
func (m *MemoryStore) activeNodesLocked(label string, limit int, skipSource bool) []Node {
	var nodes []Node
	for _, n := range m.nodes {
		if n.Archived {
			continue
		}
		if skipSource && n.Label == "Source" {
			continue
		}
		if label != "" && n.Label != label {
			continue
		}
		nodes = append(nodes, n)
	}
	sort.Slice(nodes, func(i, j int) bool {
		if !nodes[i].UpdatedAt.Equal(nodes[j].UpdatedAt) {
			return nodes[i].UpdatedAt.After(nodes[j].UpdatedAt)
		}
		return nodes[i].ID < nodes[j].ID
	})
	if limit > 0 && len(nodes) > limit {
		nodes = nodes[:limit]
	}
	return nodes
}

// sourcesForLocked collects up to max distinct source names mentioned-in by
// a node. Callers hold at least a read lock.
func (m *MemoryStore) sourcesForLocked(nodeID string, max int) []string {
	seen := make(map[string]bool)
	var out []string
	for _, e := range m.edges {
		if e.Src != nodeID || e.Rel != "MENTIONED_IN" {
			continue
		}
		src := strings.TrimPrefix(e.Dst, "source:")
		if !seen[src] {
			seen[src] = true
			out = append(out, src)
		}
	}
	sort.Strings(out)
	if len(out) > max {
		out = out[:max]
	}
	return out
}
