package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver
)

// SQLiteStore is the persistent local backend. No server required; the
// dbPath can be a file path or ":memory:".
type SQLiteStore struct {
	db *sql.DB

	// Now is the clock used for updatedAt/createdAt stamps.
	Now func() time.Time
}

// NewSQLiteStore opens (or creates) a SQLite-backed graph store.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set journal mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA synchronous=NORMAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set synchronous mode: %w", err)
	}

	s := &SQLiteStore{db: db, Now: time.Now}
	if err := s.EnsureSchema(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS nodes (
	id TEXT PRIMARY KEY,
	label TEXT NOT NULL,
	props_json TEXT NOT NULL,
	confidence REAL NOT NULL DEFAULT 0.5,
	source TEXT NOT NULL DEFAULT '',
	updated_at_ms INTEGER NOT NULL,
	decay REAL NOT NULL DEFAULT 0,
	importance REAL NOT NULL DEFAULT 0,
	archived INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_nodes_label ON nodes(label);
CREATE INDEX IF NOT EXISTS idx_nodes_updated ON nodes(updated_at_ms);

CREATE TABLE IF NOT EXISTS edges (
	id TEXT PRIMARY KEY,
	src TEXT NOT NULL,
	rel TEXT NOT NULL,
	dst TEXT NOT NULL,
	props_json TEXT NOT NULL,
	source TEXT NOT NULL DEFAULT '',
	created_at_ms INTEGER NOT NULL,
	FOREIGN KEY (src) REFERENCES nodes(id),
	FOREIGN KEY (dst) REFERENCES nodes(id)
);

CREATE INDEX IF NOT EXISTS idx_edges_src ON edges(src);
CREATE INDEX IF NOT EXISTS idx_edges_dst ON edges(dst);
CREATE INDEX IF NOT EXISTS idx_edges_rel ON edges(rel);
`

// EnsureSchema creates tables and indexes if they don't exist.
func (s *SQLiteStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, sqliteSchema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}
	return nil
}

// Close releases database resources.
func (s *SQLiteStore) Close() error { return s.db.Close() }

// UpsertEntities merges entities with provenance.
func (s *SQLiteStore) UpsertEntities(ctx context.Context, entities []Entity, source string) error {
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
			Src: id, Rel: "MENTIONED_IN", Dst: SourceNodeID(source),
			Props: map[string]any{}, Source: source,
		})
	}
	return s.UpsertNodesEdges(ctx, nodes, edges)
}

// UpsertNodesEdges writes a batch inside one transaction: either every node
// and edge lands, or none do.
func (s *SQLiteStore) UpsertNodesEdges(ctx context.Context, nodes []Node, edges []Edge) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := s.Now().UnixMilli()

	nodeStmt := `
		INSERT INTO nodes (id, label, props_json, confidence, source, updated_at_ms)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			label = excluded.label,
			props_json = excluded.props_json,
			confidence = excluded.confidence,
			source = excluded.source,
			updated_at_ms = excluded.updated_at_ms
	`
	for _, n := range nodes {
		props, err := marshalProps(n.Props)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, nodeStmt, n.ID, n.Label, props, n.Confidence, n.Source, now); err != nil {
			return fmt.Errorf("failed to upsert node %s: %w", n.ID, err)
		}
	}

	edgeStmt := `
		INSERT INTO edges (id, src, rel, dst, props_json, source, created_at_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`
	for _, e := range edges {
		id := e.ID
		if id == "" {
			id = EdgeID(e.Src, e.Rel, e.Dst)
		}
		props, err := marshalProps(e.Props)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, edgeStmt, id, e.Src, e.Rel, e.Dst, props, e.Source, now); err != nil {
			return fmt.Errorf("failed to upsert edge %s: %w", id, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit batch: %w", err)
	}
	return nil
}

// FetchContext renders the recency snapshot.
func (s *SQLiteStore) FetchContext(ctx context.Context, limit int) (string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, label, props_json, confidence, source, updated_at_ms, decay, importance, archived
		FROM nodes
		WHERE archived = 0 AND label != 'Source'
		ORDER BY updated_at_ms DESC, id
		LIMIT ?
	`, limit)
	if err != nil {
		return "", fmt.Errorf("failed to query context nodes: %w", err)
	}
	defer rows.Close()

	nodes, err := scanNodes(rows)
	if err != nil {
		return "", err
	}

	lines := make([]string, 0, len(nodes))
	for _, n := range nodes {
		sources, err := s.sourcesFor(ctx, n.ID, 3)
		if err != nil {
			return "", err
		}
		lines = append(lines, ContextLine(n, sources))
	}
	return strings.Join(lines, "\n"), nil
}

func (s *SQLiteStore) sourcesFor(ctx context.Context, nodeID string, max int) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT dst FROM edges WHERE src = ? AND rel = 'MENTIONED_IN' ORDER BY dst LIMIT ?
	`, nodeID, max)
	if err != nil {
		return nil, fmt.Errorf("failed to query sources: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var dst string
		if err := rows.Scan(&dst); err != nil {
			return nil, fmt.Errorf("failed to scan source: %w", err)
		}
		out = append(out, strings.TrimPrefix(dst, "source:"))
	}
	return out, rows.Err()
}

// ExportGraph returns a bounded snapshot ordered newest first.
func (s *SQLiteStore) ExportGraph(ctx context.Context, limitNodes int) (*GraphExport, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, label, props_json, confidence, source, updated_at_ms, decay, importance, archived
		FROM nodes ORDER BY updated_at_ms DESC, id LIMIT ?
	`, limitNodes)
	if err != nil {
		return nil, fmt.Errorf("failed to query nodes: %w", err)
	}
	defer rows.Close()

	nodes, err := scanNodes(rows)
	if err != nil {
		return nil, err
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

	erows, err := s.db.QueryContext(ctx, `
		SELECT id, src, rel, dst, props_json, created_at_ms
		FROM edges ORDER BY created_at_ms DESC, id LIMIT ?
	`, maxExportEdges)
	if err != nil {
		return nil, fmt.Errorf("failed to query edges: %w", err)
	}
	defer erows.Close()

	for erows.Next() {
		var (
			e         ExportedEdge
			propsJSON string
		)
		if err := erows.Scan(&e.ID, &e.From, &e.Label, &e.To, &propsJSON, &e.CreatedAtMs); err != nil {
			return nil, fmt.Errorf("failed to scan edge: %w", err)
		}
		if !kept[e.From] || !kept[e.To] {
			continue
		}
		if err := json.Unmarshal([]byte(propsJSON), &e.Props); err != nil {
			return nil, fmt.Errorf("failed to unmarshal edge props: %w", err)
		}
		out.Edges = append(out.Edges, e)
	}
	return out, erows.Err()
}

// TraverseImports walks forward IMPORTS edges from the start file. The
// adjacency is loaded once and traversed in-process, the same shape of
// breadth-limited walk the neighbor queries use.
func (s *SQLiteStore) TraverseImports(ctx context.Context, startPath string, hops, limit int) (*ImportTrace, error) {
	trace := &ImportTrace{Start: startPath, Hops: hops, Paths: [][]string{}}

	startID := FileNodeID(startPath)
	titles := make(map[string]string)
	var exists bool
	row := s.db.QueryRowContext(ctx, "SELECT props_json FROM nodes WHERE id = ?", startID)
	var propsJSON string
	switch err := row.Scan(&propsJSON); err {
	case nil:
		exists = true
	case sql.ErrNoRows:
		exists = false
	default:
		return nil, fmt.Errorf("failed to look up start node: %w", err)
	}
	if !exists {
		return trace, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT e.src, e.dst, n.props_json
		FROM edges e JOIN nodes n ON n.id = e.dst
		WHERE e.rel = 'IMPORTS'
		ORDER BY e.dst
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query import edges: %w", err)
	}
	defer rows.Close()

	next := make(map[string][]string)
	for rows.Next() {
		var src, dst, dstProps string
		if err := rows.Scan(&src, &dst, &dstProps); err != nil {
			return nil, fmt.Errorf("failed to scan import edge: %w", err)
		}
		next[src] = append(next[src], dst)
		titles[dst] = titleFromJSON(dst, dstProps)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	titles[startID] = titleFromJSON(startID, propsJSON)

	var walk func(id string, path []string, onPath map[string]bool)
	walk = func(id string, path []string, onPath map[string]bool) {
		if len(trace.Paths) >= limit || len(path) > hops {
			return
		}
		for _, dst := range next[id] {
			if onPath[dst] || len(trace.Paths) >= limit {
				continue
			}
			step := append(append([]string{}, path...), titles[dst])
			trace.Paths = append(trace.Paths, step)
			onPath[dst] = true
			walk(dst, step, onPath)
			delete(onPath, dst)
		}
	}
	walk(startID, []string{titles[startID]}, map[string]bool{startID: true})
	return trace, nil
}

// GetNodes looks up a batch of nodes by id. Missing ids are omitted.
func (s *SQLiteStore) GetNodes(ctx context.Context, ids []string) (map[string]Node, error) {
	if len(ids) == 0 {
		return map[string]Node{}, nil
	}

	placeholders := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		placeholders[i] = "?"
		args[i] = id
	}
	query := fmt.Sprintf(`
		SELECT id, label, props_json, confidence, source, updated_at_ms, decay, importance, archived
		FROM nodes WHERE id IN (%s)
	`, strings.Join(placeholders, ","))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query nodes by id: %w", err)
	}
	defer rows.Close()

	nodes, err := scanNodes(rows)
	if err != nil {
		return nil, err
	}
	out := make(map[string]Node, len(nodes))
	for _, n := range nodes {
		out[n.ID] = n
	}
	return out, nil
}

// AllNodes returns the full node population, oldest first.
func (s *SQLiteStore) AllNodes(ctx context.Context) ([]Node, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, label, props_json, confidence, source, updated_at_ms, decay, importance, archived
		FROM nodes ORDER BY updated_at_ms, id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query all nodes: %w", err)
	}
	defer rows.Close()
	return scanNodes(rows)
}

// DegreeCounts returns incident-edge counts per node id.
func (s *SQLiteStore) DegreeCounts(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT node_id, COUNT(*) FROM (
			SELECT src AS node_id FROM edges
			UNION ALL
			SELECT dst AS node_id FROM edges
		) GROUP BY node_id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query degrees: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var id string
		var c int
		if err := rows.Scan(&id, &c); err != nil {
			return nil, fmt.Errorf("failed to scan degree: %w", err)
		}
		counts[id] = c
	}
	return counts, rows.Err()
}

// UpdateScores writes housekeeping scores back in one transaction.
func (s *SQLiteStore) UpdateScores(ctx context.Context, updates []ScoreUpdate) error {
	if len(updates) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, u := range updates {
		archived := 0
		if u.Archived {
			archived = 1
		}
		if _, err := tx.ExecContext(ctx,
			"UPDATE nodes SET decay = ?, importance = ?, archived = ? WHERE id = ?",
			u.Decay, u.Importance, archived, u.ID,
		); err != nil {
			return fmt.Errorf("failed to update scores for %s: %w", u.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit score updates: %w", err)
	}
	return nil
}

// NodesByLabel scans nodes of one label, newest first.
func (s *SQLiteStore) NodesByLabel(ctx context.Context, label string, limit int, includeArchived bool) ([]Node, error) {
	query := `
		SELECT id, label, props_json, confidence, source, updated_at_ms, decay, importance, archived
		FROM nodes WHERE label = ?
	`
	if !includeArchived {
		query += " AND archived = 0"
	}
	query += " ORDER BY updated_at_ms DESC, id LIMIT ?"

	rows, err := s.db.QueryContext(ctx, query, label, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query nodes by label: %w", err)
	}
	defer rows.Close()
	return scanNodes(rows)
}

func marshalProps(props map[string]any) (string, error) {
	if props == nil {
		props = map[string]any{}
	}
	b, err := json.Marshal(props)
	if err != nil {
		return "", fmt.Errorf("failed to marshal props: %w", err)
	}
	return string(b), nil
}

func scanNodes(rows *sql.Rows) ([]Node, error) {
	var nodes []Node
	for rows.Next() {
		var (
			n         Node
			propsJSON string
			updatedMs int64
			archived  int
		)
		if err := rows.Scan(&n.ID, &n.Label, &propsJSON, &n.Confidence, &n.Source, &updatedMs, &n.Decay, &n.Importance, &archived); err != nil {
			return nil, fmt.Errorf("failed to scan node: %w", err)
		}
		if err := json.Unmarshal([]byte(propsJSON), &n.Props); err != nil {
			return nil, fmt.Errorf("failed to unmarshal node props: %w", err)
		}
		n.UpdatedAt = time.UnixMilli(updatedMs)
		n.Archived = archived != 0
		nodes = append(nodes, n)
	}
	return nodes, rows.Err()
}

func titleFromJSON(id, propsJSON string) string {
	var props map[string]any
	if err := json.Unmarshal([]byte(propsJSON), &props); err != nil {
		return id
	}
	return DisplayTitle(Node{ID: id, Props: props})
}
