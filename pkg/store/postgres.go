package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore is the shared-database backend, for deployments where the
// brain outlives a single machine. Import-graph traversal runs as a
// recursive CTE inside the database.
type PostgresStore struct {
	pool *pgxpool.Pool

	// Now is the clock used for updatedAt/createdAt stamps.
	Now func() time.Time
}

// NewPostgresStore connects to PostgreSQL using the given DSN.
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	s := &PostgresStore{pool: pool, Now: time.Now}
	if err := s.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

const postgresSchema = `
CREATE TABLE IF NOT EXISTS nodes (
	id TEXT PRIMARY KEY,
	label TEXT NOT NULL,
	props JSONB NOT NULL DEFAULT '{}'::jsonb,
	confidence DOUBLE PRECISION NOT NULL DEFAULT 0.5,
	source TEXT NOT NULL DEFAULT '',
	updated_at_ms BIGINT NOT NULL,
	decay DOUBLE PRECISION NOT NULL DEFAULT 0,
	importance DOUBLE PRECISION NOT NULL DEFAULT 0,
	archived BOOLEAN NOT NULL DEFAULT FALSE
);

CREATE INDEX IF NOT EXISTS idx_nodes_label ON nodes(label);
CREATE INDEX IF NOT EXISTS idx_nodes_updated ON nodes(updated_at_ms DESC);

CREATE TABLE IF NOT EXISTS edges (
	id TEXT PRIMARY KEY,
	src TEXT NOT NULL,
	rel TEXT NOT NULL,
	dst TEXT NOT NULL,
	props JSONB NOT NULL DEFAULT '{}'::jsonb,
	source TEXT NOT NULL DEFAULT '',
	created_at_ms BIGINT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_edges_src ON edges(src);
CREATE INDEX IF NOT EXISTS idx_edges_dst ON edges(dst);
CREATE INDEX IF NOT EXISTS idx_edges_rel ON edges(rel);
`

// EnsureSchema creates tables and indexes if they don't exist.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, postgresSchema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}
	return nil
}

// Close releases the connection pool.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

// UpsertEntities merges entities with provenance.
func (s *PostgresStore) UpsertEntities(ctx context.Context, entities []Entity, source string) error {
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

// UpsertNodesEdges writes a batch inside one transaction.
func (s *PostgresStore) UpsertNodesEdges(ctx context.Context, nodes []Node, edges []Edge) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	now := s.Now().UnixMilli()

	for _, n := range nodes {
		props, err := marshalProps(n.Props)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO nodes (id, label, props, confidence, source, updated_at_ms)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (id) DO UPDATE SET
				label = EXCLUDED.label,
				props = EXCLUDED.props,
				confidence = EXCLUDED.confidence,
				source = EXCLUDED.source,
				updated_at_ms = EXCLUDED.updated_at_ms
		`, n.ID, n.Label, props, n.Confidence, n.Source, now); err != nil {
			return fmt.Errorf("failed to upsert node %s: %w", n.ID, err)
		}
	}

	for _, e := range edges {
		id := e.ID
		if id == "" {
			id = EdgeID(e.Src, e.Rel, e.Dst)
		}
		props, err := marshalProps(e.Props)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO edges (id, src, rel, dst, props, source, created_at_ms)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (id) DO NOTHING
		`, id, e.Src, e.Rel, e.Dst, props, e.Source, now); err != nil {
			return fmt.Errorf("failed to upsert edge %s: %w", id, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit batch: %w", err)
	}
	return nil
}

// FetchContext renders the recency snapshot.
func (s *PostgresStore) FetchContext(ctx context.Context, limit int) (string, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, label, props, confidence, source, updated_at_ms, decay, importance, archived
		FROM nodes
		WHERE NOT archived AND label != 'Source'
		ORDER BY updated_at_ms DESC, id
		LIMIT $1
	`, limit)
	if err != nil {
		return "", fmt.Errorf("failed to query context nodes: %w", err)
	}
	nodes, err := scanPgxNodes(rows)
	if err != nil {
		return "", err
	}

	lines := make([]string, 0, len(nodes))
	for _, n := range nodes {
		srcRows, err := s.pool.Query(ctx, `
			SELECT DISTINCT dst FROM edges WHERE src = $1 AND rel = 'MENTIONED_IN' ORDER BY dst LIMIT 3
		`, n.ID)
		if err != nil {
			return "", fmt.Errorf("failed to query sources: %w", err)
		}
		var sources []string
		for srcRows.Next() {
			var dst string
			if err := srcRows.Scan(&dst); err != nil {
				srcRows.Close()
				return "", fmt.Errorf("failed to scan source: %w", err)
			}
			sources = append(sources, strings.TrimPrefix(dst, "source:"))
		}
		srcRows.Close()
		if err := srcRows.Err(); err != nil {
			return "", err
		}
		lines = append(lines, ContextLine(n, sources))
	}
	return strings.Join(lines, "\n"), nil
}

// ExportGraph returns a bounded snapshot ordered newest first.
func (s *PostgresStore) ExportGraph(ctx context.Context, limitNodes int) (*GraphExport, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, label, props, confidence, source, updated_at_ms, decay, importance, archived
		FROM nodes ORDER BY updated_at_ms DESC, id LIMIT $1
	`, limitNodes)
	if err != nil {
		return nil, fmt.Errorf("failed to query nodes: %w", err)
	}
	nodes, err := scanPgxNodes(rows)
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

	erows, err := s.pool.Query(ctx, `
		SELECT id, src, rel, dst, props, created_at_ms
		FROM edges ORDER BY created_at_ms DESC, id LIMIT $1
	`, maxExportEdges)
	if err != nil {
		return nil, fmt.Errorf("failed to query edges: %w", err)
	}
	defer erows.Close()

	for erows.Next() {
		var (
			e     ExportedEdge
			props []byte
		)
		if err := erows.Scan(&e.ID, &e.From, &e.Label, &e.To, &props, &e.CreatedAtMs); err != nil {
			return nil, fmt.Errorf("failed to scan edge: %w", err)
		}
		if !kept[e.From] || !kept[e.To] {
			continue
		}
		if err := json.Unmarshal(props, &e.Props); err != nil {
			return nil, fmt.Errorf("failed to unmarshal edge props: %w", err)
		}
		out.Edges = append(out.Edges, e)
	}
	return out, erows.Err()
}

// TraverseImports runs the forward walk as a recursive CTE, bounding depth
// and cutting cycles inside the query.
func (s *PostgresStore) TraverseImports(ctx context.Context, startPath string, hops, limit int) (*ImportTrace, error) {
	trace := &ImportTrace{Start: startPath, Hops: hops, Paths: [][]string{}}
	startID := FileNodeID(startPath)

	var exists bool
	if err := s.pool.QueryRow(ctx, "SELECT EXISTS(SELECT 1 FROM nodes WHERE id = $1)", startID).Scan(&exists); err != nil {
		return nil, fmt.Errorf("failed to look up start node: %w", err)
	}
	if !exists {
		return trace, nil
	}

	rows, err := s.pool.Query(ctx, `
		WITH RECURSIVE walk(dst, depth, path) AS (
			SELECT e.dst, 1, ARRAY[e.src, e.dst]
			FROM edges e
			WHERE e.rel = 'IMPORTS' AND e.src = $1
			UNION ALL
			SELECT e.dst, w.depth + 1, w.path || e.dst
			FROM walk w
			JOIN edges e ON e.src = w.dst AND e.rel = 'IMPORTS'
			WHERE w.depth < $2 AND e.dst != ALL(w.path)
		)
		SELECT path FROM walk ORDER BY depth, path LIMIT $3
	`, startID, hops, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to traverse imports: %w", err)
	}
	defer rows.Close()

	var idPaths [][]string
	idSet := make(map[string]bool)
	for rows.Next() {
		var path []string
		if err := rows.Scan(&path); err != nil {
			return nil, fmt.Errorf("failed to scan path: %w", err)
		}
		idPaths = append(idPaths, path)
		for _, id := range path {
			idSet[id] = true
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(idSet))
	for id := range idSet {
		ids = append(ids, id)
	}
	byID, err := s.GetNodes(ctx, ids)
	if err != nil {
		return nil, err
	}
	for _, path := range idPaths {
		titled := make([]string, len(path))
		for i, id := range path {
			if n, ok := byID[id]; ok {
				titled[i] = DisplayTitle(n)
			} else {
				titled[i] = id
			}
		}
		trace.Paths = append(trace.Paths, titled)
	}
	return trace, nil
}

// GetNodes looks up a batch of nodes by id. Missing ids are omitted.
func (s *PostgresStore) GetNodes(ctx context.Context, ids []string) (map[string]Node, error) {
	if len(ids) == 0 {
		return map[string]Node{}, nil
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, label, props, confidence, source, updated_at_ms, decay, importance, archived
		FROM nodes WHERE id = ANY($1)
	`, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to query nodes by id: %w", err)
	}
	nodes, err := scanPgxNodes(rows)
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
func (s *PostgresStore) AllNodes(ctx context.Context) ([]Node, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, label, props, confidence, source, updated_at_ms, decay, importance, archived
		FROM nodes ORDER BY updated_at_ms, id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query all nodes: %w", err)
	}
	return scanPgxNodes(rows)
}

// DegreeCounts returns incident-edge counts per node id.
func (s *PostgresStore) DegreeCounts(ctx context.Context) (map[string]int, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT node_id, COUNT(*) FROM (
			SELECT src AS node_id FROM edges
			UNION ALL
			SELECT dst AS node_id FROM edges
		) incident GROUP BY node_id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query degrees: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var id string
		var c int64
		if err := rows.Scan(&id, &c); err != nil {
			return nil, fmt.Errorf("failed to scan degree: %w", err)
		}
		counts[id] = int(c)
	}
	return counts, rows.Err()
}

// UpdateScores writes housekeeping scores back in one transaction.
func (s *PostgresStore) UpdateScores(ctx context.Context, updates []ScoreUpdate) error {
	if len(updates) == 0 {
		return nil
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, u := range updates {
		if _, err := tx.Exec(ctx,
			"UPDATE nodes SET decay = $1, importance = $2, archived = $3 WHERE id = $4",
			u.Decay, u.Importance, u.Archived, u.ID,
		); err != nil {
			return fmt.Errorf("failed to update scores for %s: %w", u.ID, err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit score updates: %w", err)
	}
	return nil
}

// NodesByLabel scans nodes of one label, newest first.
func (s *PostgresStore) NodesByLabel(ctx context.Context, label string, limit int, includeArchived bool) ([]Node, error) {
	query := `
		SELECT id, label, props, confidence, source, updated_at_ms, decay, importance, archived
		FROM nodes WHERE label = $1
	`
	if !includeArchived {
		query += " AND NOT archived"
	}
	query += " ORDER BY updated_at_ms DESC, id LIMIT $2"

	rows, err := s.pool.Query(ctx, query, label, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query nodes by label: %w", err)
	}
	return scanPgxNodes(rows)
}

func scanPgxNodes(rows pgx.Rows) ([]Node, error) {
	defer rows.Close()

	var nodes []Node
	for rows.Next() {
		var (
			n         Node
			props     []byte
			updatedMs int64
		)
		if err := rows.Scan(&n.ID, &n.Label, &props, &n.Confidence, &n.Source, &updatedMs, &n.Decay, &n.Importance, &n.Archived); err != nil {
			return nil, fmt.Errorf("failed to scan node: %w", err)
		}
		if err := json.Unmarshal(props, &n.Props); err != nil {
			return nil, fmt.Errorf("failed to unmarshal node props: %w", err)
		}
		n.UpdatedAt = time.UnixMilli(updatedMs)
		nodes = append(nodes, n)
	}
	return nodes, rows.Err()
}
