package store

import (
	"context"
	"errors"
)

// GraphStore is the persistence boundary of the memory engine. Three
// interchangeable backends satisfy it: the in-process memory store, the
// SQLite store, and the PostgreSQL store.
//
// All write methods use idempotent upsert semantics keyed on id. Optional
// capabilities are separate interfaces below; callers branch on a typed
// assertion, never on reflection.
type GraphStore interface {
	// EnsureSchema performs idempotent setup. A no-op is allowed.
	EnsureSchema(ctx context.Context) error

	// UpsertEntities merges extracted entities plus their Source node and
	// MENTIONED_IN provenance edges. Entities with empty names are skipped.
	UpsertEntities(ctx context.Context, entities []Entity, source string) error

	// FetchContext renders a recency-ordered, human-readable memory
	// snapshot: the top `limit` non-archived, non-Source nodes by
	// updatedAt descending, one ContextLine per node.
	FetchContext(ctx context.Context, limit int) (string, error)

	// UpsertNodesEdges writes a normalized batch. Idempotent by id.
	// Lifecycle scores (decay, importance, archived) on existing nodes are
	// preserved; housekeeping owns them.
	UpsertNodesEdges(ctx context.Context, nodes []Node, edges []Edge) error

	// ExportGraph returns a bounded snapshot for display and debugging.
	// Edges whose endpoints fall outside the exported node set are dropped.
	ExportGraph(ctx context.Context, limitNodes int) (*GraphExport, error)

	// Close releases any resources held by the store.
	Close() error
}

// ImportTraverser is the optional import-graph traversal capability.
// Backends without it simply do not implement the interface; the retriever
// degrades to an empty traversal trace.
type ImportTraverser interface {
	// TraverseImports walks forward IMPORTS edges from the file node for
	// startPath, up to `hops` hops, returning at most `limit` paths. A
	// missing start node yields an empty trace, not an error.
	TraverseImports(ctx context.Context, startPath string, hops, limit int) (*ImportTrace, error)
}

// NodeReader is the optional batch node lookup capability used by the
// conflict resolver. Missing ids are absent from the result map.
type NodeReader interface {
	GetNodes(ctx context.Context, ids []string) (map[string]Node, error)
}

// Maintainer is the optional bulk maintenance capability used by the
// housekeeper: full-population reads, incident-edge degree counts, and
// score write-back.
type Maintainer interface {
	AllNodes(ctx context.Context) ([]Node, error)
	DegreeCounts(ctx context.Context) (map[string]int, error)
	UpdateScores(ctx context.Context, updates []ScoreUpdate) error
}

// LabelScanner is the optional label-scoped scan capability used by the
// retriever and the policy checker, most notably for NegativeSignal nodes.
// Results are ordered by updatedAt descending.
type LabelScanner interface {
	NodesByLabel(ctx context.Context, label string, limit int, includeArchived bool) ([]Node, error)
}

// ErrNoExport indicates the configured backend cannot export its graph.
var ErrNoExport = errors.New("graph backend has no export")
