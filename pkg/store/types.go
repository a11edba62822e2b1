// Package store provides the graph storage contract and backends for the
// braingraph memory engine. Durable state lives here; the engine packages
// are stateless transforms over batches passed to and from a GraphStore.
package store

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// Node is a canonical graph entity. IDs are deterministic functions of the
// label/kind and canonicalized key fields, e.g. "decision:ship it" or
// "file:src/app.py". Nodes are never hard-deleted; housekeeping archives
// them or the conflict resolver supersedes them with a revision node.
type Node struct {
	Label      string         `json:"label"`
	ID         string         `json:"id"`
	Props      map[string]any `json:"props"`
	Confidence float64        `json:"confidence"`
	Source     string         `json:"source"`
	UpdatedAt  time.Time      `json:"updatedAt"`
	Decay      float64        `json:"decay,omitempty"`
	Importance float64        `json:"importance,omitempty"`
	Archived   bool           `json:"archived,omitempty"`
}

// Edge is a typed relation between two node ids. The id is deterministic
// from (src, rel, dst), so re-ingesting the same triple is a no-op upsert:
// at most one edge instance exists per triple. Repeated-relation counts are
// intentionally collapsed.
type Edge struct {
	ID        string         `json:"id"`
	Src       string         `json:"src"`
	Rel       string         `json:"rel"`
	Dst       string         `json:"dst"`
	Props     map[string]any `json:"props"`
	Source    string         `json:"source"`
	CreatedAt time.Time      `json:"createdAt"`
}

// Entity is the minimal extraction result handed to UpsertEntities.
type Entity struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// ExportedNode is the wire shape of a node in a graph export.
type ExportedNode struct {
	ID          string         `json:"id"`
	Label       string         `json:"label"`
	Type        string         `json:"type"`
	Props       map[string]any `json:"props"`
	UpdatedAtMs int64          `json:"updatedAtMs"`
}

// ExportedEdge is the wire shape of an edge in a graph export.
type ExportedEdge struct {
	ID          string         `json:"id"`
	From        string         `json:"from"`
	To          string         `json:"to"`
	Label       string         `json:"label"`
	Props       map[string]any `json:"props"`
	CreatedAtMs int64          `json:"createdAtMs"`
}

// GraphExport is a bounded snapshot of the stored graph.
type GraphExport struct {
	Nodes []ExportedNode `json:"nodes"`
	Edges []ExportedEdge `json:"edges"`
}

// ImportTrace records the result of an import-graph traversal. Paths are
// node-path lists starting at the start file. An empty Paths slice means
// the start node is absent or the backend found nothing; it is never an
// error.
type ImportTrace struct {
	Start string     `json:"start"`
	Hops  int        `json:"hops"`
	Paths [][]string `json:"paths"`
}

// ScoreUpdate carries recomputed lifecycle scores back onto a stored node.
type ScoreUpdate struct {
	ID         string
	Decay      float64
	Importance float64
	Archived   bool
}

var whitespaceRe = regexp.MustCompile(`\s+`)

// Canon trims and collapses internal whitespace. All id generation runs
// through Canon so equal inputs always produce equal ids.
func Canon(s string) string {
	return whitespaceRe.ReplaceAllString(strings.TrimSpace(s), " ")
}

// CanonID builds a deterministic node id from a kind prefix and a name.
func CanonID(prefix, name string) string {
	return prefix + ":" + strings.ToLower(Canon(name))
}

// FileNodeID returns the node id for a file path.
func FileNodeID(path string) string {
	return CanonID("file", path)
}

// SourceNodeID returns the node id for an ingestion source.
func SourceNodeID(source string) string {
	return "source:" + source
}

// EdgeID builds the deterministic edge id for a (src, rel, dst) triple.
func EdgeID(src, rel, dst string) string {
	return src + "::" + rel + "::" + dst
}

// DisplayTitle picks a human-readable title for a node: the first non-empty
// of name, path, what, hash, falling back to the id.
func DisplayTitle(n Node) string {
	for _, k := range []string{"name", "path", "what", "hash"} {
		if v := propString(n.Props, k); v != "" {
			return v
		}
	}
	return n.ID
}

// DisplayDetail picks the supporting detail for a node: the first non-empty
// of why, reason. Empty when the node carries neither.
func DisplayDetail(n Node) string {
	for _, k := range []string{"why", "reason"} {
		if v := propString(n.Props, k); v != "" {
			return v
		}
	}
	return ""
}

// ContextLine renders one memory-snapshot line:
//
//	- [Decision] ship it — deadline [src: cli]
func ContextLine(n Node, sources []string) string {
	line := fmt.Sprintf("- [%s] %s", n.Label, DisplayTitle(n))
	if d := DisplayDetail(n); d != "" {
		line += " — " + d
	}
	if len(sources) > 0 {
		line += fmt.Sprintf(" [src: %s]", strings.Join(sources, ", "))
	}
	return line
}

func propString(props map[string]any, key string) string {
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
