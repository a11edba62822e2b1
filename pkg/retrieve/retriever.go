// Package retrieve answers memory queries: it classifies intent, walks the
// import graph around an anchor file, assembles a token-budgeted context
// pack, and routes the request to a model tier. Every selection decision
// is recorded in the result trace so it can be inspected independently.
package retrieve

import (
	"context"
	"fmt"
	"strings"

	"github.com/braingraph/braingraph/pkg/llm"
	"github.com/braingraph/braingraph/pkg/store"
)

// Mode is the retrieval thoroughness requested by the caller.
type Mode string

// Priority trades answer quality against cost.
type Priority string

const (
	ModeFast     Mode = "fast"
	ModeBalanced Mode = "balanced"
	ModeThorough Mode = "thorough"

	PriorityQuality Priority = "quality"
	PriorityCheap   Priority = "cheap"
)

const (
	snapshotLimit  = 30
	negativesLimit = 10
	maxPathResults = 50
	maxSelection   = 20
)

// Request is one retrieval query.
type Request struct {
	Query       string   `json:"query"`
	CurrentFile string   `json:"current_file,omitempty"`
	Mode        Mode     `json:"mode,omitempty"`
	Priority    Priority `json:"priority,omitempty"`
}

// FileScore is one selected file with its traversal score.
type FileScore struct {
	Path   string  `json:"path"`
	Score  float64 `json:"score"`
	Reason string  `json:"reason"`
}

// Trace explains how the result was put together.
type Trace struct {
	Intent    llm.Intent         `json:"intent"`
	Traversal *store.ImportTrace `json:"traversal,omitempty"`
	Selection []FileScore        `json:"selection"`
}

// Result is the assembled retrieval answer: a routing decision plus the
// bounded context pack.
type Result struct {
	Mode        Mode     `json:"mode"`
	Priority    Priority `json:"priority"`
	Model       string   `json:"model"`
	TokenBudget int      `json:"token_budget"`
	Trace       Trace    `json:"trace"`
	ContextPack string   `json:"context_pack"`
}

// ModelTable names the model identifiers behind each routing tier.
type ModelTable struct {
	Cheap   string
	Default string
	Premium string
}

// DefaultModelTable returns the stock tier names.
func DefaultModelTable() ModelTable {
	return ModelTable{Cheap: "gpt-4o-mini", Default: "gpt-4o", Premium: "o1"}
}

// Retriever assembles context packs from the graph store and the intent
// collaborator.
type Retriever struct {
	graph  store.GraphStore
	client llm.Client

	// Models is the routing table. Zero-value falls back to defaults.
	Models ModelTable
}

// NewRetriever creates a retriever with the default model table.
func NewRetriever(graph store.GraphStore, client llm.Client) *Retriever {
	return &Retriever{graph: graph, client: client, Models: DefaultModelTable()}
}

// Retrieve runs the full retrieval flow for one request.
func (r *Retriever) Retrieve(ctx context.Context, req Request) (*Result, error) {
	if req.Mode == "" {
		req.Mode = ModeBalanced
	}
	if req.Priority == "" {
		req.Priority = PriorityQuality
	}

	intent, err := r.client.Intent(ctx, req.Query, req.CurrentFile)
	if err != nil {
		return nil, fmt.Errorf("failed to classify intent: %w", err)
	}

	trace, selection, err := r.traverse(ctx, req.CurrentFile, intent.Hops)
	if err != nil {
		return nil, err
	}

	snapshot, err := r.graph.FetchContext(ctx, snapshotLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch memory snapshot: %w", err)
	}

	negatives := r.negativeSignals(ctx)

	pack := assemblePack(snapshot, negatives, selection)
	pack = ClampToTokenBudget(pack, intent.TokenBudget)

	return &Result{
		Mode:        req.Mode,
		Priority:    req.Priority,
		Model:       r.routeModel(req.Mode, req.Priority),
		TokenBudget: intent.TokenBudget,
		Trace: Trace{
			Intent:    intent,
			Traversal: trace,
			Selection: selection,
		},
		ContextPack: pack,
	}, nil
}

// traverse walks the import graph around the anchor file, if there is one
// and the backend supports it, and scores the discovered files by
// first-seen rank: the i-th unique file scores 1/(i+1).
func (r *Retriever) traverse(ctx context.Context, currentFile string, hops int) (*store.ImportTrace, []FileScore, error) {
	selection := []FileScore{}
	if currentFile == "" {
		return nil, selection, nil
	}
	traverser, ok := r.graph.(store.ImportTraverser)
	if !ok {
		return nil, selection, nil
	}

	trace, err := traverser.TraverseImports(ctx, currentFile, hops, maxPathResults)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to traverse imports: %w", err)
	}

	seen := make(map[string]bool)
	for _, path := range trace.Paths {
		for _, file := range path {
			if file == trace.Start || seen[file] {
				continue
			}
			seen[file] = true
			if len(selection) < maxSelection {
				selection = append(selection, FileScore{
					Path:   file,
					Score:  1.0 / float64(len(selection)+1),
					Reason: "import-graph",
				})
			}
		}
	}
	return trace, selection, nil
}

// negativeSignals fetches recent non-archived NegativeSignal nodes. A
// backend without label scans degrades to none.
func (r *Retriever) negativeSignals(ctx context.Context) []store.Node {
	scanner, ok := r.graph.(store.LabelScanner)
	if !ok {
		return nil
	}
	nodes, err := scanner.NodesByLabel(ctx, "NegativeSignal", negativesLimit, false)
	if err != nil {
		return nil
	}
	return nodes
}

// assemblePack builds the context pack in its fixed section order: brain
// snapshot, negative learnings, related files.
func assemblePack(snapshot string, negatives []store.Node, selection []FileScore) string {
	var b strings.Builder

	if snapshot == "" {
		b.WriteString("(empty)")
	} else {
		b.WriteString(snapshot)
	}

	if len(negatives) > 0 {
		b.WriteString("\n\nNegative learnings (do not repeat):")
		for _, n := range negatives {
			reason := propValue(n, "reason")
			hash := propValue(n, "hash")
			line := "\n- " + reason
			if reason == "" {
				line = "\n- (no reason recorded)"
			}
			if hash != "" {
				line += " (commit " + hash + ")"
			}
			b.WriteString(line)
		}
	}

	if len(selection) > 0 {
		b.WriteString("\n\nRelated files (import graph):")
		for _, f := range selection {
			b.WriteString(fmt.Sprintf("\n- %s (score %.2f)", f.Path, f.Score))
		}
	}
	return b.String()
}

// routeModel picks the model tier from the explicit (mode, priority)
// table. Anything not listed routes to the default tier.
func (r *Retriever) routeModel(mode Mode, priority Priority) string {
	models := r.Models
	if models == (ModelTable{}) {
		models = DefaultModelTable()
	}
	switch {
	case mode == ModeFast && priority == PriorityCheap:
		return models.Cheap
	case mode == ModeFast && priority == PriorityQuality:
		return models.Default
	case mode == ModeThorough && priority == PriorityQuality:
		return models.Premium
	default:
		return models.Default
	}
}

func propValue(n store.Node, key string) string {
	if n.Props == nil {
		return ""
	}
	if s, ok := n.Props[key].(string); ok {
		return strings.TrimSpace(s)
	}
	return ""
}
