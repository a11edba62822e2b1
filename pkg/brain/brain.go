// Package brain is the facade of the memory engine. It wires the graph
// store, the language-model collaborator, enrichment, conflict versioning,
// retrieval, housekeeping, and policy checks into one entry point.
package brain

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/log"

	"github.com/braingraph/braingraph/pkg/conflict"
	"github.com/braingraph/braingraph/pkg/enrich"
	"github.com/braingraph/braingraph/pkg/housekeep"
	"github.com/braingraph/braingraph/pkg/llm"
	"github.com/braingraph/braingraph/pkg/metrics"
	"github.com/braingraph/braingraph/pkg/policy"
	"github.com/braingraph/braingraph/pkg/retrieve"
	"github.com/braingraph/braingraph/pkg/store"
)

const askContextLimit = 30

const askSystemPrompt = "You are a coding assistant with a long-term memory. " +
	"Use the memory context below when it is relevant, and say so when it is not.\n\nMemory context:\n"

// Config holds the collaborators of a Brain. Store and LLM are required;
// everything else has a working default.
type Config struct {
	Store   store.GraphStore
	LLM     llm.Client
	Logger  *log.Logger
	Metrics metrics.Collector

	// Models overrides the retrieval routing table.
	Models retrieve.ModelTable

	// Now anchors revision ids and housekeeping ages. Defaults to
	// time.Now; injected for deterministic tests.
	Now func() time.Time
}

// Brain is the memory engine.
type Brain struct {
	graph     store.GraphStore
	client    llm.Client
	logger    *log.Logger
	metrics   metrics.Collector
	retriever *retrieve.Retriever
	checker   *policy.Checker
	now       func() time.Time
}

// IngestReport summarizes one ingestion batch.
type IngestReport struct {
	Events int `json:"events"`
	Facts  int `json:"facts"`
	Nodes  int `json:"nodes"`
	Edges  int `json:"edges"`
}

// AskResult is the answer to one question, with the memory snapshot it was
// grounded on and the judge's verdict.
type AskResult struct {
	Answer    string `json:"answer"`
	Judgement string `json:"judgement"`
	Context   string `json:"context"`
}

// New creates a Brain from the given configuration.
func New(cfg Config) (*Brain, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if cfg.LLM == nil {
		return nil, fmt.Errorf("llm client is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = log.New(io.Discard)
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.NewNoopCollector()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	retriever := retrieve.NewRetriever(cfg.Store, cfg.LLM)
	if cfg.Models != (retrieve.ModelTable{}) {
		retriever.Models = cfg.Models
	}

	return &Brain{
		graph:     cfg.Store,
		client:    cfg.LLM,
		logger:    cfg.Logger,
		metrics:   cfg.Metrics,
		retriever: retriever,
		checker:   policy.NewChecker(cfg.Store),
		now:       cfg.Now,
	}, nil
}

// EnsureSchema performs idempotent store setup.
func (b *Brain) EnsureSchema(ctx context.Context) error {
	return b.graph.EnsureSchema(ctx)
}

// Ingest runs the full pipeline for a batch of events: extraction,
// normalization, co-occurrence connection, conflict versioning, and one
// upsert per event. Events are independent; a failing event fails the
// batch at that point.
func (b *Brain) Ingest(ctx context.Context, events []enrich.Event) (*IngestReport, error) {
	start := b.now()
	report := &IngestReport{Events: len(events)}

	for _, ev := range events {
		stageStart := b.now()
		facts, err := enrich.ExtractFacts(ctx, b.client, ev)
		if err != nil {
			b.metrics.RecordError(ctx, "ingest", ClassifyError(err))
			return nil, fmt.Errorf("failed to ingest %s event: %w", ev.Type, err)
		}
		b.metrics.RecordStage(ctx, "ingest", "extract", b.now().Sub(stageStart).Milliseconds())
		report.Facts += len(facts)
		if len(facts) == 0 {
			continue
		}

		nodes, edges := enrich.NormalizeFacts(facts, ev.Source)
		edges = enrich.Connect(nodes, edges, ev.Source)

		if reader, ok := b.graph.(store.NodeReader); ok {
			resolver := conflict.NewResolver(reader)
			resolver.Now = b.now
			nodes, edges, err = resolver.Resolve(ctx, nodes, edges)
			if err != nil {
				b.metrics.RecordError(ctx, "ingest", ClassifyError(err))
				return nil, err
			}
		}

		stageStart = b.now()
		if err := b.graph.UpsertNodesEdges(ctx, nodes, edges); err != nil {
			b.metrics.RecordError(ctx, "ingest", ClassifyError(err))
			return nil, fmt.Errorf("failed to store %s event: %w", ev.Type, err)
		}
		b.metrics.RecordStage(ctx, "ingest", "store", b.now().Sub(stageStart).Milliseconds())
		report.Nodes += len(nodes)
		report.Edges += len(edges)
	}

	b.metrics.RecordOperation(ctx, "ingest", "success", b.now().Sub(start).Milliseconds())
	b.logger.Info("ingested batch",
		"events", report.Events, "facts", report.Facts,
		"nodes", report.Nodes, "edges", report.Edges)
	return report, nil
}

// Ask answers a question grounded on the memory snapshot. The question's
// entities are remembered as a side effect, then the answer is generated
// and judged against the snapshot.
func (b *Brain) Ask(ctx context.Context, question string) (*AskResult, error) {
	start := b.now()

	entities, err := b.client.ExtractEntities(ctx, question)
	if err != nil {
		b.metrics.RecordError(ctx, "ask", ClassifyError(err))
		return nil, fmt.Errorf("failed to extract entities: %w", err)
	}
	if len(entities) > 0 {
		stored := make([]store.Entity, 0, len(entities))
		for _, e := range entities {
			stored = append(stored, store.Entity{Name: e.Name, Type: e.Type})
		}
		if err := b.graph.UpsertEntities(ctx, stored, "ask"); err != nil {
			b.metrics.RecordError(ctx, "ask", ClassifyError(err))
			return nil, fmt.Errorf("failed to remember question entities: %w", err)
		}
	}

	snapshot, err := b.graph.FetchContext(ctx, askContextLimit)
	if err != nil {
		b.metrics.RecordError(ctx, "ask", ClassifyError(err))
		return nil, fmt.Errorf("failed to fetch memory snapshot: %w", err)
	}
	if snapshot == "" {
		snapshot = "(empty)"
	}

	answer, err := b.client.Chat(ctx, askSystemPrompt+snapshot, question)
	if err != nil {
		b.metrics.RecordError(ctx, "ask", ClassifyError(err))
		return nil, fmt.Errorf("failed to generate answer: %w", err)
	}

	judgement, err := b.client.Judge(ctx, question, answer, snapshot)
	if err != nil {
		b.metrics.RecordError(ctx, "ask", ClassifyError(err))
		return nil, fmt.Errorf("failed to judge answer: %w", err)
	}

	b.metrics.RecordOperation(ctx, "ask", "success", b.now().Sub(start).Milliseconds())
	b.logger.Info("answered question", "entities", len(entities))
	return &AskResult{Answer: answer, Judgement: judgement, Context: snapshot}, nil
}

// Retrieve assembles a context pack for a query.
func (b *Brain) Retrieve(ctx context.Context, req retrieve.Request) (*retrieve.Result, error) {
	start := b.now()
	result, err := b.retriever.Retrieve(ctx, req)
	if err != nil {
		b.metrics.RecordError(ctx, "retrieve", ClassifyError(err))
		return nil, err
	}
	b.metrics.RecordOperation(ctx, "retrieve", "success", b.now().Sub(start).Milliseconds())
	return result, nil
}

// Housekeep recomputes lifecycle scores and optionally consolidates. A
// backend without bulk maintenance yields an empty report.
func (b *Brain) Housekeep(ctx context.Context, consolidate bool) (*housekeep.Report, error) {
	maintainer, ok := b.graph.(store.Maintainer)
	if !ok {
		b.logger.Warn("store has no maintenance capability, skipping housekeeping")
		return &housekeep.Report{}, nil
	}

	start := b.now()
	keeper := housekeep.NewHousekeeper(b.graph, maintainer)
	keeper.Now = b.now
	report, err := keeper.Run(ctx, housekeep.Options{Consolidate: consolidate})
	if err != nil {
		b.metrics.RecordError(ctx, "housekeep", ClassifyError(err))
		return nil, err
	}

	b.metrics.RecordOperation(ctx, "housekeep", "success", b.now().Sub(start).Milliseconds())
	b.metrics.SetStorageCount(ctx, "nodes", int64(report.Scored))
	b.logger.Info("housekeeping complete",
		"scored", report.Scored, "archived", report.Archived, "summaries", report.Summaries)
	return report, nil
}

// CheckPlan screens a plan against recorded negative signals.
func (b *Brain) CheckPlan(ctx context.Context, plan string) ([]policy.Warning, error) {
	warnings, err := b.checker.CheckPlan(ctx, plan)
	if err != nil {
		b.metrics.RecordError(ctx, "plan_check", ClassifyError(err))
		return nil, fmt.Errorf("failed to check plan: %w", err)
	}
	if len(warnings) > 0 {
		b.logger.Warn("plan matched negative signals", "warnings", len(warnings))
	}
	return warnings, nil
}

// Export returns a bounded graph snapshot.
func (b *Brain) Export(ctx context.Context, limitNodes int) (*store.GraphExport, error) {
	return b.graph.ExportGraph(ctx, limitNodes)
}

// Context returns the recency-ordered memory snapshot.
func (b *Brain) Context(ctx context.Context, limit int) (string, error) {
	if limit <= 0 {
		limit = askContextLimit
	}
	return b.graph.FetchContext(ctx, limit)
}

// Close releases the underlying store.
func (b *Brain) Close() error {
	return b.graph.Close()
}
