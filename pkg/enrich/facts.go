// Package enrich turns raw ingestion events into canonical graph batches:
// extraction to typed facts, normalization to nodes and edges with
// deterministic ids and provenance, and co-occurrence connection.
package enrich

import (
	"context"
	"fmt"
	"strconv"

	"github.com/braingraph/braingraph/pkg/llm"
)

// Event is one raw ingestion event. Payload shape is type-specific;
// malformed or missing fields degrade to fewer facts, never to errors.
type Event struct {
	Type    string         `json:"type"`
	Source  string         `json:"source"`
	Payload map[string]any `json:"payload"`
}

// Fact is a typed extraction result. Facts are transient: produced and
// consumed within one ingestion call, never persisted directly.
type Fact struct {
	Kind       string
	Value      map[string]any
	Confidence float64
}

// ExtractFacts converts one event into zero or more facts. Structured
// event types map deterministically; free text delegates entity extraction
// to the language-model collaborator.
func ExtractFacts(ctx context.Context, client llm.Client, ev Event) ([]Fact, error) {
	var facts []Fact

	switch ev.Type {
	case "text":
		text := payloadString(ev.Payload, "text")
		entities, err := client.ExtractEntities(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("failed to extract entities: %w", err)
		}
		for _, e := range entities {
			facts = append(facts, Fact{
				Kind:       "text_entity",
				Value:      map[string]any{"name": e.Name, "type": e.Type},
				Confidence: 0.7,
			})
		}

	case "decision":
		facts = append(facts, Fact{
			Kind: "decision",
			Value: map[string]any{
				"what": payloadString(ev.Payload, "what"),
				"why":  payloadString(ev.Payload, "why"),
				"when": payloadString(ev.Payload, "when"),
			},
			Confidence: payloadFloat(ev.Payload, "confidence", 0.9),
		})

	case "preference":
		category := payloadString(ev.Payload, "category")
		if category == "" {
			category = "code_style"
		}
		facts = append(facts, Fact{
			Kind: "preference",
			Value: map[string]any{
				"name":     payloadString(ev.Payload, "name"),
				"category": category,
			},
			Confidence: payloadFloat(ev.Payload, "confidence", 0.8),
		})

	case "pattern":
		ptype := payloadString(ev.Payload, "type")
		if ptype == "" {
			ptype = "pattern"
		}
		facts = append(facts, Fact{
			Kind: "pattern",
			Value: map[string]any{
				"name": payloadString(ev.Payload, "name"),
				"type": ptype,
			},
			Confidence: payloadFloat(ev.Payload, "confidence", 0.8),
		})

	case "git_commit":
		facts = append(facts, Fact{
			Kind: "git_commit",
			Value: map[string]any{
				"hash":    payloadString(ev.Payload, "hash"),
				"message": payloadString(ev.Payload, "message"),
			},
			Confidence: 1.0,
		})

	case "revert":
		facts = append(facts, Fact{
			Kind: "revert",
			Value: map[string]any{
				"hash":   payloadString(ev.Payload, "hash"),
				"reason": payloadString(ev.Payload, "reason"),
			},
			Confidence: 1.0,
		})

	case "code_index":
		imports, _ := ev.Payload["imports"].([]any)
		for _, it := range imports {
			entry, ok := it.(map[string]any)
			if !ok {
				continue
			}
			facts = append(facts, Fact{
				Kind: "file_import",
				Value: map[string]any{
					"from": payloadString(entry, "from"),
					"to":   payloadString(entry, "to"),
				},
				Confidence: 1.0,
			})
		}
	}

	return facts, nil
}

func payloadString(payload map[string]any, key string) string {
	if payload == nil {
		return ""
	}
	switch v := payload[key].(type) {
	case string:
		return v
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

func payloadFloat(payload map[string]any, key string, def float64) float64 {
	if payload == nil {
		return def
	}
	switch v := payload[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case string:
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}
