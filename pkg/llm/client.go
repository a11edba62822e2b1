// Package llm defines the language-model collaborator contract and its
// implementations. The engine only ever talks to a model through this
// narrow interface: entity extraction, chat answers, plan judging, and
// intent classification.
package llm

import (
	"context"
	"strings"
)

// Entity is one extracted entity from free text.
type Entity struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// Intent is the retrieval intent for a query: how far to traverse and how
// many tokens the context pack may spend.
type Intent struct {
	Hops        int `json:"hops"`
	TokenBudget int `json:"token_budget"`
}

// DefaultIntent returns the intent used when classification is unavailable
// or returns nothing usable.
func DefaultIntent() Intent {
	return Intent{Hops: 2, TokenBudget: 1500}
}

// Client is the language-model collaborator contract.
type Client interface {
	// ExtractEntities pulls named entities out of free text.
	ExtractEntities(ctx context.Context, text string) ([]Entity, error)

	// Chat generates an answer from a system prompt and a user message.
	Chat(ctx context.Context, system, user string) (string, error)

	// Judge verifies an answer against a goal using only the given context.
	Judge(ctx context.Context, goal, answer, contextPack string) (string, error)

	// Intent classifies a retrieval query into traversal hops and a token
	// budget. currentFile may be empty.
	Intent(ctx context.Context, query, currentFile string) (Intent, error)
}

// parseEntityList parses the bullet-list extraction format, one entity per
// line: "- <name> (<type>)". Lines without a type fall back to "Entity".
// Duplicate (name, type) pairs are dropped, first occurrence wins.
func parseEntityList(out string) []Entity {
	var entities []Entity
	seen := make(map[string]bool)
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "-") {
			continue
		}
		body := strings.TrimSpace(line[1:])
		name, typ := body, "Entity"
		if idx := strings.LastIndex(body, "("); idx >= 0 && strings.HasSuffix(body, ")") {
			name = strings.TrimSpace(body[:idx])
			typ = strings.TrimSpace(body[idx+1 : len(body)-1])
		}
		if name == "" {
			continue
		}
		key := strings.ToLower(name) + "|" + strings.ToLower(typ)
		if seen[key] {
			continue
		}
		seen[key] = true
		entities = append(entities, Entity{Name: name, Type: typ})
	}
	return entities
}
