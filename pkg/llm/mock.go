package llm

import (
	"context"
	"sort"
	"strings"
)

// MockClient is a deterministic collaborator so the engine runs and tests
// pass without network access or API keys. Extraction treats title-cased
// words as entities, the judge always passes, and intent returns defaults.
type MockClient struct{}

// NewMockClient creates the deterministic stub collaborator.
func NewMockClient() *MockClient { return &MockClient{} }

// ExtractEntities returns the title-cased words of the text as entities,
// sorted and deduplicated. Text with no title-cased words yields a single
// Unknown entity.
func (m *MockClient) ExtractEntities(ctx context.Context, text string) ([]Entity, error) {
	seen := make(map[string]bool)
	var names []string
	for _, w := range strings.Fields(text) {
		w = strings.Trim(w, ".,!?()[]{}\"'")
		if len(w) <= 2 || !isUpper(rune(w[0])) {
			continue
		}
		if !seen[w] {
			seen[w] = true
			names = append(names, w)
		}
	}
	if len(names) == 0 {
		// Always surface at least one entity so a text event still
		// produces a fact.
		return []Entity{{Name: "Unknown", Type: "Entity"}}, nil
	}
	sort.Strings(names)

	entities := make([]Entity, 0, len(names))
	for _, n := range names {
		entities = append(entities, Entity{Name: n, Type: "Entity"})
	}
	return entities, nil
}

// Chat returns a canned response.
func (m *MockClient) Chat(ctx context.Context, system, user string) (string, error) {
	return "Mock response for: " + user, nil
}

// Judge always passes without factual verification.
func (m *MockClient) Judge(ctx context.Context, goal, answer, contextPack string) (string, error) {
	return "PASS\nNotes: mock judge; no factual verification performed.", nil
}

// Intent returns the default intent.
func (m *MockClient) Intent(ctx context.Context, query, currentFile string) (Intent, error) {
	return DefaultIntent(), nil
}

func isUpper(r rune) bool { return r >= 'A' && r <= 'Z' }
