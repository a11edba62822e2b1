package store

import (
	"testing"
)

func TestCanon(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Redis", "Redis"},
		{"  Redis  ", "Redis"},
		{"use\ttabs   and  spaces", "use tabs and spaces"},
		{"line\nbreaks", "line breaks"},
		{"", ""},
		{"   ", ""},
	}
	for _, tt := range tests {
		if got := Canon(tt.in); got != tt.want {
			t.Errorf("Canon(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestCanonID_Deterministic(t *testing.T) {
	a := CanonID("entity", "Redis Cluster")
	b := CanonID("entity", "  redis   cluster ")
	if a != b {
		t.Errorf("equivalent names produced different ids: %q vs %q", a, b)
	}
	if a != "entity:redis cluster" {
		t.Errorf("unexpected id %q", a)
	}
}

func TestEdgeID(t *testing.T) {
	got := EdgeID("a", "IMPORTS", "b")
	if got != "a::IMPORTS::b" {
		t.Errorf("EdgeID = %q", got)
	}
}

func TestDisplayTitle_Fallbacks(t *testing.T) {
	tests := []struct {
		name string
		node Node
		want string
	}{
		{"name wins", Node{ID: "x", Props: map[string]any{"name": "Redis", "path": "a.py"}}, "Redis"},
		{"path next", Node{ID: "x", Props: map[string]any{"path": "a.py"}}, "a.py"},
		{"what next", Node{ID: "x", Props: map[string]any{"what": "ship it"}}, "ship it"},
		{"hash next", Node{ID: "x", Props: map[string]any{"hash": "abc123"}}, "abc123"},
		{"id last", Node{ID: "x", Props: map[string]any{}}, "x"},
		{"nil props", Node{ID: "x"}, "x"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DisplayTitle(tt.node); got != tt.want {
				t.Errorf("DisplayTitle = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestContextLine(t *testing.T) {
	n := Node{
		Label: "Decision",
		ID:    "decision:ship it",
		Props: map[string]any{"what": "ship it", "why": "deadline"},
	}
	got := ContextLine(n, []string{"cli", "chat"})
	want := "- [Decision] ship it — deadline [src: cli, chat]"
	if got != want {
		t.Errorf("ContextLine = %q, want %q", got, want)
	}

	bare := ContextLine(Node{Label: "Entity", ID: "entity:redis", Props: map[string]any{"name": "redis"}}, nil)
	if bare != "- [Entity] redis" {
		t.Errorf("ContextLine without detail = %q", bare)
	}
}
