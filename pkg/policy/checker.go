// Package policy screens proposed plans against recorded negative signals.
// A match is advisory: the checker warns, it never blocks.
package policy

import (
	"context"
	"strings"

	"github.com/braingraph/braingraph/pkg/store"
)

// maxSignals bounds how many recent signals one check consults.
const maxSignals = 50

// Warning flags one negative signal whose reason appears in the plan.
type Warning struct {
	Kind     string   `json:"kind"`
	Message  string   `json:"message"`
	Evidence []string `json:"evidence"`
}

// Checker matches plan text against stored NegativeSignal reasons.
type Checker struct {
	graph store.GraphStore
}

// NewChecker creates a checker over the given store.
func NewChecker(graph store.GraphStore) *Checker {
	return &Checker{graph: graph}
}

// CheckPlan returns a warning for every recent non-archived negative signal
// whose reason occurs, case-insensitively, inside the plan. A backend
// without label scans returns no warnings.
func (c *Checker) CheckPlan(ctx context.Context, plan string) ([]Warning, error) {
	warnings := []Warning{}
	plan = strings.ToLower(plan)
	if strings.TrimSpace(plan) == "" {
		return warnings, nil
	}

	scanner, ok := c.graph.(store.LabelScanner)
	if !ok {
		return warnings, nil
	}
	signals, err := scanner.NodesByLabel(ctx, "NegativeSignal", maxSignals, false)
	if err != nil {
		return nil, err
	}

	for _, sig := range signals {
		reason := propString(sig, "reason")
		if reason == "" {
			continue
		}
		if !strings.Contains(plan, strings.ToLower(reason)) {
			continue
		}
		kind := propString(sig, "kind")
		if kind == "" {
			kind = "signal"
		}
		warnings = append(warnings, Warning{
			Kind:     "negative_learning:" + kind,
			Message:  "This plan matches a past negative-learning signal: " + reason,
			Evidence: []string{sig.ID},
		})
	}
	return warnings, nil
}

func propString(n store.Node, key string) string {
	if n.Props == nil {
		return ""
	}
	if s, ok := n.Props[key].(string); ok {
		return strings.TrimSpace(s)
	}
	return ""
}
