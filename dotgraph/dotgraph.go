// Package dotgraph renders a configured state machine as a Graphviz DOT
// graph. It is intentionally thin: text-only output with no layout engine
// of its own, leaving actual rendering to whatever consumes the DOT text
// (§1's non-goal explicitly excludes shipping a layout/rendering engine).
package dotgraph

import (
	"fmt"
	"strings"

	"github.com/DevBiker/WorkflowsCore-sub000/statemachine"
)

// Edge is an extra labeled transition to include in the rendered graph, on
// top of whatever def.AsyncTrigger derives on its own — e.g. an action- or
// date-driven transition the Definition doesn't expose as a trigger.
type Edge struct {
	From  statemachine.Key
	To    statemachine.Key
	Label string
}

// Render produces a DOT digraph for def: every declared, non-hidden state
// as a node (internal states rendered with a dashed outline), one edge per
// branch of every state's OnAsync trigger (labeled per
// TriggerDescriptor.Label, the "E1 [C1 AND C2]" / "1: E1 [C1]" format of
// §8's scenarios 5 and 6), plus any extra edges passed in. Hidden states
// and hidden triggers are left out of the rendering entirely. Nodes and a
// state's own trigger edges are emitted in declaration order, so output is
// stable across calls for the same input.
func Render(def *statemachine.Definition, edges []Edge) string {
	var b strings.Builder
	b.WriteString("digraph Workflow {\n")

	for _, key := range def.States() {
		if def.IsHidden(key) {
			continue
		}
		style := "solid"
		if def.IsInternal(key) {
			style = "dashed"
		}
		label := key
		if desc, ok := def.Description(key); ok {
			label = desc
		}
		fmt.Fprintf(&b, "  %s [label=%s, style=%s];\n", quote(key), quote(label), style)
		if parent, ok := def.Parent(key); ok && !def.IsHidden(parent) {
			fmt.Fprintf(&b, "  %s -> %s [style=dotted, arrowhead=none];\n", quote(parent), quote(key))
		}
	}

	for _, key := range def.States() {
		if def.IsHidden(key) {
			continue
		}
		trigger, ok := def.AsyncTrigger(key)
		if !ok || trigger.Hidden {
			continue
		}
		for i, branch := range trigger.Branches {
			fmt.Fprintf(&b, "  %s -> %s [label=%s];\n", quote(key), quote(branch.Target), quote(trigger.Label(i)))
		}
	}

	for _, e := range edges {
		fmt.Fprintf(&b, "  %s -> %s [label=%s];\n", quote(e.From), quote(e.To), quote(e.Label))
	}

	b.WriteString("}\n")
	return b.String()
}

func quote(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `\"`) + `"`
}
