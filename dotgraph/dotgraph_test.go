package dotgraph

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/DevBiker/WorkflowsCore-sub000/statemachine"
)

func TestRenderIncludesNodesAndSubstateEdge(t *testing.T) {
	b := statemachine.NewBuilder()
	b.ConfigureInternalState("Parent")
	b.ConfigureState("Child").SubstateOf("Parent")
	def := b.Build()

	out := Render(def, nil)
	assert.Contains(t, out, "digraph Workflow {")
	assert.Contains(t, out, `"Parent" [label="Parent", style=dashed];`)
	assert.Contains(t, out, `"Child" [label="Child", style=solid];`)
	assert.Contains(t, out, `"Parent" -> "Child" [style=dotted, arrowhead=none];`)
}

func TestRenderUsesStateDescriptionAsNodeLabel(t *testing.T) {
	b := statemachine.NewBuilder()
	b.ConfigureState("A").HasDescription("Pending Approval")
	def := b.Build()

	out := Render(def, nil)
	assert.Contains(t, out, `"A" [label="Pending Approval", style=solid];`)
}

func TestRenderOmitsHiddenStates(t *testing.T) {
	b := statemachine.NewBuilder()
	b.ConfigureState("A")
	b.ConfigureState("Secret").Hide()
	def := b.Build()

	out := Render(def, nil)
	assert.NotContains(t, out, "Secret")
}

func TestRenderSingleBranchTriggerRendersConjunctionOfGuards(t *testing.T) {
	b := statemachine.NewBuilder()
	b.ConfigureState("A").
		OnAsync(func(ctx *statemachine.RunContext) (interface{}, error) { return nil, nil }, "E1").
		If(func(result interface{}) bool { return true }, "C1").
		If(func(result interface{}) bool { return true }, "C2").
		GoTo("B")
	b.ConfigureState("B")
	def := b.Build()

	out := Render(def, nil)
	assert.Contains(t, out, `"A" -> "B" [label="E1 [C1 AND C2]"];`)
}

func TestRenderMultiBranchTriggerNumbersEachBranch(t *testing.T) {
	b := statemachine.NewBuilder()
	b.ConfigureState("A").
		OnAsync(func(ctx *statemachine.RunContext) (interface{}, error) { return nil, nil }, "E1").
		IfThenGoTo(func(result interface{}) bool { return true }, "B", "C1").
		GoTo("C")
	b.ConfigureState("B")
	b.ConfigureState("C")
	def := b.Build()

	out := Render(def, nil)
	assert.Contains(t, out, `"A" -> "B" [label="1: E1 [C1]"];`)
	assert.Contains(t, out, `"A" -> "C" [label="2: E1"];`)
}

func TestRenderOmitsHiddenTrigger(t *testing.T) {
	b := statemachine.NewBuilder()
	b.ConfigureState("A").
		OnAsync(func(ctx *statemachine.RunContext) (interface{}, error) { return nil, nil }, "E1").
		GoTo("B").
		Hide()
	b.ConfigureState("B")
	def := b.Build()

	out := Render(def, nil)
	assert.NotContains(t, out, "E1")
}

func TestRenderIncludesExtraEdges(t *testing.T) {
	b := statemachine.NewBuilder()
	b.ConfigureState("A")
	b.ConfigureState("B")
	def := b.Build()

	out := Render(def, []Edge{{From: "A", To: "B", Label: "cancel"}})
	assert.Contains(t, out, `"A" -> "B" [label="cancel"];`)
}
