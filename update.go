package workbook

import (
	"github.com/kalexmills/workbook/internal/cellval"
	"github.com/kalexmills/workbook/internal/depgraph"
	"github.com/kalexmills/workbook/internal/eval"
	"github.com/kalexmills/workbook/internal/refs"
)

func circrefValue() cellval.Value {
	return cellval.NewError(cellval.CircularReference, "circular reference")
}

// edgeKey is one provisional (dependent, dependency) edge instance added
// during a runUpdate call, kept so it can be retracted once the call's
// fixed-point loop converges.
type edgeKey struct {
	cell depgraph.Node
	dep  depgraph.Node
}

// provisionalRecorder accumulates the edges one formula cell's evaluation
// discovers via a lazy function (IF/IFERROR/CHOOSE/INDIRECT).
type provisionalRecorder struct {
	cell  depgraph.Node
	edges []depgraph.Node
}

func (r *provisionalRecorder) RecordProvisional(sheet, locText string) {
	r.edges = append(r.edges, depgraph.NewNode(sheet, locText))
}

// runUpdate is the fixed-point re-evaluation driver (§4.8): it runs Tarjan,
// assigns CIRCREF to every cycle member before evaluating anything, walks
// the topological order re-evaluating dirty cells and cells containing
// lazy-function names, and restarts whenever a lazy function discovers a
// new dependency edge — until no pass adds an edge. Provisional edges are
// retracted once the loop converges, and subscribers are notified with the
// full set of cells whose value changed across the whole call.
//
// An empty seed forces every formula cell to be re-evaluated regardless of
// dirty state, the way new_sheet/del_sheet's "run driver with empty input
// sets" call resolves dangling #REF!s left by a sheet that just appeared or
// disappeared.
func (wb *Workbook) runUpdate(seed map[depgraph.Node]bool) {
	forceAll := len(seed) == 0

	dirty := map[depgraph.Node]bool{}
	for n := range seed {
		dirty[n] = true
	}

	var provisional []edgeKey
	changedValues := map[depgraph.Node]bool{}

	for {
		order, nodesInCycle, sccNodes := wb.graph.Tarjan()

		cycleMembers := map[depgraph.Node]bool{}
		for n := range nodesInCycle {
			cycleMembers[n] = true
		}
		for n := range sccNodes {
			cycleMembers[n] = true
		}

		for n := range cycleMembers {
			cell := wb.formulaCellAt(n)
			if cell == nil {
				continue
			}
			circref := circrefValue()
			if !cell.Value.Equal(circref) {
				changedValues[n] = true
			}
			cell.Value = circref
		}

		reverse := buildReverseAdj(wb.graph, order)

		// Seed nodes outside the formula graph (a literal cell whose content
		// just changed) are never evaluated below, so they can never trip the
		// newVal-differs-from-old check that marks a dependent dirty. Mark
		// their direct dependents dirty here instead; from there, the normal
		// evaluate-and-compare loop cascades the change onward.
		for n := range seed {
			for _, dependent := range reverse[n] {
				dirty[dependent] = true
			}
		}

		addedEdge := false

		for _, n := range order {
			if cycleMembers[n] {
				continue
			}
			cell := wb.formulaCellAt(n)
			if cell == nil {
				continue
			}
			if !forceAll && !dirty[n] && !refs.HasEvalDep(cell.Content) {
				continue
			}

			rec := &provisionalRecorder{cell: n}
			ctx := &eval.Context{
				Resolver:   wb,
				Recorder:   rec,
				FromSheet:  cell.Sheet,
				StaticDeps: cell.staticDeps,
				Version:    Version,
			}
			newVal := eval.Eval(cell.Expr, ctx)
			if !newVal.Equal(cell.Value) {
				changedValues[n] = true
				for _, dependent := range reverse[n] {
					dirty[dependent] = true
				}
			}
			cell.Value = newVal

			for _, target := range rec.edges {
				if containsNode(wb.graph.Dependencies(n), target) {
					continue
				}
				wb.graph.AddDependency(n, target)
				provisional = append(provisional, edgeKey{cell: n, dep: target})
				addedEdge = true
				dirty[n] = true
			}
		}

		if !addedEdge {
			break
		}
	}

	for _, e := range provisional {
		wb.graph.RemoveDependency(e.cell, e.dep)
	}

	// Seed cells that are not formula cells (literal cells just written or
	// cleared) are never evaluated above, so they are reported as changed
	// here, whether or not the written value differs from the old one.
	for n := range seed {
		if wb.formulaCellAt(n) == nil {
			changedValues[n] = true
		}
	}

	changes := make([]CellChange, 0, len(changedValues))
	for n := range changedValues {
		if s, ok := wb.byLowerName[n.Sheet]; ok {
			changes = append(changes, CellChange{Sheet: s.Name, Loc: n.Loc})
		}
	}
	wb.notify(changes)
}

func containsNode(haystack []depgraph.Node, needle depgraph.Node) bool {
	for _, n := range haystack {
		if n == needle {
			return true
		}
	}
	return false
}

func buildReverseAdj(g *depgraph.Graph, order []depgraph.Node) map[depgraph.Node][]depgraph.Node {
	reverse := map[depgraph.Node][]depgraph.Node{}
	for _, n := range order {
		for _, dep := range g.Dependencies(n) {
			reverse[dep] = append(reverse[dep], n)
		}
	}
	return reverse
}
