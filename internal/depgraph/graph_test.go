package depgraph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func topoPosition(order []Node, n Node) int {
	for i, o := range order {
		if o == n {
			return i
		}
	}
	return -1
}

func TestTarjanLinearChainTopoOrder(t *testing.T) {
	g := New()
	a, b, c := NewNode("Sheet1", "A1"), NewNode("Sheet1", "B1"), NewNode("Sheet1", "C1")
	g.SetCell(a)
	g.SetCell(b)
	g.SetCell(c)
	g.AddDependency(a, b) // A1 depends on B1
	g.AddDependency(b, c) // B1 depends on C1

	order, cycle, scc := g.Tarjan()
	require.Empty(t, cycle)
	require.Empty(t, scc)

	// post-order: dependencies finish (and get appended) before dependents.
	assert.Less(t, topoPosition(order, c), topoPosition(order, b))
	assert.Less(t, topoPosition(order, b), topoPosition(order, a))
}

func TestTarjanSelfLoop(t *testing.T) {
	g := New()
	a := NewNode("Sheet1", "A1")
	g.SetCell(a)
	g.AddDependency(a, a)

	_, _, scc := g.Tarjan()
	assert.True(t, scc[a])
}

func TestTarjanTwoNodeCycle(t *testing.T) {
	g := New()
	a, b := NewNode("Sheet1", "A1"), NewNode("Sheet1", "B1")
	g.SetCell(a)
	g.SetCell(b)
	g.AddDependency(a, b)
	g.AddDependency(b, a)

	_, _, scc := g.Tarjan()
	assert.True(t, scc[a])
	assert.True(t, scc[b])
}

func TestTarjanBackEdgeIntoCycleMarked(t *testing.T) {
	g := New()
	a, b, c := NewNode("Sheet1", "A1"), NewNode("Sheet1", "B1"), NewNode("Sheet1", "C1")
	g.SetCell(a)
	g.SetCell(b)
	g.SetCell(c)
	g.AddDependency(a, b)
	g.AddDependency(b, c)
	g.AddDependency(c, b) // B1<->C1 cycle; A1 points into it but isn't a member

	_, nodesInCycle, scc := g.Tarjan()
	assert.True(t, scc[b])
	assert.True(t, scc[c])
	assert.False(t, scc[a])
	assert.True(t, nodesInCycle[c], "C1's edge to B1 is the back edge into the B1/C1 SCC")
	assert.False(t, nodesInCycle[a], "A1's edge into the B1/C1 SCC is a tree edge, not a back edge")
}

func TestRemoveDependencyAndCell(t *testing.T) {
	g := New()
	a, b := NewNode("Sheet1", "A1"), NewNode("Sheet1", "B1")
	g.SetCell(a)
	g.AddDependency(a, b)
	assert.Equal(t, []Node{b}, g.Dependencies(a))

	g.RemoveDependency(a, b)
	assert.Empty(t, g.Dependencies(a))

	g.RemoveCell(a)
	assert.False(t, g.HasCell(a))
	assert.Empty(t, g.Cells())
}

func TestRenameSheetRewritesKeysAndEdges(t *testing.T) {
	g := New()
	s1a1 := NewNode("Sheet1", "A1")
	s2a1 := NewNode("Sheet2", "A1")
	g.SetCell(s1a1)
	g.SetCell(s2a1)
	g.AddDependency(s2a1, s1a1) // Sheet2!A1 depends on Sheet1!A1

	moved, touched := g.RenameSheet("Sheet1", "Renamed")

	renamedKey := NewNode("Renamed", "A1")
	assert.Contains(t, moved, renamedKey)
	assert.Contains(t, touched, s2a1)
	assert.Equal(t, []Node{renamedKey}, g.Dependencies(s2a1))
	assert.True(t, g.HasCell(renamedKey))
	assert.False(t, g.HasCell(s1a1))
}

func TestRenameSheetCaseInsensitive(t *testing.T) {
	g := New()
	n := NewNode("SHEET1", "A1")
	g.SetCell(n)
	moved, _ := g.RenameSheet("sheet1", "New")
	assert.Contains(t, moved, NewNode("New", "A1"))
}
