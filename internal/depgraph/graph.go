// Package depgraph implements the dependency graph over (sheet, cell) pairs:
// a directed multigraph supporting static and provisional edges, and an
// iterative Tarjan's algorithm producing a topological order plus cycle
// membership, ported from the original cell-interaction-graph
// implementation's stack-based traversal.
package depgraph

import "strings"

// Node is a graph node key: a lowercased sheet name paired with an
// upper-cased location. NewNode is the only constructor so callers cannot
// construct a node with inconsistent casing.
type Node struct {
	Sheet string
	Loc   string
}

// NewNode builds a Node, normalizing casing the way the graph requires it.
func NewNode(sheet, loc string) Node {
	return Node{Sheet: strings.ToLower(sheet), Loc: strings.ToUpper(loc)}
}

// Graph is a directed multigraph: each node's adjacency list may contain the
// same target more than once (e.g. a formula referencing the same cell
// twice). Only formula cells appear as keys; dependency targets may name
// cells that do not otherwise exist in the graph.
type Graph struct {
	adj   map[Node][]Node
	order []Node // insertion order of live node keys, for deterministic traversal
}

// New returns an empty Graph.
func New() *Graph {
	return &Graph{adj: map[Node][]Node{}}
}

// SetCell registers cell as a formula-cell node with no dependencies,
// replacing any prior adjacency list it may have had.
func (g *Graph) SetCell(cell Node) {
	if _, ok := g.adj[cell]; !ok {
		g.order = append(g.order, cell)
	}
	g.adj[cell] = nil
}

// HasCell reports whether cell is currently a node in the graph.
func (g *Graph) HasCell(cell Node) bool {
	_, ok := g.adj[cell]
	return ok
}

// AddDependency records that cell depends on dep. cell must already be a
// node (via SetCell).
func (g *Graph) AddDependency(cell, dep Node) {
	g.adj[cell] = append(g.adj[cell], dep)
}

// RemoveDependency removes the first occurrence of dep from cell's
// dependency list, matching Python list.remove semantics. It is a no-op if
// cell has no such dependency.
func (g *Graph) RemoveDependency(cell, dep Node) {
	deps := g.adj[cell]
	for i, d := range deps {
		if d == dep {
			g.adj[cell] = append(deps[:i], deps[i+1:]...)
			return
		}
	}
}

// RemoveCell deletes cell and its adjacency list from the graph.
func (g *Graph) RemoveCell(cell Node) {
	delete(g.adj, cell)
	for i, n := range g.order {
		if n == cell {
			g.order = append(g.order[:i], g.order[i+1:]...)
			break
		}
	}
}

// Dependencies returns cell's dependency list, or nil if cell is not a node.
func (g *Graph) Dependencies(cell Node) []Node {
	return g.adj[cell]
}

// Cells returns every formula-cell node, in insertion order.
func (g *Graph) Cells() []Node {
	out := make([]Node, len(g.order))
	copy(out, g.order)
	return out
}

// callFrame is one entry of the explicit call stack the iterative Tarjan
// walk uses in place of recursion: the node being visited, and the index of
// the next not-yet-processed child in its dependency list.
type callFrame struct {
	node     Node
	childIdx int
}

// Tarjan runs an iterative, stack-based Tarjan's SCC algorithm over the
// graph and returns:
//   - order: a post-order topological listing of every node; a node's
//     dependencies finish (and so appear earlier in this list) before the
//     node itself does, so callers walk it forward to get a safe
//     evaluation order,
//   - nodesInCycle: nodes that point into a non-trivial SCC via a back edge
//     encountered during the walk (tracked separately from scc membership
//     itself, matching the source algorithm),
//   - sccNodes: nodes that are members of an SCC of size > 1, or of a
//     single-node SCC with a self-loop.
func (g *Graph) Tarjan() (order []Node, nodesInCycle map[Node]bool, sccNodes map[Node]bool) {
	ids := map[Node]int{}
	lowlinks := map[Node]int{}
	onStack := map[Node]bool{}
	var stack []Node
	var callStack []callFrame
	nodeID := 0
	nodesInCycle = map[Node]bool{}
	sccNodes = map[Node]bool{}

	seen := func(n Node) bool {
		id, ok := ids[n]
		return ok && id != -1
	}
	idOf := func(n Node) int {
		if id, ok := ids[n]; ok {
			return id
		}
		return -1
	}

	for _, start := range g.order {
		if seen(start) {
			continue
		}
		callStack = append(callStack, callFrame{node: start, childIdx: 0})
		for len(callStack) > 0 {
			frame := callStack[len(callStack)-1]
			callStack = callStack[:len(callStack)-1]
			node, childIdx := frame.node, frame.childIdx
			neighbors := g.adj[node]
			numNeighbors := len(neighbors)

			if childIdx == 0 {
				stack = append(stack, node)
				onStack[node] = true
				ids[node] = nodeID
				lowlinks[node] = nodeID
				nodeID++
			} else {
				child := neighbors[childIdx-1]
				if lowlinks[child] < lowlinks[node] {
					lowlinks[node] = lowlinks[child]
				}
			}

			for childIdx < numNeighbors && seen(neighbors[childIdx]) {
				candidate := neighbors[childIdx]
				if onStack[candidate] {
					nodesInCycle[node] = true
					if lowlinks[candidate] < lowlinks[node] {
						lowlinks[node] = lowlinks[candidate]
					}
				}
				childIdx++
			}

			if childIdx < numNeighbors {
				child := neighbors[childIdx]
				callStack = append(callStack, callFrame{node: node, childIdx: childIdx + 1})
				callStack = append(callStack, callFrame{node: child, childIdx: 0})
				continue
			}

			if lowlinks[node] == idOf(node) {
				var scc []Node
				var popped Node
				for {
					popped = stack[len(stack)-1]
					stack = stack[:len(stack)-1]
					onStack[popped] = false
					scc = append(scc, popped)
					if popped == node {
						break
					}
				}
				if len(scc) > 1 || isSelfLoop(popped, g.adj[popped]) {
					for _, n := range scc {
						sccNodes[n] = true
					}
				}
			}
			order = append(order, node)
		}
	}

	return order, nodesInCycle, sccNodes
}

func isSelfLoop(n Node, deps []Node) bool {
	for _, d := range deps {
		if d == n {
			return true
		}
	}
	return false
}

// RenameSheet rewrites every node key and every dependency edge that names
// oldSheet (case-insensitive) to name newSheet instead. It returns the
// post-rename keys of cells that moved (were themselves under oldSheet) and
// the post-rename keys of cells whose dependency list was touched (so the
// workbook can rewrite those cells' formula text to match).
func (g *Graph) RenameSheet(oldSheet, newSheet string) (movedCells, depUpdatedCells []Node) {
	oldLower := strings.ToLower(oldSheet)
	newLower := strings.ToLower(newSheet)

	newAdj := make(map[Node][]Node, len(g.adj))
	newOrder := make([]Node, len(g.order))

	rename := func(n Node) Node {
		if n.Sheet == oldLower {
			return Node{Sheet: newLower, Loc: n.Loc}
		}
		return n
	}

	for i, cell := range g.order {
		newCell := rename(cell)
		newOrder[i] = newCell
		if newCell != cell {
			movedCells = append(movedCells, newCell)
		}

		deps := g.adj[cell]
		newDeps := make([]Node, len(deps))
		touched := false
		for j, d := range deps {
			newDeps[j] = rename(d)
			if newDeps[j] != d {
				touched = true
			}
		}
		newAdj[newCell] = newDeps
		if touched {
			depUpdatedCells = append(depUpdatedCells, newCell)
		}
	}

	g.adj = newAdj
	g.order = newOrder
	return movedCells, depUpdatedCells
}
