package regalloc

import "sort"

// nodeState tracks a node through one coloring pass
type nodeState uint8

const (
	stateUncolored nodeState = iota
	stateColoring
	stateColored
	stateFailed
)

// Order returns the live virtual nodes in coloring order: larger values
// first, then higher interference degree, then lower id.
func (g *Graph) Order() []int {
	order := make([]int, 0, g.NumVirtual)
	for i := 0; i < g.NumVirtual; i++ {
		if !g.Nodes[i].Dead {
			order = append(order, i)
		}
	}
	sort.SliceStable(order, func(i, j int) bool {
		a, b := &g.Nodes[order[i]], &g.Nodes[order[j]]
		if a.Size != b.Size {
			return a.Size > b.Size
		}
		if da, db := len(a.Adj), len(b.Adj); da != db {
			return da > db
		}
		return a.ID < b.ID
	})
	return order
}

// Color greedily assigns each node in order the lowest run of free slots
// not used by an already colored neighbor. It stops at the first node that
// does not fit and returns it as the failure witness.
func (g *Graph) Color(order []int) (witness int, ok bool) {
	state := make([]nodeState, len(g.Nodes))
	for i := range g.Nodes {
		if g.Nodes[i].Fixed() {
			state[i] = stateColored
		} else {
			g.Nodes[i].Color = NoColor
		}
	}

	for _, n := range order {
		if state[n] == stateColored {
			continue
		}
		state[n] = stateColoring

		node := &g.Nodes[n]
		start := g.findRun(node)
		if start == NoColor {
			state[n] = stateFailed
			return n, false
		}
		node.Color = start
		state[n] = stateColored
	}
	return -1, true
}

// findRun returns the first slot of the lowest free run long enough for node.
func (g *Graph) findRun(node *Node) int {
	g.used.ClearAll()
	for _, m := range node.Adj {
		nb := &g.Nodes[m]
		if nb.Color == NoColor {
			continue
		}
		for s := nb.Color; s < nb.Color+nb.Size && s < g.Slots; s++ {
			g.used.Set(uint(s))
		}
	}

	run := 0
	for s := 0; s < g.Slots; s++ {
		if g.used.Test(uint(s)) {
			run = 0
			continue
		}
		run++
		if run == node.Size {
			return s - node.Size + 1
		}
	}
	return NoColor
}
