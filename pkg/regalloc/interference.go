package regalloc

import (
	"github.com/bits-and-blooms/bitset"

	"github.com/raymyers/ralph-ra/pkg/hw"
	"github.com/raymyers/ralph-ra/pkg/ir"
	"github.com/raymyers/ralph-ra/pkg/liveness"
)

// NoColor marks a node that has not been assigned a physical slot
const NoColor = -1

// NodeKind distinguishes allocatable values from pre-colored reservations
type NodeKind uint8

const (
	KindVirtual NodeKind = iota // virtual value, colored by the allocator
	KindPayload                 // thread payload slot, pre-colored at its slot
	KindAlias                   // message register aliased into the top of the file
)

func (k NodeKind) String() string {
	switch k {
	case KindVirtual:
		return "virtual"
	case KindPayload:
		return "payload"
	case KindAlias:
		return "alias"
	}
	return "unknown"
}

// Node is a register candidate in the interference graph.
type Node struct {
	ID   int
	Kind NodeKind
	// Size is the number of contiguous slots the node occupies
	Size int
	// Color is the first physical slot, or NoColor
	Color int
	// SpillCost is filled in only after a failed coloring attempt
	SpillCost float64
	// Unspillable nodes are never chosen by the spill selector
	Unspillable bool
	// Dead virtual nodes are referenced by no instruction and get no slot
	Dead bool
	// Adj lists interfering node ids; duplicates are harmless
	Adj []int
}

// Fixed reports whether the node was pre-colored at construction
func (n *Node) Fixed() bool {
	return n.Kind != KindVirtual
}

// Graph is the interference graph of one allocation attempt.
// Nodes are laid out as virtual values, then payload slots, then alias slots.
type Graph struct {
	Nodes      []Node
	NumVirtual int
	NumPayload int
	NumAlias   int
	// Slots is the physical slot count
	Slots int

	// scratch bit vector reused by the colorer
	used *bitset.BitSet
}

// NewGraph creates an empty graph over a file of the given slot count
func NewGraph(slots int) *Graph {
	return &Graph{
		Slots: slots,
		used:  bitset.New(uint(slots)),
	}
}

// AddNode appends a node and returns its id
func (g *Graph) AddNode(kind NodeKind, size, color int) int {
	id := len(g.Nodes)
	g.Nodes = append(g.Nodes, Node{ID: id, Kind: kind, Size: size, Color: color})
	switch kind {
	case KindVirtual:
		g.NumVirtual++
	case KindPayload:
		g.NumPayload++
	case KindAlias:
		g.NumAlias++
	}
	return id
}

// AddEdge adds an interference edge between two nodes
func (g *Graph) AddEdge(a, b int) {
	if a == b {
		return // No self-edges
	}
	g.Nodes[a].Adj = append(g.Nodes[a].Adj, b)
	g.Nodes[b].Adj = append(g.Nodes[b].Adj, a)
}

// HasEdge returns true if there is an interference edge
func (g *Graph) HasEdge(a, b int) bool {
	for _, n := range g.Nodes[a].Adj {
		if n == b {
			return true
		}
	}
	return false
}

// Degree returns the number of interference edges of a node
func (g *Graph) Degree(n int) int {
	return len(g.Nodes[n].Adj)
}

// Neighbors returns the interfering neighbors of a node
func (g *Graph) Neighbors(n int) []int {
	return g.Nodes[n].Adj
}

// Build constructs the interference graph for p from its liveness summary.
func Build(p *ir.Program, info *liveness.Info, cfg hw.Config) *Graph {
	g := NewGraph(cfg.Slots)

	for _, v := range p.Values {
		g.AddNode(KindVirtual, v.Size, NoColor)
	}
	payloadBase := len(g.Nodes)
	for i := 0; i < cfg.PayloadSlots; i++ {
		g.AddNode(KindPayload, 1, i)
	}
	aliasBase := len(g.Nodes)
	if cfg.HasAliasWindow() {
		for i := 0; i < cfg.AliasWindow; i++ {
			g.AddNode(KindAlias, 1, cfg.AliasBase()+i)
		}
	}

	ranges := info.Values
	for i := 0; i < g.NumVirtual; i++ {
		g.Nodes[i].Dead = !ranges[i].Valid()
	}

	// Virtual values interfere when their ranges overlap. A value defined
	// and dead at the same instruction still occupies its slots during
	// that instruction, so it interferes with anything touching it there.
	for i := 0; i < g.NumVirtual; i++ {
		if !ranges[i].Valid() {
			continue
		}
		for j := i + 1; j < g.NumVirtual; j++ {
			if !ranges[j].Valid() {
				continue
			}
			if rangesInterfere(ranges[i], ranges[j]) {
				g.AddEdge(i, j)
			}
		}
	}

	// Payload slots are live from entry until their last read.
	for i := 0; i < g.NumPayload; i++ {
		last := -1
		if i < len(info.PayloadLastUse) {
			last = info.PayloadLastUse[i]
		}
		if last < 0 {
			continue
		}
		for v := 0; v < g.NumVirtual; v++ {
			if ranges[v].Valid() && ranges[v].Def <= last {
				g.AddEdge(payloadBase+i, v)
			}
		}
	}

	// Alias slots are taken over by message registers from their first use on.
	for i := 0; i < g.NumAlias; i++ {
		first := -1
		if i < len(info.MessageFirstUse) {
			first = info.MessageFirstUse[i]
		}
		if first < 0 {
			continue
		}
		for v := 0; v < g.NumVirtual; v++ {
			if ranges[v].Valid() && ranges[v].LastUse >= first {
				g.AddEdge(aliasBase+i, v)
			}
		}
	}

	return g
}

func rangesInterfere(a, b liveness.Range) bool {
	start := max(a.Def, b.Def)
	end := min(a.LastUse, b.LastUse)
	if start < end {
		return true
	}
	return start == end && (a.Degenerate() || b.Degenerate())
}
