package regalloc

import (
	mapset "github.com/deckarep/golang-set/v2"

	"github.com/raymyers/ralph-ra/pkg/ir"
)

// SpillCost is one row of the spill cost table reported with a fatal failure
type SpillCost struct {
	Node        int
	Cost        float64
	Benefit     float64
	Unspillable bool
}

// SelectSpill computes spill costs for every virtual node and picks the one
// whose eviction frees the most capacity per unit of estimated memory traffic.
// loopWeight scales the cost of references per enclosing loop level.
// ok is false when no node may be spilled.
func (g *Graph) SelectSpill(p *ir.Program, loopWeight float64) (node int, costs []SpillCost, ok bool) {
	noSpill := g.unspillable(p)

	// Reference weight approximates execution frequency: each enclosing
	// loop multiplies it by loopWeight.
	cost := make([]float64, g.NumVirtual)
	weight := 1.0
	for _, in := range p.Code.Instrs() {
		switch in.Op {
		case ir.OpDo:
			weight *= loopWeight
		case ir.OpWhile:
			weight /= loopWeight
		}
		for _, v := range referencedValues(&in) {
			if v < g.NumVirtual {
				cost[v] += weight
			}
		}
	}

	best := -1
	var bestRatio float64
	costs = make([]SpillCost, 0, g.NumVirtual)
	for v := 0; v < g.NumVirtual; v++ {
		n := &g.Nodes[v]
		n.SpillCost = cost[v]
		n.Unspillable = noSpill.Contains(v)

		benefit := 0
		for _, m := range n.Adj {
			benefit += g.Nodes[m].Size
		}
		costs = append(costs, SpillCost{
			Node:        v,
			Cost:        cost[v],
			Benefit:     float64(benefit),
			Unspillable: n.Unspillable,
		})

		if n.Unspillable || cost[v] <= 0 {
			continue
		}
		// Strict comparison keeps the lowest id on ties.
		ratio := float64(benefit) / cost[v]
		if best < 0 || ratio > bestRatio {
			best, bestRatio = v, ratio
		}
	}

	if best < 0 {
		return -1, costs, false
	}
	return best, costs, true
}

// unspillable collects values that must stay in registers: spill temporaries,
// values already spilled, values accessed through indirect addressing, and
// values touched by scratch instructions.
func (g *Graph) unspillable(p *ir.Program) mapset.Set[int] {
	set := mapset.NewThreadUnsafeSet[int]()
	for v, val := range p.Values {
		if val.NoSpill || val.Spilled || g.Nodes[v].Dead {
			set.Add(v)
		}
	}
	for _, in := range p.Code.Instrs() {
		if in.Op.IsScratch() {
			for _, v := range referencedValues(&in) {
				set.Add(v)
			}
			continue
		}
		if in.Op.HasDst() && in.Dst.File == ir.Virtual && in.Dst.Indirect {
			set.Add(in.Dst.Nr)
		}
		for _, s := range in.Srcs {
			if s.File == ir.Virtual && s.Indirect {
				set.Add(s.Nr)
			}
		}
	}
	return set
}

// referencedValues lists each virtual value an instruction reads or writes, once.
func referencedValues(in *ir.Instr) []int {
	var vals []int
	add := func(o ir.Operand) {
		if o.File != ir.Virtual {
			return
		}
		for _, v := range vals {
			if v == o.Nr {
				return
			}
		}
		vals = append(vals, o.Nr)
	}
	if in.Op.HasDst() {
		add(in.Dst)
	}
	for _, s := range in.Srcs {
		add(s)
	}
	return vals
}
