package regalloc

import (
	"testing"
)

func TestSelectSpillLoopWeight(t *testing.T) {
	// 0: mov v0, #0
	// 1: mov v1, #1
	// 2: do
	// 3:   add v1, v1, #1   v1 referenced inside the loop
	// 4: while
	// 5: send m0, v0, v1
	p := buildProgram(t, []int{1, 1},
		"mov v0, #0",
		"mov v1, #1",
		"do",
		"add v1, v1, #1",
		"while",
		"send m0, v0, v1",
	)
	g := buildGraph(p, testConfig(4, 0, 0))

	node, costs, ok := g.SelectSpill(p, 10)
	if !ok {
		t.Fatal("expected a spill candidate")
	}
	if costs[0].Cost != 2 {
		t.Errorf("v0 cost: expected 2, got %g", costs[0].Cost)
	}
	// two references at depth 0, one at depth 1
	if costs[1].Cost != 12 {
		t.Errorf("v1 cost: expected 12, got %g", costs[1].Cost)
	}
	if node != 0 {
		t.Errorf("the cheaper v0 should be spilled, got v%d", node)
	}
	if g.Nodes[1].SpillCost != 12 {
		t.Errorf("spill cost should be recorded on the node, got %g", g.Nodes[1].SpillCost)
	}
}

func TestSelectSpillTunableLoopWeight(t *testing.T) {
	p := buildProgram(t, []int{1},
		"do",
		"do",
		"mov v0, #1",
		"while",
		"while",
		"send m0, v0",
	)
	g := buildGraph(p, testConfig(4, 0, 0))

	_, costs, _ := g.SelectSpill(p, 3)
	if costs[0].Cost != 10 {
		t.Errorf("expected 9 + 1 with a loop weight of 3, got %g", costs[0].Cost)
	}
}

func TestSelectSpillBenefit(t *testing.T) {
	// v0 (size 1) interferes with the size-4 v1 and the size-1 v2;
	// v2 only with v0. Equal cost, so the larger benefit wins.
	p := buildProgram(t, []int{1, 4, 1},
		"mov v0, #0",
		"mov v1, #1",
		"send m0, v0, v1",
		"mov v2, #2",
		"send m1, v0, v2",
	)
	g := buildGraph(p, testConfig(8, 0, 0))

	node, costs, ok := g.SelectSpill(p, 10)
	if !ok {
		t.Fatal("expected a spill candidate")
	}
	if costs[0].Benefit != 5 {
		t.Errorf("v0 benefit: expected 5, got %g", costs[0].Benefit)
	}
	// v0: 5 / 3, v1: 1 / 2, v2: 1 / 2
	if node != 0 {
		t.Errorf("expected v0, got v%d", node)
	}
}

func TestSelectSpillTieBreak(t *testing.T) {
	p := buildProgram(t, []int{1, 1},
		"mov v0, #0",
		"mov v1, #1",
		"send m0, v0, v1",
	)
	g := buildGraph(p, testConfig(1, 0, 0))

	node, _, ok := g.SelectSpill(p, 10)
	if !ok || node != 0 {
		t.Errorf("equal ratios should pick the lowest id, got v%d (ok=%v)", node, ok)
	}
}

func TestSelectSpillIneligible(t *testing.T) {
	lines := []string{
		"mov v0, #0",
		"mov v1, #1",
		"mov v2, v1",
		"send m0, v0, *v2",
		"scratch_read v3, @0",
		"send m1, v3",
	}

	t.Run("flags", func(t *testing.T) {
		p := buildProgram(t, []int{1, 1, 1, 1, 1}, lines...)
		p.Values[0].NoSpill = true
		p.Values[1].Spilled = true
		g := buildGraph(p, testConfig(4, 0, 0))

		_, costs, ok := g.SelectSpill(p, 10)
		if ok {
			t.Fatal("nothing should be eligible")
		}
		for v, want := range []bool{true, true, true, true, true} {
			if costs[v].Unspillable != want {
				t.Errorf("v%d: unspillable = %v, want %v", v, costs[v].Unspillable, want)
			}
		}
		if costs[4].Cost != 0 {
			t.Errorf("unreferenced v4 should have zero cost, got %g", costs[4].Cost)
		}
	})

	t.Run("only the ordinary value", func(t *testing.T) {
		p := buildProgram(t, []int{1, 1, 1, 1}, lines...)
		g := buildGraph(p, testConfig(4, 0, 0))

		node, _, ok := g.SelectSpill(p, 10)
		if !ok {
			t.Fatal("v0 and v1 are eligible")
		}
		if node == 2 || node == 3 {
			t.Errorf("v%d is indirect or a scratch value and must not be chosen", node)
		}
	})
}

func TestSelectSpillNeverPicksUnspillableWitness(t *testing.T) {
	// Every value is a spill temporary: the selector must give up rather
	// than pick one, even though each sits on the coloring frontier.
	p := buildProgram(t, []int{1, 1, 1},
		"mov v0, #0",
		"mov v1, #1",
		"mov v2, #2",
		"send m0, v0, v1, v2",
	)
	for i := range p.Values {
		p.Values[i].NoSpill = true
	}
	g := buildGraph(p, testConfig(2, 0, 0))
	if _, ok := g.Color(g.Order()); ok {
		t.Fatal("three live values cannot fit in two slots")
	}
	if node, _, ok := g.SelectSpill(p, 10); ok {
		t.Errorf("unspillable v%d was selected", node)
	}
}
