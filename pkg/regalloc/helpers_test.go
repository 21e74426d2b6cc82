package regalloc

import (
	"testing"

	"github.com/raymyers/ralph-ra/pkg/hw"
	"github.com/raymyers/ralph-ra/pkg/ir"
)

// testConfig returns a small register file with 32-byte slots
func testConfig(slots, payload, alias int) hw.Config {
	return hw.Config{
		Name:         "test",
		Slots:        slots,
		PayloadSlots: payload,
		AliasWindow:  alias,
		SlotBytes:    32,
		SpillAlign:   32,
		LoopWeight:   10,
	}
}

// buildProgram creates a program with one value per size and the given code
func buildProgram(t *testing.T, sizes []int, lines ...string) *ir.Program {
	t.Helper()
	p := ir.NewProgram(t.Name())
	for _, s := range sizes {
		p.NewValue(s)
	}
	for _, line := range lines {
		in, err := ir.ParseInstr(line)
		if err != nil {
			t.Fatalf("ParseInstr(%q): %v", line, err)
		}
		p.Emit(in)
	}
	if err := p.Validate(); err != nil {
		t.Fatalf("invalid test program: %v", err)
	}
	return p
}

// buildGraph runs liveness and graph construction for p
func buildGraph(p *ir.Program, cfg hw.Config) *Graph {
	return Build(p, DefaultLiveness(p, cfg), cfg)
}

// listing renders the instruction stream one instruction per line
func listing(p *ir.Program) []string {
	var out []string
	for _, in := range p.Code.Instrs() {
		out = append(out, ir.FormatInstr(&in, p.Values))
	}
	return out
}

// reporter is the part of testing.T and rapid.T that checkColoring needs
type reporter interface {
	Helper()
	Errorf(format string, args ...any)
}

// checkColoring verifies the no-overlap and bounds invariants of a colored graph
func checkColoring(t reporter, g *Graph) {
	t.Helper()
	for i := range g.Nodes {
		a := &g.Nodes[i]
		if a.Color == NoColor {
			continue
		}
		if a.Color < 0 || a.Color+a.Size > g.Slots {
			t.Errorf("node %d at [%d, %d) outside the %d-slot file", i, a.Color, a.Color+a.Size, g.Slots)
		}
		for _, j := range a.Adj {
			b := &g.Nodes[j]
			if b.Color == NoColor {
				continue
			}
			if a.Color < b.Color+b.Size && b.Color < a.Color+a.Size {
				t.Errorf("interfering nodes %d [%d, %d) and %d [%d, %d) overlap",
					i, a.Color, a.Color+a.Size, j, b.Color, b.Color+b.Size)
			}
		}
	}
}
