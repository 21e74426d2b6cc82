package regalloc

import (
	"github.com/raymyers/ralph-ra/pkg/hw"
	"github.com/raymyers/ralph-ra/pkg/ir"
)

// AssignRegisters rewrites every register operand of p to its physical
// location. Virtual operands fold their sub-offset into the slot number;
// payload slots map to themselves; message registers map into the alias
// window when the hardware has one and are left alone otherwise.
func AssignRegisters(p *ir.Program, colors map[int]int, cfg hw.Config) {
	for _, h := range p.Code.Handles() {
		in := p.Code.At(h)
		if in.Op.HasDst() {
			in.Dst = physicalLocation(in.Dst, colors, cfg)
		}
		for i := range in.Srcs {
			in.Srcs[i] = physicalLocation(in.Srcs[i], colors, cfg)
		}
	}
}

func physicalLocation(o ir.Operand, colors map[int]int, cfg hw.Config) ir.Operand {
	switch o.File {
	case ir.Virtual:
		color, ok := colors[o.Nr]
		if !ok {
			return o
		}
		return ir.Operand{File: ir.Physical, Nr: color + o.Offset, Size: o.Size, Indirect: o.Indirect}
	case ir.Payload:
		return ir.Operand{File: ir.Physical, Nr: o.Nr + o.Offset, Size: o.Size, Indirect: o.Indirect}
	case ir.Message:
		if !cfg.HasAliasWindow() {
			return o
		}
		return ir.Operand{File: ir.Physical, Nr: cfg.AliasBase() + o.Nr + o.Offset, Size: o.Size}
	}
	return o
}
