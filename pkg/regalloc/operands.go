package regalloc

import (
	"fmt"

	"github.com/raymyers/ralph-ra/pkg/hw"
	"github.com/raymyers/ralph-ra/pkg/ir"
)

// CheckOperands verifies the fixed-file operands of p against cfg. Payload
// reads must stay inside the payload, message registers inside the alias
// window when the hardware has one, and physical registers are only
// produced by allocation. Errors wrap ErrBadOperand.
func CheckOperands(p *ir.Program, cfg hw.Config) error {
	for ip, in := range p.Code.Instrs() {
		if err := checkFixedOperands(&in, cfg); err != nil {
			return fmt.Errorf("instruction %d (%s): %w", ip, in.Op, err)
		}
	}
	return nil
}

func checkFixedOperands(in *ir.Instr, cfg hw.Config) error {
	if in.Op.HasDst() && in.Dst.File == ir.Payload {
		return fmt.Errorf("%w: payload p%d is read-only", ErrBadOperand, in.Dst.Nr)
	}
	ops := in.Srcs
	if in.Op.HasDst() {
		ops = append([]ir.Operand{in.Dst}, ops...)
	}
	for _, o := range ops {
		lo := o.Nr + o.Offset
		hi := lo + max(o.Size, 1)
		switch o.File {
		case ir.Physical:
			return fmt.Errorf("%w: physical register g%d before allocation", ErrBadOperand, o.Nr)
		case ir.Payload:
			if lo < 0 || hi > cfg.PayloadSlots {
				return fmt.Errorf("%w: payload slots [%d, %d) outside the %d-slot payload",
					ErrBadOperand, lo, hi, cfg.PayloadSlots)
			}
		case ir.Message:
			if lo < 0 || cfg.HasAliasWindow() && hi > cfg.AliasWindow {
				return fmt.Errorf("%w: message registers [%d, %d) outside the %d-slot alias window",
					ErrBadOperand, lo, hi, cfg.AliasWindow)
			}
		}
	}
	return nil
}
