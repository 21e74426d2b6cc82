package regalloc

import (
	"github.com/raymyers/ralph-ra/pkg/hw"
	"github.com/raymyers/ralph-ra/pkg/ir"
)

// spiller rewrites accesses to a spilled value into scratch memory traffic.
// The scratch offset counter belongs to one compilation.
type spiller struct {
	prog       *ir.Program
	cfg        hw.Config
	nextOffset int
}

func newSpiller(p *ir.Program, cfg hw.Config) *spiller {
	return &spiller{prog: p, cfg: cfg}
}

// scratchSize returns the bytes of scratch memory handed out so far
func (s *spiller) scratchSize() int {
	return s.nextOffset
}

// allocScratch reserves aligned scratch space for size slots
func (s *spiller) allocScratch(size int) int {
	align := s.cfg.SpillAlign
	offset := (s.nextOffset + align - 1) &^ (align - 1)
	s.nextOffset = offset + size*s.cfg.SlotBytes
	return offset
}

// spill moves value v to scratch memory. Every read gets a scratch_read into
// a fresh temporary just before it; every write goes to a fresh temporary
// that a scratch_write stores just after it. It returns the scratch offset
// and the temporaries it introduced.
func (s *spiller) spill(v int) (offset int, temps []int) {
	p := s.prog
	offset = s.allocScratch(p.Values[v].Size)
	slotBytes := s.cfg.SlotBytes

	for _, h := range p.Code.Handles() {
		in := p.Code.At(h)
		if !in.References(v) {
			continue
		}

		for i := range in.Srcs {
			src := in.Srcs[i]
			if !src.IsVirtual(v) {
				continue
			}
			t := s.newTemp(src.Size)
			temps = append(temps, t)
			p.InsertBefore(h, ir.Instr{
				Op:            ir.OpScratchRead,
				Dst:           ir.V(t),
				ScratchOffset: offset + src.Offset*slotBytes,
			})
			// The insert may have grown the arena; reload the instruction.
			in = p.Code.At(h)
			in.Srcs[i] = ir.Operand{File: ir.Virtual, Nr: t, Size: src.Size}
		}

		if in.Writes(v) {
			dst := in.Dst
			t := s.newTemp(dst.Size)
			temps = append(temps, t)
			ofs := offset + dst.Offset*slotBytes

			// A partial write has to merge with the old contents, so load
			// them into the temporary first.
			if in.IsPartialWrite() {
				p.InsertBefore(h, ir.Instr{
					Op:            ir.OpScratchRead,
					Dst:           ir.V(t),
					ScratchOffset: ofs,
				})
				in = p.Code.At(h)
			}
			in.Dst = ir.Operand{File: ir.Virtual, Nr: t, Size: dst.Size}
			p.InsertAfter(h, ir.Instr{
				Op:            ir.OpScratchWrite,
				Srcs:          []ir.Operand{ir.V(t)},
				ScratchOffset: ofs,
			})
		}
	}

	p.Values[v].Spilled = true
	return offset, temps
}

// newTemp allocates a spill temporary that may never be spilled itself
func (s *spiller) newTemp(size int) int {
	t := s.prog.NewValue(size)
	s.prog.Values[t].NoSpill = true
	return t
}
