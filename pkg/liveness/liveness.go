// Package liveness computes the live ranges the register allocator builds
// its interference graph from. Ranges are conservative intervals over the
// linear instruction order, widened across loop back edges.
package liveness

import (
	"sort"

	"github.com/raymyers/ralph-ra/pkg/ir"
)

// Range is the closed instruction-index interval [Def, LastUse] of a value.
// Def is -1 for a value no instruction references.
type Range struct {
	Def     int
	LastUse int
}

// Valid reports whether any instruction references the value
func (r Range) Valid() bool {
	return r.Def >= 0
}

// Degenerate reports whether the value is defined and dead at the same instruction
func (r Range) Degenerate() bool {
	return r.Valid() && r.Def == r.LastUse
}

// Info is the liveness summary for one instruction stream.
type Info struct {
	// Values holds one range per virtual value id
	Values []Range
	// PayloadLastUse is the last instruction reading each payload slot, -1 if
	// never read. A read inside a loop lasts until its while.
	PayloadLastUse []int
	// MessageFirstUse is the first instruction touching each message register,
	// -1 if unused. A use inside a loop counts from its do.
	MessageFirstUse []int
	// Order maps an instruction index to its handle
	Order []ir.Handle
}

type loop struct {
	do, while int
}

// Analyze computes live ranges for every value of p, for payloadSlots payload
// slots and messageRegs message registers.
func Analyze(p *ir.Program, payloadSlots, messageRegs int) *Info {
	info := &Info{
		Values:          make([]Range, len(p.Values)),
		PayloadLastUse:  make([]int, payloadSlots),
		MessageFirstUse: make([]int, messageRegs),
		Order:           p.Code.Handles(),
	}
	for i := range info.Values {
		info.Values[i] = Range{Def: -1, LastUse: -1}
	}
	for i := range info.PayloadLastUse {
		info.PayloadLastUse[i] = -1
	}
	for i := range info.MessageFirstUse {
		info.MessageFirstUse[i] = -1
	}

	var loops []loop
	var open []int

	for ip, h := range info.Order {
		in := p.Code.At(h)
		switch in.Op {
		case ir.OpDo:
			open = append(open, ip)
		case ir.OpWhile:
			if n := len(open); n > 0 {
				loops = append(loops, loop{do: open[n-1], while: ip})
				open = open[:n-1]
			}
		}

		for _, s := range in.Srcs {
			info.touch(s, ip, true)
		}
		if in.Op.HasDst() {
			info.touch(in.Dst, ip, false)
		}
	}

	info.extendLoops(p, loops)
	return info
}

func (info *Info) touch(o ir.Operand, ip int, read bool) {
	// fixed files are indexed by the slot the operand really reaches
	base := o.Nr + o.Offset
	switch o.File {
	case ir.Virtual:
		if o.Nr < 0 || o.Nr >= len(info.Values) {
			return
		}
		r := &info.Values[o.Nr]
		if !r.Valid() {
			r.Def = ip
		}
		r.LastUse = ip
	case ir.Payload:
		if !read {
			return
		}
		for i := max(base, 0); i < base+max(o.Size, 1) && i < len(info.PayloadLastUse); i++ {
			info.PayloadLastUse[i] = ip
		}
	case ir.Message:
		for i := max(base, 0); i < base+max(o.Size, 1) && i < len(info.MessageFirstUse); i++ {
			if info.MessageFirstUse[i] < 0 {
				info.MessageFirstUse[i] = ip
			}
		}
	}
}

// extendLoops widens ranges that cross a loop back edge. Inner loops are
// handled first so that widening propagates outwards.
func (info *Info) extendLoops(p *ir.Program, loops []loop) {
	sort.SliceStable(loops, func(i, j int) bool {
		return loops[i].while-loops[i].do < loops[j].while-loops[j].do
	})

	for _, l := range loops {
		// A value read in the body before the body writes it carries a
		// value around the back edge. A partial write keeps the channels it
		// skips, so it counts as a read and never as a full write.
		carried := make(map[int]bool)
		written := make(map[int]bool)
		for ip := l.do + 1; ip < l.while; ip++ {
			in := p.Code.At(info.Order[ip])
			for _, s := range in.Srcs {
				if s.File == ir.Virtual && !written[s.Nr] {
					carried[s.Nr] = true
				}
			}
			if !in.Op.HasDst() || in.Dst.File != ir.Virtual {
				continue
			}
			if in.IsPartialWrite() {
				if !written[in.Dst.Nr] {
					carried[in.Dst.Nr] = true
				}
				continue
			}
			written[in.Dst.Nr] = true
		}

		// Payload read in the body is read again by the next iteration, and a
		// message register used in the body is taken over from the loop head.
		for i, last := range info.PayloadLastUse {
			if last > l.do && last < l.while {
				info.PayloadLastUse[i] = l.while
			}
		}
		for i, first := range info.MessageFirstUse {
			if first > l.do && first < l.while {
				info.MessageFirstUse[i] = l.do
			}
		}

		for v := range info.Values {
			r := &info.Values[v]
			if !r.Valid() || r.LastUse < l.do || r.Def > l.while {
				continue
			}
			if r.Def < l.do && r.LastUse < l.while {
				r.LastUse = l.while
			}
			if carried[v] {
				r.Def = min(r.Def, l.do)
				r.LastUse = max(r.LastUse, l.while)
			}
		}
	}
}
