package ir

import (
	"testing"
)

func opsOf(s *Stream) []Opcode {
	var ops []Opcode
	for _, in := range s.Instrs() {
		ops = append(ops, in.Op)
	}
	return ops
}

func equalOps(a, b []Opcode) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestStreamInsert(t *testing.T) {
	s := NewStream()
	mov := s.Append(Instr{Op: OpMov})
	add := s.Append(Instr{Op: OpAdd})

	t.Run("insert before head", func(t *testing.T) {
		s.InsertBefore(mov, Instr{Op: OpDo})
		want := []Opcode{OpDo, OpMov, OpAdd}
		if got := opsOf(s); !equalOps(got, want) {
			t.Errorf("expected %v, got %v", want, got)
		}
	})

	t.Run("insert after tail", func(t *testing.T) {
		s.InsertAfter(add, Instr{Op: OpWhile})
		want := []Opcode{OpDo, OpMov, OpAdd, OpWhile}
		if got := opsOf(s); !equalOps(got, want) {
			t.Errorf("expected %v, got %v", want, got)
		}
	})

	t.Run("insert in the middle", func(t *testing.T) {
		h := s.InsertAfter(mov, Instr{Op: OpScratchWrite})
		s.InsertBefore(h, Instr{Op: OpNop})
		want := []Opcode{OpDo, OpMov, OpNop, OpScratchWrite, OpAdd, OpWhile}
		if got := opsOf(s); !equalOps(got, want) {
			t.Errorf("expected %v, got %v", want, got)
		}
	})

	t.Run("handles stay valid", func(t *testing.T) {
		if s.At(mov).Op != OpMov {
			t.Errorf("mov handle now points at %s", s.At(mov).Op)
		}
		if s.At(add).Op != OpAdd {
			t.Errorf("add handle now points at %s", s.At(add).Op)
		}
		if s.Len() != 6 {
			t.Errorf("expected 6 instructions, got %d", s.Len())
		}
	})
}

func TestStreamHandlesOrder(t *testing.T) {
	s := NewStream()
	a := s.Append(Instr{Op: OpMov})
	b := s.Append(Instr{Op: OpAdd})
	c := s.InsertBefore(b, Instr{Op: OpMul})

	order := s.Handles()
	want := []Handle{a, c, b}
	if len(order) != len(want) {
		t.Fatalf("expected %d handles, got %d", len(want), len(order))
	}
	for i := range want {
		if order[i] != want[i] {
			t.Errorf("position %d: expected handle %d, got %d", i, want[i], order[i])
		}
	}
}

func TestProgramNewValue(t *testing.T) {
	p := NewProgram("values")
	if id := p.NewValue(2); id != 0 {
		t.Errorf("first value should be v0, got v%d", id)
	}
	if id := p.NewValue(4); id != 1 {
		t.Errorf("second value should be v1, got v%d", id)
	}
}

func TestProgramEmitResolvesSizes(t *testing.T) {
	p := NewProgram("sizes")
	v := p.NewValue(4)
	h := p.Emit(Instr{Op: OpMov, Dst: VSub(v, 1, 0), Srcs: []Operand{{File: Payload, Nr: 0}}})

	in := p.Code.At(h)
	if in.Dst.Size != 3 {
		t.Errorf("destination should cover slots 1..3, got size %d", in.Dst.Size)
	}
	if in.Srcs[0].Size != 1 {
		t.Errorf("payload operand should default to one slot, got %d", in.Srcs[0].Size)
	}
}

func TestProgramValidate(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		p := NewProgram("ok")
		v := p.NewValue(2)
		p.Emit(Instr{Op: OpMov, Dst: V(v), Srcs: []Operand{Imm(1)}})
		if err := p.Validate(); err != nil {
			t.Error(err)
		}
	})

	t.Run("undefined value", func(t *testing.T) {
		p := NewProgram("undef")
		p.Emit(Instr{Op: OpMov, Dst: V(3), Srcs: []Operand{Imm(1)}})
		if err := p.Validate(); err == nil {
			t.Error("expected error for undefined value")
		}
	})

	t.Run("out of range slice", func(t *testing.T) {
		p := NewProgram("range")
		v := p.NewValue(2)
		p.Emit(Instr{Op: OpMov, Dst: VSub(v, 1, 2), Srcs: []Operand{Imm(1)}})
		if err := p.Validate(); err == nil {
			t.Error("expected error for access past the end of v0")
		}
	})
}
