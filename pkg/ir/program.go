package ir

import "fmt"

// Program is one shader compilation unit: its values and instruction stream.
type Program struct {
	Name   string
	Values []Value
	Code   *Stream
}

// NewProgram creates an empty program
func NewProgram(name string) *Program {
	return &Program{Name: name, Code: NewStream()}
}

// NewValue allocates a fresh virtual value of the given size and returns its id.
// Ids are dense, starting at 0.
func (p *Program) NewValue(size int) int {
	p.Values = append(p.Values, Value{Size: size})
	return len(p.Values) - 1
}

// Emit appends an instruction, filling in defaulted operand sizes.
func (p *Program) Emit(in Instr) Handle {
	p.resolve(&in)
	return p.Code.Append(in)
}

// InsertBefore inserts an instruction before at, filling in defaulted operand sizes
func (p *Program) InsertBefore(at Handle, in Instr) Handle {
	p.resolve(&in)
	return p.Code.InsertBefore(at, in)
}

// InsertAfter inserts an instruction after at, filling in defaulted operand sizes
func (p *Program) InsertAfter(at Handle, in Instr) Handle {
	p.resolve(&in)
	return p.Code.InsertAfter(at, in)
}

func (p *Program) resolve(in *Instr) {
	if in.Op.HasDst() {
		p.resolveOperand(&in.Dst)
	}
	for i := range in.Srcs {
		p.resolveOperand(&in.Srcs[i])
	}
}

// resolveOperand turns a Size of 0 into the operand's real extent
func (p *Program) resolveOperand(o *Operand) {
	if o.Size != 0 {
		return
	}
	switch o.File {
	case Virtual:
		if o.Nr >= 0 && o.Nr < len(p.Values) {
			o.Size = p.Values[o.Nr].Size - o.Offset
		}
	case Payload, Message, Physical:
		o.Size = 1
	}
}

// Validate checks that every virtual operand stays inside its value.
func (p *Program) Validate() error {
	for i, v := range p.Values {
		if v.Size <= 0 {
			return fmt.Errorf("v%d: size must be positive, got %d", i, v.Size)
		}
	}
	for ip, in := range p.Code.Instrs() {
		if err := p.CheckInstr(&in); err != nil {
			return fmt.Errorf("instruction %d (%s): %w", ip, in.Op, err)
		}
	}
	return nil
}

// CheckInstr reports whether the virtual operands of in refer to defined
// values and stay inside them.
func (p *Program) CheckInstr(in *Instr) error {
	ops := in.Srcs
	if in.Op.HasDst() {
		ops = append([]Operand{in.Dst}, ops...)
	}
	for _, o := range ops {
		if o.File != Virtual {
			continue
		}
		if o.Nr < 0 || o.Nr >= len(p.Values) {
			return fmt.Errorf("undefined value v%d", o.Nr)
		}
		size := p.Values[o.Nr].Size
		if o.Offset < 0 || o.Size <= 0 || o.Offset+o.Size > size {
			return fmt.Errorf("v%d slots [%d, %d) outside size %d", o.Nr, o.Offset, o.Offset+o.Size, size)
		}
	}
	return nil
}
