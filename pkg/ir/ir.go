// Package ir defines the shader instruction stream consumed by the register allocator.
// Values are virtual registers with a size in slots; instructions live in an arena
// addressed by stable handles so that spill code can be inserted without invalidating
// outstanding references.
package ir

// File identifies the register file an operand refers to
type File uint8

const (
	BadFile   File = iota
	Virtual        // virtual register (v), allocated by regalloc
	Payload        // thread payload slot (p), fixed at dispatch
	Message        // message register (m), source of send instructions
	Physical       // physical register slot (g), after allocation
	Immediate      // immediate constant (#)
)

// Operand references a range of slots in a register file.
type Operand struct {
	File File
	// Nr is the register number (value id for Virtual)
	Nr int
	// Offset is the sub-offset in slots from the start of the register
	Offset int
	// Size is the number of slots accessed; 0 means "to the end of the value"
	Size int
	// Indirect marks a relative-addressed access whose slots are not known statically
	Indirect bool
	// Imm holds the constant of an Immediate operand
	Imm int64
}

// V returns a virtual operand covering the whole value.
func V(nr int) Operand { return Operand{File: Virtual, Nr: nr} }

// VSub returns a virtual operand for slots [offset, offset+size) of a value.
func VSub(nr, offset, size int) Operand {
	return Operand{File: Virtual, Nr: nr, Offset: offset, Size: size}
}

// P returns a payload operand for a single slot.
func P(nr int) Operand { return Operand{File: Payload, Nr: nr, Size: 1} }

// M returns a message register operand for a single slot.
func M(nr int) Operand { return Operand{File: Message, Nr: nr, Size: 1} }

// G returns a physical operand.
func G(nr, size int) Operand { return Operand{File: Physical, Nr: nr, Size: size} }

// Imm returns an immediate operand.
func Imm(v int64) Operand { return Operand{File: Immediate, Imm: v} }

// IsVirtual reports whether o references virtual value nr
func (o Operand) IsVirtual(nr int) bool {
	return o.File == Virtual && o.Nr == nr
}

// Opcode is a shader instruction opcode
type Opcode uint8

const (
	OpNop Opcode = iota
	OpMov
	OpAdd
	OpMul
	OpMad
	OpSel
	OpCmp
	OpSend
	OpDo
	OpWhile
	OpIf
	OpElse
	OpEndif
	OpScratchRead
	OpScratchWrite
	OpHalt
)

type opInfo struct {
	name   string
	hasDst bool
	nsrc   int // -1 = any number
}

var opTable = [...]opInfo{
	OpNop:          {"nop", false, 0},
	OpMov:          {"mov", true, 1},
	OpAdd:          {"add", true, 2},
	OpMul:          {"mul", true, 2},
	OpMad:          {"mad", true, 3},
	OpSel:          {"sel", true, 2},
	OpCmp:          {"cmp", true, 2},
	OpSend:         {"send", true, -1},
	OpDo:           {"do", false, 0},
	OpWhile:        {"while", false, 0},
	OpIf:           {"if", false, 0},
	OpElse:         {"else", false, 0},
	OpEndif:        {"endif", false, 0},
	OpScratchRead:  {"scratch_read", true, 0},
	OpScratchWrite: {"scratch_write", false, 1},
	OpHalt:         {"halt", false, 0},
}

var opByName = func() map[string]Opcode {
	m := make(map[string]Opcode, len(opTable))
	for op, info := range opTable {
		m[info.name] = Opcode(op)
	}
	return m
}()

func (op Opcode) String() string {
	if int(op) < len(opTable) {
		return opTable[op].name
	}
	return "op?"
}

// HasDst reports whether the opcode writes a destination operand
func (op Opcode) HasDst() bool {
	return int(op) < len(opTable) && opTable[op].hasDst
}

// IsScratch reports whether the opcode accesses spill scratch memory
func (op Opcode) IsScratch() bool {
	return op == OpScratchRead || op == OpScratchWrite
}

// Instr is a single shader instruction.
type Instr struct {
	Op   Opcode
	Dst  Operand
	Srcs []Operand
	// Predicated instructions may leave some channels of Dst unwritten
	Predicated bool
	// Partial marks a write that does not cover every byte of the Dst slots
	Partial bool
	// ScratchOffset is the byte offset used by scratch_read / scratch_write
	ScratchOffset int
}

// IsPartialWrite reports whether the destination keeps part of its old contents
func (i *Instr) IsPartialWrite() bool {
	return i.Op.HasDst() && (i.Predicated || i.Partial)
}

// Reads reports whether the instruction reads virtual value nr
func (i *Instr) Reads(nr int) bool {
	for _, s := range i.Srcs {
		if s.IsVirtual(nr) {
			return true
		}
	}
	return false
}

// Writes reports whether the instruction writes virtual value nr
func (i *Instr) Writes(nr int) bool {
	return i.Op.HasDst() && i.Dst.IsVirtual(nr)
}

// References reports whether the instruction reads or writes virtual value nr
func (i *Instr) References(nr int) bool {
	return i.Reads(nr) || i.Writes(nr)
}

// Value is a virtual register produced by earlier compilation stages.
type Value struct {
	// Size is the number of contiguous slots the value occupies
	Size int
	// NoSpill is set on spill temporaries so they are never spilled again
	NoSpill bool
	// Spilled is set once every access has been rewritten to scratch memory
	Spilled bool
}
