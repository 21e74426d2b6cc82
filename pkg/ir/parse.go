package ir

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseInstr parses one instruction in the text syntax produced by Printer:
//
//	[(+f0) ]op[.partial] [dst][, src...]
//
// Scratch instructions carry their byte offset as an @N operand.
// Operand sizes left out are 0 and get resolved by Program.Emit.
func ParseInstr(line string) (Instr, error) {
	var in Instr
	s := strings.TrimSpace(line)
	if s == "" {
		return in, fmt.Errorf("empty instruction")
	}

	if strings.HasPrefix(s, "(+f0)") {
		in.Predicated = true
		s = strings.TrimSpace(s[len("(+f0)"):])
	}

	mnemonic, rest, _ := strings.Cut(s, " ")
	if name, ok := strings.CutSuffix(mnemonic, ".partial"); ok {
		in.Partial = true
		mnemonic = name
	}
	op, ok := opByName[mnemonic]
	if !ok {
		return in, fmt.Errorf("unknown opcode %q", mnemonic)
	}
	in.Op = op

	var operands []Operand
	if rest = strings.TrimSpace(rest); rest != "" {
		for _, field := range strings.Split(rest, ",") {
			field = strings.TrimSpace(field)
			if strings.HasPrefix(field, "@") {
				ofs, err := strconv.Atoi(field[1:])
				if err != nil || ofs < 0 {
					return in, fmt.Errorf("bad scratch offset %q", field)
				}
				in.ScratchOffset = ofs
				continue
			}
			o, err := ParseOperand(field)
			if err != nil {
				return in, err
			}
			operands = append(operands, o)
		}
	}

	if op.HasDst() {
		if len(operands) == 0 {
			return in, fmt.Errorf("%s: missing destination", op)
		}
		in.Dst = operands[0]
		operands = operands[1:]
		if in.Dst.File == Immediate {
			return in, fmt.Errorf("%s: immediate destination", op)
		}
	}
	if n := opTable[op].nsrc; n >= 0 && len(operands) != n {
		return in, fmt.Errorf("%s: expected %d sources, got %d", op, n, len(operands))
	}
	if len(operands) > 0 {
		in.Srcs = operands
	}
	return in, nil
}

// ParseOperand parses a single operand such as v3, v3.1:2, *v3, p0, m1:2, g12 or #5.
func ParseOperand(s string) (Operand, error) {
	var o Operand
	if s == "" {
		return o, fmt.Errorf("empty operand")
	}
	if s[0] == '#' {
		v, err := strconv.ParseInt(s[1:], 0, 64)
		if err != nil {
			return o, fmt.Errorf("bad immediate %q", s)
		}
		return Imm(v), nil
	}

	body := s
	if body[0] == '*' {
		o.Indirect = true
		body = body[1:]
	}
	if body == "" {
		return o, fmt.Errorf("bad operand %q", s)
	}
	switch body[0] {
	case 'v':
		o.File = Virtual
	case 'p':
		o.File = Payload
	case 'm':
		o.File = Message
	case 'g':
		o.File = Physical
	default:
		return o, fmt.Errorf("bad register file in operand %q", s)
	}
	body = body[1:]

	if reg, size, ok := strings.Cut(body, ":"); ok {
		n, err := strconv.Atoi(size)
		if err != nil || n <= 0 {
			return o, fmt.Errorf("bad size in operand %q", s)
		}
		o.Size = n
		body = reg
	}
	if reg, ofs, ok := strings.Cut(body, "."); ok {
		n, err := strconv.Atoi(ofs)
		if err != nil || n < 0 {
			return o, fmt.Errorf("bad offset in operand %q", s)
		}
		o.Offset = n
		body = reg
	}
	nr, err := strconv.Atoi(body)
	if err != nil || nr < 0 {
		return o, fmt.Errorf("bad register number in operand %q", s)
	}
	o.Nr = nr
	return o, nil
}
