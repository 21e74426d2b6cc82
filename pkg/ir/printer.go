package ir

import (
	"fmt"
	"io"
	"strings"
)

// Printer outputs a program in the text syntax accepted by ParseInstr
type Printer struct {
	w io.Writer
}

// NewPrinter creates a new program printer
func NewPrinter(w io.Writer) *Printer {
	return &Printer{w: w}
}

// PrintProgram prints the value table followed by the numbered instruction stream
func (p *Printer) PrintProgram(prog *Program) {
	fmt.Fprintf(p.w, "%s {\n", prog.Name)

	// Value sizes, flagged temporaries and spilled values
	if len(prog.Values) > 0 {
		fmt.Fprint(p.w, "  values:")
		for i, v := range prog.Values {
			fmt.Fprintf(p.w, " v%d:%d", i, v.Size)
			if v.Spilled {
				fmt.Fprint(p.w, "!")
			}
		}
		fmt.Fprintln(p.w)
	}

	for ip, in := range prog.Code.Instrs() {
		fmt.Fprintf(p.w, "  %d: %s\n", ip, FormatInstr(&in, prog.Values))
	}
	fmt.Fprintln(p.w, "}")
}

// FormatInstr renders one instruction. values is used to drop sizes that
// match the default extent of a virtual operand; it may be nil.
func FormatInstr(in *Instr, values []Value) string {
	var b strings.Builder
	if in.Predicated {
		b.WriteString("(+f0) ")
	}
	b.WriteString(in.Op.String())
	if in.Partial {
		b.WriteString(".partial")
	}

	var fields []string
	if in.Op == OpScratchWrite {
		fields = append(fields, fmt.Sprintf("@%d", in.ScratchOffset))
	}
	if in.Op.HasDst() {
		fields = append(fields, FormatOperand(in.Dst, values))
	}
	for _, s := range in.Srcs {
		fields = append(fields, FormatOperand(s, values))
	}
	if in.Op == OpScratchRead {
		fields = append(fields, fmt.Sprintf("@%d", in.ScratchOffset))
	}
	if len(fields) > 0 {
		b.WriteByte(' ')
		b.WriteString(strings.Join(fields, ", "))
	}
	return b.String()
}

// FormatOperand renders one operand
func FormatOperand(o Operand, values []Value) string {
	var prefix string
	switch o.File {
	case Immediate:
		return fmt.Sprintf("#%d", o.Imm)
	case Virtual:
		prefix = "v"
	case Payload:
		prefix = "p"
	case Message:
		prefix = "m"
	case Physical:
		prefix = "g"
	default:
		return "<bad>"
	}

	var b strings.Builder
	if o.Indirect {
		b.WriteByte('*')
	}
	fmt.Fprintf(&b, "%s%d", prefix, o.Nr)
	if o.Offset != 0 {
		fmt.Fprintf(&b, ".%d", o.Offset)
	}
	if o.Size != defaultSize(o, values) {
		fmt.Fprintf(&b, ":%d", o.Size)
	}
	return b.String()
}

func defaultSize(o Operand, values []Value) int {
	if o.File == Virtual {
		if o.Nr >= 0 && o.Nr < len(values) {
			return values[o.Nr].Size - o.Offset
		}
		return 0
	}
	return 1
}
