package backend

import "strings"

// AsmWriter accumulates assembly text. Both concrete backends write
// through it so the GAS-style (Backend A) and HLASM-style (Backend B)
// emitters share one buffering/indentation convention.
type AsmWriter struct {
	b strings.Builder
}

// Label emits a bare label line (no operands, no indentation).
func (w *AsmWriter) Label(name string) {
	w.b.WriteString(name)
	w.b.WriteString(":\n")
}

// Directive emits an assembler directive (.text, .globl, DS, etc.) at
// column zero, matching yasm/assembler.go's convention that directives
// and labels are unindented while instructions are tab-indented.
func (w *AsmWriter) Directive(text string) {
	w.b.WriteString(text)
	w.b.WriteByte('\n')
}

// Insn emits one tab-indented instruction line.
func (w *AsmWriter) Insn(text string) {
	w.b.WriteByte('\t')
	w.b.WriteString(text)
	w.b.WriteByte('\n')
}

// Comment emits a standalone comment line using the given prefix ("//"
// for GAS, "*" for HLASM).
func (w *AsmWriter) Comment(prefix, text string) {
	w.b.WriteByte('\t')
	w.b.WriteString(prefix)
	w.b.WriteByte(' ')
	w.b.WriteString(text)
	w.b.WriteByte('\n')
}

func (w *AsmWriter) String() string { return w.b.String() }
