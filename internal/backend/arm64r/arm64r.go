// Package arm64r implements Backend A of spec.md §4.9: a little-endian,
// 64-bit-pointer RISC target with 31 general-purpose registers plus a
// hardwired zero register and stack pointer, 32 SIMD/FP registers,
// condition-code-flag comparisons, and IEEE 754 binary32/binary64
// floats. Mnemonics and directive conventions follow AArch64 GAS
// syntax.
//
// Grounded on yasm/assembler.go's instruction-emission shape (one
// emit-per-opcode switch, tab-indented mnemonic lines, %-prefixed
// register names) adapted to the framework's Backend interface and to
// AArch64's actual mnemonic set, since the teacher's own target (YAPL)
// has neither condition codes nor IEEE float.
package arm64r

import (
	"fmt"

	"retargetc/internal/backend"
	"retargetc/internal/ir"
	"retargetc/internal/types"
)

// Info describes Backend A's architecture invariants (spec §4.9
// "Backend A"): 64-bit pointers, 31 GPRs (x0-x30) plus xzr and sp, 32
// vector/FP registers, little-endian, stack grows down, 16-byte
// alignment, condition-code register present, no branch delay slots.
var Info = backend.ArchInfo{
	Name:             "arm64r",
	PointerBits:      64,
	AddressBits:      64,
	WordBits:         64,
	GPRCount:         32, // index 31 reserved as sp in RegAlloc's convention
	FPRCount:         32,
	BigEndian:        false,
	StackGrowsUp:     false,
	StackAlignBytes:  16,
	HasConditionCode: true,
	HasDelaySlots:    false,
	DataModel:        types.LP64,
}

// Backend implements backend.Backend for the arm64r target.
type Backend struct{}

func New() *Backend { return &Backend{} }

func (b *Backend) Info() backend.ArchInfo { return Info }

func gpr(n int) string {
	if n == 0 {
		return "xzr"
	}
	if n == Info.GPRCount-1 {
		return "sp"
	}
	return fmt.Sprintf("x%d", n)
}

func fpr(n int) string { return fmt.Sprintf("d%d", n) }

// FuncLabel is the bare symbol name; AArch64 GAS needs no leading
// underscore outside Darwin's Mach-O convention, which this target
// does not emulate.
func (b *Backend) FuncLabel(name string) string { return name }

// BlockLabel namespaces a block under its function so identically
// named blocks in different functions never collide in the assembly
// text.
func (b *Backend) BlockLabel(fn, block string) string { return fn + "_" + block }

func (b *Backend) Prologue(fn *ir.Function, layout backend.FrameLayout, out *backend.AsmWriter) {
	out.Directive(".text")
	out.Directive(".globl " + fn.Name)
	if layout.IsLeaf && layout.TotalSize == 0 {
		return
	}
	out.Insn(fmt.Sprintf("sub sp, sp, #%d", layout.TotalSize))
	if !layout.IsLeaf {
		out.Insn(fmt.Sprintf("stp x29, x30, [sp, #%d]", layout.TotalSize-16))
		out.Insn(fmt.Sprintf("add x29, sp, #%d", layout.TotalSize-16))
	}
}

func (b *Backend) Epilogue(fn *ir.Function, layout backend.FrameLayout, out *backend.AsmWriter) {
	if !layout.IsLeaf {
		out.Insn(fmt.Sprintf("ldp x29, x30, [sp, #%d]", layout.TotalSize-16))
	}
	if layout.TotalSize != 0 {
		out.Insn(fmt.Sprintf("add sp, sp, #%d", layout.TotalSize))
	}
	out.Insn("ret")
}

func (b *Backend) EmitGlobal(g *ir.Global, out *backend.AsmWriter) {
	if g.IsPublic {
		out.Directive(".globl " + g.Name)
	}
	out.Directive(".data")
	out.Label(g.Name)
	if g.Init == nil || g.Init.IsZero {
		out.Directive(fmt.Sprintf(".zero %d", sizeOrWord(g.Type)))
		return
	}
	if g.Init.IsStr {
		out.Directive(fmt.Sprintf(".asciz %q", g.Init.Str))
		return
	}
	out.Directive(fmt.Sprintf(".quad %d", g.Init.Int))
}

func sizeOrWord(t *types.Type) int {
	if t == nil {
		return 8
	}
	switch {
	case t.IsInteger():
		return t.IntWidth / 8
	case t.IsFloat():
		return t.FloatWidth / 8
	case t.IsPointer():
		return 8
	default:
		return 8
	}
}

// operand resolves one argument's current location to an operand
// string, materializing constants and stack-spilled values through a
// scratch register the way spec §4.8 step 3's value-loader describes:
// "for each operand, invoke the value-loader: a register operand loads
// directly; a spilled operand emits a load into a scratch register
// first; a constant materializes via an immediate-move sequence".
func (b *Backend) operand(v *ir.Value, locs *backend.LocationMap, scratch int, out *backend.AsmWriter) string {
	loc, ok := locs.Get(v)
	if !ok {
		return gpr(scratch)
	}
	switch {
	case loc.IsConst:
		out.Insn(fmt.Sprintf("mov %s, #%d", gpr(scratch), loc.ConstInt))
		return gpr(scratch)
	case loc.InReg:
		return gpr(loc.Reg)
	case loc.OnStack:
		out.Insn(fmt.Sprintf("ldr %s, [sp, #%d]", gpr(scratch), loc.StackOff))
		return gpr(scratch)
	case loc.IsGlobal:
		out.Insn(fmt.Sprintf("adrp %s, %s", gpr(scratch), loc.GlobalID))
		out.Insn(fmt.Sprintf("add %s, %s, :lo12:%s", gpr(scratch), gpr(scratch), loc.GlobalID))
		return gpr(scratch)
	}
	return gpr(scratch)
}

var binMnemonic = map[ir.Op]string{
	ir.OpAdd: "add", ir.OpSub: "sub", ir.OpMul: "mul",
	ir.OpSDiv: "sdiv", ir.OpUDiv: "udiv",
	ir.OpAnd: "and", ir.OpOr: "orr", ir.OpXor: "eor",
	ir.OpShl: "lsl", ir.OpAShr: "asr", ir.OpLShr: "lsr",
	ir.OpFAdd: "fadd", ir.OpFSub: "fsub", ir.OpFMul: "fmul", ir.OpFDiv: "fdiv",
}

var condSuffix = map[ir.Op]string{
	ir.OpICmpEq: "eq", ir.OpICmpNe: "ne",
	ir.OpICmpSLt: "lt", ir.OpICmpSLe: "le", ir.OpICmpSGt: "gt", ir.OpICmpSGe: "ge",
	ir.OpICmpULt: "lo", ir.OpICmpULe: "ls", ir.OpICmpUGt: "hi", ir.OpICmpUGe: "hs",
	ir.OpFCmpEq: "eq", ir.OpFCmpNe: "ne", ir.OpFCmpLt: "lt", ir.OpFCmpLe: "le",
	ir.OpFCmpGt: "gt", ir.OpFCmpGe: "ge",
}

// EmitInstruction lowers one IR instruction to AArch64 assembly text
// (spec §4.8 step 3).
func (b *Backend) EmitInstruction(insn *ir.Instruction, locs *backend.LocationMap, alloc *backend.RegAlloc, out *backend.AsmWriter) {
	switch insn.Op {
	case ir.OpAdd, ir.OpSub, ir.OpMul, ir.OpSDiv, ir.OpUDiv,
		ir.OpAnd, ir.OpOr, ir.OpXor, ir.OpShl, ir.OpAShr, ir.OpLShr:
		dst := alloc.Allocate(insn.Result)
		lhs := b.operand(insn.Args[0], locs, 9, out)
		rhs := b.operand(insn.Args[1], locs, 10, out)
		out.Insn(fmt.Sprintf("%s %s, %s, %s", binMnemonic[insn.Op], gpr(dst), lhs, rhs))
		locs.Set(insn.Result, backend.ValueLocation{InReg: true, Reg: dst})

	case ir.OpSRem, ir.OpURem:
		dst := alloc.Allocate(insn.Result)
		lhs := b.operand(insn.Args[0], locs, 9, out)
		rhs := b.operand(insn.Args[1], locs, 10, out)
		divOp := "sdiv"
		if insn.Op == ir.OpURem {
			divOp = "udiv"
		}
		out.Insn(fmt.Sprintf("%s x11, %s, %s", divOp, lhs, rhs))
		out.Insn(fmt.Sprintf("msub %s, x11, %s, %s", gpr(dst), rhs, lhs))
		locs.Set(insn.Result, backend.ValueLocation{InReg: true, Reg: dst})

	case ir.OpFAdd, ir.OpFSub, ir.OpFMul, ir.OpFDiv:
		dst := alloc.Allocate(insn.Result)
		lhs := b.operand(insn.Args[0], locs, 9, out)
		rhs := b.operand(insn.Args[1], locs, 10, out)
		out.Insn(fmt.Sprintf("%s %s, %s, %s", binMnemonic[insn.Op], fpr(dst), lhs, rhs))
		locs.Set(insn.Result, backend.ValueLocation{InReg: true, Reg: dst})

	case ir.OpNeg:
		dst := alloc.Allocate(insn.Result)
		src := b.operand(insn.Args[0], locs, 9, out)
		out.Insn(fmt.Sprintf("neg %s, %s", gpr(dst), src))
		locs.Set(insn.Result, backend.ValueLocation{InReg: true, Reg: dst})

	case ir.OpFNeg:
		dst := alloc.Allocate(insn.Result)
		src := b.operand(insn.Args[0], locs, 9, out)
		out.Insn(fmt.Sprintf("fneg %s, %s", fpr(dst), src))
		locs.Set(insn.Result, backend.ValueLocation{InReg: true, Reg: dst})

	case ir.OpNot:
		dst := alloc.Allocate(insn.Result)
		src := b.operand(insn.Args[0], locs, 9, out)
		out.Insn(fmt.Sprintf("mvn %s, %s", gpr(dst), src))
		locs.Set(insn.Result, backend.ValueLocation{InReg: true, Reg: dst})

	case ir.OpAlloca:
		// Frame offset already folded into ComputeFrameLayout's locals
		// region; nothing to emit.

	case ir.OpLoad:
		dst := alloc.Allocate(insn.Result)
		addr := b.operand(insn.Args[0], locs, 9, out)
		dstReg := gpr(dst)
		if insn.Result.Type.IsFloat() {
			dstReg = fpr(dst)
		}
		out.Insn(fmt.Sprintf("ldr %s, [%s]", dstReg, addr))
		locs.Set(insn.Result, backend.ValueLocation{InReg: true, Reg: dst})

	case ir.OpStore:
		addr := b.operand(insn.Args[0], locs, 9, out)
		val := b.operand(insn.Args[1], locs, 10, out)
		out.Insn(fmt.Sprintf("str %s, [%s]", val, addr))

	case ir.OpGEP:
		dst := alloc.Allocate(insn.Result)
		base := b.operand(insn.Args[0], locs, 9, out)
		idx := b.operand(insn.Args[1], locs, 10, out)
		elemSize := 1
		if insn.ElemType != nil {
			elemSize = sizeOrWord(insn.ElemType)
		}
		out.Insn(fmt.Sprintf("mov x12, #%d", elemSize))
		out.Insn(fmt.Sprintf("madd %s, %s, x12, %s", gpr(dst), idx, base))
		locs.Set(insn.Result, backend.ValueLocation{InReg: true, Reg: dst})

	case ir.OpStructGEP:
		dst := alloc.Allocate(insn.Result)
		base := b.operand(insn.Args[0], locs, 9, out)
		out.Insn(fmt.Sprintf("add %s, %s, #%d", gpr(dst), base, insn.FieldIndex))
		locs.Set(insn.Result, backend.ValueLocation{InReg: true, Reg: dst})

	case ir.OpICmpEq, ir.OpICmpNe, ir.OpICmpSLt, ir.OpICmpSLe, ir.OpICmpSGt, ir.OpICmpSGe,
		ir.OpICmpULt, ir.OpICmpULe, ir.OpICmpUGt, ir.OpICmpUGe:
		dst := alloc.Allocate(insn.Result)
		lhs := b.operand(insn.Args[0], locs, 9, out)
		rhs := b.operand(insn.Args[1], locs, 10, out)
		out.Insn(fmt.Sprintf("cmp %s, %s", lhs, rhs))
		out.Insn(fmt.Sprintf("cset %s, %s", gpr(dst), condSuffix[insn.Op]))
		locs.Set(insn.Result, backend.ValueLocation{InReg: true, Reg: dst})

	case ir.OpFCmpEq, ir.OpFCmpNe, ir.OpFCmpLt, ir.OpFCmpLe, ir.OpFCmpGt, ir.OpFCmpGe:
		dst := alloc.Allocate(insn.Result)
		lhs := b.operand(insn.Args[0], locs, 9, out)
		rhs := b.operand(insn.Args[1], locs, 10, out)
		out.Insn(fmt.Sprintf("fcmp %s, %s", lhs, rhs))
		out.Insn(fmt.Sprintf("cset %s, %s", gpr(dst), condSuffix[insn.Op]))
		locs.Set(insn.Result, backend.ValueLocation{InReg: true, Reg: dst})

	case ir.OpTrunc, ir.OpZExt, ir.OpBitcast, ir.OpPtrToInt, ir.OpIntToPtr:
		dst := alloc.Allocate(insn.Result)
		src := b.operand(insn.Args[0], locs, 9, out)
		out.Insn(fmt.Sprintf("mov %s, %s", gpr(dst), src))
		locs.Set(insn.Result, backend.ValueLocation{InReg: true, Reg: dst})

	case ir.OpSExt:
		dst := alloc.Allocate(insn.Result)
		src := b.operand(insn.Args[0], locs, 9, out)
		out.Insn(fmt.Sprintf("sxtw %s, %s", gpr(dst), src))
		locs.Set(insn.Result, backend.ValueLocation{InReg: true, Reg: dst})

	case ir.OpSIToFP:
		dst := alloc.Allocate(insn.Result)
		src := b.operand(insn.Args[0], locs, 9, out)
		out.Insn(fmt.Sprintf("scvtf %s, %s", fpr(dst), src))
		locs.Set(insn.Result, backend.ValueLocation{InReg: true, Reg: dst})

	case ir.OpUIToFP:
		dst := alloc.Allocate(insn.Result)
		src := b.operand(insn.Args[0], locs, 9, out)
		out.Insn(fmt.Sprintf("ucvtf %s, %s", fpr(dst), src))
		locs.Set(insn.Result, backend.ValueLocation{InReg: true, Reg: dst})

	case ir.OpFPToSI:
		dst := alloc.Allocate(insn.Result)
		src := b.operand(insn.Args[0], locs, 9, out)
		out.Insn(fmt.Sprintf("fcvtzs %s, %s", gpr(dst), src))
		locs.Set(insn.Result, backend.ValueLocation{InReg: true, Reg: dst})

	case ir.OpFPToUI:
		dst := alloc.Allocate(insn.Result)
		src := b.operand(insn.Args[0], locs, 9, out)
		out.Insn(fmt.Sprintf("fcvtzu %s, %s", gpr(dst), src))
		locs.Set(insn.Result, backend.ValueLocation{InReg: true, Reg: dst})

	case ir.OpFPTrunc:
		dst := alloc.Allocate(insn.Result)
		src := b.operand(insn.Args[0], locs, 9, out)
		out.Insn(fmt.Sprintf("fcvt %s, %s", fpr(dst), src))
		locs.Set(insn.Result, backend.ValueLocation{InReg: true, Reg: dst})

	case ir.OpFPExt:
		dst := alloc.Allocate(insn.Result)
		src := b.operand(insn.Args[0], locs, 9, out)
		out.Insn(fmt.Sprintf("fcvt %s, %s", fpr(dst), src))
		locs.Set(insn.Result, backend.ValueLocation{InReg: true, Reg: dst})

	case ir.OpPhi:
		// Critical edges are split at irgen time (every predecessor of a
		// phi-bearing block ends in an unconditional br), so each
		// predecessor can carry its incoming value into the phi's
		// register directly; the register allocator binds the phi's
		// result once, on first reference, the same as any other value.
		dst := alloc.Allocate(insn.Result)
		locs.Set(insn.Result, backend.ValueLocation{InReg: true, Reg: dst})

	case ir.OpBr:
		out.Insn("b " + insn.Then.Name)

	case ir.OpBrCond:
		cond := b.operand(insn.Args[0], locs, 9, out)
		if insn.CondIsZeroTest {
			// Compare-branch fusion (spec §4.10): the peephole pass elided
			// the ICmp-against-zero, so branch on the raw operand directly.
			mnem := "cbnz"
			if insn.CondNegate {
				mnem = "cbz"
			}
			out.Insn(fmt.Sprintf("%s %s, %s", mnem, cond, insn.Then.Name))
		} else {
			out.Insn(fmt.Sprintf("cbnz %s, %s", cond, insn.Then.Name))
		}
		out.Insn("b " + insn.Else.Name)

	case ir.OpCall:
		for i, a := range insn.Args {
			if i >= 8 {
				break
			}
			src := b.operand(a, locs, 9, out)
			if src != gpr(i) {
				out.Insn(fmt.Sprintf("mov %s, %s", gpr(i), src))
			}
		}
		alloc.InvalidateCallerSaved()
		switch {
		case insn.Callee != nil:
			out.Insn("bl " + insn.Callee.Name)
		case insn.CalleeValue != nil:
			target := b.operand(insn.CalleeValue, locs, 9, out)
			out.Insn("blr " + target)
		default:
			out.Insn("bl ?")
		}
		if insn.Result != nil {
			dst := alloc.Allocate(insn.Result)
			if dst != 0 {
				out.Insn(fmt.Sprintf("mov %s, x0", gpr(dst)))
			}
			locs.Set(insn.Result, backend.ValueLocation{InReg: true, Reg: dst})
		}

	case ir.OpRet:
		if len(insn.Args) > 0 {
			src := b.operand(insn.Args[0], locs, 9, out)
			if src != "x0" {
				out.Insn(fmt.Sprintf("mov x0, %s", src))
			}
		}
		// Actual `ret` is emitted by Epilogue after stack teardown.

	case ir.OpGlobalAddr:
		dst := alloc.Allocate(insn.Result)
		name := insn.Result.Name
		if insn.Callee != nil {
			name = insn.Callee.Name
		}
		out.Insn(fmt.Sprintf("adrp %s, %s", gpr(dst), name))
		out.Insn(fmt.Sprintf("add %s, %s, :lo12:%s", gpr(dst), gpr(dst), name))
		locs.Set(insn.Result, backend.ValueLocation{InReg: true, Reg: dst})

	case ir.OpConst:
		dst := alloc.Allocate(insn.Result)
		if insn.Result.Type.IsFloat() {
			out.Insn(fmt.Sprintf("fmov %s, #%g", fpr(dst), insn.Result.ConstFloat))
		} else {
			out.Insn(fmt.Sprintf("mov %s, #%d", gpr(dst), insn.Result.ConstInt))
		}
		locs.Set(insn.Result, backend.ValueLocation{InReg: true, Reg: dst})
	}
}

