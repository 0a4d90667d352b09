// Package s390m implements Backend B of spec.md §4.9: a big-endian
// mainframe target with 16 general-purpose registers, 24/31-bit
// addressing, 4 usable even-indexed floating-point registers carrying
// hexadecimal (not IEEE 754) floating point, even/odd register-pair
// multiply and divide, and HLASM assembler syntax: uppercased symbol
// names and `FUNC$BLOCK`-style block labels to avoid cross-function
// collisions.
//
// Grounded on yasm/assembler.go's printCapitalSymbols convention
// (generalized here into the FuncLabel/BlockLabel uppercasing this
// target always applies, not an opt-in flag) and on gen/regalloc.go's
// register-pair handling for multiply, adapted from YAPL's flat 8
// registers to S/390's R0-R15, with R0 and R15 kept out of general
// allocation (RegAlloc's reserved first and last registers) and R1-R4
// carrying call arguments.
package s390m

import (
	"fmt"
	"strconv"
	"strings"

	"retargetc/internal/backend"
	"retargetc/internal/ir"
	"retargetc/internal/types"
)

// Info describes Backend B's architecture invariants (spec §4.9
// "Backend B"): 31-bit addresses inside 32-bit words, 16 GPRs, 4
// usable FPRs (0, 2, 4, 6 under the even-indexed pairing rule),
// big-endian, stack grows up, 8-byte (doubleword) alignment, no
// condition-code-free compare (the PSW condition code is the S/390
// architecture's native comparison mechanism), no delay slots.
var Info = backend.ArchInfo{
	Name:             "s390m",
	PointerBits:      32,
	AddressBits:      31,
	WordBits:         32,
	GPRCount:         16,
	FPRCount:         4,
	BigEndian:        true,
	StackGrowsUp:     true,
	StackAlignBytes:  8,
	HasConditionCode: true,
	HasDelaySlots:    false,
	DataModel:        types.ILP32,
}

// Backend implements backend.Backend for the s390m target.
type Backend struct {
	trapEmitted bool
}

func New() *Backend { return &Backend{} }

func (b *Backend) Info() backend.ArchInfo { return Info }

func gpr(n int) string { return "R" + strconv.Itoa(n) }

// fpr maps an allocator index onto one of the 4 usable even-indexed FP
// registers (0, 2, 4, 6); S/390 hexadecimal floating point only permits
// register pairs at even indices, so the odd half of each pair is
// never independently addressable (spec §4.9: "4 usable even-indexed
// FP registers").
func fpr(n int) string { return "F" + strconv.Itoa((n%4)*2) }

// up uppercases every symbol this backend emits (spec §4.9: HLASM
// assemblers fold/require uppercase symbols), generalizing
// yasm/assembler.go's printCapitalSymbols from an opt-in flag into this
// target's permanent convention.
func up(s string) string { return strings.ToUpper(s) }

// FuncLabel uppercases the function name per HLASM convention.
func (b *Backend) FuncLabel(name string) string { return up(name) }

// BlockLabel uses the `FUNC$BLOCK` convention (spec §4.9) so a block
// named e.g. "bb3" in two different functions never collides in
// HLASM's single flat label namespace.
func (b *Backend) BlockLabel(fn, block string) string { return up(fn) + "$" + up(block) }

func (b *Backend) Prologue(fn *ir.Function, layout backend.FrameLayout, out *backend.AsmWriter) {
	if !b.trapEmitted {
		b.emitConvOverflowTrap(out)
		b.trapEmitted = true
	}
	out.Directive(up(fn.Name) + " CSECT")
	out.Directive("     STM   R14,R12,12(R13)")
	if layout.TotalSize > 0 {
		out.Insn(fmt.Sprintf("LA    R13,%d(,R13)", layout.TotalSize))
	}
}

// emitConvOverflowTrap emits the one shared landing pad every
// int-to-float conversion's overflow check branches to: it reports the
// out-of-range magic-number conversion rather than letting it wrap
// silently (spec.md Open Question decision, see DESIGN.md).
func (b *Backend) emitConvOverflowTrap(out *backend.AsmWriter) {
	out.Label("$CONVOVF")
	out.Comment("*", "int-to-float conversion overflowed the +/-2^31 magic-number window")
	out.Insn("L     R15,=A($$CONVTRAPMSG)")
	out.Insn("SVC   255")
}

func (b *Backend) Epilogue(fn *ir.Function, layout backend.FrameLayout, out *backend.AsmWriter) {
	if layout.TotalSize > 0 {
		out.Insn(fmt.Sprintf("LA    R13,-%d(,R13)", layout.TotalSize))
	}
	out.Insn("LM    R14,R12,12(R13)")
	out.Insn("BR    R14")
}

func (b *Backend) EmitGlobal(g *ir.Global, out *backend.AsmWriter) {
	name := up(g.Name)
	out.Label(name)
	if g.Init == nil || g.Init.IsZero {
		out.Directive(fmt.Sprintf("     DS    %dC", sizeOrWord(g.Type)))
		return
	}
	if g.Init.IsStr {
		out.Directive(fmt.Sprintf("     DC    C%q", g.Init.Str))
		return
	}
	out.Directive(fmt.Sprintf("     DC    F'%d'", int32(g.Init.Int)))
}

func sizeOrWord(t *types.Type) int {
	if t == nil {
		return 4
	}
	switch {
	case t.IsInteger():
		return t.IntWidth / 8
	case t.IsFloat():
		return t.FloatWidth / 8
	case t.IsPointer():
		return 4
	default:
		return 4
	}
}

func (b *Backend) operand(v *ir.Value, locs *backend.LocationMap, scratch int, out *backend.AsmWriter) string {
	loc, ok := locs.Get(v)
	if !ok {
		return gpr(scratch)
	}
	switch {
	case loc.IsConst:
		out.Insn(fmt.Sprintf("L     %s,=F'%d'", gpr(scratch), int32(loc.ConstInt)))
		return gpr(scratch)
	case loc.InReg:
		return gpr(loc.Reg)
	case loc.OnStack:
		out.Insn(fmt.Sprintf("L     %s,%d(,R13)", gpr(scratch), loc.StackOff))
		return gpr(scratch)
	case loc.IsGlobal:
		out.Insn(fmt.Sprintf("L     %s,%s", gpr(scratch), up(loc.GlobalID)))
		return gpr(scratch)
	}
	return gpr(scratch)
}

var binMnemonic = map[ir.Op]string{
	ir.OpAdd: "AR", ir.OpSub: "SR", ir.OpAnd: "NR", ir.OpOr: "OR", ir.OpXor: "XR",
}

// Conditions are tested with a preceding compare; branchMask carries
// the BC condition-code mask under which each integer compare holds,
// which the ICmp lowering uses to materialize a 0/1 result.
var branchMask = map[ir.Op]string{
	ir.OpICmpEq: "8", ir.OpICmpNe: "7",
	ir.OpICmpSLt: "4", ir.OpICmpSLe: "C", ir.OpICmpSGt: "2", ir.OpICmpSGe: "A",
	ir.OpICmpULt: "4", ir.OpICmpULe: "C", ir.OpICmpUGt: "2", ir.OpICmpUGe: "A",
}

// EmitInstruction lowers one IR instruction to S/390 assembly text
// (spec §4.8 step 3, §4.9 Backend B specifics).
func (b *Backend) EmitInstruction(insn *ir.Instruction, locs *backend.LocationMap, alloc *backend.RegAlloc, out *backend.AsmWriter) {
	switch insn.Op {
	case ir.OpAdd, ir.OpSub, ir.OpAnd, ir.OpOr, ir.OpXor:
		dst := alloc.Allocate(insn.Result)
		lhs := b.operand(insn.Args[0], locs, 2, out)
		rhs := b.operand(insn.Args[1], locs, 3, out)
		if lhs != gpr(dst) {
			out.Insn(fmt.Sprintf("LR    %s,%s", gpr(dst), lhs))
		}
		out.Insn(fmt.Sprintf("%s    %s,%s", binMnemonic[insn.Op], gpr(dst), rhs))
		locs.Set(insn.Result, backend.ValueLocation{InReg: true, Reg: dst})

	case ir.OpMul:
		// S/390 MR multiplies the odd register of an even/odd pair by
		// the operand, leaving a double-length product in the pair; the
		// even register (the pair's low member here) is discarded and
		// the odd holds the 32-bit truncated result (spec §4.9:
		// "even/odd register-pair multiply").
		dst := alloc.Allocate(insn.Result)
		lhs := b.operand(insn.Args[0], locs, 2, out)
		rhs := b.operand(insn.Args[1], locs, 3, out)
		out.Insn(fmt.Sprintf("LR    R3,%s", lhs))
		out.Insn(fmt.Sprintf("MR    R2,%s", rhs))
		out.Insn(fmt.Sprintf("LR    %s,R3", gpr(dst)))
		locs.Set(insn.Result, backend.ValueLocation{InReg: true, Reg: dst})

	case ir.OpSDiv, ir.OpSRem:
		// SRDA shifts the dividend's sign through the pair before
		// dividing (spec §4.9: "SRDA 32 sign-extended division").
		dst := alloc.Allocate(insn.Result)
		lhs := b.operand(insn.Args[0], locs, 3, out)
		rhs := b.operand(insn.Args[1], locs, 4, out)
		out.Insn(fmt.Sprintf("LR    R3,%s", lhs))
		out.Insn("SRDA  R2,32")
		out.Insn(fmt.Sprintf("DR    R2,%s", rhs))
		if insn.Op == ir.OpSRem {
			out.Insn(fmt.Sprintf("LR    %s,R2", gpr(dst)))
		} else {
			out.Insn(fmt.Sprintf("LR    %s,R3", gpr(dst)))
		}
		locs.Set(insn.Result, backend.ValueLocation{InReg: true, Reg: dst})

	case ir.OpUDiv, ir.OpURem:
		dst := alloc.Allocate(insn.Result)
		lhs := b.operand(insn.Args[0], locs, 3, out)
		rhs := b.operand(insn.Args[1], locs, 4, out)
		out.Insn(fmt.Sprintf("LR    R3,%s", lhs))
		out.Insn("SLDA  R2,0")
		out.Insn(fmt.Sprintf("DR    R2,%s", rhs))
		if insn.Op == ir.OpURem {
			out.Insn(fmt.Sprintf("LR    %s,R2", gpr(dst)))
		} else {
			out.Insn(fmt.Sprintf("LR    %s,R3", gpr(dst)))
		}
		locs.Set(insn.Result, backend.ValueLocation{InReg: true, Reg: dst})

	case ir.OpShl, ir.OpLShr:
		dst := alloc.Allocate(insn.Result)
		lhs := b.operand(insn.Args[0], locs, 2, out)
		rhs := b.operand(insn.Args[1], locs, 3, out)
		mnem := "SLL"
		if insn.Op == ir.OpLShr {
			mnem = "SRL"
		}
		if lhs != gpr(dst) {
			out.Insn(fmt.Sprintf("LR    %s,%s", gpr(dst), lhs))
		}
		out.Insn(fmt.Sprintf("%s   %s,0(%s)", mnem, gpr(dst), rhs))
		locs.Set(insn.Result, backend.ValueLocation{InReg: true, Reg: dst})

	case ir.OpAShr:
		dst := alloc.Allocate(insn.Result)
		lhs := b.operand(insn.Args[0], locs, 2, out)
		rhs := b.operand(insn.Args[1], locs, 3, out)
		if lhs != gpr(dst) {
			out.Insn(fmt.Sprintf("LR    %s,%s", gpr(dst), lhs))
		}
		out.Insn(fmt.Sprintf("SRA   %s,0(%s)", gpr(dst), rhs))
		locs.Set(insn.Result, backend.ValueLocation{InReg: true, Reg: dst})

	case ir.OpFAdd, ir.OpFSub, ir.OpFMul, ir.OpFDiv:
		dst := alloc.Allocate(insn.Result)
		lhs := b.operand(insn.Args[0], locs, 2, out)
		rhs := b.operand(insn.Args[1], locs, 3, out)
		mnem := map[ir.Op]string{ir.OpFAdd: "AD", ir.OpFSub: "SD", ir.OpFMul: "MD", ir.OpFDiv: "DD"}[insn.Op]
		if lhs != fpr(dst) {
			out.Insn(fmt.Sprintf("LDR   %s,%s", fpr(dst), lhs))
		}
		out.Insn(fmt.Sprintf("%s    %s,%s", mnem, fpr(dst), rhs))
		locs.Set(insn.Result, backend.ValueLocation{InReg: true, Reg: dst})

	case ir.OpNeg:
		dst := alloc.Allocate(insn.Result)
		src := b.operand(insn.Args[0], locs, 2, out)
		out.Insn(fmt.Sprintf("LCR   %s,%s", gpr(dst), src))
		locs.Set(insn.Result, backend.ValueLocation{InReg: true, Reg: dst})

	case ir.OpFNeg:
		dst := alloc.Allocate(insn.Result)
		src := b.operand(insn.Args[0], locs, 2, out)
		out.Insn(fmt.Sprintf("LCDR  %s,%s", fpr(dst), src))
		locs.Set(insn.Result, backend.ValueLocation{InReg: true, Reg: dst})

	case ir.OpNot:
		dst := alloc.Allocate(insn.Result)
		src := b.operand(insn.Args[0], locs, 2, out)
		out.Insn(fmt.Sprintf("LR    %s,%s", gpr(dst), src))
		out.Insn(fmt.Sprintf("X     %s,=F'-1'", gpr(dst)))
		locs.Set(insn.Result, backend.ValueLocation{InReg: true, Reg: dst})

	case ir.OpAlloca:
		// Frame offset already folded into ComputeFrameLayout's locals
		// region; nothing to emit.

	case ir.OpLoad:
		dst := alloc.Allocate(insn.Result)
		addr := b.operand(insn.Args[0], locs, 2, out)
		if insn.Result.Type.IsFloat() {
			out.Insn(fmt.Sprintf("LD    %s,0(,%s)", fpr(dst), addr))
		} else {
			out.Insn(fmt.Sprintf("L     %s,0(,%s)", gpr(dst), addr))
		}
		locs.Set(insn.Result, backend.ValueLocation{InReg: true, Reg: dst})

	case ir.OpStore:
		addr := b.operand(insn.Args[0], locs, 2, out)
		val := b.operand(insn.Args[1], locs, 3, out)
		out.Insn(fmt.Sprintf("ST    %s,0(,%s)", val, addr))

	case ir.OpGEP:
		dst := alloc.Allocate(insn.Result)
		base := b.operand(insn.Args[0], locs, 2, out)
		idx := b.operand(insn.Args[1], locs, 3, out)
		elemSize := 1
		if insn.ElemType != nil {
			elemSize = sizeOrWord(insn.ElemType)
		}
		out.Insn(fmt.Sprintf("M     R2,=F'%d'", elemSize))
		out.Insn(fmt.Sprintf("AR    %s,R3", idx))
		out.Insn(fmt.Sprintf("AR    %s,%s", gpr(dst), base))
		locs.Set(insn.Result, backend.ValueLocation{InReg: true, Reg: dst})

	case ir.OpStructGEP:
		dst := alloc.Allocate(insn.Result)
		base := b.operand(insn.Args[0], locs, 2, out)
		if base != gpr(dst) {
			out.Insn(fmt.Sprintf("LR    %s,%s", gpr(dst), base))
		}
		out.Insn(fmt.Sprintf("LA    %s,%d(,%s)", gpr(dst), insn.FieldIndex, gpr(dst)))
		locs.Set(insn.Result, backend.ValueLocation{InReg: true, Reg: dst})

	case ir.OpICmpEq, ir.OpICmpNe, ir.OpICmpSLt, ir.OpICmpSLe, ir.OpICmpSGt, ir.OpICmpSGe,
		ir.OpICmpULt, ir.OpICmpULe, ir.OpICmpUGt, ir.OpICmpUGe:
		dst := alloc.Allocate(insn.Result)
		lhs := b.operand(insn.Args[0], locs, 2, out)
		rhs := b.operand(insn.Args[1], locs, 3, out)
		out.Insn(fmt.Sprintf("CR    %s,%s", lhs, rhs))
		// 0/1 result: LA leaves the condition code alone, and the 4-byte
		// BC skips the 2-byte SR when the condition holds.
		out.Insn(fmt.Sprintf("LA    %s,1", gpr(dst)))
		out.Insn(fmt.Sprintf("BC    %s,*+6", branchMask[insn.Op]))
		out.Insn(fmt.Sprintf("SR    %s,%s", gpr(dst), gpr(dst)))
		locs.Set(insn.Result, backend.ValueLocation{InReg: true, Reg: dst})

	case ir.OpFCmpEq, ir.OpFCmpNe, ir.OpFCmpLt, ir.OpFCmpLe, ir.OpFCmpGt, ir.OpFCmpGe:
		dst := alloc.Allocate(insn.Result)
		lhs := b.operand(insn.Args[0], locs, 2, out)
		rhs := b.operand(insn.Args[1], locs, 3, out)
		out.Insn(fmt.Sprintf("CDR   %s,%s", lhs, rhs))
		locs.Set(insn.Result, backend.ValueLocation{InReg: true, Reg: dst})

	case ir.OpTrunc, ir.OpZExt, ir.OpSExt, ir.OpBitcast, ir.OpPtrToInt, ir.OpIntToPtr:
		dst := alloc.Allocate(insn.Result)
		src := b.operand(insn.Args[0], locs, 2, out)
		if src != gpr(dst) {
			out.Insn(fmt.Sprintf("LR    %s,%s", gpr(dst), src))
		}
		locs.Set(insn.Result, backend.ValueLocation{InReg: true, Reg: dst})

	case ir.OpSIToFP, ir.OpUIToFP:
		// Hexadecimal floating-point conversion via the magic-number
		// technique (spec §4.9): add a bias constant as an integer, then
		// reinterpret the biased word as HFP and subtract the bias in
		// floating point. Correct only within +/-2^31. Per the spec's
		// Open Question ("a conforming implementation should report such
		// overflows"), the bias add's own condition code already flags a
		// fixed-point overflow when the input sits outside that window,
		// so a BO to the shared overflow trap reports it instead of
		// silently producing a wrapped result.
		dst := alloc.Allocate(insn.Result)
		src := b.operand(insn.Args[0], locs, 2, out)
		out.Insn(fmt.Sprintf("A     %s,=F'1200000000'", src))
		out.Insn("BO    $CONVOVF")
		out.Insn(fmt.Sprintf("ST    %s,TEMPCONV", src))
		out.Insn(fmt.Sprintf("LD    %s,TEMPCONV", fpr(dst)))
		out.Insn(fmt.Sprintf("SD    %s,=D'4503599627370496'", fpr(dst)))
		locs.Set(insn.Result, backend.ValueLocation{InReg: true, Reg: dst})

	case ir.OpFPToSI, ir.OpFPToUI:
		dst := alloc.Allocate(insn.Result)
		src := b.operand(insn.Args[0], locs, 2, out)
		out.Insn(fmt.Sprintf("AD    %s,=D'4503599627370496'", src))
		out.Insn(fmt.Sprintf("STD   %s,TEMPCONV", src))
		out.Insn(fmt.Sprintf("L     %s,TEMPCONV+4", gpr(dst)))
		locs.Set(insn.Result, backend.ValueLocation{InReg: true, Reg: dst})

	case ir.OpFPTrunc, ir.OpFPExt:
		dst := alloc.Allocate(insn.Result)
		src := b.operand(insn.Args[0], locs, 2, out)
		if src != fpr(dst) {
			out.Insn(fmt.Sprintf("LDR   %s,%s", fpr(dst), src))
		}
		locs.Set(insn.Result, backend.ValueLocation{InReg: true, Reg: dst})

	case ir.OpPhi:
		dst := alloc.Allocate(insn.Result)
		locs.Set(insn.Result, backend.ValueLocation{InReg: true, Reg: dst})

	case ir.OpBr:
		out.Insn("B     " + insn.Then.Name)

	case ir.OpBrCond:
		cond := b.operand(insn.Args[0], locs, 2, out)
		out.Insn(fmt.Sprintf("LTR   %s,%s", cond, cond))
		if insn.CondIsZeroTest && insn.CondNegate {
			// Compare-branch fusion (spec §4.10): branch-if-zero.
			out.Insn("BE    " + insn.Then.Name)
		} else {
			out.Insn("BNE   " + insn.Then.Name)
		}
		out.Insn("B     " + insn.Else.Name)

	case ir.OpCall:
		for i, a := range insn.Args {
			if i >= 4 {
				break
			}
			src := b.operand(a, locs, 2, out)
			dstReg := gpr(1 + i)
			if src != dstReg {
				out.Insn(fmt.Sprintf("LR    %s,%s", dstReg, src))
			}
		}
		alloc.InvalidateCallerSaved()
		switch {
		case insn.Callee != nil:
			out.Insn("L     R15," + up(insn.Callee.Name))
		case insn.CalleeValue != nil:
			target := b.operand(insn.CalleeValue, locs, 15, out)
			if target != "R15" {
				out.Insn(fmt.Sprintf("LR    R15,%s", target))
			}
		default:
			out.Insn("L     R15,?")
		}
		out.Insn("BALR  R14,R15")
		if insn.Result != nil {
			dst := alloc.Allocate(insn.Result)
			if dst != 0 {
				out.Insn(fmt.Sprintf("LR    %s,R0", gpr(dst)))
			}
			locs.Set(insn.Result, backend.ValueLocation{InReg: true, Reg: dst})
		}

	case ir.OpRet:
		if len(insn.Args) > 0 {
			src := b.operand(insn.Args[0], locs, 2, out)
			if src != "R0" {
				out.Insn(fmt.Sprintf("LR    R0,%s", src))
			}
		}
		// BR R14 is emitted by Epilogue after the stack-pointer pullback.

	case ir.OpGlobalAddr:
		dst := alloc.Allocate(insn.Result)
		name := insn.Result.Name
		if insn.Callee != nil {
			name = insn.Callee.Name
		}
		out.Insn(fmt.Sprintf("LA    %s,%s", gpr(dst), up(name)))
		locs.Set(insn.Result, backend.ValueLocation{InReg: true, Reg: dst})

	case ir.OpConst:
		dst := alloc.Allocate(insn.Result)
		if insn.Result.Type.IsFloat() {
			out.Insn(fmt.Sprintf("LD    %s,=D'%g'", fpr(dst), insn.Result.ConstFloat))
		} else {
			out.Insn(fmt.Sprintf("L     %s,=F'%d'", gpr(dst), int32(insn.Result.ConstInt)))
		}
		locs.Set(insn.Result, backend.ValueLocation{InReg: true, Reg: dst})
	}
}
