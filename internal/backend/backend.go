// Package backend implements the retargetable backend framework of
// spec.md §4.8: an architecture descriptor, per-function frame layout,
// a value-location bookkeeping scheme, and the dispatch protocol a
// concrete target (internal/backend/arm64r, internal/backend/s390m)
// implements to turn internal/ir into assembly text.
//
// Grounded on gen/regalloc.go's RegAllocator (virtToPhys map, spill
// slots past frameSize, Reset per block, callee-saved tracking)
// generalized from YAPL's fixed 8-register linear-scan model to a
// retargetable one driven by ArchInfo.GPRCount, and on gen/codegen.go's
// function-pointer-table dispatch, re-architected per spec §9 Design
// Notes into a Backend interface with one EmitInstruction per opcode.
package backend

import (
	"retargetc/internal/ir"
	"retargetc/internal/peephole"
	"retargetc/internal/types"
)

// localsSizeOf sums every alloca's element size in the function, in
// allocation order (spec §4.8 step 2 "locals" region). Offsets within
// the region are assigned by the register allocator as it walks
// allocas; this just totals the bytes the region needs.
func localsSizeOf(ctx *types.Context, fn *ir.Function) int {
	total := 0
	for _, b := range fn.Blocks {
		for _, insn := range b.Insns {
			if insn.Op == ir.OpAlloca {
				total += alignUp(insn.ElemType.Sizeof(ctx), 8)
			}
		}
	}
	return total
}

// outgoingArgBytesOf returns the largest stack-passed-argument area any
// call in the function needs, beyond what fits in argument registers
// (spec §4.8 step 2 "outgoing-argument area").
func outgoingArgBytesOf(arch ArchInfo, fn *ir.Function) int {
	max := 0
	wordBytes := arch.WordBits / 8
	for _, b := range fn.Blocks {
		for _, insn := range b.Insns {
			if insn.Op != ir.OpCall {
				continue
			}
			argRegs := 8
			if len(insn.Args) > argRegs {
				n := (len(insn.Args) - argRegs) * wordBytes
				if n > max {
					max = n
				}
			}
		}
	}
	return max
}

// ArchInfo enumerates architecture invariants (spec §4.8 "arch_info").
type ArchInfo struct {
	Name             string
	PointerBits      int
	AddressBits      int // may be narrower than PointerBits (mainframe 24/31-bit addressing)
	WordBits         int
	GPRCount         int
	FPRCount         int
	BigEndian        bool
	StackGrowsUp     bool
	StackAlignBytes  int
	HasConditionCode bool
	HasDelaySlots    bool
	DataModel        types.DataModel
}

// ValueLocation records where one IR value currently lives (spec §9
// Design Notes: "a map from stable value identity to a ValueLocation",
// replacing the teacher's parallel growable-array-of-offsets design).
type ValueLocation struct {
	InReg    bool
	Reg      int
	OnStack  bool
	StackOff int
	IsConst  bool
	ConstInt uint64
	IsGlobal bool
	GlobalID string
}

// FrameLayout is the result of frame-layout analysis (spec §4.8 step 2):
// byte offsets for each region, relative to the frame's own base, plus
// the total size rounded up to the ABI's stack alignment.
type FrameLayout struct {
	CalleeSavedOffset int
	CalleeSavedSize   int
	LocalsOffset      int
	LocalsSize        int
	SpillOffset       int
	SpillSize         int
	ParamSaveOffset   int
	ParamSaveSize     int
	OutgoingArgOffset int
	OutgoingArgSize   int
	TotalSize         int
	IsLeaf            bool
}

// ComputeFrameLayout lays out a function's frame per spec §4.8 step 2,
// returning sizes the backend's prologue/epilogue emitters consume.
// localsSize is the function's total alloca size (localsSizeOf), before
// spill slots; spillSize and outgoingArgSize are filled in by the
// backend's register allocator and call-argument scan respectively.
func ComputeFrameLayout(arch ArchInfo, localsSize, spillSize, outgoingArgSize int, calleeSavedRegs int, isLeaf bool) FrameLayout {
	wordBytes := arch.WordBits / 8
	fl := FrameLayout{IsLeaf: isLeaf}

	off := 0
	fl.CalleeSavedOffset = off
	fl.CalleeSavedSize = calleeSavedRegs * wordBytes
	off += fl.CalleeSavedSize

	fl.LocalsOffset = off
	fl.LocalsSize = localsSize
	off += fl.LocalsSize

	fl.SpillOffset = off
	fl.SpillSize = spillSize
	off += fl.SpillSize

	fl.ParamSaveOffset = off
	fl.ParamSaveSize = 0 // set by a backend that needs a register-parameter save area
	off += fl.ParamSaveSize

	fl.OutgoingArgOffset = off
	fl.OutgoingArgSize = outgoingArgSize
	off += fl.OutgoingArgSize

	fl.TotalSize = alignUp(off, arch.StackAlignBytes)
	return fl
}

func alignUp(n, align int) int {
	if align <= 1 {
		return n
	}
	return (n + align - 1) &^ (align - 1)
}

// Backend is the interface a concrete target implements (spec §4.8/§9
// "Dispatch": "the backend exposes... implements the same small
// operation set; the framework holds one implementation at a time").
type Backend interface {
	Info() ArchInfo

	// Prologue/Epilogue emit the function entry/exit sequences for the
	// given layout, writing assembly lines to out.
	Prologue(fn *ir.Function, layout FrameLayout, out *AsmWriter)
	Epilogue(fn *ir.Function, layout FrameLayout, out *AsmWriter)

	// EmitInstruction lowers one IR instruction to assembly text, using
	// locs to resolve each argument's current location and alloc to
	// assign the result's location (spec §4.8 step 3: "for each
	// operand, invoke the value-loader...").
	EmitInstruction(insn *ir.Instruction, locs *LocationMap, alloc *RegAlloc, out *AsmWriter)

	// EmitGlobal emits one module-scope data object's storage directive.
	EmitGlobal(g *ir.Global, out *AsmWriter)

	// FuncLabel and BlockLabel produce the target's symbol-naming
	// convention (spec §4.9 Backend B: "labels combine FUNC$BLOCK").
	FuncLabel(name string) string
	BlockLabel(fn, block string) string
}

// Generate drives one module through a Backend: globals first, then the
// module's asm passthrough text, then each defined function through
// GenerateFunction (frame layout, prologue/body/epilogue).
func Generate(b Backend, ctx *types.Context, mod *ir.Module) string {
	out := &AsmWriter{}
	for _, g := range mod.Globals {
		b.EmitGlobal(g, out)
	}
	for _, text := range mod.Asms {
		out.Insn(text)
	}
	for _, fn := range mod.Functions {
		if !fn.Defined {
			continue
		}
		GenerateFunction(b, ctx, fn, out)
	}
	return out.String()
}

// GenerateFunction implements spec §4.8 steps 1-3 for one function:
// compute frame layout, run the peephole-aware register allocator, and
// dispatch every instruction to the backend.
func GenerateFunction(b Backend, ctx *types.Context, fn *ir.Function, out *AsmWriter) {
	fn.ComputePreds()
	peephole.Run(fn)
	isLeaf := isLeafFunc(fn)
	arch := b.Info()
	alloc := NewRegAlloc(arch, fn)
	locs := NewLocationMap()

	for i, p := range fn.Params {
		loc := alloc.AllocParam(i)
		locs.Set(p, loc)
	}

	layout := ComputeFrameLayout(arch, localsSizeOf(ctx, fn), alloc.SpillBytes(), outgoingArgBytesOf(arch, fn), alloc.UsedCalleeSaved(), isLeaf)

	out.Label(b.FuncLabel(fn.Name))
	b.Prologue(fn, layout, out)
	for _, blk := range fn.Blocks {
		out.Label(b.BlockLabel(fn.Name, blk.Name))
		for _, insn := range blk.Insns {
			b.EmitInstruction(insn, locs, alloc, out)
		}
	}
	b.Epilogue(fn, layout, out)
}

func isLeafFunc(fn *ir.Function) bool {
	for _, b := range fn.Blocks {
		for _, insn := range b.Insns {
			if insn.Op == ir.OpCall {
				return false
			}
		}
	}
	return true
}
