// Package peephole implements the IR-level peephole/branch-folding
// pass of spec.md §4.10: dead-store elimination, load-store identity,
// forwarded stores, and compare-then-branch fusion, run to a fixed
// point bounded at 10 iterations per function.
//
// Grounded on ypeep/ypeep.go's optimize(): a fixed-point loop over a
// line list, each iteration rebuilding an address map and scanning for
// single- and two-instruction patterns, flagging matched lines
// LineDeleted rather than slicing them out mid-scan. Ported from that
// text-line-pattern approach to operate directly on internal/ir
// instructions and basic blocks, since this compiler's IR is a real
// typed SSA form rather than ypeep's reassembled-text model: a "live ->
// nop -> skipped by emission" instruction replaces ypeep's
// LineInstruction -> LineDeleted state, and def-use rewriting replaces
// ypeep's label/address-map bookkeeping.
package peephole

import "retargetc/internal/ir"

const maxIterations = 10

// Optimize runs every pattern below against fn to a fixed point,
// stopping early once an iteration makes no change (mirroring ypeep's
// `for { changed := false; ...; if !changed { break } }` loop) and
// otherwise bailing out after maxIterations as a backstop.
func Optimize(fn *ir.Function) {
	for i := 0; i < maxIterations; i++ {
		changed := false
		for _, b := range fn.Blocks {
			if deadStoreElim(b) {
				changed = true
			}
			if loadStoreForward(fn, b) {
				changed = true
			}
		}
		for _, b := range fn.Blocks {
			if compareBranchFusion(b) {
				changed = true
			}
		}
		if !changed {
			return
		}
	}
}

// nop marks an instruction dead without resizing the block's slice
// mid-scan (ypeep's LineDeleted sentinel); a final compaction pass
// drops every nop'd instruction once scanning settles.
func nop(insn *ir.Instruction) { insn.Op = opNop }

// opNop is a local sentinel opcode peephole uses to mark an
// instruction dead; compact() strips every such instruction before
// returning control to the backend, so no other package ever observes
// it.
const opNop = ir.Op(-1)

func isNop(insn *ir.Instruction) bool { return insn.Op == opNop }

// compact removes every nop'd instruction from every block. Run once,
// after Optimize's fixed-point loop, so intermediate iterations can
// keep using block-slice indices without constantly re-slicing.
func compact(fn *ir.Function) {
	for _, b := range fn.Blocks {
		out := b.Insns[:0]
		for _, insn := range b.Insns {
			if !isNop(insn) {
				out = append(out, insn)
			}
		}
		b.Insns = out
	}
}

// Run is the entry point a backend's driver calls: optimize to a fixed
// point, then compact away the dead instructions the passes produced.
func Run(fn *ir.Function) {
	Optimize(fn)
	compact(fn)
}

// sameAddr reports whether two address values are provably identical
// for dead-store/forwarding purposes: the conservative, SSA-identity
// notion ypeep's register-name string equality plays for `stw`/`ldw`
// operand comparison.
func sameAddr(a, b *ir.Value) bool { return a == b }

// deadStoreElim drops a Store that is immediately overwritten by
// another Store to the same address with no load, call, or second
// store's address computation between them (spec §4.10 "dead store
// elimination").
func deadStoreElim(b *ir.Block) bool {
	changed := false
	for i := 0; i < len(b.Insns); i++ {
		si := b.Insns[i]
		if isNop(si) || si.Op != ir.OpStore {
			continue
		}
		for j := i + 1; j < len(b.Insns); j++ {
			sj := b.Insns[j]
			if isNop(sj) {
				continue
			}
			if sj.Op == ir.OpStore && sameAddr(sj.Args[0], si.Args[0]) {
				nop(si)
				changed = true
				break
			}
			if aliasesLoadOrCall(sj, si.Args[0]) {
				break
			}
		}
	}
	return changed
}

// aliasesLoadOrCall reports whether insn could observe addr's current
// value, which blocks dead-store elimination across it: any load,
// call (may read through an escaped pointer), or store to a different
// address (which may alias addr; a store to the same address is handled
// by the caller, not here).
func aliasesLoadOrCall(insn *ir.Instruction, addr *ir.Value) bool {
	switch insn.Op {
	case ir.OpLoad, ir.OpCall:
		return true
	case ir.OpStore:
		return !sameAddr(insn.Args[0], addr)
	default:
		return false
	}
}

// loadStoreForward implements both halves of spec §4.10's
// "load-store identity": a Load immediately following a Store to the
// same address either becomes a no-op (same register already holds the
// value) or is replaced by a move from the stored value, generalized
// from ypeep's `stw rX,rB,N` / `ldw rY,rB,N` pattern to IR-level
// def-use rewriting: every later use of the load's result is
// redirected to the stored value instead, and the load is nop'd.
func loadStoreForward(fn *ir.Function, b *ir.Block) bool {
	changed := false
	for i := 0; i+1 < len(b.Insns); i++ {
		si := b.Insns[i]
		if isNop(si) || si.Op != ir.OpStore {
			continue
		}
		j := nextLive(b, i+1)
		if j < 0 {
			continue
		}
		lj := b.Insns[j]
		if lj.Op != ir.OpLoad || !sameAddr(lj.Args[0], si.Args[0]) {
			continue
		}
		replaceUses(fn, lj.Result, si.Args[1])
		nop(lj)
		changed = true
	}
	return changed
}

func nextLive(b *ir.Block, start int) int {
	for i := start; i < len(b.Insns); i++ {
		if !isNop(b.Insns[i]) {
			return i
		}
	}
	return -1
}

// replaceUses rewrites every instruction argument (and every phi's
// incoming value) in fn that points at old to point at new instead,
// the SSA-level equivalent of ypeep's register-renaming rewrite.
func replaceUses(fn *ir.Function, old, new *ir.Value) {
	if old == new {
		return
	}
	for _, b := range fn.Blocks {
		for _, insn := range b.Insns {
			for k, a := range insn.Args {
				if a == old {
					insn.Args[k] = new
				}
			}
		}
	}
}

// zeroCmpOp reports whether op is an equality comparison suitable for
// compare-branch fusion (spec §4.10), and whether it's the "equals
// zero" (negated-branch) or "not-equals zero" (direct-branch) sense.
func zeroCmpOp(op ir.Op) (isZeroCmp, negate bool) {
	switch op {
	case ir.OpICmpEq:
		return true, true
	case ir.OpICmpNe:
		return true, false
	default:
		return false, false
	}
}

// countUses returns how many instruction arguments across fn reference
// v; compare-branch fusion only elides the ICmp when its result has no
// use besides the BrCond being fused.
func countUses(fn *ir.Function, v *ir.Value) int {
	n := 0
	for _, b := range fn.Blocks {
		for _, insn := range b.Insns {
			if isNop(insn) {
				continue
			}
			for _, a := range insn.Args {
				if a == v {
					n++
				}
			}
		}
	}
	return n
}

// compareBranchFusion collapses "icmp_eq/ne x, 0" immediately feeding a
// BrCond into a single zero-testing BrCond, eliding the ICmp the way
// ypeep's branch-over-jal folding collapses two instructions worth of
// control flow into one (spec §4.10: "compare-then-branch fusion
// producing cbz/cbnz on the RISC backend or LTR + BE/BNE on the
// mainframe backend for zero-comparisons").
func compareBranchFusion(b *ir.Block) bool {
	term := b.Terminator()
	if term == nil || term.Op != ir.OpBrCond || term.CondIsZeroTest {
		return false
	}
	cond := term.Args[0]
	def := cond.Def
	if def == nil || isNop(def) {
		return false
	}
	isZeroCmp, negate := zeroCmpOp(def.Op)
	if !isZeroCmp {
		return false
	}
	var operand *ir.Value
	switch {
	case def.Args[1].IsConst && def.Args[1].ConstInt == 0:
		operand = def.Args[0]
	case def.Args[0].IsConst && def.Args[0].ConstInt == 0:
		operand = def.Args[1]
	default:
		return false
	}
	if countUses(def.Block.Func, cond) != 1 {
		return false
	}
	term.Args[0] = operand
	term.CondIsZeroTest = true
	term.CondNegate = negate
	nop(def)
	return true
}
