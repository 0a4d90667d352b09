package peephole

import (
	"testing"

	"github.com/stretchr/testify/require"

	"retargetc/internal/diag"
	"retargetc/internal/ir"
	"retargetc/internal/irgen"
	"retargetc/internal/lexer"
	"retargetc/internal/parser"
	"retargetc/internal/sema"
	"retargetc/internal/stdset"
	"retargetc/internal/symtab"
	"retargetc/internal/types"
)

func compile(t *testing.T, src string) *ir.Module {
	t.Helper()
	d := diag.New(false)
	lx := lexer.New(src, "t.c", stdset.C11, d)
	toks := lx.AllTokens()
	ctx := types.NewContext(types.LP64)
	p := parser.New(toks, ctx, d)
	tu := p.Parse()
	require.False(t, d.HasErrors(), "parse errors: %v", d.Diagnostics())
	sym := symtab.New(ctx, d)
	sema.New(ctx, sym, d, stdset.C11).Check(tu)
	require.False(t, d.HasErrors(), "sema errors: %v", d.Diagnostics())
	return irgen.New(ctx, d).Lower(tu, "t")
}

func findFunc(mod *ir.Module, name string) *ir.Function {
	for _, f := range mod.Functions {
		if f.Name == name {
			return f
		}
	}
	return nil
}

func countOp(fn *ir.Function, op ir.Op) int {
	n := 0
	for _, b := range fn.Blocks {
		for _, insn := range b.Insns {
			if insn.Op == op {
				n++
			}
		}
	}
	return n
}

func TestCompareBranchFusionElidesICmpNe(t *testing.T) {
	mod := compile(t, `
		int f(int x) {
			if (x != 0) { return 1; }
			return 0;
		}
	`)
	fn := findFunc(mod, "f")
	require.NotNil(t, fn, "function f not found")
	Run(fn)

	require.Zero(t, countOp(fn, ir.OpICmpNe), "expected icmp_ne to be elided by fusion")
	var found bool
	for _, b := range fn.Blocks {
		term := b.Terminator()
		if term != nil && term.Op == ir.OpBrCond && term.CondIsZeroTest {
			found = true
			require.False(t, term.CondNegate, "icmp_ne fusion should not negate")
		}
	}
	require.True(t, found, "expected a fused zero-test BrCond")
}

func TestCompareBranchFusionElidesICmpEq(t *testing.T) {
	mod := compile(t, `
		int f(int x) {
			if (x == 0) { return 1; }
			return 0;
		}
	`)
	fn := findFunc(mod, "f")
	require.NotNil(t, fn, "function f not found")
	Run(fn)

	require.Zero(t, countOp(fn, ir.OpICmpEq), "expected icmp_eq to be elided by fusion")
	var found bool
	for _, b := range fn.Blocks {
		term := b.Terminator()
		if term != nil && term.Op == ir.OpBrCond && term.CondIsZeroTest {
			found = true
			require.True(t, term.CondNegate, "icmp_eq fusion should negate (branch-if-zero)")
		}
	}
	require.True(t, found, "expected a fused zero-test BrCond")
}

func TestDeadStoreElimDropsOverwrittenStore(t *testing.T) {
	fn := &ir.Function{Name: "f", Type: nil}
	b := fn.NewBlock("")
	i32 := &types.Type{}
	addr := fn.NewValue(i32)
	v1 := fn.NewValue(i32)
	v1.IsConst = true
	v1.ConstInt = 1
	v2 := fn.NewValue(i32)
	v2.IsConst = true
	v2.ConstInt = 2

	b.Append(&ir.Instruction{Op: ir.OpStore, Args: []*ir.Value{addr, v1}})
	b.Append(&ir.Instruction{Op: ir.OpStore, Args: []*ir.Value{addr, v2}})
	b.Append(&ir.Instruction{Op: ir.OpRet})

	Run(fn)

	require.Equal(t, 1, countOp(fn, ir.OpStore), "expected dead first store to be eliminated")
}

func TestLoadStoreForwardReplacesLoadWithStoredValue(t *testing.T) {
	fn := &ir.Function{Name: "f", Type: nil}
	b := fn.NewBlock("")
	i32 := &types.Type{}
	addr := fn.NewValue(i32)
	stored := fn.NewValue(i32)
	stored.IsConst = true
	stored.ConstInt = 7

	storeInsn := &ir.Instruction{Op: ir.OpStore, Args: []*ir.Value{addr, stored}}
	b.Append(storeInsn)

	loaded := fn.NewValue(i32)
	loadInsn := &ir.Instruction{Op: ir.OpLoad, Result: loaded, Args: []*ir.Value{addr}}
	loaded.Def = loadInsn
	b.Append(loadInsn)

	useOfLoad := fn.NewValue(i32)
	useInsn := &ir.Instruction{Op: ir.OpAdd, Result: useOfLoad, Args: []*ir.Value{loaded, loaded}}
	b.Append(useInsn)
	b.Append(&ir.Instruction{Op: ir.OpRet, Args: []*ir.Value{useOfLoad}})

	Run(fn)

	require.Zero(t, countOp(fn, ir.OpLoad), "expected forwarded load to be eliminated")
	for _, a := range useInsn.Args {
		require.Same(t, stored, a, "expected use to be rewritten to the stored value")
	}
}
