package irgen

import (
	"testing"

	"github.com/stretchr/testify/require"

	"retargetc/internal/diag"
	"retargetc/internal/ir"
	"retargetc/internal/lexer"
	"retargetc/internal/parser"
	"retargetc/internal/sema"
	"retargetc/internal/stdset"
	"retargetc/internal/symtab"
	"retargetc/internal/types"
)

func lowerSrc(t *testing.T, src string) *ir.Module {
	t.Helper()
	d := diag.New(false)
	lx := lexer.New(src, "t.c", stdset.C11, d)
	toks := lx.AllTokens()
	ctx := types.NewContext(types.LP64)
	p := parser.New(toks, ctx, d)
	tu := p.Parse()
	require.False(t, d.HasErrors(), "unexpected parse errors: %v", d.Diagnostics())
	sym := symtab.New(ctx, d)
	sema.New(ctx, sym, d, stdset.C11).Check(tu)
	require.False(t, d.HasErrors(), "unexpected sema errors: %v", d.Diagnostics())
	return New(ctx, d).Lower(tu, "t")
}

func findFunc(m *ir.Module, name string) *ir.Function {
	for _, f := range m.Functions {
		if f.Name == name {
			return f
		}
	}
	return nil
}

func TestLowerSimpleReturnFunction(t *testing.T) {
	m := lowerSrc(t, "int add(int a, int b) { return a + b; }")
	f := findFunc(m, "add")
	require.NotNil(t, f)
	require.NotEmpty(t, f.Blocks)
	last := f.Blocks[len(f.Blocks)-1]
	term := last.Terminator()
	require.NotNil(t, term)
	require.Equal(t, ir.OpRet, term.Op)
}

func TestLowerIfCreatesBranchingBlocks(t *testing.T) {
	m := lowerSrc(t, `
		int f(int x) {
			if (x > 0) { return 1; }
			return 0;
		}
	`)
	f := findFunc(m, "f")
	foundCond := false
	for _, b := range f.Blocks {
		if term := b.Terminator(); term != nil && term.Op == ir.OpBrCond {
			foundCond = true
		}
	}
	require.True(t, foundCond, "expected a br_cond terminator somewhere in the lowered if")
}

func TestLowerWhileLoopBackEdge(t *testing.T) {
	m := lowerSrc(t, `
		int f(int n) {
			int i = 0;
			while (i < n) {
				i = i + 1;
			}
			return i;
		}
	`)
	f := findFunc(m, "f")
	f.ComputePreds()
	backEdgeFound := false
	for _, b := range f.Blocks {
		if len(b.Preds()) >= 2 {
			backEdgeFound = true
		}
	}
	require.True(t, backEdgeFound, "expected the loop header to have multiple preds (entry + back edge)")
}

func TestLowerShortCircuitAndUsesPhi(t *testing.T) {
	m := lowerSrc(t, `
		int f(int a, int b) {
			return a && b;
		}
	`)
	f := findFunc(m, "f")
	foundPhi := false
	for _, b := range f.Blocks {
		for _, insn := range b.Insns {
			if insn.Op == ir.OpPhi {
				foundPhi = true
			}
		}
	}
	require.True(t, foundPhi, "expected a phi node for the short-circuit && result")
}

func TestLowerGlobalIntInitializer(t *testing.T) {
	m := lowerSrc(t, "int Counter = 7;")
	require.Len(t, m.Globals, 1)
	require.NotNil(t, m.Globals[0].Init)
	require.EqualValues(t, 7, m.Globals[0].Init.Int)
	require.True(t, m.Globals[0].IsPublic, "expected 'Counter' to be public under the capital-letter convention")
}

func TestLowerCallExpr(t *testing.T) {
	m := lowerSrc(t, `
		int helper(int x) { return x; }
		int f(void) { return helper(5); }
	`)
	f := findFunc(m, "f")
	found := false
	for _, b := range f.Blocks {
		for _, insn := range b.Insns {
			if insn.Op == ir.OpCall && insn.Callee != nil && insn.Callee.Name == "helper" {
				found = true
			}
		}
	}
	require.True(t, found, "expected a call instruction targeting 'helper'")
}

func TestLowerAsmDeclCollectsPassthroughText(t *testing.T) {
	d := diag.New(false)
	lx := lexer.New(`asm("nop"); int f(void) { return 0; }`, "t.c", stdset.GNU99, d)
	toks := lx.AllTokens()
	ctx := types.NewContext(types.LP64)
	p := parser.New(toks, ctx, d)
	tu := p.Parse()
	require.False(t, d.HasErrors(), "unexpected parse errors: %v", d.Diagnostics())
	sym := symtab.New(ctx, d)
	sema.New(ctx, sym, d, stdset.GNU99).Check(tu)
	require.False(t, d.HasErrors(), "unexpected sema errors: %v", d.Diagnostics())
	m := New(ctx, d).Lower(tu, "t")
	require.Equal(t, []string{"nop"}, m.Asms)
}

func TestLowerIndirectCallThroughFunctionPointerLowersCalleeValue(t *testing.T) {
	m := lowerSrc(t, `
		int helper(int x) { return x; }
		int f(void) {
			int (*fp)(int) = &helper;
			return fp(5);
		}
	`)
	f := findFunc(m, "f")
	found := false
	for _, b := range f.Blocks {
		for _, insn := range b.Insns {
			if insn.Op == ir.OpCall {
				require.Nil(t, insn.Callee, "an indirect call must not resolve a direct Callee")
				require.NotNil(t, insn.CalleeValue, "an indirect call must lower its callee expression to a value")
				found = true
			}
		}
	}
	require.True(t, found, "expected a call instruction for fp(5)")
}
