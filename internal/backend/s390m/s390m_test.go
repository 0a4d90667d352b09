package s390m

import (
	"testing"

	"github.com/stretchr/testify/require"

	"retargetc/internal/backend"
	"retargetc/internal/diag"
	"retargetc/internal/irgen"
	"retargetc/internal/lexer"
	"retargetc/internal/parser"
	"retargetc/internal/sema"
	"retargetc/internal/stdset"
	"retargetc/internal/symtab"
	"retargetc/internal/types"
)

func compile(t *testing.T, src string) string {
	t.Helper()
	d := diag.New(false)
	lx := lexer.New(src, "t.c", stdset.C11, d)
	toks := lx.AllTokens()
	ctx := types.NewContext(types.ILP32)
	p := parser.New(toks, ctx, d)
	tu := p.Parse()
	require.False(t, d.HasErrors(), "parse errors: %v", d.Diagnostics())
	sym := symtab.New(ctx, d)
	sema.New(ctx, sym, d, stdset.C11).Check(tu)
	require.False(t, d.HasErrors(), "sema errors: %v", d.Diagnostics())
	mod := irgen.New(ctx, d).Lower(tu, "t")
	return backend.Generate(New(), ctx, mod)
}

func TestGenerateUppercasesFuncLabel(t *testing.T) {
	asm := compile(t, "int add(int a, int b) { return a + b; }")
	require.Contains(t, asm, "ADD:")
	require.Contains(t, asm, "BR    R14")
}

func TestGenerateEmitsRegisterPairMultiply(t *testing.T) {
	asm := compile(t, "int mul(int a, int b) { return a * b; }")
	require.Contains(t, asm, "MR    R2,")
}

func TestGenerateEmitsConditionCodeBranchFusion(t *testing.T) {
	asm := compile(t, `
		int f(int x) {
			if (x != 0) { return 1; }
			return 0;
		}
	`)
	require.Contains(t, asm, "LTR")
	require.Contains(t, asm, "BNE")
}

func TestGenerateEmitsConversionOverflowTrap(t *testing.T) {
	asm := compile(t, "double tof(int x) { return (double)x; }")
	require.Contains(t, asm, "$CONVOVF")
}

func TestGenerateEmitsIndirectCallThroughFunctionPointer(t *testing.T) {
	asm := compile(t, `
		int helper(int x) { return x; }
		int f(void) {
			int (*fp)(int) = &helper;
			return fp(5);
		}
	`)
	require.Contains(t, asm, "BALR  R14,R15")
	require.NotContains(t, asm, "L     R15,?")
}
