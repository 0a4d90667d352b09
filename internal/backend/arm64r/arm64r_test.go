package arm64r

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
	ctx := types.NewContext(types.LP64)
	p := parser.New(toks, ctx, d)
	tu := p.Parse()
	require.False(t, d.HasErrors(), "parse errors: %v", d.Diagnostics())
	sym := symtab.New(ctx, d)
	sema.New(ctx, sym, d, stdset.C11).Check(tu)
	require.False(t, d.HasErrors(), "sema errors: %v", d.Diagnostics())
	mod := irgen.New(ctx, d).Lower(tu, "t")
	return backend.Generate(New(), ctx, mod)
}

func TestGenerateEmitsFunctionLabelAndRet(t *testing.T) {
	asm := compile(t, "int add(int a, int b) { return a + b; }")
	require.Contains(t, asm, "add:")
	require.Contains(t, asm, "ret")
	require.Contains(t, asm, "add ")
}

func TestGenerateEmitsBranchForIf(t *testing.T) {
	asm := compile(t, `
		int f(int x) {
			if (x > 0) { return 1; }
			return 0;
		}
	`)
	require.Contains(t, asm, "cbnz")
	require.Contains(t, asm, "cset")
}

func TestGenerateEmitsCallSequence(t *testing.T) {
	asm := compile(t, `
		int helper(int x) { return x; }
		int f(void) { return helper(5); }
	`)
	require.Contains(t, asm, "bl helper")
}

func TestGenerateEmitsAsmPassthrough(t *testing.T) {
	d := diag.New(false)
	lx := lexer.New(`asm("nop"); int f(void) { return 0; }`, "t.c", stdset.GNU99, d)
	toks := lx.AllTokens()
	ctx := types.NewContext(types.LP64)
	p := parser.New(toks, ctx, d)
	tu := p.Parse()
	require.False(t, d.HasErrors(), "parse errors: %v", d.Diagnostics())
	sym := symtab.New(ctx, d)
	sema.New(ctx, sym, d, stdset.GNU99).Check(tu)
	require.False(t, d.HasErrors(), "sema errors: %v", d.Diagnostics())
	mod := irgen.New(ctx, d).Lower(tu, "t")
	asm := backend.Generate(New(), ctx, mod)
	require.Contains(t, asm, "nop")
}

func TestGenerateEmitsIndirectCallThroughFunctionPointer(t *testing.T) {
	asm := compile(t, `
		int helper(int x) { return x; }
		int f(void) {
			int (*fp)(int) = &helper;
			return fp(5);
		}
	`)
	require.Contains(t, asm, "blr")
	require.NotContains(t, asm, "bl ?")
}
