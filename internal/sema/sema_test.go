package sema

import (
	"testing"

	"github.com/stretchr/testify/require"

	"retargetc/internal/diag"
	"retargetc/internal/lexer"
	"retargetc/internal/parser"
	"retargetc/internal/stdset"
	"retargetc/internal/symtab"
	"retargetc/internal/types"
)

func analyzeSrc(t *testing.T, src string) *diag.Sink {
	t.Helper()
	return analyzeSrcStd(t, src, stdset.C11)
}

func analyzeSrcStd(t *testing.T, src string, std stdset.Standard) *diag.Sink {
	t.Helper()
	d := diag.New(false)
	lx := lexer.New(src, "t.c", std, d)
	toks := lx.AllTokens()
	ctx := types.NewContext(types.LP64)
	p := parser.New(toks, ctx, d)
	tu := p.Parse()
	require.False(t, d.HasErrors(), "unexpected parse errors: %v", d.Diagnostics())
	sym := symtab.New(ctx, d)
	a := New(ctx, sym, d, std)
	a.Check(tu)
	return d
}

func TestValidProgramHasNoErrors(t *testing.T) {
	d := analyzeSrc(t, `
		int add(int a, int b) { return a + b; }
		int main(void) {
			int x = add(1, 2);
			return x;
		}
	`)
	require.False(t, d.HasErrors(), "unexpected errors: %v", d.Diagnostics())
}

func TestUndeclaredIdentifierIsError(t *testing.T) {
	d := analyzeSrc(t, "int f(void) { return y; }")
	require.True(t, d.HasErrors(), "expected an undeclared-identifier error")
}

func TestCallArityMismatchIsError(t *testing.T) {
	d := analyzeSrc(t, `
		int add(int a, int b) { return a + b; }
		int main(void) { return add(1); }
	`)
	require.True(t, d.HasErrors(), "expected a call-arity error")
}

func TestBreakOutsideLoopIsError(t *testing.T) {
	d := analyzeSrc(t, "int f(void) { break; return 0; }")
	require.True(t, d.HasErrors(), "expected a 'break' outside loop/switch error")
}

func TestBreakInsideLoopIsFine(t *testing.T) {
	d := analyzeSrc(t, "int f(void) { while (1) { break; } return 0; }")
	require.False(t, d.HasErrors(), "unexpected errors: %v", d.Diagnostics())
}

func TestGotoToUndefinedLabelIsError(t *testing.T) {
	d := analyzeSrc(t, "int f(void) { goto nope; return 0; }")
	require.True(t, d.HasErrors(), "expected an undefined-label error")
}

func TestGotoForwardReferenceIsFine(t *testing.T) {
	d := analyzeSrc(t, "int f(void) { goto done; done: return 0; }")
	require.False(t, d.HasErrors(), "unexpected errors: %v", d.Diagnostics())
}

func TestStaticAssertFailureIsReported(t *testing.T) {
	d := analyzeSrc(t, `_Static_assert(1 == 2, "nope");`)
	require.True(t, d.HasErrors(), "expected the static assertion to fail")
}

func TestFieldAccessOnNonStructIsError(t *testing.T) {
	d := analyzeSrc(t, "int f(void) { int x = 0; return x.y; }")
	require.True(t, d.HasErrors(), "expected a member-access-on-non-struct error")
}

func TestStructFieldAccessResolvesType(t *testing.T) {
	d := analyzeSrc(t, `
		struct point { int x; int y; };
		int getx(struct point *p) { return p->x; }
	`)
	require.False(t, d.HasErrors(), "unexpected errors: %v", d.Diagnostics())
}

func TestImplicitDeclarationWarnsUnderC89(t *testing.T) {
	d := analyzeSrcStd(t, "int f(void) { return g(1, 2); }", stdset.C89)
	require.False(t, d.HasErrors(), "unexpected errors under C89 implicit declaration: %v", d.Diagnostics())
	require.NotZero(t, d.WarningCount(), "expected an implicit-declaration warning")
}

func TestImplicitDeclarationWarnsUnderGNU89(t *testing.T) {
	d := analyzeSrcStd(t, "int f(void) { return g(1); }", stdset.GNU89)
	require.False(t, d.HasErrors(), "unexpected errors under GNU89 implicit declaration: %v", d.Diagnostics())
	require.NotZero(t, d.WarningCount(), "expected an implicit-declaration warning")
}

func TestImplicitDeclarationIsErrorUnderC99(t *testing.T) {
	d := analyzeSrcStd(t, "int f(void) { return g(1, 2); }", stdset.C99)
	require.True(t, d.HasErrors(), "expected an undeclared-identifier error under C99")
}

func TestImplicitDeclarationIsReusedAcrossCalls(t *testing.T) {
	d := analyzeSrcStd(t, `
		int f(void) {
			g(1);
			return g(2);
		}
	`, stdset.C89)
	require.False(t, d.HasErrors(), "unexpected errors: %v", d.Diagnostics())
	require.Equal(t, 1, d.WarningCount(), "expected exactly one implicit-declaration warning")
}
