package preproc

import (
	"testing"

	"github.com/stretchr/testify/require"

	"retargetc/internal/diag"
	"retargetc/internal/lexer"
	"retargetc/internal/stdset"
)

func spellAll(toks []lexer.Token) []string {
	var out []string
	for _, t := range toks {
		if t.Kind == lexer.EOF {
			continue
		}
		if t.Spelling != "" {
			out = append(out, t.Spelling)
		} else {
			out = append(out, t.StringValue)
		}
	}
	return out
}

func runSrc(t *testing.T, src string) ([]lexer.Token, *diag.Sink) {
	t.Helper()
	d := diag.New(false)
	p := New(stdset.C11, d)
	toks := p.process(src, "t.c")
	return toks, d
}

func TestObjectLikeMacroExpansion(t *testing.T) {
	toks, d := runSrc(t, "#define N 10\nint x = N;\n")
	require.False(t, d.HasErrors())
	require.Equal(t, []string{"int", "x", "=", "10", ";"}, spellAll(toks))
}

func TestFunctionLikeMacroExpansion(t *testing.T) {
	toks, d := runSrc(t, "#define ADD(a,b) ((a)+(b))\nint x = ADD(1,2);\n")
	require.False(t, d.HasErrors())
	require.Equal(t, []string{"int", "x", "=", "(", "(", "1", ")", "+", "(", "2", ")", ")", ";"}, spellAll(toks))
}

func TestIfdefSkipsInactiveBranch(t *testing.T) {
	toks, d := runSrc(t, "#ifdef FOO\nint a;\n#else\nint b;\n#endif\n")
	require.False(t, d.HasErrors())
	require.Equal(t, []string{"int", "b", ";"}, spellAll(toks))
}

func TestIfExpressionArithmetic(t *testing.T) {
	toks, d := runSrc(t, "#if 1 + 2 * 2 == 5\nint ok;\n#endif\n")
	require.False(t, d.HasErrors())
	require.Equal(t, []string{"int", "ok", ";"}, spellAll(toks))
}

func TestDefinedOperator(t *testing.T) {
	toks, d := runSrc(t, "#define FOO 1\n#if defined(FOO)\nint yes;\n#endif\n")
	require.False(t, d.HasErrors())
	require.Equal(t, []string{"int", "yes", ";"}, spellAll(toks))
}

func TestStringizeOperator(t *testing.T) {
	toks, d := runSrc(t, "#define STR(x) #x\nchar *s = STR(hello);\n")
	require.False(t, d.HasErrors())
	found := false
	for _, tk := range toks {
		if tk.Kind == lexer.StringConstant && tk.StringValue == "hello" {
			found = true
		}
	}
	require.True(t, found, "expected a stringized 'hello' token, got %+v", toks)
}
