package parser

import (
	"testing"

	"github.com/stretchr/testify/require"

	"retargetc/internal/ast"
	"retargetc/internal/diag"
	"retargetc/internal/lexer"
	"retargetc/internal/stdset"
	"retargetc/internal/types"
)

func parseSrc(t *testing.T, src string) (*ast.TranslationUnit, *diag.Sink) {
	t.Helper()
	d := diag.New(false)
	lx := lexer.New(src, "t.c", stdset.C11, d)
	toks := lx.AllTokens()
	ctx := types.NewContext(types.LP64)
	p := New(toks, ctx, d)
	return p.Parse(), d
}

func TestParseSimpleFunction(t *testing.T) {
	tu, d := parseSrc(t, "int add(int a, int b) { return a + b; }")
	require.False(t, d.HasErrors())
	require.Len(t, tu.Decls, 1)
	fd, ok := tu.Decls[0].(*ast.FuncDecl)
	require.True(t, ok, "expected FuncDecl, got %T", tu.Decls[0])
	require.Equal(t, "add", fd.Name)
	require.NotNil(t, fd.Body)
	require.Len(t, fd.Body.Items, 1)
	ret, ok := fd.Body.Items[0].(*ast.ReturnStmt)
	require.True(t, ok, "expected ReturnStmt, got %T", fd.Body.Items[0])
	bin, ok := ret.Value.(*ast.BinaryExpr)
	require.True(t, ok, "expected a+b, got %+v", ret.Value)
	require.Equal(t, ast.OpAdd, bin.Op)
}

func TestParseGlobalVarWithInit(t *testing.T) {
	tu, d := parseSrc(t, "int counter = 42;")
	require.False(t, d.HasErrors())
	vd, ok := tu.Decls[0].(*ast.VarDecl)
	require.True(t, ok, "expected VarDecl, got %T", tu.Decls[0])
	lit, ok := vd.Init.(*ast.LiteralExpr)
	require.True(t, ok, "expected literal 42, got %+v", vd.Init)
	require.EqualValues(t, 42, lit.IntValue)
}

func TestParseStructDeclarationAndFieldAccess(t *testing.T) {
	src := "struct point { int x; int y; };\nint get(struct point *p) { return p->x; }"
	tu, d := parseSrc(t, src)
	require.False(t, d.HasErrors())
	require.Len(t, tu.Decls, 2)
	rd, ok := tu.Decls[0].(*ast.RecordDecl)
	require.True(t, ok, "expected record decl, got %+v", tu.Decls[0])
	require.Len(t, rd.Fields, 2)
	fd := tu.Decls[1].(*ast.FuncDecl)
	ret := fd.Body.Items[0].(*ast.ReturnStmt)
	fe, ok := ret.Value.(*ast.FieldExpr)
	require.True(t, ok, "expected p->x, got %+v", ret.Value)
	require.Equal(t, "x", fe.Field)
	require.True(t, fe.Arrow)
}

func TestParsePointerDeclaratorVsMultiplyAmbiguity(t *testing.T) {
	tu, d := parseSrc(t, "typedef int myint;\nmyint *p;\n")
	require.False(t, d.HasErrors())
	vd, ok := tu.Decls[1].(*ast.VarDecl)
	require.True(t, ok, "expected VarDecl for 'myint *p;', got %T", tu.Decls[1])
	require.True(t, vd.Type.IsPointer())
}

func TestParseIfWhileForAndCallExpr(t *testing.T) {
	src := `int f(int n) {
		int total = 0;
		for (int i = 0; i < n; i++) {
			if (i % 2 == 0) {
				total = total + g(i);
			} else {
				continue;
			}
		}
		return total;
	}`
	_, d := parseSrc(t, src)
	require.False(t, d.HasErrors())
}

func TestParseGNUAsmBlock(t *testing.T) {
	d := diag.New(false)
	lx := lexer.New(`asm("nop");`, "t.c", stdset.GNU99, d)
	toks := lx.AllTokens()
	ctx := types.NewContext(types.LP64)
	p := New(toks, ctx, d)
	tu := p.Parse()
	require.False(t, d.HasErrors(), "unexpected errors: %v", d.Diagnostics())
	require.Len(t, tu.Decls, 1)
	ad, ok := tu.Decls[0].(*ast.AsmDecl)
	require.True(t, ok, "expected AsmDecl, got %T", tu.Decls[0])
	require.Equal(t, "nop", ad.Text)
}

func TestParseRecoversFromBadTopLevelDecl(t *testing.T) {
	src := "int + ; int ok;"
	tu, d := parseSrc(t, src)
	require.True(t, d.HasErrors(), "expected a parse error from the empty declarator")
	found := false
	for _, decl := range tu.Decls {
		if vd, ok := decl.(*ast.VarDecl); ok && vd.Name == "ok" {
			found = true
		}
	}
	require.True(t, found, "expected parser to recover and still parse 'int ok;', got %+v", tu.Decls)
}
