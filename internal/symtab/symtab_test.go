package symtab

import (
	"testing"

	"github.com/stretchr/testify/require"

	"retargetc/internal/diag"
	"retargetc/internal/source"
	"retargetc/internal/types"
)

func newTestTable() (*Table, *diag.Sink) {
	d := diag.New(false)
	ctx := types.NewContext(types.LP64)
	return New(ctx, d), d
}

func TestBlockScopeShadowsFileScope(t *testing.T) {
	tab, d := newTestTable()
	ctx := types.NewContext(types.LP64)
	outer := &Symbol{Name: "x", Kind: KindVar, Type: ctx.IntT(), Storage: StorageGlobal}
	require.True(t, tab.Define(outer), "first definition of x should succeed")
	tab.PushFunctionScope()
	tab.PushBlockScope()
	inner := &Symbol{Name: "x", Kind: KindVar, Type: ctx.Char(), Storage: StorageLocal}
	require.True(t, tab.Define(inner), "shadowing x in a nested block should succeed")
	got, _ := tab.Lookup("x")
	require.Same(t, inner, got, "lookup should find the innermost x")
	tab.PopScope()
	got, _ = tab.Lookup("x")
	require.Same(t, outer, got, "after leaving the block, lookup should find the outer x again")
	tab.PopScope()
	require.False(t, d.HasErrors())
}

func TestRedefinitionInSameScopeIsError(t *testing.T) {
	tab, d := newTestTable()
	ctx := types.NewContext(types.LP64)
	sym := &Symbol{Name: "f", Kind: KindVar, Type: ctx.IntT()}
	tab.Define(sym)
	tab.Define(&Symbol{Name: "f", Kind: KindVar, Type: ctx.IntT()})
	require.True(t, d.HasErrors(), "expected a redefinition error")
}

func TestTagNamespaceDoesNotCollideWithOrdinary(t *testing.T) {
	tab, d := newTestTable()
	ctx := types.NewContext(types.LP64)
	statTy := ctx.DeclareRecord(types.StructKind, "stat")
	tab.DefineTag("stat", statTy)
	tab.Define(&Symbol{Name: "stat", Kind: KindVar, Type: ctx.IntT(), Loc: source.Loc{File: "t.c", Line: 1}})
	require.False(t, d.HasErrors(), "struct tag 'stat' and variable 'stat' must not collide")
	_, ok := tab.LookupTag("stat")
	require.True(t, ok, "tag lookup should find stat")
	_, ok = tab.Lookup("stat")
	require.True(t, ok, "ordinary lookup should find stat")
}

func TestForwardLabelReferenceResolvesWithinFunction(t *testing.T) {
	tab, d := newTestTable()
	tab.PushFunctionScope()
	tab.ReferenceLabel("done", source.Loc{File: "t.c", Line: 2})
	tab.DefineLabel("done", source.Loc{File: "t.c", Line: 5})
	tab.PopScope()
	require.False(t, d.HasErrors(), "forward-referenced then defined label should not error")
}

func TestUndefinedLabelReportedAtFunctionEnd(t *testing.T) {
	tab, d := newTestTable()
	tab.PushFunctionScope()
	tab.ReferenceLabel("nowhere", source.Loc{File: "t.c", Line: 2})
	tab.PopScope()
	require.True(t, d.HasErrors(), "expected an error for a never-defined label")
}

func TestAllocLocalAligns(t *testing.T) {
	tab, _ := newTestTable()
	tab.PushFunctionScope()
	o1 := tab.AllocLocal(1, 1)
	o2 := tab.AllocLocal(8, 8)
	require.Zero(t, o1, "first offset should be 0")
	require.Equal(t, 8, o2, "second offset should align up to 8")
	require.Equal(t, 16, tab.FrameSize())
	tab.PopScope()
}

func TestIsPublicConvention(t *testing.T) {
	require.True(t, IsPublic("Main"), "capitalized name should be public")
	require.False(t, IsPublic("helper"), "lowercase name should not be public")
}

func TestDefineFileScopeReachesFileScopeFromNestedBlock(t *testing.T) {
	tab, _ := newTestTable()
	ctx := types.NewContext(types.LP64)
	tab.PushFunctionScope()
	tab.PushBlockScope()
	sym := &Symbol{Name: "g", Kind: KindFunc, Type: ctx.FunctionType(ctx.IntT(), nil, false, 0), Storage: StorageExternal}
	tab.DefineFileScope(sym)
	got, ok := tab.Lookup("g")
	require.True(t, ok)
	require.Same(t, sym, got)
	tab.PopScope()
	tab.PopScope()
	got, ok = tab.Lookup("g")
	require.True(t, ok, "file-scope symbol should still be visible after leaving the block/function")
	require.Same(t, sym, got)
}

func TestDefineFileScopeKeepsFirstDefinition(t *testing.T) {
	tab, _ := newTestTable()
	ctx := types.NewContext(types.LP64)
	first := &Symbol{Name: "g", Kind: KindFunc, Type: ctx.FunctionType(ctx.IntT(), nil, false, 0)}
	second := &Symbol{Name: "g", Kind: KindFunc, Type: ctx.FunctionType(ctx.IntT(), nil, false, 0)}
	tab.DefineFileScope(first)
	tab.DefineFileScope(second)
	got, ok := tab.Lookup("g")
	require.True(t, ok)
	require.Same(t, first, got)
}
