package types

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIntern(t *testing.T) {
	c := NewContext(LP64)
	a := c.PointerTo(c.IntT())
	b := c.PointerTo(c.IntT())
	require.Same(t, a, b, "expected pointer-to-int to be interned to the same pointer")
	require.True(t, a.IsSame(b))
}

func TestQualifyProducesDistinctType(t *testing.T) {
	c := NewContext(LP64)
	plain := c.IntT()
	qualified := c.Qualify(plain, Const)
	require.NotSame(t, plain, qualified, "const int must intern separately from int")
	require.Same(t, plain, qualified.Unqualified(c))
}

func TestSizeofPointerFollowsDataModel(t *testing.T) {
	lp64 := NewContext(LP64)
	ilp32 := NewContext(ILP32)
	p64 := lp64.PointerTo(lp64.IntT())
	p32 := ilp32.PointerTo(ilp32.IntT())
	require.Equal(t, 8, p64.Sizeof(lp64))
	require.Equal(t, 4, p32.Sizeof(ilp32))
}

func TestIncompleteArrayIsNotComplete(t *testing.T) {
	c := NewContext(LP64)
	arr := c.ArrayOf(c.Char(), ArrayIncomplete)
	require.False(t, arr.IsComplete())
	require.Equal(t, -1, arr.Sizeof(c))
}

func TestRecordForwardDeclarationResolvesInPlace(t *testing.T) {
	c := NewContext(LP64)
	node := c.DeclareRecord(StructKind, "node")
	selfPtr := c.PointerTo(node)
	require.False(t, node.IsComplete(), "forward-declared record should be incomplete")
	c.DefineRecord(node, []Field{
		{Name: "value", Type: c.IntT()},
		{Name: "next", Type: selfPtr},
	})
	require.True(t, node.IsComplete())
	require.Same(t, node, selfPtr.Pointee, "pre-existing pointer-to-incomplete must observe the completed definition")
	f, path := node.FindField("next")
	require.NotNil(t, f)
	require.Equal(t, []int{1}, path)
}

func TestUnionSizeIsMaxMember(t *testing.T) {
	c := NewContext(LP64)
	u := c.DeclareRecord(UnionKind, "u")
	c.DefineRecord(u, []Field{
		{Name: "b", Type: c.Char()},
		{Name: "l", Type: c.LongLong()},
	})
	require.Equal(t, 8, u.RecSize)
}

func TestEnumSizeofIsIntSize(t *testing.T) {
	c := NewContext(LP64)
	e := c.DeclareEnum("color")
	c.DefineEnum(e, []EnumConst{{Name: "RED", Value: 0}, {Name: "BLUE", Value: 1}})
	require.Equal(t, c.IntT().Sizeof(c), e.Sizeof(c))
}

func TestFlexibleArrayMemberSizeIsZero(t *testing.T) {
	c := NewContext(LP64)
	flex := c.ArrayOf(c.IntT(), ArrayFlexible)
	require.Zero(t, flex.Sizeof(c))
}
