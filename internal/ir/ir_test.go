package ir

import (
	"testing"

	"github.com/stretchr/testify/require"

	"retargetc/internal/types"
)

func TestBuildSimpleFunctionAndPreds(t *testing.T) {
	ctx := types.NewContext(types.LP64)
	m := &Module{Name: "t"}
	fnTy := ctx.FunctionType(ctx.IntT(), nil, false, 0)
	f := m.NewFunction("main", fnTy)

	entry := f.NewBlock("entry")
	thenB := f.NewBlock("then")
	join := f.NewBlock("join")

	cond := f.NewValue(ctx.IntT())
	entry.Append(&Instruction{Op: OpBrCond, Args: []*Value{cond}, Then: thenB, Else: join})
	thenB.Append(&Instruction{Op: OpBr, Then: join})
	join.Append(&Instruction{Op: OpRet})

	f.ComputePreds()
	require.Len(t, join.Preds(), 2)
	require.NotNil(t, entry.Terminator())
	require.Equal(t, OpBrCond, entry.Terminator().Op)
}

func TestValueIdentityIsPerFunction(t *testing.T) {
	ctx := types.NewContext(types.LP64)
	f := &Function{Name: "f"}
	a := f.NewValue(ctx.IntT())
	b := f.NewValue(ctx.IntT())
	require.NotEqual(t, a.ID, b.ID)
}
