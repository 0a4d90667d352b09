package backend

import (
	"testing"

	"github.com/stretchr/testify/require"

	"retargetc/internal/ir"
	"retargetc/internal/types"
)

var testArch = ArchInfo{
	Name: "test", PointerBits: 64, AddressBits: 64, WordBits: 64,
	GPRCount: 16, FPRCount: 16, StackAlignBytes: 16,
	HasConditionCode: true, DataModel: types.LP64,
}

func TestComputeFrameLayoutAlignsTotal(t *testing.T) {
	fl := ComputeFrameLayout(testArch, 12, 0, 0, 2, true)
	require.Zero(t, fl.TotalSize%testArch.StackAlignBytes)
	require.Equal(t, 2*8, fl.CalleeSavedSize)
}

func TestRegAllocPrefersCalleeSavedThenSpills(t *testing.T) {
	ra := NewRegAlloc(testArch, &ir.Function{})
	vals := make([]*ir.Value, 20)
	for i := range vals {
		vals[i] = &ir.Value{ID: i}
	}
	for _, v := range vals {
		ra.Allocate(v)
	}
	require.NotZero(t, ra.SpillBytes(), "expected some values to spill once registers are exhausted")
	require.NotEmpty(t, ra.UsedCalleeSavedRegs())
}

func TestRegAllocReturnsSameRegisterOnRepeatedAllocate(t *testing.T) {
	ra := NewRegAlloc(testArch, &ir.Function{})
	v := &ir.Value{ID: 1}
	r1 := ra.Allocate(v)
	r2 := ra.Allocate(v)
	require.Equal(t, r1, r2, "expected stable register assignment")
}

func TestLocationMapResolvesConstantsWithoutExplicitSet(t *testing.T) {
	lm := NewLocationMap()
	v := &ir.Value{IsConst: true, ConstInt: 42}
	loc, ok := lm.Get(v)
	require.True(t, ok)
	require.True(t, loc.IsConst)
	require.EqualValues(t, 42, loc.ConstInt)
}

func TestAsmWriterFormatsLabelsAndInstructions(t *testing.T) {
	w := &AsmWriter{}
	w.Directive(".text")
	w.Label("main")
	w.Insn("ret")
	require.Equal(t, ".text\nmain:\n\tret\n", w.String())
}
