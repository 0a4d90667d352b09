package constexpr

import (
	"testing"

	"github.com/stretchr/testify/require"

	"retargetc/internal/ast"
	"retargetc/internal/diag"
	"retargetc/internal/types"
)

func lit(v uint64) *ast.LiteralExpr {
	return &ast.LiteralExpr{Kind: ast.LitInt, IntValue: v}
}

func bin(op ast.BinaryOp, l, r ast.Expr) *ast.BinaryExpr {
	return &ast.BinaryExpr{Op: op, Left: l, Right: r}
}

func TestArithmeticFoldsWithPrecedence(t *testing.T) {
	ctx := types.NewContext(types.LP64)
	d := diag.New(false)
	ev := New(ctx, d)
	e := bin(ast.OpAdd, lit(2), bin(ast.OpMul, lit(3), lit(4)))
	v, ok := ev.Eval(e)
	require.True(t, ok)
	require.Equal(t, int64(14), v.Signed())
}

func TestDivisionByZeroIsError(t *testing.T) {
	ctx := types.NewContext(types.LP64)
	d := diag.New(false)
	ev := New(ctx, d)
	_, ok := ev.Eval(bin(ast.OpDiv, lit(1), lit(0)))
	require.False(t, ok)
	require.True(t, d.HasErrors())
}

func TestShiftByTooManyBitsWarns(t *testing.T) {
	ctx := types.NewContext(types.LP64)
	d := diag.New(false)
	ev := New(ctx, d)
	_, ok := ev.Eval(bin(ast.OpShl, lit(1), lit(100)))
	require.True(t, ok, "an out-of-range shift should still produce a value")
	require.NotZero(t, d.WarningCount())
}

func TestSizeofType(t *testing.T) {
	ctx := types.NewContext(types.LP64)
	d := diag.New(false)
	ev := New(ctx, d)
	e := &ast.SizeofTypeExpr{Operand: ctx.PointerTo(ctx.IntT())}
	v, ok := ev.Eval(e)
	require.True(t, ok)
	require.EqualValues(t, 8, v.Bits)
}

func TestLogicalAndShortCircuits(t *testing.T) {
	ctx := types.NewContext(types.LP64)
	d := diag.New(false)
	ev := New(ctx, d)
	// 0 && (1/0) must not evaluate the division.
	e := bin(ast.OpLogAnd, lit(0), bin(ast.OpDiv, lit(1), lit(0)))
	v, ok := ev.Eval(e)
	require.True(t, ok)
	require.Zero(t, v.Signed())
	require.False(t, d.HasErrors(), "short-circuit should avoid the division-by-zero error")
}
