// Package constexpr evaluates C constant expressions over the AST
// (spec.md §4.7): array dimensions, case labels, enumerator values,
// and _Static_assert conditions. Integer arithmetic wraps at 64 bits;
// division and modulo by a constant zero are reported as errors;
// shifting by a negative amount or by >= the operand width is reported
// as a warning (spec §4.7 edge cases).
//
// Grounded on ylex/lexer.go's precedence-climbing parseConstExpr chain
// (parseConstOr -> parseConstAnd -> parseConstCmp -> parseConstAdd ->
// parseConstMult -> parseConstUnary), ported here from a token-cursor
// recursive descent over raw source text to a single recursive
// evaluator walking an already-parsed ast.Expr, since by the time sema
// calls this the parser has already built the tree.
package constexpr

import (
	"retargetc/internal/ast"
	"retargetc/internal/diag"
	"retargetc/internal/source"
	"retargetc/internal/types"
)

// Value is the result of evaluating a constant expression: a 64-bit
// pattern plus whether it should be interpreted as unsigned (spec §4.7
// "signed-64-bit arithmetic with wrap").
type Value struct {
	Bits     uint64
	Unsigned bool
	IsFloat  bool
	Float    float64
}

func (v Value) Signed() int64 { return int64(v.Bits) }

// Evaluator folds constant expressions against one compilation's type
// context, reporting diagnostics through diags.
type Evaluator struct {
	ctx   *types.Context
	diags *diag.Sink
}

func New(ctx *types.Context, diags *diag.Sink) *Evaluator {
	return &Evaluator{ctx: ctx, diags: diags}
}

// Eval folds e to a constant Value. ok is false if e is not a constant
// expression (e.g. it references a non-constant variable); in that
// case an error has already been reported.
func (ev *Evaluator) Eval(e ast.Expr) (Value, bool) {
	switch n := e.(type) {
	case *ast.LiteralExpr:
		return ev.evalLiteral(n)
	case *ast.BinaryExpr:
		return ev.evalBinary(n)
	case *ast.UnaryExpr:
		return ev.evalUnary(n)
	case *ast.CondExpr:
		return ev.evalCond(n)
	case *ast.CastExpr:
		return ev.evalCast(n)
	case *ast.SizeofTypeExpr:
		return ev.sizeofValue(n.Operand, n.Loc())
	case *ast.SizeofExprExpr:
		return ev.sizeofValue(n.X.Type(), n.Loc())

	case *ast.IdentExpr:
		// Enumerator constants are folded by sema before reaching here
		// and replaced with LiteralExpr; a bare identifier surviving to
		// this point is not a constant expression.
		ev.diags.ErrorAt(n.Loc(), "'%s' is not a constant expression", n.Name)
		return Value{}, false
	default:
		ev.diags.ErrorAt(e.Loc(), "expression is not a compile-time constant")
		return Value{}, false
	}
}

func (ev *Evaluator) evalLiteral(n *ast.LiteralExpr) (Value, bool) {
	switch n.Kind {
	case ast.LitInt, ast.LitChar:
		return Value{Bits: n.IntValue}, true
	case ast.LitFloat:
		return Value{IsFloat: true, Float: n.FloatVal}, true
	default:
		ev.diags.ErrorAt(n.Loc(), "string literals are not integer constant expressions")
		return Value{}, false
	}
}

func (ev *Evaluator) sizeofValue(t *types.Type, loc source.Loc) (Value, bool) {
	size := t.Sizeof(ev.ctx)
	if size < 0 {
		ev.diags.ErrorAt(loc, "sizeof applied to an incomplete type")
		return Value{}, false
	}
	return Value{Bits: uint64(size), Unsigned: true}, true
}

func (ev *Evaluator) evalCast(n *ast.CastExpr) (Value, bool) {
	v, ok := ev.Eval(n.X)
	if !ok {
		return v, false
	}
	target := n.Type()
	if target.IsFloat() {
		if v.IsFloat {
			return v, true
		}
		f := float64(int64(v.Bits))
		if v.Unsigned {
			f = float64(v.Bits)
		}
		return Value{IsFloat: true, Float: f}, true
	}
	if v.IsFloat {
		return Value{Bits: uint64(int64(v.Float))}, true
	}
	width := target.Sizeof(ev.ctx) * 8
	if width <= 0 || width >= 64 {
		return Value{Bits: v.Bits, Unsigned: !target.IntSigned}, true
	}
	mask := uint64(1)<<uint(width) - 1
	bits := v.Bits & mask
	if target.IntSigned && bits&(1<<uint(width-1)) != 0 {
		bits |= ^mask
	}
	return Value{Bits: bits, Unsigned: !target.IntSigned}, true
}

func (ev *Evaluator) evalUnary(n *ast.UnaryExpr) (Value, bool) {
	v, ok := ev.Eval(n.X)
	if !ok {
		return v, false
	}
	switch n.Op {
	case ast.OpNeg:
		if v.IsFloat {
			return Value{IsFloat: true, Float: -v.Float}, true
		}
		return Value{Bits: uint64(-int64(v.Bits)), Unsigned: v.Unsigned}, true
	case ast.OpPlus:
		return v, true
	case ast.OpNot:
		if boolOf(v) {
			return Value{Bits: 0}, true
		}
		return Value{Bits: 1}, true
	case ast.OpBitNot:
		return Value{Bits: ^v.Bits, Unsigned: v.Unsigned}, true
	default:
		ev.diags.ErrorAt(n.Loc(), "operator is not valid in a constant expression")
		return Value{}, false
	}
}

func boolOf(v Value) bool {
	if v.IsFloat {
		return v.Float != 0
	}
	return v.Bits != 0
}

func (ev *Evaluator) evalCond(n *ast.CondExpr) (Value, bool) {
	c, ok := ev.Eval(n.Cond)
	if !ok {
		return c, false
	}
	if boolOf(c) {
		return ev.Eval(n.Then)
	}
	return ev.Eval(n.Else)
}

func (ev *Evaluator) evalBinary(n *ast.BinaryExpr) (Value, bool) {
	// Short-circuit &&/|| only need the left operand when it already
	// determines the result, matching runtime semantics in the folded
	// constant too.
	if n.Op == ast.OpLogAnd || n.Op == ast.OpLogOr {
		l, ok := ev.Eval(n.Left)
		if !ok {
			return l, false
		}
		if n.Op == ast.OpLogAnd && !boolOf(l) {
			return Value{Bits: 0}, true
		}
		if n.Op == ast.OpLogOr && boolOf(l) {
			return Value{Bits: 1}, true
		}
		r, ok := ev.Eval(n.Right)
		if !ok {
			return r, false
		}
		if boolOf(r) {
			return Value{Bits: 1}, true
		}
		return Value{Bits: 0}, true
	}

	l, ok := ev.Eval(n.Left)
	if !ok {
		return l, false
	}
	r, ok := ev.Eval(n.Right)
	if !ok {
		return r, false
	}

	if l.IsFloat || r.IsFloat {
		return ev.evalFloatBinary(n, l, r)
	}

	unsigned := l.Unsigned || r.Unsigned
	a, b := int64(l.Bits), int64(r.Bits)

	switch n.Op {
	case ast.OpAdd:
		return Value{Bits: uint64(a + b), Unsigned: unsigned}, true
	case ast.OpSub:
		return Value{Bits: uint64(a - b), Unsigned: unsigned}, true
	case ast.OpMul:
		return Value{Bits: uint64(a * b), Unsigned: unsigned}, true
	case ast.OpDiv:
		if b == 0 {
			ev.diags.ErrorAt(n.Loc(), "division by zero in constant expression")
			return Value{}, false
		}
		return Value{Bits: uint64(a / b), Unsigned: unsigned}, true
	case ast.OpMod:
		if b == 0 {
			ev.diags.ErrorAt(n.Loc(), "modulo by zero in constant expression")
			return Value{}, false
		}
		return Value{Bits: uint64(a % b), Unsigned: unsigned}, true
	case ast.OpShl, ast.OpShr:
		if b < 0 || b >= 64 {
			ev.diags.WarningAt(n.Loc(), "shift count %d is negative or >= width of the operand", b)
			b = b & 63
		}
		if n.Op == ast.OpShl {
			return Value{Bits: uint64(a << uint(b)), Unsigned: unsigned}, true
		}
		if unsigned {
			return Value{Bits: l.Bits >> uint(b), Unsigned: true}, true
		}
		return Value{Bits: uint64(a >> uint(b)), Unsigned: false}, true
	case ast.OpBitAnd:
		return Value{Bits: uint64(a & b), Unsigned: unsigned}, true
	case ast.OpBitOr:
		return Value{Bits: uint64(a | b), Unsigned: unsigned}, true
	case ast.OpBitXor:
		return Value{Bits: uint64(a ^ b), Unsigned: unsigned}, true
	case ast.OpEq:
		return boolVal(a == b), true
	case ast.OpNe:
		return boolVal(a != b), true
	case ast.OpLt:
		return boolVal(cmpLess(a, b, unsigned)), true
	case ast.OpLe:
		return boolVal(!cmpLess(b, a, unsigned)), true
	case ast.OpGt:
		return boolVal(cmpLess(b, a, unsigned)), true
	case ast.OpGe:
		return boolVal(!cmpLess(a, b, unsigned)), true
	case ast.OpComma:
		return r, true
	default:
		ev.diags.ErrorAt(n.Loc(), "operator not valid in a constant expression")
		return Value{}, false
	}
}

func cmpLess(a, b int64, unsigned bool) bool {
	if unsigned {
		return uint64(a) < uint64(b)
	}
	return a < b
}

func boolVal(b bool) Value {
	if b {
		return Value{Bits: 1}
	}
	return Value{Bits: 0}
}

func (ev *Evaluator) evalFloatBinary(n *ast.BinaryExpr, l, r Value) (Value, bool) {
	lf, rf := floatOf(l), floatOf(r)
	switch n.Op {
	case ast.OpAdd:
		return Value{IsFloat: true, Float: lf + rf}, true
	case ast.OpSub:
		return Value{IsFloat: true, Float: lf - rf}, true
	case ast.OpMul:
		return Value{IsFloat: true, Float: lf * rf}, true
	case ast.OpDiv:
		if rf == 0 {
			ev.diags.ErrorAt(n.Loc(), "division by zero in constant expression")
			return Value{}, false
		}
		return Value{IsFloat: true, Float: lf / rf}, true
	case ast.OpEq:
		return boolVal(lf == rf), true
	case ast.OpNe:
		return boolVal(lf != rf), true
	case ast.OpLt:
		return boolVal(lf < rf), true
	case ast.OpLe:
		return boolVal(lf <= rf), true
	case ast.OpGt:
		return boolVal(lf > rf), true
	case ast.OpGe:
		return boolVal(lf >= rf), true
	default:
		ev.diags.ErrorAt(n.Loc(), "operator not valid on floating constants")
		return Value{}, false
	}
}

func floatOf(v Value) float64 {
	if v.IsFloat {
		return v.Float
	}
	if v.Unsigned {
		return float64(v.Bits)
	}
	return float64(int64(v.Bits))
}
