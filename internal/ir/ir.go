// Package ir implements the target-neutral SSA-like intermediate
// representation of spec.md §3/§4.5: values, instructions with a
// closed opcode set, basic blocks terminated by exactly one control
// instruction, and functions/modules that own them.
//
// Grounded on ysem/ir.go's IRGen/IRInstr shape (Op/Dest/Args/Label/
// Target string-opcode instructions, signed/unsigned opcode variants
// chosen at lowering time, a genAddrOf-style address computation)
// generalized from a label-and-jump pseudo-assembly textual IR into a
// real typed SSA IR with Value identity and basic blocks, since spec
// §4.5 requires phi nodes and a CFG the backend's frame-layout and
// peephole passes can walk structurally instead of pattern-matching
// text.
package ir

import "retargetc/internal/types"

// Op is the closed instruction opcode set (spec §4.5 "closed opcode
// set").
type Op int

const (
	OpAdd Op = iota
	OpSub
	OpMul
	OpSDiv
	OpUDiv
	OpSRem
	OpURem
	OpAnd
	OpOr
	OpXor
	OpShl
	OpAShr
	OpLShr
	OpNeg
	OpNot

	OpFAdd
	OpFSub
	OpFMul
	OpFDiv
	OpFNeg

	OpAlloca
	OpLoad
	OpStore
	OpGEP       // pointer + index*elemSize
	OpStructGEP // pointer + field offset, field index carried on the instruction

	OpICmpEq
	OpICmpNe
	OpICmpSLt
	OpICmpSLe
	OpICmpSGt
	OpICmpSGe
	OpICmpULt
	OpICmpULe
	OpICmpUGt
	OpICmpUGe
	OpFCmpEq
	OpFCmpNe
	OpFCmpLt
	OpFCmpLe
	OpFCmpGt
	OpFCmpGe

	OpTrunc
	OpSExt
	OpZExt
	OpFPTrunc
	OpFPExt
	OpSIToFP
	OpUIToFP
	OpFPToSI
	OpFPToUI
	OpPtrToInt
	OpIntToPtr
	OpBitcast

	OpPhi
	OpBr
	OpBrCond
	OpCall
	OpRet

	OpGlobalAddr // address of a Global
	OpConst      // materializes a Const operand as a Value
)

func (op Op) String() string {
	names := [...]string{
		"add", "sub", "mul", "sdiv", "udiv", "srem", "urem", "and", "or", "xor",
		"shl", "ashr", "lshr", "neg", "not",
		"fadd", "fsub", "fmul", "fdiv", "fneg",
		"alloca", "load", "store", "gep", "struct_gep",
		"icmp_eq", "icmp_ne", "icmp_slt", "icmp_sle", "icmp_sgt", "icmp_sge",
		"icmp_ult", "icmp_ule", "icmp_ugt", "icmp_uge",
		"fcmp_eq", "fcmp_ne", "fcmp_lt", "fcmp_le", "fcmp_gt", "fcmp_ge",
		"trunc", "sext", "zext", "fptrunc", "fpext", "sitofp", "uitofp", "fptosi", "fptoui",
		"ptrtoint", "inttoptr", "bitcast",
		"phi", "br", "br_cond", "call", "ret",
		"global_addr", "const",
	}
	if int(op) < len(names) {
		return names[op]
	}
	return "unknown"
}

// Value is anything an instruction can produce or consume: an
// instruction's result, a function parameter, a constant, or a global's
// address (spec §4.5 "Value identity").
type Value struct {
	ID   int
	Type *types.Type
	Name string // empty for unnamed temporaries

	// Defining instruction, nil for parameters.
	Def *Instruction

	// ConstInt/ConstFloat are populated when this Value is a constant
	// materialized by OpConst.
	IsConst    bool
	ConstInt   uint64
	ConstFloat float64
}

// Instruction is one SSA operation. Exactly the instructions in Block's
// terminator position may be control instructions (spec §4.5 "a block
// is terminated by exactly one control instruction").
type Instruction struct {
	Op     Op
	Result *Value // nil for Store/Br/BrCond/Ret (no result)
	Args   []*Value

	// StructGEP field index / GEP element type, when relevant.
	FieldIndex int
	ElemType   *types.Type

	// Call-specific. Args always holds the call's argument values only.
	// A direct call names its target via Callee; an indirect call (through
	// a function pointer) leaves Callee nil and carries the pointer value
	// to branch through in CalleeValue instead.
	Callee      *Function
	CalleeValue *Value
	Variadic    bool

	// Control-flow targets.
	Then, Else *Block // Br uses Then only; BrCond uses both

	// CondIsZeroTest marks a BrCond produced by the peephole pass's
	// compare-branch fusion (spec §4.10): Args[0] is the raw operand
	// the original comparison tested against zero, with the ICmp
	// instruction itself elided, rather than a materialized 0/1 value.
	// CondNegate distinguishes "branch if zero" from "branch if nonzero".
	CondIsZeroTest bool
	CondNegate     bool

	// Phi predecessor list, parallel to Args: Args[i] comes from
	// Preds[i].
	Preds []*Block

	Block *Block
}

// IsTerminator reports whether this instruction ends its block.
func (i *Instruction) IsTerminator() bool {
	switch i.Op {
	case OpBr, OpBrCond, OpRet:
		return true
	default:
		return false
	}
}

// Block is a basic block: a straight-line instruction list ending in
// exactly one terminator (spec §4.5).
type Block struct {
	Name  string
	Insns []*Instruction
	Func  *Function

	preds []*Block
}

func (b *Block) Terminator() *Instruction {
	if len(b.Insns) == 0 {
		return nil
	}
	last := b.Insns[len(b.Insns)-1]
	if last.IsTerminator() {
		return last
	}
	return nil
}

func (b *Block) Preds() []*Block { return b.preds }

// Append adds an instruction to the block and records its home block.
func (b *Block) Append(insn *Instruction) {
	insn.Block = b
	b.Insns = append(b.Insns, insn)
}

// Function is a defined or declared function (spec §4.5 "Function").
type Function struct {
	Name      string
	Type      *types.Type // function type
	Params    []*Value
	Blocks    []*Block
	IsPublic  bool
	Defined   bool // false for an external declaration
	nextValue int
	nextBlock int
}

// NewValue allocates a fresh, uniquely-IDed Value owned by this
// function (spec §4.5 "Value identity" — identity is per-function
// allocation order, not content).
func (f *Function) NewValue(t *types.Type) *Value {
	v := &Value{ID: f.nextValue, Type: t}
	f.nextValue++
	return v
}

// NewBlock appends and returns a fresh block.
func (f *Function) NewBlock(name string) *Block {
	if name == "" {
		name = blockLabel(f.nextBlock)
	}
	f.nextBlock++
	b := &Block{Name: name, Func: f}
	f.Blocks = append(f.Blocks, b)
	return b
}

func blockLabel(n int) string {
	digits := "0123456789"
	if n < 10 {
		return "bb" + string(digits[n])
	}
	return "bb" + itoa(n)
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	var buf [20]byte
	i := len(buf)
	neg := n < 0
	if neg {
		n = -n
	}
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

// Global is a module-scope data object (spec §4.5).
type Global struct {
	Name     string
	Type     *types.Type
	IsPublic bool
	Init     *InitData // nil for a tentative/zero-initialized definition
}

// InitData is a global's compile-time initial value: either a flat
// byte-addressable scalar (Int/Float) or a nested list matching the
// global's array/record structure.
type InitData struct {
	IsZero bool
	Int    uint64
	Float  float64
	IsStr  bool
	Str    string
	Elems  []*InitData
}

// Module is one translation unit's lowered IR: its functions and
// globals (spec §4.5 "Module").
type Module struct {
	Name      string
	Functions []*Function
	Globals   []*Global
	// Asms holds top-level asm(...) passthrough text in source order
	// (spec supplement, see SPEC_FULL.md).
	Asms []string
}

func (m *Module) NewFunction(name string, ty *types.Type) *Function {
	f := &Function{Name: name, Type: ty}
	m.Functions = append(m.Functions, f)
	return f
}

func (m *Module) NewGlobal(name string, ty *types.Type) *Global {
	g := &Global{Name: name, Type: ty}
	m.Globals = append(m.Globals, g)
	return g
}

// ComputePreds (re)computes each block's predecessor list by scanning
// every terminator, for passes (phi lowering, peephole, dead-block
// elimination) that need to walk the CFG backwards.
func (f *Function) ComputePreds() {
	for _, b := range f.Blocks {
		b.preds = nil
	}
	for _, b := range f.Blocks {
		term := b.Terminator()
		if term == nil {
			continue
		}
		switch term.Op {
		case OpBr:
			term.Then.preds = append(term.Then.preds, b)
		case OpBrCond:
			term.Then.preds = append(term.Then.preds, b)
			term.Else.preds = append(term.Else.preds, b)
		}
	}
}
