// Package types implements the C type system of spec.md §3/§4.2: an
// interned, tagged-variant representation of C types with size and
// alignment computed against a target data model, qualifiers, and the
// predicates/conversions the semantic analyzer needs.
//
// Grounded on yparse/types.go's Type struct (Kind/Base/Pointee/ElemType/
// StructName tagged union, Size/Alignment walking a structs map,
// Equal doing structural comparison) generalized from the teacher's
// three-base-type, 16-bit-everything model to full C base types,
// qualifiers, function types, records with bit-fields, and enums, with
// sizes depending on a per-target DataModel instead of being hardcoded.
package types

import (
	"fmt"
	"strings"
)

// Kind is the tagged-variant discriminant for Type (spec §3 "Type").
type Kind int

const (
	Invalid Kind = iota
	Void
	Integer
	Float
	Pointer
	Array
	Function
	Record
	Enum
)

// RecordKind distinguishes struct from union.
type RecordKind int

const (
	StructKind RecordKind = iota
	UnionKind
)

// Qualifiers are the C type qualifiers (spec §3 "Types carry optional
// qualifiers").
type Qualifiers uint8

const (
	Const Qualifiers = 1 << iota
	Volatile
	Restrict
	Atomic
)

func (q Qualifiers) Has(f Qualifiers) bool { return q&f != 0 }

// FuncSpec carries the function specifiers (spec §3).
type FuncSpec uint8

const (
	SpecInline FuncSpec = 1 << iota
	SpecNoreturn
)

// DataModel supplies the architecture-dependent facts the type system
// needs: pointer width and the width of `long` (spec §4.2 invariants:
// "sizeof(pointer) depends on the selected target"; "sizeof(long) may
// be 4 or 8 depending on data model"). Each backend's ArchInfo (§4.8)
// supplies one of these.
type DataModel struct {
	PointerBytes int
	LongBytes    int // 4 (ILP32/LLP64-ish) or 8 (LP64)
	Name         string
}

// LP64 and ILP32 are the two data models the two concrete backends use:
// Backend A (64-bit RISC pointers) is LP64-like, Backend B (31-bit
// mainframe addresses) is effectively ILP32 for `long`.
var (
	LP64  = DataModel{PointerBytes: 8, LongBytes: 8, Name: "LP64"}
	ILP32 = DataModel{PointerBytes: 4, LongBytes: 4, Name: "ILP32"}
)

// Field is a record member, including bit-field metadata (spec §4.2:
// "Record types track field offsets including bit-fields (offset,
// bit-width, name, type)").
type Field struct {
	Name     string
	Type     *Type
	Offset   int // byte offset from record start
	BitWidth int // 0 if not a bit-field
	BitOffset int // bit offset within the storage unit, when BitWidth > 0
}

// EnumConst is one enumerator of an Enum type.
type EnumConst struct {
	Name  string
	Value int64
}

// Type is the tagged-variant C type (spec §3 "Type"). Do not construct
// directly outside this package — use Context's constructors so
// structural equality implies pointer equality (spec §3 invariant).
type Type struct {
	Kind Kind
	Qual Qualifiers

	// Integer
	IntWidth  int // bits: 8, 16, 32, 64
	IntSigned bool

	// Float
	FloatWidth int // bits: 32, 64

	// Pointer
	Pointee *Type

	// Array
	ElemType     *Type
	ArrayLen     int // -1 for incomplete ("[]"), -2 for VLA, -3 for flexible
	IsFlexible   bool
	IsVLA        bool

	// Function
	Return    *Type
	Params    []*Type
	Variadic  bool
	Spec      FuncSpec

	// Record
	RecKind  RecordKind
	Tag      string
	Fields   []Field
	Complete bool
	RecSize  int
	RecAlign int

	// Enum
	EnumTag   string
	Constants []EnumConst
}

const (
	ArrayIncomplete = -1
	ArrayVLA        = -2
	ArrayFlexible   = -3
)

// Context owns the type interner for one compilation (spec §3: "Types
// are interned per compilation context; structural equality implies
// pointer equality"). The driver creates one per compilation.
type Context struct {
	Model DataModel

	internCache map[string]*Type
	records     map[string]*Type // tag -> record type, for recursive/forward refs
	enums       map[string]*Type

	voidTy *Type
}

// NewContext creates a fresh, empty type interner for the given target
// data model.
func NewContext(model DataModel) *Context {
	c := &Context{
		Model:       model,
		internCache: make(map[string]*Type),
		records:     make(map[string]*Type),
		enums:       make(map[string]*Type),
	}
	c.voidTy = c.intern(&Type{Kind: Void})
	return c
}

// intern returns the canonical pointer for a structurally-equal type,
// recording t as canonical the first time its key is seen.
func (c *Context) intern(t *Type) *Type {
	key := t.key()
	if existing, ok := c.internCache[key]; ok {
		return existing
	}
	c.internCache[key] = t
	return t
}

func (t *Type) key() string {
	var b strings.Builder
	t.writeKey(&b)
	return b.String()
}

func (t *Type) writeKey(b *strings.Builder) {
	if t == nil {
		b.WriteString("<nil>")
		return
	}
	fmt.Fprintf(b, "q%d:", t.Qual)
	switch t.Kind {
	case Void:
		b.WriteString("void")
	case Integer:
		fmt.Fprintf(b, "i%d%v", t.IntWidth, t.IntSigned)
	case Float:
		fmt.Fprintf(b, "f%d", t.FloatWidth)
	case Pointer:
		b.WriteString("ptr(")
		t.Pointee.writeKey(b)
		b.WriteString(")")
	case Array:
		fmt.Fprintf(b, "arr[%d](", t.ArrayLen)
		t.ElemType.writeKey(b)
		b.WriteString(")")
	case Function:
		b.WriteString("fn(")
		t.Return.writeKey(b)
		for _, p := range t.Params {
			b.WriteString(",")
			p.writeKey(b)
		}
		fmt.Fprintf(b, ")variadic=%v", t.Variadic)
	case Record:
		// Records are interned by tag identity, not structure, since
		// they may be incomplete/recursive (spec §3 pointer-to-incomplete).
		fmt.Fprintf(b, "rec%d:%s", t.RecKind, t.Tag)
	case Enum:
		fmt.Fprintf(b, "enum:%s", t.EnumTag)
	default:
		b.WriteString("invalid")
	}
}

// Void returns the canonical void type.
func (c *Context) Void() *Type { return c.voidTy }

// Int returns a canonical signed or unsigned integer type of the given
// bit width.
func (c *Context) Int(width int, signed bool) *Type {
	return c.intern(&Type{Kind: Integer, IntWidth: width, IntSigned: signed})
}

var (
	charBits  = 8
	shortBits = 16
	intBits   = 32
	longLongBits = 64
)

func (c *Context) Char() *Type     { return c.Int(charBits, true) }
func (c *Context) UChar() *Type    { return c.Int(charBits, false) }
func (c *Context) Short() *Type    { return c.Int(shortBits, true) }
func (c *Context) UShort() *Type   { return c.Int(shortBits, false) }
func (c *Context) IntT() *Type     { return c.Int(intBits, true) }
func (c *Context) UInt() *Type     { return c.Int(intBits, false) }
func (c *Context) Long() *Type     { return c.Int(c.Model.LongBytes*8, true) }
func (c *Context) ULong() *Type    { return c.Int(c.Model.LongBytes*8, false) }
func (c *Context) LongLong() *Type { return c.Int(longLongBits, true) }
func (c *Context) ULongLong() *Type { return c.Int(longLongBits, false) }
func (c *Context) Bool() *Type     { return c.intern(&Type{Kind: Integer, IntWidth: 8, IntSigned: false}) }

func (c *Context) Float32() *Type { return c.intern(&Type{Kind: Float, FloatWidth: 32}) }
func (c *Context) Float64() *Type { return c.intern(&Type{Kind: Float, FloatWidth: 64}) }

// Qualify returns t with additional qualifiers OR'd in.
func (c *Context) Qualify(t *Type, q Qualifiers) *Type {
	cp := *t
	cp.Qual |= q
	return c.intern(&cp)
}

func (c *Context) PointerTo(pointee *Type) *Type {
	return c.intern(&Type{Kind: Pointer, Pointee: pointee})
}

// ArrayOf constructs an array type. length is a non-negative element
// count, or one of ArrayIncomplete/ArrayVLA/ArrayFlexible.
func (c *Context) ArrayOf(elem *Type, length int) *Type {
	t := &Type{Kind: Array, ElemType: elem, ArrayLen: length}
	t.IsVLA = length == ArrayVLA
	t.IsFlexible = length == ArrayFlexible
	return c.intern(t)
}

func (c *Context) FunctionType(ret *Type, params []*Type, variadic bool, spec FuncSpec) *Type {
	return c.intern(&Type{Kind: Function, Return: ret, Params: params, Variadic: variadic, Spec: spec})
}

// DeclareRecord returns the (possibly forward-declared, incomplete)
// record type for tag, creating it if this is the first mention. This
// is how `struct S { struct S *next; }` is representable: the pointer
// to S is built from the same *Type before S's body is known (spec
// Design Notes "Cyclic graphs": "pointer-to-incomplete is representable;
// completeness is flipped in place on definition").
func (c *Context) DeclareRecord(kind RecordKind, tag string) *Type {
	key := fmt.Sprintf("rec%d:%s", kind, tag)
	if existing, ok := c.internCache[key]; ok {
		return existing
	}
	t := &Type{Kind: Record, RecKind: kind, Tag: tag, Complete: false}
	c.internCache[key] = t
	if tag != "" {
		c.records[tag] = t
	}
	return t
}

// DefineRecord flips a previously-declared record type to complete in
// place, filling in its fields and computed size/alignment. Because the
// interner hands out the same pointer for every mention of the tag,
// every existing reference (including self-referential pointers)
// observes the definition without any fixup (spec Design Notes).
func (c *Context) DefineRecord(t *Type, fields []Field) {
	t.Fields = fields
	t.RecAlign = 1
	offset := 0
	for i := range fields {
		f := &fields[i]
		align := f.Type.Alignof(c)
		if f.BitWidth == 0 {
			offset = alignUp(offset, align)
			f.Offset = offset
			offset += f.Type.Sizeof(c)
		} else {
			// Bit-fields pack into the storage unit of their declared
			// type; offset tracks the containing unit's byte offset.
			f.Offset = alignDown(offset, align)
		}
		if align > t.RecAlign {
			t.RecAlign = align
		}
	}
	if t.RecKind == UnionKind {
		max := 0
		for _, f := range fields {
			if s := f.Type.Sizeof(c); s > max {
				max = s
			}
		}
		offset = max
	}
	t.RecSize = alignUp(offset, t.RecAlign)
	t.Complete = true
}

func (c *Context) DeclareEnum(tag string) *Type {
	key := "enum:" + tag
	if existing, ok := c.internCache[key]; ok {
		return existing
	}
	t := &Type{Kind: Enum, EnumTag: tag, Complete: false}
	c.internCache[key] = t
	if tag != "" {
		c.enums[tag] = t
	}
	return t
}

func (c *Context) DefineEnum(t *Type, constants []EnumConst) {
	t.Constants = constants
	t.Complete = true
}

func alignUp(n, align int) int {
	if align <= 1 {
		return n
	}
	return (n + align - 1) &^ (align - 1)
}

func alignDown(n, align int) int {
	if align <= 1 {
		return n
	}
	return n &^ (align - 1)
}

// --- Predicates (spec §4.2) ---

func (t *Type) IsVoid() bool     { return t != nil && t.Kind == Void }
func (t *Type) IsInteger() bool  { return t != nil && t.Kind == Integer }
func (t *Type) IsFloat() bool    { return t != nil && t.Kind == Float }
func (t *Type) IsPointer() bool  { return t != nil && t.Kind == Pointer }
func (t *Type) IsArray() bool    { return t != nil && t.Kind == Array }
func (t *Type) IsFunction() bool { return t != nil && t.Kind == Function }
func (t *Type) IsRecord() bool   { return t != nil && t.Kind == Record }
func (t *Type) IsEnum() bool     { return t != nil && t.Kind == Enum }

func (t *Type) IsArithmetic() bool { return t.IsInteger() || t.IsFloat() || t.IsEnum() }
func (t *Type) IsScalar() bool     { return t.IsArithmetic() || t.IsPointer() }

// IsComplete implements spec §4.2's is_complete predicate.
func (t *Type) IsComplete() bool {
	if t == nil {
		return false
	}
	switch t.Kind {
	case Void:
		return false
	case Array:
		return t.ArrayLen >= 0 && t.ElemType.IsComplete()
	case Record, Enum:
		return t.Complete
	default:
		return true
	}
}

// IsSame implements spec §4.2's is_same predicate: structural equality,
// which for interned types is pointer equality. Qualify() interns each
// qualifier set as its own type, so types that differ only in
// qualifiers are not the same.
func (t *Type) IsSame(other *Type) bool {
	return t == other
}

// Unqualified returns t with all qualifiers stripped (pointer-identical
// to the unqualified interned type).
func (t *Type) Unqualified(c *Context) *Type {
	if t.Qual == 0 {
		return t
	}
	cp := *t
	cp.Qual = 0
	return c.intern(&cp)
}

// Sizeof computes a type's size per spec §4.2 invariants: defined only
// when complete; sizeof(pointer) depends on the target; a flexible array
// member's sizeof is zero (spec §8 boundary behavior); a VLA's sizeof is
// defined at runtime in real C, but for the constant-folding evaluator
// here it returns -1 (not a compile-time constant) unless the caller
// already resolved its dimension.
func (t *Type) Sizeof(c *Context) int {
	if t == nil {
		return -1
	}
	switch t.Kind {
	case Void:
		return 0
	case Integer:
		return t.IntWidth / 8
	case Float:
		return t.FloatWidth / 8
	case Pointer:
		return c.Model.PointerBytes
	case Array:
		if t.IsFlexible {
			return 0
		}
		if t.IsVLA || t.ArrayLen < 0 {
			return -1
		}
		elem := t.ElemType.Sizeof(c)
		if elem < 0 {
			return -1
		}
		return elem * t.ArrayLen
	case Record:
		if !t.Complete {
			return -1
		}
		return t.RecSize
	case Enum:
		return c.IntT().Sizeof(c)
	case Function:
		return -1
	default:
		return -1
	}
}

func (t *Type) Alignof(c *Context) int {
	if t == nil {
		return 1
	}
	switch t.Kind {
	case Void:
		return 1
	case Integer:
		return t.IntWidth / 8
	case Float:
		return t.FloatWidth / 8
	case Pointer:
		return c.Model.PointerBytes
	case Array:
		return t.ElemType.Alignof(c)
	case Record:
		if t.RecAlign == 0 {
			return 1
		}
		return t.RecAlign
	case Enum:
		return c.IntT().Alignof(c)
	default:
		return 1
	}
}

// FindField implements spec §4.2's "find a record field by name",
// descending into anonymous members (GNU/C11 anonymous struct/union
// support, spec §4.1 FeatureAnonStruct).
func (t *Type) FindField(name string) (*Field, []int) {
	if t == nil || t.Kind != Record {
		return nil, nil
	}
	for i := range t.Fields {
		f := &t.Fields[i]
		if f.Name == name {
			return f, []int{i}
		}
		if f.Name == "" && f.Type.IsRecord() {
			if sub, path := f.Type.FindField(name); sub != nil {
				return sub, append([]int{i}, path...)
			}
		}
	}
	return nil, nil
}

// String renders a canonical textual form of the type (spec §4.2
// "render a canonical textual form").
func (t *Type) String() string {
	if t == nil {
		return "<nil>"
	}
	qual := ""
	if t.Qual.Has(Const) {
		qual += "const "
	}
	if t.Qual.Has(Volatile) {
		qual += "volatile "
	}
	if t.Qual.Has(Restrict) {
		qual += "restrict "
	}
	if t.Qual.Has(Atomic) {
		qual += "_Atomic "
	}
	switch t.Kind {
	case Void:
		return qual + "void"
	case Integer:
		sign := "unsigned "
		if t.IntSigned {
			sign = ""
		}
		return qual + sign + intName(t.IntWidth)
	case Float:
		if t.FloatWidth == 32 {
			return qual + "float"
		}
		return qual + "double"
	case Pointer:
		return qual + t.Pointee.String() + " *"
	case Array:
		return fmt.Sprintf("%s%s[%d]", qual, t.ElemType.String(), t.ArrayLen)
	case Function:
		parts := make([]string, len(t.Params))
		for i, p := range t.Params {
			parts[i] = p.String()
		}
		variadic := ""
		if t.Variadic {
			if len(parts) > 0 {
				variadic = ", "
			}
			variadic += "..."
		}
		return fmt.Sprintf("%s (%s%s)", t.Return.String(), strings.Join(parts, ", "), variadic)
	case Record:
		kind := "struct"
		if t.RecKind == UnionKind {
			kind = "union"
		}
		return fmt.Sprintf("%s%s %s", qual, kind, t.Tag)
	case Enum:
		return fmt.Sprintf("%senum %s", qual, t.EnumTag)
	default:
		return "<invalid>"
	}
}

func intName(width int) string {
	switch width {
	case 8:
		return "char"
	case 16:
		return "short"
	case 32:
		return "int"
	case 64:
		return "long long"
	default:
		return fmt.Sprintf("int%d_t", width)
	}
}
