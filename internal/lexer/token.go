// Package lexer tokenizes preprocessed C source (spec.md §4.1 "Lexer").
// It assumes preprocessing has already run (internal/preproc), so it
// sees no directives: the preprocessor consumes every directive line,
// #line included.
//
// Grounded on ylex/lexer.go's byte-at-a-time cursor (peek/peekN/advance,
// skipWhitespace handling both comment forms) generalized from YAPL's
// closed token set to the full C token grammar named in spec §4.1:
// keywords gated by internal/stdset, identifiers, integer/float
// constants with suffixes, character and string literals with
// u/U/L/u8 prefixes, and the full C punctuator set.
package lexer

import "retargetc/internal/source"

// Kind is the token category.
type Kind int

const (
	EOF Kind = iota
	Keyword
	Identifier
	IntConstant
	FloatConstant
	CharConstant
	StringConstant
	Punctuator
	// Directive is a token kind for a directive line. Neither this
	// lexer nor internal/preproc produces it: the preprocessor consumes
	// every directive.
	Directive
)

func (k Kind) String() string {
	switch k {
	case EOF:
		return "EOF"
	case Keyword:
		return "keyword"
	case Identifier:
		return "identifier"
	case IntConstant:
		return "integer-constant"
	case FloatConstant:
		return "floating-constant"
	case CharConstant:
		return "character-constant"
	case StringConstant:
		return "string-literal"
	case Punctuator:
		return "punctuator"
	case Directive:
		return "directive"
	default:
		return "unknown"
	}
}

// EncodingPrefix is the literal prefix on a char/string constant (spec
// §4.1 "string/char literal prefixes u/U/L/u8").
type EncodingPrefix int

const (
	NoPrefix EncodingPrefix = iota
	PrefixL
	Prefixu
	PrefixU
	Prefixu8
)

// IntSuffix records the suffix letters on an integer constant (spec
// §4.1 "integer literal suffix metadata"), used by sema to pick the
// constant's type per ISO C's suffix/value type-selection table.
type IntSuffix struct {
	Unsigned bool
	LongCount int // 0, 1 (L), or 2 (LL)
}

// FloatSuffix records an 'f'/'F' or 'l'/'L' suffix on a floating
// constant.
type FloatSuffix int

const (
	FloatSuffixNone FloatSuffix = iota
	FloatSuffixF
	FloatSuffixL
)

// Token is one lexical token (spec §4.1 "Token").
type Token struct {
	Kind Kind
	Loc  source.Loc

	// Spelling is the token's exact source text, used for identifiers,
	// keywords, and punctuators, and for diagnostics on any kind.
	Spelling string

	// Constant payloads, populated according to Kind.
	IntValue    uint64
	IntSuffix   IntSuffix
	FloatValue  float64
	FloatSuffix FloatSuffix
	StringValue string // decoded char/string literal value
	Prefix      EncodingPrefix

	// LeadingSpace reports whether whitespace (or a macro boundary)
	// preceded this token, which the preprocessor's stringize/paste
	// operators need (spec §4.1 preprocessor interaction).
	LeadingSpace bool
}
