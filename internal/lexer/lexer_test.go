package lexer

import (
	"testing"

	"github.com/stretchr/testify/require"

	"retargetc/internal/diag"
	"retargetc/internal/stdset"
)

func scanAll(t *testing.T, src string, std stdset.Standard) ([]Token, *diag.Sink) {
	t.Helper()
	d := diag.New(false)
	l := New(src, "t.c", std, d)
	toks := l.AllTokens()
	return toks[:len(toks)-1], d // drop trailing EOF for easier assertions
}

func TestKeywordsAndIdentifiers(t *testing.T) {
	toks, d := scanAll(t, "int x = foo;", stdset.C99)
	require.False(t, d.HasErrors())
	want := []struct {
		kind Kind
		text string
	}{
		{Keyword, "int"}, {Identifier, "x"}, {Punctuator, "="}, {Identifier, "foo"}, {Punctuator, ";"},
	}
	require.Len(t, toks, len(want))
	for i, w := range want {
		require.Equal(t, w.kind, toks[i].Kind, "token %d", i)
		require.Equal(t, w.text, toks[i].Spelling, "token %d", i)
	}
}

func TestInlineDegradesUnderC89(t *testing.T) {
	toks, d := scanAll(t, "inline", stdset.C89)
	require.Equal(t, Identifier, toks[0].Kind, "'inline' under C89 should lex as an identifier")
	require.NotZero(t, d.WarningCount())
}

func TestReservedSpellingDeferredError(t *testing.T) {
	toks, d := scanAll(t, "_Bool", stdset.C89)
	require.Equal(t, Keyword, toks[0].Kind, "'_Bool' should still lex as a keyword")
	require.False(t, d.HasErrors())
	require.Zero(t, d.WarningCount(), "lexer itself should not yet flag the deferred error")
}

func TestHexAndBinaryIntegerLiterals(t *testing.T) {
	toks, d := scanAll(t, "0x1F 0b101 017", stdset.C11)
	require.False(t, d.HasErrors())
	require.EqualValues(t, 31, toks[0].IntValue)
	require.EqualValues(t, 5, toks[1].IntValue)
	require.EqualValues(t, 15, toks[2].IntValue)
}

func TestIntegerSuffixes(t *testing.T) {
	toks, _ := scanAll(t, "42ULL", stdset.C11)
	require.True(t, toks[0].IntSuffix.Unsigned)
	require.Equal(t, 2, toks[0].IntSuffix.LongCount)
}

func TestFloatLiteral(t *testing.T) {
	toks, _ := scanAll(t, "3.14f", stdset.C11)
	require.Equal(t, FloatConstant, toks[0].Kind)
	require.Equal(t, FloatSuffixF, toks[0].FloatSuffix)
	require.InDelta(t, 3.14, toks[0].FloatValue, 0.01)
}

func TestStringAndCharLiteralsWithEscapes(t *testing.T) {
	toks, d := scanAll(t, `"hi\n" 'a' L'x' u8"y"`, stdset.C11)
	require.False(t, d.HasErrors())
	require.Equal(t, "hi\n", toks[0].StringValue)
	require.EqualValues(t, 'a', toks[1].IntValue)
	require.Equal(t, PrefixL, toks[2].Prefix)
	require.EqualValues(t, 'x', toks[2].IntValue)
	require.Equal(t, Prefixu8, toks[3].Prefix)
	require.Equal(t, "y", toks[3].StringValue)
}

func TestMultiCharPunctuatorsPreferLongestMatch(t *testing.T) {
	toks, _ := scanAll(t, "a <<= b", stdset.C11)
	require.Equal(t, "<<=", toks[1].Spelling)
}

func TestCommentsAreSkipped(t *testing.T) {
	toks, _ := scanAll(t, "int /* comment */ x; // trailing\n", stdset.C11)
	require.Len(t, toks, 3)
}
