package lexer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gmofishsauce/chrispp/internal/diag"
	"github.com/gmofishsauce/chrispp/internal/source"
	"github.com/gmofishsauce/chrispp/internal/token"
)

func tokenize(t *testing.T, text string) ([]token.Token, *diag.Engine) {
	t.Helper()
	f := source.New("t.chr", text)
	d := diag.New()
	return Tokenize(f, d), d
}

func kinds(toks []token.Token) []token.Kind {
	out := make([]token.Kind, len(toks))
	for i, tk := range toks {
		out[i] = tk.Kind
	}
	return out
}

func TestRangeVsFloatDisambiguation(t *testing.T) {
	toks, d := tokenize(t, "0..10")
	require.False(t, d.HasErrors())
	assert.Equal(t, []token.Kind{token.IntLiteral, token.DotDot, token.IntLiteral, token.EOF}, kinds(toks))
}

func TestFloatLiteral(t *testing.T) {
	toks, d := tokenize(t, "3.14")
	require.False(t, d.HasErrors())
	require.Len(t, toks, 2)
	assert.Equal(t, token.FloatLiteral, toks[0].Kind)
	assert.Equal(t, "3.14", toks[0].Lexeme)
}

func TestNumericLiteralUnderscoreSeparators(t *testing.T) {
	toks, d := tokenize(t, "1_000_000")
	require.False(t, d.HasErrors())
	assert.Equal(t, "1000000", toks[0].Lexeme)
}

func TestStandardEscapes(t *testing.T) {
	toks, d := tokenize(t, `"a\nb\tc\\d\"e"`)
	require.False(t, d.HasErrors())
	assert.Equal(t, "a\nb\tc\\d\"e", toks[0].Lexeme)
}

func TestUnknownEscapeIngestsVerbatimButReportsDiagnostic(t *testing.T) {
	toks, d := tokenize(t, `"bad \q escape"`)
	assert.True(t, d.HasErrors())
	assert.Equal(t, []diag.Code{diag.ELexBadEscape}, d.Codes())
	assert.Equal(t, "bad q escape", toks[0].Lexeme)
}

func TestUnterminatedStringIsError(t *testing.T) {
	toks, d := tokenize(t, `"no closing quote`)
	assert.True(t, d.HasErrors())
	assert.Equal(t, []diag.Code{diag.ELexUnterminatedStr}, d.Codes())
	require.NotEmpty(t, toks)
	assert.Equal(t, token.Error, toks[0].Kind)
}

func TestUnterminatedCharIsError(t *testing.T) {
	_, d := tokenize(t, `'ab`)
	assert.True(t, d.HasErrors())
	assert.Equal(t, []diag.Code{diag.ELexUnterminatedChar}, d.Codes())
}

func TestStringInterpolationSingleHole(t *testing.T) {
	toks, d := tokenize(t, `"hi ${name}!"`)
	require.False(t, d.HasErrors())
	assert.Equal(t, []token.Kind{
		token.StringInterpStart,
		token.Ident,
		token.StringInterpEnd,
		token.EOF,
	}, kinds(toks))
	assert.Equal(t, "hi ", toks[0].Lexeme)
	assert.Equal(t, "name", toks[1].Lexeme)
	assert.Equal(t, "!", toks[2].Lexeme)
}

func TestStringInterpolationMultipleHoles(t *testing.T) {
	toks, d := tokenize(t, `"${a} and ${b} done"`)
	require.False(t, d.HasErrors())
	assert.Equal(t, []token.Kind{
		token.StringInterpStart,
		token.Ident,
		token.StringInterpMiddle,
		token.Ident,
		token.StringInterpEnd,
		token.EOF,
	}, kinds(toks))
}

func TestStringInterpolationNestedBraceExpression(t *testing.T) {
	toks, d := tokenize(t, `"${ f({x: 1}) }"`)
	require.False(t, d.HasErrors())
	// The StringInterpStart, then the embedded expression's own tokens
	// (including its nested { } for construction), then the End.
	assert.Equal(t, token.StringInterpStart, toks[0].Kind)
	assert.Equal(t, token.StringInterpEnd, toks[len(toks)-2].Kind)
}

func TestDocCommentTrimsOneLeadingSpace(t *testing.T) {
	toks, d := tokenize(t, "/// a doc line")
	require.False(t, d.HasErrors())
	require.Equal(t, token.DocComment, toks[0].Kind)
	assert.Equal(t, "a doc line", toks[0].Lexeme)
}

func TestLineComment(t *testing.T) {
	toks, d := tokenize(t, "// just a comment")
	require.False(t, d.HasErrors())
	assert.Equal(t, token.LineComment, toks[0].Kind)
}

func TestNestedBlockComment(t *testing.T) {
	toks, d := tokenize(t, "/* outer /* inner */ still outer */")
	require.False(t, d.HasErrors())
	require.Equal(t, token.BlockComment, toks[0].Kind)
	assert.Equal(t, token.EOF, toks[1].Kind)
}

func TestUnterminatedBlockCommentIsError(t *testing.T) {
	_, d := tokenize(t, "/* never closed")
	assert.True(t, d.HasErrors())
	assert.Equal(t, []diag.Code{diag.ELexUnterminatedBlk}, d.Codes())
}

func TestOperatorAmbiguityResolution(t *testing.T) {
	toks, d := tokenize(t, "-> => ?. ?? ? .. ... .")
	require.False(t, d.HasErrors())
	assert.Equal(t, []token.Kind{
		token.Arrow, token.FatArrow, token.QuestionDot, token.QuestionQuestion,
		token.Question, token.DotDot, token.DotDotDot, token.Dot, token.EOF,
	}, kinds(toks))
}

func TestLoneAmpersandAndPipeAreErrors(t *testing.T) {
	_, d := tokenize(t, "a & b | c")
	assert.Equal(t, []diag.Code{diag.ELexBadOperator, diag.ELexBadOperator}, d.Codes())
}

func TestCompoundAssignments(t *testing.T) {
	toks, d := tokenize(t, "+= -= *= /= %=")
	require.False(t, d.HasErrors())
	assert.Equal(t, []token.Kind{
		token.PlusAssign, token.MinusAssign, token.StarAssign, token.SlashAssign, token.PercentAssign, token.EOF,
	}, kinds(toks))
}

func TestKeywordsAndIdentifiers(t *testing.T) {
	toks, d := tokenize(t, "var async await myVar")
	require.False(t, d.HasErrors())
	assert.Equal(t, []token.Kind{token.KwVar, token.KwAsync, token.KwAwait, token.Ident, token.EOF}, kinds(toks))
}

func TestBoolAndNilLiterals(t *testing.T) {
	toks, d := tokenize(t, "true false nil")
	require.False(t, d.HasErrors())
	assert.Equal(t, []token.Kind{token.BoolLiteral, token.BoolLiteral, token.NilLiteral, token.EOF}, kinds(toks))
}

func TestSpanTracksLineAndColumn(t *testing.T) {
	toks, _ := tokenize(t, "var\nx")
	require.Len(t, toks, 3)
	assert.Equal(t, 1, toks[0].Span.Line)
	assert.Equal(t, 2, toks[1].Span.Line)
	assert.Equal(t, 1, toks[1].Span.Column)
}

func TestHexLiteral(t *testing.T) {
	toks, d := tokenize(t, "0xFF_00")
	require.False(t, d.HasErrors())
	assert.Equal(t, token.IntLiteral, toks[0].Kind)
	assert.Equal(t, "0xFF00", toks[0].Lexeme)
}

func TestUnexpectedCharacterIsError(t *testing.T) {
	_, d := tokenize(t, "`")
	assert.Equal(t, []diag.Code{diag.ELexUnexpectedChar}, d.Codes())
}
