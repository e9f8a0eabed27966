// Package lexer tokenizes chrispp source text.
//
// The cursor walks an in-memory rune slice (not a byte buffer, so
// multi-byte UTF-8 source is handled correctly) with peek/peekAt/advance
// helpers that track line/column as they go. Numeric literal scanning
// handles underscore digit separators and disambiguates the `0..10`
// range operator from a `3.14` float literal's decimal point. Comment
// skipping handles line, nested block, and doc comments uniformly.
// String interpolation resumes the ordinary scan loop after reaching a
// brace-depth-matched `}`, using a small brace-depth stack to tell the
// interpolation-closing brace apart from braces inside the embedded
// expression.
package lexer

import (
	"strings"
	"unicode"

	"github.com/gmofishsauce/chrispp/internal/diag"
	"github.com/gmofishsauce/chrispp/internal/source"
	"github.com/gmofishsauce/chrispp/internal/token"
)

// Lexer scans one source file into a token slice. It is not reusable
// across files; construct a fresh one per file via New.
type Lexer struct {
	file  *source.File
	runes []rune
	pos   int // index into runes
	line  int
	col   int

	diags *diag.Engine

	// braceStack tracks, for each currently-open string-interpolation
	// expression region, the brace depth at which it was entered so the
	// main loop knows when a '}' closes the interpolation rather than a
	// nested brace expression within it.
	braceStack []int
}

// New creates a Lexer over f, reporting diagnostics into diags.
func New(f *source.File, diags *diag.Engine) *Lexer {
	return &Lexer{
		file:  f,
		runes: []rune(f.Text),
		line:  1,
		col:   1,
		diags: diags,
	}
}

// Tokenize scans the whole file and returns the resulting token slice,
// always terminated by a single EOF token. Errors are reported into the
// diagnostic engine rather than returned, so a file with lexical errors
// still yields a best-effort token stream downstream stages can inspect.
func Tokenize(f *source.File, diags *diag.Engine) []token.Token {
	l := New(f, diags)
	var toks []token.Token
	for {
		t := l.next()
		toks = append(toks, t)
		if t.Kind == token.EOF {
			return toks
		}
	}
}

func (l *Lexer) peek() rune {
	return l.peekAt(0)
}

func (l *Lexer) peekAt(n int) rune {
	idx := l.pos + n
	if idx >= len(l.runes) {
		return 0
	}
	return l.runes[idx]
}

func (l *Lexer) advance() rune {
	if l.pos >= len(l.runes) {
		return 0
	}
	ch := l.runes[l.pos]
	l.pos++
	if ch == '\n' {
		l.line++
		l.col = 1
	} else {
		l.col++
	}
	return ch
}

func (l *Lexer) atEnd() bool {
	return l.pos >= len(l.runes)
}

func (l *Lexer) here() source.Span {
	return source.Span{File: l.file.Name, Line: l.line, Column: l.col}
}

func (l *Lexer) errorf(code diag.Code, span source.Span, args ...any) {
	l.diags.Errorf(code, span, args...)
}

// next scans and returns the single next token, skipping nothing —
// Tokenize keeps comment tokens too; the lexer contract emits them so
// downstream consumers can choose to skip them (the parser does).
func (l *Lexer) next() token.Token {
	l.skipInsignificantWhitespace()

	start := l.here()
	if l.atEnd() {
		return token.Token{Kind: token.EOF, Span: start}
	}

	ch := l.peek()
	switch {
	case ch == '/' && l.peekAt(1) == '/':
		return l.scanLineComment(start)
	case ch == '/' && l.peekAt(1) == '*':
		return l.scanBlockComment(start)
	case isIdentStart(ch):
		return l.scanIdentOrKeyword(start)
	case isDigit(ch):
		return l.scanNumber(start)
	case ch == '"':
		return l.scanString(start)
	case ch == '\'':
		return l.scanChar(start)
	default:
		return l.scanOperatorOrPunct(start)
	}
}

// skipInsignificantWhitespace consumes spaces, tabs, carriage returns,
// and newlines. Comments are NOT skipped here — they are tokenized so
// callers can choose to retain doc comments.
func (l *Lexer) skipInsignificantWhitespace() {
	for !l.atEnd() {
		ch := l.peek()
		if ch == ' ' || ch == '\t' || ch == '\r' || ch == '\n' {
			l.advance()
			continue
		}
		return
	}
}

func isIdentStart(ch rune) bool {
	return ch == '_' || unicode.IsLetter(ch)
}

func isIdentCont(ch rune) bool {
	return ch == '_' || unicode.IsLetter(ch) || unicode.IsDigit(ch)
}

func isDigit(ch rune) bool {
	return ch >= '0' && ch <= '9'
}

func (l *Lexer) scanIdentOrKeyword(start source.Span) token.Token {
	var b strings.Builder
	for !l.atEnd() && isIdentCont(l.peek()) {
		b.WriteRune(l.advance())
	}
	text := b.String()
	kind := token.LookupIdent(text)
	switch text {
	case "true", "false":
		kind = token.BoolLiteral
	case "nil":
		kind = token.NilLiteral
	}
	return token.Token{Kind: kind, Lexeme: text, Span: start}
}

// scanNumber implements the digit-separator and Int-vs-Float
// disambiguation is required: a `.` is only consumed into a
// float literal if it is followed by another digit; `0..10` must
// tokenize as Int, DotDot, Int rather than swallowing the first `.`.
func (l *Lexer) scanNumber(start source.Span) token.Token {
	var b strings.Builder
	isFloat := false

	consumeDigits := func() {
		for !l.atEnd() && (isDigit(l.peek()) || l.peek() == '_') {
			ch := l.advance()
			if ch != '_' {
				b.WriteRune(ch)
			}
		}
	}

	if l.peek() == '0' && (l.peekAt(1) == 'x' || l.peekAt(1) == 'X') {
		b.WriteRune(l.advance())
		b.WriteRune(l.advance())
		for !l.atEnd() && (isHexDigit(l.peek()) || l.peek() == '_') {
			ch := l.advance()
			if ch != '_' {
				b.WriteRune(ch)
			}
		}
		return token.Token{Kind: token.IntLiteral, Lexeme: b.String(), Span: start}
	}

	consumeDigits()

	if l.peek() == '.' && isDigit(l.peekAt(1)) {
		isFloat = true
		b.WriteRune(l.advance()) // '.'
		consumeDigits()
	}

	if (l.peek() == 'e' || l.peek() == 'E') &&
		(isDigit(l.peekAt(1)) || ((l.peekAt(1) == '+' || l.peekAt(1) == '-') && isDigit(l.peekAt(2)))) {
		isFloat = true
		b.WriteRune(l.advance())
		if l.peek() == '+' || l.peek() == '-' {
			b.WriteRune(l.advance())
		}
		consumeDigits()
	}

	kind := token.IntLiteral
	if isFloat {
		kind = token.FloatLiteral
	}
	return token.Token{Kind: kind, Lexeme: b.String(), Span: start}
}

func isHexDigit(ch rune) bool {
	return isDigit(ch) || (ch >= 'a' && ch <= 'f') || (ch >= 'A' && ch <= 'F')
}

// scanEscape consumes the character following a backslash and returns
// its decoded rune. Any escape not in the standard set (\n \t \r \\ \"
// \' \$ \0) is still ingested verbatim but reported as E1005.
func (l *Lexer) scanEscape(span source.Span) rune {
	ch := l.advance()
	switch ch {
	case 'n':
		return '\n'
	case 't':
		return '\t'
	case 'r':
		return '\r'
	case '\\':
		return '\\'
	case '"':
		return '"'
	case '\'':
		return '\''
	case '$':
		return '$'
	case '0':
		return 0
	default:
		l.errorf(diag.ELexBadEscape, span)
		return ch
	}
}

// scanString implements the string interpolation protocol. On a plain
// string it returns a single StringLiteral. On encountering an
// unescaped `${` it returns a StringInterpStart carrying the text read
// so far and pushes a brace-depth marker; the embedded expression is
// then tokenized by ordinary next() calls from the main loop (the lexer
// only ever returns one token at a time), and scanOperatorOrPunct
// recognizes the matching `}` against that marker to call
// ResumeInterpolatedString instead of emitting a plain RBrace.
func (l *Lexer) scanString(start source.Span) token.Token {
	l.advance() // opening quote
	return l.scanStringBody(start, false)
}

// scanStringBody scans string content up to a closing quote, an
// unescaped `${`, or end of line/file. resuming is true when this call
// continues a string after a closing `}` of an interpolation region.
func (l *Lexer) scanStringBody(start source.Span, resuming bool) token.Token {
	var b strings.Builder
	for {
		if l.atEnd() || l.peek() == '\n' {
			l.errorf(diag.ELexUnterminatedStr, start)
			return token.Token{Kind: token.Error, Lexeme: b.String(), Span: start}
		}
		if l.peek() == '"' {
			l.advance()
			kind := token.StringLiteral
			if resuming {
				kind = token.StringInterpEnd
			}
			return token.Token{Kind: kind, Lexeme: b.String(), Span: start}
		}
		if l.peek() == '$' && l.peekAt(1) == '{' {
			l.advance() // '$'
			l.advance() // '{'
			l.braceStack = append(l.braceStack, 1)
			kind := token.StringInterpStart
			if resuming {
				kind = token.StringInterpMiddle
			}
			return token.Token{Kind: kind, Lexeme: b.String(), Span: start}
		}
		if l.peek() == '\\' {
			escSpan := l.here()
			l.advance()
			b.WriteRune(l.scanEscape(escSpan))
			continue
		}
		b.WriteRune(l.advance())
	}
}

// ResumeInterpolatedString is called by scanOperatorOrPunct once the
// balanced-brace expression tokens following a StringInterpStart/Middle
// have been scanned and the matching `}` is reached. It scans the next literal-text run and returns either another
// Middle (if another `${` follows) or the terminating End.
//
// Embedding this resume operation in the normal next() loop would
// require next() to know the parser has "finished" an embedded
// expression, which it cannot observe on its own (it only sees braces).
// Instead next() treats `}` specially: when braceStack is non-empty and
// depth 1, `}` closes the interpolation region and next() calls
// ResumeInterpolatedString instead of emitting an RBrace token.
func (l *Lexer) ResumeInterpolatedString() token.Token {
	start := l.here()
	l.braceStack = l.braceStack[:len(l.braceStack)-1]
	return l.scanStringBody(start, true)
}

func (l *Lexer) scanChar(start source.Span) token.Token {
	l.advance() // opening quote
	if l.atEnd() || l.peek() == '\n' {
		l.errorf(diag.ELexUnterminatedChar, start)
		return token.Token{Kind: token.Error, Span: start}
	}
	var r rune
	if l.peek() == '\\' {
		escSpan := l.here()
		l.advance()
		r = l.scanEscape(escSpan)
	} else {
		r = l.advance()
	}
	if l.atEnd() || l.peek() != '\'' {
		l.errorf(diag.ELexUnterminatedChar, start)
		return token.Token{Kind: token.Error, Lexeme: string(r), Span: start}
	}
	l.advance() // closing quote
	return token.Token{Kind: token.CharLiteral, Lexeme: string(r), Span: start}
}

func (l *Lexer) scanLineComment(start source.Span) token.Token {
	isDoc := l.peekAt(2) == '/'
	l.advance()
	l.advance()
	if isDoc {
		l.advance()
	}
	if isDoc && l.peek() == ' ' {
		l.advance() // trim exactly one leading space
	}
	var b strings.Builder
	for !l.atEnd() && l.peek() != '\n' {
		b.WriteRune(l.advance())
	}
	kind := token.LineComment
	if isDoc {
		kind = token.DocComment
	}
	return token.Token{Kind: kind, Lexeme: b.String(), Span: start}
}

func (l *Lexer) scanBlockComment(start source.Span) token.Token {
	l.advance() // '/'
	l.advance() // '*'
	depth := 1
	var b strings.Builder
	for depth > 0 {
		if l.atEnd() {
			l.errorf(diag.ELexUnterminatedBlk, start)
			return token.Token{Kind: token.Error, Lexeme: b.String(), Span: start}
		}
		if l.peek() == '/' && l.peekAt(1) == '*' {
			depth++
			b.WriteRune(l.advance())
			b.WriteRune(l.advance())
			continue
		}
		if l.peek() == '*' && l.peekAt(1) == '/' {
			depth--
			l.advance()
			l.advance()
			continue
		}
		b.WriteRune(l.advance())
	}
	return token.Token{Kind: token.BlockComment, Lexeme: b.String(), Span: start}
}

// multiCharOps lists every multi-rune operator, longest first so greedy
// matching never stops short (?., ??, .., ..., ->, =>, and the compound
// assignments all need this — a naive single-rune match on `.` would
// swallow `..` and `...` a rune at a time).
var multiCharOps = []struct {
	text string
	kind token.Kind
}{
	{"...", token.DotDotDot},
	{"??", token.QuestionQuestion},
	{"?.", token.QuestionDot},
	{"..", token.DotDot},
	{"->", token.Arrow},
	{"=>", token.FatArrow},
	{"==", token.Eq},
	{"!=", token.NotEq},
	{"<=", token.LtEq},
	{">=", token.GtEq},
	{"&&", token.AndAnd},
	{"||", token.OrOr},
	{"+=", token.PlusAssign},
	{"-=", token.MinusAssign},
	{"*=", token.StarAssign},
	{"/=", token.SlashAssign},
	{"%=", token.PercentAssign},
}

var singleCharOps = map[rune]token.Kind{
	'+': token.Plus,
	'-': token.Minus,
	'*': token.Star,
	'/': token.Slash,
	'%': token.Percent,
	'=': token.Assign,
	'<': token.Lt,
	'>': token.Gt,
	'!': token.Bang,
	'?': token.Question,
	'.': token.Dot,
	'(': token.LParen,
	')': token.RParen,
	'{': token.LBrace,
	'}': token.RBrace,
	'[': token.LBracket,
	']': token.RBracket,
	',': token.Comma,
	':': token.Colon,
	';': token.Semicolon,
	'@': token.At,
}

func (l *Lexer) scanOperatorOrPunct(start source.Span) token.Token {
	// A '}' while inside an open interpolation brace region at depth 1
	// closes the region and resumes string scanning instead of emitting
	// a plain RBrace.
	if l.peek() == '}' && len(l.braceStack) > 0 {
		top := len(l.braceStack) - 1
		if l.braceStack[top] == 1 {
			l.advance() // '}'
			return l.ResumeInterpolatedString()
		}
		l.braceStack[top]--
		l.advance()
		return token.Token{Kind: token.RBrace, Lexeme: "}", Span: start}
	}
	if l.peek() == '{' && len(l.braceStack) > 0 {
		l.braceStack[len(l.braceStack)-1]++
	}

	for _, op := range multiCharOps {
		if l.match(op.text) {
			return token.Token{Kind: op.kind, Lexeme: op.text, Span: start}
		}
	}

	ch := l.peek()
	if ch == '&' || ch == '|' {
		l.advance()
		l.errorf(diag.ELexBadOperator, start, string(ch))
		return token.Token{Kind: token.Error, Lexeme: string(ch), Span: start}
	}

	if kind, ok := singleCharOps[ch]; ok {
		l.advance()
		return token.Token{Kind: kind, Lexeme: string(ch), Span: start}
	}

	l.advance()
	l.errorf(diag.ELexUnexpectedChar, start, ch)
	return token.Token{Kind: token.Error, Lexeme: string(ch), Span: start}
}

// match checks whether text appears at the cursor and, if so, consumes
// it and returns true.
func (l *Lexer) match(text string) bool {
	runes := []rune(text)
	for i, r := range runes {
		if l.peekAt(i) != r {
			return false
		}
	}
	for range runes {
		l.advance()
	}
	return true
}
