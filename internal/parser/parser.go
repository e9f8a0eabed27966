// Package parser implements chrispp's recursive-descent parser.
//
// Declarations and statements are parsed top-down, mostly with one token
// of lookahead (internal/token.Stream); struct-construction detection
// peeks two tokens ahead, and Mark/Reset backtracking is used where a
// single token does not decide (lambda parameters vs. a parenthesized
// expression, and a parenthesized function type in parseType). Expressions are parsed by
// precedence climbing: assignment -> range `..` -> nil-coalesce `??` ->
// `||` -> `&&` -> equality -> comparison -> additive -> multiplicative
// -> unary -> postfix -> primary, each level calling directly into the
// next tighter one.
package parser

import (
	"strconv"

	"github.com/gmofishsauce/chrispp/internal/ast"
	"github.com/gmofishsauce/chrispp/internal/diag"
	"github.com/gmofishsauce/chrispp/internal/source"
	"github.com/gmofishsauce/chrispp/internal/token"
)

// Parser holds the token stream and diagnostic sink for one file.
type Parser struct {
	file  string
	toks  *token.Stream
	diags *diag.Engine
}

// New creates a Parser over an already-tokenized file. Comment tokens
// are filtered out up front — the parser never sees them.
func New(fileName string, toks []token.Token, diags *diag.Engine) *Parser {
	filtered := make([]token.Token, 0, len(toks))
	for _, t := range toks {
		if !t.Kind.IsComment() {
			filtered = append(filtered, t)
		}
	}
	return &Parser{file: fileName, toks: token.NewStream(filtered), diags: diags}
}

// ParseProgram parses every top-level declaration until EOF, recovering
// from errors at declaration boundaries so one bad declaration does not
// abort the rest of the file.
func (p *Parser) ParseProgram() *ast.Program {
	var decls []ast.Stmt
	for !p.toks.AtEnd() {
		d := p.parseTopLevelDecl()
		if d != nil {
			decls = append(decls, d)
		}
	}
	return &ast.Program{Decls: decls}
}

// --- token stream helpers -------------------------------------------

func (p *Parser) peek() token.Token      { return p.toks.Peek(0) }
func (p *Parser) peekAt(n int) token.Token { return p.toks.Peek(n) }
func (p *Parser) advance() token.Token   { return p.toks.Next() }

func (p *Parser) check(k token.Kind) bool {
	return p.peek().Kind == k
}

func (p *Parser) match(k token.Kind) bool {
	if p.check(k) {
		p.advance()
		return true
	}
	return false
}

// expect consumes the current token if it has kind k, otherwise reports
// E2002 and returns the current (unconsumed) token so the caller can
// still inspect its span.
func (p *Parser) expect(k token.Kind) token.Token {
	if p.check(k) {
		return p.advance()
	}
	tok := p.peek()
	p.diags.Errorf(diag.EParseExpected, tok.Span, k.String(), tok.Kind.String())
	return tok
}

// synchronize recovers from an unexpected token by skipping ahead to
// the next `;`, a declaration keyword, or a brace boundary, so one bad
// statement doesn't cascade into spurious errors for the rest of the
// block.
func (p *Parser) synchronize() {
	// The offending token itself is never a valid resync point, so it is
	// always consumed before the scan below begins; otherwise a bad
	// token that happens to be a brace or keyword would make this a
	// no-op and the caller would loop forever reporting the same error.
	if !p.toks.AtEnd() {
		p.advance()
	}
	for !p.toks.AtEnd() {
		switch p.peek().Kind {
		case token.Semicolon:
			p.advance()
			return
		case token.RBrace, token.LBrace:
			return
		case token.KwFunc, token.KwClass, token.KwInterface, token.KwEnum,
			token.KwExtern, token.KwImport, token.KwVar, token.KwLet,
			token.KwIf, token.KwWhile, token.KwFor, token.KwReturn,
			token.KwBreak, token.KwContinue, token.KwThrow, token.KwTry:
			return
		}
		p.advance()
	}
}

// --- top-level declarations ------------------------------------------

func (p *Parser) parseAnnotations() []ast.Annotation {
	var anns []ast.Annotation
	for p.check(token.At) {
		p.advance()
		name := p.expect(token.Ident).Lexeme
		var args []ast.Expr
		if p.match(token.LParen) {
			args = p.parseArgList()
			p.expect(token.RParen)
		}
		anns = append(anns, ast.Annotation{Name: name, Args: args})
	}
	return anns
}

func (p *Parser) parseAccessModifier() ast.Access {
	switch p.peek().Kind {
	case token.KwPublic:
		p.advance()
		return ast.AccessPublic
	case token.KwPrivate:
		p.advance()
		return ast.AccessPrivate
	case token.KwProtected:
		p.advance()
		return ast.AccessProtected
	default:
		return ast.AccessDefault
	}
}

func (p *Parser) parseTopLevelDecl() ast.Stmt {
	start := p.peek().Span
	anns := p.parseAnnotations()
	access := p.parseAccessModifier()

	shared := false
	if p.check(token.KwShared) {
		p.advance()
		shared = true
	}

	switch p.peek().Kind {
	case token.KwImport:
		return p.parseImport()
	case token.KwClass:
		return p.parseClassDecl(access, shared)
	case token.KwInterface:
		return p.parseInterfaceDecl(access)
	case token.KwEnum:
		return p.parseEnumDecl(access)
	case token.KwExtern:
		return p.parseExternFuncDecl()
	case token.KwAsync:
		p.advance()
		return p.parseFuncDecl(access, true, anns)
	case token.KwFunc:
		return p.parseFuncDecl(access, false, anns)
	case token.KwVar, token.KwLet:
		d := p.parseVarDeclStmt()
		d.Access = access
		d.Annotations = anns
		return d
	default:
		tok := p.peek()
		p.diags.Errorf(diag.EParseUnexpected, start, tok.Kind.String())
		p.synchronize()
		return nil
	}
}

func (p *Parser) parseImport() *ast.Import {
	start := p.advance().Span // 'import'
	path := p.expect(token.StringLiteral).Lexeme
	p.match(token.Semicolon)
	return ast.NewImport(start, path)
}

func (p *Parser) parseParamList() []ast.Param {
	var params []ast.Param
	p.expect(token.LParen)
	for !p.check(token.RParen) && !p.toks.AtEnd() {
		name := p.expect(token.Ident).Lexeme
		var typeAnnot *ast.TypeExpr
		if p.match(token.Colon) {
			typeAnnot = p.parseType()
		}
		params = append(params, ast.Param{Name: name, TypeAnnot: typeAnnot})
		if !p.match(token.Comma) {
			break
		}
	}
	p.expect(token.RParen)
	return params
}

func (p *Parser) parseReturnTypeAnnot() *ast.TypeExpr {
	if p.match(token.Arrow) {
		return p.parseType()
	}
	return nil
}

func (p *Parser) parseFuncDecl(access ast.Access, async bool, anns []ast.Annotation) *ast.FuncDecl {
	start := p.advance().Span // 'func'
	name := p.expect(token.Ident).Lexeme
	params := p.parseParamList()
	ret := p.parseReturnTypeAnnot()
	body := p.parseBlock()
	decl := ast.NewFuncDecl(start, name, access, async, params, ret, body)
	decl.Annotations = anns
	return decl
}

func (p *Parser) parseExternFuncDecl() *ast.ExternFuncDecl {
	start := p.advance().Span // 'extern'
	p.expect(token.KwFunc)
	name := p.expect(token.Ident).Lexeme
	params := p.parseParamList()
	ret := p.parseReturnTypeAnnot()
	p.match(token.Semicolon)
	return ast.NewExternFuncDecl(start, name, params, ret)
}

func (p *Parser) parseTypeParams() []string {
	var names []string
	if !p.match(token.Lt) {
		return nil
	}
	for !p.check(token.Gt) && !p.toks.AtEnd() {
		names = append(names, p.expect(token.Ident).Lexeme)
		if !p.match(token.Comma) {
			break
		}
	}
	p.expect(token.Gt)
	return names
}

func (p *Parser) parseClassDecl(access ast.Access, shared bool) *ast.ClassDecl {
	start := p.advance().Span // 'class'
	name := p.expect(token.Ident).Lexeme
	typeParams := p.parseTypeParams()

	var base string
	var interfaces []string
	if p.match(token.Colon) {
		first := p.expect(token.Ident).Lexeme
		base = first
		for p.match(token.Comma) {
			interfaces = append(interfaces, p.expect(token.Ident).Lexeme)
		}
	}

	p.expect(token.LBrace)
	var fields []ast.Field
	var methods []ast.Method
	for !p.check(token.RBrace) && !p.toks.AtEnd() {
		p.parseAnnotations()
		memberAccess := p.parseAccessModifier()
		async := false
		if p.check(token.KwAsync) {
			p.advance()
			async = true
		}
		switch p.peek().Kind {
		case token.KwVar, token.KwLet:
			mutable := p.advance().Kind == token.KwVar
			fname := p.expect(token.Ident).Lexeme
			p.expect(token.Colon)
			ftype := p.parseType()
			p.match(token.Semicolon)
			fields = append(fields, ast.Field{Name: fname, TypeAnnot: ftype, Access: memberAccess, Mutable: mutable})
		case token.KwFunc:
			p.advance()
			mname := p.expect(token.Ident).Lexeme
			mparams := p.parseParamList()
			mret := p.parseReturnTypeAnnot()
			mbody := p.parseBlock()
			methods = append(methods, ast.Method{Name: mname, Access: memberAccess, Async: async, Params: mparams, ReturnType: mret, Body: mbody})
		default:
			tok := p.peek()
			p.diags.Errorf(diag.EParseUnexpected, tok.Span, tok.Kind.String())
			p.synchronize()
		}
	}
	p.expect(token.RBrace)

	return ast.NewClassDecl(start, name, access == ast.AccessPublic, shared, typeParams, base, interfaces, fields, methods)
}

func (p *Parser) parseInterfaceDecl(access ast.Access) *ast.InterfaceDecl {
	start := p.advance().Span // 'interface'
	name := p.expect(token.Ident).Lexeme
	p.expect(token.LBrace)
	var methods []ast.InterfaceMethod
	for !p.check(token.RBrace) && !p.toks.AtEnd() {
		p.expect(token.KwFunc)
		mname := p.expect(token.Ident).Lexeme
		mparams := p.parseParamList()
		mret := p.parseReturnTypeAnnot()
		p.match(token.Semicolon)
		methods = append(methods, ast.InterfaceMethod{Name: mname, Params: mparams, ReturnType: mret})
	}
	p.expect(token.RBrace)
	return ast.NewInterfaceDecl(start, name, access == ast.AccessPublic, methods)
}

func (p *Parser) parseEnumDecl(access ast.Access) *ast.EnumDecl {
	start := p.advance().Span // 'enum'
	name := p.expect(token.Ident).Lexeme
	p.expect(token.LBrace)
	var variants []ast.EnumVariant
	for !p.check(token.RBrace) && !p.toks.AtEnd() {
		vname := p.expect(token.Ident).Lexeme
		var assoc *ast.TypeExpr
		if p.match(token.LParen) {
			assoc = p.parseType()
			p.expect(token.RParen)
		}
		variants = append(variants, ast.EnumVariant{Name: vname, AssociatedType: assoc})
		if !p.match(token.Comma) {
			break
		}
	}
	p.expect(token.RBrace)
	return ast.NewEnumDecl(start, name, access == ast.AccessPublic, variants)
}

// --- types -------------------------------------------------------------

// parseType parses a type annotation: `[T]` array shorthand, a
// parenthesized parameter-type list followed by `->` (function type),
// or a named type with optional `<T, ...>` arguments and trailing `?`.
func (p *Parser) parseType() *ast.TypeExpr {
	start := p.peek().Span

	if p.match(token.LBracket) {
		elem := p.parseType()
		p.expect(token.RBracket)
		return &ast.TypeExpr{Name: "Array", Args: []*ast.TypeExpr{elem}, SpanVal: start}
	}

	if p.check(token.LParen) {
		mark := p.toks.Mark()
		if params, ok := p.tryParseFuncTypeParams(); ok {
			if p.match(token.Arrow) {
				ret := p.parseType()
				return &ast.TypeExpr{Name: ast.FuncTypeName, ParamTypes: params, ReturnType: ret, SpanVal: start}
			}
		}
		p.toks.Reset(mark)
	}

	name := p.expect(token.Ident).Lexeme
	var args []*ast.TypeExpr
	if p.match(token.Lt) {
		for !p.check(token.Gt) && !p.toks.AtEnd() {
			args = append(args, p.parseType())
			if !p.match(token.Comma) {
				break
			}
		}
		p.expect(token.Gt)
	}
	nullable := p.match(token.Question)
	return &ast.TypeExpr{Name: name, Nullable: nullable, Args: args, SpanVal: start}
}

// tryParseFuncTypeParams attempts to parse `(T1, T2, ...)` as a list of
// parameter types. It always consumes the parens on success; the caller
// resets position on failure to reinterpret differently — in practice a
// type expression's `(` always starts a parameter list (unlike the
// expression grammar's lambda-vs-grouped ambiguity), so this rarely
// backtracks, but the Mark/Reset guard keeps the two call sites uniform.
func (p *Parser) tryParseFuncTypeParams() ([]*ast.TypeExpr, bool) {
	p.advance() // '('
	var params []*ast.TypeExpr
	for !p.check(token.RParen) && !p.toks.AtEnd() {
		params = append(params, p.parseType())
		if !p.match(token.Comma) {
			break
		}
	}
	if !p.check(token.RParen) {
		return nil, false
	}
	p.advance() // ')'
	return params, true
}

// --- statements ----------------------------------------------------

func (p *Parser) parseBlock() *ast.Block {
	start := p.expect(token.LBrace).Span
	var stmts []ast.Stmt
	for !p.check(token.RBrace) && !p.toks.AtEnd() {
		s := p.parseStatement()
		if s != nil {
			stmts = append(stmts, s)
		}
	}
	p.expect(token.RBrace)
	return ast.NewBlock(start, stmts)
}

func (p *Parser) parseStatement() ast.Stmt {
	switch p.peek().Kind {
	case token.LBrace:
		return p.parseBlock()
	case token.KwVar, token.KwLet:
		return p.parseVarDeclStmt()
	case token.KwReturn:
		return p.parseReturn()
	case token.KwIf:
		return p.parseIf()
	case token.KwWhile:
		return p.parseWhile()
	case token.KwFor:
		return p.parseForIn()
	case token.KwBreak:
		span := p.advance().Span
		p.match(token.Semicolon)
		return ast.NewBreak(span)
	case token.KwContinue:
		span := p.advance().Span
		p.match(token.Semicolon)
		return ast.NewContinue(span)
	case token.KwThrow:
		return p.parseThrow()
	case token.KwTry:
		return p.parseTry()
	case token.KwUnsafe:
		span := p.advance().Span
		return ast.NewUnsafe(span, p.parseBlock())
	default:
		return p.parseExprStmt()
	}
}

func (p *Parser) parseVarDeclStmt() *ast.VarDecl {
	start := p.peek().Span
	mutable := p.advance().Kind == token.KwVar
	name := p.expect(token.Ident).Lexeme
	var typeAnnot *ast.TypeExpr
	if p.match(token.Colon) {
		typeAnnot = p.parseType()
	}
	var init ast.Expr
	if p.match(token.Assign) {
		init = p.parseExpression()
	}
	p.match(token.Semicolon)
	return ast.NewVarDecl(start, name, mutable, typeAnnot, init)
}

func (p *Parser) parseReturn() *ast.Return {
	start := p.advance().Span
	var val ast.Expr
	if !p.check(token.Semicolon) && !p.check(token.RBrace) {
		val = p.parseExpression()
	}
	p.match(token.Semicolon)
	return ast.NewReturn(start, val)
}

func (p *Parser) parseIf() *ast.If {
	start := p.advance().Span
	cond := p.parseExpression()
	then := p.parseBlock()
	var els ast.Stmt
	if p.match(token.KwElse) {
		if p.check(token.KwIf) {
			els = p.parseIf()
		} else {
			els = p.parseBlock()
		}
	}
	return ast.NewIf(start, cond, then, els)
}

func (p *Parser) parseWhile() *ast.While {
	start := p.advance().Span
	cond := p.parseExpression()
	body := p.parseBlock()
	return ast.NewWhile(start, cond, body)
}

func (p *Parser) parseForIn() *ast.ForIn {
	start := p.advance().Span
	name := p.expect(token.Ident).Lexeme
	p.expect(token.KwIn)
	iterable := p.parseExpression()
	body := p.parseBlock()
	return ast.NewForIn(start, name, iterable, body)
}

func (p *Parser) parseThrow() *ast.Throw {
	start := p.advance().Span
	val := p.parseExpression()
	p.match(token.Semicolon)
	return ast.NewThrow(start, val)
}

func (p *Parser) parseTry() *ast.Try {
	start := p.advance().Span
	body := p.parseBlock()
	var catches []ast.CatchClause
	for p.match(token.KwCatch) {
		p.expect(token.LParen)
		name := p.expect(token.Ident).Lexeme
		var typ *ast.TypeExpr
		if p.match(token.Colon) {
			typ = p.parseType()
		}
		p.expect(token.RParen)
		cbody := p.parseBlock()
		catches = append(catches, ast.CatchClause{Name: name, Type: typ, Body: cbody})
	}
	var finally *ast.Block
	if p.match(token.KwFinally) {
		finally = p.parseBlock()
	}
	return ast.NewTry(start, body, catches, finally)
}

func (p *Parser) parseExprStmt() *ast.ExprStmt {
	start := p.peek().Span
	x := p.parseExpression()
	p.match(token.Semicolon)
	return ast.NewExprStmt(start, x)
}

// --- expressions: precedence climbing -------------------------------
//
// assignment (right-assoc) < range `..` < nil-coalesce `??` < `||` <
// `&&` < equality < comparison < additive < multiplicative < unary <
// postfix < primary.

func (p *Parser) parseExpression() ast.Expr {
	return p.parseAssignment()
}

var compoundAssignOps = map[token.Kind]string{
	token.PlusAssign:    "+",
	token.MinusAssign:   "-",
	token.StarAssign:    "*",
	token.SlashAssign:   "/",
	token.PercentAssign: "%",
}

func (p *Parser) parseAssignment() ast.Expr {
	left := p.parseRange()

	if p.check(token.Assign) {
		span := p.advance().Span
		right := p.parseAssignment()
		return ast.NewAssign(span, left, right)
	}
	if op, ok := compoundAssignOps[p.peek().Kind]; ok {
		span := p.advance().Span
		right := p.parseAssignment()
		// Desugar `x += e` into `x = x + e`.
		desugaredRight := ast.NewBinOp(span, op, left, right)
		return ast.NewAssign(span, left, desugaredRight)
	}
	return left
}

func (p *Parser) parseRange() ast.Expr {
	left := p.parseNilCoalesce()
	if p.check(token.DotDot) {
		span := p.advance().Span
		right := p.parseNilCoalesce()
		return ast.NewRange(span, left, right)
	}
	return left
}

func (p *Parser) parseNilCoalesce() ast.Expr {
	left := p.parseOr()
	for p.check(token.QuestionQuestion) {
		span := p.advance().Span
		right := p.parseOr()
		left = ast.NewNilCoalesce(span, left, right)
	}
	return left
}

func (p *Parser) parseOr() ast.Expr {
	left := p.parseAnd()
	for p.check(token.OrOr) {
		span := p.advance().Span
		right := p.parseAnd()
		left = ast.NewBinOp(span, "||", left, right)
	}
	return left
}

func (p *Parser) parseAnd() ast.Expr {
	left := p.parseEquality()
	for p.check(token.AndAnd) {
		span := p.advance().Span
		right := p.parseEquality()
		left = ast.NewBinOp(span, "&&", left, right)
	}
	return left
}

func (p *Parser) parseEquality() ast.Expr {
	left := p.parseComparison()
	for p.check(token.Eq) || p.check(token.NotEq) {
		op := p.advance()
		right := p.parseComparison()
		left = ast.NewBinOp(op.Span, op.Lexeme, left, right)
	}
	return left
}

func (p *Parser) parseComparison() ast.Expr {
	left := p.parseAdditive()
	for p.check(token.Lt) || p.check(token.Gt) || p.check(token.LtEq) || p.check(token.GtEq) {
		op := p.advance()
		right := p.parseAdditive()
		left = ast.NewBinOp(op.Span, op.Lexeme, left, right)
	}
	return left
}

func (p *Parser) parseAdditive() ast.Expr {
	left := p.parseMultiplicative()
	for p.check(token.Plus) || p.check(token.Minus) {
		op := p.advance()
		right := p.parseMultiplicative()
		left = ast.NewBinOp(op.Span, op.Lexeme, left, right)
	}
	return left
}

func (p *Parser) parseMultiplicative() ast.Expr {
	left := p.parseUnary()
	for p.check(token.Star) || p.check(token.Slash) || p.check(token.Percent) {
		op := p.advance()
		right := p.parseUnary()
		left = ast.NewBinOp(op.Span, op.Lexeme, left, right)
	}
	return left
}

func (p *Parser) parseUnary() ast.Expr {
	switch p.peek().Kind {
	case token.Minus, token.Bang:
		op := p.advance()
		operand := p.parseUnary()
		return ast.NewUnaryOp(op.Span, op.Lexeme, operand)
	case token.KwAwait:
		span := p.advance().Span
		return ast.NewAwait(span, p.parseUnary())
	default:
		return p.parsePostfix()
	}
}

func (p *Parser) parsePostfix() ast.Expr {
	expr := p.parsePrimary()
	for {
		switch p.peek().Kind {
		case token.Dot:
			p.advance()
			name := p.expect(token.Ident).Lexeme
			expr = ast.NewMemberAccess(expr.Span(), expr, name)
		case token.QuestionDot:
			p.advance()
			name := p.expect(token.Ident).Lexeme
			expr = ast.NewOptionalChain(expr.Span(), expr, name)
		case token.LParen:
			p.advance()
			args := p.parseArgList()
			p.expect(token.RParen)
			expr = ast.NewCall(expr.Span(), expr, args)
		case token.LBracket:
			p.advance()
			idx := p.parseExpression()
			p.expect(token.RBracket)
			expr = ast.NewIndex(expr.Span(), expr, idx)
		case token.Bang:
			span := p.advance().Span
			expr = ast.NewForceUnwrap(span, expr)
		default:
			return expr
		}
	}
}

func (p *Parser) parseArgList() []ast.Expr {
	var args []ast.Expr
	for !p.check(token.RParen) && !p.toks.AtEnd() {
		args = append(args, p.parseExpression())
		if !p.match(token.Comma) {
			break
		}
	}
	return args
}

// parsePrimary handles literals, `this`, parenthesized expressions,
// identifiers optionally followed by construction syntax, array
// literals, match expressions, and lambdas.
func (p *Parser) parsePrimary() ast.Expr {
	tok := p.peek()
	switch tok.Kind {
	case token.IntLiteral:
		p.advance()
		v, _ := strconv.ParseInt(tok.Lexeme, 0, 64)
		return ast.NewIntLit(tok.Span, v)
	case token.FloatLiteral:
		p.advance()
		v, _ := strconv.ParseFloat(tok.Lexeme, 64)
		return ast.NewFloatLit(tok.Span, v)
	case token.StringLiteral:
		p.advance()
		return ast.NewStringLit(tok.Span, tok.Lexeme)
	case token.StringInterpStart:
		return p.parseStringInterp()
	case token.CharLiteral:
		p.advance()
		r := rune(0)
		if len(tok.Lexeme) > 0 {
			r = []rune(tok.Lexeme)[0]
		}
		return ast.NewCharLit(tok.Span, r)
	case token.BoolLiteral:
		p.advance()
		return ast.NewBoolLit(tok.Span, tok.Lexeme == "true")
	case token.NilLiteral:
		p.advance()
		return ast.NewNilLit(tok.Span)
	case token.KwThis:
		p.advance()
		return ast.NewThis(tok.Span)
	case token.KwMatch:
		return p.parseMatch()
	case token.KwIf:
		return p.parseIfExpr()
	case token.LBracket:
		return p.parseArrayLit()
	case token.LParen:
		return p.parseParenOrLambda()
	case token.Ident:
		return p.parseIdentOrConstruct()
	default:
		p.advance()
		p.diags.Errorf(diag.EParseUnexpected, tok.Span, tok.Kind.String())
		return ast.NewNilLit(tok.Span)
	}
}

func (p *Parser) parseStringInterp() ast.Expr {
	start := p.peek().Span
	var parts []string
	var exprs []ast.Expr

	first := p.advance() // StringInterpStart
	parts = append(parts, first.Lexeme)
	for {
		exprs = append(exprs, p.parseExpression())
		next := p.advance()
		parts = append(parts, next.Lexeme)
		if next.Kind == token.StringInterpEnd {
			break
		}
		if next.Kind != token.StringInterpMiddle {
			p.diags.Errorf(diag.EParseExpected, next.Span, "StringInterpMiddle or StringInterpEnd", next.Kind.String())
			break
		}
	}
	return ast.NewStringInterp(start, parts, exprs)
}

func (p *Parser) parseArrayLit() ast.Expr {
	start := p.advance().Span // '['
	var elems []ast.Expr
	for !p.check(token.RBracket) && !p.toks.AtEnd() {
		elems = append(elems, p.parseExpression())
		if !p.match(token.Comma) {
			break
		}
	}
	p.expect(token.RBracket)
	return ast.NewArrayLit(start, elems)
}

func (p *Parser) parseIfExpr() ast.Expr {
	start := p.advance().Span
	cond := p.parseExpression()
	p.expect(token.LBrace)
	then := p.parseExpression()
	p.expect(token.RBrace)
	p.expect(token.KwElse)
	p.expect(token.LBrace)
	els := p.parseExpression()
	p.expect(token.RBrace)
	return ast.NewIfExpr(start, cond, then, els)
}

func (p *Parser) parseMatch() ast.Expr {
	start := p.advance().Span
	subject := p.parseExpression()
	p.expect(token.LBrace)
	var arms []ast.MatchArm
	for !p.check(token.RBrace) && !p.toks.AtEnd() {
		arm := ast.MatchArm{}
		if p.peek().Lexeme == "_" && p.check(token.Ident) {
			p.advance()
			arm.IsCatchAll = true
		} else {
			arm.Pattern = p.expect(token.Ident).Lexeme
			if p.match(token.LParen) {
				arm.Binding = p.expect(token.Ident).Lexeme
				p.expect(token.RParen)
			}
		}
		p.expect(token.FatArrow)
		arm.Result = p.parseExpression()
		arms = append(arms, arm)
		p.match(token.Comma)
	}
	p.expect(token.RBrace)
	return ast.NewMatch(start, subject, arms)
}

// parseParenOrLambda disambiguates `(` by trial parse: if it's followed
// by a parameter list, `)`, and `=>`, it's a lambda; otherwise the
// position is restored and it's parsed as a grouped expression.
func (p *Parser) parseParenOrLambda() ast.Expr {
	start := p.peek().Span
	mark := p.toks.Mark()

	if params, ok := p.tryParseLambdaParams(); ok && p.check(token.FatArrow) {
		p.advance() // '=>'
		if p.check(token.LBrace) {
			body := p.parseBlock()
			return ast.NewLambda(start, params, nil, body)
		}
		body := p.parseExpression()
		return ast.NewLambda(start, params, body, nil)
	}
	p.toks.Reset(mark)

	p.expect(token.LParen)
	inner := p.parseExpression()
	p.expect(token.RParen)
	return inner
}

// tryParseLambdaParams attempts `( ident [: type] , ... )`. It returns
// ok=false (with the caller responsible for resetting position) if the
// contents don't look like a parameter list.
func (p *Parser) tryParseLambdaParams() ([]ast.Param, bool) {
	if !p.match(token.LParen) {
		return nil, false
	}
	var params []ast.Param
	for !p.check(token.RParen) {
		if !p.check(token.Ident) {
			return nil, false
		}
		name := p.advance().Lexeme
		var typeAnnot *ast.TypeExpr
		if p.match(token.Colon) {
			typeAnnot = p.parseType()
		}
		params = append(params, ast.Param{Name: name, TypeAnnot: typeAnnot})
		if !p.match(token.Comma) {
			break
		}
	}
	if !p.check(token.RParen) {
		return nil, false
	}
	p.advance() // ')'
	return params, true
}

// parseIdentOrConstruct parses a bare identifier, or, if immediately
// followed by `{ identifier :`, a class construction expression.
func (p *Parser) parseIdentOrConstruct() ast.Expr {
	tok := p.advance()
	if p.check(token.LBrace) && p.peekAt(1).Kind == token.Ident && p.peekAt(2).Kind == token.Colon {
		return p.parseConstructTail(tok.Span, tok.Lexeme)
	}
	return ast.NewIdent(tok.Span, tok.Lexeme)
}

func (p *Parser) parseConstructTail(start source.Span, className string) ast.Expr {
	p.advance() // '{'
	var fields []ast.FieldInit
	for !p.check(token.RBrace) && !p.toks.AtEnd() {
		name := p.expect(token.Ident).Lexeme
		p.expect(token.Colon)
		val := p.parseExpression()
		fields = append(fields, ast.FieldInit{Name: name, Value: val})
		if !p.match(token.Comma) {
			break
		}
	}
	p.expect(token.RBrace)
	return ast.NewConstruct(start, className, fields)
}
